// ABOUTME: Requesting side of the dispatcher: correlates replies to calls by id
// ABOUTME: Pending calls settle once, on reply, timeout, or connection close

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a call when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call reply timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Client sends typed requests over a Conn and waits for their replies.
type Client struct {
	conn    Conn
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	pending  map[string]chan Reply
	closeErr error

	done       chan struct{}
	readerDone chan struct{}
	cancel     context.CancelFunc
}

// NewClient starts a reader on conn. Close the client to stop it.
func NewClient(conn Conn, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:       conn,
		timeout:    DefaultTimeout,
		pending:    make(map[string]chan Reply),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		cancel:     cancel,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "dispatch-client")

	go c.readLoop(ctx)
	return c
}

// Call sends one request and returns the answer of its reply.
// Failure replies become *RemoteError; everything else that prevents a reply
// becomes *TransportError.
func (c *Client) Call(ctx context.Context, typ MessageType, payload any) (string, error) {
	env, err := NewEnvelope(uuid.New().String(), typ, payload)
	if err != nil {
		return "", err
	}

	ch := make(chan Reply, 1)
	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return "", &TransportError{Op: string(typ), Err: err}
	}
	c.pending[env.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.conn.Send(callCtx, env); err != nil {
		return "", &TransportError{Op: string(typ), Err: c.classify(ctx, callCtx, err)}
	}

	select {
	case r := <-ch:
		if !r.OK {
			return "", &RemoteError{Message: r.Error}
		}
		return r.Answer, nil
	case <-callCtx.Done():
		return "", &TransportError{Op: string(typ), Err: c.classify(ctx, callCtx, callCtx.Err())}
	case <-c.done:
		// A reply may have been routed just before the connection failed
		select {
		case r := <-ch:
			if !r.OK {
				return "", &RemoteError{Message: r.Error}
			}
			return r.Answer, nil
		default:
		}
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		return "", &TransportError{Op: string(typ), Err: err}
	}
}

// classify turns an expired call deadline into ErrTimeout and leaves caller
// cancellation and other errors as they are.
func (c *Client) classify(parent, callCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Explain sends an EXPLAIN request.
func (c *Client) Explain(ctx context.Context, text, lang string) (string, error) {
	return c.Call(ctx, TypeExplain, ExplainPayload{Text: text, Lang: lang})
}

// QuickAction sends a QUICK_ACTION request.
func (c *Client) QuickAction(ctx context.Context, text, action, lang string) (string, error) {
	return c.Call(ctx, TypeQuickAction, QuickActionPayload{Text: text, Action: action, Lang: lang})
}

// ShowFromMenu sends a SHOW_FROM_MENU notification and waits for it to be accepted.
func (c *Client) ShowFromMenu(ctx context.Context, text string) error {
	_, err := c.Call(ctx, TypeShowFromMenu, ShowFromMenuPayload{Text: text})
	return err
}

// Pending returns the number of calls waiting for a reply.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close closes the connection and fails every pending call.
func (c *Client) Close() error {
	c.cancel()
	err := c.conn.Close()
	<-c.readerDone
	return err
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.readerDone)

	for {
		r, err := c.conn.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				err = ErrClosed
			}
			c.fail(err)
			return
		}
		c.route(r)
	}
}

// route hands r to its pending call. Replies for settled or unknown ids are dropped.
func (c *Client) route(r Reply) {
	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	if ok {
		delete(c.pending, r.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("received reply for unknown request", "request_id", r.ID)
		return
	}
	ch <- r
}

// fail records err and releases every pending call.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.closeErr == nil {
		c.closeErr = err
	}
	n := len(c.pending)
	c.mu.Unlock()

	if n > 0 {
		c.logger.Debug("connection closed with pending requests", "pending", n, "error", err)
	}
	close(c.done)
}
