// ABOUTME: Duplex message ports between contexts: an in-process pipe and an HTTP client port
// ABOUTME: Client ends send envelopes and receive replies; server ends do the reverse

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Conn is the requesting side of a message port.
type Conn interface {
	Send(ctx context.Context, env Envelope) error
	Recv(ctx context.Context) (Reply, error)
	Close() error
}

// ServerConn is the handling side of a message port.
type ServerConn interface {
	Next(ctx context.Context) (Envelope, error)
	Reply(ctx context.Context, r Reply) error
	Close() error
}

type pipe struct {
	requests chan Envelope
	replies  chan Reply
	done     chan struct{}
	once     sync.Once
}

func (p *pipe) close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

type pipeClient struct{ p *pipe }
type pipeServer struct{ p *pipe }

// NewPipe returns two connected in-process ends. Closing either end closes both.
func NewPipe() (Conn, ServerConn) {
	p := &pipe{
		requests: make(chan Envelope, 16),
		replies:  make(chan Reply, 16),
		done:     make(chan struct{}),
	}
	return pipeClient{p}, pipeServer{p}
}

func (c pipeClient) Send(ctx context.Context, env Envelope) error {
	select {
	case <-c.p.done:
		return ErrClosed
	default:
	}
	select {
	case c.p.requests <- env:
		return nil
	case <-c.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c pipeClient) Recv(ctx context.Context) (Reply, error) {
	select {
	case r := <-c.p.replies:
		return r, nil
	case <-c.p.done:
		return Reply{}, ErrClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (c pipeClient) Close() error { return c.p.close() }

func (s pipeServer) Next(ctx context.Context) (Envelope, error) {
	select {
	case env := <-s.p.requests:
		return env, nil
	case <-s.p.done:
		return Envelope{}, ErrClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (s pipeServer) Reply(ctx context.Context, r Reply) error {
	select {
	case <-s.p.done:
		return ErrClosed
	default:
	}
	select {
	case s.p.replies <- r:
		return nil
	case <-s.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s pipeServer) Close() error { return s.p.close() }

// DispatchPath is the gateway endpoint HTTPConn posts envelopes to.
const DispatchPath = "/api/dispatch"

// HTTPConn is a Conn that posts each envelope to a gateway and queues the reply.
// Send blocks for the whole round trip.
type HTTPConn struct {
	url     string
	http    *http.Client
	replies chan Reply
	done    chan struct{}
	once    sync.Once
}

// NewHTTPConn creates a Conn for the gateway at baseURL. hc may be nil.
func NewHTTPConn(baseURL string, hc *http.Client) *HTTPConn {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPConn{
		url:     strings.TrimRight(baseURL, "/") + DispatchPath,
		http:    hc,
		replies: make(chan Reply, 16),
		done:    make(chan struct{}),
	}
}

// Send posts env and queues the gateway's reply for Recv.
func (c *HTTPConn) Send(ctx context.Context, env Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var r Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}

	select {
	case c.replies <- r:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next queued reply.
func (c *HTTPConn) Recv(ctx context.Context) (Reply, error) {
	select {
	case r := <-c.replies:
		return r, nil
	case <-c.done:
		return Reply{}, ErrClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Close stops Recv. In-flight Sends still finish their HTTP request.
func (c *HTTPConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
