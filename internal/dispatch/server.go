// ABOUTME: Handling side of the dispatcher: routes envelopes to per-type handlers
// ABOUTME: Each envelope runs in its own goroutine and is answered exactly once

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Handler answers one envelope. A returned error becomes a failure reply.
type Handler func(ctx context.Context, env Envelope) (string, error)

// Server dispatches envelopes to registered handlers.
type Server struct {
	mu       sync.RWMutex
	handlers map[MessageType]Handler
	logger   *slog.Logger
}

// NewServer creates a Server with no handlers.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: make(map[MessageType]Handler),
		logger:   logger.With("component", "dispatch-server"),
	}
}

// Handle registers h for typ, replacing any previous handler.
func (s *Server) Handle(typ MessageType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[typ] = h
}

// Serve reads envelopes from conn until it closes or ctx is done, handling each
// concurrently. It returns after every in-flight handler has replied.
func (s *Server) Serve(ctx context.Context, conn ServerConn) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		env, err := conn.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading envelope: %w", err)
		}

		wg.Add(1)
		go func(env Envelope) {
			defer wg.Done()
			r := s.Dispatch(ctx, env)
			if err := conn.Reply(ctx, r); err != nil {
				s.logger.Debug("reply not delivered", "request_id", env.ID, "type", env.Type, "error", err)
			}
		}(env)
	}
}

// Dispatch runs the handler for env and builds its reply. A panicking handler
// produces a failure reply.
func (s *Server) Dispatch(ctx context.Context, env Envelope) (r Reply) {
	r.ID = env.ID

	s.mu.RLock()
	h, ok := s.handlers[env.Type]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("unknown message type", "request_id", env.ID, "type", env.Type)
		r.Error = fmt.Sprintf("unknown message type %q", env.Type)
		return r
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("handler panicked", "request_id", env.ID, "type", env.Type, "panic", p)
			r = Reply{ID: env.ID, Error: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	answer, err := h(ctx, env)
	if err != nil {
		s.logger.Debug("handler failed", "request_id", env.ID, "type", env.Type, "error", err)
		return Reply{ID: env.ID, Error: err.Error()}
	}
	return Reply{ID: env.ID, OK: true, Answer: answer}
}
