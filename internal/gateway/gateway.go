// ABOUTME: Background process that owns settings, history and favorites
// ABOUTME: Serves the dispatch handlers in-process and over HTTP and manages their lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/explainit/internal/config"
	"github.com/2389/explainit/internal/dedupe"
	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/settings"
	"github.com/2389/explainit/internal/store"
)

// ErrNoOverlay is returned for menu requests while no overlay is attached.
var ErrNoOverlay = errors.New("no overlay attached")

// TemplateName is recorded on history items created by the explain handler.
const TemplateName = "BYOK Default"

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Option configures a Gateway.
type Option func(*Gateway)

// WithProviders overrides how the explanation service resolves providers.
func WithProviders(fn explain.ProviderFunc) Option {
	return func(g *Gateway) { g.providers = fn }
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Gateway is the single writer of settings and collections. Front ends reach it
// through a dispatch.Conn: in-process via Local or over HTTP via POST /api/dispatch.
type Gateway struct {
	config      *config.Config
	kv          store.KV
	settings    *settings.Store
	collections *store.Collections
	service     *explain.Service
	dispatcher  *dispatch.Server
	menu        *dedupe.Window
	httpServer  *http.Server
	logger      *slog.Logger

	providers explain.ProviderFunc
	now       func() time.Time

	// local is the in-process front-end connection
	local       *dispatch.Client
	localServer dispatch.ServerConn

	mu      sync.Mutex
	overlay *dispatch.Client
}

// New wires a Gateway over kv. The Gateway owns kv and closes it in Close.
func New(cfg *config.Config, kv store.KV, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if kv == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		config: cfg,
		kv:     kv,
		logger: logger.With("component", "gateway"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	var sealer *settings.Sealer
	if cfg.Database.EncryptionKey != "" {
		s, err := settings.NewSealer(cfg.Database.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("creating sealer: %w", err)
		}
		sealer = s
	}

	g.settings = settings.NewStore(kv, sealer, logger)
	g.collections = store.NewCollections(kv, g.settings.HistoryLimit, logger)
	g.service = explain.NewService(g.settings, g.providers, logger)
	g.menu = dedupe.NewWindow(cfg.Menu.DedupeWindow, 256)

	g.dispatcher = dispatch.NewServer(logger)
	g.dispatcher.Handle(dispatch.TypeExplain, g.handleExplain)
	g.dispatcher.Handle(dispatch.TypeQuickAction, g.handleQuickAction)
	g.dispatcher.Handle(dispatch.TypeShowFromMenu, g.handleShowFromMenu)

	clientConn, serverConn := dispatch.NewPipe()
	g.localServer = serverConn
	g.local = dispatch.NewClient(clientConn,
		dispatch.WithTimeout(cfg.Dispatch.Timeout),
		dispatch.WithLogger(logger))

	mux := http.NewServeMux()
	g.registerRoutes(mux)
	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Settings returns the settings store.
func (g *Gateway) Settings() *settings.Store { return g.settings }

// Collections returns the history and favorites store.
func (g *Gateway) Collections() *store.Collections { return g.collections }

// Local returns the in-process dispatch client. ServeLocal must be running for
// its calls to be answered.
func (g *Gateway) Local() *dispatch.Client { return g.local }

// Handler returns the HTTP API.
func (g *Gateway) Handler() http.Handler { return g.httpServer.Handler }

// AttachOverlay routes SHOW_FROM_MENU requests to an overlay listening on conn,
// replacing any previously attached overlay.
func (g *Gateway) AttachOverlay(conn dispatch.Conn) {
	c := dispatch.NewClient(conn,
		dispatch.WithTimeout(g.config.Dispatch.Timeout),
		dispatch.WithLogger(g.logger))

	g.mu.Lock()
	prev := g.overlay
	g.overlay = c
	g.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	g.logger.Info("overlay attached")
}

func (g *Gateway) overlayClient() *dispatch.Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overlay
}

// ServeLocal answers envelopes from the in-process connection until ctx is done
// or the gateway is closed.
func (g *Gateway) ServeLocal(ctx context.Context) error {
	return g.dispatcher.Serve(ctx, g.localServer)
}

// Run serves the HTTP API and the in-process connection until ctx is canceled,
// then shuts the HTTP server down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}
	return g.serve(ctx, ln)
}

func (g *Gateway) serve(ctx context.Context, ln net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		return g.ServeLocal(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		// The parent context is already done, so shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return g.httpServer.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Close releases the gateway's connections, the menu window and the store.
func (g *Gateway) Close() error {
	g.logger.Info("closing gateway")

	var errs []error
	if c := g.overlayClient(); c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("overlay close: %w", err))
		}
	}
	if err := g.local.Close(); err != nil {
		errs = append(errs, fmt.Errorf("local close: %w", err))
	}
	g.menu.Close()
	if err := g.kv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	return errors.Join(errs...)
}
