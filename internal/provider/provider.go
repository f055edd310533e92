// ABOUTME: Provider contract shared by all LLM vendors plus the vendor registry
// ABOUTME: One prompt pair in, one answer string out, failures as *Error

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/2389/explainit/internal/settings"
)

// ErrUnknownProvider is returned when no factory is registered for a provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider performs one completion against an LLM vendor.
type Provider interface {
	// Name returns the vendor this provider talks to
	Name() settings.Provider

	// Call sends the prompt pair and returns the answer text. No retries.
	Call(ctx context.Context, systemPrompt, userPrompt string, cfg settings.AIConfig) (string, error)
}

// Error is returned for any non-2xx vendor response, any response body whose shape
// does not match the vendor contract, and any transport failure (Status 0).
type Error struct {
	Vendor  string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Option configures a vendor client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for vendor calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// DefaultHTTPTimeout bounds a single vendor call when no HTTP client is supplied.
const DefaultHTTPTimeout = 60 * time.Second

// Factory constructs a Provider.
type Factory func(opts ...Option) Provider

var (
	factoriesMu sync.RWMutex
	factories   = map[settings.Provider]Factory{}
)

func init() {
	Register(settings.ProviderOpenAI, func(opts ...Option) Provider { return NewOpenAI(opts...) })
	Register(settings.ProviderAnthropic, func(opts ...Option) Provider { return NewAnthropic(opts...) })
	Register(settings.ProviderGoogle, func(opts ...Option) Provider { return NewGoogle(opts...) })
}

// Register adds or replaces the factory for a provider name.
func Register(name settings.Provider, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Lookup returns the factory registered for name.
func Lookup(name settings.Provider) (Factory, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return f, nil
}

// Names returns the registered provider names, sorted.
func Names() []settings.Provider {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]settings.Provider, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// New constructs the provider registered for name.
func New(name settings.Provider, opts ...Option) (Provider, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return f(opts...), nil
}

// ForConfig constructs the provider selected by cfg.Provider.
func ForConfig(cfg settings.AIConfig, opts ...Option) (Provider, error) {
	return New(cfg.Provider, opts...)
}
