// ABOUTME: Explanation service: builds prompts from settings and calls the configured provider
// ABOUTME: Validates input and credentials before any network call

package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/explainit/internal/provider"
	"github.com/2389/explainit/internal/settings"
)

// Action names a follow-up request on an existing explanation.
type Action string

const (
	ActionSynonyms Action = "synonyms"
	ActionExamples Action = "examples"
)

// Actions lists the supported quick actions.
var Actions = []Action{ActionSynonyms, ActionExamples}

// ConfigError reports that the provider cannot be called with the current settings.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

// ValidationError reports a request that was rejected before reaching the provider.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SettingsReader returns the current settings with defaults applied.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// ProviderFunc resolves the provider for a config. provider.ForConfig satisfies it.
type ProviderFunc func(cfg settings.AIConfig) (provider.Provider, error)

// Service turns text into explanations.
type Service struct {
	settings  SettingsReader
	providers ProviderFunc
	logger    *slog.Logger
}

// NewService creates a Service. A nil providers resolves through the provider registry.
func NewService(s SettingsReader, providers ProviderFunc, logger *slog.Logger) *Service {
	if providers == nil {
		providers = func(cfg settings.AIConfig) (provider.Provider, error) {
			return provider.ForConfig(cfg)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		settings:  s,
		providers: providers,
		logger:    logger.With("component", "explain"),
	}
}

// Explain returns an explanation of text in the configured output language, or in
// langFallback when none is configured.
func (s *Service) Explain(ctx context.Context, text, langFallback string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	st, p, err := s.prepare(ctx)
	if err != nil {
		return "", err
	}

	lang := language(st, langFallback)
	system := fmt.Sprintf("You are a helpful assistant. Explain terms or text clearly in %s. Be concise.", lang)
	if custom := strings.TrimSpace(st.AI.CustomPrompt); custom != "" {
		system = custom
	}
	user := `Explain this: "` + text + `"`

	s.logger.Debug("explaining", "provider", st.AI.Provider, "lang", lang, "chars", len([]rune(text)))
	return p.Call(ctx, system, user, st.AI)
}

// QuickAction runs a follow-up action on text.
func (s *Service) QuickAction(ctx context.Context, text string, action Action, langFallback string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	var user string
	switch action {
	case ActionSynonyms:
		user = fmt.Sprintf("Provide a concise list of synonyms (and antonyms if applicable) for the word or phrase: \"%s\". Format as bullet points. Only return the list without introductory phrases.", text)
	case ActionExamples:
		user = fmt.Sprintf("Provide 3 clear, everyday examples of how to use the word or phrase: \"%s\" in a sentence. Format as bullet points. Only return the list without introductory phrases.", text)
	default:
		return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown quick action %q", action)}
	}

	st, p, err := s.prepare(ctx)
	if err != nil {
		return "", err
	}

	lang := language(st, langFallback)
	system := fmt.Sprintf("You are a helpful assistant. Write your response in %s. Be concise, clear, and use Markdown formatting if needed.", lang)

	s.logger.Debug("quick action", "action", action, "provider", st.AI.Provider, "lang", lang)
	return p.Call(ctx, system, user, st.AI)
}

// prepare loads settings, checks the credential and resolves the provider.
func (s *Service) prepare(ctx context.Context) (settings.Settings, provider.Provider, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return settings.Settings{}, nil, fmt.Errorf("loading settings: %w", err)
	}
	if strings.TrimSpace(st.AI.APIKey) == "" {
		return settings.Settings{}, nil, &ConfigError{Reason: "API key is not configured"}
	}
	p, err := s.providers(st.AI)
	if err != nil {
		return settings.Settings{}, nil, &ConfigError{Reason: err.Error()}
	}
	return st, p, nil
}

func language(st settings.Settings, fallback string) string {
	if st.OutputLanguage != "" {
		return st.OutputLanguage
	}
	return fallback
}
