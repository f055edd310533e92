// ABOUTME: User settings model with defaults that are applied on every read
// ABOUTME: Covers output/UI language, floating button, history limit and the AI provider config

package settings

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names one of the supported LLM vendors.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Providers lists the supported vendors in display order.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle}

// Valid reports whether p is a supported vendor.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}

// Default values used for any field absent from storage.
const (
	DefaultOutputLanguage     = "ru"
	DefaultUILanguage         = "ru"
	DefaultShowFloatingButton = true
	DefaultHistoryLimit       = 50
	DefaultProvider           = ProviderOpenAI
	DefaultModel              = "gpt-4o-mini"
)

var (
	// ErrInvalidSettings is wrapped by every validation failure
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrUnknownField is returned when a partial update names a field that does not exist
	ErrUnknownField = errors.New("unknown settings field")
)

// AIConfig selects and authenticates the LLM provider.
type AIConfig struct {
	Provider     Provider `json:"provider"`
	Model        string   `json:"model"`
	APIKey       string   `json:"api_key"`
	BaseURL      string   `json:"base_url"`
	CustomPrompt string   `json:"custom_prompt"`
}

// Settings is the user-editable configuration, owned by the background context.
type Settings struct {
	OutputLanguage     string   `json:"output_language"`
	UILanguage         string   `json:"ui_language"`
	ShowFloatingButton bool     `json:"show_floating_button"`
	HistoryLimit       int      `json:"history_limit"`
	AI                 AIConfig `json:"ai"`
}

// Defaults returns the settings used when nothing has been stored.
func Defaults() Settings {
	return Settings{
		OutputLanguage:     DefaultOutputLanguage,
		UILanguage:         DefaultUILanguage,
		ShowFloatingButton: DefaultShowFloatingButton,
		HistoryLimit:       DefaultHistoryLimit,
		AI: AIConfig{
			Provider: DefaultProvider,
			Model:    DefaultModel,
		},
	}
}

// Validate checks the invariants that must hold before settings are written.
func (s Settings) Validate() error {
	if s.HistoryLimit < 0 {
		return fmt.Errorf("%w: history_limit must be >= 0, got %d", ErrInvalidSettings, s.HistoryLimit)
	}
	if !s.AI.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidSettings, s.AI.Provider)
	}
	return nil
}

// Masked returns a copy safe to show to a user or send over the API.
func (s Settings) Masked() Settings {
	s.AI.APIKey = MaskKey(s.AI.APIKey)
	return s
}

// MaskKey hides all but the last four characters of a credential.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
