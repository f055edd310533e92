// ABOUTME: Wire dialects for OpenAI chat completions, Anthropic messages and Google generateContent
// ABOUTME: Each dialect owns its endpoint, auth header, request body and answer path

package provider

import (
	"net/http"
	"net/url"

	"github.com/2389/explainit/internal/settings"
)

// Default vendor roots and models.
const (
	OpenAIBaseURL    = "https://api.openai.com/v1"
	AnthropicBaseURL = "https://api.anthropic.com/v1"
	GoogleBaseURL    = "https://generativelanguage.googleapis.com/v1beta"

	OpenAIDefaultModel    = "gpt-4o-mini"
	AnthropicDefaultModel = "claude-3-5-sonnet-20240620"
	GoogleDefaultModel    = "gemini-1.5-flash"

	AnthropicVersion   = "2023-06-01"
	AnthropicMaxTokens = 1024
)

// NewOpenAI returns a client for the OpenAI chat completions API.
func NewOpenAI(opts ...Option) *Client { return newClient(openAIDialect{}, opts...) }

// NewAnthropic returns a client for the Anthropic messages API.
func NewAnthropic(opts ...Option) *Client { return newClient(anthropicDialect{}, opts...) }

// NewGoogle returns a client for the Google generateContent API.
func NewGoogle(opts ...Option) *Client { return newClient(googleDialect{}, opts...) }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- OpenAI ---

type openAIDialect struct{}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (openAIDialect) name() settings.Provider { return settings.ProviderOpenAI }
func (openAIDialect) vendor() string          { return "OpenAI" }
func (openAIDialect) defaultBaseURL() string  { return OpenAIBaseURL }
func (openAIDialect) defaultModel() string    { return OpenAIDefaultModel }
func (openAIDialect) answerPath() string      { return "choices.0.message.content" }

func (openAIDialect) endpoint(base, _ string) string { return base + "/chat/completions" }

func (openAIDialect) setHeaders(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
}

func (openAIDialect) body(systemPrompt, userPrompt, model string) any {
	return openAIRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: Temperature,
	}
}

// --- Anthropic ---

type anthropicDialect struct{}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

func (anthropicDialect) name() settings.Provider { return settings.ProviderAnthropic }
func (anthropicDialect) vendor() string          { return "Anthropic" }
func (anthropicDialect) defaultBaseURL() string  { return AnthropicBaseURL }
func (anthropicDialect) defaultModel() string    { return AnthropicDefaultModel }
func (anthropicDialect) answerPath() string      { return "content.0.text" }

func (anthropicDialect) endpoint(base, _ string) string { return base + "/messages" }

func (anthropicDialect) setHeaders(h http.Header, apiKey string) {
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", AnthropicVersion)
}

func (anthropicDialect) body(systemPrompt, userPrompt, model string) any {
	return anthropicRequest{
		Model:     model,
		MaxTokens: AnthropicMaxTokens,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: userPrompt}},
	}
}

// --- Google ---

type googleDialect struct{}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	SystemInstruction googleContent   `json:"system_instruction"`
	Contents          []googleContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

func (googleDialect) name() settings.Provider { return settings.ProviderGoogle }
func (googleDialect) vendor() string          { return "Google" }
func (googleDialect) defaultBaseURL() string  { return GoogleBaseURL }
func (googleDialect) defaultModel() string    { return GoogleDefaultModel }
func (googleDialect) answerPath() string      { return "candidates.0.content.parts.0.text" }

func (googleDialect) endpoint(base, model string) string {
	return base + "/models/" + url.PathEscape(model) + ":generateContent"
}

func (googleDialect) setHeaders(h http.Header, apiKey string) {
	h.Set("x-goog-api-key", apiKey)
}

func (googleDialect) body(systemPrompt, userPrompt, _ string) any {
	req := googleRequest{
		SystemInstruction: googleContent{Parts: []googlePart{{Text: systemPrompt}}},
		Contents:          []googleContent{{Role: "user", Parts: []googlePart{{Text: userPrompt}}}},
	}
	req.GenerationConfig.Temperature = Temperature
	return req
}
