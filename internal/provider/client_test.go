// ABOUTME: Tests for the vendor clients against httptest servers
// ABOUTME: Verifies request shape, auth headers, answer extraction and error classification

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/explainit/internal/settings"
)

type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// vendorServer answers every request with status and body and records what it saw.
func vendorServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		got.Header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestOpenAI_Call(t *testing.T) {
	srv, got := vendorServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"A happy accident."}}]}`)

	answer, err := NewOpenAI().Call(context.Background(), "sys", "user", settings.AIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/",
		Model:   "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, "A happy accident.", answer)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/chat/completions", got.Path)
	assert.Equal(t, "Bearer sk-test", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "gpt-4o", got.Body["model"])
	assert.Equal(t, 0.7, got.Body["temperature"])
	assert.Equal(t, []any{
		map[string]any{"role": "system", "content": "sys"},
		map[string]any{"role": "user", "content": "user"},
	}, got.Body["messages"])
}

func TestAnthropic_Call(t *testing.T) {
	srv, got := vendorServer(t, http.StatusOK, `{"content":[{"type":"text","text":"Listless boredom."}]}`)

	answer, err := NewAnthropic().Call(context.Background(), "sys", "user", settings.AIConfig{
		APIKey:  "ak-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "Listless boredom.", answer)

	assert.Equal(t, "/messages", got.Path)
	assert.Equal(t, "ak-test", got.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", got.Header.Get("anthropic-version"))
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.Equal(t, AnthropicDefaultModel, got.Body["model"])
	assert.Equal(t, float64(1024), got.Body["max_tokens"])
	assert.Equal(t, "sys", got.Body["system"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "user"}}, got.Body["messages"])
}

func TestGoogle_Call(t *testing.T) {
	srv, got := vendorServer(t, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Joy at misfortune."}]}}]}`)

	answer, err := NewGoogle().Call(context.Background(), "sys", "user", settings.AIConfig{
		APIKey:  "g-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "Joy at misfortune.", answer)

	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", got.Path)
	assert.Equal(t, "g-test", got.Header.Get("x-goog-api-key"))
	assert.Equal(t, map[string]any{"parts": []any{map[string]any{"text": "sys"}}}, got.Body["system_instruction"])
	assert.Equal(t, []any{
		map[string]any{"role": "user", "parts": []any{map[string]any{"text": "user"}}},
	}, got.Body["contents"])
	assert.Equal(t, map[string]any{"temperature": 0.7}, got.Body["generationConfig"])
}

func TestCall_ErrorMessageFromBody(t *testing.T) {
	clients := map[string]*Client{
		"openai":    NewOpenAI(),
		"anthropic": NewAnthropic(),
		"google":    NewGoogle(),
	}

	for name, c := range clients {
		t.Run(name, func(t *testing.T) {
			srv, _ := vendorServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)

			_, err := c.Call(context.Background(), "s", "u", settings.AIConfig{APIKey: "x", BaseURL: srv.URL})
			require.Error(t, err)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, http.StatusUnauthorized, perr.Status)
			assert.Equal(t, "bad key", perr.Message)
			assert.Equal(t, "bad key", err.Error())
		})
	}
}

func TestCall_GenericErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		c    *Client
		body string
		want string
	}{
		{"openai html body", NewOpenAI(), `<html>oops</html>`, "OpenAI API error: 500"},
		{"anthropic empty body", NewAnthropic(), ``, "Anthropic API error: 500"},
		{"google error without message", NewGoogle(), `{"error":{"code":500}}`, "Google API error: 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := vendorServer(t, http.StatusInternalServerError, tt.body)

			_, err := tt.c.Call(context.Background(), "s", "u", settings.AIConfig{BaseURL: srv.URL})
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 500, perr.Status)
			assert.Equal(t, tt.want, perr.Message)
		})
	}
}

func TestCall_UnexpectedShape(t *testing.T) {
	tests := []struct {
		name string
		c    *Client
		body string
	}{
		{"openai empty choices", NewOpenAI(), `{"choices":[]}`},
		{"openai missing message", NewOpenAI(), `{"choices":[{}]}`},
		{"openai content not string", NewOpenAI(), `{"choices":[{"message":{"content":null}}]}`},
		{"anthropic content object", NewAnthropic(), `{"content":{"text":"x"}}`},
		{"google no candidates", NewGoogle(), `{"promptFeedback":{}}`},
		{"google empty parts", NewGoogle(), `{"candidates":[{"content":{"parts":[]}}]}`},
		{"not json", NewOpenAI(), `definitely not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := vendorServer(t, http.StatusOK, tt.body)

			_, err := tt.c.Call(context.Background(), "s", "u", settings.AIConfig{BaseURL: srv.URL})
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, http.StatusOK, perr.Status)
			assert.Contains(t, perr.Message, "unexpected response shape")
		})
	}
}

func TestCall_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAI().Call(context.Background(), "s", "u", settings.AIConfig{BaseURL: url})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Status)
	assert.NotNil(t, perr.Unwrap())
}

func TestCall_ContextCanceled(t *testing.T) {
	srv, _ := vendorServer(t, http.StatusOK, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnthropic().Call(ctx, "s", "u", settings.AIConfig{BaseURL: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCall_UsesProvidedHTTPClient(t *testing.T) {
	srv, _ := vendorServer(t, http.StatusOK, `{"content":[{"text":"ok"}]}`)

	used := false
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used = true
		return http.DefaultTransport.RoundTrip(r)
	})}

	answer, err := NewAnthropic(WithHTTPClient(hc)).Call(context.Background(), "s", "u", settings.AIConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.True(t, used)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
