// ABOUTME: Shared HTTP round trip for every vendor: build, send, classify, parse
// ABOUTME: Vendor differences live in a dialect; response paths are checked step by step with gjson

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/2389/explainit/internal/settings"
)

// Temperature is fixed for every vendor.
const Temperature = 0.7

// maxResponseBytes caps how much of a vendor response body is read.
const maxResponseBytes = 4 << 20

// dialect maps one prompt pair onto a vendor's HTTP shape.
type dialect interface {
	name() settings.Provider
	vendor() string
	defaultBaseURL() string
	defaultModel() string
	endpoint(base, model string) string
	setHeaders(h http.Header, apiKey string)
	body(systemPrompt, userPrompt, model string) any
	// answerPath is the gjson path of the answer text in a 2xx body
	answerPath() string
}

// Client is a Provider for one vendor dialect.
type Client struct {
	d      dialect
	http   *http.Client
	logger *slog.Logger
}

func newClient(d dialect, opts ...Option) *Client {
	c := &Client{d: d}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "provider", "provider", string(d.name()))
	return c
}

// Name returns the vendor this client talks to.
func (c *Client) Name() settings.Provider { return c.d.name() }

// Call sends the prompt pair and returns the answer text.
func (c *Client) Call(ctx context.Context, systemPrompt, userPrompt string, cfg settings.AIConfig) (string, error) {
	model := cfg.Model
	if model == "" {
		model = c.d.defaultModel()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = c.d.defaultBaseURL()
	}

	payload, err := json.Marshal(c.d.body(systemPrompt, userPrompt, model))
	if err != nil {
		return "", fmt.Errorf("encoding %s request: %w", c.d.vendor(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.d.endpoint(base, model), bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Vendor: c.d.vendor(), Message: fmt.Sprintf("building request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.d.setHeaders(req.Header, cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("provider call failed", "model", model, "error", err, "latency", time.Since(start))
		return "", &Error{Vendor: c.d.vendor(), Message: fmt.Sprintf("%s request failed: %v", c.d.vendor(), err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.logger.Debug("provider call", "model", model, "status", resp.StatusCode, "latency", time.Since(start))
	if err != nil {
		return "", &Error{Vendor: c.d.vendor(), Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Vendor: c.d.vendor(), Status: resp.StatusCode, Message: errorMessage(c.d.vendor(), resp.StatusCode, body)}
	}

	return extract(c.d.vendor(), resp.StatusCode, body, c.d.answerPath())
}

// errorMessage prefers the vendor's error.message and falls back to a generic line.
func errorMessage(vendor string, status int, body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && msg.String() != "" {
			return msg.String()
		}
	}
	return fmt.Sprintf("%s API error: %d", vendor, status)
}

// extract walks path one segment at a time so a missing array or field is reported
// as a shape error rather than an empty answer.
func extract(vendor string, status int, body []byte, path string) (string, error) {
	shapeErr := func(detail string) error {
		return &Error{Vendor: vendor, Status: status, Message: "unexpected response shape: " + detail}
	}

	if !gjson.ValidBytes(body) {
		return "", shapeErr("body is not valid JSON")
	}

	parts := strings.Split(path, ".")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], ".")
		if !gjson.GetBytes(body, prefix).Exists() {
			return "", shapeErr("missing " + prefix)
		}
	}

	answer := gjson.GetBytes(body, path)
	if answer.Type != gjson.String {
		return "", shapeErr(path + " is not a string")
	}
	return answer.String(), nil
}
