// ABOUTME: HTTP client for the gateway API used by front ends running in another process
// ABOUTME: Maps JSON error bodies to APIError and implements Library

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389/explainit/internal/settings"
	"github.com/2389/explainit/internal/store"
)

// APIError is returned when the gateway answers with a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

// Client talks to a running gateway over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Library = (*Client)(nil)

// NewClient creates a Client for the gateway at baseURL. hc may be nil.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Health returns nil when the gateway answers GET /health with 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) SearchHistory(ctx context.Context, query, language string) ([]store.HistoryItem, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if language != "" {
		q.Set("lang", language)
	}
	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) RemoveHistoryItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/history", nil, nil)
}

func (c *Client) Favorites(ctx context.Context) ([]store.FavoriteItem, error) {
	var resp FavoritesResponse
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) RemoveFavorite(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/favorites/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, item store.FavoriteItem) (bool, error) {
	var resp ToggleFavoriteResponse
	if err := c.do(ctx, http.MethodPost, "/api/favorites/toggle", item, &resp); err != nil {
		return false, err
	}
	return resp.Saved, nil
}

func (c *Client) IsFavorite(ctx context.Context, text string) (bool, error) {
	var resp FavoriteCheckResponse
	if err := c.do(ctx, http.MethodGet, "/api/favorites/check?text="+url.QueryEscape(text), nil, &resp); err != nil {
		return false, err
	}
	return resp.Favorite, nil
}

func (c *Client) Settings(ctx context.Context) (settings.Settings, error) {
	var st settings.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &st)
	return st, err
}

func (c *Client) PatchSettings(ctx context.Context, patch []byte) (settings.Settings, error) {
	var st settings.Settings
	err := c.do(ctx, http.MethodPatch, "/api/settings", json.RawMessage(patch), &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
