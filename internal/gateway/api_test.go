// ABOUTME: Tests for the gateway HTTP API
// ABOUTME: Drives the endpoints through httptest, including dispatch over HTTPConn against a fake OpenAI server

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/settings"
	"github.com/2389/explainit/internal/store"
)

func newAPIServer(t *testing.T, g *Gateway) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPI_Health(t *testing.T) {
	srv := newAPIServer(t, newTestGateway(t, nil))

	resp := doRequest(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_EndToEndExplainOverHTTP(t *testing.T) {
	openai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-live" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"A happy accident."}}]}`))
	}))
	defer openai.Close()

	g := newTestGateway(t, nil)
	srv := newAPIServer(t, g)
	ctx := context.Background()

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/settings",
		`{"output_language":"en","ai":{"provider":"openai","api_key":"sk-live","base_url":"`+openai.URL+`/"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	client := dispatch.NewClient(dispatch.NewHTTPConn(srv.URL, nil))
	defer client.Close()

	answer, err := client.Explain(ctx, "serendipity", "ru")
	require.NoError(t, err)
	assert.Equal(t, "A happy accident.", answer)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[HistoryResponse](t, resp)
	require.Len(t, history.Items, 1)
	assert.Equal(t, "serendipity", history.Items[0].RequestText)
	assert.Equal(t, "A happy accident.", history.Items[0].ResponseText)
	assert.Equal(t, "ru", history.Items[0].Language)

	// A rejected key is an application failure, not a transport failure
	_, err = g.Settings().Set(ctx, "ai.api_key", "sk-wrong")
	require.NoError(t, err)
	_, err = client.Explain(ctx, "serendipity", "ru")
	var remote *dispatch.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "bad key", remote.Message)
}

func TestAPI_DispatchRejectsMalformedEnvelope(t *testing.T) {
	srv := newAPIServer(t, newTestGateway(t, nil))

	resp := doRequest(t, http.MethodPost, srv.URL+dispatch.DispatchPath, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+dispatch.DispatchPath, `{"type":"EXPLAIN"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DispatchUnknownTypeIsFailureReply(t *testing.T) {
	srv := newAPIServer(t, newTestGateway(t, nil))

	resp := doRequest(t, http.MethodPost, srv.URL+dispatch.DispatchPath, `{"id":"abc","type":"NOPE","payload":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reply := decodeBody[dispatch.Reply](t, resp)
	assert.Equal(t, "abc", reply.ID)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "unknown message type")
}

func TestAPI_HistorySearchAndDelete(t *testing.T) {
	g := newTestGateway(t, nil)
	srv := newAPIServer(t, g)
	ctx := context.Background()

	for _, h := range []store.HistoryItem{
		{ID: "1", RequestText: "serendipity", ResponseText: "A happy accident.", Language: "en"},
		{ID: "2", RequestText: "Schadenfreude", ResponseText: "Joy at misfortune.", Language: "de"},
		{ID: "3", RequestText: "ephemeral", ResponseText: "Short-lived.", Language: "en"},
	} {
		require.NoError(t, g.Collections().AddToHistory(ctx, h))
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/history?q=ACCIDENT", "")
	items := decodeBody[HistoryResponse](t, resp).Items
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ID)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/history?lang=en", "")
	items = decodeBody[HistoryResponse](t, resp).Items
	require.Len(t, items, 2)
	assert.Equal(t, "3", items[0].ID)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/history/3", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	history, err := g.Collections().History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/history", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	history, err = g.Collections().History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAPI_Favorites(t *testing.T) {
	g := newTestGateway(t, nil)
	srv := newAPIServer(t, g)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/favorites", `{"text":"serendipity","answer":"A happy accident."}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decodeBody[AddFavoriteResponse](t, resp)
	assert.True(t, added.Added)
	assert.Equal(t, "2026-03-01T12:00:00Z", added.Favorite.Timestamp)

	// Same text again is a no-op
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/favorites", `{"text":"serendipity","answer":"other"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeBody[AddFavoriteResponse](t, resp).Added)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites", "")
	items := decodeBody[FavoritesResponse](t, resp).Items
	require.Len(t, items, 1)
	assert.Equal(t, "A happy accident.", items[0].Answer)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites/check?text=serendipity", "")
	assert.True(t, decodeBody[FavoriteCheckResponse](t, resp).Favorite)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/favorites/"+added.Favorite.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites/check?text=serendipity", "")
	assert.False(t, decodeBody[FavoriteCheckResponse](t, resp).Favorite)
}

func TestAPI_FavoritesValidation(t *testing.T) {
	srv := newAPIServer(t, newTestGateway(t, nil))

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/favorites", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/favorites", `nope`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites/check", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SettingsAreMasked(t *testing.T) {
	g := newTestGateway(t, nil)
	srv := newAPIServer(t, g)

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/settings", `{"ai":{"api_key":"sk-1234567890abcd"},"history_limit":10}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decodeBody[settings.Settings](t, resp)
	assert.Equal(t, "********abcd", patched.AI.APIKey)
	assert.Equal(t, 10, patched.HistoryLimit)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[settings.Settings](t, resp)
	assert.Equal(t, "********abcd", got.AI.APIKey)
	assert.Equal(t, settings.DefaultModel, got.AI.Model)

	// The stored key is untouched by masking
	st, err := g.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-1234567890abcd", st.AI.APIKey)
}

func TestAPI_SettingsRejectsBadPatch(t *testing.T) {
	srv := newAPIServer(t, newTestGateway(t, nil))

	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"theme":"dark"}`},
		{"negative limit", `{"history_limit":-1}`},
		{"bad provider", `{"ai":{"provider":"acme"}}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPatch, srv.URL+"/api/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decodeBody[map[string]string](t, resp)["error"])
		})
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	srv := newAPIServer(t, newTestGateway(t, nil))

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/settings", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
