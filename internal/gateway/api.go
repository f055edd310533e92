// ABOUTME: HTTP API for front ends: dispatch envelopes, history, favorites and settings
// ABOUTME: Settings responses always carry the masked API key

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/settings"
	"github.com/2389/explainit/internal/store"
)

// maxBodyBytes caps request bodies on every endpoint.
const maxBodyBytes = 1 << 20

// HistoryResponse is the JSON response for GET /api/history.
type HistoryResponse struct {
	Items []store.HistoryItem `json:"items"`
}

// FavoritesResponse is the JSON response for GET /api/favorites.
type FavoritesResponse struct {
	Items []store.FavoriteItem `json:"items"`
}

// AddFavoriteRequest is the JSON request body for POST /api/favorites.
type AddFavoriteRequest struct {
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

// AddFavoriteResponse is the JSON response for POST /api/favorites.
// Added is false when a favorite with the same text already existed.
type AddFavoriteResponse struct {
	Added    bool               `json:"added"`
	Favorite store.FavoriteItem `json:"favorite"`
}

// ToggleFavoriteResponse is the JSON response for POST /api/favorites/toggle.
type ToggleFavoriteResponse struct {
	Saved bool `json:"saved"`
}

// FavoriteCheckResponse is the JSON response for GET /api/favorites/check.
type FavoriteCheckResponse struct {
	Favorite bool `json:"favorite"`
}

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", g.handleHealth)

	mux.HandleFunc("POST "+dispatch.DispatchPath, g.handleDispatch)

	mux.HandleFunc("GET /api/history", g.handleListHistory)
	mux.HandleFunc("DELETE /api/history", g.handleClearHistory)
	mux.HandleFunc("DELETE /api/history/{id}", g.handleDeleteHistoryItem)

	mux.HandleFunc("GET /api/favorites", g.handleListFavorites)
	mux.HandleFunc("POST /api/favorites", g.handleAddFavorite)
	mux.HandleFunc("POST /api/favorites/toggle", g.handleToggleFavorite)
	mux.HandleFunc("GET /api/favorites/check", g.handleCheckFavorite)
	mux.HandleFunc("DELETE /api/favorites/{id}", g.handleDeleteFavorite)

	mux.HandleFunc("GET /api/settings", g.handleGetSettings)
	mux.HandleFunc("PATCH /api/settings", g.handlePatchSettings)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleDispatch answers one envelope. Application failures are carried in the
// reply with a 200 status; only malformed envelopes get a 400.
func (g *Gateway) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var env dispatch.Envelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&env); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if env.ID == "" || env.Type == "" {
		g.sendJSONError(w, http.StatusBadRequest, "id and type are required")
		return
	}

	g.writeJSON(w, http.StatusOK, g.dispatcher.Dispatch(r.Context(), env))
}

func (g *Gateway) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := g.collections.SearchHistory(r.Context(), q.Get("q"), q.Get("lang"))
	if err != nil {
		g.internalError(w, "listing history", err)
		return
	}
	g.writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

func (g *Gateway) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := g.collections.ClearHistory(r.Context()); err != nil {
		g.internalError(w, "clearing history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleDeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	if err := g.collections.RemoveHistoryItem(r.Context(), r.PathValue("id")); err != nil {
		g.internalError(w, "removing history item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := g.collections.Favorites(r.Context())
	if err != nil {
		g.internalError(w, "listing favorites", err)
		return
	}
	g.writeJSON(w, http.StatusOK, FavoritesResponse{Items: items})
}

func (g *Gateway) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req AddFavoriteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		g.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	item := store.FavoriteItem{
		ID:        uuid.New().String(),
		Text:      req.Text,
		Answer:    req.Answer,
		Timestamp: g.now().UTC().Format(time.RFC3339),
	}
	added, err := g.collections.AddFavorite(r.Context(), item)
	if err != nil {
		g.internalError(w, "adding favorite", err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	g.writeJSON(w, status, AddFavoriteResponse{Added: added, Favorite: item})
}

// handleToggleFavorite saves the posted favorite, or removes the existing one
// with the same text. A missing id or timestamp is filled in.
func (g *Gateway) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var item store.FavoriteItem
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&item); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(item.Text) == "" {
		g.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Timestamp == "" {
		item.Timestamp = g.now().UTC().Format(time.RFC3339)
	}

	saved, err := g.collections.ToggleFavorite(r.Context(), item)
	if err != nil {
		g.internalError(w, "toggling favorite", err)
		return
	}
	g.writeJSON(w, http.StatusOK, ToggleFavoriteResponse{Saved: saved})
}

func (g *Gateway) handleCheckFavorite(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		g.sendJSONError(w, http.StatusBadRequest, "text query parameter is required")
		return
	}
	ok, err := g.collections.IsFavorite(r.Context(), text)
	if err != nil {
		g.internalError(w, "checking favorite", err)
		return
	}
	g.writeJSON(w, http.StatusOK, FavoriteCheckResponse{Favorite: ok})
}

func (g *Gateway) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	if err := g.collections.RemoveFavorite(r.Context(), r.PathValue("id")); err != nil {
		g.internalError(w, "removing favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := g.settings.Get(r.Context())
	if err != nil {
		g.internalError(w, "loading settings", err)
		return
	}
	g.writeJSON(w, http.StatusOK, st.Masked())
}

// handlePatchSettings applies a partial settings document. Unknown fields and
// invalid values are rejected as a whole.
func (g *Gateway) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "reading body")
		return
	}

	st, err := g.settings.Patch(r.Context(), body)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) || errors.Is(err, settings.ErrUnknownField) {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		g.internalError(w, "updating settings", err)
		return
	}
	g.writeJSON(w, http.StatusOK, st.Masked())
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}

func (g *Gateway) internalError(w http.ResponseWriter, op string, err error) {
	g.logger.Error("request failed", "op", op, "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, op+" failed")
}
