// ABOUTME: Bounded history list and deduplicated favorites set on top of a KV backend
// ABOUTME: Every mutation is a serialized read-modify-write of one JSON collection

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LimitFunc reports the current history size limit. It is consulted at insert time.
type LimitFunc func(ctx context.Context) (int, error)

// Collections owns the history and favorites collections.
// All mutations must go through its methods; returned slices are copies.
type Collections struct {
	kv     KV
	limit  LimitFunc
	mu     sync.Mutex
	logger *slog.Logger
}

// NewCollections creates a Collections backed by kv. limit may be nil, in which case
// history is unbounded.
func NewCollections(kv KV, limit LimitFunc, logger *slog.Logger) *Collections {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collections{
		kv:     kv,
		limit:  limit,
		logger: logger.With("component", "collections"),
	}
}

// AddToHistory prepends item and truncates the list to the history limit.
func (c *Collections) AddToHistory(ctx context.Context, item HistoryItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	history, err := c.loadHistory(ctx)
	if err != nil {
		return err
	}

	next := make([]HistoryItem, 0, len(history)+1)
	next = append(next, item)
	next = append(next, history...)

	if c.limit != nil {
		limit, err := c.limit(ctx)
		if err != nil {
			return fmt.Errorf("reading history limit: %w", err)
		}
		if limit < 0 {
			limit = 0
		}
		if len(next) > limit {
			c.logger.Debug("evicting history items", "evicted", len(next)-limit, "limit", limit)
			next = next[:limit]
		}
	}

	return c.save(ctx, KeyHistory, next)
}

// RemoveHistoryItem deletes the history entry with the given id.
func (c *Collections) RemoveHistoryItem(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	history, err := c.loadHistory(ctx)
	if err != nil {
		return err
	}

	next := history[:0]
	for _, h := range history {
		if h.ID != id {
			next = append(next, h)
		}
	}
	return c.save(ctx, KeyHistory, next)
}

// ClearHistory empties the history list.
func (c *Collections) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, KeyHistory, []HistoryItem{})
}

// History returns the history list, most recent first.
func (c *Collections) History(ctx context.Context) ([]HistoryItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadHistory(ctx)
}

// SearchHistory filters history by a case-insensitive substring over request and
// response text and, when language is non-empty, by exact language code.
func (c *Collections) SearchHistory(ctx context.Context, query, language string) ([]HistoryItem, error) {
	history, err := c.History(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := make([]HistoryItem, 0, len(history))
	for _, h := range history {
		if language != "" && h.Language != language {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(h.RequestText), q) &&
			!strings.Contains(strings.ToLower(h.ResponseText), q) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// AddFavorite prepends item unless a favorite with identical Text already exists.
// Reports whether the item was added.
func (c *Collections) AddFavorite(ctx context.Context, item FavoriteItem) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	favorites, err := c.loadFavorites(ctx)
	if err != nil {
		return false, err
	}
	if indexByText(favorites, item.Text) >= 0 {
		return false, nil
	}

	next := make([]FavoriteItem, 0, len(favorites)+1)
	next = append(next, item)
	next = append(next, favorites...)
	if err := c.save(ctx, KeyFavorites, next); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFavorite deletes the favorite with the given id.
func (c *Collections) RemoveFavorite(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	favorites, err := c.loadFavorites(ctx)
	if err != nil {
		return err
	}

	next := favorites[:0]
	for _, f := range favorites {
		if f.ID != id {
			next = append(next, f)
		}
	}
	return c.save(ctx, KeyFavorites, next)
}

// ToggleFavorite removes the favorite whose Text matches item.Text, or adds item when
// none exists. Reports whether the text is saved afterwards.
func (c *Collections) ToggleFavorite(ctx context.Context, item FavoriteItem) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	favorites, err := c.loadFavorites(ctx)
	if err != nil {
		return false, err
	}

	if i := indexByText(favorites, item.Text); i >= 0 {
		next := append(favorites[:i:i], favorites[i+1:]...)
		return false, c.save(ctx, KeyFavorites, next)
	}

	next := append([]FavoriteItem{item}, favorites...)
	return true, c.save(ctx, KeyFavorites, next)
}

// IsFavorite reports whether a favorite with exactly this text exists.
func (c *Collections) IsFavorite(ctx context.Context, text string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	favorites, err := c.loadFavorites(ctx)
	if err != nil {
		return false, err
	}
	return indexByText(favorites, text) >= 0, nil
}

// Favorites returns all favorites, most recent first.
func (c *Collections) Favorites(ctx context.Context) ([]FavoriteItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadFavorites(ctx)
}

func indexByText(favorites []FavoriteItem, text string) int {
	for i, f := range favorites {
		if f.Text == text {
			return i
		}
	}
	return -1
}

// loadHistory decodes the history collection. Must be called with mu held.
func (c *Collections) loadHistory(ctx context.Context) ([]HistoryItem, error) {
	var history []HistoryItem
	if err := c.load(ctx, KeyHistory, &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []HistoryItem{}
	}
	return history, nil
}

// loadFavorites decodes the favorites collection. Must be called with mu held.
func (c *Collections) loadFavorites(ctx context.Context) ([]FavoriteItem, error) {
	var favorites []FavoriteItem
	if err := c.load(ctx, KeyFavorites, &favorites); err != nil {
		return nil, err
	}
	if favorites == nil {
		favorites = []FavoriteItem{}
	}
	return favorites, nil
}

func (c *Collections) load(ctx context.Context, key string, dst any) error {
	raw, err := c.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (c *Collections) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := c.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}
