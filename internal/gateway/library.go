// ABOUTME: Library is the history, favorites and settings surface shared by local and remote front ends
// ABOUTME: The local implementation reads the gateway's stores directly; Client implements it over HTTP

package gateway

import (
	"context"

	"github.com/2389/explainit/internal/settings"
	"github.com/2389/explainit/internal/store"
)

// Library manages the user's history, favorites and settings. Settings are
// always returned with the API key masked.
type Library interface {
	SearchHistory(ctx context.Context, query, language string) ([]store.HistoryItem, error)
	RemoveHistoryItem(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error

	Favorites(ctx context.Context) ([]store.FavoriteItem, error)
	RemoveFavorite(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, item store.FavoriteItem) (bool, error)
	IsFavorite(ctx context.Context, text string) (bool, error)

	Settings(ctx context.Context) (settings.Settings, error)
	PatchSettings(ctx context.Context, patch []byte) (settings.Settings, error)
}

type localLibrary struct {
	*store.Collections
	settings *settings.Store
}

// Library returns a Library backed by this gateway's stores.
func (g *Gateway) Library() Library {
	return localLibrary{Collections: g.collections, settings: g.settings}
}

func (l localLibrary) Settings(ctx context.Context) (settings.Settings, error) {
	st, err := l.settings.Get(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	return st.Masked(), nil
}

func (l localLibrary) PatchSettings(ctx context.Context, patch []byte) (settings.Settings, error) {
	st, err := l.settings.Patch(ctx, patch)
	if err != nil {
		return settings.Settings{}, err
	}
	return st.Masked(), nil
}
