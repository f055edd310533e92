// ABOUTME: Store interface and data types for explainit persistence
// ABOUTME: Defines the key-value backend contract and the history/favorite records

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key or entity does not exist
var ErrNotFound = errors.New("not found")

// ErrClosed is returned when an operation is attempted on a closed store
var ErrClosed = errors.New("store closed")

// Well-known keys in the local key-value namespace.
const (
	KeySettings  = "settings"
	KeyHistory   = "history"
	KeyFavorites = "favorites"
)

// HistoryItem records one successful explanation
type HistoryItem struct {
	ID           string `json:"id"`
	RequestText  string `json:"request_text"`
	ResponseText string `json:"response_text"`
	Timestamp    string `json:"timestamp"` // RFC 3339
	Language     string `json:"language"`
	TemplateName string `json:"template_name"`
}

// FavoriteItem is a saved explanation card. At most one exists per distinct Text.
type FavoriteItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// KV is the simple async key-value backend every collection is stored in.
// Values are opaque JSON documents.
type KV interface {
	// Get returns the stored value or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store
	Close() error
}
