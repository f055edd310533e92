// ABOUTME: Persistent settings store over the KV backend
// ABOUTME: Reads merge stored fields over defaults; partial writes edit only the named JSON paths

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/2389/explainit/internal/store"
)

// settable lists every JSON path a partial update may touch.
var settable = map[string]bool{
	"output_language":      true,
	"ui_language":          true,
	"show_floating_button": true,
	"history_limit":        true,
	"ai.provider":          true,
	"ai.model":             true,
	"ai.api_key":           true,
	"ai.base_url":          true,
	"ai.custom_prompt":     true,
}

const apiKeyPath = "ai.api_key"

// Store reads and writes Settings under store.KeySettings.
type Store struct {
	kv     store.KV
	sealer *Sealer
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a settings store. sealer may be nil, in which case the API key is
// stored in plain text.
func NewStore(kv store.KV, sealer *Sealer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		sealer: sealer,
		logger: logger.With("component", "settings"),
	}
}

// Get returns the stored settings with defaults filled in for absent fields.
// Defaults are never written back.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.loadRaw(ctx)
	if err != nil {
		return Settings{}, err
	}
	return s.decode(raw)
}

// HistoryLimit reports the current history limit. It satisfies store.LimitFunc.
func (s *Store) HistoryLimit(ctx context.Context) (int, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return st.HistoryLimit, nil
}

// Save replaces the stored settings with st.
func (s *Store) Save(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st.AI.APIKey != "" && s.sealer != nil {
		sealed, err := s.sealer.Seal(st.AI.APIKey)
		if err != nil {
			return fmt.Errorf("sealing api key: %w", err)
		}
		st.AI.APIKey = sealed
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeySettings, raw); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Set writes a single field by JSON path, e.g. "ai.model" or "history_limit".
func (s *Store) Set(ctx context.Context, path string, value any) (Settings, error) {
	patch, err := sjson.SetBytes([]byte(`{}`), path, value)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, path, err)
	}
	return s.Patch(ctx, patch)
}

// Patch applies a partial JSON object to the stored settings. Only the paths present
// in patch are written; a null value removes the field so it reads as its default.
// The whole update is rejected if any path is unknown or the result is invalid.
func (s *Store) Patch(ctx context.Context, patch []byte) (Settings, error) {
	if !gjson.ValidBytes(patch) {
		return Settings{}, fmt.Errorf("%w: patch is not valid JSON", ErrInvalidSettings)
	}
	root := gjson.ParseBytes(patch)
	if !root.IsObject() {
		return Settings{}, fmt.Errorf("%w: patch must be a JSON object", ErrInvalidSettings)
	}

	paths, err := patchPaths(root)
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.loadRaw(ctx)
	if err != nil {
		return Settings{}, err
	}
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}

	for _, path := range paths {
		value := root.Get(path)
		switch {
		case value.Type == gjson.Null:
			raw, err = sjson.DeleteBytes(raw, path)
		case path == apiKeyPath && s.sealer != nil && value.String() != "":
			var sealed string
			sealed, err = s.sealer.Seal(value.String())
			if err == nil {
				raw, err = sjson.SetBytes(raw, path, sealed)
			}
		default:
			raw, err = sjson.SetRawBytes(raw, path, []byte(value.Raw))
		}
		if err != nil {
			return Settings{}, fmt.Errorf("applying %s: %w", path, err)
		}
	}

	st, err := s.decode(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}

	if err := s.kv.Set(ctx, store.KeySettings, raw); err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}

	s.logger.Debug("settings updated", "fields", paths)
	return st, nil
}

// Reset removes all stored settings so every field reads as its default.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, store.KeySettings)
}

// patchPaths flattens the top level and the "ai" object of a patch into JSON paths.
func patchPaths(root gjson.Result) ([]string, error) {
	var paths []string
	var bad []string

	root.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if k == "ai" && value.IsObject() {
			value.ForEach(func(sub, _ gjson.Result) bool {
				p := "ai." + sub.String()
				if settable[p] {
					paths = append(paths, p)
				} else {
					bad = append(bad, p)
				}
				return true
			})
			return true
		}
		if settable[k] {
			paths = append(paths, k)
		} else {
			bad = append(bad, k)
		}
		return true
	})

	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, bad)
	}
	return paths, nil
}

// loadRaw returns the stored document, or nil when nothing is stored. Must be called with mu held.
func (s *Store) loadRaw(ctx context.Context) ([]byte, error) {
	raw, err := s.kv.Get(ctx, store.KeySettings)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return raw, nil
}

// decode overlays raw onto Defaults and opens a sealed API key.
func (s *Store) decode(raw []byte) (Settings, error) {
	st := Defaults()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &st); err != nil {
			return Settings{}, fmt.Errorf("decoding settings: %w", err)
		}
	}

	if IsSealed(st.AI.APIKey) {
		if s.sealer == nil {
			return Settings{}, ErrSealed
		}
		key, err := s.sealer.Open(st.AI.APIKey)
		if err != nil {
			return Settings{}, fmt.Errorf("opening api key: %w", err)
		}
		st.AI.APIKey = key
	}
	return st, nil
}
