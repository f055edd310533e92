// Package settings holds the user-editable explainit settings.
//
// Settings are stored as one JSON document under the "settings" key of a
// store.KV. Every read starts from Defaults() and overlays whatever fields are
// stored, so a field that was never written always reads as its default.
// Defaults are not persisted.
//
// Partial writes go through Patch (or Set for a single path). Only the named JSON
// paths are changed; a null value removes a field. Unknown paths and invalid
// results are rejected before anything is written.
//
// When a Sealer is configured the provider API key is encrypted with
// ChaCha20-Poly1305 before it reaches storage.
package settings
