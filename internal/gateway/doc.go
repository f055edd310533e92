// Package gateway is the background process of explainit. It is the single
// writer of settings, history and favorites, and answers the dispatch messages
// sent by front ends.
//
// # Architecture
//
//	┌──────────────┐  in-process pipe   ┌──────────────────────┐
//	│ panel / ask  │───────────────────▶│                      │
//	└──────────────┘                    │   dispatch.Server    │
//	┌──────────────┐  POST /api/dispatch│  EXPLAIN             │──▶ explain.Service ──▶ provider
//	│ HTTP clients │───────────────────▶│  QUICK_ACTION        │
//	└──────────────┘                    │  SHOW_FROM_MENU      │──▶ overlay (dedupe.Window)
//	                                    └──────────────────────┘
//	                                               │
//	                                               ▼
//	                                store.Collections / settings.Store
//
// # Handlers
//
// EXPLAIN calls the explanation service and, on success, prepends a history
// item stamped with the output language (or the request language when none is
// set). QUICK_ACTION calls the service without touching history.
// SHOW_FROM_MENU is suppressed when the same text was shown within the menu
// dedupe window, and otherwise forwarded to the attached overlay.
//
// # HTTP API
//
//	GET    /health
//	POST   /api/dispatch
//	GET    /api/history?q=&lang=
//	DELETE /api/history
//	DELETE /api/history/{id}
//	GET    /api/favorites
//	POST   /api/favorites
//	POST   /api/favorites/toggle
//	GET    /api/favorites/check?text=
//	DELETE /api/favorites/{id}
//	GET    /api/settings
//	PATCH  /api/settings
//
// Settings responses mask the API key.
package gateway
