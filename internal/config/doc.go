// Package config handles configuration loading for explainit.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The file extension picks the format: .toml is TOML, anything else
// is YAML. Missing fields receive defaults before validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from EXPLAINIT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/explainit/config.yaml
//  3. ~/.config/explainit/config.yaml
//
// Without any file the CLI falls back to Default().
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  encryption_key: "${EXPLAINIT_ENCRYPTION_KEY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:7878"   # gateway HTTP API
//
//	database:
//	  path: "~/.local/share/explainit/explainit.db"
//	  encryption_key: ""            # seals the provider key at rest
//
//	dispatch:
//	  timeout: "30s"                # per cross-context request
//
//	menu:
//	  dedupe_window: "2s"           # duplicate context-menu suppression
//
//	logging:
//	  level: "info"                 # debug, info, warn, error
//	  format: "text"                # text, json
//
//	client:
//	  plan: "free"                  # free (15 chars) or pro (50 chars)
//	  language_fallback: "en"
//	  gateway_url: ""               # empty runs the pipeline in-process
package config
