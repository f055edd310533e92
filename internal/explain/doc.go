// Package explain builds explanation and quick-action prompts from the user's
// settings and sends them to the configured provider.
//
// Requests with empty text fail with *ValidationError and requests without an
// API key fail with *ConfigError. Neither reaches the network. Provider failures
// are returned unchanged as *provider.Error.
package explain
