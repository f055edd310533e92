// Package dedupe suppresses repeated context-menu events. A Window accepts a
// key once and rejects it again until the configured window has passed.
package dedupe
