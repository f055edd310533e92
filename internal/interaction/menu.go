// ABOUTME: Overlay side of context-menu requests: opens the surface on SHOW_FROM_MENU
// ABOUTME: The explain flow runs in the background so the menu message is acknowledged at once

package interaction

import (
	"context"
	"errors"

	"github.com/2389/explainit/internal/dispatch"
)

// MenuHandler returns a dispatch handler that captures the menu text on s and
// starts the explain flow. It replies as soon as the surface accepted the text.
func MenuHandler(s *Surface) dispatch.Handler {
	return func(_ context.Context, env dispatch.Envelope) (string, error) {
		var p dispatch.ShowFromMenuPayload
		if err := env.Decode(&p); err != nil {
			return "", err
		}
		if err := s.Capture(p.Text); err != nil {
			return "", err
		}

		go func() {
			err := s.Submit(context.Background())
			if err != nil && !errors.Is(err, ErrDismissed) {
				s.logger.Debug("menu request finished with error", "error", err)
			}
		}()
		return "shown", nil
	}
}
