// ABOUTME: Interaction state machine for one overlay or panel surface
// ABOUTME: Each dispatch carries a cancellation token; replies for a stale token are dropped

package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/markdown"
	"github.com/2389/explainit/internal/store"
)

// Config configures a Surface.
type Config struct {
	Kind Kind

	// Budget is the panel character limit. Zero disables it. Ignored for overlays.
	Budget int

	// Language is sent with every request as the fallback output language.
	Language string

	Dispatcher Dispatcher
	Favorites  Favorites
	Renderer   Renderer
	Logger     *slog.Logger
}

type actionSlot struct {
	state   ActionState
	content string
	html    string
	err     string
}

// Surface drives one request through capture, dispatch and display.
type Surface struct {
	kind     Kind
	budget   int
	language string

	dispatcher Dispatcher
	favorites  Favorites
	renderer   Renderer
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	state     State
	text      string
	overLimit bool
	answer    string
	html      string
	errMsg    string
	saved     bool
	actions   map[explain.Action]*actionSlot

	// epoch identifies the current token; cancel releases the token's context
	epoch   uint64
	session context.Context
	cancel  context.CancelFunc
}

// NewSurface creates an idle surface.
func NewSurface(cfg Config) *Surface {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = RendererFunc(func(View) {})
	}
	budget := cfg.Budget
	if cfg.Kind == Overlay {
		budget = 0
	}
	return &Surface{
		kind:       cfg.Kind,
		budget:     budget,
		language:   cfg.Language,
		dispatcher: cfg.Dispatcher,
		favorites:  cfg.Favorites,
		renderer:   renderer,
		logger:     logger.With("component", "surface", "kind", cfg.Kind.String()),
		now:        time.Now,
		actions:    make(map[explain.Action]*actionSlot),
	}
}

// View returns a snapshot of the surface.
func (s *Surface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Capture records text as the next request. It is ignored while a request is pending.
func (s *Surface) Capture(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Pending {
		return ErrBusy
	}

	s.releaseLocked()
	s.epoch++
	s.clearLocked()
	s.state = Capturing
	s.text = text
	s.renderLocked()
	return nil
}

// Submit dispatches the captured text and blocks until the reply is applied.
// Panel text longer than the budget is held back with ErrOverLimit until the
// user picks ChooseTruncate or ChooseContinue.
func (s *Surface) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Capturing {
		s.mu.Unlock()
		return fmt.Errorf("submit from %s: %w", s.state, ErrInvalidState)
	}
	if s.budget > 0 && len([]rune(s.text)) > s.budget {
		s.overLimit = true
		s.renderLocked()
		s.mu.Unlock()
		return ErrOverLimit
	}
	return s.dispatchLocked(ctx, s.text)
}

// ChooseTruncate cuts the held-back text to the budget and dispatches it.
func (s *Surface) ChooseTruncate(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Capturing || !s.overLimit {
		s.mu.Unlock()
		return fmt.Errorf("truncate from %s: %w", s.state, ErrInvalidState)
	}
	return s.dispatchLocked(ctx, string([]rune(s.text)[:s.budget]))
}

// ChooseContinue dispatches the held-back text unchanged.
func (s *Surface) ChooseContinue(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Capturing || !s.overLimit {
		s.mu.Unlock()
		return fmt.Errorf("continue from %s: %w", s.state, ErrInvalidState)
	}
	return s.dispatchLocked(ctx, s.text)
}

// dispatchLocked enters Pending under a fresh token, waits for the reply with the
// lock released, and applies it only if the token is still current. Called with
// mu held; returns with mu released.
func (s *Surface) dispatchLocked(ctx context.Context, text string) error {
	s.releaseLocked()
	s.epoch++
	epoch := s.epoch
	session, cancel := context.WithCancel(context.Background())
	s.session, s.cancel = session, cancel

	s.state = Pending
	s.text = text
	s.overLimit = false
	s.renderLocked()
	s.mu.Unlock()

	callCtx, callCancel := context.WithCancel(session)
	stop := context.AfterFunc(ctx, callCancel)
	answer, err := s.dispatcher.Explain(callCtx, text, s.language)
	stop()
	callCancel()

	saved := false
	if err == nil && s.favorites != nil {
		ok, ferr := s.favorites.IsFavorite(session, text)
		if ferr != nil {
			s.logger.Debug("favorite lookup failed", "error", ferr)
		}
		saved = ok
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Debug("dropping reply for dismissed request", "epoch", epoch)
		return ErrDismissed
	}

	if err != nil {
		s.state = Error
		s.errMsg = errorMessage(err)
		s.renderLocked()
		return err
	}

	s.state = Result
	s.answer = answer
	s.html = markdown.RenderOrEscape(answer)
	s.saved = saved
	s.renderLocked()
	return nil
}

// RequestQuickAction fetches a follow-up for the current result. The control for
// action is disabled while it is pending and hidden once it is done; a failure
// stays inline, leaves the main result untouched and can be retried.
func (s *Surface) RequestQuickAction(ctx context.Context, action explain.Action) error {
	s.mu.Lock()
	if s.state != Result {
		s.mu.Unlock()
		return fmt.Errorf("quick action from %s: %w", s.state, ErrInvalidState)
	}
	slot := s.slotLocked(action)
	switch slot.state {
	case ActionPending:
		s.mu.Unlock()
		return ErrBusy
	case ActionDone:
		s.mu.Unlock()
		return fmt.Errorf("%s already shown: %w", action, ErrInvalidState)
	}
	slot.state = ActionPending
	slot.err = ""
	epoch := s.epoch
	session := s.session
	text := s.text
	s.renderLocked()
	s.mu.Unlock()

	callCtx, callCancel := context.WithCancel(session)
	stop := context.AfterFunc(ctx, callCancel)
	content, err := s.dispatcher.QuickAction(callCtx, text, string(action), s.language)
	stop()
	callCancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return ErrDismissed
	}

	slot = s.slotLocked(action)
	if err != nil {
		slot.state = ActionFailed
		slot.err = errorMessage(err)
		s.renderLocked()
		return err
	}

	slot.state = ActionDone
	slot.content = content
	slot.html = markdown.RenderOrEscape(content)
	s.renderLocked()
	return nil
}

// ToggleFavorite saves or unsaves the current result. A dismiss while the write
// is in flight does not undo it.
func (s *Surface) ToggleFavorite(ctx context.Context) error {
	if s.favorites == nil {
		return fmt.Errorf("favorites unavailable: %w", ErrInvalidState)
	}

	s.mu.Lock()
	if s.state != Result {
		s.mu.Unlock()
		return fmt.Errorf("favorite from %s: %w", s.state, ErrInvalidState)
	}
	epoch := s.epoch
	item := store.FavoriteItem{
		ID:        uuid.New().String(),
		Text:      s.text,
		Answer:    s.answer,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	s.mu.Unlock()

	saved, err := s.favorites.ToggleFavorite(ctx, item)
	if err != nil {
		return fmt.Errorf("toggling favorite: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// The stored favorite stands; only the closed view is left alone.
		s.logger.Debug("favorite changed after dismiss", "saved", saved)
		return nil
	}
	s.saved = saved
	s.renderLocked()
	return nil
}

// Dismiss closes the surface, as on a pointer-down outside it. Any in-flight
// reply is discarded when it arrives.
func (s *Surface) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.epoch++
	s.clearLocked()
	s.state = Idle
	s.renderLocked()
}

// Reset starts a new request on a panel. It behaves like Dismiss.
func (s *Surface) Reset() {
	s.Dismiss()
}

// releaseLocked cancels the current token, if any.
func (s *Surface) releaseLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Surface) clearLocked() {
	s.text = ""
	s.overLimit = false
	s.answer = ""
	s.html = ""
	s.errMsg = ""
	s.saved = false
	s.actions = make(map[explain.Action]*actionSlot)
}

func (s *Surface) slotLocked(action explain.Action) *actionSlot {
	slot, ok := s.actions[action]
	if !ok {
		slot = &actionSlot{}
		s.actions[action] = slot
	}
	return slot
}

func (s *Surface) viewLocked() View {
	v := View{
		Kind:      s.kind,
		State:     s.state,
		Text:      s.text,
		OverLimit: s.overLimit,
		Limit:     s.budget,
		Answer:    s.answer,
		HTML:      s.html,
		Error:     s.errMsg,
		Saved:     s.saved,
		Actions:   make(map[explain.Action]ActionView, len(s.actions)),
	}
	for a, slot := range s.actions {
		v.Actions[a] = ActionView{State: slot.state, Content: slot.content, HTML: slot.html, Error: slot.err}
	}
	return v
}

func (s *Surface) renderLocked() {
	s.renderer.Render(s.viewLocked())
}

// errorMessage formats a failure for display: transport failures as system
// errors, everything else as plain errors.
func errorMessage(err error) string {
	var terr *dispatch.TransportError
	if errors.As(err, &terr) {
		return SystemErrorPrefix + terr.Err.Error()
	}
	var rerr *dispatch.RemoteError
	if errors.As(err, &rerr) {
		return ErrorPrefix + rerr.Message
	}
	return ErrorPrefix + err.Error()
}
