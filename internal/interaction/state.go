// ABOUTME: States, views and collaborator interfaces of an interaction surface
// ABOUTME: A View is the immutable snapshot handed to the Renderer on every transition

package interaction

import (
	"context"
	"errors"

	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/store"
)

// State is the main request state of a surface.
type State int

const (
	Idle State = iota
	Capturing
	Pending
	Result
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Pending:
		return "pending"
	case Result:
		return "result"
	case Error:
		return "error"
	}
	return "unknown"
}

// ActionState tracks one quick action independently of the main result.
type ActionState int

const (
	ActionNone ActionState = iota
	ActionPending
	ActionDone
	ActionFailed
)

func (s ActionState) String() string {
	switch s {
	case ActionNone:
		return "none"
	case ActionPending:
		return "pending"
	case ActionDone:
		return "done"
	case ActionFailed:
		return "failed"
	}
	return "unknown"
}

// Kind selects surface behaviour.
type Kind int

const (
	// Overlay is the inline tooltip next to a selection. It has no character budget.
	Overlay Kind = iota
	// Panel is the standalone request panel. It enforces the plan's character budget.
	Panel
)

func (k Kind) String() string {
	if k == Panel {
		return "panel"
	}
	return "overlay"
}

// Character budgets for panel requests.
const (
	ProLimit  = 50
	FreeLimit = 15
)

// BudgetForPlan returns the panel character budget for a plan name.
func BudgetForPlan(plan string) int {
	if plan == "pro" {
		return ProLimit
	}
	return FreeLimit
}

// Error message prefixes shown in error views.
const (
	SystemErrorPrefix = "System error: "
	ErrorPrefix       = "Error: "
)

var (
	// ErrEmptyText is returned when captured text is empty after trimming
	ErrEmptyText = errors.New("empty text")

	// ErrOverLimit is returned by Submit when panel text exceeds the budget.
	// The surface waits for ChooseTruncate or ChooseContinue.
	ErrOverLimit = errors.New("text exceeds character limit")

	// ErrBusy is returned when the requested control is disabled because a
	// request of the same kind is in flight
	ErrBusy = errors.New("request already pending")

	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrDismissed is returned when a reply arrives after the surface was dismissed
	ErrDismissed = errors.New("surface dismissed")
)

// Dispatcher sends requests to the background context. *dispatch.Client satisfies it.
type Dispatcher interface {
	Explain(ctx context.Context, text, lang string) (string, error)
	QuickAction(ctx context.Context, text, action, lang string) (string, error)
}

// Favorites is the subset of the persistence API a surface needs.
type Favorites interface {
	ToggleFavorite(ctx context.Context, item store.FavoriteItem) (bool, error)
	IsFavorite(ctx context.Context, text string) (bool, error)
}

// Renderer draws a view. It is called with the surface locked and must not call
// back into the Surface.
type Renderer interface {
	Render(v View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(v View)

func (f RendererFunc) Render(v View) { f(v) }

// ActionView is the state of one quick action.
type ActionView struct {
	State   ActionState
	Content string
	HTML    string
	Error   string
}

// View is a snapshot of a surface.
type View struct {
	Kind  Kind
	State State

	// Text is the captured request text, after any truncation.
	Text string

	// OverLimit is set while the surface waits for a truncate/continue choice.
	OverLimit bool
	Limit     int

	Answer string
	HTML   string
	Error  string
	Saved  bool

	Actions map[explain.Action]ActionView
}

// Action returns the view of one quick action.
func (v View) Action(a explain.Action) ActionView {
	return v.Actions[a]
}
