// Package interaction implements the client-side state machine of an
// explanation surface: the inline overlay and the request panel.
//
// # States
//
//	Idle -> Capturing -> Pending -> Result | Error
//
// Capture moves any non-pending surface to Capturing. Submit dispatches the
// captured text. Panels enforce a character budget (15 free, 50 pro): text over
// the budget stays in Capturing with OverLimit set until ChooseTruncate or
// ChooseContinue is picked.
//
// From Result, each quick action (synonyms, examples) runs independently:
// None -> Pending -> Done | Failed. A failed quick action never touches the main
// result.
//
// # Cancellation
//
// Every dispatch captures a token: a context plus an epoch counter. Dismiss and
// Reset cancel the context and bump the epoch, so a reply that arrives later is
// discarded and cannot bring the surface back.
//
// # Rendering
//
// The Renderer receives a View on every transition. Answers are included both
// as raw text and as HTML rendered from Markdown.
package interaction
