// ABOUTME: Dispatch handlers run by the background process for each message type
// ABOUTME: Explain records history on success; menu requests are deduplicated and forwarded to the overlay

package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/explainit/internal/dedupe"
	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/store"
)

func (g *Gateway) handleExplain(ctx context.Context, env dispatch.Envelope) (string, error) {
	var p dispatch.ExplainPayload
	if err := env.Decode(&p); err != nil {
		return "", err
	}

	answer, err := g.service.Explain(ctx, p.Text, p.Lang)
	if err != nil {
		return "", err
	}

	g.recordHistory(ctx, p.Text, answer, p.Lang)
	return answer, nil
}

// recordHistory stores a successful explanation under the request language, or
// the output language when the request named none. A failed write is logged and
// does not fail the request.
func (g *Gateway) recordHistory(ctx context.Context, text, answer, lang string) {
	if lang == "" {
		if st, err := g.settings.Get(ctx); err == nil {
			lang = st.OutputLanguage
		}
	}

	item := store.HistoryItem{
		ID:           uuid.New().String(),
		RequestText:  strings.TrimSpace(text),
		ResponseText: answer,
		Timestamp:    g.now().UTC().Format(time.RFC3339),
		Language:     lang,
		TemplateName: TemplateName,
	}
	if err := g.collections.AddToHistory(ctx, item); err != nil {
		g.logger.Warn("failed to record history", "request_id", item.ID, "error", err)
	}
}

func (g *Gateway) handleQuickAction(ctx context.Context, env dispatch.Envelope) (string, error) {
	var p dispatch.QuickActionPayload
	if err := env.Decode(&p); err != nil {
		return "", err
	}
	return g.service.QuickAction(ctx, p.Text, explain.Action(p.Action), p.Lang)
}

func (g *Gateway) handleShowFromMenu(ctx context.Context, env dispatch.Envelope) (string, error) {
	var p dispatch.ShowFromMenuPayload
	if err := env.Decode(&p); err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Text) == "" {
		return "", &explain.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	if !g.menu.Accept(dedupe.Key(p.Text)) {
		g.logger.Debug("duplicate menu request suppressed", "request_id", env.ID)
		return "duplicate", nil
	}

	overlay := g.overlayClient()
	if overlay == nil {
		return "", ErrNoOverlay
	}
	if err := overlay.ShowFromMenu(ctx, p.Text); err != nil {
		return "", err
	}
	return "shown", nil
}
