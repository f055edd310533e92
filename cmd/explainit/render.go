// ABOUTME: Terminal rendering of surface views
// ABOUTME: Prints only the transitions a reader cares about: pending, over-limit, result, error and quick actions

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/interaction"
)

// terminalRenderer writes views to out. It remembers what it already printed so
// repeated renders of the same state stay quiet.
type terminalRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func newTerminalRenderer(out io.Writer) *terminalRenderer {
	return &terminalRenderer{out: out}
}

func (r *terminalRenderer) Render(v interaction.View) {
	text := formatView(v)
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == "" || text == r.last {
		return
	}
	r.last = text
	fmt.Fprint(r.out, text)
}

func formatView(v interaction.View) string {
	var b strings.Builder
	gray := color.New(color.FgHiBlack)

	switch v.State {
	case interaction.Capturing:
		if v.OverLimit {
			fmt.Fprintf(&b, "%s %d characters, limit is %d. [t]runcate or [c]ontinue?\n",
				color.YellowString("!"), len([]rune(v.Text)), v.Limit)
		}
	case interaction.Pending:
		b.WriteString(gray.Sprintf("… explaining %q\n", v.Text))
	case interaction.Error:
		b.WriteString(color.RedString(v.Error) + "\n")
	case interaction.Result:
		b.WriteString(color.New(color.FgCyan, color.Bold).Sprint(v.Text))
		if v.Saved {
			b.WriteString(color.YellowString(" ★"))
		}
		b.WriteString("\n" + strings.TrimSpace(v.Answer) + "\n")

		for _, a := range explain.Actions {
			av := v.Action(a)
			switch av.State {
			case interaction.ActionPending:
				b.WriteString(gray.Sprintf("… fetching %s\n", a))
			case interaction.ActionDone:
				b.WriteString(color.GreenString("\n%s\n", strings.ToUpper(string(a))))
				b.WriteString(strings.TrimSpace(av.Content) + "\n")
			case interaction.ActionFailed:
				b.WriteString(color.RedString("%s: %s\n", a, av.Error))
			}
		}
	}
	return b.String()
}
