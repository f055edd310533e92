// ABOUTME: panel command: interactive request panel with the plan's character budget
// ABOUTME: Reads requests and panel commands line by line from stdin

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/interaction"
)

const panelHelp = `Type text to explain it. Commands:
  :s  synonyms      :e  examples
  :f  toggle favorite
  :n  new request   :q  quit
`

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Open the interactive request panel",
	Long: `Open the request panel. Requests longer than the plan's character limit
(free: 15, pro: 50) ask whether to truncate or continue.`,
	Args: cobra.NoArgs,
	RunE: runPanel,
}

func runPanel(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, err := commandSetup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	fe, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer fe.close()

	surface := interaction.NewSurface(interaction.Config{
		Kind:       interaction.Panel,
		Budget:     interaction.BudgetForPlan(cfg.Client.Plan),
		Language:   cfg.Client.LanguageFallback,
		Dispatcher: fe.dispatcher,
		Favorites:  fe.library,
		Renderer:   newTerminalRenderer(cmd.OutOrStdout()),
		Logger:     logger,
	})
	defer surface.Dismiss()

	fmt.Fprint(cmd.OutOrStdout(), panelHelp)
	return panelLoop(ctx, surface, cmd.InOrStdin(), cmd.OutOrStdout())
}

// panelLoop drives surface from line input until EOF, :q or ctx is done.
func panelLoop(ctx context.Context, surface *interaction.Surface, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if surface.View().OverLimit {
			switch strings.ToLower(line) {
			case "t", "truncate":
				report(out, surface.ChooseTruncate(ctx))
			case "c", "continue":
				report(out, surface.ChooseContinue(ctx))
			default:
				fmt.Fprintln(out, "answer t to truncate or c to continue")
			}
			continue
		}

		switch line {
		case ":q":
			return nil
		case ":n":
			surface.Reset()
		case ":s":
			report(out, surface.RequestQuickAction(ctx, explain.ActionSynonyms))
		case ":e":
			report(out, surface.RequestQuickAction(ctx, explain.ActionExamples))
		case ":f":
			if err := surface.ToggleFavorite(ctx); err != nil {
				report(out, err)
			} else if surface.View().Saved {
				fmt.Fprintln(out, "saved to favorites")
			} else {
				fmt.Fprintln(out, "removed from favorites")
			}
		default:
			if err := surface.Capture(line); err != nil {
				report(out, err)
				continue
			}
			report(out, surface.Submit(ctx))
		}
	}
	return scanner.Err()
}

// report prints state errors. Request failures and the over-limit prompt are
// already shown by the renderer.
func report(out io.Writer, err error) {
	if errors.Is(err, interaction.ErrInvalidState) || errors.Is(err, interaction.ErrBusy) {
		fmt.Fprintln(out, "not available right now")
	}
}
