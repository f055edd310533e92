// ABOUTME: ask command: one-shot explanation through an overlay surface
// ABOUTME: Optional quick actions and favorite toggle run on the result before exiting

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/explainit/internal/explain"
	"github.com/2389/explainit/internal/interaction"
)

var (
	askSynonyms bool
	askExamples bool
	askSave     bool
	askLang     string
)

var askCmd = &cobra.Command{
	Use:   "ask TEXT...",
	Short: "Explain a word or phrase",
	Long: `Explain a word or phrase, like selecting it and opening the inline overlay.

The overlay has no character limit. Use --synonyms and --examples to run the
quick actions on the result, and --save to toggle it as a favorite.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askSynonyms, "synonyms", "s", false, "also list synonyms")
	askCmd.Flags().BoolVarP(&askExamples, "examples", "e", false, "also show usage examples")
	askCmd.Flags().BoolVar(&askSave, "save", false, "toggle the result as a favorite")
	askCmd.Flags().StringVarP(&askLang, "lang", "l", "", "fallback output language (default: client.language_fallback)")
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	lang := askLang
	if lang == "" {
		lang = cfg.Client.LanguageFallback
	}

	surface := interaction.NewSurface(interaction.Config{
		Kind:       interaction.Overlay,
		Language:   lang,
		Dispatcher: fe.dispatcher,
		Favorites:  fe.library,
		Renderer:   newTerminalRenderer(cmd.OutOrStdout()),
		Logger:     logger,
	})
	defer surface.Dismiss()

	if err := surface.Capture(strings.Join(args, " ")); err != nil {
		return err
	}
	if err := surface.Submit(ctx); err != nil {
		// The error view has already been printed
		return errors.New("explain failed")
	}

	var actions []explain.Action
	if askSynonyms {
		actions = append(actions, explain.ActionSynonyms)
	}
	if askExamples {
		actions = append(actions, explain.ActionExamples)
	}
	for _, a := range actions {
		if err := surface.RequestQuickAction(ctx, a); err != nil {
			logger.Debug("quick action failed", "action", a, "error", err)
		}
	}

	if askSave {
		if err := surface.ToggleFavorite(ctx); err != nil {
			return err
		}
		if surface.View().Saved {
			fmt.Fprintln(cmd.OutOrStdout(), "saved to favorites")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "removed from favorites")
		}
	}
	return nil
}
