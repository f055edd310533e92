// ABOUTME: history, favorites and settings commands
// ABOUTME: Work against the local database or, with client.gateway_url set, a running gateway

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/2389/explainit/internal/gateway"
)

var (
	historyQuery string
	historyLang  string
	listJSON     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and manage explanation history",
	Args:  cobra.NoArgs,
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, _ []string) error {
		items, err := lib.SearchHistory(cmd.Context(), historyQuery, historyLang)
		if err != nil {
			return err
		}
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), items)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWHEN\tLANG\tTEXT\tANSWER")
		for _, h := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.ID, h.Timestamp, h.Language, clip(h.RequestText, 30), clip(h.ResponseText, 60))
		}
		return tw.Flush()
	}),
}

var historyRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove one history item",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, args []string) error {
		return lib.RemoveHistoryItem(cmd.Context(), args[0])
	}),
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all history",
	Args:  cobra.NoArgs,
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, _ []string) error {
		return lib.ClearHistory(cmd.Context())
	}),
}

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "List and manage favorites",
	Args:    cobra.NoArgs,
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, _ []string) error {
		items, err := lib.Favorites(cmd.Context())
		if err != nil {
			return err
		}
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), items)
		}
		out := cmd.OutOrStdout()
		for _, f := range items {
			color.New(color.FgYellow).Fprint(out, "★ ")
			color.New(color.FgCyan, color.Bold).Fprint(out, f.Text)
			color.New(color.FgHiBlack).Fprintf(out, "  %s  %s\n", f.ID, f.Timestamp)
			fmt.Fprintln(out, f.Answer)
			fmt.Fprintln(out)
		}
		return nil
	}),
}

var favoritesRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, args []string) error {
		return lib.RemoveFavorite(cmd.Context(), args[0])
	}),
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show settings (the API key is masked)",
	Args:  cobra.NoArgs,
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, _ []string) error {
		st, err := lib.Settings(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), st)
	}),
}

var settingsSetCmd = &cobra.Command{
	Use:   "set PATH VALUE",
	Short: "Set one settings field",
	Long: `Set one settings field by path, for example:

  explainit settings set ai.provider anthropic
  explainit settings set ai.api_key sk-...
  explainit settings set history_limit 100
  explainit settings set show_floating_button false

VALUE is taken as JSON when it parses as JSON, otherwise as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, args []string) error {
		patch, err := settingsPatch(args[0], args[1])
		if err != nil {
			return err
		}
		st, err := lib.PatchSettings(cmd.Context(), patch)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), st)
	}),
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset PATH",
	Short: "Reset one settings field to its default",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(cmd *cobra.Command, lib gateway.Library, args []string) error {
		patch, err := sjson.SetRawBytes([]byte(`{}`), args[0], []byte("null"))
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", args[0], err)
		}
		st, err := lib.PatchSettings(cmd.Context(), patch)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), st)
	}),
}

func init() {
	historyCmd.Flags().StringVarP(&historyQuery, "query", "q", "", "only items whose text or answer contains this")
	historyCmd.Flags().StringVarP(&historyLang, "lang", "l", "", "only items in this language")
	historyCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
	favoritesCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")

	historyCmd.AddCommand(historyRmCmd, historyClearCmd)
	favoritesCmd.AddCommand(favoritesRmCmd)
	settingsCmd.AddCommand(settingsSetCmd, settingsUnsetCmd)
}

// withLibrary opens a Library for the duration of fn.
func withLibrary(fn func(cmd *cobra.Command, lib gateway.Library, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := commandSetup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		lib, closeLib, err := library(cfg, logger)
		if err != nil {
			return err
		}
		defer closeLib()
		return fn(cmd, lib, args)
	}
}

// settingsPatch builds a one-field patch document.
func settingsPatch(path, value string) ([]byte, error) {
	var (
		patch []byte
		err   error
	)
	if gjson.Valid(value) {
		patch, err = sjson.SetRawBytes([]byte(`{}`), path, []byte(value))
	} else {
		patch, err = sjson.SetBytes([]byte(`{}`), path, value)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	return patch, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// clip shortens s to at most n runes on a single line.
func clip(s string, n int) string {
	out := make([]rune, 0, n)
	for _, r := range s {
		if r == '\n' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	if utf8.RuneCountInString(s) <= n {
		return string(out)
	}
	return string(out[:n-1]) + "…"
}
