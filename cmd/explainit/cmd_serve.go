// ABOUTME: serve command: runs the background gateway with a terminal overlay for menu requests
// ABOUTME: SHOW_FROM_MENU messages posted to the gateway open the overlay in this terminal

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/interaction"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the background gateway",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

	if path == "" {
		path = "(defaults)"
	}
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", path)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Path)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Database.EncryptionKey != "" {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintln(out, "API key:   sealed at rest")
	}
	fmt.Fprintln(out)

	logger.Info("starting explainit gateway",
		"http_addr", cfg.Server.HTTPAddr,
		"dispatch_timeout", cfg.Dispatch.Timeout,
		"menu_dedupe_window", cfg.Menu.DedupeWindow,
	)

	g, err := openGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer g.Close()

	overlay := interaction.NewSurface(interaction.Config{
		Kind:       interaction.Overlay,
		Language:   cfg.Client.LanguageFallback,
		Dispatcher: g.Local(),
		Favorites:  g.Library(),
		Renderer:   newTerminalRenderer(out),
		Logger:     logger,
	})
	defer overlay.Dismiss()

	overlayServer := dispatch.NewServer(logger)
	overlayServer.Handle(dispatch.TypeShowFromMenu, interaction.MenuHandler(overlay))
	conn, serverConn := dispatch.NewPipe()

	overlayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := overlayServer.Serve(overlayCtx, serverConn); err != nil {
			logger.Error("overlay stopped", "error", err)
		}
	}()
	g.AttachOverlay(conn)

	return g.Run(ctx)
}
