// ABOUTME: health command: checks that a gateway answers on its HTTP address
// ABOUTME: Uses client.gateway_url when set, otherwise server.http_addr

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/explainit/internal/gateway"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check gateway health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		url := cfg.Client.GatewayURL
		if url == "" {
			url = "http://" + cfg.Server.HTTPAddr
		}
		if err := gateway.NewClient(url, nil).Health(cmd.Context()); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "healthy")
		return nil
	},
}
