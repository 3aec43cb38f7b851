package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that runs the bridge.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve bot commands",
		Long: `Connect to Discord and serve bot commands until interrupted.

The bridge reconnects with backoff after connection faults. SIGINT or SIGTERM
disconnects cleanly and exits. Edits to the admin list and command limits in
the configuration file are applied without a restart.`,
		Example: `  # Start with default config
  cerebot serve

  # Start with custom config and debug logging
  cerebot serve --config /etc/cerebot/cerebot.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(configPath, cmd.Flags().Changed("config"))
			return runServe(cmd.Context(), path, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")

	return cmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration files",
	}
	cmd.AddCommand(buildConfigValidateCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(configPath, cmd.Flags().Changed("config"))
			return runConfigValidate(cmd.OutOrStdout(), path)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML or JSON5 configuration file")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cerebot %s (commit: %s, built: %s)\n", version, commit, date)
			return err
		},
	}
}
