// Package main provides the CLI entry point for cerebot, a Discord bridge
// for the DCSS chat relay.
//
// # Basic Usage
//
// Start the bridge:
//
//	cerebot serve --config cerebot.yaml
//
// Check a configuration file:
//
//	cerebot config validate --config cerebot.yaml
//
// # Environment Variables
//
//   - CEREBOT_CONFIG: Path to configuration file (default: cerebot.yaml)
//   - DISCORD_BOT_TOKEN: Discord bot token, referenced from the config file
//     as ${DISCORD_BOT_TOKEN}
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/cerebot
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "cerebot.yaml"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cerebot",
		Short: "cerebot - Discord bridge for the DCSS chat relay",
		Long: `cerebot keeps a Discord bot connected, answers bot commands and
relays messages between Discord channels.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}

// resolveConfigPath applies the CEREBOT_CONFIG override when no path was
// given on the command line.
func resolveConfigPath(path string, flagSet bool) string {
	if !flagSet {
		if env := strings.TrimSpace(os.Getenv("CEREBOT_CONFIG")); env != "" {
			return env
		}
	}
	if strings.TrimSpace(path) == "" {
		return defaultConfigPath
	}
	return path
}
