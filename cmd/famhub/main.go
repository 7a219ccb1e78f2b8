package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famhub/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "famhub",
	Short: "Family hub server: chores, points, rewards, groceries and notes",
	Long: `famhub runs the family hub API and realtime feed, and carries a few
operator tools. Settings come from a TOML file (--config or FAMHUB_CONFIG)
overlaid by FAMHUB_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
}

// loadConfig reads and validates the configuration for commands that need
// the server's settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
