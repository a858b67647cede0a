package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"hookfeed/internal"
)

const defaultConfigPath = "config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hookfeed",
	Short: "Normalize GitHub webhooks into a recent activity feed",
	// serve is the default action.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(tailCmd)
}

// loadConfig reads configPath. A missing file at the default path falls
// back to defaults and environment variables.
func loadConfig() (internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && configPath == defaultConfigPath {
		return internal.DefaultConfig(), nil
	}
	return cfg, fmt.Errorf("load config: %w", err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
