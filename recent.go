package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hookfeed/internal"
	"hookfeed/pkg/api"
	"hookfeed/pkg/event"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recent stored events",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = config.Query.Limit
		}

		store, err := internal.OpenStore(cmd.Context(), config.Storage)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		records, err := store.ListRecent(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(api.Project(records, event.SystemClock))
	},
}

func init() {
	recentCmd.Flags().IntP("limit", "n", 0, "maximum number of events, defaults to query.limit")
}
