package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"hookfeed/pkg/worker"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print records published to the configured broker topics",
	Long: "tail subscribes with the publish.watermill settings of the config file.\n" +
		"The gochannel driver is in-process only and never receives anything here.",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		subCfg, err := worker.LoadSubscriberConfig(configPath)
		if err != nil {
			return fmt.Errorf("load subscriber config: %w", err)
		}
		if len(topics) == 0 {
			topics, err = worker.LoadTopicsFromConfig(configPath)
			if err != nil {
				return fmt.Errorf("load topics: %w", err)
			}
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		wk, err := worker.NewFromConfig(ctx, subCfg,
			worker.WithTopics(topics...),
			worker.WithConcurrency(concurrency),
		)
		if err != nil {
			return fmt.Errorf("subscriber: %w", err)
		}
		defer wk.Close()

		var mu sync.Mutex
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, topic := range topics {
			wk.HandleTopic(topic, func(ctx context.Context, d *worker.Delivery) error {
				mu.Lock()
				defer mu.Unlock()
				return enc.Encode(d)
			})
		}

		return wk.Run(ctx)
	},
}

func init() {
	tailCmd.Flags().StringSlice("topic", nil, "topics to follow, defaults to rule topics or publish.topic")
	tailCmd.Flags().Int("concurrency", 1, "records handled in parallel")
}
