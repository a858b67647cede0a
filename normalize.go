package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"hookfeed/pkg/event"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a webhook payload and print the resulting record",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType, _ := cmd.Flags().GetString("event")
		file, _ := cmd.Flags().GetString("file")

		var (
			raw []byte
			err error
		)
		if file == "" || file == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(file)
		}
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}

		return writeNormalized(cmd.OutOrStdout(), event.NewNormalizer(event.SystemClock), eventType, raw)
	},
}

func init() {
	normalizeCmd.Flags().StringP("event", "e", "push", "webhook event type (X-GitHub-Event)")
	normalizeCmd.Flags().StringP("file", "f", "", "payload file, stdin when empty")
}

func writeNormalized(w io.Writer, normalizer *event.Normalizer, eventType string, raw []byte) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	record, ok := normalizer.Normalize(eventType, event.DecodePayload(raw))
	if !ok {
		return enc.Encode(map[string]string{"status": "ignored"})
	}
	return enc.Encode(record)
}
