package controllers

import (
	"context"
	"fmt"
	"log"

	"hookfeed/pkg/event"
	"hookfeed/pkg/worker"
)

// Describe renders a record the way the activity page does.
func Describe(record event.Record) string {
	when := event.FormatTimestamp(record.Timestamp)
	switch record.Action {
	case event.ActionPush:
		return fmt.Sprintf("%s pushed to %s on %s", record.Author, record.ToBranch, when)
	case event.ActionPullRequest:
		return fmt.Sprintf("%s submitted a pull request from %s to %s on %s", record.Author, record.FromBranchOr("?"), record.ToBranch, when)
	case event.ActionMerge:
		return fmt.Sprintf("%s merged branch %s to %s on %s", record.Author, record.FromBranchOr("?"), record.ToBranch, when)
	default:
		return fmt.Sprintf("%s %s on %s", record.Author, record.Action, when)
	}
}

func HandleRecord(ctx context.Context, d *worker.Delivery) error {
	if !d.Record.Action.Valid() {
		return fmt.Errorf("record %s: %w", d.Record.ID, worker.ErrPermanent)
	}
	log.Printf("topic=%s repo=%s %s", d.Topic, d.Record.Repo, Describe(d.Record))
	return nil
}
