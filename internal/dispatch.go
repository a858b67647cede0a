package internal

import (
	"context"
	"log"

	"hookfeed/pkg/event"
)

// Dispatcher fans stored records out to the configured publishers.
type Dispatcher struct {
	publisher Publisher
	rules     *RuleEngine
	topic     string
	logger    *log.Logger
}

func NewDispatcher(publisher Publisher, rules *RuleEngine, topic string, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{publisher: publisher, rules: rules, topic: topic, logger: logger}
}

// Dispatch publishes record to every matching topic. Without rules the
// record goes to the default topic on all drivers.
func (d *Dispatcher) Dispatch(ctx context.Context, record event.Record) error {
	if d == nil || d.publisher == nil {
		return nil
	}
	matches := d.rules.Evaluate(record)
	if d.rules.Len() == 0 && d.topic != "" {
		matches = []RuleMatch{{Topic: d.topic}}
	}
	d.logger.Printf("dispatch record=%s action=%s topics=%v", record.ID, record.Action, matches)

	var err error
	for _, match := range matches {
		if publishErr := d.publisher.PublishForDrivers(ctx, match.Topic, record, match.Drivers); publishErr != nil {
			d.logger.Printf("publish %s failed: %v", match.Topic, publishErr)
			err = publishErr
		}
	}
	return err
}
