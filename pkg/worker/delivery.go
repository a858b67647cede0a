package worker

import (
	"encoding/json"

	"hookfeed/pkg/event"
)

// Delivery is a published record received by the worker.
type Delivery struct {
	// Topic is the name of the topic the message was received on.
	Topic string `json:"topic"`
	// Driver is the broker the message came from when several are combined.
	Driver string `json:"driver,omitempty"`
	// Metadata contains message-broker-specific metadata.
	Metadata map[string]string `json:"metadata"`
	// Record is the decoded event record.
	Record event.Record `json:"record"`
	// Payload is the raw JSON payload of the message.
	Payload json.RawMessage `json:"payload"`
}
