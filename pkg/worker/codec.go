package worker

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"hookfeed/pkg/event"
)

// Codec is an interface for decoding messages from a message broker into a Delivery.
type Codec interface {
	// Decode transforms a Watermill message into a Delivery.
	Decode(topic string, msg *message.Message) (*Delivery, error)
}

// DefaultCodec decodes a JSON-encoded event.Record.
type DefaultCodec struct{}

// Decode unmarshals a Watermill message into a Delivery. Metadata fills in
// the action when the payload omits it.
func (DefaultCodec) Decode(topic string, msg *message.Message) (*Delivery, error) {
	var record event.Record
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if record.Action == "" {
		record.Action = event.Action(msg.Metadata.Get("action"))
	}
	if record.ID == "" {
		record.ID = msg.Metadata.Get("record_id")
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}

	return &Delivery{
		Topic:    topic,
		Driver:   msg.Metadata.Get(MetadataDriver),
		Metadata: metadata,
		Record:   record,
		Payload:  json.RawMessage(msg.Payload),
	}, nil
}
