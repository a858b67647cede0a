package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"hookfeed/pkg/event"
)

// stubPublisher is a mock publisher for testing.
type stubPublisher struct {
	published    int
	failures     int
	lastTopic    string
	lastPayload  []byte
	lastMetadata message.Metadata
}

// Publish records the topic and payload, failing the first s.failures calls.
func (s *stubPublisher) Publish(topic string, msgs ...*message.Message) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.published += len(msgs)
	s.lastTopic = topic
	if len(msgs) > 0 {
		s.lastPayload = append([]byte(nil), msgs[0].Payload...)
		s.lastMetadata = msgs[0].Metadata
	}
	return nil
}

// Close is a no-op.
func (s *stubPublisher) Close() error {
	return nil
}

func registerStubDriver(t *testing.T, name string, stub *stubPublisher, closeFn func() error) {
	t.Helper()
	orig, had := publisherFactories[name]
	t.Cleanup(func() {
		if had {
			publisherFactories[name] = orig
		} else {
			delete(publisherFactories, name)
		}
	})
	RegisterPublisherDriver(name, func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return stub, closeFn, nil
	})
}

// TestRegisterPublisherDriver tests that a custom publisher driver can be registered and used.
func TestRegisterPublisherDriver(t *testing.T) {
	stub := &stubPublisher{}
	closed := false
	registerStubDriver(t, "custom", stub, func() error { closed = true; return nil })

	pub, err := NewPublisher(WatermillConfig{Driver: "custom"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := pub.PublishForDrivers(context.Background(), "custom.topic", sampleRecord(event.ActionPush), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if stub.published != 1 || stub.lastTopic != "custom.topic" {
		t.Fatalf("expected publish to custom.topic once, got %d to %q", stub.published, stub.lastTopic)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed {
		t.Fatalf("expected custom close to be called")
	}
}

// TestHTTPURLTarget tests that the HTTP target URL is constructed correctly.
func TestHTTPURLTarget(t *testing.T) {
	url, err := httpTargetURL(HTTPConfig{Mode: "base_url", BaseURL: "http://localhost:8080/hooks/"}, "/topic")
	if err != nil {
		t.Fatalf("httpTargetURL: %v", err)
	}
	if url != "http://localhost:8080/hooks/topic" {
		t.Fatalf("unexpected url: %q", url)
	}
	if _, err := httpTargetURL(HTTPConfig{Mode: "topic_url"}, ""); err == nil {
		t.Fatalf("expected error for empty topic url")
	}
}

// TestMultipleDrivers tests that the publisher can be configured to publish to multiple drivers.
func TestMultipleDrivers(t *testing.T) {
	a := &stubPublisher{}
	b := &stubPublisher{}
	registerStubDriver(t, "multi-a", a, nil)
	registerStubDriver(t, "multi-b", b, nil)

	pub, err := NewPublisher(WatermillConfig{Drivers: []string{"multi-a", "multi-b"}})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := pub.PublishForDrivers(context.Background(), "multi.topic", sampleRecord(event.ActionPush), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.published != 1 || b.published != 1 {
		t.Fatalf("expected publish to both drivers, got a=%d b=%d", a.published, b.published)
	}

	if err := pub.PublishForDrivers(context.Background(), "multi.topic", sampleRecord(event.ActionPush), []string{"multi-b"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.published != 1 || b.published != 2 {
		t.Fatalf("expected publish to multi-b only, got a=%d b=%d", a.published, b.published)
	}

	if err := pub.PublishForDrivers(context.Background(), "multi.topic", sampleRecord(event.ActionPush), []string{"missing"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

// TestPublishRecordPayloadAndMetadata ensures the record is encoded as JSON and metadata is set.
func TestPublishRecordPayloadAndMetadata(t *testing.T) {
	stub := &stubPublisher{}
	registerStubDriver(t, "payload", stub, nil)

	pub, err := NewPublisher(WatermillConfig{Driver: "payload"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	record := sampleRecord(event.ActionMerge)
	if err := pub.Publish(context.Background(), "payload.topic", record); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var decoded event.Record
	if err := json.Unmarshal(stub.lastPayload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.ID != record.ID || decoded.Action != event.ActionMerge || decoded.Repo != "acme/repo1" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
	if stub.lastMetadata.Get("provider") != "github" {
		t.Fatalf("expected provider metadata")
	}
	if stub.lastMetadata.Get("action") != "merge" {
		t.Fatalf("expected action metadata")
	}
	if stub.lastMetadata.Get("record_id") != "evt_1" {
		t.Fatalf("expected record_id metadata")
	}
	if stub.lastMetadata.Get("repo") != "acme/repo1" {
		t.Fatalf("expected repo metadata")
	}
}

// TestPublishRetry tests that transient broker failures are retried.
func TestPublishRetry(t *testing.T) {
	stub := &stubPublisher{failures: 2}
	registerStubDriver(t, "flaky", stub, nil)

	pub, err := NewPublisher(WatermillConfig{Driver: "flaky", PublishRetry: PublishRetryConfig{Attempts: 3, DelayMS: 1}})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := pub.Publish(context.Background(), "retry.topic", sampleRecord(event.ActionPush)); err != nil {
		t.Fatalf("expected publish to succeed after retries: %v", err)
	}
	if stub.published != 1 {
		t.Fatalf("expected one successful publish, got %d", stub.published)
	}

	stub.failures = 5
	if err := pub.Publish(context.Background(), "retry.topic", sampleRecord(event.ActionPush)); err == nil {
		t.Fatalf("expected error once retries are exhausted")
	}
}

func TestNewPublisherNoDrivers(t *testing.T) {
	if _, err := NewPublisher(WatermillConfig{Driver: "kafka"}); err == nil {
		t.Fatalf("expected error when no driver can be built")
	}
}

func TestNewPublisherGoChannel(t *testing.T) {
	pub, err := NewPublisher(WatermillConfig{})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()
	if err := pub.Publish(context.Background(), "hookfeed.events", sampleRecord(event.ActionPush)); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
