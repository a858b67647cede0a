package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"hookfeed/pkg/event"
)

// Worker subscribes to record topics, decodes published records and
// dispatches them to handlers by topic or by action.
type Worker struct {
	subscriber  message.Subscriber
	codec       Codec
	retry       RetryPolicy
	logger      Logger
	concurrency int
	topics      []string

	topicHandlers  map[string]Handler
	actionHandlers map[event.Action]Handler
	middleware     []Middleware
	listeners      []Listener
	allowedTopics  map[string]struct{}
}

// New creates a new Worker with the given options.
func New(opts ...Option) *Worker {
	w := &Worker{
		codec:          DefaultCodec{},
		retry:          NoRetry{},
		logger:         stdLogger{},
		concurrency:    1,
		topicHandlers:  make(map[string]Handler),
		actionHandlers: make(map[event.Action]Handler),
		allowedTopics:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleTopic registers a handler for a specific topic.
func (w *Worker) HandleTopic(topic string, h Handler) {
	if h == nil || topic == "" {
		return
	}
	if len(w.allowedTopics) > 0 {
		if _, ok := w.allowedTopics[topic]; !ok {
			w.logger.Printf("handler topic not subscribed: %s", topic)
			return
		}
	}
	w.topicHandlers[topic] = h
	w.topics = append(w.topics, topic)
}

// HandleAction registers a handler for records of one action. Topic
// handlers take precedence.
func (w *Worker) HandleAction(action event.Action, h Handler) {
	if h == nil || !action.Valid() {
		return
	}
	w.actionHandlers[action] = h
}

// Run starts the worker, subscribing to topics and processing messages.
// It blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w.subscriber == nil {
		return errors.New("subscriber is required")
	}
	if len(w.topics) == 0 {
		return errors.New("at least one topic is required")
	}

	topics := unique(w.topics)
	w.notifyStart(ctx)
	defer w.notifyExit(ctx)
	sem := make(chan struct{}, w.concurrency)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, topic := range topics {
		msgs, err := w.subscriber.Subscribe(ctx, topic)
		if err != nil {
			w.notifyError(ctx, nil, err)
			return err
		}
		wg.Add(1)
		go func(topic string, ch <-chan *message.Message) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					sem <- struct{}{}
					wg.Add(1)
					go func(msg *message.Message) {
						defer wg.Done()
						defer func() { <-sem }()
						w.handleMessage(ctx, topic, msg)
					}(msg)
				}
			}
		}(topic, msgs)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Close gracefully shuts down the worker and its subscriber.
func (w *Worker) Close() error {
	if w.subscriber == nil {
		return nil
	}
	return w.subscriber.Close()
}

func (w *Worker) handleMessage(ctx context.Context, topic string, msg *message.Message) {
	d, err := w.codec.Decode(topic, msg)
	if err != nil {
		w.logger.Printf("decode failed: %v", err)
		w.notifyError(ctx, nil, err)
		w.settle(ctx, msg, nil, err)
		return
	}

	w.logger.Printf("topic=%s record=%s action=%s", d.Topic, d.Record.ID, d.Record.Action)
	w.notifyMessageStart(ctx, d)

	handler := w.topicHandlers[topic]
	if handler == nil {
		handler = w.actionHandlers[d.Record.Action]
	}
	if handler == nil {
		w.logger.Printf("no handler for topic=%s action=%s", topic, d.Record.Action)
		w.notifyMessageFinish(ctx, d, nil)
		msg.Ack()
		return
	}

	if err := w.wrap(handler)(ctx, d); err != nil {
		w.notifyMessageFinish(ctx, d, err)
		w.notifyError(ctx, d, err)
		w.settle(ctx, msg, d, err)
		return
	}
	w.notifyMessageFinish(ctx, d, nil)
	msg.Ack()
}

// settle acks or nacks a failed message according to the retry policy.
func (w *Worker) settle(ctx context.Context, msg *message.Message, d *Delivery, err error) {
	decision := w.retry.OnError(ctx, d, err)
	if decision.Retry || decision.Nack {
		msg.Nack()
		return
	}
	msg.Ack()
}

func (w *Worker) wrap(h Handler) Handler {
	wrapped := h
	for i := len(w.middleware) - 1; i >= 0; i-- {
		wrapped = w.middleware[i](wrapped)
	}
	return wrapped
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func (w *Worker) notifyStart(ctx context.Context) {
	for _, listener := range w.listeners {
		if listener.OnStart != nil {
			listener.OnStart(ctx)
		}
	}
}

func (w *Worker) notifyExit(ctx context.Context) {
	for _, listener := range w.listeners {
		if listener.OnExit != nil {
			listener.OnExit(ctx)
		}
	}
}

func (w *Worker) notifyMessageStart(ctx context.Context, d *Delivery) {
	for _, listener := range w.listeners {
		if listener.OnMessageStart != nil {
			listener.OnMessageStart(ctx, d)
		}
	}
}

func (w *Worker) notifyMessageFinish(ctx context.Context, d *Delivery, err error) {
	for _, listener := range w.listeners {
		if listener.OnMessageFinish != nil {
			listener.OnMessageFinish(ctx, d, err)
		}
	}
}

func (w *Worker) notifyError(ctx context.Context, d *Delivery, err error) {
	for _, listener := range w.listeners {
		if listener.OnError != nil {
			listener.OnError(ctx, d, err)
		}
	}
}
