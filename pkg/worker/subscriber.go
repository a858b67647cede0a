package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmamaqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// MetadataDriver names the broker a record arrived from when several
// drivers are combined.
const MetadataDriver = "driver"

// SubscriberFactory builds a subscriber for one broker driver.
type SubscriberFactory func(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error)

var (
	subscriberFactoriesMu sync.RWMutex
	subscriberFactories   = map[string]SubscriberFactory{
		"gochannel": newGoChannelSubscriber,
		"amqp":      newAMQPSubscriber,
		"nats":      newNATSSubscriber,
		"kafka":     newKafkaSubscriber,
		"sql":       newSQLSubscriber,
	}
)

// RegisterSubscriberDriver adds or replaces the factory for a driver name.
func RegisterSubscriberDriver(name string, factory SubscriberFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || factory == nil {
		return
	}
	subscriberFactoriesMu.Lock()
	defer subscriberFactoriesMu.Unlock()
	subscriberFactories[name] = factory
}

func lookupSubscriberFactory(driver string) (SubscriberFactory, bool) {
	subscriberFactoriesMu.RLock()
	defer subscriberFactoriesMu.RUnlock()
	factory, ok := subscriberFactories[strings.ToLower(driver)]
	return factory, ok
}

// NewFromConfig creates a worker reading from the configured brokers.
func NewFromConfig(ctx context.Context, cfg SubscriberConfig, opts ...Option) (*Worker, error) {
	sub, err := BuildSubscriber(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithSubscriber(sub))
	return New(opts...), nil
}

// BuildSubscriber creates the subscriber for cfg. A single driver fails
// hard. With a drivers list, drivers that cannot start are skipped and the
// rest are combined, stamping MetadataDriver on every message.
func BuildSubscriber(ctx context.Context, cfg SubscriberConfig) (message.Subscriber, error) {
	logger := watermill.NewStdLogger(false, false)

	if len(cfg.Drivers) == 0 {
		driver := cfg.Driver
		if driver == "" {
			driver = "gochannel"
		}
		return startSubscriber(ctx, cfg, logger, driver)
	}

	drivers := subscriberDrivers(cfg)
	subs := make([]namedSubscriber, 0, len(drivers))
	for _, driver := range drivers {
		sub, err := startSubscriber(ctx, cfg, logger, driver)
		if err != nil {
			logger.Error("subscriber init failed, skipping driver", err, watermill.LogFields{
				"driver": driver,
			})
			continue
		}
		subs = append(subs, namedSubscriber{driver: driver, sub: sub})
	}
	if len(subs) == 0 {
		return nil, errors.New("no subscriber drivers could be started")
	}
	return &fanInSubscriber{subscribers: subs, bufferSize: cfg.GoChannel.OutputChannelBuffer}, nil
}

// subscriberDrivers merges Drivers and Driver, lowercased and deduplicated.
func subscriberDrivers(cfg SubscriberConfig) []string {
	all := append(append([]string{}, cfg.Drivers...), cfg.Driver)
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, driver := range all {
		driver = strings.ToLower(strings.TrimSpace(driver))
		if driver == "" {
			continue
		}
		if _, ok := seen[driver]; ok {
			continue
		}
		seen[driver] = struct{}{}
		out = append(out, driver)
	}
	return out
}

// startSubscriber builds one driver, retrying per cfg.Retry while ctx is live.
// Unknown drivers are not retried.
func startSubscriber(ctx context.Context, cfg SubscriberConfig, logger watermill.LoggerAdapter, driver string) (message.Subscriber, error) {
	factory, ok := lookupSubscriberFactory(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported subscriber driver: %s", driver)
	}

	attempts := cfg.Retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(cfg.Retry.DelayMS) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sub, err := factory(cfg, logger)
		if err == nil {
			return sub, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%s subscriber: %w", driver, lastErr)
}

func newGoChannelSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
		Persistent:                     cfg.GoChannel.Persistent,
		BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
	}, logger), nil
}

func newAMQPSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.AMQP.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	var amqpCfg wmamaqp.Config
	switch strings.ToLower(cfg.AMQP.Mode) {
	case "", "durable_queue":
		amqpCfg = wmamaqp.NewDurableQueueConfig(cfg.AMQP.URL)
	case "nondurable_queue":
		amqpCfg = wmamaqp.NewNonDurableQueueConfig(cfg.AMQP.URL)
	case "durable_pubsub":
		amqpCfg = wmamaqp.NewDurablePubSubConfig(cfg.AMQP.URL, nil)
	case "nondurable_pubsub":
		amqpCfg = wmamaqp.NewNonDurablePubSubConfig(cfg.AMQP.URL, nil)
	default:
		return nil, fmt.Errorf("unsupported amqp mode: %s", cfg.AMQP.Mode)
	}
	return wmamaqp.NewSubscriber(amqpCfg, logger)
}

func newNATSSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
		return nil, errors.New("nats cluster_id and client_id are required")
	}
	natsCfg := wmnats.StreamingSubscriberConfig{
		ClusterID:   cfg.NATS.ClusterID,
		ClientID:    cfg.NATS.ClientID + cfg.NATS.ClientIDSuffix,
		DurableName: cfg.NATS.Durable,
		Unmarshaler: wmnats.GobMarshaler{},
	}
	if cfg.NATS.URL != "" {
		natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
	}
	return wmnats.NewStreamingSubscriber(natsCfg, logger)
}

func newKafkaSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	return wmkafka.NewSubscriber(wmkafka.SubscriberConfig{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}, nil, wmkafka.DefaultMarshaler{}, logger)
}

// newSQLSubscriber reads the watermill-sql tables the server publishes to.
// The database handle is closed with the subscriber.
func newSQLSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
		return nil, errors.New("sql driver and dsn are required")
	}
	var subCfg wmsql.SubscriberConfig
	switch strings.ToLower(cfg.SQL.Dialect) {
	case "postgres", "postgresql":
		subCfg.SchemaAdapter = wmsql.DefaultPostgreSQLSchema{}
		subCfg.OffsetsAdapter = wmsql.DefaultPostgreSQLOffsetsAdapter{}
	case "mysql":
		subCfg.SchemaAdapter = wmsql.DefaultMySQLSchema{}
		subCfg.OffsetsAdapter = wmsql.DefaultMySQLOffsetsAdapter{}
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", cfg.SQL.Dialect)
	}
	subCfg.ConsumerGroup = cfg.SQL.ConsumerGroup
	subCfg.InitializeSchema = cfg.SQL.InitializeSchema || cfg.SQL.AutoInitializeSchema

	db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
	if err != nil {
		return nil, err
	}
	sub, err := wmsql.NewSubscriber(db, subCfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &closingSubscriber{Subscriber: sub, closeFn: db.Close}, nil
}

type closingSubscriber struct {
	message.Subscriber
	closeFn func() error
}

func (c *closingSubscriber) Close() error {
	err := c.Subscriber.Close()
	if c.closeFn != nil {
		err = errors.Join(err, c.closeFn())
	}
	return err
}

type namedSubscriber struct {
	driver string
	sub    message.Subscriber
}

// fanInSubscriber merges one topic from several brokers into one channel.
type fanInSubscriber struct {
	subscribers []namedSubscriber
	bufferSize  int64
}

func (f *fanInSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	sources := make([]<-chan *message.Message, len(f.subscribers))
	for i, entry := range f.subscribers {
		ch, err := entry.sub.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("%s subscribe %s: %w", entry.driver, topic, err)
		}
		sources[i] = ch
	}

	buffer := f.bufferSize
	if buffer <= 0 {
		buffer = 64
	}
	out := make(chan *message.Message, buffer)

	var wg sync.WaitGroup
	for i, ch := range sources {
		wg.Add(1)
		go func(driver string, ch <-chan *message.Message) {
			defer wg.Done()
			for msg := range ch {
				if msg.Metadata == nil {
					msg.Metadata = message.Metadata{}
				}
				msg.Metadata.Set(MetadataDriver, driver)
				select {
				case out <- msg:
				case <-ctx.Done():
					msg.Nack()
					return
				}
			}
		}(f.subscribers[i].driver, ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (f *fanInSubscriber) Close() error {
	var errs []error
	for _, entry := range f.subscribers {
		if err := entry.sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.driver, err))
		}
	}
	return errors.Join(errs...)
}
