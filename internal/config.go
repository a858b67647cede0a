package internal

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the main application configuration.
type AppConfig struct {
	// Server holds listener and HTTP handling configuration.
	Server struct {
		Port           int    `yaml:"port"`
		WebhookPath    string `yaml:"webhook_path"`
		Debug          bool   `yaml:"debug"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	// Storage selects the event store backend.
	Storage StorageConfig `yaml:"storage"`
	// Query holds settings for the recent events endpoint.
	Query struct {
		Limit int `yaml:"limit"`
	} `yaml:"query"`
	// Publish controls fan-out of stored records to message brokers.
	Publish PublishConfig `yaml:"publish"`
}

// Config represents the application configuration including publish rules.
type Config struct {
	AppConfig `yaml:",inline"`
	Rules     []Rule `yaml:"rules"`
}

// StorageConfig holds configuration for the event store.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres, mysql, redis or mongodb.
	Driver      string      `yaml:"driver"`
	DSN         string      `yaml:"dsn"`
	Database    string      `yaml:"database"`
	Table       string      `yaml:"table"`
	AutoMigrate *bool       `yaml:"auto_migrate"`
	Redis       RedisConfig `yaml:"redis"`
}

// Migrate reports whether SQL tables should be created on startup. It defaults to true.
func (c StorageConfig) Migrate() bool {
	return c.AutoMigrate == nil || *c.AutoMigrate
}

// RedisConfig holds connection settings for the redis driver.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PublishConfig holds configuration for publishing stored records.
type PublishConfig struct {
	Enabled bool `yaml:"enabled"`
	// Topic receives every record when no rules are configured.
	Topic string `yaml:"topic"`
	// DispatchTimeoutMS bounds publishing inside a webhook request.
	DispatchTimeoutMS int             `yaml:"dispatch_timeout_ms"`
	Watermill         WatermillConfig `yaml:"watermill"`
}

// WatermillConfig holds the configuration for Watermill, which handles messaging.
type WatermillConfig struct {
	Driver       string             `yaml:"driver"`
	Drivers      []string           `yaml:"drivers"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka pub/sub.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming pub/sub.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP pub/sub.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL pub/sub.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	InitializeSchema     bool   `yaml:"initialize_schema"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the RiverQueue publisher.
type RiverQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// RulesConfig represents the rule-specific parts of the configuration.
type RulesConfig struct {
	Rules  []Rule `yaml:"rules"`
	Logger *log.Logger
}

// LoadConfig loads the full application configuration from a YAML file.
// It expands environment variables, applies environment fallbacks and
// defaults, and normalizes rules.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg.AppConfig)
	applyDefaults(&cfg.AppConfig)
	normalized, err := normalizeRules(cfg.Rules)
	if err != nil {
		return cfg, err
	}
	cfg.Rules = normalized
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	applyEnv(&cfg.AppConfig)
	applyDefaults(&cfg.AppConfig)
	return cfg
}

// applyEnv fills unset fields from the variables the service has always honored.
func applyEnv(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			cfg.Server.Port = port
		}
	}
	if !cfg.Server.Debug {
		cfg.Server.Debug = envBool("HOOKFEED_DEBUG") || envBool("FLASK_DEBUG")
	}
	if cfg.Storage.Driver == "" && cfg.Storage.DSN == "" {
		if uri := os.Getenv("MONGODB_URI"); uri != "" {
			cfg.Storage.Driver = "mongodb"
			cfg.Storage.DSN = uri
		}
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = os.Getenv("MONGODB_DB")
	}
}

func envBool(key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && value
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhook"
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 25 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = "github_webhooks"
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "events"
	}
	if cfg.Query.Limit <= 0 {
		cfg.Query.Limit = 100
	}
	if cfg.Publish.Topic == "" {
		cfg.Publish.Topic = "hookfeed.events"
	}
	if cfg.Publish.DispatchTimeoutMS <= 0 {
		cfg.Publish.DispatchTimeoutMS = 2000
	}
	wm := &cfg.Publish.Watermill
	if wm.Driver == "" {
		wm.Driver = "gochannel"
	}
	if wm.GoChannel.OutputChannelBuffer == 0 {
		wm.GoChannel.OutputChannelBuffer = 64
	}
	if wm.HTTP.Mode == "" {
		wm.HTTP.Mode = "topic_url"
	}
	if wm.RiverQueue.Table == "" {
		wm.RiverQueue.Table = "river_job"
	}
	if wm.RiverQueue.Queue == "" {
		wm.RiverQueue.Queue = "default"
	}
	if wm.RiverQueue.Kind == "" {
		wm.RiverQueue.Kind = "hookfeed.record"
	}
	if wm.RiverQueue.MaxAttempts == 0 {
		wm.RiverQueue.MaxAttempts = 25
	}
	if wm.PublishRetry.Attempts == 0 {
		wm.PublishRetry.Attempts = 3
	}
	if wm.PublishRetry.DelayMS == 0 {
		wm.PublishRetry.DelayMS = 500
	}
}

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.When = strings.TrimSpace(rule.When)
		rule.Emit = strings.TrimSpace(rule.Emit)
		if rule.When == "" || rule.Emit == "" {
			return nil, fmt.Errorf("rule %d is missing when or emit", i)
		}
		if len(rule.Drivers) > 0 {
			drivers := make([]string, 0, len(rule.Drivers))
			for _, driver := range rule.Drivers {
				trimmed := strings.TrimSpace(driver)
				if trimmed != "" {
					drivers = append(drivers, trimmed)
				}
			}
			rule.Drivers = drivers
		}
		out = append(out, rule)
	}
	return out, nil
}
