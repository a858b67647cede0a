package worker

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the subset of the server config file the worker reads.
type fileConfig struct {
	Publish struct {
		Topic     string           `yaml:"topic"`
		Watermill SubscriberConfig `yaml:"watermill"`
	} `yaml:"publish"`
	Rules []struct {
		Emit string `yaml:"emit"`
	} `yaml:"rules"`
}

func readFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadSubscriberConfig reads publish.watermill from the server config file.
func LoadSubscriberConfig(path string) (SubscriberConfig, error) {
	cfg, err := readFileConfig(path)
	if err != nil {
		return SubscriberConfig{}, err
	}
	applySubscriberDefaults(&cfg.Publish.Watermill)
	return cfg.Publish.Watermill, nil
}

// LoadTopicsFromConfig returns the topics records are published to: every
// rule's emit topic, or publish.topic when there are no rules.
func LoadTopicsFromConfig(path string) ([]string, error) {
	cfg, err := readFileConfig(path)
	if err != nil {
		return nil, err
	}
	topics := make([]string, 0, len(cfg.Rules))
	seen := make(map[string]struct{}, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		topic := strings.TrimSpace(rule.Emit)
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		topic := strings.TrimSpace(cfg.Publish.Topic)
		if topic == "" {
			topic = DefaultTopic
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// DefaultTopic matches the server's default publish topic.
const DefaultTopic = "hookfeed.events"

func applySubscriberDefaults(cfg *SubscriberConfig) {
	if cfg.Driver == "" && len(cfg.Drivers) == 0 {
		cfg.Driver = "gochannel"
	}
	if cfg.GoChannel.OutputChannelBuffer == 0 {
		cfg.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.NATS.ClientIDSuffix == "" {
		cfg.NATS.ClientIDSuffix = "-worker"
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 10
	}
	if cfg.Retry.DelayMS == 0 {
		cfg.Retry.DelayMS = 2000
	}
}
