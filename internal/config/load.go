// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvStoreDSN     = "POLLER_STORE_DSN"
	EnvStoreDriver  = "POLLER_STORE_DRIVER"
	EnvHTTPListen   = "POLLER_HTTP_LISTEN"
	EnvKafkaBrokers = "POLLER_KAFKA_BROKERS"
	EnvKafkaTopic   = "POLLER_KAFKA_TOPIC"
	EnvLogLevel     = "LOG_LEVEL"
)

// Load reads the YAML file, then applies .env and environment overrides.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	// a missing .env file is not an error
	_ = godotenv.Load()

	ApplyEnv(cfg, os.LookupEnv)

	return cfg, nil
}

// Parse decodes YAML strictly: unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides file values with set environment variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvStoreDSN); ok && v != "" {
		cfg.Store.DSN = v
	}
	if v, ok := lookup(EnvStoreDriver); ok && v != "" {
		cfg.Store.Driver = v
	}
	if v, ok := lookup(EnvHTTPListen); ok && v != "" {
		cfg.HTTP.Listen = v
	}
	if v, ok := lookup(EnvKafkaBrokers); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup(EnvKafkaTopic); ok && v != "" {
		cfg.Kafka.Topic = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
