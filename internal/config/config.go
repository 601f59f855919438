// internal/config/config.go
package config

import (
	"github.com/tamzrod/modbus-poller/internal/logger"
	"github.com/tamzrod/modbus-poller/internal/model"
)

type Config struct {
	Poller  PollerConfig   `yaml:"poller"`
	HTTP    HTTPConfig     `yaml:"http"`
	Store   StoreConfig    `yaml:"store"`
	Kafka   KafkaConfig    `yaml:"kafka"`
	Logging logger.Config  `yaml:"logging"`
	Devices []DeviceConfig `yaml:"devices"`
	Cards   []CardConfig   `yaml:"cards"`
	Actions []ActionConfig `yaml:"actions"`
}

// ---- POLLER ----

type PollerConfig struct {
	RefreshMs         int  `yaml:"refresh_ms"`
	DefaultIntervalMs int  `yaml:"default_interval_ms"`
	MaxDevices        *int `yaml:"max_devices"` // 0 = unlimited
	TimeoutMs         int  `yaml:"timeout_ms"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen  string `yaml:"listen"`
	GinMode string `yaml:"gin_mode"`
}

// ---- STORE ----

type StoreConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	MaxConns  int32  `yaml:"max_conns"`
	Migrate   bool   `yaml:"migrate"`
	Retention int    `yaml:"retention"`
}

// ---- KAFKA ----

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	WriteTimeoutMs int      `yaml:"write_timeout_ms"`
}

// Enabled reports whether snapshots are published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ---- DEVICE ----

// DeviceConfig is one seeded device. Pointer fields distinguish unset from zero.
type DeviceConfig struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	UnitID  *int   `yaml:"unit_id"`
	Enabled *bool  `yaml:"enabled"`

	DiscreteInputs   model.Range `yaml:"discrete_inputs"`
	InputRegisters   model.Range `yaml:"input_registers"`
	HoldingRegisters model.Range `yaml:"holding_registers"`
	Coils            model.Range `yaml:"coils"`

	HRDatatype  string `yaml:"hr_datatype"`
	HRByteOrder string `yaml:"hr_byte_order"`
	HRWordOrder string `yaml:"hr_word_order"`
	HRDecimals  *int   `yaml:"hr_decimals"`

	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// ---- CARDS / ACTIONS ----

type CardConfig struct {
	ID        int64  `yaml:"id"`
	DeviceID  int64  `yaml:"device_id"`
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	Address   int    `yaml:"address"`
	UnitLabel string `yaml:"unit_label"`
	Decimals  *int   `yaml:"decimals"`
	Order     int    `yaml:"order"`
}

// ActionConfig presets are decoded loosely so Validate can name the bad element.
type ActionConfig struct {
	ID          int64  `yaml:"id"`
	DeviceID    int64  `yaml:"device_id"`
	Name        string `yaml:"name"`
	Start       int    `yaml:"start"`
	OpenValues  []any  `yaml:"open_values"`
	CloseValues []any  `yaml:"close_values"`
	Order       int    `yaml:"order"`
}
