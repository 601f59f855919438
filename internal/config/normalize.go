// internal/config/normalize.go
package config

import "github.com/tamzrod/modbus-poller/internal/store"

// Defaults.
const (
	DefaultRefreshMs         = 5000
	DefaultIntervalMs        = 1000
	DefaultMaxDevices        = 8
	DefaultTimeoutMs         = 3000
	DefaultListen            = ":8080"
	DefaultKafkaTopic        = "modbus_polls"
	DefaultPort              = 502
	DefaultUnitID            = 1
	DefaultDatatype          = "u16"
	DefaultOrder             = "big"
	DefaultDecimals          = 2
	DefaultKafkaWriteTimeout = 5000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// PROCESS
	// ------------------------------------------------------------

	p := &cfg.Poller
	if p.RefreshMs <= 0 {
		p.RefreshMs = DefaultRefreshMs
	}
	if p.DefaultIntervalMs <= 0 {
		p.DefaultIntervalMs = DefaultIntervalMs
	}
	if p.MaxDevices == nil {
		n := DefaultMaxDevices
		p.MaxDevices = &n
	}
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = DefaultTimeoutMs
	}

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultListen
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = store.DriverMemory
	}
	if cfg.Store.Retention == 0 {
		cfg.Store.Retention = store.DefaultRetention
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.WriteTimeoutMs <= 0 {
		cfg.Kafka.WriteTimeoutMs = DefaultKafkaWriteTimeout
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	for i := range cfg.Devices {
		d := &cfg.Devices[i]

		if d.Port == 0 {
			d.Port = DefaultPort
		}
		if d.UnitID == nil {
			u := DefaultUnitID
			d.UnitID = &u
		}
		if d.Enabled == nil {
			on := true
			d.Enabled = &on
		}
		if d.HRDatatype == "" {
			d.HRDatatype = DefaultDatatype
		}
		if d.HRByteOrder == "" {
			d.HRByteOrder = DefaultOrder
		}
		if d.HRWordOrder == "" {
			d.HRWordOrder = DefaultOrder
		}
		if d.HRDecimals == nil {
			dec := DefaultDecimals
			d.HRDecimals = &dec
		} else if *d.HRDecimals < 0 {
			zero := 0
			d.HRDecimals = &zero
		}
		if d.PollIntervalMs <= 0 {
			d.PollIntervalMs = p.DefaultIntervalMs
		}
	}
}
