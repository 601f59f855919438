// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/modbus-poller/internal/decode"
	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/store"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// PROCESS
	// ------------------------------------------------------------

	if cfg.Poller.MaxDevices != nil && *cfg.Poller.MaxDevices < 0 {
		return fmt.Errorf("poller.max_devices must be >= 0")
	}

	switch cfg.Store.Driver {
	case "", store.DriverMemory:
	case store.DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", store.DriverPostgres)
		}
	default:
		return fmt.Errorf("store.driver %q: %w", cfg.Store.Driver, store.ErrUnknownDriver)
	}

	if cfg.Store.Retention < 0 {
		return fmt.Errorf("store.retention must be >= 0")
	}

	for i, b := range cfg.Kafka.Brokers {
		if b == "" {
			return fmt.Errorf("kafka.brokers[%d] is empty", i)
		}
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	devices := make(map[int64]struct{}, len(cfg.Devices))

	for _, d := range cfg.Devices {
		if d.ID <= 0 {
			return fmt.Errorf("device %q: id must be > 0", d.Name)
		}
		if _, dup := devices[d.ID]; dup {
			return fmt.Errorf("device %d: duplicate id", d.ID)
		}
		devices[d.ID] = struct{}{}

		if d.Host == "" {
			return fmt.Errorf("device %d: host is required", d.ID)
		}
		if d.Port < 0 || d.Port > 65535 {
			return fmt.Errorf("device %d: port %d out of range", d.ID, d.Port)
		}
		if d.UnitID != nil && (*d.UnitID < 0 || *d.UnitID > 255) {
			return fmt.Errorf("device %d: unit_id %d out of range", d.ID, *d.UnitID)
		}

		ranges := []struct {
			name string
			r    model.Range
		}{
			{"discrete_inputs", d.DiscreteInputs},
			{"input_registers", d.InputRegisters},
			{"holding_registers", d.HoldingRegisters},
			{"coils", d.Coils},
		}
		for _, rg := range ranges {
			if err := validateRange(rg.r); err != nil {
				return fmt.Errorf("device %d: %s: %w", d.ID, rg.name, err)
			}
		}

		if d.HRDatatype != "" && !decode.Known(d.HRDatatype) {
			return fmt.Errorf("device %d: unknown hr_datatype %q", d.ID, d.HRDatatype)
		}
		if !validOrder(d.HRByteOrder) {
			return fmt.Errorf("device %d: invalid hr_byte_order %q", d.ID, d.HRByteOrder)
		}
		if !validOrder(d.HRWordOrder) {
			return fmt.Errorf("device %d: invalid hr_word_order %q", d.ID, d.HRWordOrder)
		}
		if d.PollIntervalMs < 0 {
			return fmt.Errorf("device %d: poll_interval_ms must be >= 0", d.ID)
		}
	}

	// ------------------------------------------------------------
	// CARDS
	// ------------------------------------------------------------

	cards := make(map[int64]struct{}, len(cfg.Cards))

	for _, c := range cfg.Cards {
		if c.ID <= 0 {
			return fmt.Errorf("card %q: id must be > 0", c.Name)
		}
		if _, dup := cards[c.ID]; dup {
			return fmt.Errorf("card %d: duplicate id", c.ID)
		}
		cards[c.ID] = struct{}{}

		if _, ok := devices[c.DeviceID]; !ok {
			return fmt.Errorf("card %d: unknown device %d", c.ID, c.DeviceID)
		}
		if !model.SourceClass(c.Source).Valid() {
			return fmt.Errorf("card %d: invalid source %q", c.ID, c.Source)
		}
		// address is not checked against the device range; it reads as null instead
		if c.Address < 0 || c.Address > 65535 {
			return fmt.Errorf("card %d: address %d out of range", c.ID, c.Address)
		}
	}

	// ------------------------------------------------------------
	// ACTIONS
	// ------------------------------------------------------------

	actions := make(map[int64]struct{}, len(cfg.Actions))

	for _, a := range cfg.Actions {
		if a.ID <= 0 {
			return fmt.Errorf("action %q: id must be > 0", a.Name)
		}
		if _, dup := actions[a.ID]; dup {
			return fmt.Errorf("action %d: duplicate id", a.ID)
		}
		actions[a.ID] = struct{}{}

		if _, ok := devices[a.DeviceID]; !ok {
			return fmt.Errorf("action %d: unknown device %d", a.ID, a.DeviceID)
		}
		if a.Start < 0 || a.Start > 65535 {
			return fmt.Errorf("action %d: start %d out of range", a.ID, a.Start)
		}
		if err := validatePreset(a.OpenValues); err != nil {
			return fmt.Errorf("action %d: open_values: %w", a.ID, err)
		}
		if err := validatePreset(a.CloseValues); err != nil {
			return fmt.Errorf("action %d: close_values: %w", a.ID, err)
		}
	}

	return nil
}

func validateRange(r model.Range) error {
	if r.Start < 0 || r.Start > 65535 {
		return fmt.Errorf("start %d out of range", r.Start)
	}
	if r.Count < 0 {
		return fmt.Errorf("count must be >= 0")
	}
	if r.Start+r.Count > 65536 {
		return fmt.Errorf("start %d + count %d exceeds address space", r.Start, r.Count)
	}
	return nil
}

func validOrder(o string) bool {
	return o == "" || o == decode.OrderBig || o == decode.OrderLittle
}

// validatePreset accepts an absent preset; execution reports it instead.
func validatePreset(values []any) error {
	for i, v := range values {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("element %d is %T, want bool", i, v)
		}
	}
	return nil
}
