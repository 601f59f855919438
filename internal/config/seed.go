// internal/config/seed.go
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/store"
)

// Seed converts the declared devices, cards and actions into store rows.
// It MUST be called only after Normalize().
func (c *Config) Seed() (store.Seed, error) {
	var seed store.Seed

	for _, d := range c.Devices {
		seed.Devices = append(seed.Devices, model.DeviceConfig{
			ID:               d.ID,
			Name:             d.Name,
			Host:             d.Host,
			Port:             d.Port,
			UnitID:           deref(d.UnitID, DefaultUnitID),
			Enabled:          d.Enabled == nil || *d.Enabled,
			DiscreteInputs:   d.DiscreteInputs,
			InputRegisters:   d.InputRegisters,
			HoldingRegisters: d.HoldingRegisters,
			Coils:            d.Coils,
			HRDatatype:       d.HRDatatype,
			HRByteOrder:      d.HRByteOrder,
			HRWordOrder:      d.HRWordOrder,
			HRDecimals:       deref(d.HRDecimals, DefaultDecimals),
			PollIntervalMs:   d.PollIntervalMs,
		})
	}

	for _, cd := range c.Cards {
		seed.Cards = append(seed.Cards, model.CardDefinition{
			ID:        cd.ID,
			DeviceID:  cd.DeviceID,
			Name:      cd.Name,
			Source:    model.SourceClass(cd.Source),
			Address:   cd.Address,
			UnitLabel: cd.UnitLabel,
			Decimals:  cd.Decimals,
			Order:     cd.Order,
		})
	}

	for _, a := range c.Actions {
		open, err := presetJSON(a.OpenValues)
		if err != nil {
			return store.Seed{}, fmt.Errorf("action %d: open_values: %w", a.ID, err)
		}
		shut, err := presetJSON(a.CloseValues)
		if err != nil {
			return store.Seed{}, fmt.Errorf("action %d: close_values: %w", a.ID, err)
		}

		seed.Actions = append(seed.Actions, model.ActionDefinition{
			ID:          a.ID,
			DeviceID:    a.DeviceID,
			Name:        a.Name,
			Start:       a.Start,
			OpenValues:  open,
			CloseValues: shut,
			Order:       a.Order,
		})
	}

	return seed, nil
}

// ---- durations ----

func (p PollerConfig) Refresh() time.Duration {
	return time.Duration(p.RefreshMs) * time.Millisecond
}

func (p PollerConfig) DefaultInterval() time.Duration {
	return time.Duration(p.DefaultIntervalMs) * time.Millisecond
}

func (p PollerConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// Limit returns the device cap; 0 means unlimited.
func (p PollerConfig) Limit() int {
	return deref(p.MaxDevices, DefaultMaxDevices)
}

func (k KafkaConfig) WriteTimeout() time.Duration {
	return time.Duration(k.WriteTimeoutMs) * time.Millisecond
}

func presetJSON(values []any) (json.RawMessage, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func deref(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
