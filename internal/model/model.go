// internal/model/model.go
package model

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrCardNotFound   = errors.New("card not found")
	ErrActionNotFound = errors.New("action not found")
)

// SourceClass is one of the four Modbus read classes.
type SourceClass string

const (
	SourceHolding  SourceClass = "hr"
	SourceInput    SourceClass = "ir"
	SourceDiscrete SourceClass = "di"
	SourceCoil     SourceClass = "coil"
)

// Valid reports whether s names a known read class.
func (s SourceClass) Valid() bool {
	switch s {
	case SourceHolding, SourceInput, SourceDiscrete, SourceCoil:
		return true
	}
	return false
}

// ---- DEVICE ----

// Range is one read geometry. Count 0 disables the read class.
type Range struct {
	Start int `yaml:"start" json:"start"`
	Count int `yaml:"count" json:"count"`
}

// DeviceConfig is re-read from the store on every cycle; never cache it.
type DeviceConfig struct {
	ID      int64  `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	UnitID  int    `yaml:"unit_id" json:"unit_id"`
	Enabled bool   `yaml:"enabled" json:"enabled"`

	DiscreteInputs   Range `yaml:"discrete_inputs" json:"discrete_inputs"`
	InputRegisters   Range `yaml:"input_registers" json:"input_registers"`
	HoldingRegisters Range `yaml:"holding_registers" json:"holding_registers"`
	Coils            Range `yaml:"coils" json:"coils"`

	// Holding register decode parameters.
	HRDatatype  string `yaml:"hr_datatype" json:"hr_datatype"`
	HRByteOrder string `yaml:"hr_byte_order" json:"hr_byte_order"`
	HRWordOrder string `yaml:"hr_word_order" json:"hr_word_order"`
	HRDecimals  int    `yaml:"hr_decimals" json:"hr_decimals"`

	PollIntervalMs int `yaml:"poll_interval_ms" json:"poll_interval_ms"`
}

// RangeFor returns the configured range of a read class.
func (d DeviceConfig) RangeFor(src SourceClass) (Range, bool) {
	switch src {
	case SourceHolding:
		return d.HoldingRegisters, true
	case SourceInput:
		return d.InputRegisters, true
	case SourceDiscrete:
		return d.DiscreteInputs, true
	case SourceCoil:
		return d.Coils, true
	}
	return Range{}, false
}

// ---- SNAPSHOT ----

// PollSnapshot is the immutable result of one poll cycle.
// Value slots hold bool (di, coil), uint16 (ir) or decoded numbers (hr).
// After a store round trip they hold whatever JSON decoding produced.
type PollSnapshot struct {
	DeviceID         int64     `json:"device"`
	CreatedAt        time.Time `json:"created_at"`
	DiscreteInputs   []any     `json:"discrete_inputs"`
	InputRegisters   []any     `json:"input_registers"`
	HoldingRegisters []any     `json:"holding_registers"`
	Coils            []any     `json:"coils"`
	OK               bool      `json:"ok"`
	Error            string    `json:"error"`
}

// Values returns the value slot for a read class.
func (s PollSnapshot) Values(src SourceClass) []any {
	switch src {
	case SourceHolding:
		return s.HoldingRegisters
	case SourceInput:
		return s.InputRegisters
	case SourceDiscrete:
		return s.DiscreteInputs
	case SourceCoil:
		return s.Coils
	}
	return nil
}

// ---- CARDS / ACTIONS ----

type CardDefinition struct {
	ID        int64       `yaml:"id" json:"id"`
	DeviceID  int64       `yaml:"device_id" json:"device_id"`
	Name      string      `yaml:"name" json:"name"`
	Source    SourceClass `yaml:"source" json:"source"`
	Address   int         `yaml:"address" json:"address"` // absolute, not range-relative
	UnitLabel string      `yaml:"unit_label" json:"unit_label"`
	Decimals  *int        `yaml:"decimals" json:"decimals,omitempty"`
	Order     int         `yaml:"order" json:"order"`
}

// ActionDefinition presets are kept raw: a misconfigured preset must be
// reported at execution time, not rejected on load.
type ActionDefinition struct {
	ID          int64           `json:"id"`
	DeviceID    int64           `json:"device_id"`
	Name        string          `json:"name"`
	Start       int             `json:"start"`
	OpenValues  json.RawMessage `json:"open_values"`
	CloseValues json.RawMessage `json:"close_values"`
	Order       int             `json:"order"`
}
