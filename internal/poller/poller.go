// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-poller/internal/decode"
	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/modbus"
)

var (
	errNoDialer      = errors.New("poller: dialer required")
	errRange         = errors.New("poller: address range out of bounds")
	errUnitID        = errors.New("poller: unit id out of range")
	errUnknownSource = errors.New("poller: unsupported read class")
)

// Executor performs one poll cycle per call.
// It holds no per-device state: everything comes from the DeviceConfig passed in.
type Executor struct {
	dial Dialer
	now  func() time.Time
	log  zerolog.Logger
}

// New creates an executor.
func New(dial Dialer, log zerolog.Logger) (*Executor, error) {
	if dial == nil {
		return nil, errNoDialer
	}
	return &Executor{dial: dial, now: time.Now, log: log}, nil
}

// ModbusDialer returns a Dialer backed by internal/modbus.
// The connection lives for exactly one cycle.
func ModbusDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, dev model.DeviceConfig) (Client, error) {
		if dev.UnitID < 0 || dev.UnitID > 255 {
			return nil, fmt.Errorf("%w: %d", errUnitID, dev.UnitID)
		}
		return modbus.Dial(ctx, modbus.Config{
			Host:    dev.Host,
			Port:    dev.Port,
			UnitID:  uint8(dev.UnitID),
			Timeout: timeout,
		})
	}
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle and yields ok=false.
// It never returns an error and never panics.
func (e *Executor) PollOnce(ctx context.Context, dev model.DeviceConfig) (snap model.PollSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			snap = e.failed(dev.ID, fmt.Errorf("poller: panic: %v", r))
		}
	}()

	res, err := e.read(ctx, dev)
	if err != nil {
		e.log.Warn().Int64("device_id", dev.ID).Err(err).Msg("poll failed")
		return e.failed(dev.ID, err)
	}

	res.DeviceID = dev.ID
	res.CreatedAt = e.now()
	res.OK = true

	e.log.Debug().Int64("device_id", dev.ID).Msg("poll ok")

	return res
}

func (e *Executor) read(ctx context.Context, dev model.DeviceConfig) (model.PollSnapshot, error) {
	res := emptySnapshot()

	for _, b := range blocks(dev) {
		if b.Range.Count < 0 || b.Range.Start < 0 || b.Range.Start+b.Range.Count > 65536 {
			return res, fmt.Errorf("%w: %s start=%d count=%d", errRange, b.Source, b.Range.Start, b.Range.Count)
		}
	}

	client, err := e.dial(ctx, dev)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			e.log.Debug().Int64("device_id", dev.ID).Err(cerr).Msg("close failed")
		}
	}()

	for _, b := range blocks(dev) {
		if b.Range.Count == 0 {
			continue
		}

		addr, qty := uint16(b.Range.Start), uint16(b.Range.Count)

		switch b.Source {
		case model.SourceDiscrete:
			bits, err := client.ReadDiscreteInputs(addr, qty)
			if err != nil {
				return res, err
			}
			res.DiscreteInputs = boolsToValues(bits)

		case model.SourceInput:
			regs, err := client.ReadInputRegisters(addr, qty)
			if err != nil {
				return res, err
			}
			res.InputRegisters = regsToValues(regs)

		case model.SourceHolding:
			regs, err := client.ReadHoldingRegisters(addr, qty)
			if err != nil {
				return res, err
			}
			if len(regs) > 0 {
				res.HoldingRegisters = finite(decode.Holding(
					regs, dev.HRDatatype, dev.HRByteOrder, dev.HRWordOrder, dev.HRDecimals,
				))
			}

		case model.SourceCoil:
			bits, err := client.ReadCoils(addr, qty)
			if err != nil {
				return res, err
			}
			res.Coils = boolsToValues(bits)

		default:
			return res, errUnknownSource
		}
	}

	return res, nil
}

func (e *Executor) failed(deviceID int64, err error) model.PollSnapshot {
	s := emptySnapshot()
	s.DeviceID = deviceID
	s.CreatedAt = e.now()
	s.OK = false
	s.Error = err.Error()
	return s
}

func emptySnapshot() model.PollSnapshot {
	return model.PollSnapshot{
		DiscreteInputs:   []any{},
		InputRegisters:   []any{},
		HoldingRegisters: []any{},
		Coils:            []any{},
	}
}

func boolsToValues(bits []bool) []any {
	out := make([]any, len(bits))
	for i, b := range bits {
		out[i] = b
	}
	return out
}

func regsToValues(regs []uint16) []any {
	out := make([]any, len(regs))
	for i, r := range regs {
		out[i] = r
	}
	return out
}

// finite replaces NaN and Inf with nil so the snapshot stays JSON-encodable.
func finite(vals []any) []any {
	for i, v := range vals {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			vals[i] = nil
		}
	}
	return vals
}
