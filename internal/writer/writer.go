// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-poller/internal/metrics"
	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/modbus"
)

var errNoDialer = errors.New("writer: dialer required")

// Writer performs validated, one-shot coil writes.
// Connections are never shared with the poll path.
type Writer struct {
	dial    Dialer
	metrics *metrics.Recorder
	log     zerolog.Logger
}

func New(dial Dialer, rec *metrics.Recorder, log zerolog.Logger) (*Writer, error) {
	if dial == nil {
		return nil, errNoDialer
	}
	return &Writer{dial: dial, metrics: rec, log: log}, nil
}

// ModbusDialer returns a Dialer backed by internal/modbus.
func ModbusDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, dev model.DeviceConfig) (Client, error) {
		if dev.UnitID < 0 || dev.UnitID > 255 {
			return nil, fmt.Errorf("writer: unit id %d out of range", dev.UnitID)
		}
		return modbus.Dial(ctx, modbus.Config{
			Host:    dev.Host,
			Port:    dev.Port,
			UnitID:  uint8(dev.UnitID),
			Timeout: timeout,
		})
	}
}

// Write validates and issues one contiguous coil write at start.
// A non-nil error means validation failed and the device was not contacted.
// Device and transport failures are reported in the Result.
func (w *Writer) Write(ctx context.Context, dev model.DeviceConfig, start int, values []bool) (Result, error) {
	if len(values) == 0 {
		return Result{}, ErrNoValues
	}
	if len(values) > modbus.MaxWriteCoils {
		return Result{}, fmt.Errorf("%w: %d values exceed %d", ErrAddressRange, len(values), modbus.MaxWriteCoils)
	}
	if start < 0 || start+len(values) > 65536 {
		return Result{}, fmt.Errorf("%w: start=%d count=%d", ErrAddressRange, start, len(values))
	}

	res := w.write(ctx, dev, uint16(start), values)
	w.metrics.ObserveCoilWrite(res.OK)

	var ev *zerolog.Event
	if res.OK {
		ev = w.log.Info()
	} else {
		ev = w.log.Warn().Str("error", res.Error)
	}
	ev.Int64("device_id", dev.ID).Int("start", start).Int("count", len(values)).Bool("ok", res.OK).Msg("coil write")

	return res, nil
}

// ExecuteAction writes the open or close preset of an action.
func (w *Writer) ExecuteAction(ctx context.Context, dev model.DeviceConfig, action model.ActionDefinition, which string) (Result, string, error) {
	bits, which, err := Preset(action, which)
	if err != nil {
		return Result{}, which, err
	}

	res, err := w.Write(ctx, dev, action.Start, bits)
	return res, which, err
}

func (w *Writer) write(ctx context.Context, dev model.DeviceConfig, start uint16, values []bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{OK: false, Error: fmt.Sprintf("writer: panic: %v", r)}
		}
	}()

	cli, err := w.dial(ctx, dev)
	if err != nil {
		return Result{OK: false, Error: err.Error()}
	}
	defer func() {
		if cerr := cli.Close(); cerr != nil {
			w.log.Debug().Int64("device_id", dev.ID).Err(cerr).Msg("close failed")
		}
	}()

	if err := cli.WriteCoils(start, values); err != nil {
		return Result{OK: false, Error: err.Error()}
	}

	return Result{OK: true}
}
