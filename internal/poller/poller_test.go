// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tamzrod/modbus-poller/internal/logger"
	"github.com/tamzrod/modbus-poller/internal/model"
)

type call struct {
	fc   uint8
	addr uint16
	qty  uint16
}

type fakeClient struct {
	failFC  uint8
	panicFC uint8
	regs    []uint16
	calls   []call
	closed  int
}

func (f *fakeClient) record(fc uint8, addr, qty uint16) error {
	f.calls = append(f.calls, call{fc: fc, addr: addr, qty: qty})
	if f.panicFC == fc {
		panic("boom")
	}
	if f.failFC == fc {
		return errors.New("fail fc" + string(rune('0'+fc)))
	}
	return nil
}

func (f *fakeClient) ReadCoils(addr, qty uint16) ([]bool, error) {
	if err := f.record(1, addr, qty); err != nil {
		return nil, err
	}
	out := make([]bool, qty)
	for i := range out {
		out[i] = i%2 == 0
	}
	return out, nil
}

func (f *fakeClient) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	if err := f.record(2, addr, qty); err != nil {
		return nil, err
	}
	return make([]bool, qty), nil
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	if err := f.record(3, addr, qty); err != nil {
		return nil, err
	}
	if f.regs != nil {
		return f.regs, nil
	}
	return make([]uint16, qty), nil
}

func (f *fakeClient) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	if err := f.record(4, addr, qty); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = addr + uint16(i)
	}
	return out, nil
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func dialerFor(c *fakeClient) Dialer {
	return func(context.Context, model.DeviceConfig) (Client, error) {
		return c, nil
	}
}

func testDevice() model.DeviceConfig {
	return model.DeviceConfig{
		ID:               3,
		Host:             "127.0.0.1",
		Port:             502,
		UnitID:           1,
		Enabled:          true,
		DiscreteInputs:   model.Range{Start: 0, Count: 4},
		InputRegisters:   model.Range{Start: 10, Count: 2},
		HoldingRegisters: model.Range{Start: 100, Count: 2},
		Coils:            model.Range{Start: 0, Count: 3},
		HRDatatype:       "u16",
		HRByteOrder:      "big",
		HRWordOrder:      "big",
	}
}

func newExecutor(t *testing.T, d Dialer) *Executor {
	t.Helper()
	e, err := New(d, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	return e
}

func TestNew_RequiresDialer(t *testing.T) {
	if _, err := New(nil, logger.NewTestLogger()); err == nil {
		t.Fatalf("expected error for nil dialer")
	}
}

func TestPollOnce_Success(t *testing.T) {
	c := &fakeClient{}
	e := newExecutor(t, dialerFor(c))

	snap := e.PollOnce(context.Background(), testDevice())
	if !snap.OK {
		t.Fatalf("expected ok, got error %q", snap.Error)
	}
	if snap.Error != "" {
		t.Fatalf("expected empty error, got %q", snap.Error)
	}
	if snap.DeviceID != 3 {
		t.Fatalf("device id=%d", snap.DeviceID)
	}
	if !snap.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("created_at=%v", snap.CreatedAt)
	}

	if len(snap.DiscreteInputs) != 4 || len(snap.InputRegisters) != 2 ||
		len(snap.HoldingRegisters) != 2 || len(snap.Coils) != 3 {
		t.Fatalf("unexpected lengths: %+v", snap)
	}
	if snap.InputRegisters[0] != uint16(10) || snap.InputRegisters[1] != uint16(11) {
		t.Fatalf("input registers=%v", snap.InputRegisters)
	}
	if snap.Coils[0] != true || snap.Coils[1] != false {
		t.Fatalf("coils=%v", snap.Coils)
	}
	if snap.HoldingRegisters[0] != uint64(0) {
		t.Fatalf("holding registers=%v", snap.HoldingRegisters)
	}
	if c.closed != 1 {
		t.Fatalf("expected one close, got %d", c.closed)
	}
}

func TestPollOnce_ReadOrder(t *testing.T) {
	c := &fakeClient{}
	e := newExecutor(t, dialerFor(c))

	e.PollOnce(context.Background(), testDevice())

	want := []uint8{2, 4, 3, 1}
	if len(c.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(c.calls))
	}
	for i, fc := range want {
		if c.calls[i].fc != fc {
			t.Fatalf("call %d: expected fc%d, got fc%d", i, fc, c.calls[i].fc)
		}
	}
	if c.calls[2].addr != 100 || c.calls[2].qty != 2 {
		t.Fatalf("holding read geometry=%+v", c.calls[2])
	}
}

func TestPollOnce_SkipsZeroCount(t *testing.T) {
	c := &fakeClient{}
	e := newExecutor(t, dialerFor(c))

	dev := testDevice()
	dev.DiscreteInputs.Count = 0
	dev.Coils.Count = 0

	snap := e.PollOnce(context.Background(), dev)
	if !snap.OK {
		t.Fatalf("expected ok, got %q", snap.Error)
	}
	if len(c.calls) != 2 {
		t.Fatalf("expected 2 reads, got %d", len(c.calls))
	}
	if snap.DiscreteInputs == nil || len(snap.DiscreteInputs) != 0 {
		t.Fatalf("expected empty non-nil discrete inputs, got %#v", snap.DiscreteInputs)
	}
	if snap.Coils == nil || len(snap.Coils) != 0 {
		t.Fatalf("expected empty non-nil coils, got %#v", snap.Coils)
	}
}

func TestPollOnce_Failure(t *testing.T) {
	c := &fakeClient{failFC: 3}
	e := newExecutor(t, dialerFor(c))

	snap := e.PollOnce(context.Background(), testDevice())
	if snap.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(snap.Error, "fail fc3") {
		t.Fatalf("error=%q", snap.Error)
	}
	// all-or-nothing: reads that succeeded earlier are discarded
	if len(snap.DiscreteInputs) != 0 || len(snap.InputRegisters) != 0 ||
		len(snap.HoldingRegisters) != 0 || len(snap.Coils) != 0 {
		t.Fatalf("expected empty values, got %+v", snap)
	}
	// coils never attempted
	if len(c.calls) != 3 {
		t.Fatalf("expected 3 reads, got %d", len(c.calls))
	}
	if c.closed != 1 {
		t.Fatalf("expected close on failure, got %d", c.closed)
	}
}

func TestPollOnce_DialFailure(t *testing.T) {
	e := newExecutor(t, func(context.Context, model.DeviceConfig) (Client, error) {
		return nil, errors.New("connection refused")
	})

	snap := e.PollOnce(context.Background(), testDevice())
	if snap.OK || !strings.Contains(snap.Error, "connection refused") {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.DeviceID != 3 {
		t.Fatalf("device id=%d", snap.DeviceID)
	}
}

func TestPollOnce_PanicRecovered(t *testing.T) {
	c := &fakeClient{panicFC: 4}
	e := newExecutor(t, dialerFor(c))

	snap := e.PollOnce(context.Background(), testDevice())
	if snap.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(snap.Error, "panic") {
		t.Fatalf("error=%q", snap.Error)
	}
	if c.closed != 1 {
		t.Fatalf("expected close after panic, got %d", c.closed)
	}
}

func TestPollOnce_RangeOutOfBounds(t *testing.T) {
	c := &fakeClient{}
	e := newExecutor(t, dialerFor(c))

	dev := testDevice()
	dev.HoldingRegisters = model.Range{Start: 65530, Count: 10}

	snap := e.PollOnce(context.Background(), dev)
	if snap.OK {
		t.Fatalf("expected failure")
	}
	if len(c.calls) != 0 {
		t.Fatalf("expected no reads, got %d", len(c.calls))
	}
}

func TestPollOnce_DecodesHolding(t *testing.T) {
	c := &fakeClient{regs: []uint16{0x4049, 0x0FDB}}
	e := newExecutor(t, dialerFor(c))

	dev := testDevice()
	dev.HRDatatype = "f32"
	dev.HRDecimals = 2

	snap := e.PollOnce(context.Background(), dev)
	if !snap.OK {
		t.Fatalf("expected ok, got %q", snap.Error)
	}
	if len(snap.HoldingRegisters) != 1 || snap.HoldingRegisters[0] != 3.14 {
		t.Fatalf("holding registers=%v", snap.HoldingRegisters)
	}
}

func TestPollOnce_NonFiniteBecomesNil(t *testing.T) {
	// 0x7FC00000 is a float32 NaN
	c := &fakeClient{regs: []uint16{0x7FC0, 0x0000, 0x4049, 0x0FDB}}
	e := newExecutor(t, dialerFor(c))

	dev := testDevice()
	dev.HoldingRegisters.Count = 4
	dev.HRDatatype = "f32"

	snap := e.PollOnce(context.Background(), dev)
	if !snap.OK {
		t.Fatalf("expected ok, got %q", snap.Error)
	}
	if len(snap.HoldingRegisters) != 2 {
		t.Fatalf("holding registers=%v", snap.HoldingRegisters)
	}
	if snap.HoldingRegisters[0] != nil {
		t.Fatalf("expected nil for NaN, got %v", snap.HoldingRegisters[0])
	}
}

func TestModbusDialer_RejectsUnitID(t *testing.T) {
	d := ModbusDialer(time.Second)

	dev := testDevice()
	dev.UnitID = 300

	if _, err := d(context.Background(), dev); !errors.Is(err, errUnitID) {
		t.Fatalf("expected errUnitID, got %v", err)
	}
}
