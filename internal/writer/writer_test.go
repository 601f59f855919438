// internal/writer/writer_test.go
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tamzrod/modbus-poller/internal/logger"
	"github.com/tamzrod/modbus-poller/internal/model"
)

// ---- fake client ----

type writeCall struct {
	addr uint16
	bits []bool
}

type fakeClient struct {
	writes []writeCall
	err    error
	closed int
}

func (f *fakeClient) WriteCoils(addr uint16, bits []bool) error {
	f.writes = append(f.writes, writeCall{addr: addr, bits: bits})
	return f.err
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

type countingDialer struct {
	client *fakeClient
	err    error
	calls  int
}

func (d *countingDialer) dial(context.Context, model.DeviceConfig) (Client, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

func newWriter(t *testing.T, d *countingDialer) *Writer {
	t.Helper()
	w, err := New(d.dial, nil, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return w
}

var dev = model.DeviceConfig{ID: 1, Host: "10.0.0.2", Port: 502, UnitID: 1}

// ---- tests ----

func TestWrite_Success(t *testing.T) {
	d := &countingDialer{client: &fakeClient{}}
	w := newWriter(t, d)

	res, err := w.Write(context.Background(), dev, 16, []bool{true, false, true})
	if err != nil {
		t.Fatalf("Write err=%v", err)
	}
	if !res.OK || res.Error != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(d.client.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(d.client.writes))
	}
	got := d.client.writes[0]
	if got.addr != 16 || len(got.bits) != 3 || !got.bits[0] || got.bits[1] {
		t.Fatalf("unexpected write %+v", got)
	}
	if d.client.closed != 1 {
		t.Fatalf("expected close, got %d", d.client.closed)
	}
}

func TestWrite_DeviceFailureIsResult(t *testing.T) {
	d := &countingDialer{client: &fakeClient{err: errors.New("illegal data address")}}
	w := newWriter(t, d)

	res, err := w.Write(context.Background(), dev, 0, []bool{true})
	if err != nil {
		t.Fatalf("Write err=%v", err)
	}
	if res.OK || !strings.Contains(res.Error, "illegal data address") {
		t.Fatalf("unexpected result %+v", res)
	}
	if d.client.closed != 1 {
		t.Fatalf("expected close on failure, got %d", d.client.closed)
	}
}

func TestWrite_DialFailureIsResult(t *testing.T) {
	d := &countingDialer{err: errors.New("connection refused")}
	w := newWriter(t, d)

	res, err := w.Write(context.Background(), dev, 0, []bool{true})
	if err != nil {
		t.Fatalf("Write err=%v", err)
	}
	if res.OK || !strings.Contains(res.Error, "refused") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestWrite_ValidationNeverDials(t *testing.T) {
	d := &countingDialer{client: &fakeClient{}}
	w := newWriter(t, d)

	cases := []struct {
		name   string
		start  int
		values []bool
		want   error
	}{
		{"empty", 0, nil, ErrNoValues},
		{"negative start", -1, []bool{true}, ErrAddressRange},
		{"past end", 65535, []bool{true, true}, ErrAddressRange},
		{"too many", 0, make([]bool, 2000), ErrAddressRange},
	}

	for _, c := range cases {
		if _, err := w.Write(context.Background(), dev, c.start, c.values); !errors.Is(err, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, err)
		}
	}
	if d.calls != 0 {
		t.Fatalf("expected no dial, got %d", d.calls)
	}
}

func TestParseBools(t *testing.T) {
	bits, err := ParseBools(json.RawMessage(`[true, false, true]`))
	if err != nil {
		t.Fatalf("ParseBools err=%v", err)
	}
	if len(bits) != 3 || !bits[0] || bits[1] || !bits[2] {
		t.Fatalf("unexpected bits %v", bits)
	}

	rejects := map[string]error{
		``:             ErrNoValues,
		`null`:         ErrNoValues,
		`[]`:           ErrNoValues,
		`[1, 0]`:       ErrNotBoolean,
		`[true, "on"]`: ErrNotBoolean,
		`"true"`:       ErrNotBoolean,
		`{"a":true}`:   ErrNotBoolean,
		`[true, null]`: ErrNotBoolean,
	}
	for in, want := range rejects {
		if _, err := ParseBools(json.RawMessage(in)); !errors.Is(err, want) {
			t.Fatalf("%q: expected %v, got %v", in, want, err)
		}
	}
}

func TestExecuteAction(t *testing.T) {
	d := &countingDialer{client: &fakeClient{}}
	w := newWriter(t, d)

	action := model.ActionDefinition{
		ID:          7,
		DeviceID:    1,
		Start:       40,
		OpenValues:  json.RawMessage(`[true, true]`),
		CloseValues: json.RawMessage(`[false, false]`),
	}

	res, which, err := w.ExecuteAction(context.Background(), dev, action, "")
	if err != nil || !res.OK || which != WhichOpen {
		t.Fatalf("open: res=%+v which=%q err=%v", res, which, err)
	}

	res, which, err = w.ExecuteAction(context.Background(), dev, action, WhichClose)
	if err != nil || !res.OK || which != WhichClose {
		t.Fatalf("close: res=%+v which=%q err=%v", res, which, err)
	}

	if len(d.client.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(d.client.writes))
	}
	if d.client.writes[0].addr != 40 || !d.client.writes[0].bits[0] {
		t.Fatalf("open write %+v", d.client.writes[0])
	}
	if d.client.writes[1].bits[0] {
		t.Fatalf("close write %+v", d.client.writes[1])
	}
}

func TestExecuteAction_InvalidWhich(t *testing.T) {
	d := &countingDialer{client: &fakeClient{}}
	w := newWriter(t, d)

	_, _, err := w.ExecuteAction(context.Background(), dev, model.ActionDefinition{OpenValues: json.RawMessage(`[true]`)}, "toggle")
	if !errors.Is(err, ErrInvalidWhich) {
		t.Fatalf("expected ErrInvalidWhich, got %v", err)
	}
	if d.calls != 0 {
		t.Fatalf("expected no dial")
	}
}

func TestExecuteAction_MisconfiguredPreset(t *testing.T) {
	d := &countingDialer{client: &fakeClient{}}
	w := newWriter(t, d)

	action := model.ActionDefinition{ID: 3, OpenValues: json.RawMessage(`[1, 0]`)}

	_, _, err := w.ExecuteAction(context.Background(), dev, action, WhichOpen)
	if !errors.Is(err, ErrMisconfiguredPreset) {
		t.Fatalf("expected ErrMisconfiguredPreset, got %v", err)
	}

	_, _, err = w.ExecuteAction(context.Background(), dev, action, WhichClose)
	if !errors.Is(err, ErrMisconfiguredPreset) {
		t.Fatalf("missing close preset: expected ErrMisconfiguredPreset, got %v", err)
	}
	if d.calls != 0 {
		t.Fatalf("expected no dial")
	}
}
