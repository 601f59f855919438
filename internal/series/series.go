// internal/series/series.go
package series

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// Window bounds.
const (
	DefaultLimit = 300
	MinLimit     = 10
	MaxLimit     = 2000
)

// SnapshotLister returns snapshots newest first.
// A nil since means no lower bound; otherwise created_at >= since.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, deviceID int64, limit int, since *time.Time) ([]model.PollSnapshot, error)
}

// Point is one entry of a series. V is nil when the slot holds no number.
type Point struct {
	T time.Time `json:"t"`
	V *float64  `json:"v"`
}

// ClampLimit bounds a requested window size.
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Extract projects a card's point out of the device history, oldest first.
// There is one point per snapshot in the window, gaps included.
func Extract(
	ctx context.Context,
	src SnapshotLister,
	dev model.DeviceConfig,
	card model.CardDefinition,
	limit int,
	since *time.Time,
) ([]Point, error) {
	snaps, err := src.ListSnapshots(ctx, dev.ID, ClampLimit(limit), since)
	if err != nil {
		return nil, err
	}

	rng, known := dev.RangeFor(card.Source)
	index := card.Address - rng.Start

	out := make([]Point, len(snaps))
	for i, snap := range snaps {
		p := Point{T: snap.CreatedAt}
		if known {
			p.V = valueAt(snap.Values(card.Source), index)
		}
		// reverse to chronological order
		out[len(snaps)-1-i] = p
	}

	return out, nil
}

func valueAt(vals []any, index int) *float64 {
	if index < 0 || index >= len(vals) {
		return nil
	}
	f, ok := Number(vals[index])
	if !ok {
		return nil
	}
	return &f
}

// Number coerces one stored slot value.
// Booleans become 1/0; non-numeric and non-finite values report false.
func Number(v any) (float64, bool) {
	var f float64

	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
