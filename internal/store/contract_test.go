// internal/store/contract_test.go
package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-poller/internal/model"
)

func seedFixture() Seed {
	decimals := 1
	return Seed{
		Devices: []model.DeviceConfig{
			{
				ID: 1, Name: "boiler", Host: "10.0.0.1", Port: 502, UnitID: 1, Enabled: true,
				HoldingRegisters: model.Range{Start: 100, Count: 4},
				Coils:            model.Range{Start: 0, Count: 8},
				HRDatatype:       "f32",
				HRByteOrder:      "big",
				HRWordOrder:      "little",
				HRDecimals:       2,
				PollIntervalMs:   1000,
			},
			{ID: 2, Name: "pump", Host: "10.0.0.2", Port: 502, UnitID: 2, Enabled: false, HRDatatype: "u16", HRByteOrder: "big", HRWordOrder: "big"},
			{ID: 3, Name: "valve", Host: "10.0.0.3", Port: 1502, UnitID: 3, Enabled: true, HRDatatype: "u16", HRByteOrder: "big", HRWordOrder: "big"},
		},
		Cards: []model.CardDefinition{
			{ID: 10, DeviceID: 1, Name: "temp", Source: model.SourceHolding, Address: 100, UnitLabel: "C", Decimals: &decimals},
		},
		Actions: []model.ActionDefinition{
			{ID: 20, DeviceID: 1, Name: "gate", Start: 4, OpenValues: json.RawMessage(`[true,false]`), CloseValues: json.RawMessage(`[false,true]`)},
		},
	}
}

// runContract exercises the behaviour every Repository must share.
// repo must be empty.
func runContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	require.NoError(t, repo.ApplySeed(ctx, seedFixture()))

	t.Run("devices", func(t *testing.T) {
		devs, err := repo.ListEnabledDevices(ctx, 0)
		require.NoError(t, err)
		require.Len(t, devs, 2)
		assert.Equal(t, int64(1), devs[0].ID)
		assert.Equal(t, int64(3), devs[1].ID)
		assert.Equal(t, "little", devs[0].HRWordOrder)
		assert.Equal(t, model.Range{Start: 100, Count: 4}, devs[0].HoldingRegisters)

		devs, err = repo.ListEnabledDevices(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, devs, 1)

		d, err := repo.GetDevice(ctx, 2)
		require.NoError(t, err)
		assert.False(t, d.Enabled)

		_, err = repo.GetDevice(ctx, 99)
		assert.ErrorIs(t, err, model.ErrDeviceNotFound)
	})

	t.Run("snapshots", func(t *testing.T) {
		_, ok, err := repo.LatestSnapshot(ctx, 3)
		require.NoError(t, err)
		assert.False(t, ok)

		t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.AppendSnapshot(ctx, model.PollSnapshot{
				DeviceID:         3,
				CreatedAt:        t0.Add(time.Duration(i) * time.Second),
				DiscreteInputs:   []any{},
				InputRegisters:   []any{},
				HoldingRegisters: []any{float64(i), nil},
				Coils:            []any{true},
				OK:               i != 2,
				Error:            map[bool]string{true: "", false: "timeout"}[i != 2],
			}))
		}

		last, ok, err := repo.LatestSnapshot(ctx, 3)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, last.CreatedAt.Equal(t0.Add(4*time.Second)))
		require.Len(t, last.HoldingRegisters, 2)
		assert.Nil(t, last.HoldingRegisters[1])
		assert.Equal(t, []any{true}, last.Coils)

		snaps, err := repo.ListSnapshots(ctx, 3, 3, nil)
		require.NoError(t, err)
		require.Len(t, snaps, 3)
		assert.True(t, snaps[0].CreatedAt.After(snaps[1].CreatedAt))
		assert.False(t, snaps[2].OK)
		assert.Equal(t, "timeout", snaps[2].Error)

		since := t0.Add(3 * time.Second)
		snaps, err = repo.ListSnapshots(ctx, 3, 100, &since)
		require.NoError(t, err)
		assert.Len(t, snaps, 2)

		snaps, err = repo.ListSnapshots(ctx, 1, 100, nil)
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})

	t.Run("cards", func(t *testing.T) {
		c, err := repo.GetCard(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, model.SourceHolding, c.Source)
		assert.Equal(t, 100, c.Address)
		require.NotNil(t, c.Decimals)
		assert.Equal(t, 1, *c.Decimals)

		_, err = repo.GetCard(ctx, 3, 10)
		assert.ErrorIs(t, err, model.ErrCardNotFound)
	})

	t.Run("actions", func(t *testing.T) {
		a, err := repo.GetAction(ctx, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, 4, a.Start)
		assert.JSONEq(t, `[true,false]`, string(a.OpenValues))
		assert.JSONEq(t, `[false,true]`, string(a.CloseValues))

		_, err = repo.GetAction(ctx, 1, 21)
		assert.ErrorIs(t, err, model.ErrActionNotFound)
	})

	t.Run("seed is an upsert", func(t *testing.T) {
		seed := seedFixture()
		seed.Devices[1].Enabled = true
		require.NoError(t, repo.ApplySeed(ctx, seed))

		devs, err := repo.ListEnabledDevices(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, devs, 3)
	})
}
