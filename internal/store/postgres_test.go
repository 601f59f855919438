// internal/store/postgres_test.go
package store

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-poller/internal/logger"
	"github.com/tamzrod/modbus-poller/internal/model"
)

// Integration tests run only against a disposable database.
const pgDSNEnv = "POLLER_TEST_PG_DSN"

func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv(pgDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", pgDSNEnv)
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn, Migrate: true}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE modbusapp_pollresult, modbusapp_modbuscard,
		modbusapp_modbusactioncard, modbusapp_modbusdevice RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return s
}

func TestPostgresStore_Contract(t *testing.T) {
	runContract(t, newTestPostgres(t))
}

func TestPostgresStore_MigrateIdempotent(t *testing.T) {
	s := newTestPostgres(t)
	require.NoError(t, s.migrate(context.Background()))
}

func TestNewPostgresStore_RequiresDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), PostgresConfig{}, logger.NewTestLogger())
	require.Error(t, err)
}

func TestDecodeValues_KeepsWideIntegers(t *testing.T) {
	raw, err := json.Marshal([]any{uint64(math.MaxUint64), int64(math.MinInt64), 3.14, true, nil})
	require.NoError(t, err)

	vals, err := decodeValues(raw)
	require.NoError(t, err)
	require.Len(t, vals, 5)

	assert.Equal(t, json.Number("18446744073709551615"), vals[0])
	assert.Equal(t, json.Number("-9223372036854775808"), vals[1])
	assert.Equal(t, json.Number("3.14"), vals[2])
	assert.Equal(t, true, vals[3])
	assert.Nil(t, vals[4])

	out, err := json.Marshal(vals)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestDecodeValues_NonList(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"a":1}`, `7`} {
		vals, err := decodeValues([]byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, vals, raw)
	}

	_, err := decodeValues([]byte(`[1,`))
	assert.Error(t, err)
}

func TestPostgresStore_WideIntegerRoundTrip(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	require.NoError(t, s.ApplySeed(ctx, seedFixture()))

	snap := model.PollSnapshot{
		DeviceID:         1,
		CreatedAt:        time.Now().UTC(),
		DiscreteInputs:   []any{},
		InputRegisters:   []any{},
		HoldingRegisters: []any{uint64(math.MaxUint64)},
		Coils:            []any{},
		OK:               true,
	}
	require.NoError(t, s.AppendSnapshot(ctx, snap))

	last, found, err := s.LatestSnapshot(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []any{json.Number("18446744073709551615")}, last.HoldingRegisters)
}
