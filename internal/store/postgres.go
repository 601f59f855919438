// internal/store/postgres.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// PostgresConfig is the pool setup.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	Migrate  bool
}

// PostgresStore reads and writes the modbusapp tables.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// ---- schema ----

var schema = []string{
	`CREATE TABLE IF NOT EXISTS modbusapp_modbusdevice (
		id               bigserial PRIMARY KEY,
		name             varchar(100) NOT NULL DEFAULT '',
		host             varchar(200) NOT NULL,
		port             integer NOT NULL DEFAULT 502,
		unit_id          integer NOT NULL DEFAULT 1,
		enabled          boolean NOT NULL DEFAULT true,
		di_start         integer NOT NULL DEFAULT 0,
		di_count         integer NOT NULL DEFAULT 0,
		ir_start         integer NOT NULL DEFAULT 0,
		ir_count         integer NOT NULL DEFAULT 0,
		hr_start         integer NOT NULL DEFAULT 0,
		hr_count         integer NOT NULL DEFAULT 0,
		hr_datatype      varchar(3) NOT NULL DEFAULT 'u16',
		hr_byte_order    varchar(6) NOT NULL DEFAULT 'big',
		hr_word_order    varchar(6) NOT NULL DEFAULT 'big',
		hr_decimals      integer NOT NULL DEFAULT 2,
		coil_start       integer NOT NULL DEFAULT 0,
		coil_count       integer NOT NULL DEFAULT 0,
		poll_interval_ms integer NOT NULL DEFAULT 1000
	)`,
	`CREATE TABLE IF NOT EXISTS modbusapp_pollresult (
		id                bigserial PRIMARY KEY,
		device_id         bigint NOT NULL REFERENCES modbusapp_modbusdevice(id) ON DELETE CASCADE,
		created_at        timestamptz NOT NULL DEFAULT now(),
		discrete_inputs   jsonb NOT NULL DEFAULT '[]',
		input_registers   jsonb NOT NULL DEFAULT '[]',
		holding_registers jsonb NOT NULL DEFAULT '[]',
		coils             jsonb NOT NULL DEFAULT '[]',
		ok                boolean NOT NULL DEFAULT true,
		error             text NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS modbusapp_pollresult_device_created
		ON modbusapp_pollresult (device_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS modbusapp_modbuscard (
		id         bigserial PRIMARY KEY,
		device_id  bigint NOT NULL REFERENCES modbusapp_modbusdevice(id) ON DELETE CASCADE,
		name       varchar(100) NOT NULL,
		source     varchar(4) NOT NULL DEFAULT 'hr',
		address    integer NOT NULL,
		unit_label varchar(32) NOT NULL DEFAULT '',
		decimals   integer NULL,
		"order"    integer NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS modbusapp_modbusactioncard (
		id           bigserial PRIMARY KEY,
		device_id    bigint NOT NULL REFERENCES modbusapp_modbusdevice(id) ON DELETE CASCADE,
		name         varchar(100) NOT NULL,
		start        integer NOT NULL,
		open_values  jsonb NOT NULL DEFAULT '[]',
		close_values jsonb NOT NULL DEFAULT '[]',
		"order"      integer NOT NULL DEFAULT 0
	)`,
}

// ---- queries ----

const deviceColumns = `id, name, host, port, unit_id, enabled,
	di_start, di_count, ir_start, ir_count, hr_start, hr_count, coil_start, coil_count,
	hr_datatype, hr_byte_order, hr_word_order, hr_decimals, poll_interval_ms`

const (
	listEnabledDevicesSQL = `SELECT ` + deviceColumns + `
		FROM modbusapp_modbusdevice
		WHERE enabled
		ORDER BY id
		LIMIT $1`

	getDeviceSQL = `SELECT ` + deviceColumns + `
		FROM modbusapp_modbusdevice
		WHERE id = $1`

	insertSnapshotSQL = `INSERT INTO modbusapp_pollresult
		(device_id, created_at, discrete_inputs, input_registers, holding_registers, coils, ok, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listSnapshotsSQL = `SELECT device_id, created_at, discrete_inputs, input_registers, holding_registers, coils, ok, error
		FROM modbusapp_pollresult
		WHERE device_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	getCardSQL = `SELECT id, device_id, name, source, address, unit_label, decimals, "order"
		FROM modbusapp_modbuscard
		WHERE id = $1 AND device_id = $2`

	getActionSQL = `SELECT id, device_id, name, start, open_values, close_values, "order"
		FROM modbusapp_modbusactioncard
		WHERE id = $1 AND device_id = $2`

	upsertDeviceSQL = `INSERT INTO modbusapp_modbusdevice (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, host = EXCLUDED.host, port = EXCLUDED.port,
			unit_id = EXCLUDED.unit_id, enabled = EXCLUDED.enabled,
			di_start = EXCLUDED.di_start, di_count = EXCLUDED.di_count,
			ir_start = EXCLUDED.ir_start, ir_count = EXCLUDED.ir_count,
			hr_start = EXCLUDED.hr_start, hr_count = EXCLUDED.hr_count,
			coil_start = EXCLUDED.coil_start, coil_count = EXCLUDED.coil_count,
			hr_datatype = EXCLUDED.hr_datatype, hr_byte_order = EXCLUDED.hr_byte_order,
			hr_word_order = EXCLUDED.hr_word_order, hr_decimals = EXCLUDED.hr_decimals,
			poll_interval_ms = EXCLUDED.poll_interval_ms`

	upsertCardSQL = `INSERT INTO modbusapp_modbuscard (id, device_id, name, source, address, unit_label, decimals, "order")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			device_id = EXCLUDED.device_id, name = EXCLUDED.name, source = EXCLUDED.source,
			address = EXCLUDED.address, unit_label = EXCLUDED.unit_label,
			decimals = EXCLUDED.decimals, "order" = EXCLUDED."order"`

	upsertActionSQL = `INSERT INTO modbusapp_modbusactioncard (id, device_id, name, start, open_values, close_values, "order")
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			device_id = EXCLUDED.device_id, name = EXCLUDED.name, start = EXCLUDED.start,
			open_values = EXCLUDED.open_values, close_values = EXCLUDED.close_values,
			"order" = EXCLUDED."order"`
)

// seeded tables whose id sequence must follow explicit ids
var seededTables = []string{
	"modbusapp_modbusdevice",
	"modbusapp_modbuscard",
	"modbusapp_modbusactioncard",
}

// NewPostgresStore dials the database and optionally creates the tables.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, log zerolog.Logger) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store: postgres dsn required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("store: failed to initialize pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &PostgresStore{pool: pool, log: log}

	if cfg.Migrate {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Int32("max_conns", poolConfig.MaxConns).
		Bool("migrate", cfg.Migrate).
		Msg("connected to postgres")

	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ---- devices ----

func (s *PostgresStore) ListEnabledDevices(ctx context.Context, limit int) ([]model.DeviceConfig, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, listEnabledDevicesSQL, lim)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []model.DeviceConfig
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) GetDevice(ctx context.Context, id int64) (model.DeviceConfig, error) {
	d, err := scanDevice(s.pool.QueryRow(ctx, getDeviceSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DeviceConfig{}, model.ErrDeviceNotFound
	}
	if err != nil {
		return model.DeviceConfig{}, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func scanDevice(row pgx.Row) (model.DeviceConfig, error) {
	var d model.DeviceConfig
	err := row.Scan(
		&d.ID, &d.Name, &d.Host, &d.Port, &d.UnitID, &d.Enabled,
		&d.DiscreteInputs.Start, &d.DiscreteInputs.Count,
		&d.InputRegisters.Start, &d.InputRegisters.Count,
		&d.HoldingRegisters.Start, &d.HoldingRegisters.Count,
		&d.Coils.Start, &d.Coils.Count,
		&d.HRDatatype, &d.HRByteOrder, &d.HRWordOrder, &d.HRDecimals,
		&d.PollIntervalMs,
	)
	return d, err
}

// ---- snapshots ----

func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap model.PollSnapshot) error {
	cols := make([][]byte, 0, 4)
	for _, vals := range [][]any{snap.DiscreteInputs, snap.InputRegisters, snap.HoldingRegisters, snap.Coils} {
		if vals == nil {
			vals = []any{}
		}
		b, err := json.Marshal(vals)
		if err != nil {
			return fmt.Errorf("append snapshot: encode: %w", err)
		}
		cols = append(cols, b)
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, insertSnapshotSQL,
		snap.DeviceID, createdAt,
		string(cols[0]), string(cols[1]), string(cols[2]), string(cols[3]),
		snap.OK, snap.Error,
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, deviceID int64) (model.PollSnapshot, bool, error) {
	snaps, err := s.ListSnapshots(ctx, deviceID, 1, nil)
	if err != nil {
		return model.PollSnapshot{}, false, err
	}
	if len(snaps) == 0 {
		return model.PollSnapshot{}, false, nil
	}
	return snaps[0], true, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, deviceID int64, limit int, since *time.Time) ([]model.PollSnapshot, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, listSnapshotsSQL, deviceID, since, lim)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.PollSnapshot
	for rows.Next() {
		var (
			snap           model.PollSnapshot
			di, ir, hr, co []byte
		)
		if err := rows.Scan(&snap.DeviceID, &snap.CreatedAt, &di, &ir, &hr, &co, &snap.OK, &snap.Error); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}

		for _, f := range []struct {
			raw []byte
			dst *[]any
		}{
			{di, &snap.DiscreteInputs},
			{ir, &snap.InputRegisters},
			{hr, &snap.HoldingRegisters},
			{co, &snap.Coils},
		} {
			vals, err := decodeValues(f.raw)
			if err != nil {
				return nil, fmt.Errorf("list snapshots: decode: %w", err)
			}
			*f.dst = vals
		}

		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return out, nil
}

// decodeValues reads a jsonb list. Anything other than a list yields an empty list.
// Numbers stay json.Number so 64-bit register values keep every digit.
func decodeValues(raw []byte) ([]any, error) {
	var v any
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
	}
	list, ok := v.([]any)
	if !ok {
		return []any{}, nil
	}
	return list, nil
}

// ---- cards / actions ----

func (s *PostgresStore) GetCard(ctx context.Context, deviceID, cardID int64) (model.CardDefinition, error) {
	var (
		c      model.CardDefinition
		source string
	)
	err := s.pool.QueryRow(ctx, getCardSQL, cardID, deviceID).Scan(
		&c.ID, &c.DeviceID, &c.Name, &source, &c.Address, &c.UnitLabel, &c.Decimals, &c.Order,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CardDefinition{}, model.ErrCardNotFound
	}
	if err != nil {
		return model.CardDefinition{}, fmt.Errorf("get card: %w", err)
	}
	c.Source = model.SourceClass(source)
	return c, nil
}

func (s *PostgresStore) GetAction(ctx context.Context, deviceID, actionID int64) (model.ActionDefinition, error) {
	var (
		a                 model.ActionDefinition
		openRaw, closeRaw []byte
	)
	err := s.pool.QueryRow(ctx, getActionSQL, actionID, deviceID).Scan(
		&a.ID, &a.DeviceID, &a.Name, &a.Start, &openRaw, &closeRaw, &a.Order,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ActionDefinition{}, model.ErrActionNotFound
	}
	if err != nil {
		return model.ActionDefinition{}, fmt.Errorf("get action: %w", err)
	}
	a.OpenValues = json.RawMessage(openRaw)
	a.CloseValues = json.RawMessage(closeRaw)
	return a, nil
}

// ---- seed ----

// ApplySeed upserts in one transaction and advances the id sequences
// past the explicit ids.
func (s *PostgresStore) ApplySeed(ctx context.Context, seed Seed) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range seed.Devices {
		if _, err := tx.Exec(ctx, upsertDeviceSQL,
			d.ID, d.Name, d.Host, d.Port, d.UnitID, d.Enabled,
			d.DiscreteInputs.Start, d.DiscreteInputs.Count,
			d.InputRegisters.Start, d.InputRegisters.Count,
			d.HoldingRegisters.Start, d.HoldingRegisters.Count,
			d.Coils.Start, d.Coils.Count,
			d.HRDatatype, d.HRByteOrder, d.HRWordOrder, d.HRDecimals,
			d.PollIntervalMs,
		); err != nil {
			return fmt.Errorf("seed device %d: %w", d.ID, err)
		}
	}

	for _, c := range seed.Cards {
		if _, err := tx.Exec(ctx, upsertCardSQL,
			c.ID, c.DeviceID, c.Name, string(c.Source), c.Address, c.UnitLabel, c.Decimals, c.Order,
		); err != nil {
			return fmt.Errorf("seed card %d: %w", c.ID, err)
		}
	}

	for _, a := range seed.Actions {
		if _, err := tx.Exec(ctx, upsertActionSQL,
			a.ID, a.DeviceID, a.Name, a.Start, rawOrEmpty(a.OpenValues), rawOrEmpty(a.CloseValues), a.Order,
		); err != nil {
			return fmt.Errorf("seed action %d: %w", a.ID, err)
		}
	}

	for _, table := range seededTables {
		stmt := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %s), 1))`,
			table, table,
		)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("seed: sequence %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}

	s.log.Info().
		Int("devices", len(seed.Devices)).
		Int("cards", len(seed.Cards)).
		Int("actions", len(seed.Actions)).
		Msg("seed applied")

	return nil
}

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
