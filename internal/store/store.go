// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// Driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("store: unknown driver")

// Repository is the persistence boundary of the poller.
// Devices, cards and actions are owned here; callers borrow copies.
type Repository interface {
	// ListEnabledDevices returns enabled devices by ascending id. limit <= 0 means no limit.
	ListEnabledDevices(ctx context.Context, limit int) ([]model.DeviceConfig, error)
	GetDevice(ctx context.Context, id int64) (model.DeviceConfig, error)

	AppendSnapshot(ctx context.Context, snap model.PollSnapshot) error
	// LatestSnapshot reports false when the device has no history.
	LatestSnapshot(ctx context.Context, deviceID int64) (model.PollSnapshot, bool, error)
	// ListSnapshots returns newest first, created_at >= since when since is set.
	ListSnapshots(ctx context.Context, deviceID int64, limit int, since *time.Time) ([]model.PollSnapshot, error)

	GetCard(ctx context.Context, deviceID, cardID int64) (model.CardDefinition, error)
	GetAction(ctx context.Context, deviceID, actionID int64) (model.ActionDefinition, error)

	// ApplySeed upserts configuration rows by id.
	ApplySeed(ctx context.Context, seed Seed) error

	Close() error
}

// Seed is configuration declared outside the store (config file).
type Seed struct {
	Devices []model.DeviceConfig
	Cards   []model.CardDefinition
	Actions []model.ActionDefinition
}
