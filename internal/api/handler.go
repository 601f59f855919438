// internal/api/handler.go
package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/status"
	"github.com/tamzrod/modbus-poller/internal/writer"
)

// Store is the read side the handlers need.
type Store interface {
	ListEnabledDevices(ctx context.Context, limit int) ([]model.DeviceConfig, error)
	GetDevice(ctx context.Context, id int64) (model.DeviceConfig, error)
	LatestSnapshot(ctx context.Context, deviceID int64) (model.PollSnapshot, bool, error)
	ListSnapshots(ctx context.Context, deviceID int64, limit int, since *time.Time) ([]model.PollSnapshot, error)
	GetCard(ctx context.Context, deviceID, cardID int64) (model.CardDefinition, error)
	GetAction(ctx context.Context, deviceID, actionID int64) (model.ActionDefinition, error)
}

// CoilWriter performs validated coil writes.
type CoilWriter interface {
	Write(ctx context.Context, dev model.DeviceConfig, start int, values []bool) (writer.Result, error)
	ExecuteAction(ctx context.Context, dev model.DeviceConfig, action model.ActionDefinition, which string) (writer.Result, string, error)
}

// Handler serves the device API.
type Handler struct {
	store   Store
	writer  CoilWriter
	tracker *status.Tracker
	log     zerolog.Logger
	now     func() time.Time
}

func NewHandler(store Store, w CoilWriter, tracker *status.Tracker, log zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		writer:  w,
		tracker: tracker,
		log:     log,
		now:     time.Now,
	}
}
