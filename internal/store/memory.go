// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// DefaultRetention is the per-device history kept by the memory store.
const DefaultRetention = 5000

// MemoryStore keeps everything in process. History is newest last.
type MemoryStore struct {
	mu        sync.RWMutex
	retention int

	devices map[int64]model.DeviceConfig
	cards   map[int64]model.CardDefinition
	actions map[int64]model.ActionDefinition
	history map[int64][]model.PollSnapshot
}

// NewMemoryStore creates an empty store. retention <= 0 keeps everything.
func NewMemoryStore(retention int) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		devices:   make(map[int64]model.DeviceConfig),
		cards:     make(map[int64]model.CardDefinition),
		actions:   make(map[int64]model.ActionDefinition),
		history:   make(map[int64][]model.PollSnapshot),
	}
}

// ---- devices ----

func (s *MemoryStore) ListEnabledDevices(_ context.Context, limit int) ([]model.DeviceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DeviceConfig, 0, len(s.devices))
	for _, d := range s.devices {
		if d.Enabled {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetDevice(_ context.Context, id int64) (model.DeviceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return model.DeviceConfig{}, model.ErrDeviceNotFound
	}
	return d, nil
}

// PutDevice inserts or replaces a device.
func (s *MemoryStore) PutDevice(d model.DeviceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices[d.ID] = d
}

// DeleteDevice removes a device with its history, cards and actions.
func (s *MemoryStore) DeleteDevice(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.devices, id)
	delete(s.history, id)
	for cid, c := range s.cards {
		if c.DeviceID == id {
			delete(s.cards, cid)
		}
	}
	for aid, a := range s.actions {
		if a.DeviceID == id {
			delete(s.actions, aid)
		}
	}
}

// ---- snapshots ----

func (s *MemoryStore) AppendSnapshot(_ context.Context, snap model.PollSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[snap.DeviceID]; !ok {
		return model.ErrDeviceNotFound
	}

	h := append(s.history[snap.DeviceID], copySnapshot(snap))
	if s.retention > 0 && len(h) > s.retention {
		h = h[len(h)-s.retention:]
	}
	s.history[snap.DeviceID] = h

	return nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, deviceID int64) (model.PollSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[deviceID]
	if len(h) == 0 {
		return model.PollSnapshot{}, false, nil
	}
	return copySnapshot(h[len(h)-1]), true, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, deviceID int64, limit int, since *time.Time) ([]model.PollSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[deviceID]

	var out []model.PollSnapshot
	for i := len(h) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if since != nil && h[i].CreatedAt.Before(*since) {
			continue
		}
		out = append(out, copySnapshot(h[i]))
	}
	return out, nil
}

// ---- cards / actions ----

func (s *MemoryStore) GetCard(_ context.Context, deviceID, cardID int64) (model.CardDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[cardID]
	if !ok || c.DeviceID != deviceID {
		return model.CardDefinition{}, model.ErrCardNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetAction(_ context.Context, deviceID, actionID int64) (model.ActionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.actions[actionID]
	if !ok || a.DeviceID != deviceID {
		return model.ActionDefinition{}, model.ErrActionNotFound
	}
	return a, nil
}

func (s *MemoryStore) PutCard(c model.CardDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards[c.ID] = c
}

func (s *MemoryStore) PutAction(a model.ActionDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions[a.ID] = a
}

// ---- seed ----

func (s *MemoryStore) ApplySeed(_ context.Context, seed Seed) error {
	for _, d := range seed.Devices {
		s.PutDevice(d)
	}
	for _, c := range seed.Cards {
		s.PutCard(c)
	}
	for _, a := range seed.Actions {
		s.PutAction(a)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copySnapshot(in model.PollSnapshot) model.PollSnapshot {
	out := in
	out.DiscreteInputs = copyValues(in.DiscreteInputs)
	out.InputRegisters = copyValues(in.InputRegisters)
	out.HoldingRegisters = copyValues(in.HoldingRegisters)
	out.Coils = copyValues(in.Coils)
	return out
}

func copyValues(in []any) []any {
	out := make([]any, len(in))
	copy(out, in)
	return out
}
