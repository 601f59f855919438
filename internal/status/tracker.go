// internal/status/tracker.go
package status

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// Tracker keeps the latest health per device.
// Workers write, HTTP handlers read. It never affects scheduling.
type Tracker struct {
	mu      sync.RWMutex
	devices map[int64]*Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{devices: make(map[int64]*Snapshot)}
}

// Observe folds one poll result into the device health.
func (t *Tracker) Observe(snap model.PollSnapshot) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.entry(snap.DeviceID)
	s.LastPollAt = snap.CreatedAt

	if snap.OK {
		s.Health = HealthOK
		s.LastError = ""
		s.ErrorSince = time.Time{}
		s.ConsecutiveFailures = 0
		return
	}

	if s.Health != HealthError {
		s.ErrorSince = snap.CreatedAt
	}
	s.Health = HealthError
	s.LastError = truncate(snap.Error, ErrorMaxChars)
	s.ConsecutiveFailures++
}

// Disable marks a device whose worker has stopped.
// The last error and poll time are kept for inspection.
func (t *Tracker) Disable(deviceID int64) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.entry(deviceID)
	s.Health = HealthDisabled
	s.ErrorSince = time.Time{}
	s.ConsecutiveFailures = 0
}

// Get returns the health of a device. Unseen devices report HealthUnknown.
func (t *Tracker) Get(deviceID int64) Snapshot {
	if t == nil {
		return Snapshot{DeviceID: deviceID}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.devices[deviceID]
	if !ok {
		return Snapshot{DeviceID: deviceID, Health: HealthUnknown}
	}
	return *s
}

func (t *Tracker) entry(deviceID int64) *Snapshot {
	s, ok := t.devices[deviceID]
	if !ok {
		s = &Snapshot{DeviceID: deviceID, Health: HealthUnknown}
		t.devices[deviceID] = s
	}
	return s
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
