// internal/status/snapshot.go
package status

import "time"

// Snapshot is the health of one device at one point in time.
// It is a copy; mutating it never affects the tracker.
type Snapshot struct {
	DeviceID            int64
	Health              Health
	LastError           string
	LastPollAt          time.Time
	ErrorSince          time.Time
	ConsecutiveFailures int
}

// SecondsInError reports how long the device has been failing, 0 when healthy.
func (s Snapshot) SecondsInError(now time.Time) int64 {
	if s.Health != HealthError || s.ErrorSince.IsZero() {
		return 0
	}
	d := now.Sub(s.ErrorSince)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
