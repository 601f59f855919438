// internal/status/encode.go
package status

import "time"

// View is the wire shape of a device health snapshot.
type View struct {
	Device              int64      `json:"device"`
	Health              Health     `json:"health"`
	LastError           string     `json:"last_error"`
	LastPollAt          *time.Time `json:"last_poll_at"`
	ErrorSince          *time.Time `json:"error_since"`
	SecondsInError      int64      `json:"seconds_in_error"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// Encode converts a Snapshot into its wire shape.
// No IO. No side effects.
func Encode(s Snapshot, now time.Time) View {
	return View{
		Device:              s.DeviceID,
		Health:              s.Health,
		LastError:           s.LastError,
		LastPollAt:          optionalTime(s.LastPollAt),
		ErrorSince:          optionalTime(s.ErrorSince),
		SecondsInError:      s.SecondsInError(now),
		ConsecutiveFailures: s.ConsecutiveFailures,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
