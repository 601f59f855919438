// internal/status/constants.go
package status

// Health is the coarse state of one device as seen by its worker.
type Health uint16

// ---- HEALTH CODES ----

// HealthUnknown represents a device with no completed cycle yet.
const HealthUnknown Health = 0

// HealthOK represents a device whose last cycle succeeded.
const HealthOK Health = 1

// HealthError represents a device whose last cycle failed.
const HealthError Health = 2

// HealthDisabled represents a device whose worker has stopped.
const HealthDisabled Health = 4

// ---- LIMITS ----

// ErrorMaxChars bounds the stored last error text.
const ErrorMaxChars = 512

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// MarshalText renders the health code by name.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}
