// internal/writer/types.go
package writer

import (
	"context"
	"errors"

	"github.com/tamzrod/modbus-poller/internal/model"
)

var (
	ErrNoValues            = errors.New("values must be a non-empty list")
	ErrNotBoolean          = errors.New("values must be a list of booleans")
	ErrAddressRange        = errors.New("coil range out of bounds")
	ErrInvalidWhich        = errors.New(`which must be "open" or "close"`)
	ErrMisconfiguredPreset = errors.New("action preset misconfigured")
)

// Action preset selectors.
const (
	WhichOpen  = "open"
	WhichClose = "close"
)

// Client is the exact contract the writer uses.
type Client interface {
	WriteCoils(addr uint16, bits []bool) error
	Close() error
}

// Dialer opens one connection for one write.
type Dialer func(ctx context.Context, dev model.DeviceConfig) (Client, error)

// Result is the outcome of a write that passed validation.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
