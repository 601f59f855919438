// internal/poller/types.go
package poller

import (
	"context"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// Client abstracts the Modbus operations needed by the poller.
// The poller depends on geometry only.
type Client interface {
	ReadCoils(addr, qty uint16) ([]bool, error)              // FC 1
	ReadDiscreteInputs(addr, qty uint16) ([]bool, error)     // FC 2
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
	Close() error
}

// Dialer opens one connection for one poll cycle.
type Dialer func(ctx context.Context, dev model.DeviceConfig) (Client, error)

// readBlock describes one read of a poll cycle.
// Geometry only: no semantics.
type readBlock struct {
	Source model.SourceClass
	Range  model.Range
}

// blocks returns the reads of a cycle, in wire order.
func blocks(dev model.DeviceConfig) []readBlock {
	return []readBlock{
		{Source: model.SourceDiscrete, Range: dev.DiscreteInputs},
		{Source: model.SourceInput, Range: dev.InputRegisters},
		{Source: model.SourceHolding, Range: dev.HoldingRegisters},
		{Source: model.SourceCoil, Range: dev.Coils},
	}
}
