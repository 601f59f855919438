// internal/modbus/client.go
package modbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
)

var (
	ErrConnect   = errors.New("modbus: connect failed")
	ErrException = errors.New("modbus: device exception")
	ErrTransport = errors.New("modbus: transport failure")
)

// MaxWriteCoils is the protocol limit for one write-multiple-coils request.
const MaxWriteCoils = 1968

const defaultTimeout = 3 * time.Second

// Config is minimal transport config.
type Config struct {
	Host    string
	Port    int
	UnitID  uint8
	Timeout time.Duration
}

func (c Config) endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is one Modbus TCP connection scoped to a single read/write batch.
// Not safe for concurrent use.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// Dial opens a connection. The unit id is fixed for the life of the client.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host required", ErrConnect)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	h := modbus.NewTCPClientHandler(cfg.endpoint())
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, cfg.endpoint(), err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the TCP connection. Safe to call more than once.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	return err
}

// ---- reads ----

func (c *Client) ReadCoils(addr, qty uint16) ([]bool, error) {
	b, err := c.client.ReadCoils(addr, qty)
	if err != nil {
		return nil, classify("read coils", err)
	}
	return unpackBits(b, int(qty)), nil
}

func (c *Client) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	b, err := c.client.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, classify("read discrete inputs", err)
	}
	return unpackBits(b, int(qty)), nil
}

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, classify("read holding registers", err)
	}
	return unpackRegisters(b), nil
}

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, classify("read input registers", err)
	}
	return unpackRegisters(b), nil
}

// ---- writes ----

// WriteCoils issues one contiguous write-multiple-coils request.
func (c *Client) WriteCoils(addr uint16, bits []bool) error {
	if len(bits) == 0 || len(bits) > MaxWriteCoils {
		return fmt.Errorf("modbus: write coils: quantity %d out of range", len(bits))
	}
	if _, err := c.client.WriteMultipleCoils(addr, uint16(len(bits)), packBits(bits)); err != nil {
		return classify("write coils", err)
	}
	return nil
}

// classify maps library errors onto the package sentinels.
func classify(op string, err error) error {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return fmt.Errorf("%w: %s: %v", ErrException, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}

// ---- helpers (pure geometry) ----

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if byteIdx >= len(data) {
			continue
		}
		out[i] = data[byteIdx]&(1<<bitIdx) != 0
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
