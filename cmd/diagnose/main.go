// cmd/diagnose/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/tamzrod/modbus-poller/internal/modbus"
)

// previewLimit caps how many values are printed per read.
const previewLimit = 32

type read struct {
	name  string
	start *int
	count *int
	fn    func(c *modbus.Client, addr, qty uint16) (any, error)
}

func main() {
	host := flag.String("host", "", "device host")
	port := flag.Int("port", 502, "device port")
	unit := flag.Int("unit", 1, "unit id (0-255)")
	timeout := flag.Duration("timeout", 3*time.Second, "connect and response timeout")

	reads := []read{
		{name: "discrete_inputs", fn: func(c *modbus.Client, a, q uint16) (any, error) { return c.ReadDiscreteInputs(a, q) }},
		{name: "input_registers", fn: func(c *modbus.Client, a, q uint16) (any, error) { return c.ReadInputRegisters(a, q) }},
		{name: "holding_registers", fn: func(c *modbus.Client, a, q uint16) (any, error) { return c.ReadHoldingRegisters(a, q) }},
		{name: "coils", fn: func(c *modbus.Client, a, q uint16) (any, error) { return c.ReadCoils(a, q) }},
	}
	prefixes := []string{"di", "ir", "hr", "coil"}
	for i := range reads {
		reads[i].start = flag.Int(prefixes[i]+"-start", 0, reads[i].name+" start address")
		reads[i].count = flag.Int(prefixes[i]+"-count", 0, reads[i].name+" count (0 skips)")
	}

	flag.Parse()

	if *host == "" {
		log.Fatal("usage: diagnose -host <addr> [-port 502] [-unit 1] [-hr-start N -hr-count N] ...")
	}
	if *unit < 0 || *unit > 255 {
		log.Fatalf("unit id %d out of range", *unit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// --------------------
	// Connect once
	// --------------------

	c, err := modbus.Dial(ctx, modbus.Config{
		Host:    *host,
		Port:    *port,
		UnitID:  uint8(*unit),
		Timeout: *timeout,
	})
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	fmt.Fprintf(os.Stdout, "connected %s:%d unit=%d\n", *host, *port, *unit)

	// --------------------
	// Reads
	// --------------------

	for _, r := range reads {
		if *r.count <= 0 {
			continue
		}
		if *r.start < 0 || *r.start+*r.count > 65536 {
			fmt.Fprintf(os.Stdout, "%s: start=%d count=%d out of range\n", r.name, *r.start, *r.count)
			continue
		}

		values, err := r.fn(c, uint16(*r.start), uint16(*r.count))
		report(os.Stdout, r.name, *r.start, *r.count, values, err)
	}
}

func report(w io.Writer, name string, start, count int, values any, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s[%d+%d]: error: %v\n", name, start, count, err)
		return
	}
	fmt.Fprintf(w, "%s[%d+%d]: %s\n", name, start, count, preview(values))
}

func preview(values any) string {
	switch v := values.(type) {
	case []bool:
		if len(v) > previewLimit {
			return fmt.Sprintf("%v ... (%d total)", v[:previewLimit], len(v))
		}
		return fmt.Sprint(v)
	case []uint16:
		if len(v) > previewLimit {
			return fmt.Sprintf("%v ... (%d total)", v[:previewLimit], len(v))
		}
		return fmt.Sprint(v)
	}
	return fmt.Sprint(values)
}
