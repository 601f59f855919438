// internal/decode/decode.go
package decode

import (
	"encoding/binary"
	"math"
)

// Datatype tags accepted for holding register decoding.
const (
	U16 = "u16"
	S16 = "s16"
	U32 = "u32"
	S32 = "s32"
	F32 = "f32"
	U64 = "u64"
	S64 = "s64"
	F64 = "f64"
)

// Byte order within a register, and word order within a multi-register value.
const (
	OrderBig    = "big"
	OrderLittle = "little"
)

// wordsPer is the fixed register count consumed per output value.
var wordsPer = map[string]int{
	U16: 1, S16: 1,
	U32: 2, S32: 2, F32: 2,
	U64: 4, S64: 4, F64: 4,
}

// Known reports whether datatype is a supported tag.
func Known(datatype string) bool {
	_, ok := wordsPer[datatype]
	return ok
}

// IsFloat reports whether datatype decodes to IEEE-754 values.
func IsFloat(datatype string) bool {
	return datatype == F32 || datatype == F64
}

// WordsPer returns the register count per value (0 for unknown tags).
func WordsPer(datatype string) int {
	return wordsPer[datatype]
}

// Registers converts raw 16-bit words into typed values.
//
// Output element types: uint64 (u*), int64 (s*), float64 (f*).
// An unknown datatype returns the registers unchanged (as uint16).
// A trailing incomplete group is dropped silently.
func Registers(regs []uint16, datatype, byteOrder, wordOrder string) []any {
	if len(regs) == 0 {
		return []any{}
	}

	n, ok := wordsPer[datatype]
	if !ok {
		out := make([]any, len(regs))
		for i, r := range regs {
			out[i] = r
		}
		return out
	}

	var order binary.ByteOrder = binary.BigEndian
	if byteOrder == OrderLittle {
		order = binary.LittleEndian
	}

	total := len(regs) - len(regs)%n
	out := make([]any, 0, total/n)

	buf := make([]byte, 2*n)
	group := make([]uint16, n)

	for i := 0; i < total; i += n {
		copy(group, regs[i:i+n])
		if n > 1 && wordOrder == OrderLittle {
			reverse(group)
		}

		for j, r := range group {
			order.PutUint16(buf[2*j:], r)
		}

		out = append(out, value(buf, datatype, order))
	}

	return out
}

// Holding decodes and applies float rounding. Integers are never rounded.
func Holding(regs []uint16, datatype, byteOrder, wordOrder string, decimals int) []any {
	vals := Registers(regs, datatype, byteOrder, wordOrder)
	if !IsFloat(datatype) {
		return vals
	}

	if decimals < 0 {
		decimals = 0
	}

	for i, v := range vals {
		if f, ok := v.(float64); ok {
			vals[i] = Round(f, decimals)
		}
	}

	return vals
}

// Round rounds f to places decimal places. Non-finite values pass through.
func Round(f float64, places int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}

	p := math.Pow(10, float64(places))
	r := math.Round(f*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		// f*p overflowed; rounding is meaningless at this magnitude.
		return f
	}

	return r
}

func value(b []byte, datatype string, order binary.ByteOrder) any {
	switch datatype {
	case U16:
		return uint64(order.Uint16(b))
	case S16:
		return int64(int16(order.Uint16(b)))
	case U32:
		return uint64(order.Uint32(b))
	case S32:
		return int64(int32(order.Uint32(b)))
	case F32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case U64:
		return order.Uint64(b)
	case S64:
		return int64(order.Uint64(b))
	case F64:
		return math.Float64frombits(order.Uint64(b))
	}
	return nil
}

func reverse(w []uint16) {
	for i, j := 0, len(w)-1; i < j; i, j = i+1, j-1 {
		w[i], w[j] = w[j], w[i]
	}
}
