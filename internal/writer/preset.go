// internal/writer/preset.go
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// ParseBools decodes a JSON list whose every element is a boolean.
// Numbers and strings are rejected, never coerced.
func ParseBools(raw json.RawMessage) ([]bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoValues
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ErrNotBoolean
	}
	if len(items) == 0 {
		return nil, ErrNoValues
	}

	out := make([]bool, len(items))
	for i, it := range items {
		switch string(bytes.TrimSpace(it)) {
		case "true":
			out[i] = true
		case "false":
			out[i] = false
		default:
			return nil, fmt.Errorf("%w: element %d", ErrNotBoolean, i)
		}
	}

	return out, nil
}

// Preset resolves which to the matching preset of an action.
// An empty which selects the open preset.
func Preset(action model.ActionDefinition, which string) ([]bool, string, error) {
	if which == "" {
		which = WhichOpen
	}

	var raw json.RawMessage
	switch which {
	case WhichOpen:
		raw = action.OpenValues
	case WhichClose:
		raw = action.CloseValues
	default:
		return nil, which, ErrInvalidWhich
	}

	bits, err := ParseBools(raw)
	if err != nil {
		return nil, which, fmt.Errorf("%w: action %d %s: %v", ErrMisconfiguredPreset, action.ID, which, err)
	}

	return bits, which, nil
}
