package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hexfall/npcmind/pkg/errors"
)

// Args holds decoded tool-call arguments: a flat map of string, float64,
// bool, or nil values.
type Args map[string]any

// String returns the named argument as a string.
func (a Args) String(key string) (string, bool) {
	v, ok := a[key].(string)
	return v, ok
}

// Number returns the named argument as a float64.
func (a Args) Number(key string) (float64, bool) {
	v, ok := a[key].(float64)
	return v, ok
}

// Int returns the named argument truncated to an int.
func (a Args) Int(key string) (int, bool) {
	v, ok := a[key].(float64)
	return int(v), ok
}

// Bool returns the named argument as a bool.
func (a Args) Bool(key string) (bool, bool) {
	v, ok := a[key].(bool)
	return v, ok
}

// DecodeArgs parses a tool call's JSON argument string into a flat Args
// map. Nested objects and arrays are rejected explicitly rather than
// silently mis-parsed; the protocol only carries flat leaf values.
func DecodeArgs(raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		return Args{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "arguments are not a JSON object: %v", err)
	}

	args := make(Args, len(decoded))
	for key, value := range decoded {
		switch value.(type) {
		case string, float64, bool, nil:
			args[key] = value
		default:
			return nil, errors.Wrap(errors.ErrInvalidInput,
				"argument %q is a nested %s; only flat string/number/bool values are supported",
				key, jsonKind(value))
		}
	}
	return args, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
