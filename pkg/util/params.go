package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tool arguments arrive as decoded JSON, so numbers are float64 or
// json.Number and anything may have been sent as a string.

// GetAsString converts various types to a string
func GetAsString(s any) (string, error) {
	switch v := s.(type) {
	case nil:
		return "", fmt.Errorf("cannot convert nil to string")
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// GetAsFloat converts numbers and numeric strings to a finite float64
func GetAsFloat(s any) (float64, error) {
	var f float64
	switch v := s.(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to float")
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to float: %w", v, err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to float: %w", v, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("cannot convert type %T to float", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not a finite number", f)
	}
	return f, nil
}

// GetAsInteger converts various types to integer.
// Floats are accepted only when they hold a whole number.
func GetAsInteger(s any) (int, error) {
	switch v := s.(type) {
	case int:
		return v, nil
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, fmt.Errorf("int64 value %d is out of int range", v)
		}
		return int(v), nil
	case string:
		result, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to integer: %w", v, err)
		}
		return result, nil
	}

	f, err := GetAsFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("value %v is not a whole number in int range", f)
	}
	return int(f), nil
}

// GetParam fetches a named argument, failing when it is absent
func GetParam(params map[string]any, name string) (any, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing required parameter %q", name)
	}
	return v, nil
}
