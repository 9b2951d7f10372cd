package repositories

import (
	"fmt"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// TimeValue converts a stored value into a time. Drivers hand back
// time.Time, while text-based storage yields strings.
func TimeValue(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		u := t.UTC()
		return &u, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		u := t.UTC()
		return &u, nil
	case []byte:
		return TimeValue(string(t))
	case string:
		if t == "" {
			return nil, nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				u := parsed.UTC()
				return &u, nil
			}
		}
		return nil, fmt.Errorf("unparsable time %q", t)
	default:
		return nil, fmt.Errorf("unexpected time value %T", v)
	}
}

// StringValue converts a stored value into a string.
func StringValue(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("unexpected string value %T", v)
	}
}

// BoolValue converts a stored value into a bool. Some drivers store
// booleans as integers.
func BoolValue(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case []byte:
		return string(b) == "1" || string(b) == "true", nil
	case string:
		return b == "1" || b == "true", nil
	default:
		return false, fmt.Errorf("unexpected bool value %T", v)
	}
}

// NullableTime returns nil for an absent time so that it is stored as NULL.
func NullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
