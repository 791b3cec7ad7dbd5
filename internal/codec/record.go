package codec

import "math"

// Record is a decoded message presented as a generic structured record.
type Record map[string]any

// Str returns the string value at key, or "" when absent or not a string.
func (r Record) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns the integer value at key. Both codecs are accepted: JSON numbers
// arrive as float64, msgpack integers as sized ints.
func (r Record) Int(key string) (int64, bool) {
	switch n := r[key].(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Strings returns the string elements of the list at key.
func (r Record) Strings(key string) []string {
	list, ok := r[key].([]any)
	if !ok {
		if ss, ok := r[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Symbol returns the "S" field carried by most market data records.
func (r Record) Symbol() string {
	return r.Str("S")
}

// AsRecord converts a nested decoded map to a Record.
func AsRecord(v any) (Record, bool) {
	m, ok := asMap(v)
	return Record(m), ok
}
