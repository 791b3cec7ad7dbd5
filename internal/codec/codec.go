package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Supported codec names.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrBadFrame     = errors.New("frame is not a record or an array of records")
)

// Codec converts between Go values and wire frames.
type Codec interface {
	// Name returns the configured codec name.
	Name() string

	// Binary reports whether frames are sent as binary WebSocket messages.
	Binary() bool

	// Encode serializes an outbound value. Values implementing Payloader are
	// encoded through their Payload.
	Encode(v any) ([]byte, error)

	// Decode parses one inbound frame into one or more records.
	Decode(data []byte) ([]Record, error)
}

// Payloader is implemented by outbound messages whose wire shape is dynamic,
// such as subscription deltas keyed by category.
type Payloader interface {
	Payload() map[string]any
}

// New returns the codec registered under name. Matching is case-insensitive
// and an empty name selects JSON.
func New(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON{}, nil
	case NameMsgpack:
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Names lists the supported codec names.
func Names() []string {
	names := []string{NameJSON, NameMsgpack}
	sort.Strings(names)
	return names
}

func outbound(v any) any {
	if p, ok := v.(Payloader); ok {
		return p.Payload()
	}
	return v
}

// toRecords normalizes a generically decoded frame.
func toRecords(v any) ([]Record, error) {
	switch t := v.(type) {
	case map[string]any:
		return []Record{Record(t)}, nil
	case []any:
		out := make([]Record, 0, len(t))
		for i, item := range t {
			m, ok := asMap(item)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrBadFrame, i, item)
			}
			out = append(out, Record(m))
		}
		return out, nil
	default:
		if m, ok := asMap(v); ok {
			return []Record{Record(m)}, nil
		}
		return nil, fmt.Errorf("%w: got %T", ErrBadFrame, v)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			m[ks] = val
		}
		return m, true
	default:
		return nil, false
	}
}
