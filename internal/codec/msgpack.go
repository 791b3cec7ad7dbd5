package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack encodes frames in the compact MessagePack binary form.
type Msgpack struct{}

func (Msgpack) Name() string { return NameMsgpack }

func (Msgpack) Binary() bool { return true }

func (Msgpack) Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(outbound(v))
	if err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return data, nil
}

func (Msgpack) Decode(data []byte) ([]Record, error) {
	var v any
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("msgpack decode: %w", err)
	}
	return toRecords(v)
}
