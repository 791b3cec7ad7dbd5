package codec

import (
	"fmt"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

// JSON encodes frames as UTF-8 JSON text.
type JSON struct{}

func (JSON) Name() string { return NameJSON }

func (JSON) Binary() bool { return false }

func (JSON) Encode(v any) ([]byte, error) {
	data, err := jsonAPI.Marshal(outbound(v))
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (JSON) Decode(data []byte) ([]Record, error) {
	var v any
	if err := jsonAPI.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return toRecords(v)
}
