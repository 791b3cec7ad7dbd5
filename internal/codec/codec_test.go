package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type deltaStub struct {
	action string
	ids    []string
}

func (d deltaStub) Payload() map[string]any {
	return map[string]any{"action": d.action, "trades": d.ids}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		binary  bool
		wantErr bool
	}{
		{name: "", want: NameJSON},
		{name: "json", want: NameJSON},
		{name: " JSON ", want: NameJSON},
		{name: "msgpack", want: NameMsgpack, binary: true},
		{name: "protobuf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownCodec))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
			assert.Equal(t, tt.binary, c.Binary())
		})
	}
}

func TestJSON_DecodeSingleAndBatch(t *testing.T) {
	c := JSON{}

	recs, err := c.Decode([]byte(`{"T":"success","msg":"connected"}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "success", recs[0].Str("T"))
	assert.Equal(t, "connected", recs[0].Str("msg"))

	recs, err = c.Decode([]byte(`[{"T":"t","S":"AAPL","p":189.5},{"T":"q","S":"MSFT"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "AAPL", recs[0].Symbol())
	assert.Equal(t, "q", recs[1].Str("T"))
}

func TestJSON_DecodeErrors(t *testing.T) {
	c := JSON{}

	_, err := c.Decode([]byte(`{not json`))
	require.Error(t, err)

	_, err = c.Decode([]byte(`"just a string"`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadFrame))

	_, err = c.Decode([]byte(`[{"T":"t"}, 5]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadFrame))
}

func TestJSON_EncodePayloader(t *testing.T) {
	data, err := JSON{}.Encode(deltaStub{action: "subscribe", ids: []string{"AAPL"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"subscribe","trades":["AAPL"]}`, string(data))
}

func TestMsgpack_RoundTrip(t *testing.T) {
	c := Msgpack{}

	data, err := c.Encode(deltaStub{action: "unsubscribe", ids: []string{"AAPL", "TSLA"}})
	require.NoError(t, err)

	recs, err := c.Decode(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "unsubscribe", recs[0].Str("action"))
	assert.Equal(t, []string{"AAPL", "TSLA"}, recs[0].Strings("trades"))
}

func TestMsgpack_DecodeBatch(t *testing.T) {
	frame, err := msgpack.Marshal([]map[string]any{
		{"T": "error", "code": 402, "msg": "auth failed"},
		{"T": "b", "S": "SPY"},
	})
	require.NoError(t, err)

	recs, err := Msgpack{}.Decode(frame)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	code, ok := recs[0].Int("code")
	require.True(t, ok)
	assert.Equal(t, int64(402), code)
	assert.Equal(t, "SPY", recs[1].Symbol())
}

func TestRecord_Int(t *testing.T) {
	r := Record{"f": float64(406), "i8": int8(3), "u16": uint16(409), "s": "x"}

	v, ok := r.Int("f")
	assert.True(t, ok)
	assert.Equal(t, int64(406), v)

	v, ok = r.Int("i8")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	v, ok = r.Int("u16")
	assert.True(t, ok)
	assert.Equal(t, int64(409), v)

	_, ok = r.Int("s")
	assert.False(t, ok)

	_, ok = r.Int("missing")
	assert.False(t, ok)
}

func TestAsRecord(t *testing.T) {
	rec, ok := AsRecord(map[any]any{"event": "fill", "qty": 2})
	require.True(t, ok)
	assert.Equal(t, "fill", rec.Str("event"))

	_, ok = AsRecord(map[any]any{1: "x"})
	assert.False(t, ok)

	_, ok = AsRecord(nil)
	assert.False(t, ok)
}
