package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rickgao/marketstream/internal/codec"
)

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{name: "key pair", creds: Credentials{KeyID: "k", Secret: "s"}},
		{name: "oauth only", creds: Credentials{OAuthToken: "tok"}},
		{name: "missing key", creds: Credentials{Secret: "s"}, want: ErrMissingKey},
		{name: "missing secret", creds: Credentials{KeyID: "k"}, want: ErrMissingSecret},
		{name: "empty", creds: Credentials{}, want: ErrMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.creds.Validate())
		})
	}
}

func TestCredentials_Payload(t *testing.T) {
	pair := Credentials{KeyID: "AK123", Secret: "shh"}
	assert.Equal(t, Message{Action: "auth", Key: "AK123", Secret: "shh"}, pair.Payload())

	oauth := Credentials{KeyID: "AK123", Secret: "shh", OAuthToken: "bearer-token"}
	assert.Equal(t, Message{Action: "auth", Key: "oauth", Secret: "bearer-token"}, oauth.Payload())
}

func TestCredentials_SupplierEncodesInBothCodecs(t *testing.T) {
	supply := Credentials{KeyID: "AK123", Secret: "shh"}.Supplier()

	data, err := codec.JSON{}.Encode(supply())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"action":"auth","key":"AK123","secret":"shh"}`, string(data))

	mp := codec.Msgpack{}
	data, err = mp.Encode(supply())
	assert.NoError(t, err)
	recs, err := mp.Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, "AK123", recs[0].Str("key"))
	assert.Equal(t, "auth", recs[0].Str("action"))
}

func TestCredentials_StringRedacts(t *testing.T) {
	assert.Equal(t, "AK123:***REDACTED***", Credentials{KeyID: "AK123", Secret: "shh"}.String())
	assert.NotContains(t, Credentials{OAuthToken: "tok"}.String(), "tok")
}
