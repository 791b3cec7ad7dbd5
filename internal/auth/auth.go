// Package auth builds the authentication message sent once the server signals
// that the stream is connected.
package auth

import (
	"errors"
	"fmt"
)

// ActionAuth is the action name of the outbound auth message.
const ActionAuth = "auth"

// OAuthKey replaces the key id when authenticating with an OAuth token.
const OAuthKey = "oauth"

var (
	ErrMissingKey    = errors.New("API key id is required")
	ErrMissingSecret = errors.New("API secret key is required")
)

// Credentials holds either a key id/secret pair or an OAuth bearer token.
type Credentials struct {
	KeyID      string // API key id
	Secret     string // API secret key
	OAuthToken string // Replaces KeyID/Secret when set
}

// Message is the auth payload: {action: "auth", key: ..., secret: ...}.
type Message struct {
	Action string `json:"action" msgpack:"action"`
	Key    string `json:"key" msgpack:"key"`
	Secret string `json:"secret" msgpack:"secret"`
}

// Validate checks that one complete credential form is present.
func (c Credentials) Validate() error {
	if c.OAuthToken != "" {
		return nil
	}
	if c.KeyID == "" {
		return ErrMissingKey
	}
	if c.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}

// Payload returns the auth message for these credentials. The OAuth token
// takes precedence over a key pair.
func (c Credentials) Payload() Message {
	if c.OAuthToken != "" {
		return Message{Action: ActionAuth, Key: OAuthKey, Secret: c.OAuthToken}
	}
	return Message{Action: ActionAuth, Key: c.KeyID, Secret: c.Secret}
}

// Supplier returns a function producing the auth payload, as consumed by the
// connection engine.
func (c Credentials) Supplier() func() any {
	return func() any { return c.Payload() }
}

// String redacts secrets.
func (c Credentials) String() string {
	if c.OAuthToken != "" {
		return "oauth:" + redact(c.OAuthToken)
	}
	return fmt.Sprintf("%s:%s", c.KeyID, redact(c.Secret))
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}
