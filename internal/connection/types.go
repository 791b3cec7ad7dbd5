package connection

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrConnectTimeout  = errors.New("connection not ready before timeout")
	ErrQueueFull       = errors.New("pending queue full")
	ErrNoAuthPayload   = errors.New("no auth payload supplier configured")
)

// State is the connection state of an Engine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Control frame discriminants, carried in the "T" field.
const (
	FrameSuccess      = "success"
	FrameError        = "error"
	FrameSubscription = "subscription"

	MsgConnected     = "connected"
	MsgAuthenticated = "authenticated"
)

// DefaultAuthErrorCodes are server error codes that mean the credentials or
// the account cannot be used. They end the session without reconnecting.
var DefaultAuthErrorCodes = []int{401, 402, 406, 409}

// ServerError is an error frame reported by the server.
type ServerError struct {
	Code  int
	Msg   string
	Fatal bool // true for authentication-class codes
}

// IsAuth reports whether the error ended the session.
func (e *ServerError) IsAuth() bool { return e.Fatal }

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Msg)
}

// DecodeError wraps a frame that could not be decoded.
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d byte frame: %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// QueueError reports an item rejected by a full pending queue.
type QueueError struct {
	Queue    string // "messages" or "actions"
	Capacity int
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("%s queue full (capacity %d), dropping newest", e.Queue, e.Capacity)
}

func (e *QueueError) Unwrap() error { return ErrQueueFull }

// ConnectEvent is emitted when the stream becomes ready.
type ConnectEvent struct {
	Session  string // Identifier of the underlying connection
	Restored bool   // True when subscriptions were restored after a reconnect
}

// DisconnectEvent is emitted when an open stream goes down.
type DisconnectEvent struct {
	Session   string
	Requested bool  // True for a caller-initiated Disconnect
	Err       error // Cause of an involuntary disconnect
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL
	Header           http.Header   // Extra handshake headers
	Binary           bool          // Send binary frames instead of text
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// applyDefaults fills unset fields. A negative PingInterval disables the
// heartbeat.
func (c *ClientConfig) applyDefaults() {
	def := DefaultClientConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
}
