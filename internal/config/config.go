package config

import "time"

// StreamConfig is the root configuration for a stream process.
type StreamConfig struct {
	Stream    StreamSettings  `yaml:"stream"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Queues    QueuesConfig    `yaml:"queues"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

// StreamSettings selects the endpoint, wire format and credentials.
type StreamSettings struct {
	Type    string `yaml:"type"`    // stocks, crypto, news or trading
	Feed    string `yaml:"feed"`    // Stock feed (iex, sip, ...)
	Sandbox bool   `yaml:"sandbox"` // Market data sandbox host
	Paper   bool   `yaml:"paper"`   // Paper trading endpoint
	URL     string `yaml:"url"`     // Overrides the derived endpoint
	Codec   string `yaml:"codec"`   // json or msgpack

	KeyID      string `yaml:"key_id"`
	SecretKey  string `yaml:"secret_key"`
	OAuthToken string `yaml:"oauth_token"`

	// Subscriptions maps a category (trades, quotes, ...) to ids.
	Subscriptions map[string][]string `yaml:"subscriptions"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// ReconnectConfig holds the exponential backoff policy.
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// QueuesConfig bounds the queues used while the stream is not ready.
type QueuesConfig struct {
	Messages int `yaml:"messages"`
	Actions  int `yaml:"actions"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// RecorderConfig holds batch writer settings and sinks.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`

	Postgres DBConfig    `yaml:"postgres"`
	NATS     NATSConfig  `yaml:"nats"`
	Redis    RedisConfig `yaml:"redis"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// NATSConfig publishes records to <subject_prefix>.<category>.<symbol>.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RedisConfig appends records to the stream <stream_prefix>:<category>.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamPrefix string `yaml:"stream_prefix"`
	MaxLen       int64  `yaml:"max_len"`
}
