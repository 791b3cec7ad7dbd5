package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultStreamType      = "stocks"
	DefaultFeed            = "iex"
	DefaultCodec           = "json"
	DefaultConnectTimeout  = 30 * time.Second
	DefaultPingInterval    = 30 * time.Second
	DefaultPingTimeout     = 90 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultInitialDelay    = 1 * time.Second
	DefaultMaxDelay        = 30 * time.Second
	DefaultMultiplier      = 2.0
	DefaultQueueSize       = 1000
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultBatchSize       = 500
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 10000
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultNATSURL         = "nats://127.0.0.1:4222"
	DefaultSubjectPrefix   = "marketstream"
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisPrefix     = "marketstream"
	DefaultRedisStreamSize = 100000
)

func (c *StreamConfig) applyDefaults() {
	// Stream defaults
	if c.Stream.Type == "" {
		c.Stream.Type = DefaultStreamType
	}
	if c.Stream.Feed == "" {
		c.Stream.Feed = DefaultFeed
	}
	if c.Stream.Codec == "" {
		c.Stream.Codec = DefaultCodec
	}
	if c.Stream.ConnectTimeout == 0 {
		c.Stream.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}

	// Reconnect defaults
	if c.Reconnect.InitialDelay == 0 {
		c.Reconnect.InitialDelay = DefaultInitialDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = DefaultMultiplier
	}

	// Queue defaults
	if c.Queues.Messages == 0 {
		c.Queues.Messages = DefaultQueueSize
	}
	if c.Queues.Actions == 0 {
		c.Queues.Actions = DefaultQueueSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Recorder.Postgres)
	if c.Recorder.NATS.URL == "" {
		c.Recorder.NATS.URL = DefaultNATSURL
	}
	if c.Recorder.NATS.SubjectPrefix == "" {
		c.Recorder.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Recorder.Redis.Addr == "" {
		c.Recorder.Redis.Addr = DefaultRedisAddr
	}
	if c.Recorder.Redis.StreamPrefix == "" {
		c.Recorder.Redis.StreamPrefix = DefaultRedisPrefix
	}
	if c.Recorder.Redis.MaxLen == 0 {
		c.Recorder.Redis.MaxLen = DefaultRedisStreamSize
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
