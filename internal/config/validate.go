package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	streamTypes = []string{"stocks", "crypto", "news", "trading"}
	codecNames  = []string{"json", "msgpack"}
	logFormats  = []string{"text", "json"}
)

// Validate checks that all required fields are set and values are valid.
func (c *StreamConfig) Validate() error {
	if !oneOf(c.Stream.Type, streamTypes) {
		return fmt.Errorf("stream.type must be one of %s, got %q", strings.Join(streamTypes, ", "), c.Stream.Type)
	}
	if !oneOf(c.Stream.Codec, codecNames) {
		return fmt.Errorf("stream.codec must be one of %s, got %q", strings.Join(codecNames, ", "), c.Stream.Codec)
	}
	if c.Stream.OAuthToken == "" {
		if c.Stream.KeyID == "" {
			return errors.New("stream.key_id is required (or set APCA_API_KEY_ID)")
		}
		if c.Stream.SecretKey == "" {
			return errors.New("stream.secret_key is required (or set APCA_API_SECRET_KEY)")
		}
	}
	for category, ids := range c.Stream.Subscriptions {
		if len(ids) == 0 {
			return fmt.Errorf("stream.subscriptions.%s must list at least one id", category)
		}
	}

	if c.Reconnect.InitialDelay <= 0 {
		return errors.New("reconnect.initial_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be less than initial_delay (%s)", c.Reconnect.MaxDelay, c.Reconnect.InitialDelay)
	}
	if c.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be >= 1, got %g", c.Reconnect.Multiplier)
	}

	if c.Queues.Messages < 1 {
		return errors.New("queues.messages must be >= 1")
	}
	if c.Queues.Actions < 1 {
		return errors.New("queues.actions must be >= 1")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if !oneOf(c.Log.Format, logFormats) {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.BufferSize < c.Recorder.BatchSize {
		return fmt.Errorf("recorder.buffer_size (%d) cannot be less than batch_size (%d)", c.Recorder.BufferSize, c.Recorder.BatchSize)
	}
	if c.Recorder.Postgres.Enabled {
		if err := c.Recorder.Postgres.validate("recorder.postgres"); err != nil {
			return err
		}
	}
	if c.Recorder.Redis.Enabled && c.Recorder.Redis.Addr == "" {
		return errors.New("recorder.redis.addr is required")
	}
	if c.Recorder.NATS.Enabled && c.Recorder.NATS.URL == "" {
		return errors.New("recorder.nats.url is required")
	}

	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// AnySinkEnabled reports whether the recorder has somewhere to write.
func (r RecorderConfig) AnySinkEnabled() bool {
	return r.Postgres.Enabled || r.NATS.Enabled || r.Redis.Enabled
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
