package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/marketstream/internal/codec"
)

// RedisSink appends events to one Redis stream per category.
type RedisSink struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisSink wraps a client. Streams are trimmed to about maxLen entries.
func NewRedisSink(client *redis.Client, prefix string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, maxLen: maxLen}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, events []Event) error {
	args := make([]*redis.XAddArgs, 0, len(events))
	for _, ev := range events {
		a, err := xaddArgs(s.prefix, s.maxLen, ev)
		if err != nil {
			return err
		}
		args = append(args, a)
	}

	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, a := range args {
			p.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd %d events: %w", len(events), err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// StreamKey returns the Redis stream holding category.
func StreamKey(prefix, category string) string {
	return prefix + ":" + category
}

func xaddArgs(prefix string, maxLen int64, ev Event) (*redis.XAddArgs, error) {
	payload, err := codec.JSON{}.Encode(map[string]any(ev.Payload))
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Category, err)
	}
	return &redis.XAddArgs{
		Stream: StreamKey(prefix, ev.Category),
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]any{
			"stream":      ev.Stream,
			"symbol":      ev.Symbol,
			"session":     ev.Session,
			"received_at": ev.ReceivedAt.UTC().Format(time.RFC3339Nano),
			"payload":     payload,
		},
	}, nil
}
