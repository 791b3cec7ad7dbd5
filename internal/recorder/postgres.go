package recorder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/marketstream/internal/codec"
)

const insertEvent = `
	INSERT INTO stream_events (stream, category, symbol, session, received_at, payload)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// PostgresSink inserts events into the stream_events table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink wraps an open pool. Close closes the pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, events []Event) error {
	batch, err := buildBatch(events)
	if err != nil {
		return err
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

// buildBatch queues one insert per event with the payload as JSON.
func buildBatch(events []Event) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, ev := range events {
		payload, err := codec.JSON{}.Encode(map[string]any(ev.Payload))
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", ev.Category, err)
		}
		batch.Queue(insertEvent, ev.Stream, ev.Category, ev.Symbol, ev.Session, ev.ReceivedAt, payload)
	}
	return batch, nil
}
