package recorder

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/rickgao/marketstream/internal/codec"
)

// NATSSink publishes each event as JSON on <prefix>.<category>.<symbol>.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// DialNATS connects to url with reconnects enabled.
func DialNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewNATSSink wraps an open connection. Close drains it.
func NewNATSSink(conn *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Write(ctx context.Context, events []Event) error {
	for _, ev := range events {
		data, err := codec.JSON{}.Encode(map[string]any(ev.Payload))
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ev.Category, err)
		}
		msg := &nats.Msg{Subject: Subject(s.prefix, ev), Data: data, Header: nats.Header{}}
		msg.Header.Set("Stream", ev.Stream)
		msg.Header.Set("Session", ev.Session)
		if err := s.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Subject, err)
		}
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

var subjectReplacer = strings.NewReplacer(".", "_", "/", "_", " ", "_", "*", "_", ">", "_")

// Subject returns the subject for ev. Tokens are sanitized so symbols such
// as BTC/USD or BRK.B stay a single token.
func Subject(prefix string, ev Event) string {
	symbol := ev.Symbol
	if symbol == "" {
		symbol = "_"
	}
	return prefix + "." + subjectReplacer.Replace(ev.Category) + "." + subjectReplacer.Replace(symbol)
}
