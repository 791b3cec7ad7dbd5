package stream

import (
	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/events"
)

const (
	// CategoryStreams is the subscription category of the trading stream.
	CategoryStreams = "streams"
	// CategoryTradeUpdates is both the stream id and the handler category.
	CategoryTradeUpdates = "trade_updates"

	tradeUpdateType = "trade_update"
)

const (
	TradingURL      = "wss://api.alpaca.markets/stream"
	PaperTradingURL = "wss://paper-api.alpaca.markets/stream"
)

// ClassifyTrading routes order lifecycle notifications.
func ClassifyTrading(rec codec.Record) (string, bool) {
	if rec.Str("stream") == CategoryTradeUpdates || rec.Str("T") == tradeUpdateType {
		return CategoryTradeUpdates, true
	}
	return "", false
}

// TradingConfig configures a Trading facade.
type TradingConfig struct {
	Options
	Paper bool // Use the paper trading endpoint
}

// Trading streams order updates for the authenticated account.
type Trading struct {
	*Client
}

// NewTrading creates a disconnected trading stream.
func NewTrading(cfg TradingConfig) (*Trading, error) {
	url := TradingURL
	if cfg.Paper {
		url = PaperTradingURL
	}
	c, err := newClient("trading", url, cfg.Options, []string{CategoryTradeUpdates}, ClassifyTrading)
	if err != nil {
		return nil, err
	}
	return &Trading{Client: c}, nil
}

func (t *Trading) SubscribeForTradeUpdates() {
	t.subscribe(CategoryStreams, []string{CategoryTradeUpdates})
}

func (t *Trading) UnsubscribeFromTradeUpdates() {
	t.unsubscribe(CategoryStreams, []string{CategoryTradeUpdates})
}

// OnTradeUpdate registers fn for order updates. Enveloped updates
// ({stream, data}) are unwrapped to their data record.
func (t *Trading) OnTradeUpdate(fn func(codec.Record) error) events.HandlerID {
	return t.on(CategoryTradeUpdates, func(rec codec.Record) error {
		if data, ok := codec.AsRecord(rec["data"]); ok {
			return fn(data)
		}
		return fn(rec)
	})
}
