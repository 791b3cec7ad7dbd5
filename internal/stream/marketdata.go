package stream

import (
	"errors"
	"fmt"

	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/events"
)

// Kind selects a market data endpoint.
type Kind string

const (
	KindStocks Kind = "stocks"
	KindCrypto Kind = "crypto"
	KindNews   Kind = "news"
)

// DefaultFeed is the stock feed used when none is configured.
const DefaultFeed = "iex"

// Market data categories. Subscriptions are keyed by the first eight;
// corrections and cancel errors arrive alongside trades.
const (
	CategoryTrades       = "trades"
	CategoryQuotes       = "quotes"
	CategoryBars         = "bars"
	CategoryDailyBars    = "dailyBars"
	CategoryUpdatedBars  = "updatedBars"
	CategoryStatuses     = "statuses"
	CategoryLULDs        = "lulds"
	CategoryNews         = "news"
	CategoryCorrections  = "corrections"
	CategoryCancelErrors = "cancelErrors"
)

var ErrUnknownKind = errors.New("unknown market data kind")

// MarketDataCategories lists every category a market data stream emits.
var MarketDataCategories = []string{
	CategoryTrades, CategoryQuotes, CategoryBars, CategoryDailyBars,
	CategoryUpdatedBars, CategoryStatuses, CategoryLULDs, CategoryNews,
	CategoryCorrections, CategoryCancelErrors,
}

// marketDataTypes maps the record discriminant to its category.
var marketDataTypes = map[string]string{
	"t": CategoryTrades,
	"q": CategoryQuotes,
	"b": CategoryBars,
	"d": CategoryDailyBars,
	"u": CategoryUpdatedBars,
	"s": CategoryStatuses,
	"l": CategoryLULDs,
	"n": CategoryNews,
	"c": CategoryCorrections,
	"x": CategoryCancelErrors,
}

// ClassifyMarketData routes a market data record by its "T" field.
func ClassifyMarketData(rec codec.Record) (string, bool) {
	category, ok := marketDataTypes[rec.Str("T")]
	return category, ok
}

// MarketDataConfig configures a MarketData facade.
type MarketDataConfig struct {
	Options
	Kind    Kind   // stocks when empty
	Feed    string // Stock feed, e.g. iex or sip
	Sandbox bool   // Use the sandbox host
}

// MarketDataURL returns the endpoint for kind.
func MarketDataURL(kind Kind, feed string, sandbox bool) (string, error) {
	host := "stream.data.alpaca.markets"
	if sandbox {
		host = "stream.data.sandbox.alpaca.markets"
	}

	switch kind {
	case KindStocks, "":
		if feed == "" {
			feed = DefaultFeed
		}
		return fmt.Sprintf("wss://%s/v2/%s", host, feed), nil
	case KindCrypto:
		return fmt.Sprintf("wss://%s/v1beta3/crypto/us", host), nil
	case KindNews:
		return fmt.Sprintf("wss://%s/v1beta1/news", host), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// MarketData streams trades, quotes, bars, statuses, LULD bands and news.
type MarketData struct {
	*Client
	kind Kind
}

// NewMarketData creates a disconnected market data stream.
func NewMarketData(cfg MarketDataConfig) (*MarketData, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindStocks
	}
	url, err := MarketDataURL(cfg.Kind, cfg.Feed, cfg.Sandbox)
	if err != nil {
		return nil, err
	}

	c, err := newClient(string(cfg.Kind), url, cfg.Options, MarketDataCategories, ClassifyMarketData)
	if err != nil {
		return nil, err
	}
	return &MarketData{Client: c, kind: cfg.Kind}, nil
}

// Kind returns the endpoint kind.
func (m *MarketData) Kind() Kind {
	return m.kind
}

func (m *MarketData) SubscribeForTrades(symbols ...string) {
	m.subscribe(CategoryTrades, symbols)
}

func (m *MarketData) UnsubscribeFromTrades(symbols ...string) {
	m.unsubscribe(CategoryTrades, symbols)
}

func (m *MarketData) SubscribeForQuotes(symbols ...string) {
	m.subscribe(CategoryQuotes, symbols)
}

func (m *MarketData) UnsubscribeFromQuotes(symbols ...string) {
	m.unsubscribe(CategoryQuotes, symbols)
}

func (m *MarketData) SubscribeForBars(symbols ...string) {
	m.subscribe(CategoryBars, symbols)
}

func (m *MarketData) UnsubscribeFromBars(symbols ...string) {
	m.unsubscribe(CategoryBars, symbols)
}

func (m *MarketData) SubscribeForDailyBars(symbols ...string) {
	m.subscribe(CategoryDailyBars, symbols)
}

func (m *MarketData) UnsubscribeFromDailyBars(symbols ...string) {
	m.unsubscribe(CategoryDailyBars, symbols)
}

func (m *MarketData) SubscribeForUpdatedBars(symbols ...string) {
	m.subscribe(CategoryUpdatedBars, symbols)
}

func (m *MarketData) UnsubscribeFromUpdatedBars(symbols ...string) {
	m.unsubscribe(CategoryUpdatedBars, symbols)
}

func (m *MarketData) SubscribeForStatuses(symbols ...string) {
	m.subscribe(CategoryStatuses, symbols)
}

func (m *MarketData) UnsubscribeFromStatuses(symbols ...string) {
	m.unsubscribe(CategoryStatuses, symbols)
}

func (m *MarketData) SubscribeForLULDs(symbols ...string) {
	m.subscribe(CategoryLULDs, symbols)
}

func (m *MarketData) UnsubscribeFromLULDs(symbols ...string) {
	m.unsubscribe(CategoryLULDs, symbols)
}

// SubscribeForNews subscribes to news for symbols; "*" selects all news.
func (m *MarketData) SubscribeForNews(symbols ...string) {
	m.subscribe(CategoryNews, symbols)
}

func (m *MarketData) UnsubscribeFromNews(symbols ...string) {
	m.unsubscribe(CategoryNews, symbols)
}

func (m *MarketData) OnTrade(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryTrades, fn)
}

func (m *MarketData) OnQuote(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryQuotes, fn)
}

func (m *MarketData) OnBar(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryBars, fn)
}

func (m *MarketData) OnDailyBar(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryDailyBars, fn)
}

func (m *MarketData) OnUpdatedBar(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryUpdatedBars, fn)
}

func (m *MarketData) OnStatus(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryStatuses, fn)
}

func (m *MarketData) OnLULD(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryLULDs, fn)
}

func (m *MarketData) OnNews(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryNews, fn)
}

func (m *MarketData) OnCorrection(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryCorrections, fn)
}

func (m *MarketData) OnCancelError(fn func(codec.Record) error) events.HandlerID {
	return m.on(CategoryCancelErrors, fn)
}
