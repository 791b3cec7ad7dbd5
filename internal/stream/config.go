package stream

import (
	"fmt"
	"log/slog"

	"github.com/rickgao/marketstream/internal/auth"
	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/config"
	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/metrics"
)

// TypeTrading selects the trading stream in configuration.
const TypeTrading = "trading"

// FromConfig builds the configured stream and registers the configured
// subscriptions. The stream is not connected.
func FromConfig(cfg *config.StreamConfig, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	c, err := codec.New(cfg.Stream.Codec)
	if err != nil {
		return nil, err
	}

	engine := connection.DefaultEngineConfig()
	engine.ConnectTimeout = cfg.Stream.ConnectTimeout
	engine.ReconnectInitial = cfg.Reconnect.InitialDelay
	engine.ReconnectMax = cfg.Reconnect.MaxDelay
	engine.ReconnectMultiplier = cfg.Reconnect.Multiplier
	engine.MessageQueueSize = cfg.Queues.Messages
	engine.ActionQueueSize = cfg.Queues.Actions
	engine.Client.PingInterval = cfg.Stream.PingInterval
	engine.Client.PingTimeout = cfg.Stream.PingTimeout
	engine.Client.WriteTimeout = cfg.Stream.WriteTimeout

	opts := Options{
		URL: cfg.Stream.URL,
		Credentials: auth.Credentials{
			KeyID:      cfg.Stream.KeyID,
			Secret:     cfg.Stream.SecretKey,
			OAuthToken: cfg.Stream.OAuthToken,
		},
		Codec:   c,
		Engine:  engine,
		Logger:  logger,
		Metrics: m,
	}

	var client *Client
	if cfg.Stream.Type == TypeTrading {
		t, err := NewTrading(TradingConfig{Options: opts, Paper: cfg.Stream.Paper})
		if err != nil {
			return nil, err
		}
		client = t.Client
	} else {
		md, err := NewMarketData(MarketDataConfig{
			Options: opts,
			Kind:    Kind(cfg.Stream.Type),
			Feed:    cfg.Stream.Feed,
			Sandbox: cfg.Stream.Sandbox,
		})
		if err != nil {
			return nil, err
		}
		client = md.Client
	}

	for category, ids := range cfg.Stream.Subscriptions {
		if len(ids) == 0 {
			return nil, fmt.Errorf("subscription %s: no ids", category)
		}
		client.Subscribe(category, ids...)
	}
	return client, nil
}
