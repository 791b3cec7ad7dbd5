// streamtest connects to a market data or trading stream and prints records to console.
// Usage: go run ./cmd/streamtest --type stocks --trades AAPL,MSFT --quotes AAPL
//
// Required environment variables (unless --config provides them):
//
//	APCA_API_KEY_ID     - API key id
//	APCA_API_SECRET_KEY - API secret key
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/config"
	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "path to config file (flags below are ignored when set)")
	streamType := flag.String("type", "stocks", "stream type: stocks, crypto, news or trading")
	feed := flag.String("feed", "iex", "stock feed")
	codecName := flag.String("codec", "json", "wire codec: json or msgpack")
	paper := flag.Bool("paper", true, "use the paper trading endpoint")
	trades := flag.String("trades", "", "comma-separated symbols for trades")
	quotes := flag.String("quotes", "", "comma-separated symbols for quotes")
	bars := flag.String("bars", "", "comma-separated symbols for bars")
	news := flag.String("news", "", "comma-separated symbols for news (* for all)")
	verbose := flag.Bool("verbose", false, "print full record JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	var cfg *config.StreamConfig
	var err error
	if *configPath != "" {
		cfg, err = config.LoadAndValidate(*configPath)
	} else {
		cfg, err = flagConfig(*streamType, *feed, *codecName, *paper, map[string]string{
			stream.CategoryTrades: *trades,
			stream.CategoryQuotes: *quotes,
			stream.CategoryBars:   *bars,
			stream.CategoryNews:   *news,
		})
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client, err := stream.FromConfig(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to create stream", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	counts := make(map[string]int)
	countCh := make(chan string, 1024)
	for _, category := range client.Categories() {
		client.OnRecord(category, func(rec codec.Record) error {
			printRecord(category, rec, *verbose)
			select {
			case countCh <- category:
			default:
			}
			return nil
		})
	}
	client.OnConnect(func(ev connection.ConnectEvent) {
		logger.Info("stream ready", "session", ev.Session, "restored", ev.Restored)
	})
	client.OnDisconnect(func(ev connection.DisconnectEvent) {
		logger.Warn("stream disconnected", "requested", ev.Requested, "error", ev.Err)
	})
	client.OnError(func(err error) {
		logger.Error("stream error", "error", err)
	})
	client.OnSubscription(func(rec codec.Record) {
		fmt.Printf("[SUBSCRIPTION] %s\n", formatRecord(rec))
	})

	logger.Info("connecting", "stream", client.Name(), "codec", cfg.Stream.Codec)
	client.Connect()

	// Stats printer
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	logger.Info("streaming started - press Ctrl+C to stop")
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case category := <-countCh:
			counts[category]++
		case <-ticker.C:
			logger.Info("stats", "state", client.State(), "received", fmt.Sprint(counts))
		}
	}

	logger.Info("shutting down...")
	client.Disconnect()
	logger.Info("shutdown complete")
}

// flagConfig builds a validated config from command line flags and the
// APCA_API_* environment.
func flagConfig(streamType, feed, codecName string, paper bool, lists map[string]string) (*config.StreamConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Stream.Type = streamType
	cfg.Stream.Feed = feed
	cfg.Stream.Codec = codecName
	cfg.Stream.Paper = paper

	cfg.Stream.Subscriptions = make(map[string][]string)
	for category, list := range lists {
		if ids := splitList(list); len(ids) > 0 {
			cfg.Stream.Subscriptions[category] = ids
		}
	}
	if streamType == stream.TypeTrading {
		cfg.Stream.Subscriptions = map[string][]string{
			stream.CategoryStreams: {stream.CategoryTradeUpdates},
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printRecord(category string, rec codec.Record, verbose bool) {
	label := strings.ToUpper(category)
	if verbose {
		data, _ := sonic.ConfigStd.MarshalIndent(rec, "", "  ")
		fmt.Printf("[%s] %s\n", label, data)
		return
	}
	fmt.Printf("[%s] %s\n", label, formatRecord(rec))
}

// formatRecord renders a record as sorted key=value pairs.
func formatRecord(rec codec.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, rec[k]))
	}
	return strings.Join(parts, " ")
}
