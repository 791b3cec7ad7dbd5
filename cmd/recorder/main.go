// recorder connects to a configured stream and persists every record to the
// enabled sinks (Postgres, NATS, Redis Streams), serving /health and /metrics.
// Usage: go run ./cmd/recorder --config configs/recorder.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/marketstream/internal/config"
	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/database"
	"github.com/rickgao/marketstream/internal/metrics"
	"github.com/rickgao/marketstream/internal/recorder"
	"github.com/rickgao/marketstream/internal/stream"
	"github.com/rickgao/marketstream/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/recorder.example.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"stream", cfg.Stream.Type,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("recorder failed", "error", err)
		os.Exit(1)
	}
	logger.Info("recorder stopped")
}

func run(cfg *config.StreamConfig, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	sinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rec, err := recorder.New(recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferSize:    cfg.Recorder.BufferSize,
	}, sinks, m, logger)
	if err != nil {
		for _, s := range sinks {
			s.Close()
		}
		return err
	}

	client, err := stream.FromConfig(cfg, logger, m)
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	rec.Attach(client)
	client.OnError(func(err error) {
		var serr *connection.ServerError
		if errors.As(err, &serr) && serr.IsAuth() {
			logger.Error("stream rejected credentials, shutting down", "code", serr.Code)
			cancel()
		}
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHandler(cfg.Metrics.Path, client, rec, registry),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return rec.Run(gctx, shutdownTimeout)
	})

	g.Go(func() error {
		client.Connect()
		<-gctx.Done()
		logger.Info("shutting down...")
		client.Disconnect()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("recorder running",
		"stream", client.Name(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	return g.Wait()
}

// openSinks connects every enabled sink. On error, sinks already opened are closed.
func openSinks(ctx context.Context, cfg *config.StreamConfig, logger *slog.Logger) ([]recorder.Sink, error) {
	var sinks []recorder.Sink
	fail := func(err error) ([]recorder.Sink, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	rc := cfg.Recorder
	if rc.Postgres.Enabled {
		logger.Info("connecting to database",
			"host", rc.Postgres.Host,
			"port", rc.Postgres.Port,
			"database", rc.Postgres.Name,
		)
		pool, err := database.Connect(ctx, rc.Postgres)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return fail(err)
		}
		sinks = append(sinks, recorder.NewPostgresSink(pool))
	}

	if rc.NATS.Enabled {
		logger.Info("connecting to nats", "url", rc.NATS.URL)
		nc, err := recorder.DialNATS(rc.NATS.URL, "marketstream-recorder")
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, recorder.NewNATSSink(nc, rc.NATS.SubjectPrefix))
	}

	if rc.Redis.Enabled {
		logger.Info("connecting to redis", "addr", rc.Redis.Addr)
		client, err := recorder.DialRedis(ctx, rc.Redis.Addr, rc.Redis.Password, rc.Redis.DB)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, recorder.NewRedisSink(client, rc.Redis.StreamPrefix, rc.Redis.MaxLen))
	}

	if len(sinks) == 0 {
		logger.Warn("no recorder sinks enabled")
		return nil, recorder.ErrNoSinks
	}
	return sinks, nil
}
