package stream

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rickgao/marketstream/internal/auth"
	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/events"
	"github.com/rickgao/marketstream/internal/metrics"
	"github.com/rickgao/marketstream/internal/subscription"
	"github.com/rickgao/marketstream/internal/version"
)

// Options are shared by every facade.
type Options struct {
	URL         string // Overrides the endpoint derived from the facade config
	Credentials auth.Credentials
	Codec       codec.Codec             // JSON when nil
	Engine      connection.EngineConfig // Timings and queue bounds; zero values take defaults
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Client is the facade base: one engine, one subscription set and one
// dispatcher.
type Client struct {
	name       string
	categories []string
	engine     *connection.Engine
	subs       *subscription.Manager
	events     *events.Dispatcher
	logger     *slog.Logger

	// epoch advances on every restore; queued subscription actions created
	// under an older epoch were already covered by the restore snapshot.
	// syncMu makes a set change and its epoch capture atomic with respect to
	// a restore's epoch bump and snapshot.
	syncMu sync.Mutex
	epoch  atomic.Uint64
}

func newClient(name, url string, opts Options, categories []string, classify connection.Classifier) (*Client, error) {
	if err := opts.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("%s credentials: %w", name, err)
	}
	if opts.URL != "" {
		url = opts.URL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "stream")

	c := &Client{
		name:       name,
		categories: categories,
		subs:       subscription.NewManager(),
		events:     events.NewDispatcher(logger),
		logger:     logger.With("stream", name),
	}
	if opts.Metrics != nil {
		m := opts.Metrics
		c.events.SetFailureHook(func(category string) { m.HandlerFailure(name, category) })
	}

	cfg := opts.Engine
	cfg.Client.Header = cfg.Client.Header.Clone()
	if cfg.Client.Header == nil {
		cfg.Client.Header = http.Header{}
	}
	cfg.Client.Header.Set("User-Agent", version.UserAgent())
	cfg.Name = name
	cfg.URL = url
	cfg.Codec = opts.Codec
	cfg.Auth = opts.Credentials.Supplier()
	cfg.Classify = classify
	cfg.Restore = c.restore

	c.engine = connection.NewEngine(cfg, c.events, opts.Metrics, logger)
	return c, nil
}

// Connect starts connecting in the background. Readiness is reported to
// OnConnect handlers.
func (c *Client) Connect() {
	c.engine.Connect()
}

// Disconnect closes the stream and discards queued work. Tracked
// subscriptions are kept and sent again on the next Connect.
func (c *Client) Disconnect() {
	c.engine.Disconnect()
}

// IsConnected reports whether the stream is authenticated.
func (c *Client) IsConnected() bool {
	return c.engine.IsConnected()
}

// State returns the engine state.
func (c *Client) State() connection.State {
	return c.engine.State()
}

// Send transmits an arbitrary payload, queueing it until the stream is ready.
func (c *Client) Send(payload any) {
	c.engine.Send(payload)
}

// Subscriptions returns the tracked ids of category.
func (c *Client) Subscriptions(category string) []string {
	return c.subs.Tracked(category)
}

// OnConnect registers fn for stream readiness.
func (c *Client) OnConnect(fn func(connection.ConnectEvent)) events.HandlerID {
	return c.events.On(events.CategoryConnect, func(p any) error {
		ev, _ := p.(connection.ConnectEvent)
		fn(ev)
		return nil
	})
}

// OnDisconnect registers fn for lost or closed connections.
func (c *Client) OnDisconnect(fn func(connection.DisconnectEvent)) events.HandlerID {
	return c.events.On(events.CategoryDisconnect, func(p any) error {
		ev, _ := p.(connection.DisconnectEvent)
		fn(ev)
		return nil
	})
}

// OnError registers fn for every error reported by the stream.
func (c *Client) OnError(fn func(error)) events.HandlerID {
	return c.events.On(events.CategoryError, func(p any) error {
		if err, ok := p.(error); ok {
			fn(err)
		}
		return nil
	})
}

// OnSubscription registers fn for server subscription acknowledgements.
func (c *Client) OnSubscription(fn func(codec.Record)) events.HandlerID {
	return c.on(events.CategorySubscription, func(rec codec.Record) error {
		fn(rec)
		return nil
	})
}

// Off removes a handler registered under category.
func (c *Client) Off(category string, id events.HandlerID) {
	c.events.Off(category, id)
}

// Name returns the stream name used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// Categories lists the record categories this stream emits.
func (c *Client) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Subscribe adds ids to category and sends the delta.
func (c *Client) Subscribe(category string, ids ...string) {
	c.subscribe(category, ids)
}

// Unsubscribe removes ids from category and sends the delta.
func (c *Client) Unsubscribe(category string, ids ...string) {
	c.unsubscribe(category, ids)
}

// OnRecord registers fn for records of category.
func (c *Client) OnRecord(category string, fn func(codec.Record) error) events.HandlerID {
	return c.on(category, fn)
}

// on registers a record handler under category.
func (c *Client) on(category string, fn func(codec.Record) error) events.HandlerID {
	return c.events.On(category, func(p any) error {
		rec, ok := p.(codec.Record)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", category, p)
		}
		return fn(rec)
	})
}

func (c *Client) subscribe(category string, ids []string) {
	c.syncMu.Lock()
	msg := c.subs.Subscribe(category, ids)
	epoch := c.epoch.Load()
	c.syncMu.Unlock()
	c.apply(msg, epoch)
}

func (c *Client) unsubscribe(category string, ids []string) {
	c.syncMu.Lock()
	msg := c.subs.Unsubscribe(category, ids)
	epoch := c.epoch.Load()
	c.syncMu.Unlock()
	c.apply(msg, epoch)
}

// apply sends a subscription delta now or once ready. The delta is skipped
// when a restore after epoch already sent the full set.
func (c *Client) apply(msg *subscription.Message, epoch uint64) {
	if msg == nil {
		return
	}
	c.engine.QueueOrRun(func(w connection.Writer) {
		if c.epoch.Load() != epoch {
			c.logger.Debug("delta covered by restore", "action", msg.Action, "category", msg.Category)
			return
		}
		if err := w.Write(*msg); err == nil {
			c.logger.Debug("subscription sent", "action", msg.Action, "category", msg.Category, "ids", msg.IDs)
		}
	})
}

// restore resends the full tracked set after a reconnect.
func (c *Client) restore(w connection.Writer) {
	c.syncMu.Lock()
	c.epoch.Add(1)
	snapshot := c.subs.Snapshot()
	c.syncMu.Unlock()
	for _, msg := range snapshot {
		w.Write(msg)
	}
	c.logger.Info("subscriptions restored", "categories", len(snapshot), "ids", c.subs.Len())
}
