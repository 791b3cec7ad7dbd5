package connection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/oklog/ulid/v2"

	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/events"
	"github.com/rickgao/marketstream/internal/metrics"
	"github.com/rickgao/marketstream/internal/queue"
)

// Writer transmits a payload on the live connection.
type Writer interface {
	Write(payload any) error
}

// Action is deferred work run once the stream is ready. It runs while the
// engine is locked and must only use w, never call back into the Engine.
type Action func(w Writer)

// Classifier maps a non-control record to a handler category.
// ok is false for records that should be dropped.
type Classifier func(rec codec.Record) (category string, ok bool)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Name   string // Stream name used in logs and metrics
	URL    string
	Codec  codec.Codec
	Client ClientConfig // Transport template; URL and Binary are set by the engine

	// Auth returns the payload sent once the server reports "connected".
	Auth func() any
	// Classify routes data records to categories.
	Classify Classifier
	// Restore replays durable state after a reconnect.
	Restore func(w Writer)

	ConnectTimeout      time.Duration
	ReconnectInitial    time.Duration
	ReconnectMax        time.Duration
	ReconnectMultiplier float64

	MessageQueueSize int
	ActionQueueSize  int

	// AuthErrorCodes end the session without reconnecting.
	AuthErrorCodes []int
}

// DefaultEngineConfig returns the standard timings and queue bounds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Client:              DefaultClientConfig(),
		ConnectTimeout:      30 * time.Second,
		ReconnectInitial:    time.Second,
		ReconnectMax:        30 * time.Second,
		ReconnectMultiplier: 2,
		MessageQueueSize:    queue.DefaultCapacity,
		ActionQueueSize:     queue.DefaultCapacity,
		AuthErrorCodes:      DefaultAuthErrorCodes,
	}
}

func (c *EngineConfig) applyDefaults() {
	def := DefaultEngineConfig()
	if c.Name == "" {
		c.Name = "stream"
	}
	if c.Codec == nil {
		c.Codec = codec.JSON{}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = def.ReconnectInitial
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = def.ReconnectMax
	}
	if c.ReconnectMultiplier < 1 {
		c.ReconnectMultiplier = def.ReconnectMultiplier
	}
	if c.MessageQueueSize <= 0 {
		c.MessageQueueSize = def.MessageQueueSize
	}
	if c.ActionQueueSize <= 0 {
		c.ActionQueueSize = def.ActionQueueSize
	}
	if c.AuthErrorCodes == nil {
		c.AuthErrorCodes = def.AuthErrorCodes
	}
	c.Client.applyDefaults()
}

// timer is the subset of *time.Timer the engine needs.
type timer interface {
	Stop() bool
}

type emission struct {
	category string
	payload  any
}

// Engine manages one logical stream across any number of connections.
type Engine struct {
	cfg     EngineConfig
	events  *events.Dispatcher
	metrics *metrics.Metrics
	logger  *slog.Logger

	// Test seams.
	newClient func(ClientConfig, *slog.Logger) Client
	afterFunc func(time.Duration, func()) timer

	mu            sync.Mutex
	state         State
	gen           uint64 // bumped per connection; stale callbacks compare against it
	session       string
	client        Client
	cancel        context.CancelFunc
	autoReconnect bool
	everConnected bool
	attempts      int
	backoff       *backoff.ExponentialBackOff
	lastDelay     time.Duration

	connectTimer   timer
	reconnectTimer timer
	reconnectToken uint64

	messages *queue.Bounded[any]
	actions  *queue.Bounded[Action]

	out []emission // emitted after unlock
}

// NewEngine creates a disconnected Engine. m may be nil.
func NewEngine(cfg EngineConfig, dispatcher *events.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = events.NewDispatcher(logger)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectInitial
	b.MaxInterval = cfg.ReconnectMax
	b.Multiplier = cfg.ReconnectMultiplier
	b.RandomizationFactor = 0
	b.Reset()

	return &Engine{
		cfg:       cfg,
		events:    dispatcher,
		metrics:   m,
		logger:    logger.With("stream", cfg.Name),
		newClient: NewClient,
		afterFunc: func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) },
		backoff:   b,
		messages:  queue.NewBounded[any](cfg.MessageQueueSize),
		actions:   queue.NewBounded[Action](cfg.ActionQueueSize),
	}
}

// Events returns the dispatcher the engine emits to.
func (e *Engine) Events() *events.Dispatcher {
	return e.events
}

// Connect starts connecting and enables auto-reconnect. It returns
// immediately; readiness is reported on the connect category. Calling it
// while a connection is in progress or open does nothing.
func (e *Engine) Connect() {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.state != StateDisconnected {
		return
	}
	e.autoReconnect = true
	e.stopTimer(&e.reconnectTimer)
	e.openLocked()
}

// Disconnect closes the connection, disables auto-reconnect and discards
// everything still pending.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.unlockAndEmit()

	e.autoReconnect = false
	e.stopTimer(&e.reconnectTimer)
	dropped := e.messages.Clear() + e.actions.Clear()
	if dropped > 0 {
		e.logger.Debug("discarded pending work", "count", dropped)
	}

	if e.state == StateDisconnected {
		return
	}
	session := e.session
	e.teardownLocked()
	e.emitLocked(events.CategoryDisconnect, DisconnectEvent{Session: session, Requested: true})
}

// Send transmits payload now when ready, otherwise queues it. A ready send
// writes inline and is bounded by ClientConfig.WriteTimeout.
func (e *Engine) Send(payload any) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.state == StateConnected {
		e.transmitLocked(payload)
		return
	}
	if !e.messages.Push(payload) {
		e.rejectLocked("messages", e.messages.Cap())
	}
}

// QueueOrRun runs action now when ready, otherwise queues it. Writes made by
// a ready action share the WriteTimeout bound of Send.
func (e *Engine) QueueOrRun(action Action) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.state == StateConnected {
		e.runActionLocked(action)
		return
	}
	if !e.actions.Push(action) {
		e.rejectLocked("actions", e.actions.Cap())
	}
}

// State returns the current connection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsConnected reports whether the stream is authenticated and ready.
func (e *Engine) IsConnected() bool {
	return e.State() == StateConnected
}

// Attempts returns reconnect attempts since the last successful session.
func (e *Engine) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// Pending returns the number of queued messages and actions.
func (e *Engine) Pending() (messages, actions int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messages.Len(), e.actions.Len()
}

// Session returns the id of the current connection, or "" when down.
func (e *Engine) Session() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *Engine) unlockAndEmit() {
	out := e.out
	e.out = nil
	e.mu.Unlock()

	for _, ev := range out {
		e.events.Emit(ev.category, ev.payload)
	}
}

func (e *Engine) emitLocked(category string, payload any) {
	e.out = append(e.out, emission{category: category, payload: payload})
}

func (e *Engine) setStateLocked(s State) {
	if e.state == s {
		return
	}
	e.logger.Debug("state transition", "from", e.state, "to", s)
	e.state = s
	e.metrics.SetState(e.cfg.Name, int(s))
}

func (e *Engine) stopTimer(t *timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// openLocked starts a new connection attempt.
func (e *Engine) openLocked() {
	e.gen++
	gen := e.gen
	e.session = ulid.Make().String()

	cc := e.cfg.Client
	cc.URL = e.cfg.URL
	cc.Binary = e.cfg.Codec.Binary()

	client := e.newClient(cc, e.logger.With("session", e.session))
	ctx, cancel := context.WithCancel(context.Background())
	e.client = client
	e.cancel = cancel

	e.setStateLocked(StateConnecting)
	e.logger.Info("connecting", "url", e.cfg.URL, "session", e.session, "attempt", e.attempts)

	e.connectTimer = e.afterFunc(e.cfg.ConnectTimeout, func() {
		e.onConnectTimeout(gen)
	})

	go e.dial(ctx, gen, client)
}

// teardownLocked drops the current connection and invalidates its callbacks.
func (e *Engine) teardownLocked() {
	e.stopTimer(&e.connectTimer)
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.client != nil {
		if err := e.client.Close(); err != nil {
			e.logger.Debug("close connection", "error", err)
		}
		e.client = nil
	}
	e.gen++
	e.session = ""
	e.setStateLocked(StateDisconnected)
}

func (e *Engine) dial(ctx context.Context, gen uint64, client Client) {
	if err := client.Connect(ctx); err != nil {
		e.onTransportError(gen, fmt.Errorf("dial: %w", err))
		return
	}
	e.onOpen(ctx, gen, client)
}

func (e *Engine) onOpen(ctx context.Context, gen uint64, client Client) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if gen != e.gen {
		client.Close()
		return
	}
	e.setStateLocked(StateAuthenticating)
	go e.pump(ctx, gen, client)
}

// pump feeds one connection's frames and failure into the engine. Frames
// buffered before the failure are handled before it.
func (e *Engine) pump(ctx context.Context, gen uint64, client Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.Messages():
			e.onFrame(gen, msg)
		case err := <-client.Errors():
			e.drainFrames(gen, client)
			e.onTransportError(gen, err)
			return
		}
	}
}

// drainFrames handles every frame already buffered by client.
func (e *Engine) drainFrames(gen uint64, client Client) {
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			e.onFrame(gen, msg)
		default:
			return
		}
	}
}

func (e *Engine) onFrame(gen uint64, msg TimestampedMessage) {
	recs, err := e.cfg.Codec.Decode(msg.Data)
	if err != nil {
		derr := &DecodeError{Size: len(msg.Data), Err: err}
		e.metrics.DecodeError(e.cfg.Name)
		e.logger.Warn("failed to decode frame", "error", err, "size", len(msg.Data))
		e.events.Emit(events.CategoryError, derr)
		return
	}

	for _, rec := range recs {
		switch rec.Str("T") {
		case FrameSuccess, FrameError, FrameSubscription:
			e.onControl(gen, rec)
		default:
			if !e.current(gen) {
				return
			}
			e.dispatch(rec)
		}
	}
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen
}

func (e *Engine) dispatch(rec codec.Record) {
	kind := rec.Str("T")
	e.metrics.RecordReceived(e.cfg.Name, kind)

	if e.cfg.Classify == nil {
		return
	}
	category, ok := e.cfg.Classify(rec)
	if !ok {
		e.logger.Debug("dropping unclassified record", "kind", kind)
		return
	}
	e.events.Emit(category, rec)
}

func (e *Engine) onControl(gen uint64, rec codec.Record) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if gen != e.gen {
		return
	}

	switch rec.Str("T") {
	case FrameSuccess:
		switch msg := rec.Str("msg"); msg {
		case MsgConnected:
			e.onConnectedLocked()
		case MsgAuthenticated:
			e.onAuthenticatedLocked()
		default:
			e.logger.Debug("ignoring success frame", "msg", msg)
		}
	case FrameError:
		e.onServerErrorLocked(rec)
	case FrameSubscription:
		e.emitLocked(events.CategorySubscription, rec)
	}
}

func (e *Engine) onConnectedLocked() {
	if e.state != StateAuthenticating {
		e.logger.Debug("unexpected connected frame", "state", e.state)
		return
	}
	if e.cfg.Auth == nil {
		e.emitLocked(events.CategoryError, ErrNoAuthPayload)
		return
	}
	if err := e.transmitLocked(e.cfg.Auth()); err == nil {
		e.logger.Debug("auth sent")
	}
}

func (e *Engine) onAuthenticatedLocked() {
	if e.state != StateAuthenticating {
		e.logger.Debug("unexpected authenticated frame", "state", e.state)
		return
	}

	e.stopTimer(&e.connectTimer)
	restoring := e.everConnected || e.attempts > 0
	e.attempts = 0
	e.backoff.Reset()
	e.everConnected = true
	e.setStateLocked(StateConnected)

	w := lockedWriter{e}
	if restoring && e.cfg.Restore != nil {
		e.runActionLocked(e.cfg.Restore)
	}
	for _, action := range e.actions.Drain() {
		e.runActionLocked(action)
	}
	for _, payload := range e.messages.Drain() {
		w.Write(payload)
	}

	e.logger.Info("stream ready", "session", e.session, "restored", restoring)
	e.emitLocked(events.CategoryConnect, ConnectEvent{Session: e.session, Restored: restoring})
}

func (e *Engine) onServerErrorLocked(rec codec.Record) {
	code, _ := rec.Int("code")
	serr := &ServerError{
		Code:  int(code),
		Msg:   rec.Str("msg"),
		Fatal: slices.Contains(e.cfg.AuthErrorCodes, int(code)),
	}
	e.metrics.ServerError(e.cfg.Name, serr.Code)

	if !serr.Fatal {
		e.logger.Warn("server error", "code", serr.Code, "msg", serr.Msg)
		e.emitLocked(events.CategoryError, serr)
		return
	}

	e.logger.Error("authentication rejected, reconnect disabled", "code", serr.Code, "msg", serr.Msg)
	e.autoReconnect = false
	e.stopTimer(&e.reconnectTimer)
	e.emitLocked(events.CategoryError, serr)
	if e.state != StateDisconnected {
		session := e.session
		e.teardownLocked()
		e.emitLocked(events.CategoryDisconnect, DisconnectEvent{Session: session, Err: serr})
	}
}

func (e *Engine) onTransportError(gen uint64, err error) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if gen != e.gen {
		return
	}
	e.failLocked(err)
}

func (e *Engine) onConnectTimeout(gen uint64) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if gen != e.gen || e.state == StateConnected || e.state == StateDisconnected {
		return
	}
	e.connectTimer = nil
	e.failLocked(ErrConnectTimeout)
}

// failLocked handles an involuntary loss of the current connection.
func (e *Engine) failLocked(err error) {
	prev := e.state
	session := e.session
	e.teardownLocked()

	e.logger.Warn("connection lost", "state", prev, "session", session, "error", err)
	e.emitLocked(events.CategoryError, err)
	if prev != StateConnecting {
		e.emitLocked(events.CategoryDisconnect, DisconnectEvent{Session: session, Err: err})
	}

	if e.autoReconnect {
		e.scheduleReconnectLocked()
	}
}

func (e *Engine) scheduleReconnectLocked() {
	delay := e.backoff.NextBackOff()
	e.attempts++
	e.lastDelay = delay
	e.reconnectToken++
	token := e.reconnectToken

	e.metrics.ReconnectScheduled(e.cfg.Name)
	e.logger.Info("reconnect scheduled", "attempt", e.attempts, "delay", delay)

	e.reconnectTimer = e.afterFunc(delay, func() {
		e.onReconnectTimer(token)
	})
}

func (e *Engine) onReconnectTimer(token uint64) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if token != e.reconnectToken || !e.autoReconnect || e.state != StateDisconnected {
		return
	}
	e.reconnectTimer = nil
	e.openLocked()
}

// transmitLocked encodes and writes payload, reporting failures as errors.
func (e *Engine) transmitLocked(payload any) error {
	data, err := e.cfg.Codec.Encode(payload)
	if err != nil {
		err = fmt.Errorf("encode outbound: %w", err)
		e.emitLocked(events.CategoryError, err)
		return err
	}
	if e.client == nil {
		return ErrNotConnected
	}
	if err := e.client.Send(data); err != nil {
		err = fmt.Errorf("send: %w", err)
		e.logger.Warn("send failed", "error", err)
		e.emitLocked(events.CategoryError, err)
		return err
	}
	return nil
}

func (e *Engine) runActionLocked(action Action) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("action panic: %v", r)
			e.logger.Error("queued action failed", "error", err)
			e.emitLocked(events.CategoryError, err)
		}
	}()
	action(lockedWriter{e})
}

func (e *Engine) rejectLocked(name string, capacity int) {
	e.metrics.QueueDrop(e.cfg.Name, name)
	e.logger.Warn("pending queue full, dropping", "queue", name, "capacity", capacity)
	e.emitLocked(events.CategoryError, &QueueError{Queue: name, Capacity: capacity})
}

// lockedWriter writes through an engine whose lock is already held.
type lockedWriter struct {
	e *Engine
}

func (w lockedWriter) Write(payload any) error {
	return w.e.transmitLocked(payload)
}
