package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/metrics"
	"github.com/rickgao/marketstream/internal/queue"
	"github.com/rickgao/marketstream/internal/stream"
)

var ErrNoSinks = errors.New("recorder has no sinks")

// flushTimeout bounds one background flush. Background flushes outlive the
// run context so a batch taken during shutdown still reaches the sinks.
const flushTimeout = 10 * time.Second

// Event is one recorded stream record.
type Event struct {
	Stream     string
	Category   string
	Symbol     string
	Session    string
	ReceivedAt time.Time
	Payload    codec.Record
}

// Sink receives flushed batches.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []Event) error
	Close() error
}

// Config holds batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns default batching settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats counts recorder activity.
type Stats struct {
	Recorded int64 // Accepted into the buffer
	Dropped  int64 // Rejected by a full buffer
	Written  int64 // Delivered to every sink
	Flushes  int64
	Errors   int64 // Failed sink writes
}

// Recorder batches events into sinks.
type Recorder struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	sinks   []Sink

	input  *queue.Bounded[Event]
	notify chan struct{} // signalled after every accepted Record

	batch   []Event
	batchMu sync.Mutex
	stats   Stats

	session atomic.Value // string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Recorder. m may be nil.
func New(cfg Config, sinks []Sink, m *metrics.Metrics, logger *slog.Logger) (*Recorder, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	r := &Recorder{
		cfg:     cfg,
		logger:  logger.With("component", "recorder"),
		metrics: m,
		sinks:   sinks,
		input:   queue.NewBounded[Event](cfg.BufferSize),
		notify:  make(chan struct{}, 1),
		batch:   make([]Event, 0, cfg.BatchSize),
	}
	r.session.Store("")
	return r, nil
}

// Attach records every category the stream emits.
func (r *Recorder) Attach(c *stream.Client) {
	c.OnConnect(func(ev connection.ConnectEvent) {
		r.session.Store(ev.Session)
	})
	for _, category := range c.Categories() {
		c.OnRecord(category, func(rec codec.Record) error {
			r.Record(Event{
				Stream:     c.Name(),
				Category:   category,
				Symbol:     rec.Symbol(),
				Session:    r.session.Load().(string),
				ReceivedAt: time.Now(),
				Payload:    rec,
			})
			return nil
		})
	}
}

// Record buffers ev. It never blocks; false means the buffer was full.
func (r *Recorder) Record(ev Event) bool {
	if !r.input.Push(ev) {
		r.metrics.RecorderDropped("buffer_full")
		r.batchMu.Lock()
		r.stats.Dropped++
		r.batchMu.Unlock()
		return false
	}
	r.batchMu.Lock()
	r.stats.Recorded++
	r.batchMu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return true
}

// Start begins consuming buffered events.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)
	go r.consumeLoop()
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
		"sinks", len(r.sinks),
	)
	return nil
}

// Stop drains the buffer, flushes and closes the sinks.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Final flush uses the caller's context; ours is cancelled.
	for _, ev := range r.input.Drain() {
		if r.add(ev) {
			r.flush(ctx)
		}
	}
	r.flush(ctx)

	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Info("recorder stopped", "written", r.Stats().Written)
	return errors.Join(errs...)
}

// Run starts the recorder and stops it when ctx is done.
func (r *Recorder) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return r.Stop(stopCtx)
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.stats
}

func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		ev, ok := r.input.Pop()
		if !ok {
			select {
			case <-r.ctx.Done():
				return
			case <-r.notify:
				continue
			}
		}
		if r.add(ev) {
			r.flushBackground()
		}
		if r.ctx.Err() != nil {
			return
		}
	}
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flushBackground()
		}
	}
}

// add appends ev to the batch and reports whether the batch is full.
func (r *Recorder) add(ev Event) bool {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	r.batch = append(r.batch, ev)
	return len(r.batch) >= r.cfg.BatchSize
}

// flushBackground flushes from the run loops. Its context is detached from
// the run context.
func (r *Recorder) flushBackground() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), flushTimeout)
	defer cancel()
	r.flush(ctx)
}

// flush writes the current batch to every sink.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	batch := r.batch
	r.batch = make([]Event, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()
	failed := 0
	for _, s := range r.sinks {
		if err := s.Write(ctx, batch); err != nil {
			failed++
			r.metrics.RecorderError(s.Name())
			r.logger.Error("sink write failed", "sink", s.Name(), "error", err, "count", len(batch))
			continue
		}
		r.metrics.RecorderFlushed(s.Name(), len(batch))
	}

	r.batchMu.Lock()
	r.stats.Flushes++
	r.stats.Errors += int64(failed)
	if failed == 0 {
		r.stats.Written += int64(len(batch))
	}
	r.batchMu.Unlock()

	r.logger.Debug("flushed records",
		"count", len(batch),
		"failed_sinks", failed,
		"duration", time.Since(start),
	)
}
