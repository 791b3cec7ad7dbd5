package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Lifecycle categories emitted by every stream.
const (
	CategoryConnect      = "connect"
	CategoryDisconnect   = "disconnect"
	CategoryError        = "error"
	CategorySubscription = "subscription"
)

// Handler receives an emitted payload.
type Handler func(payload any) error

// HandlerID identifies a registration for Off.
type HandlerID uuid.UUID

// String returns the canonical form of the id.
func (id HandlerID) String() string {
	return uuid.UUID(id).String()
}

// HandlerError reports a handler failure.
type HandlerError struct {
	Category string
	Handler  HandlerID
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler %s: %v", e.Category, e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Dispatcher maps categories to handler sets.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]map[HandlerID]Handler

	// onFailure is called once per failed handler, for metrics.
	onFailure func(category string)
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string]map[HandlerID]Handler),
	}
}

// SetFailureHook installs fn to observe handler failures.
func (d *Dispatcher) SetFailureHook(fn func(category string)) {
	d.mu.Lock()
	d.onFailure = fn
	d.mu.Unlock()
}

// On registers handler under category.
func (d *Dispatcher) On(category string, handler Handler) HandlerID {
	id := HandlerID(uuid.New())

	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.handlers[category]
	if set == nil {
		set = make(map[HandlerID]Handler)
		d.handlers[category] = set
	}
	set[id] = handler
	return id
}

// Off removes a registration. Unknown ids are ignored.
func (d *Dispatcher) Off(category string, id HandlerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.handlers[category]
	delete(set, id)
	if len(set) == 0 {
		delete(d.handlers, category)
	}
}

// Count returns the number of handlers registered under category.
func (d *Dispatcher) Count(category string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[category])
}

// Emit delivers payload to every handler of category.
func (d *Dispatcher) Emit(category string, payload any) {
	d.mu.RLock()
	set := d.handlers[category]
	ids := make([]HandlerID, 0, len(set))
	fns := make([]Handler, 0, len(set))
	for id, fn := range set {
		ids = append(ids, id)
		fns = append(fns, fn)
	}
	onFailure := d.onFailure
	d.mu.RUnlock()

	for i, fn := range fns {
		err := invoke(fn, payload)
		if err == nil {
			continue
		}

		if onFailure != nil {
			onFailure(category)
		}

		herr := &HandlerError{Category: category, Handler: ids[i], Err: err}
		if category == CategoryError {
			d.logger.Error("error handler failed", "handler", ids[i].String(), "error", err)
			continue
		}

		d.logger.Warn("event handler failed", "category", category, "error", err)
		d.Emit(CategoryError, herr)
	}
}

// invoke runs fn, converting a panic into an error.
func invoke(fn Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(payload)
}
