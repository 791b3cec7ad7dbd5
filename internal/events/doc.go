// Package events implements the per-stream publish/subscribe registry.
//
// Handlers are grouped by category name. Emit calls every handler registered
// for a category; a handler that returns an error or panics does not stop
// delivery to the others. Such failures are re-emitted under CategoryError,
// except failures inside error handlers, which are only logged.
package events
