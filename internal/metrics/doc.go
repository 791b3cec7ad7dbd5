// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Stream connection state, reconnects and server errors
//   - Inbound frames by kind and decode failures
//   - Pending queue drops
//   - Event handler failures
//   - Recorder flushes, errors and drops per sink
//
// All methods are safe on a nil *Metrics, so components can run without a
// registry.
package metrics
