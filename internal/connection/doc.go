// Package connection implements the stream transport and connection engine.
//
// The Engine owns a single WebSocket session:
//   - Drives connect → authenticate → ready transitions
//   - Queues outbound messages and subscription actions while not ready
//   - Reconnects with exponential backoff after involuntary disconnects
//   - Intercepts control frames and hands domain records to a classifier
//
// All engine state is guarded by one mutex and mutated only in reaction to a
// closed set of signals: transport open, inbound frame, transport failure,
// connection timeout and reconnect timer.
package connection
