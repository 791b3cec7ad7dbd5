// Package queue provides the bounded FIFO used to hold outbound work while a
// stream is not ready.
//
// A full queue rejects the newest item instead of growing or blocking, so an
// extended outage cannot grow memory without bound.
package queue
