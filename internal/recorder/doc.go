// Package recorder persists stream records.
//
// A Recorder attaches to a stream, buffers every record it emits in a bounded
// queue and writes them in batches to one or more sinks:
//   - Postgres: rows in the stream_events table, inserted with pgx.Batch
//   - NATS: one message per record on <prefix>.<category>.<symbol>
//   - Redis: XADD to the stream <prefix>:<category>
//
// Batches flush when full or on a timer, whichever comes first. A sink
// failure is logged and counted; the batch is not retried.
package recorder
