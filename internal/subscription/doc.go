// Package subscription tracks the desired subscription set of a stream.
//
// The Manager is the source of truth for what the caller wants, independent of
// whether a connection is currently up. Subscribe and Unsubscribe return the
// minimal delta message to send, or nil when nothing changed. Snapshot restates
// the whole set after a reconnection, since the server keeps no memory of
// subscriptions across connections.
package subscription
