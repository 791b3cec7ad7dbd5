// Package stream provides the client-facing stream facades.
//
// A facade supplies the connection engine with an endpoint, credentials and a
// record classifier, and exposes subscribe, unsubscribe and handler
// registration methods for its domain:
//   - MarketData: stock, crypto and news market data
//   - Trading: account trade update notifications
//
// Subscriptions requested before Connect, or while reconnecting, are queued
// and sent once the stream is authenticated. After a reconnect the full
// tracked set is resent.
package stream
