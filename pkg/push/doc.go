// Package push implements the client side of the invalidation stream.
//
// A Client owns at most one live server-push connection against a
// fixed endpoint. Interested parties register subscriptions, each
// naming the topic paths it cares about; the client keeps the
// connection's topic filter equal to the union of all registered
// topic sets.
//
// # Reconciliation
//
// The wire contract supports only a fixed filter per connection
// lifetime, so any change to the desired topic set replaces the whole
// connection. Reconciliation runs on a single goroutine woken through
// a buffered trigger channel: bursts of topic changes coalesce into
// one pass, and the pass loops until the open connection's scope
// structurally equals the desired set. An empty desired set closes
// the connection instead.
//
// # Reconnection
//
// The stream offers no replay. Whenever a connection (re)opens, every
// registered handler receives Opened() and must pessimistically
// re-fetch everything it tracks. Dial failures and dropped streams
// retry with exponential backoff and jitter.
//
// # Messages
//
// Each inbound event payload is a JSON array of primitive segments
// naming the changed entity. Malformed payloads are dropped after
// validation; the connection itself survives them.
package push
