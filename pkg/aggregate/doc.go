// Package aggregate keeps many independent observers consistent with
// server-held entity state.
//
// An Aggregator owns a registry of entity handles. Observers subscribe
// to an entity id and receive the cached value synchronously (absent
// for a brand-new handle), then every later value the reload loop
// resolves. The id's topic joins the push client's desired filter, so
// a server-side change eventually invalidates the handle and drives a
// re-fetch.
//
// # Reload Scheduling
//
// Reloads run on a single scheduler goroutine woken through a buffered
// trigger channel; re-entrant schedule calls while a pass is pending
// coalesce. Each pass re-scans the registry until no handle is due:
// new subscriptions and new invalidations can arrive while a batch's
// fetches are in flight, and looping until quiescence converges
// without losing an update. Entities in one batch are fetched
// concurrently but propagated only after the whole batch has settled,
// so a callback never observes a half-applied batch. A fetch failure
// is isolated to its entity; successful siblings still propagate.
//
// # Handle Lifecycle
//
// A handle exists iff it has subscribers: Active -> Draining ->
// Closed. Draining covers the last unsubscribe racing an in-flight
// fetch: the handle detaches immediately, the abandoned fetch
// completes into it with no observers, and a re-subscription gets a
// fresh handle whose own reload supplies the value.
//
// # Signals
//
// Everything that can happen to a handle is an explicit signal --
// Fetched, Invalidated, ConnectionReset -- processed by one transition
// function, rather than flags mutated from many call sites.
package aggregate
