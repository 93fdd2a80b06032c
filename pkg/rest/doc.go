// Package rest implements the fetch and mutation collaborators of the
// sync layer.
//
// GetEntity loads an entity's current JSON document from its
// well-known path; any non-success status is a hard failure for that
// attempt, surfaced as *StatusError. InvokeAction POSTs to a
// per-entity action endpoint and returns no body. The sync layer
// never invalidates its own cache on a write it issued: the push
// stream is the only invalidation source, so the dashboard observes
// the resulting state change the same way it observes any other.
package rest
