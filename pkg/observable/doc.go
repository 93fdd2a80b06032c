// Package observable provides a lighter-weight alternative to a full
// aggregator for single-consumer bindings.
//
// A State composes one fetch function with a monotonically increasing
// version counter. Invalidate bumps the version and schedules a
// refresh; it is a pure "re-fetch now" signal and never carries a
// value. That separation matters: if a push payload carried the value
// itself, a stale payload could silently overwrite a fresher value
// obtained by a concurrent fetch. Instead the refresh loop compares
// the version before and after each fetch and re-runs while it moved,
// so the newest fetch always wins.
package observable
