package synclog

// Logger is the interface components implement to receive sync events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a sync event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking affects
	// the scheduling loops.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// Emit logs an event if the logger is non-nil. All sync-layer
// components route their logging through here so a nil Logger field
// never needs guarding at call sites.
func Emit(l Logger, event Event) {
	if l != nil {
		l.Log(event)
	}
}
