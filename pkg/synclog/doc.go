// Package synclog implements diagnostic event logging for the
// synchronization layer.
//
// Every interesting transition in the sync layer (a reload fetched, a
// push message arrived, a connection was replaced during
// reconciliation) can be captured as an Event and handed to a Logger.
// Events are encoded as CBOR with integer keys, so capture files stay
// compact enough to leave enabled on long-running dashboards.
//
// # Correlation
//
// Events carry the UUID of the push connection they relate to (when
// any), so a capture can be split per connection lifetime when
// debugging reconnect storms.
//
// # Loggers
//
// FileLogger appends CBOR events to a capture file. SlogAdapter
// forwards events to a log/slog logger for development consoles.
// NoopLogger discards everything; components treat a nil Logger the
// same way.
package synclog
