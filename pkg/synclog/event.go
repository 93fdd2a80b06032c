package synclog

import (
	"time"
)

// Event is one diagnostic record from the synchronization layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Source names the component that emitted the event.
	Source Source `cbor:"2,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"3,keyasint"`

	// ConnectionID is the UUID of the related push connection, if any.
	ConnectionID string `cbor:"4,keyasint,omitempty"`

	// Entity is the affected entity id, if any.
	Entity string `cbor:"5,keyasint,omitempty"`

	// Topic is the wire form of the related topic path, if any.
	Topic string `cbor:"6,keyasint,omitempty"`

	// Detail carries event-specific context (state names, filters).
	Detail string `cbor:"7,keyasint,omitempty"`

	// Error is the error text for failure events.
	Error string `cbor:"8,keyasint,omitempty"`
}

// Source names the component that emitted an event.
type Source uint8

const (
	// SourceAggregate is the entity aggregator and its reload loop.
	SourceAggregate Source = 0
	// SourcePush is the push topic client.
	SourcePush Source = 1
	// SourceRest is the REST fetch/mutation client.
	SourceRest Source = 2
	// SourceObservable is the single-consumer observable glue.
	SourceObservable Source = 3
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceAggregate:
		return "AGGREGATE"
	case SourcePush:
		return "PUSH"
	case SourceRest:
		return "REST"
	case SourceObservable:
		return "OBSERVABLE"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies an event.
type Kind uint8

const (
	// KindFetch indicates a reload fetch completed successfully.
	KindFetch Kind = 0
	// KindFetchFailed indicates a reload fetch failed.
	KindFetchFailed Kind = 1
	// KindPushMessage indicates an inbound invalidation was delivered.
	KindPushMessage Kind = 2
	// KindPushDropped indicates a malformed push payload was dropped.
	KindPushDropped Kind = 3
	// KindConnect indicates a push connection opened.
	KindConnect Kind = 4
	// KindDisconnect indicates a push connection closed or was lost.
	KindDisconnect Kind = 5
	// KindReconcile indicates a topic-filter reconciliation pass ran.
	KindReconcile Kind = 6
	// KindStateChange indicates an entity handle changed state.
	KindStateChange Kind = 7
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "FETCH"
	case KindFetchFailed:
		return "FETCH_FAILED"
	case KindPushMessage:
		return "PUSH_MESSAGE"
	case KindPushDropped:
		return "PUSH_DROPPED"
	case KindConnect:
		return "CONNECT"
	case KindDisconnect:
		return "DISCONNECT"
	case KindReconcile:
		return "RECONCILE"
	case KindStateChange:
		return "STATE_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// NewEvent creates an event stamped with the current time.
func NewEvent(source Source, kind Kind) Event {
	return Event{
		Timestamp: time.Now(),
		Source:    source,
		Kind:      kind,
	}
}
