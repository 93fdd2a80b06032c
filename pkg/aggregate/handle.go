package aggregate

// EntityID is the opaque, comparable key naming one server-held
// entity, for example a device identifier.
type EntityID string

// Update is what subscriber callbacks receive. Present is false while
// no reload has resolved yet (the entity's value is absent).
type Update struct {
	ID      EntityID
	Value   any
	Present bool
}

// Callback receives entity updates. Callbacks run synchronously on
// the scheduler goroutine after a batch settles; the initial delivery
// at subscribe time runs on the subscriber's goroutine.
type Callback func(Update)

// handleState is the lifecycle of an entity handle.
type handleState uint8

const (
	// handleActive: the handle has subscribers and lives in the
	// registry.
	handleActive handleState = iota

	// handleDraining: the last subscriber left while a fetch was in
	// flight. The handle is detached from the registry; the fetch
	// completes into it and propagates to nobody.
	handleDraining

	// handleClosed: terminal.
	handleClosed
)

// String returns the state name.
func (s handleState) String() string {
	switch s {
	case handleActive:
		return "ACTIVE"
	case handleDraining:
		return "DRAINING"
	case handleClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// handle is the per-entity record: cached value, subscribers, and the
// pending/in-flight reload flags. All fields are guarded by the owning
// Aggregator's mutex.
type handle struct {
	id    EntityID
	state handleState

	value   any
	present bool

	// subscribers by token sequence number
	subscribers map[uint64]Callback

	// pendingReload: a reload is wanted but not yet started.
	pendingReload bool

	// reloadInFlight: at most one outstanding fetch per handle.
	reloadInFlight bool
}

func newHandle(id EntityID) *handle {
	return &handle{
		id:          id,
		subscribers: make(map[uint64]Callback),
	}
}

// apply is the single transition function for handle signals. It
// returns true when the handle's cached value changed. Caller holds
// the aggregator's mutex.
func (h *handle) apply(sig Signal) bool {
	switch sig.Kind {
	case SignalFetched:
		h.reloadInFlight = false
		if h.state == handleDraining {
			// The abandoned fetch has settled; nothing observes it.
			h.state = handleClosed
		}
		if sig.Err != nil {
			// Failure is isolated: the last good value (or absence)
			// stays visible until a later reload succeeds. No retry is
			// scheduled here; only a later event re-arms the reload.
			return false
		}
		h.value = sig.Value
		h.present = true
		return true

	case SignalInvalidated, SignalConnectionReset:
		if h.state != handleActive {
			return false
		}
		h.pendingReload = true
		return false

	default:
		return false
	}
}

// due reports whether the reload loop should pick the handle up.
func (h *handle) due() bool {
	return h.state == handleActive && h.pendingReload && !h.reloadInFlight
}

// snapshotCallbacks copies the currently registered callbacks so they
// can be invoked outside the lock.
func (h *handle) snapshotCallbacks() []Callback {
	out := make([]Callback, 0, len(h.subscribers))
	for _, cb := range h.subscribers {
		out = append(out, cb)
	}
	return out
}
