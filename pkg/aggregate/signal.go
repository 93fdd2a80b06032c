package aggregate

// SignalKind identifies what happened to an entity handle.
type SignalKind uint8

const (
	// SignalFetched carries the outcome of a reload fetch.
	SignalFetched SignalKind = iota

	// SignalInvalidated records that a push invalidation named the
	// handle's topic. It is a pure signal and never carries a value.
	SignalInvalidated

	// SignalConnectionReset records that the push connection was
	// replaced. No replay exists, so the cached value may be stale.
	SignalConnectionReset
)

// String returns the signal kind name.
func (k SignalKind) String() string {
	switch k {
	case SignalFetched:
		return "FETCHED"
	case SignalInvalidated:
		return "INVALIDATED"
	case SignalConnectionReset:
		return "CONNECTION_RESET"
	default:
		return "UNKNOWN"
	}
}

// Signal is the tagged variant a handle's transition function
// consumes. Value and Err are meaningful only for SignalFetched.
type Signal struct {
	Kind  SignalKind
	Value any
	Err   error
}

// fetchedSignal builds the signal for a completed fetch.
func fetchedSignal(value any, err error) Signal {
	return Signal{Kind: SignalFetched, Value: value, Err: err}
}
