package aggregate

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gridview/gridview-go/pkg/push"
	"github.com/gridview/gridview-go/pkg/synclog"
	"github.com/gridview/gridview-go/pkg/topic"
)

// Aggregator errors.
var (
	ErrUnknownToken     = errors.New("token does not belong to a live subscription")
	ErrAggregatorClosed = errors.New("aggregator is closed")
	ErrNoFetcher        = errors.New("fetcher is required")
)

// DefaultFetchTimeout bounds one reload fetch.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher is the fetch collaborator: it loads an entity's latest
// state from the REST endpoint.
type Fetcher interface {
	FetchEntity(ctx context.Context, id EntityID) (any, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id EntityID) (any, error)

// FetchEntity calls the function.
func (f FetcherFunc) FetchEntity(ctx context.Context, id EntityID) (any, error) {
	return f(ctx, id)
}

// Token identifies one observer's registration with one entity
// handle. It is usable only with the aggregator and handle that
// issued it.
type Token struct {
	id  EntityID
	seq uint64
}

// Config holds aggregator configuration.
type Config struct {
	// Fetcher loads entity state. Required.
	Fetcher Fetcher

	// Push is the invalidation stream client. Optional: without it
	// the aggregator only reloads on explicit Invalidate calls.
	Push *push.Client

	// TopicOf maps an entity id to its push topic path. The default
	// produces a single-segment path, numeric when the id parses as
	// an integer (matching the wire payloads like [42]).
	TopicOf func(EntityID) topic.Path

	// FetchTimeout bounds one reload fetch. Defaults to
	// DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Logger receives sync events. Nil disables logging.
	Logger synclog.Logger
}

// DefaultTopicOf is the default entity-to-topic mapping.
func DefaultTopicOf(id EntityID) topic.Path {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return topic.MustPath(n)
	}
	return topic.MustPath(string(id))
}

// Aggregator is the registry of entity handles and the owner of the
// reload scheduling loop. Construct one per application context and
// inject it; independent instances are fully isolated, which is what
// tests rely on.
type Aggregator struct {
	mu sync.Mutex

	config Config

	// Live handles by entity id. A handle is present iff it has
	// subscribers.
	handles map[EntityID]*handle

	// topicIndex maps a topic's canonical key back to its entity id
	// for push message dispatch.
	topicIndex map[string]EntityID

	// Token sequence
	nextSeq uint64

	// Reload trigger. Buffered with capacity one: a pending token
	// already schedules a pass, so re-entrant schedule calls coalesce.
	wakeCh chan struct{}

	// Push registration
	pushSub uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New creates an aggregator and starts its reload loop. When a push
// client is configured, the aggregator registers itself as a handler
// and keeps the client's desired topics equal to the union of all
// live handles' topics.
func New(config Config) (*Aggregator, error) {
	if config.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	if config.TopicOf == nil {
		config.TopicOf = DefaultTopicOf
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		config:     config,
		handles:    make(map[EntityID]*handle),
		topicIndex: make(map[string]EntityID),
		wakeCh:     make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	if config.Push != nil {
		sub, err := config.Push.Subscribe(topic.NewSet(), pushHandler{a})
		if err != nil {
			cancel()
			return nil, err
		}
		a.pushSub = sub
	}

	a.wg.Add(1)
	go a.runLoop()

	return a, nil
}

// Subscribe registers a callback for an entity. The callback is
// invoked synchronously with the current cached value (absent for a
// brand-new handle) before Subscribe returns; afterwards it receives
// every value the reload loop resolves for the entity.
func (a *Aggregator) Subscribe(id EntityID, cb Callback) (Token, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return Token{}, ErrAggregatorClosed
	}

	h, exists := a.handles[id]
	created := false
	if !exists {
		h = newHandle(id)
		a.handles[id] = h
		a.topicIndex[a.config.TopicOf(id).Key()] = id
		created = true
	}

	a.nextSeq++
	tok := Token{id: id, seq: a.nextSeq}
	h.subscribers[tok.seq] = cb

	initial := Update{ID: id, Value: h.value, Present: h.present}

	// A handle with no value yet needs a reload, unless one is
	// already in flight: a subscriber joining mid-fetch shares its
	// result instead of arming another pass.
	if !h.present && !h.reloadInFlight {
		h.apply(Signal{Kind: SignalInvalidated})
	}
	due := h.due()
	a.mu.Unlock()

	cb(initial)

	if created {
		a.syncTopics()
		a.logState(id, "", handleActive.String())
	}
	if due {
		a.scheduleReload()
	}

	return tok, nil
}

// Unsubscribe removes a registration. A token from a different handle
// or a handle that no longer exists is a caller lifecycle bug and
// fails with ErrUnknownToken. When the last subscriber leaves, the
// handle leaves the registry and its topic leaves the desired filter
// by the next reconciliation pass.
func (a *Aggregator) Unsubscribe(tok Token) error {
	a.mu.Lock()
	h, exists := a.handles[tok.id]
	if !exists {
		a.mu.Unlock()
		return ErrUnknownToken
	}
	if _, owned := h.subscribers[tok.seq]; !owned {
		a.mu.Unlock()
		return ErrUnknownToken
	}

	delete(h.subscribers, tok.seq)
	removed := false
	var newState handleState
	if len(h.subscribers) == 0 {
		// Destruction requires the subscriber set to be empty, which
		// it is by construction here. An in-flight fetch keeps the
		// detached handle alive until it settles.
		if h.reloadInFlight {
			h.state = handleDraining
		} else {
			h.state = handleClosed
		}
		newState = h.state
		delete(a.handles, tok.id)
		delete(a.topicIndex, a.config.TopicOf(tok.id).Key())
		removed = true
	}
	a.mu.Unlock()

	if removed {
		a.syncTopics()
		a.logState(tok.id, handleActive.String(), newState.String())
	}
	return nil
}

// Invalidate marks an entity's cached value stale and schedules a
// reload. Unknown entities are ignored.
func (a *Aggregator) Invalidate(id EntityID) {
	a.mu.Lock()
	h, exists := a.handles[id]
	due := false
	if exists {
		h.apply(Signal{Kind: SignalInvalidated})
		due = h.due()
	}
	a.mu.Unlock()

	if due {
		a.scheduleReload()
	}
}

// Peek returns the cached value for an entity without subscribing.
// The second result is false when the entity is untracked or its
// value is still absent.
func (a *Aggregator) Peek(id EntityID) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, exists := a.handles[id]
	if !exists || !h.present {
		return nil, false
	}
	return h.value, true
}

// Entities returns the ids of all live handles.
func (a *Aggregator) Entities() []EntityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]EntityID, 0, len(a.handles))
	for id := range a.handles {
		out = append(out, id)
	}
	return out
}

// Count returns the number of live handles.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handles)
}

// Close stops the reload loop and deregisters from the push client.
// In-flight fetches are not cancelled beyond their context; their
// results are discarded with the registry.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	hasPush := a.config.Push != nil
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	if hasPush {
		_ = a.config.Push.Unsubscribe(a.pushSub)
	}
}

// pushHandler bridges the push client's events into signals.
type pushHandler struct {
	a *Aggregator
}

// Opened implements push.Handler. Reconnects are pessimistic: every
// tracked entity is marked pending and re-fetched.
func (p pushHandler) Opened() {
	p.a.resetAll()
}

// Message implements push.Handler.
func (p pushHandler) Message(path topic.Path) {
	p.a.pushMessage(path)
}

// resetAll applies ConnectionReset to every live handle. The pending
// flag is idempotent, so several near-simultaneous resets still yield
// exactly one reload per entity.
func (a *Aggregator) resetAll() {
	a.mu.Lock()
	due := false
	for _, h := range a.handles {
		h.apply(Signal{Kind: SignalConnectionReset})
		if h.due() {
			due = true
		}
	}
	a.mu.Unlock()

	if due {
		a.scheduleReload()
	}
}

// pushMessage resolves an inbound topic path to its handle and
// invalidates it. Topics without a live handle are ignored; the
// reconciliation lag after an unsubscribe makes them expected.
func (a *Aggregator) pushMessage(path topic.Path) {
	a.mu.Lock()
	id, known := a.topicIndex[path.Key()]
	var due bool
	if known {
		if h, exists := a.handles[id]; exists {
			h.apply(Signal{Kind: SignalInvalidated})
			due = h.due()
		}
	}
	a.mu.Unlock()

	if due {
		a.scheduleReload()
	}
}

// syncTopics pushes the union of live handles' topics to the push
// client as this aggregator's desired set.
func (a *Aggregator) syncTopics() {
	if a.config.Push == nil {
		return
	}

	a.mu.Lock()
	desired := topic.NewSet()
	for id := range a.handles {
		desired.Add(a.config.TopicOf(id))
	}
	a.mu.Unlock()

	_ = a.config.Push.SetTopics(a.pushSub, desired)
}

// scheduleReload schedules a reload pass. A pass already pending
// absorbs the call.
func (a *Aggregator) scheduleReload() {
	select {
	case a.wakeCh <- struct{}{}:
	default:
		// Already scheduled
	}
}

// runLoop is the single goroutine that owns reload passes.
func (a *Aggregator) runLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.wakeCh:
			a.drain()
		}
	}
}

// drain runs reload batches until no handle is due. The loop, not a
// single pass, is what guarantees convergence: subscriptions and
// invalidations arriving while a batch is in flight are picked up by
// the re-scan instead of being lost.
func (a *Aggregator) drain() {
	for {
		a.mu.Lock()
		var due []*handle
		for _, h := range a.handles {
			if h.due() {
				due = append(due, h)
			}
		}
		if len(due) == 0 {
			a.mu.Unlock()
			return
		}
		for _, h := range due {
			h.reloadInFlight = true
			h.pendingReload = false
		}
		a.mu.Unlock()

		// Fetch the whole batch concurrently.
		results := make([]Signal, len(due))
		var fetchWg sync.WaitGroup
		for i, h := range due {
			fetchWg.Add(1)
			go func(i int, id EntityID) {
				defer fetchWg.Done()
				ctx, cancel := context.WithTimeout(a.ctx, a.config.FetchTimeout)
				defer cancel()
				value, err := a.config.Fetcher.FetchEntity(ctx, id)
				results[i] = fetchedSignal(value, err)
			}(i, h.id)
		}
		fetchWg.Wait()

		// Settle the entire batch before any propagation, so no
		// callback observes a partially-applied batch.
		type delivery struct {
			callbacks []Callback
			update    Update
		}
		var deliveries []delivery

		a.mu.Lock()
		for i, h := range due {
			sig := results[i]
			changed := h.apply(sig)

			if sig.Err != nil {
				a.logFetch(h.id, sig.Err)
				continue
			}
			a.logFetch(h.id, nil)

			if changed && h.state == handleActive && len(h.subscribers) > 0 {
				deliveries = append(deliveries, delivery{
					callbacks: h.snapshotCallbacks(),
					update:    Update{ID: h.id, Value: h.value, Present: true},
				})
			}
		}
		a.mu.Unlock()

		for _, d := range deliveries {
			for _, cb := range d.callbacks {
				cb(d.update)
			}
		}

		// Loop again: new subscriptions or invalidations may have
		// arrived during the await.
	}
}

// logFetch emits a fetch event.
func (a *Aggregator) logFetch(id EntityID, err error) {
	if a.config.Logger == nil {
		return
	}
	event := synclog.NewEvent(synclog.SourceAggregate, synclog.KindFetch)
	event.Entity = string(id)
	if err != nil {
		event.Kind = synclog.KindFetchFailed
		event.Error = err.Error()
	}
	a.config.Logger.Log(event)
}

// logState emits a handle state-change event.
func (a *Aggregator) logState(id EntityID, oldState, newState string) {
	if a.config.Logger == nil {
		return
	}
	event := synclog.NewEvent(synclog.SourceAggregate, synclog.KindStateChange)
	event.Entity = string(id)
	if oldState != "" {
		event.Detail = oldState + " -> " + newState
	} else {
		event.Detail = newState
	}
	a.config.Logger.Log(event)
}
