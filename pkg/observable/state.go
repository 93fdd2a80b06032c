package observable

import (
	"context"
	"errors"
	"sync"

	"github.com/gridview/gridview-go/pkg/push"
	"github.com/gridview/gridview-go/pkg/synclog"
	"github.com/gridview/gridview-go/pkg/topic"
)

// State errors.
var (
	ErrNoFetch = errors.New("fetch function is required")
)

// FetchFunc loads the bound resource's current value.
type FetchFunc func(ctx context.Context) (any, error)

// ChangeFunc observes resolved values together with the version the
// refresh satisfied.
type ChangeFunc func(value any, version uint64)

// State binds one consumer to one fetched resource plus a push-driven
// version counter.
type State struct {
	mu sync.Mutex

	fetch    FetchFunc
	onChange ChangeFunc
	logger   synclog.Logger

	value   any
	present bool

	// version increases on every invalidation. The refresh loop
	// re-runs while it advanced during a fetch.
	version   uint64
	refreshed uint64

	wakeCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the sync event logger.
func WithLogger(logger synclog.Logger) Option {
	return func(s *State) { s.logger = logger }
}

// WithChangeFunc sets the resolved-value observer.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(s *State) { s.onChange = fn }
}

// New creates a State and starts its refresh loop. The initial fetch
// is scheduled immediately.
func New(fetch FetchFunc, opts ...Option) (*State, error) {
	if fetch == nil {
		return nil, ErrNoFetch
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &State{
		fetch:  fetch,
		wakeCh: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.runLoop()

	s.Invalidate()
	return s, nil
}

// Invalidate bumps the version counter and schedules a refresh. It
// carries no value by design; the payload always comes from the next
// fetch.
func (s *State) Invalidate() {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()

	select {
	case s.wakeCh <- struct{}{}:
	default:
		// Already scheduled
	}
}

// Get returns the current value, the version it satisfied, and
// whether a fetch has resolved yet.
func (s *State) Get() (any, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.refreshed, s.present
}

// Bind subscribes the state to a push client: both a matching message
// and a reconnect invalidate it. The returned release function drops
// the subscription.
func (s *State) Bind(client *push.Client, path topic.Path) (func(), error) {
	id, err := client.Subscribe(topic.NewSet(path), stateHandler{s})
	if err != nil {
		return nil, err
	}
	return func() { _ = client.Unsubscribe(id) }, nil
}

// Close stops the refresh loop.
func (s *State) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// stateHandler adapts State to push.Handler. Opened is pessimistic
// like any other handler: no replay means re-fetch.
type stateHandler struct {
	s *State
}

func (h stateHandler) Opened() {
	h.s.Invalidate()
}

func (h stateHandler) Message(topic.Path) {
	h.s.Invalidate()
}

// runLoop is the single refresh goroutine.
func (s *State) runLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wakeCh:
			s.refresh()
		}
	}
}

// refresh fetches until the version stops moving. A fetch that raced
// a newer invalidation is applied and immediately superseded by
// another fetch, so a stale result can never stick.
func (s *State) refresh() {
	for {
		s.mu.Lock()
		target := s.version
		if target == s.refreshed {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		value, err := s.fetch(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logError(err)
			// The last good value stays visible; a later invalidation
			// re-arms the refresh.
			s.mu.Lock()
			s.refreshed = target
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		s.value = value
		s.present = true
		s.refreshed = target
		onChange := s.onChange
		s.mu.Unlock()

		if onChange != nil {
			onChange(value, target)
		}
	}
}

// logError emits a fetch-failed event.
func (s *State) logError(err error) {
	if s.logger == nil {
		return
	}
	event := synclog.NewEvent(synclog.SourceObservable, synclog.KindFetchFailed)
	event.Error = err.Error()
	s.logger.Log(event)
}
