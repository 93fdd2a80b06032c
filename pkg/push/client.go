package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gridview/gridview-go/pkg/synclog"
	"github.com/gridview/gridview-go/pkg/topic"
)

// Client errors.
var (
	ErrClientClosed         = errors.New("push client is closed")
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrNoEndpoint           = errors.New("push endpoint is required")
)

// Handler receives events from the push client.
// Both methods are invoked from client-owned goroutines; they must
// return promptly and must not call back into the client while
// holding their own locks in a way that could re-enter.
type Handler interface {
	// Opened is invoked after every successful (re)open of the push
	// connection. There is no replay on the stream, so handlers must
	// treat Opened pessimistically: mark everything they track as
	// pending and re-fetch, whether or not anything changed while
	// disconnected.
	Opened()

	// Message is invoked for each inbound invalidation whose topic
	// path is a member of the handler's registered topic set.
	Message(p topic.Path)
}

// Config holds push client configuration.
type Config struct {
	// Endpoint is the push stream URL. Required.
	Endpoint string

	// HTTPClient is used to open stream connections. It must not have
	// a client-level timeout set: the stream is long-lived by design.
	// Defaults to a fresh http.Client.
	HTTPClient *http.Client

	// Backoff configures redial delays.
	Backoff BackoffConfig

	// Logger receives sync events. Nil disables logging.
	Logger synclog.Logger
}

// subscription pairs a handler with the topic set it owns.
type subscription struct {
	id      uint64
	topics  *topic.Set
	handler Handler
}

// Client multiplexes many topic subscriptions over at most one live
// push connection, reconciling the connection's filter against the
// union of all registered topic sets.
type Client struct {
	mu sync.Mutex

	config Config

	// Registered subscriptions by id
	subs   map[uint64]*subscription
	nextID uint64

	// Zero or one live connection
	conn *conn

	// Reconciliation trigger. Buffered with capacity one: a pending
	// token already schedules a pass, so re-entrant triggers coalesce.
	reconcileCh chan struct{}

	backoff *Backoff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewClient creates a push client and starts its reconciliation loop.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:      config,
		subs:        make(map[uint64]*subscription),
		reconcileCh: make(chan struct{}, 1),
		backoff:     NewBackoffWithConfig(config.Backoff),
		ctx:         ctx,
		cancel:      cancel,
	}

	c.wg.Add(1)
	go c.run()

	return c, nil
}

// Subscribe registers a handler interested in the given topic set and
// returns its subscription id. The desired filter grows by the set's
// members; the next reconciliation pass applies it to the connection.
func (c *Client) Subscribe(topics *topic.Set, handler Handler) (uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClientClosed
	}
	c.nextID++
	id := c.nextID
	c.subs[id] = &subscription{id: id, topics: topics.Clone(), handler: handler}
	c.mu.Unlock()

	c.triggerReconcile()
	return id, nil
}

// SetTopics replaces the topic set owned by a subscription.
func (c *Client) SetTopics(id uint64, topics *topic.Set) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	sub, exists := c.subs[id]
	if !exists {
		c.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	sub.topics = topics.Clone()
	c.mu.Unlock()

	c.triggerReconcile()
	return nil
}

// Unsubscribe removes a subscription. Its topics leave the desired
// filter at the next reconciliation pass.
func (c *Client) Unsubscribe(id uint64) error {
	c.mu.Lock()
	if _, exists := c.subs[id]; !exists {
		c.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(c.subs, id)
	c.mu.Unlock()

	c.triggerReconcile()
	return nil
}

// Connected reports whether a push connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// CurrentTopics returns the open connection's topic scope, or false
// when no connection exists.
func (c *Client) CurrentTopics() (*topic.Set, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, false
	}
	return c.conn.topics.Clone(), true
}

// Close tears down the connection and stops the client.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cur := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	if cur != nil {
		cur.close()
	}
	c.wg.Wait()
}

// triggerReconcile schedules a reconciliation pass. A pass already
// pending absorbs the trigger.
func (c *Client) triggerReconcile() {
	select {
	case c.reconcileCh <- struct{}{}:
	default:
		// Already pending
	}
}

// run is the single goroutine that owns reconciliation.
func (c *Client) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconcileCh:
			c.reconcile()
		}
	}
}

// reconcile drives the connection toward the desired topic set. It
// loops until the open connection's scope structurally equals the
// desired union, because subscriptions can change while a dial is in
// flight.
func (c *Client) reconcile() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		desired := c.desiredLocked()
		cur := c.conn

		if cur != nil && cur.topics.Equal(desired) {
			c.mu.Unlock()
			return
		}
		c.conn = nil
		c.mu.Unlock()

		if cur != nil {
			cur.close()
			c.logEvent(func(e *synclog.Event) {
				e.Kind = synclog.KindDisconnect
				e.ConnectionID = cur.id
				e.Detail = "replaced during reconciliation"
			})
		}

		if desired.IsEmpty() {
			return
		}

		newConn, err := dial(c.ctx, c.config.HTTPClient, c.config.Endpoint, desired)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			delay := c.backoff.Next()
			c.logEvent(func(e *synclog.Event) {
				e.Kind = synclog.KindReconcile
				e.Detail = "dial failed, backing off " + delay.String()
				e.Error = err.Error()
			})
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		c.backoff.Reset()

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			newConn.close()
			return
		}
		c.conn = newConn
		handlers := make([]Handler, 0, len(c.subs))
		for _, sub := range c.subs {
			handlers = append(handlers, sub.handler)
		}
		c.mu.Unlock()

		c.logEvent(func(e *synclog.Event) {
			e.Kind = synclog.KindConnect
			e.ConnectionID = newConn.id
			e.Detail = desired.FilterString()
		})

		c.wg.Add(1)
		go c.readLoop(newConn)

		// No backfill on the stream: every handler must re-fetch.
		for _, h := range handlers {
			h.Opened()
		}

		// Loop again: the desired set may have changed while dialing.
	}
}

// desiredLocked computes the union of all subscriptions' topic sets.
// Caller holds c.mu.
func (c *Client) desiredLocked() *topic.Set {
	desired := topic.NewSet()
	for _, sub := range c.subs {
		desired = desired.Union(sub.topics)
	}
	return desired
}

// readLoop consumes one connection's stream until it ends, then hands
// control back to reconciliation if this connection was still current.
func (c *Client) readLoop(cn *conn) {
	defer c.wg.Done()

	err := cn.read(func(data []byte) {
		c.dispatch(cn, data)
	})
	cn.close()

	c.mu.Lock()
	wasCurrent := c.conn == cn
	if wasCurrent {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if !wasCurrent {
		return
	}

	c.logEvent(func(e *synclog.Event) {
		e.Kind = synclog.KindDisconnect
		e.ConnectionID = cn.id
		if err != nil {
			e.Error = err.Error()
		}
	})

	if !closed {
		c.triggerReconcile()
	}
}

// dispatch validates one inbound payload and delivers it to every
// subscription whose topic set contains the path.
func (c *Client) dispatch(cn *conn, data []byte) {
	path, err := topic.FromJSON(data)
	if err != nil {
		// ProtocolError: drop the message, keep the connection.
		c.logEvent(func(e *synclog.Event) {
			e.Kind = synclog.KindPushDropped
			e.ConnectionID = cn.id
			e.Detail = string(data)
			e.Error = err.Error()
		})
		return
	}

	c.mu.Lock()
	var targets []Handler
	for _, sub := range c.subs {
		if sub.topics.Contains(path) {
			targets = append(targets, sub.handler)
		}
	}
	c.mu.Unlock()

	c.logEvent(func(e *synclog.Event) {
		e.Kind = synclog.KindPushMessage
		e.ConnectionID = cn.id
		e.Topic = path.String()
	})

	for _, h := range targets {
		h.Message(path)
	}
}

// logEvent emits a push-sourced sync event via the configured logger.
func (c *Client) logEvent(fill func(*synclog.Event)) {
	if c.config.Logger == nil {
		return
	}
	event := synclog.NewEvent(synclog.SourcePush, synclog.KindReconcile)
	fill(&event)
	c.config.Logger.Log(event)
}
