package push

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gridview/gridview-go/pkg/topic"
)

// streamServer is a controllable push endpoint. Each accepted
// connection reports its topic filter on filters and then relays
// payloads from events until dropped or the client disconnects.
type streamServer struct {
	srv     *httptest.Server
	filters chan string
	events  chan string
	drops   chan struct{}

	mu     sync.Mutex
	failed bool
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{
		filters: make(chan string, 16),
		events:  make(chan string, 16),
		drops:   make(chan struct{}, 16),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *streamServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failed := s.failed
	s.mu.Unlock()
	if failed {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	s.filters <- r.URL.Query().Get(TopicsParam)

	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.drops:
			return
		case payload := <-s.events:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// setFailing makes subsequent dials return HTTP 503.
func (s *streamServer) setFailing(failing bool) {
	s.mu.Lock()
	s.failed = failing
	s.mu.Unlock()
}

// recordingHandler captures handler callbacks on channels.
type recordingHandler struct {
	opened   chan struct{}
	messages chan topic.Path
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened:   make(chan struct{}, 16),
		messages: make(chan topic.Path, 16),
	}
}

func (h *recordingHandler) Opened() {
	h.opened <- struct{}{}
}

func (h *recordingHandler) Message(p topic.Path) {
	h.messages <- p
}

func waitSignal[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func waitCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Endpoint: endpoint,
		Backoff: BackoffConfig{
			Initial: 10 * time.Millisecond,
			Max:     50 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	if err != ErrNoEndpoint {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestClientOpensConnectionWithFilter(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("meters", 7)), handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	filter := waitSignal(t, server.filters, "connection")
	if filter != "meters/7" {
		t.Errorf("expected filter meters/7, got %q", filter)
	}

	waitSignal(t, handler.opened, "Opened callback")
	waitCondition(t, "Connected", client.Connected)

	topics, ok := client.CurrentTopics()
	if !ok {
		t.Fatal("expected an open connection")
	}
	if !topics.Contains(topic.MustPath("meters", 7)) {
		t.Error("expected connection scope to contain subscribed topic")
	}
}

func TestClientReplacesConnectionOnTopicChange(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	id, err := client.Subscribe(topic.NewSet(topic.MustPath("a")), handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSignal(t, server.filters, "first connection")
	waitSignal(t, handler.opened, "first Opened")

	if err := client.SetTopics(id, topic.NewSet(topic.MustPath("a"), topic.MustPath("b"))); err != nil {
		t.Fatalf("SetTopics failed: %v", err)
	}

	// Full replacement: the old connection closes, a new one opens
	// with the complete new filter.
	filter := waitSignal(t, server.filters, "replacement connection")
	if filter != "a,b" {
		t.Errorf("expected filter a,b, got %q", filter)
	}
	waitSignal(t, handler.opened, "second Opened")
}

func TestClientKeepsConnectionOnEquivalentSet(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	id, err := client.Subscribe(topic.NewSet(topic.MustPath("a"), topic.MustPath("b")), handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSignal(t, server.filters, "connection")
	waitSignal(t, handler.opened, "Opened")

	// Same members in a different insertion order: structurally equal,
	// so the connection stays.
	if err := client.SetTopics(id, topic.NewSet(topic.MustPath("b"), topic.MustPath("a"))); err != nil {
		t.Fatalf("SetTopics failed: %v", err)
	}

	select {
	case filter := <-server.filters:
		t.Errorf("unexpected replacement dial with filter %q", filter)
	case <-time.After(200 * time.Millisecond):
	}
	if !client.Connected() {
		t.Error("expected connection to survive an equivalent set")
	}
}

func TestClientClosesConnectionWhenFilterEmpties(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	id, err := client.Subscribe(topic.NewSet(topic.MustPath("a")), handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSignal(t, server.filters, "connection")
	waitSignal(t, handler.opened, "Opened")

	if err := client.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	waitCondition(t, "disconnect", func() bool { return !client.Connected() })

	// No replacement dial happens for an empty filter.
	select {
	case filter := <-server.filters:
		t.Errorf("unexpected dial with filter %q", filter)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientDispatchesByTopicSet(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	meters := newRecordingHandler()
	alerts := newRecordingHandler()
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("meters", 7)), meters); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("alerts")), alerts); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Wait until one connection covers both subscriptions.
	waitCondition(t, "combined filter", func() bool {
		topics, ok := client.CurrentTopics()
		return ok && topics.Len() == 2
	})
	waitSignal(t, meters.opened, "meters Opened")
	waitSignal(t, alerts.opened, "alerts Opened")

	server.events <- `["meters", 7]`

	got := waitSignal(t, meters.messages, "meters message")
	if !got.Equal(topic.MustPath("meters", 7)) {
		t.Errorf("unexpected path %s", got)
	}

	select {
	case p := <-alerts.messages:
		t.Errorf("alerts handler received unrelated path %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientDropsMalformedPayload(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("a")), handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSignal(t, server.filters, "connection")
	waitSignal(t, handler.opened, "Opened")

	// Malformed payloads are dropped without killing the connection.
	server.events <- `{"not": "a topic"}`
	server.events <- `["a"]`

	got := waitSignal(t, handler.messages, "valid message after malformed one")
	if !got.Equal(topic.MustPath("a")) {
		t.Errorf("unexpected path %s", got)
	}
	if !client.Connected() {
		t.Error("expected connection to survive a malformed payload")
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("a")), handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSignal(t, server.filters, "first connection")
	waitSignal(t, handler.opened, "first Opened")

	server.drops <- struct{}{}

	// The client redials and signals Opened again: no replay on the
	// stream means the handler must re-fetch after every reopen.
	waitSignal(t, server.filters, "reconnection")
	waitSignal(t, handler.opened, "Opened after reconnect")
}

func TestClientBacksOffWhileEndpointDown(t *testing.T) {
	server := newStreamServer(t)
	server.setFailing(true)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("a")), handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Give it a few failed attempts, then recover.
	time.Sleep(50 * time.Millisecond)
	server.setFailing(false)

	waitSignal(t, server.filters, "connection after recovery")
	waitSignal(t, handler.opened, "Opened after recovery")
}

func TestClientClose(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	handler := newRecordingHandler()
	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("a")), handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSignal(t, handler.opened, "Opened")

	client.Close()
	client.Close() // idempotent

	if _, err := client.Subscribe(topic.NewSet(topic.MustPath("b")), handler); err != ErrClientClosed {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
	if err := client.SetTopics(1, topic.NewSet()); err != ErrClientClosed {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestClientUnsubscribeUnknown(t *testing.T) {
	server := newStreamServer(t)
	client := newTestClient(t, server.srv.URL)

	if err := client.Unsubscribe(42); err != ErrSubscriptionNotFound {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
}
