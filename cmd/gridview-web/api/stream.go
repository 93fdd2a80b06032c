package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gridview/gridview-go/pkg/aggregate"
)

// StreamAPI fans entity updates out to browser clients over SSE.
// Each connection subscribes its requested ids to the shared
// aggregator for the connection's lifetime, so any number of browser
// tabs watching the same device share one upstream fetch and one
// upstream push topic.
type StreamAPI struct {
	watcher Watcher
}

// NewStreamAPI creates the stream API.
func NewStreamAPI(watcher Watcher) *StreamAPI {
	return &StreamAPI{watcher: watcher}
}

// HandleStream serves GET /api/v1/stream?ids=a,b,c.
func (a *StreamAPI) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	ids := strings.Split(idsParam, ",")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Updates funnel through one channel per connection. The buffer
	// absorbs bursts; an overflowing client skips intermediate values
	// and catches up on the next update.
	updates := make(chan aggregate.Update, 256)

	var tokens []aggregate.Token
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		tok, err := a.watcher.Subscribe(aggregate.EntityID(id), func(u aggregate.Update) {
			select {
			case updates <- u:
			default:
			}
		})
		if err != nil {
			continue
		}
		tokens = append(tokens, tok)
	}

	defer func() {
		for _, tok := range tokens {
			_ = a.watcher.Unsubscribe(tok)
		}
	}()

	if len(tokens) == 0 {
		writeError(w, http.StatusBadRequest, "no valid entity ids")
		return
	}

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			if err := writeUpdateEvent(w, u); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeUpdateEvent writes one SSE update event.
func writeUpdateEvent(w http.ResponseWriter, u aggregate.Update) error {
	state := EntityState{ID: string(u.ID), Present: u.Present}
	if u.Present {
		state.Value = rawValue(u.Value)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: update\ndata: %s\n\n", data)
	return err
}
