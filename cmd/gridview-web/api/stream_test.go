package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStreamDeliversUpdates(t *testing.T) {
	fetcher := newMapFetcher()
	fetcher.set("meter-7", `{"power": 2300}`)
	agg := newTestWatcher(t, fetcher)
	api := NewStreamAPI(agg)

	srv := httptest.NewServer(http.HandlerFunc(api.HandleStream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?ids=meter-7", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The stream first reports the absent state, then the resolved one.
	scanner := bufio.NewScanner(resp.Body)
	sawResolved := false
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var state EntityState
		require.NoError(t, json.Unmarshal([]byte(payload), &state))
		assert.Equal(t, "meter-7", state.ID)
		if state.Present {
			assert.JSONEq(t, `{"power": 2300}`, string(state.Value))
			sawResolved = true
			break
		}
	}
	assert.True(t, sawResolved, "never observed a resolved state on the stream")

	// Closing the request releases the stream's subscriptions.
	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for agg.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for stream subscriptions to release")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleStreamRequiresIDs(t *testing.T) {
	agg := newTestWatcher(t, newMapFetcher())
	api := NewStreamAPI(agg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil)
	rec := httptest.NewRecorder()
	api.HandleStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStreamMethodNotAllowed(t *testing.T) {
	agg := newTestWatcher(t, newMapFetcher())
	api := NewStreamAPI(agg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stream?ids=x", nil)
	rec := httptest.NewRecorder()
	api.HandleStream(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
