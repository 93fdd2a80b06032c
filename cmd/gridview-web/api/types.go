package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gridview/gridview-go/pkg/aggregate"
)

// Watcher is the slice of the aggregator the API layer needs.
type Watcher interface {
	Subscribe(id aggregate.EntityID, cb aggregate.Callback) (aggregate.Token, error)
	Unsubscribe(tok aggregate.Token) error
	Peek(id aggregate.EntityID) (any, bool)
	Entities() []aggregate.EntityID
}

// ActionInvoker proxies entity actions to the gateway.
type ActionInvoker interface {
	InvokeAction(ctx context.Context, id, action string, params any) error
}

// EntityState is the API representation of one entity's cached state.
type EntityState struct {
	ID      string          `json:"id"`
	Value   json.RawMessage `json:"value,omitempty"`
	Present bool            `json:"present"`
}

// EntityListResponse is the response for the entity list endpoint.
type EntityListResponse struct {
	Entities []EntityState `json:"entities"`
	Count    int           `json:"count"`
}

// StateRecord is one row of recorded entity history.
type StateRecord struct {
	EntityID   string          `json:"entity_id"`
	Value      json.RawMessage `json:"value"`
	ObservedAt time.Time       `json:"observed_at"`
}

// HistoryResponse is the response for the history endpoint.
type HistoryResponse struct {
	EntityID string        `json:"entity_id"`
	Records  []StateRecord `json:"records"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// rawValue renders a cached aggregator value for the API. Values from
// the REST fetcher are already raw JSON; anything else is re-encoded.
func rawValue(value any) json.RawMessage {
	switch v := value.(type) {
	case json.RawMessage:
		return v
	case []byte:
		return json.RawMessage(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return data
	}
}

// decodeJSONBody decodes a request body into v.
func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
