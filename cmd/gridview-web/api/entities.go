package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridview/gridview-go/pkg/aggregate"
	"github.com/gridview/gridview-go/pkg/rest"
)

// EntitiesAPI serves the entity endpoints backed by the shared
// aggregator, the gateway action proxy, and the history store.
type EntitiesAPI struct {
	watcher Watcher
	invoker ActionInvoker
	store   *Store
}

// NewEntitiesAPI creates the entities API.
func NewEntitiesAPI(watcher Watcher, invoker ActionInvoker, store *Store) *EntitiesAPI {
	return &EntitiesAPI{
		watcher: watcher,
		invoker: invoker,
		store:   store,
	}
}

// HandleList serves GET /api/v1/entities.
func (a *EntitiesAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ids := a.watcher.Entities()
	states := make([]EntityState, 0, len(ids))
	for _, id := range ids {
		state := EntityState{ID: string(id)}
		if value, ok := a.watcher.Peek(id); ok {
			state.Value = rawValue(value)
			state.Present = true
		}
		states = append(states, state)
	}

	writeJSON(w, http.StatusOK, EntityListResponse{Entities: states, Count: len(states)})
}

// HandleEntity routes /api/v1/entities/{id}[/history|/actions/{name}].
func (a *EntitiesAPI) HandleEntity(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/api/v1/entities/")
	parts := strings.Split(rel, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "entity id required")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		a.handleGet(w, r, id)
	case len(parts) == 2 && parts[1] == "history":
		a.handleHistory(w, r, id)
	case len(parts) == 3 && parts[1] == "actions":
		a.handleAction(w, r, id, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleGet serves GET /api/v1/entities/{id}: the cached state.
func (a *EntitiesAPI) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	state := EntityState{ID: id}
	if value, ok := a.watcher.Peek(aggregate.EntityID(id)); ok {
		state.Value = rawValue(value)
		state.Present = true
	}
	writeJSON(w, http.StatusOK, state)
}

// handleHistory serves GET /api/v1/entities/{id}/history.
func (a *EntitiesAPI) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if a.store == nil {
		writeError(w, http.StatusNotFound, "history recording is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	records, err := a.store.History(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []StateRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{EntityID: id, Records: records})
}

// handleAction serves POST /api/v1/entities/{id}/actions/{name}. The
// action is proxied to the gateway; the dashboard's cache is not
// invalidated here, the resulting change arrives via the push stream.
func (a *EntitiesAPI) handleAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var params any
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid action parameters: "+err.Error())
			return
		}
	}

	if err := a.invoker.InvokeAction(r.Context(), id, action, params); err != nil {
		status := http.StatusBadGateway
		var se *rest.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
