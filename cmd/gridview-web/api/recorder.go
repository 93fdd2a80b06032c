package api

import (
	"fmt"

	"github.com/gridview/gridview-go/pkg/aggregate"
)

// Recorder keeps a standing aggregator subscription for a configured
// set of entities and appends every resolved state to the store. It
// is just another observer: recording shares fetches and push topics
// with live browser clients.
type Recorder struct {
	watcher Watcher
	store   *Store
	tokens  []aggregate.Token
}

// NewRecorder creates a recorder for the given entity ids.
func NewRecorder(watcher Watcher, store *Store) *Recorder {
	return &Recorder{
		watcher: watcher,
		store:   store,
	}
}

// Start subscribes the recorder to each entity id.
func (r *Recorder) Start(ids []string) error {
	for _, id := range ids {
		tok, err := r.watcher.Subscribe(aggregate.EntityID(id), r.record)
		if err != nil {
			r.Stop()
			return fmt.Errorf("failed to subscribe recorder to %q: %w", id, err)
		}
		r.tokens = append(r.tokens, tok)
	}
	return nil
}

// Stop drops all recorder subscriptions.
func (r *Recorder) Stop() {
	for _, tok := range r.tokens {
		_ = r.watcher.Unsubscribe(tok)
	}
	r.tokens = nil
}

// record appends one resolved state. Absent values (the initial
// delivery before the first reload) are not history.
func (r *Recorder) record(u aggregate.Update) {
	if !u.Present {
		return
	}
	_ = r.store.RecordState(string(u.ID), rawValue(u.Value))
}
