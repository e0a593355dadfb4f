package sync

import (
	"sync"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

type WhiteboardConfig struct {
	Logger *zerolog.Logger
	// Emit publishes a local change-set to peers.
	Emit func(model.ChangeSet)
	// OnApplied notifies the embedding UI about a remote change-set. It
	// runs while the suppression flag is armed, so a drawing surface
	// reporting the resulting mutations back through RecordLocalChanges
	// does not re-broadcast them.
	OnApplied func(model.ChangeSet)
}

// Whiteboard reconciles structural drawing state. Records are opaque;
// only their ids and existence matter here.
type Whiteboard struct {
	logger    zerolog.Logger
	emit      func(model.ChangeSet)
	onApplied func(model.ChangeSet)

	mx             sync.Mutex
	records        map[string]model.Record
	applyingRemote bool
}

func NewWhiteboard(cfg WhiteboardConfig) *Whiteboard {
	return &Whiteboard{
		logger:    cfg.Logger.With().Str("component", "whiteboard").Logger(),
		emit:      cfg.Emit,
		onApplied: cfg.OnApplied,
		records:   make(map[string]model.Record),
	}
}

// RecordLocalChanges ingests a change notification from the local
// drawing surface. Notifications caused by a just-applied remote
// change-set are filtered out; genuine empty sets send nothing. One
// notification produces at most one whiteboard_update — structural
// edits arrive already coalesced, so there is no debounce.
func (w *Whiteboard) RecordLocalChanges(cs model.ChangeSet) {
	w.mx.Lock()
	if w.applyingRemote || cs.Empty() {
		w.mx.Unlock()
		return
	}
	w.applyLocked(cs)
	w.mx.Unlock()

	if w.emit != nil {
		w.emit(cs)
	}
}

// ApplyRemote applies an inbound change-set with the suppression flag
// armed, in the fixed added → updated → removed order.
func (w *Whiteboard) ApplyRemote(cs model.ChangeSet) {
	w.mx.Lock()
	w.applyingRemote = true
	w.applyLocked(cs)
	w.mx.Unlock()

	if w.onApplied != nil {
		w.onApplied(cs)
	}

	w.mx.Lock()
	w.applyingRemote = false
	w.mx.Unlock()
}

// applyLocked applies added, then updated, then removed, so an id
// created and dropped in the same burst ends up absent. Entries naming
// unknown ids are no-ops; one bad entry never blocks the rest.
func (w *Whiteboard) applyLocked(cs model.ChangeSet) {
	for id, rec := range cs.Added {
		w.records[id] = rec
	}
	for id, upd := range cs.Updated {
		if _, ok := w.records[id]; !ok {
			w.logger.Debug().Str("recordID", id).Msg("update for unknown record")
			continue
		}
		// only the "to" value applies; "from" is carried for diffing elsewhere
		w.records[id] = upd.To
	}
	for id := range cs.Removed {
		delete(w.records, id)
	}
}

func (w *Whiteboard) Record(id string) (model.Record, bool) {
	w.mx.Lock()
	defer w.mx.Unlock()
	rec, ok := w.records[id]
	return rec, ok
}

// Records returns a copy of the current structural state.
func (w *Whiteboard) Records() map[string]model.Record {
	w.mx.Lock()
	defer w.mx.Unlock()
	out := make(map[string]model.Record, len(w.records))
	for id, rec := range w.records {
		out[id] = rec
	}
	return out
}

func (w *Whiteboard) Len() int {
	w.mx.Lock()
	defer w.mx.Unlock()
	return len(w.records)
}
