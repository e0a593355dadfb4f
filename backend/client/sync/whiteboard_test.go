package sync

import (
	stdsync "sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/devinterview/collab/backend/model"
)

type boardRecorder struct {
	mx   stdsync.Mutex
	sets []model.ChangeSet
}

func (r *boardRecorder) emit(cs model.ChangeSet) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.sets = append(r.sets, cs)
}

func (r *boardRecorder) all() []model.ChangeSet {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]model.ChangeSet, len(r.sets))
	copy(out, r.sets)
	return out
}

func newTestWhiteboard(rec *boardRecorder) *Whiteboard {
	return NewWhiteboard(WhiteboardConfig{
		Logger: testLogger(),
		Emit:   rec.emit,
	})
}

func rect(id string) model.Record {
	return model.Record{"id": id, "type": "rectangle", "x": 10, "y": 20}
}

func TestApplyOrderRemovalWins(t *testing.T) {
	wb := newTestWhiteboard(&boardRecorder{})

	// same id added and removed within one change-set
	wb.ApplyRemote(model.ChangeSet{
		Added:   map[string]model.Record{"r1": rect("r1")},
		Removed: map[string]model.Record{"r1": rect("r1")},
	})

	if _, ok := wb.Record("r1"); ok {
		t.Fatalf("record added and removed in one set must end up absent:\n%s",
			spew.Sdump(wb.Records()))
	}
}

func TestUpdateAppliesToValue(t *testing.T) {
	wb := newTestWhiteboard(&boardRecorder{})

	wb.ApplyRemote(model.ChangeSet{
		Added: map[string]model.Record{"r1": rect("r1")},
	})
	wb.ApplyRemote(model.ChangeSet{
		Updated: map[string]model.RecordUpdate{
			"r1": {
				From: rect("r1"),
				To:   model.Record{"id": "r1", "type": "rectangle", "x": 99, "y": 20},
			},
		},
	})

	rec, ok := wb.Record("r1")
	if !ok {
		t.Fatal("record disappeared after update")
	}
	if rec["x"] != 99 {
		t.Errorf("update 'to' value not applied:\n%s", spew.Sdump(rec))
	}
}

func TestUnknownEntriesAreNoops(t *testing.T) {
	wb := newTestWhiteboard(&boardRecorder{})
	wb.ApplyRemote(model.ChangeSet{
		Added: map[string]model.Record{"r1": rect("r1")},
	})

	wb.ApplyRemote(model.ChangeSet{
		Updated: map[string]model.RecordUpdate{
			"ghost": {To: rect("ghost")},
		},
		Removed: map[string]model.Record{"phantom": rect("phantom")},
	})

	if wb.Len() != 1 {
		t.Fatalf("unknown update/removal must leave state untouched:\n%s",
			spew.Sdump(wb.Records()))
	}
	if _, ok := wb.Record("ghost"); ok {
		t.Error("update for unknown id must not create the record")
	}
}

func TestEmptyChangeSetNotSent(t *testing.T) {
	rec := &boardRecorder{}
	wb := newTestWhiteboard(rec)

	wb.RecordLocalChanges(model.ChangeSet{})

	if got := rec.all(); len(got) != 0 {
		t.Fatalf("empty change-set must not be transmitted, got %d", len(got))
	}
}

func TestLocalChangesEmitOnce(t *testing.T) {
	rec := &boardRecorder{}
	wb := newTestWhiteboard(rec)

	wb.RecordLocalChanges(model.ChangeSet{
		Added: map[string]model.Record{"r1": rect("r1")},
	})

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 emit, got %d", len(got))
	}
	if _, ok := wb.Record("r1"); !ok {
		t.Error("local change must also apply to own state")
	}
}

func TestRemoteApplyNotRebroadcast(t *testing.T) {
	rec := &boardRecorder{}
	var wb *Whiteboard
	wb = NewWhiteboard(WhiteboardConfig{
		Logger: testLogger(),
		Emit:   rec.emit,
		// drawing surface reporting the resulting mutations back, as a
		// canvas store listener would
		OnApplied: func(cs model.ChangeSet) {
			wb.RecordLocalChanges(cs)
		},
	})

	wb.ApplyRemote(model.ChangeSet{
		Added: map[string]model.Record{"r2": rect("r2")},
	})

	if got := rec.all(); len(got) != 0 {
		t.Fatalf("remote change-set must not be re-broadcast, got %d emits:\n%s",
			len(got), spew.Sdump(got))
	}
	if _, ok := wb.Record("r2"); !ok {
		t.Error("remote change-set was not applied")
	}
}
