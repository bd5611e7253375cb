package daemon

import (
	"errors"
	"testing"

	"github.com/elsanchez/downlodr/internal/domain"
)

func newRecord(id string) *domain.Download {
	return &domain.Download{
		ID:       id,
		URL:      "https://example.com/" + id,
		Status:   domain.StatusQueued,
		Encoding: domain.Combined("mp4", "18"),
	}
}

func TestStore_AddAssignsSeq(t *testing.T) {
	s := NewStore()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Add(newRecord(id)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	queued := s.List(CollectionQueued)
	for i, dl := range queued {
		if dl.Seq != uint64(i+1) {
			t.Errorf("%s: expected seq %d, got %d", dl.ID, i+1, dl.Seq)
		}
		if dl.Controller != domain.NoController {
			t.Errorf("%s: expected no controller, got %q", dl.ID, dl.Controller)
		}
	}

	if err := s.Add(newRecord("b")); !errors.Is(err, domain.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if err := s.Add(&domain.Download{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestStore_HistoryIDsAreNotReused(t *testing.T) {
	s := NewStore()
	dl := newRecord("h")
	dl.Status = domain.StatusFinished
	dl.DisplayName = "original"
	s.Archive(dl)

	reused := newRecord("h")
	reused.DisplayName = "reused"
	if err := s.Add(reused); !errors.Is(err, domain.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID for archived id, got %v", err)
	}

	got, col := s.Get("h")
	if col != CollectionHistory || got.DisplayName != "original" {
		t.Errorf("history entry must stay intact, got %s/%q", col, got.DisplayName)
	}
	if s.Len(CollectionQueued) != 0 {
		t.Error("rejected record must not be queued")
	}
}

func TestStore_AbandonArchives(t *testing.T) {
	s := NewStore()
	s.Add(newRecord("ab"))
	s.Promote("ab")

	if _, err := s.Abandon("ab"); err != nil {
		t.Fatal(err)
	}
	if s.Len(CollectionActive) != 0 {
		t.Error("abandoned record must leave active")
	}
	if _, col := s.Get("ab"); col != CollectionHistory {
		t.Errorf("expected history, got %s", col)
	}
	if _, err := s.Abandon("ab"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PromoteAndRequeueKeepOrder(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Add(newRecord(id))
	}

	if _, err := s.Promote("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Promote("c"); err != nil {
		t.Fatal(err)
	}
	if ids := idsOf(s.List(CollectionQueued)); len(ids) != 2 || ids[0] != "b" || ids[1] != "d" {
		t.Fatalf("unexpected queue %v", ids)
	}

	if _, err := s.Requeue("c"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Requeue("a"); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "b", "c", "d"}
	got := idsOf(s.List(CollectionQueued))
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if _, err := s.Promote("zzz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Requeue("b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("queued record cannot be requeued, got %v", err)
	}
}

func TestStore_NextEligibleSkipsPlaceholders(t *testing.T) {
	s := NewStore()
	placeholder := newRecord("p")
	placeholder.Status = domain.StatusFetchingMetadata
	s.Add(placeholder)
	s.Add(newRecord("q"))

	next := s.NextEligible()
	if next == nil || next.ID != "q" {
		t.Fatalf("expected q, got %+v", next)
	}

	s.Promote("q")
	if next := s.NextEligible(); next != nil {
		t.Errorf("expected nothing eligible, got %s", next.ID)
	}
}

func TestStore_CompleteArchives(t *testing.T) {
	s := NewStore()
	dl := newRecord("f")
	dl.Formats = []domain.Format{{FormatID: "18", Ext: "mp4"}}
	s.Add(dl)
	s.Promote("f")
	dl.Controller = "h1"

	if s.Running() != 1 {
		t.Errorf("expected 1 running, got %d", s.Running())
	}

	dl.Controller = domain.NoController
	dl.Status = domain.StatusFinished
	if _, err := s.Complete("f"); err != nil {
		t.Fatal(err)
	}

	if _, col := s.Get("f"); col != CollectionFinished {
		t.Errorf("expected finished, got %s", col)
	}
	history := s.List(CollectionHistory)
	if len(history) != 1 || history[0].Formats != nil {
		t.Errorf("expected archived copy without formats, got %+v", history)
	}

	// el historial es una copia
	dl.DisplayName = "changed"
	if s.List(CollectionHistory)[0].DisplayName == "changed" {
		t.Error("history entry shares memory with the operational record")
	}

	// archivar agrega al final
	s.Archive(newRecord("g"))
	if h := s.List(CollectionHistory); len(h) != 2 || h[0].ID != "f" || h[1].ID != "g" {
		t.Errorf("expected append-only history, got %v", idsOf(h))
	}
}

func TestStore_RemoveAndHistory(t *testing.T) {
	s := NewStore()
	s.Add(newRecord("a"))
	s.Add(newRecord("b"))
	s.Promote("b")

	if _, col, err := s.Remove("b"); err != nil || col != CollectionActive {
		t.Errorf("expected removal from active, got %s/%v", col, err)
	}
	if _, _, err := s.Remove("b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	s.Archive(newRecord("x"))
	s.Archive(newRecord("y"))
	if err := s.RemoveHistory("x"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveHistory("x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n := s.ClearHistory(); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if s.Len(CollectionHistory) != 0 {
		t.Error("history should be empty")
	}
}

func TestStore_SnapshotRestore(t *testing.T) {
	s := NewStore()
	dl := newRecord("a")
	dl.Tags = []string{"music"}
	s.Add(dl)
	dl.Controller = "h7"
	s.Archive(dl)

	state := s.Snapshot()
	if len(state.History) != 1 || state.History[0].Controller != domain.NoController {
		t.Fatalf("unexpected snapshot %+v", state.History)
	}
	if len(state.Tags) != 1 {
		t.Errorf("expected tag pool in snapshot, got %v", state.Tags)
	}

	state.History[0].Controller = "h9"

	restored := NewStore()
	restored.Restore(state)
	if h := restored.List(CollectionHistory); len(h) != 1 || h[0].Controller != domain.NoController {
		t.Errorf("restored history must not carry a handle: %+v", h)
	}
	if restored.Len(CollectionQueued) != 0 {
		t.Error("operational collections are not persisted")
	}
}

func TestParseCollection(t *testing.T) {
	for _, c := range Collections {
		got, err := ParseCollection(string(c))
		if err != nil || got != c {
			t.Errorf("ParseCollection(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseCollection("paused"); err == nil {
		t.Error("expected error for unknown collection")
	}
}
