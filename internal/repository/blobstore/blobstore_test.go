package blobstore

import (
	"context"
	"testing"
	"time"

	"gocloud.dev/blob"

	"github.com/elsanchez/downlodr/internal/domain"
)

func TestLoadMissingDocument(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(ctx, "mem://")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer repo.Close()

	state, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.History) != 0 || state.Tags == nil || state.Categories == nil {
		t.Errorf("expected empty state, got %+v", state)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	bkt, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	repo := New(bkt)
	defer repo.Close()

	done := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := &domain.PersistedState{
		History: []*domain.Download{
			{
				ID:          "h1",
				URL:         "https://youtube.com/watch?v=h1",
				Status:      domain.StatusFinished,
				Encoding:    domain.Combined("mp4", "22"),
				Controller:  "stale-handle",
				Tags:        []string{"music"},
				AddedAt:     done.Add(-time.Minute),
				CompletedAt: &done,
			},
		},
		Tags:       []string{"music"},
		Categories: nil,
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err := bkt.Exists(ctx, StateKey)
	if err != nil || !ok {
		t.Fatalf("expected %s in bucket, exists=%v err=%v", StateKey, ok, err)
	}

	out, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(out.History))
	}
	got := out.History[0]
	if got.Controller != domain.NoController {
		t.Errorf("expected controller reset, got %q", got.Controller)
	}
	if got.Encoding != in.History[0].Encoding {
		t.Errorf("encoding mismatch: %+v", got.Encoding)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed_at mismatch: %v", got.CompletedAt)
	}
	if out.Categories == nil {
		t.Error("expected non-nil categories")
	}
}

func TestLoadCorruptDocument(t *testing.T) {
	ctx := context.Background()
	bkt, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer bkt.Close()

	if err := bkt.WriteAll(ctx, StateKey, []byte("{not json"), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := New(bkt).Load(ctx); err == nil {
		t.Error("expected error for corrupt document")
	}
}
