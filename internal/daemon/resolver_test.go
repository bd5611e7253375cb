package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/elsanchez/downlodr/internal/domain"
)

func TestResolveAndWait(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 1})
	ctx := context.Background()

	env.meta.results["https://www.youtube.com/watch?v=ok"] = &domain.Metadata{
		Title:        "Some: Video",
		ExtractorKey: "Youtube",
		FormatID:     "137+140",
		Ext:          "mp4",
		Filesize:     1024,
		Formats: []domain.Format{
			{FormatID: "140", Ext: "m4a", ACodec: "mp4a"},
			{FormatID: "137", Ext: "mp4", VCodec: "avc1"},
		},
	}
	env.meta.results["https://www.twitch.tv/live"] = &domain.Metadata{Title: "Live", IsLive: true, FormatID: "best", Ext: "mp4"}
	env.meta.errs["https://example.com/broken"] = errors.New("ERROR: Unsupported URL")

	t.Run("success", func(t *testing.T) {
		dl, err := env.q.ResolveAndWait(ctx, AddRequest{
			URL:  "https://www.youtube.com/watch?v=ok",
			Tags: []string{"music", " music ", ""},
		})
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if dl.DisplayName != "Some: Video" || dl.FileName != "Some_ Video.mp4" {
			t.Errorf("unexpected names: %q %q", dl.DisplayName, dl.FileName)
		}
		if dl.Encoding.Selector() != "137+140" || dl.Encoding.AudioExt != "m4a" {
			t.Errorf("unexpected encoding %+v", dl.Encoding)
		}
		if dl.Platform != domain.PlatformYouTube {
			t.Errorf("expected youtube platform, got %s", dl.Platform)
		}
		if len(dl.Tags) != 1 || dl.Tags[0] != "music" {
			t.Errorf("expected cleaned tags, got %v", dl.Tags)
		}
		if dl.Location != "/downloads" {
			t.Errorf("expected default location, got %q", dl.Location)
		}

		got, col := env.status(t, dl.ID)
		if col != CollectionActive || got.Status != domain.StatusInitializing {
			t.Errorf("expected resolved download admitted, got %s/%s", col, got.Status)
		}
	})

	t.Run("live stream", func(t *testing.T) {
		_, err := env.q.ResolveAndWait(ctx, AddRequest{URL: "https://www.twitch.tv/live"})
		if !errors.Is(err, domain.ErrLiveStreamRejected) {
			t.Errorf("expected ErrLiveStreamRejected, got %v", err)
		}
		if !env.hasNotice("live_stream_rejected") {
			t.Error("expected live_stream_rejected notice")
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		_, err := env.q.ResolveAndWait(ctx, AddRequest{URL: "https://example.com/broken"})
		if !errors.Is(err, domain.ErrMetadataFetchFailed) {
			t.Errorf("expected ErrMetadataFetchFailed, got %v", err)
		}
	})

	t.Run("bad rate limit", func(t *testing.T) {
		_, err := env.q.ResolveAndWait(ctx, AddRequest{URL: "https://example.com/x", RateLimit: "-1"})
		if err == nil {
			t.Error("expected error for invalid rate limit")
		}
	})

	stats, _ := env.q.GetStats(ctx)
	if stats.Active+stats.Queued != 1 {
		t.Errorf("rejected urls must leave no record, got %+v", stats)
	}
}

func TestResolve_PlaceholderNotAdmitted(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 0})
	env.meta.block = make(chan struct{})
	ctx := context.Background()

	placeholder, err := env.q.Resolve(ctx, AddRequest{URL: "https://vimeo.com/1"})
	if err != nil {
		t.Fatal(err)
	}
	if placeholder.Status != domain.StatusFetchingMetadata || placeholder.DisplayName != "https://vimeo.com/1" {
		t.Errorf("unexpected placeholder %+v", placeholder)
	}

	if err := env.q.Admit(ctx); err != nil {
		t.Fatal(err)
	}
	_, col := env.status(t, placeholder.ID)
	if col != CollectionQueued {
		t.Errorf("placeholder must stay queued while resolving, got %s", col)
	}
	if env.ctl.startedCount() != 0 {
		t.Error("no worker should start for a placeholder")
	}
}

func TestResolve_PlaceholderRemovedWhileResolving(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 1})
	env.meta.block = make(chan struct{})
	env.meta.results["https://vimeo.com/2"] = &domain.Metadata{Title: "Two", FormatID: "hd", Ext: "mp4"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		dl  *domain.Download
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		dl, err := env.q.ResolveAndWait(ctx, AddRequest{URL: "https://vimeo.com/2"})
		done <- outcome{dl, err}
	}()

	var id string
	waitFor(t, "placeholder", func() bool {
		queued, _ := env.q.List(context.Background(), CollectionQueued)
		if len(queued) == 1 {
			id = queued[0].ID
			return true
		}
		return false
	})

	if err := env.q.Remove(context.Background(), id, RemoveOptions{}); err != nil {
		t.Fatalf("failed to remove placeholder: %v", err)
	}
	res := <-done
	if !errors.Is(res.err, domain.ErrNotFound) {
		t.Errorf("expected waiter to see ErrNotFound, got %v", res.err)
	}

	// la metadata tardía no revive la descarga
	close(env.meta.block)
	if err := env.q.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, _ := env.status(t, id); got != nil {
		t.Errorf("removed placeholder came back: %+v", got)
	}
}
