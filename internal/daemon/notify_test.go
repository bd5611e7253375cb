package daemon

import (
	"fmt"
	"sync"
	"testing"

	"github.com/elsanchez/downlodr/internal/domain"
)

func TestNoticeLog_After(t *testing.T) {
	l := NewNoticeLog(3)

	for i := 1; i <= 5; i++ {
		n := l.Add(domain.Notice{Title: fmt.Sprintf("n%d", i)})
		if n.Seq != uint64(i) || n.Time.IsZero() {
			t.Errorf("unexpected notice %+v", n)
		}
	}

	all := l.After(0)
	if len(all) != 3 || all[0].Title != "n3" || all[2].Title != "n5" {
		t.Errorf("expected last three notices, got %+v", all)
	}

	tail := l.After(4)
	if len(tail) != 1 || tail[0].Seq != 5 {
		t.Errorf("expected only n5, got %+v", tail)
	}

	if none := l.After(5); none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
	if l.Last() != 5 {
		t.Errorf("expected last seq 5, got %d", l.Last())
	}
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []domain.Notice
}

func (r *recordingNotifier) Notify(n domain.Notice) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func TestMultiNotifier(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	m := MultiNotifier{a, LogNotifier{}, b}

	m.Notify(domain.Notice{Level: domain.NoticeError, Title: "x"})

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("expected every notifier called, got %d/%d", len(a.got), len(b.got))
	}
}

func TestDesktopNotifier_MinLevel(t *testing.T) {
	tests := []struct {
		name  string
		min   domain.NoticeLevel
		level domain.NoticeLevel
		want  bool
	}{
		{"warning floor drops info", domain.NoticeWarning, domain.NoticeInfo, false},
		{"warning floor keeps warning", domain.NoticeWarning, domain.NoticeWarning, true},
		{"warning floor keeps error", domain.NoticeWarning, domain.NoticeError, true},
		{"error floor drops warning", domain.NoticeError, domain.NoticeWarning, false},
		{"no floor keeps info", "", domain.NoticeInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DesktopNotifier{MinLevel: tt.min}
			if got := d.accepts(domain.Notice{Level: tt.level}); got != tt.want {
				t.Errorf("accepts(%s) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestQueue_NoticesForwarded(t *testing.T) {
	rec := &recordingNotifier{}
	env := &testEnv{
		ctl:   newFakeController(),
		files: newFakeFiles(),
		meta:  newFakeMeta(),
		repo:  &memRepo{},
	}
	env.q = NewQueueManager(env.repo, env.ctl, env.meta, env.files, rec, Options{Ceiling: 1, OutputDir: "/downloads"})
	if err := env.q.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(env.q.Stop)

	env.ctl.startErr = domain.ErrStopped
	env.enqueue(t, "n1", "mp4")

	notices := env.q.Notices(0)
	if len(notices) != 1 || notices[0].RecordID != "n1" || notices[0].Code != "download_failed" {
		t.Fatalf("unexpected notices %+v", notices)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.got) != 1 || rec.got[0].Seq != notices[0].Seq {
		t.Errorf("notifier did not receive the logged notice: %+v", rec.got)
	}
}
