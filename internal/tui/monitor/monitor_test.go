package monitor

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/pkg/client"
)

type fakeDaemon struct {
	lists   map[string][]*domain.Download
	calls   []string
	added   []string
	failing error
}

func (f *fakeDaemon) List(collection string, limit int) ([]*domain.Download, error) {
	return f.lists[collection], nil
}

func (f *fakeDaemon) GetStats() (*client.Stats, error) {
	return &client.Stats{Active: len(f.lists["active"]), Ceiling: 5}, nil
}

func (f *fakeDaemon) Notices(after uint64) ([]domain.Notice, error) {
	return []domain.Notice{{Seq: after + 1, Level: domain.NoticeWarning, Title: "Heads up"}}, nil
}

func (f *fakeDaemon) Add(p *client.AddPayload) (*domain.Download, error) {
	f.added = append(f.added, p.URL)
	return &domain.Download{ID: "new", URL: p.URL}, nil
}

func (f *fakeDaemon) Pause(id string) error  { f.calls = append(f.calls, "pause "+id); return f.failing }
func (f *fakeDaemon) Resume(id string) error { f.calls = append(f.calls, "resume "+id); return f.failing }
func (f *fakeDaemon) Stop(id string) error   { f.calls = append(f.calls, "stop "+id); return f.failing }

func (f *fakeDaemon) Remove(id string, deleteFile bool) error {
	f.calls = append(f.calls, "remove "+id)
	return f.failing
}

func (f *fakeDaemon) StopAll() (*domain.BatchResult, error) {
	f.calls = append(f.calls, "stop_all")
	return domain.NewBatchResult(), nil
}

func newFake() *fakeDaemon {
	return &fakeDaemon{lists: map[string][]*domain.Download{
		"active": {
			{ID: "a1", DisplayName: "First", Status: domain.StatusDownloading, Progress: 42, Speed: "1.2MiB/s"},
			{ID: "a2", DisplayName: "Second", Status: domain.StatusPaused, Progress: 10},
		},
		"queued": {{ID: "q1", DisplayName: "Waiting", Status: domain.StatusQueued}},
	}}
}

// loaded corre el refresh inicial y aplica el resultado
func loaded(t *testing.T, f *fakeDaemon) Model {
	t.Helper()
	m := NewModel(f)
	next, _ := m.Update(refresh(f)())
	return next.(Model)
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_RendersActiveTab(t *testing.T) {
	m := loaded(t, newFake())

	view := m.View()
	for _, want := range []string{"active (2)", "queued (1)", "First", "Second", "1.2MiB/s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if m.loading {
		t.Error("loading should clear after refresh")
	}
}

func TestModel_PauseAndResume(t *testing.T) {
	f := newFake()
	m := loaded(t, f)

	m, cmd := press(m, "p")
	if cmd == nil {
		t.Fatal("expected a pause command")
	}
	cmd()

	m, _ = press(m, "down")
	_, cmd = press(m, "p")
	cmd()

	if strings.Join(f.calls, ",") != "pause a1,resume a2" {
		t.Errorf("unexpected calls %v", f.calls)
	}
}

func TestModel_TabsAndStop(t *testing.T) {
	f := newFake()
	m := loaded(t, f)

	// active -> finished -> history -> queued
	for i := 0; i < 3; i++ {
		m, _ = press(m, "tab")
	}
	if m.currentTab() != "queued" {
		t.Fatalf("expected queued tab, got %s", m.currentTab())
	}

	m, cmd := press(m, "p")
	if cmd != nil || m.errorMessage == "" {
		t.Error("pause must be rejected outside the active tab")
	}

	_, cmd = press(m, "s")
	cmd()
	if len(f.calls) != 1 || f.calls[0] != "stop q1" {
		t.Errorf("unexpected calls %v", f.calls)
	}
}

func TestModel_AddURL(t *testing.T) {
	f := newFake()
	m := loaded(t, f)

	m, _ = press(m, "a")
	if !m.adding {
		t.Fatal("expected URL prompt")
	}
	m, _ = press(m, "https://vimeo.com/9")
	m, cmd := press(m, "enter")
	if m.adding || cmd == nil {
		t.Fatal("expected prompt to close and submit")
	}

	next, _ := m.Update(cmd())
	m = next.(Model)
	if len(f.added) != 1 || f.added[0] != "https://vimeo.com/9" {
		t.Errorf("unexpected adds %v", f.added)
	}
	if !strings.Contains(m.statusMessage, "Resolving") {
		t.Errorf("unexpected status %q", m.statusMessage)
	}
}

func TestModel_ActionErrorShown(t *testing.T) {
	f := newFake()
	f.failing = errors.New("pause failed: worker kill failed (worker_kill_failed)")
	m := loaded(t, f)

	m, cmd := press(m, "p")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if !strings.Contains(m.View(), "worker_kill_failed") {
		t.Error("expected error in view")
	}
}

func TestModel_Notices(t *testing.T) {
	f := newFake()
	m := loaded(t, f)

	next, _ := m.Update(fetchNotices(f, 0)())
	m = next.(Model)
	if m.lastSeq != 1 || m.notice == nil {
		t.Fatalf("expected notice cursor to advance, got %d", m.lastSeq)
	}
	if !strings.Contains(m.View(), "Heads up") {
		t.Error("expected notice line in view")
	}
}
