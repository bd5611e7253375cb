package daemon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
)

// fakeController entrega handles h1, h2, ... y deja que el test emita eventos
type fakeController struct {
	mu       sync.Mutex
	events   chan domain.WorkerEvent
	next     int
	handles  map[domain.ControllerHandle]string
	killFail map[string]bool
	started  []string
	startErr error
}

func newFakeController() *fakeController {
	return &fakeController{
		events:   make(chan domain.WorkerEvent, 100),
		handles:  make(map[domain.ControllerHandle]string),
		killFail: make(map[string]bool),
	}
}

func (f *fakeController) Start(ctx context.Context, recordID string, spec domain.JobSpec) (domain.ControllerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return domain.NoController, f.startErr
	}
	if err := spec.Validate(); err != nil {
		return domain.NoController, err
	}
	f.next++
	h := domain.ControllerHandle(fmt.Sprintf("h%d", f.next))
	f.handles[h] = recordID
	f.started = append(f.started, recordID)
	return h, nil
}

func (f *fakeController) Kill(h domain.ControllerHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.handles[h]
	delete(f.handles, h)
	if !ok {
		return false
	}
	return !f.killFail[rec]
}

func (f *fakeController) Events() <-chan domain.WorkerEvent {
	return f.events
}

func (f *fakeController) failKill(recordID string) {
	f.mu.Lock()
	f.killFail[recordID] = true
	f.mu.Unlock()
}

func (f *fakeController) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

func (f *fakeController) emit(id string, h domain.ControllerHandle, kind domain.WorkerEventKind, p domain.Progress, err error) {
	f.events <- domain.WorkerEvent{RecordID: id, Handle: h, Kind: kind, Progress: p, Err: err}
}

// fakeFiles es un filesystem en memoria
type fakeFiles struct {
	mu        sync.Mutex
	exists    map[string]bool
	removed   []string
	removeErr error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{exists: make(map[string]bool)}
}

func (f *fakeFiles) Exists(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("empty path")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[path], nil
}

func (f *fakeFiles) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.exists, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeFiles) set(path string, exists bool) {
	f.mu.Lock()
	f.exists[path] = exists
	f.mu.Unlock()
}

func (f *fakeFiles) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[path]
}

// fakeMeta responde metadata por URL; block retiene las respuestas
type fakeMeta struct {
	mu      sync.Mutex
	results map[string]*domain.Metadata
	errs    map[string]error
	block   chan struct{}
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		results: make(map[string]*domain.Metadata),
		errs:    make(map[string]error),
	}
}

func (f *fakeMeta) FetchInfo(ctx context.Context, rawURL string) (*domain.Metadata, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if m, ok := f.results[rawURL]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown url %s", domain.ErrMetadataFetchFailed, rawURL)
}

// memRepo guarda el estado en memoria
type memRepo struct {
	mu    sync.Mutex
	state *domain.PersistedState
	saves int
}

func (r *memRepo) Load(ctx context.Context) (*domain.PersistedState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return &domain.PersistedState{Tags: []string{}, Categories: []string{}}, nil
	}
	return r.state, nil
}

func (r *memRepo) Save(ctx context.Context, state *domain.PersistedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.saves++
	return nil
}

func (r *memRepo) snapshot() *domain.PersistedState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type testEnv struct {
	q     *QueueManager
	ctl   *fakeController
	files *fakeFiles
	meta  *fakeMeta
	repo  *memRepo
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		ctl:   newFakeController(),
		files: newFakeFiles(),
		meta:  newFakeMeta(),
		repo:  &memRepo{},
	}
	return env.start(t, opts)
}

func (env *testEnv) start(t *testing.T, opts Options) *testEnv {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = "/downloads"
	}
	if opts.VerifyInterval == 0 {
		opts.VerifyInterval = 5 * time.Millisecond
	}
	env.q = NewQueueManager(env.repo, env.ctl, env.meta, env.files, LogNotifier{}, opts)
	if err := env.q.Start(context.Background()); err != nil {
		t.Fatalf("failed to start queue manager: %v", err)
	}
	t.Cleanup(env.q.Stop)
	return env
}

func (env *testEnv) enqueue(t *testing.T, id, ext string) *domain.Download {
	t.Helper()
	dl, err := env.q.Enqueue(context.Background(), EnqueueRequest{
		ID:          id,
		URL:         "https://example.com/watch?v=" + id,
		DisplayName: id,
		Encoding:    domain.Combined(ext, "18"),
	})
	if err != nil {
		t.Fatalf("failed to enqueue %s: %v", id, err)
	}
	return dl
}

func (env *testEnv) status(t *testing.T, id string) (*domain.Download, Collection) {
	t.Helper()
	dl, col, err := env.q.Status(context.Background(), id)
	if err != nil {
		return nil, ""
	}
	return dl, col
}

func (env *testEnv) hasNotice(code string) bool {
	for _, n := range env.q.Notices(0) {
		if n.Code == code {
			return true
		}
	}
	return false
}

// waitFor sondea cond hasta que sea true o venza el timeout
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
