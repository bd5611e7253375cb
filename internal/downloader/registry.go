package downloader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Registry asocia cada worker en ejecución con un handle opaco de un solo uso
type Registry struct {
	runner           Runner
	killTimeout      time.Duration
	progressInterval time.Duration

	events chan domain.WorkerEvent
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	procs map[domain.ControllerHandle]*process
	wg    sync.WaitGroup
}

type process struct {
	recordID string
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	exited    bool
	abandoned bool
}

// NewRegistry crea un registry sobre runner
func NewRegistry(runner Runner, killTimeout, progressInterval time.Duration) *Registry {
	if killTimeout <= 0 {
		killTimeout = 10 * time.Second
	}
	return &Registry{
		runner:           runner,
		killTimeout:      killTimeout,
		progressInterval: progressInterval,
		events:           make(chan domain.WorkerEvent, 256),
		closed:           make(chan struct{}),
		procs:            make(map[domain.ControllerHandle]*process),
	}
}

// Events retorna el canal de eventos de todos los workers
func (r *Registry) Events() <-chan domain.WorkerEvent {
	return r.events
}

// Start lanza un worker para recordID y retorna su handle
func (r *Registry) Start(ctx context.Context, recordID string, spec domain.JobSpec) (domain.ControllerHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.NoController, err
	}
	if err := spec.Validate(); err != nil {
		return domain.NoController, err
	}

	select {
	case <-r.closed:
		return domain.NoController, domain.ErrStopped
	default:
	}

	handle := domain.ControllerHandle(uuid.NewString())
	runCtx, cancel := context.WithCancel(context.Background())
	p := &process{
		recordID: recordID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	r.procs[handle] = p
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx, handle, p, spec)

	return handle, nil
}

func (r *Registry) run(ctx context.Context, handle domain.ControllerHandle, p *process, spec domain.JobSpec) {
	defer r.wg.Done()
	defer p.cancel()

	var limiter *rate.Limiter
	if r.progressInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.progressInterval), 1)
	}

	err := r.runner.Run(ctx, spec, func(pr domain.Progress) {
		if limiter != nil && !limiter.Allow() {
			return
		}
		r.emit(domain.WorkerEvent{
			RecordID: p.recordID,
			Handle:   handle,
			Kind:     domain.EventProgress,
			Progress: pr,
		})
	})

	r.mu.Lock()
	_, owned := r.procs[handle]
	delete(r.procs, handle)
	r.mu.Unlock()

	p.mu.Lock()
	p.exited = true
	abandoned := p.abandoned
	p.mu.Unlock()
	close(p.done)

	// Un kill confirmado deja el resultado al que lo pidió
	if !owned && !abandoned {
		return
	}

	ev := domain.WorkerEvent{RecordID: p.recordID, Handle: handle}
	switch {
	case err == nil:
		ev.Kind = domain.EventFinished
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		ev.Kind = domain.EventCancelled
		ev.Err = err
	default:
		ev.Kind = domain.EventFailed
		ev.Err = err
	}
	r.emit(ev)
}

func (r *Registry) emit(ev domain.WorkerEvent) {
	select {
	case r.events <- ev:
	case <-r.closed:
	}
}

// Kill detiene el worker del handle. El handle queda inutilizable aunque falle.
// Retorna false si el handle es desconocido o el worker no terminó a tiempo.
func (r *Registry) Kill(handle domain.ControllerHandle) bool {
	r.mu.Lock()
	p, ok := r.procs[handle]
	delete(r.procs, handle)
	r.mu.Unlock()

	if !ok {
		return false
	}

	p.cancel()

	timer := time.NewTimer(r.killTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return true
	case <-timer.C:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return true
	}
	p.abandoned = true
	log.Printf("Worker %s for download %s did not stop within %s", handle, p.recordID, r.killTimeout)
	return false
}

// Running retorna la cantidad de workers registrados
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Close detiene todos los workers y deja de emitir eventos
func (r *Registry) Close() error {
	r.once.Do(func() { close(r.closed) })

	r.mu.Lock()
	handles := make([]domain.ControllerHandle, 0, len(r.procs))
	for h := range r.procs {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	failed := 0
	var mu sync.Mutex
	for _, h := range handles {
		wg.Add(1)
		go func(h domain.ControllerHandle) {
			defer wg.Done()
			if !r.Kill(h) {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d workers did not stop: %w", failed, domain.ErrWorkerKillFailed)
	}
	return nil
}
