package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/platform"
	"github.com/elsanchez/downlodr/internal/repository"
)

// Controller arranca y detiene workers externos
type Controller interface {
	Start(ctx context.Context, recordID string, spec domain.JobSpec) (domain.ControllerHandle, error)
	Kill(handle domain.ControllerHandle) bool
	Events() <-chan domain.WorkerEvent
}

// MetadataSource resuelve la metadata de una URL
type MetadataSource interface {
	FetchInfo(ctx context.Context, rawURL string) (*domain.Metadata, error)
}

// FileProbe son las operaciones de disco que necesita el ciclo de vida
type FileProbe interface {
	Exists(path string) (bool, error)
	Remove(path string) error
}

// Options configura el QueueManager
type Options struct {
	// Ceiling es el máximo de workers simultáneos; 0 = sin límite
	Ceiling          int
	DefaultRateLimit string
	OutputDir        string

	// NeedsCleanupOnResume decide si los parciales se borran antes de reanudar
	NeedsCleanupOnResume func(*domain.Download) bool

	VerifyInterval time.Duration
	VerifyTimeout  time.Duration
}

// CleanupByFormat arma el predicado de limpieza a partir de extensiones
func CleanupByFormat(formats ...string) func(*domain.Download) bool {
	return func(dl *domain.Download) bool {
		for _, f := range formats {
			if dl.Encoding.UsesExtension(f) {
				return true
			}
		}
		return false
	}
}

// Stats resume el estado del gestor
type Stats struct {
	Queued     int            `json:"queued"`
	Active     int            `json:"active"`
	Finished   int            `json:"finished"`
	History    int            `json:"history"`
	Running    int            `json:"running"`
	Ceiling    int            `json:"ceiling"`
	Unlimited  bool           `json:"unlimited"`
	ByStatus   map[string]int `json:"by_status"`
	Tags       int            `json:"tags"`
	Categories int            `json:"categories"`
}

// QueueManager es el único dueño del Store. Todas las mutaciones corren en
// un solo goroutine (loop); el trabajo lento corre afuera y vuelve con post.
type QueueManager struct {
	store      *Store
	repo       repository.StateRepository
	controller Controller
	meta       MetadataSource
	files      FileProbe
	notifier   Notifier
	notices    *NoticeLog
	opts       Options
	ceiling    int

	// estado propio del loop
	starting   map[string]uint64 // arranques esperando limpieza, ocupan slot
	verifying  map[string]uint64
	busy       map[string]bool // kill en curso
	purged     map[string]bool // el próximo progreso puede bajar
	needsPurge map[string]bool // reanudadas que volvieron a la cola
	waiters    map[string][]chan resolveResult
	token      uint64

	ops       chan func()
	persister *persister
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	now       func() time.Time
}

// NewQueueManager crea un nuevo gestor de cola
func NewQueueManager(
	repo repository.StateRepository,
	controller Controller,
	meta MetadataSource,
	files FileProbe,
	notifier Notifier,
	opts Options,
) *QueueManager {
	ctx, cancel := context.WithCancel(context.Background())

	if files == nil {
		files = platform.LocalFS{}
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if opts.Ceiling < 0 {
		opts.Ceiling = 0
	}
	if opts.NeedsCleanupOnResume == nil {
		opts.NeedsCleanupOnResume = CleanupByFormat("m4a")
	}
	if opts.VerifyInterval <= 0 {
		opts.VerifyInterval = time.Second
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 5 * time.Minute
	}

	return &QueueManager{
		store:      NewStore(),
		repo:       repo,
		controller: controller,
		meta:       meta,
		files:      files,
		notifier:   notifier,
		notices:    NewNoticeLog(DefaultNoticeCapacity),
		opts:       opts,
		ceiling:    opts.Ceiling,
		starting:   make(map[string]uint64),
		verifying:  make(map[string]uint64),
		busy:       make(map[string]bool),
		purged:     make(map[string]bool),
		needsPurge: make(map[string]bool),
		waiters:    make(map[string][]chan resolveResult),
		ops:        make(chan func(), 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start carga el estado persistido e inicia el loop
func (q *QueueManager) Start(ctx context.Context) error {
	if q.repo != nil {
		state, err := q.repo.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		q.store.Restore(state)
		log.Printf("Loaded %d history entries", len(state.History))
		q.persister = newPersister(q.repo)
	}

	go q.loop()

	if q.ceiling == 0 {
		log.Println("Queue manager started without concurrency ceiling")
	} else {
		log.Printf("Queue manager started with ceiling %d", q.ceiling)
	}
	return nil
}

// Stop detiene el loop y espera la última escritura del estado
func (q *QueueManager) Stop() {
	q.stopOnce.Do(func() {
		log.Println("Queue manager stopping...")
		q.cancel()
		<-q.done
		q.wg.Wait()
		if q.persister != nil {
			q.persister.close()
		}
		log.Println("Queue manager stopped")
	})
}

func (q *QueueManager) loop() {
	defer close(q.done)

	var events <-chan domain.WorkerEvent
	if q.controller != nil {
		events = q.controller.Events()
	}

	for {
		select {
		case <-q.ctx.Done():
			log.Println("Queue loop shutting down")
			return
		case fn := <-q.ops:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			q.handleEvent(ev)
		}
	}
}

// do ejecuta fn en el loop y espera su resultado
func (q *QueueManager) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case q.ops <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return domain.ErrStopped
	}
	select {
	case err := <-errc:
		return err
	case <-q.done:
		// el loop pudo cerrar antes de tomar fn
		select {
		case err := <-errc:
			return err
		default:
			return domain.ErrStopped
		}
	}
}

// post encola fn en el loop desde un goroutine de fondo
func (q *QueueManager) post(fn func()) {
	select {
	case q.ops <- fn:
	case <-q.done:
	}
}

// background lanza trabajo fuera del loop
func (q *QueueManager) background(fn func()) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		fn()
	}()
}

func (q *QueueManager) nextToken() uint64 {
	q.token++
	return q.token
}

func (q *QueueManager) persist() {
	if q.persister != nil {
		q.persister.schedule(q.store.Snapshot())
	}
}

// slotsUsed cuenta todo lo que está en activas: workers vivos, arranques
// pendientes, pausadas y las que esperan verificación.
func (q *QueueManager) slotsUsed() int {
	return q.store.Len(CollectionActive)
}

func (q *QueueManager) hasFreeSlot() bool {
	return q.ceiling == 0 || q.slotsUsed() < q.ceiling
}

// overCeiling es true cuando activas supera el límite, p. ej. tras bajarlo
func (q *QueueManager) overCeiling() bool {
	return q.ceiling != 0 && q.slotsUsed() > q.ceiling
}

// running cuenta los workers vivos o arrancando
func (q *QueueManager) running() int {
	return q.store.Running() + len(q.starting)
}

// admitNext promueve descargas encoladas mientras haya slots libres.
// Llamarla de más no cambia nada.
func (q *QueueManager) admitNext() {
	for q.hasFreeSlot() {
		dl := q.store.NextEligible()
		if dl == nil {
			return
		}
		if _, err := q.store.Promote(dl.ID); err != nil {
			log.Printf("Failed to promote download %s: %v", dl.ID, err)
			return
		}
		dl.Status = domain.StatusInitializing
		log.Printf("Download %s admitted", dl.ID)

		cleanup := q.needsPurge[dl.ID]
		delete(q.needsPurge, dl.ID)
		q.launch(dl, cleanup)
	}
}

// startWorker pide un handle al controller. Un fallo deja la descarga en failed.
func (q *QueueManager) startWorker(dl *domain.Download) bool {
	handle, err := q.controller.Start(q.ctx, dl.ID, dl.JobSpec())
	if err != nil {
		log.Printf("Failed to start worker for download %s: %v", dl.ID, err)
		dl.Controller = domain.NoController
		dl.Status = domain.StatusFailed
		dl.ErrorMessage = err.Error()
		now := q.now()
		dl.CompletedAt = &now
		if _, err := q.store.Abandon(dl.ID); err != nil {
			log.Printf("Failed to archive download %s: %v", dl.ID, err)
		}
		q.persist()
		q.raise(domain.NoticeError, "download_failed", "Download failed", fmt.Sprintf("%s: %v", dl.DisplayName, err), dl.ID)
		return false
	}
	dl.Controller = handle
	dl.ErrorMessage = ""
	return true
}

// raise registra un aviso y lo reenvía al notifier
func (q *QueueManager) raise(level domain.NoticeLevel, code, title, message, recordID string) {
	n := q.notices.Add(domain.Notice{
		Level:    level,
		Code:     code,
		Title:    title,
		Message:  message,
		RecordID: recordID,
	})
	q.notifier.Notify(n)
}

func (q *QueueManager) raiseErr(level domain.NoticeLevel, title string, err error, recordID string) {
	log.Printf("%s (%s): %v", title, recordID, err)
	q.raise(level, domain.ErrorCode(err), title, err.Error(), recordID)
}

// Admit fuerza una pasada de admisión
func (q *QueueManager) Admit(ctx context.Context) error {
	return q.do(ctx, func() error {
		q.admitNext()
		return nil
	})
}

// SetCeiling cambia el límite de concurrencia; 0 = sin límite
func (q *QueueManager) SetCeiling(ctx context.Context, ceiling int) error {
	if ceiling < 0 {
		return fmt.Errorf("ceiling must be >= 0, got %d", ceiling)
	}
	return q.do(ctx, func() error {
		q.ceiling = ceiling
		log.Printf("Concurrency ceiling set to %d", ceiling)
		q.admitNext()
		return nil
	})
}

// Status retorna una copia de la descarga
func (q *QueueManager) Status(ctx context.Context, id string) (*domain.Download, Collection, error) {
	var (
		out *domain.Download
		col Collection
	)
	err := q.do(ctx, func() error {
		dl, c := q.store.Get(id)
		if dl == nil {
			return fmt.Errorf("status %s: %w", id, domain.ErrNotFound)
		}
		out, col = dl.Clone(), c
		return nil
	})
	return out, col, err
}

// List retorna copias de una colección
func (q *QueueManager) List(ctx context.Context, c Collection) ([]*domain.Download, error) {
	var out []*domain.Download
	err := q.do(ctx, func() error {
		out = q.store.List(c)
		return nil
	})
	return out, err
}

// GetStats retorna estadísticas de la cola
func (q *QueueManager) GetStats(ctx context.Context) (*Stats, error) {
	var stats *Stats
	err := q.do(ctx, func() error {
		byStatus := make(map[string]int)
		for s, n := range q.store.CountByStatus() {
			byStatus[string(s)] = n
		}
		stats = &Stats{
			Queued:     q.store.Len(CollectionQueued),
			Active:     q.store.Len(CollectionActive),
			Finished:   q.store.Len(CollectionFinished),
			History:    q.store.Len(CollectionHistory),
			Running:    q.running(),
			Ceiling:    q.ceiling,
			Unlimited:  q.ceiling == 0,
			ByStatus:   byStatus,
			Tags:       len(q.store.Labels(LabelTag)),
			Categories: len(q.store.Labels(LabelCategory)),
		}
		return nil
	})
	return stats, err
}

// Notices retorna los avisos posteriores a after
func (q *QueueManager) Notices(after uint64) []domain.Notice {
	return q.notices.After(after)
}
