package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/downloader"
	"github.com/elsanchez/downlodr/internal/platform"
)

// RemoveOptions controla qué pasa con el archivo al quitar una descarga
type RemoveOptions struct {
	DeleteFile bool `json:"delete_file"`
}

// handleEvent aplica un evento de worker. Los eventos de handles que ya no
// pertenecen a ninguna descarga se descartan.
func (q *QueueManager) handleEvent(ev domain.WorkerEvent) {
	dl, col := q.store.Get(ev.RecordID)
	if dl == nil || col != CollectionActive || dl.Controller != ev.Handle {
		return
	}

	switch ev.Kind {
	case domain.EventProgress:
		q.applyProgress(dl, ev.Progress)

	case domain.EventFinished:
		dl.Controller = domain.NoController
		dl.Speed, dl.ETA = "", ""
		log.Printf("Download %s reported finished, verifying %s", dl.ID, dl.TargetPath())
		q.startVerification(dl)
		q.admitNext()

	case domain.EventFailed, domain.EventCancelled:
		dl.Controller = domain.NoController
		dl.Speed, dl.ETA = "", ""
		now := q.now()
		dl.CompletedAt = &now
		if ev.Kind == domain.EventFailed {
			dl.Status = domain.StatusFailed
			if ev.Err != nil {
				dl.ErrorMessage = ev.Err.Error()
			}
			log.Printf("Download %s failed: %v", dl.ID, ev.Err)
			q.raise(domain.NoticeError, "download_failed", "Download failed", fmt.Sprintf("%s: %s", dl.DisplayName, dl.ErrorMessage), dl.ID)
		} else {
			dl.Status = domain.StatusCancelled
			log.Printf("Download %s cancelled", dl.ID)
			q.raise(domain.NoticeWarning, "download_cancelled", "Download cancelled", dl.DisplayName, dl.ID)
		}
		delete(q.purged, dl.ID)
		if _, err := q.store.Abandon(dl.ID); err != nil {
			log.Printf("Failed to archive download %s: %v", dl.ID, err)
		}
		q.persist()
		q.admitNext()
	}
}

func (q *QueueManager) applyProgress(dl *domain.Download, p domain.Progress) {
	if dl.Status == domain.StatusInitializing {
		dl.Status = domain.StatusDownloading
	}
	if dl.Status != domain.StatusDownloading {
		return
	}

	dl.Speed = p.Speed
	dl.ETA = p.ETA
	if p.TotalBytes > 0 {
		dl.SizeBytes = p.TotalBytes
	}

	// El progreso solo baja una vez, después de purgar el parcial
	if q.purged[dl.ID] {
		delete(q.purged, dl.ID)
		dl.Progress = p.Percent
		return
	}
	if p.Percent > dl.Progress {
		dl.Progress = p.Percent
	}
}

// startVerification sondea la existencia del artefacto fuera del loop
func (q *QueueManager) startVerification(dl *domain.Download) {
	id, path := dl.ID, dl.TargetPath()
	token := q.nextToken()
	q.verifying[id] = token

	interval, timeout := q.opts.VerifyInterval, q.opts.VerifyTimeout
	q.background(func() {
		deadline := time.Now().Add(timeout)
		missed := false
		for {
			exists, err := q.files.Exists(path)
			if err != nil {
				log.Printf("Failed to probe %s: %v", path, err)
			}
			if exists {
				q.post(func() { q.completeVerified(id, token) })
				return
			}
			if !missed {
				missed = true
				q.post(func() { q.markVerifying(id, token) })
			}
			if time.Now().After(deadline) {
				q.post(func() { q.verificationTimedOut(id, token, path, timeout) })
				return
			}

			t := time.NewTimer(interval)
			select {
			case <-q.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	})
}

func (q *QueueManager) verificationOwner(id string, token uint64) *domain.Download {
	if q.verifying[id] != token {
		return nil
	}
	dl, col := q.store.Get(id)
	if dl == nil || col != CollectionActive {
		delete(q.verifying, id)
		return nil
	}
	return dl
}

func (q *QueueManager) markVerifying(id string, token uint64) {
	if dl := q.verificationOwner(id, token); dl != nil {
		dl.Status = domain.StatusInitializing
	}
}

func (q *QueueManager) completeVerified(id string, token uint64) {
	dl := q.verificationOwner(id, token)
	if dl == nil {
		return
	}
	delete(q.verifying, id)
	delete(q.purged, id)

	dl.Status = domain.StatusFinished
	dl.Progress = 100
	dl.ErrorMessage = ""
	now := q.now()
	dl.CompletedAt = &now
	if _, err := q.store.Complete(id); err != nil {
		log.Printf("Failed to complete download %s: %v", id, err)
		return
	}
	q.persist()
	q.admitNext()

	log.Printf("Download %s completed: %s", id, dl.TargetPath())
	q.raise(domain.NoticeInfo, "", "Download complete", fmt.Sprintf("Ready: %s", dl.TargetPath()), id)
}

func (q *QueueManager) verificationTimedOut(id string, token uint64, path string, timeout time.Duration) {
	dl := q.verificationOwner(id, token)
	if dl == nil {
		return
	}
	delete(q.verifying, id)

	err := fmt.Errorf("%w: %s after %s", domain.ErrArtifactMissingTimeout, path, timeout)
	dl.Status = domain.StatusInitializing
	dl.ErrorMessage = err.Error()
	q.raiseErr(domain.NoticeError, "Download needs attention", err, id)
}

// Pause detiene el worker y deja la descarga en paused.
// Si el kill falla la descarga no cambia.
func (q *QueueManager) Pause(ctx context.Context, id string) error {
	var handle domain.ControllerHandle
	err := q.do(ctx, func() error {
		dl, err := q.activeRecord(id)
		if err != nil {
			return err
		}
		if !dl.Status.IsRunning() || !dl.Controller.IsSet() {
			return fmt.Errorf("pause %s (%s): %w", id, dl.Status, domain.ErrInvalidTransition)
		}
		handle = dl.Controller
		q.busy[id] = true
		return nil
	})
	if err != nil {
		return err
	}

	ok := q.controller.Kill(handle)

	// la segunda fase libera busy aunque el caller ya no espere
	return q.do(context.Background(), func() error {
		delete(q.busy, id)
		if !ok {
			err := fmt.Errorf("pause %s: %w", id, domain.ErrWorkerKillFailed)
			q.raiseErr(domain.NoticeWarning, "Could not pause download", err, id)
			return err
		}
		q.applyPause(id, handle)
		q.admitNext()
		return nil
	})
}

func (q *QueueManager) applyPause(id string, handle domain.ControllerHandle) {
	dl, col := q.store.Get(id)
	if dl == nil || col != CollectionActive || dl.Controller != handle {
		return
	}
	dl.Controller = domain.NoController
	dl.Status = domain.StatusPaused
	dl.Speed, dl.ETA = "", ""
	log.Printf("Download %s paused at %.1f%%", id, dl.Progress)
}

// Resume reanuda una descarga pausada. Si el límite bajó mientras estaba
// pausada y ya no le toca slot, vuelve a la cola.
func (q *QueueManager) Resume(ctx context.Context, id string) error {
	return q.do(ctx, func() error {
		dl, err := q.activeRecord(id)
		if err != nil {
			return err
		}
		if err := q.resume(dl); err != nil {
			return err
		}
		q.admitNext()
		return nil
	})
}

func (q *QueueManager) resume(dl *domain.Download) error {
	if dl.Status != domain.StatusPaused {
		return fmt.Errorf("resume %s (%s): %w", dl.ID, dl.Status, domain.ErrInvalidTransition)
	}
	if _, pending := q.starting[dl.ID]; pending {
		return nil
	}

	cleanup := q.opts.NeedsCleanupOnResume(dl)
	if q.overCeiling() {
		if _, err := q.store.Requeue(dl.ID); err != nil {
			return err
		}
		dl.Status = domain.StatusQueued
		if cleanup {
			q.needsPurge[dl.ID] = true
		}
		log.Printf("Download %s requeued, no free slot", dl.ID)
		return nil
	}

	q.launch(dl, cleanup)
	return nil
}

// launch arranca el worker de una descarga que ya está en activas. Con
// cleanup los parciales se borran primero, fuera del loop y con el slot reservado.
func (q *QueueManager) launch(dl *domain.Download, cleanup bool) {
	if !cleanup {
		q.begin(dl)
		return
	}

	id, target, expected := dl.ID, dl.TargetPath(), dl.Status
	token := q.nextToken()
	q.starting[id] = token
	q.background(func() {
		purged := q.purgePartials(id, target)
		q.post(func() {
			if q.starting[id] != token {
				return
			}
			delete(q.starting, id)
			dl, col := q.store.Get(id)
			if dl == nil || col != CollectionActive || dl.Status != expected || dl.Controller.IsSet() {
				q.admitNext()
				return
			}
			if purged {
				q.purged[id] = true
			}
			q.begin(dl)
			q.admitNext()
		})
	})
}

func (q *QueueManager) begin(dl *domain.Download) {
	resuming := dl.Status == domain.StatusPaused
	if !q.startWorker(dl) {
		return
	}
	if resuming {
		dl.Status = domain.StatusDownloading
		log.Printf("Download %s resumed", dl.ID)
	}
}

// purgePartials borra los parciales de target. Los errores solo se avisan.
func (q *QueueManager) purgePartials(id, target string) bool {
	purged := false
	for _, path := range platform.PartialArtifacts(target) {
		exists, err := q.files.Exists(path)
		if err != nil {
			q.postFileError(id, fmt.Errorf("%w: probe %s: %v", domain.ErrFileOperationFailed, path, err))
			continue
		}
		if !exists {
			continue
		}
		if err := q.files.Remove(path); err != nil {
			q.postFileError(id, fmt.Errorf("%w: delete %s: %v", domain.ErrFileOperationFailed, path, err))
			continue
		}
		log.Printf("Removed partial file %s before resuming %s", path, id)
		purged = true
	}
	return purged
}

func (q *QueueManager) postFileError(id string, err error) {
	q.post(func() { q.raiseErr(domain.NoticeWarning, "File operation failed", err, id) })
}

// PauseAll pausa todas las descargas con worker vivo
func (q *QueueManager) PauseAll(ctx context.Context) (*domain.BatchResult, error) {
	handles := map[string]domain.ControllerHandle{}
	err := q.do(ctx, func() error {
		for _, dl := range q.store.Active() {
			if dl.Status.IsRunning() && dl.Controller.IsSet() && !q.busy[dl.ID] {
				handles[dl.ID] = dl.Controller
				q.busy[dl.ID] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	killed := q.killAll(handles)

	result := domain.NewBatchResult()
	err = q.do(context.Background(), func() error {
		for id, handle := range handles {
			delete(q.busy, id)
			if !killed[id] {
				err := fmt.Errorf("pause %s: %w", id, domain.ErrWorkerKillFailed)
				q.raiseErr(domain.NoticeWarning, "Could not pause download", err, id)
				result.Add(id, err)
				continue
			}
			q.applyPause(id, handle)
			result.Add(id, nil)
		}
		q.admitNext()
		return nil
	})
	return result, err
}

// ResumeAll reanuda las descargas pausadas en orden de llegada
func (q *QueueManager) ResumeAll(ctx context.Context) (*domain.BatchResult, error) {
	result := domain.NewBatchResult()
	err := q.do(ctx, func() error {
		paused := []*domain.Download{}
		for _, dl := range q.store.Active() {
			if dl.Status == domain.StatusPaused {
				paused = append(paused, dl)
			}
		}
		sortBySeq(paused)
		for _, dl := range paused {
			result.Add(dl.ID, q.resume(dl))
		}
		q.admitNext()
		return nil
	})
	return result, err
}

// StopDownload quita una descarga encolada o activa, matando su worker si lo tiene
func (q *QueueManager) StopDownload(ctx context.Context, id string) error {
	result, err := q.removeRecords(ctx, []string{id}, RemoveOptions{}, false)
	if err != nil {
		return err
	}
	return result.err(id)
}

// StopSelected aplica StopDownload a cada id. Un kill fallido solo excluye a ese id.
func (q *QueueManager) StopSelected(ctx context.Context, ids []string) (*domain.BatchResult, error) {
	return q.batch(q.removeRecords(ctx, ids, RemoveOptions{}, false))
}

// StopAll quita todas las descargas encoladas y activas
func (q *QueueManager) StopAll(ctx context.Context) (*domain.BatchResult, error) {
	var ids []string
	err := q.do(ctx, func() error {
		for _, dl := range q.store.Queued() {
			ids = append(ids, dl.ID)
		}
		for _, dl := range q.store.Active() {
			ids = append(ids, dl.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q.batch(q.removeRecords(ctx, ids, RemoveOptions{}, false))
}

// Remove quita una descarga de cualquier colección operativa
func (q *QueueManager) Remove(ctx context.Context, id string, opts RemoveOptions) error {
	result, err := q.removeRecords(ctx, []string{id}, opts, true)
	if err != nil {
		return err
	}
	return result.err(id)
}

// RemoveSelected aplica Remove a cada id
func (q *QueueManager) RemoveSelected(ctx context.Context, ids []string, opts RemoveOptions) (*domain.BatchResult, error) {
	return q.batch(q.removeRecords(ctx, ids, opts, true))
}

func (q *QueueManager) batch(out *batchOutcome, err error) (*domain.BatchResult, error) {
	if err != nil {
		return nil, err
	}
	return out.BatchResult, nil
}

type batchOutcome struct {
	*domain.BatchResult
	errs map[string]error
}

func (b *batchOutcome) add(id string, err error) {
	b.Add(id, err)
	if err != nil {
		b.errs[id] = err
	}
}

func (b *batchOutcome) err(id string) error {
	return b.errs[id]
}

// removeRecords es el camino común de stop/remove: lo que no tiene worker se
// quita en el acto, los workers vivos se matan en paralelo y luego se quitan.
// Al final corre una sola pasada de admisión.
func (q *QueueManager) removeRecords(ctx context.Context, ids []string, opts RemoveOptions, allowFinished bool) (*batchOutcome, error) {
	out := &batchOutcome{BatchResult: domain.NewBatchResult(), errs: map[string]error{}}
	handles := map[string]domain.ControllerHandle{}
	var targets []string

	err := q.do(ctx, func() error {
		for _, id := range ids {
			dl, col := q.store.Get(id)
			switch {
			case dl == nil || col == CollectionHistory:
				out.add(id, fmt.Errorf("remove %s: %w", id, domain.ErrNotFound))
				continue
			case col == CollectionFinished && !allowFinished:
				out.add(id, fmt.Errorf("stop %s (%s): %w", id, dl.Status, domain.ErrInvalidTransition))
				continue
			case q.busy[id]:
				out.add(id, fmt.Errorf("remove %s: operation in progress: %w", id, domain.ErrInvalidTransition))
				continue
			}

			if dl.Controller.IsSet() {
				handles[id] = dl.Controller
				q.busy[id] = true
				continue
			}
			if path := q.dropRecord(id); path != "" {
				targets = append(targets, path)
			}
			out.add(id, nil)
		}
		if len(handles) == 0 {
			q.admitNext()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(handles) > 0 {
		killed := q.killAll(handles)
		err = q.do(context.Background(), func() error {
			for id, handle := range handles {
				delete(q.busy, id)
				if !killed[id] {
					err := fmt.Errorf("stop %s: %w", id, domain.ErrWorkerKillFailed)
					q.raiseErr(domain.NoticeWarning, "Could not stop download", err, id)
					out.add(id, err)
					continue
				}
				if dl, _ := q.store.Get(id); dl != nil && dl.Controller == handle {
					dl.Controller = domain.NoController
				}
				if path := q.dropRecord(id); path != "" {
					targets = append(targets, path)
				}
				out.add(id, nil)
			}
			q.admitNext()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.DeleteFile {
		for _, target := range targets {
			q.deleteArtifacts(target)
		}
	}
	return out, nil
}

// dropRecord quita la descarga del store y cancela su trabajo pendiente.
// Retorna el path del artefacto.
func (q *QueueManager) dropRecord(id string) string {
	dl, col, err := q.store.Remove(id)
	if err != nil {
		return ""
	}
	delete(q.starting, id)
	delete(q.verifying, id)
	delete(q.purged, id)
	delete(q.needsPurge, id)
	q.resolveWaiters(id, nil, fmt.Errorf("%s removed before metadata arrived: %w", id, domain.ErrNotFound))
	log.Printf("Download %s removed from %s", id, col)
	return dl.TargetPath()
}

// deleteArtifacts borra el archivo y sus parciales; los errores solo se avisan
func (q *QueueManager) deleteArtifacts(target string) {
	for _, path := range platform.PartialArtifacts(target) {
		if err := q.files.Remove(path); err != nil {
			err = fmt.Errorf("%w: delete %s: %v", domain.ErrFileOperationFailed, path, err)
			q.post(func() { q.raiseErr(domain.NoticeWarning, "File operation failed", err, "") })
		}
	}
}

// killAll mata los handles en paralelo, fuera del loop
func (q *QueueManager) killAll(handles map[string]domain.ControllerHandle) map[string]bool {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		killed = make(map[string]bool, len(handles))
	)
	for id, h := range handles {
		wg.Add(1)
		go func(id string, h domain.ControllerHandle) {
			defer wg.Done()
			ok := q.controller.Kill(h)
			mu.Lock()
			killed[id] = ok
			mu.Unlock()
		}(id, h)
	}
	wg.Wait()
	return killed
}

// Rename cambia el nombre de una descarga encolada, conservando la extensión
func (q *QueueManager) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name cannot be empty")
	}
	return q.do(ctx, func() error {
		dl, err := q.queuedRecord(id, "rename")
		if err != nil {
			return err
		}
		dl.FileName = downloader.ReplaceExtension(name, dl.FileName)
		dl.DisplayName = strings.TrimSuffix(dl.FileName, filepath.Ext(dl.FileName))
		return nil
	})
}

// SetEncoding cambia la selección de formato de una descarga encolada
func (q *QueueManager) SetEncoding(ctx context.Context, id string, enc domain.Encoding) error {
	return q.do(ctx, func() error {
		dl, err := q.queuedRecord(id, "set encoding")
		if err != nil {
			return err
		}
		if err := domain.CheckEncoding(dl.Formats, enc); err != nil {
			return fmt.Errorf("set encoding %s: %w", id, err)
		}
		dl.Encoding = enc
		base := strings.TrimSuffix(dl.FileName, filepath.Ext(dl.FileName))
		dl.FileName = downloader.BuildFileName(base, enc.Ext, dl.DisplayName)
		return nil
	})
}

// RemoveFromHistory borra una entrada del historial
func (q *QueueManager) RemoveFromHistory(ctx context.Context, id string) error {
	return q.do(ctx, func() error {
		if err := q.store.RemoveHistory(id); err != nil {
			return err
		}
		q.persist()
		return nil
	})
}

// ClearHistory vacía el historial
func (q *QueueManager) ClearHistory(ctx context.Context) (int, error) {
	var n int
	err := q.do(ctx, func() error {
		n = q.store.ClearHistory()
		q.persist()
		return nil
	})
	return n, err
}

func (q *QueueManager) activeRecord(id string) (*domain.Download, error) {
	dl, col := q.store.Get(id)
	if dl == nil || col == CollectionHistory {
		return nil, fmt.Errorf("download %s: %w", id, domain.ErrNotFound)
	}
	if col != CollectionActive {
		return nil, fmt.Errorf("download %s is %s: %w", id, col, domain.ErrInvalidTransition)
	}
	if q.busy[id] {
		return nil, fmt.Errorf("download %s: operation in progress: %w", id, domain.ErrInvalidTransition)
	}
	return dl, nil
}

func (q *QueueManager) queuedRecord(id, op string) (*domain.Download, error) {
	dl, col := q.store.Get(id)
	if dl == nil || col == CollectionHistory {
		return nil, fmt.Errorf("%s %s: %w", op, id, domain.ErrNotFound)
	}
	if col != CollectionQueued || dl.Status != domain.StatusQueued {
		return nil, fmt.Errorf("%s %s (%s): %w", op, id, dl.Status, domain.ErrInvalidTransition)
	}
	return dl, nil
}

func sortBySeq(list []*domain.Download) {
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
}
