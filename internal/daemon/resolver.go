package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/downloader"
	"github.com/elsanchez/downlodr/internal/utils"
)

// AddRequest pide resolver una URL y encolarla
type AddRequest struct {
	URL        string   `json:"url"`
	Location   string   `json:"location,omitempty"`
	RateLimit  string   `json:"rate_limit,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// EnqueueRequest encola una descarga con la metadata ya conocida
type EnqueueRequest struct {
	ID           string          `json:"id,omitempty"`
	URL          string          `json:"url"`
	DisplayName  string          `json:"display_name"`
	FileName     string          `json:"file_name,omitempty"`
	Location     string          `json:"location,omitempty"`
	Encoding     domain.Encoding `json:"encoding"`
	Formats      []domain.Format `json:"formats,omitempty"`
	SizeBytes    int64           `json:"size_bytes,omitempty"`
	ExtractorKey string          `json:"extractor_key,omitempty"`
	IsLive       bool            `json:"is_live,omitempty"`
	RateLimit    string          `json:"rate_limit,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Categories   []string        `json:"categories,omitempty"`
}

type resolveResult struct {
	dl  *domain.Download
	err error
}

func (q *QueueManager) rateLimitFor(requested string) (string, error) {
	if requested == "" {
		requested = q.opts.DefaultRateLimit
	}
	if requested == "" {
		return "", nil
	}
	rl, err := utils.NormalizeRateLimit(requested)
	if err != nil {
		return "", fmt.Errorf("rate limit %q: %w", requested, err)
	}
	return rl, nil
}

func (q *QueueManager) locationFor(requested string) string {
	if requested != "" {
		return requested
	}
	return q.opts.OutputDir
}

func cleanLabels(labels []string) []string {
	out := []string{}
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = appendUnique(out, l)
		}
	}
	return out
}

// Resolve inserta un placeholder en metadata-fetching y resuelve la URL en
// segundo plano. Retorna el placeholder.
func (q *QueueManager) Resolve(ctx context.Context, req AddRequest) (*domain.Download, error) {
	return q.resolve(ctx, req, nil)
}

// ResolveAndWait es como Resolve pero espera la metadata
func (q *QueueManager) ResolveAndWait(ctx context.Context, req AddRequest) (*domain.Download, error) {
	ch := make(chan resolveResult, 1)
	if _, err := q.resolve(ctx, req, ch); err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.dl, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, domain.ErrStopped
	}
}

func (q *QueueManager) resolve(ctx context.Context, req AddRequest, waiter chan resolveResult) (*domain.Download, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, errors.New("url is required")
	}
	rateLimit, err := q.rateLimitFor(req.RateLimit)
	if err != nil {
		return nil, err
	}

	dl := &domain.Download{
		ID:          uuid.NewString(),
		URL:         url,
		DisplayName: url,
		Location:    q.locationFor(req.Location),
		Status:      domain.StatusFetchingMetadata,
		Controller:  domain.NoController,
		Tags:        cleanLabels(req.Tags),
		Categories:  cleanLabels(req.Categories),
		Platform:    downloader.DetectPlatform(url),
		RateLimit:   rateLimit,
		AddedAt:     q.now(),
	}
	if dl.Location == "" {
		return nil, errors.New("location is required")
	}

	var placeholder *domain.Download
	err = q.do(ctx, func() error {
		if err := q.store.Add(dl); err != nil {
			return err
		}
		if waiter != nil {
			q.waiters[dl.ID] = append(q.waiters[dl.ID], waiter)
		}
		if len(dl.Tags)+len(dl.Categories) > 0 {
			q.persist()
		}
		placeholder = dl.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Resolving %s (download %s)", url, dl.ID)
	id := dl.ID
	q.background(func() {
		meta, err := q.meta.FetchInfo(q.ctx, url)
		q.post(func() { q.applyMetadata(id, meta, err) })
	})

	return placeholder, nil
}

// applyMetadata completa el placeholder o lo descarta
func (q *QueueManager) applyMetadata(id string, meta *domain.Metadata, fetchErr error) {
	dl, col := q.store.Get(id)
	if dl == nil || col != CollectionQueued || dl.Status != domain.StatusFetchingMetadata {
		// quitado mientras se resolvía
		return
	}

	fail := func(level domain.NoticeLevel, title string, err error) {
		q.store.Remove(id)
		q.raiseErr(level, title, err, id)
		q.resolveWaiters(id, nil, err)
	}

	if fetchErr != nil {
		if !errors.Is(fetchErr, domain.ErrMetadataFetchFailed) {
			fetchErr = fmt.Errorf("%w: %v", domain.ErrMetadataFetchFailed, fetchErr)
		}
		fail(domain.NoticeError, "Could not add download", fmt.Errorf("%s: %w", dl.URL, fetchErr))
		return
	}
	if meta.IsLive {
		fail(domain.NoticeWarning, "Live stream rejected", fmt.Errorf("%s: %w", dl.URL, domain.ErrLiveStreamRejected))
		return
	}
	enc, err := meta.DefaultEncoding()
	if err != nil {
		fail(domain.NoticeError, "Could not add download", fmt.Errorf("%s: %w", dl.URL, err))
		return
	}

	if meta.Title != "" {
		dl.DisplayName = meta.Title
	}
	dl.FileName = downloader.BuildFileName(meta.Title, enc.Ext, id)
	dl.Encoding = enc
	dl.Formats = meta.Formats
	dl.SizeBytes = meta.Filesize
	dl.ExtractorKey = meta.ExtractorKey
	dl.Status = domain.StatusQueued

	log.Printf("Download %s resolved: %s [%s]", id, dl.DisplayName, enc.Selector())
	q.resolveWaiters(id, dl.Clone(), nil)
	q.admitNext()
}

func (q *QueueManager) resolveWaiters(id string, dl *domain.Download, err error) {
	for _, ch := range q.waiters[id] {
		ch <- resolveResult{dl: dl, err: err}
	}
	delete(q.waiters, id)
}

// Enqueue agrega una descarga con la metadata completa, sin resolver
func (q *QueueManager) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Download, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, errors.New("url is required")
	}
	if req.IsLive {
		return nil, fmt.Errorf("%s: %w", url, domain.ErrLiveStreamRejected)
	}
	if err := domain.CheckEncoding(req.Formats, req.Encoding); err != nil {
		return nil, err
	}
	rateLimit, err := q.rateLimitFor(req.RateLimit)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := req.DisplayName
	if name == "" {
		name = url
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = downloader.BuildFileName(req.DisplayName, req.Encoding.Ext, id)
	} else {
		fileName = downloader.SanitizeFilename(fileName)
	}

	dl := &domain.Download{
		ID:           id,
		URL:          url,
		DisplayName:  name,
		FileName:     fileName,
		Location:     q.locationFor(req.Location),
		SizeBytes:    req.SizeBytes,
		Status:       domain.StatusQueued,
		Encoding:     req.Encoding,
		Controller:   domain.NoController,
		Tags:         cleanLabels(req.Tags),
		Categories:   cleanLabels(req.Categories),
		ExtractorKey: req.ExtractorKey,
		Platform:     downloader.DetectPlatform(url),
		RateLimit:    rateLimit,
		Formats:      req.Formats,
		AddedAt:      q.now(),
	}
	if dl.Location == "" {
		return nil, errors.New("location is required")
	}

	var out *domain.Download
	err = q.do(ctx, func() error {
		if err := q.store.Add(dl); err != nil {
			return err
		}
		if len(dl.Tags)+len(dl.Categories) > 0 {
			q.persist()
		}
		log.Printf("Download %s enqueued: %s", dl.ID, dl.DisplayName)
		q.admitNext()
		out = dl.Clone()
		return nil
	})
	return out, err
}
