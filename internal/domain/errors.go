package domain

import "errors"

var (
	ErrNotFound          = errors.New("download not found")
	ErrDuplicateID       = errors.New("download id already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidEncoding   = errors.New("invalid encoding")
	ErrStopped           = errors.New("queue manager stopped")

	// Condiciones recuperables que se convierten en avisos al usuario
	ErrMetadataFetchFailed    = errors.New("metadata fetch failed")
	ErrLiveStreamRejected     = errors.New("live streams are not supported")
	ErrWorkerKillFailed       = errors.New("worker kill failed")
	ErrArtifactMissingTimeout = errors.New("downloaded file did not appear in time")
	ErrFileOperationFailed    = errors.New("file operation failed")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrDuplicateID, "duplicate_id"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrInvalidEncoding, "invalid_encoding"},
	{ErrStopped, "stopped"},
	{ErrMetadataFetchFailed, "metadata_fetch_failed"},
	{ErrLiveStreamRejected, "live_stream_rejected"},
	{ErrWorkerKillFailed, "worker_kill_failed"},
	{ErrArtifactMissingTimeout, "artifact_missing_timeout"},
	{ErrFileOperationFailed, "file_operation_failed"},
}

// ErrorCode retorna un código estable para un error (vacío si err es nil)
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

// BatchResult es el resultado de una operación sobre varias descargas
type BatchResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// NewBatchResult crea un resultado vacío
func NewBatchResult() *BatchResult {
	return &BatchResult{Succeeded: []string{}, Failed: map[string]string{}}
}

// Add registra el resultado de una descarga del lote
func (r *BatchResult) Add(id string, err error) {
	if err != nil {
		r.Failed[id] = err.Error()
		return
	}
	r.Succeeded = append(r.Succeeded, id)
}
