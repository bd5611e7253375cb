package domain

import (
	"path/filepath"
	"time"
)

// DownloadStatus representa los estados posibles de una descarga
type DownloadStatus string

const (
	StatusFetchingMetadata DownloadStatus = "metadata-fetching"
	StatusQueued           DownloadStatus = "queued"
	StatusInitializing     DownloadStatus = "initializing"
	StatusDownloading      DownloadStatus = "downloading"
	StatusPaused           DownloadStatus = "paused"
	StatusFinished         DownloadStatus = "finished"
	StatusFailed           DownloadStatus = "failed"
	StatusCancelled        DownloadStatus = "cancelled"
)

// Valid retorna true si el status es uno de los conocidos
func (s DownloadStatus) Valid() bool {
	switch s {
	case StatusFetchingMetadata, StatusQueued, StatusInitializing, StatusDownloading,
		StatusPaused, StatusFinished, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal retorna true para finished, failed y cancelled
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCancelled
}

// IsRunning retorna true si el status admite un controller vivo
func (s DownloadStatus) IsRunning() bool {
	return s == StatusInitializing || s == StatusDownloading
}

// ControllerHandle es una referencia opaca a un proceso worker externo
type ControllerHandle string

// NoController indica que todavía no hay worker asignado
const NoController ControllerHandle = "---"

// IsSet retorna true si el handle apunta a un worker
func (h ControllerHandle) IsSet() bool {
	return h != "" && h != NoController
}

// Download representa una descarga en el sistema, durante todo su ciclo de vida
type Download struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	DisplayName  string           `json:"display_name"`
	FileName     string           `json:"file_name"`
	Location     string           `json:"location"`
	SizeBytes    int64            `json:"size_bytes"`
	Speed        string           `json:"speed"`
	ETA          string           `json:"eta"`
	Progress     float64          `json:"progress"`
	Status       DownloadStatus   `json:"status"`
	Encoding     Encoding         `json:"encoding"`
	Controller   ControllerHandle `json:"controller"`
	Tags         []string         `json:"tags"`
	Categories   []string         `json:"categories"`
	ExtractorKey string           `json:"extractor_key,omitempty"`
	Platform     string           `json:"platform,omitempty"`
	RateLimit    string           `json:"rate_limit,omitempty"`
	IsLive       bool             `json:"is_live"`
	Formats      []Format         `json:"formats,omitempty"`
	AddedAt      time.Time        `json:"added_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`

	// Seq fija el orden FIFO dentro de la cola
	Seq uint64 `json:"-"`
}

// TargetPath retorna el path final del artefacto descargado
func (d *Download) TargetPath() string {
	if d.Location == "" || d.FileName == "" {
		return ""
	}
	return filepath.Join(d.Location, d.FileName)
}

// HasTag retorna true si la descarga tiene el tag
func (d *Download) HasTag(tag string) bool {
	return contains(d.Tags, tag)
}

// HasCategory retorna true si la descarga pertenece a la categoría
func (d *Download) HasCategory(category string) bool {
	return contains(d.Categories, category)
}

// JobSpec construye la especificación para el worker
func (d *Download) JobSpec() JobSpec {
	return JobSpec{
		URL:        d.URL,
		OutputPath: d.TargetPath(),
		Encoding:   d.Encoding,
		RateLimit:  d.RateLimit,
	}
}

// Clone retorna una copia profunda, segura para usar fuera del loop
func (d *Download) Clone() *Download {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	c.Categories = append([]string(nil), d.Categories...)
	c.Formats = append([]Format(nil), d.Formats...)
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
