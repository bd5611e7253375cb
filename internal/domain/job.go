package domain

import (
	"errors"
	"fmt"
)

// JobSpec contiene lo que el worker necesita para ejecutar una descarga
type JobSpec struct {
	URL        string
	OutputPath string
	Encoding   Encoding
	RateLimit  string
}

// Validate verifica la especificación antes de arrancar el worker
func (s JobSpec) Validate() error {
	if s.URL == "" {
		return errors.New("job spec: url is required")
	}
	if s.OutputPath == "" {
		return errors.New("job spec: output path is required")
	}
	if err := s.Encoding.Validate(); err != nil {
		return fmt.Errorf("job spec: %w", err)
	}
	return nil
}

// WorkerEventKind clasifica los eventos que emite un worker
type WorkerEventKind string

const (
	EventProgress  WorkerEventKind = "progress"
	EventFinished  WorkerEventKind = "finished"
	EventFailed    WorkerEventKind = "failed"
	EventCancelled WorkerEventKind = "cancelled"
)

// IsTerminal retorna true si el worker ya terminó
func (k WorkerEventKind) IsTerminal() bool {
	return k == EventFinished || k == EventFailed || k == EventCancelled
}

// Progress es una actualización de progreso del worker
type Progress struct {
	Percent         float64
	Speed           string
	ETA             string
	TotalBytes      int64
	DownloadedBytes int64
	Status          string
}

// WorkerEvent es un evento asíncrono de un worker, identificado por descarga y handle
type WorkerEvent struct {
	RecordID string
	Handle   ControllerHandle
	Kind     WorkerEventKind
	Progress Progress
	Err      error
}
