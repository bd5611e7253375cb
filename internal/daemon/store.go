package daemon

import (
	"fmt"
	"sort"

	"github.com/elsanchez/downlodr/internal/domain"
)

// Collection identifica una de las cuatro colecciones del store
type Collection string

const (
	CollectionQueued   Collection = "queued"
	CollectionActive   Collection = "active"
	CollectionFinished Collection = "finished"
	CollectionHistory  Collection = "history"
)

// Collections en el orden en que se muestran
var Collections = []Collection{CollectionQueued, CollectionActive, CollectionFinished, CollectionHistory}

// ParseCollection valida el nombre de una colección
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection: %q", s)
}

// LabelKind distingue tags de categorías
type LabelKind string

const (
	LabelTag      LabelKind = "tag"
	LabelCategory LabelKind = "category"
)

// Store es el dueño de las descargas. No es seguro para uso concurrente:
// solo el loop del QueueManager lo toca.
type Store struct {
	queued   []*domain.Download // ordenada por Seq
	active   []*domain.Download // orden de admisión
	finished []*domain.Download
	history  []*domain.Download

	tags       []string
	categories []string

	seq uint64
}

// NewStore crea un store vacío
func NewStore() *Store {
	return &Store{
		tags:       []string{},
		categories: []string{},
	}
}

// Add inserta una descarga nueva en la cola
func (s *Store) Add(dl *domain.Download) error {
	if dl.ID == "" {
		return fmt.Errorf("add download: empty id")
	}
	if _, c := s.findOperational(dl.ID); c != "" {
		return fmt.Errorf("add %s: %w", dl.ID, domain.ErrDuplicateID)
	}
	// el historial es solo de escritura al final; un id archivado no se reusa
	if indexOf(s.history, dl.ID) >= 0 {
		return fmt.Errorf("add %s: already in history: %w", dl.ID, domain.ErrDuplicateID)
	}

	s.seq++
	dl.Seq = s.seq
	if dl.Controller == "" {
		dl.Controller = domain.NoController
	}
	s.queued = append(s.queued, dl)

	for _, t := range dl.Tags {
		s.addToPool(LabelTag, t)
	}
	for _, c := range dl.Categories {
		s.addToPool(LabelCategory, c)
	}
	return nil
}

// Get busca una descarga en las colecciones operativas y luego en el historial
func (s *Store) Get(id string) (*domain.Download, Collection) {
	if dl, c := s.findOperational(id); dl != nil {
		return dl, c
	}
	if i := indexOf(s.history, id); i >= 0 {
		return s.history[i], CollectionHistory
	}
	return nil, ""
}

func (s *Store) findOperational(id string) (*domain.Download, Collection) {
	if i := indexOf(s.queued, id); i >= 0 {
		return s.queued[i], CollectionQueued
	}
	if i := indexOf(s.active, id); i >= 0 {
		return s.active[i], CollectionActive
	}
	if i := indexOf(s.finished, id); i >= 0 {
		return s.finished[i], CollectionFinished
	}
	return nil, ""
}

// Promote mueve una descarga de la cola a activas
func (s *Store) Promote(id string) (*domain.Download, error) {
	i := indexOf(s.queued, id)
	if i < 0 {
		return nil, fmt.Errorf("promote %s: %w", id, domain.ErrNotFound)
	}
	dl := s.queued[i]
	s.queued = removeAt(s.queued, i)
	s.active = append(s.active, dl)
	return dl, nil
}

// Requeue devuelve una descarga activa a la cola, en su posición original
func (s *Store) Requeue(id string) (*domain.Download, error) {
	i := indexOf(s.active, id)
	if i < 0 {
		return nil, fmt.Errorf("requeue %s: %w", id, domain.ErrNotFound)
	}
	dl := s.active[i]
	s.active = removeAt(s.active, i)

	pos := sort.Search(len(s.queued), func(j int) bool { return s.queued[j].Seq > dl.Seq })
	s.queued = append(s.queued, nil)
	copy(s.queued[pos+1:], s.queued[pos:])
	s.queued[pos] = dl
	return dl, nil
}

// Complete mueve una descarga activa a terminadas y la registra en el historial
func (s *Store) Complete(id string) (*domain.Download, error) {
	i := indexOf(s.active, id)
	if i < 0 {
		return nil, fmt.Errorf("complete %s: %w", id, domain.ErrNotFound)
	}
	dl := s.active[i]
	s.active = removeAt(s.active, i)
	s.finished = append(s.finished, dl)
	s.Archive(dl)
	return dl, nil
}

// Archive agrega una copia al final del historial
func (s *Store) Archive(dl *domain.Download) {
	entry := dl.Clone()
	entry.Controller = domain.NoController
	entry.Formats = nil
	s.history = append(s.history, entry)
}

// Abandon saca una descarga activa que terminó sin éxito y la archiva
func (s *Store) Abandon(id string) (*domain.Download, error) {
	i := indexOf(s.active, id)
	if i < 0 {
		return nil, fmt.Errorf("abandon %s: %w", id, domain.ErrNotFound)
	}
	dl := s.active[i]
	s.active = removeAt(s.active, i)
	s.Archive(dl)
	return dl, nil
}

// Remove saca una descarga de la colección operativa que la contenga
func (s *Store) Remove(id string) (*domain.Download, Collection, error) {
	if i := indexOf(s.queued, id); i >= 0 {
		dl := s.queued[i]
		s.queued = removeAt(s.queued, i)
		return dl, CollectionQueued, nil
	}
	if i := indexOf(s.active, id); i >= 0 {
		dl := s.active[i]
		s.active = removeAt(s.active, i)
		return dl, CollectionActive, nil
	}
	if i := indexOf(s.finished, id); i >= 0 {
		dl := s.finished[i]
		s.finished = removeAt(s.finished, i)
		return dl, CollectionFinished, nil
	}
	return nil, "", fmt.Errorf("remove %s: %w", id, domain.ErrNotFound)
}

// RemoveHistory borra una entrada del historial
func (s *Store) RemoveHistory(id string) error {
	i := indexOf(s.history, id)
	if i < 0 {
		return fmt.Errorf("remove history %s: %w", id, domain.ErrNotFound)
	}
	s.history = removeAt(s.history, i)
	return nil
}

// ClearHistory vacía el historial y retorna cuántas entradas había
func (s *Store) ClearHistory() int {
	n := len(s.history)
	s.history = nil
	return n
}

// Running cuenta las descargas activas con un worker vivo
func (s *Store) Running() int {
	n := 0
	for _, dl := range s.active {
		if dl.Controller.IsSet() {
			n++
		}
	}
	return n
}

// NextEligible retorna la descarga encolada más antigua lista para arrancar
func (s *Store) NextEligible() *domain.Download {
	for _, dl := range s.queued {
		if dl.Status == domain.StatusQueued {
			return dl
		}
	}
	return nil
}

// Active retorna las descargas activas (sin copiar)
func (s *Store) Active() []*domain.Download {
	return append([]*domain.Download(nil), s.active...)
}

// Queued retorna las descargas encoladas (sin copiar)
func (s *Store) Queued() []*domain.Download {
	return append([]*domain.Download(nil), s.queued...)
}

// List retorna copias de una colección
func (s *Store) List(c Collection) []*domain.Download {
	var src []*domain.Download
	switch c {
	case CollectionQueued:
		src = s.queued
	case CollectionActive:
		src = s.active
	case CollectionFinished:
		src = s.finished
	case CollectionHistory:
		src = s.history
	}
	out := make([]*domain.Download, 0, len(src))
	for _, dl := range src {
		out = append(out, dl.Clone())
	}
	return out
}

// Len retorna el tamaño de una colección
func (s *Store) Len(c Collection) int {
	switch c {
	case CollectionQueued:
		return len(s.queued)
	case CollectionActive:
		return len(s.active)
	case CollectionFinished:
		return len(s.finished)
	case CollectionHistory:
		return len(s.history)
	}
	return 0
}

// CountByStatus cuenta descargas operativas por status
func (s *Store) CountByStatus() map[domain.DownloadStatus]int {
	counts := make(map[domain.DownloadStatus]int)
	for _, list := range [][]*domain.Download{s.queued, s.active, s.finished} {
		for _, dl := range list {
			counts[dl.Status]++
		}
	}
	return counts
}

// Snapshot retorna una copia del subconjunto persistente
func (s *Store) Snapshot() *domain.PersistedState {
	state := &domain.PersistedState{
		History:    make([]*domain.Download, 0, len(s.history)),
		Tags:       append([]string{}, s.tags...),
		Categories: append([]string{}, s.categories...),
	}
	for _, dl := range s.history {
		state.History = append(state.History, dl.Clone())
	}
	return state
}

// Restore carga el estado persistido. Las colecciones operativas no se tocan.
func (s *Store) Restore(state *domain.PersistedState) {
	if state == nil {
		return
	}
	s.history = s.history[:0]
	for _, dl := range state.History {
		entry := dl.Clone()
		entry.Controller = domain.NoController
		s.history = append(s.history, entry)
	}
	s.tags = append([]string{}, state.Tags...)
	s.categories = append([]string{}, state.Categories...)
}

// all retorna las cuatro colecciones, para las mutaciones fan-out
func (s *Store) all() [][]*domain.Download {
	return [][]*domain.Download{s.queued, s.active, s.finished, s.history}
}

func indexOf(list []*domain.Download, id string) int {
	for i, dl := range list {
		if dl.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(list []*domain.Download, i int) []*domain.Download {
	copy(list[i:], list[i+1:])
	list[len(list)-1] = nil
	return list[:len(list)-1]
}
