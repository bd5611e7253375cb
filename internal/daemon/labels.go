package daemon

import (
	"context"
	"fmt"
	"strings"

	"github.com/elsanchez/downlodr/internal/domain"
)

// ParseLabelKind valida "tag" o "category"
func ParseLabelKind(s string) (LabelKind, error) {
	switch LabelKind(s) {
	case LabelTag, LabelCategory:
		return LabelKind(s), nil
	}
	return "", fmt.Errorf("unknown label kind: %q", s)
}

func (s *Store) pool(kind LabelKind) *[]string {
	if kind == LabelCategory {
		return &s.categories
	}
	return &s.tags
}

func labelsOf(dl *domain.Download, kind LabelKind) *[]string {
	if kind == LabelCategory {
		return &dl.Categories
	}
	return &dl.Tags
}

func (s *Store) addToPool(kind LabelKind, label string) {
	p := s.pool(kind)
	for _, l := range *p {
		if l == label {
			return
		}
	}
	*p = append(*p, label)
}

// Labels retorna una copia del pool
func (s *Store) Labels(kind LabelKind) []string {
	return append([]string{}, *s.pool(kind)...)
}

// AddLabel agrega un label a una descarga (y al pool si falta). Es idempotente.
func (s *Store) AddLabel(kind LabelKind, id, label string) error {
	dl, _ := s.Get(id)
	if dl == nil {
		return fmt.Errorf("add %s to %s: %w", kind, id, domain.ErrNotFound)
	}
	s.addToPool(kind, label)

	list := labelsOf(dl, kind)
	for _, l := range *list {
		if l == label {
			return nil
		}
	}
	*list = append(*list, label)
	return nil
}

// RemoveLabel quita un label de una descarga; el pool no cambia
func (s *Store) RemoveLabel(kind LabelKind, id, label string) error {
	dl, _ := s.Get(id)
	if dl == nil {
		return fmt.Errorf("remove %s from %s: %w", kind, id, domain.ErrNotFound)
	}
	*labelsOf(dl, kind) = without(*labelsOf(dl, kind), label)
	return nil
}

// RenameLabel renombra un label en el pool y en las cuatro colecciones.
// Retorna cuántas descargas cambiaron.
func (s *Store) RenameLabel(kind LabelKind, oldLabel, newLabel string) (int, error) {
	p := s.pool(kind)
	found := false
	for _, l := range *p {
		if l == oldLabel {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("rename %s %q: %w", kind, oldLabel, domain.ErrNotFound)
	}
	if oldLabel == newLabel {
		return 0, nil
	}

	// El nuevo nombre puede existir ya: se fusionan
	renamed := make([]string, 0, len(*p))
	for _, l := range *p {
		switch l {
		case oldLabel:
			renamed = appendUnique(renamed, newLabel)
		case newLabel:
			renamed = appendUnique(renamed, newLabel)
		default:
			renamed = append(renamed, l)
		}
	}
	*p = renamed

	changed := 0
	for _, list := range s.all() {
		for _, dl := range list {
			labels := labelsOf(dl, kind)
			if !containsLabel(*labels, oldLabel) {
				continue
			}
			next := make([]string, 0, len(*labels))
			for _, l := range *labels {
				if l == oldLabel {
					l = newLabel
				}
				next = appendUnique(next, l)
			}
			*labels = next
			changed++
		}
	}
	return changed, nil
}

// DeleteLabel borra un label del pool y de las cuatro colecciones
func (s *Store) DeleteLabel(kind LabelKind, label string) (int, error) {
	p := s.pool(kind)
	if !containsLabel(*p, label) {
		return 0, fmt.Errorf("delete %s %q: %w", kind, label, domain.ErrNotFound)
	}
	*p = without(*p, label)

	changed := 0
	for _, list := range s.all() {
		for _, dl := range list {
			labels := labelsOf(dl, kind)
			if containsLabel(*labels, label) {
				*labels = without(*labels, label)
				changed++
			}
		}
	}
	return changed, nil
}

func containsLabel(list []string, label string) bool {
	for _, l := range list {
		if l == label {
			return true
		}
	}
	return false
}

func appendUnique(list []string, label string) []string {
	if containsLabel(list, label) {
		return list
	}
	return append(list, label)
}

func without(list []string, label string) []string {
	out := make([]string, 0, len(list))
	for _, l := range list {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}

func normalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("label cannot be empty")
	}
	return label, nil
}

// AddLabel agrega un tag o categoría a una descarga
func (q *QueueManager) AddLabel(ctx context.Context, kind LabelKind, id, label string) error {
	label, err := normalizeLabel(label)
	if err != nil {
		return err
	}
	return q.do(ctx, func() error {
		if err := q.store.AddLabel(kind, id, label); err != nil {
			return err
		}
		q.persist()
		return nil
	})
}

// RemoveLabel quita un tag o categoría de una descarga
func (q *QueueManager) RemoveLabel(ctx context.Context, kind LabelKind, id, label string) error {
	return q.do(ctx, func() error {
		if err := q.store.RemoveLabel(kind, id, label); err != nil {
			return err
		}
		q.persist()
		return nil
	})
}

// RenameLabel renombra un label en todas las colecciones en una sola operación
func (q *QueueManager) RenameLabel(ctx context.Context, kind LabelKind, oldLabel, newLabel string) (int, error) {
	newLabel, err := normalizeLabel(newLabel)
	if err != nil {
		return 0, err
	}
	var changed int
	err = q.do(ctx, func() error {
		n, err := q.store.RenameLabel(kind, oldLabel, newLabel)
		if err != nil {
			return err
		}
		changed = n
		q.persist()
		return nil
	})
	return changed, err
}

// DeleteLabel borra un label de todas las colecciones en una sola operación
func (q *QueueManager) DeleteLabel(ctx context.Context, kind LabelKind, label string) (int, error) {
	var changed int
	err := q.do(ctx, func() error {
		n, err := q.store.DeleteLabel(kind, label)
		if err != nil {
			return err
		}
		changed = n
		q.persist()
		return nil
	})
	return changed, err
}

// Labels retorna los pools de tags y categorías
func (q *QueueManager) Labels(ctx context.Context) (tags, categories []string, err error) {
	err = q.do(ctx, func() error {
		tags = q.store.Labels(LabelTag)
		categories = q.store.Labels(LabelCategory)
		return nil
	})
	return tags, categories, err
}
