package repository

import (
	"context"

	"github.com/elsanchez/downlodr/internal/domain"
)

// StateRepository persiste el subconjunto histórico del estado:
// historial, pool de tags y pool de categorías
type StateRepository interface {
	// Load retorna el estado guardado; un almacenamiento vacío retorna un estado vacío
	Load(ctx context.Context) (*domain.PersistedState, error)

	// Save reemplaza el estado guardado por completo
	Save(ctx context.Context, state *domain.PersistedState) error
}
