package daemon

import (
	"context"
	"log"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/repository"
)

const saveTimeout = 10 * time.Second

// persister guarda snapshots fuera del loop. Si llegan varios mientras
// se escribe uno, solo el último se guarda.
type persister struct {
	repo    repository.StateRepository
	pending chan *domain.PersistedState
	done    chan struct{}
}

func newPersister(repo repository.StateRepository) *persister {
	p := &persister{
		repo:    repo,
		pending: make(chan *domain.PersistedState, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// schedule solo se llama desde el loop (un único productor)
func (p *persister) schedule(state *domain.PersistedState) {
	select {
	case <-p.pending:
	default:
	}
	p.pending <- state
}

func (p *persister) run() {
	defer close(p.done)
	for state := range p.pending {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := p.repo.Save(ctx, state); err != nil {
			log.Printf("Failed to save state: %v", err)
		}
		cancel()
	}
}

// close espera a que se escriba el último snapshot
func (p *persister) close() {
	close(p.pending)
	<-p.done
}
