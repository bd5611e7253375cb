// Package blobstore persists the historical state as a single JSON document
// in a gocloud.dev bucket (file://, mem://, or any driver linked in).
package blobstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/repository"
)

// StateKey is the object key holding the state document.
const StateKey = "state.json"

// StateRepository stores domain.PersistedState in a bucket.
type StateRepository struct {
	bucket *blob.Bucket
	key    string
}

var _ repository.StateRepository = (*StateRepository)(nil)

// Open opens the bucket at url, e.g. "file:///var/lib/downlodr" or "mem://".
func Open(ctx context.Context, url string) (*StateRepository, error) {
	bkt, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return New(bkt), nil
}

// New wraps an already opened bucket.
func New(bkt *blob.Bucket) *StateRepository {
	return &StateRepository{bucket: bkt, key: StateKey}
}

// Load reads the state document. A missing document yields an empty state.
func (r *StateRepository) Load(ctx context.Context) (*domain.PersistedState, error) {
	data, err := r.bucket.ReadAll(ctx, r.key)
	if err != nil {
		if isNotExist(err) {
			return emptyState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s domain.PersistedState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Categories == nil {
		s.Categories = []string{}
	}
	for _, dl := range s.History {
		dl.Controller = domain.NoController
	}

	return &s, nil
}

// Save overwrites the state document.
func (r *StateRepository) Save(ctx context.Context, state *domain.PersistedState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := r.bucket.WriteAll(ctx, r.key, data, nil); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Close releases the bucket.
func (r *StateRepository) Close() error {
	return r.bucket.Close()
}

func emptyState() *domain.PersistedState {
	return &domain.PersistedState{
		History:    []*domain.Download{},
		Tags:       []string{},
		Categories: []string{},
	}
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
