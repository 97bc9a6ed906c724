package memory

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/tendant/content-unit/pkg/contentunit"
)

// Repository implements contentunit.DocumentRepository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	units map[string]*contentunit.Unit
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		units: make(map[string]*contentunit.Unit),
	}
}

func (r *Repository) Create(ctx context.Context, unit *contentunit.Unit) (*contentunit.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[unit.ID]; exists {
		return nil, fmt.Errorf("%w: %s", contentunit.ErrConflict, unit.ID)
	}

	// Create a copy to avoid external modifications
	unitCopy := *unit
	r.units[unit.ID] = &unitCopy

	result := unitCopy
	return &result, nil
}

func (r *Repository) Update(ctx context.Context, id string, patch contentunit.UnitPatch) (*contentunit.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, exists := r.units[id]
	if !exists {
		return nil, fmt.Errorf("%w: unit %s", contentunit.ErrNotFound, id)
	}

	patch.Apply(unit)

	result := *unit
	return &result, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[id]; !exists {
		return fmt.Errorf("%w: unit %s", contentunit.ErrNotFound, id)
	}

	delete(r.units, id)
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*contentunit.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, exists := r.units[id]
	if !exists {
		return nil, fmt.Errorf("%w: unit %s", contentunit.ErrNotFound, id)
	}

	// Return a copy to prevent external modifications
	unitCopy := *unit
	return &unitCopy, nil
}

// List snapshots the matching units each time the sequence is ranged over,
// newest first.
func (r *Repository) List(ctx context.Context, filter contentunit.ListFilter) iter.Seq2[*contentunit.Unit, error] {
	return func(yield func(*contentunit.Unit, error) bool) {
		r.mu.RLock()
		var result []*contentunit.Unit
		for _, unit := range r.units {
			if filter.Matches(unit) {
				unitCopy := *unit
				result = append(result, &unitCopy)
			}
		}
		r.mu.RUnlock()

		sort.Slice(result, func(i, j int) bool {
			if result[i].CreatedAt.Equal(result[j].CreatedAt) {
				return result[i].ID < result[j].ID
			}
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})

		for _, unit := range result {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(unit, nil) {
				return
			}
		}
	}
}
