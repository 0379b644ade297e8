package prescriptions

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores prescriptions in memory and is safe for concurrent use.
// It backs local development and tests when no database is configured.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Prescription
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Prescription)}
}

// Create stores the prescription. IDs are write-once, matching the
// primary-key behavior of the Postgres repo.
func (r *MemoryRepo) Create(ctx context.Context, rec Prescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[rec.ID]; exists {
		return ErrDuplicateID
	}
	r.byID[rec.ID] = rec
	return nil
}

// GetByID returns a prescription by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Prescription, error) {
	if err := ctx.Err(); err != nil {
		return Prescription{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return Prescription{}, ErrNotFound
	}
	return rec, nil
}

// List returns prescriptions newest-first with limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Prescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	all := make([]Prescription, 0, len(r.byID))
	for _, rec := range r.byID {
		all = append(all, rec)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].AnalyzedAt.After(all[j].AnalyzedAt)
	})

	if offset >= len(all) {
		return []Prescription{}, nil
	}
	end := len(all)
	if offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
