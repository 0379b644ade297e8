package prescriptions

import "context"

// Repo defines persistence operations for prescription analyses.
type Repo interface {
	Create(ctx context.Context, rec Prescription) error
	GetByID(ctx context.Context, id string) (Prescription, error)
	List(ctx context.Context, limit, offset int) ([]Prescription, error)
}
