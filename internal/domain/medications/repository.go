package medications

import "context"

type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByChild(ctx context.Context, childID string) ([]Medication, error)
	Delete(ctx context.Context, id string) error
}
