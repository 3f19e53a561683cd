package records

import (
	"context"
	"time"
)

// ListFilter acota ListByChild; los campos en cero no filtran.
type ListFilter struct {
	Type  RecordType
	From  *time.Time // sobre DueAt
	To    *time.Time
	Limit int
}

type Repository interface {
	Create(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	ListByChild(ctx context.Context, childID string, f ListFilter) ([]Record, error)
}
