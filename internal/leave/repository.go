package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

var ErrLeaveNotFound = fmt.Errorf("leave record %w", store.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, rec Record) (*Record, error)
	Update(ctx context.Context, rec Record) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// ListActiveCovering returns active records with start <= date <= end.
	ListActiveCovering(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Record, error)
	// ListInRange returns records of any state overlapping [start, end].
	ListInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Record, error)
}
