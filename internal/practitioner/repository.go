package practitioner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

var ErrPractitionerNotFound = fmt.Errorf("practitioner %w", store.ErrNotFound)

type Repository interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	UpdateCapacityMultiplier(ctx context.Context, id uuid.UUID, multiplier string) (*Profile, error)

	GetSchedule(ctx context.Context, id uuid.UUID) (availability.Schedule, error)
	SaveSchedule(ctx context.Context, id uuid.UUID, weekly availability.WeeklyAvailability, slotDurationMinutes int) error
}
