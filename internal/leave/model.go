package leave

import (
	"time"

	"github.com/google/uuid"
)

// Record marks a practitioner unavailable for whole days, StartDate through
// EndDate inclusive.
type Record struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	ClinicID       uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	Reason         string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r Record) Covers(date time.Time) bool {
	return r.Active && !date.Before(r.StartDate) && !date.After(r.EndDate)
}

func (r Record) Overlaps(start, end time.Time) bool {
	return !r.EndDate.Before(start) && !r.StartDate.After(end)
}
