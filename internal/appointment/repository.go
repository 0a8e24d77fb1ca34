package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

var ErrAppointmentNotFound = fmt.Errorf("appointment %w", store.ErrNotFound)

// Repository contains all DB interactions needed by the service. Insert and
// Move fail with store.ErrConflict when the slot ordinal is already taken.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByExternalID(ctx context.Context, externalID string) (*Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]Appointment, error)

	// For duplicate and capacity checks
	FindNonCancelledForPatient(ctx context.Context, patientID, clinicID uuid.UUID, date time.Time) (*Appointment, error)
	ListBookedTimes(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]calendar.Clock, error)
	SlotOccupants(ctx context.Context, slot Slot) ([]SlotOccupant, error)

	// Creation and updates
	Insert(ctx context.Context, appt Appointment) (*Appointment, error)
	Move(ctx context.Context, id uuid.UUID, target Slot, ordinal int, notes *string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// No-show worker
	FindOverdueActive(ctx context.Context, before time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
