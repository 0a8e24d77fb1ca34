package practitioner

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

const (
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
)

// Profile is the scheduling view of a staff member. Availability is stored
// on the profile row itself.
type Profile struct {
	ID                  uuid.UUID
	ClinicID            uuid.UUID
	Name                string
	Role                string
	SlotDurationMinutes int
	CapacityMultiplier  string
	Availability        *availability.WeeklyAvailability
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
