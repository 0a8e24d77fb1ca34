package appointment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// Lookup is one way of locating an appointment.
type Lookup interface {
	find(ctx context.Context, repo Repository) (*Appointment, error)
	String() string
}

type byID uuid.UUID

func ByID(id uuid.UUID) Lookup { return byID(id) }

func (l byID) find(ctx context.Context, repo Repository) (*Appointment, error) {
	return repo.GetByID(ctx, uuid.UUID(l))
}

func (l byID) String() string { return "id " + uuid.UUID(l).String() }

type byExternalID string

func ByExternalID(ref string) Lookup { return byExternalID(ref) }

func (l byExternalID) find(ctx context.Context, repo Repository) (*Appointment, error) {
	return repo.GetByExternalID(ctx, string(l))
}

func (l byExternalID) String() string { return "external id " + string(l) }

// LookupsFor turns a caller-supplied reference into lookups. A value that
// parses as a UUID is tried as an internal id first and then as an external
// id; anything else is only an external id.
func LookupsFor(ref string) ([]Lookup, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, calendar.Invalid("appointment_id", "is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return []Lookup{ByID(id), ByExternalID(ref)}, nil
	}
	return []Lookup{ByExternalID(ref)}, nil
}
