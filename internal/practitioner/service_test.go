package practitioner

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type memRepo struct {
	fakeProfiles
}

func (m memRepo) UpdateCapacityMultiplier(_ context.Context, id uuid.UUID, multiplier string) (*Profile, error) {
	p, ok := m.fakeProfiles[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	p.CapacityMultiplier = multiplier
	return p, nil
}

func (m memRepo) GetSchedule(context.Context, uuid.UUID) (availability.Schedule, error) {
	panic("GetSchedule not expected")
}

func (m memRepo) SaveSchedule(context.Context, uuid.UUID, availability.WeeklyAvailability, int) error {
	panic("SaveSchedule not expected")
}

func TestSetCapacityMultiplier(t *testing.T) {
	id := uuid.New()
	repo := memRepo{fakeProfiles{id: {ID: id, Role: RoleAdmin, CapacityMultiplier: "1x"}}}
	svc := NewService(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	p, err := svc.SetCapacityMultiplier(ctx, id, " 3X ")
	if err != nil {
		t.Fatalf("SetCapacityMultiplier: %v", err)
	}
	if p.CapacityMultiplier != "3x" {
		t.Fatalf("multiplier = %q, want 3x", p.CapacityMultiplier)
	}

	for _, bad := range []string{"0x", "x", "two", "-1x", ""} {
		if _, err := svc.SetCapacityMultiplier(ctx, id, bad); !errors.Is(err, calendar.ErrInvalidInput) {
			t.Fatalf("SetCapacityMultiplier(%q) err = %v, want ErrInvalidInput", bad, err)
		}
	}

	if _, err := svc.SetCapacityMultiplier(ctx, uuid.New(), "2x"); !errors.Is(err, ErrPractitionerNotFound) {
		t.Fatalf("unknown practitioner err = %v", err)
	}
}
