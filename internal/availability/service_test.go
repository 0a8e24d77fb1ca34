package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type memProfiles struct {
	schedules map[uuid.UUID]Schedule
	saves     int
}

func (m *memProfiles) GetSchedule(_ context.Context, id uuid.UUID) (Schedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return Schedule{}, errors.New("practitioner not found")
	}
	return s, nil
}

func (m *memProfiles) SaveSchedule(_ context.Context, id uuid.UUID, w WeeklyAvailability, d int) error {
	m.saves++
	m.schedules[id] = Schedule{Weekly: &w, SlotDurationMinutes: d}
	return nil
}

func newTestService(t *testing.T) (*Service, *memProfiles, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	store := &memProfiles{schedules: map[uuid.UUID]Schedule{
		id: {SlotDurationMinutes: 30},
	}}
	return NewService(store, zap.NewNop()), store, id
}

func TestNotConfigured(t *testing.T) {
	svc, _, id := newTestService(t)
	ctx := context.Background()
	date := calendar.MustDate("2025-03-03")

	if _, err := svc.EffectiveWindows(ctx, id, date); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("EffectiveWindows err = %v, want ErrNotConfigured", err)
	}
	slots, err := svc.Slots(ctx, id, date)
	if err != nil {
		t.Fatalf("Slots err = %v, want nil", err)
	}
	if len(slots) != 0 {
		t.Fatalf("Slots = %v, want empty", slots)
	}
}

func TestSaveAndResolveWindows(t *testing.T) {
	svc, _, id := newTestService(t)
	ctx := context.Background()

	w := fullWeek(window("09:00", "12:00"), window("16:00", "17:00"))
	w.Days[6].Morning = TimeWindow{IsOff: true}
	w.Days[6].Evening = TimeWindow{IsOff: true}

	if _, err := svc.SaveAvailability(ctx, id, w, nil); err != nil {
		t.Fatalf("SaveAvailability: %v", err)
	}

	monday := calendar.MustDate("2025-03-03")
	ds, err := svc.EffectiveWindows(ctx, id, monday)
	if err != nil {
		t.Fatalf("EffectiveWindows: %v", err)
	}
	if ds.Morning.Start != calendar.MustClock("09:00") || ds.Evening.End != calendar.MustClock("17:00") {
		t.Fatalf("EffectiveWindows = %+v", ds)
	}

	slots, err := svc.Slots(ctx, id, monday)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("len(Slots) = %d, want 8", len(slots))
	}

	ok, err := svc.Contains(ctx, id, monday, calendar.MustClock("16:30"))
	if err != nil || !ok {
		t.Fatalf("Contains(16:30) = %v, %v", ok, err)
	}
	ok, _ = svc.Contains(ctx, id, monday, calendar.MustClock("16:15"))
	if ok {
		t.Fatal("16:15 is not on a 30 minute grid")
	}

	sunday := calendar.MustDate("2025-03-09")
	slots, err = svc.Slots(ctx, id, sunday)
	if err != nil || len(slots) != 0 {
		t.Fatalf("Sunday slots = %v, %v", slots, err)
	}
}

func TestSaveValidatesAgainstNewDuration(t *testing.T) {
	svc, store, id := newTestService(t)
	ctx := context.Background()
	w := fullWeek(window("09:00", "12:00"), window("16:00", "17:30"))

	d := 60
	if _, err := svc.SaveAvailability(ctx, id, w, &d); !errors.Is(err, calendar.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput for 17:30 on a 60 minute grid", err)
	}
	if store.saves != 0 {
		t.Fatal("invalid availability must not be persisted")
	}

	d = 45
	w = fullWeek(window("09:00", "12:00"), TimeWindow{IsOff: true})
	sched, err := svc.SaveAvailability(ctx, id, w, &d)
	if err != nil {
		t.Fatalf("SaveAvailability: %v", err)
	}
	if sched.SlotDurationMinutes != 45 {
		t.Fatalf("duration = %d, want 45", sched.SlotDurationMinutes)
	}
}
