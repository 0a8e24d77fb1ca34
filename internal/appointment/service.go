package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/leave"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
)

var (
	ErrDuplicatePatientBooking = errors.New("patient already has an appointment at this clinic on this date")
	ErrSlotFull                = errors.New("slot is fully booked, choose another time slot")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrOutsideAvailability     = errors.New("time is not an available slot for this practitioner on this date")
	ErrPractitionerOnLeave     = errors.New("practitioner is on leave on this date")
	ErrSlotBusy                = fmt.Errorf("slot is busy, retry shortly: %w", store.ErrConflict)
)

// CapacityResolver is satisfied by practitioner.CapacityResolver.
type CapacityResolver interface {
	EffectiveCapacity(ctx context.Context, practitionerID uuid.UUID) (int, error)
}

// SlotGrid is satisfied by availability.Service.
type SlotGrid interface {
	SlotGrid(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]calendar.Clock, error)
}

// LeaveChecker is satisfied by leave.Registry.
type LeaveChecker interface {
	Check(ctx context.Context, practitionerID uuid.UUID, date time.Time) (leave.CheckResult, error)
}

type Observer interface {
	ObserveBooking(operation, outcome string)
	ObserveLockWait(operation string, waited time.Duration)
}

type Deps struct {
	Repo     Repository
	Locker   redisclient.Locker
	Capacity CapacityResolver
	Grid     SlotGrid
	Leave    LeaveChecker
	Metrics  Observer
	Logger   *zap.Logger
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	capacity CapacityResolver
	grid     SlotGrid
	leave    LeaveChecker
	metrics  Observer
	log      *zap.Logger
	cfg      config.Config
}

func NewService(deps Deps, cfg config.Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ReadBackTimeout <= 0 {
		cfg.ReadBackTimeout = 3 * time.Second
	}
	return &Service{
		repo:     deps.Repo,
		locker:   deps.Locker,
		capacity: deps.Capacity,
		grid:     deps.Grid,
		leave:    deps.Leave,
		metrics:  deps.Metrics,
		log:      log,
		cfg:      cfg,
	}
}

type BookRequest struct {
	ClinicID       uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           string // YYYY-MM-DD
	Time           string // HH:MM
	Notes          string
	// EnforceLeave turns the advisory leave check into a hard block for this call.
	EnforceLeave bool
}

type RescheduleRequest struct {
	Date           string
	Time           string
	PractitionerID *uuid.UUID
	Notes          *string
}

// Book creates a scheduled appointment.
//
// Capacity: by default a slot admits EffectiveCapacity active bookings, the
// same rule Reschedule applies. With BOOK_IGNORES_CAPACITY the legacy rule
// applies instead and any active booking at that time blocks, whatever the
// multiplier. Which of the two is correct for the booking path is still an
// open product question, so both are kept and pinned by tests.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	appt, err := s.book(ctx, req)
	s.observe("book", err)
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	slot, err := req.validate()
	if err != nil {
		return nil, err
	}

	capacity, err := s.capacity.EffectiveCapacity(ctx, slot.PractitionerID)
	if err != nil {
		return nil, fmt.Errorf("resolve capacity: %w", err)
	}
	if s.cfg.BookIgnoresCapacity {
		capacity = 1
	}

	if err := s.checkGrid(ctx, slot); err != nil {
		return nil, err
	}
	if req.EnforceLeave {
		if err := s.checkLeave(ctx, slot); err != nil {
			return nil, err
		}
	}

	var created *Appointment
	keys := []string{slot.LockKey(), patientDayLockKey(req.PatientID, req.ClinicID, slot.Date)}

	waitStart := time.Now()
	err = s.locker.WithLocks(ctx, keys, func(lockCtx context.Context) error {
		s.observeLockWait("book", waitStart)
		existing, err := s.repo.FindNonCancelledForPatient(lockCtx, req.PatientID, req.ClinicID, slot.Date)
		if err == nil {
			return fmt.Errorf("%w (%s at %s)", ErrDuplicatePatientBooking, existing.ExternalID, existing.Time)
		}
		if !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check patient bookings: %w", err)
		}

		for attempt := 0; ; attempt++ {
			occupants, err := s.repo.SlotOccupants(lockCtx, slot)
			if err != nil {
				return fmt.Errorf("count slot bookings: %w", err)
			}
			ordinal, ok := freeOrdinal(occupants, capacity, uuid.Nil)
			if !ok {
				return ErrSlotFull
			}

			appt := Appointment{
				ID:             uuid.New(),
				ExternalID:     newExternalID(),
				ClinicID:       req.ClinicID,
				PatientID:      req.PatientID,
				PractitionerID: slot.PractitionerID,
				Date:           slot.Date,
				Time:           slot.Time,
				Status:         StatusScheduled,
				Notes:          strings.TrimSpace(req.Notes),
				SlotOrdinal:    ordinal,
			}

			created, err = s.insert(lockCtx, appt)
			if err == nil {
				return nil
			}
			if errors.Is(err, store.ErrConflict) && attempt < s.cfg.MaxWriteRetries {
				s.log.Debug("slot ordinal taken, retrying",
					zap.String("slot", slot.LockKey()),
					zap.Int("attempt", attempt+1))
				continue
			}
			return err
		}
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"external_id":     created.ExternalID,
		"practitioner_id": created.PractitionerID.String(),
		"date":            calendar.FormatDate(created.Date),
		"time":            created.Time.String(),
		"slot_ordinal":    created.SlotOrdinal,
		"capacity":        capacity,
	})

	return created, nil
}

func (r BookRequest) validate() (Slot, error) {
	switch {
	case r.ClinicID == uuid.Nil:
		return Slot{}, calendar.Invalid("clinic_id", "is required")
	case r.PatientID == uuid.Nil:
		return Slot{}, calendar.Invalid("patient_id", "is required")
	case r.PractitionerID == uuid.Nil:
		return Slot{}, calendar.Invalid("practitioner_id", "is required")
	}
	date, err := calendar.RequireDate("date", r.Date)
	if err != nil {
		return Slot{}, err
	}
	t, err := calendar.RequireClock("time", r.Time)
	if err != nil {
		return Slot{}, err
	}
	return Slot{PractitionerID: r.PractitionerID, Date: date, Time: t}, nil
}

// insert never retries the write itself. If the outcome is unknown the row
// is looked up by the id we generated before reporting either way.
func (s *Service) insert(ctx context.Context, appt Appointment) (*Appointment, error) {
	created, err := s.repo.Insert(ctx, appt)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, store.ErrStorageUnavailable) {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	found, rerr := s.readBack(ctx, appt.ID)
	if rerr == nil {
		s.log.Warn("insert outcome was ambiguous, row found on read-back",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		return found, nil
	}
	return nil, fmt.Errorf("insert appointment: %w", err)
}

func (s *Service) readBack(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ReadBackTimeout)
	defer cancel()
	return s.repo.GetByID(rctx, id)
}

// freeOrdinal picks the lowest seat in [0, capacity) not held by anyone
// other than self.
func freeOrdinal(occupants []SlotOccupant, capacity int, self uuid.UUID) (int, bool) {
	used := make(map[int]bool, len(occupants))
	count := 0
	for _, o := range occupants {
		if o.AppointmentID == self {
			continue
		}
		used[o.Ordinal] = true
		count++
	}
	if count >= capacity {
		return -1, false
	}
	for i := 0; i < capacity; i++ {
		if !used[i] {
			return i, true
		}
	}
	return -1, false
}

func newExternalID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "APT-" + strings.ToUpper(raw[:16])
}

// checkGrid rejects times the slot generator would not produce. Without saved
// availability there is no grid and the check is skipped.
func (s *Service) checkGrid(ctx context.Context, slot Slot) error {
	if s.grid == nil {
		return nil
	}
	grid, err := s.grid.SlotGrid(ctx, slot.PractitionerID, slot.Date)
	if errors.Is(err, availability.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load availability: %w", err)
	}
	if _, ok := slices.BinarySearch(grid, slot.Time); !ok {
		return ErrOutsideAvailability
	}
	return nil
}

func (s *Service) checkLeave(ctx context.Context, slot Slot) error {
	if s.leave == nil {
		return nil
	}
	res, err := s.leave.Check(ctx, slot.PractitionerID, slot.Date)
	if err != nil {
		return fmt.Errorf("check leave: %w", err)
	}
	if res.IsOnLeave {
		return ErrPractitionerOnLeave
	}
	return nil
}

// BookedSlots lists the HH:MM times holding an active booking, one entry per
// booking.
func (s *Service) BookedSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]string, error) {
	times, err := s.repo.ListBookedTimes(ctx, practitionerID, calendar.Day(date))
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.String())
	}
	return out, nil
}

type SlotAvailability struct {
	Time      calendar.Clock
	Booked    int
	Capacity  int
	Available bool
}

type DayAvailability struct {
	PractitionerID uuid.UUID
	Date           time.Time
	Configured     bool
	OnLeave        bool
	Leave          *leave.Record
	Slots          []SlotAvailability
}

// AvailableSlots joins the slot grid with current occupancy. Leave is
// reported, not applied.
func (s *Service) AvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time) (*DayAvailability, error) {
	date = calendar.Day(date)
	day := &DayAvailability{PractitionerID: practitionerID, Date: date, Slots: []SlotAvailability{}}

	capacity, err := s.capacity.EffectiveCapacity(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("resolve capacity: %w", err)
	}
	if s.cfg.BookIgnoresCapacity {
		capacity = 1
	}

	grid, err := s.grid.SlotGrid(ctx, practitionerID, date)
	switch {
	case errors.Is(err, availability.ErrNotConfigured):
		grid = nil
	case err != nil:
		return nil, fmt.Errorf("load availability: %w", err)
	default:
		day.Configured = true
	}

	if s.leave != nil {
		res, err := s.leave.Check(ctx, practitionerID, date)
		if err != nil {
			return nil, fmt.Errorf("check leave: %w", err)
		}
		day.OnLeave, day.Leave = res.IsOnLeave, res.Leave
	}

	booked, err := s.repo.ListBookedTimes(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	counts := make(map[calendar.Clock]int, len(booked))
	for _, t := range booked {
		counts[t]++
	}

	for _, t := range grid {
		day.Slots = append(day.Slots, SlotAvailability{
			Time:      t,
			Booked:    counts[t],
			Capacity:  capacity,
			Available: counts[t] < capacity,
		})
	}
	return day, nil
}

// Reschedule moves an active appointment, optionally to another practitioner.
// The appointment itself never counts against its target slot, so moving it
// onto its own slot always succeeds.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	appt, err := s.reschedule(ctx, id, req)
	s.observe("reschedule", err)
	return appt, err
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	date, err := calendar.RequireDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	t, err := calendar.RequireClock("time", req.Time)
	if err != nil {
		return nil, err
	}
	if req.PractitionerID != nil && *req.PractitionerID == uuid.Nil {
		return nil, calendar.Invalid("practitioner_id", "must be a valid id when provided")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !current.Status.Active() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidStatusTransition, current.Status)
	}

	target := Slot{PractitionerID: current.PractitionerID, Date: date, Time: t}
	if req.PractitionerID != nil {
		target.PractitionerID = *req.PractitionerID
	}

	capacity, err := s.capacity.EffectiveCapacity(ctx, target.PractitionerID)
	if err != nil {
		return nil, fmt.Errorf("resolve capacity: %w", err)
	}
	if !target.Equal(current.Slot()) {
		if err := s.checkGrid(ctx, target); err != nil {
			return nil, err
		}
	}

	var updated *Appointment
	waitStart := time.Now()
	err = s.locker.WithLocks(ctx, []string{target.LockKey()}, func(lockCtx context.Context) error {
		s.observeLockWait("reschedule", waitStart)
		for attempt := 0; ; attempt++ {
			cur, err := s.repo.GetByID(lockCtx, id)
			if err != nil {
				return fmt.Errorf("reload appointment: %w", err)
			}
			if !cur.Status.Active() {
				return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidStatusTransition, cur.Status)
			}

			ordinal := cur.SlotOrdinal
			if !target.Equal(cur.Slot()) {
				occupants, err := s.repo.SlotOccupants(lockCtx, target)
				if err != nil {
					return fmt.Errorf("count slot bookings: %w", err)
				}
				var ok bool
				if ordinal, ok = freeOrdinal(occupants, capacity, id); !ok {
					return ErrSlotFull
				}
			} else if req.Notes == nil {
				updated = cur
				return nil
			}

			updated, err = s.repo.Move(lockCtx, id, target, ordinal, req.Notes)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, store.ErrConflict) && attempt < s.cfg.MaxWriteRetries:
				continue
			case errors.Is(err, store.ErrStorageUnavailable):
				found, rerr := s.readBack(lockCtx, id)
				if rerr == nil && found.Slot().Equal(target) {
					updated = found
					return nil
				}
				return fmt.Errorf("move appointment: %w", err)
			case errors.Is(err, ErrAppointmentNotFound):
				// Matched nothing: cancelled or completed since the reload.
				continue
			default:
				return fmt.Errorf("move appointment: %w", err)
			}
		}
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	if !current.Slot().Equal(updated.Slot()) {
		s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, map[string]any{
			"from_practitioner_id": current.PractitionerID.String(),
			"from_date":            calendar.FormatDate(current.Date),
			"from_time":            current.Time.String(),
			"to_practitioner_id":   updated.PractitionerID.String(),
			"to_date":              calendar.FormatDate(updated.Date),
			"to_time":              updated.Time.String(),
		})
	}
	return updated, nil
}

// Cancel is idempotent: cancelling a cancelled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusCancelled, AppointmentStatus.CanTransitionTo, EventAppointmentCancelled)
	s.observe("cancel", err)
	return appt, err
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusConfirmed, AppointmentStatus.CanTransitionTo, EventAppointmentConfirmed)
	s.observe("confirm", err)
	return appt, err
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusNoShow, AppointmentStatus.CanTransitionTo, EventAppointmentNoShow)
	s.observe("no_show", err)
	return appt, err
}

// complete is the consultation cascade. A finished consultation proves the
// visit happened, so an unconfirmed appointment may complete directly.
func (s *Service) complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	allowed := func(from, to AppointmentStatus) bool {
		return from.Active() && to == StatusCompleted
	}
	appt, err := s.transition(ctx, id, StatusCompleted, allowed, EventAppointmentCompleted)
	s.observe("complete", err)
	return appt, err
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, allowed func(from, to AppointmentStatus) bool, event string) (*Appointment, error) {
	for attempt := 0; attempt < 3; attempt++ {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load appointment: %w", err)
		}
		if cur.Status == to {
			return cur, nil
		}
		if !allowed(cur.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, cur.Status, to)
		}

		updated, err := s.repo.UpdateStatus(ctx, id, cur.Status, to)
		switch {
		case err == nil:
			s.logEvent(ctx, updated.ID, event, map[string]any{"from": string(cur.Status)})
			return updated, nil
		case errors.Is(err, ErrAppointmentNotFound):
			// Status changed under us; re-evaluate against the fresh row.
			continue
		case errors.Is(err, store.ErrStorageUnavailable):
			if found, rerr := s.readBack(ctx, id); rerr == nil && found.Status == to {
				return found, nil
			}
			return nil, fmt.Errorf("update status: %w", err)
		default:
			return nil, fmt.Errorf("update status: %w", err)
		}
	}
	return nil, fmt.Errorf("update status: %w", store.ErrConflict)
}

// Get resolves an internal id or an external id.
func (s *Service) Get(ctx context.Context, ref string) (*Appointment, error) {
	lookups, err := LookupsFor(ref)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, lookups...)
}

// Resolve tries each lookup in order and returns the first match.
func (s *Service) Resolve(ctx context.Context, lookups ...Lookup) (*Appointment, error) {
	for _, l := range lookups {
		appt, err := l.find(ctx, s.repo)
		if err == nil {
			return appt, nil
		}
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("find appointment %s: %w", l, err)
		}
	}
	return nil, ErrAppointmentNotFound
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]Appointment, error) {
	if patientID == uuid.Nil {
		return nil, calendar.Invalid("patient_id", "is required")
	}
	if date != nil {
		d := calendar.Day(*date)
		date = &d
	}
	appts, err := s.repo.ListForPatient(ctx, patientID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts, nil
}

// Delete is the administrative hard delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{
		"external_id": appt.ExternalID,
		"status":      string(appt.Status),
	})
	return nil
}

// SweepNoShows marks active appointments whose day ended more than the
// configured grace before now. Intended to be called by the worker.
func (s *Service) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
	cutoff := calendar.Day(now.Add(-s.cfg.NoShowGrace))
	overdue, err := s.repo.FindOverdueActive(ctx, cutoff, 500)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		_, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusNoShow)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.log.Warn("failed to mark no-show",
					zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			}
			continue
		}
		marked++
		s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{
			"reason": "worker",
			"from":   string(appt.Status),
		})
	}
	return marked, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}

func (s *Service) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveBooking(operation, Outcome(err))
}

func (s *Service) observeLockWait(operation string, since time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveLockWait(operation, time.Since(since))
}

// Outcome buckets an engine error into a metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, calendar.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDuplicatePatientBooking):
		return "duplicate"
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrOutsideAvailability):
		return "outside_availability"
	case errors.Is(err, ErrPractitionerOnLeave):
		return "on_leave"
	case errors.Is(err, ErrInvalidStatusTransition):
		return "invalid_transition"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, store.ErrStorageUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
