package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// ProfileStore is the slice of the practitioner profile store that holds
// availability.
type ProfileStore interface {
	GetSchedule(ctx context.Context, practitionerID uuid.UUID) (Schedule, error)
	SaveSchedule(ctx context.Context, practitionerID uuid.UUID, weekly WeeklyAvailability, slotDurationMinutes int) error
}

type Service struct {
	profiles ProfileStore
	log      *zap.Logger
}

func NewService(profiles ProfileStore, log *zap.Logger) *Service {
	return &Service{profiles: profiles, log: log}
}

// Availability returns the stored schedule or ErrNotConfigured.
func (s *Service) Availability(ctx context.Context, practitionerID uuid.UUID) (Schedule, error) {
	sched, err := s.profiles.GetSchedule(ctx, practitionerID)
	if err != nil {
		return Schedule{}, fmt.Errorf("load schedule: %w", err)
	}
	if sched.Weekly == nil {
		return Schedule{}, ErrNotConfigured
	}
	if sched.SlotDurationMinutes <= 0 {
		sched.SlotDurationMinutes = DefaultSlotDurationMinutes
	}
	return sched, nil
}

// EffectiveWindows returns the morning and evening windows for the weekday of date.
func (s *Service) EffectiveWindows(ctx context.Context, practitionerID uuid.UUID, date time.Time) (DaySchedule, error) {
	sched, err := s.Availability(ctx, practitionerID)
	if err != nil {
		return DaySchedule{}, err
	}
	ds, ok := sched.Weekly.For(DayOf(date))
	if !ok {
		return DaySchedule{}, ErrNotConfigured
	}
	return ds, nil
}

// SlotGrid returns the bookable start times for a date. It fails with
// ErrNotConfigured when the practitioner never saved availability.
func (s *Service) SlotGrid(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]calendar.Clock, error) {
	sched, err := s.Availability(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	ds, ok := sched.Weekly.For(DayOf(date))
	if !ok {
		return nil, ErrNotConfigured
	}
	return SlotsForDay(ds, sched.SlotDurationMinutes), nil
}

// Slots is SlotGrid with ErrNotConfigured degraded to an empty list.
func (s *Service) Slots(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]calendar.Clock, error) {
	slots, err := s.SlotGrid(ctx, practitionerID, date)
	if errors.Is(err, ErrNotConfigured) {
		s.log.Debug("availability not configured, returning no slots",
			zap.String("practitioner_id", practitionerID.String()))
		return []calendar.Clock{}, nil
	}
	return slots, err
}

// Contains reports whether t is on the grid for date. Unconfigured
// availability yields ErrNotConfigured so callers can decide to skip the check.
func (s *Service) Contains(ctx context.Context, practitionerID uuid.UUID, date time.Time, t calendar.Clock) (bool, error) {
	slots, err := s.SlotGrid(ctx, practitionerID, date)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(slots, t)
	return found, nil
}

// SaveAvailability validates and stores a weekly schedule. A nil duration keeps
// the current one. Existing appointments are left untouched.
func (s *Service) SaveAvailability(ctx context.Context, practitionerID uuid.UUID, weekly WeeklyAvailability, slotDurationMinutes *int) (Schedule, error) {
	duration := 0
	if slotDurationMinutes != nil {
		duration = *slotDurationMinutes
		if duration <= 0 {
			return Schedule{}, calendar.Invalid("slot_duration_minutes", "must be positive")
		}
	} else {
		current, err := s.profiles.GetSchedule(ctx, practitionerID)
		if err != nil {
			return Schedule{}, fmt.Errorf("load schedule: %w", err)
		}
		duration = current.SlotDurationMinutes
		if duration <= 0 {
			duration = DefaultSlotDurationMinutes
		}
	}

	normalized, err := Validate(weekly, duration)
	if err != nil {
		return Schedule{}, err
	}

	if err := s.profiles.SaveSchedule(ctx, practitionerID, normalized, duration); err != nil {
		return Schedule{}, fmt.Errorf("save schedule: %w", err)
	}

	s.log.Info("availability updated",
		zap.String("practitioner_id", practitionerID.String()),
		zap.Int("slot_duration_minutes", duration))

	return Schedule{Weekly: &normalized, SlotDurationMinutes: duration}, nil
}
