package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type BreakerObserver interface {
	SetBreakerState(name, state string)
}

type GuardOptions struct {
	Name         string
	ReadRetries  int
	MaxFailures  uint32
	OpenTimeout  time.Duration
	RetryBackoff time.Duration
	Observer     BreakerObserver
	Logger       *zap.Logger
}

// GuardedRepository puts a circuit breaker in front of a Repository. Reads
// are retried on transient failures; writes are attempted exactly once so an
// ambiguous write is never repeated behind the caller's back.
type GuardedRepository struct {
	next    Repository
	cb      *gobreaker.CircuitBreaker[any]
	retries int
	backoff time.Duration
}

var _ Repository = (*GuardedRepository)(nil)

func NewGuardedRepository(next Repository, opts GuardOptions) *GuardedRepository {
	if opts.Name == "" {
		opts.Name = "appointments-store"
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	maxFailures := opts.MaxFailures
	settings := gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		// Only infrastructure failures count against the store.
		IsSuccessful: func(err error) bool {
			return err == nil || !store.Transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if opts.Observer != nil {
				opts.Observer.SetBreakerState(name, to.String())
			}
		},
	}
	if opts.Observer != nil {
		opts.Observer.SetBreakerState(opts.Name, gobreaker.StateClosed.String())
	}

	return &GuardedRepository{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker[any](settings),
		retries: opts.ReadRetries,
		backoff: opts.RetryBackoff,
	}
}

func (g *GuardedRepository) exec(fn func() (any, error)) (any, error) {
	v, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageUnavailable, err)
	}
	return v, err
}

func guardedRead[T any](ctx context.Context, g *GuardedRepository, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := g.exec(func() (any, error) { return fn() })
		if err == nil {
			return v.(T), nil
		}
		if !store.Transient(err) || attempt >= g.retries {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(g.backoff << attempt):
		}
	}
}

func guardedWrite[T any](g *GuardedRepository, fn func() (T, error)) (T, error) {
	var zero T
	v, err := g.exec(func() (any, error) { return fn() })
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (g *GuardedRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return guardedRead(ctx, g, func() (*Appointment, error) { return g.next.GetByID(ctx, id) })
}

func (g *GuardedRepository) GetByExternalID(ctx context.Context, externalID string) (*Appointment, error) {
	return guardedRead(ctx, g, func() (*Appointment, error) { return g.next.GetByExternalID(ctx, externalID) })
}

func (g *GuardedRepository) ListForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]Appointment, error) {
	return guardedRead(ctx, g, func() ([]Appointment, error) { return g.next.ListForPatient(ctx, patientID, date) })
}

func (g *GuardedRepository) FindNonCancelledForPatient(ctx context.Context, patientID, clinicID uuid.UUID, date time.Time) (*Appointment, error) {
	return guardedRead(ctx, g, func() (*Appointment, error) {
		return g.next.FindNonCancelledForPatient(ctx, patientID, clinicID, date)
	})
}

func (g *GuardedRepository) ListBookedTimes(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]calendar.Clock, error) {
	return guardedRead(ctx, g, func() ([]calendar.Clock, error) {
		return g.next.ListBookedTimes(ctx, practitionerID, date)
	})
}

func (g *GuardedRepository) SlotOccupants(ctx context.Context, slot Slot) ([]SlotOccupant, error) {
	return guardedRead(ctx, g, func() ([]SlotOccupant, error) { return g.next.SlotOccupants(ctx, slot) })
}

func (g *GuardedRepository) FindOverdueActive(ctx context.Context, before time.Time, limit int) ([]Appointment, error) {
	return guardedRead(ctx, g, func() ([]Appointment, error) { return g.next.FindOverdueActive(ctx, before, limit) })
}

func (g *GuardedRepository) Insert(ctx context.Context, appt Appointment) (*Appointment, error) {
	return guardedWrite(g, func() (*Appointment, error) { return g.next.Insert(ctx, appt) })
}

func (g *GuardedRepository) Move(ctx context.Context, id uuid.UUID, target Slot, ordinal int, notes *string) (*Appointment, error) {
	return guardedWrite(g, func() (*Appointment, error) { return g.next.Move(ctx, id, target, ordinal, notes) })
}

func (g *GuardedRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	return guardedWrite(g, func() (*Appointment, error) { return g.next.UpdateStatus(ctx, id, from, to) })
}

func (g *GuardedRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := guardedWrite(g, func() (struct{}, error) { return struct{}{}, g.next.Delete(ctx, id) })
	return err
}

// InsertEvent bypasses the breaker; audit writes are best effort.
func (g *GuardedRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	return g.next.InsertEvent(ctx, ev)
}
