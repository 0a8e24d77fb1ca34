package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// Registry answers leave questions. It is advisory: nothing here touches
// appointments, and booking only consults it when a caller asks.
type Registry struct {
	repo Repository
	log  *zap.Logger
}

func NewRegistry(repo Repository, log *zap.Logger) *Registry {
	return &Registry{repo: repo, log: log}
}

type CheckResult struct {
	IsOnLeave bool
	Leave     *Record
}

type Input struct {
	PractitionerID uuid.UUID
	ClinicID       uuid.UUID
	StartDate      string
	EndDate        string
	Reason         string
	Active         *bool
}

func (in Input) validate() (start, end time.Time, err error) {
	if in.PractitionerID == uuid.Nil {
		return start, end, calendar.Invalid("practitioner_id", "is required")
	}
	if in.ClinicID == uuid.Nil {
		return start, end, calendar.Invalid("clinic_id", "is required")
	}
	if start, err = calendar.RequireDate("start_date", in.StartDate); err != nil {
		return start, end, err
	}
	if end, err = calendar.RequireDate("end_date", in.EndDate); err != nil {
		return start, end, err
	}
	if end.Before(start) {
		return start, end, calendar.Invalid("end_date", "must not be before start_date")
	}
	return start, end, nil
}

func (r *Registry) IsOnLeave(ctx context.Context, practitionerID uuid.UUID, date time.Time) (bool, error) {
	res, err := r.Check(ctx, practitionerID, date)
	if err != nil {
		return false, err
	}
	return res.IsOnLeave, nil
}

// Check returns the first active record covering date, if any.
func (r *Registry) Check(ctx context.Context, practitionerID uuid.UUID, date time.Time) (CheckResult, error) {
	date = calendar.Day(date)
	recs, err := r.repo.ListActiveCovering(ctx, practitionerID, date)
	if err != nil {
		return CheckResult{}, fmt.Errorf("list covering leave: %w", err)
	}
	for i := range recs {
		if recs[i].Covers(date) {
			return CheckResult{IsOnLeave: true, Leave: &recs[i]}, nil
		}
	}
	return CheckResult{}, nil
}

func (r *Registry) RecordsInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Record, error) {
	if end.Before(start) {
		return nil, calendar.Invalid("end", "must not be before start")
	}
	recs, err := r.repo.ListInRange(ctx, practitionerID, calendar.Day(start), calendar.Day(end))
	if err != nil {
		return nil, fmt.Errorf("list leave in range: %w", err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get leave: %w", err)
	}
	return rec, nil
}

func (r *Registry) Create(ctx context.Context, in Input) (*Record, error) {
	start, end, err := in.validate()
	if err != nil {
		return nil, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	rec, err := r.repo.Create(ctx, Record{
		ID:             uuid.New(),
		PractitionerID: in.PractitionerID,
		ClinicID:       in.ClinicID,
		StartDate:      start,
		EndDate:        end,
		Reason:         strings.TrimSpace(in.Reason),
		Active:         active,
	})
	if err != nil {
		return nil, fmt.Errorf("create leave: %w", err)
	}

	r.log.Info("leave recorded",
		zap.String("leave_id", rec.ID.String()),
		zap.String("practitioner_id", rec.PractitionerID.String()),
		zap.String("start_date", calendar.FormatDate(rec.StartDate)),
		zap.String("end_date", calendar.FormatDate(rec.EndDate)))
	return rec, nil
}

// Update replaces dates, reason and active flag. Practitioner and clinic are
// fixed at creation.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, in Input) (*Record, error) {
	current, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get leave: %w", err)
	}
	in.PractitionerID = current.PractitionerID
	in.ClinicID = current.ClinicID

	start, end, err := in.validate()
	if err != nil {
		return nil, err
	}
	active := current.Active
	if in.Active != nil {
		active = *in.Active
	}

	rec, err := r.repo.Update(ctx, Record{
		ID:        id,
		StartDate: start,
		EndDate:   end,
		Reason:    strings.TrimSpace(in.Reason),
		Active:    active,
	})
	if err != nil {
		return nil, fmt.Errorf("update leave: %w", err)
	}
	return rec, nil
}

func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete leave: %w", err)
	}
	r.log.Info("leave deleted", zap.String("leave_id", id.String()))
	return nil
}
