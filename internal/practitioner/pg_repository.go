package practitioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const profileColumns = `id, clinic_id, name, role, slot_duration_minutes, capacity_multiplier, availability, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var raw []byte

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Role,
		&p.SlotDurationMinutes,
		&p.CapacityMultiplier,
		&raw,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, store.Classify(err)
	}

	if len(raw) > 0 {
		var w availability.WeeklyAvailability
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode availability for %s: %w", p.ID, err)
		}
		p.Availability = &w
	}

	return &p, nil
}

func (r *PgRepository) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM practitioner_profiles
		WHERE id = $1
	`, id)
	return scanProfile(row)
}

func (r *PgRepository) UpdateCapacityMultiplier(ctx context.Context, id uuid.UUID, multiplier string) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE practitioner_profiles
		SET capacity_multiplier = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, multiplier)
	return scanProfile(row)
}

func (r *PgRepository) GetSchedule(ctx context.Context, id uuid.UUID) (availability.Schedule, error) {
	p, err := r.GetProfile(ctx, id)
	if err != nil {
		return availability.Schedule{}, err
	}
	return availability.Schedule{
		Weekly:              p.Availability,
		SlotDurationMinutes: p.SlotDurationMinutes,
	}, nil
}

func (r *PgRepository) SaveSchedule(ctx context.Context, id uuid.UUID, weekly availability.WeeklyAvailability, slotDurationMinutes int) error {
	raw, err := json.Marshal(weekly)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioner_profiles
		SET availability = $2,
		    slot_duration_minutes = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, raw, slotDurationMinutes)
	if err != nil {
		return store.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}
