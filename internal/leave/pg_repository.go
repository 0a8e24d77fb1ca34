package leave

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const leaveColumns = `id, practitioner_id, clinic_id, start_date, end_date, reason, active, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.PractitionerID,
		&r.ClinicID,
		&r.StartDate,
		&r.EndDate,
		&r.Reason,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaveNotFound
		}
		return nil, store.Classify(err)
	}
	return &r, nil
}

func collect(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err)
	}
	return out, nil
}

func (p *PgRepository) Create(ctx context.Context, rec Record) (*Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO leave_records (id, practitioner_id, clinic_id, start_date, end_date, reason, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+leaveColumns,
		rec.ID, rec.PractitionerID, rec.ClinicID, rec.StartDate, rec.EndDate, rec.Reason, rec.Active)
	return scanRecord(row)
}

func (p *PgRepository) Update(ctx context.Context, rec Record) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE leave_records
		SET start_date = $2,
		    end_date = $3,
		    reason = $4,
		    active = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+leaveColumns,
		rec.ID, rec.StartDate, rec.EndDate, rec.Reason, rec.Active)
	return scanRecord(row)
}

func (p *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM leave_records WHERE id = $1`, id)
	if err != nil {
		return store.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}

func (p *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_records
		WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (p *PgRepository) ListActiveCovering(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_records
		WHERE practitioner_id = $1
		  AND active
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY start_date, created_at
	`, practitionerID, date)
	if err != nil {
		return nil, store.Classify(err)
	}
	return collect(rows)
}

func (p *PgRepository) ListInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_records
		WHERE practitioner_id = $1
		  AND start_date <= $3
		  AND end_date >= $2
		ORDER BY start_date, created_at
	`, practitionerID, start, end)
	if err != nil {
		return nil, store.Classify(err)
	}
	return collect(rows)
}
