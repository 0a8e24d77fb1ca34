package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, external_id, clinic_id, patient_id, practitioner_id, appt_date, appt_time, status, notes, slot_ordinal, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var apptTime string

	err := row.Scan(
		&a.ID,
		&a.ExternalID,
		&a.ClinicID,
		&a.PatientID,
		&a.PractitionerID,
		&a.Date,
		&apptTime,
		&a.Status,
		&a.Notes,
		&a.SlotOrdinal,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, store.Classify(err)
	}

	a.Time, err = calendar.ParseClock(apptTime)
	if err != nil {
		return nil, fmt.Errorf("appointment %s has malformed time: %w", a.ID, err)
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Classify(err)
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByExternalID(ctx context.Context, externalID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE external_id = $1
	`, externalID)
	return scanAppointment(row)
}

func (r *PgRepository) ListForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND ($2::date IS NULL OR appt_date = $2::date)
		ORDER BY appt_date, appt_time
		LIMIT 200
	`, patientID, date)
	if err != nil {
		return nil, store.Classify(err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindNonCancelledForPatient(ctx context.Context, patientID, clinicID uuid.UUID, date time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND clinic_id = $2
		  AND appt_date = $3
		  AND status <> 'cancelled'
		ORDER BY created_at
		LIMIT 1
	`, patientID, clinicID, date)
	return scanAppointment(row)
}

func (r *PgRepository) ListBookedTimes(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]calendar.Clock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appt_time
		FROM appointments
		WHERE practitioner_id = $1
		  AND appt_date = $2
		  AND status IN ('scheduled', 'confirmed')
		ORDER BY appt_time
	`, practitionerID, date)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var times []calendar.Clock
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, store.Classify(err)
		}
		c, err := calendar.ParseClock(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed booked time: %w", err)
		}
		times = append(times, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err)
	}
	return times, nil
}

func (r *PgRepository) SlotOccupants(ctx context.Context, slot Slot) ([]SlotOccupant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_ordinal
		FROM appointments
		WHERE practitioner_id = $1
		  AND appt_date = $2
		  AND appt_time = $3
		  AND status IN ('scheduled', 'confirmed')
	`, slot.PractitionerID, slot.Date, slot.Time.String())
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []SlotOccupant
	for rows.Next() {
		var o SlotOccupant
		if err := rows.Scan(&o.AppointmentID, &o.Ordinal); err != nil {
			return nil, store.Classify(err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err)
	}
	return out, nil
}

// Insert relies on uq_appointments_active_seat: a second active row
// with the same slot and ordinal is a unique violation, reported as
// store.ErrConflict.
func (r *PgRepository) Insert(ctx context.Context, appt Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, external_id, clinic_id, patient_id, practitioner_id, appt_date, appt_time, status, notes, slot_ordinal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.ExternalID, appt.ClinicID, appt.PatientID, appt.PractitionerID,
		appt.Date, appt.Time.String(), appt.Status, appt.Notes, appt.SlotOrdinal)

	return scanAppointment(row)
}

// Move only applies to active appointments; anything else reads as not found.
func (r *PgRepository) Move(ctx context.Context, id uuid.UUID, target Slot, ordinal int, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET practitioner_id = $2,
		    appt_date = $3,
		    appt_time = $4,
		    slot_ordinal = $5,
		    notes = COALESCE($6, notes),
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('scheduled', 'confirmed')
		RETURNING `+appointmentColumns,
		id, target.PractitionerID, target.Date, target.Time.String(), ordinal, notes)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return store.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) FindOverdueActive(ctx context.Context, before time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND appt_date < $1
		ORDER BY appt_date, appt_time
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, store.Classify(err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", store.Classify(err))
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
