package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no-show"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active appointments occupy their slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Slot identifies one bookable start time of one practitioner.
type Slot struct {
	PractitionerID uuid.UUID
	Date           time.Time
	Time           calendar.Clock
}

func (s Slot) LockKey() string {
	return fmt.Sprintf("slot:%s:%s:%s", s.PractitionerID, calendar.FormatDate(s.Date), s.Time)
}

func (s Slot) Equal(o Slot) bool {
	return s.PractitionerID == o.PractitionerID && s.Date.Equal(o.Date) && s.Time == o.Time
}

func patientDayLockKey(patientID, clinicID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("patient:%s:%s:%s", patientID, clinicID, calendar.FormatDate(date))
}

type Appointment struct {
	ID             uuid.UUID
	ExternalID     string
	ClinicID       uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	Time           calendar.Clock
	Status         AppointmentStatus
	Notes          string
	// SlotOrdinal is this appointment's seat within its slot, in [0, capacity).
	SlotOrdinal int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Appointment) Slot() Slot {
	return Slot{PractitionerID: a.PractitionerID, Date: a.Date, Time: a.Time}
}

// SlotOccupant is an active appointment holding a seat in a slot.
type SlotOccupant struct {
	AppointmentID uuid.UUID
	Ordinal       int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
