package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/leave"
	"github.com/hackgods/clinic-scheduling/internal/practitioner"
)

type CreateAppointmentRequest struct {
	ClinicID       string `json:"clinic_id"`
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Notes          string `json:"notes,omitempty"`
	EnforceLeave   bool   `json:"enforce_leave,omitempty"`
}

type RescheduleRequest struct {
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	PractitionerID *string `json:"practitioner_id,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	ExternalID     string    `json:"external_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateAppointmentResponse struct {
	AppointmentIdentifier uuid.UUID           `json:"appointment_identifier"`
	ExternalIdentifier    string              `json:"external_identifier"`
	Appointment           AppointmentResponse `json:"appointment"`
}

type BookedSlotsResponse struct {
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Date           string    `json:"date"`
	BookedSlots    []string  `json:"booked_slots"`
}

type SlotResponse struct {
	Time      string `json:"time"`
	Booked    int    `json:"booked"`
	Capacity  int    `json:"capacity"`
	Available bool   `json:"available"`
}

type DaySlotsResponse struct {
	PractitionerID uuid.UUID      `json:"practitioner_id"`
	Date           string         `json:"date"`
	Configured     bool           `json:"configured"`
	OnLeave        bool           `json:"on_leave"`
	Leave          *LeaveResponse `json:"leave"`
	Slots          []SlotResponse `json:"slots"`
}

type LeaveRequest struct {
	PractitionerID string `json:"practitioner_id"`
	ClinicID       string `json:"clinic_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Reason         string `json:"reason,omitempty"`
	Active         *bool  `json:"active,omitempty"`
}

type LeaveResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Reason         string    `json:"reason,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type LeaveCheckResponse struct {
	IsOnLeave bool           `json:"is_on_leave"`
	Leave     *LeaveResponse `json:"leave"`
}

type AvailabilityRequest struct {
	Days                []availability.DaySchedule `json:"days"`
	SlotDurationMinutes *int                       `json:"slot_duration_minutes,omitempty"`
}

type AvailabilityResponse struct {
	PractitionerID      uuid.UUID                  `json:"practitioner_id"`
	SlotDurationMinutes int                        `json:"slot_duration_minutes"`
	Days                []availability.DaySchedule `json:"days"`
}

type CapacityRequest struct {
	CapacityMultiplier string `json:"capacity_multiplier"`
}

type PractitionerResponse struct {
	ID                  uuid.UUID `json:"id"`
	ClinicID            uuid.UUID `json:"clinic_id"`
	Name                string    `json:"name"`
	Role                string    `json:"role"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	CapacityMultiplier  string    `json:"capacity_multiplier"`
	EffectiveCapacity   int       `json:"effective_capacity"`
}

type ConsultationCompletedRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		ExternalID:     a.ExternalID,
		ClinicID:       a.ClinicID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		Date:           calendar.FormatDate(a.Date),
		Time:           a.Time.String(),
		Status:         string(a.Status),
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toLeaveResponse(r *leave.Record) *LeaveResponse {
	if r == nil {
		return nil
	}
	return &LeaveResponse{
		ID:             r.ID,
		PractitionerID: r.PractitionerID,
		ClinicID:       r.ClinicID,
		StartDate:      calendar.FormatDate(r.StartDate),
		EndDate:        calendar.FormatDate(r.EndDate),
		Reason:         r.Reason,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toPractitionerResponse(p *practitioner.Profile, capacity int) PractitionerResponse {
	return PractitionerResponse{
		ID:                  p.ID,
		ClinicID:            p.ClinicID,
		Name:                p.Name,
		Role:                p.Role,
		SlotDurationMinutes: p.SlotDurationMinutes,
		CapacityMultiplier:  p.CapacityMultiplier,
		EffectiveCapacity:   capacity,
	}
}
