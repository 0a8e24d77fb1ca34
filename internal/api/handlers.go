package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}

		clinicID, err := parseUUID("clinic_id", req.ClinicID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		patientID, err := parseUUID("patient_id", req.PatientID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		practitionerID, err := parseUUID("practitioner_id", req.PractitionerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			ClinicID:       clinicID,
			PatientID:      patientID,
			PractitionerID: practitionerID,
			Date:           req.Date,
			Time:           req.Time,
			Notes:          req.Notes,
			EnforceLeave:   req.EnforceLeave,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateAppointmentResponse{
			AppointmentIdentifier: appt.ID,
			ExternalIdentifier:    appt.ExternalID,
			Appointment:           toAppointmentResponse(appt),
		})
	}
}

func bookedSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := parseUUID("practitioner_id", queryParam(r, "practitioner_id", "practitionerId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		date, err := calendar.RequireDate("date", queryParam(r, "date"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		slots, err := svc.BookedSlots(r.Context(), practitionerID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BookedSlotsResponse{
			PractitionerID: practitionerID,
			Date:           calendar.FormatDate(date),
			BookedSlots:    slots,
		})
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := parseUUID("patient_id", queryParam(r, "patient_id", "patientId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var date *time.Time
		if raw := queryParam(r, "date"); raw != "" {
			d, err := calendar.RequireDate("date", raw)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			date = &d
		}

		appts, err := svc.ListForPatient(r.Context(), patientID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolveAppointmentID(r.Context(), svc, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var req RescheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}

		in := appointment.RescheduleRequest{Date: req.Date, Time: req.Time, Notes: req.Notes}
		if req.PractitionerID != nil {
			pid, err := parseUUID("practitioner_id", *req.PractitionerID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			in.PractitionerID = &pid
		}

		appt, err := svc.Reschedule(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

type statusChange func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)

// statusHandler serves cancel, confirm and no-show, which differ only in the
// service call.
func statusHandler(svc BookingService, change statusChange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolveAppointmentID(r.Context(), svc, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		appt, err := change(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolveAppointmentID(r.Context(), svc, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func practitionerSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := parseUUID("practitioner_id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		date, err := calendar.RequireDate("date", queryParam(r, "date"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		day, err := svc.AvailableSlots(r.Context(), practitionerID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := DaySlotsResponse{
			PractitionerID: practitionerID,
			Date:           calendar.FormatDate(day.Date),
			Configured:     day.Configured,
			OnLeave:        day.OnLeave,
			Leave:          toLeaveResponse(day.Leave),
			Slots:          make([]SlotResponse, 0, len(day.Slots)),
		}
		for _, s := range day.Slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				Time:      s.Time.String(),
				Booked:    s.Booked,
				Capacity:  s.Capacity,
				Available: s.Available,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// consultationCompletedHandler always accepts: the consultation side must
// never fail because of the appointment update.
func consultationCompletedHandler(hook ConsultationHook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConsultationCompletedRequest
		_ = decodeJSON(r, &req)

		hook.OnConsultationCompleted(context.WithoutCancel(r.Context()), req.AppointmentID)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// resolveAppointmentID accepts an internal id or an external id in the path.
func resolveAppointmentID(ctx context.Context, svc BookingService, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	appt, err := svc.Get(ctx, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return appt.ID, nil
}
