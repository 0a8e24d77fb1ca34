package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

func getPractitionerHandler(svc PractitionerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		p, err := svc.Profile(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		capacity, err := svc.EffectiveCapacity(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPractitionerResponse(p, capacity))
	}
}

func setCapacityHandler(svc PractitionerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		var req CapacityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}

		p, err := svc.SetCapacityMultiplier(r.Context(), id, req.CapacityMultiplier)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		capacity, err := svc.EffectiveCapacity(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPractitionerResponse(p, capacity))
	}
}

func getAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		sched, err := svc.Availability(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(id, sched))
	}
}

func putAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		var req AvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}

		sched, err := svc.SaveAvailability(r.Context(), id, availability.WeeklyAvailability{Days: req.Days}, req.SlotDurationMinutes)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(id, sched))
	}
}

func toAvailabilityResponse(id uuid.UUID, sched availability.Schedule) AvailabilityResponse {
	resp := AvailabilityResponse{PractitionerID: id, SlotDurationMinutes: sched.SlotDurationMinutes, Days: []availability.DaySchedule{}}
	if sched.Weekly != nil {
		resp.Days = sched.Weekly.Days
	}
	return resp
}
