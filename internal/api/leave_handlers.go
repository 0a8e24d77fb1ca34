package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/leave"
)

func checkLeaveHandler(svc LeaveService) http.HandlerFunc {
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

		res, err := svc.Check(r.Context(), practitionerID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, LeaveCheckResponse{IsOnLeave: res.IsOnLeave, Leave: toLeaveResponse(res.Leave)})
	}
}

func listLeaveHandler(svc LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := parseUUID("practitioner_id", queryParam(r, "practitioner_id", "practitionerId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		start, err := calendar.RequireDate("start", queryParam(r, "start", "start_date", "startDate"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		end, err := calendar.RequireDate("end", queryParam(r, "end", "end_date", "endDate"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		records, err := svc.RecordsInRange(r.Context(), practitionerID, start, end)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]*LeaveResponse, 0, len(records))
		for i := range records {
			resp = append(resp, toLeaveResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getLeaveHandler(svc LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rec, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeaveResponse(rec))
	}
}

func createLeaveHandler(svc LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeLeaveInput(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rec, err := svc.Create(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeaveResponse(rec))
	}
}

func updateLeaveHandler(svc LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		in, err := decodeLeaveInput(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rec, err := svc.Update(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeaveResponse(rec))
	}
}

func deleteLeaveHandler(svc LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
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

func decodeLeaveInput(r *http.Request) (leave.Input, error) {
	var req LeaveRequest
	if err := decodeJSON(r, &req); err != nil {
		return leave.Input{}, err
	}
	practitionerID, err := parseUUID("practitioner_id", req.PractitionerID)
	if err != nil {
		return leave.Input{}, err
	}
	clinicID, err := parseUUID("clinic_id", req.ClinicID)
	if err != nil {
		return leave.Input{}, err
	}
	return leave.Input{
		PractitionerID: practitionerID,
		ClinicID:       clinicID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Reason:         req.Reason,
		Active:         req.Active,
	}, nil
}
