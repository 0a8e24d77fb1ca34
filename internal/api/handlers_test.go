package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/leave"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/practitioner"
	"github.com/hackgods/clinic-scheduling/internal/ratelimit"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type fakeBookings struct {
	bookErr   error
	lastBook  appointment.BookRequest
	byRef     map[string]*appointment.Appointment
	cancelled []uuid.UUID
	booked    []string
}

func (f *fakeBookings) Book(_ context.Context, req appointment.BookRequest) (*appointment.Appointment, error) {
	f.lastBook = req
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &appointment.Appointment{
		ID:             uuid.New(),
		ExternalID:     "APT-00000000000000AB",
		ClinicID:       req.ClinicID,
		PatientID:      req.PatientID,
		PractitionerID: req.PractitionerID,
		Date:           calendar.MustDate(req.Date),
		Time:           calendar.MustClock(req.Time),
		Status:         appointment.StatusScheduled,
	}, nil
}

func (f *fakeBookings) BookedSlots(context.Context, uuid.UUID, time.Time) ([]string, error) {
	return f.booked, nil
}

func (f *fakeBookings) AvailableSlots(_ context.Context, id uuid.UUID, date time.Time) (*appointment.DayAvailability, error) {
	return &appointment.DayAvailability{
		PractitionerID: id,
		Date:           date,
		Configured:     true,
		Slots: []appointment.SlotAvailability{
			{Time: calendar.MustClock("09:00"), Booked: 1, Capacity: 1, Available: false},
		},
	}, nil
}

func (f *fakeBookings) Get(_ context.Context, ref string) (*appointment.Appointment, error) {
	if a, ok := f.byRef[ref]; ok {
		return a, nil
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (f *fakeBookings) ListForPatient(context.Context, uuid.UUID, *time.Time) ([]appointment.Appointment, error) {
	return []appointment.Appointment{}, nil
}

func (f *fakeBookings) Reschedule(_ context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error) {
	if req.Time == "09:00" {
		return nil, appointment.ErrSlotFull
	}
	return &appointment.Appointment{ID: id, Date: calendar.MustDate(req.Date), Time: calendar.MustClock(req.Time), Status: appointment.StatusScheduled}, nil
}

func (f *fakeBookings) Cancel(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	f.cancelled = append(f.cancelled, id)
	return &appointment.Appointment{ID: id, Status: appointment.StatusCancelled}, nil
}

func (f *fakeBookings) Confirm(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return nil, fmt.Errorf("%w: cancelled -> confirmed", appointment.ErrInvalidStatusTransition)
}

func (f *fakeBookings) MarkNoShow(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return &appointment.Appointment{ID: id, Status: appointment.StatusNoShow}, nil
}

func (f *fakeBookings) Delete(context.Context, uuid.UUID) error { return nil }

type fakeLeave struct {
	onLeave bool
}

func (f fakeLeave) Check(_ context.Context, id uuid.UUID, date time.Time) (leave.CheckResult, error) {
	if !f.onLeave {
		return leave.CheckResult{}, nil
	}
	return leave.CheckResult{IsOnLeave: true, Leave: &leave.Record{ID: uuid.New(), PractitionerID: id, StartDate: date, EndDate: date, Active: true}}, nil
}

func (fakeLeave) RecordsInRange(context.Context, uuid.UUID, time.Time, time.Time) ([]leave.Record, error) {
	return nil, nil
}

func (fakeLeave) Get(context.Context, uuid.UUID) (*leave.Record, error) {
	return nil, leave.ErrLeaveNotFound
}

func (fakeLeave) Create(_ context.Context, in leave.Input) (*leave.Record, error) {
	return &leave.Record{ID: uuid.New(), PractitionerID: in.PractitionerID, ClinicID: in.ClinicID,
		StartDate: calendar.MustDate(in.StartDate), EndDate: calendar.MustDate(in.EndDate), Active: true}, nil
}

func (fakeLeave) Update(context.Context, uuid.UUID, leave.Input) (*leave.Record, error) {
	return nil, leave.ErrLeaveNotFound
}

func (fakeLeave) Delete(context.Context, uuid.UUID) error { return nil }

type fakeAvailability struct{}

func (fakeAvailability) Availability(context.Context, uuid.UUID) (availability.Schedule, error) {
	return availability.Schedule{}, availability.ErrNotConfigured
}

func (fakeAvailability) SaveAvailability(_ context.Context, _ uuid.UUID, w availability.WeeklyAvailability, d *int) (availability.Schedule, error) {
	return availability.Schedule{Weekly: &w, SlotDurationMinutes: 30}, nil
}

type fakePractitioners struct{}

func (fakePractitioners) Profile(_ context.Context, id uuid.UUID) (*practitioner.Profile, error) {
	return &practitioner.Profile{ID: id, Role: practitioner.RoleAdmin, CapacityMultiplier: "3x"}, nil
}

func (fakePractitioners) SetCapacityMultiplier(_ context.Context, id uuid.UUID, m string) (*practitioner.Profile, error) {
	if m == "zero" {
		return nil, calendar.Invalid("capacity_multiplier", `must look like "3x"`)
	}
	return &practitioner.Profile{ID: id, Role: practitioner.RoleAdmin, CapacityMultiplier: m}, nil
}

func (fakePractitioners) EffectiveCapacity(context.Context, uuid.UUID) (int, error) { return 3, nil }

type recordingHook struct{ refs []string }

func (h *recordingHook) OnConsultationCompleted(_ context.Context, ref string) {
	h.refs = append(h.refs, ref)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, store.ErrStorageUnavailable
}

type testServer struct {
	handler  http.Handler
	bookings *fakeBookings
	hook     *recordingHook
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	ts := &testServer{bookings: &fakeBookings{byRef: map[string]*appointment.Appointment{}}, hook: &recordingHook{}}
	ts.handler = NewRouter(RouterConfig{
		Bookings:      ts.bookings,
		Leave:         fakeLeave{onLeave: true},
		Availability:  fakeAvailability{},
		Practitioners: fakePractitioners{},
		Consultations: ts.hook,
		Limiter:       limiter,
		Metrics:       metrics.NewCollector(prometheus.NewRegistry(), "test"),
		Logger:        zap.NewNop(),
	})
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t, nil)
	body := CreateAppointmentRequest{
		ClinicID:       uuid.NewString(),
		PatientID:      uuid.NewString(),
		PractitionerID: uuid.NewString(),
		Date:           "2025-03-01",
		Time:           "14:00",
	}

	rec := ts.do(http.MethodPost, "/appointments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp CreateAppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.AppointmentIdentifier == uuid.Nil || resp.ExternalIdentifier == "" {
		t.Fatalf("missing identifiers: %+v", resp)
	}
	if resp.Appointment.Time != "14:00" || resp.Appointment.Date != "2025-03-01" {
		t.Fatalf("unexpected appointment %+v", resp.Appointment)
	}
}

func TestCreateAppointmentErrors(t *testing.T) {
	valid := func() CreateAppointmentRequest {
		return CreateAppointmentRequest{
			ClinicID:       uuid.NewString(),
			PatientID:      uuid.NewString(),
			PractitionerID: uuid.NewString(),
			Date:           "2025-03-01",
			Time:           "14:00",
		}
	}

	tests := []struct {
		name     string
		mutate   func(*CreateAppointmentRequest)
		bookErr  error
		wantCode int
		wantErr  string
	}{
		{"bad patient id", func(r *CreateAppointmentRequest) { r.PatientID = "nope" }, nil, http.StatusBadRequest, "invalid_input"},
		{"slot full", nil, appointment.ErrSlotFull, http.StatusConflict, "slot_full"},
		{"duplicate", nil, appointment.ErrDuplicatePatientBooking, http.StatusConflict, "duplicate_patient_booking"},
		{"outside grid", nil, appointment.ErrOutsideAvailability, http.StatusUnprocessableEntity, "outside_availability"},
		{"lock busy", nil, appointment.ErrSlotBusy, http.StatusConflict, "slot_being_booked"},
		{"store down", nil, fmt.Errorf("insert appointment: %w", store.ErrStorageUnavailable), http.StatusServiceUnavailable, "storage_unavailable"},
		{"practitioner missing", nil, fmt.Errorf("resolve capacity: %w", practitioner.ErrPractitionerNotFound), http.StatusNotFound, "practitioner_not_found"},
		{"unknown", nil, errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.bookings.bookErr = tt.bookErr
			body := valid()
			if tt.mutate != nil {
				tt.mutate(&body)
			}

			rec := ts.do(http.MethodPost, "/appointments", body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decodeError(t, rec).Error; got != tt.wantErr {
				t.Fatalf("error code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestCreateAppointmentMalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBookedSlotsAcceptsBothSpellings(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.bookings.booked = []string{"09:00", "09:30"}
	id := uuid.NewString()

	for _, q := range []string{"practitioner_id=" + id, "practitionerId=" + id} {
		rec := ts.do(http.MethodGet, "/appointments/booked-slots?date=2025-03-01&"+q, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", q, rec.Code)
		}
		var resp BookedSlotsResponse
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.BookedSlots) != 2 || resp.Date != "2025-03-01" {
			t.Fatalf("unexpected response %+v", resp)
		}
	}

	rec := ts.do(http.MethodGet, "/appointments/booked-slots?practitioner_id="+id+"&date=01-03-2025", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status %d", rec.Code)
	}
}

func TestCancelByExternalID(t *testing.T) {
	ts := newTestServer(t, nil)
	appt := &appointment.Appointment{ID: uuid.New(), ExternalID: "APT-1234567890ABCDEF"}
	ts.bookings.byRef[appt.ExternalID] = appt

	rec := ts.do(http.MethodDelete, "/appointments/"+appt.ExternalID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(ts.bookings.cancelled) != 1 || ts.bookings.cancelled[0] != appt.ID {
		t.Fatalf("cancelled %v", ts.bookings.cancelled)
	}

	rec = ts.do(http.MethodDelete, "/appointments/APT-UNKNOWN", nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error != "appointment_not_found" {
		t.Fatalf("unknown ref: status %d", rec.Code)
	}
}

func TestRescheduleSlotFull(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPut, "/appointments/"+uuid.NewString(), RescheduleRequest{Date: "2025-03-01", Time: "09:00"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "slot_full" || e.Details != appointment.ErrSlotFull.Error() {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestConfirmInvalidTransition(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPost, "/appointments/"+uuid.NewString()+"/confirm", nil)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Error != "invalid_status_transition" {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodDelete, "/admin/appointments/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLeaveCheck(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/leave/check?practitionerId="+uuid.NewString()+"&date=2025-03-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp LeaveCheckResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.IsOnLeave || resp.Leave == nil || resp.Leave.StartDate != "2025-03-01" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestLeaveCreateAndMissing(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPost, "/leave", LeaveRequest{
		PractitionerID: uuid.NewString(),
		ClinicID:       uuid.NewString(),
		StartDate:      "2025-03-01",
		EndDate:        "2025-03-03",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(http.MethodGet, "/leave/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error != "leave_not_found" {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestAvailabilityNotConfigured(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/practitioners/"+uuid.NewString()+"/availability", nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error != "availability_not_configured" {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPractitionerSlots(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/practitioners/"+uuid.NewString()+"/slots?date=2025-03-03", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp DaySlotsResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Slots) != 1 || resp.Slots[0].Time != "09:00" || resp.Slots[0].Available {
		t.Fatalf("unexpected slots %+v", resp.Slots)
	}
}

func TestSetCapacity(t *testing.T) {
	ts := newTestServer(t, nil)
	id := uuid.NewString()

	rec := ts.do(http.MethodPut, "/practitioners/"+id+"/capacity", CapacityRequest{CapacityMultiplier: "3x"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp PractitionerResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.EffectiveCapacity != 3 {
		t.Fatalf("effective capacity %d", resp.EffectiveCapacity)
	}

	rec = ts.do(http.MethodPut, "/practitioners/"+id+"/capacity", CapacityRequest{CapacityMultiplier: "zero"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid multiplier: status %d", rec.Code)
	}
}

func TestConsultationCompletedAlwaysAccepted(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/internal/consultations/completed", ConsultationCompletedRequest{AppointmentID: "APT-1234567890ABCDEF"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/internal/consultations/completed", bytes.NewBufferString("garbage"))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("garbage body: status = %d", rec.Code)
	}
	if len(ts.hook.refs) != 2 || ts.hook.refs[0] != "APT-1234567890ABCDEF" {
		t.Fatalf("hook calls %v", ts.hook.refs)
	}
}

func TestRateLimited(t *testing.T) {
	ts := newTestServer(t, denyAll{})
	rec := ts.do(http.MethodGet, "/appointments/booked-slots?practitioner_id="+uuid.NewString()+"&date=2025-03-01", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	// The consultation callback is never throttled.
	rec = ts.do(http.MethodPost, "/internal/consultations/completed", ConsultationCompletedRequest{AppointmentID: "x"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("internal route throttled: %d", rec.Code)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	ts := newTestServer(t, brokenLimiter{})
	rec := ts.do(http.MethodGet, "/appointments/booked-slots?practitioner_id="+uuid.NewString()+"&date=2025-03-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/appointments/booked-slots", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("request id not echoed")
	}
}
