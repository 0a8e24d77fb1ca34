package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/leave"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/practitioner"
	"github.com/hackgods/clinic-scheduling/internal/ratelimit"
)

type BookingService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	BookedSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]string, error)
	AvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time) (*appointment.DayAvailability, error)
	Get(ctx context.Context, ref string) (*appointment.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type LeaveService interface {
	Check(ctx context.Context, practitionerID uuid.UUID, date time.Time) (leave.CheckResult, error)
	RecordsInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]leave.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*leave.Record, error)
	Create(ctx context.Context, in leave.Input) (*leave.Record, error)
	Update(ctx context.Context, id uuid.UUID, in leave.Input) (*leave.Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AvailabilityService interface {
	Availability(ctx context.Context, practitionerID uuid.UUID) (availability.Schedule, error)
	SaveAvailability(ctx context.Context, practitionerID uuid.UUID, weekly availability.WeeklyAvailability, slotDurationMinutes *int) (availability.Schedule, error)
}

type PractitionerService interface {
	Profile(ctx context.Context, id uuid.UUID) (*practitioner.Profile, error)
	SetCapacityMultiplier(ctx context.Context, id uuid.UUID, multiplier string) (*practitioner.Profile, error)
	EffectiveCapacity(ctx context.Context, id uuid.UUID) (int, error)
}

type ConsultationHook interface {
	OnConsultationCompleted(ctx context.Context, ref string)
}

type RouterConfig struct {
	Bookings      BookingService
	Leave         LeaveService
	Availability  AvailabilityService
	Practitioners PractitionerService
	Consultations ConsultationHook
	Health        *HealthHandler
	Limiter       ratelimit.Limiter
	Metrics       *metrics.Collector
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(cfg.Metrics))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.Limiter, cfg.Metrics, log))

		// Appointment endpoints
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Bookings))
			r.Get("/", listAppointmentsHandler(cfg.Bookings))
			r.Get("/booked-slots", bookedSlotsHandler(cfg.Bookings))
			r.Get("/{id}", getAppointmentHandler(cfg.Bookings))
			r.Put("/{id}", rescheduleAppointmentHandler(cfg.Bookings))
			r.Delete("/{id}", statusHandler(cfg.Bookings, cfg.Bookings.Cancel))
			r.Post("/{id}/confirm", statusHandler(cfg.Bookings, cfg.Bookings.Confirm))
			r.Post("/{id}/no-show", statusHandler(cfg.Bookings, cfg.Bookings.MarkNoShow))
		})
		r.Delete("/admin/appointments/{id}", deleteAppointmentHandler(cfg.Bookings))

		r.Route("/leave", func(r chi.Router) {
			r.Get("/check", checkLeaveHandler(cfg.Leave))
			r.Get("/", listLeaveHandler(cfg.Leave))
			r.Post("/", createLeaveHandler(cfg.Leave))
			r.Get("/{id}", getLeaveHandler(cfg.Leave))
			r.Put("/{id}", updateLeaveHandler(cfg.Leave))
			r.Delete("/{id}", deleteLeaveHandler(cfg.Leave))
		})

		r.Route("/practitioners/{id}", func(r chi.Router) {
			r.Get("/", getPractitionerHandler(cfg.Practitioners))
			r.Put("/capacity", setCapacityHandler(cfg.Practitioners))
			r.Get("/availability", getAvailabilityHandler(cfg.Availability))
			r.Put("/availability", putAvailabilityHandler(cfg.Availability))
			r.Get("/slots", practitionerSlotsHandler(cfg.Bookings))
		})
	})

	// Called by the consultation subsystem; not rate limited.
	r.Post("/internal/consultations/completed", consultationCompletedHandler(cfg.Consultations))

	return r
}
