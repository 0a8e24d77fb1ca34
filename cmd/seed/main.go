package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/leave"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/practitioner"
)

func main() {
	clinics := flag.Int("clinics", 3, "number of clinics")
	perClinic := flag.Int("practitioners", 10, "practitioners per clinic")
	patients := flag.Int("patients", 9000, "number of patients")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	s := &seeder{
		pool:         pool,
		faker:        faker,
		log:          lg,
		availability: availability.NewService(practitioner.NewPgRepository(pool), lg.Named("availability")),
		leave:        leave.NewRegistry(leave.NewPgRepository(pool), lg.Named("leave")),
	}

	bg := context.Background()
	clinicIDs, err := s.seedClinics(bg, *clinics)
	if err != nil {
		lg.Fatal("seed clinics", zap.Error(err))
	}
	for _, clinicID := range clinicIDs {
		if err := s.seedPractitioners(bg, clinicID, *perClinic); err != nil {
			lg.Fatal("seed practitioners", zap.Error(err), zap.String("clinic_id", clinicID.String()))
		}
	}
	if err := s.seedPatients(bg, *patients); err != nil {
		lg.Fatal("seed patients", zap.Error(err))
	}

	lg.Info("seed complete")
}

type seeder struct {
	pool         *pgxpool.Pool
	faker        *gofakeit.Faker
	log          *zap.Logger
	availability *availability.Service
	leave        *leave.Registry
}

func (s *seeder) seedClinics(ctx context.Context, count int) ([]uuid.UUID, error) {
	s.log.Info("seeding clinics", zap.Int("count", count))

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO clinics (id, name, created_at)
			VALUES ($1, $2, now())
		`, id, s.faker.Company()+" Clinic")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// seedPractitioners creates doctors with a weekly grid, a few of them with a
// capacity multiplier, and gives roughly one in five an upcoming leave block.
func (s *seeder) seedPractitioners(ctx context.Context, clinicID uuid.UUID, count int) error {
	multipliers := []string{"", "", "", "2x", "3x"}
	durations := []int{10, 15, 15, 20, 30}

	for i := 0; i < count; i++ {
		id := uuid.New()
		role := practitioner.RoleDoctor
		if i%7 == 6 {
			role = practitioner.RoleStaff
		}

		_, err := s.pool.Exec(ctx, `
			INSERT INTO practitioner_profiles (id, clinic_id, name, role, capacity_multiplier, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, clinicID, "Dr. "+s.faker.LastName(), role, multipliers[s.faker.Number(0, len(multipliers)-1)])
		if err != nil {
			return err
		}

		duration := durations[s.faker.Number(0, len(durations)-1)]
		if _, err := s.availability.SaveAvailability(ctx, id, s.weeklyGrid(), &duration); err != nil {
			return err
		}

		if s.faker.Number(1, 5) == 1 {
			start := calendar.Day(time.Now().UTC()).AddDate(0, 0, s.faker.Number(1, 30))
			end := start.AddDate(0, 0, s.faker.Number(0, 6))
			if _, err := s.leave.Create(ctx, leave.Input{
				PractitionerID: id,
				ClinicID:       clinicID,
				StartDate:      calendar.FormatDate(start),
				EndDate:        calendar.FormatDate(end),
				Reason:         s.faker.RandomString([]string{"annual leave", "conference", "sick leave", "training"}),
			}); err != nil {
				return err
			}
		}
	}

	s.log.Info("practitioners seeded", zap.String("clinic_id", clinicID.String()), zap.Int("count", count))
	return nil
}

func (s *seeder) weeklyGrid() availability.WeeklyAvailability {
	mornings := []string{"08:00", "08:30", "09:00"}
	evenings := []string{"16:00", "17:00"}

	w := availability.WeeklyAvailability{Days: make([]availability.DaySchedule, 0, len(availability.Week))}
	for _, day := range availability.Week {
		ds := availability.DaySchedule{
			Day: day,
			Morning: availability.TimeWindow{
				Start: calendar.MustClock(mornings[s.faker.Number(0, len(mornings)-1)]),
				End:   calendar.MustClock("12:00"),
			},
			Evening: availability.TimeWindow{
				Start: calendar.MustClock(evenings[s.faker.Number(0, len(evenings)-1)]),
				End:   calendar.MustClock("19:00"),
			},
		}
		if day == availability.Sunday {
			ds.Morning.IsOff = true
			ds.Evening.IsOff = true
		}
		if day == availability.Saturday {
			ds.Evening.IsOff = true
		}
		w.Days = append(w.Days, ds)
	}
	return w
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.log.Info("seeding patients", zap.Int("count", count))

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, email, phone, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, uuid.New(), s.faker.Name(), s.faker.Email(), s.faker.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		s.log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}
	return nil
}
