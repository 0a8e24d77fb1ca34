package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
)

type SimConfig struct {
	APIBaseURL        string
	Date              string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	ConfirmRatio      float64
	CancelRatio       float64
	ReadRatio         float64
	PatientLimit      int
	PractitionerLimit int
	ContentionClients int
	PostgresDSN       string
}

type practitionerRef struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []practitionerRef

	mu           sync.RWMutex
	slotTimes    map[uuid.UUID][]string
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) SetSlotTimes(id uuid.UUID, times []string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.slotTimes[id] = times
}

func (dp *DataPool) SlotTimes(id uuid.UUID) ([]string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	t, ok := dp.slotTimes[id]
	return t, ok
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]
	return avg, min, max, p50, p95
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type Metrics struct {
	Contention    OperationMetrics
	Booking       OperationMetrics
	Confirm       OperationMetrics
	Cancel        OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	DaySlots      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics

	contentionCapacity int
}

func main() {
	cfg, baseCfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	lg, err := logger.New(baseCfg.LogLevel, baseCfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("simulator starting",
		zap.String("date", cfg.Date),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("confirm", cfg.ConfirmRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		lg.Fatal("load data pool", zap.Error(err))
	}
	lg.Info("data pool loaded",
		zap.Int("patients", len(dataPool.Patients)),
		zap.Int("practitioners", len(dataPool.Practitioners)))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    lg,
	}

	sim.RunContention()
	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, config.Config) {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("DATE", calendar.FormatDate(calendar.Day(time.Now().UTC()).AddDate(0, 0, 1)))
	v.SetDefault("DURATION", 30*time.Second)
	v.SetDefault("WORKERS", 10)
	v.SetDefault("BOOKING_RATIO", 0.5)
	v.SetDefault("CONFIRM_RATIO", 0.15)
	v.SetDefault("CANCEL_RATIO", 0.05)
	v.SetDefault("READ_RATIO", 0.3)
	v.SetDefault("PATIENT_LIMIT", 4000)
	v.SetDefault("PRACTITIONER_LIMIT", 50)
	v.SetDefault("CONTENTION_CLIENTS", 25)

	cfg := SimConfig{
		APIBaseURL:        strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Date:              v.GetString("DATE"),
		Duration:          v.GetDuration("DURATION"),
		Workers:           v.GetInt("WORKERS"),
		BookingRatio:      v.GetFloat64("BOOKING_RATIO"),
		ConfirmRatio:      v.GetFloat64("CONFIRM_RATIO"),
		CancelRatio:       v.GetFloat64("CANCEL_RATIO"),
		ReadRatio:         v.GetFloat64("READ_RATIO"),
		PatientLimit:      v.GetInt("PATIENT_LIMIT"),
		PractitionerLimit: v.GetInt("PRACTITIONER_LIMIT"),
		ContentionClients: v.GetInt("CONTENTION_CLIENTS"),
		PostgresDSN:       baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, baseCfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if _, err := calendar.ParseDate(cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE: %w", err)
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{slotTimes: make(map[uuid.UUID][]string)}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT id, clinic_id FROM practitioner_profiles
		WHERE role = 'doctor' AND availability IS NOT NULL
		LIMIT $1
	`, cfg.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	for rows.Next() {
		var p practitionerRef
		if err := rows.Scan(&p.ID, &p.ClinicID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Practitioners = append(dataPool.Practitioners, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners with availability loaded")
	}
	return dataPool, nil
}

type daySlots struct {
	OnLeave bool `json:"on_leave"`
	Slots   []struct {
		Time      string `json:"time"`
		Capacity  int    `json:"capacity"`
		Available bool   `json:"available"`
	} `json:"slots"`
}

func (s *Simulator) fetchDay(ctx context.Context, practitionerID uuid.UUID) (*daySlots, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/practitioners/%s/slots?date=%s", s.config.APIBaseURL, practitionerID, s.config.Date), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slots: status %d", resp.StatusCode)
	}
	var out daySlots
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunContention fires ContentionClients simultaneous bookings with distinct
// patients at the first slot of one practitioner. At most the slot's
// capacity may succeed.
func (s *Simulator) RunContention() {
	if s.config.ContentionClients <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	target := s.pool.Practitioners[0]
	day, err := s.fetchDay(ctx, target.ID)
	if err != nil || len(day.Slots) == 0 {
		s.log.Warn("skipping contention run, no slots for target", zap.Error(err))
		return
	}
	slot := day.Slots[0]
	s.contentionCapacity = slot.Capacity

	clients := min2(s.config.ContentionClients, len(s.pool.Patients))
	s.log.Info("contention run",
		zap.String("practitioner_id", target.ID.String()),
		zap.String("time", slot.Time),
		zap.Int("capacity", slot.Capacity),
		zap.Int("clients", clients))

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()
			<-start
			s.book(ctx, &s.metrics.Contention, target, patientID, slot.Time)
		}(s.pool.Patients[i])
	}
	close(start)
	wg.Wait()

	if ok := atomic.LoadInt64(&s.metrics.Contention.Success); int(ok) > slot.Capacity {
		s.log.Error("capacity exceeded under contention",
			zap.Int64("booked", ok), zap.Int("capacity", slot.Capacity))
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doStatus(ctx, rng, http.MethodPost, "/confirm", &s.metrics.Confirm)
			case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
				s.doStatus(ctx, rng, http.MethodDelete, "", &s.metrics.Cancel)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doDaySlots(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) book(ctx context.Context, om *OperationMetrics, p practitionerRef, patientID uuid.UUID, at string) {
	body, _ := json.Marshal(map[string]string{
		"clinic_id":       p.ClinicID.String(),
		"patient_id":      patientID.String(),
		"practitioner_id": p.ID.String(),
		"date":            s.config.Date,
		"time":            at,
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				ID uuid.UUID `json:"appointment_identifier"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddAppointment(created.ID)
			}
		case http.StatusConflict, http.StatusTooManyRequests:
			conflict = true
		}
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	times, ok := s.pool.SlotTimes(p.ID)
	if !ok {
		day, err := s.fetchDay(ctx, p.ID)
		if err != nil {
			return
		}
		for _, slot := range day.Slots {
			times = append(times, slot.Time)
		}
		s.pool.SetSlotTimes(p.ID, times)
	}
	if len(times) == 0 {
		return
	}

	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.book(ctx, &s.metrics.Booking, p, patientID, times[rng.Intn(len(times))])
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand, method, suffix string, om *OperationMetrics) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, method,
		fmt.Sprintf("%s/appointments/%s%s", s.config.APIBaseURL, apptID, suffix), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.get(ctx, &s.metrics.ReadByID, fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID))
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.get(ctx, &s.metrics.ListByPatient,
		fmt.Sprintf("%s/appointments?patient_id=%s&date=%s", s.config.APIBaseURL, patientID, s.config.Date))
}

func (s *Simulator) doDaySlots(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	s.get(ctx, &s.metrics.DaySlots,
		fmt.Sprintf("%s/practitioners/%s/slots?date=%s", s.config.APIBaseURL, p.ID, s.config.Date))
}

func (s *Simulator) get(ctx context.Context, om *OperationMetrics, url string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	om.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s\n", s.config.Date)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if atomic.LoadInt64(&s.metrics.Contention.Total) > 0 {
		fmt.Printf("Contention slot capacity: %d\n", s.contentionCapacity)
	}
	printOperationReport("Contention booking", &s.metrics.Contention)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Day slots", &s.metrics.DaySlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
