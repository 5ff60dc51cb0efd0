package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-agenda/internal/agenda"
	"github.com/hackgods/dental-agenda/internal/auth"
	"github.com/hackgods/dental-agenda/internal/config"
	"github.com/hackgods/dental-agenda/internal/db"
	"github.com/hackgods/dental-agenda/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	Practitioners int
	Days          int
	SlotsPerDay   int
	BookingRatio  float64
	MoveRatio     float64
	StatusRatio   float64
	ReadRatio     float64
	PatientLimit  int
	PostgresDSN   string
	JWTSecret     string
}

type booked struct {
	id             uuid.UUID
	practitionerID int64
}

type DataPool struct {
	Patients     []int64
	Days         []agenda.Day
	Slots        []agenda.Clock
	tokens       map[int64]string
	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking OperationMetrics
	Move    OperationMetrics
	Status  OperationMetrics
	DayView OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	logger := logging.New(os.Stdout, true, getEnv("LOG_LEVEL", "info"))

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("practitioners", cfg.Practitioners).
		Int("slots_per_day", cfg.SlotsPerDay).
		Float64("booking", cfg.BookingRatio).
		Float64("move", cfg.MoveRatio).
		Float64("status", cfg.StatusRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("days", len(dataPool.Days)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	violations := sim.Verify(context.Background())
	sim.PrintReport(violations)

	if violations > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		Practitioners: getInt("SIM_PRACTITIONERS", 3),
		Days:          getInt("SIM_DAYS", 2),
		SlotsPerDay:   getInt("SIM_SLOTS_PER_DAY", 16),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		MoveRatio:     getFloat("SIM_MOVE_RATIO", 0.15),
		StatusRatio:   getFloat("SIM_STATUS_RATIO", 0.15),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.2),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 2000),
		PostgresDSN:   baseCfg.PostgresDSN,
		JWTSecret:     baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.MoveRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.MoveRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotsPerDay <= 0 || cfg.SlotsPerDay > 48 {
		return SimConfig{}, fmt.Errorf("SIM_SLOTS_PER_DAY must be between 1 and 48")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{tokens: make(map[int64]string)}

	rows, err := pool.Query(ctx, `SELECT id FROM patients ORDER BY id LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	// Days well in the future so the run does not collide with seeded data.
	first := agenda.DayOf(time.Now()).AddDays(365 + rand.Intn(365))
	for i := 0; i < cfg.Days; i++ {
		dataPool.Days = append(dataPool.Days, first.AddDays(i))
	}

	// Half-hour slots from 08:00.
	for i := 0; i < cfg.SlotsPerDay; i++ {
		dataPool.Slots = append(dataPool.Slots, agenda.Clock(8*60+30*i))
	}

	for p := 1; p <= cfg.Practitioners; p++ {
		token, err := auth.IssueToken(cfg.JWTSecret, int64(p), "dentist", cfg.Duration+time.Hour)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		dataPool.tokens[int64(p)] = token
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Msg("simulation running")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.MoveRatio:
			s.doMove(ctx, rng)
		case r < s.config.BookingRatio+s.config.MoveRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		default:
			s.doDayView(ctx, rng)
		}
	}
}

func (s *Simulator) randomPractitioner(rng *rand.Rand) int64 {
	return int64(rng.Intn(s.config.Practitioners) + 1)
}

func (s *Simulator) randomDay(rng *rand.Rand) agenda.Day {
	return s.pool.Days[rng.Intn(len(s.pool.Days))]
}

func (s *Simulator) randomSlot(rng *rand.Rand) agenda.Clock {
	return s.pool.Slots[rng.Intn(len(s.pool.Slots))]
}

// send issues one request and returns the status code, or 0 on transport error.
func (s *Simulator) send(ctx context.Context, practitionerID int64, method, path string, body any, out any) int {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.pool.tokens[practitionerID])

	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	pid := s.randomPractitioner(rng)
	body := map[string]any{
		"day":     s.randomDay(rng).String(),
		"time":    s.randomSlot(rng).String(),
		"patient": s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"reason":  "Simulated visit",
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	code := s.send(ctx, pid, http.MethodPost, "/appointments", body, &created)
	latency := time.Since(start)

	if code == http.StatusCreated && created.ID != uuid.Nil {
		s.pool.AddAppointment(booked{id: created.ID, practitionerID: pid})
	}
	s.metrics.Booking.Record(latency, code == http.StatusCreated, code == http.StatusConflict)
}

func (s *Simulator) doMove(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	body := map[string]any{
		"to_day": s.randomDay(rng).String(),
		"time":   s.randomSlot(rng).String(),
	}

	start := time.Now()
	code := s.send(ctx, appt.practitionerID, http.MethodPost,
		fmt.Sprintf("/appointments/%s/move", appt.id), body, nil)
	s.metrics.Move.Record(time.Since(start), code == http.StatusOK, code == http.StatusConflict)
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	status := agenda.Statuses[rng.Intn(len(agenda.Statuses))]

	start := time.Now()
	code := s.send(ctx, appt.practitionerID, http.MethodPut,
		fmt.Sprintf("/appointments/%s/status", appt.id), map[string]any{"status": status}, nil)
	s.metrics.Status.Record(time.Since(start), code == http.StatusOK, code == http.StatusConflict)
}

func (s *Simulator) doDayView(ctx context.Context, rng *rand.Rand) {
	pid := s.randomPractitioner(rng)

	start := time.Now()
	code := s.send(ctx, pid, http.MethodGet, "/agenda/"+s.randomDay(rng).String(), nil, nil)
	s.metrics.DayView.Record(time.Since(start), code == http.StatusOK, false)
}

type dayView struct {
	Items []struct {
		ID     uuid.UUID `json:"id"`
		Time   string    `json:"time"`
		Status string    `json:"status"`
	} `json:"items"`
}

// Verify reads every simulated day back and counts times held by more than one
// active appointment.
func (s *Simulator) Verify(ctx context.Context) int {
	violations := 0
	for pid := int64(1); pid <= int64(s.config.Practitioners); pid++ {
		for _, day := range s.pool.Days {
			var view dayView
			if code := s.send(ctx, pid, http.MethodGet, "/agenda/"+day.String(), nil, &view); code != http.StatusOK {
				s.logger.Error().Int64("practitioner_id", pid).Str("day", day.String()).Int("status", code).
					Msg("verify: day view failed")
				violations++
				continue
			}

			held := make(map[string]uuid.UUID)
			for _, item := range view.Items {
				st, err := agenda.ParseStatus(item.Status)
				if err != nil || !st.OccupiesSlot() {
					continue
				}
				if other, dup := held[item.Time]; dup {
					s.logger.Error().
						Int64("practitioner_id", pid).
						Str("day", day.String()).
						Str("time", item.Time).
						Str("first", other.String()).
						Str("second", item.ID.String()).
						Msg("double booking detected")
					violations++
					continue
				}
				held[item.Time] = item.ID
			}
		}
	}
	return violations
}

func (s *Simulator) PrintReport(violations int) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Practitioners: %d, days: %d, slots per day: %d\n",
		s.config.Practitioners, s.config.Days, s.config.SlotsPerDay)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Move", &s.metrics.Move)
	printOperationReport("Status change", &s.metrics.Status)
	printOperationReport("Day view", &s.metrics.DayView)

	if violations == 0 {
		fmt.Println("Invariant: no double bookings found")
	} else {
		fmt.Printf("Invariant: %d violations found\n", violations)
	}
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

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
