package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/logging"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	TransitionRatio float64
	ReadRatio       float64
	PatientLimit    int
	WindowLimit     int
}

type simWindow struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Date     scheduling.Date
	Slots    []scheduling.Slot
}

type booked struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
}

type DataPool struct {
	Patients []uuid.UUID
	Windows  []simWindow
	tokens   map[uuid.UUID]string

	mu     sync.RWMutex
	booked []booked
}

func (dp *DataPool) AddBooking(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked = append(dp.booked, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.booked) == 0 {
		return booked{}, false
	}
	return dp.booked[rng.Intn(len(dp.booked))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	n := len(latencies)
	return sum / time.Duration(n), latencies[0], latencies[n-1], latencies[n*50/100], latencies[min(n*95/100, n-1)]
}

type Metrics struct {
	Booking           OperationMetrics
	Transition        OperationMetrics
	ListSlots         OperationMetrics
	ListConsultations OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}
	logging.Init("simulate", baseCfg.Env)

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("transition", cfg.TransitionRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	verifier := auth.NewVerifier([]byte(baseCfg.JWTSecret), baseCfg.JWTIssuer)
	dataPool, err := loadDataPool(ctx, pgPool, verifier, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}

	log.Info().Int("patients", len(dataPool.Patients)).Int("windows", len(dataPool.Windows)).Msg("data loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		TransitionRatio: getFloat("SIM_TRANSITION_RATIO", 0.2),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 500),
		WindowLimit:     getInt("SIM_WINDOW_LIMIT", 200),
	}

	total := cfg.BookingRatio + cfg.TransitionRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.TransitionRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool reads patients and upcoming open windows directly from
// Postgres and mints a token for every participant.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, verifier *auth.Verifier, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{tokens: make(map[uuid.UUID]string)}
	repo := scheduling.NewPgRepository(pool)

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Patients, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM availability_windows
		WHERE status = 'open' AND date >= current_date
		ORDER BY date
		LIMIT $1
	`, cfg.WindowLimit)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}
	windowIDs, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}

	for _, id := range windowIDs {
		w, err := repo.GetWindowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load window %s: %w", id, err)
		}
		slots := slices.Collect(scheduling.GenerateSlots(*w, scheduling.SlotGranularity))
		if len(slots) == 0 {
			continue
		}
		dataPool.Windows = append(dataPool.Windows, simWindow{ID: w.ID, DoctorID: w.DoctorID, Date: w.Date, Slots: slots})
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Windows) == 0 {
		return nil, fmt.Errorf("no windows loaded")
	}

	for _, id := range dataPool.Patients {
		if err := dataPool.mint(verifier, scheduling.Caller{ID: id, Role: scheduling.RolePatient}); err != nil {
			return nil, err
		}
	}
	for _, w := range dataPool.Windows {
		if _, ok := dataPool.tokens[w.DoctorID]; ok {
			continue
		}
		if err := dataPool.mint(verifier, scheduling.Caller{ID: w.DoctorID, Role: scheduling.RoleDoctor}); err != nil {
			return nil, err
		}
	}

	return dataPool, nil
}

func (dp *DataPool) mint(verifier *auth.Verifier, caller scheduling.Caller) error {
	token, err := verifier.Issue(caller, time.Hour)
	if err != nil {
		return err
	}
	dp.tokens[caller.ID] = token
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.TransitionRatio:
			s.doTransition(ctx, rng)
		case rng.Intn(2) == 0:
			s.doListSlots(ctx, rng)
		default:
			s.doListConsultations(ctx, rng)
		}
	}
}

// doBooking picks a random slot of a random window, so concurrent workers
// regularly collide on the same slot and exercise the overlap checks.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	w := s.pool.Windows[rng.Intn(len(s.pool.Windows))]
	slot := w.Slots[rng.Intn(len(w.Slots))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body, _ := json.Marshal(map[string]string{
		"doctor_id":      w.DoctorID.String(),
		"window_id":      w.ID.String(),
		"start_time":     slot.Start.String(),
		"end_time":       slot.End.String(),
		"reason":         "simulated consultation",
		"description":    "load test booking",
		"attachment_ref": "attachments/simulated.png",
	})

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, latency, err := s.call(ctx, http.MethodPost, "/consultations", patientID, body, &created)
	if err == nil && status == http.StatusCreated && created.ID != uuid.Nil {
		s.pool.AddBooking(booked{ID: created.ID, DoctorID: w.DoctorID})
	}

	s.metrics.Booking.Record(latency, status, err)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	event := []string{"accept", "reject", "complete"}[rng.Intn(3)]
	body, _ := json.Marshal(map[string]string{"status": event})

	status, latency, err := s.call(ctx, http.MethodPut, "/consultations/"+b.ID.String()+"/status", b.DoctorID, body, nil)
	s.metrics.Transition.Record(latency, status, err)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	w := s.pool.Windows[rng.Intn(len(s.pool.Windows))]

	path := fmt.Sprintf("/doctors/%s/slots?date=%s", w.DoctorID, w.Date)
	status, latency, err := s.call(ctx, http.MethodGet, path, uuid.Nil, nil, nil)
	s.metrics.ListSlots.Record(latency, status, err)
}

func (s *Simulator) doListConsultations(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, latency, err := s.call(ctx, http.MethodGet, "/consultations", patientID, nil, nil)
	s.metrics.ListConsultations.Record(latency, status, err)
}

// call performs one request as callerID (uuid.Nil for anonymous) and decodes
// a successful response into out when out is non-nil.
func (s *Simulator) call(ctx context.Context, method, path string, callerID uuid.UUID, body []byte, out any) (int, time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if callerID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+s.pool.tokens[callerID])
	}

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	}
	return resp.StatusCode, latency, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status transition", &s.metrics.Transition)
	printOperationReport("List slots", &s.metrics.ListSlots)
	printOperationReport("List consultations", &s.metrics.ListConsultations)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

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
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
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
