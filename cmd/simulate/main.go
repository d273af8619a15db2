package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/payment"
)

// The simulator hammers the booking finalize endpoint with many workers
// racing over a small slot pool. The interesting number in the report is the
// conflict count: every slot must produce exactly one success no matter how
// many workers tried.

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	SlotLimit     int
	PatientCount  int
	PostgresDSN   string
	JWTSecret     string
	PaymentSecret string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config   SimConfig
	slots    []uuid.UUID
	patients []uuid.UUID
	tokens   map[uuid.UUID]string
	client   *http.Client
	finalize OperationMetrics
	prepare  OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	slots, err := loadAvailableSlots(ctx, pgPool, cfg.SlotLimit)
	if err != nil {
		log.Fatalf("load slots: %v", err)
	}
	if len(slots) == 0 {
		log.Fatal("no available slots; run seed and generate slots first")
	}
	log.Printf("loaded %d available slots", len(slots))

	sim := &Simulator{
		config: cfg,
		slots:  slots,
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: make(map[uuid.UUID]string),
	}

	for i := 0; i < cfg.PatientCount; i++ {
		id := uuid.New()
		token, err := mintToken(id, cfg.JWTSecret)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		sim.patients = append(sim.patients, id)
		sim.tokens[id] = token
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 20),
		SlotLimit:     getInt("SIM_SLOT_LIMIT", 200),
		PatientCount:  getInt("SIM_PATIENTS", 100),
		PostgresDSN:   baseCfg.PostgresDSN,
		JWTSecret:     baseCfg.JWTSecret,
		PaymentSecret: baseCfg.RazorpayKeySecret,
	}
}

func loadAvailableSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM slots
		WHERE availability = 'available' AND start_time > now()
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		slots = append(slots, id)
	}
	return slots, rows.Err()
}

func mintToken(subject uuid.UUID, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("running for %s with %d workers over %d slots",
		s.config.Duration, s.config.Workers, len(s.slots))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			patientID := s.patients[rng.Intn(len(s.patients))]
			slotID := s.slots[rng.Intn(len(s.slots))]
			if rng.Float64() < 0.3 {
				s.doPrepare(ctx, patientID, slotID)
			} else {
				s.doFinalize(ctx, patientID, slotID)
			}
		}
	}
}

func (s *Simulator) doPrepare(ctx context.Context, patientID, slotID uuid.UUID) {
	body, _ := json.Marshal(map[string]any{"slot_id": slotID.String()})

	start := time.Now()
	resp, err := s.post(ctx, patientID, "/api/appointments/prepare", body)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.prepare.Record(latency, success, conflict)
}

func (s *Simulator) doFinalize(ctx context.Context, patientID, slotID uuid.UUID) {
	orderID := "order_" + uuid.NewString()
	paymentID := "pay_" + uuid.NewString()
	sig := payment.ComputeSignature(s.config.PaymentSecret, orderID, paymentID)

	body, _ := json.Marshal(map[string]any{
		"slot_id":             slotID.String(),
		"type":                "virtual",
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  sig,
	})

	start := time.Now()
	resp, err := s.post(ctx, patientID, "/api/appointments", body)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.finalize.Record(latency, success, conflict)
}

func (s *Simulator) post(ctx context.Context, patientID uuid.UUID, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.tokens[patientID])
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\nSIMULATION REPORT")
	fmt.Printf("Duration: %s  Workers: %d  Slots: %d\n\n", s.config.Duration, s.config.Workers, len(s.slots))

	printOperationReport("Prepare", &s.prepare)
	printOperationReport("Finalize", &s.finalize)

	success := atomic.LoadInt64(&s.finalize.Success)
	if success > int64(len(s.slots)) {
		fmt.Printf("!! more successful bookings (%d) than slots (%d): double booking detected\n",
			success, len(s.slots))
	} else {
		fmt.Printf("bookings within slot capacity: %d/%d\n", success, len(s.slots))
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
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
