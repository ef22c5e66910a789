package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/slot-booking/internal/auth"
	"github.com/medibook/slot-booking/internal/db"
)

// The simulator hammers the booking endpoint with many patients fighting
// over few slots, then audits the database for the one property that
// matters: no slot key ever holds two live appointments.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	PostgresDSN string
	JWTSecret   string
}

type slotTarget struct {
	DoctorID uuid.UUID
	Date     string
	Time     string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
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
	p95idx := len(latencies) * 95 / 100
	if p95idx >= len(latencies) {
		p95idx = len(latencies) - 1
	}
	p95 = latencies[p95idx]
	return avg, p50, p95
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:    30 * time.Second,
		Workers:     20,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}

	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	patients, err := loadPatients(context.Background(), pool, 200)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	targets, err := loadSlotTargets(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("load slots: %v", err)
	}
	if len(patients) == 0 || len(targets) == 0 {
		log.Fatal("no patients or slots found, run the seed first")
	}

	log.Printf("simulating: workers=%d duration=%s patients=%d targets=%d",
		cfg.Workers, cfg.Duration, len(patients), len(targets))

	verifier := auth.NewVerifier(cfg.JWTSecret)
	tokens := make([]string, len(patients))
	for i, p := range patients {
		token, err := verifier.Mint(auth.Identity{UID: p, Role: auth.RolePatient}, 2*cfg.Duration+time.Minute)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		tokens[i] = token
	}

	metrics := &OperationMetrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	runCtx, stop := context.WithTimeout(context.Background(), cfg.Duration)
	defer stop()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))

			for runCtx.Err() == nil {
				pi := rng.Intn(len(patients))
				target := targets[rng.Intn(len(targets))]
				attemptBooking(runCtx, client, cfg.APIBaseURL, tokens[pi], target, metrics)
			}
		}(w)
	}
	wg.Wait()

	avg, p50, p95 := metrics.Stats()
	log.Printf("bookings: total=%d success=%d conflict=%d error=%d",
		atomic.LoadInt64(&metrics.Total),
		atomic.LoadInt64(&metrics.Success),
		atomic.LoadInt64(&metrics.Conflict),
		atomic.LoadInt64(&metrics.Error))
	log.Printf("latency: avg=%s p50=%s p95=%s", avg, p50, p95)

	violations, err := auditDoubleBookings(context.Background(), pool)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	if violations > 0 {
		log.Fatalf("FAIL: %d slot keys hold more than one live appointment", violations)
	}
	log.Println("PASS: no slot key holds more than one live appointment")
}

func attemptBooking(ctx context.Context, client *http.Client, baseURL, token string, target slotTarget, metrics *OperationMetrics) {
	body, _ := json.Marshal(map[string]any{
		"doctorId":      target.DoctorID.String(),
		"date":          target.Date,
		"time":          target.Time,
		"patientName":   "Sim Patient",
		"patientAge":    30,
		"patientMobile": "01700000000",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			metrics.Record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	metrics.Record(time.Since(start), resp.StatusCode)
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadSlotTargets(ctx context.Context, pool *pgxpool.Pool, limit int) ([]slotTarget, error) {
	rows, err := pool.Query(ctx, `
		SELECT doctor_id, date, time
		FROM slots
		WHERE status = 'available'
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []slotTarget
	for rows.Next() {
		var t slotTarget
		if err := rows.Scan(&t.DoctorID, &t.Date, &t.Time); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func auditDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	rows, err := pool.Query(ctx, `
		SELECT doctor_id, date, time, count(*)
		FROM appointments
		WHERE status IN ('Pending', 'Confirmed', 'Completed')
		GROUP BY doctor_id, date, time
		HAVING count(*) > 1
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var doctorID uuid.UUID
		var date, timeLabel string
		var count int
		if err := rows.Scan(&doctorID, &date, &timeLabel, &count); err != nil {
			return violations, err
		}
		violations++
		fmt.Printf("violation: doctor=%s date=%s time=%s live=%d\n", doctorID, date, timeLabel, count)
	}

	return violations, rows.Err()
}
