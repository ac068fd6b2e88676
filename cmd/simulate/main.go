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

	"github.com/Sudhaanshuu/Arogyam/internal/db"
)

// simulate drives concurrent booking load against a running api-server and
// reports success/conflict/error counts with latency percentiles. It is the
// operational check that two overlapping reserves never both succeed.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	ConfirmRatio float64
	CancelRatio  float64
	PostgresDSN  string
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   envStr("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     envDuration("SIM_DURATION", time.Minute),
		Workers:      envInt("SIM_WORKERS", 16),
		ConfirmRatio: envFloat("SIM_CONFIRM_RATIO", 0.6),
		CancelRatio:  envFloat("SIM_CANCEL_RATIO", 0.2),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

type heldBooking struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Version   int64
}

type DataPool struct {
	Practitioners []uuid.UUID
	Patients      []uuid.UUID

	mu   sync.Mutex
	held []heldBooking
}

func (dp *DataPool) AddBooking(b heldBooking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.held = append(dp.held, b)
}

func (dp *DataPool) TakeRandomBooking() (heldBooking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.held) == 0 {
		return heldBooking{}, false
	}
	idx := rand.Intn(len(dp.held))
	b := dp.held[idx]
	dp.held = append(dp.held[:idx], dp.held[idx+1:]...)
	return b, true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
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

func (om *OperationMetrics) Summary(name string) string {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return fmt.Sprintf("%-12s no operations", name)
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	pct := func(p int) time.Duration {
		idx := len(sorted) * p / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}

	return fmt.Sprintf("%-12s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s max=%s",
		name, om.Total, om.Success, om.Conflict, om.Error,
		sum/time.Duration(len(sorted)), pct(50), pct(95), sorted[len(sorted)-1])
}

func main() {
	log.SetFlags(log.LstdFlags)
	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 5)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dp, err := loadDataPool(context.Background(), pool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d practitioners and %d patients", len(dp.Practitioners), len(dp.Patients))

	bookMetrics := &OperationMetrics{}
	confirmMetrics := &OperationMetrics{}
	cancelMetrics := &OperationMetrics{}

	runCtx, stop := context.WithTimeout(context.Background(), cfg.Duration)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(runCtx, client, cfg, dp, bookMetrics, confirmMetrics, cancelMetrics)
		}()
	}
	wg.Wait()

	log.Println("simulation complete")
	log.Println(bookMetrics.Summary("book"))
	log.Println(confirmMetrics.Summary("confirm"))
	log.Println(cancelMetrics.Summary("cancel"))
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM practitioners WHERE active LIMIT 200`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Practitioners = append(dp.Practitioners, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id FROM patients LIMIT 2000`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Practitioners) == 0 || len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no practitioners or patients seeded, run cmd/seed first")
	}

	return dp, nil
}

func worker(ctx context.Context, client *http.Client, cfg SimConfig, dp *DataPool, book, confirm, cancel *OperationMetrics) {
	for ctx.Err() == nil {
		roll := rand.Float64()
		switch {
		case roll < cfg.ConfirmRatio*cfg.CancelRatio: // small slice: cancel something held
			doCancel(ctx, client, cfg, dp, cancel)
		case roll < cfg.ConfirmRatio:
			doConfirm(ctx, client, cfg, dp, confirm)
		default:
			doBook(ctx, client, cfg, dp, book)
		}
	}
}

type slotDTO struct {
	StartTime time.Time `json:"start_time"`
}

type availabilityDTO struct {
	Slots []slotDTO `json:"slots"`
}

type bookingDTO struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`
}

func doBook(ctx context.Context, client *http.Client, cfg SimConfig, dp *DataPool, m *OperationMetrics) {
	practitioner := dp.Practitioners[rand.Intn(len(dp.Practitioners))]
	patient := dp.Patients[rand.Intn(len(dp.Patients))]
	date := time.Now().AddDate(0, 0, 1+rand.Intn(5)).Format("2006-01-02")
	duration := []int{15, 30, 45, 60}[rand.Intn(4)]

	availURL := fmt.Sprintf("%s/availability?practitioner_id=%s&date=%s&duration_minutes=%d",
		cfg.APIBaseURL, practitioner, date, duration)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, availURL, nil)
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	var avail availabilityDTO
	err = json.NewDecoder(resp.Body).Decode(&avail)
	drain(resp)
	if err != nil || len(avail.Slots) == 0 {
		return
	}

	slot := avail.Slots[rand.Intn(len(avail.Slots))]
	payload, _ := json.Marshal(map[string]any{
		"practitioner_id":  practitioner.String(),
		"patient_id":       patient.String(),
		"start_time":       slot.StartTime,
		"duration_minutes": duration,
	})

	req, _ = http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/bookings", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	asPatient(req, patient)

	start := time.Now()
	resp, err = client.Do(req)
	if err != nil {
		return
	}
	m.Record(time.Since(start), resp.StatusCode)

	if resp.StatusCode == http.StatusCreated {
		var b bookingDTO
		if err := json.NewDecoder(resp.Body).Decode(&b); err == nil {
			dp.AddBooking(heldBooking{ID: b.ID, PatientID: patient, Version: b.Version})
		}
	}
	drain(resp)
}

func doConfirm(ctx context.Context, client *http.Client, cfg SimConfig, dp *DataPool, m *OperationMetrics) {
	held, ok := dp.TakeRandomBooking()
	if !ok {
		return
	}

	url := fmt.Sprintf("%s/bookings/%s/confirm", cfg.APIBaseURL, held.ID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	req.Header.Set("If-Match", strconv.FormatInt(held.Version, 10))
	asPatient(req, held.PatientID)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	m.Record(time.Since(start), resp.StatusCode)
	drain(resp)
}

func doCancel(ctx context.Context, client *http.Client, cfg SimConfig, dp *DataPool, m *OperationMetrics) {
	held, ok := dp.TakeRandomBooking()
	if !ok {
		return
	}

	url := fmt.Sprintf("%s/bookings/%s/cancel", cfg.APIBaseURL, held.ID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	req.Header.Set("If-Match", strconv.FormatInt(held.Version, 10))
	asPatient(req, held.PatientID)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	m.Record(time.Since(start), resp.StatusCode)
	drain(resp)
}

func asPatient(req *http.Request, patientID uuid.UUID) {
	req.Header.Set("X-User-Id", patientID.String())
	req.Header.Set("X-User-Role", "patient")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
