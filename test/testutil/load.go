package testutil

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/sharder"
)

// Addr builds a deterministic, non-zero address from a sequence number.
//
// The same sequence always yields the same address, so load generators and
// assertions can agree on the account pool without sharing state.
func Addr(seq uint64) sharder.Address {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq+1)

	return sharder.BytesToAddress(b[:])
}

// LoadGenerator sustains concurrent Apply traffic against a manager.
//
// Writers pick addresses from a fixed pool and apply balance increments for a
// configured duration while the generator samples memory and goroutine usage.
// Every successful apply adds exactly one to a balance, so the final metrics
// double as the expected ledger totals for conservation checks.
type LoadGenerator struct {
	t       *testing.T
	mgr     *sharder.Manager
	metrics *LoadMetrics
}

// LoadConfig configures a load run.
type LoadConfig struct {
	// Writers is the number of concurrent goroutines applying mutations
	Writers int

	// Accounts is the size of the address pool writers pick from
	Accounts int

	// Duration is how long to sustain the load
	Duration time.Duration

	// SampleInterval is how often to sample resource usage (default: 1s)
	SampleInterval time.Duration

	// Description names the scenario in logs and the report
	Description string
}

// LoadMetrics captures what happened during a load run.
type LoadMetrics struct {
	// Config is the configuration the run used
	Config LoadConfig

	// Applies is the number of mutations that committed
	Applies uint64

	// ApplyLatency holds sampled per-apply latencies (one in every 64)
	ApplyLatency []time.Duration

	// Resource usage samples
	MemoryUsageMB  []float64
	GoroutineCount []int
	SampleTimes    []time.Time

	// Timing
	StartTime time.Time
	EndTime   time.Time

	// Errors encountered by writers
	Errors []error

	mu sync.Mutex
}

// NewLoadGenerator creates a load generator bound to the given manager.
//
// The manager stays owned by the caller; the generator only drives traffic
// through its public API.
func NewLoadGenerator(t *testing.T, mgr *sharder.Manager) *LoadGenerator {
	return &LoadGenerator{
		t:       t,
		mgr:     mgr,
		metrics: &LoadMetrics{},
	}
}

// RunLoad seeds the account pool and sustains apply traffic for the
// configured duration.
//
// The run stops early if ctx is cancelled. Deadline-induced failures of
// in-flight applies are not recorded as errors; everything else is.
//
// Returns:
//   - *LoadMetrics: Collected metrics, including the exact committed apply
//     count for conservation assertions
func (lg *LoadGenerator) RunLoad(ctx context.Context, config LoadConfig) *LoadMetrics {
	lg.t.Helper()

	if config.SampleInterval == 0 {
		config.SampleInterval = 1 * time.Second
	}
	if config.Writers <= 0 {
		config.Writers = 4
	}
	if config.Accounts <= 0 {
		config.Accounts = 1000
	}

	lg.metrics = &LoadMetrics{
		Config:    config,
		StartTime: time.Now(),
	}

	lg.t.Logf("starting load: %s", config.Description)
	lg.t.Logf("  writers: %d, accounts: %d, duration: %v",
		config.Writers, config.Accounts, config.Duration)

	// Seed the pool so every writer mutates existing records
	for seq := range uint64(config.Accounts) {
		if err := lg.mgr.Seed(ctx, Addr(seq), sharder.NewAccount(0)); err != nil {
			lg.metrics.RecordError(fmt.Errorf("seed account %d: %w", seq, err))
			return lg.metrics
		}
	}

	startMem, startGoroutines := readResources()

	loadCtx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	var applied atomic.Uint64
	var wg sync.WaitGroup
	for w := range config.Writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lg.runWriter(loadCtx, w, config, &applied)
		}()
	}

	lg.runSampling(loadCtx, config)
	wg.Wait()

	endMem, endGoroutines := readResources()

	lg.metrics.mu.Lock()
	lg.metrics.Applies = applied.Load()
	lg.metrics.EndTime = time.Now()
	lg.metrics.mu.Unlock()

	lg.t.Logf("load completed in %v: %d applies", lg.metrics.Duration(), applied.Load())

	// Flag suspicious growth; transient goroutines may still be draining here
	if growth := endMem - startMem; growth > 50.0 {
		lg.t.Logf("WARNING: memory grew %.2f MB during the run", growth)
	}
	if leaked := endGoroutines - startGoroutines; leaked > 10 {
		lg.t.Logf("WARNING: %d goroutines outlived the run", leaked)
	}

	return lg.metrics
}

// runWriter applies balance increments until the context ends.
//
// Addresses are walked with a stride of Writers so the writers cover the pool
// without coordinating.
func (lg *LoadGenerator) runWriter(ctx context.Context, writer int, config LoadConfig, applied *atomic.Uint64) {
	seq := uint64(writer)
	ops := 0

	for ctx.Err() == nil {
		addr := Addr(seq % uint64(config.Accounts))
		seq += uint64(config.Writers)

		started := time.Now()
		_, err := lg.mgr.Apply(ctx, addr, incrementBalance)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			lg.metrics.RecordError(fmt.Errorf("writer %d apply: %w", writer, err))

			continue
		}

		applied.Add(1)
		ops++
		if ops%64 == 0 {
			lg.metrics.RecordApplyLatency(time.Since(started))
		}
	}
}

// incrementBalance is the mutation every writer applies.
func incrementBalance(current sharder.Account) (sharder.Account, error) {
	current.Balance.Add(current.Balance, big.NewInt(1))
	current.Nonce++

	return current, nil
}

// runSampling samples resource usage until the load context ends.
func (lg *LoadGenerator) runSampling(ctx context.Context, config LoadConfig) {
	lg.t.Helper()

	ticker := time.NewTicker(config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.sampleResources()
			return
		case <-ticker.C:
			lg.sampleResources()
		}
	}
}

// sampleResources captures current memory and goroutine usage.
func (lg *LoadGenerator) sampleResources() {
	memMB, goroutines := readResources()

	lg.metrics.mu.Lock()
	lg.metrics.MemoryUsageMB = append(lg.metrics.MemoryUsageMB, memMB)
	lg.metrics.GoroutineCount = append(lg.metrics.GoroutineCount, goroutines)
	lg.metrics.SampleTimes = append(lg.metrics.SampleTimes, time.Now())
	lg.metrics.mu.Unlock()
}

func readResources() (memMB float64, goroutines int) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return float64(m.Alloc) / 1024 / 1024, runtime.NumGoroutine()
}

// RecordApplyLatency records one sampled apply latency.
func (lm *LoadMetrics) RecordApplyLatency(latency time.Duration) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.ApplyLatency = append(lm.ApplyLatency, latency)
}

// RecordError records an error encountered during the run.
func (lm *LoadMetrics) RecordError(err error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.Errors = append(lm.Errors, err)
}

// Duration returns the total run duration.
func (lm *LoadMetrics) Duration() time.Duration {
	if lm.EndTime.IsZero() {
		return time.Since(lm.StartTime)
	}

	return lm.EndTime.Sub(lm.StartTime)
}

// ApplyRate returns committed applies per second.
func (lm *LoadMetrics) ApplyRate() float64 {
	d := lm.Duration().Seconds()
	if d <= 0 {
		return 0
	}

	return float64(lm.Applies) / d
}

// ExpectedTotal returns the ledger total the run should have produced, given
// that every committed apply adds exactly one.
func (lm *LoadMetrics) ExpectedTotal() *big.Int {
	return new(big.Int).SetUint64(lm.Applies)
}

// LatencyPercentile returns the Nth percentile of the sampled apply latencies.
//
// Parameters:
//   - p: Percentile (0.0-1.0), e.g., 0.95 for 95th percentile
func (lm *LoadMetrics) LatencyPercentile(p float64) time.Duration {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if len(lm.ApplyLatency) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(lm.ApplyLatency))
	copy(sorted, lm.ApplyLatency)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

// PeakMemoryMB returns the peak sampled memory usage.
func (lm *LoadMetrics) PeakMemoryMB() float64 {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	peak := 0.0
	for _, mem := range lm.MemoryUsageMB {
		if mem > peak {
			peak = mem
		}
	}

	return peak
}

// PeakGoroutines returns the peak sampled goroutine count.
func (lm *LoadMetrics) PeakGoroutines() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	peak := 0
	for _, count := range lm.GoroutineCount {
		if count > peak {
			peak = count
		}
	}

	return peak
}

// Report generates a formatted report of the load run.
func (lm *LoadMetrics) Report() string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	report := "\n=== Load Report ===\n"
	report += fmt.Sprintf("Description: %s\n", lm.Config.Description)
	report += fmt.Sprintf("Duration: %v\n", lm.Duration())
	report += "\nConfiguration:\n"
	report += fmt.Sprintf("  Writers: %d\n", lm.Config.Writers)
	report += fmt.Sprintf("  Accounts: %d\n", lm.Config.Accounts)

	report += "\nApply Metrics:\n"
	report += fmt.Sprintf("  Committed: %d\n", lm.Applies)
	report += fmt.Sprintf("  Rate: %.0f/s\n", lm.applyRateLocked())
	if len(lm.ApplyLatency) > 0 {
		report += fmt.Sprintf("  P50 Latency: %v\n", lm.latencyPercentileLocked(0.50))
		report += fmt.Sprintf("  P95 Latency: %v\n", lm.latencyPercentileLocked(0.95))
		report += fmt.Sprintf("  P99 Latency: %v\n", lm.latencyPercentileLocked(0.99))
	}

	// Peaks are computed inline; the exported methods take the same lock
	peakMemory := 0.0
	for _, mem := range lm.MemoryUsageMB {
		if mem > peakMemory {
			peakMemory = mem
		}
	}
	peakGoroutines := 0
	for _, count := range lm.GoroutineCount {
		if count > peakGoroutines {
			peakGoroutines = count
		}
	}

	report += "\nResource Usage:\n"
	report += fmt.Sprintf("  Peak Memory: %.2f MB\n", peakMemory)
	report += fmt.Sprintf("  Peak Goroutines: %d\n", peakGoroutines)
	report += fmt.Sprintf("  Samples: %d\n", len(lm.MemoryUsageMB))

	if len(lm.Errors) > 0 {
		report += fmt.Sprintf("\nErrors: %d\n", len(lm.Errors))
		for i, err := range lm.Errors {
			if i < 5 {
				report += fmt.Sprintf("  %d: %v\n", i+1, err)
			}
		}
		if len(lm.Errors) > 5 {
			report += fmt.Sprintf("  ... and %d more\n", len(lm.Errors)-5)
		}
	}

	return report
}

func (lm *LoadMetrics) applyRateLocked() float64 {
	var d time.Duration
	if lm.EndTime.IsZero() {
		d = time.Since(lm.StartTime)
	} else {
		d = lm.EndTime.Sub(lm.StartTime)
	}
	if d.Seconds() <= 0 {
		return 0
	}

	return float64(lm.Applies) / d.Seconds()
}

func (lm *LoadMetrics) latencyPercentileLocked(p float64) time.Duration {
	sorted := make([]time.Duration, len(lm.ApplyLatency))
	copy(sorted, lm.ApplyLatency)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
