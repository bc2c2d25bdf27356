// Package monitor tracks per-shard load and evaluates the expansion trigger.
package monitor

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/sharder/types"
)

// Monitor tracks per-shard activity for the current epoch.
//
// RecordActivity sits on the apply hot path, so each shard gets an xsync
// striped counter: increments scale across cores without fighting over one
// cache line. The expansion predicate is evaluated out-of-band on the
// manager's tick, never inline with a write.
//
// Counters are per-epoch: a successful expansion calls Resize, which
// installs fresh zeroed counters sized for the new table. Utilization
// therefore measures pressure on the current topology, not load inherited
// from the smaller table the expansion just replaced.
type Monitor struct {
	capacity  uint64
	threshold float64

	// counters is swapped wholesale by Resize; readers load it once per call.
	counters atomic.Pointer[[]*xsync.Counter]
}

// New creates a monitor covering shardCount shards.
//
// Parameters:
//   - shardCount: Number of shards in the active table
//   - capacityPerShard: Operations one shard is provisioned for per epoch
//   - threshold: Utilization fraction that arms the expansion trigger
func New(shardCount, capacityPerShard uint64, threshold float64) *Monitor {
	m := &Monitor{capacity: capacityPerShard, threshold: threshold}
	m.Resize(shardCount)

	return m
}

// RecordActivity counts one operation against the shard.
//
// Indexes beyond the current counter set are dropped silently; the only way
// to produce one is racing a Resize, and Resize only ever grows the set.
func (m *Monitor) RecordActivity(shardIndex uint64) {
	counters := *m.counters.Load()
	if shardIndex >= uint64(len(counters)) {
		return
	}

	counters[shardIndex].Inc()
}

// Activity returns the raw operation count recorded against the shard this
// epoch.
func (m *Monitor) Activity(shardIndex uint64) uint64 {
	counters := *m.counters.Load()
	if shardIndex >= uint64(len(counters)) {
		return 0
	}

	v := counters[shardIndex].Value()
	if v < 0 {
		return 0
	}

	return uint64(v)
}

// Utilization returns the shard's activity as a fraction of its capacity,
// clamped to [0, 1].
func (m *Monitor) Utilization(shardIndex uint64) float64 {
	return m.fraction(m.Activity(shardIndex))
}

// Utilizations returns the ordered per-shard utilization fractions.
func (m *Monitor) Utilizations() []float64 {
	counters := *m.counters.Load()
	out := make([]float64, len(counters))
	for i, c := range counters {
		out[i] = m.fraction(clampNonNegative(c.Value()))
	}

	return out
}

// MaxUtilization returns the highest per-shard utilization this epoch.
func (m *Monitor) MaxUtilization() float64 {
	maxU := 0.0
	for _, u := range m.Utilizations() {
		if u > maxU {
			maxU = u
		}
	}

	return maxU
}

// ShouldExpand reports whether any single shard's utilization meets or
// exceeds the configured threshold.
//
// One hot shard is enough: the trigger is existential, and one expansion
// relieves every shard at once, so no tie-breaking across hot shards is
// needed.
func (m *Monitor) ShouldExpand() bool {
	counters := *m.counters.Load()
	for _, c := range counters {
		if m.fraction(clampNonNegative(c.Value())) >= m.threshold {
			return true
		}
	}

	return false
}

// ShardCount returns the number of shards the monitor currently covers.
func (m *Monitor) ShardCount() uint64 {
	return uint64(len(*m.counters.Load()))
}

// Report assembles the ordered per-shard utilization report. accounts
// supplies the resident record count per shard, gathered by the caller from
// the table the report describes.
func (m *Monitor) Report(accounts []uint64) []types.ShardUtilization {
	counters := *m.counters.Load()
	report := make([]types.ShardUtilization, len(counters))
	for i, c := range counters {
		activity := clampNonNegative(c.Value())
		report[i] = types.ShardUtilization{
			ShardIndex:  uint64(i),
			Utilization: m.fraction(activity),
			Activity:    activity,
		}
		if i < len(accounts) {
			report[i].Accounts = accounts[i]
		}
	}

	return report
}

// Resize installs fresh zeroed counters covering shardCount shards.
//
// Called once per committed expansion, after the table swap. In-flight
// RecordActivity calls racing the swap may land on the retired counter set;
// that skew is bounded to one call and only affects monitoring, never data.
func (m *Monitor) Resize(shardCount uint64) {
	counters := make([]*xsync.Counter, shardCount)
	for i := range counters {
		counters[i] = xsync.NewCounter()
	}

	m.counters.Store(&counters)
}

func (m *Monitor) fraction(activity uint64) float64 {
	if m.capacity == 0 {
		return 0
	}

	u := float64(activity) / float64(m.capacity)
	if u > 1 {
		u = 1
	}

	return u
}

func clampNonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
