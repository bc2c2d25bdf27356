// Package health tracks advisory per-shard health status.
package health

import (
	"sync"

	"github.com/arloliu/sharder/types"
)

// Registry holds one status per shard of the active table.
//
// The registry is deliberately dumb: a slice under a mutex, rebuilt
// wholesale after every successful expansion so entries for retired shards
// can never linger. External monitoring collaborators flip individual
// shards between healthy and degraded in between; routing never consults
// the registry, the flags are advisory.
type Registry struct {
	mu       sync.RWMutex
	statuses []types.HealthStatus
}

// New creates a registry with shardCount shards, all healthy.
func New(shardCount uint64) *Registry {
	r := &Registry{}
	r.MarkAllHealthy(shardCount)

	return r
}

// MarkAllHealthy rebuilds the registry for shardCount shards.
//
// Every shard of the new table starts healthy; statuses of the retired
// table are discarded, not carried over.
func (r *Registry) MarkAllHealthy(shardCount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = make([]types.HealthStatus, shardCount)
}

// Status returns the shard's current status.
//
// Returns:
//   - types.HealthStatus: Current advisory status
//   - error: ErrShardIndexOutOfRange if the shard does not exist
func (r *Registry) Status(shardIndex uint64) (types.HealthStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if shardIndex >= uint64(len(r.statuses)) {
		return types.StatusHealthy, types.ErrShardIndexOutOfRange
	}

	return r.statuses[shardIndex], nil
}

// SetStatus records an advisory status for one shard.
//
// Returns:
//   - bool: true if the status actually changed
//   - error: ErrShardIndexOutOfRange if the shard does not exist
func (r *Registry) SetStatus(shardIndex uint64, status types.HealthStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if shardIndex >= uint64(len(r.statuses)) {
		return false, types.ErrShardIndexOutOfRange
	}

	changed := r.statuses[shardIndex] != status
	r.statuses[shardIndex] = status

	return changed, nil
}

// Report returns a copy of the full shard index → status mapping.
func (r *Registry) Report() map[uint64]types.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := make(map[uint64]types.HealthStatus, len(r.statuses))
	for i, status := range r.statuses {
		report[uint64(i)] = status
	}

	return report
}

// HealthyCount returns how many shards are currently marked healthy.
func (r *Registry) HealthyCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := uint64(0)
	for _, status := range r.statuses {
		if status == types.StatusHealthy {
			count++
		}
	}

	return count
}
