package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ExpansionMetrics
	TopologyMetrics
	StoreMetrics
}

// ExpansionMetrics defines metrics for expansion controller operations.
type ExpansionMetrics interface {
	// RecordExpansion records a completed expansion attempt.
	//
	// Parameters:
	//   - outcome: Attempt outcome ("committed", "rolled_back", "noop", "rejected")
	//   - duration: Time taken in seconds
	RecordExpansion(outcome string, duration float64)

	// RecordAccountsMigrated records the number of account records moved
	// into the new table by a committed expansion.
	RecordAccountsMigrated(count int)

	// RecordStateTransition records an expansion state machine transition.
	RecordStateTransition(from, to State)

	// RecordStateChangeDropped records when state change notifications are
	// dropped due to slow subscribers.
	RecordStateChangeDropped()
}

// TopologyMetrics defines gauge metrics describing the active shard table.
type TopologyMetrics interface {
	// SetShardCount sets the current shard count (gauge metric).
	SetShardCount(count uint64)

	// SetEpoch sets the active table's epoch (gauge metric).
	SetEpoch(epoch uint64)

	// SetHealthyShards sets the number of shards marked healthy (gauge metric).
	SetHealthyShards(count uint64)

	// SetShardUtilization sets one shard's utilization fraction (gauge metric).
	//
	// Pushed from the control-loop tick, never from the apply hot path.
	//
	// Parameters:
	//   - shardIndex: Shard within the active table
	//   - utilization: Fraction in [0, 1]
	SetShardUtilization(shardIndex uint64, utilization float64)
}

// StoreMetrics defines metrics recorded by the read/write paths.
type StoreMetrics interface {
	// RecordApplyRetry records an apply retry caused by a sealed shard
	// during a table swap.
	RecordApplyRetry()
}
