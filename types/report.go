package types

import "math/big"

// ShardUtilization describes one shard's observed load for the current epoch.
type ShardUtilization struct {
	// ShardIndex identifies the shard within the active table.
	ShardIndex uint64 `json:"shardIndex"`

	// Utilization is recorded activity divided by the configured
	// per-shard capacity, clamped to [0, 1].
	Utilization float64 `json:"utilization"`

	// Activity is the raw operation count recorded this epoch.
	// Unlike Utilization it is not clamped, so sustained overload
	// remains visible.
	Activity uint64 `json:"activity"`

	// Accounts is the number of account records resident on the shard.
	Accounts uint64 `json:"accounts"`
}

// TopologyInfo is a point-in-time summary of a shard table.
//
// Hooks receive TopologyInfo pairs describing the table before and after
// a successful expansion.
type TopologyInfo struct {
	// Epoch is the table's version, stamped at creation and strictly
	// increasing across expansions.
	Epoch uint64 `json:"epoch"`

	// ShardCount is the number of shards in the table.
	ShardCount uint64 `json:"shardCount"`
}

// Stats is an operational snapshot of the whole manager.
//
// Aggregating TotalAccounts and TotalBalance walks every shard, so Stats
// is intended for ops surfaces and tests rather than hot paths.
type Stats struct {
	// ShardCount is the current number of shards.
	ShardCount uint64 `json:"shardCount"`

	// MaxShardCount is the configured ceiling. ShardCount never exceeds it.
	MaxShardCount uint64 `json:"maxShardCount"`

	// Epoch is the active table's version.
	Epoch uint64 `json:"epoch"`

	// HealthyShards is the number of shards currently marked healthy.
	HealthyShards uint64 `json:"healthyShards"`

	// TotalAccounts is the number of account records across all shards.
	TotalAccounts uint64 `json:"totalAccounts"`

	// TotalBalance is the sum of all account balances. Expansion
	// conserves it exactly.
	TotalBalance *big.Int `json:"totalBalance"`

	// MaxUtilization is the highest per-shard utilization this epoch.
	MaxUtilization float64 `json:"maxUtilization"`

	// ShouldExpand reports whether the expansion trigger predicate
	// currently holds and headroom remains below MaxShardCount.
	ShouldExpand bool `json:"shouldExpand"`
}
