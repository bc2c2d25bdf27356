// Package metrics provides ready-made implementations of
// types.MetricsCollector: a no-op collector used as the manager default and
// a Prometheus-backed collector for production observability.
package metrics

import "github.com/arloliu/sharder/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	mgr := sharder.NewManager(cfg, sharder.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ExpansionMetrics implementation

// RecordExpansion discards the expansion outcome metric.
func (n *NopMetrics) RecordExpansion(_ /* outcome */ string, _ /* duration */ float64) {
	// No-op
}

// RecordAccountsMigrated discards the migrated account count.
func (n *NopMetrics) RecordAccountsMigrated(_ /* count */ int) {
	// No-op
}

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {
	// No-op
}

// RecordStateChangeDropped discards the dropped notification metric.
func (n *NopMetrics) RecordStateChangeDropped() {
	// No-op
}

// TopologyMetrics implementation

// SetShardCount discards the shard count gauge.
func (n *NopMetrics) SetShardCount(_ /* count */ uint64) {
	// No-op
}

// SetEpoch discards the epoch gauge.
func (n *NopMetrics) SetEpoch(_ /* epoch */ uint64) {
	// No-op
}

// SetHealthyShards discards the healthy shard gauge.
func (n *NopMetrics) SetHealthyShards(_ /* count */ uint64) {
	// No-op
}

// SetShardUtilization discards the utilization gauge.
func (n *NopMetrics) SetShardUtilization(_ /* shardIndex */ uint64, _ /* utilization */ float64) {
	// No-op
}

// StoreMetrics implementation

// RecordApplyRetry discards the apply retry metric.
func (n *NopMetrics) RecordApplyRetry() {
	// No-op
}
