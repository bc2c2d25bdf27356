package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/sharder/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// All metric vectors are created and registered lazily on first use, so
// constructing the collector never panics on duplicate registration when an
// application wires several managers to distinct registerers.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	expansions         *prometheus.CounterVec
	expansionDuration  prometheus.Histogram
	accountsMigrated   prometheus.Counter
	stateTransitions   *prometheus.CounterVec
	stateChangeDropped prometheus.Counter

	shardCount       prometheus.Gauge
	epoch            prometheus.Gauge
	healthyShards    prometheus.Gauge
	shardUtilization *prometheus.GaugeVec

	applyRetries prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "sharder" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "sharder"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.expansions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "expansion",
			Name:      "attempts_total",
			Help:      "Total expansion attempts by outcome (committed,rolled_back,noop,rejected).",
		}, []string{"outcome"})

		p.expansionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "expansion",
			Name:      "duration_seconds",
			Help:      "Duration of completed expansion attempts in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
		})

		p.accountsMigrated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "expansion",
			Name:      "accounts_migrated_total",
			Help:      "Total account records moved into new tables by committed expansions.",
		})

		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "expansion",
			Name:      "state_transitions_total",
			Help:      "Total expansion state machine transitions by edge.",
		}, []string{"from", "to"})

		p.stateChangeDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "expansion",
			Name:      "state_changes_dropped_total",
			Help:      "State change notifications dropped due to slow subscribers.",
		})

		p.shardCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "topology",
			Name:      "shard_count",
			Help:      "Current number of shards in the active table.",
		})

		p.epoch = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "topology",
			Name:      "epoch",
			Help:      "Epoch of the active shard table.",
		})

		p.healthyShards = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "topology",
			Name:      "healthy_shards",
			Help:      "Number of shards currently marked healthy.",
		})

		p.shardUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "topology",
			Name:      "shard_utilization",
			Help:      "Per-shard utilization fraction for the current epoch.",
		}, []string{"shard"})

		p.applyRetries = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "apply_retries_total",
			Help:      "Apply retries caused by sealed shards during table swaps.",
		})

		p.reg.MustRegister(p.expansions)
		p.reg.MustRegister(p.expansionDuration)
		p.reg.MustRegister(p.accountsMigrated)
		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.stateChangeDropped)
		p.reg.MustRegister(p.shardCount)
		p.reg.MustRegister(p.epoch)
		p.reg.MustRegister(p.healthyShards)
		p.reg.MustRegister(p.shardUtilization)
		p.reg.MustRegister(p.applyRetries)
	})
}

// ExpansionMetrics implementation

// RecordExpansion counts the attempt outcome and, for attempts that ran a
// migration (duration > 0), observes the duration.
func (p *PrometheusCollector) RecordExpansion(outcome string, duration float64) {
	p.ensureRegistered()
	p.expansions.WithLabelValues(outcome).Inc()
	if duration > 0 {
		p.expansionDuration.Observe(duration)
	}
}

// RecordAccountsMigrated adds the migrated record count of one commit.
func (p *PrometheusCollector) RecordAccountsMigrated(count int) {
	p.ensureRegistered()
	p.accountsMigrated.Add(float64(count))
}

// RecordStateTransition counts one state machine edge.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordStateChangeDropped counts a dropped subscriber notification.
func (p *PrometheusCollector) RecordStateChangeDropped() {
	p.ensureRegistered()
	p.stateChangeDropped.Inc()
}

// TopologyMetrics implementation

// SetShardCount sets the active shard count gauge.
func (p *PrometheusCollector) SetShardCount(count uint64) {
	p.ensureRegistered()
	p.shardCount.Set(float64(count))
}

// SetEpoch sets the active epoch gauge.
func (p *PrometheusCollector) SetEpoch(epoch uint64) {
	p.ensureRegistered()
	p.epoch.Set(float64(epoch))
}

// SetHealthyShards sets the healthy shard gauge.
func (p *PrometheusCollector) SetHealthyShards(count uint64) {
	p.ensureRegistered()
	p.healthyShards.Set(float64(count))
}

// SetShardUtilization sets one shard's utilization gauge.
func (p *PrometheusCollector) SetShardUtilization(shardIndex uint64, utilization float64) {
	p.ensureRegistered()
	p.shardUtilization.WithLabelValues(strconv.FormatUint(shardIndex, 10)).Set(utilization)
}

// StoreMetrics implementation

// RecordApplyRetry counts one sealed-shard apply retry.
func (p *PrometheusCollector) RecordApplyRetry() {
	p.ensureRegistered()
	p.applyRetries.Inc()
}
