package sharder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/arloliu/sharder/growth"
	"github.com/arloliu/sharder/internal/expansion"
	"github.com/arloliu/sharder/internal/health"
	"github.com/arloliu/sharder/internal/hooks"
	"github.com/arloliu/sharder/internal/logger"
	"github.com/arloliu/sharder/internal/monitor"
	"github.com/arloliu/sharder/internal/topology"
	"github.com/arloliu/sharder/metrics"
	"github.com/arloliu/sharder/types"
)

// Manager partitions an account-keyed ledger state across shards and grows
// the shard count live when load demands it.
//
// Manager is the main entry point of the Sharder library. It handles:
//   - Hash routing of addresses to shards over the active shard table
//   - Serialized reads and writes against per-shard stores
//   - Load monitoring and threshold-driven automatic expansion
//   - Live shard-count expansion with zero record loss
//   - Advisory per-shard health tracking
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - The active table is published through a single atomic handle, so
//     every operation sees either the old or the new topology, never a mix
//   - Expansion state transitions are atomic and validated
//
// Lifecycle:
//   - Create with NewManager(); reads, writes, and manual Expand work
//     immediately
//   - Call Start() to run the background load monitor that drives
//     automatic expansion
//   - Call Stop() for graceful shutdown of the monitor
//
// Testing:
// Consumers can define minimal interfaces for mocking:
//
//	type StateStore interface {
//	    Apply(ctx context.Context, addr sharder.Address, fn sharder.Mutation) (sharder.Account, error)
//	    Lookup(addr sharder.Address) (sharder.Account, bool)
//	}
type Manager struct {
	cfg Config

	// Optional dependencies
	growth  GrowthPolicy
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger

	// Internal components
	handle     *topology.Handle
	registry   *health.Registry
	monitor    *monitor.Monitor
	controller *expansion.Controller

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewManager creates a new Manager with the provided configuration.
//
// The initial shard table is built eagerly: the returned manager routes,
// reads, and writes without any further setup. Start is only needed for
// the background load monitor that drives automatic expansion.
//
// Returns a concrete *Manager struct following the "accept interfaces,
// return structs" principle. Consumers can define their own interfaces for
// testing if needed.
//
// Parameters:
//   - cfg: Runtime configuration; zero fields are filled with defaults
//   - opts: Optional configuration (growth policy, hooks, metrics, logger)
//
// Returns:
//   - *Manager: Initialized manager serving the initial table
//   - error: Validation error if the configuration is invalid
//
// Example:
//
//	cfg := sharder.DefaultConfig()
//	cfg.InitialShardCount = 8
//	mgr, err := sharder.NewManager(&cfg, sharder.WithLogger(myLogger))
func NewManager(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	// Fill in missing configuration values with defaults
	SetDefaults(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	growthPolicy := options.growth
	if growthPolicy == nil {
		growthPolicy = growth.NewDoubling()
	}

	// Build the epoch-1 table and everything keyed by its shard count
	table := topology.NewTable(1, cfg.InitialShardCount)

	m := &Manager{
		cfg:      *cfg,
		growth:   growthPolicy,
		hooks:    hooksInstance,
		metrics:  metricsCollector,
		logger:   loggerInstance,
		handle:   topology.NewHandle(table),
		registry: health.New(cfg.InitialShardCount),
		monitor:  monitor.New(cfg.InitialShardCount, cfg.CapacityPerShard, cfg.ExpansionLoadThreshold),
	}

	m.controller = expansion.NewController(
		expansion.Config{
			MaxShardCount:       cfg.MaxShardCount,
			RedistributeWorkers: cfg.RedistributeWorkers,
		},
		m.handle,
		m.registry,
		m.monitor,
		m.onTopologyCommitted,
		loggerInstance,
		metricsCollector,
	)
	m.controller.SetOnStateChange(m.onExpansionStateChanged)

	metricsCollector.SetShardCount(table.Count())
	metricsCollector.SetEpoch(table.Epoch)
	metricsCollector.SetHealthyShards(table.Count())

	loggerInstance.Info("manager created",
		"shard_count", table.Count(),
		"max_shard_count", cfg.MaxShardCount,
		"epoch", table.Epoch,
	)

	return m, nil
}

// Start launches the background load monitor.
//
// The monitor periodically publishes per-shard utilization gauges and
// triggers an automatic expansion when any shard crosses the configured
// load threshold. All other operations work without Start.
//
// Parameters:
//   - ctx: Context consulted for early cancellation; the monitor itself
//     runs on the manager's own lifecycle context until Stop
//
// Returns:
//   - error: ErrManagerAlreadyStarted, ErrManagerStopped, or ctx.Err()
func (m *Manager) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()

		return ErrManagerStopped
	}
	if m.ctx != nil {
		m.mu.Unlock()

		return ErrManagerAlreadyStarted
	}

	// The monitor runs on the manager's own lifecycle context; only Stop
	// ends it, not the caller's startup context.
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitorLoad(m.ctx)

	m.logger.Info("manager started", "monitor_interval", m.cfg.MonitorInterval)

	return nil
}

// Stop gracefully shuts down the background load monitor.
//
// Reads, writes, and manual expansion keep working after Stop; only the
// automatic expansion loop ends. Safe to call once; subsequent calls
// return ErrManagerStopped.
//
// Parameters:
//   - ctx: Context for shutdown timeout
//
// Returns:
//   - error: Shutdown error or timeout
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()

		return ErrManagerNotStarted
	}
	if m.stopped {
		m.mu.Unlock()

		return ErrManagerStopped
	}

	m.stopped = true
	m.cancel()
	m.mu.Unlock()

	// Wait for the monitor goroutine with the caller's timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("manager stopped gracefully")
		return nil
	case <-ctx.Done():
		m.logError("shutdown timeout exceeded, load monitor may still be running")
		return ctx.Err()
	}
}

// Close stops the manager if it is running.
//
// Safe to call on a manager that was never started, which makes it
// convenient with defer right after NewManager.
func (m *Manager) Close() error {
	err := m.Stop(context.Background())
	if errors.Is(err, ErrManagerNotStarted) || errors.Is(err, ErrManagerStopped) {
		return nil
	}

	return err
}

// Apply runs mutation against the account at addr under the owning shard's
// write lock and returns the stored record.
//
// The mutation receives a copy of the current record, or a zero-balance
// account if the address has never been written. Errors returned by the
// mutation abort the write and propagate to the caller unchanged.
//
// If the owning shard is sealed by an in-flight expansion, Apply refetches
// the table and retries on the configured schedule; once the expansion
// commits, the retry lands on the new topology. A write therefore either
// lands exactly once or fails with an error, never silently disappears
// into a retired table.
//
// Parameters:
//   - ctx: Bounds the sealed-shard retry wait
//   - addr: Account address; the reserved zero address is rejected
//   - mutation: Transformation to apply
//
// Returns:
//   - Account: The record as stored
//   - error: ErrAddressInvalid, ErrNilMutation, mutation errors,
//     ErrShardUnavailable after retry exhaustion, or ctx.Err()
func (m *Manager) Apply(ctx context.Context, addr Address, mutation Mutation) (Account, error) {
	if addr.IsZero() {
		return Account{}, fmt.Errorf("%w: the zero address is reserved", types.ErrAddressInvalid)
	}
	if mutation == nil {
		return Account{}, types.ErrNilMutation
	}

	var applied Account
	err := m.withShardRetry(ctx, addr, func(shard *topology.Shard) error {
		acct, err := shard.Store.Update(addr, mutation)
		if err != nil {
			return err
		}

		applied = acct
		m.monitor.RecordActivity(shard.Index)

		return nil
	})
	if err != nil {
		return Account{}, err
	}

	return applied, nil
}

// Seed writes acct under addr with plain set semantics, replacing any
// existing record.
//
// Seed is meant for initial state loading; unlike Apply it does not count
// against shard load, so bulk-loading a ledger does not trip the expansion
// trigger by itself.
//
// Parameters:
//   - ctx: Bounds the sealed-shard retry wait
//   - addr: Account address; the reserved zero address is rejected
//   - acct: Record to store; the balance must be non-nil and non-negative
//
// Returns:
//   - error: ErrAddressInvalid, a balance validation error, or
//     ErrShardUnavailable after retry exhaustion
func (m *Manager) Seed(ctx context.Context, addr Address, acct Account) error {
	if addr.IsZero() {
		return fmt.Errorf("%w: the zero address is reserved", types.ErrAddressInvalid)
	}

	return m.withShardRetry(ctx, addr, func(shard *topology.Shard) error {
		return shard.Store.Set(addr, acct)
	})
}

// Lookup returns a copy of the account stored at addr.
//
// Reads are served by the owning shard of the active table even while an
// expansion is migrating; a sealed shard stays authoritative for reads
// until the new table commits.
//
// Returns:
//   - Account: Deep copy the caller owns outright
//   - bool: false if the address has never been written
func (m *Manager) Lookup(addr Address) (Account, bool) {
	if addr.IsZero() {
		return Account{}, false
	}

	return m.handle.Load().Locate(addr).Store.Get(addr)
}

// Balance returns the balance stored at addr, or zero if the address has
// never been written. The result is a copy the caller owns.
func (m *Manager) Balance(addr Address) *big.Int {
	acct, ok := m.Lookup(addr)
	if !ok || acct.Balance == nil {
		return new(big.Int)
	}

	return acct.Balance
}

// withShardRetry runs op against the shard owning addr, refetching the
// active table and retrying while the shard is sealed for migration.
//
// The retry budget is ApplyRetryAttempts * ApplyRetryInterval; a seal that
// outlasts it surfaces as ErrShardUnavailable, which callers may retry
// once the table swap settles.
func (m *Manager) withShardRetry(ctx context.Context, addr Address, op func(shard *topology.Shard) error) error {
	for attempt := 0; ; attempt++ {
		shard := m.handle.Load().Locate(addr)

		err := op(shard)
		if err == nil || !errors.Is(err, types.ErrShardSealed) {
			return err
		}

		if attempt >= m.cfg.ApplyRetryAttempts {
			return fmt.Errorf("%w: shard %d still sealed after %d retries",
				types.ErrShardUnavailable, shard.Index, attempt)
		}

		m.metrics.RecordApplyRetry()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.ApplyRetryInterval):
		}
	}
}

// CurrentShardCount returns the number of shards in the active table.
func (m *Manager) CurrentShardCount() uint64 {
	return m.handle.Load().Count()
}

// Epoch returns the active table's version. It starts at 1 and increases
// by one with every committed expansion.
func (m *Manager) Epoch() uint64 {
	return m.handle.Load().Epoch
}

// ShardFor returns the index of the shard owning addr in the active table.
//
// The placement is computed fresh against the active table; it is valid
// for that table's epoch and may change after an expansion commits.
//
// Returns:
//   - uint64: Owning shard index
//   - error: ErrAddressInvalid for the reserved zero address
func (m *Manager) ShardFor(addr Address) (uint64, error) {
	if addr.IsZero() {
		return 0, fmt.Errorf("%w: the zero address is reserved", types.ErrAddressInvalid)
	}

	return m.handle.Load().Locate(addr).Index, nil
}

// UtilizationReport returns the ordered per-shard utilization for the
// current epoch, including resident account counts.
func (m *Manager) UtilizationReport() []ShardUtilization {
	table := m.handle.Load()

	accounts := make([]uint64, table.Count())
	for i, shard := range table.Shards {
		accounts[i] = uint64(shard.Store.Len())
	}

	return m.monitor.Report(accounts)
}

// HealthReport returns the advisory health status of every shard in the
// active table.
func (m *Manager) HealthReport() map[uint64]HealthStatus {
	return m.registry.Report()
}

// SetShardHealth records an advisory health status for one shard.
//
// The status is advisory only: routing never avoids a degraded shard,
// because an account's owning shard is a function of the topology, not of
// health. Operators use the flags to drive alerts and dashboards.
//
// Parameters:
//   - shardIndex: Shard in the active table
//   - status: New advisory status
//
// Returns:
//   - error: ErrShardIndexOutOfRange if the shard does not exist
func (m *Manager) SetShardHealth(shardIndex uint64, status HealthStatus) error {
	changed, err := m.registry.SetStatus(shardIndex, status)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	m.metrics.SetHealthyShards(m.registry.HealthyCount())
	m.logger.Info("shard health changed",
		"shard", shardIndex,
		"status", status.String(),
	)

	if m.hooks.OnShardHealthChanged != nil {
		// Run hook in background to avoid blocking the caller
		go func() {
			if err := m.hooks.OnShardHealthChanged(m.hookCtx(), shardIndex, status); err != nil {
				m.logError("shard health hook error", "shard", shardIndex, "error", err)
			}
		}()
	}

	return nil
}

// Stats returns an operational snapshot of the manager.
//
// Aggregation walks every shard, so Stats is intended for ops surfaces and
// tests rather than hot paths.
func (m *Manager) Stats() Stats {
	table := m.handle.Load()

	totalAccounts := uint64(0)
	totalBalance := new(big.Int)
	for _, shard := range table.Shards {
		n, sum := shard.Store.Totals()
		totalAccounts += n
		totalBalance.Add(totalBalance, sum)
	}

	return Stats{
		ShardCount:     table.Count(),
		MaxShardCount:  m.cfg.MaxShardCount,
		Epoch:          table.Epoch,
		HealthyShards:  m.registry.HealthyCount(),
		TotalAccounts:  totalAccounts,
		TotalBalance:   totalBalance,
		MaxUtilization: m.monitor.MaxUtilization(),
		ShouldExpand:   m.ShouldExpand(),
	}
}

// ShouldExpand reports whether any shard has crossed the load threshold
// and headroom remains below MaxShardCount.
//
// This is the same predicate the background monitor evaluates; callers
// running without Start can poll it and call Expand themselves.
func (m *Manager) ShouldExpand() bool {
	return m.monitor.ShouldExpand() && m.handle.Load().Count() < m.cfg.MaxShardCount
}

// Expand grows the shard count to targetCount.
//
// The target is clamped to MaxShardCount. A target at or below the current
// count returns the current count with a nil error, so repeated or stale
// requests are harmless no-ops and the shard count never decreases.
//
// Expansion migrates every account onto a freshly built table and installs
// it atomically: concurrent readers and writers see either the old or the
// new topology, never a mixture, and no record is lost or duplicated. On
// any failure the previous table remains authoritative and the error wraps
// ErrExpansionFailed. Only one expansion runs at a time; concurrent calls
// fail fast with ErrExpansionInProgress.
//
// Parameters:
//   - ctx: Cancels the migration while it is still copying; the commit
//     itself is not interruptible
//   - targetCount: Requested shard count (pre-clamp)
//
// Returns:
//   - uint64: The active shard count after the call
//   - error: nil, ErrExpansionInProgress, or a wrapped ErrExpansionFailed
func (m *Manager) Expand(ctx context.Context, targetCount uint64) (uint64, error) {
	return m.controller.Expand(ctx, targetCount)
}

// ExpansionState returns the current expansion state.
func (m *Manager) ExpansionState() State {
	return m.controller.State()
}

// SubscribeExpansionState returns a channel receiving expansion state
// changes and an unsubscribe function.
//
// The channel is buffered so one full expansion's state sequence can queue
// without dropping; the current state is delivered immediately.
func (m *Manager) SubscribeExpansionState() (<-chan State, func()) {
	return m.controller.Subscribe()
}

// WaitState waits for the expansion state machine to reach the expected
// state within the timeout period.
//
// The method returns a read-only channel that will receive exactly one value:
//   - nil if the expected state is reached within the timeout
//   - ErrWaitStateTimeout if the timeout expires first
//
// The channel is closed after sending the result, allowing safe use in
// select statements. Note that Committed and RolledBack are transient
// states that step to Idle immediately; to observe them reliably use
// SubscribeExpansionState instead.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result
//
// Example:
//
//	errCh := mgr.WaitState(sharder.StateIdle, 10*time.Second)
//	if err := <-errCh; err != nil {
//	    log.Printf("expansion did not settle: %v", err)
//	}
func (m *Manager) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1) // Buffered to prevent goroutine leak

	go func() {
		defer close(ch)

		// Check if already in expected state
		if m.ExpansionState() == expectedState {
			ch <- nil
			return
		}

		// Poll for state changes
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if m.ExpansionState() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- ErrWaitStateTimeout
				return
			}
		}
	}()

	return ch
}

// monitorLoad periodically publishes utilization gauges and triggers
// automatic expansion. Runs until the manager's lifecycle context ends.
func (m *Manager) monitorLoad(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("load monitor stopped")
			return
		case <-ticker.C:
			m.publishUtilization()
			m.evaluateExpansion(ctx)
		}
	}
}

// publishUtilization pushes the per-shard utilization gauges.
func (m *Manager) publishUtilization() {
	for i, u := range m.monitor.Utilizations() {
		m.metrics.SetShardUtilization(uint64(i), u)
	}
}

// evaluateExpansion runs one round of the automatic expansion decision.
func (m *Manager) evaluateExpansion(ctx context.Context) {
	if !m.ShouldExpand() {
		return
	}

	current := m.handle.Load().Count()
	target := m.growth.Next(current, m.cfg.MaxShardCount)
	if target <= current {
		return
	}

	m.logger.Info("load threshold reached, expanding",
		"current", current,
		"target", target,
		"max_utilization", m.monitor.MaxUtilization(),
	)

	if _, err := m.controller.Expand(ctx, target); err != nil {
		// A racing manual expansion holds the controller; the next tick
		// re-evaluates against whatever table it committed.
		if errors.Is(err, types.ErrExpansionInProgress) {
			return
		}

		m.logError("automatic expansion failed", "target", target, "error", err)
		m.fireOnError(err)
	}
}

// onTopologyCommitted is installed as the expansion controller's commit
// callback. It fires the topology hook after the new table is live.
func (m *Manager) onTopologyCommitted(old, installed TopologyInfo, _ int) {
	if m.hooks.OnTopologyChanged == nil {
		return
	}

	// Run hook in background to avoid blocking the expansion controller
	go func() {
		if err := m.hooks.OnTopologyChanged(m.hookCtx(), old, installed); err != nil {
			m.logError("topology change hook error",
				"old_count", old.ShardCount,
				"new_count", installed.ShardCount,
				"error", err,
			)
		}
	}()
}

// onExpansionStateChanged is installed as the state machine's transition
// callback. It fires the state hook for every transition.
func (m *Manager) onExpansionStateChanged(from, to State) {
	if m.hooks.OnStateChanged == nil {
		return
	}

	go func() {
		if err := m.hooks.OnStateChanged(m.hookCtx(), from, to); err != nil {
			m.logError("state change hook error",
				"from", from.String(),
				"to", to.String(),
				"error", err,
			)
		}
	}()
}

// fireOnError fires the error hook in the background.
func (m *Manager) fireOnError(err error) {
	if m.hooks.OnError == nil {
		return
	}

	go func() {
		if hookErr := m.hooks.OnError(m.hookCtx(), err); hookErr != nil {
			m.logError("error hook error", "error", hookErr)
		}
	}()
}

// hookCtx returns the manager's lifecycle context, or a background context
// when hooks fire before Start.
func (m *Manager) hookCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return m.ctx
	}

	return context.Background()
}

// logError logs an error message.
func (m *Manager) logError(msg string, keysAndValues ...any) {
	// Logger is always non-nil (defaults to NopLogger)
	m.logger.Error(msg, keysAndValues...)
}
