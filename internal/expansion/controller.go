package expansion

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/sharder/internal/health"
	"github.com/arloliu/sharder/internal/monitor"
	"github.com/arloliu/sharder/internal/router"
	"github.com/arloliu/sharder/internal/store"
	"github.com/arloliu/sharder/internal/topology"
	"github.com/arloliu/sharder/types"
)

// ctxCheckStride is how many redistributed entries a worker processes
// between context checks.
const ctxCheckStride = 1024

// Config holds the controller's fixed parameters.
type Config struct {
	// MaxShardCount is the shard-count ceiling. Targets above it are
	// clamped, never rejected.
	MaxShardCount uint64

	// RedistributeWorkers caps the parallel redistribution goroutines.
	// Zero means runtime.GOMAXPROCS(0).
	RedistributeWorkers int
}

// Controller orchestrates live shard-count expansion.
//
// One controller owns one topology handle. All expansion attempts funnel
// through Expand, which serializes them via the state machine: the winner
// migrates while losers are rejected with ErrExpansionInProgress.
type Controller struct {
	handle   *topology.Handle
	registry *health.Registry
	monitor  *monitor.Monitor
	sm       *StateMachine

	maxShardCount uint64
	workers       int

	// onCommit is invoked synchronously after a successful commit with the
	// retired and installed table infos and the migrated record count. The
	// manager uses it to fire hooks and refresh gauges.
	onCommit func(old, installed types.TopologyInfo, migrated int)

	logger  types.Logger
	metrics types.MetricsCollector
}

// NewController creates an expansion controller for the given topology.
//
// Parameters:
//   - cfg: Fixed expansion parameters
//   - handle: The active-table handle the controller commits into
//   - registry: Health registry rebuilt on every commit
//   - mon: Load monitor resized on every commit
//   - onCommit: Post-commit callback (may be nil)
//   - logger: Logger for expansion progress
//   - metrics: Metrics collector
//
// Returns:
//   - *Controller: Initialized controller with an Idle state machine
func NewController(
	cfg Config,
	handle *topology.Handle,
	registry *health.Registry,
	mon *monitor.Monitor,
	onCommit func(old, installed types.TopologyInfo, migrated int),
	logger types.Logger,
	metrics types.MetricsCollector,
) *Controller {
	workers := cfg.RedistributeWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Controller{
		handle:        handle,
		registry:      registry,
		monitor:       mon,
		sm:            NewStateMachine(logger, metrics),
		maxShardCount: cfg.MaxShardCount,
		workers:       workers,
		onCommit:      onCommit,
		logger:        logger,
		metrics:       metrics,
	}
}

// State returns the current expansion state.
func (c *Controller) State() types.State {
	return c.sm.GetState()
}

// SetOnStateChange registers a callback invoked synchronously after every
// state transition. Must be called before the first Expand.
func (c *Controller) SetOnStateChange(fn func(from, to types.State)) {
	c.sm.SetOnTransition(fn)
}

// Subscribe returns a channel of expansion state changes and an
// unsubscribe function. See StateMachine.Subscribe.
func (c *Controller) Subscribe() (<-chan types.State, func()) {
	return c.sm.Subscribe()
}

// Expand grows the active table to targetCount shards.
//
// The target is clamped to the configured maximum. A clamped target at or
// below the current count is a no-op success: Expand returns the current
// count and a nil error without touching any state, so repeated or stale
// requests are harmless. Shrinking is never performed.
//
// On success the new table is visible to all routers before Expand
// returns. On failure the previous table remains authoritative and
// unchanged, and the error wraps ErrExpansionFailed. A concurrent
// expansion is rejected with ErrExpansionInProgress.
//
// Cancelling ctx aborts the expansion only while snapshotting or
// redistributing; once redistribution has finished, the commit runs to
// completion regardless of ctx.
//
// Parameters:
//   - ctx: Cancellation for the snapshot and redistribute phases
//   - targetCount: Requested shard count (pre-clamp)
//
// Returns:
//   - uint64: The active shard count after the call
//   - error: nil, ErrExpansionInProgress, or a wrapped ErrExpansionFailed
func (c *Controller) Expand(ctx context.Context, targetCount uint64) (uint64, error) {
	current := c.handle.Load().Count()

	target := min(targetCount, c.maxShardCount)
	if target < targetCount {
		c.logger.Debug("expansion target clamped to configured maximum",
			"requested", targetCount,
			"max", c.maxShardCount,
		)
	}

	// Fast path: growth only, repeat requests are idempotent successes.
	if target <= current {
		c.metrics.RecordExpansion("noop", 0)
		return current, nil
	}

	if !c.sm.TryBeginMigration() {
		c.metrics.RecordExpansion("rejected", 0)
		return c.handle.Load().Count(), types.ErrExpansionInProgress
	}

	// Re-validate while holding the machine: a racing expansion may have
	// grown the table past the target between the fast path and the CAS.
	old := c.handle.Load()
	if target <= old.Count() {
		_ = c.sm.Transition(types.StateMigrating, types.StateIdle)
		c.metrics.RecordExpansion("noop", 0)

		return old.Count(), nil
	}

	started := time.Now()
	c.logger.Info("expansion started",
		"from", old.Count(),
		"to", target,
		"epoch", old.Epoch,
	)

	entries, sealed, err := c.snapshot(ctx, old)
	if err != nil {
		return old.Count(), c.rollback(old, sealed, started, fmt.Errorf("snapshot: %w", err))
	}

	perShard := len(entries)/int(target) + 1
	next := topology.NewTableWithCapacity(old.Epoch+1, target, perShard)

	if err := c.redistribute(ctx, entries, next); err != nil {
		return old.Count(), c.rollback(old, sealed, started, fmt.Errorf("redistribute: %w", err))
	}

	c.commit(old, next, len(entries), started)

	return target, nil
}

// snapshot seals and copies every shard of the table, one shard at a time,
// into a single scratch buffer.
//
// Returns the collected entries, the number of shards already sealed (for
// rollback), and the context error that interrupted the walk, if any.
func (c *Controller) snapshot(ctx context.Context, table *topology.Table) ([]store.Entry, int, error) {
	total := 0
	for _, shard := range table.Shards {
		total += shard.Store.Len()
	}

	entries := make([]store.Entry, 0, total)
	sealed := 0
	for _, shard := range table.Shards {
		if err := ctx.Err(); err != nil {
			return nil, sealed, err
		}

		// Seal and copy is one critical section per shard; the lock is
		// held only for this shard's copy, so a writer never stalls
		// behind the whole snapshot.
		entries = append(entries, shard.Store.SealAndSnapshot()...)
		sealed++
	}

	return entries, sealed, nil
}

// redistribute routes every entry against the new table's count and
// installs it into its new shard. Entries are owned by the migration, so
// installs transfer them without re-cloning.
func (c *Controller) redistribute(ctx context.Context, entries []store.Entry, next *topology.Table) error {
	if len(entries) == 0 {
		return ctx.Err()
	}

	workers := min(c.workers, len(entries))
	chunkSize := (len(entries) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(entries); start += chunkSize {
		chunk := entries[start:min(start+chunkSize, len(entries))]

		g.Go(func() error {
			// Bucket the chunk per target shard first so each new store
			// is locked once per chunk instead of once per record.
			buckets := make([][]store.Entry, next.Count())
			for i, e := range chunk {
				if i%ctxCheckStride == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}

				idx := router.Route(e.Address, next.Count())
				buckets[idx] = append(buckets[idx], e)
			}

			for idx, bucket := range buckets {
				if len(bucket) == 0 {
					continue
				}
				next.Shards[idx].Store.Install(bucket)
			}

			return nil
		})
	}

	return g.Wait()
}

// commit installs the new table and refreshes everything keyed by shard
// count. Past this point the expansion cannot fail.
func (c *Controller) commit(old, next *topology.Table, migrated int, started time.Time) {
	prev := c.handle.Swap(next)

	// Rebuild wholesale: all new shards healthy, stale entries discarded,
	// fresh per-epoch load counters.
	c.registry.MarkAllHealthy(next.Count())
	c.monitor.Resize(next.Count())

	_ = c.sm.Transition(types.StateMigrating, types.StateCommitted)
	_ = c.sm.Transition(types.StateCommitted, types.StateIdle)

	duration := time.Since(started)
	c.metrics.RecordExpansion("committed", duration.Seconds())
	c.metrics.RecordAccountsMigrated(migrated)
	c.metrics.SetShardCount(next.Count())
	c.metrics.SetEpoch(next.Epoch)
	c.metrics.SetHealthyShards(next.Count())

	c.logger.Info("expansion committed",
		"from", prev.Count(),
		"to", next.Count(),
		"epoch", next.Epoch,
		"accounts_migrated", migrated,
		"duration", duration,
	)

	if c.onCommit != nil {
		c.onCommit(prev.Info(), next.Info(), migrated)
	}
}

// rollback unseals every shard the snapshot sealed and returns the cause
// wrapped in ErrExpansionFailed. The old table was never unpublished, so
// after the unseal it serves reads and writes exactly as before.
func (c *Controller) rollback(old *topology.Table, sealed int, started time.Time, cause error) error {
	for i := range sealed {
		old.Shards[i].Store.Unseal()
	}

	_ = c.sm.Transition(types.StateMigrating, types.StateRolledBack)
	_ = c.sm.Transition(types.StateRolledBack, types.StateIdle)

	c.metrics.RecordExpansion("rolled_back", time.Since(started).Seconds())
	c.logger.Warn("expansion rolled back",
		"shard_count", old.Count(),
		"sealed_shards", sealed,
		"error", cause,
	)

	return fmt.Errorf("%w: %w", types.ErrExpansionFailed, cause)
}
