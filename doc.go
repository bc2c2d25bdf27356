// Package sharder provides a dynamically resizable shard manager for
// account-keyed ledger state.
//
// Sharder partitions account records across independently locked shards and
// grows the shard count at runtime when load crosses a configured threshold.
// Expansion migrates every record onto a freshly built shard table and
// installs it with a single atomic swap, so concurrent readers and writers
// never observe a mixed topology and no record is ever lost or duplicated.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import "github.com/arloliu/sharder"
//
//	cfg := sharder.DefaultConfig()
//	cfg.InitialShardCount = 8
//
//	mgr, err := sharder.NewManager(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	addr := sharder.BytesToAddress([]byte("alice"))
//	_, err = mgr.Apply(ctx, addr, func(acct sharder.Account) (sharder.Account, error) {
//	    acct.Balance.Add(acct.Balance, big.NewInt(100))
//	    return acct, nil
//	})
//
// # Key Features
//
//   - Pure Hash Routing: An address's shard is a function of (address,
//     shard count) alone, recomputed on every access and never cached
//   - Live Expansion: Shard count grows under load with no write loss and
//     no service interruption; growth is monotonic up to a configured cap
//   - Atomic Topology: One atomic handle publishes the active table, so a
//     mixed old/new view is impossible by construction
//   - Load Monitoring: Per-shard activity counters drive a threshold
//     trigger and feed utilization reports
//   - Pluggable Growth: Doubling by default; any GrowthPolicy can pick the
//     next shard count
//
// # Architecture
//
// Expansion progresses through a validated state machine:
//
//	IDLE → MIGRATING → COMMITTED → IDLE
//	             └───→ ROLLED_BACK → IDLE
//
// Migration seals each shard while copying it, redistributes every record
// onto the new table in parallel, and swaps the table handle. Writes that
// hit a sealed shard retry against the refreshed table and land on the new
// topology once the swap commits.
//
// # Advanced Usage
//
// Automatic expansion with a custom growth policy and hooks:
//
//	import (
//	    "github.com/arloliu/sharder"
//	    "github.com/arloliu/sharder/growth"
//	)
//
//	hooks := &sharder.Hooks{
//	    OnTopologyChanged: func(ctx context.Context, old, new sharder.TopologyInfo) error {
//	        // React to the shard count change
//	        return nil
//	    },
//	}
//
//	mgr, err := sharder.NewManager(&cfg,
//	    sharder.WithGrowthPolicy(growth.NewStep(8)),
//	    sharder.WithHooks(hooks),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop(context.Background())
//
// See the examples/ directory for complete working examples.
package sharder
