package stress_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sharder"
	"github.com/arloliu/sharder/test/testutil"
)

// TestChurn_ExpandUnderLoad drives sustained write traffic while the monitor
// grows the table through many epochs, and verifies exact conservation at the
// end of the run.
//
// Capacity is provisioned small relative to the write rate, so expansions
// cascade until the shard count hits the ceiling; every migration happens
// under full concurrent load.
//
//nolint:tparallel // Parent test has t.Parallel() call below
func TestChurn_ExpandUnderLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping churn test in short mode")
	}

	requireStressEnabled(t)

	t.Parallel()

	scales := []struct {
		name      string
		accounts  int
		writers   int
		maxShards uint64
		duration  time.Duration
	}{
		{"10k accounts", 10_000, 8, 64, 15 * time.Second},
		{"50k accounts", 50_000, 16, 256, 30 * time.Second},
		{"hot pool", 16, 8, 32, 10 * time.Second},
	}

	for _, scale := range scales {
		t.Run(scale.name, func(t *testing.T) {
			t.Parallel()

			cfg := sharder.DefaultConfig()
			cfg.InitialShardCount = 4
			cfg.MaxShardCount = scale.maxShards
			cfg.CapacityPerShard = 2000
			cfg.MonitorInterval = 50 * time.Millisecond
			cfg.ApplyRetryAttempts = 200
			cfg.ApplyRetryInterval = 1 * time.Millisecond

			mgr, err := sharder.NewManager(&cfg)
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, mgr.Start(ctx))
			defer func() {
				require.NoError(t, mgr.Stop(context.Background()))
			}()

			lg := testutil.NewLoadGenerator(t, mgr)
			metrics := lg.RunLoad(ctx, testutil.LoadConfig{
				Writers:     scale.writers,
				Accounts:    scale.accounts,
				Duration:    scale.duration,
				Description: "churn_" + scale.name,
			})
			t.Log(metrics.Report())

			require.Empty(t, metrics.Errors, "no write may fail during expansion churn")
			require.NotZero(t, metrics.Applies)

			// Drain any in-flight migration before the final accounting
			require.NoError(t, <-mgr.WaitState(sharder.StateIdle, 10*time.Second))

			stats := mgr.Stats()
			t.Logf("final topology: %d shards, epoch %d, %d accounts",
				stats.ShardCount, stats.Epoch, stats.TotalAccounts)

			// The write rate dwarfs the provisioned capacity, so the run must
			// have expanded at least once
			require.Greater(t, stats.ShardCount, uint64(4))
			require.LessOrEqual(t, stats.ShardCount, scale.maxShards)

			testutil.AssertBalancesConserved(t, mgr, uint64(scale.accounts), metrics.ExpectedTotal())
			testutil.AssertPlacementConsistent(t, mgr, testutil.PoolAddrs(scale.accounts))
		})
	}
}

// TestChurn_ManualExpandStorm fires manual expansion requests from several
// goroutines while writers run, verifying that concurrent triggers collapse
// into an orderly sequence of commits and that the count stays monotonic.
func TestChurn_ManualExpandStorm(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping churn test in short mode")
	}

	requireStressEnabled(t)

	t.Parallel()

	cfg := sharder.TestConfig()
	cfg.InitialShardCount = 2
	cfg.MaxShardCount = 128
	cfg.ApplyRetryAttempts = 200

	mgr, err := sharder.NewManager(&cfg)
	require.NoError(t, err)

	ctx := context.Background()
	lg := testutil.NewLoadGenerator(t, mgr)

	done := make(chan *testutil.LoadMetrics, 1)
	go func() {
		done <- lg.RunLoad(ctx, testutil.LoadConfig{
			Writers:     8,
			Accounts:    5000,
			Duration:    10 * time.Second,
			Description: "manual expand storm",
		})
	}()

	// Each stage fires four racing expansion requests; exactly one may win a
	// migration, the rest must fail cleanly or observe the committed table
	for target := uint64(4); target <= 128; target *= 2 {
		var wg sync.WaitGroup
		var mu sync.Mutex
		var unexpected []error

		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := mgr.Expand(ctx, target)
				if err != nil && !errors.Is(err, sharder.ErrExpansionInProgress) {
					mu.Lock()
					unexpected = append(unexpected, err)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Empty(t, unexpected)
		require.Equal(t, target, mgr.CurrentShardCount(), "the stage's winner must have committed")
	}

	var metrics *testutil.LoadMetrics
	select {
	case metrics = <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("load run did not finish")
	}
	t.Log(metrics.Report())

	require.Empty(t, metrics.Errors)
	require.Equal(t, uint64(128), mgr.CurrentShardCount())

	testutil.AssertBalancesConserved(t, mgr, 5000, metrics.ExpectedTotal())
	testutil.AssertPlacementConsistent(t, mgr, testutil.PoolAddrs(5000))
}
