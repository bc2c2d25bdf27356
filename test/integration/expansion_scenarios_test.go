//go:build integration
// +build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/sharder"
	"github.com/arloliu/sharder/metrics"
	"github.com/arloliu/sharder/test/testutil"
	shardertest "github.com/arloliu/sharder/testing"
)

// TestScenario_AutoExpandUnderLoad drives the full production wiring: config
// loaded from disk, prometheus metrics, topology hooks, and the background
// monitor growing the table under sustained write pressure.
func TestScenario_AutoExpandUnderLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Config comes from disk the way a deployment provides it
	path := filepath.Join(t.TempDir(), "sharder.yaml")
	content := []byte(`initialShardCount: 4
maxShardCount: 32
capacityPerShard: 100
expansionLoadThreshold: 0.80
monitorInterval: 20ms
applyRetryAttempts: 50
applyRetryInterval: 1ms
redistributeWorkers: 2
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := sharder.LoadConfig(path)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	topologyChanges := make(chan sharder.TopologyInfo, 8)
	hooks := sharder.Hooks{
		OnTopologyChanged: func(ctx context.Context, old, installed sharder.TopologyInfo) error {
			topologyChanges <- installed
			return nil
		},
	}

	mgr, err := sharder.NewManager(cfg,
		sharder.WithLogger(shardertest.NewTestLogger(t)),
		sharder.WithMetrics(metrics.NewPrometheus(reg, "shardertest")),
		sharder.WithHooks(&hooks),
	)
	require.NoError(t, err)
	defer mgr.Close()

	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))

	lg := testutil.NewLoadGenerator(t, mgr)
	run := lg.RunLoad(ctx, testutil.LoadConfig{
		Writers:        8,
		Accounts:       64,
		Duration:       2 * time.Second,
		SampleInterval: 200 * time.Millisecond,
		Description:    "auto expansion under sustained load",
	})
	t.Log(run.Report())

	require.Empty(t, run.Errors)
	require.NotZero(t, run.Applies)

	// Let any in-flight migration settle, then stop the monitor
	require.NoError(t, <-mgr.WaitState(sharder.StateIdle, 5*time.Second))
	require.NoError(t, mgr.Stop(ctx))

	// Sustained pressure on a 100-op capacity must have grown the table
	finalCount := mgr.CurrentShardCount()
	require.Greater(t, finalCount, uint64(4))
	require.LessOrEqual(t, finalCount, uint64(32))

	// Every committed expansion announced its installed topology. The hooks
	// run on their own goroutines, so collect without assuming order.
	var installedCounts []uint64
drain:
	for {
		select {
		case installed := <-topologyChanges:
			installedCounts = append(installedCounts, installed.ShardCount)
		case <-time.After(500 * time.Millisecond):
			break drain
		}
	}
	var wantCounts []uint64
	for c := uint64(8); c <= finalCount; c *= 2 {
		wantCounts = append(wantCounts, c)
	}
	require.ElementsMatch(t, wantCounts, installedCounts)

	// No write was lost across however many epochs the run went through
	testutil.AssertBalancesConserved(t, mgr, 64, run.ExpectedTotal())
	testutil.AssertPlacementConsistent(t, mgr, testutil.PoolAddrs(64))

	// The prometheus gauges reflect the final topology
	families, err := reg.Gather()
	require.NoError(t, err)
	gauges := make(map[string]float64)
	for _, mf := range families {
		if len(mf.GetMetric()) == 1 && mf.GetMetric()[0].GetGauge() != nil {
			gauges[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	require.Equal(t, float64(finalCount), gauges["shardertest_topology_shard_count"])
	require.Equal(t, float64(mgr.Epoch()), gauges["shardertest_topology_epoch"])
	require.Equal(t, float64(finalCount), gauges["shardertest_topology_healthy_shards"])
}

// TestScenario_ManualStagedExpansion grows the table in three manual stages
// while writers hammer it, without the background monitor involved at all.
func TestScenario_ManualStagedExpansion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := sharder.TestConfig()
	cfg.InitialShardCount = 2
	cfg.MaxShardCount = 64
	cfg.ApplyRetryAttempts = 100

	mgr, err := sharder.NewManager(&cfg, sharder.WithLogger(shardertest.NewTestLogger(t)))
	require.NoError(t, err)

	ctx := context.Background()
	lg := testutil.NewLoadGenerator(t, mgr)

	done := make(chan *testutil.LoadMetrics, 1)
	go func() {
		done <- lg.RunLoad(ctx, testutil.LoadConfig{
			Writers:     6,
			Accounts:    200,
			Duration:    1500 * time.Millisecond,
			Description: "staged manual expansion",
		})
	}()

	// Stage expansions while the writers are active
	for _, target := range []uint64{4, 8, 16} {
		time.Sleep(250 * time.Millisecond)
		count, err := mgr.Expand(ctx, target)
		require.NoError(t, err)
		require.Equal(t, target, count)
	}

	var run *testutil.LoadMetrics
	select {
	case run = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("load run did not finish")
	}
	t.Log(run.Report())

	require.Empty(t, run.Errors)
	require.Equal(t, uint64(16), mgr.CurrentShardCount())
	require.Equal(t, uint64(4), mgr.Epoch(), "one epoch per staged commit")

	testutil.AssertBalancesConserved(t, mgr, 200, run.ExpectedTotal())
	testutil.AssertPlacementConsistent(t, mgr, testutil.PoolAddrs(200))
}
