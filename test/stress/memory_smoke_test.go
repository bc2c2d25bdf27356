package stress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sharder"
	"github.com/arloliu/sharder/test/testutil"
)

// TestStressSmoke runs a very short load to validate that the stress test
// infrastructure (load generator, resource sampling, invariant helpers) still
// works. This test is intentionally fast (<5s) and always runs (even without
// SHARDER_STRESS) to catch obvious regressions without invoking the full suite.
func TestStressSmoke(t *testing.T) {
	// Allow skip in -short to minimize CI latency if desired.
	if testing.Short() {
		t.Skip("Skipping smoke test in short mode")
	}

	cfg := sharder.TestConfig()
	mgr, err := sharder.NewManager(&cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	defer func() {
		require.NoError(t, mgr.Stop(context.Background()))
	}()

	lg := testutil.NewLoadGenerator(t, mgr)
	metrics := lg.RunLoad(ctx, testutil.LoadConfig{
		Writers:        2,
		Accounts:       20,
		Duration:       2 * time.Second,
		SampleInterval: 500 * time.Millisecond,
		Description:    "stress_smoke",
	})

	// Basic assertions.
	require.Empty(t, metrics.Errors, "Smoke test should not produce errors")
	require.Greater(t, metrics.Duration(), 0*time.Millisecond)
	require.NotZero(t, metrics.Applies)

	require.NoError(t, <-mgr.WaitState(sharder.StateIdle, 5*time.Second))
	testutil.AssertBalancesConserved(t, mgr, 20, metrics.ExpectedTotal())
}
