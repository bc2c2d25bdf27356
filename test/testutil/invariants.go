package testutil

import (
	"math/big"
	"testing"

	"github.com/arloliu/sharder"
)

// AssertBalancesConserved verifies the ledger totals match what the workload
// produced: the account count and the summed balance must both be exact.
//
// Parameters:
//   - t: testing handle
//   - mgr: manager under test
//   - wantAccounts: expected number of live accounts
//   - wantTotal: expected summed balance across every shard
func AssertBalancesConserved(t *testing.T, mgr *sharder.Manager, wantAccounts uint64, wantTotal *big.Int) {
	t.Helper()

	stats := mgr.Stats()
	if stats.TotalAccounts != wantAccounts {
		t.Fatalf("account count changed: got %d, want %d", stats.TotalAccounts, wantAccounts)
	}
	if stats.TotalBalance.Cmp(wantTotal) != 0 {
		t.Fatalf("total balance changed: got %s, want %s", stats.TotalBalance, wantTotal)
	}
}

// AssertPlacementConsistent verifies that every address routes to a shard
// inside the current table and that a lookup at that placement finds the
// account.
//
// Parameters:
//   - t: testing handle
//   - mgr: manager under test
//   - addrs: addresses that must all be reachable
func AssertPlacementConsistent(t *testing.T, mgr *sharder.Manager, addrs []sharder.Address) {
	t.Helper()

	shardCount := mgr.CurrentShardCount()
	for _, addr := range addrs {
		idx, err := mgr.ShardFor(addr)
		if err != nil {
			t.Fatalf("routing %s failed: %v", addr.Short(), err)
		}
		if idx >= shardCount {
			t.Fatalf("address %s routed to shard %d outside table of %d", addr.Short(), idx, shardCount)
		}
		if _, ok := mgr.Lookup(addr); !ok {
			t.Fatalf("account %s not found at its placement", addr.Short())
		}
	}
}

// PoolAddrs returns the first n addresses of the load generator's pool.
func PoolAddrs(n int) []sharder.Address {
	addrs := make([]sharder.Address, n)
	for i := range n {
		addrs[i] = Addr(uint64(i))
	}

	return addrs
}
