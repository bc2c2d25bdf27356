// Package router maps account addresses to shard indexes.
//
// Routing is a pure function of (address, shard count): the same pair yields
// the same index on every call, in every goroutine, in every process. Live
// traffic routing and migration redistribution both call Route, which is what
// makes them agree on account placement without any coordination.
package router

import (
	"github.com/zeebo/xxh3"

	"github.com/arloliu/sharder/types"
)

// Route returns the shard index owning the given address in a table of
// shardCount shards.
//
// The address bytes are hashed with XXH3 and reduced modulo shardCount.
// Results are never cached: callers recompute against the shard count of the
// table they fetched at entry, so routing can never mix epochs.
//
// Parameters:
//   - addr: Account address to place
//   - shardCount: Shard count of the table being routed against (>= 1)
//
// Returns:
//   - uint64: Shard index in [0, shardCount)
func Route(addr types.Address, shardCount uint64) uint64 {
	if shardCount == 0 {
		// Config validation keeps tables non-empty; degrade gracefully
		// rather than panic if a zero count ever slips through.
		return 0
	}

	return xxh3.Hash(addr[:]) % shardCount
}

// Moves reports how many of the given addresses change shards when the count
// grows from oldCount to newCount.
//
// Modulo placement relocates most accounts on resize. That is acceptable
// here because expansion rebuilds every shard from a full snapshot anyway;
// this helper exists for capacity planning and tests that want to quantify
// the churn.
func Moves(addrs []types.Address, oldCount, newCount uint64) int {
	moved := 0
	for _, addr := range addrs {
		if Route(addr, oldCount) != Route(addr, newCount) {
			moved++
		}
	}

	return moved
}
