// Package topology defines the shard table and the atomic handle that
// publishes it.
//
// Exactly one table is active at any instant. Tables are immutable once
// active: expansion builds a complete replacement and installs it with a
// single atomic pointer swap, so no caller can ever observe a table that is
// half old and half new. Every operation fetches the active table once at
// entry and completes entirely against that snapshot.
package topology

import (
	"sync/atomic"

	"github.com/arloliu/sharder/internal/router"
	"github.com/arloliu/sharder/internal/store"
	"github.com/arloliu/sharder/types"
)

// Shard is one independently lockable partition of the account state.
type Shard struct {
	// Index is the shard's position within its table, in [0, shard count).
	Index uint64

	// Epoch records the table epoch the shard was created in. Epochs are
	// stamped at creation and strictly increase across expansions.
	Epoch uint64

	// Store holds the shard's account records.
	Store *store.Store
}

// Table is the complete ordered shard set for one epoch.
type Table struct {
	// Epoch is this table's version.
	Epoch uint64

	// Shards is ordered by shard index and never mutated after the table
	// becomes active.
	Shards []*Shard
}

// NewTable builds a table of count empty shards stamped with epoch.
func NewTable(epoch, count uint64) *Table {
	return newTable(epoch, count, 0)
}

// NewTableWithCapacity builds a table whose stores are pre-sized for
// perShard accounts each. Expansion sizes the new table from the snapshot
// so redistribution does not rehash.
func NewTableWithCapacity(epoch, count uint64, perShard int) *Table {
	return newTable(epoch, count, perShard)
}

func newTable(epoch, count uint64, perShard int) *Table {
	shards := make([]*Shard, count)
	for i := range shards {
		st := store.New()
		if perShard > 0 {
			st = store.NewWithCapacity(perShard)
		}
		shards[i] = &Shard{Index: uint64(i), Epoch: epoch, Store: st}
	}

	return &Table{Epoch: epoch, Shards: shards}
}

// Count returns the number of shards in the table.
func (t *Table) Count() uint64 {
	return uint64(len(t.Shards))
}

// Shard returns the shard at index.
//
// Returns:
//   - *Shard: The shard, nil on error
//   - error: ErrShardIndexOutOfRange if index is not in this table
func (t *Table) Shard(index uint64) (*Shard, error) {
	if index >= t.Count() {
		return nil, types.ErrShardIndexOutOfRange
	}

	return t.Shards[index], nil
}

// Locate routes addr within this table and returns the owning shard.
//
// Routing is recomputed against this table's count on every call, never
// cached, so a caller holding an old table still gets a placement that is
// internally consistent with that table.
func (t *Table) Locate(addr types.Address) *Shard {
	return t.Shards[router.Route(addr, t.Count())]
}

// Info returns the table's epoch and shard count for hooks and logs.
func (t *Table) Info() types.TopologyInfo {
	return types.TopologyInfo{Epoch: t.Epoch, ShardCount: t.Count()}
}

// Handle is the single process-wide reference to the active table.
//
// It is read by every operation and written exactly once per successful
// expansion. No component keeps a long-lived table reference across calls;
// each call loads the handle at entry.
type Handle struct {
	active atomic.Pointer[Table]
}

// NewHandle creates a handle publishing the given initial table.
func NewHandle(initial *Table) *Handle {
	h := &Handle{}
	h.active.Store(initial)

	return h
}

// Load returns the currently active table.
func (h *Handle) Load() *Table {
	return h.active.Load()
}

// Swap atomically installs next as the active table and returns the table
// it replaced. Only the expansion controller calls Swap, at most once per
// committed expansion, which keeps epochs strictly increasing.
func (h *Handle) Swap(next *Table) *Table {
	return h.active.Swap(next)
}
