// Package expansion implements live shard-count expansion.
//
// The expansion package owns the hardest part of the library: growing the
// shard table at runtime without losing a single account record and without
// stopping the write path. The Controller orchestrates every expansion and
// the StateMachine makes its progress observable.
//
// # Expansion Flow
//
// An expansion moves through a fixed sequence:
//
//  1. Clamp the requested target to the configured maximum; a target at or
//     below the current count is a no-op success
//  2. Acquire the state machine (Idle → Migrating); a second expansion
//     arriving in the window is rejected with ErrExpansionInProgress
//  3. Snapshot: seal and copy each shard of the active table, one shard at
//     a time, into a single scratch buffer
//  4. Build a fresh table of empty shards stamped with the next epoch
//  5. Redistribute: re-route every copied record against the new shard
//     count and bulk-install it into its new shard, in parallel chunks
//  6. Commit: swap the active-table handle in one atomic step, rebuild the
//     health registry, reset the load monitor (Migrating → Committed → Idle)
//
// Any failure before the commit unseals the old table and leaves it
// authoritative and untouched (Migrating → RolledBack → Idle); the caller
// sees ErrExpansionFailed wrapping the cause. There is no partial outcome:
// the worst case of a failed expansion is "capacity unchanged", never
// "data lost".
//
// # Write Safety During Migration
//
// Sealing is what makes the snapshot sound against concurrent writers. A
// write that wins the shard's lock before the seal lands in the old store
// and is included in the copy; a write that arrives after the seal is
// refused with ErrShardSealed and retried by the manager against the table
// it re-fetches, which after the commit is the new one. Records are
// therefore never lost and never applied to both tables.
//
// # State Machine
//
// States progress Idle → Migrating → Committed/RolledBack → Idle. All
// transitions are validated against an allowed-transition table and
// published to subscribers over buffered channels; slow subscribers drop
// intermediate states rather than block the controller.
package expansion
