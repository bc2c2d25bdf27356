package types

import "context"

// Hooks defines callbacks for Manager lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking the expansion controller. Hooks receive the manager's
// lifecycle context which will be cancelled during shutdown.
//
// IMPORTANT: Hook execution behavior:
//   - Hooks run concurrently and may not complete before Stop() returns
//   - The context passed to hooks is cancelled when the manager stops
//   - Hook errors are logged but don't fail manager operations
//
// Best practices for hook implementation:
//   - Complete quickly (< 1 second recommended)
//   - Respect context cancellation
//   - Don't block on long I/O operations
//   - Make hooks idempotent (may be called multiple times)
//   - Handle errors gracefully (return error for logging)
//
// Example:
//
//	hooks := sharder.Hooks{
//	    OnTopologyChanged: func(ctx context.Context, old, new sharder.TopologyInfo) error {
//	        select {
//	        case <-ctx.Done():
//	            return ctx.Err() // Manager is shutting down
//	        case topologyChan <- new:
//	            return nil
//	        case <-time.After(500 * time.Millisecond):
//	            return errors.New("topology notify timeout")
//	        }
//	    },
//	}
type Hooks struct {
	// OnTopologyChanged is called after a successful expansion commits.
	// old: the retired table's epoch and shard count
	// new: the freshly installed table's epoch and shard count
	OnTopologyChanged func(ctx context.Context, old, new TopologyInfo) error

	// OnStateChanged is called when the expansion controller transitions.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnShardHealthChanged is called when a shard's health status changes
	// through SetShardHealth.
	OnShardHealthChanged func(ctx context.Context, shardIndex uint64, status HealthStatus) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
