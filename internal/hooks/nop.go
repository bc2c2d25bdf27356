// Package hooks provides default hook implementations for the Sharder library.
package hooks

import (
	"context"

	"github.com/arloliu/sharder/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.TopologyInfo, types.TopologyInfo) error = (*NopHooks)(nil).OnTopologyChanged
	_ func(context.Context, types.State, types.State) error               = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, uint64, types.HealthStatus) error             = (*NopHooks)(nil).OnShardHealthChanged
	_ func(context.Context, error) error                                  = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnTopologyChanged:    h.OnTopologyChanged,
		OnStateChanged:       h.OnStateChanged,
		OnShardHealthChanged: h.OnShardHealthChanged,
		OnError:              h.OnError,
	}
}

// OnTopologyChanged is a no-op implementation.
func (h *NopHooks) OnTopologyChanged(ctx context.Context, old, installed types.TopologyInfo) error {
	return nil
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(ctx context.Context, from, to types.State) error {
	return nil
}

// OnShardHealthChanged is a no-op implementation.
func (h *NopHooks) OnShardHealthChanged(ctx context.Context, shardIndex uint64, status types.HealthStatus) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(ctx context.Context, err error) error {
	return nil
}
