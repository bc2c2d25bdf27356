package growth

import "github.com/arloliu/sharder/types"

// Step grows the shard count by a fixed increment on every expansion trigger.
//
// Step suits deployments that want predictable, gradual capacity additions,
// trading more frequent migrations for smaller per-migration churn.
type Step struct {
	increment uint64
}

var _ types.GrowthPolicy = (*Step)(nil)

// NewStep creates a fixed-increment growth policy.
//
// Parameters:
//   - increment: Number of shards added per expansion; values below 1 are
//     raised to 1 so the policy always makes progress
//
// Returns:
//   - *Step: Initialized step policy
//
// Example:
//
//	mgr, err := sharder.NewManager(cfg, sharder.WithGrowthPolicy(growth.NewStep(8)))
func NewStep(increment uint64) *Step {
	if increment < 1 {
		increment = 1
	}

	return &Step{increment: increment}
}

// Next returns the current count plus the configured increment, capped at
// maxCount.
func (s *Step) Next(current, maxCount uint64) uint64 {
	if current >= maxCount || maxCount-current < s.increment {
		return maxCount
	}

	return current + s.increment
}
