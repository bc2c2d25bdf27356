package growth

import "github.com/arloliu/sharder/types"

// Doubling doubles the shard count on every expansion trigger.
//
// Doubling keeps the total number of migrations logarithmic: a system that
// eventually needs 1024 shards reaches them in seven expansions instead of
// hundreds of single-step resizes, and each migration's cost is dominated by
// the account count, not the shard count.
type Doubling struct{}

var _ types.GrowthPolicy = (*Doubling)(nil)

// NewDoubling creates the default doubling growth policy.
//
// Returns:
//   - *Doubling: Initialized doubling policy
//
// Example:
//
//	mgr, err := sharder.NewManager(cfg, sharder.WithGrowthPolicy(growth.NewDoubling()))
func NewDoubling() *Doubling {
	return &Doubling{}
}

// Next returns double the current count, capped at maxCount.
//
// A current count of zero cannot occur for a validated table; it is mapped
// to one so the result is always a usable target.
func (d *Doubling) Next(current, maxCount uint64) uint64 {
	if current == 0 {
		return min(1, maxCount)
	}

	// Guard the shift against overflow near the top of the uint64 range.
	if current > maxCount/2 {
		return maxCount
	}

	return current * 2
}
