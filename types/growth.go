package types

// GrowthPolicy computes the shard-count target when expansion triggers.
//
// The manager's control loop consults the policy whenever the load monitor
// trips the expansion threshold. Policies choose how aggressively capacity
// grows; the expansion controller always clamps the returned target to the
// configured maximum, so policies may overshoot safely.
//
// Policy implementations should:
//   - Be deterministic (same input → same output)
//   - Be stateless (no side effects)
//   - Never return a value below current (shrinking is not supported;
//     a target at or below current is treated as a no-op)
type GrowthPolicy interface {
	// Next returns the desired shard count for the next expansion.
	//
	// Parameters:
	//   - current: The active table's shard count
	//   - maxCount: The configured shard-count ceiling
	//
	// Returns:
	//   - uint64: Desired shard count; clamped to maxCount by the controller
	Next(current, maxCount uint64) uint64
}
