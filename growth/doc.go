// Package growth provides built-in shard-count growth policies.
//
// A growth policy decides how aggressively the manager adds capacity when
// the load monitor trips the expansion threshold. The package includes two
// built-in policies:
//
//   - Doubling: Double the shard count on every trigger, capped at the
//     configured maximum (the default)
//   - Step: Add a fixed number of shards on every trigger
//
// # Policy Selection Guide
//
// Doubling:
//   - Use when load grows unpredictably and the cost of migrating twice is
//     higher than the cost of briefly over-provisioning
//   - Keeps the number of migrations logarithmic in the final shard count
//
// Step:
//   - Use when capacity planning wants small, predictable increments
//   - Matches deployments that provision shard capacity in fixed units
//
// Custom policies can be implemented by satisfying the types.GrowthPolicy
// interface; the expansion controller clamps every target to the configured
// maximum, so policies never need to.
package growth
