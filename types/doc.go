// Package types provides core type definitions and interfaces for the Sharder library.
//
// This package contains shared types that are used across multiple packages in the
// Sharder library. By keeping these types in a separate package, we avoid import cycles
// between the main sharder package and its internal implementations.
//
// Key types:
//   - Address, Account: Ledger data model
//   - State: Expansion controller state
//   - HealthStatus: Per-shard health
//   - GrowthPolicy: Pluggable shard-count growth function
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
