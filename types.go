package sharder

import "github.com/arloliu/sharder/types"

// Re-export types from the internal types package.
//
// This file provides a stable, backward-compatible public API for the library's
// core types and interfaces. It uses type aliases to re-export definitions
// from the `types` subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal packages
// to depend on `types` without depending on the root `sharder` package, while
// still providing a convenient `sharder.Address`, `sharder.State`, etc. for users.
type (
	Address          = types.Address
	Account          = types.Account
	Mutation         = types.Mutation
	State            = types.State
	HealthStatus     = types.HealthStatus
	ShardUtilization = types.ShardUtilization
	TopologyInfo     = types.TopologyInfo
	Stats            = types.Stats
	Hooks            = types.Hooks
)

// Re-export interfaces from the internal types package for convenience.
type (
	GrowthPolicy     = types.GrowthPolicy
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
)

// AddressLength is the fixed size of an account address in bytes.
const AddressLength = types.AddressLength

// Re-export State constants from the internal types package.
const (
	StateIdle       = types.StateIdle
	StateMigrating  = types.StateMigrating
	StateCommitted  = types.StateCommitted
	StateRolledBack = types.StateRolledBack
)

// Re-export HealthStatus constants from the internal types package.
const (
	StatusHealthy  = types.StatusHealthy
	StatusDegraded = types.StatusDegraded
)

// ParseAddress parses a hex-encoded address, with or without a "0x" prefix.
// See types.ParseAddress.
func ParseAddress(s string) (Address, error) {
	return types.ParseAddress(s)
}

// BytesToAddress builds an address from raw bytes, left-aligned and
// zero-padded to AddressLength. See types.BytesToAddress.
func BytesToAddress(b []byte) Address {
	return types.BytesToAddress(b)
}

// NewAccount creates an account with the given balance and a zero nonce.
func NewAccount(balance uint64) Account {
	return types.NewAccount(balance)
}
