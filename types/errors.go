package types

import "errors"

// Sentinel errors for the Sharder library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Manager, Expansion, Store, etc.)
//   - Use consistent messages across similar error types

// Manager errors - Public API errors returned by Manager component.
var (
	// ErrNilConfig is returned when a nil configuration is supplied.
	ErrNilConfig = errors.New("config is required")

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrManagerAlreadyStarted is returned when Start is called on an already running manager.
	ErrManagerAlreadyStarted = errors.New("manager already started")

	// ErrManagerNotStarted is returned when Stop is called before Start.
	ErrManagerNotStarted = errors.New("manager not started")

	// ErrManagerStopped is returned when operations are attempted after Stop.
	ErrManagerStopped = errors.New("manager stopped")

	// ErrWaitStateTimeout is returned by WaitState when the requested state
	// is not reached within the timeout.
	ErrWaitStateTimeout = errors.New("timeout waiting for state")
)

// Routing and store errors - returned by the read/write paths.
var (
	// ErrAddressInvalid is returned when an operation names the reserved
	// zero address or an otherwise malformed address. Caller error; not
	// retryable.
	ErrAddressInvalid = errors.New("invalid account address")

	// ErrShardUnavailable is returned when the target shard stayed sealed
	// past the bounded retry window while a shard table swap was in
	// flight. Transient; callers retry against the refreshed table.
	ErrShardUnavailable = errors.New("shard unavailable during table swap")

	// ErrShardSealed is returned by a shard store that was sealed for
	// migration. Internal signal; the manager retries and surfaces
	// ErrShardUnavailable if the seal outlasts the retry window.
	ErrShardSealed = errors.New("shard sealed for migration")

	// ErrShardIndexOutOfRange is returned when a shard index does not
	// exist in the active table.
	ErrShardIndexOutOfRange = errors.New("shard index out of range")

	// ErrNilBalance is returned when an account with a nil balance is
	// written into a shard.
	ErrNilBalance = errors.New("account balance is nil")

	// ErrNegativeBalance is returned when an account with a negative
	// balance is written into a shard.
	ErrNegativeBalance = errors.New("account balance is negative")

	// ErrNilMutation is returned when Apply is called with a nil mutation.
	ErrNilMutation = errors.New("mutation is required")
)

// Expansion errors - returned by the expansion controller.
var (
	// ErrExpansionInProgress is returned when expand is called while
	// another expansion holds the controller. Retryable; callers should
	// wait and retry.
	ErrExpansionInProgress = errors.New("expansion already in progress")

	// ErrExpansionFailed is returned when an expansion aborts before
	// commit. The prior table remains authoritative and untouched, so
	// callers can retry with backoff.
	ErrExpansionFailed = errors.New("expansion failed")

	// ErrInvalidStateTransition is returned when the expansion state
	// machine rejects a transition.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
