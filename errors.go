package sharder

import "github.com/arloliu/sharder/types"

// Sentinel errors returned by the Manager.
//
// The canonical declarations live in the types subpackage so internal
// components can return them without importing the root package; these
// aliases keep errors.Is identity while letting callers stay on the
// sharder import alone.
var (
	// ErrNilConfig is returned when a nil configuration is supplied.
	ErrNilConfig = types.ErrNilConfig

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrManagerAlreadyStarted is returned when Start is called on an already running manager.
	ErrManagerAlreadyStarted = types.ErrManagerAlreadyStarted

	// ErrManagerNotStarted is returned when Stop is called on a manager that hasn't been started.
	ErrManagerNotStarted = types.ErrManagerNotStarted

	// ErrManagerStopped is returned when operations are attempted after Stop.
	ErrManagerStopped = types.ErrManagerStopped

	// ErrWaitStateTimeout is returned by WaitState when the requested state
	// is not reached within the timeout.
	ErrWaitStateTimeout = types.ErrWaitStateTimeout

	// ErrAddressInvalid is returned when an operation names the reserved zero
	// address or an otherwise malformed address. Caller error; not retryable.
	ErrAddressInvalid = types.ErrAddressInvalid

	// ErrShardUnavailable is returned when the target shard stayed sealed past
	// the bounded retry window while a table swap was in flight. Transient;
	// retry the operation against the refreshed table.
	ErrShardUnavailable = types.ErrShardUnavailable

	// ErrShardIndexOutOfRange is returned when a shard index does not exist in
	// the active table.
	ErrShardIndexOutOfRange = types.ErrShardIndexOutOfRange

	// ErrNilMutation is returned when Apply is called with a nil mutation.
	ErrNilMutation = types.ErrNilMutation

	// ErrExpansionInProgress is returned when Expand is called while another
	// expansion is running. Retryable once the running expansion settles.
	ErrExpansionInProgress = types.ErrExpansionInProgress

	// ErrExpansionFailed is returned when an expansion aborts before commit.
	// The previous table remains authoritative and unchanged.
	ErrExpansionFailed = types.ErrExpansionFailed
)
