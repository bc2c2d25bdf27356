package types

// State represents the expansion controller state.
//
// States follow a defined progression for every expansion attempt:
//
//	StateIdle → StateMigrating → StateCommitted → StateIdle
//
// On failure:
//
//	StateIdle → StateMigrating → StateRolledBack → StateIdle
//
// StateCommitted and StateRolledBack are transient outcome states: the
// controller passes through them so subscribers can observe the outcome,
// then returns to StateIdle either way. Exactly one expansion can hold
// StateMigrating at a time.
type State int

const (
	// StateIdle indicates no expansion is in progress.
	StateIdle State = iota

	// StateMigrating indicates an expansion is snapshotting and
	// redistributing accounts into a new shard table.
	StateMigrating

	// StateCommitted indicates the new shard table was atomically
	// installed and the expansion succeeded.
	StateCommitted

	// StateRolledBack indicates the expansion failed and the prior
	// shard table remains authoritative, untouched.
	StateRolledBack
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateMigrating:
		return "Migrating"
	case StateCommitted:
		return "Committed"
	case StateRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}
