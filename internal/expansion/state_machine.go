package expansion

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/sharder/types"
)

// StateMachine manages expansion state transitions.
//
// Implements a validated state machine with these states:
//   - Idle: No expansion in progress
//   - Migrating: Snapshot/redistribute in flight
//   - Committed: New table installed (transient outcome state)
//   - RolledBack: Expansion aborted, old table untouched (transient)
//
// Valid transitions are enforced to prevent invalid states. Acquisition is
// a compare-and-swap on Idle, which is what serializes expansions: exactly
// one caller can move the machine to Migrating at a time.
type StateMachine struct {
	current atomic.Int32 // types.State

	logger  types.Logger
	metrics types.ExpansionMetrics

	// onTransition is invoked synchronously after every successful
	// transition. Set once before the machine is shared.
	onTransition func(from, to types.State)

	// Fan-out to subscribers
	subscribers      *xsync.Map[uint64, *stateSubscriber]
	nextSubscriberID atomic.Uint64
}

// validTransitions defines the allowed state progressions.
//
// Migrating → Idle covers the case where a racing expansion satisfied the
// target between the fast-path check and acquisition: the machine was
// acquired but there is nothing to do, so it steps straight back down.
var validTransitions = map[types.State][]types.State{
	types.StateIdle:       {types.StateMigrating},
	types.StateMigrating:  {types.StateCommitted, types.StateRolledBack, types.StateIdle},
	types.StateCommitted:  {types.StateIdle},
	types.StateRolledBack: {types.StateIdle},
}

// NewStateMachine creates a new state machine starting in Idle.
//
// Parameters:
//   - logger: Logger for state transitions
//   - metrics: Metrics collector for expansion operations
//
// Returns:
//   - *StateMachine: A new state machine instance
func NewStateMachine(logger types.Logger, metrics types.ExpansionMetrics) *StateMachine {
	sm := &StateMachine{
		logger:      logger,
		metrics:     metrics,
		subscribers: xsync.NewMap[uint64, *stateSubscriber](),
	}
	sm.current.Store(int32(types.StateIdle))

	return sm
}

// GetState returns the current expansion state.
//
// This method is thread-safe and can be called concurrently.
func (sm *StateMachine) GetState() types.State {
	return types.State(sm.current.Load())
}

// SetOnTransition registers a callback invoked synchronously after every
// successful transition. Must be called before the machine is shared with
// other goroutines.
func (sm *StateMachine) SetOnTransition(fn func(from, to types.State)) {
	sm.onTransition = fn
}

// TryBeginMigration attempts the Idle → Migrating transition atomically.
//
// Returns:
//   - bool: true if this caller now owns the migration; false if another
//     expansion already holds the machine
func (sm *StateMachine) TryBeginMigration() bool {
	if !sm.current.CompareAndSwap(int32(types.StateIdle), int32(types.StateMigrating)) {
		return false
	}

	sm.logger.Info("state transition",
		"from", types.StateIdle.String(),
		"to", types.StateMigrating.String(),
	)
	sm.metrics.RecordStateTransition(types.StateIdle, types.StateMigrating)
	sm.notify(types.StateMigrating)
	if sm.onTransition != nil {
		sm.onTransition(types.StateIdle, types.StateMigrating)
	}

	return true
}

// Transition moves the machine from one state to another after validating
// the edge against the allowed-transition table.
//
// Parameters:
//   - from: The state the machine must currently be in
//   - to: The state to move to
//
// Returns:
//   - error: ErrInvalidStateTransition if the edge is not allowed or the
//     machine is not in the from state
func (sm *StateMachine) Transition(from, to types.State) error {
	if !isValidTransition(from, to) {
		sm.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return fmt.Errorf("%w: %s to %s", types.ErrInvalidStateTransition, from, to)
	}

	if !sm.current.CompareAndSwap(int32(from), int32(to)) {
		sm.logger.Error("state transition lost race",
			"expected", from.String(),
			"actual", sm.GetState().String(),
			"to", to.String(),
		)

		return fmt.Errorf("%w: machine not in %s", types.ErrInvalidStateTransition, from)
	}

	sm.logger.Info("state transition",
		"from", from.String(),
		"to", to.String(),
	)
	sm.metrics.RecordStateTransition(from, to)
	sm.notify(to)
	if sm.onTransition != nil {
		sm.onTransition(from, to)
	}

	return nil
}

// Subscribe returns a channel that receives state change notifications.
//
// The returned channel is buffered (size 4) so the complete
// Migrating → Committed/RolledBack → Idle sequence of one expansion can be
// queued without dropping states when the subscriber is slow to process.
// The subscriber receives the current state immediately upon subscription.
//
// Returns:
//   - <-chan types.State: Channel that receives state updates
//   - func(): Unsubscribe function to clean up resources
//
// Example:
//
//	ch, unsubscribe := sm.Subscribe()
//	defer unsubscribe()
//	for state := range ch {
//	    fmt.Printf("expansion state: %s\n", state)
//	}
func (sm *StateMachine) Subscribe() (<-chan types.State, func()) {
	id := sm.nextSubscriberID.Add(1)

	sub := &stateSubscriber{ch: make(chan types.State, 4)}
	sm.subscribers.Store(id, sub)

	// Immediately send the current state
	sub.trySend(sm.GetState(), sm.metrics)

	unsubscribe := func() {
		sm.removeSubscriber(id)
	}

	return sub.ch, unsubscribe
}

// removeSubscriber removes a subscriber and closes its channel.
func (sm *StateMachine) removeSubscriber(id uint64) {
	if sub, ok := sm.subscribers.LoadAndDelete(id); ok {
		sub.close()
	}
}

// notify fans the new state out to all subscribers without blocking.
func (sm *StateMachine) notify(state types.State) {
	sm.subscribers.Range(func(_ uint64, sub *stateSubscriber) bool {
		sub.trySend(state, sm.metrics)
		return true
	})
}

// isValidTransition reports whether the from → to edge is allowed.
func isValidTransition(from, to types.State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}
