package expansion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sharder/internal/logger"
	"github.com/arloliu/sharder/metrics"
	"github.com/arloliu/sharder/types"
)

func newTestStateMachine() *StateMachine {
	return NewStateMachine(logger.NewNop(), metrics.NewNop())
}

func TestStateMachine_InitialState(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()
	require.Equal(t, types.StateIdle, sm.GetState())
}

func TestStateMachine_TryBeginMigration(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	require.True(t, sm.TryBeginMigration(), "first caller acquires the machine")
	require.Equal(t, types.StateMigrating, sm.GetState())

	require.False(t, sm.TryBeginMigration(), "second caller is rejected while Migrating")
	require.Equal(t, types.StateMigrating, sm.GetState())
}

func TestStateMachine_TryBeginMigration_OnlyOneWinner(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	const contenders = 16
	var wg sync.WaitGroup
	winners := make(chan int, contenders)
	start := make(chan struct{})

	for i := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if sm.TryBeginMigration() {
				winners <- i
			}
		}()
	}

	close(start)
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	require.Equal(t, 1, count, "exactly one contender may acquire the machine")
	require.Equal(t, types.StateMigrating, sm.GetState())
}

func TestStateMachine_ValidTransitions(t *testing.T) {
	t.Parallel()

	t.Run("commit sequence", func(t *testing.T) {
		t.Parallel()

		sm := newTestStateMachine()
		require.True(t, sm.TryBeginMigration())
		require.NoError(t, sm.Transition(types.StateMigrating, types.StateCommitted))
		require.NoError(t, sm.Transition(types.StateCommitted, types.StateIdle))
		require.Equal(t, types.StateIdle, sm.GetState())
	})

	t.Run("rollback sequence", func(t *testing.T) {
		t.Parallel()

		sm := newTestStateMachine()
		require.True(t, sm.TryBeginMigration())
		require.NoError(t, sm.Transition(types.StateMigrating, types.StateRolledBack))
		require.NoError(t, sm.Transition(types.StateRolledBack, types.StateIdle))
		require.Equal(t, types.StateIdle, sm.GetState())
	})

	t.Run("racing noop steps straight back to idle", func(t *testing.T) {
		t.Parallel()

		sm := newTestStateMachine()
		require.True(t, sm.TryBeginMigration())
		require.NoError(t, sm.Transition(types.StateMigrating, types.StateIdle))
		require.Equal(t, types.StateIdle, sm.GetState())
	})
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from types.State
		to   types.State
	}{
		{"idle to committed", types.StateIdle, types.StateCommitted},
		{"idle to rolled back", types.StateIdle, types.StateRolledBack},
		{"committed to migrating", types.StateCommitted, types.StateMigrating},
		{"committed to rolled back", types.StateCommitted, types.StateRolledBack},
		{"rolled back to committed", types.StateRolledBack, types.StateCommitted},
		{"idle to idle", types.StateIdle, types.StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sm := newTestStateMachine()
			err := sm.Transition(tt.from, tt.to)
			require.ErrorIs(t, err, types.ErrInvalidStateTransition)
		})
	}
}

func TestStateMachine_TransitionRequiresCurrentState(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	// The edge Migrating → Committed is valid, but the machine is Idle.
	err := sm.Transition(types.StateMigrating, types.StateCommitted)
	require.ErrorIs(t, err, types.ErrInvalidStateTransition)
	require.Equal(t, types.StateIdle, sm.GetState())
}

func TestStateMachine_Subscribe(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	ch, unsubscribe := sm.Subscribe()
	defer unsubscribe()

	// Should receive the current state immediately
	select {
	case state := <-ch:
		require.Equal(t, types.StateIdle, state)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("did not receive initial state")
	}

	// A full expansion cycle fits in the channel buffer
	require.True(t, sm.TryBeginMigration())
	require.NoError(t, sm.Transition(types.StateMigrating, types.StateCommitted))
	require.NoError(t, sm.Transition(types.StateCommitted, types.StateIdle))

	want := []types.State{types.StateMigrating, types.StateCommitted, types.StateIdle}
	for _, expected := range want {
		select {
		case state := <-ch:
			require.Equal(t, expected, state)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("did not receive state %s", expected)
		}
	}
}

func TestStateMachine_MultipleSubscribers(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	ch1, unsub1 := sm.Subscribe()
	defer unsub1()
	ch2, unsub2 := sm.Subscribe()
	defer unsub2()

	// Drain initial states
	<-ch1
	<-ch2

	require.True(t, sm.TryBeginMigration())

	for i, ch := range []<-chan types.State{ch1, ch2} {
		select {
		case state := <-ch:
			require.Equal(t, types.StateMigrating, state)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d did not receive state change", i+1)
		}
	}
}

func TestStateMachine_Unsubscribe(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	ch, unsubscribe := sm.Subscribe()
	<-ch // Drain initial state

	unsubscribe()

	// The channel is closed; transitions no longer reach it
	require.True(t, sm.TryBeginMigration())

	select {
	case _, ok := <-ch:
		require.False(t, ok, "unsubscribed channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("unsubscribed channel was not closed")
	}

	// Unsubscribing twice is harmless
	unsubscribe()
}

func TestStateMachine_SlowSubscriberDropsNotifications(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	ch, unsubscribe := sm.Subscribe()
	defer unsubscribe()

	// Never read: the buffer holds the initial Idle plus three more, then
	// further notifications are dropped without blocking the machine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 3 {
			require.True(t, sm.TryBeginMigration())
			require.NoError(t, sm.Transition(types.StateMigrating, types.StateIdle))
		}
	}()

	select {
	case <-done:
		// Transitions completed without blocking
	case <-time.After(time.Second):
		t.Fatal("transitions blocked on a slow subscriber")
	}

	require.Len(t, ch, 4, "buffer holds exactly its capacity")
}

func TestStateMachine_OnTransitionCallback(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	type edge struct{ from, to types.State }
	var mu sync.Mutex
	var seen []edge
	sm.SetOnTransition(func(from, to types.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, edge{from, to})
	})

	require.True(t, sm.TryBeginMigration())
	require.NoError(t, sm.Transition(types.StateMigrating, types.StateCommitted))
	require.NoError(t, sm.Transition(types.StateCommitted, types.StateIdle))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []edge{
		{types.StateIdle, types.StateMigrating},
		{types.StateMigrating, types.StateCommitted},
		{types.StateCommitted, types.StateIdle},
	}, seen)
}

func TestStateMachine_FailedTransitionDoesNotNotify(t *testing.T) {
	t.Parallel()

	sm := newTestStateMachine()

	called := false
	sm.SetOnTransition(func(from, to types.State) {
		called = true
	})

	err := sm.Transition(types.StateIdle, types.StateCommitted)
	require.ErrorIs(t, err, types.ErrInvalidStateTransition)
	require.False(t, called, "rejected transitions must not fire the callback")
}
