package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("errors.Is works correctly", func(t *testing.T) {
		// Test that errors.Is can match our sentinel errors
		require.True(t, errors.Is(ErrExpansionInProgress, ErrExpansionInProgress))
		require.False(t, errors.Is(ErrExpansionInProgress, ErrExpansionFailed))

		// Test that wrapped errors maintain identity
		wrapped := fmt.Errorf("%w: shard 3 still sealed after 10 retries", ErrShardUnavailable)
		require.True(t, errors.Is(wrapped, ErrShardUnavailable))
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			// Manager errors
			ErrNilConfig,
			ErrInvalidConfig,
			ErrManagerAlreadyStarted,
			ErrManagerNotStarted,
			ErrManagerStopped,
			ErrWaitStateTimeout,
			// Routing and store errors
			ErrAddressInvalid,
			ErrShardUnavailable,
			ErrShardSealed,
			ErrShardIndexOutOfRange,
			ErrNilBalance,
			ErrNegativeBalance,
			ErrNilMutation,
			// Expansion errors
			ErrExpansionInProgress,
			ErrExpansionFailed,
			ErrInvalidStateTransition,
		}

		// Verify all errors are unique
		for i, err1 := range allErrors {
			for j, err2 := range allErrors {
				if i == j {
					require.True(t, errors.Is(err1, err2), "error should equal itself: %v", err1)
				} else {
					require.False(t, errors.Is(err1, err2), "errors should be distinct: %v vs %v", err1, err2)
				}
			}
		}
	})

	t.Run("double wrapping preserves both identities", func(t *testing.T) {
		cause := errors.New("snapshot: context canceled")
		wrapped := fmt.Errorf("%w: %w", ErrExpansionFailed, cause)

		require.True(t, errors.Is(wrapped, ErrExpansionFailed))
		require.True(t, errors.Is(wrapped, cause))
	})
}
