package store

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sharder/types"
)

// addrByte builds an address whose first byte is b.
func addrByte(b byte) types.Address {
	return types.BytesToAddress([]byte{b})
}

func TestStore_GetSet(t *testing.T) {
	t.Parallel()

	s := New()
	addr := addrByte(1)

	t.Run("missing address", func(t *testing.T) {
		_, ok := s.Get(addrByte(99))
		require.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(addr, types.NewAccount(500)))

		got, ok := s.Get(addr)
		require.True(t, ok)
		require.Equal(t, uint64(500), got.Balance.Uint64())
	})

	t.Run("set replaces existing record", func(t *testing.T) {
		require.NoError(t, s.Set(addr, types.NewAccount(700)))

		got, ok := s.Get(addr)
		require.True(t, ok)
		require.Equal(t, uint64(700), got.Balance.Uint64())
		require.Equal(t, 1, s.Len())
	})
}

func TestStore_SetValidation(t *testing.T) {
	t.Parallel()

	s := New()
	addr := addrByte(1)

	t.Run("rejects nil balance", func(t *testing.T) {
		err := s.Set(addr, types.Account{})
		require.ErrorIs(t, err, types.ErrNilBalance)
	})

	t.Run("rejects negative balance", func(t *testing.T) {
		err := s.Set(addr, types.Account{Balance: big.NewInt(-1)})
		require.ErrorIs(t, err, types.ErrNegativeBalance)
	})

	t.Run("rejected writes leave the store empty", func(t *testing.T) {
		require.Equal(t, 0, s.Len())
	})
}

func TestStore_CloneIsolation(t *testing.T) {
	t.Parallel()

	s := New()
	addr := addrByte(1)

	// Mutating the account after Set must not affect the stored record
	acct := types.NewAccount(100)
	require.NoError(t, s.Set(addr, acct))
	acct.Balance.SetUint64(999)

	got, ok := s.Get(addr)
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Balance.Uint64())

	// Mutating the account returned by Get must not affect the store either
	got.Balance.SetUint64(888)

	again, ok := s.Get(addr)
	require.True(t, ok)
	require.Equal(t, uint64(100), again.Balance.Uint64())
}

func TestStore_Update(t *testing.T) {
	t.Parallel()

	t.Run("existing record receives current value", func(t *testing.T) {
		t.Parallel()

		s := New()
		addr := addrByte(1)
		require.NoError(t, s.Set(addr, types.NewAccount(100)))

		updated, err := s.Update(addr, func(current types.Account) (types.Account, error) {
			current.Balance.Add(current.Balance, big.NewInt(50))
			current.Nonce++
			return current, nil
		})
		require.NoError(t, err)
		require.Equal(t, uint64(150), updated.Balance.Uint64())
		require.Equal(t, uint64(1), updated.Nonce)

		got, ok := s.Get(addr)
		require.True(t, ok)
		require.Equal(t, uint64(150), got.Balance.Uint64())
	})

	t.Run("new address receives zero-balance base", func(t *testing.T) {
		t.Parallel()

		s := New()
		var seen types.Account
		_, err := s.Update(addrByte(2), func(current types.Account) (types.Account, error) {
			seen = current
			current.Balance.SetUint64(10)
			return current, nil
		})
		require.NoError(t, err)
		require.NotNil(t, seen.Balance)
		require.Equal(t, uint64(0), seen.Balance.Uint64())
	})

	t.Run("mutation error aborts the write", func(t *testing.T) {
		t.Parallel()

		s := New()
		addr := addrByte(3)
		require.NoError(t, s.Set(addr, types.NewAccount(100)))

		wantErr := errors.New("insufficient funds")
		_, err := s.Update(addr, func(current types.Account) (types.Account, error) {
			return types.Account{}, wantErr
		})
		require.ErrorIs(t, err, wantErr)

		// Stored record unchanged
		got, ok := s.Get(addr)
		require.True(t, ok)
		require.Equal(t, uint64(100), got.Balance.Uint64())
	})

	t.Run("mutation returning invalid record is rejected", func(t *testing.T) {
		t.Parallel()

		s := New()
		addr := addrByte(4)
		require.NoError(t, s.Set(addr, types.NewAccount(100)))

		_, err := s.Update(addr, func(current types.Account) (types.Account, error) {
			return types.Account{Balance: big.NewInt(-5)}, nil
		})
		require.ErrorIs(t, err, types.ErrNegativeBalance)

		got, _ := s.Get(addr)
		require.Equal(t, uint64(100), got.Balance.Uint64())
	})
}

func TestStore_Seal(t *testing.T) {
	t.Parallel()

	s := New()
	addr := addrByte(1)
	require.NoError(t, s.Set(addr, types.NewAccount(100)))

	entries := s.SealAndSnapshot()
	require.Len(t, entries, 1)
	require.True(t, s.Sealed())

	t.Run("sealed store refuses Set", func(t *testing.T) {
		err := s.Set(addrByte(2), types.NewAccount(1))
		require.ErrorIs(t, err, types.ErrShardSealed)
	})

	t.Run("sealed store refuses Update", func(t *testing.T) {
		_, err := s.Update(addr, func(current types.Account) (types.Account, error) {
			return current, nil
		})
		require.ErrorIs(t, err, types.ErrShardSealed)
	})

	t.Run("sealed store still serves reads", func(t *testing.T) {
		got, ok := s.Get(addr)
		require.True(t, ok)
		require.Equal(t, uint64(100), got.Balance.Uint64())
	})

	t.Run("unseal reopens writes", func(t *testing.T) {
		s.Unseal()
		require.False(t, s.Sealed())
		require.NoError(t, s.Set(addrByte(2), types.NewAccount(1)))
	})
}

func TestStore_SnapshotCompleteness(t *testing.T) {
	t.Parallel()

	s := New()
	const n = 100
	for i := range n {
		require.NoError(t, s.Set(addrByte(byte(i+1)), types.NewAccount(uint64(i))))
	}

	entries := s.Snapshot()
	require.Len(t, entries, n)
	require.False(t, s.Sealed(), "plain snapshot must not seal")

	// Every entry is a deep copy: mutating it must not touch the store
	entries[0].Account.Balance.SetUint64(999999)
	got, ok := s.Get(entries[0].Address)
	require.True(t, ok)
	require.NotEqual(t, uint64(999999), got.Balance.Uint64())
}

func TestStore_SealAndSnapshotAtomicity(t *testing.T) {
	t.Parallel()

	// Writers racing SealAndSnapshot must either land before the snapshot
	// (and appear in it) or be refused with ErrShardSealed. No write may
	// land after the copy without an error.
	s := New()
	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	accepted := make([]int, writers)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				addr := types.BytesToAddress([]byte{byte(w), byte(i / 256), byte(i % 256)})
				err := s.Set(addr, types.NewAccount(1))
				if err == nil {
					accepted[w]++
					continue
				}
				require.ErrorIs(t, err, types.ErrShardSealed)
				return
			}
		}()
	}

	entries := s.SealAndSnapshot()
	wg.Wait()

	// Everything accepted before the seal, and nothing else, is in the
	// snapshot. Writers stop at the first seal error, so their accepted
	// counts are exact.
	total := 0
	for _, n := range accepted {
		total += n
	}
	require.Equal(t, total, len(entries))
}

func TestStore_Install(t *testing.T) {
	t.Parallel()

	src := New()
	for i := range 10 {
		require.NoError(t, src.Set(addrByte(byte(i+1)), types.NewAccount(uint64(i*10))))
	}

	dst := NewWithCapacity(10)
	dst.Install(src.Snapshot())

	require.Equal(t, 10, dst.Len())
	for i := range 10 {
		got, ok := dst.Get(addrByte(byte(i + 1)))
		require.True(t, ok)
		require.Equal(t, uint64(i*10), got.Balance.Uint64())
	}
}

func TestStore_Totals(t *testing.T) {
	t.Parallel()

	s := New()

	count, sum := s.Totals()
	require.Equal(t, uint64(0), count)
	require.Equal(t, int64(0), sum.Int64())

	require.NoError(t, s.Set(addrByte(1), types.NewAccount(100)))
	require.NoError(t, s.Set(addrByte(2), types.NewAccount(250)))
	require.NoError(t, s.Set(addrByte(3), types.NewAccount(0)))

	count, sum = s.Totals()
	require.Equal(t, uint64(3), count)
	require.Equal(t, int64(350), sum.Int64())
}

func TestStore_ConcurrentReadWrite(t *testing.T) {
	t.Parallel()

	s := New()
	const goroutines = 8
	const increments = 500

	addr := addrByte(1)
	require.NoError(t, s.Set(addr, types.NewAccount(0)))

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range increments {
				_, err := s.Update(addr, func(current types.Account) (types.Account, error) {
					current.Balance.Add(current.Balance, big.NewInt(1))
					return current, nil
				})
				require.NoError(t, err)
			}
		}()
	}

	// Concurrent readers must never observe a torn record
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range increments {
				if acct, ok := s.Get(addr); ok {
					require.NotNil(t, acct.Balance)
				}
			}
		}()
	}

	wg.Wait()

	got, ok := s.Get(addr)
	require.True(t, ok)
	require.Equal(t, int64(goroutines*increments), got.Balance.Int64(), "no increment may be lost")
}

func BenchmarkStore_Update(b *testing.B) {
	s := New()
	addr := addrByte(1)
	if err := s.Set(addr, types.NewAccount(0)); err != nil {
		b.Fatal(err)
	}

	one := big.NewInt(1)
	for b.Loop() {
		_, _ = s.Update(addr, func(current types.Account) (types.Account, error) {
			current.Balance.Add(current.Balance, one)
			return current, nil
		})
	}
}

func BenchmarkStore_Get(b *testing.B) {
	s := New()
	addr := addrByte(1)
	if err := s.Set(addr, types.NewAccount(1000)); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		_, _ = s.Get(addr)
	}
}
