// Package store implements the per-shard account store.
//
// Each shard owns exactly one Store. A single reader/writer mutex guards the
// records: many concurrent readers, one writer, and never any cross-shard
// locking, because an address belongs to exactly one shard at a time.
//
// A store can be sealed. Sealing happens while migration copies the store
// into the scratch buffer: once sealed, writes are refused with
// ErrShardSealed so no update can slip in after its records were copied but
// before the new table commits. Reads keep working on a sealed store, since
// its contents stay authoritative until the swap.
package store

import (
	"math/big"
	"sync"

	"github.com/arloliu/sharder/types"
)

// Entry pairs an address with its account record. Migration and report
// paths exchange entries instead of exposing the underlying map.
type Entry struct {
	Address types.Address
	Account types.Account
}

// Store holds the authoritative account records for one shard.
type Store struct {
	mu       sync.RWMutex
	sealed   bool
	accounts map[types.Address]types.Account
}

// New creates an empty store.
func New() *Store {
	return &Store{accounts: make(map[types.Address]types.Account)}
}

// NewWithCapacity creates an empty store pre-sized for n accounts.
//
// Redistribute uses this to avoid rehashing while it fills the new table.
func NewWithCapacity(n int) *Store {
	return &Store{accounts: make(map[types.Address]types.Account, n)}
}

// Get returns a copy of the account for addr.
//
// Returns:
//   - types.Account: Deep copy the caller owns outright
//   - bool: false if the address is not resident on this shard
func (s *Store) Get(addr types.Address) (types.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[addr]
	if !ok {
		return types.Account{}, false
	}

	return acct.Clone(), true
}

// Set stores a copy of acct under addr, replacing any existing record.
//
// Returns:
//   - error: ErrShardSealed while a migration holds the shard,
//     ErrNilBalance/ErrNegativeBalance for invalid records
func (s *Store) Set(addr types.Address, acct types.Account) error {
	if err := validate(acct); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return types.ErrShardSealed
	}

	s.accounts[addr] = acct.Clone()

	return nil
}

// Update applies fn to the current record for addr under the write lock.
//
// fn receives a copy of the resident record, or a zero-balance account if
// the address is new to this shard. The returned record replaces the
// resident one. Errors returned by fn abort the write and propagate to the
// caller unchanged.
//
// Returns:
//   - types.Account: The record as stored
//   - error: fn's error, ErrShardSealed, or a balance validation error
func (s *Store) Update(addr types.Address, fn types.Mutation) (types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return types.Account{}, types.ErrShardSealed
	}

	current, ok := s.accounts[addr]
	base := types.NewAccount(0)
	if ok {
		base = current.Clone()
	}

	next, err := fn(base)
	if err != nil {
		return types.Account{}, err
	}
	if err := validate(next); err != nil {
		return types.Account{}, err
	}

	s.accounts[addr] = next.Clone()

	return next, nil
}

// Snapshot returns a consistent copy of every entry under the read lock.
//
// The result is finite, restartable, and safe to iterate without holding
// any lock; every account is deep-copied.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyEntries()
}

// SealAndSnapshot copies every entry and seals the store, atomically under
// the write lock.
//
// This is migration's read pass: after it returns, no write can land here,
// so the copied entries are complete for this shard. The lock is held only
// for the duration of the copy, which bounds how long any single writer can
// stall behind a migration.
func (s *Store) SealAndSnapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed = true

	return s.copyEntries()
}

// Unseal reopens the store for writes. Rollback path only: a committed
// migration retires the sealed store instead of reopening it.
func (s *Store) Unseal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed = false
}

// Sealed reports whether the store currently refuses writes.
func (s *Store) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sealed
}

// Install bulk-loads entries the caller owns, without cloning.
//
// Redistribute fills freshly built, not-yet-published stores with entries
// already deep-copied out of the old table, so cloning again would only
// double the migration's allocation bill. Must not be used on a published
// store with entries the caller retains.
func (s *Store) Install(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.accounts[e.Address] = e.Account
	}
}

// Len returns the number of resident accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.accounts)
}

// Totals returns the resident account count and the sum of their balances
// without copying any record.
func (s *Store) Totals() (uint64, *big.Int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := new(big.Int)
	for _, acct := range s.accounts {
		if acct.Balance != nil {
			sum.Add(sum, acct.Balance)
		}
	}

	return uint64(len(s.accounts)), sum
}

// copyEntries assumes the caller holds at least the read lock.
func (s *Store) copyEntries() []Entry {
	entries := make([]Entry, 0, len(s.accounts))
	for addr, acct := range s.accounts {
		entries = append(entries, Entry{Address: addr, Account: acct.Clone()})
	}

	return entries
}

func validate(acct types.Account) error {
	if acct.Balance == nil {
		return types.ErrNilBalance
	}
	if acct.Balance.Sign() < 0 {
		return types.ErrNegativeBalance
	}

	return nil
}
