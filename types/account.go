package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// AddressLength is the fixed size of an account address in bytes.
const AddressLength = 32

// Address uniquely identifies an account.
//
// Addresses are opaque fixed-length keys: the library never interprets their
// contents beyond hashing them for shard placement. The zero address is
// reserved and rejected by all write operations.
type Address [AddressLength]byte

// ParseAddress parses a hex-encoded address, with or without a "0x" prefix.
//
// Parameters:
//   - s: Hex string of exactly AddressLength*2 digits (prefix excluded)
//
// Returns:
//   - Address: Decoded address
//   - error: ErrAddressInvalid if the string has the wrong length or is not valid hex
func ParseAddress(s string) (Address, error) {
	var addr Address

	s = strings.TrimPrefix(s, "0x")
	if len(s) != AddressLength*2 {
		return addr, fmt.Errorf("%w: expected %d hex digits, got %d", ErrAddressInvalid, AddressLength*2, len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrAddressInvalid, err)
	}

	copy(addr[:], b)

	return addr, nil
}

// BytesToAddress builds an address from raw bytes.
//
// The input is copied left-aligned into the address; shorter inputs are
// zero-padded and longer inputs are truncated to AddressLength bytes.
//
// Returns:
//   - Address: Address containing up to AddressLength bytes of b
func BytesToAddress(b []byte) Address {
	var addr Address

	copy(addr[:], b)

	return addr
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// String returns the full hex representation with a "0x" prefix.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short returns a truncated hex form suitable for log fields.
func (a Address) Short() string {
	return "0x" + hex.EncodeToString(a[:4])
}

// IsZero reports whether the address is the reserved all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Account is the ledger record for a single address.
//
// An account is an atomic unit: it lives on exactly one shard at a time and
// is never split or duplicated across shards. Balance uses big.Int so large
// supplies cannot overflow; negative balances are rejected at the store
// boundary. Nonce and Meta are opaque extension fields owned by the
// transaction-execution layer.
type Account struct {
	// Balance is the account balance. Must be non-nil and non-negative
	// for any account written into a shard.
	Balance *big.Int

	// Nonce is an opaque monotonic counter owned by the execution layer.
	Nonce uint64

	// Meta carries opaque extension data owned by the execution layer.
	Meta []byte
}

// NewAccount creates an account with the given balance and a zero nonce.
//
// Parameters:
//   - balance: Initial balance in minimal units
//
// Returns:
//   - Account: Account ready to be written into a shard
func NewAccount(balance uint64) Account {
	return Account{Balance: new(big.Int).SetUint64(balance)}
}

// Clone returns a deep copy of the account.
//
// Shards clone accounts on every read and write so callers can never alias
// shard-owned state. A nil balance stays nil in the copy.
func (a Account) Clone() Account {
	clone := Account{Nonce: a.Nonce}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if a.Meta != nil {
		clone.Meta = append([]byte(nil), a.Meta...)
	}

	return clone
}

// Equal reports whether two accounts hold the same balance, nonce, and metadata.
//
// Nil and zero balances are considered equal so freshly constructed accounts
// compare naturally.
func (a Account) Equal(b Account) bool {
	if a.Nonce != b.Nonce || !bytes.Equal(a.Meta, b.Meta) {
		return false
	}

	ab, bb := a.Balance, b.Balance
	if ab == nil {
		ab = new(big.Int)
	}
	if bb == nil {
		bb = new(big.Int)
	}

	return ab.Cmp(bb) == 0
}

// Mutation transforms an account record under the owning shard's write lock.
//
// The transaction-execution layer owns write semantics: a mutation receives a
// copy of the current record (a zero-balance Account if the address is new)
// and returns the record to store. Returning an error aborts the write and
// propagates the error to the caller unchanged; the stored record is not
// modified in that case.
//
// Mutations must be fast and must not call back into the manager, since they
// run while the shard's write lock is held.
type Mutation func(current Account) (Account, error)
