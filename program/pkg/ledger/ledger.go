package ledger

import (
	"bytes"
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidFilter   = errors.New("invalid account filter")
)

// Account is a ledger entry: lamport balance, owning program and raw data.
type Account struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	c.Data = bytes.Clone(a.Data)
	return &c
}

// Tx is the view of the ledger inside an atomic update. Reads observe the
// transaction's own writes. Accounts returned by Get are copies; changes only
// take effect through Put.
type Tx interface {
	Get(ctx context.Context, addr solana.PublicKey) (*Account, error)
	Put(ctx context.Context, acct *Account) error
}

// Ledger stores accounts and applies multi-account updates atomically.
type Ledger interface {
	// Update runs fn in a transaction. If fn returns an error nothing it
	// wrote is visible to other readers.
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, addr solana.PublicKey) (*Account, error)
	ProgramAccounts(ctx context.Context, owner solana.PublicKey, filters []rpc.RPCFilter) ([]*Account, error)
	Close() error
}

// MatchFilters reports whether data satisfies every memcmp and dataSize
// filter.
func MatchFilters(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.DataSize != 0 && uint64(len(data)) != f.DataSize {
			return false
		}
		if f.Memcmp != nil {
			end := f.Memcmp.Offset + uint64(len(f.Memcmp.Bytes))
			if end > uint64(len(data)) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
				return false
			}
		}
	}
	return true
}

func validateFilters(filters []rpc.RPCFilter) error {
	for _, f := range filters {
		if f.Memcmp == nil && f.DataSize == 0 {
			return ErrInvalidFilter
		}
		if f.Memcmp != nil && len(f.Memcmp.Bytes) == 0 {
			return ErrInvalidFilter
		}
	}
	return nil
}
