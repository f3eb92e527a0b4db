package ledger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type MemoryConfig struct {
	Logger *slog.Logger
}

func (cfg *MemoryConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Memory is an in-process ledger. Writers are serialized; each update stages
// its writes in an overlay that is merged only when the update succeeds.
type Memory struct {
	log *slog.Logger

	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Memory{
		log:      cfg.Logger,
		accounts: make(map[solana.PublicKey]*Account),
	}, nil
}

func (m *Memory) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{base: m.accounts, overlay: make(map[solana.PublicKey]*Account)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for addr, acct := range tx.overlay {
		m.accounts[addr] = acct
	}
	m.log.Debug("ledger/memory: committed", "accounts", len(tx.overlay))
	return nil
}

func (m *Memory) Get(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct.Clone(), nil
}

func (m *Memory) ProgramAccounts(ctx context.Context, owner solana.PublicKey, filters []rpc.RPCFilter) ([]*Account, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Account
	for _, acct := range m.accounts {
		if !acct.Owner.Equals(owner) || !MatchFilters(acct.Data, filters) {
			continue
		}
		out = append(out, acct.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

type memoryTx struct {
	base    map[solana.PublicKey]*Account
	overlay map[solana.PublicKey]*Account
}

func (tx *memoryTx) Get(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	if acct, ok := tx.overlay[addr]; ok {
		return acct.Clone(), nil
	}
	if acct, ok := tx.base[addr]; ok {
		return acct.Clone(), nil
	}
	return nil, ErrAccountNotFound
}

func (tx *memoryTx) Put(ctx context.Context, acct *Account) error {
	tx.overlay[acct.Address] = acct.Clone()
	return nil
}
