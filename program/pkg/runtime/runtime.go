// Package runtime executes signed Solana transactions against the program.
package runtime

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
)

var (
	ErrNoInstructions     = errors.New("transaction has no instructions")
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrUnsupportedProgram = errors.New("instruction targets an unsupported program")
	ErrInvalidAccountRef  = errors.New("instruction references an unknown account index")
	ErrAlreadyProcessed   = errors.New("transaction already processed")
	ErrBlockhashNotFound  = errors.New("blockhash not found")
	ErrAirdropDisabled    = errors.New("airdrop is disabled")
	ErrAirdropTooLarge    = errors.New("airdrop amount exceeds limit")
)

const (
	// DefaultMaxAirdrop is the largest single airdrop, in lamports.
	DefaultMaxAirdrop = 10 * solana.LAMPORTS_PER_SOL

	DefaultBlockhashTTL = 60 * time.Second
)

type Config struct {
	Logger    *slog.Logger
	Processor *processor.Processor
	Clock     clockwork.Clock

	// MaxAirdrop of zero disables Airdrop.
	MaxAirdrop uint64

	// BlockhashTTL is how long an issued blockhash stays valid for new
	// transactions, and how long their signatures are remembered.
	BlockhashTTL time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Processor == nil {
		return errors.New("processor is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.BlockhashTTL <= 0 {
		cfg.BlockhashTTL = DefaultBlockhashTTL
	}
	return nil
}

// Blockhash is a recent blockhash transactions must reference.
type Blockhash struct {
	Hash      solana.Hash
	Slot      uint64
	ExpiresAt time.Time
}

type Runtime struct {
	log *slog.Logger
	cfg Config

	mu     sync.Mutex
	latest solana.Hash
	slot   uint64
	recent map[solana.Hash]time.Time      // blockhash -> expiry
	seen   map[solana.Signature]time.Time // signature -> expiry of its blockhash
}

func New(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var genesis solana.Hash
	if _, err := rand.Read(genesis[:]); err != nil {
		return nil, fmt.Errorf("failed to seed blockhash: %w", err)
	}
	return &Runtime{
		log:    cfg.Logger,
		cfg:    cfg,
		latest: genesis,
		recent: make(map[solana.Hash]time.Time),
		seen:   make(map[solana.Signature]time.Time),
	}, nil
}

// LatestBlockhash issues a new blockhash. Each call advances the slot, so
// transactions built on separate calls never share a signature.
func (r *Runtime) LatestBlockhash() Blockhash {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.cfg.Clock.Now()
	r.prune(now)

	r.slot++
	var buf [solana.PublicKeyLength + 8]byte
	copy(buf[:], r.latest[:])
	binary.LittleEndian.PutUint64(buf[solana.PublicKeyLength:], r.slot)
	r.latest = sha256.Sum256(buf[:])

	expires := now.Add(r.cfg.BlockhashTTL)
	r.recent[r.latest] = expires
	return Blockhash{Hash: r.latest, Slot: r.slot, ExpiresAt: expires}
}

// prune forgets expired blockhashes and the signatures that referenced them.
// Callers hold r.mu.
func (r *Runtime) prune(now time.Time) {
	for h, exp := range r.recent {
		if now.After(exp) {
			delete(r.recent, h)
		}
	}
	for sig, exp := range r.seen {
		if now.After(exp) {
			delete(r.seen, sig)
		}
	}
}

// admit checks tx's blockhash and records its signature.
func (r *Runtime) admit(tx *solana.Transaction, sig solana.Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.cfg.Clock.Now()

	exp, ok := r.recent[tx.Message.RecentBlockhash]
	if !ok || now.After(exp) {
		return fmt.Errorf("%w: %s", ErrBlockhashNotFound, tx.Message.RecentBlockhash)
	}
	if _, ok := r.seen[sig]; ok {
		return ErrAlreadyProcessed
	}
	r.seen[sig] = exp
	return nil
}

func (r *Runtime) Processor() *processor.Processor {
	return r.cfg.Processor
}

// ExecuteTransaction verifies tx and runs its instructions in one ledger
// transaction. It returns the transaction's first signature.
func (r *Runtime) ExecuteTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: transaction is unsigned", ErrInvalidSignature)
	}
	sig := tx.Signatures[0]
	if len(tx.Message.Instructions) == 0 {
		return sig, ErrNoInstructions
	}
	if err := tx.VerifySignatures(); err != nil {
		return sig, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ixs, err := r.decode(tx)
	if err != nil {
		return sig, err
	}

	if err := r.admit(tx, sig); err != nil {
		return sig, err
	}

	if err := r.cfg.Processor.Execute(ctx, ixs...); err != nil {
		r.mu.Lock()
		delete(r.seen, sig)
		r.mu.Unlock()
		r.log.Debug("runtime: transaction failed", "signature", sig, "error", err)
		return sig, err
	}
	r.log.Info("runtime: transaction executed", "signature", sig, "instructions", len(ixs))
	return sig, nil
}

// decode resolves and validates every compiled instruction of tx.
func (r *Runtime) decode(tx *solana.Transaction) ([]instruction.Instruction, error) {
	programID := r.cfg.Processor.ProgramID()
	keys := len(tx.Message.AccountKeys)

	ixs := make([]instruction.Instruction, 0, len(tx.Message.Instructions))
	for i := range tx.Message.Instructions {
		ci := &tx.Message.Instructions[i]
		program, err := tx.Message.Program(ci.ProgramIDIndex)
		if err != nil {
			return nil, &processor.InstructionError{Index: i, Err: fmt.Errorf("%w: %v", ErrInvalidAccountRef, err)}
		}
		if !program.Equals(programID) {
			return nil, &processor.InstructionError{Index: i, Err: fmt.Errorf("%w: %s", ErrUnsupportedProgram, program)}
		}
		for _, idx := range ci.Accounts {
			if int(idx) >= keys {
				return nil, &processor.InstructionError{Index: i, Err: fmt.Errorf("%w: %d", ErrInvalidAccountRef, idx)}
			}
		}
		metas, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, &processor.InstructionError{Index: i, Err: fmt.Errorf("%w: %v", ErrInvalidAccountRef, err)}
		}

		ix, err := instruction.Decode(ci.Data, metas)
		if err != nil {
			return nil, &processor.InstructionError{Index: i, Err: toCode(err)}
		}
		if err := instruction.CheckAccounts(ix, metas); err != nil {
			return nil, &processor.InstructionError{Index: i, Instruction: ix.Name(), Err: toCode(err)}
		}
		ixs = append(ixs, ix)
	}
	return ixs, nil
}

// toCode maps instruction decoding errors onto program error codes.
func toCode(err error) error {
	var code processor.ErrorCode
	switch {
	case errors.Is(err, instruction.ErrUnknownInstruction):
		code = processor.ErrInstructionFallbackNotFound
	case errors.Is(err, instruction.ErrMalformedInstruction):
		code = processor.ErrInstructionDidNotDeserialize
	case errors.Is(err, instruction.ErrNotEnoughAccounts):
		code = processor.ErrAccountNotEnoughKeys
	case errors.Is(err, instruction.ErrMissingSigner):
		code = processor.ErrConstraintSigner
	case errors.Is(err, instruction.ErrNotWritable):
		code = processor.ErrConstraintMut
	case errors.Is(err, instruction.ErrInvalidProgramID):
		code = processor.ErrInvalidProgramID
	default:
		return err
	}
	return fmt.Errorf("%w: %v", code, err)
}

// Airdrop credits lamports to a system account, creating it if needed.
func (r *Runtime) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (uint64, error) {
	if r.cfg.MaxAirdrop == 0 {
		return 0, ErrAirdropDisabled
	}
	if lamports == 0 || lamports > r.cfg.MaxAirdrop {
		return 0, fmt.Errorf("%w: %d > %d", ErrAirdropTooLarge, lamports, r.cfg.MaxAirdrop)
	}

	var balance uint64
	err := r.cfg.Processor.Ledger().Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		acct, err := tx.Get(ctx, addr)
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			acct = &ledger.Account{Address: addr, Owner: solana.SystemProgramID}
		case err != nil:
			return err
		case !acct.Owner.Equals(solana.SystemProgramID):
			return fmt.Errorf("%w: %s is owned by %s", processor.ErrAccountOwnedByWrongProgram, addr, acct.Owner)
		}
		if acct.Lamports+lamports < acct.Lamports {
			return processor.ErrNumericalOverflow
		}
		acct.Lamports += lamports
		balance = acct.Lamports
		return tx.Put(ctx, acct)
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("runtime: airdrop", "address", addr, "lamports", lamports, "balance", balance)
	return balance, nil
}
