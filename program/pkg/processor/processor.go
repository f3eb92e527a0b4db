package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/metrics"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
)

type Config struct {
	Logger    *slog.Logger
	Ledger    ledger.Ledger
	ProgramID solana.PublicKey
	Clock     clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = pda.ProgramID
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Processor executes program instructions against a ledger.
type Processor struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{log: cfg.Logger, cfg: cfg}, nil
}

func (p *Processor) ProgramID() solana.PublicKey {
	return p.cfg.ProgramID
}

func (p *Processor) Ledger() ledger.Ledger {
	return p.cfg.Ledger
}

// Execute runs the instructions in one ledger transaction. Either all of them
// take effect or none does.
func (p *Processor) Execute(ctx context.Context, ixs ...instruction.Instruction) error {
	err := p.cfg.Ledger.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		for i, ix := range ixs {
			if err := p.Process(ctx, tx, ix); err != nil {
				return &InstructionError{Index: i, Instruction: ix.Name(), Err: err}
			}
		}
		return nil
	})
	metrics.RecordTransaction(err)
	return err
}

// Process applies a single instruction inside an open ledger transaction.
func (p *Processor) Process(ctx context.Context, tx ledger.Tx, ix instruction.Instruction) error {
	start := time.Now()
	err := p.dispatch(ctx, tx, ix)

	result := "ok"
	if err != nil {
		result = "error"
		if code, ok := AsCode(err); ok {
			result = code.Name()
		}
		p.log.Debug("processor: instruction failed", "instruction", ix.Name(), "error", err)
	}
	metrics.RecordInstruction(ix.Name(), time.Since(start), result)
	return err
}

func (p *Processor) dispatch(ctx context.Context, tx ledger.Tx, ix instruction.Instruction) error {
	switch ix := ix.(type) {
	case *instruction.InitializeWhitelist:
		return p.initializeWhitelist(ctx, tx, ix)
	case *instruction.AddToWhitelist:
		return p.addToWhitelist(ctx, tx, ix)
	case *instruction.RemoveFromWhitelist:
		return p.removeFromWhitelist(ctx, tx, ix)
	case *instruction.CreateRoom:
		return p.createRoom(ctx, tx, ix)
	case *instruction.DepositToVault:
		return p.depositToVault(ctx, tx, ix)
	case *instruction.JoinRoom:
		return p.joinRoom(ctx, tx, ix)
	case *instruction.SubmitClaim:
		return p.submitClaim(ctx, tx, ix)
	case *instruction.VoteClaim:
		return p.voteClaim(ctx, tx, ix)
	case *instruction.ResolveClaim:
		return p.resolveClaim(ctx, tx, ix)
	case *instruction.SettleRoom:
		return p.settleRoom(ctx, tx, ix)
	default:
		return fmt.Errorf("%w: %T", ErrInstructionFallbackNotFound, ix)
	}
}

func (p *Processor) now() int64 {
	return p.cfg.Clock.Now().Unix()
}
