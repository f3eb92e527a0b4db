package processor

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// load reads a program-owned account and decodes it into acct.
func (p *Processor) load(ctx context.Context, tx ledger.Tx, addr solana.PublicKey, acct state.Account) error {
	raw, err := tx.Get(ctx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotInitialized, addr)
	}
	if err != nil {
		return err
	}
	if !raw.Owner.Equals(p.cfg.ProgramID) {
		if raw.Owner.Equals(solana.SystemProgramID) && len(raw.Data) == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotInitialized, addr)
		}
		return fmt.Errorf("%w: %s owned by %s", ErrAccountOwnedByWrongProgram, addr, raw.Owner)
	}
	if err := state.Decode(raw.Data, acct); err != nil {
		if errors.Is(err, state.ErrDiscriminatorMismatch) {
			return fmt.Errorf("%w: %s", ErrAccountDiscriminatorMismatch, addr)
		}
		return fmt.Errorf("%w: %s: %v", ErrAccountDidNotDeserialize, addr, err)
	}
	return nil
}

// exists reports whether addr holds an initialized program account.
func (p *Processor) exists(ctx context.Context, tx ledger.Tx, addr solana.PublicKey) (bool, error) {
	raw, err := tx.Get(ctx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw.Owner.Equals(p.cfg.ProgramID) && len(raw.Data) > 0, nil
}

// store writes acct into the existing account at addr, keeping its current
// lamport balance.
func (p *Processor) store(ctx context.Context, tx ledger.Tx, addr solana.PublicKey, acct state.Account, space int) error {
	raw, err := tx.Get(ctx, addr)
	if err != nil {
		return err
	}
	data, err := state.Encode(acct, space)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAccountDidNotDeserialize, addr, err)
	}
	if len(data) > space {
		return fmt.Errorf("account %s data %d exceeds space %d", addr, len(data), space)
	}
	raw.Data = data
	return tx.Put(ctx, raw)
}

// allocate creates an account at addr owned by owner with space bytes, funded
// to the rent-exempt minimum by payer. An existing system account without
// data is taken over and topped up.
func (p *Processor) allocate(ctx context.Context, tx ledger.Tx, payer, addr solana.PublicKey, space int, owner solana.PublicKey) error {
	raw, err := tx.Get(ctx, addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		raw = &ledger.Account{Address: addr, Owner: solana.SystemProgramID}
	case err != nil:
		return err
	case !raw.Owner.Equals(solana.SystemProgramID) || len(raw.Data) > 0:
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, addr)
	}

	if rent := state.MinimumBalance(space); raw.Lamports < rent {
		if err := transfer(ctx, tx, payer, addr, rent-raw.Lamports); err != nil {
			return err
		}
		if raw, err = tx.Get(ctx, addr); err != nil {
			return err
		}
	}
	raw.Owner = owner
	raw.Data = make([]byte, space)
	return tx.Put(ctx, raw)
}

// resize moves the rent difference between payer and addr for a change of the
// account size from oldSpace to newSpace.
func resize(ctx context.Context, tx ledger.Tx, payer, addr solana.PublicKey, oldSpace, newSpace int) error {
	raw, err := tx.Get(ctx, addr)
	if err != nil {
		return err
	}
	newRent := state.MinimumBalance(newSpace)
	switch {
	case newSpace > oldSpace && raw.Lamports < newRent:
		return transfer(ctx, tx, payer, addr, newRent-raw.Lamports)
	case newSpace < oldSpace:
		refund := state.MinimumBalance(oldSpace) - newRent
		if raw.Lamports < newRent+refund {
			refund = raw.Lamports - min(raw.Lamports, newRent)
		}
		return transfer(ctx, tx, addr, payer, refund)
	}
	return nil
}

// transfer moves lamports between two accounts. A missing destination is
// created as an empty system account.
func transfer(ctx context.Context, tx ledger.Tx, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, err := tx.Get(ctx, from)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s has 0, needs %d", ErrInsufficientLamports, from, amount)
	}
	if err != nil {
		return err
	}
	if src.Lamports < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientLamports, from, src.Lamports, amount)
	}
	if from.Equals(to) {
		return nil
	}

	dst, err := tx.Get(ctx, to)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		dst = &ledger.Account{Address: to, Owner: solana.SystemProgramID}
	} else if err != nil {
		return err
	}
	sum, err := checkedAdd(dst.Lamports, amount)
	if err != nil {
		return err
	}

	src.Lamports -= amount
	dst.Lamports = sum
	if err := tx.Put(ctx, src); err != nil {
		return err
	}
	return tx.Put(ctx, dst)
}

func lamports(ctx context.Context, tx ledger.Tx, addr solana.PublicKey) (uint64, error) {
	raw, err := tx.Get(ctx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return raw.Lamports, nil
}

// expectPDA checks that got is the canonical address for seeds and returns
// its bump.
func (p *Processor) expectPDA(got solana.PublicKey, seeds [][]byte) (uint8, error) {
	want, bump, err := solana.FindProgramAddress(seeds, p.cfg.ProgramID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConstraintSeeds, err)
	}
	if !want.Equals(got) {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrConstraintSeeds, want, got)
	}
	return bump, nil
}

// verifyStored re-derives addr from seeds and the bump stored in the account.
func (p *Processor) verifyStored(addr solana.PublicKey, bump uint8, seeds [][]byte) error {
	if err := pda.Verify(p.cfg.ProgramID, addr, bump, seeds...); err != nil {
		return fmt.Errorf("%w: %v", ErrConstraintSeeds, err)
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrNumericalOverflow
	}
	return sum, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrNumericalOverflow
	}
	return lo, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrNumericalOverflow
	}
	return diff, nil
}
