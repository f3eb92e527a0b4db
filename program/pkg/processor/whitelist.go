package processor

import (
	"context"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// InitializeWhitelist creates the empty global whitelist with organizer as
// its authority.
func (p *Processor) InitializeWhitelist(ctx context.Context, organizer solana.PublicKey) error {
	ix, err := instruction.NewInitializeWhitelist(p.cfg.ProgramID, organizer)
	if err != nil {
		return err
	}
	return p.Execute(ctx, ix)
}

// AddToWhitelist appends address to the whitelist.
func (p *Processor) AddToWhitelist(ctx context.Context, organizer, address solana.PublicKey) error {
	ix, err := instruction.NewAddToWhitelist(p.cfg.ProgramID, organizer, address)
	if err != nil {
		return err
	}
	return p.Execute(ctx, ix)
}

// RemoveFromWhitelist removes address from the whitelist, keeping the order
// of the remaining entries.
func (p *Processor) RemoveFromWhitelist(ctx context.Context, organizer, address solana.PublicKey) error {
	ix, err := instruction.NewRemoveFromWhitelist(p.cfg.ProgramID, organizer, address)
	if err != nil {
		return err
	}
	return p.Execute(ctx, ix)
}

func (p *Processor) initializeWhitelist(ctx context.Context, tx ledger.Tx, ix *instruction.InitializeWhitelist) error {
	bump, err := p.expectPDA(ix.Whitelist, pda.WhitelistSeeds())
	if err != nil {
		return err
	}
	space := state.WhitelistSpace(0)
	if err := p.allocate(ctx, tx, ix.Organizer, ix.Whitelist, space, p.cfg.ProgramID); err != nil {
		return err
	}
	wl := &state.Whitelist{Authority: ix.Organizer, Bump: bump}
	if err := p.store(ctx, tx, ix.Whitelist, wl, space); err != nil {
		return err
	}
	p.log.Info("processor: whitelist initialized", "authority", ix.Organizer)
	return nil
}

func (p *Processor) loadWhitelist(ctx context.Context, tx ledger.Tx, addr solana.PublicKey) (*state.Whitelist, error) {
	var wl state.Whitelist
	if err := p.load(ctx, tx, addr, &wl); err != nil {
		return nil, err
	}
	if err := p.verifyStored(addr, wl.Bump, pda.WhitelistSeeds()); err != nil {
		return nil, err
	}
	return &wl, nil
}

func (p *Processor) addToWhitelist(ctx context.Context, tx ledger.Tx, ix *instruction.AddToWhitelist) error {
	wl, err := p.loadWhitelist(ctx, tx, ix.Whitelist)
	if err != nil {
		return err
	}
	if !wl.Authority.Equals(ix.Organizer) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, ix.Organizer)
	}
	if wl.Contains(ix.Address) {
		return fmt.Errorf("%w: %s", ErrAlreadyWhitelisted, ix.Address)
	}

	oldSpace := state.WhitelistSpace(len(wl.Addresses))
	wl.Addresses = append(wl.Addresses, ix.Address)
	newSpace := state.WhitelistSpace(len(wl.Addresses))
	if err := resize(ctx, tx, ix.Organizer, ix.Whitelist, oldSpace, newSpace); err != nil {
		return err
	}
	if err := p.store(ctx, tx, ix.Whitelist, wl, newSpace); err != nil {
		return err
	}
	p.log.Info("processor: address whitelisted", "address", ix.Address, "size", len(wl.Addresses))
	return nil
}

func (p *Processor) removeFromWhitelist(ctx context.Context, tx ledger.Tx, ix *instruction.RemoveFromWhitelist) error {
	wl, err := p.loadWhitelist(ctx, tx, ix.Whitelist)
	if err != nil {
		return err
	}
	if !wl.Authority.Equals(ix.Organizer) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, ix.Organizer)
	}
	idx := wl.IndexOf(ix.Address)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, ix.Address)
	}

	oldSpace := state.WhitelistSpace(len(wl.Addresses))
	wl.Addresses = slices.Delete(wl.Addresses, idx, idx+1)
	newSpace := state.WhitelistSpace(len(wl.Addresses))
	if err := resize(ctx, tx, ix.Organizer, ix.Whitelist, oldSpace, newSpace); err != nil {
		return err
	}
	if err := p.store(ctx, tx, ix.Whitelist, wl, newSpace); err != nil {
		return err
	}
	p.log.Info("processor: address removed from whitelist", "address", ix.Address, "size", len(wl.Addresses))
	return nil
}
