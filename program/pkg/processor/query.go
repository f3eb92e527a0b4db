package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// get reads and decodes the program account at addr outside of any
// transaction.
func (p *Processor) get(ctx context.Context, addr solana.PublicKey, acct state.Account) error {
	raw, err := p.cfg.Ledger.Get(ctx, addr)
	if err != nil {
		return err
	}
	if !raw.Owner.Equals(p.cfg.ProgramID) {
		return fmt.Errorf("%w: %s owned by %s", ErrAccountOwnedByWrongProgram, addr, raw.Owner)
	}
	return state.Decode(raw.Data, acct)
}

func (p *Processor) GetRoom(ctx context.Context, addr solana.PublicKey) (*state.Room, error) {
	var room state.Room
	if err := p.get(ctx, addr, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (p *Processor) GetClaim(ctx context.Context, addr solana.PublicKey) (*state.Claim, error) {
	var claim state.Claim
	if err := p.get(ctx, addr, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

func (p *Processor) GetParticipant(ctx context.Context, room, player solana.PublicKey) (*state.Participant, error) {
	addr, _, err := pda.DeriveParticipant(p.cfg.ProgramID, room, player)
	if err != nil {
		return nil, err
	}
	var participant state.Participant
	if err := p.get(ctx, addr, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (p *Processor) GetVoterRecord(ctx context.Context, claim, voter solana.PublicKey) (*state.VoterRecord, error) {
	addr, _, err := pda.DeriveVoterRecord(p.cfg.ProgramID, claim, voter)
	if err != nil {
		return nil, err
	}
	var record state.VoterRecord
	if err := p.get(ctx, addr, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *Processor) GetWhitelist(ctx context.Context) (*state.Whitelist, error) {
	addr, _, err := pda.DeriveWhitelist(p.cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	var wl state.Whitelist
	if err := p.get(ctx, addr, &wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

// GetReputation returns the reputation of player. ledger.ErrAccountNotFound
// means the player has not won yet.
func (p *Processor) GetReputation(ctx context.Context, player solana.PublicKey) (*state.Reputation, error) {
	addr, _, err := pda.DeriveReputation(p.cfg.ProgramID, player)
	if err != nil {
		return nil, err
	}
	var rep state.Reputation
	if err := p.get(ctx, addr, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Balance returns the lamports held by addr, zero if it does not exist.
func (p *Processor) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	raw, err := p.cfg.Ledger.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return raw.Lamports, nil
}
