package processor

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// LamportsPerPoint is the reward size worth one reputation point.
const LamportsPerPoint = 1_000_000

// ReputationPoints returns the score awarded for a reward. Every win is worth
// at least one point.
func ReputationPoints(reward uint64) uint64 {
	return max(1, reward/LamportsPerPoint)
}

// creditReputation records a win worth reward lamports for player, creating
// the reputation account on first use with rent paid by player.
func (p *Processor) creditReputation(ctx context.Context, tx ledger.Tx, addr, player solana.PublicKey, reward uint64) (*state.Reputation, error) {
	bump, err := p.expectPDA(addr, pda.ReputationSeeds(player))
	if err != nil {
		return nil, err
	}

	found, err := p.exists(ctx, tx, addr)
	if err != nil {
		return nil, err
	}
	rep := &state.Reputation{}
	if found {
		if err := p.load(ctx, tx, addr, rep); err != nil {
			return nil, err
		}
		if !rep.Player.Equals(player) {
			return nil, fmt.Errorf("%w: reputation player %s, got %s", ErrConstraintHasOne, rep.Player, player)
		}
	} else {
		if err := p.allocate(ctx, tx, player, addr, state.ReputationSpace, p.cfg.ProgramID); err != nil {
			return nil, err
		}
	}
	if !rep.Initialized {
		rep.Player = player
		rep.Initialized = true
		rep.Bump = bump
	}

	if rep.Score, err = checkedAdd(rep.Score, ReputationPoints(reward)); err != nil {
		return nil, err
	}
	if rep.Wins == math.MaxUint32 {
		return nil, ErrNumericalOverflow
	}
	rep.Wins++

	if err := p.store(ctx, tx, addr, rep, state.ReputationSpace); err != nil {
		return nil, err
	}
	return rep, nil
}
