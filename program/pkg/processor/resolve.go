package processor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/metrics"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// Resolution is the outcome of a resolved claim.
type Resolution struct {
	Claim      solana.PublicKey  `json:"claim"`
	Approved   bool              `json:"approved"`
	Reward     uint64            `json:"reward"`
	RoomStatus state.RoomStatus  `json:"roomStatus"`
	Reputation *state.Reputation `json:"reputation,omitempty"`
}

// ResolveClaim tallies the votes on claim and pays the claimant if the claim
// is accepted.
func (p *Processor) ResolveClaim(ctx context.Context, claimant, room, claim solana.PublicKey) (*Resolution, error) {
	ix, err := instruction.NewResolveClaim(p.cfg.ProgramID, claimant, room, claim)
	if err != nil {
		return nil, err
	}
	if err := p.Execute(ctx, ix); err != nil {
		return nil, err
	}

	c, err := p.GetClaim(ctx, claim)
	if err != nil {
		return nil, err
	}
	r, err := p.GetRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Claim: claim, Approved: c.Approved, Reward: c.Reward, RoomStatus: r.Status}
	if c.Approved {
		if res.Reputation, err = p.GetReputation(ctx, claimant); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// accepted reports whether votesFor reaches threshold percent of all votes.
func accepted(votesFor, votesAgainst uint64, threshold uint8) (bool, error) {
	total, err := checkedAdd(votesFor, votesAgainst)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, ErrNoVotes
	}
	lhs, err := checkedMul(votesFor, 100)
	if err != nil {
		return false, err
	}
	rhs, err := checkedMul(uint64(threshold), total)
	if err != nil {
		return false, err
	}
	return lhs >= rhs, nil
}

func (p *Processor) resolveClaim(ctx context.Context, tx ledger.Tx, ix *instruction.ResolveClaim) error {
	room, err := p.loadRoom(ctx, tx, ix.Room)
	if err != nil {
		return err
	}
	if err := p.checkVault(ix.Room, room, ix.Vault); err != nil {
		return err
	}
	claim, err := p.loadClaim(ctx, tx, ix.Claim, ix.Room, ix.Claimant)
	if err != nil {
		return err
	}
	if claim.Resolved {
		return ErrAlreadyResolved
	}
	ok, err := accepted(claim.VotesFor, claim.VotesAgainst, room.VoteThreshold)
	if err != nil {
		return err
	}

	var reward uint64
	if ok {
		if reward, err = p.payout(ctx, tx, ix, room); err != nil {
			return err
		}
	}
	if room.PendingClaims > 0 {
		room.PendingClaims--
	}
	if room.VotedClaims > 0 {
		room.VotedClaims--
	}
	now := p.now()
	if room.Status.Active() {
		left, err := spendable(ctx, tx, ix.Vault)
		if err != nil {
			return err
		}
		if settled(room, left, now) {
			room.Status = state.RoomStatusResolved
		} else {
			room.Status = state.RoomStatusInProgress
		}
	}
	if err := p.store(ctx, tx, ix.Room, room, state.RoomSpace); err != nil {
		return err
	}

	claim.Resolved = true
	claim.Approved = ok
	claim.Reward = reward
	claim.ResolvedAt = &now
	if err := p.store(ctx, tx, ix.Claim, claim, state.ClaimSpace); err != nil {
		return err
	}

	outcome := "rejected"
	if ok {
		outcome = "approved"
		metrics.PayoutLamportsTotal.Add(float64(reward))
	}
	metrics.ClaimsResolvedTotal.WithLabelValues(outcome).Inc()
	p.log.Info("processor: claim resolved", "claim", ix.Claim, "outcome", outcome, "reward", reward,
		"roomStatus", room.Status)
	return nil
}

// payout moves the accepted claim's share of the vault to the claimant and
// credits its reputation. The vault is split evenly between the claims that
// have votes. Once the room is closed or the pool fully distributed, accepted
// claims still count as wins but carry no reward.
func (p *Processor) payout(ctx context.Context, tx ledger.Tx, ix *instruction.ResolveClaim, room *state.Room) (uint64, error) {
	var reward uint64
	if room.Status.Active() && room.Distributed < room.TotalPool {
		remaining, err := checkedSub(room.TotalPool, room.Distributed)
		if err != nil {
			return 0, err
		}
		available, err := spendable(ctx, tx, ix.Vault)
		if err != nil {
			return 0, err
		}
		reward = min(remaining, available/uint64(max(room.VotedClaims, 1)))
		if reward == 0 {
			return 0, fmt.Errorf("%w: spendable %d, remaining pool %d", ErrInsufficientFunds, available, remaining)
		}
		if err := transfer(ctx, tx, ix.Vault, ix.Claimant, reward); err != nil {
			return 0, err
		}
		if room.Distributed, err = checkedAdd(room.Distributed, reward); err != nil {
			return 0, err
		}
	}
	if _, err := p.creditReputation(ctx, tx, ix.Reputation, ix.Claimant, reward); err != nil {
		return 0, err
	}
	return reward, nil
}

// settled reports whether an active room has nothing left to pay out.
func settled(room *state.Room, left uint64, now int64) bool {
	switch {
	case room.Distributed >= room.TotalPool:
		return true
	case room.PendingClaims == 0 && left == 0:
		return true
	default:
		return room.VotedClaims == 0 && now > room.DeadlineTs
	}
}

// spendable is the vault balance above its rent-exempt minimum.
func spendable(ctx context.Context, tx ledger.Tx, vault solana.PublicKey) (uint64, error) {
	balance, err := lamports(ctx, tx, vault)
	if err != nil {
		return 0, err
	}
	rent := state.MinimumBalance(0)
	if balance <= rent {
		return 0, nil
	}
	return checkedSub(balance, rent)
}
