package processor

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/metrics"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// SubmitClaim files a claim by claimant in room and returns the claim address.
func (p *Processor) SubmitClaim(ctx context.Context, claimant, room solana.PublicKey, claimID, proofHash string) (solana.PublicKey, error) {
	if err := validateClaimID(claimID); err != nil {
		return solana.PublicKey{}, err
	}
	ix, err := instruction.NewSubmitClaim(p.cfg.ProgramID, claimant, room, claimID, proofHash)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := p.Execute(ctx, ix); err != nil {
		return solana.PublicKey{}, err
	}
	return ix.Claim, nil
}

// VoteClaim records voter's accept or reject vote on claim.
func (p *Processor) VoteClaim(ctx context.Context, voter, room, claim, claimant solana.PublicKey, accept bool) error {
	ix, err := instruction.NewVoteClaim(p.cfg.ProgramID, voter, room, claim, claimant, accept)
	if err != nil {
		return err
	}
	return p.Execute(ctx, ix)
}

func validateClaimID(claimID string) error {
	if len(claimID) == 0 || len(claimID) > state.MaxClaimIDLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidClaimID, len(claimID))
	}
	return nil
}

func (p *Processor) submitClaim(ctx context.Context, tx ledger.Tx, ix *instruction.SubmitClaim) error {
	room, err := p.loadRoom(ctx, tx, ix.Room)
	if err != nil {
		return err
	}
	if err := p.checkAcceptsEntries(room); err != nil {
		return err
	}
	if err := validateClaimID(ix.ClaimID); err != nil {
		return err
	}
	if len(ix.ProofHash) > state.MaxProofHashLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidProofHash, len(ix.ProofHash))
	}

	if _, err := p.expectPDA(ix.Participant, pda.ParticipantSeeds(ix.Room, ix.Claimant)); err != nil {
		return err
	}
	joined, err := p.exists(ctx, tx, ix.Participant)
	if err != nil {
		return err
	}
	if !joined {
		return fmt.Errorf("%w: %s has not joined %s", ErrNoParticipants, ix.Claimant, ix.Room)
	}

	bump, err := p.expectPDA(ix.Claim, pda.ClaimSeeds(ix.Room, ix.Claimant, ix.ClaimID))
	if err != nil {
		return err
	}
	if err := p.allocate(ctx, tx, ix.Claimant, ix.Claim, state.ClaimSpace, p.cfg.ProgramID); err != nil {
		return err
	}
	claim := &state.Claim{
		Room:      ix.Room,
		Claimant:  ix.Claimant,
		ClaimID:   ix.ClaimID,
		ProofHash: ix.ProofHash,
		CreatedAt: p.now(),
		Bump:      bump,
	}
	if err := p.store(ctx, tx, ix.Claim, claim, state.ClaimSpace); err != nil {
		return err
	}

	if room.PendingClaims == math.MaxUint32 {
		return ErrNumericalOverflow
	}
	room.PendingClaims++
	if room.Status == state.RoomStatusOpen {
		room.Status = state.RoomStatusInProgress
	}
	if err := p.store(ctx, tx, ix.Room, room, state.RoomSpace); err != nil {
		return err
	}
	p.log.Info("processor: claim submitted", "room", ix.Room, "claim", ix.Claim, "claimId", ix.ClaimID)
	return nil
}

// loadClaim loads a claim and checks that it belongs to room and claimant.
func (p *Processor) loadClaim(ctx context.Context, tx ledger.Tx, addr, room, claimant solana.PublicKey) (*state.Claim, error) {
	var claim state.Claim
	if err := p.load(ctx, tx, addr, &claim); err != nil {
		return nil, err
	}
	if err := p.verifyStored(addr, claim.Bump, pda.ClaimSeeds(claim.Room, claim.Claimant, claim.ClaimID)); err != nil {
		return nil, err
	}
	if !claim.Room.Equals(room) {
		return nil, fmt.Errorf("%w: claim room %s, got %s", ErrConstraintHasOne, claim.Room, room)
	}
	if !claim.Claimant.Equals(claimant) {
		return nil, fmt.Errorf("%w: claim claimant %s, got %s", ErrClaimantMismatch, claim.Claimant, claimant)
	}
	return &claim, nil
}

func (p *Processor) voteClaim(ctx context.Context, tx ledger.Tx, ix *instruction.VoteClaim) error {
	room, err := p.loadRoom(ctx, tx, ix.Room)
	if err != nil {
		return err
	}
	claim, err := p.loadClaim(ctx, tx, ix.Claim, ix.Room, ix.Claimant)
	if err != nil {
		return err
	}
	wl, err := p.loadWhitelist(ctx, tx, ix.Whitelist)
	if err != nil {
		return err
	}
	if !wl.Contains(ix.Voter) {
		return fmt.Errorf("%w: %s", ErrVoterNotWhitelisted, ix.Voter)
	}
	if claim.Resolved {
		return ErrAlreadyResolved
	}

	bump, err := p.expectPDA(ix.VoterRecord, pda.VoterRecordSeeds(ix.Claim, ix.Voter))
	if err != nil {
		return err
	}
	if err := p.allocate(ctx, tx, ix.Voter, ix.VoterRecord, state.VoterRecordSpace, p.cfg.ProgramID); err != nil {
		return err
	}
	record := &state.VoterRecord{Claim: ix.Claim, Voter: ix.Voter, Accept: ix.Accept, Bump: bump}
	if err := p.store(ctx, tx, ix.VoterRecord, record, state.VoterRecordSpace); err != nil {
		return err
	}

	// A claim joins the payout split on its first vote.
	if claim.VotesFor == 0 && claim.VotesAgainst == 0 {
		if room.VotedClaims == math.MaxUint32 {
			return ErrNumericalOverflow
		}
		room.VotedClaims++
		if err := p.store(ctx, tx, ix.Room, room, state.RoomSpace); err != nil {
			return err
		}
	}
	if ix.Accept {
		claim.VotesFor, err = checkedAdd(claim.VotesFor, 1)
	} else {
		claim.VotesAgainst, err = checkedAdd(claim.VotesAgainst, 1)
	}
	if err != nil {
		return err
	}
	if err := p.store(ctx, tx, ix.Claim, claim, state.ClaimSpace); err != nil {
		return err
	}
	metrics.VotesTotal.WithLabelValues(strconv.FormatBool(ix.Accept)).Inc()
	p.log.Info("processor: vote recorded", "claim", ix.Claim, "voter", ix.Voter, "accept", ix.Accept,
		"votesFor", claim.VotesFor, "votesAgainst", claim.VotesAgainst)
	return nil
}
