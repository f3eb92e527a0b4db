package processor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/metrics"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// CreateRoom creates a room and its vault and returns the room address.
func (p *Processor) CreateRoom(ctx context.Context, organizer solana.PublicKey, args instruction.CreateRoomArgs) (solana.PublicKey, error) {
	if err := validateRoomID(args.RoomID); err != nil {
		return solana.PublicKey{}, err
	}
	ix, err := instruction.NewCreateRoom(p.cfg.ProgramID, organizer, args)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := p.Execute(ctx, ix); err != nil {
		return solana.PublicKey{}, err
	}
	return ix.Room, nil
}

// DepositToVault moves amount lamports from payer into the room's vault.
func (p *Processor) DepositToVault(ctx context.Context, payer, room solana.PublicKey, amount uint64) error {
	ix, err := instruction.NewDepositToVault(p.cfg.ProgramID, payer, room, amount)
	if err != nil {
		return err
	}
	return p.Execute(ctx, ix)
}

// SettleRoom closes room after its deadline and returns the unpaid vault
// balance to the organizer.
func (p *Processor) SettleRoom(ctx context.Context, organizer, room solana.PublicKey) (uint64, error) {
	ix, err := instruction.NewSettleRoom(p.cfg.ProgramID, organizer, room)
	if err != nil {
		return 0, err
	}
	before, err := p.Balance(ctx, ix.Vault)
	if err != nil {
		return 0, err
	}
	if err := p.Execute(ctx, ix); err != nil {
		return 0, err
	}
	after, err := p.Balance(ctx, ix.Vault)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

func validateRoomID(roomID string) error {
	if len(roomID) == 0 || len(roomID) > state.MaxRoomIDLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidRoomID, len(roomID))
	}
	return nil
}

func (p *Processor) createRoom(ctx context.Context, tx ledger.Tx, ix *instruction.CreateRoom) error {
	if err := validateRoomID(ix.RoomID); err != nil {
		return err
	}
	if len(ix.RoomName) > state.MaxNameLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidName, len(ix.RoomName))
	}
	if ix.VoteThreshold < 1 || ix.VoteThreshold > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidVoteThreshold, ix.VoteThreshold)
	}
	now := p.now()
	if ix.DeadlineTs <= now {
		return fmt.Errorf("%w: %d <= %d", ErrInvalidDeadline, ix.DeadlineTs, now)
	}
	if ix.TotalPool == 0 {
		return ErrInvalidTotalPool
	}

	roomBump, err := p.expectPDA(ix.Room, pda.RoomSeeds(ix.Organizer, ix.RoomID))
	if err != nil {
		return err
	}
	if _, err := p.expectPDA(ix.Vault, pda.VaultSeeds(ix.Room)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVaultAccount, err)
	}

	if err := p.allocate(ctx, tx, ix.Organizer, ix.Room, state.RoomSpace, p.cfg.ProgramID); err != nil {
		return err
	}
	if err := p.allocate(ctx, tx, ix.Organizer, ix.Vault, 0, solana.SystemProgramID); err != nil {
		return err
	}

	room := &state.Room{
		Organizer:     ix.Organizer,
		RoomID:        ix.RoomID,
		Name:          ix.RoomName,
		Vault:         ix.Vault,
		TotalPool:     ix.TotalPool,
		Status:        state.RoomStatusOpen,
		CreatedAt:     now,
		DeadlineTs:    ix.DeadlineTs,
		VoteThreshold: ix.VoteThreshold,
		Bump:          roomBump,
	}
	if err := p.store(ctx, tx, ix.Room, room, state.RoomSpace); err != nil {
		return err
	}
	p.log.Info("processor: room created", "room", ix.Room, "roomId", ix.RoomID, "totalPool", ix.TotalPool)
	return nil
}

// loadRoom loads and verifies a room account.
func (p *Processor) loadRoom(ctx context.Context, tx ledger.Tx, addr solana.PublicKey) (*state.Room, error) {
	var room state.Room
	if err := p.load(ctx, tx, addr, &room); err != nil {
		return nil, err
	}
	if err := p.verifyStored(addr, room.Bump, pda.RoomSeeds(room.Organizer, room.RoomID)); err != nil {
		return nil, err
	}
	return &room, nil
}

// checkVault verifies vault is the vault recorded in and derived from room.
func (p *Processor) checkVault(roomAddr solana.PublicKey, room *state.Room, vault solana.PublicKey) error {
	if !room.Vault.Equals(vault) {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidVaultAccount, room.Vault, vault)
	}
	if _, err := p.expectPDA(vault, pda.VaultSeeds(roomAddr)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVaultAccount, err)
	}
	return nil
}

func (p *Processor) depositToVault(ctx context.Context, tx ledger.Tx, ix *instruction.DepositToVault) error {
	room, err := p.loadRoom(ctx, tx, ix.Room)
	if err != nil {
		return err
	}
	if err := p.checkVault(ix.Room, room, ix.Vault); err != nil {
		return err
	}
	if !room.Status.Active() {
		return fmt.Errorf("%w: %s", ErrRoomNotActive, room.Status)
	}
	if ix.Amount == 0 {
		return ErrInvalidAmount
	}
	if err := transfer(ctx, tx, ix.Payer, ix.Vault, ix.Amount); err != nil {
		return err
	}
	metrics.DepositLamportsTotal.Add(float64(ix.Amount))
	p.log.Info("processor: deposit", "room", ix.Room, "payer", ix.Payer, "amount", ix.Amount)
	return nil
}

func (p *Processor) settleRoom(ctx context.Context, tx ledger.Tx, ix *instruction.SettleRoom) error {
	room, err := p.loadRoom(ctx, tx, ix.Room)
	if err != nil {
		return err
	}
	if err := p.checkVault(ix.Room, room, ix.Vault); err != nil {
		return err
	}
	if !room.Organizer.Equals(ix.Organizer) {
		return fmt.Errorf("%w: room organizer %s, got %s", ErrUnauthorized, room.Organizer, ix.Organizer)
	}
	if room.Status == state.RoomStatusCancelled {
		return fmt.Errorf("%w: %s", ErrRoomNotActive, room.Status)
	}
	if now := p.now(); now <= room.DeadlineTs {
		return fmt.Errorf("%w: %d <= %d", ErrDeadlineNotReached, now, room.DeadlineTs)
	}
	// Claims without votes cannot be paid and do not hold the room open.
	if room.VotedClaims > 0 {
		return fmt.Errorf("%w: %d", ErrClaimsPending, room.VotedClaims)
	}

	refund, err := spendable(ctx, tx, ix.Vault)
	if err != nil {
		return err
	}
	if err := transfer(ctx, tx, ix.Vault, ix.Organizer, refund); err != nil {
		return err
	}
	room.Status = state.RoomStatusResolved
	if err := p.store(ctx, tx, ix.Room, room, state.RoomSpace); err != nil {
		return err
	}
	metrics.RefundLamportsTotal.Add(float64(refund))
	p.log.Info("processor: room settled", "room", ix.Room, "refund", refund, "distributed", room.Distributed,
		"unresolvedClaims", room.PendingClaims)
	return nil
}
