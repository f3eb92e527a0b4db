package instruction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/pda"
)

// CreateRoomArgs are the caller-supplied parameters of a new room.
type CreateRoomArgs struct {
	RoomID        string
	Name          string
	TotalPool     uint64
	DeadlineTs    int64
	VoteThreshold uint8
}

func NewInitializeWhitelist(programID, organizer solana.PublicKey) (*InitializeWhitelist, error) {
	whitelist, _, err := pda.DeriveWhitelist(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive whitelist: %w", err)
	}
	return &InitializeWhitelist{Organizer: organizer, Whitelist: whitelist}, nil
}

func NewAddToWhitelist(programID, organizer, address solana.PublicKey) (*AddToWhitelist, error) {
	whitelist, _, err := pda.DeriveWhitelist(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive whitelist: %w", err)
	}
	return &AddToWhitelist{Address: address, Organizer: organizer, Whitelist: whitelist}, nil
}

func NewRemoveFromWhitelist(programID, organizer, address solana.PublicKey) (*RemoveFromWhitelist, error) {
	whitelist, _, err := pda.DeriveWhitelist(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive whitelist: %w", err)
	}
	return &RemoveFromWhitelist{Address: address, Organizer: organizer, Whitelist: whitelist}, nil
}

func NewCreateRoom(programID, organizer solana.PublicKey, args CreateRoomArgs) (*CreateRoom, error) {
	room, _, err := pda.DeriveRoom(programID, organizer, args.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive room: %w", err)
	}
	vault, _, err := pda.DeriveVault(programID, room)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault: %w", err)
	}
	return &CreateRoom{
		RoomID:        args.RoomID,
		RoomName:      args.Name,
		TotalPool:     args.TotalPool,
		DeadlineTs:    args.DeadlineTs,
		VoteThreshold: args.VoteThreshold,
		Room:          room,
		Vault:         vault,
		Organizer:     organizer,
	}, nil
}

func NewDepositToVault(programID, payer, room solana.PublicKey, amount uint64) (*DepositToVault, error) {
	vault, _, err := pda.DeriveVault(programID, room)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault: %w", err)
	}
	return &DepositToVault{Amount: amount, Room: room, Vault: vault, Payer: payer}, nil
}

func NewJoinRoom(programID, player, room solana.PublicKey) (*JoinRoom, error) {
	participant, _, err := pda.DeriveParticipant(programID, room, player)
	if err != nil {
		return nil, fmt.Errorf("failed to derive participant: %w", err)
	}
	return &JoinRoom{Room: room, Participant: participant, Player: player}, nil
}

func NewSubmitClaim(programID, claimant, room solana.PublicKey, claimID, proofHash string) (*SubmitClaim, error) {
	participant, _, err := pda.DeriveParticipant(programID, room, claimant)
	if err != nil {
		return nil, fmt.Errorf("failed to derive participant: %w", err)
	}
	claim, _, err := pda.DeriveClaim(programID, room, claimant, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive claim: %w", err)
	}
	return &SubmitClaim{
		ClaimID:     claimID,
		ProofHash:   proofHash,
		Room:        room,
		Participant: participant,
		Claim:       claim,
		Claimant:    claimant,
	}, nil
}

func NewVoteClaim(programID, voter, room, claim, claimant solana.PublicKey, accept bool) (*VoteClaim, error) {
	whitelist, _, err := pda.DeriveWhitelist(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive whitelist: %w", err)
	}
	record, _, err := pda.DeriveVoterRecord(programID, claim, voter)
	if err != nil {
		return nil, fmt.Errorf("failed to derive voter record: %w", err)
	}
	return &VoteClaim{
		Accept:      accept,
		Room:        room,
		Claim:       claim,
		Voter:       voter,
		Claimant:    claimant,
		Whitelist:   whitelist,
		VoterRecord: record,
	}, nil
}

func NewResolveClaim(programID, claimant, room, claim solana.PublicKey) (*ResolveClaim, error) {
	vault, _, err := pda.DeriveVault(programID, room)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault: %w", err)
	}
	reputation, _, err := pda.DeriveReputation(programID, claimant)
	if err != nil {
		return nil, fmt.Errorf("failed to derive reputation: %w", err)
	}
	return &ResolveClaim{
		Room:       room,
		Vault:      vault,
		Claim:      claim,
		Claimant:   claimant,
		Reputation: reputation,
	}, nil
}

func NewSettleRoom(programID, organizer, room solana.PublicKey) (*SettleRoom, error) {
	vault, _, err := pda.DeriveVault(programID, room)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault: %w", err)
	}
	return &SettleRoom{Room: room, Vault: vault, Organizer: organizer}, nil
}
