package pda

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the deployed address of the trustplay program.
var ProgramID = solana.MustPublicKeyFromBase58("5iKkxpwybyU7ReYKvwwzMtqw5zP9VFTe52KhvXuQSNAe")

var (
	SeedRoom        = []byte("room")
	SeedVault       = []byte("vault")
	SeedParticipant = []byte("participant")
	SeedClaim       = []byte("claim")
	SeedWhitelist   = []byte("whitelist")
	SeedVoter       = []byte("voter")
	SeedReputation  = []byte("rep")
)

// ErrSeedTooLong is returned when a caller-supplied seed exceeds the 32 byte
// limit enforced by the runtime.
var ErrSeedTooLong = errors.New("seed exceeds 32 bytes")

// ErrAddressMismatch is returned by Verify when the re-derived address does
// not match.
var ErrAddressMismatch = errors.New("derived address mismatch")

func checkSeed(seed []byte) error {
	if len(seed) > solana.MaxSeedLength {
		return fmt.Errorf("%w: %d", ErrSeedTooLong, len(seed))
	}
	return nil
}

func DeriveRoom(programID, organizer solana.PublicKey, roomID string) (solana.PublicKey, uint8, error) {
	if err := checkSeed([]byte(roomID)); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.FindProgramAddress(RoomSeeds(organizer, roomID), programID)
}

func DeriveVault(programID, room solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(VaultSeeds(room), programID)
}

func DeriveParticipant(programID, room, player solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(ParticipantSeeds(room, player), programID)
}

func DeriveClaim(programID, room, claimant solana.PublicKey, claimID string) (solana.PublicKey, uint8, error) {
	if err := checkSeed([]byte(claimID)); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.FindProgramAddress(ClaimSeeds(room, claimant, claimID), programID)
}

func DeriveWhitelist(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(WhitelistSeeds(), programID)
}

func DeriveVoterRecord(programID, claim, voter solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(VoterRecordSeeds(claim, voter), programID)
}

func DeriveReputation(programID, player solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(ReputationSeeds(player), programID)
}

func RoomSeeds(organizer solana.PublicKey, roomID string) [][]byte {
	return [][]byte{SeedRoom, organizer.Bytes(), []byte(roomID)}
}

func VaultSeeds(room solana.PublicKey) [][]byte {
	return [][]byte{SeedVault, room.Bytes()}
}

func ParticipantSeeds(room, player solana.PublicKey) [][]byte {
	return [][]byte{SeedParticipant, room.Bytes(), player.Bytes()}
}

func ClaimSeeds(room, claimant solana.PublicKey, claimID string) [][]byte {
	return [][]byte{SeedClaim, room.Bytes(), claimant.Bytes(), []byte(claimID)}
}

func WhitelistSeeds() [][]byte {
	return [][]byte{SeedWhitelist}
}

func VoterRecordSeeds(claim, voter solana.PublicKey) [][]byte {
	return [][]byte{SeedVoter, claim.Bytes(), voter.Bytes()}
}

func ReputationSeeds(player solana.PublicKey) [][]byte {
	return [][]byte{SeedReputation, player.Bytes()}
}

// Verify re-derives the address from seeds plus the stored bump and checks it
// matches address.
func Verify(programID, address solana.PublicKey, bump uint8, seeds ...[]byte) error {
	withBump := make([][]byte, 0, len(seeds)+1)
	withBump = append(withBump, seeds...)
	withBump = append(withBump, []byte{bump})
	derived, err := solana.CreateProgramAddress(withBump, programID)
	if err != nil {
		return fmt.Errorf("failed to create program address: %w", err)
	}
	if !derived.Equals(address) {
		return fmt.Errorf("%w: expected %s, got %s", ErrAddressMismatch, derived, address)
	}
	return nil
}
