package state

import (
	"github.com/gagliardetto/solana-go"
)

// Whitelist is the global registry of addresses allowed to vote.
// On-chain size: 8 (discriminator) + 32 + 4 + 32*len(Addresses) + 1 bytes.
type Whitelist struct {
	Authority solana.PublicKey   `json:"authority"` // 32 bytes
	Addresses []solana.PublicKey `json:"addresses"` // 4 + 32*n bytes
	Bump      uint8              `json:"bump"`      // 1 byte
}

// Room is a prize-pool escrow.
// On-chain size: 8 (discriminator) + 211 = 219 bytes. PendingClaims counts
// every unresolved claim, VotedClaims only those with at least one vote.
type Room struct {
	Organizer     solana.PublicKey `json:"organizer"`     // 32 bytes
	RoomID        string           `json:"roomId"`        // 4 + 32 bytes
	Name          string           `json:"name"`          // 4 + 64 bytes
	Vault         solana.PublicKey `json:"vault"`         // 32 bytes
	TotalPool     uint64           `json:"totalPool"`     // 8 bytes
	Distributed   uint64           `json:"distributed"`   // 8 bytes
	PendingClaims uint32           `json:"pendingClaims"` // 4 bytes
	VotedClaims   uint32           `json:"votedClaims"`   // 4 bytes
	Status        RoomStatus       `json:"status"`        // 1 byte
	CreatedAt     int64            `json:"createdAt"`     // 8 bytes
	DeadlineTs    int64            `json:"deadlineTs"`    // 8 bytes
	VoteThreshold uint8            `json:"voteThreshold"` // 1 byte
	Bump          uint8            `json:"bump"`          // 1 byte
}

// Participant records that a player joined a room.
// On-chain size: 8 (discriminator) + 73 = 81 bytes.
type Participant struct {
	Room     solana.PublicKey `json:"room"`     // 32 bytes
	Player   solana.PublicKey `json:"player"`   // 32 bytes
	JoinedAt int64            `json:"joinedAt"` // 8 bytes
	Bump     uint8            `json:"bump"`     // 1 byte
}

// Claim is an achievement claim awaiting votes.
// On-chain size: 8 (discriminator) + 198 = 206 bytes.
type Claim struct {
	Room         solana.PublicKey `json:"room"`         // 32 bytes
	Claimant     solana.PublicKey `json:"claimant"`     // 32 bytes
	ClaimID      string           `json:"claimId"`      // 4 + 32 bytes
	ProofHash    string           `json:"proofHash"`    // 4 + 50 bytes
	VotesFor     uint64           `json:"votesFor"`     // 8 bytes
	VotesAgainst uint64           `json:"votesAgainst"` // 8 bytes
	Resolved     bool             `json:"resolved"`     // 1 byte
	Approved     bool             `json:"approved"`     // 1 byte
	Reward       uint64           `json:"reward"`       // 8 bytes
	CreatedAt    int64            `json:"createdAt"`    // 8 bytes
	ResolvedAt   *int64           `json:"resolvedAt"`   // 1 + 8 bytes
	Bump         uint8            `json:"bump"`         // 1 byte
}

// VoterRecord marks that a voter has voted on a claim.
// On-chain size: 8 (discriminator) + 66 = 74 bytes.
type VoterRecord struct {
	Claim  solana.PublicKey `json:"claim"`  // 32 bytes
	Voter  solana.PublicKey `json:"voter"`  // 32 bytes
	Accept bool             `json:"accept"` // 1 byte
	Bump   uint8            `json:"bump"`   // 1 byte
}

// Reputation accumulates a player's approved claims.
// On-chain size: 8 (discriminator) + 46 = 54 bytes.
type Reputation struct {
	Player      solana.PublicKey `json:"player"`      // 32 bytes
	Score       uint64           `json:"score"`       // 8 bytes
	Wins        uint32           `json:"wins"`        // 4 bytes
	Initialized bool             `json:"initialized"` // 1 byte
	Bump        uint8            `json:"bump"`        // 1 byte
}

const (
	MaxRoomIDLen    = 32
	MaxNameLen      = 64
	MaxClaimIDLen   = 32
	MaxProofHashLen = 50

	DiscriminatorSize = 8

	RoomSpace        = DiscriminatorSize + 32 + (4 + MaxRoomIDLen) + (4 + MaxNameLen) + 32 + 8 + 8 + 4 + 4 + 1 + 8 + 8 + 1 + 1
	ParticipantSpace = DiscriminatorSize + 32 + 32 + 8 + 1
	ClaimSpace       = DiscriminatorSize + 32 + 32 + (4 + MaxClaimIDLen) + (4 + MaxProofHashLen) + 8 + 8 + 1 + 1 + 8 + 8 + (1 + 8) + 1
	VoterRecordSpace = DiscriminatorSize + 32 + 32 + 1 + 1
	ReputationSpace  = DiscriminatorSize + 32 + 8 + 4 + 1 + 1
)

// WhitelistSpace returns the account size for a whitelist holding n addresses.
func WhitelistSpace(n int) int {
	return DiscriminatorSize + 32 + 4 + 32*n + 1
}

// Contains reports whether addr is whitelisted.
func (w *Whitelist) Contains(addr solana.PublicKey) bool {
	return w.IndexOf(addr) >= 0
}

// IndexOf returns the position of addr or -1.
func (w *Whitelist) IndexOf(addr solana.PublicKey) int {
	for i, a := range w.Addresses {
		if a.Equals(addr) {
			return i
		}
	}
	return -1
}

// Memcmp offsets of fixed-position fields, for program account filters.
const (
	OffsetRoomOrganizer      = DiscriminatorSize
	OffsetParticipantRoom    = DiscriminatorSize
	OffsetParticipantPlayer  = DiscriminatorSize + 32
	OffsetClaimRoom          = DiscriminatorSize
	OffsetClaimClaimant      = DiscriminatorSize + 32
	OffsetVoterRecordClaim   = DiscriminatorSize
	OffsetVoterRecordVoter   = DiscriminatorSize + 32
	OffsetReputationPlayer   = DiscriminatorSize
	OffsetWhitelistAuthority = DiscriminatorSize
)
