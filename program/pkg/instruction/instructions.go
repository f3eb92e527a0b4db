package instruction

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type InitializeWhitelist struct {
	Organizer solana.PublicKey
	Whitelist solana.PublicKey
}

func (*InitializeWhitelist) Name() string { return "initialize_whitelist" }

func (ix *InitializeWhitelist) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Organizer).WRITE().SIGNER(),
		solana.Meta(ix.Whitelist).WRITE(),
		systemProgram(),
	}
}

func (ix *InitializeWhitelist) encodeArgs(*bin.Encoder) error { return nil }
func (ix *InitializeWhitelist) decodeArgs(*bin.Decoder) error { return nil }
func (ix *InitializeWhitelist) bindAccounts(k []solana.PublicKey) {
	ix.Organizer, ix.Whitelist = k[0], k[1]
}

type AddToWhitelist struct {
	Address solana.PublicKey

	Organizer solana.PublicKey
	Whitelist solana.PublicKey
}

func (*AddToWhitelist) Name() string { return "add_to_whitelist" }

func (ix *AddToWhitelist) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Organizer).WRITE().SIGNER(),
		solana.Meta(ix.Whitelist).WRITE(),
		systemProgram(),
	}
}

func (ix *AddToWhitelist) encodeArgs(enc *bin.Encoder) error {
	return enc.WriteBytes(ix.Address[:], false)
}

func (ix *AddToWhitelist) decodeArgs(dec *bin.Decoder) (err error) {
	ix.Address, err = readPublicKey(dec)
	return err
}

func (ix *AddToWhitelist) bindAccounts(k []solana.PublicKey) {
	ix.Organizer, ix.Whitelist = k[0], k[1]
}

type RemoveFromWhitelist struct {
	Address solana.PublicKey

	Organizer solana.PublicKey
	Whitelist solana.PublicKey
}

func (*RemoveFromWhitelist) Name() string { return "remove_from_whitelist" }

func (ix *RemoveFromWhitelist) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Organizer).WRITE().SIGNER(),
		solana.Meta(ix.Whitelist).WRITE(),
		systemProgram(),
	}
}

func (ix *RemoveFromWhitelist) encodeArgs(enc *bin.Encoder) error {
	return enc.WriteBytes(ix.Address[:], false)
}

func (ix *RemoveFromWhitelist) decodeArgs(dec *bin.Decoder) (err error) {
	ix.Address, err = readPublicKey(dec)
	return err
}

func (ix *RemoveFromWhitelist) bindAccounts(k []solana.PublicKey) {
	ix.Organizer, ix.Whitelist = k[0], k[1]
}

type CreateRoom struct {
	RoomID        string
	RoomName      string
	TotalPool     uint64
	DeadlineTs    int64
	VoteThreshold uint8

	Room      solana.PublicKey
	Vault     solana.PublicKey
	Organizer solana.PublicKey
}

func (*CreateRoom) Name() string { return "create_room" }

func (ix *CreateRoom) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room).WRITE(),
		solana.Meta(ix.Vault).WRITE(),
		solana.Meta(ix.Organizer).WRITE().SIGNER(),
		systemProgram(),
	}
}

func (ix *CreateRoom) encodeArgs(enc *bin.Encoder) error {
	if err := enc.WriteString(ix.RoomID); err != nil {
		return err
	}
	if err := enc.WriteString(ix.RoomName); err != nil {
		return err
	}
	if err := enc.WriteUint64(ix.TotalPool, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteInt64(ix.DeadlineTs, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(ix.VoteThreshold)
}

func (ix *CreateRoom) decodeArgs(dec *bin.Decoder) (err error) {
	if ix.RoomID, err = dec.ReadString(); err != nil {
		return err
	}
	if ix.RoomName, err = dec.ReadString(); err != nil {
		return err
	}
	if ix.TotalPool, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if ix.DeadlineTs, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	ix.VoteThreshold, err = dec.ReadUint8()
	return err
}

func (ix *CreateRoom) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Vault, ix.Organizer = k[0], k[1], k[2]
}

type DepositToVault struct {
	Amount uint64

	Room  solana.PublicKey
	Vault solana.PublicKey
	Payer solana.PublicKey
}

func (*DepositToVault) Name() string { return "deposit_to_vault" }

func (ix *DepositToVault) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room),
		solana.Meta(ix.Vault).WRITE(),
		solana.Meta(ix.Payer).WRITE().SIGNER(),
		systemProgram(),
	}
}

func (ix *DepositToVault) encodeArgs(enc *bin.Encoder) error {
	return enc.WriteUint64(ix.Amount, bin.LE)
}

func (ix *DepositToVault) decodeArgs(dec *bin.Decoder) (err error) {
	ix.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

func (ix *DepositToVault) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Vault, ix.Payer = k[0], k[1], k[2]
}

type JoinRoom struct {
	Room        solana.PublicKey
	Participant solana.PublicKey
	Player      solana.PublicKey
}

func (*JoinRoom) Name() string { return "join_room" }

func (ix *JoinRoom) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room),
		solana.Meta(ix.Participant).WRITE(),
		solana.Meta(ix.Player).WRITE().SIGNER(),
		systemProgram(),
	}
}

func (ix *JoinRoom) encodeArgs(*bin.Encoder) error { return nil }
func (ix *JoinRoom) decodeArgs(*bin.Decoder) error { return nil }
func (ix *JoinRoom) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Participant, ix.Player = k[0], k[1], k[2]
}

type SubmitClaim struct {
	ClaimID   string
	ProofHash string

	Room        solana.PublicKey
	Participant solana.PublicKey
	Claim       solana.PublicKey
	Claimant    solana.PublicKey
}

func (*SubmitClaim) Name() string { return "submit_claim" }

func (ix *SubmitClaim) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room).WRITE(),
		solana.Meta(ix.Participant),
		solana.Meta(ix.Claim).WRITE(),
		solana.Meta(ix.Claimant).WRITE().SIGNER(),
		systemProgram(),
	}
}

func (ix *SubmitClaim) encodeArgs(enc *bin.Encoder) error {
	if err := enc.WriteString(ix.ClaimID); err != nil {
		return err
	}
	return enc.WriteString(ix.ProofHash)
}

func (ix *SubmitClaim) decodeArgs(dec *bin.Decoder) (err error) {
	if ix.ClaimID, err = dec.ReadString(); err != nil {
		return err
	}
	ix.ProofHash, err = dec.ReadString()
	return err
}

func (ix *SubmitClaim) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Participant, ix.Claim, ix.Claimant = k[0], k[1], k[2], k[3]
}

type VoteClaim struct {
	Accept bool

	Room        solana.PublicKey
	Claim       solana.PublicKey
	Voter       solana.PublicKey
	Claimant    solana.PublicKey
	Whitelist   solana.PublicKey
	VoterRecord solana.PublicKey
}

func (*VoteClaim) Name() string { return "vote_claim" }

func (ix *VoteClaim) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room).WRITE(),
		solana.Meta(ix.Claim).WRITE(),
		solana.Meta(ix.Voter).WRITE().SIGNER(),
		solana.Meta(ix.Claimant),
		solana.Meta(ix.Whitelist),
		solana.Meta(ix.VoterRecord).WRITE(),
		systemProgram(),
	}
}

func (ix *VoteClaim) encodeArgs(enc *bin.Encoder) error {
	return enc.WriteBool(ix.Accept)
}

func (ix *VoteClaim) decodeArgs(dec *bin.Decoder) (err error) {
	ix.Accept, err = dec.ReadBool()
	return err
}

func (ix *VoteClaim) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Claim, ix.Voter, ix.Claimant, ix.Whitelist, ix.VoterRecord = k[0], k[1], k[2], k[3], k[4], k[5]
}

type ResolveClaim struct {
	Room       solana.PublicKey
	Vault      solana.PublicKey
	Claim      solana.PublicKey
	Claimant   solana.PublicKey
	Reputation solana.PublicKey
}

func (*ResolveClaim) Name() string { return "resolve_claim" }

func (ix *ResolveClaim) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room).WRITE(),
		solana.Meta(ix.Vault).WRITE(),
		solana.Meta(ix.Claim).WRITE(),
		solana.Meta(ix.Claimant).WRITE().SIGNER(),
		solana.Meta(ix.Reputation).WRITE(),
		systemProgram(),
	}
}

func (ix *ResolveClaim) encodeArgs(*bin.Encoder) error { return nil }
func (ix *ResolveClaim) decodeArgs(*bin.Decoder) error { return nil }
func (ix *ResolveClaim) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Vault, ix.Claim, ix.Claimant, ix.Reputation = k[0], k[1], k[2], k[3], k[4]
}

// SettleRoom closes a room after its deadline and returns the unclaimed
// vault balance to the organizer.
type SettleRoom struct {
	Room      solana.PublicKey
	Vault     solana.PublicKey
	Organizer solana.PublicKey
}

func (*SettleRoom) Name() string { return "settle_room" }

func (ix *SettleRoom) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(ix.Room).WRITE(),
		solana.Meta(ix.Vault).WRITE(),
		solana.Meta(ix.Organizer).WRITE().SIGNER(),
		systemProgram(),
	}
}

func (ix *SettleRoom) encodeArgs(*bin.Encoder) error { return nil }
func (ix *SettleRoom) decodeArgs(*bin.Decoder) error { return nil }
func (ix *SettleRoom) bindAccounts(k []solana.PublicKey) {
	ix.Room, ix.Vault, ix.Organizer = k[0], k[1], k[2]
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}
