package state

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrAccountDataTooSmall   = errors.New("account data too small")
	ErrMalformedAccount      = errors.New("malformed account data")
	ErrUnknownKind           = errors.New("unknown account kind")
)

var (
	WhitelistDiscriminator   = bin.SighashTypeID(bin.SIGHASH_ACCOUNT_NAMESPACE, "Whitelist")
	RoomDiscriminator        = bin.SighashTypeID(bin.SIGHASH_ACCOUNT_NAMESPACE, "Room")
	ParticipantDiscriminator = bin.SighashTypeID(bin.SIGHASH_ACCOUNT_NAMESPACE, "Participant")
	ClaimDiscriminator       = bin.SighashTypeID(bin.SIGHASH_ACCOUNT_NAMESPACE, "Claim")
	VoterRecordDiscriminator = bin.SighashTypeID(bin.SIGHASH_ACCOUNT_NAMESPACE, "VoterRecord")
	ReputationDiscriminator  = bin.SighashTypeID(bin.SIGHASH_ACCOUNT_NAMESPACE, "Reputation")
)

// Account is a program-owned account body.
type Account interface {
	Discriminator() bin.TypeID
	bin.BinaryMarshaler
	bin.BinaryUnmarshaler
}

func (*Whitelist) Discriminator() bin.TypeID   { return WhitelistDiscriminator }
func (*Room) Discriminator() bin.TypeID        { return RoomDiscriminator }
func (*Participant) Discriminator() bin.TypeID { return ParticipantDiscriminator }
func (*Claim) Discriminator() bin.TypeID       { return ClaimDiscriminator }
func (*VoterRecord) Discriminator() bin.TypeID { return VoterRecordDiscriminator }
func (*Reputation) Discriminator() bin.TypeID  { return ReputationDiscriminator }

// Encode serializes acct behind its discriminator. When space is larger than
// the encoded length the result is zero-padded to space bytes.
func Encode(acct Account, space int) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	disc := acct.Discriminator()
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, err
	}
	if err := acct.MarshalWithEncoder(enc); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if space > len(data) {
		padded := make([]byte, space)
		copy(padded, data)
		return padded, nil
	}
	return data, nil
}

// Decode checks the discriminator of data and decodes the body into acct.
func Decode(data []byte, acct Account) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooSmall, len(data))
	}
	disc := acct.Discriminator()
	if !disc.Equal(data[:DiscriminatorSize]) {
		return ErrDiscriminatorMismatch
	}
	if err := acct.UnmarshalWithDecoder(bin.NewBorshDecoder(data[DiscriminatorSize:])); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedAccount, err)
	}
	return nil
}

// Kind names an account type in API queries and CLI output.
type Kind string

const (
	KindWhitelist   Kind = "whitelist"
	KindRoom        Kind = "room"
	KindParticipant Kind = "participant"
	KindClaim       Kind = "claim"
	KindVoterRecord Kind = "voter"
	KindReputation  Kind = "reputation"
)

// Kinds lists all program account kinds.
var Kinds = []Kind{KindWhitelist, KindRoom, KindParticipant, KindClaim, KindVoterRecord, KindReputation}

// New returns an empty account for kind.
func (k Kind) New() (Account, error) {
	switch k {
	case KindWhitelist:
		return &Whitelist{}, nil
	case KindRoom:
		return &Room{}, nil
	case KindParticipant:
		return &Participant{}, nil
	case KindClaim:
		return &Claim{}, nil
	case KindVoterRecord:
		return &VoterRecord{}, nil
	case KindReputation:
		return &Reputation{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
}

// Discriminator returns the 8-byte prefix of accounts of kind k.
func (k Kind) Discriminator() (bin.TypeID, error) {
	acct, err := k.New()
	if err != nil {
		return bin.TypeID{}, err
	}
	return acct.Discriminator(), nil
}

// DecodeAny identifies the account type from its discriminator and decodes it.
func DecodeAny(data []byte) (Kind, Account, error) {
	if len(data) < DiscriminatorSize {
		return "", nil, fmt.Errorf("%w: %d bytes", ErrAccountDataTooSmall, len(data))
	}
	for _, k := range Kinds {
		acct, _ := k.New()
		disc := acct.Discriminator()
		if !disc.Equal(data[:DiscriminatorSize]) {
			continue
		}
		if err := Decode(data, acct); err != nil {
			return k, nil, err
		}
		return k, acct, nil
	}
	return "", nil, ErrDiscriminatorMismatch
}

func (w Whitelist) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(w.Authority[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(w.Addresses)), bin.LE); err != nil {
		return err
	}
	for _, a := range w.Addresses {
		if err := enc.WriteBytes(a[:], false); err != nil {
			return err
		}
	}
	return enc.WriteUint8(w.Bump)
}

func (w *Whitelist) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if w.Authority, err = readPublicKey(dec); err != nil {
		return err
	}
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if int(n)*solana.PublicKeyLength > dec.Remaining() {
		return fmt.Errorf("whitelist length %d exceeds account data", n)
	}
	w.Addresses = make([]solana.PublicKey, n)
	for i := range w.Addresses {
		if w.Addresses[i], err = readPublicKey(dec); err != nil {
			return err
		}
	}
	w.Bump, err = dec.ReadUint8()
	return err
}

func (r Room) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeAll(
		func() error { return enc.WriteBytes(r.Organizer[:], false) },
		func() error { return enc.WriteString(r.RoomID) },
		func() error { return enc.WriteString(r.Name) },
		func() error { return enc.WriteBytes(r.Vault[:], false) },
		func() error { return enc.WriteUint64(r.TotalPool, bin.LE) },
		func() error { return enc.WriteUint64(r.Distributed, bin.LE) },
		func() error { return enc.WriteUint32(r.PendingClaims, bin.LE) },
		func() error { return enc.WriteUint32(r.VotedClaims, bin.LE) },
		func() error { return enc.WriteUint8(uint8(r.Status)) },
		func() error { return enc.WriteInt64(r.CreatedAt, bin.LE) },
		func() error { return enc.WriteInt64(r.DeadlineTs, bin.LE) },
		func() error { return enc.WriteUint8(r.VoteThreshold) },
		func() error { return enc.WriteUint8(r.Bump) },
	)
}

func (r *Room) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if r.Organizer, err = readPublicKey(dec); err != nil {
		return err
	}
	if r.RoomID, err = dec.ReadString(); err != nil {
		return err
	}
	if r.Name, err = dec.ReadString(); err != nil {
		return err
	}
	if r.Vault, err = readPublicKey(dec); err != nil {
		return err
	}
	if r.TotalPool, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if r.Distributed, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if r.PendingClaims, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	if r.VotedClaims, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	status, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	r.Status = RoomStatus(status)
	if !r.Status.Valid() {
		return fmt.Errorf("invalid room status tag %d", status)
	}
	if r.CreatedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	if r.DeadlineTs, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	if r.VoteThreshold, err = dec.ReadUint8(); err != nil {
		return err
	}
	r.Bump, err = dec.ReadUint8()
	return err
}

func (p Participant) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeAll(
		func() error { return enc.WriteBytes(p.Room[:], false) },
		func() error { return enc.WriteBytes(p.Player[:], false) },
		func() error { return enc.WriteInt64(p.JoinedAt, bin.LE) },
		func() error { return enc.WriteUint8(p.Bump) },
	)
}

func (p *Participant) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if p.Room, err = readPublicKey(dec); err != nil {
		return err
	}
	if p.Player, err = readPublicKey(dec); err != nil {
		return err
	}
	if p.JoinedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	p.Bump, err = dec.ReadUint8()
	return err
}

func (c Claim) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeAll(
		func() error { return enc.WriteBytes(c.Room[:], false) },
		func() error { return enc.WriteBytes(c.Claimant[:], false) },
		func() error { return enc.WriteString(c.ClaimID) },
		func() error { return enc.WriteString(c.ProofHash) },
		func() error { return enc.WriteUint64(c.VotesFor, bin.LE) },
		func() error { return enc.WriteUint64(c.VotesAgainst, bin.LE) },
		func() error { return enc.WriteBool(c.Resolved) },
		func() error { return enc.WriteBool(c.Approved) },
		func() error { return enc.WriteUint64(c.Reward, bin.LE) },
		func() error { return enc.WriteInt64(c.CreatedAt, bin.LE) },
		func() error { return enc.WriteOption(c.ResolvedAt != nil) },
		func() error {
			if c.ResolvedAt == nil {
				return nil
			}
			return enc.WriteInt64(*c.ResolvedAt, bin.LE)
		},
		func() error { return enc.WriteUint8(c.Bump) },
	)
}

func (c *Claim) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if c.Room, err = readPublicKey(dec); err != nil {
		return err
	}
	if c.Claimant, err = readPublicKey(dec); err != nil {
		return err
	}
	if c.ClaimID, err = dec.ReadString(); err != nil {
		return err
	}
	if c.ProofHash, err = dec.ReadString(); err != nil {
		return err
	}
	if c.VotesFor, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if c.VotesAgainst, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if c.Resolved, err = dec.ReadBool(); err != nil {
		return err
	}
	if c.Approved, err = dec.ReadBool(); err != nil {
		return err
	}
	if c.Reward, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if c.CreatedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	some, err := dec.ReadOption()
	if err != nil {
		return err
	}
	c.ResolvedAt = nil
	if some {
		ts, err := dec.ReadInt64(bin.LE)
		if err != nil {
			return err
		}
		c.ResolvedAt = &ts
	}
	c.Bump, err = dec.ReadUint8()
	return err
}

func (v VoterRecord) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeAll(
		func() error { return enc.WriteBytes(v.Claim[:], false) },
		func() error { return enc.WriteBytes(v.Voter[:], false) },
		func() error { return enc.WriteBool(v.Accept) },
		func() error { return enc.WriteUint8(v.Bump) },
	)
}

func (v *VoterRecord) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if v.Claim, err = readPublicKey(dec); err != nil {
		return err
	}
	if v.Voter, err = readPublicKey(dec); err != nil {
		return err
	}
	if v.Accept, err = dec.ReadBool(); err != nil {
		return err
	}
	v.Bump, err = dec.ReadUint8()
	return err
}

func (r Reputation) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeAll(
		func() error { return enc.WriteBytes(r.Player[:], false) },
		func() error { return enc.WriteUint64(r.Score, bin.LE) },
		func() error { return enc.WriteUint32(r.Wins, bin.LE) },
		func() error { return enc.WriteBool(r.Initialized) },
		func() error { return enc.WriteUint8(r.Bump) },
	)
}

func (r *Reputation) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if r.Player, err = readPublicKey(dec); err != nil {
		return err
	}
	if r.Score, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if r.Wins, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	if r.Initialized, err = dec.ReadBool(); err != nil {
		return err
	}
	r.Bump, err = dec.ReadUint8()
	return err
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func writeAll(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
