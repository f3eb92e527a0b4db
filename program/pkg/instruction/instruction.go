package instruction

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrUnknownInstruction   = errors.New("unknown instruction")
	ErrMalformedInstruction = errors.New("malformed instruction data")
	ErrNotEnoughAccounts    = errors.New("not enough account keys")
	ErrMissingSigner        = errors.New("account must sign")
	ErrNotWritable          = errors.New("account must be writable")
	ErrInvalidProgramID     = errors.New("invalid program account")
)

// Instruction is one of the program's instructions with its arguments and
// the accounts it operates on.
type Instruction interface {
	// Name is the snake_case instruction name used for the discriminator.
	Name() string
	// Metas returns the ordered account list with signer and writable flags.
	Metas() solana.AccountMetaSlice

	encodeArgs(enc *bin.Encoder) error
	decodeArgs(dec *bin.Decoder) error
	bindAccounts(keys []solana.PublicKey)
}

var registry = []func() Instruction{
	func() Instruction { return &InitializeWhitelist{} },
	func() Instruction { return &AddToWhitelist{} },
	func() Instruction { return &RemoveFromWhitelist{} },
	func() Instruction { return &CreateRoom{} },
	func() Instruction { return &DepositToVault{} },
	func() Instruction { return &JoinRoom{} },
	func() Instruction { return &SubmitClaim{} },
	func() Instruction { return &VoteClaim{} },
	func() Instruction { return &ResolveClaim{} },
	func() Instruction { return &SettleRoom{} },
}

// Discriminator returns the 8-byte Anchor prefix for the named instruction.
func Discriminator(name string) bin.TypeID {
	return bin.SighashTypeID(bin.SIGHASH_GLOBAL_NAMESPACE, name)
}

// Encode serializes ix as discriminator followed by its Borsh arguments.
func Encode(ix Instruction) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	disc := Discriminator(ix.Name())
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, err
	}
	if err := ix.encodeArgs(enc); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ix.Name(), err)
	}
	return buf.Bytes(), nil
}

// Build encodes ix as a transaction instruction for programID.
func Build(programID solana.PublicKey, ix Instruction) (solana.Instruction, error) {
	data, err := Encode(ix)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, ix.Metas(), data), nil
}

// Decode parses instruction data and binds the ordered account keys.
func Decode(data []byte, accounts []*solana.AccountMeta) (Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedInstruction, len(data))
	}

	var ix Instruction
	for _, newIx := range registry {
		candidate := newIx()
		disc := Discriminator(candidate.Name())
		if disc.Equal(data[:8]) {
			ix = candidate
			break
		}
	}
	if ix == nil {
		return nil, ErrUnknownInstruction
	}

	dec := bin.NewBorshDecoder(data[8:])
	if err := ix.decodeArgs(dec); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedInstruction, ix.Name(), err)
	}
	if dec.HasRemaining() {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformedInstruction, ix.Name(), dec.Remaining())
	}

	want := len(ix.Metas())
	if len(accounts) < want {
		return nil, fmt.Errorf("%w: %s needs %d, got %d", ErrNotEnoughAccounts, ix.Name(), want, len(accounts))
	}
	keys := make([]solana.PublicKey, want)
	for i := range keys {
		keys[i] = accounts[i].PublicKey
	}
	ix.bindAccounts(keys)
	return ix, nil
}

// CheckAccounts verifies that the supplied account metas grant every signer
// and writable permission ix requires, and that program accounts match.
func CheckAccounts(ix Instruction, accounts []*solana.AccountMeta) error {
	required := ix.Metas()
	if len(accounts) < len(required) {
		return ErrNotEnoughAccounts
	}
	// The system program is always the last account.
	last := len(required) - 1
	if !accounts[last].PublicKey.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrInvalidProgramID, accounts[last].PublicKey)
	}
	for i, req := range required[:last] {
		got := accounts[i]
		if req.IsSigner && !got.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingSigner, got.PublicKey)
		}
		if req.IsWritable && !got.IsWritable {
			return fmt.Errorf("%w: %s", ErrNotWritable, got.PublicKey)
		}
	}
	return nil
}

func systemProgram() *solana.AccountMeta {
	return solana.Meta(solana.SystemProgramID)
}
