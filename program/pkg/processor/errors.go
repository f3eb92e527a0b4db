package processor

import (
	"errors"
	"fmt"
)

// ErrorCode is a program error with an Anchor-compatible numeric code.
type ErrorCode uint32

// System program errors.
const (
	ErrAccountAlreadyInUse  ErrorCode = 0
	ErrInsufficientLamports ErrorCode = 1
)

// Framework errors.
const (
	ErrInstructionFallbackNotFound  ErrorCode = 101
	ErrInstructionDidNotDeserialize ErrorCode = 102
	ErrConstraintMut                ErrorCode = 2000
	ErrConstraintHasOne             ErrorCode = 2001
	ErrConstraintSigner             ErrorCode = 2002
	ErrConstraintSeeds              ErrorCode = 2006
	ErrAccountDiscriminatorMismatch ErrorCode = 3002
	ErrAccountDidNotDeserialize     ErrorCode = 3003
	ErrAccountNotEnoughKeys         ErrorCode = 3005
	ErrAccountOwnedByWrongProgram   ErrorCode = 3007
	ErrInvalidProgramID             ErrorCode = 3008
	ErrAccountNotInitialized        ErrorCode = 3012
)

// Program errors.
const (
	ErrNumericalOverflow ErrorCode = 6000 + iota
	ErrAlreadyResolved
	ErrNoVotes
	ErrNoParticipants
	ErrInsufficientFunds
	ErrVoterNotWhitelisted
	ErrInvalidVaultAccount
	ErrInvalidRoomID
	ErrInvalidName
	ErrInvalidVoteThreshold
	ErrInvalidDeadline
	ErrInvalidTotalPool
	ErrRoomNotActive
	ErrDeadlinePassed
	ErrInvalidClaimID
	ErrInvalidProofHash
	ErrAlreadyWhitelisted
	ErrNotWhitelisted
	ErrClaimantMismatch
	ErrInvalidAmount
	ErrUnauthorized
	ErrDeadlineNotReached
	ErrClaimsPending
)

type errorInfo struct {
	name  string
	msg   string
	class ErrorClass
}

var errorTable = map[ErrorCode]errorInfo{
	ErrAccountAlreadyInUse:  {"AccountAlreadyInUse", "account already in use", ClassPrecondition},
	ErrInsufficientLamports: {"InsufficientLamports", "insufficient lamports for transfer", ClassResource},

	ErrInstructionFallbackNotFound:  {"InstructionFallbackNotFound", "fallback functions are not supported", ClassValidation},
	ErrInstructionDidNotDeserialize: {"InstructionDidNotDeserialize", "the program could not deserialize the given instruction", ClassValidation},
	ErrConstraintMut:                {"ConstraintMut", "a mut constraint was violated", ClassAuthorization},
	ErrConstraintHasOne:             {"ConstraintHasOne", "a has one constraint was violated", ClassPrecondition},
	ErrConstraintSigner:             {"ConstraintSigner", "a signer constraint was violated", ClassAuthorization},
	ErrConstraintSeeds:              {"ConstraintSeeds", "a seeds constraint was violated", ClassPrecondition},
	ErrAccountDiscriminatorMismatch: {"AccountDiscriminatorMismatch", "account discriminator did not match what was expected", ClassPrecondition},
	ErrAccountDidNotDeserialize:     {"AccountDidNotDeserialize", "failed to deserialize the account", ClassPrecondition},
	ErrAccountNotEnoughKeys:         {"AccountNotEnoughKeys", "not enough account keys given to the instruction", ClassValidation},
	ErrAccountOwnedByWrongProgram:   {"AccountOwnedByWrongProgram", "the given account is owned by a different program than expected", ClassPrecondition},
	ErrInvalidProgramID:             {"InvalidProgramId", "program ID was not as expected", ClassValidation},
	ErrAccountNotInitialized:        {"AccountNotInitialized", "the program expected this account to be already initialized", ClassPrecondition},

	ErrNumericalOverflow:    {"NumericalOverflow", "numerical overflow", ClassArithmetic},
	ErrAlreadyResolved:      {"AlreadyResolved", "claim already resolved", ClassPrecondition},
	ErrNoVotes:              {"NoVotes", "no votes cast", ClassPrecondition},
	ErrNoParticipants:       {"NoParticipants", "no participants in room", ClassPrecondition},
	ErrInsufficientFunds:    {"InsufficientFunds", "insufficient funds in vault", ClassResource},
	ErrVoterNotWhitelisted:  {"VoterNotWhitelisted", "voter not whitelisted", ClassAuthorization},
	ErrInvalidVaultAccount:  {"InvalidVaultAccount", "invalid vault account", ClassPrecondition},
	ErrInvalidRoomID:        {"InvalidRoomId", "room id must be 1 to 32 bytes", ClassValidation},
	ErrInvalidName:          {"InvalidName", "room name must be at most 64 bytes", ClassValidation},
	ErrInvalidVoteThreshold: {"InvalidVoteThreshold", "vote threshold must be between 1 and 100", ClassValidation},
	ErrInvalidDeadline:      {"InvalidDeadline", "deadline must be in the future", ClassValidation},
	ErrInvalidTotalPool:     {"InvalidTotalPool", "total pool must be positive", ClassValidation},
	ErrRoomNotActive:        {"RoomNotActive", "room is not open", ClassPrecondition},
	ErrDeadlinePassed:       {"DeadlinePassed", "room deadline has passed", ClassPrecondition},
	ErrInvalidClaimID:       {"InvalidClaimId", "claim id must be 1 to 32 bytes", ClassValidation},
	ErrInvalidProofHash:     {"InvalidProofHash", "proof hash must be at most 50 bytes", ClassValidation},
	ErrAlreadyWhitelisted:   {"AlreadyWhitelisted", "address already whitelisted", ClassPrecondition},
	ErrNotWhitelisted:       {"NotWhitelisted", "address not whitelisted", ClassPrecondition},
	ErrClaimantMismatch:     {"ClaimantMismatch", "claimant does not match claim", ClassPrecondition},
	ErrInvalidAmount:        {"InvalidAmount", "amount must be positive", ClassValidation},
	ErrUnauthorized:         {"Unauthorized", "signer lacks authority over the account", ClassAuthorization},
	ErrDeadlineNotReached:   {"DeadlineNotReached", "room deadline has not passed", ClassPrecondition},
	ErrClaimsPending:        {"ClaimsPending", "voted claims are still unresolved", ClassPrecondition},
}

func (c ErrorCode) Error() string {
	if info, ok := errorTable[c]; ok {
		return fmt.Sprintf("%s (%d): %s", info.name, uint32(c), info.msg)
	}
	return fmt.Sprintf("unknown program error %d", uint32(c))
}

// Name returns the error variant name, e.g. "InsufficientFunds".
func (c ErrorCode) Name() string {
	if info, ok := errorTable[c]; ok {
		return info.name
	}
	return "Unknown"
}

// Code returns the numeric error code.
func (c ErrorCode) Code() uint32 {
	return uint32(c)
}

// ErrorClass groups error codes by how callers should react.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	// ClassValidation is a malformed or out-of-range argument.
	ClassValidation
	// ClassPrecondition is an account in the wrong state for the operation.
	ClassPrecondition
	// ClassArithmetic is a checked arithmetic failure.
	ClassArithmetic
	// ClassAuthorization is a missing signature or permission.
	ClassAuthorization
	// ClassResource is a balance too small for the operation.
	ClassResource
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassPrecondition:
		return "precondition"
	case ClassArithmetic:
		return "arithmetic"
	case ClassAuthorization:
		return "authorization"
	case ClassResource:
		return "resource"
	default:
		return "unknown"
	}
}

// AsCode extracts the program error code from err.
func AsCode(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

// Classify returns the class of a program error, or ClassUnknown.
func Classify(err error) ErrorClass {
	code, ok := AsCode(err)
	if !ok {
		return ClassUnknown
	}
	if info, ok := errorTable[code]; ok {
		return info.class
	}
	return ClassUnknown
}

// InstructionError records which instruction of a transaction failed.
type InstructionError struct {
	Index       int
	Instruction string
	Err         error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.Instruction, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}
