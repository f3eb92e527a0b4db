package main

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/program/pkg/state"
)

var errInvalidAmount = errors.New("invalid SOL amount")

// parseSOL converts a decimal SOL amount such as "1.25" to lamports.
func parseSOL(s string) (uint64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" && frac == "" || len(frac) > 9 {
		return 0, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	var f uint64
	if frac != "" {
		if f, err = strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 64); err != nil {
			return 0, fmt.Errorf("%w: %q", errInvalidAmount, s)
		}
	}
	total := new(big.Int).Mul(new(big.Int).SetUint64(w), new(big.Int).SetUint64(solana.LAMPORTS_PER_SOL))
	total.Add(total, new(big.Int).SetUint64(f))
	if !total.IsUint64() {
		return 0, fmt.Errorf("%w: %q overflows", errInvalidAmount, s)
	}
	return total.Uint64(), nil
}

// formatSOL renders lamports as SOL without trailing zeros.
func formatSOL(lamports uint64) string {
	whole := lamports / solana.LAMPORTS_PER_SOL
	frac := lamports % solana.LAMPORTS_PER_SOL
	if frac == 0 {
		return fmt.Sprintf("%d SOL", whole)
	}
	return fmt.Sprintf("%d.%s SOL", whole, strings.TrimRight(fmt.Sprintf("%09d", frac), "0"))
}

// parseDeadline accepts RFC3339, unix seconds, or a duration from now.
func parseDeadline(s string, now time.Time) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d).Unix(), nil
	}
	return 0, fmt.Errorf("invalid deadline %q: want RFC3339, unix seconds or a duration like 48h", s)
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func (c *cli) printRoom(addr solana.PublicKey, r *state.Room) {
	c.title(fmt.Sprintf("Room %s", r.RoomID))
	c.field("Address", addr)
	c.field("Name", r.Name)
	c.field("Organizer", r.Organizer)
	c.field("Vault", r.Vault)
	c.field("Status", r.Status)
	c.field("Total pool", formatSOL(r.TotalPool))
	c.field("Distributed", formatSOL(r.Distributed))
	c.field("Pending claims", fmt.Sprintf("%d (%d voted)", r.PendingClaims, r.VotedClaims))
	c.field("Threshold", fmt.Sprintf("%d%%", r.VoteThreshold))
	c.field("Created", formatUnix(r.CreatedAt))
	c.field("Deadline", formatUnix(r.DeadlineTs))
}

func (c *cli) printClaim(addr solana.PublicKey, cl *state.Claim) {
	c.title(fmt.Sprintf("Claim %s", cl.ClaimID))
	c.field("Address", addr)
	c.field("Room", cl.Room)
	c.field("Claimant", cl.Claimant)
	if cl.ProofHash != "" {
		c.field("Proof", cl.ProofHash)
	}
	c.field("Votes", fmt.Sprintf("%d for / %d against", cl.VotesFor, cl.VotesAgainst))
	c.field("Created", formatUnix(cl.CreatedAt))
	switch {
	case !cl.Resolved:
		c.field("Outcome", "pending")
	case cl.Approved:
		c.field("Outcome", "approved, paid "+formatSOL(cl.Reward))
	default:
		c.field("Outcome", "rejected")
	}
	if cl.ResolvedAt != nil {
		c.field("Resolved", formatUnix(*cl.ResolvedAt))
	}
}
