package processor

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	tptesting "github.com/malbeclabs/trustplay/utils/pkg/testing"
)

const lamportsPerSOL = 1_000_000_000

var genesis = time.Unix(1_700_000_000, 0).UTC()

type testEnv struct {
	proc   *Processor
	ledger *ledger.Memory
	clock  *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := tptesting.NewLogger()

	l, err := ledger.NewMemory(ledger.MemoryConfig{Logger: log})
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(genesis)

	proc, err := New(Config{Logger: log, Ledger: l, Clock: clock})
	require.NoError(t, err)
	return &testEnv{proc: proc, ledger: l, clock: clock}
}

// wallet returns a new system account holding sol.
func (e *testEnv) wallet(t *testing.T, sol float64) solana.PublicKey {
	t.Helper()
	pk := solana.NewWallet().PublicKey()
	err := e.ledger.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Put(ctx, &ledger.Account{
			Address:  pk,
			Owner:    solana.SystemProgramID,
			Lamports: uint64(sol * lamportsPerSOL),
		})
	})
	require.NoError(t, err)
	return pk
}

func (e *testEnv) balance(t *testing.T, addr solana.PublicKey) uint64 {
	t.Helper()
	b, err := e.proc.Balance(context.Background(), addr)
	require.NoError(t, err)
	return b
}

func (e *testEnv) roomArgs(roomID string) instruction.CreateRoomArgs {
	return instruction.CreateRoomArgs{
		RoomID:        roomID,
		Name:          "speedrun " + roomID,
		TotalPool:     2 * lamportsPerSOL,
		DeadlineTs:    e.clock.Now().Add(24 * time.Hour).Unix(),
		VoteThreshold: 60,
	}
}

// roomFixture is a room with one whitelisted voter and one joined player.
type roomFixture struct {
	organizer, voter, player solana.PublicKey
	room, claim              solana.PublicKey
}

// setupRoom creates a room and deposits deposit lamports from the player.
func (e *testEnv) setupRoom(t *testing.T, deposit uint64) roomFixture {
	t.Helper()
	ctx := context.Background()

	organizer := e.wallet(t, 10)
	voter := e.wallet(t, 1)
	player := e.wallet(t, 5)

	require.NoError(t, e.proc.InitializeWhitelist(ctx, organizer))
	require.NoError(t, e.proc.AddToWhitelist(ctx, organizer, voter))

	room, err := e.proc.CreateRoom(ctx, organizer, e.roomArgs("room-1"))
	require.NoError(t, err)
	_, err = e.proc.JoinRoom(ctx, player, room)
	require.NoError(t, err)
	if deposit > 0 {
		require.NoError(t, e.proc.DepositToVault(ctx, player, room, deposit))
	}
	return roomFixture{organizer: organizer, voter: voter, player: player, room: room}
}

func (e *testEnv) submitAndVote(t *testing.T, s *roomFixture, claimID string, accept bool) solana.PublicKey {
	t.Helper()
	ctx := context.Background()
	claim, err := e.proc.SubmitClaim(ctx, s.player, s.room, claimID, "")
	require.NoError(t, err)
	require.NoError(t, e.proc.VoteClaim(ctx, s.voter, s.room, claim, s.player, accept))
	s.claim = claim
	return claim
}
