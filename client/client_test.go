package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/api/server"
	"github.com/malbeclabs/trustplay/client"
	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
	"github.com/malbeclabs/trustplay/program/pkg/state"
	"github.com/malbeclabs/trustplay/utils/pkg/retry"
	tptesting "github.com/malbeclabs/trustplay/utils/pkg/testing"
)

var genesis = time.Unix(1_700_000_000, 0)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	log := tptesting.NewLogger()

	l, err := ledger.NewMemory(ledger.MemoryConfig{Logger: log})
	require.NoError(t, err)
	proc, err := processor.New(processor.Config{Logger: log, Ledger: l, Clock: clockwork.NewFakeClockAt(genesis)})
	require.NoError(t, err)
	rt, err := runtime.New(runtime.Config{Logger: log, Processor: proc, MaxAirdrop: runtime.DefaultMaxAirdrop})
	require.NoError(t, err)
	h, err := handlers.New(handlers.Config{Logger: log, Runtime: rt})
	require.NoError(t, err)
	srv, err := server.New(server.Config{Logger: log, ListenAddr: "127.0.0.1:0", Handlers: h})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := client.New(client.Config{
		Logger:  log,
		BaseURL: ts.URL + "/",
		Retry:   retry.Config{MaxAttempts: 1},
	})
	require.NoError(t, err)
	return c
}

func funded(t *testing.T, c *client.Client, sol uint64) *solana.Wallet {
	t.Helper()
	w := solana.NewWallet()
	_, err := c.Airdrop(context.Background(), w.PublicKey(), sol*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)
	return w
}

func send(t *testing.T, c *client.Client, signer *solana.Wallet, ixs ...instruction.Instruction) error {
	t.Helper()
	var built []solana.Instruction
	for _, ix := range ixs {
		b, err := instruction.Build(pda.ProgramID, ix)
		require.NoError(t, err)
		built = append(built, b)
	}
	latest, err := c.LatestBlockhash(context.Background())
	require.NoError(t, err)
	tx, err := solana.NewTransaction(built, latest.Hash, solana.TransactionPayer(signer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	_, err = c.SubmitTransaction(context.Background(), tx)
	return err
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestTrustPlay_Client_Config(t *testing.T) {
	t.Parallel()

	_, err := client.New(client.Config{})
	require.EqualError(t, err, "logger is required")

	cfg := client.Config{Logger: tptesting.NewLogger(), BaseURL: "http://api.trustplay.test/"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "http://api.trustplay.test", cfg.BaseURL)
	require.Equal(t, retry.DefaultConfig().MaxAttempts, cfg.Retry.MaxAttempts)
}

// TestTrustPlay_Client_ClaimLifecycle runs a full room over HTTP: whitelist,
// room, join, deposit, claim, vote and resolve.
func TestTrustPlay_Client_ClaimLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)
	pid := pda.ProgramID

	organizer := funded(t, c, 10)
	voter := funded(t, c, 1)
	player := funded(t, c, 5)

	require.NoError(t, send(t, c, organizer,
		must(instruction.NewInitializeWhitelist(pid, organizer.PublicKey())),
		must(instruction.NewAddToWhitelist(pid, organizer.PublicKey(), voter.PublicKey())),
	))

	create := must(instruction.NewCreateRoom(pid, organizer.PublicKey(), instruction.CreateRoomArgs{
		RoomID:        "speedrun-42",
		Name:          "Any% speedrun",
		TotalPool:     2 * solana.LAMPORTS_PER_SOL,
		DeadlineTs:    genesis.Add(24 * time.Hour).Unix(),
		VoteThreshold: 60,
	}))
	require.NoError(t, send(t, c, organizer, create))
	require.NoError(t, send(t, c, player,
		must(instruction.NewJoinRoom(pid, player.PublicKey(), create.Room)),
		must(instruction.NewDepositToVault(pid, player.PublicKey(), create.Room, solana.LAMPORTS_PER_SOL/2)),
	))

	claim := must(instruction.NewSubmitClaim(pid, player.PublicKey(), create.Room, "run-1", "QmProof"))
	require.NoError(t, send(t, c, player, claim))
	require.NoError(t, send(t, c, voter, must(instruction.NewVoteClaim(pid, voter.PublicKey(), create.Room, claim.Claim, player.PublicKey(), true))))

	before := must(c.Balance(ctx, player.PublicKey()))
	require.NoError(t, send(t, c, player, must(instruction.NewResolveClaim(pid, player.PublicKey(), create.Room, claim.Claim))))

	acct, err := c.GetAccount(ctx, claim.Claim)
	require.NoError(t, err)
	require.Equal(t, state.KindClaim, acct.Kind)
	var resolved state.Claim
	require.NoError(t, acct.Decode(&resolved))
	require.True(t, resolved.Resolved)
	require.True(t, resolved.Approved)
	require.Equal(t, solana.LAMPORTS_PER_SOL/2, resolved.Reward)

	repAddr, _, err := c.PDA(ctx, "reputation", map[string]string{"player": player.PublicKey().String()})
	require.NoError(t, err)
	repAcct, err := c.GetAccount(ctx, repAddr)
	require.NoError(t, err)
	var rep state.Reputation
	require.NoError(t, repAcct.Decode(&rep))
	require.Equal(t, uint32(1), rep.Wins)
	require.Equal(t, uint64(500), rep.Score)

	after := must(c.Balance(ctx, player.PublicKey()))
	require.Equal(t, before+solana.LAMPORTS_PER_SOL/2-state.MinimumBalance(state.ReputationSpace), after)

	page, err := c.ProgramAccounts(ctx, client.ProgramAccountsQuery{
		Kind:   state.KindRoom,
		Memcmp: []client.Memcmp{{Offset: state.OffsetRoomOrganizer, Bytes: organizer.PublicKey().Bytes()}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	var room state.Room
	require.NoError(t, page.Accounts[0].Decode(&room))
	require.Equal(t, state.RoomStatusResolved, room.Status)

	t.Run("program errors match with errors.Is", func(t *testing.T) {
		err := send(t, c, player, must(instruction.NewResolveClaim(pid, player.PublicKey(), create.Room, claim.Claim)))
		require.ErrorIs(t, err, processor.ErrAlreadyResolved)
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusConflict, apiErr.StatusCode())
		require.Equal(t, "resolve_claim", apiErr.Response.Instruction)
	})

	t.Run("missing accounts", func(t *testing.T) {
		_, err := c.GetAccount(ctx, solana.NewWallet().PublicKey())
		require.ErrorIs(t, err, client.ErrNotFound)
		balance, err := c.Balance(ctx, solana.NewWallet().PublicKey())
		require.NoError(t, err)
		require.Zero(t, balance)
	})
}

func TestTrustPlay_Client_RepeatDeposit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)
	pid := pda.ProgramID
	organizer := funded(t, c, 10)

	create := must(instruction.NewCreateRoom(pid, organizer.PublicKey(), instruction.CreateRoomArgs{
		RoomID:        "weekly",
		TotalPool:     solana.LAMPORTS_PER_SOL,
		DeadlineTs:    genesis.Add(time.Hour).Unix(),
		VoteThreshold: 50,
	}))
	require.NoError(t, send(t, c, organizer, create))

	deposit := must(instruction.NewDepositToVault(pid, organizer.PublicKey(), create.Room, solana.LAMPORTS_PER_SOL))
	require.NoError(t, send(t, c, organizer, deposit))
	require.NoError(t, send(t, c, organizer, deposit))
	require.Equal(t, state.MinimumBalance(0)+2*solana.LAMPORTS_PER_SOL, must(c.Balance(ctx, create.Vault)))

	first := must(c.LatestBlockhash(ctx))
	second := must(c.LatestBlockhash(ctx))
	require.NotEqual(t, first.Hash, second.Hash)
	require.Greater(t, second.Slot, first.Slot)
}

func TestTrustPlay_Client_Retry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Ledger temporarily unavailable."}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":"11111111111111111111111111111111","balance":7}`))
	}))
	t.Cleanup(ts.Close)

	c, err := client.New(client.Config{
		Logger:  tptesting.NewLogger(),
		BaseURL: ts.URL,
		Retry:   retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
	require.NoError(t, err)

	balance, err := c.Airdrop(context.Background(), solana.SystemProgramID, 7)
	require.NoError(t, err)
	require.Equal(t, uint64(7), balance)
	require.Equal(t, int32(3), calls.Load())

	t.Run("client errors are not retried", func(t *testing.T) {
		var n atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n.Add(1)
			http.Error(w, "nope", http.StatusBadRequest)
		}))
		t.Cleanup(ts.Close)
		c, err := client.New(client.Config{
			Logger:  tptesting.NewLogger(),
			BaseURL: ts.URL,
			Retry:   retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		})
		require.NoError(t, err)

		_, err = c.Airdrop(context.Background(), solana.SystemProgramID, 1)
		var apiErr *client.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "nope", apiErr.Response.Error)
		require.Equal(t, int32(1), n.Load())
	})
}
