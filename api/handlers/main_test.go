package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
	tptesting "github.com/malbeclabs/trustplay/utils/pkg/testing"
)

var genesis = time.Unix(1_700_000_000, 0)

type testAPI struct {
	rt     *runtime.Runtime
	router chi.Router
}

func newTestAPI(t *testing.T, maxAirdrop uint64) *testAPI {
	t.Helper()
	log := tptesting.NewLogger()

	l, err := ledger.NewMemory(ledger.MemoryConfig{Logger: log})
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(genesis)
	proc, err := processor.New(processor.Config{Logger: log, Ledger: l, Clock: clock})
	require.NoError(t, err)
	rt, err := runtime.New(runtime.Config{Logger: log, Processor: proc, Clock: clock, MaxAirdrop: maxAirdrop})
	require.NoError(t, err)

	h, err := handlers.New(handlers.Config{Logger: log, Runtime: rt})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(handlers.RequestIDMiddleware)
	h.Routes(r)
	return &testAPI{rt: rt, router: r}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) wallet(t *testing.T) *solana.Wallet {
	t.Helper()
	w := solana.NewWallet()
	_, err := a.rt.Airdrop(t.Context(), w.PublicKey(), 5*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)
	return w
}

func (a *testAPI) submit(t *testing.T, tx *solana.Transaction) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := tx.ToBase64()
	require.NoError(t, err)
	return a.do(t, http.MethodPost, "/api/transactions", handlers.SubmitTransactionRequest{Transaction: encoded})
}

// signedTx signs ixs against a blockhash fetched from the API.
func (a *testAPI) signedTx(t *testing.T, signer *solana.Wallet, ixs ...solana.Instruction) *solana.Transaction {
	t.Helper()
	rec := a.do(t, http.MethodGet, "/api/blockhash", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	blockhash, err := solana.HashFromBase58(decode[handlers.BlockhashResponse](t, rec).Blockhash)
	require.NoError(t, err)
	return signWith(t, blockhash, signer, ixs...)
}

func signWith(t *testing.T, blockhash solana.Hash, signer *solana.Wallet, ixs ...solana.Instruction) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(signer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func build[T instruction.Instruction](ix T, err error) solana.Instruction {
	if err != nil {
		panic(err)
	}
	out, err := instruction.Build(pda.ProgramID, ix)
	if err != nil {
		panic(err)
	}
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func roomArgs(roomID string) instruction.CreateRoomArgs {
	return instruction.CreateRoomArgs{
		RoomID:        roomID,
		Name:          "speedrun",
		TotalPool:     2 * solana.LAMPORTS_PER_SOL,
		DeadlineTs:    genesis.Add(24 * time.Hour).Unix(),
		VoteThreshold: 60,
	}
}
