package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

type accountBody struct {
	Address  string          `json:"address"`
	Owner    string          `json:"owner"`
	Lamports uint64          `json:"lamports"`
	Space    int             `json:"space"`
	Data     string          `json:"data"`
	Kind     string          `json:"kind"`
	Parsed   json.RawMessage `json:"parsed"`
}

func TestTrustPlay_Handlers_Config(t *testing.T) {
	t.Parallel()

	_, err := handlers.New(handlers.Config{})
	require.EqualError(t, err, "logger is required")
}

func TestTrustPlay_Handlers_SubmitTransaction(t *testing.T) {
	t.Parallel()

	t.Run("executes a signed transaction", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		tx := api.signedTx(t, organizer, build(instruction.NewInitializeWhitelist(pda.ProgramID, organizer.PublicKey())))

		rec := api.submit(t, tx)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[handlers.SubmitTransactionResponse](t, rec)
		require.Equal(t, tx.Signatures[0].String(), resp.Signature)
		require.NotEmpty(t, rec.Header().Get(handlers.RequestIDHeader))

		wl, err := api.rt.Processor().GetWhitelist(context.Background())
		require.NoError(t, err)
		require.Equal(t, organizer.PublicKey(), wl.Authority)

		rec = api.submit(t, tx)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("program error carries the failing instruction", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		voter := solana.NewWallet().PublicKey()
		tx := api.signedTx(t, organizer,
			build(instruction.NewInitializeWhitelist(pda.ProgramID, organizer.PublicKey())),
			build(instruction.NewAddToWhitelist(pda.ProgramID, organizer.PublicKey(), voter)),
			build(instruction.NewAddToWhitelist(pda.ProgramID, organizer.PublicKey(), voter)),
		)

		rec := api.submit(t, tx)
		require.Equal(t, http.StatusConflict, rec.Code)
		resp := decode[handlers.ErrorResponse](t, rec)
		require.Equal(t, "AlreadyWhitelisted", resp.Name)
		require.Equal(t, processor.ErrAlreadyWhitelisted.Code(), resp.Code)
		require.Equal(t, "precondition", resp.Class)
		require.Equal(t, "add_to_whitelist", resp.Instruction)
		require.NotNil(t, resp.Index)
		require.Equal(t, 2, *resp.Index)
		require.Equal(t, rec.Header().Get(handlers.RequestIDHeader), resp.RequestID)
	})

	t.Run("insufficient funds maps to payment required", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		createIx, err := instruction.NewCreateRoom(pda.ProgramID, organizer.PublicKey(), roomArgs("room-1"))
		require.NoError(t, err)
		tx := api.signedTx(t, organizer,
			build(createIx, nil),
			build(instruction.NewDepositToVault(pda.ProgramID, organizer.PublicKey(), createIx.Room, 50*solana.LAMPORTS_PER_SOL)),
		)

		rec := api.submit(t, tx)
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Equal(t, "InsufficientLamports", decode[handlers.ErrorResponse](t, rec).Name)
	})

	t.Run("rejects malformed requests", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)

		rec := api.do(t, http.MethodPost, "/api/transactions", handlers.SubmitTransactionRequest{})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = api.do(t, http.MethodPost, "/api/transactions", handlers.SubmitTransactionRequest{Transaction: "not base64!"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = api.do(t, http.MethodPost, "/api/transactions", "{")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("identical deposits on fresh blockhashes", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		createIx, err := instruction.NewCreateRoom(pda.ProgramID, organizer.PublicKey(), roomArgs("room-1"))
		require.NoError(t, err)
		rec := api.submit(t, api.signedTx(t, organizer, build(createIx, nil)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		deposit := build(instruction.NewDepositToVault(pda.ProgramID, organizer.PublicKey(), createIx.Room, solana.LAMPORTS_PER_SOL))
		for range 2 {
			rec = api.submit(t, api.signedTx(t, organizer, deposit))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}
		balance, err := api.rt.Processor().Balance(context.Background(), createIx.Vault)
		require.NoError(t, err)
		require.Equal(t, state.MinimumBalance(0)+2*solana.LAMPORTS_PER_SOL, balance)
	})

	t.Run("unknown blockhash", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		tx := signWith(t, solana.Hash{}, organizer, build(instruction.NewInitializeWhitelist(pda.ProgramID, organizer.PublicKey())))

		rec := api.submit(t, tx)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, decode[handlers.ErrorResponse](t, rec).Error, "blockhash not found")
	})

	t.Run("system error codes are always present", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		createIx, err := instruction.NewCreateRoom(pda.ProgramID, organizer.PublicKey(), roomArgs("room-1"))
		require.NoError(t, err)
		rec := api.submit(t, api.signedTx(t, organizer, build(createIx, nil)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = api.submit(t, api.signedTx(t, organizer, build(createIx, nil)))
		require.Equal(t, http.StatusConflict, rec.Code)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		require.Equal(t, "AccountAlreadyInUse", raw["name"])
		require.Contains(t, raw, "code")
		require.Equal(t, float64(0), raw["code"])
	})

	t.Run("tampered signature", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		organizer := api.wallet(t)
		tx := api.signedTx(t, organizer, build(instruction.NewInitializeWhitelist(pda.ProgramID, organizer.PublicKey())))
		tx.Signatures[0][1] ^= 0x01

		rec := api.submit(t, tx)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		rec := api.do(t, http.MethodPost, "/api/transactions",
			handlers.SubmitTransactionRequest{Transaction: strings.Repeat("A", handlers.DefaultMaxBodyBytes)})
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestTrustPlay_Handlers_LatestBlockhash(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, 0)

	first := decode[handlers.BlockhashResponse](t, api.do(t, http.MethodGet, "/api/blockhash", nil))
	second := decode[handlers.BlockhashResponse](t, api.do(t, http.MethodGet, "/api/blockhash", nil))
	require.NotEqual(t, first.Blockhash, second.Blockhash)
	require.Equal(t, first.Slot+1, second.Slot)
	_, err := solana.HashFromBase58(second.Blockhash)
	require.NoError(t, err)
	require.True(t, genesis.Add(runtime.DefaultBlockhashTTL).Equal(second.ExpiresAt), second.ExpiresAt)
}

func TestTrustPlay_Handlers_GetAccount(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, runtime.DefaultMaxAirdrop)
	organizer := api.wallet(t)
	rec := api.submit(t, api.signedTx(t, organizer, build(instruction.NewInitializeWhitelist(pda.ProgramID, organizer.PublicKey()))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("decodes program accounts", func(t *testing.T) {
		t.Parallel()
		whitelist, _, err := pda.DeriveWhitelist(pda.ProgramID)
		require.NoError(t, err)

		rec := api.do(t, http.MethodGet, "/api/accounts/"+whitelist.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[accountBody](t, rec)
		require.Equal(t, whitelist.String(), body.Address)
		require.Equal(t, pda.ProgramID.String(), body.Owner)
		require.Equal(t, string(state.KindWhitelist), body.Kind)
		require.Equal(t, state.WhitelistSpace(0), body.Space)
		require.Equal(t, state.MinimumBalance(state.WhitelistSpace(0)), body.Lamports)

		var wl state.Whitelist
		require.NoError(t, json.Unmarshal(body.Parsed, &wl))
		require.Equal(t, organizer.PublicKey(), wl.Authority)
	})

	t.Run("system accounts have no kind", func(t *testing.T) {
		t.Parallel()
		rec := api.do(t, http.MethodGet, "/api/accounts/"+organizer.PublicKey().String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[accountBody](t, rec)
		require.Empty(t, body.Kind)
		require.Equal(t, solana.SystemProgramID.String(), body.Owner)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		rec := api.do(t, http.MethodGet, "/api/accounts/"+solana.NewWallet().PublicKey().String(), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		rec := api.do(t, http.MethodGet, "/api/accounts/nope", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrustPlay_Handlers_GetProgramAccounts(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, runtime.DefaultMaxAirdrop)
	organizer := api.wallet(t)
	var ixs []solana.Instruction
	rooms := map[string]bool{}
	for i := range 3 {
		ix, err := instruction.NewCreateRoom(pda.ProgramID, organizer.PublicKey(), roomArgs(fmt.Sprintf("room-%d", i)))
		require.NoError(t, err)
		rooms[ix.Room.String()] = true
		ixs = append(ixs, build(ix, nil))
	}
	ixs = append(ixs, build(instruction.NewInitializeWhitelist(pda.ProgramID, organizer.PublicKey())))
	rec := api.submit(t, api.signedTx(t, organizer, ixs...))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("filters by kind", func(t *testing.T) {
		t.Parallel()
		rec := api.do(t, http.MethodGet, "/api/programs/accounts?kind=room", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[handlers.PaginatedResponse[accountBody]](t, rec)
		require.Equal(t, 3, page.Total)
		for _, item := range page.Items {
			require.True(t, rooms[item.Address])
			require.Equal(t, "room", item.Kind)
		}
	})

	t.Run("memcmp on organizer", func(t *testing.T) {
		t.Parallel()
		q := fmt.Sprintf("/api/programs/accounts?kind=room&memcmp=%d:%s&dataSize=%d",
			state.DiscriminatorSize, base58.Encode(organizer.PublicKey().Bytes()), state.RoomSpace)
		rec := api.do(t, http.MethodGet, q, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 3, decode[handlers.PaginatedResponse[accountBody]](t, rec).Total)

		other := base58.Encode(solana.NewWallet().PublicKey().Bytes())
		rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/programs/accounts?memcmp=8:%s", other), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Zero(t, decode[handlers.PaginatedResponse[accountBody]](t, rec).Total)
	})

	t.Run("paginates", func(t *testing.T) {
		t.Parallel()
		rec := api.do(t, http.MethodGet, "/api/programs/accounts?limit=2&offset=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[handlers.PaginatedResponse[accountBody]](t, rec)
		require.Equal(t, 4, page.Total)
		require.Len(t, page.Items, 2)
		require.Equal(t, 1, page.Offset)
	})

	t.Run("invalid filters", func(t *testing.T) {
		t.Parallel()
		for _, q := range []string{"kind=vault", "memcmp=8", "memcmp=x:abc", "memcmp=8:0OIl", "dataSize=-1"} {
			rec := api.do(t, http.MethodGet, "/api/programs/accounts?"+q, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}

func TestTrustPlay_Handlers_DerivePDA(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, 0)
	organizer := solana.NewWallet().PublicKey()

	t.Run("room", func(t *testing.T) {
		t.Parallel()
		want, bump, err := pda.DeriveRoom(pda.ProgramID, organizer, "room-1")
		require.NoError(t, err)

		rec := api.do(t, http.MethodGet, "/api/pda/room?organizer="+organizer.String()+"&roomId=room-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[handlers.PDAResponse](t, rec)
		require.Equal(t, want, resp.Address)
		require.Equal(t, bump, resp.Bump)
	})

	t.Run("whitelist", func(t *testing.T) {
		t.Parallel()
		want, _, err := pda.DeriveWhitelist(pda.ProgramID)
		require.NoError(t, err)
		rec := api.do(t, http.MethodGet, "/api/pda/whitelist", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, want, decode[handlers.PDAResponse](t, rec).Address)
	})

	t.Run("bad parameters", func(t *testing.T) {
		t.Parallel()
		for _, path := range []string{
			"/api/pda/room?organizer=" + organizer.String(),
			"/api/pda/room?roomId=x&organizer=bad",
			"/api/pda/room?organizer=" + organizer.String() + "&roomId=" + strings.Repeat("x", 33),
			"/api/pda/claim?room=" + organizer.String() + "&claimant=" + organizer.String(),
			"/api/pda/escrow",
		} {
			rec := api.do(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, path)
		}
	})
}

func TestTrustPlay_Handlers_Airdrop(t *testing.T) {
	t.Parallel()

	t.Run("credits the account", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		addr := solana.NewWallet().PublicKey()
		rec := api.do(t, http.MethodPost, "/api/airdrop", handlers.AirdropRequest{Address: addr.String(), Lamports: 1000})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[handlers.AirdropResponse](t, rec)
		require.Equal(t, addr, resp.Address)
		require.Equal(t, uint64(1000), resp.Balance)
	})

	t.Run("over the limit", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		rec := api.do(t, http.MethodPost, "/api/airdrop", handlers.AirdropRequest{
			Address:  solana.NewWallet().PublicKey().String(),
			Lamports: runtime.DefaultMaxAirdrop + 1,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, 0)
		rec := api.do(t, http.MethodPost, "/api/airdrop", handlers.AirdropRequest{
			Address:  solana.NewWallet().PublicKey().String(),
			Lamports: 1,
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI(t, runtime.DefaultMaxAirdrop)
		rec := api.do(t, http.MethodPost, "/api/airdrop", handlers.AirdropRequest{Address: "x", Lamports: 1})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrustPlay_Handlers_StatusForError(t *testing.T) {
	t.Parallel()

	wrap := func(err error) error {
		return &processor.InstructionError{Index: 0, Instruction: "resolve_claim", Err: err}
	}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"bad request", fmt.Errorf("%w: x", handlers.ErrBadRequest), http.StatusBadRequest},
		{"invalid signature", runtime.ErrInvalidSignature, http.StatusBadRequest},
		{"replay", runtime.ErrAlreadyProcessed, http.StatusConflict},
		{"stale blockhash", runtime.ErrBlockhashNotFound, http.StatusBadRequest},
		{"airdrop disabled", runtime.ErrAirdropDisabled, http.StatusForbidden},
		{"not found", ledger.ErrAccountNotFound, http.StatusNotFound},
		{"invalid filter", ledger.ErrInvalidFilter, http.StatusBadRequest},
		{"validation", wrap(processor.ErrInvalidRoomID), http.StatusBadRequest},
		{"precondition", wrap(processor.ErrAlreadyResolved), http.StatusConflict},
		{"arithmetic", wrap(processor.ErrNumericalOverflow), http.StatusUnprocessableEntity},
		{"authorization", wrap(processor.ErrVoterNotWhitelisted), http.StatusForbidden},
		{"resource", wrap(processor.ErrInsufficientFunds), http.StatusPaymentRequired},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"transient", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, handlers.StatusForError(tt.err))
		})
	}
}

func TestTrustPlay_Handlers_RequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := handlers.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handlers.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(handlers.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get(handlers.RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 36)
	require.Equal(t, seen, rec.Header().Get(handlers.RequestIDHeader))
}

func TestTrustPlay_Handlers_RateLimit(t *testing.T) {
	t.Parallel()

	t.Run("per IP burst", func(t *testing.T) {
		t.Parallel()
		limiter := handlers.NewRateLimiter(rate.Limit(1), 2)
		t.Cleanup(limiter.Close)

		require.True(t, limiter.Allow("10.0.0.1"))
		require.True(t, limiter.Allow("10.0.0.1"))
		require.False(t, limiter.Allow("10.0.0.1"))
		require.True(t, limiter.Allow("10.0.0.2"))
	})

	t.Run("middleware responds with JSON and Retry-After", func(t *testing.T) {
		t.Parallel()
		limiter := handlers.NewRateLimiter(rate.Limit(0.1), 1)
		t.Cleanup(limiter.Close)
		h := handlers.RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		body := decode[handlers.RateLimitError](t, rec)
		require.Equal(t, "rate_limit_exceeded", body.Error)
		require.GreaterOrEqual(t, body.RetryAfter, 1)
	})
}

func TestTrustPlay_Handlers_GetIPFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.6"}, "10.0.0.1:80", "203.0.113.6"},
		{"remote addr", nil, "198.51.100.7:5555", "198.51.100.7"},
		{"remote without port", nil, "198.51.100.8", "198.51.100.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, handlers.GetIPFromRequest(req))
		})
	}
}

func TestTrustPlay_Handlers_ParsePagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  handlers.PaginationParams
	}{
		{"", handlers.PaginationParams{Limit: handlers.DefaultLimit}},
		{"limit=5&offset=10", handlers.PaginationParams{Limit: 5, Offset: 10}},
		{"limit=100000", handlers.PaginationParams{Limit: handlers.MaxLimit}},
		{"limit=-1&offset=-4", handlers.PaginationParams{Limit: handlers.DefaultLimit}},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		require.Equal(t, tt.want, handlers.ParsePagination(req, 0), tt.query)
	}
}
