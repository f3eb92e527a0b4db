package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/malbeclabs/trustplay/api/handlers/dberror"
	"github.com/malbeclabs/trustplay/api/metrics"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// AccountResponse is a ledger account. Data is base64; Kind and Parsed are set
// for decodable program accounts.
type AccountResponse struct {
	Address  solana.PublicKey `json:"address"`
	Owner    solana.PublicKey `json:"owner"`
	Lamports uint64           `json:"lamports"`
	Space    int              `json:"space"`
	Data     string           `json:"data"`
	Kind     state.Kind       `json:"kind,omitempty"`
	Parsed   state.Account    `json:"parsed,omitempty"`
}

func (h *Handlers) accountResponse(acct *ledger.Account) AccountResponse {
	resp := AccountResponse{
		Address:  acct.Address,
		Owner:    acct.Owner,
		Lamports: acct.Lamports,
		Space:    len(acct.Data),
		Data:     base64.StdEncoding.EncodeToString(acct.Data),
	}
	if acct.Owner.Equals(h.cfg.Runtime.Processor().ProgramID()) {
		if kind, parsed, err := state.DecodeAny(acct.Data); err == nil {
			resp.Kind = kind
			resp.Parsed = parsed
		}
	}
	return resp
}

func (h *Handlers) readAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerRead("get", time.Since(start)) }()
	return dberror.Retry(ctx, h.cfg.ReadRetry, func() (*ledger.Account, error) {
		return h.ledger().Get(ctx, addr)
	})
}

// GetAccount returns one account by base58 address.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, badRequest("invalid address: %v", err))
		return
	}
	acct, err := h.readAccount(r.Context(), addr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.accountResponse(acct))
}
