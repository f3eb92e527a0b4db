package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/trustplay/api/metrics"
)

type AirdropRequest struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

type AirdropResponse struct {
	Address solana.PublicKey `json:"address"`
	Balance uint64           `json:"balance"`
}

// Airdrop credits lamports to a system account. It is rejected with 403 unless
// the runtime was started with a non-zero airdrop limit.
func (h *Handlers) Airdrop(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)

	var req AirdropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, badRequest("invalid JSON: %v", err))
		return
	}
	addr, err := solana.PublicKeyFromBase58(req.Address)
	if err != nil {
		h.writeError(w, r, badRequest("invalid address: %v", err))
		return
	}

	balance, err := h.cfg.Runtime.Airdrop(r.Context(), addr, req.Lamports)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.AirdropLamportsTotal.Add(float64(req.Lamports))
	writeJSON(w, http.StatusOK, AirdropResponse{Address: addr, Balance: balance})
}
