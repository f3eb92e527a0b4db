package handlers

import (
	"net/http"
	"time"
)

type BlockhashResponse struct {
	Blockhash string    `json:"blockhash"`
	Slot      uint64    `json:"slot"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LatestBlockhash issues a fresh blockhash for the caller to sign against.
// Transactions referencing it are accepted until ExpiresAt.
func (h *Handlers) LatestBlockhash(w http.ResponseWriter, r *http.Request) {
	bh := h.cfg.Runtime.LatestBlockhash()
	writeJSON(w, http.StatusOK, BlockhashResponse{
		Blockhash: bh.Hash.String(),
		Slot:      bh.Slot,
		ExpiresAt: bh.ExpiresAt.UTC(),
	})
}
