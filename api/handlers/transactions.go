package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/getsentry/sentry-go"

	"github.com/malbeclabs/trustplay/api/metrics"
)

type SubmitTransactionRequest struct {
	// Transaction is a signed, base64-encoded wire transaction.
	Transaction string `json:"transaction"`
}

type SubmitTransactionResponse struct {
	Signature string `json:"signature"`
}

// SubmitTransaction verifies and executes a signed transaction.
func (h *Handlers) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)

	var req SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if status := StatusForError(err); status == http.StatusRequestEntityTooLarge {
			metrics.RecordTransaction(h.writeError(w, r, err))
			return
		}
		metrics.RecordTransaction(h.writeError(w, r, badRequest("invalid JSON: %v", err)))
		return
	}
	if req.Transaction == "" {
		metrics.RecordTransaction(h.writeError(w, r, badRequest("transaction is required")))
		return
	}
	tx, err := solana.TransactionFromBase64(req.Transaction)
	if err != nil {
		metrics.RecordTransaction(h.writeError(w, r, badRequest("invalid transaction: %v", err)))
		return
	}

	span := sentry.StartSpan(r.Context(), "trustplay.transaction", sentry.WithDescription("execute transaction"))
	span.SetData("trustplay.instructions", len(tx.Message.Instructions))
	span.SetData("trustplay.signatures", len(tx.Signatures))
	if id := RequestIDFromContext(r.Context()); id != "" {
		span.SetTag("request_id", id)
	}
	defer span.Finish()

	sig, err := h.cfg.Runtime.ExecuteTransaction(span.Context(), tx)
	if err != nil {
		status := h.writeError(w, r.WithContext(span.Context()), err)
		span.Status = sentry.HTTPtoSpanStatus(status)
		span.SetTag("http.status_code", strconv.Itoa(status))
		metrics.RecordTransaction(status)
		return
	}

	span.Status = sentry.SpanStatusOK
	span.SetTag("signature", sig.String())
	metrics.RecordTransaction(http.StatusOK)
	h.log.Info("api: transaction executed", "signature", sig, "instructions", len(tx.Message.Instructions))
	writeJSON(w, http.StatusOK, SubmitTransactionResponse{Signature: sig.String()})
}
