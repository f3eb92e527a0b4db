package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/malbeclabs/trustplay/api/handlers/dberror"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
)

// ErrBadRequest marks request parsing failures.
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Code        uint32 `json:"code"`
	Name        string `json:"name,omitempty"`
	Class       string `json:"class,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Index       *int   `json:"index,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

// StatusForError maps runtime, ledger and program errors to HTTP status codes.
func StatusForError(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, runtime.ErrInvalidSignature),
		errors.Is(err, runtime.ErrNoInstructions),
		errors.Is(err, runtime.ErrUnsupportedProgram),
		errors.Is(err, runtime.ErrInvalidAccountRef),
		errors.Is(err, runtime.ErrBlockhashNotFound),
		errors.Is(err, runtime.ErrAirdropTooLarge),
		errors.Is(err, ledger.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, runtime.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, runtime.ErrAirdropDisabled):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	}

	switch processor.Classify(err) {
	case processor.ClassValidation:
		return http.StatusBadRequest
	case processor.ClassPrecondition:
		return http.StatusConflict
	case processor.ClassArithmetic:
		return http.StatusUnprocessableEntity
	case processor.ClassAuthorization:
		return http.StatusForbidden
	case processor.ClassResource:
		return http.StatusPaymentRequired
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case dberror.IsTransient(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err and writes it as an ErrorResponse. Server-side failures
// are reported to Sentry and their details are not echoed to the client.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	status := StatusForError(err)
	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: RequestIDFromContext(r.Context()),
	}
	if code, ok := processor.AsCode(err); ok {
		resp.Code = code.Code()
		resp.Name = code.Name()
		resp.Class = processor.Classify(err).String()
	}
	var ixErr *processor.InstructionError
	if errors.As(err, &ixErr) {
		resp.Instruction = ixErr.Instruction
		resp.Index = &ixErr.Index
	}

	if status >= http.StatusInternalServerError {
		resp.Error = dberror.UserMessage(err)
		h.log.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "status", status, "requestID", resp.RequestID, "error", err)
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureException(err)
	} else {
		h.log.Debug("api: request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, resp)
	return status
}
