package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"github.com/malbeclabs/trustplay/api/handlers/dberror"
	"github.com/malbeclabs/trustplay/api/metrics"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// ParseFilters builds account filters from query parameters:
//
//	kind=room             discriminator match at offset 0
//	memcmp=40:<base58>    repeatable byte match at an offset
//	dataSize=215          exact data length
func ParseFilters(q url.Values) ([]rpc.RPCFilter, error) {
	var filters []rpc.RPCFilter

	if kind := q.Get("kind"); kind != "" {
		disc, err := state.Kind(kind).Discriminator()
		if err != nil {
			return nil, badRequest("%v", err)
		}
		filters = append(filters, rpc.RPCFilter{
			Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: disc[:]},
		})
	}

	for _, m := range q["memcmp"] {
		offsetStr, encoded, ok := strings.Cut(m, ":")
		if !ok {
			return nil, badRequest("memcmp must be offset:base58, got %q", m)
		}
		offset, err := strconv.ParseUint(offsetStr, 10, 32)
		if err != nil {
			return nil, badRequest("invalid memcmp offset %q", offsetStr)
		}
		b, err := base58.Decode(encoded)
		if err != nil || len(b) == 0 {
			return nil, badRequest("invalid memcmp bytes %q", encoded)
		}
		filters = append(filters, rpc.RPCFilter{
			Memcmp: &rpc.RPCFilterMemcmp{Offset: offset, Bytes: b},
		})
	}

	if ds := q.Get("dataSize"); ds != "" {
		size, err := strconv.ParseUint(ds, 10, 32)
		if err != nil || size == 0 {
			return nil, badRequest("invalid dataSize %q", ds)
		}
		filters = append(filters, rpc.RPCFilter{DataSize: size})
	}

	return filters, nil
}

// GetProgramAccounts lists program-owned accounts matching the filters,
// ordered by address.
func (h *Handlers) GetProgramAccounts(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page := ParsePagination(r, DefaultLimit)

	start := time.Now()
	accts, err := dberror.Retry(r.Context(), h.cfg.ReadRetry, func() ([]*ledger.Account, error) {
		return h.ledger().ProgramAccounts(r.Context(), h.cfg.Runtime.Processor().ProgramID(), filters)
	})
	metrics.RecordLedgerRead("program_accounts", time.Since(start))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]AccountResponse, 0, page.Limit)
	for i := page.Offset; i < len(accts) && len(items) < page.Limit; i++ {
		items = append(items, h.accountResponse(accts[i]))
	}
	writeJSON(w, http.StatusOK, PaginatedResponse[AccountResponse]{
		Items:  items,
		Total:  len(accts),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}
