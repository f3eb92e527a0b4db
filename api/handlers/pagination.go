package handlers

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse is one page of a list along with the total count.
type PaginatedResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePagination reads limit and offset from the query string. Invalid
// values fall back to the defaults; limit is capped at MaxLimit.
func ParsePagination(r *http.Request, defaultLimit int) PaginationParams {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	params := PaginationParams{Limit: defaultLimit}

	q := r.URL.Query()
	if parsed, err := strconv.Atoi(q.Get("limit")); err == nil && parsed > 0 {
		params.Limit = min(parsed, MaxLimit)
	}
	if parsed, err := strconv.Atoi(q.Get("offset")); err == nil && parsed >= 0 {
		params.Offset = parsed
	}
	return params
}
