package common

import (
	"net/http"
	"strconv"
)

// maxPerPage caps the limit a client may request for booking listings.
const maxPerPage = 100

// Pagination carries list metadata alongside booking history responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads page and limit from the query string, falling back to
// page 1 and the caller's default. The limit is clamped so a single request
// cannot sweep an unbounded slice of booking history.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}
