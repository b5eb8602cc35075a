package request

import (
	"net/http"
	"strconv"
)

const MaxLimit = 200

// Limit reads the "limit" query parameter. Missing or non-positive values
// yield fallback; values above MaxLimit are capped.
func Limit(r *http.Request, fallback int) int {
	limit := fallback
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}
