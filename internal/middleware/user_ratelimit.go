package middleware

import (
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// Per-user write limit on the entries and prompts API: 2 req/s, burst 20. The editor autosaves
// at most every 2s, so this only trips on scripted traffic.
const (
	userWriteRPS   = 2
	userWriteBurst = 20
)

// UserRateLimit limits mutating requests per authenticated user. Use after RequireUser.
func UserRateLimit() func(http.Handler) http.Handler {
	limiters := newKeyedLimiters(rate.Limit(userWriteRPS), userWriteBurst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			user, ok := UserFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(userWriteBurst))
			if !limiters.allow(user.ID.String()) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
