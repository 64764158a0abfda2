package middleware

import (
	"net/http"
	"strings"
)

var protectedPagePrefixes = []string{"/journal", "/entries", "/settings", "/billing"}

func isProtectedPage(path string) bool {
	for _, p := range protectedPagePrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// PageGuard redirects signed-out visitors away from app pages and signed-in users away from
// /login. With auth unconfigured every page is let through.
func PageGuard(a *Auth, configured bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !configured || path == "/callback" || path == "/auth/callback" {
				next.ServeHTTP(w, r)
				return
			}

			protected := isProtectedPage(path)
			if !protected && path != "/login" {
				next.ServeHTTP(w, r)
				return
			}

			_, err := a.Identify(r, false)
			signedIn := err == nil
			switch {
			case protected && !signedIn:
				http.Redirect(w, r, "/login", http.StatusFound)
			case path == "/login" && signedIn:
				http.Redirect(w, r, "/journal/new", http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
