package middleware

import (
	"context"
	"net/http"

	pkghttp "github.com/aegisauth/aegis/pkg/http"
)

// BlocklistChecker answers whether an origin IP is currently denied
type BlocklistChecker interface {
	IsBlocked(ctx context.Context, ipAddress string) bool
}

// Blocklist rejects requests from blocked origin IPs before they reach
// any handler. The check runs against the in-process blocklist cache,
// so the hot path never waits on the database.
func Blocklist(checker BlocklistChecker, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipConfig)

			if checker.IsBlocked(r.Context(), ip) {
				pkghttp.WriteIPBlocked(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
