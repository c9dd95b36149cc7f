// Package admin guards operator endpoints (metrics scraping) with a static token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/httputil"
	"siaga/pkg/platform/middleware/auth"
	"siaga/pkg/requestcontext"
)

// RequireOperatorToken accepts the token as a bearer token or in X-Admin-Token.
// An empty expected token leaves the route open.
func RequireOperatorToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if token == "" {
				token, _ = auth.BearerToken(r)
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "operator token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "operator token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
