// Package requesttime pins one "now" per request, so every timestamp taken while
// serving it (token iat, session activity, lockout windows, audit events) agrees.
package requesttime

import (
	"net/http"
	"time"

	"siaga/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
