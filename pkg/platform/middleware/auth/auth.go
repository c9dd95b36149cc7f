package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"siaga/internal/auth/models"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/httputil"
	"siaga/pkg/requestcontext"
)

// Authenticator validates a bearer token against its session and the route's requirements.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string, req models.Requirements) (*models.Principal, error)
}

type (
	contextKeyPrincipal struct{}
	contextKeyToken     struct{}
)

// Principal returns the authenticated principal, or nil outside RequireAuth.
func Principal(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(contextKeyPrincipal{}).(*models.Principal)
	return p
}

// AccessToken returns the bearer token RequireAuth accepted.
func AccessToken(ctx context.Context) string {
	tok, _ := ctx.Value(contextKeyToken{}).(string)
	return tok
}

// WithPrincipal injects a principal into a context.
// Useful for handler tests that don't run the full middleware chain.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	ctx = context.WithValue(ctx, contextKeyPrincipal{}, p)
	ctx = requestcontext.WithUserID(ctx, p.UserID)
	ctx = requestcontext.WithSessionID(ctx, p.SessionID)
	return requestcontext.WithRole(ctx, p.Role.String())
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth authenticates the bearer token with the given requirements and
// exposes the principal to the handler.
func RequireAuth(authn Authenticator, req models.Requirements, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			principal, err := authn.Authenticate(ctx, token, req)
			if err != nil {
				level := slog.LevelWarn
				if dErrors.HasCode(err, dErrors.CodeInternal) {
					level = slog.LevelError
				}
				logger.Log(ctx, level, "request not authorized",
					"error", err,
					"code", string(dErrors.CodeOf(err)),
					"request_id", requestID,
				)
				httputil.WriteError(w, err)
				return
			}

			ctx = WithPrincipal(ctx, principal)
			ctx = context.WithValue(ctx, contextKeyToken{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
