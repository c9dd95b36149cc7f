package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"siaga/internal/auth/models"
	"siaga/internal/auth/service"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/httputil"
	"siaga/pkg/platform/middleware/auth"
	"siaga/pkg/requestcontext"
)

// AuthService is the subset of the authentication façade the handlers call.
type AuthService interface {
	Login(ctx context.Context, req service.LoginRequest) (*models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID id.UserID) (*models.RevokeAllResult, error)
	Elevate(ctx context.Context, principal *models.Principal, mfaProof string) (*models.Principal, error)
	Sessions(ctx context.Context, principal *models.Principal) (*models.SessionsResult, error)
	RequestPasswordReset(ctx context.Context, identity string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	VerifyIdentity(ctx context.Context, verifyToken string) error
}

type AuthHandler struct {
	auth         AuthService
	logger       *slog.Logger
	maxBodyBytes int64
}

func NewAuthHandler(auth AuthService, logger *slog.Logger, maxBodyBytes int64) *AuthHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 16
	}
	return &AuthHandler{auth: auth, logger: logger, maxBodyBytes: maxBodyBytes}
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req service.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.auth.Login(ctx, req)
	if err != nil {
		h.fail(ctx, w, "login failed", err)
		return
	}
	writeTokens(w, resp)
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "refresh_token is required"))
		return
	}
	resp, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.fail(ctx, w, "refresh failed", err)
		return
	}
	writeTokens(w, resp)
}

// handleLogout revokes the session behind the bearer token, or behind the
// refresh token in the body when no bearer token is sent. It always answers 204
// unless the store fails.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := auth.BearerToken(r)
	if !ok && r.ContentLength != 0 {
		var req models.LogoutRequest
		if !h.decode(w, r, &req) {
			return
		}
		token = req.RefreshToken
	}
	if token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			h.fail(ctx, w, "logout failed", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	result, err := h.auth.LogoutAll(ctx, principal.UserID)
	if err != nil {
		h.fail(ctx, w, "logout-all failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) handleElevate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.ElevateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.MFACode) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "mfa_code is required"))
		return
	}
	elevated, err := h.auth.Elevate(ctx, principal, strings.TrimSpace(req.MFACode))
	if err != nil {
		h.fail(ctx, w, "elevation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, elevated.Response())
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principal.Response())
}

func (h *AuthHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	result, err := h.auth.Sessions(ctx, principal)
	if err != nil {
		h.fail(ctx, w, "list sessions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handlePasswordResetRequest answers 202 whether or not the identity exists.
func (h *AuthHandler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.PasswordResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Identity) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "identity is required"))
		return
	}
	if err := h.auth.RequestPasswordReset(ctx, req.Identity); err != nil {
		h.fail(ctx, w, "password reset request failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *AuthHandler) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.PasswordResetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token and new_password are required"))
		return
	}
	if err := h.auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		h.fail(ctx, w, "password reset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.VerifyIdentityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}
	if err := h.auth.VerifyIdentity(ctx, req.Token); err != nil {
		h.fail(ctx, w, "identity verification failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleAdminPing(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"user_id": principal.UserID.String(),
	})
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, h.maxBodyBytes, dst); err != nil {
		h.logger.DebugContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

// principal is only missing when a route was registered without RequireAuth.
func (h *AuthHandler) principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p := auth.Principal(r.Context())
	if p == nil {
		h.logger.ErrorContext(r.Context(), "principal missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return nil, false
	}
	return p, true
}

func (h *AuthHandler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelInfo
	if code := dErrors.CodeOf(err); code == "" || code == dErrors.CodeInternal || code == dErrors.CodeConfiguration {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func writeTokens(w http.ResponseWriter, resp *models.TokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httputil.WriteJSON(w, http.StatusOK, resp)
}
