// Package token mints and verifies the sealed bearer tokens.
//
// Tokens are opaque to every other package: claims are encrypted and authenticated
// with XChaCha20-Poly1305, so they can be neither read nor altered without the key.
// Verify checks the token alone; callers that need session-bound trust must also
// consult the session service.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"siaga/internal/auth/metrics"
	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/requestcontext"
)

// Special token lifetimes are clamped to this range.
const (
	minSpecialTTL = time.Hour
	maxSpecialTTL = 24 * time.Hour
)

// ErrInvalidToken is the only error Verify returns, whatever the internal cause.
var ErrInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")

// Config holds lifetimes and the registered claims every token carries.
type Config struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	VerifyTTL  time.Duration
	Leeway     time.Duration
}

// PairRequest is the input to IssuePair. The session record must be written by the caller.
type PairRequest struct {
	UserID            id.UserID
	Role              models.Role
	Permissions       []string
	SessionID         id.SessionID
	DeviceFingerprint string
	IP                string
}

// Service mints and verifies tokens. It holds no per-request state.
type Service struct {
	keys    *Keyring
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(keys *Keyring, cfg Config, opts ...Option) (*Service, error) {
	if keys == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "token keyring is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "access and refresh TTL must be positive")
	}
	cfg.ResetTTL = clamp(cfg.ResetTTL, minSpecialTTL, maxSpecialTTL)
	cfg.VerifyTTL = clamp(cfg.VerifyTTL, minSpecialTTL, maxSpecialTTL)

	s := &Service{
		keys:   keys,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL is the access token lifetime, reported to clients as expires_in.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL is the refresh token lifetime, reported as refresh_expires_in.
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// IssuePair mints an access and a refresh token for the same session.
func (s *Service) IssuePair(ctx context.Context, req PairRequest) (*models.TokenPair, error) {
	if req.UserID.IsNil() || req.SessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token pair requires user and session")
	}
	if !req.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token pair requires a known role")
	}
	now := requestcontext.Now(ctx)

	access, err := s.mint(models.Claims{
		RegisteredClaims:  s.registered(req.UserID, now, s.cfg.AccessTTL),
		Role:              req.Role,
		Permissions:       req.Permissions,
		SessionID:         req.SessionID.String(),
		Kind:              models.TokenKindAccess,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                req.IP,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(models.Claims{
		RegisteredClaims:  s.registered(req.UserID, now, s.cfg.RefreshTTL),
		Role:              req.Role,
		Permissions:       req.Permissions,
		SessionID:         req.SessionID.String(),
		Kind:              models.TokenKindRefresh,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                req.IP,
	})
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(s.cfg.AccessTTL.Seconds()),
		RefreshExpiresIn: int64(s.cfg.RefreshTTL.Seconds()),
		SessionID:        req.SessionID.String(),
	}, nil
}

// IssueSpecial mints a single-purpose reset or verify token with no permissions and no session.
func (s *Service) IssueSpecial(ctx context.Context, userID id.UserID, kind models.TokenKind) (string, error) {
	if !kind.IsSpecial() {
		return "", dErrors.New(dErrors.CodeValidation, "special token kind must be reset or verify")
	}
	if userID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "special token requires a user")
	}
	ttl := s.cfg.VerifyTTL
	if kind == models.TokenKindReset {
		ttl = s.cfg.ResetTTL
	}
	now := requestcontext.Now(ctx)
	return s.mint(models.Claims{
		RegisteredClaims: s.registered(userID, now, ttl),
		Kind:             kind,
	})
}

// Verify decrypts token and checks its structure and validity window. It does
// not consult the session store.
func (s *Service) Verify(ctx context.Context, token string) (*models.Claims, error) {
	plain, err := open(s.keys, token)
	if err != nil {
		return nil, s.reject(ctx, rejectReason(err))
	}

	var claims models.Claims
	if err := json.Unmarshal(plain, &claims); err != nil {
		return nil, s.reject(ctx, "payload")
	}

	now := requestcontext.Now(ctx)
	validator := jwt.NewValidator(
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
	)
	if err := validator.Validate(&claims); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, s.reject(ctx, "expired")
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, s.reject(ctx, "not_yet_valid")
		default:
			return nil, s.reject(ctx, "claims")
		}
	}
	if err := checkStructure(&claims); err != nil {
		return nil, s.reject(ctx, "structure")
	}
	return &claims, nil
}

// VerifyKind is Verify plus a kind check. A kind mismatch is indistinguishable from
// any other invalid token.
func (s *Service) VerifyKind(ctx context.Context, token string, kind models.TokenKind) (*models.Claims, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, s.reject(ctx, "kind")
	}
	return claims, nil
}

func (s *Service) registered(userID id.UserID, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (s *Service) mint(claims models.Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode token claims")
	}
	token, err := seal(s.keys, payload)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal token")
	}
	s.metrics.IncTokensIssued(string(claims.Kind))
	return token, nil
}

func (s *Service) reject(ctx context.Context, reason string) error {
	s.metrics.IncTokenRejection(reason)
	s.logger.DebugContext(ctx, "token rejected", "reason", reason)
	return ErrInvalidToken
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, errUnknownKey):
		return "unknown_key"
	case errors.Is(err, errDecrypt):
		return "decrypt"
	default:
		return "malformed"
	}
}

// checkStructure enforces the shape each kind must have.
func checkStructure(c *models.Claims) error {
	if _, err := id.ParseUserID(c.Subject); err != nil {
		return err
	}
	if c.ID == "" || c.IssuedAt == nil || c.NotBefore == nil {
		return errors.New("missing registered claims")
	}
	switch {
	case c.Kind == models.TokenKindAccess || c.Kind == models.TokenKindRefresh:
		if _, err := id.ParseSessionID(c.SessionID); err != nil {
			return err
		}
		if !c.Role.IsValid() {
			return errors.New("unknown role")
		}
	case c.Kind.IsSpecial():
		if c.SessionID != "" || len(c.Permissions) > 0 {
			return errors.New("special token carries session state")
		}
	default:
		return errors.New("unknown kind")
	}
	return nil
}

func clamp(d, lo, hi time.Duration) time.Duration {
	return min(max(d, lo), hi)
}
