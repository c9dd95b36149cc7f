package service

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siaga/internal/auth/credential"
	"siaga/internal/auth/mfa"
	"siaga/internal/auth/models"
	"siaga/internal/auth/password"
	"siaga/internal/auth/session"
	"siaga/internal/auth/store/revocation"
	sessionstore "siaga/internal/auth/store/session"
	userstore "siaga/internal/auth/store/user"
	"siaga/internal/auth/token"
	"siaga/internal/platform/config"
	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/limiter"
	"siaga/internal/ratelimit/service/authlockout"
	"siaga/internal/ratelimit/service/requestlimit"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/requestcontext"
	"siaga/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

const (
	laptopUA    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	clientIP    = "203.0.113.7"
	goodPass    = "Banjir-Siaga-2024!"
	newPassword = "Gempa-Aman-2025!"
)

var fastParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type capturedReset struct {
	user  *models.User
	token string
}

type captureNotifier struct {
	sent []capturedReset
}

func (n *captureNotifier) NotifyPasswordReset(_ context.Context, user *models.User, resetToken string) error {
	n.sent = append(n.sent, capturedReset{user: user, token: resetToken})
	return nil
}

// FlowSuite runs the façade over in-process stores.
type FlowSuite struct {
	suite.Suite
	clock    *testutil.FixedClock
	users    *userstore.InMemoryUserStore
	verifier *mfa.Verifier
	notifier *captureNotifier
	hasher   *password.Hasher
	guard    *credential.Guard
	service  *Service
	citizen  *models.User
	admin    *models.User
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.clock = testutil.NewFixedClock(time.Now().UTC())
	kv := kvstore.NewLocal(kvstore.WithClock(s.clock.Now))
	s.users = userstore.New()
	s.verifier = mfa.NewVerifier("Siaga", 1, kv)
	s.notifier = &captureNotifier{}

	sessions, err := session.New(sessionstore.New(), revocation.NewList(kv), session.Config{
		Timeout:         24 * time.Hour,
		ElevationWindow: 15 * time.Minute,
		StoreTimeout:    time.Second,
	}, session.WithProofVerifier(mfa.NewChecker(s.verifier, s.users)))
	s.Require().NoError(err)

	key := make([]byte, token.KeySize)
	_, err = rand.Read(key)
	s.Require().NoError(err)
	keys, err := token.NewKeyring(key)
	s.Require().NoError(err)
	tokens, err := token.New(keys, token.Config{
		Issuer:     "siaga-auth",
		Audience:   "siaga",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   time.Hour,
		VerifyTTL:  24 * time.Hour,
	})
	s.Require().NoError(err)

	s.hasher = password.NewHasher(fastParams, password.Policy{MinLength: 10, RequireDigit: true, ForbiddenSubstrings: []string{"password"}})
	lockout, err := authlockout.New(kv, authlockout.WithConfig(authlockout.Config{
		Threshold: 3,
		Window:    10 * time.Minute,
		Duration:  10 * time.Minute,
	}))
	s.Require().NoError(err)
	s.guard, err = credential.New(s.hasher, lockout)
	s.Require().NoError(err)

	lim, err := limiter.New(kv)
	s.Require().NoError(err)
	policy, err := requestlimit.NewPolicy(config.RateLimitConfig{
		Default: config.StrategySpec{Strategy: "fixed_window", Requests: 100, Window: time.Minute},
		Endpoints: map[string]config.StrategySpec{
			requestlimit.LoginAction: {Strategy: "fixed_window", Requests: 8, Window: 5 * time.Minute},
		},
	})
	s.Require().NoError(err)
	loginLimiter, err := requestlimit.New(lim, policy)
	s.Require().NoError(err)

	roles, err := models.NewRoleTable(config.DefaultPolicy().Roles)
	s.Require().NoError(err)

	s.service, err = New(s.users, sessions, tokens, s.guard, revocation.NewList(kv), roles,
		Config{BindDevice: true},
		WithLoginLimiter(loginLimiter),
		WithResetNotifier(s.notifier),
	)
	s.Require().NoError(err)

	s.citizen = s.addUser("warga@example.id", models.RoleCitizen, "")
	secret, _, err := s.verifier.Enroll("admin@example.id")
	s.Require().NoError(err)
	s.admin = s.addUser("admin@example.id", models.RoleAdmin, secret)
}

func (s *FlowSuite) addUser(identity string, role models.Role, mfaSecret string) *models.User {
	hash, err := s.hasher.Hash(context.Background(), goodPass)
	s.Require().NoError(err)
	u := &models.User{
		ID:           id.NewUserID(),
		Identity:     identity,
		PasswordHash: hash,
		Role:         role,
		MFASecret:    mfaSecret,
	}
	s.Require().NoError(s.users.Save(context.Background(), u))
	return u
}

func (s *FlowSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.clock.Now())
	return testutil.WithClient(ctx, clientIP, laptopUA, "fp-laptop")
}

func (s *FlowSuite) login(identity string) *models.TokenResponse {
	resp, err := s.service.Login(s.ctx(), LoginRequest{Identity: identity, Password: goodPass})
	s.Require().NoError(err)
	return resp
}

func (s *FlowSuite) TestLoginAndAuthenticate() {
	resp := s.login("Warga@Example.id ")
	s.Equal("Bearer", resp.TokenType)
	s.Equal(int64(900), resp.ExpiresIn)

	principal, err := s.service.Authenticate(s.ctx(), resp.AccessToken, models.Requirements{
		Permissions: []string{"report_disaster"},
		Role:        models.RoleCitizen,
	})
	s.Require().NoError(err)
	s.Equal(s.citizen.ID, principal.UserID)
	s.Equal(models.RoleCitizen, principal.Role)
	s.False(principal.Elevated)
	s.Contains(principal.Permissions, "view_disasters")

	s.Run("refresh token is not an access token", func() {
		_, err := s.service.Authenticate(s.ctx(), resp.RefreshToken, models.Requirements{})
		s.ErrorIs(err, token.ErrInvalidToken)
	})
}

func (s *FlowSuite) TestLoginFailuresAreUniform() {
	_, unknownErr := s.service.Login(s.ctx(), LoginRequest{Identity: "nobody@example.id", Password: goodPass})
	_, wrongErr := s.service.Login(s.ctx(), LoginRequest{Identity: s.citizen.Identity, Password: "Wrong-pass-99"})

	s.ErrorIs(unknownErr, ErrInvalidCredentials)
	s.ErrorIs(wrongErr, ErrInvalidCredentials)

	s.Run("disabled accounts fail the same way", func() {
		disabled := s.addUser("off@example.id", models.RoleCitizen, "")
		disabled.Disabled = true
		s.Require().NoError(s.users.Save(context.Background(), disabled))
		_, err := s.service.Login(s.ctx(), LoginRequest{Identity: disabled.Identity, Password: goodPass})
		s.ErrorIs(err, ErrInvalidCredentials)
	})

	s.Run("missing fields are a validation error", func() {
		_, err := s.service.Login(s.ctx(), LoginRequest{Identity: " "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *FlowSuite) TestLockoutAfterThreshold() {
	for range 3 {
		_, err := s.service.Login(s.ctx(), LoginRequest{Identity: s.citizen.Identity, Password: "Wrong-pass-99"})
		s.ErrorIs(err, ErrInvalidCredentials)
	}

	_, err := s.service.Login(s.ctx(), LoginRequest{Identity: s.citizen.Identity, Password: goodPass})
	s.ErrorIs(err, ErrInvalidCredentials, "the right password does not bypass a lockout")
	s.Equal("invalid credentials", dErrors.MessageOf(err), "a lockout reads like a wrong password")
	locked, err := s.guard.IsLocked(s.ctx(), s.citizen.Identity, clientIP)
	s.Require().NoError(err)
	s.True(locked)

	s.clock.Advance(11 * time.Minute)
	s.login(s.citizen.Identity)
}

func (s *FlowSuite) TestLoginRateLimited() {
	for range 8 {
		_, err := s.service.Login(s.ctx(), LoginRequest{Identity: "nobody@example.id", Password: "Wrong-pass-99"})
		s.Require().Error(err)
	}
	_, err := s.service.Login(s.ctx(), LoginRequest{Identity: "nobody@example.id", Password: "Wrong-pass-99"})
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
	retryAfter, ok := dErrors.RetryAfterOf(err)
	s.True(ok)
	s.True(retryAfter > 0)
}

func (s *FlowSuite) TestRefreshRotatesAndDetectsReplay() {
	first := s.login(s.citizen.Identity)

	second, err := s.service.Refresh(s.ctx(), first.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(first.AccessToken, second.AccessToken)

	_, err = s.service.Authenticate(s.ctx(), first.AccessToken, models.Requirements{})
	s.ErrorIs(err, ErrSessionInactive, "rotation retires the old session")

	_, err = s.service.Authenticate(s.ctx(), second.AccessToken, models.Requirements{})
	s.Require().NoError(err)

	_, err = s.service.Refresh(s.ctx(), first.RefreshToken)
	s.ErrorIs(err, token.ErrInvalidToken)

	_, err = s.service.Authenticate(s.ctx(), second.AccessToken, models.Requirements{})
	s.ErrorIs(err, ErrSessionInactive, "a replayed refresh token revokes every session")
}

func (s *FlowSuite) TestAuthorization() {
	resp := s.login(s.citizen.Identity)

	s.Run("insufficient role", func() {
		_, err := s.service.Authenticate(s.ctx(), resp.AccessToken, models.Requirements{Role: models.RoleAdmin})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing permission lists what is missing", func() {
		_, err := s.service.Authenticate(s.ctx(), resp.AccessToken, models.Requirements{
			Permissions: []string{"report_disaster", "manage_users"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal([]string{"manage_users"}, dErrors.DetailsOf(err))
	})

	s.Run("unknown token", func() {
		_, err := s.service.Authenticate(s.ctx(), "not-a-token", models.Requirements{})
		s.ErrorIs(err, token.ErrInvalidToken)
	})
}

func (s *FlowSuite) TestElevation() {
	resp := s.login(s.admin.Identity)
	needsElevation := models.Requirements{Role: models.RoleAdmin, RequireElevation: true}

	principal, err := s.service.Authenticate(s.ctx(), resp.AccessToken, models.Requirements{})
	s.Require().NoError(err)

	_, err = s.service.Authenticate(s.ctx(), resp.AccessToken, needsElevation)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Elevate(s.ctx(), principal, "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	code, err := s.verifier.Code(s.admin.MFASecret, s.clock.Now())
	s.Require().NoError(err)
	elevated, err := s.service.Elevate(s.ctx(), principal, code)
	s.Require().NoError(err)
	s.True(elevated.Elevated)
	s.True(elevated.MFAVerified)

	_, err = s.service.Authenticate(s.ctx(), resp.AccessToken, needsElevation)
	s.Require().NoError(err)

	s.Run("a used code is not accepted again", func() {
		_, err := s.service.Elevate(s.ctx(), principal, code)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("elevation lapses after the window", func() {
		s.clock.Advance(16 * time.Minute)
		refreshed, err := s.service.Refresh(s.ctx(), resp.RefreshToken)
		s.Require().NoError(err)
		_, err = s.service.Authenticate(s.ctx(), refreshed.AccessToken, needsElevation)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *FlowSuite) TestDeviceBinding() {
	resp := s.login(s.citizen.Identity)

	phone := testutil.WithClient(requestcontext.WithTime(context.Background(), s.clock.Now()), clientIP, laptopUA, "fp-phone")
	_, err := s.service.Authenticate(phone, resp.AccessToken, models.Requirements{})
	s.ErrorIs(err, ErrBindingMismatch)

	_, err = s.service.Refresh(phone, resp.RefreshToken)
	s.ErrorIs(err, ErrBindingMismatch)
}

func (s *FlowSuite) TestValidationFailuresShareOneMessage() {
	revoked := s.login(s.citizen.Identity)
	s.Require().NoError(s.service.Logout(s.ctx(), revoked.AccessToken))
	bound := s.login(s.citizen.Identity)
	phone := testutil.WithClient(requestcontext.WithTime(context.Background(), s.clock.Now()), clientIP, laptopUA, "fp-phone")

	_, badToken := s.service.Authenticate(s.ctx(), "not-a-token", models.Requirements{})
	_, revokedErr := s.service.Authenticate(s.ctx(), revoked.AccessToken, models.Requirements{})
	_, mismatch := s.service.Authenticate(phone, bound.AccessToken, models.Requirements{})

	for name, err := range map[string]error{"bad token": badToken, "revoked session": revokedErr, "device mismatch": mismatch} {
		s.Run(name, func() {
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
			s.Equal(dErrors.MessageOf(token.ErrInvalidToken), dErrors.MessageOf(err))
		})
	}
}

func (s *FlowSuite) TestLogout() {
	resp := s.login(s.citizen.Identity)

	s.Require().NoError(s.service.Logout(s.ctx(), resp.AccessToken))
	_, err := s.service.Authenticate(s.ctx(), resp.AccessToken, models.Requirements{})
	s.ErrorIs(err, ErrSessionInactive)

	s.NoError(s.service.Logout(s.ctx(), resp.AccessToken), "repeated logout succeeds")
	s.NoError(s.service.Logout(s.ctx(), "garbage"), "an invalid token is a no-op")
}

func (s *FlowSuite) TestLogoutAllAndSessions() {
	a := s.login(s.citizen.Identity)
	b := s.login(s.citizen.Identity)

	principal, err := s.service.Authenticate(s.ctx(), a.AccessToken, models.Requirements{})
	s.Require().NoError(err)
	listed, err := s.service.Sessions(s.ctx(), principal)
	s.Require().NoError(err)
	s.Len(listed.Sessions, 2)
	current := 0
	for _, sess := range listed.Sessions {
		if sess.IsCurrent {
			current++
		}
	}
	s.Equal(1, current)

	result, err := s.service.LogoutAll(s.ctx(), s.citizen.ID)
	s.Require().NoError(err)
	s.Equal(2, result.Revoked)

	for _, tok := range []string{a.AccessToken, b.AccessToken} {
		_, err := s.service.Authenticate(s.ctx(), tok, models.Requirements{})
		s.ErrorIs(err, ErrSessionInactive)
	}
}

func (s *FlowSuite) TestPasswordReset() {
	resp := s.login(s.citizen.Identity)

	s.Require().NoError(s.service.RequestPasswordReset(s.ctx(), s.citizen.Identity))
	s.Require().Len(s.notifier.sent, 1)
	resetToken := s.notifier.sent[0].token

	s.Run("weak password keeps the token usable", func() {
		err := s.service.ResetPassword(s.ctx(), resetToken, "short")
		s.True(dErrors.HasCode(err, dErrors.CodeWeakPassword))
	})

	s.Require().NoError(s.service.ResetPassword(s.ctx(), resetToken, newPassword))

	_, err := s.service.Authenticate(s.ctx(), resp.AccessToken, models.Requirements{})
	s.ErrorIs(err, ErrSessionInactive, "a reset revokes existing sessions")

	_, err = s.service.Login(s.ctx(), LoginRequest{Identity: s.citizen.Identity, Password: goodPass})
	s.ErrorIs(err, ErrInvalidCredentials)
	_, err = s.service.Login(s.ctx(), LoginRequest{Identity: s.citizen.Identity, Password: newPassword})
	s.Require().NoError(err)

	s.ErrorIs(s.service.ResetPassword(s.ctx(), resetToken, "Another-pass-77"), token.ErrInvalidToken)

	s.Run("unknown identity is silent", func() {
		s.NoError(s.service.RequestPasswordReset(s.ctx(), "nobody@example.id"))
		s.Len(s.notifier.sent, 1)
	})
}

func (s *FlowSuite) TestVerifyIdentity() {
	verifyToken, err := s.service.IssueVerifyToken(s.ctx(), s.citizen.ID)
	s.Require().NoError(err)

	resetToken, _, err := s.service.IssueResetToken(s.ctx(), s.citizen.Identity)
	s.Require().NoError(err)
	s.ErrorIs(s.service.VerifyIdentity(s.ctx(), resetToken), token.ErrInvalidToken, "kinds are not interchangeable")

	s.Require().NoError(s.service.VerifyIdentity(s.ctx(), verifyToken))
	u, err := s.users.FindByID(context.Background(), s.citizen.ID)
	s.Require().NoError(err)
	s.True(u.Verified)

	s.ErrorIs(s.service.VerifyIdentity(s.ctx(), verifyToken), token.ErrInvalidToken)
}
