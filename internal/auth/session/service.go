// Package session is the authority for session validity: revocation,
// expiry, activity and elevation. Every store call it makes is bounded by the
// configured store timeout.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"siaga/internal/auth/metrics"
	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

const (
	maxConflictRetries = 3
	revokeAllParallel  = 8
)

// Store persists session records.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
}

// Tombstones records revoked session ids.
type Tombstones interface {
	RevokeSession(ctx context.Context, sessionID id.SessionID, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error)
}

// Ledger keeps a durable record of revocations. Optional.
type Ledger interface {
	Record(ctx context.Context, sessionID id.SessionID, userID id.UserID, reason string, ttl time.Duration) error
}

// ProofVerifier checks an MFA proof for a user.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, userID id.UserID, proof string, now time.Time) error
}

type Config struct {
	// Timeout is the normal session lifetime, re-extended on activity.
	Timeout         time.Duration
	ElevationWindow time.Duration
	StoreTimeout    time.Duration
}

type Service struct {
	store      Store
	tombstones Tombstones
	ledger     Ledger
	proofs     ProofVerifier
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithLedger(l Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

func WithProofVerifier(v ProofVerifier) Option {
	return func(s *Service) {
		s.proofs = v
	}
}

func New(store Store, tombstones Tombstones, cfg Config, opts ...Option) (*Service, error) {
	if store == nil || tombstones == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "session store and tombstones are required")
	}
	if cfg.Timeout <= 0 || cfg.ElevationWindow <= 0 || cfg.StoreTimeout <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "session timeouts must be positive")
	}
	s := &Service{
		store:      store,
		tombstones: tombstones,
		cfg:        cfg,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Timeout is the normal session lifetime.
func (s *Service) Timeout() time.Duration { return s.cfg.Timeout }

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// Create persists a new session. ExpiresAt defaults to now plus the session
// timeout when unset.
func (s *Service) Create(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID.IsNil() || session.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "session requires an id and a user")
	}
	now := requestcontext.Now(ctx)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = now
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = now.Add(s.cfg.Timeout)
	}

	bctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.store.Create(bctx, session); err != nil {
		s.metrics.IncSessionOp("create", "error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	s.metrics.IncSessionOp("create", "ok")
	return nil
}

// Get returns a live session. Absent, expired and revoked sessions all yield
// sentinel.ErrNotFound. A lapsed elevation is cleared on the returned copy.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	revoked, err := s.IsRevoked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if revoked {
		s.metrics.IncSessionOp("get", "revoked")
		return nil, fmt.Errorf("session revoked: %w", sentinel.ErrNotFound)
	}

	bctx, cancel := s.bounded(ctx)
	defer cancel()
	session, err := s.store.FindByID(bctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncSessionOp("get", "not_found")
			return nil, err
		}
		s.metrics.IncSessionOp("get", "error")
		return nil, fmt.Errorf("find session: %w", err)
	}

	now := requestcontext.Now(ctx)
	if session.IsExpired(now) {
		s.metrics.IncSessionOp("get", "expired")
		return nil, fmt.Errorf("session expired: %w", sentinel.ErrNotFound)
	}
	session.LapseElevation(now)
	s.metrics.IncSessionOp("get", "ok")
	return session, nil
}

// Touch records activity and re-extends the session by the normal timeout. An
// open elevation keeps its own expiry. Failures are logged and swallowed.
func (s *Service) Touch(ctx context.Context, sessionID id.SessionID) {
	now := requestcontext.Now(ctx)
	bctx, cancel := s.bounded(ctx)
	defer cancel()

	_, err := s.store.Execute(bctx, sessionID,
		func(sess *models.Session) error {
			if sess.IsExpired(now) {
				return sentinel.ErrExpired
			}
			return nil
		},
		func(sess *models.Session) {
			sess.LastActivityAt = now
			sess.LapseElevation(now)
			sess.ExpiresAt = now.Add(s.cfg.Timeout)
		},
	)
	if err != nil {
		s.metrics.IncSessionOp("touch", "error")
		s.logger.WarnContext(ctx, "session touch failed",
			"session_id", sessionID.String(),
			"error", err,
		)
		return
	}
	s.metrics.IncSessionOp("touch", "ok")
}

// Elevate opens the elevation window on a live session. A non-empty proof must
// verify, and marks the session MFA-verified.
func (s *Service) Elevate(ctx context.Context, sessionID id.SessionID, mfaProof string) (*models.Session, error) {
	current, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session not active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	now := requestcontext.Now(ctx)
	verified := false
	if mfaProof != "" {
		if s.proofs == nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid MFA proof")
		}
		if err := s.proofs.VerifyProof(ctx, current.UserID, mfaProof, now); err != nil {
			s.metrics.IncSessionOp("elevate", "proof_rejected")
			if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
				return nil, err
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify MFA proof")
		}
		verified = true
	}

	var updated *models.Session
	for attempt := range maxConflictRetries {
		updated, err = s.execute(ctx, sessionID,
			func(sess *models.Session) error {
				if sess.IsExpired(now) {
					return sentinel.ErrExpired
				}
				return nil
			},
			func(sess *models.Session) {
				sess.Elevated = true
				sess.ElevatedUntil = now.Add(s.cfg.ElevationWindow)
				sess.MFAVerified = sess.MFAVerified || verified
				sess.LastActivityAt = now
			},
		)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		s.logger.DebugContext(ctx, "session elevate conflict, retrying", "attempt", attempt+1)
	}
	if err != nil {
		s.metrics.IncSessionOp("elevate", "error")
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session not active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to elevate session")
	}
	s.metrics.IncSessionOp("elevate", "ok")
	s.logger.InfoContext(ctx, "session elevated",
		"session_id", sessionID.String(),
		"user_id", updated.UserID.String(),
		"mfa_verified", updated.MFAVerified,
		"elevated_until", updated.ElevatedUntil,
	)
	return updated, nil
}

func (s *Service) execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	bctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.Execute(bctx, sessionID, validate, mutate)
}

// Revoke tombstones the session and then deletes its record. Revoking an
// absent or already revoked session succeeds.
func (s *Service) Revoke(ctx context.Context, sessionID id.SessionID) error {
	return s.revoke(ctx, sessionID, "logout")
}

func (s *Service) revoke(ctx context.Context, sessionID id.SessionID, reason string) error {
	if sessionID.IsNil() {
		return nil
	}
	bctx, cancel := s.bounded(ctx)
	defer cancel()

	var userID id.UserID
	if existing, err := s.store.FindByID(bctx, sessionID); err == nil {
		userID = existing.UserID
	}

	if err := s.tombstones.RevokeSession(bctx, sessionID, s.cfg.Timeout); err != nil {
		s.metrics.IncSessionOp("revoke", "error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	if err := s.store.Delete(bctx, sessionID); err != nil {
		// the tombstone already blocks the session; the record ages out by TTL
		s.logger.WarnContext(ctx, "failed to delete revoked session record",
			"session_id", sessionID.String(),
			"error", err,
		)
	}
	if s.ledger != nil && !userID.IsNil() {
		if err := s.ledger.Record(bctx, sessionID, userID, reason, s.cfg.Timeout); err != nil {
			s.logger.WarnContext(ctx, "failed to record revocation",
				"session_id", sessionID.String(),
				"error", err,
			)
		}
	}
	s.metrics.IncSessionOp("revoke", "ok")
	return nil
}

// IsRevoked reports whether a tombstone exists for the session.
func (s *Service) IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	bctx, cancel := s.bounded(ctx)
	defer cancel()
	revoked, err := s.tombstones.IsRevoked(bctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// ListForUser returns the user's live sessions.
func (s *Service) ListForUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	bctx, cancel := s.bounded(ctx)
	defer cancel()
	sessions, err := s.store.ListByUser(bctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	now := requestcontext.Now(ctx)
	live := make([]*models.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.IsExpired(now) {
			continue
		}
		sess.LapseElevation(now)
		live = append(live, sess)
	}
	return live, nil
}

// RevokeAllForUser revokes every live session of the user. It continues past
// individual failures and reports them in the result; it only fails outright
// when the sessions cannot be listed.
func (s *Service) RevokeAllForUser(ctx context.Context, userID id.UserID) (*models.RevokeAllResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	sessions, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	result := &models.RevokeAllResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(revokeAllParallel)
	for _, sess := range sessions {
		g.Go(func() error {
			err := s.revoke(gctx, sess.ID, "logout_all")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, sess.ID.String())
				s.logger.ErrorContext(ctx, "failed to revoke session during logout-all",
					"error", err,
					"session_id", sess.ID.String(),
					"user_id", userID.String(),
				)
				return nil
			}
			result.Revoked++
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

// Rotate replaces a session with a fresh id carrying the same identity,
// permission snapshot and binding, then revokes the old one. Elevation does
// not carry over.
func (s *Service) Rotate(ctx context.Context, old *models.Session) (*models.Session, error) {
	now := requestcontext.Now(ctx)
	next := *old
	next.ID = id.NewSessionID()
	next.Permissions = append([]string(nil), old.Permissions...)
	next.LastActivityAt = now
	next.ExpiresAt = now.Add(s.cfg.Timeout)
	next.Generation = old.Generation + 1
	next.Elevated = false
	next.ElevatedUntil = time.Time{}

	if err := s.Create(ctx, &next); err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, old.ID, "rotated"); err != nil {
		// both sessions would otherwise stay valid
		_ = s.revoke(ctx, next.ID, "rotation_failed")
		return nil, err
	}
	s.metrics.IncSessionOp("rotate", "ok")
	return &next, nil
}
