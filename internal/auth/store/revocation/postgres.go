package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "siaga/pkg/domain"
)

// Schema creates the ledger table. Applied by migrations in deployment and by
// integration suites directly.
const Schema = `
CREATE TABLE IF NOT EXISTS session_revocations (
	session_id  TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	revoked_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS session_revocations_user_idx ON session_revocations (user_id);
`

// Ledger is a durable record of revocations. It does not sit on the request
// path; the key-value tombstones answer IsRevoked.
type Ledger struct {
	db    *sql.DB
	clock func() time.Time
}

type LedgerOption func(*Ledger)

// WithLedgerClock sets the clock function for testability.
func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewLedger(db *sql.DB, opts ...LedgerOption) *Ledger {
	l := &Ledger{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Record upserts a revocation entry that is retained until ttl elapses.
func (l *Ledger) Record(ctx context.Context, sessionID id.SessionID, userID id.UserID, reason string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	now := l.clock()
	query := `
		INSERT INTO session_revocations (session_id, user_id, reason, revoked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at
	`
	_, err := l.db.ExecContext(ctx, query, sessionID.String(), userID.String(), reason, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("record revocation: %w", err)
	}
	return nil
}

// IsRevoked checks a single session against the ledger.
func (l *Ledger) IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	var expiresAt time.Time
	err := l.db.QueryRowContext(ctx,
		`SELECT expires_at FROM session_revocations WHERE session_id = $1`, sessionID.String(),
	).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return l.clock().Before(expiresAt), nil
}

// RevokedAmong returns the subset of sessionIDs with a live ledger entry, in
// one round trip.
func (l *Ledger) RevokedAmong(ctx context.Context, sessionIDs []id.SessionID) (map[id.SessionID]bool, error) {
	out := make(map[id.SessionID]bool)
	if len(sessionIDs) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(sessionIDs))
	for _, sid := range sessionIDs {
		ids = append(ids, sid.String())
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id FROM session_revocations WHERE session_id = ANY($1) AND expires_at > $2`,
		pq.Array(ids), l.clock(),
	)
	if err != nil {
		return nil, fmt.Errorf("batch revocation lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan revocation: %w", err)
		}
		sid, err := id.ParseSessionID(raw)
		if err != nil {
			continue
		}
		out[sid] = true
	}
	return out, rows.Err()
}

// Prune deletes entries past their retention and returns how many were removed.
func (l *Ledger) Prune(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM session_revocations WHERE expires_at <= $1`, l.clock())
	if err != nil {
		return 0, fmt.Errorf("prune revocations: %w", err)
	}
	return res.RowsAffected()
}
