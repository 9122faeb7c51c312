// Package data provides the database access layer and repository
// implementations for the viewer subsystem.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docvault/viewer-api/internal/data/pgxutil"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
)

var (
	// ErrSessionNotFound is returned when a viewer session is not found.
	ErrSessionNotFound = errors.New("viewer session not found")
	// ErrSessionNotActive is returned when an operation requires an active
	// session and the row is closed, expired, or missing.
	ErrSessionNotActive = errors.New("viewer session not active")
)

// SessionRepo provides database operations for viewer sessions.
type SessionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSessionRepo creates a new SessionRepo with real time provider.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewSessionRepoWithTimeProvider creates a new SessionRepo with a custom time provider (useful for tests).
func NewSessionRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SessionRepo {
	return &SessionRepo{DB: db, timeProvider: tp}
}

const sessionColumns = `id, user_id, resource_id, ip_address, user_agent, page_count,
	pages_viewed, status, created_at, expires_at, last_activity_at`

// Create inserts a new active viewer session expiring ttl from now.
func (r *SessionRepo) Create(
	ctx context.Context,
	req *model.CreateSessionRequest,
	ttl time.Duration,
) (*model.ViewerSession, error) {
	if req == nil {
		return nil, errors.New("create session request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	var out model.ViewerSession
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO viewer_sessions (
				id, user_id, resource_id, ip_address, user_agent, page_count,
				pages_viewed, status, created_at, expires_at, last_activity_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, 0, 'active', $7, $8, $7
			) RETURNING `+sessionColumns,
			uuid.NewString(),
			req.UserID,
			req.ResourceID,
			req.IPAddress,
			req.UserAgent,
			req.PageCount,
			now,
			now.Add(ttl),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ViewerSession])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create viewer session: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// GetByID retrieves a viewer session by ID.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*model.ViewerSession, error) {
	var out model.ViewerSession
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+sessionColumns+` FROM viewer_sessions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ViewerSession])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get viewer session: %w", err)
	}
	return &out, nil
}

// Validate reports whether an active, unexpired session matches the key.
// A lapsed active row is flipped to expired first (lazy expiry); the flip is
// conditional on status so a concurrent close is never overwritten.
func (r *SessionRepo) Validate(ctx context.Context, key model.SessionKey) (bool, error) {
	var valid bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, `
			UPDATE viewer_sessions
			SET status = 'expired'
			WHERE id = $1 AND status = 'active' AND expires_at <= now()`,
			key.SessionID,
		); err != nil {
			return err
		}

		return conn.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM viewer_sessions
				WHERE id = $1 AND user_id = $2 AND resource_id = $3
				  AND status = 'active' AND expires_at > now()
			)`,
			key.SessionID, key.UserID, key.ResourceID,
		).Scan(&valid)
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate viewer session: %w", err)
	}
	return valid, nil
}

// Extend slides expires_at forward to now+ttl in a single conditional update.
// Only active, unexpired rows are touched, so a close or lazy expiry that
// raced ahead of the rotation always wins.
func (r *SessionRepo) Extend(ctx context.Context, id string, ttl time.Duration) (time.Time, error) {
	var newExpiry time.Time
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			UPDATE viewer_sessions
			SET expires_at = now() + make_interval(secs => $2), last_activity_at = now()
			WHERE id = $1 AND status = 'active' AND expires_at > now()
			RETURNING expires_at`,
			id, ttl.Seconds(),
		).Scan(&newExpiry)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrSessionNotActive
		}
		return time.Time{}, fmt.Errorf("failed to extend viewer session: %w", apperrors.MapDBError(err))
	}
	return newExpiry, nil
}

// RecordPageView applies pages_viewed = max(pages_viewed, page) atomically at
// the storage layer so overlapping page-view events never lose updates.
// A terminal session is left untouched without error; the audit entry for the
// event has already been appended by the caller.
func (r *SessionRepo) RecordPageView(ctx context.Context, id string, page int) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			UPDATE viewer_sessions
			SET pages_viewed = GREATEST(pages_viewed, $2), last_activity_at = now()
			WHERE id = $1 AND status = 'active'`,
			id, page,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to record page view: %w", err)
	}
	return nil
}

// Close transitions the session to closed. Idempotent: closing an already
// closed or expired session is a no-op, never an error.
func (r *SessionRepo) Close(ctx context.Context, id string) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			UPDATE viewer_sessions
			SET status = 'closed', last_activity_at = now()
			WHERE id = $1 AND status = 'active'`,
			id,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to close viewer session: %w", err)
	}
	return nil
}

// ExpireStale flips lapsed active sessions to expired in batches.
// Correctness never depends on this; validate expires lazily. This exists so
// reporting over session status stays honest between validate calls.
func (r *SessionRepo) ExpireStale(ctx context.Context, batchSize int) (int64, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	var updated int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx, `
			UPDATE viewer_sessions
			SET status = 'expired'
			WHERE id IN (
				SELECT id FROM viewer_sessions
				WHERE status = 'active' AND expires_at <= now()
				LIMIT $1
			)`,
			batchSize,
		)
		if execErr != nil {
			return execErr
		}
		updated = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale sessions: %w", err)
	}
	return updated, nil
}

// DeleteTerminatedBefore removes closed/expired sessions whose last activity
// predates cutoff. Batched to prevent long locks on large tables.
func (r *SessionRepo) DeleteTerminatedBefore(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
) (int64, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	var deleted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx, `
			DELETE FROM viewer_sessions
			WHERE id IN (
				SELECT id FROM viewer_sessions
				WHERE status IN ('closed', 'expired') AND last_activity_at < $1
				LIMIT $2
			)`,
			cutoff, batchSize,
		)
		if execErr != nil {
			return execErr
		}
		deleted = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminated sessions: %w", err)
	}
	return deleted, nil
}
