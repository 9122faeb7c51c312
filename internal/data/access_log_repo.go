package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docvault/viewer-api/internal/data/pgxutil"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
)

// AccessLogRepo provides append-only storage for access audit entries.
// There is intentionally no update or delete surface beyond retention pruning.
type AccessLogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAccessLogRepo creates a new AccessLogRepo with real time provider.
func NewAccessLogRepo(db *sql.DB) *AccessLogRepo {
	return &AccessLogRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAccessLogRepoWithTimeProvider creates a new AccessLogRepo with a custom time provider (useful for tests).
func NewAccessLogRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AccessLogRepo {
	return &AccessLogRepo{DB: db, timeProvider: tp}
}

// accessLogColumns defines the column list for access log SELECT queries to ensure consistent field mapping.
const accessLogColumns = `id, user_id, resource_id, session_id, action, page_number, metadata, created_at`

const (
	defaultAccessLogLimit = 50
	maxAccessLogLimit     = 500
)

func clampAccessLogLimit(limit int) int {
	if limit < 1 {
		return defaultAccessLogLimit
	}
	if limit > maxAccessLogLimit {
		return maxAccessLogLimit
	}
	return limit
}

// Append inserts one audit entry and returns the stored row.
func (r *AccessLogRepo) Append(
	ctx context.Context,
	req *model.AppendLogRequest,
) (*model.AccessLogEntry, error) {
	if req == nil {
		return nil, fmt.Errorf("append log request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	var out model.AccessLogEntry
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO access_logs (
				id, user_id, resource_id, session_id, action, page_number, metadata, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8
			) RETURNING `+accessLogColumns,
			uuid.NewString(),
			req.UserID,
			req.ResourceID,
			req.SessionID,
			req.Action,
			req.PageNumber,
			metadata,
			r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.AccessLogEntry])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to append access log entry: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// buildAccessLogFilters constructs the WHERE clause and args for the admin log
// query. MetadataQuery is not handled here; it runs against decoded metadata
// in the service layer after the page is fetched.
func buildAccessLogFilters(opts model.AccessLogListOptions) (string, []any, int) {
	query := ` WHERE 1=1`
	args := []any{}
	argIndex := 1

	if opts.UserID != nil && *opts.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIndex)
		args = append(args, *opts.UserID)
		argIndex++
	}
	if opts.ResourceID != nil && *opts.ResourceID != "" {
		query += fmt.Sprintf(` AND resource_id = $%d`, argIndex)
		args = append(args, *opts.ResourceID)
		argIndex++
	}
	if opts.Action != nil && *opts.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, argIndex)
		args = append(args, *opts.Action)
		argIndex++
	}
	if opts.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIndex)
		args = append(args, opts.From.UTC())
		argIndex++
	}
	if opts.To != nil {
		query += fmt.Sprintf(` AND created_at < $%d`, argIndex)
		args = append(args, opts.To.UTC())
		argIndex++
	}

	return query, args, argIndex
}

// List returns audit entries matching the options, newest first.
func (r *AccessLogRepo) List(
	ctx context.Context,
	opts model.AccessLogListOptions,
) ([]*model.AccessLogEntry, error) {
	limit := clampAccessLogLimit(opts.Limit)
	offset := max(opts.Offset, 0)

	whereClause, args, argIndex := buildAccessLogFilters(opts)
	query := `SELECT ` + accessLogColumns + ` FROM access_logs` + whereClause +
		` ORDER BY created_at DESC, id DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIndex, argIndex+1)
	args = append(args, limit, offset)

	var entries []*model.AccessLogEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, args...)
		if qErr != nil {
			return fmt.Errorf("query access logs: %w", qErr)
		}
		defer rows.Close()

		result, collectErr := pgx.CollectRows(rows, pgx.RowToStructByName[model.AccessLogEntry])
		if collectErr != nil {
			return fmt.Errorf("collect access logs: %w", collectErr)
		}
		ptrs := make([]*model.AccessLogEntry, len(result))
		for i := range result {
			ptrs[i] = &result[i]
		}
		entries = ptrs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return entries, nil
}

// Count returns the number of audit entries matching the SQL-side filters.
func (r *AccessLogRepo) Count(ctx context.Context, opts model.AccessLogListOptions) (int64, error) {
	whereClause, args, _ := buildAccessLogFilters(opts)

	var count int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM access_logs`+whereClause, args...,
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return count, nil
}

const topResourceCount = 10

// Stats aggregates session and audit figures over the trailing window.
// Averages only cover terminated sessions so in-flight viewing does not skew
// duration downward.
func (r *AccessLogRepo) Stats(ctx context.Context, window time.Duration) (*model.AccessStats, error) {
	since := r.timeProvider.Now().UTC().Add(-window)
	stats := &model.AccessStats{}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var avgSeconds float64
		if err := conn.QueryRow(ctx, `
			SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE status = 'active'),
				COALESCE(AVG(EXTRACT(EPOCH FROM last_activity_at - created_at))
					FILTER (WHERE status IN ('closed', 'expired')), 0),
				COALESCE(AVG(pages_viewed), 0)
			FROM viewer_sessions
			WHERE created_at >= $1`,
			since,
		).Scan(&stats.TotalSessions, &stats.ActiveSessions, &avgSeconds, &stats.AvgPagesViewed); err != nil {
			return fmt.Errorf("query session stats: %w", err)
		}
		stats.AvgDuration = time.Duration(avgSeconds * float64(time.Second))

		if err := conn.QueryRow(ctx, `
			SELECT COUNT(*) FROM access_logs
			WHERE action = 'blocked' AND created_at >= $1`,
			since,
		).Scan(&stats.BlockedAttempts); err != nil {
			return fmt.Errorf("query blocked attempts: %w", err)
		}

		rows, err := conn.Query(ctx, `
			SELECT resource_id, COUNT(*) AS opens
			FROM access_logs
			WHERE action = 'open' AND created_at >= $1
			GROUP BY resource_id
			ORDER BY opens DESC, resource_id ASC
			LIMIT $2`,
			since, topResourceCount,
		)
		if err != nil {
			return fmt.Errorf("query top resources: %w", err)
		}
		defer rows.Close()

		top, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ResourceOpens])
		if err != nil {
			return fmt.Errorf("collect top resources: %w", err)
		}
		stats.TopResources = top
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute access stats: %w", err)
	}
	return stats, nil
}

// DeleteBefore prunes audit entries older than cutoff in batches. Retention
// is the only path that removes audit rows.
func (r *AccessLogRepo) DeleteBefore(
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
			DELETE FROM access_logs
			WHERE id IN (
				SELECT id FROM access_logs
				WHERE created_at < $1
				LIMIT $2
			)`,
			cutoff.UTC(), batchSize,
		)
		if execErr != nil {
			return execErr
		}
		deleted = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune access logs: %w", err)
	}
	return deleted, nil
}
