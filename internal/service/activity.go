package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/sync/errgroup"

	"github.com/docvault/viewer-api/internal/core"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// ActivityRecorderOptions groups dependencies for ActivityRecorder.
type ActivityRecorderOptions struct {
	Logs      core.AccessLogRepository // Required: append-only audit store
	Registry  *SessionRegistry         // Required: session state updates
	Evaluator JMESPathEvaluator        // Optional: defaults to go-jmespath
	Logger    *slog.Logger             // Optional: structured logger
}

// ActivityRecorder couples audit logging with the session-state side effects
// of viewer activity. Audit entries are best effort relative to the session
// write: a page view that lands in the session row but fails to log is
// reported as an error, but the session state is never rolled back.
type ActivityRecorder struct {
	logs     core.AccessLogRepository
	registry *SessionRegistry
	jems     JMESPathEvaluator
	logger   *slog.Logger
}

// NewActivityRecorder constructs a new ActivityRecorder.
func NewActivityRecorder(opts ActivityRecorderOptions) *ActivityRecorder {
	if opts.Logs == nil {
		panic("AccessLogRepository is required")
	}
	if opts.Registry == nil {
		panic("SessionRegistry is required")
	}
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	return &ActivityRecorder{
		logs:     opts.Logs,
		registry: opts.Registry,
		jems:     jems,
		logger:   opts.Logger,
	}
}

// LogAccess appends one audit entry. Used directly for open and blocked
// events, which have no session-state side effect to pair with.
func (s *ActivityRecorder) LogAccess(
	ctx context.Context,
	req *model.AppendLogRequest,
) (*model.AccessLogEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	entry, err := s.logs.Append(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("append access log: %w", err)
	}
	return entry, nil
}

// RecordPageView bumps the session's page-view high-water mark and appends a
// page_view audit entry.
func (s *ActivityRecorder) RecordPageView(
	ctx context.Context,
	key model.SessionKey,
	page int,
	metadata map[string]any,
) error {
	if err := s.registry.RecordPageView(ctx, key.SessionID, page); err != nil {
		return err
	}

	_, err := s.LogAccess(ctx, &model.AppendLogRequest{
		UserID:     key.UserID,
		ResourceID: key.ResourceID,
		SessionID:  &key.SessionID,
		Action:     model.AccessActionPageView,
		PageNumber: &page,
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("log page view: %w", err)
	}
	return nil
}

// CloseSession terminates the session and appends a close audit entry. Like
// the underlying close it is idempotent on the session row, but each call
// that reaches the log appends its own entry.
func (s *ActivityRecorder) CloseSession(
	ctx context.Context,
	key model.SessionKey,
	metadata map[string]any,
) error {
	if err := s.registry.Close(ctx, key.SessionID); err != nil {
		return err
	}

	_, err := s.LogAccess(ctx, &model.AppendLogRequest{
		UserID:     key.UserID,
		ResourceID: key.ResourceID,
		SessionID:  &key.SessionID,
		Action:     model.AccessActionClose,
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("log close: %w", err)
	}
	return nil
}

// AccessLogPage is one page of audit entries plus the unfiltered total.
type AccessLogPage struct {
	Entries []*model.AccessLogEntry `json:"entries"`
	Total   int64                   `json:"total"`
}

// ListLogs returns a page of audit entries for the admin surface. SQL-level
// filters narrow the page; an optional JMESPath expression then filters the
// page rows by their metadata. Total counts SQL matches only, since the
// metadata filter cannot be pushed down.
func (s *ActivityRecorder) ListLogs(
	ctx context.Context,
	opts model.AccessLogListOptions,
) (*AccessLogPage, error) {
	if opts.MetadataQuery != "" {
		if err := s.jems.Validate(opts.MetadataQuery); err != nil {
			return nil, apperrors.Validationf("invalid metadata_query: %v", err)
		}
	}

	var (
		entries []*model.AccessLogEntry
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if entries, err = s.logs.List(gctx, opts); err != nil {
			return fmt.Errorf("list access logs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if total, err = s.logs.Count(gctx, opts); err != nil {
			return fmt.Errorf("count access logs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if entries == nil {
		// Stable wire shape: an empty page serializes as [], not null.
		entries = []*model.AccessLogEntry{}
	}

	if opts.MetadataQuery != "" {
		entries = s.filterByMetadata(ctx, opts.MetadataQuery, entries)
	}

	return &AccessLogPage{Entries: entries, Total: total}, nil
}

func (s *ActivityRecorder) filterByMetadata(
	ctx context.Context,
	expr string,
	entries []*model.AccessLogEntry,
) []*model.AccessLogEntry {
	kept := make([]*model.AccessLogEntry, 0, len(entries))
	for _, entry := range entries {
		metadata := entry.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		result, err := s.jems.Evaluate(expr, metadata)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "metadata query evaluation failed",
					"entry_id", entry.ID,
					"error", err,
				)
			}
			continue
		}
		if isTruthy(result) {
			kept = append(kept, entry)
		}
	}
	return kept
}

// isTruthy follows JMESPath truthiness: false, null, empty strings, and
// empty collections are false.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// Stats aggregates session and audit activity over the trailing window.
func (s *ActivityRecorder) Stats(ctx context.Context, window time.Duration) (*model.AccessStats, error) {
	if window <= 0 {
		return nil, apperrors.Validation("window must be positive")
	}
	stats, err := s.logs.Stats(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("aggregate access stats: %w", err)
	}
	return stats, nil
}
