package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docvault/viewer-api/config"
	"github.com/docvault/viewer-api/internal/core"
	obserrors "github.com/docvault/viewer-api/internal/observability/errors"
	"github.com/docvault/viewer-api/internal/observability/metrics"
	"github.com/docvault/viewer-api/internal/observability/statsd"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Sessions core.SessionRepository   // Required: session store
	Logs     core.AccessLogRepository // Required: audit store
	Config   config.SweeperConfig     // Required: sweeper configuration
	Logger   *slog.Logger             // Optional: structured logger
	Metrics  statsd.Sink              // Optional: metrics sink (StatsD-compatible)
}

// SweeperService is the storage-hygiene loop for viewer sessions.
//
// It flips stale active sessions to expired, prunes terminated sessions past
// retention, and (when configured) prunes audit entries past their own
// retention. None of this affects correctness: validation expires sessions
// lazily, the sweeper just keeps the tables from growing without bound.
type SweeperService struct {
	sessions core.SessionRepository
	logs     core.AccessLogRepository
	config   config.SweeperConfig
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionRepository is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("AccessLogRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper_service")
		logger.Debug("SweeperService initialized",
			"interval", opts.Config.Interval,
			"retention", opts.Config.Retention,
			"audit_retention", opts.Config.AuditRetention,
		)
	}

	return &SweeperService{
		sessions: opts.Sessions,
		logs:     opts.Logs,
		config:   opts.Config,
		logger:   logger,
		metrics:  opts.Metrics,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)
	}

	// Jitter avoids synchronized sweeps when multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runSweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runSweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
				// Keep running; the next tick retries
			}
		}
	}
}

// waitWithJitter delays up to 10% of the interval.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type sweepStep struct {
	name string
	fn   func(context.Context) (int64, error)
}

type sweepOutcome struct {
	name  string
	count int64
	err   error
}

// runSweep performs one full sweep: expire, prune sessions, prune audit.
func (s *SweeperService) runSweep(ctx context.Context) error {
	start := time.Now()

	steps := []sweepStep{
		{name: "expire_stale", fn: s.expireStaleSessions},
		{name: "prune_sessions", fn: s.pruneTerminatedSessions},
		{name: "prune_audit", fn: s.pruneAuditEntries},
	}

	var (
		outcomes           []sweepOutcome
		errs               []error
		allContextCanceled = true
	)
	for _, step := range steps {
		count, err := step.fn(ctx)
		outcomes = append(outcomes, sweepOutcome{name: step.name, count: count, err: suppressContextCancellation(err)})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			allContextCanceled = allContextCanceled && isContextCancellation(err)
		}
	}

	s.emitSweepMetrics(outcomes, time.Since(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("sweep failed: %w", joined)
	}
	return nil
}

// expireStaleSessions flips active sessions past their expiry to expired.
// Loops until no more rows are affected to handle large backlogs in batches.
func (s *SweeperService) expireStaleSessions(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.sessions.ExpireStale(ctx, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "expired stale sessions", "count", total)
	}
	return total, nil
}

// pruneTerminatedSessions deletes closed/expired sessions past retention.
func (s *SweeperService) pruneTerminatedSessions(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.config.Retention)

	var total int64
	for {
		count, err := s.sessions.DeleteTerminatedBefore(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "pruned terminated sessions",
			"count", total,
			"retention", s.config.Retention,
		)
	}
	return total, nil
}

// pruneAuditEntries deletes audit rows past the audit retention. Disabled
// when no audit retention is configured; the log stays append-only.
func (s *SweeperService) pruneAuditEntries(ctx context.Context) (int64, error) {
	if s.config.AuditRetention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.config.AuditRetention)

	var total int64
	for {
		count, err := s.logs.DeleteBefore(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "pruned audit entries",
			"count", total,
			"audit_retention", s.config.AuditRetention,
		)
	}
	return total, nil
}

func (s *SweeperService) emitSweepMetrics(outcomes []sweepOutcome, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var total int64
	var firstErr error
	for _, o := range outcomes {
		total += o.count
		if firstErr == nil && o.err != nil {
			firstErr = o.err
		}
	}

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if total == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.sweep", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("sweeper.sweep_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, o := range outcomes {
		s.emitStepMetric(o)
	}

	if firstErr == nil {
		s.metrics.Gauge("sweeper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *SweeperService) emitStepMetric(o sweepOutcome) {
	result := metrics.ResultSuccess
	if o.err != nil {
		result = metrics.ResultError
	} else if o.count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": o.name,
		"result":    result,
	}
	if o.err != nil {
		if class := obserrors.Classify(o.err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.sweep_operation", 1, tags)
	if o.err == nil && o.count > 0 {
		s.metrics.Count("sweeper.rows_processed", o.count, metrics.CloneTags(tags))
	}
}

func (s *SweeperService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
