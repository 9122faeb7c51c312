// Package sweeper provides the adapter for running the session sweeper.
package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docvault/viewer-api/config"
	"github.com/docvault/viewer-api/internal/core"
	"github.com/docvault/viewer-api/internal/data"
	"github.com/docvault/viewer-api/internal/observability/statsd"
	"github.com/docvault/viewer-api/internal/service"
)

// Runner wires the sweeper service over Postgres-backed stores and runs
// the hygiene loop.
type Runner struct {
	sweeper *service.SweeperService
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.SweeperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Sessions core.SessionRepository
	Logs     core.AccessLogRepository
	Metrics  statsd.Sink
}

// NewRunner creates a new sweeper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	svc, err := wireSweeperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire sweeper service: %w", err)
	}

	return &Runner{
		sweeper: svc,
		logger:  opts.Logger,
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && (opts.Sessions == nil || opts.Logs == nil) {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireSweeperService(opts RunnerOptions) (*service.SweeperService, error) {
	sessions := opts.Sessions
	if sessions == nil {
		sessions = data.NewSessionRepo(opts.DB)
	}
	logs := opts.Logs
	if logs == nil {
		logs = data.NewAccessLogRepo(opts.DB)
	}

	return service.NewSweeperService(service.SweeperServiceOptions{
		Sessions: sessions,
		Logs:     logs,
		Config:   opts.Config,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
}

// Run starts the sweep loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting sweeper runner")
	return r.sweeper.Run(ctx)
}
