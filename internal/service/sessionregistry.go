package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docvault/viewer-api/internal/core"
	"github.com/docvault/viewer-api/internal/data"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
)

// DefaultSessionTTL is the viewing window granted at creation and on each
// successful rotation.
const DefaultSessionTTL = 30 * time.Minute

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Repo   core.SessionRepository // Required: session storage
	TTL    time.Duration          // Optional: defaults to DefaultSessionTTL
	Logger *slog.Logger           // Optional: structured logger
}

// SessionRegistry owns the lifecycle of viewing sessions: create, validate,
// extend, record page views, close. Status transitions are one-way; active is
// the only non-terminal state.
type SessionRegistry struct {
	repo   core.SessionRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionRegistry constructs a new SessionRegistry.
func NewSessionRegistry(opts SessionRegistryOptions) *SessionRegistry {
	if opts.Repo == nil {
		panic("SessionRepository is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRegistry{
		repo:   opts.Repo,
		ttl:    ttl,
		logger: opts.Logger,
	}
}

// TTL returns the sliding window applied at creation and on extension.
func (s *SessionRegistry) TTL() time.Duration { return s.ttl }

// Create brings a new active session into existence. Entitlement has already
// been decided by the time this is called.
func (s *SessionRegistry) Create(
	ctx context.Context,
	req *model.CreateSessionRequest,
) (*model.ViewerSession, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	session, err := s.repo.Create(ctx, req, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "viewer session created",
			"session_id", session.ID,
			"user_id", session.UserID,
			"resource_id", session.ResourceID,
			"expires_at", session.ExpiresAt,
		)
	}
	return session, nil
}

// Validate reports whether an active, unexpired session matches the key.
// Every content fetch and activity call passes through here first.
func (s *SessionRegistry) Validate(ctx context.Context, key model.SessionKey) (bool, error) {
	valid, err := s.repo.Validate(ctx, key)
	if err != nil {
		return false, fmt.Errorf("validate session: %w", err)
	}
	return valid, nil
}

// Extend slides the session expiry forward by the configured TTL from now.
// Returns SessionExpired when the row is no longer active: a close that
// raced ahead of a rotation must win.
func (s *SessionRegistry) Extend(ctx context.Context, sessionID string) (time.Time, error) {
	newExpiry, err := s.repo.Extend(ctx, sessionID, s.ttl)
	if err != nil {
		if errors.Is(err, data.ErrSessionNotActive) {
			return time.Time{}, apperrors.SessionExpired("session is no longer active")
		}
		return time.Time{}, fmt.Errorf("extend session: %w", err)
	}
	return newExpiry, nil
}

// RecordPageView applies the monotonic pages_viewed update. page must be
// positive; the stored value never decreases.
func (s *SessionRegistry) RecordPageView(ctx context.Context, sessionID string, page int) error {
	if page < 1 {
		return apperrors.Validation("page_number must be positive")
	}
	if err := s.repo.RecordPageView(ctx, sessionID, page); err != nil {
		return fmt.Errorf("record page view: %w", err)
	}
	return nil
}

// Close transitions the session to closed. Idempotent by construction.
func (s *SessionRegistry) Close(ctx context.Context, sessionID string) error {
	if err := s.repo.Close(ctx, sessionID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "viewer session closed", "session_id", sessionID)
	}
	return nil
}

// GetByID fetches a session row, mostly for response enrichment.
func (s *SessionRegistry) GetByID(ctx context.Context, sessionID string) (*model.ViewerSession, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, data.ErrSessionNotFound) {
			return nil, apperrors.NotFound("session not found")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}
