package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
	apperrors "github.com/docvault/viewer-api/internal/errors"
	"github.com/docvault/viewer-api/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Sessions ports.SessionStore
	Roles    ports.RoleMapper
	Logger   *slog.Logger // Optional: structured logger
}

// AuthService runs the login flow: provider handshake, group-to-role mapping,
// and login-session persistence. Login sessions are the identity the viewer
// core consumes; they are unrelated to viewer sessions, which track one open
// document each.
type AuthService struct {
	provider ports.AuthProvider
	sessions ports.SessionStore
	roles    ports.RoleMapper
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	return &AuthService{
		provider: opts.Provider,
		sessions: opts.Sessions,
		roles:    opts.Roles,
		logger:   opts.Logger,
	}
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin starts the provider handshake and returns the auth URL the
// client should redirect to, plus the state and nonce the callback must echo.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, apperrors.Validation("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLogin exchanges the callback code for an identity, maps the
// provider groups to a role, and persists a fresh login session.
func (s *AuthService) CompleteLogin(
	ctx context.Context,
	input CompleteLoginInput,
) (domainauth.Session, error) {
	if input.Code == "" {
		return domainauth.Session{}, apperrors.Validation("authorization code is required")
	}
	if input.State == "" {
		return domainauth.Session{}, apperrors.Validation("state parameter is required")
	}
	if input.Nonce == "" {
		return domainauth.Session{}, apperrors.Validation("nonce parameter is required")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	session := domainauth.Session{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		Role:      s.roles.Map(identity.Groups),
		ExpiresAt: identity.ExpiresAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "login completed",
			"user_id", session.UserID,
			"role", session.Role,
		)
	}
	return session, nil
}

// GetSession retrieves a login session by ID. An expired session is deleted
// on the way out and reported as Unauthenticated.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return domainauth.Session{}, apperrors.Unauthenticated("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to delete expired login session",
				"session_id", sessionID,
				"error", deleteErr,
			)
		}
		return domainauth.Session{}, apperrors.Unauthenticated("login session expired")
	}

	return session, nil
}

// Logout removes a login session. A missing ID is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
