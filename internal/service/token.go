package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/docvault/viewer-api/internal/core"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
)

// TokenClaims is the payload of a viewer access token. The token is bound to
// one session; verification cross-references the live session row, so closing
// a session invalidates all outstanding tokens for it immediately.
type TokenClaims struct {
	SessionID  string `json:"sid"`
	UserID     string `json:"uid"`
	ResourceID string `json:"rid"`
	Nonce      string `json:"non"`
	jwt.RegisteredClaims
}

// Key returns the session key embedded in the claims.
func (c *TokenClaims) Key() model.SessionKey {
	return model.SessionKey{
		SessionID:  c.SessionID,
		UserID:     c.UserID,
		ResourceID: c.ResourceID,
	}
}

// TokenServiceOptions groups dependencies for TokenService.
type TokenServiceOptions struct {
	Registry   *SessionRegistry // Required: session lifecycle for rotate
	Nonces     core.NonceStore  // Optional: rotation supersession marks
	SigningKey []byte           // Required: HS256 key, injected at construction
	Logger     *slog.Logger     // Optional: structured logger
}

// TokenService issues, verifies, and rotates HS256-signed viewer tokens.
//
// Rotation is strict single-use: each token carries a random nonce, and a
// successful rotation marks the old token's nonce superseded for the rest of
// its embedded lifetime. VerifyForUse rejects superseded tokens. When the
// nonce store is unavailable the check fails open to the embedded expiry,
// which bounds the exposure to the sliding window.
type TokenService struct {
	registry   *SessionRegistry
	nonces     core.NonceStore
	signingKey []byte
	logger     *slog.Logger
}

// NewTokenService constructs a new TokenService.
func NewTokenService(opts TokenServiceOptions) *TokenService {
	if opts.Registry == nil {
		panic("SessionRegistry is required")
	}
	if len(opts.SigningKey) == 0 {
		panic("signing key is required")
	}
	return &TokenService{
		registry:   opts.Registry,
		nonces:     opts.Nonces,
		signingKey: opts.SigningKey,
		logger:     opts.Logger,
	}
}

// Issue mints a signed token bound to the session, expiring with the
// session's sliding window.
func (s *TokenService) Issue(session *model.ViewerSession) (string, error) {
	if session == nil {
		return "", errors.New("session is required")
	}

	now := time.Now()
	claims := &TokenClaims{
		SessionID:  session.ID,
		UserID:     session.UserID,
		ResourceID: session.ResourceID,
		Nonce:      uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.registry.TTL())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature integrity and embedded expiry. Purely
// computational. Expired tokens report SessionExpired; everything else that
// fails reports TokenInvalid without detail.
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, apperrors.TokenInvalid("token is required")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.SessionExpired("token expired")
		}
		return nil, apperrors.TokenInvalid("invalid token")
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, apperrors.TokenInvalid("invalid token claims")
	}
	if claims.SessionID == "" || claims.UserID == "" || claims.ResourceID == "" {
		return nil, apperrors.TokenInvalid("incomplete token claims")
	}
	return claims, nil
}

// VerifyForUse verifies the token and additionally rejects nonces superseded
// by a rotation. This is the check the content, activity, and refresh paths
// run; plain Verify stays I/O-free.
func (s *TokenService) VerifyForUse(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	if s.nonces != nil && claims.Nonce != "" {
		superseded, nonceErr := s.nonces.IsSuperseded(ctx, claims.Nonce)
		if nonceErr != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "nonce store unavailable, accepting token on embedded expiry",
					"error", nonceErr,
				)
			}
		} else if superseded {
			return nil, apperrors.SessionExpired("token superseded by rotation")
		}
	}
	return claims, nil
}

// RotateResult is the outcome of a successful rotation.
type RotateResult struct {
	Token     string
	ExpiresAt time.Time
}

// Rotate exchanges a still-valid token for a fresh one with an extended
// expiry: verify, re-validate the session, extend, issue. A session closed
// between any of these steps stays closed; the conditional extend never
// resurrects a terminal row.
func (s *TokenService) Rotate(ctx context.Context, oldToken string) (*RotateResult, error) {
	claims, err := s.VerifyForUse(ctx, oldToken)
	if err != nil {
		return nil, err
	}

	valid, err := s.registry.Validate(ctx, claims.Key())
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, apperrors.SessionExpired("session is no longer active")
	}

	newExpiry, err := s.registry.Extend(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}

	fresh, err := s.Issue(&model.ViewerSession{
		ID:         claims.SessionID,
		UserID:     claims.UserID,
		ResourceID: claims.ResourceID,
	})
	if err != nil {
		return nil, err
	}

	s.supersede(ctx, claims)

	return &RotateResult{Token: fresh, ExpiresAt: newExpiry}, nil
}

// supersede marks the rotated-away nonce, best effort. A failed mark leaves
// the old token usable until its embedded expiry, which the sliding window
// already bounds.
func (s *TokenService) supersede(ctx context.Context, claims *TokenClaims) {
	if s.nonces == nil || claims.Nonce == "" || claims.ExpiresAt == nil {
		return
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if err := s.nonces.MarkSuperseded(ctx, claims.Nonce, remaining); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to mark rotated nonce superseded",
			"session_id", claims.SessionID,
			"error", err,
		)
	}
}
