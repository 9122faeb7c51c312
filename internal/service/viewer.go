package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docvault/viewer-api/internal/core"
	"github.com/docvault/viewer-api/internal/data"
	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
	"github.com/docvault/viewer-api/internal/observability/metrics"
	"github.com/docvault/viewer-api/internal/observability/statsd"
)

// ViewerServiceOptions groups dependencies for ViewerService.
type ViewerServiceOptions struct {
	Gate      *AccessGate
	Registry  *SessionRegistry
	Tokens    *TokenService
	Activity  *ActivityRecorder
	Documents core.DocumentRepository
	Objects   core.ObjectStore
	Metrics   statsd.Sink  // Optional: operation metrics
	Logger    *slog.Logger // Optional: structured logger
}

// ViewerService orchestrates the viewer flows end to end: issue a session,
// stream content, report activity, refresh a token. It owns the ordering of
// entitlement checks, audit entries, and session state so handlers stay thin.
type ViewerService struct {
	gate      *AccessGate
	registry  *SessionRegistry
	tokens    *TokenService
	activity  *ActivityRecorder
	documents core.DocumentRepository
	objects   core.ObjectStore
	metrics   statsd.Sink
	logger    *slog.Logger
}

// NewViewerService constructs a new ViewerService.
func NewViewerService(opts ViewerServiceOptions) *ViewerService {
	if opts.Gate == nil {
		panic("AccessGate is required")
	}
	if opts.Registry == nil {
		panic("SessionRegistry is required")
	}
	if opts.Tokens == nil {
		panic("TokenService is required")
	}
	if opts.Activity == nil {
		panic("ActivityRecorder is required")
	}
	if opts.Documents == nil {
		panic("DocumentRepository is required")
	}
	if opts.Objects == nil {
		panic("ObjectStore is required")
	}
	return &ViewerService{
		gate:      opts.Gate,
		registry:  opts.Registry,
		tokens:    opts.Tokens,
		activity:  opts.Activity,
		documents: opts.Documents,
		objects:   opts.Objects,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// IssueSessionRequest carries the client inputs for opening a viewer session.
type IssueSessionRequest struct {
	ResourceID string
	IPAddress  string
	UserAgent  string
}

// IssueSessionResult is the response payload for a granted session.
type IssueSessionResult struct {
	Token     string                  `json:"token"`
	SessionID string                  `json:"session_id"`
	ExpiresIn int                     `json:"expires_in"`
	Resource  *model.ResourceMetadata `json:"resource"`
}

// IssueSession runs the full open flow: resolve the document, check
// entitlement, create the session, append the open audit entry, mint a token.
// A denied check appends a blocked entry before returning AccessDenied; the
// denial is auditable even though no session exists.
func (s *ViewerService) IssueSession(
	ctx context.Context,
	identity domainauth.Session,
	req IssueSessionRequest,
) (result *IssueSessionResult, err error) {
	defer s.emit("issue", time.Now(), &err)

	if identity.UserID == "" || identity.IsGuest() {
		return nil, apperrors.Unauthenticated("authentication required")
	}
	if req.ResourceID == "" {
		return nil, apperrors.Validation("resource_id is required")
	}

	doc, err := s.documents.GetByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, data.ErrDocumentNotFound) {
			return nil, apperrors.NotFoundf("resource %s not found", req.ResourceID)
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	decision, err := s.gate.CheckAccess(ctx, identity.UserID, identity.Role, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !decision.HasAccess {
		if _, logErr := s.activity.LogAccess(ctx, &model.AppendLogRequest{
			UserID:     identity.UserID,
			ResourceID: req.ResourceID,
			Action:     model.AccessActionBlocked,
			Metadata:   map[string]any{"reason": decision.Reason},
		}); logErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to log blocked access",
				"user_id", identity.UserID,
				"resource_id", req.ResourceID,
				"error", logErr,
			)
		}
		return nil, apperrors.AccessDenied(decision.Reason)
	}

	session, err := s.registry.Create(ctx, &model.CreateSessionRequest{
		UserID:     identity.UserID,
		ResourceID: req.ResourceID,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		PageCount:  doc.PageCount,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.activity.LogAccess(ctx, &model.AppendLogRequest{
		UserID:     identity.UserID,
		ResourceID: req.ResourceID,
		SessionID:  &session.ID,
		Action:     model.AccessActionOpen,
		Metadata: map[string]any{
			"ip_address": req.IPAddress,
			"user_agent": req.UserAgent,
		},
	}); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(session)
	if err != nil {
		return nil, err
	}

	meta := doc.Metadata()
	return &IssueSessionResult{
		Token:     token,
		SessionID: session.ID,
		ExpiresIn: int(s.registry.TTL().Seconds()),
		Resource:  &meta,
	}, nil
}

// ContentResult is a streamed document plus the headers the handler needs.
// Body must be closed by the caller.
type ContentResult struct {
	Body        io.ReadCloser
	ContentType string
	Title       string
	Watermark   bool
}

// FetchContent verifies the token, cross-checks the live session row, and
// opens a stream over the stored bytes. The stream passes through untouched.
func (s *ViewerService) FetchContent(ctx context.Context, token string) (result *ContentResult, err error) {
	defer s.emit("content", time.Now(), &err)

	claims, err := s.tokens.VerifyForUse(ctx, token)
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

	doc, err := s.documents.GetByID(ctx, claims.ResourceID)
	if err != nil {
		if errors.Is(err, data.ErrDocumentNotFound) {
			return nil, apperrors.NotFoundf("resource %s not found", claims.ResourceID)
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	body, err := s.objects.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", doc.StoragePath, err)
	}

	return &ContentResult{
		Body:        body,
		ContentType: doc.ContentType,
		Title:       doc.Title,
		Watermark:   doc.Watermark,
	}, nil
}

// ActivityAction is a client-reported viewer activity kind.
type ActivityAction string

const (
	ActivityPageView  ActivityAction = "page_view"
	ActivityClose     ActivityAction = "close"
	ActivityHeartbeat ActivityAction = "heartbeat"
)

// ActivityRequest carries one client activity report.
type ActivityRequest struct {
	Token      string
	Action     ActivityAction
	PageNumber int
	Metadata   map[string]any
}

// ReportActivity applies one activity report against a verified token.
// page_view records progress, close terminates the session, heartbeat only
// confirms the session is still live.
func (s *ViewerService) ReportActivity(ctx context.Context, req ActivityRequest) (err error) {
	defer s.emit("activity", time.Now(), &err)

	claims, err := s.tokens.VerifyForUse(ctx, req.Token)
	if err != nil {
		return err
	}
	key := claims.Key()

	switch req.Action {
	case ActivityPageView:
		if err := s.requireLiveSession(ctx, key); err != nil {
			return err
		}
		return s.activity.RecordPageView(ctx, key, req.PageNumber, req.Metadata)
	case ActivityClose:
		// Close skips the liveness gate on purpose: closing an already
		// terminated session stays an idempotent no-op on the session row.
		return s.activity.CloseSession(ctx, key, req.Metadata)
	case ActivityHeartbeat:
		return s.requireLiveSession(ctx, key)
	default:
		return apperrors.Validation("action must be one of: page_view, close, heartbeat")
	}
}

// requireLiveSession cross-checks the token's session against the live row.
func (s *ViewerService) requireLiveSession(ctx context.Context, key model.SessionKey) error {
	valid, err := s.registry.Validate(ctx, key)
	if err != nil {
		return err
	}
	if !valid {
		return apperrors.SessionExpired("session is no longer active")
	}
	return nil
}

// RefreshResult is the response payload for a rotated token.
type RefreshResult struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Refresh rotates a still-valid token, sliding the session window forward.
func (s *ViewerService) Refresh(ctx context.Context, token string) (result *RefreshResult, err error) {
	defer s.emit("refresh", time.Now(), &err)

	rotated, err := s.tokens.Rotate(ctx, token)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		Token:     rotated.Token,
		ExpiresIn: int(s.registry.TTL().Seconds()),
	}, nil
}

// emit records one operation metric. Denials and expiries are client
// outcomes, not service errors, and are tagged separately.
func (s *ViewerService) emit(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}

	op := metrics.ViewerOp{
		Operation: operation,
		Result:    metrics.ResultSuccess,
		Duration:  time.Since(start),
	}
	if err := *errp; err != nil {
		op.Err = err
		switch {
		case apperrors.IsAccessDenied(err):
			op.Result = metrics.ResultDenied
		case apperrors.IsSessionExpired(err), apperrors.IsTokenInvalid(err),
			apperrors.IsUnauthenticated(err), apperrors.IsNotFound(err),
			apperrors.IsValidation(err):
			op.Result = metrics.ResultRejected
		default:
			op.Result = metrics.ResultError
		}
	}
	metrics.EmitViewerOp(s.metrics, op)
}
