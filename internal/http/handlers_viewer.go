package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docvault/viewer-api/internal/service"
)

// ViewerHandlers provides HTTP handlers for the viewer flows.
type ViewerHandlers struct {
	Svc    *service.ViewerService
	Logger *slog.Logger
}

func (h *ViewerHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type issueSessionRequest struct {
	ResourceID string `json:"resource_id"`
}

// IssueSession handles session issuance.
// POST /api/viewer/sessions.
func (h *ViewerHandlers) IssueSession(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var req issueSessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.IssueSession(r.Context(), *session, service.IssueSessionRequest{
		ResourceID: req.ResourceID,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, result)
}

// Content streams the document bytes for a verified token.
// GET /api/viewer/content?token=… (also accepts Authorization: Bearer).
func (h *ViewerHandlers) Content(w http.ResponseWriter, r *http.Request) {
	token := viewerToken(r)
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "token_invalid",
			Err:     errors.New("token is required"),
		})
		return
	}

	result, err := h.Svc.FetchContent(r.Context(), token)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, result.Body); err != nil {
		// Headers are gone; a mid-stream failure can only be logged.
		h.logger().WarnContext(r.Context(), "content stream interrupted", "error", err)
	}
}

type activityRequest struct {
	Token      string         `json:"token"`
	Action     string         `json:"action"`
	PageNumber int            `json:"page_number,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Activity handles client activity reports.
// POST /api/viewer/activity.
func (h *ViewerHandlers) Activity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Svc.ReportActivity(r.Context(), service.ActivityRequest{
		Token:      req.Token,
		Action:     service.ActivityAction(req.Action),
		PageNumber: req.PageNumber,
		Metadata:   req.Metadata,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type refreshRequest struct {
	Token string `json:"token"`
}

// Refresh rotates a viewer token.
// POST /api/viewer/refresh.
func (h *ViewerHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Refresh(r.Context(), req.Token)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// viewerToken pulls the token from the query string or a Bearer header.
func viewerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// clientIP prefers the forwarded client address when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx != -1 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}
	return host
}
