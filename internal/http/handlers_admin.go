package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docvault/viewer-api/internal/domain/model"
	"github.com/docvault/viewer-api/internal/service"
)

// DefaultStatsWindow is the trailing window for access statistics when the
// request does not pick one.
const DefaultStatsWindow = 24 * time.Hour

// AdminHandlers provides the admin read surface over audit data.
type AdminHandlers struct {
	Activity *service.ActivityRecorder
	Sessions *service.SessionRegistry
}

// ListAccessLogs returns a filtered page of audit entries.
// GET /api/admin/access-logs.
func (h *AdminHandlers) ListAccessLogs(w http.ResponseWriter, r *http.Request) {
	opts, err := parseAccessLogQuery(r.URL.Query())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: err})
		return
	}

	page, err := h.Activity.ListLogs(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// AccessStats returns aggregate viewing statistics over a trailing window.
// GET /api/admin/access-stats?window=24h.
func (h *AdminHandlers) AccessStats(w http.ResponseWriter, r *http.Request) {
	window := DefaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     errors.New("window must be a duration like 24h or 30m"),
			})
			return
		}
		window = parsed
	}

	stats, err := h.Activity.Stats(r.Context(), window)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// GetSession returns one viewer session row.
// GET /api/admin/sessions/{id}.
func (h *AdminHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, session)
}

func parseAccessLogQuery(q url.Values) (model.AccessLogListOptions, error) {
	var opts model.AccessLogListOptions

	var err error
	if opts.Limit, err = parseIntParam(q, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = parseIntParam(q, "offset"); err != nil {
		return opts, err
	}

	if v := strings.TrimSpace(q.Get("user_id")); v != "" {
		opts.UserID = &v
	}
	if v := strings.TrimSpace(q.Get("resource_id")); v != "" {
		opts.ResourceID = &v
	}
	if v := q.Get("action"); v != "" {
		action, ok := model.ParseAccessAction(v)
		if !ok {
			return opts, errors.New("action must be one of: open, page_view, close, blocked")
		}
		opts.Action = &action
	}

	if opts.From, err = parseTimeParam(q, "from"); err != nil {
		return opts, err
	}
	if opts.To, err = parseTimeParam(q, "to"); err != nil {
		return opts, err
	}

	opts.MetadataQuery = strings.TrimSpace(q.Get("metadata_query"))
	return opts, nil
}

func parseIntParam(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return value, nil
}

func parseTimeParam(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New(key + " must be an RFC 3339 timestamp")
	}
	return &ts, nil
}
