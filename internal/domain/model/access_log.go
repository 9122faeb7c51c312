//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// AccessAction is the kind of observed access event.
type AccessAction string

const (
	AccessActionOpen     AccessAction = "open"
	AccessActionPageView AccessAction = "page_view"
	AccessActionClose    AccessAction = "close"
	AccessActionBlocked  AccessAction = "blocked"
)

// Valid reports whether the access action is supported.
func (a AccessAction) Valid() bool {
	switch a {
	case AccessActionOpen, AccessActionPageView, AccessActionClose, AccessActionBlocked:
		return true
	default:
		return false
	}
}

// ParseAccessAction normalizes an action string and reports whether it is supported.
func ParseAccessAction(value string) (AccessAction, bool) {
	action := AccessAction(strings.ToLower(strings.TrimSpace(value)))
	if action.Valid() {
		return action, true
	}
	return "", false
}

// AccessLogEntry is one immutable audit record of an access event.
// SessionID is nil for blocked attempts, which never get a session.
// Entries are append-only; the core never updates or deletes them.
type AccessLogEntry struct {
	ID         string         `json:"id"                    db:"id"`
	UserID     string         `json:"user_id"               db:"user_id"`
	ResourceID string         `json:"resource_id"           db:"resource_id"`
	SessionID  *string        `json:"session_id,omitempty"  db:"session_id"`
	Action     AccessAction   `json:"action"                db:"action"`
	PageNumber *int           `json:"page_number,omitempty" db:"page_number"`
	Metadata   map[string]any `json:"metadata,omitempty"    db:"metadata"`
	CreatedAt  time.Time      `json:"created_at"            db:"created_at"`
}

// AppendLogRequest represents parameters to append an AccessLogEntry.
type AppendLogRequest struct {
	UserID     string         `json:"user_id"`
	ResourceID string         `json:"resource_id"`
	SessionID  *string        `json:"session_id,omitempty"`
	Action     AccessAction   `json:"action"`
	PageNumber *int           `json:"page_number,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate validates AppendLogRequest.
func (r *AppendLogRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.ResourceID) == "" {
		return errors.New("resource_id is required")
	}
	if !r.Action.Valid() {
		return errors.New("action must be one of: open, page_view, close, blocked")
	}
	if r.Action == AccessActionPageView && r.PageNumber == nil {
		return errors.New("page_number is required for page_view entries")
	}
	return nil
}

// AccessLogListOptions controls paging and filtering for the admin log query.
// Notes:
//   - UserID, ResourceID, and Action match exactly.
//   - From/To bound created_at (inclusive from, exclusive to).
//   - MetadataQuery is an optional JMESPath expression evaluated against each
//     entry's metadata map after the SQL filters; entries whose result is
//     false-y are dropped from the page.
type AccessLogListOptions struct {
	Limit         int
	Offset        int
	UserID        *string
	ResourceID    *string
	Action        *AccessAction
	From          *time.Time
	To            *time.Time
	MetadataQuery string
}

// AccessStats is the aggregate view over sessions and log entries consumed by
// the reporting surface. Averages cover sessions created inside the window.
type AccessStats struct {
	TotalSessions   int64           `json:"total_sessions"`
	ActiveSessions  int64           `json:"active_sessions"`
	AvgDuration     time.Duration   `json:"avg_duration"`
	AvgPagesViewed  float64         `json:"avg_pages_viewed"`
	BlockedAttempts int64           `json:"blocked_attempts"`
	TopResources    []ResourceOpens `json:"top_resources"`
}

// ResourceOpens counts open events per resource over a stats window.
type ResourceOpens struct {
	ResourceID string `json:"resource_id" db:"resource_id"`
	Opens      int64  `json:"opens"       db:"opens"`
}
