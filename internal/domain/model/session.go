//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a viewer session.
// Active is the only non-terminal state; closed and expired are terminal
// and no transition leaves them.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusClosed  SessionStatus = "closed"
	SessionStatusExpired SessionStatus = "expired"
)

// Valid reports whether the session status is supported.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusClosed, SessionStatusExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is terminal.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusClosed || s == SessionStatusExpired
}

// ViewerSession is the durable record of one granted document-viewing attempt.
// IPAddress and UserAgent are a non-authoritative client fingerprint kept for
// audit only. PagesViewed is the highest page index seen and never decreases.
type ViewerSession struct {
	ID             string        `json:"id"               db:"id"`
	UserID         string        `json:"user_id"          db:"user_id"`
	ResourceID     string        `json:"resource_id"      db:"resource_id"`
	IPAddress      string        `json:"ip_address"       db:"ip_address"`
	UserAgent      string        `json:"user_agent"       db:"user_agent"`
	PageCount      int           `json:"page_count"       db:"page_count"`
	PagesViewed    int           `json:"pages_viewed"     db:"pages_viewed"`
	Status         SessionStatus `json:"status"           db:"status"`
	CreatedAt      time.Time     `json:"created_at"       db:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"       db:"expires_at"`
	LastActivityAt time.Time     `json:"last_activity_at" db:"last_activity_at"`
}

// CreateSessionRequest represents parameters to create a ViewerSession.
type CreateSessionRequest struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	PageCount  int    `json:"page_count"`
}

// Validate validates CreateSessionRequest.
func (r *CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.ResourceID) == "" {
		return errors.New("resource_id is required")
	}
	if r.PageCount < 0 {
		return errors.New("page_count cannot be negative")
	}
	return nil
}

// SessionKey identifies a session together with its bound user/resource pair.
// Validation of a token cross-references all three values against the live row.
type SessionKey struct {
	SessionID  string
	UserID     string
	ResourceID string
}
