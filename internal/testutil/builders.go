// Package testutil provides testing utilities and helpers for the viewer subsystem.
package testutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/viewer-api/internal/domain/model"
)

// SessionRequestBuilder provides a fluent interface for building CreateSessionRequest objects for testing.
type SessionRequestBuilder struct {
	req *model.CreateSessionRequest
}

// NewSessionRequest creates a new SessionRequestBuilder with sensible defaults.
func NewSessionRequest() *SessionRequestBuilder {
	return &SessionRequestBuilder{
		req: &model.CreateSessionRequest{
			UserID:     "user-1",
			ResourceID: uuid.NewString(),
			IPAddress:  "203.0.113.10",
			UserAgent:  "integration-test",
			PageCount:  40,
		},
	}
}

// WithUserID sets the user ID.
func (b *SessionRequestBuilder) WithUserID(userID string) *SessionRequestBuilder {
	b.req.UserID = userID
	return b
}

// WithResourceID sets the resource ID.
func (b *SessionRequestBuilder) WithResourceID(resourceID string) *SessionRequestBuilder {
	b.req.ResourceID = resourceID
	return b
}

// WithPageCount sets the resource page count.
func (b *SessionRequestBuilder) WithPageCount(pages int) *SessionRequestBuilder {
	b.req.PageCount = pages
	return b
}

// Build returns the constructed CreateSessionRequest.
func (b *SessionRequestBuilder) Build() *model.CreateSessionRequest {
	return b.req
}

// LogRequestBuilder provides a fluent interface for building AppendLogRequest objects for testing.
type LogRequestBuilder struct {
	req *model.AppendLogRequest
}

// NewLogRequest creates a new LogRequestBuilder with sensible defaults.
func NewLogRequest() *LogRequestBuilder {
	return &LogRequestBuilder{
		req: &model.AppendLogRequest{
			UserID:     "user-1",
			ResourceID: uuid.NewString(),
			Action:     model.AccessActionOpen,
		},
	}
}

// WithUserID sets the user ID.
func (b *LogRequestBuilder) WithUserID(userID string) *LogRequestBuilder {
	b.req.UserID = userID
	return b
}

// WithResourceID sets the resource ID.
func (b *LogRequestBuilder) WithResourceID(resourceID string) *LogRequestBuilder {
	b.req.ResourceID = resourceID
	return b
}

// WithSessionID sets the session ID.
func (b *LogRequestBuilder) WithSessionID(sessionID string) *LogRequestBuilder {
	b.req.SessionID = &sessionID
	return b
}

// WithAction sets the audit action.
func (b *LogRequestBuilder) WithAction(action model.AccessAction) *LogRequestBuilder {
	b.req.Action = action
	return b
}

// WithPageNumber sets the page number.
func (b *LogRequestBuilder) WithPageNumber(page int) *LogRequestBuilder {
	b.req.PageNumber = &page
	return b
}

// WithMetadata sets the entry metadata.
func (b *LogRequestBuilder) WithMetadata(metadata map[string]any) *LogRequestBuilder {
	b.req.Metadata = metadata
	return b
}

// Build returns the constructed AppendLogRequest.
func (b *LogRequestBuilder) Build() *model.AppendLogRequest {
	return b.req
}

// Database seed helpers. The document catalog and purchase ledger are
// read-only inside the viewer subsystem, so tests seed them with plain SQL.

// InsertDocument inserts a catalog row and returns its generated ID.
func InsertDocument(t TestingTB, db *sql.DB, title string, pageCount int) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO documents (id, title, page_count, storage_path, content_type, watermark)
		VALUES ($1, $2, $3, $4, 'application/pdf', TRUE)`,
		id, title, pageCount, "docs/"+id+".pdf")
	if err != nil {
		t.Fatalf("Failed to insert document: %v", err)
	}
	return id
}

// InsertPurchase inserts a purchase-ledger row with the given status.
func InsertPurchase(t TestingTB, db *sql.DB, userID, resourceID, status string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO purchases (id, user_id, resource_id, status)
		VALUES ($1, $2, $3, $4)`,
		id, userID, resourceID, status)
	if err != nil {
		t.Fatalf("Failed to insert purchase: %v", err)
	}
	return id
}

// InsertPaidPurchase inserts a paid purchase-ledger row.
func InsertPaidPurchase(t TestingTB, db *sql.DB, userID, resourceID string) string {
	return InsertPurchase(t, db, userID, resourceID, "paid")
}
