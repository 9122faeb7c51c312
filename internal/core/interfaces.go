package core

import (
	"context"
	"io"
	"time"

	"github.com/docvault/viewer-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// SessionRepository defines the interface for viewer session data operations.
// It is the single owner of viewer_sessions rows; other components mutate
// pages_viewed and last_activity_at only through it.
type SessionRepository interface {
	Create(ctx context.Context, req *model.CreateSessionRequest, ttl time.Duration) (*model.ViewerSession, error)
	GetByID(ctx context.Context, id string) (*model.ViewerSession, error)
	// Validate reports whether an active, unexpired row matches the key.
	// An otherwise-active row whose expires_at has passed is flipped to
	// expired as a side effect (lazy expiry).
	Validate(ctx context.Context, key model.SessionKey) (bool, error)
	// Extend slides expires_at forward to now+ttl. It only touches rows
	// still in active status so a concurrent close always wins.
	Extend(ctx context.Context, id string, ttl time.Duration) (time.Time, error)
	// RecordPageView applies pages_viewed = max(pages_viewed, page) as a
	// single conditional update, never read-then-write.
	RecordPageView(ctx context.Context, id string, page int) error
	// Close transitions the row to closed. Idempotent: closing a closed or
	// expired session is a no-op, never an error.
	Close(ctx context.Context, id string) error
	// ExpireStale flips active rows whose expiry passed to expired and
	// returns the number of rows updated. Storage hygiene only.
	ExpireStale(ctx context.Context, batchSize int) (int64, error)
	// DeleteTerminatedBefore removes closed/expired rows older than cutoff.
	DeleteTerminatedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// AccessLogRepository defines the interface for append-only audit log operations.
type AccessLogRepository interface {
	Append(ctx context.Context, req *model.AppendLogRequest) (*model.AccessLogEntry, error)
	List(ctx context.Context, opts model.AccessLogListOptions) ([]*model.AccessLogEntry, error)
	Count(ctx context.Context, opts model.AccessLogListOptions) (int64, error)
	Stats(ctx context.Context, window time.Duration) (*model.AccessStats, error)
	// DeleteBefore prunes entries older than cutoff. Retention is the only
	// path that removes audit rows.
	DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// DocumentRepository defines the read-only interface the viewer needs from
// the document catalog.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
}

// PurchaseRepository is the read-only purchase ledger port.
type PurchaseRepository interface {
	// HasPaid reports whether a paid order exists for the user/resource
	// pair. Implementations must read fresh state on every call; a
	// purchase completing mid-request must be visible to the next call.
	HasPaid(ctx context.Context, userID, resourceID string) (bool, error)
}

// ObjectStore retrieves raw document bytes by storage path. The viewer
// streams them without interpreting the content.
type ObjectStore interface {
	Get(ctx context.Context, storagePath string) (io.ReadCloser, error)
}

// NonceStore tracks superseded token nonces so a rotated-away token stops
// working before its embedded expiry. Marks carry a TTL no longer than the
// old token's remaining lifetime, after which the entry is moot anyway.
type NonceStore interface {
	MarkSuperseded(ctx context.Context, nonce string, ttl time.Duration) error
	IsSuperseded(ctx context.Context, nonce string) (bool, error)
}
