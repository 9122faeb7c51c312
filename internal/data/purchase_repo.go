package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docvault/viewer-api/internal/data/pgxutil"
)

// PurchaseRepo is the read-only purchase ledger. Entitlement checks always
// hit the database so a purchase completing mid-request is visible to the
// next call; nothing here is cached.
type PurchaseRepo struct {
	DB *sql.DB
}

// NewPurchaseRepo creates a new PurchaseRepo.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo {
	return &PurchaseRepo{DB: db}
}

// HasPaid reports whether a paid order exists for the user/resource pair.
// Refunded orders do not count.
func (r *PurchaseRepo) HasPaid(ctx context.Context, userID, resourceID string) (bool, error) {
	var paid bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM purchases
				WHERE user_id = $1 AND resource_id = $2 AND status = 'paid'
			)`,
			userID, resourceID,
		).Scan(&paid)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return paid, nil
}
