//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// PurchaseStatus is the settlement state of an order in the purchase ledger.
// The viewer subsystem only ever cares whether a row reached paid.
type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusPaid     PurchaseStatus = "paid"
	PurchaseStatusRefunded PurchaseStatus = "refunded"
)

// Purchase is a read-only view of one order row in the purchase ledger.
// The viewer core never writes purchases.
type Purchase struct {
	ID         string         `json:"id"          db:"id"`
	UserID     string         `json:"user_id"     db:"user_id"`
	ResourceID string         `json:"resource_id" db:"resource_id"`
	Status     PurchaseStatus `json:"status"      db:"status"`
	CreatedAt  time.Time      `json:"created_at"  db:"created_at"`
}
