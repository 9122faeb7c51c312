package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/viewer-api/internal/testutil"
)

func TestPurchaseRepo_HasPaid(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupAutoDB(t)
	repo := NewPurchaseRepo(db)
	docID := testutil.InsertDocument(t, db, "Quarterly Report", 40)

	testutil.InsertPaidPurchase(t, db, "user-paid", docID)
	testutil.InsertPurchase(t, db, "user-pending", docID, "pending")
	testutil.InsertPurchase(t, db, "user-refunded", docID, "refunded")

	t.Run("paid order grants access", func(t *testing.T) {
		paid, err := repo.HasPaid(context.Background(), "user-paid", docID)
		require.NoError(t, err)
		assert.True(t, paid)
	})

	t.Run("pending order does not count", func(t *testing.T) {
		paid, err := repo.HasPaid(context.Background(), "user-pending", docID)
		require.NoError(t, err)
		assert.False(t, paid)
	})

	t.Run("refunded order does not count", func(t *testing.T) {
		paid, err := repo.HasPaid(context.Background(), "user-refunded", docID)
		require.NoError(t, err)
		assert.False(t, paid)
	})

	t.Run("no order at all", func(t *testing.T) {
		paid, err := repo.HasPaid(context.Background(), "user-unknown", docID)
		require.NoError(t, err)
		assert.False(t, paid)
	})
}
