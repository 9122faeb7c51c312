package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/viewer-api/internal/testutil"
)

func TestDocumentRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupAutoDB(t)
	repo := NewDocumentRepo(db)
	docID := testutil.InsertDocument(t, db, "Quarterly Report", 40)

	t.Run("successful retrieval", func(t *testing.T) {
		doc, err := repo.GetByID(context.Background(), docID)
		require.NoError(t, err)
		require.NotNil(t, doc)

		assert.Equal(t, docID, doc.ID)
		assert.Equal(t, "Quarterly Report", doc.Title)
		assert.Equal(t, 40, doc.PageCount)
		assert.Equal(t, "application/pdf", doc.ContentType)
		assert.True(t, doc.Watermark)
		assert.NotEmpty(t, doc.StoragePath)
	})

	t.Run("document not found", func(t *testing.T) {
		doc, err := repo.GetByID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
		require.Error(t, err)
		assert.Nil(t, doc)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}
