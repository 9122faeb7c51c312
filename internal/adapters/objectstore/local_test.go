package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocal(t *testing.T) (*Local, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)
	return store, root
}

func TestLocal_Get(t *testing.T) {
	store, root := setupLocal(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.pdf"), []byte("pdf-bytes"), 0o600))

	rc, err := store.Get(context.Background(), "docs/a.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestLocal_GetMissing(t *testing.T) {
	store, _ := setupLocal(t)

	_, err := store.Get(context.Background(), "docs/missing.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocal_RejectsEscapingPaths(t *testing.T) {
	store, _ := setupLocal(t)

	for _, p := range []string{"../outside.pdf", "/etc/passwd", "docs/../../x", "", "."} {
		_, err := store.Get(context.Background(), p)
		assert.Error(t, err, "path %q should be rejected", p)
		assert.NotErrorIs(t, err, ErrObjectNotFound)
	}
}

func TestNewLocal_Validation(t *testing.T) {
	_, err := NewLocal("")
	assert.Error(t, err)

	_, err = NewLocal(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestLocal_CanceledContext(t *testing.T) {
	store, _ := setupLocal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "docs/a.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}
