package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/viewer-api/internal/data"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
)

func TestNewSessionRegistry_MissingRepo(t *testing.T) {
	assert.Panics(t, func() {
		NewSessionRegistry(SessionRegistryOptions{})
	})
}

func TestSessionRegistry_DefaultTTL(t *testing.T) {
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: &mockTokenSessionRepo{}})
	assert.Equal(t, DefaultSessionTTL, registry.TTL())

	registry = NewSessionRegistry(SessionRegistryOptions{
		Repo: &mockTokenSessionRepo{},
		TTL:  10 * time.Minute,
	})
	assert.Equal(t, 10*time.Minute, registry.TTL())
}

func TestSessionRegistry_Create(t *testing.T) {
	repo := &mockTokenSessionRepo{}
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: repo})

	session, err := registry.Create(context.Background(), &model.CreateSessionRequest{
		UserID:     "user-1",
		ResourceID: "doc-1",
		PageCount:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, model.SessionStatusActive, session.Status)
	assert.Equal(t, 1, repo.createCalls)
}

func TestSessionRegistry_Create_InvalidRequest(t *testing.T) {
	repo := &mockTokenSessionRepo{}
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: repo})

	tests := []struct {
		name string
		req  *model.CreateSessionRequest
	}{
		{name: "missing user", req: &model.CreateSessionRequest{ResourceID: "doc-1"}},
		{name: "missing resource", req: &model.CreateSessionRequest{UserID: "user-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Create(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
	assert.Equal(t, 0, repo.createCalls)
}

func TestSessionRegistry_Extend_NotActive(t *testing.T) {
	repo := &mockTokenSessionRepo{
		extendFunc: func(context.Context, string, time.Duration) (time.Time, error) {
			return time.Time{}, data.ErrSessionNotActive
		},
	}
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: repo})

	_, err := registry.Extend(context.Background(), "sess-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err))
}

func TestSessionRegistry_Extend(t *testing.T) {
	registry := NewSessionRegistry(SessionRegistryOptions{
		Repo: &mockTokenSessionRepo{},
		TTL:  15 * time.Minute,
	})

	expiry, err := registry.Extend(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiry, 5*time.Second)
}

func TestSessionRegistry_RecordPageView_InvalidPage(t *testing.T) {
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: &mockTokenSessionRepo{}})

	for _, page := range []int{0, -3} {
		err := registry.RecordPageView(context.Background(), "sess-1", page)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	}
}

func TestSessionRegistry_GetByID_NotFound(t *testing.T) {
	repo := &mockTokenSessionRepo{}
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: repo})

	_, err := registry.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionRegistry_GetByID_RepoError(t *testing.T) {
	repo := &mockTokenSessionRepo{
		getByIDFunc: func(context.Context, string) (*model.ViewerSession, error) {
			return nil, errors.New("database unavailable")
		},
	}
	registry := NewSessionRegistry(SessionRegistryOptions{Repo: repo})

	_, err := registry.GetByID(context.Background(), "sess-1")
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
}
