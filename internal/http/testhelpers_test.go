package httpx

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
	"github.com/docvault/viewer-api/internal/domain/model"
	apperrors "github.com/docvault/viewer-api/internal/errors"
	"github.com/docvault/viewer-api/internal/ports"
	"github.com/docvault/viewer-api/internal/service"

	"github.com/docvault/viewer-api/internal/data"
)

// memSessionRepo is an in-memory SessionRepository for handler tests.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ViewerSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.ViewerSession)}
}

func (m *memSessionRepo) Create(
	ctx context.Context,
	req *model.CreateSessionRequest,
	ttl time.Duration,
) (*model.ViewerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	session := &model.ViewerSession{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		ResourceID:     req.ResourceID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		PageCount:      req.PageCount,
		Status:         model.SessionStatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
	}
	m.sessions[session.ID] = session
	copied := *session
	return &copied, nil
}

func (m *memSessionRepo) GetByID(ctx context.Context, id string) (*model.ViewerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, data.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionRepo) Validate(ctx context.Context, key model.SessionKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[key.SessionID]
	if !ok || session.UserID != key.UserID || session.ResourceID != key.ResourceID {
		return false, nil
	}
	if session.Status != model.SessionStatusActive {
		return false, nil
	}
	if !session.ExpiresAt.After(time.Now()) {
		session.Status = model.SessionStatusExpired
		return false, nil
	}
	return true, nil
}

func (m *memSessionRepo) Extend(
	ctx context.Context,
	id string,
	ttl time.Duration,
) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok || session.Status != model.SessionStatusActive || !session.ExpiresAt.After(time.Now()) {
		return time.Time{}, data.ErrSessionNotActive
	}
	session.ExpiresAt = time.Now().Add(ttl)
	session.LastActivityAt = time.Now()
	return session.ExpiresAt, nil
}

func (m *memSessionRepo) RecordPageView(ctx context.Context, id string, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok || session.Status != model.SessionStatusActive {
		return nil
	}
	if page > session.PagesViewed {
		session.PagesViewed = page
	}
	session.LastActivityAt = time.Now()
	return nil
}

func (m *memSessionRepo) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok && session.Status == model.SessionStatusActive {
		session.Status = model.SessionStatusClosed
	}
	return nil
}

func (m *memSessionRepo) ExpireStale(ctx context.Context, batchSize int) (int64, error) {
	return 0, nil
}

func (m *memSessionRepo) DeleteTerminatedBefore(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
) (int64, error) {
	return 0, nil
}

// memLogRepo is an in-memory AccessLogRepository for handler tests.
type memLogRepo struct {
	mu      sync.Mutex
	entries []*model.AccessLogEntry
}

func (m *memLogRepo) Append(
	ctx context.Context,
	req *model.AppendLogRequest,
) (*model.AccessLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := &model.AccessLogEntry{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		ResourceID: req.ResourceID,
		SessionID:  req.SessionID,
		Action:     req.Action,
		PageNumber: req.PageNumber,
		Metadata:   req.Metadata,
		CreatedAt:  time.Now(),
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memLogRepo) List(
	ctx context.Context,
	opts model.AccessLogListOptions,
) ([]*model.AccessLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AccessLogEntry
	for _, e := range m.entries {
		if opts.UserID != nil && e.UserID != *opts.UserID {
			continue
		}
		if opts.ResourceID != nil && e.ResourceID != *opts.ResourceID {
			continue
		}
		if opts.Action != nil && e.Action != *opts.Action {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memLogRepo) Count(ctx context.Context, opts model.AccessLogListOptions) (int64, error) {
	entries, err := m.List(ctx, opts)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

func (m *memLogRepo) Stats(ctx context.Context, window time.Duration) (*model.AccessStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.AccessStats{}
	for _, e := range m.entries {
		if e.Action == model.AccessActionBlocked {
			stats.BlockedAttempts++
		}
	}
	return stats, nil
}

func (m *memLogRepo) DeleteBefore(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
) (int64, error) {
	return 0, nil
}

func (m *memLogRepo) actions() []model.AccessAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AccessAction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// staticDocRepo serves a fixed document catalog.
type staticDocRepo struct {
	docs map[string]*model.Document
}

func (s *staticDocRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, data.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

// staticPurchaseRepo grants access for fixed user/resource pairs.
type staticPurchaseRepo struct {
	paid map[string]bool // "user|resource"
}

func (s *staticPurchaseRepo) HasPaid(ctx context.Context, userID, resourceID string) (bool, error) {
	return s.paid[userID+"|"+resourceID], nil
}

// memObjectStore serves fixed byte blobs by storage path.
type memObjectStore struct {
	objects map[string][]byte
}

func (m *memObjectStore) Get(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	blob, ok := m.objects[storagePath]
	if !ok {
		return nil, apperrors.NotFoundf("object %s not found", storagePath)
	}
	return io.NopCloser(bytes.NewReader(blob)), nil
}

// memNonceStore tracks superseded token nonces in memory.
type memNonceStore struct {
	mu         sync.Mutex
	superseded map[string]bool
}

func newMemNonceStore() *memNonceStore {
	return &memNonceStore{superseded: make(map[string]bool)}
}

func (m *memNonceStore) MarkSuperseded(ctx context.Context, nonce string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.superseded[nonce] = true
	return nil
}

func (m *memNonceStore) IsSuperseded(ctx context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.superseded[nonce], nil
}

// memLoginStore is an in-memory login-session store.
type memLoginStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

func newMemLoginStore() *memLoginStore {
	return &memLoginStore{sessions: make(map[string]domainauth.Session)}
}

func (m *memLoginStore) Save(ctx context.Context, sess domainauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *memLoginStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, apperrors.Unauthenticated("login session not found")
	}
	return sess, nil
}

func (m *memLoginStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// stubProvider satisfies ports.AuthProvider for router construction.
type stubProvider struct{}

func (stubProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	return "https://idp.example.com/authorize", "state-1", "nonce-1", nil
}

func (stubProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	return domainauth.Identity{
		UserID:    "user-1",
		Groups:    []string{"users"},
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

// staticRoles maps any caller with a group to user, admins group to admin.
type staticRoles struct{}

func (staticRoles) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if g == "admins" {
			return domainauth.RoleAdmin
		}
	}
	if len(groups) > 0 {
		return domainauth.RoleUser
	}
	return domainauth.RoleGuest
}

// testEnv wires real services over in-memory storage behind a router.
type testEnv struct {
	router     http.Handler
	sessions   *memSessionRepo
	logs       *memLogRepo
	logins     *memLoginStore
	viewerSvc  *service.ViewerService
	authSvc    *service.AuthService
	registry   *service.SessionRegistry
	signingKey []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sessions := newMemSessionRepo()
	logs := &memLogRepo{}
	logins := newMemLoginStore()
	signingKey := []byte("handler-test-signing-key-000000000")

	docs := &staticDocRepo{docs: map[string]*model.Document{
		"doc-1": {
			ID:          "doc-1",
			Title:       "Quarterly Report",
			PageCount:   40,
			StoragePath: "docs/doc-1.pdf",
			ContentType: "application/pdf",
			Watermark:   true,
		},
	}}
	purchases := &staticPurchaseRepo{paid: map[string]bool{"user-1|doc-1": true}}
	objects := &memObjectStore{objects: map[string][]byte{"docs/doc-1.pdf": []byte("%PDF-1.7 test")}}

	registry := service.NewSessionRegistry(service.SessionRegistryOptions{Repo: sessions})
	tokens := service.NewTokenService(service.TokenServiceOptions{
		Registry:   registry,
		Nonces:     newMemNonceStore(),
		SigningKey: signingKey,
	})
	activity := service.NewActivityRecorder(service.ActivityRecorderOptions{
		Logs:     logs,
		Registry: registry,
	})
	gate := service.NewAccessGate(service.AccessGateOptions{Purchases: purchases})

	viewerSvc := service.NewViewerService(service.ViewerServiceOptions{
		Gate:      gate,
		Registry:  registry,
		Tokens:    tokens,
		Activity:  activity,
		Documents: docs,
		Objects:   objects,
	})
	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Provider: stubProvider{},
		Sessions: logins,
		Roles:    staticRoles{},
	})

	router := NewRouter(RouterServices{
		Viewer:   viewerSvc,
		Activity: activity,
		Sessions: registry,
		Auth:     authSvc,
	})

	return &testEnv{
		router:     router,
		sessions:   sessions,
		logs:       logs,
		logins:     logins,
		viewerSvc:  viewerSvc,
		authSvc:    authSvc,
		registry:   registry,
		signingKey: signingKey,
	}
}

// login seeds a login session and returns its cookie.
func (e *testEnv) login(t *testing.T, userID string, role domainauth.Role) *http.Cookie {
	t.Helper()
	session := domainauth.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, e.logins.Save(context.Background(), session))
	return &http.Cookie{Name: "session_id", Value: session.ID}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, s string) io.Reader {
	t.Helper()
	return strings.NewReader(s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
