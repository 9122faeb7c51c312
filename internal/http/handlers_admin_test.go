package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
)

func TestListAccessLogs(t *testing.T) {
	env := newTestEnv(t)
	userCookie := env.login(t, "user-1", domainauth.RoleUser)
	issueSession(t, env, userCookie, "doc-1")

	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/access-logs?resource_id=doc-1", nil)
	req.AddCookie(adminCookie)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entries, ok := resp["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "open", entry["action"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, float64(1), resp["total"])
}

func TestListAccessLogs_EmptyResult(t *testing.T) {
	env := newTestEnv(t)

	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/access-logs?action=blocked", nil)
	req.AddCookie(adminCookie)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"entries":[],"total":0}`, rec.Body.String())
}

func TestListAccessLogs_ActionFilter(t *testing.T) {
	env := newTestEnv(t)
	paid := env.login(t, "user-1", domainauth.RoleUser)
	issueSession(t, env, paid, "doc-1")

	// user-2 has not purchased doc-1, so this attempt is blocked
	unpaid := env.login(t, "user-2", domainauth.RoleUser)
	blockedReq := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions",
		jsonBody(t, `{"resource_id":"doc-1"}`))
	blockedReq.AddCookie(unpaid)
	require.Equal(t, http.StatusForbidden, env.do(blockedReq).Code)

	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/access-logs?action=blocked", nil)
	req.AddCookie(adminCookie)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entries := resp["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-2", entries[0].(map[string]any)["user_id"])
}

func TestListAccessLogs_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)
	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)

	cases := []struct {
		name  string
		query string
	}{
		{name: "unknown action", query: "action=download"},
		{name: "bad limit", query: "limit=abc"},
		{name: "negative offset", query: "offset=-5"},
		{name: "bad timestamp", query: "from=yesterday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/access-logs?"+tc.query, nil)
			req.AddCookie(adminCookie)
			rec := env.do(req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListAccessLogs_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	userCookie := env.login(t, "user-1", domainauth.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/access-logs", nil)
	req.AddCookie(userCookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAccessLogs_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/access-logs", nil)
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccessStats(t *testing.T) {
	env := newTestEnv(t)
	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/access-stats?window=1h", nil)
	req.AddCookie(adminCookie)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "blocked_attempts")
}

func TestAccessStats_InvalidWindow(t *testing.T) {
	env := newTestEnv(t)
	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)

	for _, window := range []string{"soon", "-1h", "0s"} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/access-stats?window="+window, nil)
		req.AddCookie(adminCookie)
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "window=%s", window)
	}
}

func TestAdminGetSession(t *testing.T) {
	env := newTestEnv(t)
	userCookie := env.login(t, "user-1", domainauth.RoleUser)
	issued := issueSession(t, env, userCookie, "doc-1")
	sessionID := issued["session_id"].(string)

	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions/"+sessionID, nil)
	req.AddCookie(adminCookie)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sessionID, resp["id"])
	assert.Equal(t, "user-1", resp["user_id"])
	assert.Equal(t, "active", resp["status"])
}

func TestAdminGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)
	adminCookie := env.login(t, "admin-1", domainauth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions/no-such-id", nil)
	req.AddCookie(adminCookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
