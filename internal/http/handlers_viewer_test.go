package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
	"github.com/docvault/viewer-api/internal/domain/model"
)

// issueSession drives the full issue flow and returns the response payload.
func issueSession(t *testing.T, env *testEnv, cookie *http.Cookie, resourceID string) map[string]any {
	t.Helper()
	body := fmt.Sprintf(`{"resource_id":%q}`, resourceID)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions", jsonBody(t, body))
	req.AddCookie(cookie)
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestIssueSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)

	resp := issueSession(t, env, cookie, "doc-1")

	assert.NotEmpty(t, resp["token"])
	assert.NotEmpty(t, resp["session_id"])
	assert.Equal(t, float64(1800), resp["expires_in"])

	resource, ok := resp["resource"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Quarterly Report", resource["title"])
	assert.Equal(t, float64(40), resource["page_count"])

	assert.Equal(t, []model.AccessAction{model.AccessActionOpen}, env.logs.actions())
}

func TestIssueSession_NoLoginSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions",
		jsonBody(t, `{"resource_id":"doc-1"}`))
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueSession_ExpiredLoginSession(t *testing.T) {
	env := newTestEnv(t)
	session := domainauth.Session{
		ID:        "stale-login",
		UserID:    "user-1",
		Role:      domainauth.RoleUser,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, env.logins.Save(context.Background(), session))

	req := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions",
		jsonBody(t, `{"resource_id":"doc-1"}`))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale-login"})
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueSession_NotPurchased(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-2", domainauth.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions",
		jsonBody(t, `{"resource_id":"doc-1"}`))
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access_denied", resp["error"])

	// a denial still leaves an audit trail
	assert.Equal(t, []model.AccessAction{model.AccessActionBlocked}, env.logs.actions())
}

func TestIssueSession_ResourceNotFound(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions",
		jsonBody(t, `{"resource_id":"doc-missing"}`))
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.logs.actions())
}

func TestIssueSession_MissingResourceID(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/viewer/sessions",
		jsonBody(t, `{"resource_id":""}`))
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContent(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/viewer/content?token="+token, nil)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "%PDF-1.7 test", rec.Body.String())
}

func TestContent_BearerToken(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/viewer/content", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "%PDF-1.7 test", rec.Body.String())
}

func TestContent_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/viewer/content", nil)
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContent_GarbageToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/viewer/content?token=not-a-jwt", nil)
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "token_invalid", resp["error"])
}

func TestContent_ClosedSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)
	sessionID := resp["session_id"].(string)

	require.NoError(t, env.sessions.Close(context.Background(), sessionID))

	req := httptest.NewRequest(http.MethodGet, "/api/viewer/content?token="+token, nil)
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var errResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "session_expired", errResp["error"])
}

func TestActivity_PageView(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)
	sessionID := resp["session_id"].(string)

	body := fmt.Sprintf(`{"token":%q,"action":"page_view","page_number":7}`, token)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/activity", jsonBody(t, body))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	session, err := env.sessions.GetByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 7, session.PagesViewed)

	actions := env.logs.actions()
	require.Len(t, actions, 2)
	assert.Equal(t, model.AccessActionPageView, actions[1])
}

func TestActivity_PageView_ClosedSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)
	sessionID := resp["session_id"].(string)

	require.NoError(t, env.sessions.Close(context.Background(), sessionID))

	body := fmt.Sprintf(`{"token":%q,"action":"page_view","page_number":7}`, token)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/activity", jsonBody(t, body))
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var errResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "session_expired", errResp["error"])

	// No page_view entry lands in the audit log for a closed session.
	actions := env.logs.actions()
	require.Len(t, actions, 1)
	assert.Equal(t, model.AccessActionOpen, actions[0])
}

func TestActivity_Close(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)
	sessionID := resp["session_id"].(string)

	body := fmt.Sprintf(`{"token":%q,"action":"close"}`, token)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/activity", jsonBody(t, body))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	session, err := env.sessions.GetByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusClosed, session.Status)
}

func TestActivity_Heartbeat(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)

	body := fmt.Sprintf(`{"token":%q,"action":"heartbeat"}`, token)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/activity", jsonBody(t, body))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// heartbeats are not audited
	assert.Equal(t, []model.AccessAction{model.AccessActionOpen}, env.logs.actions())
}

func TestActivity_UnknownAction(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	token := resp["token"].(string)

	body := fmt.Sprintf(`{"token":%q,"action":"download"}`, token)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/activity", jsonBody(t, body))
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "user-1", domainauth.RoleUser)
	resp := issueSession(t, env, cookie, "doc-1")
	oldToken := resp["token"].(string)

	body := fmt.Sprintf(`{"token":%q}`, oldToken)
	req := httptest.NewRequest(http.MethodPost, "/api/viewer/refresh", jsonBody(t, body))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var refreshed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	newToken, ok := refreshed["token"].(string)
	require.True(t, ok)
	assert.NotEqual(t, oldToken, newToken)
	assert.Equal(t, float64(1800), refreshed["expires_in"])

	// the fresh token works
	contentReq := httptest.NewRequest(http.MethodGet, "/api/viewer/content?token="+newToken, nil)
	contentRec := env.do(contentReq)
	assert.Equal(t, http.StatusOK, contentRec.Code)

	// the rotated-out token no longer does
	staleReq := httptest.NewRequest(http.MethodGet, "/api/viewer/content?token="+oldToken, nil)
	staleRec := env.do(staleReq)
	assert.Equal(t, http.StatusUnauthorized, staleRec.Code)
}

func TestRefresh_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/viewer/refresh",
		jsonBody(t, `{"token":"garbage"}`))
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
