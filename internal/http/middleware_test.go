package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
)

func requireAuthProbe(env *testEnv) (http.Handler, *bool) {
	reached := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		session, _ := GetUserSessionFromContext(r.Context())
		if session == nil {
			http.Error(w, "no session in context", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return RequireAuth(env.authSvc)(inner), &reached
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	handler, reached := requireAuthProbe(env)
	cookie := env.login(t, "user-1", domainauth.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *reached)
}

func TestRequireAuth_NoCookie(t *testing.T) {
	env := newTestEnv(t)
	handler, reached := requireAuthProbe(env)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
}

func TestRequireAuth_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	handler, reached := requireAuthProbe(env)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "no-such-session"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		role     domainauth.Role
		required domainauth.Role
		want     int
	}{
		{name: "admin passes admin gate", role: domainauth.RoleAdmin, required: domainauth.RoleAdmin, want: http.StatusNoContent},
		{name: "admin passes user gate", role: domainauth.RoleAdmin, required: domainauth.RoleUser, want: http.StatusNoContent},
		{name: "user passes user gate", role: domainauth.RoleUser, required: domainauth.RoleUser, want: http.StatusNoContent},
		{name: "user fails admin gate", role: domainauth.RoleUser, required: domainauth.RoleAdmin, want: http.StatusForbidden},
		{name: "guest fails user gate", role: domainauth.RoleGuest, required: domainauth.RoleUser, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			handler := RequireRole(env.authSvc, tc.required)(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNoContent)
				}))
			cookie := env.login(t, "user-x", tc.role)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRecover(t *testing.T) {
	handler := Recover(testLogger())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogging_CapturesStatus(t *testing.T) {
	handler := Logging(testLogger())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
