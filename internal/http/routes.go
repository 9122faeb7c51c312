package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
	"github.com/docvault/viewer-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Viewer       *service.ViewerService
	Activity     *service.ActivityRecorder
	Sessions     *service.SessionRegistry
	Auth         *service.AuthService
	CookieDomain string
	Logger       *slog.Logger // Logger for HTTP errors (optional)
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	viewerHandlers := &ViewerHandlers{Svc: services.Viewer, Logger: services.Logger}
	adminHandlers := &AdminHandlers{Activity: services.Activity, Sessions: services.Sessions}

	registerViewerRoutes(mux, viewerHandlers, services.Auth)
	registerAdminRoutes(mux, adminHandlers, services.Auth)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Auth != nil {
		authHandlers := &AuthHandlers{
			Svc:          services.Auth,
			CookieDomain: services.CookieDomain,
			Logger:       services.Logger,
		}
		registerAuthRoutes(mux, authHandlers)
	}

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Logging(logger)(Recover(logger)(mux))
}

func registerViewerRoutes(mux *http.ServeMux, h *ViewerHandlers, auth *service.AuthService) {
	// Issuance needs a login session; the token-bearing routes authenticate
	// by token alone so embedded viewers work without cookies.
	issue := http.HandlerFunc(h.IssueSession)
	if auth != nil {
		mux.Handle("POST /api/viewer/sessions", RequireAuth(auth)(issue))
	} else {
		mux.Handle("POST /api/viewer/sessions", issue)
	}
	mux.HandleFunc("GET /api/viewer/content", h.Content)
	mux.HandleFunc("POST /api/viewer/activity", h.Activity)
	mux.HandleFunc("POST /api/viewer/refresh", h.Refresh)
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers, auth *service.AuthService) {
	adminOnly := func(hh http.Handler) http.Handler {
		if auth != nil {
			return RequireRole(auth, domainauth.RoleAdmin)(hh)
		}
		return hh
	}

	mux.Handle("GET /api/admin/access-logs", adminOnly(http.HandlerFunc(h.ListAccessLogs)))
	mux.Handle("GET /api/admin/access-stats", adminOnly(http.HandlerFunc(h.AccessStats)))
	mux.Handle("GET /api/admin/sessions/{id}", adminOnly(http.HandlerFunc(h.GetSession)))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}
