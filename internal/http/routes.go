package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/target/mmk-ldap-auth/internal/ports"
	"github.com/target/mmk-ldap-auth/internal/service"
)

// DefaultSessionCookie names the opaque cookie keying the server-side slot.
const DefaultSessionCookie = "login_session"

// RouterServices holds the dependencies of the HTTP router.
type RouterServices struct {
	Auth     *service.AuthService
	Sessions ports.SessionBackend

	SessionCookie string
	SessionTTL    time.Duration
	CookieDomain  string

	// Limiter throttles POST /login per client; nil disables throttling.
	Limiter *LoginLimiter
	// TrustProxy derives the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	Logger     *slog.Logger
}

// NewRouter wires the login surface:
//
//	GET  /             welcome page or login form
//	POST /login        credential form
//	POST /logout       logout
//	GET  /auth/status  JSON view of the restorable identity
//	GET  /healthz      liveness
//	GET  /readyz       session backend readiness
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessionCookie := services.SessionCookie
	if sessionCookie == "" {
		sessionCookie = DefaultSessionCookie
	}
	h := &AuthHandlers{
		Svc:           services.Auth,
		Sessions:      services.Sessions,
		SessionCookie: sessionCookie,
		SessionTTL:    services.SessionTTL,
		CookieDomain:  services.CookieDomain,
		Logger:        logger.With("component", "http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if services.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(Recover(logger))
	r.Use(Logging(logger))

	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(services.Sessions, logger))
	r.Get("/auth/status", h.Status)

	r.Group(func(r chi.Router) {
		r.Use(CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain}))
		r.Get("/", h.Page)
		r.With(RateLimit(services.Limiter)).Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	return r
}
