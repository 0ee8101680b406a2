package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/internal/auth/store"
	"github.com/securemed/portal/pkg/httpx"
	"github.com/securemed/portal/pkg/jwtx"
	"github.com/securemed/portal/pkg/slogx"
)

// GateRules maps the segregated path prefixes to the role allowed through
// each.
var GateRules = []httpx.GateRule{
	{Prefix: "/api/doctor/", Role: domain.RoleProvider.String(), Message: "Forbidden: provider access only"},
	{Prefix: "/api/patient/", Role: domain.RolePatient.String(), Message: "Forbidden: patient access only"},
	{Prefix: "/api/admin/", Role: domain.RoleAdmin.String(), Message: "Forbidden: admin access only"},
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	LoginService  *service.LoginService
	TokenService  *service.TokenService
	MFAService    *service.MFAService
	InviteService *service.InviteService
	UserService   *service.UserService
}

func NewRouter(codec *jwtx.Codec, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Global chain: request logging, bearer resolution, role gate.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.ResolveBearer(codec),
		httpx.AccessGate(GateRules),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFA()
	r.registerDashboards()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware
// chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	strict := httpx.ProfileStrict.WithEnvOverrides()
	moderate := httpx.ProfileModerate.WithEnvOverrides()

	// Credential endpoints get the strict per-IP budget; the per-user
	// lockout counter does the fine-grained work.
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(&LoginHandler{LoginService: r.LoginService},
			httpx.RateLimit(strict, httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("POST /api/auth/login/mfa",
		httpx.Chain(&MFALoginHandler{LoginService: r.LoginService},
			httpx.RateLimit(strict, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(&RegisterHandler{InviteService: r.InviteService},
			httpx.RateLimit(strict, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			httpx.RateLimit(moderate, httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService},
			httpx.RequireAuth,
			httpx.RateLimit(moderate, httpx.UserKeyExtractor),
		),
	)

	inviteHandler := &InviteHandler{InviteService: r.InviteService}
	r.Mux.Handle("POST /api/auth/invites/send",
		httpx.Chain(http.HandlerFunc(inviteHandler.HandleSend),
			httpx.RequireAuth,
			httpx.RateLimit(moderate, httpx.UserKeyExtractor),
		),
	)
	r.Mux.Handle("GET /api/auth/invites/verify",
		httpx.Chain(http.HandlerFunc(inviteHandler.HandleVerify),
			httpx.RateLimit(moderate, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("GET /api/auth/userinfo",
		httpx.Chain(&UserInfoHandler{UserService: r.UserService, MFAService: r.MFAService},
			httpx.RequireAuth,
			httpx.RateLimit(httpx.ProfileLenient.WithEnvOverrides(), httpx.UserKeyExtractor),
		),
	)
}

func (r *Router) registerMFA() {
	strict := httpx.ProfileStrict.WithEnvOverrides()
	moderate := httpx.ProfileModerate.WithEnvOverrides()

	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /api/auth/mfa/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			httpx.RequireAuth,
			httpx.RateLimit(moderate, httpx.UserKeyExtractor),
		),
	)

	// Verification is a code-guessing surface, so it gets the strict
	// budget per user.
	r.Mux.Handle("POST /api/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RequireAuth,
			httpx.RateLimit(strict, httpx.UserKeyExtractor),
		),
	)
	r.Mux.Handle("DELETE /api/auth/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleDeactivate),
			httpx.RequireAuth,
			httpx.RateLimit(strict, httpx.UserKeyExtractor),
		),
	)
	r.Mux.Handle("POST /api/auth/mfa/recovery-codes",
		httpx.Chain(http.HandlerFunc(h.HandleRegenerateRecoveryCodes),
			httpx.RequireAuth,
			httpx.RateLimit(moderate, httpx.UserKeyExtractor),
		),
	)
}

func (r *Router) registerDashboards() {
	lenient := httpx.ProfileLenient.WithEnvOverrides()

	r.Mux.Handle("GET /api/doctor/dashboard",
		httpx.Chain(DashboardHandler("provider dashboard"),
			httpx.RateLimit(lenient, httpx.UserKeyExtractor),
		),
	)
	r.Mux.Handle("GET /api/patient/dashboard",
		httpx.Chain(DashboardHandler("patient dashboard"),
			httpx.RateLimit(lenient, httpx.UserKeyExtractor),
		),
	)
	r.Mux.Handle("GET /api/admin/dashboard",
		httpx.Chain(DashboardHandler("admin dashboard"),
			httpx.RateLimit(lenient, httpx.UserKeyExtractor),
		),
	)
}

func (r *Router) registerSystem() {
	lenient := httpx.ProfileLenient.WithEnvOverrides()

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimit(lenient, httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimit(lenient, httpx.IPKeyExtractor),
		),
	)
}
