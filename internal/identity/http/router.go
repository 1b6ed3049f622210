// Package http wires the identity service's handlers, guards and middleware
// into a single http.Handler.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/metrics"
	"github.com/orgstack/identity/internal/identity/service"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/httpx"
	"github.com/orgstack/identity/pkg/jwtx"
	"github.com/orgstack/identity/pkg/slogx"
)

type Deps struct {
	Store    store.Store
	Accounts *service.AccountService
	Sessions *service.SessionService
	Vault    *service.VaultService
	Verifier jwtx.Verifier
	Keys     *jwtx.KeySet
	Logger   *slog.Logger
}

// NewRouter assembles the full route table. Route shape:
//
//	public    — register, login, activate, password reset (strict limits)
//	session   — any active account (me, password change, public key)
//	admin     — invite, credential custody
func NewRouter(deps Deps) http.Handler {
	auth := &authHandlers{accounts: deps.Accounts, sessions: deps.Sessions}
	users := &userHandlers{accounts: deps.Accounts, sessions: deps.Sessions}
	vault := &vaultHandlers{vault: deps.Vault}
	health := &healthHandlers{store: deps.Store, keys: deps.Keys}
	g := &guard{store: deps.Store}

	bearer := httpx.RequireBearer(deps.Verifier)
	anyActive := g.require("")
	adminOnly := g.require(domain.RoleAdmin)

	strictByIP := httpx.RateLimit(httpx.RateLimitStrict, httpx.KeyByClientIP)
	moderate := httpx.RateLimit(httpx.RateLimitModerate, httpx.KeyByAccount)
	lenient := httpx.RateLimit(httpx.RateLimitLenient, httpx.KeyByAccount)

	mux := http.NewServeMux()

	// Public surface.
	mux.Handle("POST /v1/auth/register", httpx.Chain(http.HandlerFunc(auth.register), strictByIP))
	mux.Handle("POST /v1/auth/login", httpx.Chain(http.HandlerFunc(auth.login), strictByIP))
	mux.Handle("POST /v1/auth/password-reset-request", httpx.Chain(http.HandlerFunc(auth.passwordResetRequest), strictByIP))
	mux.Handle("POST /v1/auth/password-reset-confirm", httpx.Chain(http.HandlerFunc(auth.passwordResetConfirm), strictByIP))
	mux.Handle("POST /v1/users/activate", httpx.Chain(http.HandlerFunc(users.activate), strictByIP))

	// Authenticated, any active account.
	mux.Handle("POST /v1/auth/password-change", httpx.Chain(http.HandlerFunc(auth.passwordChange), bearer, anyActive, moderate))
	mux.Handle("GET /v1/me", httpx.Chain(http.HandlerFunc(users.me), bearer, anyActive, lenient))
	mux.Handle("GET /v1/tenant/payment-credentials/public", httpx.Chain(http.HandlerFunc(vault.getPublic), bearer, anyActive, lenient))

	// Admin only.
	mux.Handle("POST /v1/users/invite", httpx.Chain(http.HandlerFunc(users.invite), bearer, adminOnly, moderate))
	mux.Handle("PUT /v1/tenant/payment-credentials", httpx.Chain(http.HandlerFunc(vault.put), bearer, adminOnly, moderate))
	mux.Handle("GET /v1/tenant/payment-credentials", httpx.Chain(http.HandlerFunc(vault.getMasked), bearer, adminOnly, lenient))

	// Operational surface.
	mux.HandleFunc("GET /livez", health.livez)
	mux.HandleFunc("GET /readyz", health.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return httpx.Chain(mux,
		slogx.HTTPMiddleware(deps.Logger),
		observeRequests,
	)
}

// observeRequests records per-route latency. The ServeMux pattern keeps the
// label cardinality bounded; unmatched requests land under "unmatched".
func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
