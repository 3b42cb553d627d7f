package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bookstore/internal/app"
	"bookstore/internal/metrics"
	"bookstore/internal/security"
	"bookstore/internal/util"
	"bookstore/pkg/domain"
)

// TokenVerifier turns a bearer token into the calling principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}

// RateLimiter guards unauthenticated auth endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Tokens         TokenVerifier
	Limiter        RateLimiter
	Alerter        *security.AuditAlerter
	TrustedProxies *util.TrustedProxies
	AllowedOrigins []string

	PaymentSuccessURL string
	PaymentFailureURL string
}

// Server exposes the bookstore HTTP API.
type Server struct {
	app     *app.App
	tokens  TokenVerifier
	limiter RateLimiter
	alerter *security.AuditAlerter
	trusted *util.TrustedProxies
	origins []string
	success *url.URL
	failure *url.URL
	router  chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("server: token verifier is required")
	}
	success, err := url.Parse(strings.TrimSpace(cfg.PaymentSuccessURL))
	if err != nil || success.Host == "" {
		return nil, errors.New("server: invalid payment success URL")
	}
	failure, err := url.Parse(strings.TrimSpace(cfg.PaymentFailureURL))
	if err != nil || failure.Host == "" {
		return nil, errors.New("server: invalid payment failure URL")
	}
	s := &Server{
		app:     cfg.App,
		tokens:  cfg.Tokens,
		limiter: cfg.Limiter,
		alerter: cfg.Alerter,
		trusted: cfg.TrustedProxies,
		origins: cfg.AllowedOrigins,
		success: success,
		failure: failure,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.trusted, util.WithSecurityHeaders(util.WithCORS(s.origins)(s.router))))
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { notFound(w, "not found") })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { methodNotAllowed(w) })

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimited("register")).Post("/register", s.handleRegister)
			r.With(s.rateLimited("login")).Post("/login", s.handleLogin)
			r.Get("/me", s.withUser(s.handleMe))
			r.Post("/logout", s.withUser(s.handleLogout))
		})

		// books
		r.Get("/books", s.withUser(s.handleListBooks))
		r.Post("/books", s.withUser(s.handleCreateBook))
		r.Get("/books/{id:[0-9]+}", s.withUser(s.handleGetBook))
		r.Put("/books/{id:[0-9]+}", s.withUser(s.handleUpdateBook))
		r.Delete("/books/{id:[0-9]+}", s.withUser(s.handleDeleteBook))
		r.Delete("/books/{bookId:[0-9]+}/images/{imageId:[0-9]+}", s.withUser(s.handleDeleteImage))

		r.Get("/home", s.handleHome)
		r.Get("/home/{id:[0-9]+}", s.handleHomeBook)

		r.Get("/admin/books", s.withUser(adminOnly(s.handleAdminBooks)))
		r.Get("/admin/stats", s.withUser(adminOnly(s.handleAdminStats)))

		r.Get("/vendor/my-books", s.withUser(s.handleVendorBooks))
		r.Get("/vendor/my-stats", s.withUser(s.handleVendorStats))
		r.Get("/vendor/my-sales", s.withUser(s.handleVendorSales))

		r.Post("/payments/initialize", s.handleInitializePayment)
		r.Get("/payments/verify", s.handleVerifyPayment)
		r.Post("/payments/webhook", s.handleWebhook)
	})
	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.Principal)

func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		p, err := s.tokens.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, p)
	}
}

func adminOnly(next userHandler) userHandler {
	return func(w http.ResponseWriter, r *http.Request, p domain.Principal) {
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, p)
	}
}

// optionalPrincipal returns the caller when a valid bearer token is present.
func (s *Server) optionalPrincipal(r *http.Request) (domain.Principal, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.Principal{}, false
	}
	p, err := s.tokens.Verify(r.Context(), token)
	if err != nil {
		return domain.Principal{}, false
	}
	return p, true
}

func (s *Server) rateLimited(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + util.ClientIP(r, s.trusted)
			ok, retry := s.limiter.Allow(r.Context(), key)
			if !ok {
				s.observe(r, "auth."+scope, security.OutcomeRateLimited)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// observe feeds the audit alerter. A tripped threshold is logged, never enforced here.
func (s *Server) observe(r *http.Request, event, outcome string) {
	if s.alerter == nil {
		return
	}
	ip := util.ClientIP(r, s.trusted)
	logger := util.LoggerFromContext(r.Context())
	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Debug("security_observe_failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Warn("security_alert",
			"event", event,
			"outcome", outcome,
			"client_ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
