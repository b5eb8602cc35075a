package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/api/handler"
	mw "github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/config"
	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/cpanel"
	"github.com/animxo/mailpanel/internal/webmail"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DB       core.DB
	Redis    redis.UniversalClient
	Panel    *cpanel.Client
	Verifier webmail.Verifier
}

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	deps     Deps
	cfg      *config.Config
	limiter  *mw.RateLimiter
}

func NewServer(logger zerolog.Logger, deps Deps, cfg *config.Config) *Server {
	services := core.NewServices(deps.DB, deps.Redis, deps.Panel, deps.Verifier, core.Config{
		Auth: core.AuthConfig{
			Secret:  cfg.JWTSecret,
			Issuer:  cfg.JWTIssuer,
			AdminID: cfg.AdminAccountID,
		},
		Mailbox: core.MailboxConfig{
			MailServer: cfg.MailServer,
			WebmailURL: cfg.WebmailURL,
		},
	})

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		deps:     deps,
		cfg:      cfg,
		limiter:  mw.NewRateLimiter(cfg.LoginRatePerSecond, cfg.LoginRateBurst),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
	s.router.Use(mw.CORS(s.cfg.CORSOrigins))
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	auth := handler.NewAuth(s.services.Auth, !s.cfg.DevMode)
	s.router.With(s.limiter.Handler).Post("/auth/login", auth.Login)
	s.router.With(mw.Auth(s.services.Auth)).Post("/auth/logout", auth.Logout)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.Auth(s.services.Auth))

		// Profile
		me := handler.NewMe(s.services.Account)
		r.Get("/me", me.Get)
		r.Patch("/me", me.Update)

		// Own mailboxes
		mailbox := handler.NewMailbox(s.services.Mailbox)
		r.Get("/me/mailboxes", mailbox.List)
		r.Post("/me/mailboxes", mailbox.Create)
		r.Post("/me/mailboxes/existing", mailbox.AddExisting)
		r.Post("/me/mailboxes/sync", mailbox.Sync)
		r.Delete("/me/mailboxes/{id}", mailbox.Delete)
		r.Post("/me/mailboxes/{id}/password", mailbox.ChangePassword)
		r.Get("/me/mailboxes/{id}/settings", mailbox.Settings)
		r.Get("/me/mailboxes/{id}/usage", mailbox.Usage)

		// Activity
		activity := handler.NewActivity(s.services.Activity, s.cfg.CORSOrigins)
		r.Get("/me/activity", activity.List)
		r.Get("/me/activity/stream", activity.Stream)

		// Panel proxy. These act on any mailbox in the domain regardless of
		// which account owns it, so they are limited to administrators.
		panel := handler.NewCpanel(s.deps.Panel)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAdmin)
			r.Post("/cpanel/create-email", panel.CreateEmail)
			r.Delete("/cpanel/delete-email", panel.DeleteEmail)
			r.Post("/cpanel/change-password", panel.ChangePassword)
			r.Get("/cpanel/email-stats", panel.EmailStats)
			r.Put("/cpanel/quota", panel.UpdateQuota)
			r.Get("/cpanel/domains", panel.Domains)
			r.Get("/cpanel/disk-usage", panel.DiskUsage)
			r.Post("/cpanel/forwarders", panel.CreateForwarder)
			r.Delete("/cpanel/forwarders", panel.DeleteForwarder)
			r.Get("/test-cpanel", panel.Test)
		})

		// Mail
		email := handler.NewEmail(s.deps.Verifier, s.services.Mailbox, s.cfg.MailServer)
		r.Get("/email/folders", email.Folders)
		r.Get("/email/messages", email.Messages)
		r.Post("/email/send", email.Send)
		r.Post("/email/verify", email.Verify)
		r.Post("/email/imap/verify", email.IMAPVerify)

		// Administration
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireAdmin)

			admin := handler.NewAdmin(s.deps.Panel, s.services, s.cfg.CORSOrigins)
			r.Get("/emails", admin.ListEmails)
			r.Post("/emails", admin.CreateEmail)
			r.Delete("/emails", admin.DeleteEmail)

			r.Get("/accounts", admin.ListAccounts)
			r.Post("/accounts", admin.CreateAccount)
			r.Get("/accounts/stream", admin.AccountsStream)
			r.Patch("/accounts/{id}", admin.UpdateAccount)
			r.Delete("/accounts/{id}", admin.DeleteAccount)

			r.Get("/stats", admin.Stats)
			r.Post("/stats/refresh", admin.RefreshStats)
			r.Get("/recent-logins", admin.RecentLogins)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if p, ok := s.deps.DB.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Services exposes the service layer for background jobs.
func (s *Server) Services() *core.Services {
	return s.services
}

// RateLimiter exposes the sign-in limiter so idle clients can be pruned.
func (s *Server) RateLimiter() *mw.RateLimiter {
	return s.limiter
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
