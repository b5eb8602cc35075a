package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/animxo/mailpanel/internal/api"
	"github.com/animxo/mailpanel/internal/config"
	"github.com/animxo/mailpanel/internal/cpanel"
	"github.com/animxo/mailpanel/internal/db"
	"github.com/animxo/mailpanel/internal/logging"
	"github.com/animxo/mailpanel/internal/metrics"
	"github.com/animxo/mailpanel/internal/webmail"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "Apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if cfg.AutoMigrate || *migrateOnly {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		if *migrateOnly {
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to account database")
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)
	metrics.RegisterRedisPoolMetrics(prometheus.DefaultRegisterer, rdb)

	if !cfg.CpanelConfigured() {
		logger.Warn().Msg("CPANEL_USER or CPANEL_API_TOKEN not set; panel calls will fail")
	}
	panel := cpanel.NewClient(cpanel.Config{
		BaseURL: cfg.CpanelURL,
		User:    cfg.CpanelUser,
		Token:   cfg.CpanelAPIToken,
		Domain:  cfg.MailDomain,
	})

	var verifier webmail.Verifier = webmail.SimulatedVerifier{}
	if cfg.MailVerifyMode == "imap" {
		verifier = webmail.NewIMAPVerifier(cfg.MailServer)
		logger.Info().Str("server", cfg.MailServer).Msg("verifying mailbox credentials over IMAP")
	}

	srv := api.NewServer(logger, api.Deps{
		DB:       pool,
		Redis:    rdb,
		Panel:    panel,
		Verifier: verifier,
	}, cfg)

	jobs, err := scheduleJobs(ctx, logger, srv, cfg.StatsRefreshSchedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule background jobs")
	}
	jobs.Start()

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting mailpanel API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		<-jobs.Stop().Done()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

// scheduleJobs registers the periodic stats refresh and the pruning of idle
// sign-in limiter entries.
func scheduleJobs(ctx context.Context, logger zerolog.Logger, srv *api.Server, statsSchedule string) (*cron.Cron, error) {
	c := cron.New()
	jobCtx := logger.WithContext(ctx)

	if _, err := c.AddFunc(statsSchedule, func() {
		stats, err := srv.Services().Stats.Refresh(jobCtx)
		if err != nil {
			logger.Error().Err(err).Msg("stats refresh failed")
			return
		}
		logger.Debug().Int("total_users", stats.TotalUsers).Msg("stats refreshed")
	}); err != nil {
		return nil, fmt.Errorf("schedule stats refresh %q: %w", statsSchedule, err)
	}

	if _, err := c.AddFunc("@every 10m", srv.RateLimiter().Cleanup); err != nil {
		return nil, fmt.Errorf("schedule limiter cleanup: %w", err)
	}
	return c, nil
}
