package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/wedlock/internal/adapter/fsm"
	oteladapter "github.com/neomorfeo/wedlock/internal/adapter/otel"
	"github.com/neomorfeo/wedlock/internal/adapter/ratelimit"
	riveradapter "github.com/neomorfeo/wedlock/internal/adapter/river"
	smtpadapter "github.com/neomorfeo/wedlock/internal/adapter/smtp"
	"github.com/neomorfeo/wedlock/internal/adapter/sqlite"
	stripeadapter "github.com/neomorfeo/wedlock/internal/adapter/stripe"
	"github.com/neomorfeo/wedlock/internal/app"
	"github.com/neomorfeo/wedlock/internal/domain"

	handler "github.com/neomorfeo/wedlock/internal/adapter/http"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		slog.Error("wedlock exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real deployments set the environment.
	_ = godotenv.Load()
	cfg := loadConfig()

	logger, logCloser := newLogger(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	appOpts := []app.Option{app.WithLogger(logger)}

	reservations, err := oteladapter.NewTracingReservations(sqlite.NewReservationStore(db))
	if err != nil {
		return fmt.Errorf("reservation metrics: %w", err)
	}
	weddings := oteladapter.NewTracingTenants(sqlite.NewWeddingStore(db))
	identities := oteladapter.NewTracingIdentities(sqlite.NewIdentityStore(db))

	var sender riveradapter.WelcomeSender
	if cfg.SMTP.Configured() {
		sender = smtpadapter.NewMailer(cfg.SMTP)
	} else {
		logger.Warn("SMTP not configured, welcome emails are only logged")
		sender = smtpadapter.NewLogMailer(logger)
	}

	jobs, err := riveradapter.Setup(ctx, db, riveradapter.Workers{
		Sender:        sender,
		Sweeper:       app.NewExpiryService(reservations, appOpts...),
		SweepInterval: cfg.SweepInterval,
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	notifier := oteladapter.NewTracingNotifier(riveradapter.NewDispatcher(jobs))

	var payments domain.PaymentGateway
	var verifier handler.EventVerifier
	if cfg.Stripe.Configured() {
		gateway := stripeadapter.New(cfg.Stripe, logger)
		payments = oteladapter.NewTracingPayments(gateway)
		verifier = gateway
	} else {
		logger.Warn("Stripe not configured, paid signups are disabled")
	}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, cfg.RateLimit)
	} else {
		limiter = ratelimit.NewLocal(cfg.RateLimit, nil)
	}

	// --- Application ---
	provisioner := app.NewProvisioner(identities, weddings, fsm.NewProvisionValidator(), appOpts...)

	services := handler.Services{
		Checkout: app.NewCheckoutService(reservations, identities, payments, cfg.Checkout, appOpts...),
		Trial:    app.NewTrialService(reservations, provisioner, notifier, appOpts...),
		Slugs:    app.NewSlugService(reservations, appOpts...),
		Finalize: app.NewFinalizeService(reservations, weddings, identities, provisioner, fsm.NewReservationValidator(), notifier, cfg.Finalize, appOpts...),
		Account:  app.NewAccountService(identities, appOpts...),
		Webhooks: verifier,
		Limiter:  limiter,
		Logger:   logger,
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("wedlock", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("wedlock", version))
	handler.Register(api, services)

	// --- Jobs ---
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("wedlock listening", "port", cfg.Port, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Error("river shutdown", "error", err)
	}

	logger.Info("stopped")
	return nil
}
