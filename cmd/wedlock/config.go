package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/neomorfeo/wedlock/internal/adapter/ratelimit"
	riveradapter "github.com/neomorfeo/wedlock/internal/adapter/river"
	smtpadapter "github.com/neomorfeo/wedlock/internal/adapter/smtp"
	stripeadapter "github.com/neomorfeo/wedlock/internal/adapter/stripe"
	"github.com/neomorfeo/wedlock/internal/app"
	"github.com/neomorfeo/wedlock/internal/domain"
)

// config is everything run() reads from the environment.
type config struct {
	Port          string
	DatabasePath  string
	BaseURL       string
	RedisURL      string
	SweepInterval time.Duration

	Log       logConfig
	Checkout  app.CheckoutConfig
	Finalize  app.FinalizeConfig
	Stripe    stripeadapter.Config
	SMTP      smtpadapter.Config
	RateLimit ratelimit.Policy
}

type logConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
	File   string // optional rotating file, mirrored to stdout
}

func loadConfig() config {
	baseURL := envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	var level slog.Level
	if err := level.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}

	return config{
		Port:          envOrDefault("PORT", "8080"),
		DatabasePath:  envOrDefault("DATABASE_PATH", "wedlock.db"),
		BaseURL:       baseURL,
		RedisURL:      os.Getenv("REDIS_URL"),
		SweepInterval: envDuration("RESERVATION_SWEEP_INTERVAL", riveradapter.DefaultSweepInterval),

		Log: logConfig{
			Level:  level,
			Format: envOrDefault("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
		Checkout: app.CheckoutConfig{
			AmountCents:    int64(envInt("CHECKOUT_AMOUNT_CENTS", 4900)),
			Currency:       envOrDefault("CHECKOUT_CURRENCY", "eur"),
			Product:        envOrDefault("CHECKOUT_PRODUCT", "Wedding website"),
			SuccessURL:     envOrDefault("CHECKOUT_SUCCESS_URL", baseURL+"/signup/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:      envOrDefault("CHECKOUT_CANCEL_URL", baseURL+"/signup"),
			ReservationTTL: envDuration("RESERVATION_TTL", domain.ReservationTTL),
		},
		Finalize: app.FinalizeConfig{
			SetPasswordURL: envOrDefault("SET_PASSWORD_URL", baseURL+"/account/password"),
			InviteTTL:      envDuration("CREDENTIAL_INVITE_TTL", domain.CredentialInviteTTL),
		},
		Stripe: stripeadapter.Config{
			SecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
			APIURL:            os.Getenv("STRIPE_API_URL"),
			MaxNetworkRetries: int64(envInt("STRIPE_MAX_RETRIES", 2)),
		},
		SMTP: smtpadapter.Config{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOrDefault("SMTP_FROM", "Wedlock <hello@wedlock.local>"),
			BaseURL:  baseURL,
		},
		RateLimit: ratelimit.Policy{
			Limit:  envInt("SIGNUP_RATE_LIMIT", ratelimit.DefaultLimit),
			Window: envDuration("SIGNUP_RATE_WINDOW", ratelimit.DefaultWindow),
		},
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
