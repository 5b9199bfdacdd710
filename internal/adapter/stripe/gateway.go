package stripe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Compile-time check: Gateway implements domain.PaymentGateway.
var _ domain.PaymentGateway = (*Gateway)(nil)

// Config holds the Stripe credentials and client tuning.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API base URL. Tests point it at an
	// httptest server.
	APIURL            string
	MaxNetworkRetries int64
	HTTPClient        *http.Client
}

// Configured reports whether a secret key is present.
func (c Config) Configured() bool {
	return c.SecretKey != ""
}

// Gateway creates and expires Stripe Checkout sessions.
type Gateway struct {
	sessions      *session.Client
	webhookSecret string
}

// New creates a gateway with its own backend; it never touches the
// package-level stripe.Key.
func New(cfg Config, logger *slog.Logger) *Gateway {
	backendCfg := &stripeapi.BackendConfig{
		MaxNetworkRetries: stripeapi.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &leveledLogger{logger: logger},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripeapi.String(cfg.APIURL)
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}

	return &Gateway{
		sessions: &session.Client{
			B:   stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateCheckoutSession opens a hosted payment page for a single line item.
// The idempotency key is sent with every network retry the client makes.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (domain.CheckoutSession, error) {
	params := &stripeapi.CheckoutSessionParams{
		Mode:          stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		CustomerEmail: stripeapi.String(req.CustomerEmail),
		SuccessURL:    stripeapi.String(req.SuccessURL),
		CancelURL:     stripeapi.String(req.CancelURL),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(req.Currency),
					UnitAmount: stripeapi.Int64(req.AmountCents),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(req.Product),
					},
				},
				Quantity: stripeapi.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("stripe: creating checkout session: %w", err)
	}
	return domain.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ExpireCheckoutSession closes an open session so it can no longer be paid.
func (g *Gateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripeapi.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("stripe: expiring checkout session %s: %w", sessionID, err)
	}
	return nil
}

// leveledLogger routes stripe-go's client logs through slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Infof(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
