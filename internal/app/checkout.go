package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// CheckoutConfig describes what a paid signup costs and where the payment
// provider sends the customer afterwards.
type CheckoutConfig struct {
	AmountCents    int64
	Currency       string
	Product        string
	SuccessURL     string
	CancelURL      string
	ReservationTTL time.Duration
}

// CheckoutService runs the paid signup: it validates the input, opens a
// payment session and holds the slug until the payment completes.
type CheckoutService struct {
	reservations domain.ReservationStore
	identities   domain.IdentityProvider
	payments     domain.PaymentGateway
	cfg          CheckoutConfig
	settings     settings
}

// NewCheckoutService creates a service with the given adapters. A nil
// payments gateway makes every checkout fail with domain.ErrNotConfigured.
func NewCheckoutService(reservations domain.ReservationStore, identities domain.IdentityProvider, payments domain.PaymentGateway, cfg CheckoutConfig, opts ...Option) *CheckoutService {
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = domain.ReservationTTL
	}
	return &CheckoutService{
		reservations: reservations,
		identities:   identities,
		payments:     payments,
		cfg:          cfg,
		settings:     buildSettings(opts),
	}
}

// Start validates in, creates the payment session and stores a pending
// reservation tied to it. Either nothing is persisted or exactly one
// reservation exists for the returned session.
func (s *CheckoutService) Start(ctx context.Context, in domain.SignupInput, locale string) (domain.CheckoutSession, error) {
	if s.payments == nil || s.reservations == nil || s.identities == nil {
		return domain.CheckoutSession{}, domain.ErrNotConfigured
	}

	in = in.Normalize()
	if err := in.Validate(s.settings.now()); err != nil {
		return domain.CheckoutSession{}, err
	}

	if err := precheckSlug(ctx, s.reservations, in.Slug, s.settings); err != nil {
		return domain.CheckoutSession{}, err
	}
	if err := s.checkEmail(ctx, in.Email); err != nil {
		return domain.CheckoutSession{}, err
	}

	reservationID := newID()

	stepCtx, cancel := context.WithTimeout(ctx, s.settings.stepTimeout)
	session, err := s.payments.CreateCheckoutSession(stepCtx, domain.CheckoutSessionRequest{
		AmountCents:   s.cfg.AmountCents,
		Currency:      s.cfg.Currency,
		Product:       s.cfg.Product,
		CustomerEmail: in.Email,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		Metadata: map[string]string{
			"email":          in.Email,
			"slug":           in.Slug,
			"reservation_id": reservationID,
		},
		IdempotencyKey: newIdempotencyKey("checkout"),
	})
	cancel()
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("creating checkout session: %w", err)
	}

	reservation := domain.NewReservation(reservationID, session.ID, in, locale, s.settings.now(), s.cfg.ReservationTTL)

	stepCtx, cancel = context.WithTimeout(ctx, s.settings.stepTimeout)
	_, err = s.reservations.TryReserve(stepCtx, reservation)
	cancel()
	if err != nil {
		// The session has no reservation behind it and can never become a
		// wedding. Close it so the customer cannot pay for nothing.
		s.abandon(ctx, session.ID, in.Slug)

		var conflict *domain.SlugConflictError
		if errors.As(err, &conflict) {
			return domain.CheckoutSession{}, conflict
		}
		return domain.CheckoutSession{}, fmt.Errorf("reserving slug: %w", err)
	}

	s.settings.logger.InfoContext(ctx, "checkout started",
		"slug", in.Slug,
		"reservation_id", reservationID,
		"session_id", session.ID,
	)

	return session, nil
}

// checkEmail refuses to take payment for an email that already owns an
// account. Unlike the slug pre-check a failing lookup stops the checkout:
// a paid signup for a registered email cannot be provisioned.
func (s *CheckoutService) checkEmail(ctx context.Context, email string) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.settings.stepTimeout)
	defer cancel()

	registered, err := s.identities.EmailRegistered(stepCtx, email)
	if err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if registered {
		return emailTakenError()
	}
	return nil
}

// abandon expires a payment session best-effort.
func (s *CheckoutService) abandon(ctx context.Context, sessionID, slug string) {
	expireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.compensationTimeout)
	defer cancel()

	if err := s.payments.ExpireCheckoutSession(expireCtx, sessionID); err != nil {
		s.settings.logger.WarnContext(ctx, "abandoned checkout session could not be expired",
			"error", err,
			"session_id", sessionID,
			"slug", slug,
		)
		return
	}
	s.settings.logger.InfoContext(ctx, "abandoned checkout session expired", "session_id", sessionID, "slug", slug)
}

// precheckSlug rejects slugs that are visibly held. It is a fast path only:
// the constrained write later decides. A failing lookup is logged and
// ignored for the same reason.
func precheckSlug(ctx context.Context, reservations domain.ReservationStore, slug string, s settings) error {
	claim, err := reservations.LookupSlug(ctx, slug)
	if err != nil {
		s.logger.WarnContext(ctx, "slug pre-check failed", "error", err, "slug", slug)
		return nil
	}
	return claim.Conflict()
}
