package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// ReservationValidator checks reservation lifecycle changes.
type ReservationValidator = domain.TransitionValidator[domain.ReservationStatus, domain.ReservationEvent]

// FinalizeConfig controls the set-password link sent to paid owners.
type FinalizeConfig struct {
	// SetPasswordURL is the page that redeems an invite. The token is
	// appended as the "token" query parameter.
	SetPasswordURL string
	InviteTTL      time.Duration
}

// FinalizeService turns a paid reservation into a wedding once the payment
// provider reports the checkout as completed.
type FinalizeService struct {
	reservations domain.ReservationStore
	tenants      domain.TenantProvisioner
	identities   domain.IdentityProvider
	provisioner  *Provisioner
	validator    ReservationValidator
	welcome      welcomeSender
	cfg          FinalizeConfig
	settings     settings
}

// NewFinalizeService creates a service with the given adapters.
func NewFinalizeService(
	reservations domain.ReservationStore,
	tenants domain.TenantProvisioner,
	identities domain.IdentityProvider,
	provisioner *Provisioner,
	validator ReservationValidator,
	notifier domain.Notifier,
	cfg FinalizeConfig,
	opts ...Option,
) *FinalizeService {
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = domain.CredentialInviteTTL
	}
	s := buildSettings(opts)
	return &FinalizeService{
		reservations: reservations,
		tenants:      tenants,
		identities:   identities,
		provisioner:  provisioner,
		validator:    validator,
		welcome:      newWelcomeSender(notifier, s),
		cfg:          cfg,
		settings:     s,
	}
}

// Finalization is the result of Complete. Replayed is true when the
// reservation had already been turned into a wedding earlier.
type Finalization struct {
	Result   domain.ProvisionResult
	Replayed bool
}

// Complete finalizes the reservation tied to sessionID. It is safe to call
// more than once for the same session: later calls return the wedding the
// first one created. The owner identity is created without a credential
// because the password collected at checkout is never stored with the
// reservation. The welcome notification carries a single-use link to set it.
func (s *FinalizeService) Complete(ctx context.Context, sessionID string) (Finalization, error) {
	r, err := s.reservations.GetBySessionID(ctx, sessionID)
	if err != nil {
		return Finalization{}, err
	}

	if r.Status == domain.ReservationCompleted {
		w, err := s.tenants.GetBySlug(ctx, r.Slug)
		if err != nil {
			return Finalization{}, fmt.Errorf("loading finalized wedding: %w", err)
		}
		return Finalization{Result: resultFromWedding(w, r.Email), Replayed: true}, nil
	}

	current := r.Status
	if r.Expired(s.settings.now()) {
		current = domain.ReservationExpired
	}
	if _, err := s.validator.Apply(ctx, current, domain.EventPaymentCompleted); err != nil {
		return Finalization{}, err
	}
	if current == domain.ReservationExpired {
		s.settings.logger.WarnContext(ctx, "payment completed after reservation expired",
			"slug", r.Slug,
			"reservation_id", r.ID,
			"session_id", sessionID,
		)
	}

	outcome := s.provisioner.Run(ctx, ProvisionInput{
		Metadata: map[string]string{
			"slug":          r.Slug,
			"partner1_name": r.Partner1Name,
			"partner2_name": r.Partner2Name,
			"flow":          string(domain.FlowPaid),
		},
		Request: domain.ProvisionRequest{
			Email:         r.Email,
			Partner1Name:  r.Partner1Name,
			Partner2Name:  r.Partner2Name,
			WeddingDate:   r.WeddingDate,
			Slug:          r.Slug,
			ThemeID:       r.ThemeID,
			Locale:        r.Locale,
			Flow:          domain.FlowPaid,
			ReservationID: r.ID,
		},
	})
	if !outcome.Succeeded() {
		if outcome.CompensationErr != nil {
			return Finalization{}, outcome.CompensationErr
		}
		var conflict *domain.SlugConflictError
		if errors.As(outcome.Err, &conflict) || errors.Is(outcome.Err, domain.ErrIdentityExists) {
			return Finalization{}, outcome.Err
		}
		return Finalization{}, fmt.Errorf("finalizing reservation %s: %w", r.ID, outcome.Err)
	}

	result := outcome.Result
	s.settings.logger.InfoContext(ctx, "paid wedding created",
		"slug", result.Slug,
		"wedding_id", result.WeddingID,
		"reservation_id", r.ID,
	)

	s.welcome.send(ctx, domain.Welcome{
		Email:          result.Email,
		Slug:           result.Slug,
		Locale:         r.Locale,
		Flow:           domain.FlowPaid,
		AccessCode:     result.AccessCode,
		SetPasswordURL: s.setPasswordLink(ctx, result),
	})

	return Finalization{Result: result}, nil
}

// setPasswordLink issues a credential invite for the new owner. The wedding
// already exists, so a failure is reported to the operator and the owner
// falls back to the password reset flow.
func (s *FinalizeService) setPasswordLink(ctx context.Context, result domain.ProvisionResult) string {
	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.stepTimeout)
	defer cancel()

	token, err := s.identities.IssueCredentialInvite(stepCtx, result.IdentityID, s.settings.now().Add(s.cfg.InviteTTL))
	if err != nil {
		s.settings.logger.ErrorContext(ctx, "credential invite could not be issued",
			"error", err,
			"slug", result.Slug,
			"identity_id", result.IdentityID,
			"alert", true,
		)
		return ""
	}

	link, err := url.Parse(s.cfg.SetPasswordURL)
	if err != nil {
		s.settings.logger.ErrorContext(ctx, "set-password URL is invalid", "error", err, "alert", true)
		return ""
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()
	return link.String()
}

// Abandon releases the slug held for a checkout session the payment
// provider has closed without payment. Reservations that are no longer
// pending are left alone, so a late or repeated notice is harmless.
func (s *FinalizeService) Abandon(ctx context.Context, sessionID string) error {
	r, err := s.reservations.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.validator.Apply(ctx, r.Status, domain.EventExpire); err != nil {
		var transition *domain.TransitionError
		if !errors.As(err, &transition) {
			return err
		}
		s.settings.logger.DebugContext(ctx, "ignoring expired session",
			"status", r.Status,
			"reservation_id", r.ID,
			"session_id", sessionID,
		)
		return nil
	}
	if err := s.reservations.Release(ctx, r.ID); err != nil {
		return fmt.Errorf("releasing reservation %s: %w", r.ID, err)
	}

	s.settings.logger.InfoContext(ctx, "checkout session expired, slug released",
		"slug", r.Slug,
		"reservation_id", r.ID,
		"session_id", sessionID,
	)
	return nil
}

func resultFromWedding(w domain.Wedding, email string) domain.ProvisionResult {
	return domain.ProvisionResult{
		IdentityID:  w.OwnerID,
		WeddingID:   w.ID,
		Email:       email,
		Slug:        w.Slug,
		AccessCode:  w.AccessCode,
		TrialEndsAt: w.TrialEndsAt,
	}
}
