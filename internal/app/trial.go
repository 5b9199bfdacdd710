package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// TrialService runs the free signup: identity and wedding are created
// together, or neither survives.
type TrialService struct {
	reservations domain.ReservationStore
	provisioner  *Provisioner
	welcome      welcomeSender
	settings     settings
}

// NewTrialService creates a service with the given adapters. notifier may be
// nil, in which case no welcome message is sent.
func NewTrialService(reservations domain.ReservationStore, provisioner *Provisioner, notifier domain.Notifier, opts ...Option) *TrialService {
	s := buildSettings(opts)
	return &TrialService{
		reservations: reservations,
		provisioner:  provisioner,
		welcome:      newWelcomeSender(notifier, s),
		settings:     s,
	}
}

// SignUp validates in and provisions a trial wedding. Validation errors are
// *domain.FieldError, a visibly or concurrently held slug is a
// *domain.SlugConflictError, an orphaned identity is a
// *domain.CompensationError; anything else is an internal failure.
func (s *TrialService) SignUp(ctx context.Context, in domain.SignupInput, locale string) (domain.ProvisionResult, error) {
	if s.provisioner == nil || s.reservations == nil {
		return domain.ProvisionResult{}, domain.ErrNotConfigured
	}

	in = in.Normalize()
	if err := in.Validate(s.settings.now()); err != nil {
		return domain.ProvisionResult{}, err
	}

	if err := precheckSlug(ctx, s.reservations, in.Slug, s.settings); err != nil {
		return domain.ProvisionResult{}, err
	}

	outcome := s.provisioner.Run(ctx, ProvisionInput{
		Credential: in.Password,
		Metadata: map[string]string{
			"slug":          in.Slug,
			"partner1_name": in.Partner1Name,
			"partner2_name": in.Partner2Name,
			"flow":          string(domain.FlowTrial),
		},
		Request: domain.ProvisionRequest{
			Email:        in.Email,
			Partner1Name: in.Partner1Name,
			Partner2Name: in.Partner2Name,
			WeddingDate:  in.WeddingDate,
			Slug:         in.Slug,
			ThemeID:      in.ThemeID,
			Locale:       locale,
			Flow:         domain.FlowTrial,
		},
	})
	if !outcome.Succeeded() {
		return domain.ProvisionResult{}, trialError(outcome)
	}

	result := outcome.Result
	s.settings.logger.InfoContext(ctx, "trial wedding created",
		"slug", result.Slug,
		"wedding_id", result.WeddingID,
		"identity_id", result.IdentityID,
	)

	s.welcome.send(ctx, domain.Welcome{
		Email:       result.Email,
		Slug:        result.Slug,
		Locale:      locale,
		Flow:        domain.FlowTrial,
		AccessCode:  result.AccessCode,
		TrialEndsAt: result.TrialEndsAt,
	})

	return result, nil
}

// trialError maps a failed provisioning run to what the caller sees.
func trialError(o Outcome) error {
	if o.CompensationErr != nil {
		return o.CompensationErr
	}

	if errors.Is(o.Err, domain.ErrIdentityExists) {
		return emailTakenError()
	}

	// Nothing is left behind, so a lost race for the slug can be reported
	// as the conflict it is.
	var conflict *domain.SlugConflictError
	if errors.As(o.Err, &conflict) {
		return conflict
	}

	return fmt.Errorf("provisioning trial wedding: %w", o.Err)
}

func emailTakenError() error {
	return &domain.FieldError{Field: "email", Message: "An account with this email already exists"}
}
