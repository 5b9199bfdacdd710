package app

import (
	"context"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// ProvisionValidator checks provisioning state changes.
type ProvisionValidator = domain.TransitionValidator[domain.ProvisionState, domain.ProvisionEvent]

// Provisioner runs the two-step signup (identity, then wedding) and undoes
// the identity when the wedding step fails.
type Provisioner struct {
	identities domain.IdentityProvider
	tenants    domain.TenantProvisioner
	validator  ProvisionValidator
	settings   settings
}

// NewProvisioner creates a provisioner with the given adapters.
func NewProvisioner(identities domain.IdentityProvider, tenants domain.TenantProvisioner, validator ProvisionValidator, opts ...Option) *Provisioner {
	return &Provisioner{
		identities: identities,
		tenants:    tenants,
		validator:  validator,
		settings:   buildSettings(opts),
	}
}

// ProvisionInput is what a provisioning run needs. Request.IdentityID is
// filled in by the run itself.
type ProvisionInput struct {
	Credential string
	Metadata   map[string]string
	Request    domain.ProvisionRequest
}

// Outcome is the result of a provisioning run. State is where the run
// stopped: tenant_created on success, not_started when nothing remains,
// orphaned when an identity was left behind. Err is the failure of the
// forward step; CompensationErr is set only when the undo failed too.
type Outcome struct {
	State           domain.ProvisionState
	Result          domain.ProvisionResult
	Err             error
	CompensationErr *domain.CompensationError
}

// Succeeded reports whether the identity and the wedding both exist.
func (o Outcome) Succeeded() bool {
	return o.State == domain.StateTenantCreated && o.Err == nil
}

// Run executes the saga. It never returns a half-done run silently: a
// failure after the identity exists always triggers compensation, even when
// ctx has been cancelled or timed out.
func (p *Provisioner) Run(ctx context.Context, in ProvisionInput) Outcome {
	log := p.settings.logger
	state := domain.StateNotStarted

	stepCtx, cancel := context.WithTimeout(ctx, p.settings.stepTimeout)
	identityID, err := p.identities.CreateIdentity(stepCtx, in.Request.Email, in.Credential, in.Metadata)
	cancel()
	if err != nil {
		return Outcome{State: state, Err: err}
	}

	if state, err = p.validator.Apply(ctx, state, domain.EventIdentityCreated); err != nil {
		return Outcome{State: domain.StateNotStarted, Err: err}
	}

	req := in.Request
	req.IdentityID = identityID

	stepCtx, cancel = context.WithTimeout(ctx, p.settings.stepTimeout)
	result, err := p.tenants.CreateWedding(stepCtx, req)
	cancel()
	if err != nil {
		return p.compensate(ctx, state, req, err)
	}

	state, err = p.validator.Apply(ctx, state, domain.EventTenantCreated)
	if err != nil {
		// The wedding is committed; the state table is out of sync with
		// the code, which is a programming error, not a signup failure.
		log.ErrorContext(ctx, "provisioning state machine rejected commit", "error", err, "slug", req.Slug)
		state = domain.StateTenantCreated
	}

	return Outcome{State: state, Result: result}
}

// compensate deletes the identity created for a failed run. It uses a
// context detached from the caller so a cancelled request still cleans up.
func (p *Provisioner) compensate(ctx context.Context, state domain.ProvisionState, req domain.ProvisionRequest, cause error) Outcome {
	log := p.settings.logger

	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.settings.compensationTimeout)
	defer cancel()

	undoErr := p.identities.DeleteIdentity(undoCtx, req.IdentityID)
	if undoErr == nil {
		next, err := p.validator.Apply(undoCtx, state, domain.EventRollback)
		if err != nil {
			next = domain.StateNotStarted
		}
		log.WarnContext(ctx, "wedding creation failed, identity removed",
			"error", cause,
			"slug", req.Slug,
			"identity_id", req.IdentityID,
		)
		return Outcome{State: next, Err: cause}
	}

	next, err := p.validator.Apply(undoCtx, state, domain.EventRollbackFailed)
	if err != nil {
		next = domain.StateOrphaned
	}
	compErr := &domain.CompensationError{
		Step:       "create wedding",
		IdentityID: req.IdentityID,
		Cause:      cause,
		Undo:       undoErr,
	}
	log.ErrorContext(ctx, "orphaned identity: compensation failed",
		"alert", true,
		"error", compErr,
		"slug", req.Slug,
		"email", req.Email,
		"identity_id", req.IdentityID,
	)
	return Outcome{
		State:           next,
		Result:          domain.ProvisionResult{IdentityID: req.IdentityID},
		Err:             cause,
		CompensationErr: compErr,
	}
}
