package domain

import (
	"context"
	"time"
)

// ReservationStore persists slug claims and pending reservations. TryReserve
// must decide uniqueness with a single constrained write.
type ReservationStore interface {
	TryReserve(ctx context.Context, r Reservation) (Reservation, error)
	LookupSlug(ctx context.Context, slug string) (SlugClaim, error)
	GetBySessionID(ctx context.Context, sessionID string) (Reservation, error)
	Release(ctx context.Context, id string) error
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// TenantProvisioner creates the owner profile and wedding in one transaction
// and enforces slug uniqueness itself.
type TenantProvisioner interface {
	CreateWedding(ctx context.Context, req ProvisionRequest) (ProvisionResult, error)
	GetBySlug(ctx context.Context, slug string) (Wedding, error)
}

// CredentialInviteTTL is how long a set-password link stays usable.
const CredentialInviteTTL = 7 * 24 * time.Hour

// IdentityProvider manages authentication principals. CreateIdentity returns
// ErrIdentityExists when the email is already registered. An empty credential
// creates an identity that sets its password through a credential invite.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, credential string, metadata map[string]string) (string, error)
	DeleteIdentity(ctx context.Context, id string) error
	EmailRegistered(ctx context.Context, email string) (bool, error)
	// IssueCredentialInvite returns a single-use token that lets the owner
	// of identityID set a credential until expiresAt.
	IssueCredentialInvite(ctx context.Context, identityID string, expiresAt time.Time) (string, error)
	// RedeemCredentialInvite sets credential on the identity the token was
	// issued for and returns its id. Unknown, used or expired tokens yield
	// ErrInviteInvalid.
	RedeemCredentialInvite(ctx context.Context, token, credential string) (string, error)
}

// CheckoutSessionRequest describes the payment to collect for a paid signup.
type CheckoutSessionRequest struct {
	AmountCents    int64
	Currency       string
	Product        string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// CheckoutSession is the provider's answer: where to send the customer.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway creates and abandons hosted checkout sessions.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// CheckoutEvent is a verified notification from the payment provider.
// Completed is true only when the session has been paid. Expired is true
// when the session can no longer be paid.
type CheckoutEvent struct {
	ID        string
	Type      string
	SessionID string
	Completed bool
	Expired   bool
}

// Welcome is the payload of the post-signup notification. It never includes
// the password.
type Welcome struct {
	Email       string
	Slug        string
	Locale      string
	Flow        Flow
	AccessCode  string
	TrialEndsAt *time.Time

	// SetPasswordURL is set for owners created without a credential.
	SetPasswordURL string
}

// Notifier delivers transactional notifications. Callers treat it as best-effort.
type Notifier interface {
	NotifyWelcome(ctx context.Context, w Welcome) error
}

// TransitionValidator checks a state change against a transition table and
// returns the destination state.
type TransitionValidator[S, E ~string] interface {
	Apply(ctx context.Context, current S, event E) (S, error)
}
