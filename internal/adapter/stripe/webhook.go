package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// ErrInvalidSignature is returned when a webhook payload does not carry a
// valid Stripe signature for the configured secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyCheckoutEvent checks the Stripe-Signature header and decodes the
// checkout session the event refers to. Completed is set for sessions that
// have been paid and Expired for sessions Stripe has closed unpaid. Other
// events come back with neither.
func (g *Gateway) VerifyCheckoutEvent(payload []byte, signature string) (domain.CheckoutEvent, error) {
	if g.webhookSecret == "" {
		return domain.CheckoutEvent{}, domain.ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.CheckoutEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := domain.CheckoutEvent{ID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripeapi.EventTypeCheckoutSessionExpired:
	default:
		return out, nil
	}

	var s stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return domain.CheckoutEvent{}, fmt.Errorf("decoding checkout session: %w", err)
	}

	out.SessionID = s.ID
	if event.Type == stripeapi.EventTypeCheckoutSessionExpired {
		out.Expired = true
		return out, nil
	}
	out.Completed = s.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid ||
		s.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusNoPaymentRequired
	return out, nil
}
