package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// EventVerifier authenticates a payment provider webhook and extracts the
// checkout event it carries.
type EventVerifier interface {
	VerifyCheckoutEvent(payload []byte, signature string) (domain.CheckoutEvent, error)
}

type WebhookInput struct {
	Signature string `header:"Stripe-Signature" required:"false"`
	RawBody   []byte `contentType:"application/json"`
}

type WebhookOutput struct {
	Body struct {
		Received bool `json:"received"`
	}
}

func received() *WebhookOutput {
	out := &WebhookOutput{}
	out.Body.Received = true
	return out
}

func registerWebhook(api huma.API, svc Services, logger *slog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "stripe-webhook",
		Method:      http.MethodPost,
		Path:        "/api/v1/webhooks/stripe",
		Summary:     "Receive payment provider events",
		Tags:        []string{"Webhooks"},
		Hidden:      true,

		// The body is a Stripe event, not a document matching RawBody's
		// schema. Its signature is what gets verified.
		SkipValidateBody: true,
	}, func(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
		if svc.Webhooks == nil || svc.Finalize == nil {
			return nil, toAPIError(domain.ErrNotConfigured)
		}

		event, err := svc.Webhooks.VerifyCheckoutEvent(input.RawBody, input.Signature)
		if err != nil {
			if errors.Is(err, domain.ErrNotConfigured) {
				return nil, toAPIError(err)
			}
			logger.WarnContext(ctx, "rejected webhook", "error", err)
			return nil, &APIError{Status: http.StatusBadRequest, Err: "Invalid signature", Message: "Webhook signature could not be verified"}
		}

		if event.Expired {
			return handleExpired(ctx, svc, logger, event)
		}

		if !event.Completed {
			logger.DebugContext(ctx, "ignoring webhook event", "event_id", event.ID, "type", event.Type)
			return received(), nil
		}

		log := logger.With("event_id", event.ID, "session_id", event.SessionID)

		fin, err := svc.Finalize.Complete(ctx, event.SessionID)
		switch {
		case err == nil:
			log.InfoContext(ctx, "checkout finalized", "slug", fin.Result.Slug, "replayed", fin.Replayed)
			return received(), nil

		case errors.Is(err, domain.ErrReservationNotFound):
			log.WarnContext(ctx, "paid session has no reservation")
			return received(), nil

		case isPermanentFinalizeFailure(err):
			// Retrying cannot help: the customer paid for a slug or email
			// someone else now holds. Needs a human.
			log.ErrorContext(ctx, "paid checkout could not be finalized", "alert", true, "error", err)
			return received(), nil

		default:
			log.ErrorContext(ctx, "finalizing checkout failed", "error", err)
			return nil, internalError()
		}
	})
}

func handleExpired(ctx context.Context, svc Services, logger *slog.Logger, event domain.CheckoutEvent) (*WebhookOutput, error) {
	log := logger.With("event_id", event.ID, "session_id", event.SessionID)

	err := svc.Finalize.Abandon(ctx, event.SessionID)
	switch {
	case err == nil:
		return received(), nil

	case errors.Is(err, domain.ErrReservationNotFound):
		log.DebugContext(ctx, "expired session has no reservation")
		return received(), nil

	default:
		log.ErrorContext(ctx, "releasing expired checkout failed", "error", err)
		return nil, internalError()
	}
}

func isPermanentFinalizeFailure(err error) bool {
	var conflict *domain.SlugConflictError
	return errors.As(err, &conflict) || errors.Is(err, domain.ErrIdentityExists)
}
