package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// TracingPayments wraps a domain.PaymentGateway with tracing.
type TracingPayments struct {
	next   domain.PaymentGateway
	tracer trace.Tracer
}

var _ domain.PaymentGateway = (*TracingPayments)(nil)

func NewTracingPayments(next domain.PaymentGateway) *TracingPayments {
	return &TracingPayments{next: next, tracer: otel.Tracer(instrumentationName)}
}

func (p *TracingPayments) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (domain.CheckoutSession, error) {
	ctx, span := p.tracer.Start(ctx, "PaymentGateway.CreateCheckoutSession",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("checkout.amount_cents", req.AmountCents),
			attribute.String("checkout.currency", req.Currency),
			attribute.String("wedding.slug", req.Metadata["slug"]),
		),
	)

	session, err := p.next.CreateCheckoutSession(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.String("checkout.session_id", session.ID))
	}
	endSpan(span, err)
	return session, err
}

func (p *TracingPayments) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	ctx, span := p.tracer.Start(ctx, "PaymentGateway.ExpireCheckoutSession",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("checkout.session_id", sessionID)),
	)

	err := p.next.ExpireCheckoutSession(ctx, sessionID)
	endSpan(span, err)
	return err
}

// TracingNotifier wraps a domain.Notifier with tracing.
type TracingNotifier struct {
	next   domain.Notifier
	tracer trace.Tracer
}

var _ domain.Notifier = (*TracingNotifier)(nil)

func NewTracingNotifier(next domain.Notifier) *TracingNotifier {
	return &TracingNotifier{next: next, tracer: otel.Tracer(instrumentationName)}
}

func (n *TracingNotifier) NotifyWelcome(ctx context.Context, w domain.Welcome) error {
	ctx, span := n.tracer.Start(ctx, "Notifier.NotifyWelcome",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("wedding.slug", w.Slug),
			attribute.String("wedding.flow", string(w.Flow)),
			attribute.String("notification.locale", w.Locale),
		),
	)

	err := n.next.NotifyWelcome(ctx, w)
	endSpan(span, err)
	return err
}
