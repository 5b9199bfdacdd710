package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/wedlock/internal/domain"
)

const instrumentationName = "github.com/neomorfeo/wedlock/internal/adapter/otel"

// endSpan records err on span. Slug conflicts are an expected answer, not
// a failure, so they only tag the span.
func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	var conflict *domain.SlugConflictError
	if errors.As(err, &conflict) {
		span.SetAttributes(attribute.String("slug.conflict", string(conflict.Reason)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TracingReservations wraps a domain.ReservationStore with tracing and
// counts slug conflicts by reason.
type TracingReservations struct {
	next      domain.ReservationStore
	tracer    trace.Tracer
	conflicts metric.Int64Counter
}

var _ domain.ReservationStore = (*TracingReservations)(nil)

// NewTracingReservations creates a tracing decorator around the given store.
func NewTracingReservations(next domain.ReservationStore) (*TracingReservations, error) {
	conflicts, err := otel.Meter(instrumentationName).Int64Counter("wedlock.slug.conflicts",
		metric.WithDescription("Slug claims rejected because the slug was held"),
	)
	if err != nil {
		return nil, err
	}
	return &TracingReservations{
		next:      next,
		tracer:    otel.Tracer(instrumentationName),
		conflicts: conflicts,
	}, nil
}

func (r *TracingReservations) TryReserve(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationStore.TryReserve",
		trace.WithAttributes(
			attribute.String("reservation.id", res.ID),
			attribute.String("wedding.slug", res.Slug),
		),
	)

	out, err := r.next.TryReserve(ctx, res)
	var conflict *domain.SlugConflictError
	if errors.As(err, &conflict) {
		r.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(conflict.Reason))))
	}
	endSpan(span, err)
	return out, err
}

func (r *TracingReservations) LookupSlug(ctx context.Context, slug string) (domain.SlugClaim, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationStore.LookupSlug",
		trace.WithAttributes(attribute.String("wedding.slug", slug)),
	)

	claim, err := r.next.LookupSlug(ctx, slug)
	if err == nil {
		span.SetAttributes(attribute.String("slug.holder", string(claim.Holder)))
	}
	endSpan(span, err)
	return claim, err
}

func (r *TracingReservations) GetBySessionID(ctx context.Context, sessionID string) (domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationStore.GetBySessionID",
		trace.WithAttributes(attribute.String("checkout.session_id", sessionID)),
	)

	res, err := r.next.GetBySessionID(ctx, sessionID)
	if err == nil {
		span.SetAttributes(attribute.String("reservation.status", string(res.Status)))
	}
	endSpan(span, err)
	return res, err
}

func (r *TracingReservations) Release(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "ReservationStore.Release",
		trace.WithAttributes(attribute.String("reservation.id", id)),
	)

	err := r.next.Release(ctx, id)
	endSpan(span, err)
	return err
}

func (r *TracingReservations) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationStore.ExpireStale")

	n, err := r.next.ExpireStale(ctx, now)
	span.SetAttributes(attribute.Int("result.count", n))
	endSpan(span, err)
	return n, err
}

// TracingTenants wraps a domain.TenantProvisioner with tracing.
type TracingTenants struct {
	next   domain.TenantProvisioner
	tracer trace.Tracer
}

var _ domain.TenantProvisioner = (*TracingTenants)(nil)

func NewTracingTenants(next domain.TenantProvisioner) *TracingTenants {
	return &TracingTenants{next: next, tracer: otel.Tracer(instrumentationName)}
}

func (t *TracingTenants) CreateWedding(ctx context.Context, req domain.ProvisionRequest) (domain.ProvisionResult, error) {
	ctx, span := t.tracer.Start(ctx, "TenantProvisioner.CreateWedding",
		trace.WithAttributes(
			attribute.String("wedding.slug", req.Slug),
			attribute.String("wedding.flow", string(req.Flow)),
			attribute.String("identity.id", req.IdentityID),
		),
	)

	res, err := t.next.CreateWedding(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.String("wedding.id", res.WeddingID))
	}
	endSpan(span, err)
	return res, err
}

func (t *TracingTenants) GetBySlug(ctx context.Context, slug string) (domain.Wedding, error) {
	ctx, span := t.tracer.Start(ctx, "TenantProvisioner.GetBySlug",
		trace.WithAttributes(attribute.String("wedding.slug", slug)),
	)

	w, err := t.next.GetBySlug(ctx, slug)
	endSpan(span, err)
	return w, err
}

// TracingIdentities wraps a domain.IdentityProvider with tracing. The
// credential never reaches span attributes.
type TracingIdentities struct {
	next   domain.IdentityProvider
	tracer trace.Tracer
}

var _ domain.IdentityProvider = (*TracingIdentities)(nil)

func NewTracingIdentities(next domain.IdentityProvider) *TracingIdentities {
	return &TracingIdentities{next: next, tracer: otel.Tracer(instrumentationName)}
}

func (i *TracingIdentities) CreateIdentity(ctx context.Context, email, credential string, metadata map[string]string) (string, error) {
	ctx, span := i.tracer.Start(ctx, "IdentityProvider.CreateIdentity",
		trace.WithAttributes(attribute.Bool("identity.has_credential", credential != "")),
	)

	id, err := i.next.CreateIdentity(ctx, email, credential, metadata)
	if err == nil {
		span.SetAttributes(attribute.String("identity.id", id))
	}
	endSpan(span, err)
	return id, err
}

func (i *TracingIdentities) DeleteIdentity(ctx context.Context, id string) error {
	ctx, span := i.tracer.Start(ctx, "IdentityProvider.DeleteIdentity",
		trace.WithAttributes(attribute.String("identity.id", id)),
	)

	err := i.next.DeleteIdentity(ctx, id)
	endSpan(span, err)
	return err
}

func (i *TracingIdentities) EmailRegistered(ctx context.Context, email string) (bool, error) {
	ctx, span := i.tracer.Start(ctx, "IdentityProvider.EmailRegistered")

	ok, err := i.next.EmailRegistered(ctx, email)
	if err == nil {
		span.SetAttributes(attribute.Bool("identity.registered", ok))
	}
	endSpan(span, err)
	return ok, err
}

func (i *TracingIdentities) IssueCredentialInvite(ctx context.Context, identityID string, expiresAt time.Time) (string, error) {
	ctx, span := i.tracer.Start(ctx, "IdentityProvider.IssueCredentialInvite",
		trace.WithAttributes(attribute.String("identity.id", identityID)),
	)

	token, err := i.next.IssueCredentialInvite(ctx, identityID, expiresAt)
	endSpan(span, err)
	return token, err
}

// RedeemCredentialInvite records neither the token nor the credential.
func (i *TracingIdentities) RedeemCredentialInvite(ctx context.Context, token, credential string) (string, error) {
	ctx, span := i.tracer.Start(ctx, "IdentityProvider.RedeemCredentialInvite")

	id, err := i.next.RedeemCredentialInvite(ctx, token, credential)
	if err == nil {
		span.SetAttributes(attribute.String("identity.id", id))
	}
	endSpan(span, err)
	return id, err
}
