package domain

import "time"

// ReservationTTL is how long a pending reservation blocks its slug.
const ReservationTTL = 24 * time.Hour

// ReservationStatus represents the lifecycle state of a pending reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationCompleted ReservationStatus = "completed"
	ReservationExpired   ReservationStatus = "expired"
)

// ReservationEvent triggers a reservation state change.
type ReservationEvent string

const (
	EventPaymentCompleted ReservationEvent = "payment_completed"
	EventExpire           ReservationEvent = "expire"
)

// ReservationTransitions defines the reservation lifecycle.
var ReservationTransitions = []Transition[ReservationStatus, ReservationEvent]{
	{Event: EventPaymentCompleted, Src: ReservationPending, Dst: ReservationCompleted},
	{Event: EventExpire, Src: ReservationPending, Dst: ReservationExpired},
	// A payment that lands after the hold lapsed is still honored when the
	// slug is free again.
	{Event: EventPaymentCompleted, Src: ReservationExpired, Dst: ReservationCompleted},
}

// Reservation holds a slug while a paid signup waits for payment. It never
// carries the owner's password.
type Reservation struct {
	ID           string
	Slug         string
	Email        string
	SessionID    string
	Partner1Name string
	Partner2Name string
	WeddingDate  *time.Time
	ThemeID      string
	Locale       string
	Status       ReservationStatus
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// NewReservation creates a pending reservation that expires after ttl.
func NewReservation(id, sessionID string, in SignupInput, locale string, now time.Time, ttl time.Duration) Reservation {
	now = now.UTC()
	return Reservation{
		ID:           id,
		Slug:         in.Slug,
		Email:        in.Email,
		SessionID:    sessionID,
		Partner1Name: in.Partner1Name,
		Partner2Name: in.Partner2Name,
		WeddingDate:  in.WeddingDate,
		ThemeID:      in.ThemeID,
		Locale:       locale,
		Status:       ReservationPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Expired reports whether the reservation no longer blocks its slug at now.
func (r Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationExpired || (r.Status == ReservationPending && !now.Before(r.ExpiresAt))
}

// ClaimHolder names what currently owns a slug.
type ClaimHolder string

const (
	HolderNone        ClaimHolder = ""
	HolderWedding     ClaimHolder = "tenant"
	HolderReservation ClaimHolder = "reservation"
)

// SlugClaim is a point-in-time view of who holds a slug. It is advisory:
// only a constrained write decides ownership.
type SlugClaim struct {
	Slug          string
	Holder        ClaimHolder
	ReservationID string
	ExpiresAt     *time.Time
}

// Conflict converts a claim into the error a new claimant would receive, or
// nil when the slug is free.
func (c SlugClaim) Conflict() error {
	switch c.Holder {
	case HolderWedding:
		return &SlugConflictError{Slug: c.Slug, Reason: ConflictTaken}
	case HolderReservation:
		return &SlugConflictError{Slug: c.Slug, Reason: ConflictReserved}
	default:
		return nil
	}
}
