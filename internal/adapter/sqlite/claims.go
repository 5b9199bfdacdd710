package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// releaseLapsedClaim drops the claim on slug when it belongs to a reservation
// past its expiry, or to ownReservation (finalization taking over its own
// hold). Claims held by weddings are never touched. Must run in the same
// transaction as the claim INSERT that follows it.
func releaseLapsedClaim(ctx context.Context, tx *sql.Tx, slug string, now time.Time, ownReservation string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'expired'
		 WHERE status = 'pending' AND expires_at <= ?
		   AND id IN (SELECT reservation_id FROM slug_claims WHERE slug = ? AND holder = 'reservation')`,
		formatTime(now), slug,
	)
	if err != nil {
		return fmt.Errorf("expiring lapsed reservation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM slug_claims
		 WHERE slug = ? AND holder = 'reservation'
		   AND (expires_at <= ? OR reservation_id = ?)`,
		slug, formatTime(now), ownReservation,
	)
	if err != nil {
		return fmt.Errorf("releasing lapsed claim: %w", err)
	}
	return nil
}

// conflictFor reads who holds slug after a failed claim INSERT and returns
// the matching *domain.SlugConflictError.
func conflictFor(ctx context.Context, tx *sql.Tx, slug string) error {
	var holder string
	err := tx.QueryRowContext(ctx,
		`SELECT holder FROM slug_claims WHERE slug = ?`, slug,
	).Scan(&holder)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading slug claim: %w", err)
	}

	reason := domain.ConflictTaken
	if domain.ClaimHolder(holder) == domain.HolderReservation {
		reason = domain.ConflictReserved
	}
	return &domain.SlugConflictError{Slug: slug, Reason: reason}
}

// lookupClaim returns the current claim on slug, reporting lapsed
// reservation claims as free.
func lookupClaim(ctx context.Context, db *sql.DB, slug string, now time.Time) (domain.SlugClaim, error) {
	claim := domain.SlugClaim{Slug: slug}

	var holder string
	var reservationID, expiresAt sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT holder, reservation_id, expires_at FROM slug_claims WHERE slug = ?`, slug,
	).Scan(&holder, &reservationID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return claim, nil
	}
	if err != nil {
		return domain.SlugClaim{}, fmt.Errorf("looking up slug: %w", err)
	}

	claim.Holder = domain.ClaimHolder(holder)
	claim.ReservationID = reservationID.String
	claim.ExpiresAt = parseNullTime(expiresAt)

	if claim.Holder == domain.HolderReservation && claim.ExpiresAt != nil && !now.Before(*claim.ExpiresAt) {
		return domain.SlugClaim{Slug: slug}, nil
	}
	return claim, nil
}
