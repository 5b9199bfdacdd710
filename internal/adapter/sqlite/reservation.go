package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Compile-time check: ReservationStore implements domain.ReservationStore.
var _ domain.ReservationStore = (*ReservationStore)(nil)

// ReservationStore implements domain.ReservationStore on top of the
// slug_claims and reservations tables.
type ReservationStore struct {
	db   *sql.DB
	opts options
}

// NewReservationStore wraps an open, migrated database.
func NewReservationStore(db *sql.DB, opts ...Option) *ReservationStore {
	return &ReservationStore{db: db, opts: buildOptions(opts)}
}

// TryReserve claims r.Slug for r and stores the reservation. The claim
// INSERT is the authority: when it violates the slug primary key the
// reservation is not written and a *domain.SlugConflictError is returned.
// A claim left by a reservation past its expiry is released first, inside
// the same transaction, so stale holds never block new signups.
func (s *ReservationStore) TryReserve(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	now := s.opts.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("beginning reservation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := releaseLapsedClaim(ctx, tx, r.Slug, now, ""); err != nil {
		return domain.Reservation{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO slug_claims (slug, holder, reservation_id, expires_at, claimed_at)
		 VALUES (?, 'reservation', ?, ?, ?)`,
		r.Slug, r.ID, formatTime(r.ExpiresAt), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Reservation{}, conflictFor(ctx, tx, r.Slug)
		}
		return domain.Reservation{}, fmt.Errorf("claiming slug: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reservations
		   (id, slug, email, session_id, partner1_name, partner2_name, wedding_date, theme_id, locale, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Slug, r.Email, r.SessionID, r.Partner1Name, r.Partner2Name,
		formatNullTime(r.WeddingDate), r.ThemeID, r.Locale, string(domain.ReservationPending),
		formatTime(r.CreatedAt), formatTime(r.ExpiresAt),
	)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("inserting reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Reservation{}, fmt.Errorf("committing reservation: %w", err)
	}

	r.Status = domain.ReservationPending
	return r, nil
}

// LookupSlug reports who currently holds slug. The answer is advisory and
// may be stale by the time the caller acts on it.
func (s *ReservationStore) LookupSlug(ctx context.Context, slug string) (domain.SlugClaim, error) {
	return lookupClaim(ctx, s.db, slug, s.opts.now().UTC())
}

func (s *ReservationStore) GetBySessionID(ctx context.Context, sessionID string) (domain.Reservation, error) {
	var r domain.Reservation
	var status, createdAt, expiresAt string
	var weddingDate sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, email, session_id, partner1_name, partner2_name, wedding_date,
		        theme_id, locale, status, created_at, expires_at
		 FROM reservations WHERE session_id = ?`, sessionID,
	).Scan(&r.ID, &r.Slug, &r.Email, &r.SessionID, &r.Partner1Name, &r.Partner2Name, &weddingDate,
		&r.ThemeID, &r.Locale, &status, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("scanning reservation: %w", err)
	}

	r.WeddingDate = parseNullTime(weddingDate)
	r.Status = domain.ReservationStatus(status)
	r.CreatedAt = parseTime(createdAt)
	r.ExpiresAt = parseTime(expiresAt)
	return r, nil
}

// Release expires a pending reservation early and frees its slug.
func (s *ReservationStore) Release(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning release: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrReservationNotFound
	}
	if err != nil {
		return fmt.Errorf("reading reservation: %w", err)
	}
	if domain.ReservationStatus(status) != domain.ReservationPending {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'expired' WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("expiring reservation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slug_claims WHERE holder = 'reservation' AND reservation_id = ?`, id,
	); err != nil {
		return fmt.Errorf("releasing claim: %w", err)
	}

	return tx.Commit()
}

// ExpireStale marks pending reservations past their expiry as expired and
// drops their claims. It returns how many reservations were expired.
func (s *ReservationStore) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := formatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning expiry: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'expired' WHERE status = 'pending' AND expires_at <= ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring reservations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slug_claims WHERE holder = 'reservation' AND expires_at <= ?`, cutoff,
	); err != nil {
		return 0, fmt.Errorf("releasing expired claims: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing expiry: %w", err)
	}
	return int(n), nil
}
