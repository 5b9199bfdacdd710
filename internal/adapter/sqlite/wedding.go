package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Compile-time check: WeddingStore implements domain.TenantProvisioner.
var _ domain.TenantProvisioner = (*WeddingStore)(nil)

// WeddingStore creates and reads finalized weddings.
type WeddingStore struct {
	db   *sql.DB
	opts options
}

// NewWeddingStore wraps an open, migrated database.
func NewWeddingStore(db *sql.DB, opts ...Option) *WeddingStore {
	return &WeddingStore{db: db, opts: buildOptions(opts)}
}

// CreateWedding claims the slug, inserts the owner profile and the wedding,
// and completes the finalizing reservation, all in one transaction. A slug
// held by a finalized wedding or by another live reservation yields a
// *domain.SlugConflictError and nothing is written.
func (s *WeddingStore) CreateWedding(ctx context.Context, req domain.ProvisionRequest) (domain.ProvisionResult, error) {
	now := s.opts.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProvisionResult{}, fmt.Errorf("beginning provisioning: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := releaseLapsedClaim(ctx, tx, req.Slug, now, req.ReservationID); err != nil {
		return domain.ProvisionResult{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO slug_claims (slug, holder, claimed_at) VALUES (?, 'tenant', ?)`,
		req.Slug, formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ProvisionResult{}, conflictFor(ctx, tx, req.Slug)
		}
		return domain.ProvisionResult{}, fmt.Errorf("claiming slug: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, email, partner1_name, partner2_name, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		req.IdentityID, req.Email, req.Partner1Name, req.Partner2Name, formatTime(now),
	)
	if err != nil {
		return domain.ProvisionResult{}, fmt.Errorf("inserting profile: %w", err)
	}

	config, err := json.Marshal(domain.WeddingConfig{
		ThemeID:      req.ThemeID,
		Partner1Name: req.Partner1Name,
		Partner2Name: req.Partner2Name,
		WeddingDate:  req.WeddingDate,
		Locale:       req.Locale,
	})
	if err != nil {
		return domain.ProvisionResult{}, fmt.Errorf("encoding wedding config: %w", err)
	}

	accessCode, err := newAccessCode()
	if err != nil {
		return domain.ProvisionResult{}, fmt.Errorf("generating access code: %w", err)
	}

	result := domain.ProvisionResult{
		IdentityID: req.IdentityID,
		WeddingID:  uuid.NewString(),
		Email:      req.Email,
		Slug:       req.Slug,
		AccessCode: accessCode,
	}
	if req.Flow == domain.FlowTrial {
		ends := now.Add(domain.TrialPeriod)
		result.TrialEndsAt = &ends
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO weddings (id, owner_id, slug, display_name, flow, access_code, config, trial_ends_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.WeddingID, req.IdentityID, req.Slug, domain.DisplayName(req.Partner1Name, req.Partner2Name),
		string(req.Flow), accessCode, string(config), formatNullTime(result.TrialEndsAt), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) && errorMentions(err, "weddings.slug") {
			return domain.ProvisionResult{}, &domain.SlugConflictError{Slug: req.Slug, Reason: domain.ConflictTaken}
		}
		return domain.ProvisionResult{}, fmt.Errorf("inserting wedding: %w", err)
	}

	if req.ReservationID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = 'completed' WHERE id = ? AND status IN ('pending', 'expired')`,
			req.ReservationID,
		); err != nil {
			return domain.ProvisionResult{}, fmt.Errorf("completing reservation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.ProvisionResult{}, fmt.Errorf("committing provisioning: %w", err)
	}

	return result, nil
}

func (s *WeddingStore) GetBySlug(ctx context.Context, slug string) (domain.Wedding, error) {
	var w domain.Wedding
	var flow, config, createdAt string
	var trialEndsAt sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, slug, display_name, flow, access_code, config, trial_ends_at, created_at
		 FROM weddings WHERE slug = ?`, slug,
	).Scan(&w.ID, &w.OwnerID, &w.Slug, &w.DisplayName, &flow, &w.AccessCode, &config, &trialEndsAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wedding{}, domain.ErrWeddingNotFound
		}
		return domain.Wedding{}, fmt.Errorf("scanning wedding: %w", err)
	}

	if err := json.Unmarshal([]byte(config), &w.Config); err != nil {
		return domain.Wedding{}, fmt.Errorf("decoding wedding config: %w", err)
	}
	w.Flow = domain.Flow(flow)
	w.TrialEndsAt = parseNullTime(trialEndsAt)
	w.CreatedAt = parseTime(createdAt)
	return w, nil
}

// accessCodeAlphabet omits characters that are easy to confuse when read
// aloud or handwritten (0/O, 1/I/L).
const accessCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newAccessCode generates the 8-character code guests use to open the site.
func newAccessCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = accessCodeAlphabet[int(v)%len(accessCodeAlphabet)]
	}
	return string(b), nil
}

func errorMentions(err error, s string) bool {
	return err != nil && strings.Contains(err.Error(), s)
}
