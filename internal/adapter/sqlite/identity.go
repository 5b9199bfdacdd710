package sqlite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Compile-time check: IdentityStore implements domain.IdentityProvider.
var _ domain.IdentityProvider = (*IdentityStore)(nil)

// IdentityStore is a local identity provider. Credentials are stored only as
// bcrypt hashes.
type IdentityStore struct {
	db   *sql.DB
	opts options
}

// NewIdentityStore wraps an open, migrated database.
func NewIdentityStore(db *sql.DB, opts ...Option) *IdentityStore {
	return &IdentityStore{db: db, opts: buildOptions(opts)}
}

// CreateIdentity registers email with the given credential. An empty
// credential leaves the identity without a password until the owner sets one.
func (s *IdentityStore) CreateIdentity(ctx context.Context, email, credential string, metadata map[string]string) (string, error) {
	var hash sql.NullString
	if credential != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(credential), s.opts.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing credential: %w", err)
		}
		hash = sql.NullString{String: string(b), Valid: true}
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encoding identity metadata: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, hash, string(meta), formatTime(s.opts.now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrIdentityExists
		}
		return "", fmt.Errorf("inserting identity: %w", err)
	}
	return id, nil
}

// DeleteIdentity removes an identity. Deleting a missing identity is not an error.
func (s *IdentityStore) DeleteIdentity(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	return nil
}

// EmailRegistered reports whether an identity exists for email.
func (s *IdentityStore) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities WHERE email = ?`, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up identity: %w", err)
	}
	return n > 0, nil
}

// IssueCredentialInvite stores the hash of a fresh random token for
// identityID and returns the token itself.
func (s *IdentityStore) IssueCredentialInvite(ctx context.Context, identityID string, expiresAt time.Time) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credential_invites (token_hash, identity_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), identityID, formatTime(expiresAt), formatTime(s.opts.now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting invite: %w", err)
	}
	return token, nil
}

// RedeemCredentialInvite consumes token and stores the bcrypt hash of
// credential on the invited identity.
func (s *IdentityStore) RedeemCredentialInvite(ctx context.Context, token, credential string) (string, error) {
	if token == "" {
		return "", domain.ErrInviteInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), s.opts.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing credential: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning redeem: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var identityID, expiresAt string
	var usedAt sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT identity_id, expires_at, used_at FROM credential_invites WHERE token_hash = ?`, hashToken(token),
	).Scan(&identityID, &expiresAt, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrInviteInvalid
	}
	if err != nil {
		return "", fmt.Errorf("reading invite: %w", err)
	}

	now := s.opts.now().UTC()
	if usedAt.Valid || !now.Before(parseTime(expiresAt)) {
		return "", domain.ErrInviteInvalid
	}

	// Consumed first and only if still unused, so two concurrent redeems
	// cannot both set a credential.
	res, err := tx.ExecContext(ctx,
		`UPDATE credential_invites SET used_at = ? WHERE token_hash = ? AND used_at IS NULL`, formatTime(now), hashToken(token),
	)
	if err != nil {
		return "", fmt.Errorf("consuming invite: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return "", domain.ErrInviteInvalid
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE identities SET password_hash = ? WHERE id = ?`, string(hash), identityID,
	); err != nil {
		return "", fmt.Errorf("setting credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing redeem: %w", err)
	}
	return identityID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
