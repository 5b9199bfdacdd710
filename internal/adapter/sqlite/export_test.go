package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for any mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticate checks credential against the stored hash and returns the
// identity id. Login belongs to the site itself; tests use this to inspect
// what was stored.
func (s *IdentityStore) Authenticate(ctx context.Context, email, credential string) (string, error) {
	var id string
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM identities WHERE email = ?`, email,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !hash.Valid) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("reading identity: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(credential)) != nil {
		return "", ErrInvalidCredentials
	}
	return id, nil
}
