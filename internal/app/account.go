package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// AccountService lets paid owners set the password their checkout did not
// persist.
type AccountService struct {
	identities domain.IdentityProvider
	settings   settings
}

// NewAccountService creates a service backed by identities.
func NewAccountService(identities domain.IdentityProvider, opts ...Option) *AccountService {
	return &AccountService{identities: identities, settings: buildSettings(opts)}
}

// SetPassword redeems a credential invite. The password follows the signup
// rules. An unknown, used or expired token is a *domain.FieldError on
// "token" so the page can offer a new link.
func (s *AccountService) SetPassword(ctx context.Context, token, password string) error {
	if s.identities == nil {
		return domain.ErrNotConfigured
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return invalidInviteError()
	}
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}

	stepCtx, cancel := context.WithTimeout(ctx, s.settings.stepTimeout)
	defer cancel()

	identityID, err := s.identities.RedeemCredentialInvite(stepCtx, token, password)
	if errors.Is(err, domain.ErrInviteInvalid) {
		return invalidInviteError()
	}
	if err != nil {
		return fmt.Errorf("setting password: %w", err)
	}

	s.settings.logger.InfoContext(ctx, "owner password set", "identity_id", identityID)
	return nil
}

func invalidInviteError() error {
	return &domain.FieldError{Field: "token", Message: "This link is invalid or has expired"}
}
