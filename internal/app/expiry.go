package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// ExpiryService sweeps pending reservations past their TTL. Uniqueness never
// depends on it running: stale holds are also released by the next write
// for the same slug.
type ExpiryService struct {
	reservations domain.ReservationStore
	settings     settings
}

// NewExpiryService creates a sweeper over reservations.
func NewExpiryService(reservations domain.ReservationStore, opts ...Option) *ExpiryService {
	return &ExpiryService{reservations: reservations, settings: buildSettings(opts)}
}

// Sweep expires stale reservations and returns how many it touched.
func (s *ExpiryService) Sweep(ctx context.Context) (int, error) {
	n, err := s.reservations.ExpireStale(ctx, s.settings.now())
	if err != nil {
		return 0, fmt.Errorf("expiring stale reservations: %w", err)
	}
	if n > 0 {
		s.settings.logger.InfoContext(ctx, "expired stale reservations", "count", n)
	}
	return n, nil
}
