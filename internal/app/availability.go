package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Availability reasons reported for a slug that cannot be used.
const (
	ReasonInvalid  = "invalid"
	ReasonBlocked  = "blocked"
	ReasonTaken    = string(domain.ConflictTaken)
	ReasonReserved = string(domain.ConflictReserved)
)

// maxSuggestions caps how many free alternatives are returned.
const maxSuggestions = 3

// Availability is an advisory answer about a slug. It may be stale by the
// time a signup is submitted.
type Availability struct {
	Slug        string
	Available   bool
	Reason      string
	Suggestions []string
}

// SlugService answers slug availability questions for the signup form.
type SlugService struct {
	reservations domain.ReservationStore
	settings     settings
}

// NewSlugService creates a service reading from reservations.
func NewSlugService(reservations domain.ReservationStore, opts ...Option) *SlugService {
	return &SlugService{reservations: reservations, settings: buildSettings(opts)}
}

// Check reports whether slug can currently be claimed and, when it cannot,
// proposes free alternatives.
func (s *SlugService) Check(ctx context.Context, slug string) (Availability, error) {
	slug = domain.NormalizeSlug(slug)
	a := Availability{Slug: slug}

	switch {
	case !domain.ValidateSlugFormat(slug):
		a.Reason = ReasonInvalid
	case domain.IsReservedSlug(slug):
		a.Reason = ReasonBlocked
	default:
		claim, err := s.reservations.LookupSlug(ctx, slug)
		if err != nil {
			return Availability{}, fmt.Errorf("looking up slug: %w", err)
		}
		switch claim.Holder {
		case domain.HolderWedding:
			a.Reason = ReasonTaken
		case domain.HolderReservation:
			a.Reason = ReasonReserved
		default:
			a.Available = true
			return a, nil
		}
	}

	suggestions, err := s.freeAlternatives(ctx, slug)
	if err != nil {
		return Availability{}, err
	}
	a.Suggestions = suggestions
	return a, nil
}

// Suggest derives a slug from the partners' names and checks it.
func (s *SlugService) Suggest(ctx context.Context, partner1, partner2 string) (Availability, error) {
	return s.Check(ctx, domain.SlugFromNames(partner1, partner2))
}

func (s *SlugService) freeAlternatives(ctx context.Context, slug string) ([]string, error) {
	out := make([]string, 0, maxSuggestions)
	for _, candidate := range domain.SuggestSlugAlternatives(slug, s.settings.now().Year()) {
		claim, err := s.reservations.LookupSlug(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("looking up suggestion: %w", err)
		}
		if claim.Holder != domain.HolderNone {
			continue
		}
		out = append(out, candidate)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}
