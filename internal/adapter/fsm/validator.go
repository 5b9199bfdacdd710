package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Compile-time checks: both domain machines are served by Validator.
var (
	_ domain.TransitionValidator[domain.ReservationStatus, domain.ReservationEvent] = (*Validator[domain.ReservationStatus, domain.ReservationEvent])(nil)
	_ domain.TransitionValidator[domain.ProvisionState, domain.ProvisionEvent]      = (*Validator[domain.ProvisionState, domain.ProvisionEvent])(nil)
)

// buildEvents converts a domain transition table into looplab/fsm EventDesc
// format. Transitions sharing an event and destination are consolidated
// into one EventDesc with several source states.
func buildEvents[S, E ~string](transitions []domain.Transition[S, E]) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Apply call, initialized with
// the current state, since looplab/fsm tracks state internally.
type Validator[S, E ~string] struct {
	events []loopfsm.EventDesc
}

// New creates a validator for the given transition table.
func New[S, E ~string](transitions []domain.Transition[S, E]) *Validator[S, E] {
	return &Validator[S, E]{events: buildEvents(transitions)}
}

// NewReservationValidator validates reservation lifecycle changes.
func NewReservationValidator() *Validator[domain.ReservationStatus, domain.ReservationEvent] {
	return New(domain.ReservationTransitions)
}

// NewProvisionValidator validates provisioning saga steps.
func NewProvisionValidator() *Validator[domain.ProvisionState, domain.ProvisionEvent] {
	return New(domain.ProvisionTransitions)
}

// Apply checks if the event is valid from the current state and returns the
// destination state, or a *domain.TransitionError.
func (v *Validator[S, E]) Apply(ctx context.Context, current S, event E) (S, error) {
	machine := loopfsm.NewFSM(string(current), v.events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{
				Event:   string(event),
				Current: string(current),
			}
		}
		return "", err
	}

	return S(machine.Current()), nil
}
