package domain

// Transition defines a valid state change: an event moves an entity from Src to Dst.
type Transition[S, E ~string] struct {
	Event E
	Src   S
	Dst   S
}

// ProvisionState tracks how far a two-step (identity, wedding) creation got.
type ProvisionState string

const (
	StateNotStarted      ProvisionState = "not_started"
	StateIdentityCreated ProvisionState = "identity_created"
	StateTenantCreated   ProvisionState = "tenant_created"
	// StateOrphaned means the wedding step failed and the identity could
	// not be removed. An operator has to clean it up.
	StateOrphaned ProvisionState = "orphaned"
)

// ProvisionEvent moves a provisioning run between states.
type ProvisionEvent string

const (
	EventIdentityCreated ProvisionEvent = "identity_created"
	EventTenantCreated   ProvisionEvent = "tenant_created"
	EventRollback        ProvisionEvent = "rollback"
	EventRollbackFailed  ProvisionEvent = "rollback_failed"
)

// ProvisionTransitions is the provisioning state machine. The only way back
// from identity_created without a wedding is the rollback event.
var ProvisionTransitions = []Transition[ProvisionState, ProvisionEvent]{
	{Event: EventIdentityCreated, Src: StateNotStarted, Dst: StateIdentityCreated},
	{Event: EventTenantCreated, Src: StateIdentityCreated, Dst: StateTenantCreated},
	{Event: EventRollback, Src: StateIdentityCreated, Dst: StateNotStarted},
	{Event: EventRollbackFailed, Src: StateIdentityCreated, Dst: StateOrphaned},
}
