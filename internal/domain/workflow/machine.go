package workflow

import "github.com/garyjia/receipt-approval/internal/domain/entity"

// StateMachine tracks a receipt status and validates actions against it
type StateMachine interface {
	// State returns the current status
	State() entity.Status

	// CanFire returns true if the action is permitted in the current status
	CanFire(action Action) bool

	// Fire applies the action, moving to the configured target status
	Fire(action Action) error

	// PermittedActions returns the actions that can be fired in the current status, approve first
	PermittedActions() []Action
}
