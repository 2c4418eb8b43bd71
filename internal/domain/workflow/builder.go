package workflow

import (
	"fmt"

	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns the configuration for the given status
	Configure(status entity.Status) StateConfiguration

	// Build creates a new state machine positioned at the given status
	Build(initial entity.Status) StateMachine
}

// StateConfiguration configures transitions out of one status
type StateConfiguration interface {
	// Permit allows an action to move the machine to the target status
	Permit(action Action, to entity.Status) StateConfiguration
}

type stateConfig struct {
	from        entity.Status
	transitions map[Action]entity.Status
}

type stateMachineBuilder struct {
	configurations map[entity.Status]*stateConfig
}

type stateMachine struct {
	current        entity.Status
	configurations map[entity.Status]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[entity.Status]*stateConfig),
	}
}

// Configure returns the configuration for the given status
func (b *stateMachineBuilder) Configure(status entity.Status) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}
	if status.IsTerminal() {
		panic(fmt.Sprintf("terminal status cannot have transitions: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			from:        status,
			transitions: make(map[Action]entity.Status),
		}
		b.configurations[status] = config
	}
	return config
}

// Build creates a new state machine positioned at the given status.
// Configurations are copied so later Configure calls do not leak into built machines.
func (b *stateMachineBuilder) Build(initial entity.Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	configs := make(map[entity.Status]*stateConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitions := make(map[Action]entity.Status, len(config.transitions))
		for action, to := range config.transitions {
			transitions[action] = to
		}
		configs[status] = &stateConfig{from: status, transitions: transitions}
	}

	return &stateMachine{
		current:        initial,
		configurations: configs,
	}
}

// Permit allows an action to move the machine to the target status
func (c *stateConfig) Permit(action Action, to entity.Status) StateConfiguration {
	if !action.IsValid() {
		panic(fmt.Sprintf("invalid action: %s", action))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	if existing, ok := c.transitions[action]; ok && existing != to {
		panic(fmt.Sprintf("action %s from %s already targets %s", action, c.from, existing))
	}

	c.transitions[action] = to
	return c
}

func (m *stateMachine) State() entity.Status {
	return m.current
}

func (m *stateMachine) CanFire(action Action) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	_, ok := config.transitions[action]
	return ok
}

func (m *stateMachine) Fire(action Action) error {
	if !action.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot %s from %s (no transitions)", ErrInvalidTransition, action, m.current)
	}

	to, ok := config.transitions[action]
	if !ok {
		return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, m.current)
	}

	m.current = to
	return nil
}

func (m *stateMachine) PermittedActions() []Action {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, 2)
	for _, a := range []Action{ActionApprove, ActionReject} {
		if _, ok := config.transitions[a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}
