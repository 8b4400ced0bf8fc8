package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a guarded transition may fire for this context.
type GuardFunc func(ctx context.Context) bool

// Machine tracks the current state of one entry and validates transitions.
// Machines built from the same Builder are independent of each other.
type Machine interface {
	// State returns the current state.
	State() State

	// CanFire returns true if the trigger is permitted in the current state.
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the target state of the first
	// transition whose guard passes. The state is unchanged on error.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the triggers that may fire in the current state.
	PermittedTriggers() []Trigger
}

// Builder assembles the transition table for a machine.
type Builder interface {
	// Configure returns the configuration for the given state, creating it on
	// first use.
	Configure(state State) StateConfig

	// Build creates an independent machine starting in initialState.
	Build(initialState State) Machine
}

// StateConfig configures the outgoing transitions of one state.
type StateConfig interface {
	// Permit allows trigger to move to target unconditionally.
	Permit(trigger Trigger, target State) StateConfig

	// PermitIf allows trigger to move to target when guard passes. Guarded
	// transitions for the same trigger are tried in registration order.
	PermitIf(trigger Trigger, target State, guard GuardFunc) StateConfig
}

type transition struct {
	target State
	guard  GuardFunc
}

type stateConfig struct {
	transitions map[Trigger][]transition
}

type builder struct {
	configs map[State]*stateConfig
}

type machine struct {
	current State
	configs map[State]*stateConfig
}

// NewBuilder creates an empty state machine builder.
func NewBuilder() Builder {
	return &builder{configs: make(map[State]*stateConfig)}
}

func (b *builder) Configure(state State) StateConfig {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	cfg, ok := b.configs[state]
	if !ok {
		cfg = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configs[state] = cfg
	}
	return cfg
}

func (b *builder) Build(initialState State) Machine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	// Copy the transition table so machines stay independent of the builder
	// and of each other.
	configs := make(map[State]*stateConfig, len(b.configs))
	for state, cfg := range b.configs {
		copied := &stateConfig{transitions: make(map[Trigger][]transition, len(cfg.transitions))}
		for trigger, ts := range cfg.transitions {
			copied.transitions[trigger] = append([]transition(nil), ts...)
		}
		configs[state] = copied
	}

	return &machine{current: initialState, configs: configs}
}

func (c *stateConfig) Permit(trigger Trigger, target State) StateConfig {
	return c.PermitIf(trigger, target, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, target State, guard GuardFunc) StateConfig {
	if !target.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", target))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{target: target, guard: guard})
	return c
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	cfg, ok := m.configs[m.current]
	if !ok {
		return false
	}
	return len(cfg.transitions[trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	cfg, ok := m.configs[m.current]
	if !ok {
		return fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	ts := cfg.transitions[trigger]
	if len(ts) == 0 {
		return fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.target
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	cfg, ok := m.configs[m.current]
	if !ok {
		return []Trigger{}
	}
	triggers := make([]Trigger, 0, len(cfg.transitions))
	for trigger := range cfg.transitions {
		triggers = append(triggers, trigger)
	}
	return triggers
}
