package workflow

import (
	"context"
	"errors"
	"testing"
)

func newTestBuilder() Builder {
	b := NewBuilder()
	b.Configure(StateDraft).
		Permit(TriggerSubmit, StateSubmitted).
		Permit(TriggerTrash, StateTrash)
	b.Configure(StateSubmitted).
		Permit(TriggerReject, StateRejected)
	return b
}

func TestMachineFire(t *testing.T) {
	ctx := context.Background()

	m := newTestBuilder().Build(StateDraft)
	if err := m.Fire(ctx, TriggerSubmit); err != nil {
		t.Fatalf("Fire(SUBMIT) error = %v", err)
	}
	if m.State() != StateSubmitted {
		t.Errorf("State() = %s, want %s", m.State(), StateSubmitted)
	}

	if err := m.Fire(ctx, TriggerReject); err != nil {
		t.Fatalf("Fire(REJECT) error = %v", err)
	}
	if m.State() != StateRejected {
		t.Errorf("State() = %s, want %s", m.State(), StateRejected)
	}
}

func TestMachineFireInvalidTransition(t *testing.T) {
	m := newTestBuilder().Build(StateDraft)

	err := m.Fire(context.Background(), TriggerMarkPaid)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire(MARK_PAID) error = %v, want ErrInvalidTransition", err)
	}
	if m.State() != StateDraft {
		t.Errorf("State() = %s after failed fire, want %s", m.State(), StateDraft)
	}
}

func TestMachineCanFire(t *testing.T) {
	m := newTestBuilder().Build(StateDraft)

	if !m.CanFire(TriggerSubmit) {
		t.Error("CanFire(SUBMIT) = false, want true")
	}
	if m.CanFire(TriggerReject) {
		t.Error("CanFire(REJECT) = true in Draft, want false")
	}
}

func TestMachinePermitIfGuard(t *testing.T) {
	type guardKey struct{}

	b := NewBuilder()
	b.Configure(StateSubmitted).
		PermitIf(TriggerApprove, StateAwaitingSecondApproval, func(ctx context.Context) bool {
			v, _ := ctx.Value(guardKey{}).(bool)
			return v
		}).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool {
			v, _ := ctx.Value(guardKey{}).(bool)
			return !v
		})

	tests := []struct {
		name      string
		guardBool bool
		want      State
	}{
		{name: "first guard passes", guardBool: true, want: StateAwaitingSecondApproval},
		{name: "second guard passes", guardBool: false, want: StateApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := b.Build(StateSubmitted)
			ctx := context.WithValue(context.Background(), guardKey{}, tt.guardBool)
			if err := m.Fire(ctx, TriggerApprove); err != nil {
				t.Fatalf("Fire(APPROVE) error = %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %s, want %s", m.State(), tt.want)
			}
		})
	}
}

func TestMachineAllGuardsFail(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateSubmitted).
		PermitIf(TriggerApprove, StateApproved, func(context.Context) bool { return false })

	m := b.Build(StateSubmitted)
	err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire(APPROVE) error = %v, want ErrGuardFailed", err)
	}
	if m.State() != StateSubmitted {
		t.Errorf("State() = %s after guard failure, want %s", m.State(), StateSubmitted)
	}
}

func TestMachinesAreIndependent(t *testing.T) {
	b := newTestBuilder()
	first := b.Build(StateDraft)
	second := b.Build(StateDraft)

	if err := first.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire(SUBMIT) error = %v", err)
	}

	if second.State() != StateDraft {
		t.Errorf("second machine State() = %s, want %s", second.State(), StateDraft)
	}
}

func TestConfigureInvalidStatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Configure with invalid state did not panic")
		}
	}()
	NewBuilder().Configure(State("Bogus"))
}

func TestPermittedTriggers(t *testing.T) {
	m := newTestBuilder().Build(StateDraft)

	triggers := m.PermittedTriggers()
	if len(triggers) != 2 {
		t.Fatalf("PermittedTriggers() returned %d triggers, want 2", len(triggers))
	}
	seen := map[Trigger]bool{}
	for _, tr := range triggers {
		seen[tr] = true
	}
	if !seen[TriggerSubmit] || !seen[TriggerTrash] {
		t.Errorf("PermittedTriggers() = %v, want SUBMIT and TRASH", triggers)
	}
}
