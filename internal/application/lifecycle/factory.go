package lifecycle

import (
	"context"

	"workledger/internal/domain/workflow"
)

type ctxKey string

// dualApprovalKey carries the threshold decision into the guarded Approve
// transitions.
const dualApprovalKey ctxKey = "dual_approval"

// withDualApproval marks the context with whether the entry's recomputed
// total meets the dual approval threshold.
func withDualApproval(ctx context.Context, required bool) context.Context {
	return context.WithValue(ctx, dualApprovalKey, required)
}

func dualApprovalRequired(ctx context.Context) bool {
	required, _ := ctx.Value(dualApprovalKey).(bool)
	return required
}

// BuildWorkEntryMachine creates the state machine governing a work entry.
// The Approve trigger branches on the dual-approval guard: at or above the
// threshold it lands on AwaitingSecondApproval instead of Approved. Trash is
// reachable from every state except Paid and Trash itself, and Restore always
// resets to Draft.
func BuildWorkEntryMachine(initialState workflow.State) workflow.Machine {
	b := workflow.NewBuilder()

	b.Configure(workflow.StateDraft).
		Permit(workflow.TriggerSubmit, workflow.StateSubmitted).
		Permit(workflow.TriggerTrash, workflow.StateTrash)

	b.Configure(workflow.StateSubmitted).
		PermitIf(workflow.TriggerApprove, workflow.StateAwaitingSecondApproval, dualApprovalRequired).
		PermitIf(workflow.TriggerApprove, workflow.StateApproved, func(ctx context.Context) bool {
			return !dualApprovalRequired(ctx)
		}).
		Permit(workflow.TriggerReject, workflow.StateRejected).
		Permit(workflow.TriggerRequestInfo, workflow.StateNeedsInfo).
		Permit(workflow.TriggerTrash, workflow.StateTrash)

	b.Configure(workflow.StateNeedsInfo).
		Permit(workflow.TriggerSubmit, workflow.StateSubmitted).
		Permit(workflow.TriggerReject, workflow.StateRejected).
		Permit(workflow.TriggerTrash, workflow.StateTrash)

	b.Configure(workflow.StateAwaitingSecondApproval).
		Permit(workflow.TriggerSecondApprove, workflow.StateApproved).
		Permit(workflow.TriggerReject, workflow.StateRejected).
		Permit(workflow.TriggerTrash, workflow.StateTrash)

	b.Configure(workflow.StateApproved).
		Permit(workflow.TriggerMarkPaid, workflow.StatePaid).
		Permit(workflow.TriggerTrash, workflow.StateTrash)

	b.Configure(workflow.StateRejected).
		Permit(workflow.TriggerSubmit, workflow.StateSubmitted).
		Permit(workflow.TriggerTrash, workflow.StateTrash)

	b.Configure(workflow.StateTrash).
		Permit(workflow.TriggerRestore, workflow.StateDraft)

	// Paid is a hard terminal state.

	return b.Build(initialState)
}

// BuildPurchaseMachine creates the state machine governing a purchase entry.
// Purchases use the restricted vocabulary and never require dual approval.
func BuildPurchaseMachine(initialState workflow.State) workflow.Machine {
	b := workflow.NewBuilder()

	b.Configure(workflow.StateDraft).
		Permit(workflow.TriggerSubmit, workflow.StateSubmitted)

	b.Configure(workflow.StateSubmitted).
		Permit(workflow.TriggerApprove, workflow.StateApproved).
		Permit(workflow.TriggerReject, workflow.StateRejected)

	b.Configure(workflow.StateRejected).
		Permit(workflow.TriggerSubmit, workflow.StateSubmitted)

	b.Configure(workflow.StateApproved).
		Permit(workflow.TriggerMarkPaid, workflow.StatePaid)

	return b.Build(initialState)
}
