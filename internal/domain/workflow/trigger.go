package workflow

// Trigger is an action that can cause a state transition.
type Trigger string

const (
	TriggerSubmit        Trigger = "SUBMIT"
	TriggerApprove       Trigger = "APPROVE"
	TriggerSecondApprove Trigger = "SECOND_APPROVE"
	TriggerReject        Trigger = "REJECT"
	TriggerRequestInfo   Trigger = "REQUEST_INFO"
	TriggerMarkPaid      Trigger = "MARK_PAID"
	TriggerTrash         Trigger = "TRASH"
	TriggerRestore       Trigger = "RESTORE"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
