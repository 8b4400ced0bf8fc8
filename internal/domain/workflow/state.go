package workflow

// State is one workflow state in the entry lifecycle. The string values are
// the exact vocabulary exposed to callers and persisted in the store.
type State string

const (
	StateDraft                  State = "Draft"
	StateSubmitted              State = "Submitted"
	StateNeedsInfo              State = "NeedsInfo"
	StateAwaitingSecondApproval State = "AwaitingSecondApproval"
	StateApproved               State = "Approved"
	StateRejected               State = "Rejected"
	StatePaid                   State = "Paid"
	StateTrash                  State = "Trash"
)

var validStates = map[State]bool{
	StateDraft:                  true,
	StateSubmitted:              true,
	StateNeedsInfo:              true,
	StateAwaitingSecondApproval: true,
	StateApproved:               true,
	StateRejected:               true,
	StatePaid:                   true,
	StateTrash:                  true,
}

// validPurchaseStates is the restricted vocabulary for purchase entries.
var validPurchaseStates = map[State]bool{
	StateDraft:     true,
	StateSubmitted: true,
	StateApproved:  true,
	StateRejected:  true,
	StatePaid:      true,
}

// IsValid returns true if the state belongs to the work-entry vocabulary.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsValidForPurchase returns true if the state belongs to the purchase-entry
// vocabulary.
func (s State) IsValidForPurchase() bool {
	return validPurchaseStates[s]
}

// IsTerminal returns true for hard terminal states. Trash is deliberately not
// terminal: it is reversible via restore.
func (s State) IsTerminal() bool {
	return s == StatePaid
}

// IsTrashable returns true if an entry in this state may be moved to Trash.
func (s State) IsTrashable() bool {
	return s != StatePaid && s != StateTrash
}

// Editable returns true while the owning member may still edit the entry.
func (s State) Editable() bool {
	return s == StateDraft || s == StateRejected || s == StateNeedsInfo
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
