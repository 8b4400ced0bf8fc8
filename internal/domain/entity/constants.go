package entity

// Work entry categories (closed set).
const (
	CategoryMaintenance = "MAINTENANCE"
	CategoryEvent       = "EVENT"
	CategoryAdmin       = "ADMIN"
	CategoryTraining    = "TRAINING"
	CategoryTransport   = "TRANSPORT"
	CategoryOther       = "OTHER"
)

// WorkCategories lists the valid work entry categories.
var WorkCategories = map[string]bool{
	CategoryMaintenance: true,
	CategoryEvent:       true,
	CategoryAdmin:       true,
	CategoryTraining:    true,
	CategoryTransport:   true,
	CategoryOther:       true,
}

// Audit action labels. Transition events carry the trigger name; these cover
// the non-transition events.
const (
	ActionCreate  = "CREATE"
	ActionEdit    = "EDIT"
	ActionComment = "COMMENT"
)

// Payment methods recorded in the audit detail when an entry is marked paid.
const (
	PaymentMethodCheck    = "check"
	PaymentMethodTransfer = "transfer"
	PaymentMethodCash     = "cash"
)

// Tables named in change-feed events.
const (
	TableWorkEntries     = "work_entries"
	TablePurchaseEntries = "purchase_entries"
)

// MinDescriptionLen is the minimum trimmed description length required to
// submit an entry.
const MinDescriptionLen = 10

// MaxShiftHours is the longest single shift accepted by submit validation.
const MaxShiftHours = 16.0
