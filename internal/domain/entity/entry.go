package entity

import (
	"time"

	"workledger/internal/domain/workflow"
)

// WorkEntry is a reimbursable work record moving through the approval
// workflow. Every mutation writes the full post-transition row, including the
// complete appended audit log, in one persistence call.
type WorkEntry struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Date        string     `json:"date"`       // YYYY-MM-DD
	StartTime   string     `json:"start_time"` // HH:MM
	EndTime     string     `json:"end_time"`   // HH:MM
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Location    string     `json:"location,omitempty"`
	Mileage     float64    `json:"mileage,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Materials   []Material `json:"materials"`

	Status       workflow.State `json:"status"`
	ReviewerNote string         `json:"reviewer_note,omitempty"`

	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	SecondApproverID string     `json:"second_approver_id,omitempty"`
	SecondApprovedAt *time.Time `json:"second_approved_at,omitempty"`

	// HourlyRate is the effective rate snapshotted at submit time so later
	// rate changes do not silently reprice an entry under review.
	HourlyRate     float64 `json:"hourly_rate"`
	Hours          float64 `json:"hours"`
	LaborTotal     float64 `json:"labor_total"`
	MaterialsTotal float64 `json:"materials_total"`
	GrandTotal     float64 `json:"grand_total"`

	// AuditLog is append-only: events are never edited or removed, and the
	// list length is monotonically non-decreasing.
	AuditLog []AuditEvent `json:"audit_log"`
	Comments []Comment    `json:"comments"`

	// Version is the optimistic concurrency token. A write whose expected
	// version does not match the stored row is rejected.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Material is one line of the entry's materials list.
type Material struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
}

// AuditEvent is one immutable record of a state change or edit. Once written
// it is never modified or truncated.
type AuditEvent struct {
	Action    string        `json:"action"`
	ActorID   string        `json:"actor_id"`
	ActorName string        `json:"actor_name"`
	Timestamp time.Time     `json:"timestamp"`
	Detail    string        `json:"detail,omitempty"`
	Changes   []FieldChange `json:"changes,omitempty"`
}

// FieldChange is one field-level diff inside an audit event.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Comment is an append-only remark on an entry, visible once the entry's
// status leaves Draft/Trash.
type Comment struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Clone returns a deep copy so feed subscribers and reconciler sessions never
// alias the engine's working record.
func (e *WorkEntry) Clone() *WorkEntry {
	c := *e
	c.Materials = append([]Material(nil), e.Materials...)
	c.AuditLog = cloneAuditLog(e.AuditLog)
	c.Comments = append([]Comment(nil), e.Comments...)
	return &c
}

func cloneAuditLog(log []AuditEvent) []AuditEvent {
	out := make([]AuditEvent, len(log))
	for i, ev := range log {
		out[i] = ev
		out[i].Changes = append([]FieldChange(nil), ev.Changes...)
	}
	return out
}
