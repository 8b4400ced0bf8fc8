package entity

import (
	"time"

	"workledger/internal/domain/workflow"
)

// PurchaseEntry is a reimbursable purchase record. It shares the work-entry
// workflow with a restricted status vocabulary: Draft, Submitted, Approved,
// Rejected, Paid. Purchases never require dual approval.
type PurchaseEntry struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Date      string  `json:"date"`
	StoreName string  `json:"store_name"`
	Category  string  `json:"category"`
	Items     []Item  `json:"items"`
	Tax       float64 `json:"tax"`
	Mileage   float64 `json:"mileage,omitempty"`
	Notes     string  `json:"notes,omitempty"`

	Subtotal float64 `json:"subtotal"`
	Total    float64 `json:"total"`

	Status       workflow.State `json:"status"`
	ReviewerNote string         `json:"reviewer_note,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`

	AuditLog []AuditEvent `json:"audit_log"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one purchased line item.
type Item struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
}

// Clone returns a deep copy of the purchase entry.
func (p *PurchaseEntry) Clone() *PurchaseEntry {
	c := *p
	c.Items = append([]Item(nil), p.Items...)
	c.AuditLog = cloneAuditLog(p.AuditLog)
	return &c
}
