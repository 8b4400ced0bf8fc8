package entity

import "time"

// Settings holds the organization-wide workflow configuration.
type Settings struct {
	// DefaultHourlyRate applies to users without a rate override.
	DefaultHourlyRate float64 `json:"default_hourly_rate"`

	// DualApprovalThreshold is the monetary amount at or above which an
	// approval requires a second approver. Zero disables dual approval.
	DualApprovalThreshold float64 `json:"dual_approval_threshold"`

	// MileageRate is the per-mile reimbursement rate.
	MileageRate float64 `json:"mileage_rate"`

	// AnnualBudget is advisory only; nothing in the workflow enforces it.
	AnnualBudget float64 `json:"annual_budget"`

	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}
