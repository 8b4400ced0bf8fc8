package entity

// Role classifies what a user may do in the workflow.
type Role string

const (
	// RoleApprover reviews submitted entries and marks them paid.
	RoleApprover Role = "approver"
	// RoleMember creates and submits their own entries.
	RoleMember Role = "member"
)

// User identifies an actor in the system. Audit events record the acting
// user's id and display name on every operation.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`

	// HourlyRate overrides the organization default when set.
	HourlyRate *float64 `json:"hourly_rate,omitempty"`
}

// IsApprover returns true when the user holds the approver role.
func (u *User) IsApprover() bool {
	return u.Role == RoleApprover
}
