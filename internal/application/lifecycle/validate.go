package lifecycle

import (
	"strings"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/money"
	"workledger/internal/errs"
)

// validateSubmitForm checks the submit requirements: date, start/end time,
// category, a trimmed description of at least ten characters, and a computed
// duration above zero and at most sixteen hours. It returns the computed
// hours so the caller does not parse the times twice.
func validateSubmitForm(form SubmitForm) (float64, error) {
	if form.Date == "" {
		return 0, errs.NewValidation("date", "date is required")
	}
	if form.StartTime == "" {
		return 0, errs.NewValidation("start_time", "start time is required")
	}
	if form.EndTime == "" {
		return 0, errs.NewValidation("end_time", "end time is required")
	}
	if !entity.WorkCategories[form.Category] {
		return 0, errs.NewValidation("category", "unknown category")
	}
	if len(strings.TrimSpace(form.Description)) < entity.MinDescriptionLen {
		return 0, errs.NewValidation("description", "description must be at least 10 characters")
	}

	hours, err := money.Hours(form.StartTime, form.EndTime)
	if err != nil {
		return 0, errs.NewValidation("time", err.Error())
	}
	if hours <= 0 {
		return 0, errs.NewValidation("time", "duration must be greater than zero")
	}
	if hours > entity.MaxShiftHours {
		return 0, errs.NewValidation("time", "duration must not exceed 16 hours")
	}

	return hours, nil
}

// validatePurchaseForm checks the purchase submission requirements.
func validatePurchaseForm(form PurchaseForm) error {
	if form.Date == "" {
		return errs.NewValidation("date", "date is required")
	}
	if strings.TrimSpace(form.StoreName) == "" {
		return errs.NewValidation("store_name", "store name is required")
	}
	if len(form.Items) == 0 {
		return errs.NewValidation("items", "at least one item is required")
	}
	for _, it := range form.Items {
		if strings.TrimSpace(it.Name) == "" {
			return errs.NewValidation("items", "item name is required")
		}
		if it.Quantity <= 0 {
			return errs.NewValidation("items", "item quantity must be positive")
		}
	}
	if form.Tax < 0 {
		return errs.NewValidation("tax", "tax must not be negative")
	}
	return nil
}

// requireNote enforces the non-empty note rule for reject and request-info.
func requireNote(note, action string) (string, error) {
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return "", errs.NewValidation("note", "a note is required to "+action)
	}
	return trimmed, nil
}

// requireApprover enforces the approver role on review actions.
func requireApprover(actor *entity.User) error {
	if !actor.IsApprover() {
		return errs.NewValidation("actor", "only an approver may perform this action")
	}
	return nil
}

// requireOwner enforces that only the owning member mutates an editable
// entry.
func requireOwner(actor *entity.User, ownerID string) error {
	if actor.ID != ownerID {
		return errs.NewValidation("actor", "only the entry owner may perform this action")
	}
	return nil
}
