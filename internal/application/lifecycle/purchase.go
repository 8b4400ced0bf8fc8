package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"workledger/internal/domain/audit"
	"workledger/internal/domain/entity"
	"workledger/internal/domain/event"
	"workledger/internal/domain/money"
	"workledger/internal/domain/workflow"
	"workledger/internal/errs"
)

// CreatePurchaseDraft creates a purchase entry in Draft.
func (e *engine) CreatePurchaseDraft(ctx context.Context, actor *entity.User, draft *entity.PurchaseEntry) (*entity.PurchaseEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if draft.UserID == "" {
		draft.UserID = actor.ID
	}
	if draft.UserID != actor.ID && !actor.IsApprover() {
		return nil, errs.NewValidation("user_id", "only an approver may create an entry for another member")
	}

	now := time.Now().UTC()
	draft.ID = newID()
	draft.Status = workflow.StateDraft
	draft.Version = 1
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.AuditLog = audit.Append(nil, audit.NewEvent(entity.ActionCreate, actor, "purchase entry created", nil))

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.purchases.Create(txCtx, draft)
	})
	if err != nil {
		return nil, err
	}

	e.feed.Publish(context.WithoutCancel(ctx),
		event.New(event.TypeInsert, entity.TablePurchaseEntries, draft.ID, draft.Clone()))
	return draft, nil
}

// SubmitPurchase moves a purchase entry to Submitted, computing subtotal and
// total (items + tax + mileage reimbursement).
func (e *engine) SubmitPurchase(ctx context.Context, actor *entity.User, id string, form PurchaseForm) (*entity.PurchaseEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, entry.UserID); err != nil {
		return nil, err
	}

	machine := BuildPurchaseMachine(entry.Status)
	if !machine.CanFire(workflow.TriggerSubmit) {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot submit from status %s", entry.Status))
	}
	if err := validatePurchaseForm(form); err != nil {
		return nil, err
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := entry.Clone()
	updated.Date = form.Date
	updated.StoreName = strings.TrimSpace(form.StoreName)
	updated.Category = form.Category
	updated.Items = append([]entity.Item(nil), form.Items...)
	updated.Tax = form.Tax
	updated.Mileage = form.Mileage
	updated.Notes = form.Notes
	updated.Subtotal = money.ItemsTotal(updated.Items)
	updated.Total = money.PurchaseTotal(updated.Subtotal, updated.Tax, updated.Mileage, settings.MileageRate)

	if err := machine.Fire(ctx, workflow.TriggerSubmit); err != nil {
		return nil, errs.NewValidation("status", err.Error())
	}
	previousStatus := updated.Status
	updated.Status = machine.State()
	now := time.Now().UTC()
	updated.SubmittedAt = &now

	evt := audit.NewEvent(workflow.TriggerSubmit.String(), actor,
		fmt.Sprintf("submitted for review (total %.2f)", updated.Total),
		audit.StatusChange(previousStatus, updated.Status))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistPurchase(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// ApprovePurchaseByID approves one purchase entry. Purchases never require a
// second approval.
func (e *engine) ApprovePurchaseByID(ctx context.Context, actor *entity.User, id, note string) (*entity.PurchaseEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	entry, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildPurchaseMachine(entry.Status)
	if err := machine.Fire(ctx, workflow.TriggerApprove); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot approve from status %s", entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()
	updated.ReviewerNote = strings.TrimSpace(note)
	now := time.Now().UTC()
	updated.ReviewedAt = &now

	changes := audit.StatusChange(previousStatus, updated.Status)
	if updated.ReviewerNote != "" {
		changes = append(changes, entity.FieldChange{
			Field: "Reviewer Note", From: entry.ReviewerNote, To: updated.ReviewerNote,
		})
	}
	evt := audit.NewEvent(workflow.TriggerApprove.String(), actor, updated.ReviewerNote, changes)
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistPurchase(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	e.logger.Info("Purchase entry approved", zap.String("entry_id", updated.ID))
	return updated, nil
}

// RejectPurchaseByID rejects one purchase entry with a mandatory note.
func (e *engine) RejectPurchaseByID(ctx context.Context, actor *entity.User, id, note string) (*entity.PurchaseEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	trimmed, err := requireNote(note, "reject")
	if err != nil {
		return nil, err
	}

	entry, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildPurchaseMachine(entry.Status)
	if err := machine.Fire(ctx, workflow.TriggerReject); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot reject from status %s", entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()
	updated.ReviewerNote = trimmed
	now := time.Now().UTC()
	updated.ReviewedAt = &now

	evt := audit.NewEvent(workflow.TriggerReject.String(), actor, trimmed,
		audit.StatusChange(previousStatus, updated.Status, entity.FieldChange{
			Field: "Reviewer Note", From: entry.ReviewerNote, To: trimmed,
		}))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistPurchase(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkPurchasePaid records payment of an approved purchase entry.
func (e *engine) MarkPurchasePaid(ctx context.Context, actor *entity.User, id string, pay PaymentDetails) (*entity.PurchaseEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pay.Method) == "" {
		return nil, errs.NewValidation("method", "payment method is required")
	}

	entry, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildPurchaseMachine(entry.Status)
	if err := machine.Fire(ctx, workflow.TriggerMarkPaid); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot mark paid from status %s", entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()
	now := time.Now().UTC()
	updated.PaidAt = &now

	evt := audit.NewEvent(workflow.TriggerMarkPaid.String(), actor, paymentDetail(pay),
		audit.StatusChange(previousStatus, updated.Status))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistPurchase(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePurchase removes a Draft purchase row entirely.
func (e *engine) DeletePurchase(ctx context.Context, actor *entity.User, id string) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status != workflow.StateDraft {
		return errs.NewValidation("status", fmt.Sprintf("cannot delete a purchase entry in status %s", entry.Status))
	}
	if actor.ID != entry.UserID && !actor.IsApprover() {
		return errs.NewValidation("actor", "only the owner or an approver may delete this entry")
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.purchases.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	e.feed.Publish(context.WithoutCancel(ctx), event.New(event.TypeDelete, entity.TablePurchaseEntries, id, nil))
	return nil
}

// GetPurchase returns one purchase entry.
func (e *engine) GetPurchase(ctx context.Context, id string) (*entity.PurchaseEntry, error) {
	return e.purchases.GetByID(ctx, id)
}

// ListPurchases returns all purchase entries.
func (e *engine) ListPurchases(ctx context.Context) ([]*entity.PurchaseEntry, error) {
	return e.purchases.List(ctx)
}

// persistPurchase mirrors persistWork for purchase entries.
func (e *engine) persistPurchase(ctx context.Context, updated *entity.PurchaseEntry, expectedVersion int64) error {
	updated.UpdatedAt = time.Now().UTC()

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.purchases.Update(txCtx, updated, expectedVersion)
	})
	if err != nil {
		return err
	}
	updated.Version = expectedVersion + 1

	e.feed.Publish(context.WithoutCancel(ctx),
		event.New(event.TypeUpdate, entity.TablePurchaseEntries, updated.ID, updated.Clone()))
	return nil
}

// PurchaseReview is a cursor over one loaded purchase entry. It exists so
// callers reviewing "the current entry" use explicitly named operations
// instead of approve/reject calls whose meaning depends on argument shape.
type PurchaseReview struct {
	engine *engine
	actor  *entity.User
	entry  *entity.PurchaseEntry
}

// ReviewPurchase loads a purchase entry and binds it to a review cursor.
func (e *engine) ReviewPurchase(ctx context.Context, actor *entity.User, id string) (*PurchaseReview, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	entry, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PurchaseReview{engine: e, actor: actor, entry: entry}, nil
}

// Entry returns the purchase entry under review.
func (r *PurchaseReview) Entry() *entity.PurchaseEntry {
	return r.entry
}

// ApproveCurrent approves the entry under review.
func (r *PurchaseReview) ApproveCurrent(ctx context.Context, note string) (*entity.PurchaseEntry, error) {
	return r.engine.ApprovePurchaseByID(ctx, r.actor, r.entry.ID, note)
}

// RejectCurrent rejects the entry under review.
func (r *PurchaseReview) RejectCurrent(ctx context.Context, note string) (*entity.PurchaseEntry, error) {
	return r.engine.RejectPurchaseByID(ctx, r.actor, r.entry.ID, note)
}
