package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"workledger/internal/application/port"
	"workledger/internal/domain/audit"
	"workledger/internal/domain/entity"
	"workledger/internal/domain/event"
	"workledger/internal/domain/money"
	"workledger/internal/domain/workflow"
	"workledger/internal/errs"
)

// defaultMutationTimeout bounds every mutating operation so a hung store
// surfaces a retryable error instead of blocking forever.
const defaultMutationTimeout = 10 * time.Second

type engine struct {
	entries   port.WorkEntryRepository
	purchases port.PurchaseEntryRepository
	settings  port.SettingsRepository
	tx        port.TransactionManager
	feed      port.FeedPublisher
	logger    *zap.Logger

	mutationTimeout time.Duration
}

// Option configures the lifecycle engine.
type Option func(*engine)

// WithMutationTimeout bounds each mutating operation.
func WithMutationTimeout(d time.Duration) Option {
	return func(e *engine) {
		e.mutationTimeout = d
	}
}

// NewEngine creates the entry lifecycle engine.
func NewEngine(
	entries port.WorkEntryRepository,
	purchases port.PurchaseEntryRepository,
	settings port.SettingsRepository,
	tx port.TransactionManager,
	feed port.FeedPublisher,
	logger *zap.Logger,
	opts ...Option,
) Engine {
	e := &engine{
		entries:         entries,
		purchases:       purchases,
		settings:        settings,
		tx:              tx,
		feed:            feed,
		logger:          logger,
		mutationTimeout: defaultMutationTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// opCtx applies the bounded mutation timeout.
func (e *engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.mutationTimeout)
}

// newID generates a record identifier.
func newID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateDraft creates a work entry in Draft. A member creates their own
// entries; an approver may create one on a member's behalf.
func (e *engine) CreateDraft(ctx context.Context, actor *entity.User, draft *entity.WorkEntry) (*entity.WorkEntry, error) {
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
	draft.AuditLog = audit.Append(nil, audit.NewEvent(entity.ActionCreate, actor, "entry created", nil))

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.entries.Create(txCtx, draft)
	})
	if err != nil {
		return nil, err
	}

	e.publishWork(ctx, event.TypeInsert, draft)
	e.logger.Info("Work entry created",
		zap.String("entry_id", draft.ID),
		zap.String("user_id", draft.UserID),
		zap.String("actor_id", actor.ID))
	return draft, nil
}

// UpdateDraft edits an entry that is still editable by its owner, recording
// a field-level diff without changing the status.
func (e *engine) UpdateDraft(ctx context.Context, actor *entity.User, id string, form SubmitForm) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, entry.UserID); err != nil {
		return nil, err
	}
	if !entry.Status.Editable() {
		return nil, errs.NewValidation("status", fmt.Sprintf("entry in status %s is not editable", entry.Status))
	}

	updated := entry.Clone()
	e.applyForm(updated, form)

	changes := audit.Diff(entry, updated)
	if len(changes) == 0 {
		return entry, nil
	}

	evt := audit.NewEvent(entity.ActionEdit, actor, "entry edited", changes)
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Submit moves an entry from Draft, Rejected or NeedsInfo to Submitted. The
// first submission records an initial-creation snapshot; a resubmission
// records an edit diff against the previously persisted record.
func (e *engine) Submit(ctx context.Context, actor *entity.User, id string, form SubmitForm) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, entry.UserID); err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if !machine.CanFire(workflow.TriggerSubmit) {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot submit from status %s", entry.Status))
	}

	hours, err := validateSubmitForm(form)
	if err != nil {
		return nil, err
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := entry.Clone()
	e.applyForm(updated, form)
	updated.Hours = hours
	updated.HourlyRate = money.EffectiveRate(actor, settings)
	updated.LaborTotal = money.LaborTotal(hours, updated.HourlyRate)
	updated.MaterialsTotal = money.MaterialsTotal(updated.Materials)
	updated.GrandTotal = money.WorkGrandTotal(updated.LaborTotal, updated.MaterialsTotal)

	if err := machine.Fire(ctx, workflow.TriggerSubmit); err != nil {
		return nil, errs.NewValidation("status", err.Error())
	}
	previousStatus := updated.Status
	updated.Status = machine.State()
	now := time.Now().UTC()
	firstSubmission := entry.SubmittedAt == nil
	updated.SubmittedAt = &now

	var changes []entity.FieldChange
	detail := "submitted for review"
	if firstSubmission {
		changes = audit.Diff(nil, updated)
	} else {
		detail = "edited and resubmitted"
		changes = audit.StatusChange(previousStatus, updated.Status)
		changes = append(changes, audit.Diff(entry, updated)...)
	}

	evt := audit.NewEvent(workflow.TriggerSubmit.String(), actor, detail, changes)
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	e.logger.Info("Work entry submitted",
		zap.String("entry_id", updated.ID),
		zap.Float64("grand_total", updated.GrandTotal))
	return updated, nil
}

// Approve reviews a submitted entry. The grand total is recomputed first;
// when dual approval is enabled and the total meets the threshold the entry
// moves to AwaitingSecondApproval and the rationale is recorded in the audit
// detail.
func (e *engine) Approve(ctx context.Context, actor *entity.User, id, note string) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if entry.Status != workflow.StateSubmitted || !machine.CanFire(workflow.TriggerApprove) {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot approve from status %s", entry.Status))
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := entry.Clone()
	updated.LaborTotal = money.LaborTotal(updated.Hours, updated.HourlyRate)
	updated.MaterialsTotal = money.MaterialsTotal(updated.Materials)
	updated.GrandTotal = money.WorkGrandTotal(updated.LaborTotal, updated.MaterialsTotal)

	dual := settings.DualApprovalThreshold > 0 && updated.GrandTotal >= settings.DualApprovalThreshold
	if err := machine.Fire(withDualApproval(ctx, dual), workflow.TriggerApprove); err != nil {
		return nil, errs.NewValidation("status", err.Error())
	}

	previousStatus := updated.Status
	updated.Status = machine.State()
	updated.ReviewerNote = strings.TrimSpace(note)

	detail := updated.ReviewerNote
	changes := audit.StatusChange(previousStatus, updated.Status)
	if dual {
		detail = fmt.Sprintf("total %.2f meets dual approval threshold %.2f; second approval required",
			updated.GrandTotal, settings.DualApprovalThreshold)
	} else {
		now := time.Now().UTC()
		updated.ReviewedAt = &now
	}
	if updated.ReviewerNote != "" {
		changes = append(changes, entity.FieldChange{
			Field: "Reviewer Note", From: entry.ReviewerNote, To: updated.ReviewerNote,
		})
	}

	evt := audit.NewEvent(workflow.TriggerApprove.String(), actor, detail, changes)
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	e.logger.Info("Work entry approved",
		zap.String("entry_id", updated.ID),
		zap.String("status", updated.Status.String()),
		zap.Bool("dual_approval", dual))
	return updated, nil
}

// SecondApprove completes a dual approval. The second approver must differ
// from the approver who performed the first approval.
func (e *engine) SecondApprove(ctx context.Context, actor *entity.User, id string) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if !machine.CanFire(workflow.TriggerSecondApprove) {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot second-approve from status %s", entry.Status))
	}
	if firstApproverID(entry) == actor.ID {
		return nil, errs.NewValidation("actor", "second approval must come from a different approver")
	}

	if err := machine.Fire(ctx, workflow.TriggerSecondApprove); err != nil {
		return nil, errs.NewValidation("status", err.Error())
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()
	now := time.Now().UTC()
	updated.SecondApproverID = actor.ID
	updated.SecondApprovedAt = &now
	updated.ReviewedAt = &now

	evt := audit.NewEvent(workflow.TriggerSecondApprove.String(), actor, "second approval recorded",
		audit.StatusChange(previousStatus, updated.Status))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Reject returns an entry to the member with a mandatory note.
func (e *engine) Reject(ctx context.Context, actor *entity.User, id, note string) (*entity.WorkEntry, error) {
	return e.review(ctx, actor, id, note, workflow.TriggerReject, "reject")
}

// RequestInfo asks the member for more information with a mandatory note;
// the entry becomes editable again.
func (e *engine) RequestInfo(ctx context.Context, actor *entity.User, id, note string) (*entity.WorkEntry, error) {
	return e.review(ctx, actor, id, note, workflow.TriggerRequestInfo, "request more information")
}

// review is the shared reject/request-info path.
func (e *engine) review(ctx context.Context, actor *entity.User, id, note string, trigger workflow.Trigger, action string) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	trimmed, err := requireNote(note, action)
	if err != nil {
		return nil, err
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot %s from status %s", action, entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()
	updated.ReviewerNote = trimmed
	now := time.Now().UTC()
	updated.ReviewedAt = &now

	changes := audit.StatusChange(previousStatus, updated.Status, entity.FieldChange{
		Field: "Reviewer Note", From: entry.ReviewerNote, To: trimmed,
	})
	evt := audit.NewEvent(trigger.String(), actor, trimmed, changes)
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkPaid records payment of an approved entry.
func (e *engine) MarkPaid(ctx context.Context, actor *entity.User, id string, pay PaymentDetails) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pay.Method) == "" {
		return nil, errs.NewValidation("method", "payment method is required")
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if err := machine.Fire(ctx, workflow.TriggerMarkPaid); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot mark paid from status %s", entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()
	now := time.Now().UTC()
	updated.PaidAt = &now

	detail := paymentDetail(pay)
	evt := audit.NewEvent(workflow.TriggerMarkPaid.String(), actor, detail,
		audit.StatusChange(previousStatus, updated.Status))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	e.logger.Info("Work entry paid",
		zap.String("entry_id", updated.ID),
		zap.String("method", pay.Method))
	return updated, nil
}

// Trash soft-deletes an entry. Any non-Paid, non-Trash state may be trashed.
func (e *engine) Trash(ctx context.Context, actor *entity.User, id, reason string) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if err := machine.Fire(ctx, workflow.TriggerTrash); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot trash from status %s", entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()

	evt := audit.NewEvent(workflow.TriggerTrash.String(), actor, strings.TrimSpace(reason),
		audit.StatusChange(previousStatus, updated.Status))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Restore always resets a trashed entry to Draft, regardless of the state it
// was trashed from. A safe default, not a true undo.
func (e *engine) Restore(ctx context.Context, actor *entity.User, id string) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := BuildWorkEntryMachine(entry.Status)
	if err := machine.Fire(ctx, workflow.TriggerRestore); err != nil {
		return nil, errs.NewValidation("status", fmt.Sprintf("cannot restore from status %s", entry.Status))
	}

	updated := entry.Clone()
	previousStatus := updated.Status
	updated.Status = machine.State()

	evt := audit.NewEvent(workflow.TriggerRestore.String(), actor, "restored from trash",
		audit.StatusChange(previousStatus, updated.Status))
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a Draft or Trash row entirely. The audit history is lost
// with the row, which is acceptable for drafts only.
func (e *engine) Delete(ctx context.Context, actor *entity.User, id string) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status != workflow.StateDraft && entry.Status != workflow.StateTrash {
		return errs.NewValidation("status", fmt.Sprintf("cannot delete an entry in status %s", entry.Status))
	}
	if actor.ID != entry.UserID && !actor.IsApprover() {
		return errs.NewValidation("actor", "only the owner or an approver may delete this entry")
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.entries.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	e.feed.Publish(context.WithoutCancel(ctx), event.New(event.TypeDelete, entity.TableWorkEntries, id, nil))
	e.logger.Info("Work entry deleted", zap.String("entry_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// AddComment appends an immutable comment. Comments are visible to members
// once the entry's status leaves Draft/Trash; the engine only appends.
func (e *engine) AddComment(ctx context.Context, actor *entity.User, id, body string) (*entity.WorkEntry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, errs.NewValidation("body", "comment body is required")
	}

	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != entry.UserID && !actor.IsApprover() {
		return nil, errs.NewValidation("actor", "only the owner or an approver may comment")
	}

	updated := entry.Clone()
	updated.Comments = append(updated.Comments, entity.Comment{
		ID:         newID(),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Body:       trimmed,
		CreatedAt:  time.Now().UTC(),
	})

	evt := audit.NewEvent(entity.ActionComment, actor, "comment added", nil)
	updated.AuditLog = audit.Append(entry.AuditLog, evt)

	if err := e.persistWork(ctx, updated, entry.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns one work entry.
func (e *engine) Get(ctx context.Context, id string) (*entity.WorkEntry, error) {
	return e.entries.GetByID(ctx, id)
}

// List returns all work entries.
func (e *engine) List(ctx context.Context) ([]*entity.WorkEntry, error) {
	return e.entries.List(ctx)
}

// ListByUser returns one member's work entries.
func (e *engine) ListByUser(ctx context.Context, userID string) ([]*entity.WorkEntry, error) {
	return e.entries.ListByUser(ctx, userID)
}

// applyForm copies the submitted form fields onto the working record.
func (e *engine) applyForm(entry *entity.WorkEntry, form SubmitForm) {
	entry.Date = form.Date
	entry.StartTime = form.StartTime
	entry.EndTime = form.EndTime
	entry.Category = form.Category
	entry.Description = strings.TrimSpace(form.Description)
	entry.Location = form.Location
	entry.Mileage = form.Mileage
	entry.Notes = form.Notes
	entry.Materials = append([]entity.Material(nil), form.Materials...)
}

// persistWork writes the full post-transition row under the version the
// caller loaded and pushes the echo onto the change feed. Publishing uses a
// non-cancellable context so an abandoned request still lands in every
// session's reconciler.
func (e *engine) persistWork(ctx context.Context, updated *entity.WorkEntry, expectedVersion int64) error {
	updated.UpdatedAt = time.Now().UTC()

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.entries.Update(txCtx, updated, expectedVersion)
	})
	if err != nil {
		return err
	}
	updated.Version = expectedVersion + 1

	e.feed.Publish(context.WithoutCancel(ctx),
		event.New(event.TypeUpdate, entity.TableWorkEntries, updated.ID, updated.Clone()))
	return nil
}

// publishWork pushes an insert/delete event for a work entry.
func (e *engine) publishWork(ctx context.Context, t event.Type, entry *entity.WorkEntry) {
	e.feed.Publish(context.WithoutCancel(ctx),
		event.New(t, entity.TableWorkEntries, entry.ID, entry.Clone()))
}

// firstApproverID finds the actor of the most recent first-approval event.
func firstApproverID(entry *entity.WorkEntry) string {
	for i := len(entry.AuditLog) - 1; i >= 0; i-- {
		if entry.AuditLog[i].Action == workflow.TriggerApprove.String() {
			return entry.AuditLog[i].ActorID
		}
	}
	return ""
}

func paymentDetail(pay PaymentDetails) string {
	if strings.TrimSpace(pay.Reference) == "" {
		return fmt.Sprintf("paid via %s", pay.Method)
	}
	return fmt.Sprintf("paid via %s (ref %s)", pay.Method, pay.Reference)
}
