package lifecycle

import (
	"context"

	"workledger/internal/domain/entity"
)

// SubmitForm carries the fields a member fills in when submitting a work
// entry. Validation of presentation concerns (display formatting, prompts)
// stays with the caller; the engine validates required fields and duration.
type SubmitForm struct {
	Date        string
	StartTime   string
	EndTime     string
	Category    string
	Description string
	Location    string
	Mileage     float64
	Notes       string
	Materials   []entity.Material
}

// PurchaseForm carries the fields of a purchase entry submission.
type PurchaseForm struct {
	Date      string
	StoreName string
	Category  string
	Items     []entity.Item
	Tax       float64
	Mileage   float64
	Notes     string
}

// PaymentDetails records how an approved entry was paid.
type PaymentDetails struct {
	Method    string
	Reference string
}

// Engine is the entry lifecycle engine: it validates transitions, applies
// the dual-approval-threshold rule and performs record mutation plus audit
// append as one logical operation. A transition that fails validation
// produces no side effect and no audit event.
type Engine interface {
	// Work entries.
	CreateDraft(ctx context.Context, actor *entity.User, draft *entity.WorkEntry) (*entity.WorkEntry, error)
	UpdateDraft(ctx context.Context, actor *entity.User, id string, form SubmitForm) (*entity.WorkEntry, error)
	Submit(ctx context.Context, actor *entity.User, id string, form SubmitForm) (*entity.WorkEntry, error)
	Approve(ctx context.Context, actor *entity.User, id, note string) (*entity.WorkEntry, error)
	SecondApprove(ctx context.Context, actor *entity.User, id string) (*entity.WorkEntry, error)
	Reject(ctx context.Context, actor *entity.User, id, note string) (*entity.WorkEntry, error)
	RequestInfo(ctx context.Context, actor *entity.User, id, note string) (*entity.WorkEntry, error)
	MarkPaid(ctx context.Context, actor *entity.User, id string, pay PaymentDetails) (*entity.WorkEntry, error)
	Trash(ctx context.Context, actor *entity.User, id, reason string) (*entity.WorkEntry, error)
	Restore(ctx context.Context, actor *entity.User, id string) (*entity.WorkEntry, error)
	Delete(ctx context.Context, actor *entity.User, id string) error
	AddComment(ctx context.Context, actor *entity.User, id, body string) (*entity.WorkEntry, error)
	Get(ctx context.Context, id string) (*entity.WorkEntry, error)
	List(ctx context.Context) ([]*entity.WorkEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.WorkEntry, error)

	// Purchase entries. Approve/reject are explicitly named by-id operations;
	// ReviewPurchase returns a cursor with ApproveCurrent/RejectCurrent for
	// callers reviewing one loaded entry.
	CreatePurchaseDraft(ctx context.Context, actor *entity.User, draft *entity.PurchaseEntry) (*entity.PurchaseEntry, error)
	SubmitPurchase(ctx context.Context, actor *entity.User, id string, form PurchaseForm) (*entity.PurchaseEntry, error)
	ApprovePurchaseByID(ctx context.Context, actor *entity.User, id, note string) (*entity.PurchaseEntry, error)
	RejectPurchaseByID(ctx context.Context, actor *entity.User, id, note string) (*entity.PurchaseEntry, error)
	MarkPurchasePaid(ctx context.Context, actor *entity.User, id string, pay PaymentDetails) (*entity.PurchaseEntry, error)
	DeletePurchase(ctx context.Context, actor *entity.User, id string) error
	ReviewPurchase(ctx context.Context, actor *entity.User, id string) (*PurchaseReview, error)
	GetPurchase(ctx context.Context, id string) (*entity.PurchaseEntry, error)
	ListPurchases(ctx context.Context) ([]*entity.PurchaseEntry, error)
}
