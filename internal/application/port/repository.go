package port

import (
	"context"

	"workledger/internal/domain/entity"
)

// WorkEntryRepository defines persistence operations for work entries.
// Update writes the full post-transition row (status, timestamps, reviewer
// fields and the complete appended audit log) in one call; it must fail with
// a ConcurrencyError when the stored version no longer matches
// expectedVersion.
type WorkEntryRepository interface {
	Create(ctx context.Context, e *entity.WorkEntry) error
	GetByID(ctx context.Context, id string) (*entity.WorkEntry, error)
	Update(ctx context.Context, e *entity.WorkEntry, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.WorkEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.WorkEntry, error)
}

// PurchaseEntryRepository defines persistence operations for purchase
// entries, with the same full-row, version-checked write contract.
type PurchaseEntryRepository interface {
	Create(ctx context.Context, p *entity.PurchaseEntry) error
	GetByID(ctx context.Context, id string) (*entity.PurchaseEntry, error)
	Update(ctx context.Context, p *entity.PurchaseEntry, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.PurchaseEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.PurchaseEntry, error)
}

// UserRepository is the identity collaborator: it supplies the acting user's
// id, display name, role and rate override.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

// SettingsRepository stores the single organization settings row.
type SettingsRepository interface {
	Get(ctx context.Context) (*entity.Settings, error)
	Update(ctx context.Context, s *entity.Settings) error
}

// TransactionManager runs a function within a database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
