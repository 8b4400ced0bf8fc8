package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"workledger/internal/application/port"
	"workledger/internal/domain/entity"
	"workledger/internal/errs"
	"workledger/internal/infrastructure/persistence/sqlite"
)

// PurchaseEntryRepository implements port.PurchaseEntryRepository on sqlite.
type PurchaseEntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseEntryRepository creates a purchase entry repository.
func NewPurchaseEntryRepository(db *sql.DB, logger *zap.Logger) port.PurchaseEntryRepository {
	return &PurchaseEntryRepository{db: db, logger: logger}
}

const purchaseEntryColumns = `
	id, user_id, date, store_name, category, items, tax, mileage, notes,
	subtotal, total, status, reviewer_note, submitted_at, reviewed_at, paid_at,
	audit_log, version, created_at, updated_at`

// Create inserts a new purchase entry row.
func (r *PurchaseEntryRepository) Create(ctx context.Context, p *entity.PurchaseEntry) error {
	items, err := marshalList(p.Items)
	if err != nil {
		return &errs.PersistenceError{Op: "create purchase entry", Err: err}
	}
	auditLog, err := marshalList(p.AuditLog)
	if err != nil {
		return &errs.PersistenceError{Op: "create purchase entry", Err: err}
	}

	query := `
		INSERT INTO purchase_entries (` + purchaseEntryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		p.ID, p.UserID, p.Date, p.StoreName, p.Category, items, p.Tax, p.Mileage, p.Notes,
		p.Subtotal, p.Total, p.Status.String(), p.ReviewerNote, p.SubmittedAt, p.ReviewedAt, p.PaidAt,
		auditLog, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase entry", zap.String("id", p.ID), zap.Error(err))
		return &errs.PersistenceError{Op: "create purchase entry", Err: err}
	}
	return nil
}

// GetByID retrieves one purchase entry.
func (r *PurchaseEntryRepository) GetByID(ctx context.Context, id string) (*entity.PurchaseEntry, error) {
	query := `SELECT ` + purchaseEntryColumns + ` FROM purchase_entries WHERE id = ?`
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)

	p, err := scanPurchaseEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("purchase entry %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get purchase entry", zap.String("id", id), zap.Error(err))
		return nil, &errs.PersistenceError{Op: "get purchase entry", Err: err}
	}
	return p, nil
}

// Update writes the full post-transition row under the loaded version.
func (r *PurchaseEntryRepository) Update(ctx context.Context, p *entity.PurchaseEntry, expectedVersion int64) error {
	items, err := marshalList(p.Items)
	if err != nil {
		return &errs.PersistenceError{Op: "update purchase entry", Err: err}
	}
	auditLog, err := marshalList(p.AuditLog)
	if err != nil {
		return &errs.PersistenceError{Op: "update purchase entry", Err: err}
	}

	query := `
		UPDATE purchase_entries SET
			date = ?, store_name = ?, category = ?, items = ?, tax = ?, mileage = ?, notes = ?,
			subtotal = ?, total = ?, status = ?, reviewer_note = ?,
			submitted_at = ?, reviewed_at = ?, paid_at = ?,
			audit_log = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		p.Date, p.StoreName, p.Category, items, p.Tax, p.Mileage, p.Notes,
		p.Subtotal, p.Total, p.Status.String(), p.ReviewerNote,
		p.SubmittedAt, p.ReviewedAt, p.PaidAt,
		auditLog, p.UpdatedAt,
		p.ID, expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update purchase entry", zap.String("id", p.ID), zap.Error(err))
		return &errs.PersistenceError{Op: "update purchase entry", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &errs.PersistenceError{Op: "update purchase entry", Err: err}
	}
	if affected == 0 {
		var one int
		scanErr := sqlite.ExecutorFrom(ctx, r.db).
			QueryRowContext(ctx, "SELECT 1 FROM purchase_entries WHERE id = ?", p.ID).Scan(&one)
		if scanErr == sql.ErrNoRows {
			return fmt.Errorf("purchase entry %s: %w", p.ID, errs.ErrNotFound)
		}
		if scanErr != nil {
			return &errs.PersistenceError{Op: "update purchase entry", Err: scanErr}
		}
		return &errs.ConcurrencyError{Table: "purchase entry", ID: p.ID}
	}
	return nil
}

// Delete removes a purchase entry row.
func (r *PurchaseEntryRepository) Delete(ctx context.Context, id string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).
		ExecContext(ctx, "DELETE FROM purchase_entries WHERE id = ?", id)
	if err != nil {
		return &errs.PersistenceError{Op: "delete purchase entry", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &errs.PersistenceError{Op: "delete purchase entry", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("purchase entry %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// List returns all purchase entries ordered by creation time.
func (r *PurchaseEntryRepository) List(ctx context.Context) ([]*entity.PurchaseEntry, error) {
	query := `SELECT ` + purchaseEntryColumns + ` FROM purchase_entries ORDER BY created_at, id`
	return r.queryEntries(ctx, query)
}

// ListByUser returns one member's purchase entries ordered by creation time.
func (r *PurchaseEntryRepository) ListByUser(ctx context.Context, userID string) ([]*entity.PurchaseEntry, error) {
	query := `SELECT ` + purchaseEntryColumns + ` FROM purchase_entries WHERE user_id = ? ORDER BY created_at, id`
	return r.queryEntries(ctx, query, userID)
}

func (r *PurchaseEntryRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*entity.PurchaseEntry, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list purchase entries", Err: err}
	}
	defer rows.Close()

	var entries []*entity.PurchaseEntry
	for rows.Next() {
		p, err := scanPurchaseEntry(rows)
		if err != nil {
			return nil, &errs.PersistenceError{Op: "list purchase entries", Err: err}
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "list purchase entries", Err: err}
	}
	return entries, nil
}

func scanPurchaseEntry(s scanner) (*entity.PurchaseEntry, error) {
	var p entity.PurchaseEntry
	var status string
	var items, auditLog []byte
	var submittedAt, reviewedAt, paidAt sql.NullTime

	err := s.Scan(
		&p.ID, &p.UserID, &p.Date, &p.StoreName, &p.Category, &items, &p.Tax, &p.Mileage, &p.Notes,
		&p.Subtotal, &p.Total, &status, &p.ReviewerNote, &submittedAt, &reviewedAt, &paidAt,
		&auditLog, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = entityStatus(status)
	if submittedAt.Valid {
		p.SubmittedAt = &submittedAt.Time
	}
	if reviewedAt.Valid {
		p.ReviewedAt = &reviewedAt.Time
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}

	if err := json.Unmarshal(items, &p.Items); err != nil {
		return nil, fmt.Errorf("items column: %w", err)
	}
	if err := json.Unmarshal(auditLog, &p.AuditLog); err != nil {
		return nil, fmt.Errorf("audit_log column: %w", err)
	}
	return &p, nil
}
