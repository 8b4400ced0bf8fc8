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

// WorkEntryRepository implements port.WorkEntryRepository on sqlite. The
// materials, audit log and comments live in JSON columns so every mutation
// writes the full post-transition row, never a partial patch.
type WorkEntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkEntryRepository creates a work entry repository.
func NewWorkEntryRepository(db *sql.DB, logger *zap.Logger) port.WorkEntryRepository {
	return &WorkEntryRepository{db: db, logger: logger}
}

const workEntryColumns = `
	id, user_id, date, start_time, end_time, category, description,
	location, mileage, notes, materials, status, reviewer_note,
	submitted_at, reviewed_at, paid_at, second_approver_id, second_approved_at,
	hourly_rate, hours, labor_total, materials_total, grand_total,
	audit_log, comments, version, created_at, updated_at`

// Create inserts a new work entry row.
func (r *WorkEntryRepository) Create(ctx context.Context, e *entity.WorkEntry) error {
	materials, auditLog, comments, err := marshalWorkBlobs(e)
	if err != nil {
		return &errs.PersistenceError{Op: "create work entry", Err: err}
	}

	query := `
		INSERT INTO work_entries (` + workEntryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		e.ID, e.UserID, e.Date, e.StartTime, e.EndTime, e.Category, e.Description,
		e.Location, e.Mileage, e.Notes, materials, e.Status.String(), e.ReviewerNote,
		e.SubmittedAt, e.ReviewedAt, e.PaidAt, e.SecondApproverID, e.SecondApprovedAt,
		e.HourlyRate, e.Hours, e.LaborTotal, e.MaterialsTotal, e.GrandTotal,
		auditLog, comments, e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create work entry", zap.String("id", e.ID), zap.Error(err))
		return &errs.PersistenceError{Op: "create work entry", Err: err}
	}
	return nil
}

// GetByID retrieves one work entry.
func (r *WorkEntryRepository) GetByID(ctx context.Context, id string) (*entity.WorkEntry, error) {
	query := `SELECT ` + workEntryColumns + ` FROM work_entries WHERE id = ?`
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)

	e, err := scanWorkEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work entry %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get work entry", zap.String("id", id), zap.Error(err))
		return nil, &errs.PersistenceError{Op: "get work entry", Err: err}
	}
	return e, nil
}

// Update writes the full post-transition row, guarded by the version the
// caller loaded. A write whose expected version no longer matches the stored
// row is rejected with a ConcurrencyError.
func (r *WorkEntryRepository) Update(ctx context.Context, e *entity.WorkEntry, expectedVersion int64) error {
	materials, auditLog, comments, err := marshalWorkBlobs(e)
	if err != nil {
		return &errs.PersistenceError{Op: "update work entry", Err: err}
	}

	query := `
		UPDATE work_entries SET
			date = ?, start_time = ?, end_time = ?, category = ?, description = ?,
			location = ?, mileage = ?, notes = ?, materials = ?, status = ?, reviewer_note = ?,
			submitted_at = ?, reviewed_at = ?, paid_at = ?, second_approver_id = ?, second_approved_at = ?,
			hourly_rate = ?, hours = ?, labor_total = ?, materials_total = ?, grand_total = ?,
			audit_log = ?, comments = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		e.Date, e.StartTime, e.EndTime, e.Category, e.Description,
		e.Location, e.Mileage, e.Notes, materials, e.Status.String(), e.ReviewerNote,
		e.SubmittedAt, e.ReviewedAt, e.PaidAt, e.SecondApproverID, e.SecondApprovedAt,
		e.HourlyRate, e.Hours, e.LaborTotal, e.MaterialsTotal, e.GrandTotal,
		auditLog, comments, e.UpdatedAt,
		e.ID, expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update work entry", zap.String("id", e.ID), zap.Error(err))
		return &errs.PersistenceError{Op: "update work entry", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &errs.PersistenceError{Op: "update work entry", Err: err}
	}
	if affected == 0 {
		return r.versionConflict(ctx, e.ID)
	}
	return nil
}

// versionConflict distinguishes a stale version from a missing row.
func (r *WorkEntryRepository) versionConflict(ctx context.Context, id string) error {
	var one int
	err := sqlite.ExecutorFrom(ctx, r.db).
		QueryRowContext(ctx, "SELECT 1 FROM work_entries WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("work entry %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return &errs.PersistenceError{Op: "update work entry", Err: err}
	}
	return &errs.ConcurrencyError{Table: "work entry", ID: id}
}

// Delete removes a row entirely; the audit history is lost with it.
func (r *WorkEntryRepository) Delete(ctx context.Context, id string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).
		ExecContext(ctx, "DELETE FROM work_entries WHERE id = ?", id)
	if err != nil {
		return &errs.PersistenceError{Op: "delete work entry", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &errs.PersistenceError{Op: "delete work entry", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("work entry %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// List returns all work entries ordered by creation time.
func (r *WorkEntryRepository) List(ctx context.Context) ([]*entity.WorkEntry, error) {
	query := `SELECT ` + workEntryColumns + ` FROM work_entries ORDER BY created_at, id`
	return r.queryEntries(ctx, query)
}

// ListByUser returns one member's work entries ordered by creation time.
func (r *WorkEntryRepository) ListByUser(ctx context.Context, userID string) ([]*entity.WorkEntry, error) {
	query := `SELECT ` + workEntryColumns + ` FROM work_entries WHERE user_id = ? ORDER BY created_at, id`
	return r.queryEntries(ctx, query, userID)
}

func (r *WorkEntryRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkEntry, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list work entries", Err: err}
	}
	defer rows.Close()

	var entries []*entity.WorkEntry
	for rows.Next() {
		e, err := scanWorkEntry(rows)
		if err != nil {
			return nil, &errs.PersistenceError{Op: "list work entries", Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "list work entries", Err: err}
	}
	return entries, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkEntry(s scanner) (*entity.WorkEntry, error) {
	var e entity.WorkEntry
	var status string
	var materials, auditLog, comments []byte
	var submittedAt, reviewedAt, paidAt, secondApprovedAt sql.NullTime

	err := s.Scan(
		&e.ID, &e.UserID, &e.Date, &e.StartTime, &e.EndTime, &e.Category, &e.Description,
		&e.Location, &e.Mileage, &e.Notes, &materials, &status, &e.ReviewerNote,
		&submittedAt, &reviewedAt, &paidAt, &e.SecondApproverID, &secondApprovedAt,
		&e.HourlyRate, &e.Hours, &e.LaborTotal, &e.MaterialsTotal, &e.GrandTotal,
		&auditLog, &comments, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = entityStatus(status)
	if submittedAt.Valid {
		e.SubmittedAt = &submittedAt.Time
	}
	if reviewedAt.Valid {
		e.ReviewedAt = &reviewedAt.Time
	}
	if paidAt.Valid {
		e.PaidAt = &paidAt.Time
	}
	if secondApprovedAt.Valid {
		e.SecondApprovedAt = &secondApprovedAt.Time
	}

	if err := json.Unmarshal(materials, &e.Materials); err != nil {
		return nil, fmt.Errorf("materials column: %w", err)
	}
	if err := json.Unmarshal(auditLog, &e.AuditLog); err != nil {
		return nil, fmt.Errorf("audit_log column: %w", err)
	}
	if err := json.Unmarshal(comments, &e.Comments); err != nil {
		return nil, fmt.Errorf("comments column: %w", err)
	}
	return &e, nil
}

func marshalWorkBlobs(e *entity.WorkEntry) (materials, auditLog, comments []byte, err error) {
	if materials, err = marshalList(e.Materials); err != nil {
		return
	}
	if auditLog, err = marshalList(e.AuditLog); err != nil {
		return
	}
	comments, err = marshalList(e.Comments)
	return
}

// marshalList marshals a slice, mapping nil to the empty JSON array so the
// column never holds SQL null.
func marshalList[T any](list []T) ([]byte, error) {
	if list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(list)
}
