package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"workledger/internal/application/port"
	"workledger/internal/domain/entity"
	"workledger/internal/errs"
	"workledger/internal/infrastructure/persistence/sqlite"
)

// SettingsRepository stores the single organization settings row (id = 1,
// seeded by migration).
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) port.SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// Get returns the organization settings.
func (r *SettingsRepository) Get(ctx context.Context) (*entity.Settings, error) {
	query := `
		SELECT default_hourly_rate, dual_approval_threshold, mileage_rate,
			annual_budget, currency, updated_at
		FROM org_settings WHERE id = 1
	`

	var s entity.Settings
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query).Scan(
		&s.DefaultHourlyRate, &s.DualApprovalThreshold, &s.MileageRate,
		&s.AnnualBudget, &s.Currency, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization settings: %w", errs.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get settings", zap.Error(err))
		return nil, &errs.PersistenceError{Op: "get settings", Err: err}
	}
	return &s, nil
}

// Update replaces the organization settings.
func (r *SettingsRepository) Update(ctx context.Context, s *entity.Settings) error {
	query := `
		UPDATE org_settings SET
			default_hourly_rate = ?, dual_approval_threshold = ?, mileage_rate = ?,
			annual_budget = ?, currency = ?, updated_at = ?
		WHERE id = 1
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		s.DefaultHourlyRate, s.DualApprovalThreshold, s.MileageRate,
		s.AnnualBudget, s.Currency, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to update settings", zap.Error(err))
		return &errs.PersistenceError{Op: "update settings", Err: err}
	}
	return nil
}
