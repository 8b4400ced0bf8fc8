package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"workledger/internal/application/port"
	"workledger/internal/domain/entity"
	"workledger/internal/errs"
	"workledger/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository on sqlite.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a user.
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	query := `INSERT INTO users (id, name, email, role, hourly_rate) VALUES (?, ?, ?, ?, ?)`

	var rate sql.NullFloat64
	if u.HourlyRate != nil {
		rate = sql.NullFloat64{Float64: *u.HourlyRate, Valid: true}
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, u.ID, u.Name, u.Email, string(u.Role), rate)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("id", u.ID), zap.Error(err))
		return &errs.PersistenceError{Op: "create user", Err: err}
	}
	return nil
}

// GetByID retrieves one user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT id, name, email, role, hourly_rate FROM users WHERE id = ?`

	var u entity.User
	var role string
	var rate sql.NullFloat64

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Name, &u.Email, &role, &rate)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("id", id), zap.Error(err))
		return nil, &errs.PersistenceError{Op: "get user", Err: err}
	}

	u.Role = entity.Role(role)
	if rate.Valid {
		u.HourlyRate = &rate.Float64
	}
	return &u, nil
}

// List returns all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT id, name, email, role, hourly_rate FROM users ORDER BY name, id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var u entity.User
		var role string
		var rate sql.NullFloat64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &rate); err != nil {
			return nil, &errs.PersistenceError{Op: "list users", Err: err}
		}
		u.Role = entity.Role(role)
		if rate.Valid {
			u.HourlyRate = &rate.Float64
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "list users", Err: err}
	}
	return users, nil
}
