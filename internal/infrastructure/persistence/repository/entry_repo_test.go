package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/workflow"
	"workledger/internal/errs"
	"workledger/internal/infrastructure/persistence/sqlite"
	"workledger/pkg/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations("../../../../migrations"))
	return db
}

func testWorkEntry(id, userID string) *entity.WorkEntry {
	now := time.Now().UTC()
	return &entity.WorkEntry{
		ID:          id,
		UserID:      userID,
		Date:        "2026-03-02",
		StartTime:   "09:00",
		EndTime:     "12:00",
		Category:    entity.CategoryMaintenance,
		Description: "replaced the hallway light fixtures",
		Materials:   []entity.Material{{Name: "bulbs", Quantity: 4, UnitCost: 3.25}},
		Status:      workflow.StateDraft,
		AuditLog: []entity.AuditEvent{{
			Action:    "CREATE",
			ActorID:   userID,
			ActorName: "Morgan",
			Timestamp: now,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWorkEntryRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewWorkEntryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	in := testWorkEntry("e1", "m1")
	require.NoError(t, repo.Create(ctx, in))

	out, err := repo.GetByID(ctx, "e1")
	require.NoError(t, err)

	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Description, out.Description)
	assert.Equal(t, workflow.StateDraft, out.Status)
	assert.Equal(t, int64(1), out.Version)
	assert.Nil(t, out.SubmittedAt)

	require.Len(t, out.Materials, 1)
	assert.Equal(t, "bulbs", out.Materials[0].Name)
	require.Len(t, out.AuditLog, 1)
	assert.Equal(t, "CREATE", out.AuditLog[0].Action)
	assert.WithinDuration(t, in.CreatedAt, out.CreatedAt, time.Second)
}

func TestWorkEntryGetMissing(t *testing.T) {
	db := testDB(t)
	repo := NewWorkEntryRepository(db.DB, zap.NewNop())

	_, err := repo.GetByID(context.Background(), "nope")
	assert.True(t, errs.IsNotFound(err))
}

func TestWorkEntryUpdateVersionGuard(t *testing.T) {
	db := testDB(t)
	repo := NewWorkEntryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	in := testWorkEntry("e1", "m1")
	require.NoError(t, repo.Create(ctx, in))

	in.Status = workflow.StateSubmitted
	now := time.Now().UTC()
	in.SubmittedAt = &now
	require.NoError(t, repo.Update(ctx, in, 1))

	out, err := repo.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Version)
	assert.Equal(t, workflow.StateSubmitted, out.Status)
	require.NotNil(t, out.SubmittedAt)

	// A write carrying the version the caller loaded before the first update
	// must be rejected, not silently applied.
	err = repo.Update(ctx, in, 1)
	assert.True(t, errs.IsConcurrency(err), "want concurrency error, got %v", err)

	// The row itself still exists, so this is not a not-found case.
	err = repo.Update(ctx, testWorkEntry("ghost", "m1"), 1)
	assert.True(t, errs.IsNotFound(err))
}

func TestWorkEntryDelete(t *testing.T) {
	db := testDB(t)
	repo := NewWorkEntryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testWorkEntry("e1", "m1")))
	require.NoError(t, repo.Delete(ctx, "e1"))

	assert.True(t, errs.IsNotFound(repo.Delete(ctx, "e1")))
	_, err := repo.GetByID(ctx, "e1")
	assert.True(t, errs.IsNotFound(err))
}

func TestWorkEntryListByUser(t *testing.T) {
	db := testDB(t)
	repo := NewWorkEntryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	first := testWorkEntry("e1", "m1")
	second := testWorkEntry("e2", "m1")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	other := testWorkEntry("e3", "m2")

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, other))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.ListByUser(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "e1", mine[0].ID)
	assert.Equal(t, "e2", mine[1].ID)
}

func TestWorkEntryTransactionRollback(t *testing.T) {
	db := testDB(t)
	repo := NewWorkEntryRepository(db.DB, zap.NewNop())
	tm := sqlite.NewDB(db.DB, zap.NewNop())
	ctx := context.Background()

	err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, testWorkEntry("e1", "m1")); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = repo.GetByID(ctx, "e1")
	assert.True(t, errs.IsNotFound(err), "rolled-back insert must not be visible")
}
