package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"workledger/internal/application/dispatcher"
	"workledger/internal/application/lifecycle"
	"workledger/internal/application/reconciler"
	"workledger/internal/domain/entity"
	"workledger/internal/infrastructure/persistence/repository"
	"workledger/internal/infrastructure/persistence/sqlite"
	"workledger/pkg/database"
)

type apiFixture struct {
	router *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations("../../../migrations"))

	entryRepo := repository.NewWorkEntryRepository(db.DB, logger)
	purchaseRepo := repository.NewPurchaseEntryRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	settingsRepo := repository.NewSettingsRepository(db.DB, logger)
	txManager := sqlite.NewDB(db.DB, logger)

	ctx := context.Background()
	require.NoError(t, userRepo.Create(ctx, &entity.User{ID: "m1", Name: "Morgan", Role: entity.RoleMember}))
	require.NoError(t, userRepo.Create(ctx, &entity.User{ID: "a1", Name: "Avery", Role: entity.RoleApprover}))

	feed := dispatcher.New()
	t.Cleanup(func() { _ = feed.Close() })
	registry := reconciler.NewRegistry(feed)

	engine := lifecycle.NewEngine(entryRepo, purchaseRepo, settingsRepo, txManager, feed, logger)
	coordinator := lifecycle.NewCoordinator(engine, logger)

	server := NewServer(DefaultServerConfig(), engine, coordinator, registry, feed, userRepo, settingsRepo, logger)
	return &apiFixture{router: server.Router()}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func entryForm() EntryFormRequest {
	return EntryFormRequest{
		Date:        "2026-03-02",
		StartTime:   "09:00",
		EndTime:     "12:00",
		Category:    entity.CategoryMaintenance,
		Description: "replaced the hallway light fixtures",
		Materials:   []entity.Material{{Name: "bulbs", Quantity: 4, UnitCost: 3.25}},
	}
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdentityRequired(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/entries", "ghost", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEntryLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/entries", "m1", entryForm())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created entity.WorkEntry
	decodeData(t, w, &created)
	assert.Equal(t, "Draft", created.Status.String())

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/submit", "m1", entryForm())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var submitted entity.WorkEntry
	decodeData(t, w, &submitted)
	assert.Equal(t, "Submitted", submitted.Status.String())
	// 3 hours at the seeded 25.0 default plus 13.00 of materials.
	assert.Equal(t, 88.00, submitted.GrandTotal)

	// A member cannot approve, even their own entry.
	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/approve", "m1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/approve", "a1", NoteRequest{Note: "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var approved entity.WorkEntry
	decodeData(t, w, &approved)
	assert.Equal(t, "Approved", approved.Status.String())

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/pay", "a1",
		PaymentRequest{Method: entity.PaymentMethodCheck, Reference: "1042"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var paid entity.WorkEntry
	decodeData(t, w, &paid)
	assert.Equal(t, "Paid", paid.Status.String())

	// Paid is terminal.
	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/trash", "a1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRejectRequiresNoteOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/entries", "m1", entryForm())
	var created entity.WorkEntry
	decodeData(t, w, &created)

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/submit", "m1", entryForm())
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/reject", "a1", NoteRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/reject", "a1", NoteRequest{Note: "missing receipt"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetUnknownEntry(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/entries/missing", "m1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkApprovePartialFailureOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/entries", "m1", entryForm())
	var created entity.WorkEntry
	decodeData(t, w, &created)
	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/submit", "m1", entryForm())
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/entries/bulk-approve", "a1",
		BulkApproveRequest{IDs: []string{created.ID, "missing-id"}})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	var result BulkApproveResponse
	decodeData(t, w, &result)
	assert.Equal(t, []string{created.ID}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing-id", result.Failed[0].ID)
}

func TestSettingsEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/settings", "m1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var settings entity.Settings
	decodeData(t, w, &settings)
	assert.Equal(t, 25.0, settings.DefaultHourlyRate)

	// Members may read but not change organization settings.
	w = f.do(t, http.MethodPut, "/api/settings", "m1", settings)
	assert.Equal(t, http.StatusForbidden, w.Code)

	settings.DefaultHourlyRate = -1
	w = f.do(t, http.MethodPut, "/api/settings", "a1", settings)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	settings.DefaultHourlyRate = 30
	w = f.do(t, http.MethodPut, "/api/settings", "a1", settings)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionSeesMutationBeforeFeedEcho(t *testing.T) {
	f := newAPIFixture(t)

	// Open the session first so subsequent mutations have a live session to
	// reconcile into.
	w := f.do(t, http.MethodGet, "/api/session/entries", "m1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/entries", "m1", entryForm())
	require.Equal(t, http.StatusCreated, w.Code)
	var created entity.WorkEntry
	decodeData(t, w, &created)

	// The mutation response must be visible in the session right away, not
	// only after the asynchronous feed echo lands.
	w = f.do(t, http.MethodGet, "/api/session/entries", "m1", nil)
	var entries []entity.WorkEntry
	decodeData(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Draft", entries[0].Status.String())

	w = f.do(t, http.MethodPost, "/api/entries/"+created.ID+"/submit", "m1", entryForm())
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/session/entries", "m1", nil)
	decodeData(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Submitted", entries[0].Status.String())

	// Deletes reconcile the same way.
	w = f.do(t, http.MethodPost, "/api/entries", "m1", entryForm())
	require.Equal(t, http.StatusCreated, w.Code)
	var second entity.WorkEntry
	decodeData(t, w, &second)

	w = f.do(t, http.MethodDelete, "/api/entries/"+second.ID, "m1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/session/entries", "m1", nil)
	decodeData(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ID)
}

func TestSessionEntriesSeededOnFirstUse(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/entries", "m1", entryForm())
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/session/entries", "m1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var entries []entity.WorkEntry
	decodeData(t, w, &entries)
	assert.Len(t, entries, 1)

	w = f.do(t, http.MethodDelete, "/api/session", "m1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
