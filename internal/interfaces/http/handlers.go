package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workledger/internal/application/lifecycle"
	"workledger/internal/application/port"
	"workledger/internal/application/reconciler"
	"workledger/internal/domain/entity"
	"workledger/internal/domain/workflow"
	"workledger/internal/errs"
)

// actorKey is the gin context key holding the resolved acting user.
const actorKey = "actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine      lifecycle.Engine
	coordinator *lifecycle.Coordinator
	registry    *reconciler.Registry
	settings    port.SettingsRepository
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine lifecycle.Engine,
	coordinator *lifecycle.Coordinator,
	registry *reconciler.Registry,
	settings port.SettingsRepository,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:      engine,
		coordinator: coordinator,
		registry:    registry,
		settings:    settings,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// EntryFormRequest carries the editable fields of a work entry.
type EntryFormRequest struct {
	Date        string            `json:"date"`
	StartTime   string            `json:"start_time"`
	EndTime     string            `json:"end_time"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Mileage     float64           `json:"mileage"`
	Notes       string            `json:"notes"`
	Materials   []entity.Material `json:"materials"`
}

func (r EntryFormRequest) toForm() lifecycle.SubmitForm {
	return lifecycle.SubmitForm{
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Category:    r.Category,
		Description: r.Description,
		Location:    r.Location,
		Mileage:     r.Mileage,
		Notes:       r.Notes,
		Materials:   r.Materials,
	}
}

// PurchaseFormRequest carries the editable fields of a purchase entry.
type PurchaseFormRequest struct {
	Date      string        `json:"date"`
	StoreName string        `json:"store_name"`
	Category  string        `json:"category"`
	Items     []entity.Item `json:"items"`
	Tax       float64       `json:"tax"`
	Mileage   float64       `json:"mileage"`
	Notes     string        `json:"notes"`
}

func (r PurchaseFormRequest) toForm() lifecycle.PurchaseForm {
	return lifecycle.PurchaseForm{
		Date:      r.Date,
		StoreName: r.StoreName,
		Category:  r.Category,
		Items:     r.Items,
		Tax:       r.Tax,
		Mileage:   r.Mileage,
		Notes:     r.Notes,
	}
}

// NoteRequest carries the reviewer note accompanying a review transition.
type NoteRequest struct {
	Note string `json:"note"`
}

// PaymentRequest carries the payment details of a mark-paid transition.
type PaymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// CommentRequest carries a new comment body.
type CommentRequest struct {
	Body string `json:"body"`
}

// BulkApproveRequest carries the ids of a bulk approval.
type BulkApproveRequest struct {
	IDs  []string `json:"ids"`
	Note string   `json:"note"`
}

// BulkApproveResponse reports the partial outcome of a bulk approval.
type BulkApproveResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    []BulkFailedEntry `json:"failed"`
}

// BulkFailedEntry is one failed id with its reason.
type BulkFailedEntry struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func actor(c *gin.Context) *entity.User {
	return c.MustGet(actorKey).(*entity.User)
}

// writeError maps an application error onto the HTTP status taxonomy.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var be *errs.BatchError
	switch {
	case errs.IsValidation(err),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrGuardFailed):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	case errs.IsConcurrency(err):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errs.IsNotFound(err):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.As(err, &be):
		failed := make([]BulkFailedEntry, 0, len(be.Failed))
		for _, f := range be.Failed {
			failed = append(failed, BulkFailedEntry{ID: f.ID, Reason: f.Err.Error()})
		}
		c.JSON(http.StatusMultiStatus, Response{
			Success: false,
			Data:    BulkApproveResponse{Succeeded: be.Succeeded, Failed: failed},
			Error:   be.Error(),
		})
	default:
		var pe *errs.PersistenceError
		if errors.As(err, &pe) {
			c.JSON(http.StatusBadGateway, Response{Success: false, Error: "storage failure"})
			return
		}
		h.logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateDraft handles POST /api/entries
func (h *Handlers) CreateDraft(c *gin.Context) {
	var req EntryFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	form := req.toForm()
	draft := &entity.WorkEntry{
		Date:        form.Date,
		StartTime:   form.StartTime,
		EndTime:     form.EndTime,
		Category:    form.Category,
		Description: form.Description,
		Location:    form.Location,
		Mileage:     form.Mileage,
		Notes:       form.Notes,
		Materials:   form.Materials,
	}

	entry, err := h.engine.CreateDraft(c.Request.Context(), actor(c), draft)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusCreated, Response{Success: true, Data: entry})
}

// ListEntries handles GET /api/entries. Members see their own entries,
// approvers see everything unless ?mine=true.
func (h *Handlers) ListEntries(c *gin.Context) {
	user := actor(c)

	var (
		entries []*entity.WorkEntry
		err     error
	)
	if user.IsApprover() && c.Query("mine") != "true" {
		entries, err = h.engine.List(c.Request.Context())
	} else {
		entries, err = h.engine.ListByUser(c.Request.Context(), user.ID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetEntry handles GET /api/entries/:id
func (h *Handlers) GetEntry(c *gin.Context) {
	entry, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// UpdateDraft handles PUT /api/entries/:id
func (h *Handlers) UpdateDraft(c *gin.Context) {
	var req EntryFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.UpdateDraft(c.Request.Context(), actor(c), c.Param("id"), req.toForm())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// SubmitEntry handles POST /api/entries/:id/submit
func (h *Handlers) SubmitEntry(c *gin.Context) {
	var req EntryFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.Submit(c.Request.Context(), actor(c), c.Param("id"), req.toForm())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// ApproveEntry handles POST /api/entries/:id/approve
func (h *Handlers) ApproveEntry(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.Approve(c.Request.Context(), actor(c), c.Param("id"), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// SecondApproveEntry handles POST /api/entries/:id/second-approve
func (h *Handlers) SecondApproveEntry(c *gin.Context) {
	entry, err := h.engine.SecondApprove(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// RejectEntry handles POST /api/entries/:id/reject
func (h *Handlers) RejectEntry(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.Reject(c.Request.Context(), actor(c), c.Param("id"), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// RequestInfo handles POST /api/entries/:id/request-info
func (h *Handlers) RequestInfo(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.RequestInfo(c.Request.Context(), actor(c), c.Param("id"), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// MarkEntryPaid handles POST /api/entries/:id/pay
func (h *Handlers) MarkEntryPaid(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.MarkPaid(c.Request.Context(), actor(c), c.Param("id"), lifecycle.PaymentDetails{
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// TrashEntry handles POST /api/entries/:id/trash
func (h *Handlers) TrashEntry(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.Trash(c.Request.Context(), actor(c), c.Param("id"), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// RestoreEntry handles POST /api/entries/:id/restore
func (h *Handlers) RestoreEntry(c *gin.Context) {
	entry, err := h.engine.Restore(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// DeleteEntry handles DELETE /api/entries/:id
func (h *Handlers) DeleteEntry(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileRemoval(c, entity.TableWorkEntries, c.Param("id"))
	c.JSON(http.StatusOK, Response{Success: true})
}

// AddComment handles POST /api/entries/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.AddComment(c.Request.Context(), actor(c), c.Param("id"), req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// BulkApprove handles POST /api/entries/bulk-approve
func (h *Handlers) BulkApprove(c *gin.Context) {
	var req BulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "ids is required"})
		return
	}

	result, err := h.coordinator.BulkApprove(c.Request.Context(), actor(c), req.IDs, req.Note)

	// Successes are durable even when the batch partially fails, so they are
	// pushed into the caller's session before the outcome is reported.
	if s, ok := h.registry.Lookup(sessionID(c)); ok {
		for _, id := range result.Succeeded {
			if entry, getErr := h.engine.Get(c.Request.Context(), id); getErr == nil {
				s.ApplyLocal(entry)
			}
		}
	}

	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    BulkApproveResponse{Succeeded: result.Succeeded, Failed: []BulkFailedEntry{}},
	})
}

// CreatePurchaseDraft handles POST /api/purchases
func (h *Handlers) CreatePurchaseDraft(c *gin.Context) {
	var req PurchaseFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	form := req.toForm()
	draft := &entity.PurchaseEntry{
		Date:      form.Date,
		StoreName: form.StoreName,
		Category:  form.Category,
		Items:     form.Items,
		Tax:       form.Tax,
		Mileage:   form.Mileage,
		Notes:     form.Notes,
	}

	entry, err := h.engine.CreatePurchaseDraft(c.Request.Context(), actor(c), draft)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusCreated, Response{Success: true, Data: entry})
}

// ListPurchases handles GET /api/purchases
func (h *Handlers) ListPurchases(c *gin.Context) {
	entries, err := h.engine.ListPurchases(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetPurchase handles GET /api/purchases/:id
func (h *Handlers) GetPurchase(c *gin.Context) {
	entry, err := h.engine.GetPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// SubmitPurchase handles POST /api/purchases/:id/submit
func (h *Handlers) SubmitPurchase(c *gin.Context) {
	var req PurchaseFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.SubmitPurchase(c.Request.Context(), actor(c), c.Param("id"), req.toForm())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// ApprovePurchase handles POST /api/purchases/:id/approve
func (h *Handlers) ApprovePurchase(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.ApprovePurchaseByID(c.Request.Context(), actor(c), c.Param("id"), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// RejectPurchase handles POST /api/purchases/:id/reject
func (h *Handlers) RejectPurchase(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.RejectPurchaseByID(c.Request.Context(), actor(c), c.Param("id"), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// MarkPurchasePaid handles POST /api/purchases/:id/pay
func (h *Handlers) MarkPurchasePaid(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	entry, err := h.engine.MarkPurchasePaid(c.Request.Context(), actor(c), c.Param("id"), lifecycle.PaymentDetails{
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileLocal(c, entry)
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// DeletePurchase handles DELETE /api/purchases/:id
func (h *Handlers) DeletePurchase(c *gin.Context) {
	if err := h.engine.DeletePurchase(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	h.reconcileRemoval(c, entity.TablePurchaseEntries, c.Param("id"))
	c.JSON(http.StatusOK, Response{Success: true})
}

// sessionID derives the reconciler session key from the X-Session-ID header,
// falling back to the acting user's id so each user gets one session.
func sessionID(c *gin.Context) string {
	if sid := c.GetHeader("X-Session-ID"); sid != "" {
		return sid
	}
	return actor(c).ID
}

// reconcileLocal applies a mutation result to the caller's live session, so a
// read issued before the change-feed echo lands already sees the new state.
// The echo then becomes a no-op replace. Sessions are only updated, never
// created here: a missing session seeds itself from the store on first read.
func (h *Handlers) reconcileLocal(c *gin.Context, row interface{}) {
	if s, ok := h.registry.Lookup(sessionID(c)); ok {
		s.ApplyLocal(row)
	}
}

// reconcileRemoval applies a delete optimistically to the caller's session.
func (h *Handlers) reconcileRemoval(c *gin.Context, table, id string) {
	if s, ok := h.registry.Lookup(sessionID(c)); ok {
		s.RemoveLocal(table, id)
	}
}

// session returns the caller's reconciler session, seeding it from the store
// on first use.
func (h *Handlers) session(c *gin.Context) (*reconciler.Session, error) {
	s, created := h.registry.Get(sessionID(c))
	if created {
		entries, err := h.engine.List(c.Request.Context())
		if err != nil {
			h.registry.Drop(sessionID(c))
			return nil, err
		}
		purchases, err := h.engine.ListPurchases(c.Request.Context())
		if err != nil {
			h.registry.Drop(sessionID(c))
			return nil, err
		}
		s.Load(entries, purchases)
	}
	return s, nil
}

// SessionEntries handles GET /api/session/entries
func (h *Handlers) SessionEntries(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: s.WorkEntries()})
}

// SessionPurchases handles GET /api/session/purchases
func (h *Handlers) SessionPurchases(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: s.PurchaseEntries()})
}

// DropSession handles DELETE /api/session
func (h *Handlers) DropSession(c *gin.Context) {
	h.registry.Drop(sessionID(c))
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetSettings handles GET /api/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: settings})
}

// UpdateSettings handles PUT /api/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	if !actor(c).IsApprover() {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "approver role required"})
		return
	}

	var settings entity.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if settings.DefaultHourlyRate < 0 || settings.DualApprovalThreshold < 0 || settings.MileageRate < 0 {
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: "rates must not be negative"})
		return
	}

	if err := h.settings.Update(c.Request.Context(), &settings); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: settings})
}
