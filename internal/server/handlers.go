package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/batch"
	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/internal/importer"
	"github.com/dstam/smart-import/internal/ledger"
)

// ReviewSession is the single-document review surface the handlers front.
type ReviewSession interface {
	Upload(ctx context.Context, fileName string, content []byte) (*importer.Snapshot, error)
	Snapshot() *importer.Snapshot
	UpdateFields(ctx context.Context, patch importer.FieldPatch) (*importer.Snapshot, error)
	PromoteAlternative(alternativeID string) (*importer.Snapshot, error)
	Save(ctx context.Context) (*ledger.SaveOutcome, error)
	Discard() error
	Retry() error
}

// BatchRunner controls resumable bulk jobs.
type BatchRunner interface {
	Start(ctx context.Context, kind string) (*entity.BatchJob, error)
	Status(ctx context.Context, kind string) (*entity.BatchJob, error)
	Cancel(kind string) bool
}

// SubscriptionLister lists tracked subscriptions.
type SubscriptionLister interface {
	List(ctx context.Context, status string) ([]entity.Subscription, error)
}

// ExpenseExporter builds the expense workbook for download.
type ExpenseExporter interface {
	ExpensesWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	session       ReviewSession
	batch         BatchRunner
	subscriptions SubscriptionLister
	exporter      ExpenseExporter
	maxFileSize   int64
	logger        *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	session ReviewSession,
	batchRunner BatchRunner,
	subscriptions SubscriptionLister,
	exporter ExpenseExporter,
	maxFileSize int64,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		session:       session,
		batch:         batchRunner,
		subscriptions: subscriptions,
		exporter:      exporter,
		maxFileSize:   maxFileSize,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// UploadDocument handles POST /api/v1/documents
func (h *Handlers) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing file field"})
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxFileSize),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable upload"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable upload"})
		return
	}

	snapshot, err := h.session.Upload(c.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		h.logger.Error("Document intake failed",
			zap.String("file", fileHeader.Filename),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: snapshot})
}

// GetSession handles GET /api/v1/session
func (h *Handlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.session.Snapshot()})
}

// UpdateFields handles PATCH /api/v1/session/fields
func (h *Handlers) UpdateFields(c *gin.Context) {
	var patch importer.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid field patch"})
		return
	}

	snapshot, err := h.session.UpdateFields(c.Request.Context(), patch)
	if err != nil {
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snapshot})
}

// PromoteAlternativeRequest selects a fuzzy-match alternative.
type PromoteAlternativeRequest struct {
	AlternativeID string `json:"alternative_id" binding:"required"`
}

// PromoteAlternative handles POST /api/v1/session/promote-alternative
func (h *Handlers) PromoteAlternative(c *gin.Context) {
	var req PromoteAlternativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "alternative_id is required"})
		return
	}

	snapshot, err := h.session.PromoteAlternative(req.AlternativeID)
	if err != nil {
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snapshot})
}

// SaveDocument handles POST /api/v1/session/save
func (h *Handlers) SaveDocument(c *gin.Context) {
	outcome, err := h.session.Save(c.Request.Context())
	if err != nil {
		h.logger.Error("Save failed", zap.Error(err))
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// DiscardDocument handles POST /api/v1/session/discard
func (h *Handlers) DiscardDocument(c *gin.Context) {
	if err := h.session.Discard(); err != nil {
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// RetrySession handles POST /api/v1/session/retry
func (h *Handlers) RetrySession(c *gin.Context) {
	if err := h.session.Retry(); err != nil {
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// StartBatch handles POST /api/v1/batch/:kind
func (h *Handlers) StartBatch(c *gin.Context) {
	job, err := h.batch.Start(c.Request.Context(), c.Param("kind"))
	if err != nil {
		if errors.Is(err, batch.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true, Data: job})
}

// BatchStatus handles GET /api/v1/batch/:kind
func (h *Handlers) BatchStatus(c *gin.Context) {
	job, err := h.batch.Status(c.Request.Context(), c.Param("kind"))
	if err != nil {
		h.logger.Error("Failed to load batch status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load batch status"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "no batch job of this kind"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: job})
}

// CancelBatch handles DELETE /api/v1/batch/:kind
func (h *Handlers) CancelBatch(c *gin.Context) {
	if !h.batch.Cancel(c.Param("kind")) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "no running batch job of this kind"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListSubscriptions handles GET /api/v1/subscriptions
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	subscriptions, err := h.subscriptions.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.logger.Error("Failed to list subscriptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list subscriptions"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: subscriptions})
}

// ExportExpenses handles GET /api/v1/export/expenses
func (h *Handlers) ExportExpenses(c *gin.Context) {
	from, to, err := exportRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	workbook, err := h.exporter.ExpensesWorkbook(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("Expense export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "export failed"})
		return
	}
	defer workbook.Close()

	fileName := fmt.Sprintf("expenses_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, fileName))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream workbook", zap.Error(err))
	}
}

// exportRange parses the from/to query parameters, defaulting to the
// current calendar month.
func exportRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	var err error
	if fromStr != "" {
		if from, err = time.Parse("2006-01-02", fromStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", fromStr)
		}
	}
	if toStr != "" {
		if to, err = time.Parse("2006-01-02", toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", toStr)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date precedes from date")
	}
	return from, to, nil
}
