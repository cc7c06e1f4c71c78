package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/db"
	"github.com/dispute_triage/backend/internal/metrics"
	"github.com/dispute_triage/backend/internal/models"
	"github.com/dispute_triage/backend/internal/service"
)

// Store is the persistence surface the handlers read from directly. Writes
// that need classification or routing go through the triage service.
type Store interface {
	Ping(ctx context.Context) error
	GetCase(ctx context.Context, id int64) (models.DisputeCase, error)
	GetCaseDetails(ctx context.Context, id int64, includeInternal bool) (models.CaseDetails, error)
	ListCustomerCases(ctx context.Context, customerID int64) ([]models.DisputeCase, error)
	ListOpsQueue(ctx context.Context, userID int64) ([]models.QueueItem, error)
	AddMessage(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error)
	Insights(ctx context.Context) (models.Insights, error)

	service.CaseCreator
	service.DirectoryAdmin
}

type Handler struct {
	Store      Store
	Triage     *service.TriageService
	Classifier ai.Classifier
	Metrics    *metrics.Metrics
	Validator  *validator.Validate
	Logger     zerolog.Logger
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes and validates a JSON body, writing the error response itself.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

func caseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid case id", nil)
		return 0, false
	}
	return id, true
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
