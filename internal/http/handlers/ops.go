package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dispute_triage/backend/internal/http/middleware"
	"github.com/dispute_triage/backend/internal/models"
	"github.com/dispute_triage/backend/internal/service"
)

// @Summary Ops queue
// @Description High risk cases, CRITICAL cases and cases assigned to the caller, most urgent first
// @Tags ops
// @Produce json
// @Param X-User-Id header int true "Ops user id"
// @Success 200 {object} map[string]any
// @Router /api/ops/queue [get]
func (h *Handler) OpsQueue(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	items, err := h.Store.ListOpsQueue(c.Request.Context(), u.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load queue", err.Error())
		return
	}
	if items == nil {
		items = []models.QueueItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Ops insights
// @Tags ops
// @Produce json
// @Param X-User-Id header int true "Ops user id"
// @Success 200 {object} models.Insights
// @Router /api/ops/insights [get]
func (h *Handler) OpsInsights(c *gin.Context) {
	out, err := h.Store.Insights(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to compute insights", err.Error())
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Reroute a case
// @Description Apply priority and specialist routing again using the stored analysis
// @Tags ops
// @Produce json
// @Param X-User-Id header int true "Ops user id"
// @Param id path int true "Case id"
// @Success 200 {object} models.DisputeCase
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/ops/disputes/{id}/reroute [post]
func (h *Handler) Reroute(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	updated, err := h.Triage.Reroute(c.Request.Context(), id)
	if err != nil {
		switch {
		case isNotFound(err):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Case not found", nil)
		case errors.Is(err, service.ErrNoAnalysis):
			writeError(c, http.StatusConflict, "INVALID_STATE", "Case has no risk analysis", nil)
		default:
			writeError(c, http.StatusInternalServerError, "ROUTING_ERROR", "Failed to reroute", err.Error())
		}
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordTriage(string(updated.Priority), updated.RoutingReason)
	}
	c.JSON(http.StatusOK, updated)
}

// @Summary Seed demo disputes
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Success 200 {object} map[string]int
// @Router /api/admin/seed [post]
func (h *Handler) AdminSeed(c *gin.Context) {
	n, err := service.SeedDisputes(c.Request.Context(), h.Store)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to seed disputes", err.Error())
		return
	}
	h.Logger.Info().Int("created", n).Msg("disputes seeded")
	c.JSON(http.StatusOK, gin.H{"created": n})
}

// @Summary Set up specialist pools
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Success 200 {object} service.SetupReport
// @Router /api/admin/specialists [post]
func (h *Handler) AdminSpecialists(c *gin.Context) {
	report, err := service.SetupSpecialists(c.Request.Context(), h.Store)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to set up specialists", err.Error())
		return
	}
	h.Logger.Info().
		Strs("groups_created", report.GroupsCreated).
		Strs("users_created", report.UsersCreated).
		Msg("specialists ready")
	c.JSON(http.StatusOK, report)
}
