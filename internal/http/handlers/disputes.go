package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/http/middleware"
	"github.com/dispute_triage/backend/internal/models"
	"github.com/dispute_triage/backend/internal/service"
)

type DisputeRequest struct {
	Description      string  `json:"description" validate:"required,max=5000"`
	Amount           float64 `json:"amount" validate:"gte=0,lt=100000000"`
	MerchantCategory string  `json:"merchant_category" validate:"required,max=100"`
}

type SubmitResponse struct {
	Case     models.DisputeCase  `json:"case"`
	Analysis models.RiskAnalysis `json:"analysis"`
}

type MessageRequest struct {
	Message        string `json:"message" validate:"required,max=5000"`
	IsInternalNote bool   `json:"is_internal_note"`
}

// @Summary Preview a verdict
// @Description Classify a dispute without storing it
// @Tags disputes
// @Accept json
// @Produce json
// @Param body body DisputeRequest true "Dispute"
// @Success 200 {object} models.Verdict
// @Failure 400 {object} map[string]any
// @Router /api/analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	var req DisputeRequest
	if !h.bind(c, &req) {
		return
	}
	v := h.Classifier.Analyze(c.Request.Context(), ai.DisputeInput{
		Text:     req.Description,
		Amount:   req.Amount,
		Category: req.MerchantCategory,
	})
	c.JSON(http.StatusOK, v)
}

// @Summary Submit a dispute
// @Description Classify, route and store a new dispute case
// @Tags disputes
// @Accept json
// @Produce json
// @Param X-User-Id header int false "Customer id"
// @Param body body DisputeRequest true "Dispute"
// @Success 201 {object} SubmitResponse
// @Failure 400 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /api/disputes [post]
func (h *Handler) SubmitDispute(c *gin.Context) {
	var req DisputeRequest
	if !h.bind(c, &req) {
		return
	}
	sub := service.SubmitRequest{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.MerchantCategory,
	}
	if u, ok := middleware.CurrentUser(c); ok {
		sub.CustomerID = &u.ID
	}

	created, analysis, err := h.Triage.Submit(c.Request.Context(), sub)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "TRIAGE_ERROR", "Failed to submit dispute", err.Error())
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordTriage(string(created.Priority), created.RoutingReason)
	}
	c.JSON(http.StatusCreated, SubmitResponse{Case: created, Analysis: analysis})
}

// @Summary My disputes
// @Tags disputes
// @Produce json
// @Param X-User-Id header int true "Customer id"
// @Success 200 {object} map[string]any
// @Router /api/disputes [get]
func (h *Handler) MyDisputes(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	items, err := h.Store.ListCustomerCases(c.Request.Context(), u.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list disputes", err.Error())
		return
	}
	if items == nil {
		items = []models.DisputeCase{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Dispute details
// @Description Case, analysis and conversation. Internal notes are shown to ops only.
// @Tags disputes
// @Produce json
// @Param X-User-Id header int true "User id"
// @Param id path int true "Case id"
// @Success 200 {object} models.CaseDetails
// @Failure 403 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/disputes/{id} [get]
func (h *Handler) DisputeDetails(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	ops := middleware.IsOps(c)
	details, err := h.Store.GetCaseDetails(c.Request.Context(), id, ops)
	if err != nil {
		if isNotFound(err) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Case not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get case", err.Error())
		return
	}
	if !canView(c, details.Case) {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Not allowed to view this case", nil)
		return
	}
	c.JSON(http.StatusOK, details)
}

// @Summary Post a message
// @Description Add a chat message to a case. Only ops may post internal notes.
// @Tags disputes
// @Accept json
// @Produce json
// @Param X-User-Id header int true "User id"
// @Param id path int true "Case id"
// @Param body body MessageRequest true "Message"
// @Success 201 {object} models.ChatMessage
// @Failure 403 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/disputes/{id}/messages [post]
func (h *Handler) PostMessage(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	var req MessageRequest
	if !h.bind(c, &req) {
		return
	}
	if req.IsInternalNote && !middleware.IsOps(c) {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Only ops may post internal notes", nil)
		return
	}

	dc, err := h.Store.GetCase(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Case not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get case", err.Error())
		return
	}
	if !canView(c, dc) {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Not allowed to post on this case", nil)
		return
	}

	u, _ := middleware.CurrentUser(c)
	msg, err := h.Store.AddMessage(c.Request.Context(), models.ChatMessage{
		CaseID:         id,
		SenderID:       u.ID,
		Message:        req.Message,
		IsInternalNote: req.IsInternalNote,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to add message", err.Error())
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// canView admits ops and the customer who filed the case.
func canView(c *gin.Context, dc models.DisputeCase) bool {
	if middleware.IsOps(c) {
		return true
	}
	u, ok := middleware.CurrentUser(c)
	return ok && dc.CustomerID != nil && *dc.CustomerID == u.ID
}
