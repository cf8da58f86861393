package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"procurement-service/internal/engine"
	"procurement-service/internal/middleware"
	"procurement-service/internal/repository"
	"procurement-service/internal/services"
)

// RequestHandler handles HTTP requests for purchase requests
type RequestHandler struct {
	service *services.RequestService
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(service *services.RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// statusForError maps service and engine errors onto HTTP statuses
func statusForError(err error) int {
	switch {
	case engine.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRequestNotFound), errors.Is(err, engine.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrDepartmentNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrOutOfOrder),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrRequestFrozen),
		errors.Is(err, engine.ErrStepAlreadyExists),
		errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "An internal error occurred"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// CreateRequest creates a new purchase request
// @Summary Create purchase request
// @Tags Requests
// @Accept json
// @Produce json
// @Param request body services.CreateRequestInput true "Create Request"
// @Success 201 {object} models.PurchaseRequest
// @Router /api/v1/purchase-requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var input services.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.service.CreateRequest(c.Request.Context(), input, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// GetRequest retrieves a purchase request by ID
// @Summary Get purchase request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.PurchaseRequest
// @Router /api/v1/purchase-requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	request, err := h.service.GetRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// DecideStep records a decision on one approval step
// @Summary Decide an approval step
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param kind path string true "Step kind (DEPT_MANAGER, IT, FINANCE, PURCHASING)"
// @Param request body map[string]string true "Decision and optional comment"
// @Success 200 {object} models.PurchaseRequest
// @Router /api/v1/purchase-requests/{id}/steps/{kind}/decision [post]
func (h *RequestHandler) DecideStep(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}
	stepKind := c.Param("kind")

	var body struct {
		Decision string `json:"decision" binding:"required"`
		Comment  string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}

	request, err := h.service.DecideStep(c.Request.Context(), id, stepKind, body.Decision, body.Comment, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// AddStep retrofits an approval step onto an existing request
// @Summary Add an approval step
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body map[string]string true "Step kind and optional initial status"
// @Success 200 {object} models.PurchaseRequest
// @Router /api/v1/purchase-requests/{id}/steps [post]
func (h *RequestHandler) AddStep(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var body struct {
		Kind          string `json:"kind" binding:"required"`
		InitialStatus string `json:"initialStatus"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind is required"})
		return
	}

	request, err := h.service.AddStep(c.Request.Context(), id, body.Kind, body.InitialStatus, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// CancelRequest cancels a request, or deletes it when called by an admin
// @Summary Cancel or delete a purchase request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} services.CancelOutcome
// @Router /api/v1/purchase-requests/{id} [delete]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	outcome, err := h.service.CancelOrDelete(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ListPendingRequests lists requests waiting on the caller's role
// @Summary List requests awaiting the caller's approval
// @Tags Requests
// @Produce json
// @Param status query string false "Status filter (PENDING, APPROVED, all)"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/purchase-requests/pending [get]
func (h *RequestHandler) ListPendingRequests(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	statusFilter := c.Query("status")
	limit, offset := pagination(c)

	requests, total, err := h.service.ListForApprover(c.Request.Context(), actor, statusFilter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   requests,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ListMyRequests lists requests submitted by the caller
// @Summary List my submitted requests
// @Tags Requests
// @Produce json
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/purchase-requests/my-requests [get]
func (h *RequestHandler) ListMyRequests(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	limit, offset := pagination(c)

	requests, total, err := h.service.ListMyRequests(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   requests,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetRequestHistory retrieves the audit history for a request
// @Summary Get request history
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {array} models.RequestAuditLog
// @Router /api/v1/purchase-requests/{id}/history [get]
func (h *RequestHandler) GetRequestHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	history, err := h.service.GetRequestHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// AddNote attaches a note to a request
// @Summary Add a note to a request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body map[string]string true "Note body"
// @Success 201 {object} models.RequestNote
// @Router /api/v1/purchase-requests/{id}/notes [post]
func (h *RequestHandler) AddNote(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var body struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	note, err := h.service.AddNote(c.Request.Context(), id, body.Body, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
