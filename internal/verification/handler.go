package verification

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
	"land-registry/verification-portal/verification-portal-backend/internal/auth"
	"land-registry/verification-portal/verification-portal-backend/internal/payments"
)

// Handler handles HTTP requests for verification operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new verification handler
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	verifications := router.Group("/verifications")
	{
		verifications.POST("", h.createVerification)
		verifications.GET("", h.listMyVerifications)
		verifications.GET("/:id", h.getVerification)

		verifications.POST("/:id/payments", h.recordPayment)
		verifications.POST("/:id/payments/refund", h.refundPayment)
		verifications.POST("/:id/payments/waive", h.waivePayment)

		verifications.POST("/:id/steps/:step/assign", h.assignOfficer)
		verifications.POST("/:id/steps/:step/complete", h.completeStep)
		verifications.POST("/:id/steps/:step/skip", h.skipStep)

		verifications.PUT("/:id/status", h.updateStatus)
		verifications.POST("/:id/score", h.computeScore)
		verifications.PATCH("/:id/scope", h.changeScope)
	}
}

type createVerificationRequest struct {
	LandID        string        `json:"land_id" binding:"required"`
	RequestType   RequestType   `json:"request_type" binding:"required"`
	Purpose       Purpose       `json:"purpose" binding:"required"`
	Urgency       Urgency       `json:"urgency"`
	Scope         *Scope        `json:"scope"`
	ClientDetails ClientDetails `json:"client_details"`
}

type paymentRequest struct {
	Amount    int64           `json:"amount" binding:"required"`
	Method    payments.Method `json:"method" binding:"required"`
	Reference string          `json:"reference"`
}

type refundRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type assignRequest struct {
	OfficerID uuid.UUID `json:"officer_id" binding:"required"`
}

type completeStepRequest struct {
	Notes        string   `json:"notes"`
	Deliverables []string `json:"deliverables"`
}

type updateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// createVerification handles POST /api/v1/verifications
func (h *Handler) createVerification(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionCreateVerification)
	if !ok {
		return
	}

	var req createVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Urgency == "" {
		req.Urgency = UrgencyStandard
	}

	v, err := h.service.CreateVerification(c.Request.Context(), CreateRequest{
		LandID:        req.LandID,
		RequestedBy:   actor.ID,
		RequestType:   req.RequestType,
		Purpose:       req.Purpose,
		Urgency:       req.Urgency,
		Scope:         req.Scope,
		ClientDetails: req.ClientDetails,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create verification")
		return
	}
	c.JSON(http.StatusCreated, v)
}

// listMyVerifications handles GET /api/v1/verifications
func (h *Handler) listMyVerifications(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionViewVerification)
	if !ok {
		return
	}

	list, err := h.service.ListMyVerifications(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err, "Failed to list verifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": list, "count": len(list)})
}

// getVerification handles GET /api/v1/verifications/:id
func (h *Handler) getVerification(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionViewVerification)
	if !ok {
		return
	}

	v, err := h.service.GetVerification(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.respondError(c, err, "Failed to get verification")
		return
	}
	c.JSON(http.StatusOK, v)
}

// recordPayment handles POST /api/v1/verifications/:id/payments
func (h *Handler) recordPayment(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionRecordPayment)
	if !ok {
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := h.service.RecordPayment(c.Request.Context(), c.Param("id"), PaymentRequest{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
	}, actor)
	if err != nil {
		h.respondError(c, err, "Failed to record payment")
		return
	}
	c.JSON(http.StatusOK, ledger)
}

// refundPayment handles POST /api/v1/verifications/:id/payments/refund
func (h *Handler) refundPayment(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionRefundPayment)
	if !ok {
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := h.service.RefundPayment(c.Request.Context(), c.Param("id"), req.Amount, req.Reason, actor)
	if err != nil {
		h.respondError(c, err, "Failed to refund payment")
		return
	}
	c.JSON(http.StatusOK, ledger)
}

// waivePayment handles POST /api/v1/verifications/:id/payments/waive
func (h *Handler) waivePayment(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionWaivePayment)
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := h.service.WaivePayment(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		h.respondError(c, err, "Failed to waive payment")
		return
	}
	c.JSON(http.StatusOK, ledger)
}

// assignOfficer handles POST /api/v1/verifications/:id/steps/:step/assign
func (h *Handler) assignOfficer(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionAssignOfficer)
	if !ok {
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.service.AssignOfficer(c.Request.Context(), c.Param("id"), StepName(c.Param("step")), req.OfficerID, actor)
	if err != nil {
		h.respondError(c, err, "Failed to assign officer")
		return
	}
	c.JSON(http.StatusOK, step)
}

// completeStep handles POST /api/v1/verifications/:id/steps/:step/complete
func (h *Handler) completeStep(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionCompleteStep)
	if !ok {
		return
	}

	var req completeStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.service.CompleteStep(c.Request.Context(), c.Param("id"), StepName(c.Param("step")), req.Notes, req.Deliverables, actor)
	if err != nil {
		h.respondError(c, err, "Failed to complete step")
		return
	}
	c.JSON(http.StatusOK, step)
}

// skipStep handles POST /api/v1/verifications/:id/steps/:step/skip
func (h *Handler) skipStep(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionSkipStep)
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.service.SkipStep(c.Request.Context(), c.Param("id"), StepName(c.Param("step")), req.Reason, actor)
	if err != nil {
		h.respondError(c, err, "Failed to skip step")
		return
	}
	c.JSON(http.StatusOK, step)
}

// updateStatus handles PUT /api/v1/verifications/:id/status
func (h *Handler) updateStatus(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionUpdateStatus)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes, actor)
	if err != nil {
		h.respondError(c, err, "Failed to update status")
		return
	}
	c.JSON(http.StatusOK, v)
}

// computeScore handles POST /api/v1/verifications/:id/score
func (h *Handler) computeScore(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionComputeScore)
	if !ok {
		return
	}

	results, err := h.service.ComputeScore(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.respondError(c, err, "Failed to compute score")
		return
	}
	c.JSON(http.StatusOK, results)
}

// changeScope handles PATCH /api/v1/verifications/:id/scope
func (h *Handler) changeScope(c *gin.Context) {
	actor, ok := h.authorize(c, auth.ActionChangeScope)
	if !ok {
		return
	}

	var scope Scope
	if err := c.ShouldBindJSON(&scope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.service.ChangeScope(c.Request.Context(), c.Param("id"), scope, actor)
	if err != nil {
		h.respondError(c, err, "Failed to change scope")
		return
	}
	c.JSON(http.StatusOK, v)
}

// authorize extracts the authenticated principal and checks its role
// against the action's capability. Writes the response itself on failure.
func (h *Handler) authorize(c *gin.Context, action auth.Action) (auth.Principal, bool) {
	actor, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return auth.Principal{}, false
	}
	if !auth.HasPermission(actor.Role, action) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return auth.Principal{}, false
	}
	return actor, true
}

// respondError maps domain error kinds onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidAmount), errors.Is(err, apperr.ErrInvalidScope),
		errors.Is(err, apperr.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrPreconditionFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrPaymentRequired):
		status = http.StatusPaymentRequired
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err), zap.String("verification_id", c.Param("id")))
	} else {
		h.logger.Warn(msg, zap.Error(err), zap.String("verification_id", c.Param("id")))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
