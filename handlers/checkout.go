package handlers

import (
	"context"
	"net/http"

	"daypass/models"
	"daypass/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckoutService is the part of checkout.Service the HTTP layer needs.
type CheckoutService interface {
	Create(ctx context.Context) (models.CheckoutView, error)
	Get(ctx context.Context, id string) (models.CheckoutView, error)
	SetDateTime(ctx context.Context, id, date, slot string) (models.CheckoutView, error)
	SetPickupAndCount(ctx context.Context, id, location string, adults, children int) (models.CheckoutView, error)
	SetAttractions(ctx context.Context, id string, ids []string) (models.CheckoutView, error)
	SetContact(ctx context.Context, id string, contact models.Contact) (models.CheckoutView, error)
	Next(ctx context.Context, id string) (models.CheckoutView, error)
	Back(ctx context.Context, id string) (models.CheckoutView, error)
	RetryPayment(ctx context.Context, id string) (models.CheckoutView, error)
	ConfirmPayment(ctx context.Context, id string, conf models.PaymentConfirmation) (models.CheckoutView, error)
	Refresh(ctx context.Context, id string) (models.CheckoutView, error)
	Abandon(ctx context.Context, id string) error
}

type CheckoutHandler struct {
	Service CheckoutService
	Logger  *zap.Logger
}

func NewCheckoutHandler(svc CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{Service: svc, Logger: logger}
}

type dateTimeRequest struct {
	Date     string `json:"date" binding:"required"`
	TimeSlot string `json:"timeSlot"`
}

type pickupRequest struct {
	PickupLocation string `json:"pickupLocation"`
	AdultCount     int    `json:"adultCount"`
	ChildCount     int    `json:"childCount"`
}

type addOnsRequest struct {
	AttractionIDs []string `json:"attractionIds"`
}

type confirmRequest struct {
	ProviderIntentID string                    `json:"providerIntentId" binding:"required"`
	Status           models.ConfirmationStatus `json:"status" binding:"required,oneof=succeeded requires_action error"`
	Message          string                    `json:"message"`
}

// bind decodes the JSON body and writes a 400 on failure.
func (h *CheckoutHandler) bind(c *gin.Context, logger *zap.Logger, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("Invalid checkout request", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, logger, http.StatusBadRequest, KindValidation, "Invalid request", err.Error())
		return false
	}
	return true
}

// sessionError is an error response that also carries the saved session, so
// a failed step operation still returns the state the client should show.
type sessionError struct {
	utils.ErrorResponse
	Session *models.CheckoutView `json:"session,omitempty"`
}

func (h *CheckoutHandler) respond(c *gin.Context, logger *zap.Logger, status int, view models.CheckoutView, err error) {
	if err == nil {
		c.JSON(status, view)
		return
	}
	e := classify(err)
	if e.status >= http.StatusInternalServerError || e.kind == KindAmbiguous {
		logger.Error("Checkout operation failed", zap.String("kind", e.kind), zap.Error(err))
	} else {
		logger.Warn("Checkout operation refused", zap.String("kind", e.kind), zap.Error(err))
	}
	body := sessionError{ErrorResponse: utils.ErrorResponse{Error: e.title, Message: e.message, Kind: e.kind}}
	if view.SessionID != "" {
		body.Session = &view
	}
	c.AbortWithStatusJSON(e.status, body)
}

// CreateSessionHandler handles POST /api/checkout/sessions.
func (h *CheckoutHandler) CreateSessionHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	view, err := h.Service.Create(c.Request.Context())
	h.respond(c, logger, http.StatusCreated, view, err)
}

// GetSessionHandler handles GET /api/checkout/sessions/:id.
func (h *CheckoutHandler) GetSessionHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	view, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) SetDateTimeHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	var req dateTimeRequest
	if !h.bind(c, logger, &req) {
		return
	}
	view, err := h.Service.SetDateTime(c.Request.Context(), c.Param("id"), req.Date, req.TimeSlot)
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) SetPickupHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	var req pickupRequest
	if !h.bind(c, logger, &req) {
		return
	}
	view, err := h.Service.SetPickupAndCount(c.Request.Context(), c.Param("id"), req.PickupLocation, req.AdultCount, req.ChildCount)
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) SetAddOnsHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	var req addOnsRequest
	if !h.bind(c, logger, &req) {
		return
	}
	view, err := h.Service.SetAttractions(c.Request.Context(), c.Param("id"), req.AttractionIDs)
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) SetContactHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	var req models.Contact
	if !h.bind(c, logger, &req) {
		return
	}
	view, err := h.Service.SetContact(c.Request.Context(), c.Param("id"), req)
	h.respond(c, logger, http.StatusOK, view, err)
}

// NextStepHandler handles POST /api/checkout/sessions/:id/next.
func (h *CheckoutHandler) NextStepHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	view, err := h.Service.Next(c.Request.Context(), c.Param("id"))
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) PreviousStepHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	view, err := h.Service.Back(c.Request.Context(), c.Param("id"))
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) RetryPaymentHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	view, err := h.Service.RetryPayment(c.Request.Context(), c.Param("id"))
	h.respond(c, logger, http.StatusOK, view, err)
}

// ConfirmPaymentHandler handles POST /api/checkout/sessions/:id/payment/confirm
// with the status reported by the client-side confirmation.
func (h *CheckoutHandler) ConfirmPaymentHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	var req confirmRequest
	if !h.bind(c, logger, &req) {
		return
	}
	conf := models.PaymentConfirmation{
		ProviderIntentID: req.ProviderIntentID,
		Status:           req.Status,
		Message:          req.Message,
	}
	view, err := h.Service.ConfirmPayment(c.Request.Context(), c.Param("id"), conf)
	if err == nil && view.Booking != nil {
		logger.Info("Booking confirmed", zap.String("session", view.SessionID), zap.String("bookingId", view.Booking.Record.ID))
	}
	h.respond(c, logger, http.StatusOK, view, err)
}

func (h *CheckoutHandler) RefreshSessionHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	view, err := h.Service.Refresh(c.Request.Context(), c.Param("id"))
	h.respond(c, logger, http.StatusOK, view, err)
}

// AbandonSessionHandler handles DELETE /api/checkout/sessions/:id.
func (h *CheckoutHandler) AbandonSessionHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	if err := h.Service.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Checkout abandoned"})
}
