package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/journeyman/marketplace-api/internal/service"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
	"github.com/journeyman/marketplace-api/pkg/response"
)

// PaymentHandler handles coin purchase endpoints.
type PaymentHandler struct {
	service *service.LedgerService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(svc *service.LedgerService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Create godoc
// @Summary Record a coin purchase
// @Description Inserts the payment and credits the buyer's coin balance in one transaction
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	payment, err := h.service.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"success": true, "payment": payment})
}

// ListByUser godoc
// @Summary List a user's payments
// @Description Payment history sorted by date descending
// @Tags Payments
// @Produce json
// @Param email path string true "User email"
// @Success 200 {object} response.Envelope
// @Router /payments/user/{email} [get]
func (h *PaymentHandler) ListByUser(c *gin.Context) {
	payments, err := h.service.ListPaymentsByUser(c.Request.Context(), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payments, nil)
}
