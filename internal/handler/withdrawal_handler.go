package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/journeyman/marketplace-api/internal/service"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
	"github.com/journeyman/marketplace-api/pkg/response"
)

// WithdrawalHandler handles cash-out request endpoints.
type WithdrawalHandler struct {
	service *service.WithdrawalService
}

// NewWithdrawalHandler creates a new withdrawal handler.
func NewWithdrawalHandler(svc *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{service: svc}
}

// Create godoc
// @Summary Request a withdrawal
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Param payload body service.CreateWithdrawalRequest true "Withdrawal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /withdrawals [post]
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req service.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	withdrawal, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, withdrawal)
}

// List godoc
// @Summary List all withdrawals
// @Tags Withdrawals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /withdrawals [get]
func (h *WithdrawalHandler) List(c *gin.Context) {
	withdrawals, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawals, nil)
}

// ListByWorker godoc
// @Summary List a worker's withdrawals
// @Tags Withdrawals
// @Produce json
// @Param email path string true "Worker email"
// @Success 200 {object} response.Envelope
// @Router /withdrawals/user/{email} [get]
func (h *WithdrawalHandler) ListByWorker(c *gin.Context) {
	withdrawals, err := h.service.ListByWorker(c.Request.Context(), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawals, nil)
}

// Get godoc
// @Summary Get withdrawal
// @Tags Withdrawals
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /withdrawals/{id} [get]
func (h *WithdrawalHandler) Get(c *gin.Context) {
	withdrawal, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawal, nil)
}

// SetStatus godoc
// @Summary Update withdrawal status
// @Description Changes the request status; the coin balance is not debited here
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Param payload body service.SetWithdrawalStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /withdrawals/{id} [put]
func (h *WithdrawalHandler) SetStatus(c *gin.Context) {
	var req service.SetWithdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	withdrawal, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawal, nil)
}

// Delete godoc
// @Summary Delete withdrawal
// @Tags Withdrawals
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Router /withdrawals/{id} [delete]
func (h *WithdrawalHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
