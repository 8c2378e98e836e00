package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/journeyman/marketplace-api/internal/models"
	"github.com/journeyman/marketplace-api/internal/service"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
	"github.com/journeyman/marketplace-api/pkg/response"
)

// SubmissionHandler exposes the submission lifecycle endpoints.
type SubmissionHandler struct {
	service *service.SubmissionService
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// Create godoc
// @Summary Submit work for a task
// @Description Creates a pending submission and consumes one task slot in the same transaction
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req service.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param task_id query string false "Task ID filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	filter := models.SubmissionFilter{TaskID: c.Query("task_id")}
	if status := c.Query("status"); status != "" {
		s := models.SubmissionStatus(status)
		filter.Status = &s
	}

	submissions, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submissions, nil)
}

// ListByWorker godoc
// @Summary List a worker's submissions
// @Tags Submissions
// @Produce json
// @Param email path string true "Worker email"
// @Success 200 {object} response.Envelope
// @Router /submissions/user/{email} [get]
func (h *SubmissionHandler) ListByWorker(c *gin.Context) {
	filter := models.SubmissionFilter{WorkerEmail: c.Param("email")}

	submissions, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submissions, nil)
}

// ListByClient godoc
// @Summary List submissions against a client's tasks
// @Tags Submissions
// @Produce json
// @Param email path string true "Client email"
// @Success 200 {object} response.Envelope
// @Router /submissions/client/{email} [get]
func (h *SubmissionHandler) ListByClient(c *gin.Context) {
	filter := models.SubmissionFilter{ClientEmail: c.Param("email")}

	submissions, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submissions, nil)
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submission, nil)
}

// SetStatus godoc
// @Summary Approve or reject a submission
// @Description Applies the status transition and its coin settlement side effects
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.SetSubmissionStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [put]
func (h *SubmissionHandler) SetStatus(c *gin.Context) {
	var req service.SetSubmissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	submission, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"success": true, "submission": submission}, nil)
}

// Delete godoc
// @Summary Delete submission
// @Description Removes the submission; coins and slots are never reversed
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
