package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/journeyman/marketplace-api/internal/service"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
	"github.com/journeyman/marketplace-api/pkg/response"
)

// StatementHandler exposes async payment-statement export endpoints.
type StatementHandler struct {
	service *service.StatementService
}

// NewStatementHandler creates a new statement handler.
func NewStatementHandler(svc *service.StatementService) *StatementHandler {
	return &StatementHandler{service: svc}
}

// Create godoc
// @Summary Request a payment statement export
// @Description Queues an async CSV or PDF export of the user's payment history
// @Tags Statements
// @Accept json
// @Produce json
// @Param payload body service.CreateStatementRequest true "Statement payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /statements [post]
func (h *StatementHandler) Create(c *gin.Context) {
	var req service.CreateStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	// An authenticated caller may omit user_email; it defaults to their own.
	if req.UserEmail == "" {
		if claims := claimsFromContext(c); claims != nil {
			req.UserEmail = claims.Email
		}
	}

	statement, err := h.service.CreateJob(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, statement, nil)
}

// Status godoc
// @Summary Get statement job status
// @Tags Statements
// @Produce json
// @Param id path string true "Statement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statements/{id} [get]
func (h *StatementHandler) Status(c *gin.Context) {
	statement, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, statement, nil)
}

// Download godoc
// @Summary Download a generated statement
// @Description Streams the file referenced by a valid signed token
// @Tags Statements
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statements/download/{token} [get]
func (h *StatementHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+download.Filename+`"`)
	c.Header("Content-Type", download.ContentType)
	c.File(download.Path)
}
