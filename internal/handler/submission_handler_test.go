package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeyman/marketplace-api/internal/models"
	"github.com/journeyman/marketplace-api/internal/service"
)

const handlerSubmissionID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

type submissionRepoMock struct {
	submissions map[string]*models.Submission
	createErr   error
}

func newSubmissionRepoMock() *submissionRepoMock {
	return &submissionRepoMock{submissions: map[string]*models.Submission{}}
}

func (m *submissionRepoMock) CreateWithSlot(_ context.Context, submission *models.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	submission.ID = handlerSubmissionID
	m.submissions[submission.ID] = submission
	return nil
}

func (m *submissionRepoMock) FindByID(_ context.Context, id string) (*models.Submission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *submission
	return &copied, nil
}

func (m *submissionRepoMock) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range m.submissions {
		if filter.WorkerEmail != "" && s.WorkerEmail != filter.WorkerEmail {
			continue
		}
		if filter.ClientEmail != "" && s.ClientEmail != filter.ClientEmail {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *submissionRepoMock) UpdateStatusReturningPrevious(_ context.Context, id string, status models.SubmissionStatus) (models.SubmissionStatus, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	previous := submission.Status
	submission.Status = status
	return previous, nil
}

func (m *submissionRepoMock) Delete(_ context.Context, id string) error {
	if _, ok := m.submissions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.submissions, id)
	return nil
}

type slotTrackerMock struct{ calls int }

func (m *slotTrackerMock) IncrementSlots(_ context.Context, _ string, _ int) error {
	m.calls++
	return nil
}

type coinLedgerMock struct{ credited int64 }

func (m *coinLedgerMock) CreditCoins(_ context.Context, _ string, amount int64) error {
	m.credited += amount
	return nil
}

func newSubmissionHandlerFixture() (*SubmissionHandler, *submissionRepoMock, *coinLedgerMock) {
	repo := newSubmissionRepoMock()
	ledger := &coinLedgerMock{}
	svc := service.NewSubmissionService(repo, &slotTrackerMock{}, ledger, nil, nil, nil, nil)
	return NewSubmissionHandler(svc), repo, ledger
}

func TestSubmissionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, _ := newSubmissionHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{
		"task_id":        "0f8fad5b-d9cb-469f-a165-70867728950e",
		"worker_email":   "worker@example.com",
		"client_email":   "client@example.com",
		"payable_amount": 10,
	})
	req, _ := http.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data struct {
			SubmissionID string `json:"submissionId"`
			Success      bool   `json:"success"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Success)
	assert.Equal(t, handlerSubmissionID, envelope.Data.SubmissionID)
	assert.Contains(t, repo.submissions, handlerSubmissionID)
}

func TestSubmissionHandlerCreateGarbageAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, _ := newSubmissionHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload := `{"task_id":"0f8fad5b-d9cb-469f-a165-70867728950e","worker_email":"worker@example.com","client_email":"client@example.com","payable_amount":"lots"}`
	req, _ := http.NewRequest(http.MethodPost, "/submissions", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(0), repo.submissions[handlerSubmissionID].PayableAmount)
}

func TestSubmissionHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newSubmissionHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/submissions", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmissionHandlerSetStatusApproves(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, ledger := newSubmissionHandlerFixture()
	repo.submissions[handlerSubmissionID] = &models.Submission{
		ID:            handlerSubmissionID,
		TaskID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		WorkerEmail:   "worker@example.com",
		ClientEmail:   "client@example.com",
		PayableAmount: 7,
		Status:        models.SubmissionPending,
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"status": "approved"})
	req, _ := http.NewRequest(http.MethodPut, "/submissions/"+handlerSubmissionID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: handlerSubmissionID}}

	handler.SetStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), ledger.credited)

	var envelope struct {
		Data struct {
			Success    bool               `json:"success"`
			Submission *models.Submission `json:"submission"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Success)
	require.NotNil(t, envelope.Data.Submission)
	assert.Equal(t, models.SubmissionApproved, envelope.Data.Submission.Status)
}

func TestSubmissionHandlerSetStatusRejectsPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newSubmissionHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"status": "pending"})
	req, _ := http.NewRequest(http.MethodPut, "/submissions/"+handlerSubmissionID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: handlerSubmissionID}}

	handler.SetStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmissionHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newSubmissionHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/submissions/"+handlerSubmissionID, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: handlerSubmissionID}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionHandlerListByWorker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, _ := newSubmissionHandlerFixture()
	repo.submissions[handlerSubmissionID] = &models.Submission{
		ID:          handlerSubmissionID,
		WorkerEmail: "worker@example.com",
		Status:      models.SubmissionPending,
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/submissions/user/worker@example.com", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "email", Value: "worker@example.com"}}

	handler.ListByWorker(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "worker@example.com", envelope.Data[0].WorkerEmail)
}

func TestSubmissionHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, _ := newSubmissionHandlerFixture()
	repo.submissions[handlerSubmissionID] = &models.Submission{ID: handlerSubmissionID, Status: models.SubmissionPending}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/submissions/"+handlerSubmissionID, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: handlerSubmissionID}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.submissions)
}
