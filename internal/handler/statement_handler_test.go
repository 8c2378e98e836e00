package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeyman/marketplace-api/internal/middleware"
	"github.com/journeyman/marketplace-api/internal/models"
	"github.com/journeyman/marketplace-api/internal/repository"
	"github.com/journeyman/marketplace-api/internal/service"
	"github.com/journeyman/marketplace-api/pkg/jobs"
	"github.com/journeyman/marketplace-api/pkg/storage"
)

type statementRepoMock struct {
	statements map[string]*models.Statement
}

func (m *statementRepoMock) Create(_ context.Context, statement *models.Statement) error {
	statement.ID = "st1"
	if m.statements == nil {
		m.statements = map[string]*models.Statement{}
	}
	copied := *statement
	m.statements[statement.ID] = &copied
	return nil
}

func (m *statementRepoMock) GetByID(_ context.Context, id string) (*models.Statement, error) {
	statement, ok := m.statements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *statement
	return &copied, nil
}

func (m *statementRepoMock) Update(_ context.Context, id string, params repository.UpdateStatementParams) error {
	statement, ok := m.statements[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		statement.Status = *params.Status
	}
	return nil
}

func (m *statementRepoMock) ListQueued(_ context.Context, _ int) ([]models.Statement, error) {
	return nil, nil
}

func (m *statementRepoMock) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.Statement, error) {
	return nil, nil
}

type paymentListerMock struct{}

func (m *paymentListerMock) ListPaymentsByUser(_ context.Context, _ string) ([]models.Payment, error) {
	return nil, nil
}

type enqueuerMock struct{ jobs []jobs.Job }

func (m *enqueuerMock) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func newStatementHandlerFixture(t *testing.T) (*StatementHandler, *statementRepoMock) {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	repo := &statementRepoMock{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := service.NewStatementService(repo, &paymentListerMock{}, &enqueuerMock{}, store, signer, nil, nil)
	return NewStatementHandler(svc), repo
}

func TestStatementHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newStatementHandlerFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"user_email": "worker@example.com", "format": "csv"})
	req, _ := http.NewRequest(http.MethodPost, "/statements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "worker@example.com", repo.statements["st1"].UserEmail)
}

func TestStatementHandlerCreateDefaultsEmailFromClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newStatementHandlerFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"format": "pdf"})
	req, _ := http.NewRequest(http.MethodPost, "/statements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "worker@example.com", Role: models.RoleWorker})

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "worker@example.com", repo.statements["st1"].UserEmail)
}

func TestStatementHandlerCreateNoEmailNoClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newStatementHandlerFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"format": "csv"})
	req, _ := http.NewRequest(http.MethodPost, "/statements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatementHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newStatementHandlerFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/statements/st9", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "st9"}}

	handler.Status(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
