package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

const (
	testTaskID        = "0f8fad5b-d9cb-469f-a165-70867728950e"
	testSubmissionID  = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testSubmissionID2 = "16fd2706-8baf-433b-82eb-8c7fada847da"
)

type submissionRepoStub struct {
	submissions map[string]*models.Submission
	createErr   error
	updateErr   error
	deleted     []string
}

func (s *submissionRepoStub) CreateWithSlot(ctx context.Context, submission *models.Submission) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.submissions == nil {
		s.submissions = make(map[string]*models.Submission)
	}
	if submission.ID == "" {
		submission.ID = testSubmissionID
		if _, exists := s.submissions[submission.ID]; exists {
			submission.ID = testSubmissionID2
		}
	}
	s.submissions[submission.ID] = submission
	return nil
}

func (s *submissionRepoStub) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	submission, ok := s.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return submission, nil
}

func (s *submissionRepoStub) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var result []models.Submission
	for _, sub := range s.submissions {
		if filter.WorkerEmail != "" && sub.WorkerEmail != filter.WorkerEmail {
			continue
		}
		result = append(result, *sub)
	}
	return result, nil
}

func (s *submissionRepoStub) UpdateStatusReturningPrevious(ctx context.Context, id string, status models.SubmissionStatus) (models.SubmissionStatus, error) {
	if s.updateErr != nil {
		return "", s.updateErr
	}
	submission, ok := s.submissions[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	previous := submission.Status
	submission.Status = status
	return previous, nil
}

func (s *submissionRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.submissions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.submissions, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type ledgerStub struct {
	credits map[string]int64
	calls   int
	err     error
}

func (l *ledgerStub) CreditCoins(ctx context.Context, email string, amount int64) error {
	l.calls++
	if l.err != nil {
		return l.err
	}
	if l.credits == nil {
		l.credits = make(map[string]int64)
	}
	l.credits[email] += amount
	return nil
}

type slotStub struct {
	increments map[string]int
	err        error
}

func (s *slotStub) IncrementSlots(ctx context.Context, id string, n int) error {
	if s.err != nil {
		return s.err
	}
	if s.increments == nil {
		s.increments = make(map[string]int)
	}
	s.increments[id] += n
	return nil
}

func pendingSubmission() *models.Submission {
	return &models.Submission{
		ID:            testSubmissionID,
		TaskID:        testTaskID,
		WorkerEmail:   "worker@example.com",
		ClientEmail:   "client@example.com",
		PayableAmount: 7,
		Status:        models.SubmissionPending,
	}
}

func newSubmissionService(repo *submissionRepoStub, slots *slotStub, ledger *ledgerStub) *SubmissionService {
	return NewSubmissionService(repo, slots, ledger, nil, nil, nil, nil)
}

func TestSubmissionCreate(t *testing.T) {
	repo := &submissionRepoStub{}
	svc := newSubmissionService(repo, &slotStub{}, &ledgerStub{})

	result, err := svc.Create(context.Background(), CreateSubmissionRequest{
		TaskID:        testTaskID,
		WorkerEmail:   "worker@example.com",
		ClientEmail:   "client@example.com",
		PayableAmount: 5,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SubmissionID)

	stored := repo.submissions[result.SubmissionID]
	require.NotNil(t, stored)
	assert.Equal(t, models.SubmissionPending, stored.Status)
	assert.Equal(t, int64(5), stored.PayableAmount)
}

func TestSubmissionCreateRejectsMalformedTaskID(t *testing.T) {
	svc := newSubmissionService(&submissionRepoStub{}, &slotStub{}, &ledgerStub{})

	_, err := svc.Create(context.Background(), CreateSubmissionRequest{
		TaskID:      "not-a-uuid",
		WorkerEmail: "worker@example.com",
		ClientEmail: "client@example.com",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidID.Code, appErr.Code)
}

func TestSubmissionCreateCoercesGarbageAmount(t *testing.T) {
	repo := &submissionRepoStub{}
	svc := newSubmissionService(repo, &slotStub{}, &ledgerStub{})

	var req CreateSubmissionRequest
	payload := `{"task_id":"` + testTaskID + `","worker_email":"worker@example.com","client_email":"client@example.com","payable_amount":"not a number"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	result, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), repo.submissions[result.SubmissionID].PayableAmount)
}

func TestApprovePendingCreditsWorker(t *testing.T) {
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: pendingSubmission()}}
	ledger := &ledgerStub{}
	svc := newSubmissionService(repo, &slotStub{}, ledger)

	submission, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, submission.Status)
	assert.Equal(t, int64(7), ledger.credits["worker@example.com"])
	assert.Equal(t, 1, ledger.calls)
}

func TestReApproveDoesNotCreditTwice(t *testing.T) {
	submission := pendingSubmission()
	submission.Status = models.SubmissionApproved
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: submission}}
	ledger := &ledgerStub{}
	svc := newSubmissionService(repo, &slotStub{}, ledger)

	_, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.calls)
}

func TestRejectPendingFreesSlot(t *testing.T) {
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: pendingSubmission()}}
	slots := &slotStub{}
	svc := newSubmissionService(repo, slots, &ledgerStub{})

	_, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionRejected})
	require.NoError(t, err)
	assert.Equal(t, 1, slots.increments[testTaskID])
}

func TestRejectApprovedFreesNothing(t *testing.T) {
	submission := pendingSubmission()
	submission.Status = models.SubmissionApproved
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: submission}}
	slots := &slotStub{}
	ledger := &ledgerStub{}
	svc := newSubmissionService(repo, slots, ledger)

	_, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionRejected})
	require.NoError(t, err)
	assert.Empty(t, slots.increments)
	assert.Equal(t, 0, ledger.calls)
}

func TestApproveRejectedStillCredits(t *testing.T) {
	submission := pendingSubmission()
	submission.Status = models.SubmissionRejected
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: submission}}
	ledger := &ledgerStub{}
	svc := newSubmissionService(repo, &slotStub{}, ledger)

	_, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ledger.credits["worker@example.com"])
}

func TestSetStatusSucceedsWhenCreditFails(t *testing.T) {
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: pendingSubmission()}}
	ledger := &ledgerStub{err: errors.New("ledger unavailable")}
	svc := newSubmissionService(repo, &slotStub{}, ledger)

	submission, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, submission.Status)
}

func TestSetStatusRejectsPendingTarget(t *testing.T) {
	svc := newSubmissionService(&submissionRepoStub{}, &slotStub{}, &ledgerStub{})

	_, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionPending})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSetStatusMalformedID(t *testing.T) {
	svc := newSubmissionService(&submissionRepoStub{}, &slotStub{}, &ledgerStub{})

	_, err := svc.SetStatus(context.Background(), "nope", SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidID.Code, appErr.Code)
}

func TestSetStatusUnknownID(t *testing.T) {
	svc := newSubmissionService(&submissionRepoStub{}, &slotStub{}, &ledgerStub{})

	_, err := svc.SetStatus(context.Background(), testSubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

// slotCoupledSubmissionRepo mirrors the real repository's transactional
// coupling: creating a submission also decrements the task's slot counter.
type slotCoupledSubmissionRepo struct {
	submissionRepoStub
	tasks *taskRepoStub
}

func (r *slotCoupledSubmissionRepo) CreateWithSlot(ctx context.Context, submission *models.Submission) error {
	if err := r.submissionRepoStub.CreateWithSlot(ctx, submission); err != nil {
		return err
	}
	if task, ok := r.tasks.tasks[submission.TaskID]; ok {
		task.RequiredWorkers--
	}
	return nil
}

func newMarketplaceFixture(slots int) (*TaskService, *SubmissionService, *taskRepoStub, *ledgerStub, *cacheStub) {
	taskRepo := newTaskRepoStub()
	cache := newCacheStub()
	ledger := &ledgerStub{}
	subRepo := &slotCoupledSubmissionRepo{tasks: taskRepo}

	taskSvc := NewTaskService(taskRepo, cache, nil, time.Minute, nil, nil)
	subSvc := NewSubmissionService(subRepo, taskRepo, ledger, cache, nil, nil, nil)

	taskRepo.tasks[testTaskID] = &models.Task{
		ID:              testTaskID,
		ClientEmail:     "client@example.com",
		Title:           "Watch a video",
		RequiredWorkers: slots,
		PayableAmount:   10,
	}
	return taskSvc, subSvc, taskRepo, ledger, cache
}

func submissionFor(worker string) CreateSubmissionRequest {
	return CreateSubmissionRequest{
		TaskID:      testTaskID,
		WorkerEmail: worker,
		ClientEmail: "client@example.com",
	}
}

func TestTaskListSeesSlotConsumption(t *testing.T) {
	taskSvc, subSvc, _, _, cache := newMarketplaceFixture(3)
	filter := models.TaskFilter{Page: 1, PageSize: 20}

	tasks, _, err := taskSvc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3, tasks[0].RequiredWorkers)
	require.NotEmpty(t, cache.entries)

	created, err := subSvc.Create(context.Background(), submissionFor("worker@example.com"))
	require.NoError(t, err)

	tasks, _, err = taskSvc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, tasks[0].RequiredWorkers)

	// Approval does not move slot counts, so the cache may stand.
	_, err = subSvc.SetStatus(context.Background(), created.SubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)
	assert.NotEmpty(t, cache.entries)

	second, err := subSvc.Create(context.Background(), submissionFor("other@example.com"))
	require.NoError(t, err)
	_, err = subSvc.SetStatus(context.Background(), second.SubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionRejected})
	require.NoError(t, err)

	tasks, _, err = taskSvc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, tasks[0].RequiredWorkers)
}

func TestSubmissionLifecycleEndToEnd(t *testing.T) {
	_, subSvc, taskRepo, ledger, _ := newMarketplaceFixture(3)
	task := taskRepo.tasks[testTaskID]

	first, err := subSvc.Create(context.Background(), CreateSubmissionRequest{
		TaskID:        testTaskID,
		WorkerEmail:   "worker@example.com",
		ClientEmail:   "client@example.com",
		PayableAmount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, task.RequiredWorkers)

	_, err = subSvc.SetStatus(context.Background(), first.SubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(10), ledger.credits["worker@example.com"])
	assert.Equal(t, 2, task.RequiredWorkers)

	second, err := subSvc.Create(context.Background(), submissionFor("other@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, task.RequiredWorkers)

	_, err = subSvc.SetStatus(context.Background(), second.SubmissionID, SetSubmissionStatusRequest{Status: models.SubmissionRejected})
	require.NoError(t, err)
	assert.Equal(t, 2, task.RequiredWorkers)
	assert.Equal(t, 1, ledger.calls)
}

func TestSubmissionDeleteDoesNotTouchLedger(t *testing.T) {
	repo := &submissionRepoStub{submissions: map[string]*models.Submission{testSubmissionID: pendingSubmission()}}
	ledger := &ledgerStub{}
	slots := &slotStub{}
	svc := newSubmissionService(repo, slots, ledger)

	require.NoError(t, svc.Delete(context.Background(), testSubmissionID))
	assert.Equal(t, 0, ledger.calls)
	assert.Empty(t, slots.increments)
}
