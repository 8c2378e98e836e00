package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

type taskRepoStub struct {
	tasks     map[string]*models.Task
	listCalls int
}

func newTaskRepoStub() *taskRepoStub {
	return &taskRepoStub{tasks: map[string]*models.Task{}}
}

func (s *taskRepoStub) Create(_ context.Context, task *models.Task) error {
	task.ID = testTaskID
	s.tasks[task.ID] = task
	return nil
}

func (s *taskRepoStub) FindByID(_ context.Context, id string) (*models.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (s *taskRepoStub) List(_ context.Context, _ models.TaskFilter) ([]models.Task, int, error) {
	s.listCalls++
	out := make([]models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *task)
	}
	return out, len(out), nil
}

func (s *taskRepoStub) Update(_ context.Context, task *models.Task) error {
	if _, ok := s.tasks[task.ID]; !ok {
		return sql.ErrNoRows
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *taskRepoStub) IncrementSlots(_ context.Context, id string, n int) error {
	task, ok := s.tasks[id]
	if !ok {
		return sql.ErrNoRows
	}
	task.RequiredWorkers += n
	return nil
}

func (s *taskRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := s.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.tasks, id)
	return nil
}

type cacheStub struct {
	entries map[string][]byte
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string][]byte{}}
}

func (c *cacheStub) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheStub) DeleteByPrefix(_ context.Context, prefix string) error {
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

type cacheObserverStub struct {
	hits   int
	misses int
}

func (o *cacheObserverStub) ObserveCache(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func validTaskRequest() CreateTaskRequest {
	return CreateTaskRequest{
		ClientEmail:     "client@example.com",
		Title:           "Watch a video",
		Detail:          "Watch and like",
		Category:        "social",
		RequiredWorkers: 5,
		PayableAmount:   models.CoinAmount(10),
	}
}

func TestTaskCreateRequiresPositiveSlots(t *testing.T) {
	svc := NewTaskService(newTaskRepoStub(), nil, nil, 0, nil, nil)

	req := validTaskRequest()
	req.RequiredWorkers = 0

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTaskListCachesSecondRead(t *testing.T) {
	repo := newTaskRepoStub()
	cache := newCacheStub()
	observer := &cacheObserverStub{}
	svc := NewTaskService(repo, cache, observer, time.Minute, nil, nil)

	_, err := svc.Create(context.Background(), validTaskRequest())
	require.NoError(t, err)

	filter := models.TaskFilter{Page: 1, PageSize: 20}

	tasks, pagination, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	tasks, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, observer.hits)
	assert.Equal(t, 1, observer.misses)
}

func TestTaskUpdateInvalidatesCache(t *testing.T) {
	repo := newTaskRepoStub()
	cache := newCacheStub()
	svc := NewTaskService(repo, cache, nil, time.Minute, nil, nil)

	created, err := svc.Create(context.Background(), validTaskRequest())
	require.NoError(t, err)

	filter := models.TaskFilter{Page: 1, PageSize: 20}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	title := "Watch two videos"
	updated, err := svc.Update(context.Background(), created.ID, UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Watch two videos", updated.Title)
	assert.Empty(t, cache.entries)
}

func TestTaskUpdateDoesNotTouchSlots(t *testing.T) {
	repo := newTaskRepoStub()
	svc := NewTaskService(repo, nil, nil, 0, nil, nil)

	created, err := svc.Create(context.Background(), validTaskRequest())
	require.NoError(t, err)

	amount := models.CoinAmount(25)
	updated, err := svc.Update(context.Background(), created.ID, UpdateTaskRequest{PayableAmount: &amount})
	require.NoError(t, err)

	assert.Equal(t, int64(25), updated.PayableAmount)
	assert.Equal(t, 5, updated.RequiredWorkers)
}

func TestTaskGetMalformedID(t *testing.T) {
	svc := NewTaskService(newTaskRepoStub(), nil, nil, 0, nil, nil)

	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidID.Code, appErr.Code)
}

func TestTaskDeleteUnknownID(t *testing.T) {
	svc := NewTaskService(newTaskRepoStub(), nil, nil, 0, nil, nil)

	err := svc.Delete(context.Background(), testTaskID)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
