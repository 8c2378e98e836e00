package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeyman/marketplace-api/internal/models"
)

func TestCreateWithSlotCommitsInsertAndDecrement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET required_workers = required_workers - 1, updated_at = $2 WHERE id = $1")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	submission := &models.Submission{
		TaskID:        "t1",
		WorkerEmail:   "worker@example.com",
		ClientEmail:   "client@example.com",
		PayableAmount: 5,
	}
	err := repo.CreateWithSlot(context.Background(), submission)
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)
	assert.Equal(t, models.SubmissionPending, submission.Status)
	assert.False(t, submission.CurrentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSlotRollsBackOnSlotFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE tasks SET required_workers").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateWithSlot(context.Background(), &models.Submission{
		TaskID:      "t1",
		WorkerEmail: "worker@example.com",
		ClientEmail: "client@example.com",
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusReturnsPreviousStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE submissions AS s")).
		WithArgs("s1", models.SubmissionApproved).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(models.SubmissionPending)))

	previous, err := repo.UpdateStatusReturningPrevious(context.Background(), "s1", models.SubmissionApproved)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, previous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusUnknownID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE submissions AS s")).
		WithArgs("missing", models.SubmissionRejected).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	_, err := repo.UpdateStatusReturningPrevious(context.Background(), "missing", models.SubmissionRejected)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionListByWorker(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "task_id", "task_title", "worker_email", "worker_name", "client_email", "payable_amount", "detail", "status", "current_date"}).
		AddRow("s1", "t1", "Label photos", "worker@example.com", "Worker", "client@example.com", int64(5), "done", string(models.SubmissionPending), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, task_id, task_title, worker_email, worker_name, client_email, payable_amount, detail, status, "current_date" FROM submissions WHERE 1=1 AND worker_email = $1 ORDER BY "current_date" ASC`)).
		WithArgs("worker@example.com").
		WillReturnRows(rows)

	submissions, err := repo.List(context.Background(), models.SubmissionFilter{WorkerEmail: "worker@example.com"})
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	assert.Equal(t, "s1", submissions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
