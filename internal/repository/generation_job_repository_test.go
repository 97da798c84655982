package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

var generationJobRowColumns = []string{"id", "semester", "catalog_id", "options", "status", "timetable_id", "created_at", "finished_at", "error_message"}

func TestGenerationJobRepositoryCreateAndGet(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGenerationJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generation_jobs")).
		WithArgs(sqlmock.AnyArg(), "2025-後期", "cat-1", sqlmock.AnyArg(), "QUEUED", nil, sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.GenerationJob{
		Semester:  "2025-後期",
		CatalogID: "cat-1",
		Options:   models.GenerationOptions{StartDate: "2025-10-01", EndDate: "2026-01-31", AvoidMonday: true},
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	rows := sqlmock.NewRows(generationJobRowColumns).
		AddRow(job.ID, "2025-後期", "cat-1", `{"startDate":"2025-10-01","endDate":"2026-01-31","avoidMonday":true}`, "QUEUED", nil, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusQueued, fetched.Status)
	assert.True(t, fetched.Options.AvoidMonday)
	assert.Nil(t, fetched.TimetableID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGenerationJobRepository(db)

	now := time.Now()
	status := models.GenerationStatusFinished
	timetableID := "tt-1"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE generation_jobs SET status = $1, timetable_id = $2, finished_at = $3 WHERE id = $4")).
		WithArgs(string(status), timetableID, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateGenerationJobParams{
		Status:      &status,
		TimetableID: &timetableID,
		FinishedAt:  &now,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateGenerationJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryListByStatus(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGenerationJobRepository(db)

	rows := sqlmock.NewRows(generationJobRowColumns).
		AddRow("job-1", "2025-後期", "cat-1", `{}`, "PROCESSING", nil, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2")).
		WithArgs(string(models.GenerationStatusProcessing), 20).
		WillReturnRows(rows)

	jobs, err := repo.ListByStatus(context.Background(), models.GenerationStatusProcessing, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
