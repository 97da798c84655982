package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
)

type generatorStub struct {
	id    string
	err   error
	calls int
}

func (g *generatorStub) GenerateStored(context.Context, string, string, models.GenerationOptions) (string, error) {
	g.calls++
	return g.id, g.err
}

func queuedJob(repo *jobRepoStub, id string) {
	repo.jobs[id] = &models.GenerationJob{
		ID:        id,
		Semester:  "2025-前期",
		CatalogID: "cat-1",
		Options:   tinyOptions(),
		Status:    models.GenerationStatusQueued,
	}
}

func TestGenerationWorkerFinishesJob(t *testing.T) {
	repo := newJobRepoStub()
	queuedJob(repo, "job-1")
	worker := NewGenerationWorker(repo, &generatorStub{id: "tt-9"}, 2, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: GenerationJobType}))

	job := repo.jobs["job-1"]
	assert.Equal(t, models.GenerationStatusFinished, job.Status)
	require.NotNil(t, job.TimetableID)
	assert.Equal(t, "tt-9", *job.TimetableID)
	require.NotNil(t, job.FinishedAt)
	require.NotNil(t, job.ErrorMessage)
	assert.Empty(t, *job.ErrorMessage)
}

func TestGenerationWorkerRetriesThenFails(t *testing.T) {
	repo := newJobRepoStub()
	queuedJob(repo, "job-1")
	gen := &generatorStub{err: errors.New("catalog vanished")}
	worker := NewGenerationWorker(repo, gen, 1, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.Error(t, err)
	job := repo.jobs["job-1"]
	assert.Equal(t, models.GenerationStatusQueued, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "catalog vanished", *job.ErrorMessage)
	assert.Nil(t, job.FinishedAt)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.GenerationStatusFailed, job.Status)
	assert.NotNil(t, job.FinishedAt)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	assert.Equal(t, 2, gen.calls)
}

func TestGenerationWorkerGiveUp(t *testing.T) {
	repo := newJobRepoStub()
	queuedJob(repo, "job-1")
	repo.jobs["job-1"].Status = models.GenerationStatusProcessing
	worker := NewGenerationWorker(repo, &generatorStub{}, 0, nil)

	worker.GiveUp(jobs.Job{ID: "job-1"}, context.DeadlineExceeded)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.GenerationStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, context.DeadlineExceeded.Error(), *job.ErrorMessage)

	finished := "tt-1"
	queuedJob(repo, "job-2")
	repo.jobs["job-2"].Status = models.GenerationStatusFinished
	repo.jobs["job-2"].TimetableID = &finished
	worker.GiveUp(jobs.Job{ID: "job-2"}, errors.New("late"))
	assert.Equal(t, models.GenerationStatusFinished, repo.jobs["job-2"].Status)
}

func TestGenerationWorkerEndToEnd(t *testing.T) {
	jobsRepo := newJobRepoStub()
	timetables := newTimetableRepoStub()
	tx, mock := newTxProviderMock(t)
	queue := &queueStub{}
	svc := NewTimetableService(TimetableDeps{
		Timetables: timetables,
		Catalogs:   catalogLoaderStub{"cat-1": tinyCatalog()},
		Jobs:       jobsRepo,
		Queue:      queue,
		Tx:         tx,
	}, TimetableServiceConfig{})
	worker := NewGenerationWorker(jobsRepo, svc, 0, nil)

	queuedJob(jobsRepo, "job-1")
	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	require.NoError(t, mock.ExpectationsWereMet())

	resp, err := svc.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusFinished, resp.Status)
	require.NotNil(t, resp.TimetableID)

	stored, err := svc.Get(context.Background(), *resp.TimetableID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Schedule.Count())
	assert.Equal(t, "2025-前期", stored.Semester)
}
