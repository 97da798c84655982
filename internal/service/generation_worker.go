package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
)

type storedGenerator interface {
	GenerateStored(ctx context.Context, semester, catalogID string, opts models.GenerationOptions) (string, error)
}

// GenerationWorker bridges queue jobs to TimetableService.GenerateStored.
type GenerationWorker struct {
	repo       generationJobStore
	generator  storedGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewGenerationWorker constructs a worker. maxRetries must match the queue's
// MaxRetries so the final attempt is recognised.
func NewGenerationWorker(repo generationJobStore, generator storedGenerator, maxRetries int, logger *zap.Logger) *GenerationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GenerationWorker{
		repo:       repo,
		generator:  generator,
		logger:     logger.Named("generation_worker"),
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *GenerationWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.GenerationStatusFinished || record.Status == models.GenerationStatusFailed {
		w.logger.Debug("skipping settled generation job", zap.String("job_id", job.ID), zap.String("status", string(record.Status)))
		return nil
	}
	processing := models.GenerationStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{Status: &processing}); err != nil {
		return err
	}

	started := time.Now()
	timetableID, err := w.generator.GenerateStored(ctx, record.Semester, record.CatalogID, record.Options)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			w.markFailed(ctx, job.ID, msg)
		} else {
			queued := models.GenerationStatusQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}

	finished := models.GenerationStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{
		Status:       &finished,
		TimetableID:  &timetableID,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.logger.Info("generation job finished",
		zap.String("job_id", job.ID),
		zap.String("timetable_id", timetableID),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// GiveUp is the queue's give-up hook. It settles jobs whose last attempt
// could not record its own failure, e.g. because the attempt timed out.
func (w *GenerationWorker) GiveUp(job jobs.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		w.logger.Warn("failed to load abandoned job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if record.Status == models.GenerationStatusFailed || record.Status == models.GenerationStatusFinished {
		return
	}
	w.markFailed(ctx, job.ID, cause.Error())
}

func (w *GenerationWorker) markFailed(ctx context.Context, jobID, msg string) {
	failed := models.GenerationStatusFailed
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, jobID, repository.UpdateGenerationJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
