package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
)

// GenerationJobType tags queue jobs produced by EnqueueGeneration.
const GenerationJobType = "timetable.generate"

type timetableStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.SemesterTimetable) error
	ListBySemester(ctx context.Context, semester string) ([]models.SemesterTimetableMeta, error)
	FindByID(ctx context.Context, id string) (*models.SemesterTimetable, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SemesterTimetable, error)
	UpdateEntries(ctx context.Context, exec sqlx.ExtContext, id string, entries, report types.JSONText, completion float64) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error
	Delete(ctx context.Context, id string) error
}

type catalogLoader interface {
	Load(ctx context.Context, id string) (models.Catalog, error)
}

type generationJobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateGenerationJobParams) error
	ListByStatus(ctx context.Context, status models.GenerationStatus, limit int) ([]models.GenerationJob, error)
}

type holidayDates interface {
	Dates(ctx context.Context, start, end string) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableServiceConfig governs generation defaults and caching.
type TimetableServiceConfig struct {
	ProposalTTL time.Duration
	CacheTTL    time.Duration
	MaxPerWeek  int
}

// TimetableService generates, stores and edits semester timetables.
type TimetableService struct {
	timetables timetableStore
	catalogs   catalogLoader
	jobs       generationJobStore
	queue      jobDispatcher
	tx         txProvider
	holidays   holidayDates
	cache      *CacheService
	metrics    *MetricsService
	rules      *scheduler.RuleBook
	allocator  *scheduler.Allocator
	moves      *scheduler.Validator
	validator  *validator.Validate
	logger     *zap.Logger
	store      *proposalStore
	cfg        TimetableServiceConfig
}

// TimetableDeps bundles collaborators of TimetableService. Queue, Jobs,
// Holidays, Cache and Metrics may be nil.
type TimetableDeps struct {
	Timetables timetableStore
	Catalogs   catalogLoader
	Jobs       generationJobStore
	Queue      jobDispatcher
	Tx         txProvider
	Holidays   holidayDates
	Cache      *CacheService
	Metrics    *MetricsService
	Rules      *scheduler.RuleBook
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewTimetableService wires the service.
func NewTimetableService(deps TimetableDeps, cfg TimetableServiceConfig) *TimetableService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Rules == nil {
		deps.Rules = scheduler.NewRuleBook(models.RuleTable{})
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	allocator := scheduler.NewAllocator(
		scheduler.WithRules(deps.Rules),
		scheduler.WithTracer(scheduler.NewZapTracer(deps.Logger)),
		scheduler.WithLogger(deps.Logger),
	)
	return &TimetableService{
		timetables: deps.Timetables,
		catalogs:   deps.Catalogs,
		jobs:       deps.Jobs,
		queue:      deps.Queue,
		tx:         deps.Tx,
		holidays:   deps.Holidays,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		rules:      deps.Rules,
		allocator:  allocator,
		moves:      scheduler.NewValidator(deps.Rules),
		validator:  deps.Validator,
		logger:     deps.Logger,
		store:      newProposalStore(cfg.ProposalTTL),
		cfg:        cfg,
	}
}

// Preview runs a generation and keeps the result as a proposal until it is
// saved or expires.
func (s *TimetableService) Preview(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	catalog, err := s.resolveCatalog(ctx, req)
	if err != nil {
		return nil, err
	}
	opts, err := s.prepareOptions(ctx, req.Options)
	if err != nil {
		return nil, err
	}
	result, err := s.run(ctx, "sync", catalog, opts)
	if err != nil {
		return nil, err
	}

	proposal := timetableProposal{
		ID:          uuid.NewString(),
		Semester:    req.Semester,
		Catalog:     catalog,
		Options:     opts,
		Result:      result,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	return &dto.TimetableProposal{
		ProposalID: proposal.ID,
		Semester:   proposal.Semester,
		Schedule:   result.Schedule,
		Report:     result.Report,
		Makeup:     result.Makeup,
		Ranking:    summarizeRanking(result.Ranking),
		Holidays:   result.Holidays,
		ExpiresAt:  proposal.RequestedAt.Add(s.store.ttl),
	}, nil
}

// Save persists a previewed proposal as the next draft version of its semester.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveProposalRequest) (*models.SemesterTimetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.ErrProposalExpired
	}
	record, err := s.persist(ctx, proposal.Semester, proposal.Catalog, proposal.Options, proposal.Result)
	if err != nil {
		return nil, err
	}
	s.store.Delete(req.ProposalID)
	return record, nil
}

// EnqueueGeneration records a generation job against a stored catalog and
// hands it to the background queue.
func (s *TimetableService) EnqueueGeneration(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	if req.CatalogID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "background generation requires a stored catalogId")
	}
	if s.jobs == nil || s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "background generation is not configured")
	}
	if _, err := s.catalogs.Load(ctx, req.CatalogID); err != nil {
		return nil, err
	}
	if _, err := scheduler.NewSemester(req.Options.StartDate, req.Options.EndDate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	job := &models.GenerationJob{
		Semester:  req.Semester,
		CatalogID: req.CatalogID,
		Options:   req.Options,
		Status:    models.GenerationStatusQueued,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: GenerationJobType}); err != nil {
		failed := models.GenerationStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.jobs.Update(ctx, job.ID, repository.UpdateGenerationJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}
	return jobResponse(job), nil
}

// GetJob returns the state of a background generation.
func (s *TimetableService) GetJob(ctx context.Context, id string) (*dto.GenerationJobResponse, error) {
	if s.jobs == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "background generation is not configured")
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	return jobResponse(job), nil
}

// RecoverPendingJobs requeues jobs that were queued or mid-flight when the
// process stopped.
func (s *TimetableService) RecoverPendingJobs(ctx context.Context) {
	if s.jobs == nil || s.queue == nil {
		return
	}
	for _, status := range []models.GenerationStatus{models.GenerationStatusProcessing, models.GenerationStatusQueued} {
		pending, err := s.jobs.ListByStatus(ctx, status, 50)
		if err != nil {
			s.logger.Warn("failed to list pending generation jobs", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		for _, job := range pending {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: GenerationJobType}); err != nil {
				s.logger.Warn("failed to requeue generation job", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}
}

// GenerateStored runs a generation for a stored catalog and saves the result.
// It backs the queue worker.
func (s *TimetableService) GenerateStored(ctx context.Context, semester, catalogID string, opts models.GenerationOptions) (string, error) {
	catalog, err := s.catalogs.Load(ctx, catalogID)
	if err != nil {
		return "", err
	}
	opts, err = s.prepareOptions(ctx, opts)
	if err != nil {
		return "", err
	}
	result, err := s.run(ctx, "async", catalog, opts)
	if err != nil {
		return "", err
	}
	record, err := s.persist(ctx, semester, catalog, opts, result)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// List returns timetable versions, newest first. An empty semester lists all.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.SemesterTimetableMeta, error) {
	list, err := s.timetables.ListBySemester(ctx, query.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	if list == nil {
		list = []models.SemesterTimetableMeta{}
	}
	return list, nil
}

// Get returns a stored timetable with decoded entries, read through the cache.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableResponse, error) {
	var resp dto.TimetableResponse
	_, err := s.cache.Remember(ctx, s.timetableKey(id), s.cfg.CacheTTL, &resp, func(ctx context.Context) (interface{}, error) {
		state, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return state.response(), nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a draft timetable. Published versions are kept.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidate(ctx, id)
	return nil
}

// Publish marks a draft as the semester's published version and archives the
// previously published one.
func (s *TimetableService) Publish(ctx context.Context, id string) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := s.timetables.FindForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock timetable")
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		err = appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be published")
		return err
	}

	versions, err := s.timetables.ListBySemester(ctx, record.Semester)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester versions")
		return err
	}
	for _, v := range versions {
		if v.ID == id || v.Status != models.TimetableStatusPublished {
			continue
		}
		if err = s.timetables.UpdateStatus(ctx, tx, v.ID, models.TimetableStatusArchived); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous version")
			return err
		}
		s.invalidate(ctx, v.ID)
	}
	if err = s.timetables.UpdateStatus(ctx, tx, id, models.TimetableStatusPublished); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish")
		return err
	}
	s.invalidate(ctx, id)
	s.logger.Info("timetable published", zap.String("timetable_id", id), zap.String("semester", record.Semester), zap.Int("version", record.Version))
	return nil
}

// ValidateMove judges a move against the stored timetable without changing it.
func (s *TimetableService) ValidateMove(ctx context.Context, id string, req dto.MoveEntryRequest) (*dto.MoveEntryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	result := s.moves.ValidateMove(state.moveState(), req.EntryID, req.Target)
	s.metrics.ObserveMove(string(result.Code), false)
	return &dto.MoveEntryResponse{MoveResult: result}, nil
}

// ApplyMove validates and applies a move under a row lock so concurrent edits
// of one timetable serialize. Rejected moves leave the timetable untouched.
func (s *TimetableService) ApplyMove(ctx context.Context, id string, req dto.MoveEntryRequest) (resp *dto.MoveEntryResponse, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := s.timetables.FindForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock timetable")
		return nil, err
	}
	if record.Status != models.TimetableStatusDraft {
		err = appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be edited")
		return nil, err
	}
	state, err := decodeTimetable(record)
	if err != nil {
		return nil, err
	}

	next, result := s.moves.ApplyMove(state.moveState(), req.EntryID, req.Target)
	s.metrics.ObserveMove(string(result.Code), result.Valid)
	if !result.Valid {
		err = appErrors.WithDetails(appErrors.Clone(appErrors.ErrMoveRejected, result.Reason), result)
		return nil, err
	}

	report := state.report
	report.Combos = scheduler.CheckCombos(next, state.catalog.Subjects)
	report.Conflicts = scheduler.AuditConflicts(next)
	entries, err := encodeJSON(next)
	if err != nil {
		return nil, err
	}
	reportJSON, err := encodeJSON(report)
	if err != nil {
		return nil, err
	}
	if err = s.timetables.UpdateEntries(ctx, tx, id, entries, reportJSON, report.Completion); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store moved entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit move")
		return nil, err
	}
	s.invalidate(ctx, id)

	now := time.Now().UTC()
	s.logger.Info("timetable entry moved",
		zap.String("timetable_id", id),
		zap.String("entry_id", req.EntryID),
		zap.Strings("moved", result.Moved),
	)
	return &dto.MoveEntryResponse{MoveResult: result, Applied: true, UpdatedAt: &now}, nil
}

// Report returns the stored generation report.
func (s *TimetableService) Report(ctx context.Context, id string) (*scheduler.Report, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &state.report, nil
}

// Audit recomputes combo consistency and double bookings from stored entries.
func (s *TimetableService) Audit(ctx context.Context, id string) (*dto.AuditResponse, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	conflicts := scheduler.AuditConflicts(state.schedule)
	if conflicts == nil {
		conflicts = []scheduler.Conflict{}
	}
	return &dto.AuditResponse{
		Combos:    scheduler.CheckCombos(state.schedule, state.catalog.Subjects),
		Conflicts: conflicts,
	}, nil
}

// Makeup plans makeup lessons for the timetable's semester.
func (s *TimetableService) Makeup(ctx context.Context, id string) ([]scheduler.MakeupPlan, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sem, err := scheduler.NewSemester(state.options.StartDate, state.options.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "stored options have an invalid semester")
	}
	plans := scheduler.PlanAllMakeup(s.rules, state.catalog.Teachers, sem, holidaySet(state.options))
	if plans == nil {
		plans = []scheduler.MakeupPlan{}
	}
	return plans, nil
}

// Ranking lists the timetable's teachers by placement priority.
func (s *TimetableService) Ranking(ctx context.Context, id string) ([]dto.RankedTeacherSummary, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sem, err := scheduler.NewSemester(state.options.StartDate, state.options.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "stored options have an invalid semester")
	}
	return summarizeRanking(scheduler.Rank(state.catalog.Teachers, s.rules, sem)), nil
}

func (s *TimetableService) resolveCatalog(ctx context.Context, req dto.GenerateTimetableRequest) (models.Catalog, error) {
	if req.Catalog != nil {
		if err := scheduler.ValidateCatalog(*req.Catalog); err != nil {
			return models.Catalog{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		return *req.Catalog, nil
	}
	if s.catalogs == nil {
		return models.Catalog{}, appErrors.Clone(appErrors.ErrValidation, "catalog is required")
	}
	return s.catalogs.Load(ctx, req.CatalogID)
}

// prepareOptions checks the semester bounds, applies the weekly cap default
// and folds configured school breaks into the holiday list.
func (s *TimetableService) prepareOptions(ctx context.Context, opts models.GenerationOptions) (models.GenerationOptions, error) {
	if err := s.validator.Struct(opts); err != nil {
		return opts, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation options")
	}
	if _, err := scheduler.NewSemester(opts.StartDate, opts.EndDate); err != nil {
		return opts, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if opts.MaxPerWeek <= 0 && s.cfg.MaxPerWeek > 0 {
		opts.MaxPerWeek = s.cfg.MaxPerWeek
	}
	if s.holidays != nil {
		dates, err := s.holidays.Dates(ctx, opts.StartDate, opts.EndDate)
		if err != nil {
			return opts, err
		}
		opts.Holidays = mergeDates(opts.Holidays, dates)
	}
	return opts, nil
}

func (s *TimetableService) run(ctx context.Context, mode string, catalog models.Catalog, opts models.GenerationOptions) (*scheduler.Result, error) {
	started := time.Now()
	result, err := s.allocator.Generate(ctx, catalog, opts)
	if err != nil {
		s.metrics.ObserveGeneration(mode, time.Since(started), 0, 0, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation was interrupted")
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	s.metrics.ObserveGeneration(mode, time.Since(started), result.Report.Required, result.Report.Placed, nil)
	return result, nil
}

func (s *TimetableService) persist(ctx context.Context, semester string, catalog models.Catalog, opts models.GenerationOptions, result *scheduler.Result) (record *models.SemesterTimetable, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	record = &models.SemesterTimetable{Semester: semester, Status: models.TimetableStatusDraft, Completion: result.Report.Completion}
	if record.Options, err = encodeJSON(opts); err != nil {
		return nil, err
	}
	if record.Catalog, err = encodeJSON(catalog); err != nil {
		return nil, err
	}
	if record.Entries, err = encodeJSON(result.Schedule); err != nil {
		return nil, err
	}
	if record.Report, err = encodeJSON(result.Report); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	start := time.Now()
	err = s.timetables.CreateVersioned(ctx, tx, record)
	s.metrics.ObserveDBQuery("timetable_create", time.Since(start))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}
	s.logger.Info("timetable saved",
		zap.String("timetable_id", record.ID),
		zap.String("semester", semester),
		zap.Int("version", record.Version),
		zap.Float64("completion", record.Completion),
	)
	return record, nil
}

func (s *TimetableService) find(ctx context.Context, id string) (*models.SemesterTimetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	start := time.Now()
	record, err := s.timetables.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("timetable_find", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) load(ctx context.Context, id string) (*timetableState, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeTimetable(record)
}

func (s *TimetableService) timetableKey(id string) string {
	return s.cache.Key("timetables", id)
}

func (s *TimetableService) invalidate(ctx context.Context, id string) {
	_ = s.cache.Invalidate(ctx, s.timetableKey(id))
}

// timetableState is a stored timetable with its JSON documents decoded.
type timetableState struct {
	record   *models.SemesterTimetable
	schedule models.Schedule
	catalog  models.Catalog
	options  models.GenerationOptions
	report   scheduler.Report
}

func decodeTimetable(record *models.SemesterTimetable) (*timetableState, error) {
	state := &timetableState{record: record}
	docs := []struct {
		name string
		raw  types.JSONText
		dest interface{}
	}{
		{"entries", record.Entries, &state.schedule},
		{"catalog", record.Catalog, &state.catalog},
		{"options", record.Options, &state.options},
		{"report", record.Report, &state.report},
	}
	for _, d := range docs {
		if len(d.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(d.raw, d.dest); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("stored timetable %s has an unreadable %s document", record.ID, d.name))
		}
	}
	if state.schedule == nil {
		state.schedule = models.Schedule{}
	}
	return state, nil
}

func (st *timetableState) moveState() scheduler.MoveState {
	return scheduler.MoveState{Schedule: st.schedule, Catalog: st.catalog, Options: st.options}
}

func (st *timetableState) response() dto.TimetableResponse {
	report := st.report
	return dto.TimetableResponse{
		ID:         st.record.ID,
		Semester:   st.record.Semester,
		Version:    st.record.Version,
		Status:     st.record.Status,
		Completion: st.record.Completion,
		Options:    st.options,
		Schedule:   st.schedule,
		Report:     &report,
		CreatedAt:  st.record.CreatedAt,
		UpdatedAt:  st.record.UpdatedAt,
	}
}

func encodeJSON(v interface{}) (types.JSONText, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable document")
	}
	return types.JSONText(raw), nil
}

func holidaySet(opts models.GenerationOptions) map[string]struct{} {
	set := make(map[string]struct{})
	for _, d := range holiday.InRange(opts.StartDate, opts.EndDate) {
		set[d] = struct{}{}
	}
	for _, d := range opts.Holidays {
		set[d] = struct{}{}
	}
	return set
}

func mergeDates(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, d := range list {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

func summarizeRanking(ranked []scheduler.RankedTeacher) []dto.RankedTeacherSummary {
	out := make([]dto.RankedTeacherSummary, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, dto.RankedTeacherSummary{
			TeacherID:  r.Teacher.ID,
			Name:       r.Teacher.Name,
			Priority:   r.Priority,
			FixedCount: len(r.FixedSchedule),
		})
	}
	return out
}

func jobResponse(job *models.GenerationJob) *dto.GenerationJobResponse {
	return &dto.GenerationJobResponse{
		ID:          job.ID,
		Semester:    job.Semester,
		Status:      job.Status,
		TimetableID: job.TimetableID,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		FinishedAt:  job.FinishedAt,
	}
}

type timetableProposal struct {
	ID          string
	Semester    string
	Catalog     models.Catalog
	Options     models.GenerationOptions
	Result      *scheduler.Result
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]timetableProposal),
	}
}

func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// evictExpired drops stale proposals; callers hold mu.
func (s *proposalStore) evictExpired() {
	for id, p := range s.items {
		if time.Since(p.RequestedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
