package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/college-timetable-api/api/swagger"
	"github.com/noah-isme/college-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/college-timetable-api/internal/middleware"
	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/cache"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/database"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/requestid"
)

// @title College Timetable API
// @version 1.0.0
// @description Semester timetable generation, storage and drag-and-drop editing.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			redisClient = client
		}
	}

	rules, err := scheduler.LoadRules(cfg.Scheduler.RulesFile)
	if err != nil {
		logr.Fatal("failed to load scheduling rules", zap.String("path", cfg.Scheduler.RulesFile), zap.Error(err))
	}
	for _, r := range rules.Reviewable() {
		logr.Warn("scheduling rule flagged for review", zap.String("rule_id", r.ID), zap.String("kind", string(r.Kind)), zap.String("teacher_id", r.TeacherID), zap.String("note", r.Note))
	}
	breaks, err := holiday.ParseBreaks(cfg.Holidays.CustomBreaks)
	if err != nil {
		logr.Fatal("invalid holiday breaks", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, service.CacheOptions{
		Namespace:  cfg.Cache.Namespace,
		DefaultTTL: cfg.Cache.TTL,
		Enabled:    cfg.Cache.Enabled && redisClient != nil,
	}, logr)

	catalogRepo := repository.NewCatalogRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	jobRepo := repository.NewGenerationJobRepository(db)

	holidaySvc := service.NewHolidayService(holiday.NewResolver(breaks...), cacheSvc, cfg.Holidays.CacheTTL, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, validate, logr)

	// The queue needs the worker and the worker needs the service, so the
	// dispatcher is bound after both exist.
	dispatcher := &lateDispatcher{}
	timetableSvc := service.NewTimetableService(service.TimetableDeps{
		Timetables: timetableRepo,
		Catalogs:   catalogSvc,
		Jobs:       jobRepo,
		Queue:      dispatcher,
		Tx:         db,
		Holidays:   holidaySvc,
		Cache:      cacheSvc,
		Metrics:    metricsSvc,
		Rules:      rules,
		Validator:  validate,
		Logger:     logr,
	}, service.TimetableServiceConfig{
		ProposalTTL: cfg.Scheduler.ProposalTTL,
		CacheTTL:    cfg.Cache.TTL,
		MaxPerWeek:  cfg.Scheduler.MaxSessionsPerWeek,
	})

	worker := service.NewGenerationWorker(jobRepo, timetableSvc, cfg.Scheduler.MaxRetries, logr)
	queue := jobs.NewQueue("generation", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: cfg.Scheduler.RetryDelay,
		JobTimeout: cfg.Scheduler.JobTimeout,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	dispatcher.queue = queue
	if err := metricsSvc.RegisterQueue("generation", queue.Stats); err != nil {
		logr.Warn("failed to register queue metrics", zap.Error(err))
	}
	queue.Start(ctx)
	defer queue.Stop()
	timetableSvc.RecoverPendingJobs(ctx)

	timetableHandler := handler.NewTimetableHandler(timetableSvc, cfg.APIPrefix)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	holidayHandler := handler.NewHolidayHandler(holidaySvc)
	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/system/metrics", metricsHandler.Snapshot)
	api.GET("/holidays", holidayHandler.List)

	catalogs := api.Group("/catalogs")
	catalogs.GET("", catalogHandler.List)
	catalogs.PUT("", catalogHandler.Upsert)
	catalogs.GET("/:id", catalogHandler.Get)
	catalogs.DELETE("/:id", catalogHandler.Delete)

	timetables := api.Group("/timetables")
	timetables.POST("/preview", timetableHandler.Preview)
	timetables.POST("/generate", timetableHandler.Generate)
	timetables.GET("/jobs/:id", timetableHandler.Job)
	timetables.GET("", timetableHandler.List)
	timetables.POST("", timetableHandler.Save)
	timetables.GET("/:id", timetableHandler.Get)
	timetables.DELETE("/:id", timetableHandler.Delete)
	timetables.POST("/:id/publish", timetableHandler.Publish)
	timetables.POST("/:id/moves/validate", timetableHandler.ValidateMove)
	timetables.POST("/:id/moves", timetableHandler.ApplyMove)
	timetables.GET("/:id/report", timetableHandler.Report)
	timetables.GET("/:id/audit", timetableHandler.Audit)
	timetables.GET("/:id/makeup", timetableHandler.Makeup)
	timetables.GET("/:id/ranking", timetableHandler.Ranking)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type lateDispatcher struct {
	queue *jobs.Queue
}

func (d *lateDispatcher) Enqueue(job jobs.Job) error {
	if d.queue == nil {
		return errors.New("generation queue not started")
	}
	return d.queue.Enqueue(job)
}
