package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/gradebook-api/api/swagger"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/pkg/cache"
	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/database"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
	"github.com/noah-isme/gradebook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradebook-api/pkg/middleware/requestid"
)

// @title Gradebook API
// @version 1.0.0
// @description Grade spreadsheet ingestion and analytics for the student dashboard
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	metricsSvc := service.NewMetricsService()
	progressStore := service.NewProgressStore(redisClient, cfg.Ingest.ProgressTTL)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		Expiration:         cfg.JWT.Expiration,
		AllowedEmailDomain: cfg.JWT.AllowedEmailDomain,
	})
	ingestSvc := service.NewIngestService(courseRepo, studentRepo, gradeRepo, uploadRepo, progressStore, metricsSvc, logr, service.IngestOptions{
		HeaderScanRows:  cfg.Ingest.HeaderScanRows,
		HeaderThreshold: cfg.Ingest.HeaderThreshold,
		LookupChunkSize: cfg.Ingest.LookupChunkSize,
		GradeChunkSize:  cfg.Ingest.GradeChunkSize,
	})
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, redisClient, cfg.Analytics.CacheTTL, logr)

	ingestQueue := jobs.NewQueue("ingest", func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.IngestJob)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		return ingestSvc.Process(ctx, payload)
	}, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Ingest.WorkerRetries,
		Logger:     logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingestQueue.Start(ctx)
	defer ingestQueue.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	uploadHandler := handler.NewUploadHandler(uploadRepo, progressStore, ingestQueue, cfg.Ingest.MaxFileSizeBytes)
	studentHandler := handler.NewStudentHandler(studentRepo)
	courseHandler := handler.NewCourseHandler(courseRepo)
	gradeHandler := handler.NewGradeHandler(gradeRepo)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/students", studentHandler.List)
		authed.GET("/students/:id", studentHandler.Get)
		authed.GET("/students/:id/grades", gradeHandler.ListByStudent)
		authed.GET("/courses", courseHandler.List)

		if cfg.Analytics.Enabled {
			authed.GET("/analytics/overview", analyticsHandler.Overview)
			authed.GET("/analytics/courses", analyticsHandler.CoursePassRates)
			authed.GET("/analytics/cohorts", analyticsHandler.CohortPassRates)
			authed.GET("/analytics/gpa", analyticsHandler.StudentGPAs)
			authed.GET("/analytics/export", analyticsHandler.Export)
		}

		admin := authed.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/uploads", uploadHandler.Create)
		}
		authed.GET("/uploads/:id", uploadHandler.Get)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
