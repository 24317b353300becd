package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/autoecole-dz/platform-api/api/swagger"
	"github.com/autoecole-dz/platform-api/internal/handler"
	"github.com/autoecole-dz/platform-api/internal/middleware"
	"github.com/autoecole-dz/platform-api/internal/repository"
	"github.com/autoecole-dz/platform-api/internal/router"
	"github.com/autoecole-dz/platform-api/internal/service"
	"github.com/autoecole-dz/platform-api/pkg/cache"
	"github.com/autoecole-dz/platform-api/pkg/config"
	"github.com/autoecole-dz/platform-api/pkg/database"
	"github.com/autoecole-dz/platform-api/pkg/export"
	"github.com/autoecole-dz/platform-api/pkg/logger"
	corsmiddleware "github.com/autoecole-dz/platform-api/pkg/middleware/cors"
	reqidmiddleware "github.com/autoecole-dz/platform-api/pkg/middleware/requestid"
	"github.com/autoecole-dz/platform-api/pkg/storage"
)

// @title AutoEcole DZ Platform API
// @version 1.0.0
// @description Driving school marketplace: enrollment lifecycle, document verification, sessions and quizzes
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
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	photoStore, err := storage.NewLocalStorage(cfg.Photos.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init photo storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Analytics.CacheTTL, logr, false)
	}

	notificationSvc := service.NewNotificationService(notificationRepo, cfg.Notifications, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "autoecole-dz",
	})
	schoolSvc := service.NewSchoolService(schoolRepo, photoStore, cfg.Photos, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, schoolRepo, userRepo, documentRepo, notificationSvc, userRepo, cacheSvc, metricsSvc, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, enrollmentRepo, enrollmentSvc, documentStore, signer, notificationSvc, userRepo, metricsSvc, cfg.Documents, logr)
	sessionSvc := service.NewSessionService(sessionRepo, enrollmentRepo, userRepo, notificationSvc, validate, logr)
	quizSvc := service.NewQuizService(quizRepo, enrollmentRepo, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, cfg.Analytics.CacheTTL, logr)
	exportSvc := service.NewExportService(enrollmentRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	teacherSvc := service.NewTeacherService(userRepo, validate, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	scheduler := cron.New()
	if cfg.Documents.CleanupSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Documents.CleanupSchedule, func() {
			removed, err := documentStore.CleanupOlderThan(cfg.Documents.CleanupAge)
			if err != nil {
				logr.Warn("document cleanup failed", zap.Error(err))
				return
			}
			purged, err := notificationSvc.PurgeOlderThan(context.Background(), cfg.Documents.CleanupAge)
			if err != nil {
				logr.Warn("notification cleanup failed", zap.Error(err))
			}
			logr.Info("cleanup finished",
				zap.Int("files_removed", len(removed)), zap.Int64("notifications_purged", purged))
		}); err != nil {
			logr.Sugar().Fatalw("invalid cleanup schedule", "error", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handlers := router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Schools:       handler.NewSchoolHandler(schoolSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc, documentSvc, sessionSvc),
		Manager:       handler.NewManagerHandler(enrollmentSvc, documentSvc, schoolSvc, analyticsSvc, exportSvc, teacherSvc),
		Sessions:      handler.NewSessionHandler(sessionSvc, schoolSvc),
		Quizzes:       handler.NewQuizHandler(quizSvc, schoolSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Documents:     handler.NewDocumentHandler(documentSvc, documentStore),
		Metrics:       handler.NewMetricsHandler(metricsSvc),
	}
	router.Register(r, cfg.APIPrefix, handlers, authSvc, userRepo)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
