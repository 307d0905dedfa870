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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-records-api/api/swagger"
	"github.com/noah-isme/campus-records-api/internal/handler"
	"github.com/noah-isme/campus-records-api/internal/middleware"
	"github.com/noah-isme/campus-records-api/internal/models"
	"github.com/noah-isme/campus-records-api/internal/repository"
	"github.com/noah-isme/campus-records-api/internal/service"
	"github.com/noah-isme/campus-records-api/pkg/cache"
	"github.com/noah-isme/campus-records-api/pkg/config"
	"github.com/noah-isme/campus-records-api/pkg/database"
	"github.com/noah-isme/campus-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-records-api/pkg/middleware/requestid"
)

// @title Campus Records API
// @version 1.0.0
// @description Submission, review and statistics for student achievement records
// @BasePath /api
// @schemes http

type categoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, category *models.Category) error
}

type auditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		records    service.RecordStore
		categories categoryStore
		audit      auditSink
		pingers    = map[string]handler.Pinger{}
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		logr.Warn("using in-memory record store; data is lost on restart")
		records = repository.NewMemoryRecordStore()
		categories = repository.NewMemoryCategoryStore()
	default:
		db, err := database.Open(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		}
		defer db.Close()
		if cfg.Database.AutoMigrate || cfg.Database.Driver == config.DriverSQLite {
			if err := database.EnsureSchema(ctx, db); err != nil {
				logr.Fatal("failed to apply schema", zap.Error(err))
			}
		}
		records = repository.NewRecordRepository(db)
		categories = repository.NewCategoryRepository(db)
		audit = repository.NewAuditRepository(db)
		pingers["database"] = db
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Records.StatsCacheTTL, logr, cfg.Records.StatsCacheEnabled)
		pingers["redis"] = redisPinger{client: redisClient}
	}

	if audit != nil {
		dispatcher := service.NewAuditDispatcher(audit, cfg.Records.AuditWorkers, cfg.Records.AuditBuffer, logr)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		audit = dispatcher
	}

	validate := validator.New()
	policy := service.NewAccessPolicy(nil)
	categorySvc := service.NewCategoryService(categories, policy, audit, validate, logr)
	if cfg.Records.CategorySeedFile != "" {
		seed, err := repository.LoadCategorySeed(cfg.Records.CategorySeedFile)
		if err != nil {
			logr.Fatal("failed to load category seed", zap.String("path", cfg.Records.CategorySeedFile), zap.Error(err))
		}
		inserted, err := categorySvc.Seed(ctx, seed)
		if err != nil {
			logr.Fatal("failed to seed categories", zap.Error(err))
		}
		logr.Info("category seed applied", zap.Int("inserted", inserted), zap.Int("total", len(seed)))
	}

	registry := service.NewDefaultRecordRegistry(validate, categorySvc)
	recordSvc := service.NewRecordService(records, registry, policy, logr,
		service.WithRecordAudit(audit),
		service.WithRecordCache(cacheSvc),
		service.WithRecordMetrics(metricsSvc),
		service.WithRecordPaging(cfg.Records.DefaultPageSize, cfg.Records.MaxPageSize),
		service.WithMaxBulkDelete(cfg.Records.MaxBulkDelete),
	)
	statsSvc := service.NewStatisticsService(records, registry, cacheSvc, metricsSvc, logr, cfg.Records.StatsCacheTTL)

	recordHandler := handler.NewRecordHandler(recordSvc, statsSvc, nil, policy)
	if cfg.Records.ExportEnabled {
		recordHandler = handler.NewRecordHandler(recordSvc, statsSvc, service.NewExportService(records, registry, policy, logr), policy)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, pingers, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.AuditOrigin())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Records:    recordHandler,
		Categories: handler.NewCategoryHandler(categorySvc),
		Auth:       middleware.JWT(service.NewTokenVerifier(cfg.JWT)),
		Kinds:      registry.Kinds(),
	}.Register(r.Group(cfg.APIPrefix))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
