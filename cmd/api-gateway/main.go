package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sirama-krs-engine/internal/engine"
	"github.com/noah-isme/sirama-krs-engine/internal/handler"
	"github.com/noah-isme/sirama-krs-engine/internal/middleware"
	"github.com/noah-isme/sirama-krs-engine/internal/repository"
	"github.com/noah-isme/sirama-krs-engine/internal/service"
	"github.com/noah-isme/sirama-krs-engine/internal/sirama"
	"github.com/noah-isme/sirama-krs-engine/pkg/cache"
	"github.com/noah-isme/sirama-krs-engine/pkg/config"
	"github.com/noah-isme/sirama-krs-engine/pkg/crypto"
	"github.com/noah-isme/sirama-krs-engine/pkg/database"
	"github.com/noah-isme/sirama-krs-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sirama-krs-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sirama-krs-engine/pkg/middleware/requestid"
)

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
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
		redisClient = nil
	}

	vault, err := crypto.NewVault(cfg.Vault.EncryptionKey)
	if err != nil {
		logr.Sugar().Fatalw("failed to init credential vault", "error", err)
	}

	siramaClient := sirama.NewClient(sirama.FromAppConfig(cfg.Sirama), logr)

	accountRepo := repository.NewAccountRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	logRepo := repository.NewEnrollmentLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	recorder := service.NewEnrollmentRecorder(logRepo, metricsSvc, logr)

	sessions := engine.NewSessionManager(siramaClient, vault, logr)
	executor := engine.NewExecutor(siramaClient, logr)
	policy := engine.PolicyFromConfig(cfg.Engine)
	pipeline := engine.NewPipeline(sessions, executor, policy, recorder, logr)
	orchestrator := engine.NewOrchestrator(pipeline, recorder, cfg.Engine.ConcurrencyLimit, logr)

	accountSvc := service.NewAccountService(accountRepo, vault, nil, logr)
	targetSvc := service.NewTargetService(targetRepo, accountRepo, nil, logr)
	logSvc := service.NewLogService(logRepo, cacheRepo, cfg.Logs, logr)
	runSvc := service.NewRunService(accountRepo, targetRepo, orchestrator, sessions, executor, recorder, logSvc, metricsSvc, policy, nil, logr)

	accountHandler := handler.NewAccountHandler(accountSvc)
	targetHandler := handler.NewTargetHandler(targetSvc)
	runHandler := handler.NewRunHandler(runSvc)
	logHandler := handler.NewLogHandler(logSvc)
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
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Auth(cfg.Auth))
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", accountHandler.List)
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.Get)
			accounts.PUT("/:id", accountHandler.Update)
			accounts.PATCH("/:id/status", accountHandler.SetStatus)
			accounts.DELETE("/:id", accountHandler.Delete)

			accounts.GET("/:id/targets", targetHandler.ListByAccount)
			accounts.POST("/:id/targets", targetHandler.Create)
		}

		targets := api.Group("/targets")
		{
			targets.PUT("/:id", targetHandler.Update)
			targets.DELETE("/:id", targetHandler.Delete)
		}

		api.POST("/runs", runHandler.Trigger)
		api.POST("/drops", runHandler.Drop)

		logs := api.Group("/logs")
		{
			logs.GET("", logHandler.List)
			logs.GET("/stats", logHandler.Stats)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
