package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/clinical-clock-api/api/swagger"
	"github.com/noah-isme/clinical-clock-api/internal/breaker"
	"github.com/noah-isme/clinical-clock-api/internal/handler"
	"github.com/noah-isme/clinical-clock-api/internal/middleware"
	"github.com/noah-isme/clinical-clock-api/internal/models"
	"github.com/noah-isme/clinical-clock-api/internal/repository"
	"github.com/noah-isme/clinical-clock-api/internal/service"
	"github.com/noah-isme/clinical-clock-api/pkg/cache"
	"github.com/noah-isme/clinical-clock-api/pkg/config"
	"github.com/noah-isme/clinical-clock-api/pkg/database"
	"github.com/noah-isme/clinical-clock-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinical-clock-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinical-clock-api/pkg/middleware/requestid"
)

// @title Clinical Clock API
// @version 1.0.0
// @description Attendance clock-in/clock-out service for clinical rotations
// @BasePath /
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
		// The clock core degrades to uncached reads without Redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.StatusTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	attendanceRepo := repository.NewAttendanceRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cb := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
		OnStateChange:    metricsSvc.RecordBreakerState,
		Logger:           logr,
	})

	validate := validator.New()

	siteCacheSvc := service.NewSiteCacheService(siteRepo, cacheSvc, cfg.Cache.SiteTTL, cfg.Cache.KeyPrefix, logr)
	auditSvc := service.NewAuditService(auditRepo, cfg.Audit, logr)
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()

	clockSvc := service.NewClockService(attendanceRepo, siteCacheSvc, cb, cacheSvc, auditSvc, metricsSvc, validate, cfg.Clock, cfg.Geofence, cfg.Cache.KeyPrefix, logr)

	tokenSvc := service.NewTokenService(cfg.JWT)

	clockHandler := handler.NewClockHandler(clockSvc)
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
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	{
		attendance := api.Group("/attendance")
		attendance.POST("/clock-in", clockHandler.ClockIn)
		attendance.POST("/clock-out", clockHandler.ClockOut)
		attendance.GET("/status", clockHandler.Status)
		attendance.GET("/records",
			middleware.RequireRoles(string(models.RoleAdmin), string(models.RoleCoordinator), "SELF"),
			clockHandler.List,
		)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
