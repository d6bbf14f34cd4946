package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-outpass-api/api/swagger"
	"github.com/noah-isme/campus-outpass-api/internal/handler"
	"github.com/noah-isme/campus-outpass-api/internal/middleware"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/internal/repository"
	"github.com/noah-isme/campus-outpass-api/internal/schedule"
	"github.com/noah-isme/campus-outpass-api/internal/service"
	"github.com/noah-isme/campus-outpass-api/pkg/cache"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	"github.com/noah-isme/campus-outpass-api/pkg/config"
	"github.com/noah-isme/campus-outpass-api/pkg/database"
	"github.com/noah-isme/campus-outpass-api/pkg/export"
	"github.com/noah-isme/campus-outpass-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-outpass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-outpass-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-outpass-api/pkg/notify"
	"github.com/noah-isme/campus-outpass-api/pkg/token"
)

// @title Campus Outpass API
// @version 1.0.0
// @description Exit-pass lifecycle, gate verification and kiosk activation for campus societies
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

	if err := schedule.Configure(cfg.Pass.DefaultReturnTime, cfg.Pass.Timezone); err != nil {
		logr.Sugar().Fatalw("invalid pass schedule settings", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, verify snapshot cache disabled", "error", err)
		cacheEnabled = false
	}
	var cacheSvc *service.CacheService
	if cacheEnabled {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Gate.SnapshotCacheTTL, logr, true)
		defer redisClient.Close()
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Gate.SnapshotCacheTTL, logr, false)
	}

	passRepo := repository.NewPassRepository(db)
	bulkRepo := repository.NewBulkRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	clk := clock.System{}
	codec := token.NewCodec(cfg.Pass.TokenSecret, token.KindSocietyPass)

	dispatcher := notify.NewDispatcher(logSender(logr), notify.DispatcherConfig{
		Workers:    cfg.Notification.Workers,
		BufferSize: cfg.Notification.BufferSize,
		MaxRetries: cfg.Notification.MaxRetries,
		RetryDelay: cfg.Notification.RetryDelay,
		Logger:     logr,
	})
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	authSvc := service.NewAuthService(cfg.JWT.Secret)
	eligibilitySvc := service.NewEligibilityService(userRepo, nil, clk, logr)
	issuer := service.NewTokenIssuer(codec, clk)
	lifecycleSvc := service.NewLifecycleService(passRepo, bulkRepo, userRepo, eligibilitySvc, issuer, nil, clk, logr)
	lateSvc := service.NewLateReturnService(dispatcher, metricsSvc, cfg.Escalation.FacultyThreshold, logr)
	gateSvc := service.NewGateService(passRepo, userRepo, auditRepo, codec, cacheSvc, metricsSvc, lateSvc, nil, clk, cfg.Gate.SnapshotCacheTTL, logr)
	activationSvc := service.NewActivationService(passRepo, auditRepo, metricsSvc, lateSvc, nil, clk, logr)

	passHandler := handler.NewPassHandler(lifecycleSvc)
	bulkHandler := handler.NewBulkHandler(lifecycleSvc, eligibilitySvc,
		export.NewCSVRenderer(), export.NewPDFRenderer(), cfg.Exports.Enabled)
	gateHandler := handler.NewGateHandler(gateSvc, activationSvc)
	flagHandler := handler.NewFlagHandler(eligibilitySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{Origins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.POST("/passes", middleware.RequireRoles(models.RoleStudent),
			middleware.Audit(logr, "pass.submit"), passHandler.Submit)
		api.GET("/passes", passHandler.List)
		api.GET("/passes/pending",
			middleware.RequireRoles(models.RoleEB, models.RolePresident, models.RoleFaculty, models.RoleAdmin),
			passHandler.Pending)
		api.GET("/passes/:id", passHandler.Get)
		api.POST("/passes/:id/decision",
			middleware.RequireRoles(models.RoleEB, models.RolePresident, models.RoleFaculty, models.RoleAdmin),
			middleware.Audit(logr, "pass.decide"), passHandler.Decide)

		api.POST("/bulk-requests", middleware.RequireRoles(models.RoleEB, models.RoleAdmin),
			middleware.Audit(logr, "bulk.submit"), bulkHandler.Submit)
		api.GET("/bulk-requests/selectable", middleware.RequireRoles(models.RoleEB, models.RoleAdmin), bulkHandler.Selectable)
		api.GET("/bulk-requests/:id",
			middleware.RequireRoles(models.RoleEB, models.RolePresident, models.RoleFaculty, models.RoleAdmin),
			bulkHandler.Get)
		api.POST("/bulk-requests/:id/decision",
			middleware.RequireRoles(models.RolePresident, models.RoleFaculty, models.RoleAdmin),
			middleware.Audit(logr, "bulk.decide"), bulkHandler.Decide)
		api.GET("/bulk-requests/:id/sheet",
			middleware.RequireRoles(models.RoleEB, models.RoleGuard, models.RoleFaculty, models.RoleAdmin),
			bulkHandler.Sheet)

		api.POST("/gate/verify", middleware.RequireRoles(models.RoleGuard, models.RoleAdmin), gateHandler.Verify)
		api.POST("/gate/check-in", middleware.RequireRoles(models.RoleGuard, models.RoleAdmin), gateHandler.CheckIn)
		api.POST("/kiosk/activate", middleware.RequireRoles(models.RoleStudent), gateHandler.Activate)

		api.POST("/users/:id/flag",
			middleware.RequireRoles(models.RoleEB, models.RoleFaculty, models.RoleAdmin),
			middleware.Audit(logr, "flag.set"), flagHandler.Set)
		api.DELETE("/users/:id/flag",
			middleware.RequireRoles(models.RoleEB, models.RoleFaculty, models.RoleAdmin),
			middleware.Audit(logr, "flag.clear"), flagHandler.Clear)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// logSender is the default escalation transport: structured log lines that
// downstream alerting picks up. Mail and push transports plug in here.
func logSender(logr *zap.Logger) notify.Sender {
	return notify.SenderFunc(func(ctx context.Context, notice notify.Notice) error {
		logr.Warn("late-return escalation",
			zap.String("audience", string(notice.Audience)),
			zap.String("society_id", notice.SocietyID),
			zap.String("student_id", notice.StudentID),
			zap.String("request_id", notice.RequestID),
			zap.Int("late_minutes", notice.LateMinutes),
			zap.String("message", notice.Message))
		return nil
	})
}
