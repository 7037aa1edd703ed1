package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"storesync/internal/client/shopify"
	"storesync/internal/config"
	cronrunner "storesync/internal/cron"
	"storesync/internal/db"
	"storesync/internal/events"
	"storesync/internal/handler"
	"storesync/internal/lease"
	"storesync/internal/limiter"
	"storesync/internal/logger"
	"storesync/internal/metrics"
	"storesync/internal/models"
	gormrepository "storesync/internal/repository/gorm"
	"storesync/internal/service"

	_ "storesync/docs"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfgPath := os.Getenv("STORESYNC_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("STORESYNC_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	var locker lease.Locker = lease.NewMemoryLocker()
	var hookLimiter limiter.Limiter = limiter.NewMemoryLimiter(cfg.Webhook.RateLimit, cfg.Webhook.RateWindow)
	var publisher events.Publisher = events.Noop{}
	readyChecks := map[string]func(context.Context) error{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		locker = lease.NewRedisLocker(rdb, cfg.Redis.KeyPrefix)
		hookLimiter = limiter.NewRedisLimiter(rdb, cfg.Redis.KeyPrefix, cfg.Webhook.RateLimit, cfg.Webhook.RateWindow)
		readyChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("redis lease and limiter enabled", zap.String("addr", cfg.Redis.Addr))
	}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	upstream := shopify.NewClient(&http.Client{Timeout: cfg.Upstream.Timeout}, shopify.Options{
		BaseURL:     cfg.Upstream.BaseURL,
		APIVersion:  cfg.Upstream.APIVersion,
		RatePerShop: cfg.Upstream.RatePerShop,
		Burst:       cfg.Upstream.BurstPerShop,
	})

	hub := service.NewAuditHub(64)
	audit := &service.AuditService{
		Logs:   store,
		Events: store,
		Checks: store,
		Hub:    hub,
		Retention: service.RetentionSettings{
			SyncLogDays:     cfg.Retention.SyncLogDays,
			CustomEventDays: cfg.Retention.CustomEventDays,
			CheckDays:       cfg.Retention.CheckDays,
		},
		Logger: logger,
	}
	reconciler := &service.Reconciler{Store: store, Logger: logger}
	syncService := &service.SyncService{
		Tenants:    store,
		Logs:       store,
		Reconciler: reconciler,
		Upstream:   upstream,
		Locker:     locker,
		Audit:      audit,
		Settings: service.SyncSettings{
			PageSize:    cfg.Sync.PageSize,
			MaxRecords:  cfg.Sync.MaxRecords,
			PageDelay:   cfg.Sync.PageDelay,
			MinInterval: cfg.Sync.MinInterval,
			LeaseTTL:    cfg.Sync.LeaseTTL,
			Retry: service.RetryPolicy{
				Attempts:  cfg.Sync.RetryAttempts,
				BaseDelay: cfg.Sync.RetryBaseDelay,
				MaxDelay:  cfg.Sync.RetryMaxDelay,
				Logger:    logger,
			},
		},
		Logger: logger,
	}
	scheduler := &service.Scheduler{
		Tenants: store,
		Syncer:  syncService,
		Settings: service.SchedulerSettings{
			BatchSize:      cfg.Scheduler.BatchSize,
			BatchDelay:     cfg.Scheduler.BatchDelay,
			InterTypeDelay: cfg.Scheduler.InterTypeDelay,
		},
		Logger: logger,
	}
	var carts *service.CartEventService
	if cfg.Abandonment.Enabled {
		carts = &service.CartEventService{
			Store:     store,
			Publisher: publisher,
			Settings: service.AbandonmentSettings{
				Delay:       cfg.Abandonment.Delay,
				BatchSize:   cfg.Abandonment.BatchSize,
				MaxAttempts: cfg.Abandonment.MaxAttempts,
			},
			Logger: logger,
		}
	}
	webhooks := &service.WebhookService{
		Tenants:      store,
		Limiter:      hookLimiter,
		Reconciler:   reconciler,
		Carts:        carts,
		Audit:        audit,
		SharedSecret: cfg.Webhook.SharedSecret,
		Validate:     validator.New(),
		Logger:       logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.RequestLogger(logger))

	(&handler.HealthHandler{DB: dbConn.Gorm, Checks: readyChecks}).Register(engine)
	(&handler.SyncHandler{Scheduler: scheduler, Audit: audit, ManualTimeout: cfg.Server.ManualSyncTimeout}).Register(engine)
	(&handler.SyncStreamHandler{Hub: hub, Logger: logger}).Register(engine)
	(&handler.WebhookHandler{Service: webhooks, MaxBodySize: cfg.Server.MaxWebhookBodySize, Logger: logger}).Register(engine)
	if cfg.Metrics.Enabled {
		(&handler.MetricsHandler{Path: cfg.Metrics.Path}).Register(engine)
	}
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	baseCtx, cancelBase := context.WithCancel(ctx)
	defer cancelBase()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, baseCtx)
		registerJobs(cronRunner, cfg, scheduler, audit, carts, logger)
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}

func registerJobs(runner *cronrunner.Runner, cfg config.Config, scheduler *service.Scheduler, audit *service.AuditService, carts *service.CartEventService, logger *zap.Logger) {
	tiers := []struct {
		name  string
		spec  string
		types []string
	}{
		{"sync_high_frequency", cfg.Cron.HighFrequency, []string{models.SyncTypeCustomers, models.SyncTypeOrders}},
		{"sync_medium_frequency", cfg.Cron.MediumFrequency, []string{models.SyncTypeProducts}},
	}
	for _, tier := range tiers {
		types := tier.types
		if _, err := runner.Add(tier.name, tier.spec, func(ctx context.Context) error {
			_, err := scheduler.RunTier(ctx, types)
			return err
		}); err != nil {
			logger.Warn("cron register failed", zap.String("job", tier.name), zap.Error(err))
		}
	}

	if _, err := runner.Add("retention_cleanup", cfg.Cron.Maintenance, func(ctx context.Context) error {
		_, err := audit.Cleanup(ctx, time.Now())
		return err
	}); err != nil {
		logger.Warn("cron register failed", zap.String("job", "retention_cleanup"), zap.Error(err))
	}

	if carts == nil {
		return
	}
	if _, err := runner.Add("abandonment_checks", cfg.Cron.AbandonmentCheck, func(ctx context.Context) error {
		res, err := carts.RunDueChecks(ctx)
		if res.Due > 0 {
			logger.Info("abandonment checks settled",
				zap.Int("due", res.Due),
				zap.Int("abandoned", res.Abandoned),
				zap.Int("converted", res.Converted),
				zap.Int("progressed", res.Progressed),
				zap.Int("failed", res.Failed),
			)
		}
		return err
	}); err != nil {
		logger.Warn("cron register failed", zap.String("job", "abandonment_checks"), zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
