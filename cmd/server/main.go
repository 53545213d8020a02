package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appidentity "github.com/pulsecdp/backend/internal/application/identity"
	"github.com/pulsecdp/backend/internal/application/ingest"
	appscoring "github.com/pulsecdp/backend/internal/application/scoring"
	appsyncjob "github.com/pulsecdp/backend/internal/application/syncjob"
	"github.com/pulsecdp/backend/internal/domain/scoring"
	"github.com/pulsecdp/backend/internal/domain/segment"
	"github.com/pulsecdp/backend/internal/infrastructure/cache"
	"github.com/pulsecdp/backend/internal/infrastructure/config"
	"github.com/pulsecdp/backend/internal/infrastructure/destination"
	"github.com/pulsecdp/backend/internal/infrastructure/logger"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence"
	"github.com/pulsecdp/backend/internal/infrastructure/scheduler"
	"github.com/pulsecdp/backend/internal/infrastructure/telemetry"
	"github.com/pulsecdp/backend/internal/infrastructure/worker"
	"github.com/pulsecdp/backend/internal/interfaces/http/handler"
	"github.com/pulsecdp/backend/internal/interfaces/http/middleware"
	"github.com/pulsecdp/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting pulsecdp backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	log.Info("database connected")

	// Repositories
	eventRepo := persistence.NewGormEventRepository(db.DB)
	identityRepo := persistence.NewGormIdentityRepository(db.DB)
	userRepo := persistence.NewGormUnifiedUserRepository(db.DB)
	segmentRepo := persistence.NewGormSegmentRepository(db.DB)
	destinationRepo := persistence.NewGormDestinationRepository(db.DB)
	jobRepo := persistence.NewGormSyncJobRepository(db.DB)
	merger := persistence.NewGormMerger(db.DB)
	pipelineStatsRepo := persistence.NewGormPipelineStatsRepository(db.DB)

	// Scoring policy: stock stage/order mappings, weights from config
	policy := scoring.DefaultPolicy()
	policy.Version = cfg.Scoring.PolicyVersion
	policy.RecencyWeight = cfg.Scoring.RecencyWeight
	policy.DepthWeight = cfg.Scoring.DepthWeight
	policy.FrequencyWeight = cfg.Scoring.FrequencyWeight
	policy.LookbackDays = cfg.Scoring.LookbackDays
	policy.ShortWindowDays = cfg.Scoring.ShortWindowDays
	policy.FrequencyTarget = cfg.Scoring.FrequencyTarget

	engine, err := scoring.NewEngine(policy)
	if err != nil {
		log.Fatal("invalid scoring policy", zap.Error(err))
	}

	// Duplicate fast path; the store admit stays authoritative either way
	var duplicates ingest.DuplicateChecker
	var dedupeCloser interface{ Close() error }
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisDedupeCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.DedupeTTL)
		if err != nil {
			log.Warn("redis unavailable, using in-memory dedupe cache", zap.Error(err))
		} else {
			duplicates = redisCache
			dedupeCloser = redisCache
			log.Info("redis dedupe cache connected", zap.String("addr", cfg.Redis.Addr()))
		}
	}
	if duplicates == nil {
		memCache := cache.NewInMemoryDedupeCache(cfg.Redis.DedupeTTL)
		duplicates = memCache
		dedupeCloser = memCache
	}
	defer func() {
		if err := dedupeCloser.Close(); err != nil {
			log.Error("error closing dedupe cache", zap.Error(err))
		}
	}()

	// Application services
	resolutionService := appidentity.NewResolutionService(identityRepo, userRepo, eventRepo, merger, log)
	profileService := appidentity.NewProfileService(userRepo, identityRepo, eventRepo, segmentRepo, log)
	scoreService := appscoring.NewScoreService(engine, segment.NewClassifier(), eventRepo, userRepo, segmentRepo, log)
	queueService := appsyncjob.NewQueueService(jobRepo, destinationRepo, log)
	statsService := appsyncjob.NewStatsService(jobRepo, destinationRepo, pipelineStatsRepo, log)
	deliveryService := appsyncjob.NewDeliveryService(jobRepo, destinationRepo, destination.NewDefaultRegistry(), cfg.Worker.ClaimLease, log)
	ingestService := ingest.NewIngestService(eventRepo, resolutionService, scoreService, queueService, segmentRepo, duplicates, log)

	// Telemetry
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	pipelineMetrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		log.Warn("pipeline metrics disabled", zap.Error(err))
		pipelineMetrics = nil
	}

	// Background delivery workers
	var pool *worker.Pool
	if cfg.Worker.Enabled {
		pool = worker.NewPool(deliveryService, jobRepo, worker.PoolConfig{
			Workers:           cfg.Worker.Workers,
			PollInterval:      cfg.Worker.PollInterval,
			PerDestinationCap: cfg.Worker.PerDestinationCap,
			CleanupEnabled:    cfg.Scheduler.CleanupEnabled,
			CleanupRetention:  cfg.Scheduler.CleanupRetention,
			CleanupInterval:   cfg.Scheduler.CleanupInterval,
		}, log)
		if err := pool.Start(rootCtx); err != nil {
			log.Fatal("failed to start worker pool", zap.Error(err))
		}
		log.Info("worker pool started", zap.Int("workers", cfg.Worker.Workers))
	}

	// Score decay and lease recovery
	var maintenance *scheduler.Maintenance
	if cfg.Scheduler.Enabled {
		maintenance = scheduler.NewMaintenance(scoreService, jobRepo, scheduler.MaintenanceConfig{
			DecayInterval:     cfg.Scheduler.DecayInterval,
			DecayStaleAfter:   cfg.Scheduler.DecayStaleAfter,
			DecayBatchSize:    cfg.Scheduler.DecayBatchSize,
			LeaseReapInterval: cfg.Scheduler.LeaseReapInterval,
		}, log)
		if err := maintenance.Start(rootCtx); err != nil {
			log.Fatal("failed to start maintenance scheduler", zap.Error(err))
		}
		log.Info("maintenance scheduler started")
	}

	// HTTP layer
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engineHTTP := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engineHTTP.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("failed to set trusted proxies", zap.Error(err))
		}
	}

	engineHTTP.Use(logger.RequestID())
	engineHTTP.Use(logger.Recovery(log))
	engineHTTP.Use(logger.GinMiddleware(log))
	engineHTTP.Use(middleware.Workspace(middleware.DefaultWorkspaceConfig()))

	engineHTTP.GET("/health", healthHandler(db))

	eventHandler := handler.NewEventHandler(ingestService, pipelineMetrics)
	profileHandler := handler.NewProfileHandler(profileService)
	syncAdminHandler := handler.NewSyncAdminHandler(statsService)
	opsHandler := handler.NewOpsHandler(scoreService, deliveryService)

	eventRoutes := router.NewDomainGroup("events", "/events")
	eventRoutes.POST("", eventHandler.Ingest)

	userRoutes := router.NewDomainGroup("users", "/users")
	userRoutes.GET("/:id", profileHandler.Get)
	userRoutes.DELETE("/:id", profileHandler.Delete)

	statsRoutes := router.NewDomainGroup("stats", "/stats")
	statsRoutes.GET("/queue", syncAdminHandler.QueueStats)
	statsRoutes.GET("/jobs", syncAdminHandler.RecentJobs)
	statsRoutes.GET("/pipeline", syncAdminHandler.PipelineStats)

	destinationRoutes := router.NewDomainGroup("destinations", "/destinations")
	destinationRoutes.GET("", syncAdminHandler.ListDestinations)
	destinationRoutes.POST("", syncAdminHandler.RegisterDestination)
	destinationRoutes.PUT("/:id/enabled", syncAdminHandler.SetEnabled)

	opsRoutes := router.NewDomainGroup("ops", "/ops")
	opsRoutes.POST("/recompute", opsHandler.Recompute)
	opsRoutes.POST("/drain", opsHandler.Drain)

	router.NewRouter(engineHTTP, router.WithAPIVersion("v1")).
		Register(eventRoutes).
		Register(userRoutes).
		Register(statsRoutes).
		Register(destinationRoutes).
		Register(opsRoutes).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engineHTTP,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop intake first, then drain background workers
	if maintenance != nil {
		if err := maintenance.Stop(shutdownCtx); err != nil {
			log.Error("maintenance scheduler shutdown failed", zap.Error(err))
		}
	}
	if pool != nil {
		if err := pool.Stop(shutdownCtx); err != nil {
			log.Error("worker pool shutdown failed", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry shutdown failed", zap.Error(err))
	}

	log.Info("server exited gracefully")
}

func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
