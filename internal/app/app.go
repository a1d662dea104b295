package app

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/controller"
	"algo_learn_backend/internal/judge"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/service"
	"algo_learn_backend/pkg/configwatcher"
	"algo_learn_backend/pkg/database"
	"algo_learn_backend/pkg/events"
	"algo_learn_backend/pkg/lock"
	"algo_learn_backend/pkg/logger"
	"algo_learn_backend/pkg/monitoring"
	"algo_learn_backend/pkg/security"
	"algo_learn_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Publisher       events.Publisher
	services        *services
	rateLimiter     *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	configDir       string
	configCallbacks []func(*config.Config)
	ctx             context.Context
	cancel          context.CancelFunc
}

type repositories struct {
	user        *repository.UserRepository
	progress    *repository.ProgressRepository
	module      *repository.ModuleRepository
	problem     *repository.ProblemRepository
	submission  *repository.SubmissionRepository
	hintUsage   *repository.HintUsageRepository
	streak      *repository.StreakRepository
	achievement *repository.AchievementRepository
}

type services struct {
	storage        *service.StorageService
	progression    *service.ProgressionService
	streak         *service.StreakService
	submission     *service.SubmissionService
	module         *service.ModuleService
	problem        *service.ProblemService
	recommendation *service.RecommendationService
	achievement    *service.AchievementService
	user           *service.UserService
	hub            *service.NotificationHub
	importer       *service.CatalogImporter
}

type controllers struct {
	health      *controller.HealthController
	module      *controller.ModuleController
	problem     *controller.ProblemController
	submission  *controller.SubmissionController
	progress    *controller.ProgressController
	achievement *controller.AchievementController
	admin       *controller.AdminController
	notify      *controller.NotificationController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		progress:    repository.NewProgressRepository(db),
		module:      repository.NewModuleRepository(db),
		problem:     repository.NewProblemRepository(db),
		submission:  repository.NewSubmissionRepository(db),
		hintUsage:   repository.NewHintUsageRepository(db),
		streak:      repository.NewStreakRepository(db),
		achievement: repository.NewAchievementRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	var locker lock.Locker = lock.NewMemoryLocker()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb)
	}

	s.storage = service.NewStorageService(cfg)

	s.progression = service.NewProgressionService(
		db,
		repos.user,
		repos.progress,
		repos.problem,
		repos.submission,
		repos.hintUsage,
		repos.streak,
		repos.achievement,
		nil,
		a.Publisher,
		cfg.Progression,
	)
	// TTL 随进度配置热更新
	cache := service.NewRecommendationCache(rdb, func() time.Duration {
		return s.progression.Settings().CacheTTL()
	})
	s.progression.Cache = cache

	s.hub = service.NewNotificationHub(rdb)
	s.progression.Notifier = s.hub

	s.streak = service.NewStreakService(repos.streak, s.progression, locker, a.Publisher)
	s.submission = service.NewSubmissionService(repos.submission, repos.problem, judge.NewClient(cfg.Judge), s.progression)
	s.module = service.NewModuleService(db, repos.module, repos.problem, repos.progress, repos.submission, s.storage)
	s.problem = service.NewProblemService(db, repos.problem, repos.module, repos.hintUsage, repos.submission)
	s.module.Cache = cache
	s.problem.Cache = cache
	s.recommendation = service.NewRecommendationService(repos.module, repos.problem, repos.progress, repos.submission, cache)
	s.achievement = service.NewAchievementService(repos.achievement, repos.user)
	s.user = service.NewUserService(repos.user, repos.progress, repos.module)
	s.importer = service.NewCatalogImporter(s.module, s.problem)

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.progression.UpdateSettings(newCfg.Progression)
	})
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		health:      controller.NewHealthController(db, rdb),
		module:      controller.NewModuleController(s.module, s.recommendation),
		problem:     controller.NewProblemController(s.problem),
		submission:  controller.NewSubmissionController(s.submission),
		progress:    controller.NewProgressController(s.user, s.streak),
		achievement: controller.NewAchievementController(s.achievement),
		admin:       controller.NewAdminController(s.module, s.problem, s.streak, s.importer),
		notify:      controller.NewNotificationController(s.hub),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.rateLimiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	a.rateLimiter.StartCleanup(a.ctx.Done())
	router.Use(a.rateLimiter.Middleware())
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		a.rateLimiter.Update(newCfg.RateLimit.MaxRequests, time.Duration(newCfg.RateLimit.WindowMinutes)*time.Minute)
	})

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 每分钟检查一次，过了 sweep_hour 后每天执行一次断签修复
func (a *App) startBackgroundTasks(s *services) {
	go s.hub.Run(a.ctx)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		lastRun := ""
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
			}

			settings := s.progression.Settings()
			now := time.Now().In(settings.Location())
			today := now.Format("2006-01-02")
			if today == lastRun || now.Hour() < settings.SweepHour {
				continue
			}

			report, err := s.streak.RepairStreaks(a.ctx)
			if err != nil {
				logger.Log.Error("scheduled streak repair failed", zap.Error(err))
				continue
			}
			lastRun = today
			if report.Skipped {
				logger.Log.Debug("streak repair handled by another instance", zap.String("date", today))
			}
		}
	}()
}

func initRedis(cfg *config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		logger.Log.Warn("Redis host is empty, running without cache and with in-process locks")
		return nil
	}
	rdb, err := database.InitRedis(cfg)
	if err != nil {
		logger.Log.Warn("Redis unavailable, running without cache and with in-process locks", zap.Error(err))
		return nil
	}
	return rdb
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	migrate := cfg.Server.Mode == "debug" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		DB:        db,
		configDir: configDir,
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.MigrateOnly {
		return app
	}

	app.Redis = initRedis(&cfg.Redis)

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Log.Warn("Event publisher unavailable, events will be dropped", zap.Error(err))
		publisher = events.NopPublisher{}
	}
	app.Publisher = publisher

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	// 监控初始化
	monitoring.Init()

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, app.Redis)
	app.services = services
	controllers := app.initControllers(services, db, app.Redis)

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, services)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)
	app.watchConfig()

	return app
}

func (a *App) watchConfig() {
	configFile := filepath.Join(a.configDir, "config.yaml")
	go func() {
		if err := configwatcher.WatchConfig(a.ctx, configFile, a.applyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.String("file", configFile), zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

// Close 停止后台任务并释放外部连接
func (a *App) Close() {
	a.cancel()

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logger.Log.Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
