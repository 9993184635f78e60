package app

import (
	"context"
	"interview_pilot_backend/internal/config"
	"interview_pilot_backend/internal/controller"
	"interview_pilot_backend/internal/repository"
	"interview_pilot_backend/internal/service"
	"interview_pilot_backend/pkg/database"
	"interview_pilot_backend/pkg/logger"
	"interview_pilot_backend/pkg/monitoring"
	"interview_pilot_backend/pkg/security"
	"interview_pilot_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services

	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	candidate *repository.CandidateRepository
	interview *repository.InterviewRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	resume      *service.ResumeService
	store       *service.SessionStore
	hub         *service.SessionHub
	clock       *service.InterviewClock
	progression *service.ProgressionService
	scoring     *service.ScoringService
	interview   *service.InterviewService
	preflight   *service.PreflightService
	dashboard   *service.DashboardService
}

type controllers struct {
	auth      *controller.AuthController
	candidate *controller.CandidateController
	interview *controller.InterviewController
	dashboard *controller.DashboardController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 热更新运行期可调整的配置段，其余字段需重启生效
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config.Interview = cfg.Interview
	a.Config.RateLimit = cfg.RateLimit
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		candidate: repository.NewCandidateRepository(db),
		interview: repository.NewInterviewRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.resume = service.NewResumeService(repos.candidate, s.storage, nil)

	s.store = service.NewSessionStore()
	s.hub = service.NewSessionHub(rdb)
	go s.hub.Run()

	ai := service.NewAIService(cfg.AI)
	s.progression = service.NewProgressionService(s.store, repos.candidate, ai, s.hub)
	s.scoring = service.NewScoringService(s.store, repos.candidate, repos.interview, ai, s.hub)

	s.clock = service.NewInterviewClock(s.store, s.hub)
	s.interview = service.NewInterviewService(s.store, s.clock, s.progression, s.scoring, s.hub, repos.candidate)
	s.preflight = service.NewPreflightService(s.store, repos.candidate, s.interview, s.hub)
	s.dashboard = service.NewDashboardService(repos.candidate, repos.interview, s.store, s.hub, rdb)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		candidate: controller.NewCandidateController(s.preflight, s.resume),
		interview: controller.NewInterviewController(s.interview, s.hub),
		dashboard: controller.NewDashboardController(s.dashboard),
		health:    controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 周期清理归档后仍滞留内存的完成态会话。
// 保留时长每轮重读，配置热更新即生效。
func (a *App) startBackgroundTasks(s *services) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			retention := time.Duration(a.Config.Interview.CompletedRetentionMinutes) * time.Minute
			if n := s.store.EvictCompletedBefore(time.Now().Add(-retention)); n > 0 {
				logger.Log.Info("evicted completed sessions", zap.Int("count", n))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("interview-pilot", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 断开推送连接并清理 Redis 在线状态
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
