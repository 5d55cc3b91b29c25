package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"learnhub-backend/internal/authorization"
	"learnhub-backend/internal/background"
	"learnhub-backend/internal/config"
	"learnhub-backend/internal/events"
	"learnhub-backend/internal/handlers"
	"learnhub-backend/internal/middleware"
	"learnhub-backend/internal/payments/razorpay"
	"learnhub-backend/internal/repository"
	"learnhub-backend/internal/service"
	"learnhub-backend/pkg/cache"
	"learnhub-backend/pkg/logger"
)

type Application struct {
	cfg *config.Config

	ctx    context.Context
	cancel context.CancelFunc

	db          *gorm.DB
	cache       *cache.Cache
	scheduler   *background.Scheduler
	publisher   events.Publisher
	rateLimiter *middleware.RateLimitManager

	repositories repositoryContainer
	services     serviceContainer
	handlers     handlerContainer

	router *gin.Engine
	server *http.Server
}

type repositoryContainer struct {
	User     repository.UserRepository
	Course   repository.CourseRepository
	Chapter  repository.ChapterRepository
	Order    repository.OrderRepository
	Progress repository.ProgressRepository
	Catalog  repository.CatalogRepository
}

type serviceContainer struct {
	Entitlement *service.EntitlementService
	Quiz        *service.QuizService
	Order       *service.OrderService
	Progress    *service.ProgressService
	Course      *service.CourseService
	Question    *service.QuestionService
	User        *service.UserService
}

type handlerContainer struct {
	Chapter  *handlers.ChapterHandler
	Order    *handlers.OrderHandler
	Course   *handlers.CourseHandler
	Question *handlers.QuestionHandler
	Progress *handlers.ProgressHandler
}

func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, err
	}

	if err := app.runMigrations(); err != nil {
		app.closeDatabase()
		cancel()
		return nil, err
	}

	app.initCache()
	if err := app.initEvents(); err != nil {
		app.shutdownBackground(context.Background())
		app.closeDatabase()
		cancel()
		return nil, err
	}

	app.initRepositories()
	if err := app.initServices(); err != nil {
		app.shutdownBackground(context.Background())
		app.closeDatabase()
		cancel()
		return nil, err
	}
	app.initHandlers()
	app.initRouter()

	app.server = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return app, nil
}

func (a *Application) Run() error {
	logger.Info("Server starting", map[string]interface{}{
		"port":        a.cfg.Port,
		"environment": a.cfg.Environment,
	})

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains queued events, then closes the broker,
// cache and database connections in that order.
func (a *Application) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = err
		}
	}

	a.shutdownBackground(ctx)

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error(err, "Failed to close cache connection", nil)
		}
	}

	a.closeDatabase()
	a.cancel()

	return shutdownErr
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

func (a *Application) shutdownBackground(ctx context.Context) {
	if a.rateLimiter != nil {
		_ = a.rateLimiter.Shutdown()
	}
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(ctx); err != nil {
			logger.Error(err, "Background scheduler did not drain cleanly", nil)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Error(err, "Failed to close event publisher", nil)
		}
	}
}

func (a *Application) closeDatabase() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *Application) initDatabase() error {
	logger.Info("Connecting to database", nil)

	db, err := gorm.Open(postgres.Open(a.cfg.DatabaseURL), &gorm.Config{
		Logger: logger.NewGormLogger(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	a.db = db
	return nil
}

func (a *Application) runMigrations() error {
	logger.Info("Running database migrations", nil)

	if err := repository.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database migration completed", nil)
	return nil
}

func (a *Application) initCache() {
	c, err := cache.NewCache(a.cfg.RedisURL, a.cfg.EnableCache)
	if err != nil {
		logger.Warn("Redis unavailable, course cache disabled", map[string]interface{}{"error": err.Error()})
		c, _ = cache.NewCache("", false)
	}
	a.cache = c
}

func (a *Application) initEvents() error {
	a.scheduler = background.NewScheduler(background.SchedulerConfig{WorkerCount: a.cfg.EventWorkers})
	a.scheduler.Start(a.ctx)

	if a.cfg.EventsEnabled() {
		publisher, err := events.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		a.publisher = publisher
		logger.Info("Publishing domain events to Kafka", map[string]interface{}{
			"brokers": strings.Join(a.cfg.KafkaBrokers, ","),
			"topic":   a.cfg.KafkaTopic,
		})
	} else {
		a.publisher = events.LogPublisher{}
	}
	return nil
}

func (a *Application) initRepositories() {
	a.repositories = repositoryContainer{
		User:     repository.NewUserRepository(a.db),
		Course:   repository.NewCourseRepository(a.db),
		Chapter:  repository.NewChapterRepository(a.db),
		Order:    repository.NewOrderRepository(a.db),
		Progress: repository.NewProgressRepository(a.db),
		Catalog:  repository.NewCatalogRepository(a.db),
	}
}

func (a *Application) initServices() error {
	gateway, err := razorpay.NewProvider(a.cfg.RazorpayKeyID, a.cfg.RazorpaySecret, razorpay.WithAPIBase(a.cfg.RazorpayAPIBase))
	if err != nil {
		return fmt.Errorf("failed to configure payment gateway: %w", err)
	}
	if !razorpay.IsKeyID(a.cfg.RazorpayKeyID) {
		logger.Warn("Razorpay key id does not look like a Razorpay key", nil)
	} else if razorpay.IsLiveKeyID(a.cfg.RazorpayKeyID) && !a.cfg.IsProduction() {
		logger.Warn("Live Razorpay key configured outside production", map[string]interface{}{"environment": a.cfg.Environment})
	}

	emitter := events.NewDispatcher(a.scheduler, a.publisher)
	repos := a.repositories

	entitlement := service.NewEntitlementService(repos.User, repos.Course, repos.Chapter)
	progress := service.NewProgressService(repos.Course, repos.Chapter, repos.Progress, entitlement)

	a.services = serviceContainer{
		Entitlement: entitlement,
		Quiz:        service.NewQuizService(repos.Course, repos.Chapter, repos.Progress, emitter, a.cfg.QuizRewardCoins),
		Order: service.NewOrderService(repos.Order, repos.User, repos.Course, repos.Chapter, gateway, emitter, service.OrderConfig{
			Currency:       a.cfg.PaymentCurrency,
			AllAccessPrice: a.cfg.AllAccessPrice,
		}),
		Progress: progress,
		Course:   service.NewCourseService(repos.Course, repos.Chapter, repos.Catalog, a.cache, emitter),
		Question: service.NewQuestionService(repos.Chapter),
		User:     service.NewUserService(repos.User, repos.Chapter, repos.Progress, progress),
	}
	return nil
}

func (a *Application) initHandlers() {
	debug := a.cfg.IsDevelopment()
	a.handlers = handlerContainer{
		Chapter:  handlers.NewChapterHandler(a.services.Entitlement, a.services.Quiz, debug),
		Order:    handlers.NewOrderHandler(a.services.Order, debug),
		Course:   handlers.NewCourseHandler(a.services.Course, debug),
		Question: handlers.NewQuestionHandler(a.services.Question, debug),
		Progress: handlers.NewProgressHandler(a.services.Progress, a.services.User, debug),
	}
}

func (a *Application) initRouter() {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a.rateLimiter = middleware.NewRateLimitManager(a.ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(logger.GinLogger())
	if a.cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(a.rateLimiter, a.cfg))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	public := router.Group("")
	{
		public.GET("/instructors", a.handlers.Course.Instructors)
		public.GET("/jobs", a.handlers.Course.Jobs)
		public.GET("/vacancies", a.handlers.Course.Vacancies)
	}

	protected := router.Group("")
	protected.Use(middleware.AuthMiddleware(a.cfg.JWTSecret, a.repositories.User))
	registerRoutes(protected, a.handlers, middleware.OrderRateLimitMiddleware(a.rateLimiter, a.cfg))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
			"path":  c.Request.URL.Path,
		})
	})

	a.router = router
}

// registerRoutes mounts the authenticated API on group. orderLimit guards the routes
// that talk to the payment gateway.
func registerRoutes(group *gin.RouterGroup, h handlerContainer, orderLimit gin.HandlerFunc) {
	chapters := group.Group("/chapter")
	{
		chapters.GET("/:id", h.Chapter.GetChapter)
		chapters.POST("/:id/complete-chapter", h.Chapter.CompleteChapter)
	}

	orders := group.Group("/order")
	{
		orders.POST("/initiate", orderLimit, h.Order.Initiate)
		orders.POST("/course/:id", orderLimit, h.Order.InitiateCourse)
		orders.POST("/chapter/:id", orderLimit, h.Order.InitiateChapter)
		orders.POST("/verify", orderLimit, h.Order.Verify)
		orders.GET("/status", h.Order.Status)
		orders.GET("/mine", h.Order.Mine)
		orders.POST("/:orderId/cancel", h.Order.Cancel)
	}

	group.GET("/user/data/:userId", h.Progress.UserData)

	group.GET("/courses", h.Course.List)
	courses := group.Group("/course")
	{
		courses.GET("/:id", h.Course.GetByID)
		courses.POST("/:id/enroll", h.Course.Enroll)
	}

	progress := group.Group("/progress")
	{
		progress.PUT("/chapter/:id", h.Progress.MarkChapter)
		progress.GET("/course/:id", h.Progress.CourseProgress)
	}

	admin := group.Group("/admin")
	{
		admin.GET("/orders", middleware.RequirePermission(authorization.PermissionViewOrders), h.Order.Ledger)
		admin.GET("/courses/:id/recommended", middleware.RequirePermission(authorization.PermissionViewAnyUserData), h.Course.RecommendedLearners)
	}

	catalog := admin.Group("")
	catalog.Use(middleware.RequirePermission(authorization.PermissionManageCatalog))
	{
		catalog.GET("/chapters/:id/questions", h.Question.List)
		catalog.POST("/chapters/:id/questions", h.Question.Create)
		catalog.PUT("/chapters/:id/questions/:questionId", h.Question.Update)
		catalog.DELETE("/chapters/:id/questions/:questionId", h.Question.Delete)
		catalog.POST("/courses/:id/chapters", h.Course.AttachChapter)
	}
}
