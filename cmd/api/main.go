package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thirtybees/blocknewsletter/internal/captcha"
	"github.com/thirtybees/blocknewsletter/internal/config"
	"github.com/thirtybees/blocknewsletter/internal/handler"
	"github.com/thirtybees/blocknewsletter/internal/middleware"
	pgRepo "github.com/thirtybees/blocknewsletter/internal/repository/postgres"
	redisRepo "github.com/thirtybees/blocknewsletter/internal/repository/redis"
	"github.com/thirtybees/blocknewsletter/internal/service"
	"github.com/thirtybees/blocknewsletter/pkg/auth"
	"github.com/thirtybees/blocknewsletter/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load config", zap.String("path", configPath), zap.Error(err))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("invalid log configuration, fallback to zap production logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	isProduction := gin.Mode() == gin.ReleaseMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !isProduction)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Redis
	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	// Репозитории
	subscriberRepo := pgRepo.NewSubscriberRepo(db)
	customerRepo := pgRepo.NewCustomerRepo(db)
	settingRepo := pgRepo.NewSettingRepo(db)
	shopRepo := pgRepo.NewShopRepo(db)
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		logger.Fatal("failed to create cache repository", zap.Error(err))
	}

	// Настройки модуля
	settingsService := service.NewSettingsService(settingRepo, cacheRepo, cfg.Newsletter, logger)
	if err := settingsService.Seed(ctx); err != nil {
		logger.Fatal("failed to seed newsletter settings", zap.Error(err))
	}

	// Captcha
	captchaRegistry := captcha.NewRegistry(settingsService, logger)
	if cfg.Captcha.ArithmeticEnabled {
		captchaRegistry.Register(captcha.NewArithmeticProvider(cacheRepo, cfg.Captcha.ChallengeTTL, logger))
	}

	// Почта
	mailer, err := newMailer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize mailer", zap.Error(err))
	}

	// Сервисы
	resolver := service.NewIdentityResolver(subscriberRepo, customerRepo)
	tokenService := service.NewTokenService(settingsService, subscriberRepo, customerRepo, cfg.Newsletter.ScanBatchSize, logger)
	newsletterService := service.NewNewsletterService(
		captchaRegistry,
		resolver,
		tokenService,
		settingsService,
		subscriberRepo,
		customerRepo,
		mailer,
		logger,
	)
	listService := service.NewSubscriberListService(subscriberRepo, customerRepo)
	exportService := service.NewExportService(subscriberRepo, customerRepo)
	shopService := service.NewShopService(shopRepo, cacheRepo, logger)

	jwtService, err := auth.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.TokenExpiryHrs)
	if err != nil {
		logger.Fatal("failed to initialize jwt service", zap.Error(err))
	}
	authService, err := service.NewAuthService(cfg.Admin.Username, cfg.Admin.PasswordHash, jwtService, logger)
	if err != nil {
		logger.Fatal("failed to initialize admin auth", zap.Error(err))
	}

	// Обработчики
	newsletterHandler := handler.NewNewsletterHandler(newsletterService, captchaRegistry, logger)
	hookHandler := handler.NewHookHandler(newsletterService, logger)
	adminHandler := handler.NewAdminHandler(settingsService, captchaRegistry, listService, newsletterService, exportService, logger)
	authHandler := handler.NewAuthHandler(authService, logger)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, logger)
	rateLimiter := middleware.NewRateLimiter(redisClient, logger)
	shopContext := middleware.ShopContext(shopService, cfg.Newsletter.DefaultShopID, logger)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// В production не доверяем прокси-заголовкам (защита от IP spoofing)
	trusted := []string{"127.0.0.1", "::1"}
	if isProduction {
		trusted = nil
	}
	if err := router.SetTrustedProxies(trusted); err != nil {
		logger.Warn("failed to set trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.ShopIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		newsletter := api.Group("/newsletter")
		newsletter.Use(shopContext)
		{
			subscribe := []gin.HandlerFunc{}
			if cfg.RateLimit.Enabled {
				subscribe = append(subscribe, rateLimiter.Limit(middleware.NewsletterRateLimitConfig(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)))
			}
			subscribe = append(subscribe, newsletterHandler.Subscribe)
			newsletter.POST("", subscribe...)
			newsletter.GET("/verify", newsletterHandler.Verify)
			newsletter.GET("/captcha", newsletterHandler.Captcha)
		}

		hooks := api.Group("/hooks")
		hooks.Use(middleware.RequireHookToken(cfg.Hooks.Secret))
		{
			hooks.POST("/customer-created", hookHandler.CustomerCreated)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/login", rateLimiter.Limit(middleware.LoginRateLimitConfig()), authHandler.Login)

			backOffice := admin.Group("/newsletter")
			backOffice.Use(authMiddleware.RequireAdmin())
			{
				backOffice.GET("/settings", adminHandler.GetSettings)
				backOffice.PUT("/settings", adminHandler.UpdateSettings)
				backOffice.GET("/captchas", adminHandler.ListCaptchas)
				backOffice.GET("/subscribers", adminHandler.ListSubscribers)
				backOffice.POST("/subscribers/:id/toggle",
					middleware.ExtractMergedID("id", middleware.ContextKeyMergedID),
					adminHandler.ToggleSubscriber)
				backOffice.GET("/export", adminHandler.Export)
			}
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("server exited properly")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

// newMailer выбирает Resend или журналирующий mailer
func newMailer(cfg *config.Config, logger *zap.Logger) (service.NewsletterMailer, error) {
	opts := service.MailerOptions{
		From:      cfg.Email.From,
		ShopName:  cfg.Email.ShopName,
		VerifyURL: cfg.Newsletter.VerifyURL,
	}
	if !cfg.Email.Enabled {
		logger.Warn("email dispatch disabled, newsletter mails are only logged")
		return service.NewNoopMailer(opts, logger), nil
	}
	templates, err := service.NewMailTemplates()
	if err != nil {
		return nil, err
	}
	return service.NewResendMailer(cfg.Email.ResendAPIKey, opts, templates, logger)
}
