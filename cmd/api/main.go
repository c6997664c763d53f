package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"placement-tests/internal/adapter"
	"placement-tests/internal/cache"
	"placement-tests/internal/config"
	"placement-tests/internal/database"
	"placement-tests/internal/domain"
	"placement-tests/internal/event"
	"placement-tests/internal/handler"
	"placement-tests/internal/logger"
	"placement-tests/internal/middleware"
	"placement-tests/internal/repository"
	"placement-tests/internal/service"
	"placement-tests/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Open(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer db.Close()

	testStore := store.New(repository.NewSQLTestTable(db),
		store.WithLogger(appLogger),
		store.WithHydrateTimeout(cfg.Store.HydrateTimeout),
	)
	unsubscribe := testStore.Subscribe(func() {
		appLogger.Debug("Test cache changed", zap.Int("count", len(testStore.GetAllTests())))
	})
	defer unsubscribe()

	// Redis is optional. Without it, changes made by other instances are only
	// seen after an explicit sync.
	var bus domain.ChangeBus
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, cross-instance sync disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			bus = adapter.NewRedisChangeBus(redisClient)
			appLogger.Info("Successfully connected to Redis")
		}
	}

	publisher, err := event.NewAMQPPublisher(cfg.RabbitMQ)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer publisher.Close()

	testService := service.NewTestService(testStore, bus, publisher, cfg.Store.InstanceID, cfg.Store.HydrateTimeout)
	go func() {
		if err := testService.Listen(ctx); err != nil {
			appLogger.Error("Change listener stopped", zap.Error(err))
		}
	}()

	// Warm the cache. A failure here is retried by the first read.
	if _, err := testService.Sync(ctx); err != nil {
		appLogger.Warn("Initial hydration failed", zap.Error(err))
	}

	testHandler := handler.NewTestHandler(testService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept", MaxAge: 300}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "hydrated": testStore.Hydrated()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	apiGroup := app.Group("/api")
	testHandler.RegisterRoutes(apiGroup, middleware.NewValidationMiddleware())

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env), zap.String("instance", cfg.Store.InstanceID))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	appLogger.Info("Server exited gracefully")
}
