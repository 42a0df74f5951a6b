package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"hubpsp-backend/internal/config"
	"hubpsp-backend/internal/handlers"
	"hubpsp-backend/internal/middleware"
	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := NewLogger(cfg.Env)
	defer logger.Sync()

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Fatalw("Failed to load progression rules", "path", cfg.RulesPath, "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel, logger)

	store, limiter := initStore(cfg, logger)
	defer store.Close()

	engine, err := services.NewPlatformEngine(rules, services.WithLogger(logger))
	if err != nil {
		logger.Fatalw("Failed to create engine", "error", err)
	}
	persister := services.NewPersister(engine, store, logger)
	jwtService := services.NewJWTService(cfg)

	go func() {
		ticker := time.NewTicker(cfg.MissionRollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if changed := engine.RollMissionPeriods(); changed > 0 {
					if err := persister.FlushAll(ctx); err != nil {
						logger.Warnw("Failed to persist rolled missions", "error", err)
					}
				}
			}
		}
	}()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Engine:    engine,
		Persister: persister,
		JWT:       jwtService,
		StartingSeed: models.PlatformUserSeed{
			Coins: cfg.StartingCoins,
			Gems:  cfg.StartingGems,
		},
		Logger:  logger,
		Limiter: limiter,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("Server starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Server shutdown failed", "error", err)
	}
	if err := persister.FlushAll(shutdownCtx); err != nil {
		logger.Errorw("Failed to persist state on shutdown", "error", err)
	}
	logger.Info("Server stopped")
}

func NewLogger(env string) *zap.SugaredLogger {
	build := zap.NewDevelopment
	if env == "production" {
		build = zap.NewProduction
	}
	logger, err := build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

// initStore opens the configured snapshot store. Only redis also backs rate limiting.
func initStore(cfg *config.Config, logger *zap.SugaredLogger) (services.PlatformStore, middleware.RateLimiter) {
	switch cfg.StoreDriver {
	case "redis":
		redisService, err := services.NewRedisService(cfg)
		if err != nil {
			logger.Fatalw("Failed to connect to Redis", "error", err)
		}
		return redisService, redisService
	case "sqlite":
		store, err := services.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			logger.Fatalw("Failed to open SQLite store", "path", cfg.SQLitePath, "error", err)
		}
		return store, nil
	default:
		logger.Warn("Using in-memory store, state is lost on restart")
		return services.NewMemoryStore(), nil
	}
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
}
