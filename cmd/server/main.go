package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/pkg/config"
	"fun-friday-chat/backend/pkg/di"
	"fun-friday-chat/backend/pkg/logger"
	"fun-friday-chat/backend/pkg/router"
	"fun-friday-chat/backend/pkg/secrets"
	"fun-friday-chat/backend/shared/observability"
	"fun-friday-chat/backend/shared/redis"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	logConfig := logger.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logConfig.JSON = os.Getenv("LOG_FORMAT") != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting chat relay", "version", os.Getenv("APP_VERSION"))

	// Secrets from vault override the environment when configured
	if vault, err := secrets.NewVaultManager(log); err == nil && vault != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		os.Setenv("DB_PASSWORD", vault.GetSecretWithDefault(ctx, "db_password", os.Getenv("DB_PASSWORD")))
		os.Setenv("JWT_SECRET", vault.GetSecretWithDefault(ctx, "jwt_secret", os.Getenv("JWT_SECRET")))
		cancel()
	}

	cfg := config.New()

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Room{}, &models.Message{}); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_room_created")
	}

	cache := redis.NewClient()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, history served from the store", "error", err.Error())
			cache = nil
		}
		cancel()
	}

	shutdownTracing := observability.SetupTracing("fun-friday-chat", log)
	defer shutdownTracing()

	if metricsAddr := os.Getenv("METRICS_ADDR"); metricsAddr != "" {
		observability.SetupPrometheusMetrics(metricsAddr, log)
	}

	container := di.New(db, cache, cfg, log)

	r := router.New(container)
	r.SetupRoutes()

	if schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH"); schemaPath != "" {
		r.AddOpenAPIValidation(schemaPath)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	if cache != nil {
		cache.Close()
	}

	log.Info("Server exited gracefully")
}
