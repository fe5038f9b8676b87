package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"grouping-server-go/config"
	"grouping-server-go/db"
	"grouping-server-go/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $"+config.EnvConfigFile+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.Default().NewLogger().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Redis Client
	redisClient, err := db.InitializeRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	// Create Redis Service
	redisService := db.NewRedisService(redisClient, logger)

	if cfg.SeedDemo {
		if _, err := redisService.SeedIfEmpty(ctx); err != nil {
			// Not fatal, the API works without demo data.
			logger.Warn("failed to seed demo data", "error", err)
		}
	}

	// Create API Handler (injecting the service)
	apiHandler := handlers.NewAPIHandler(redisService, cfg, logger)

	gin.SetMode(cfg.Server.GinMode)
	router := handlers.NewRouter(apiHandler)

	srv := newServer(cfg.Server, router)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to run server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
