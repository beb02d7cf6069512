package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"canteen-occupancy-backend/config"
	"canteen-occupancy-backend/internal/api"
	"canteen-occupancy-backend/internal/db"
	"canteen-occupancy-backend/internal/logging"
	"canteen-occupancy-backend/internal/metrics"
	"canteen-occupancy-backend/internal/notification"
	"canteen-occupancy-backend/internal/occupancy"
	"canteen-occupancy-backend/internal/recorder"
	"canteen-occupancy-backend/internal/store"
	"canteen-occupancy-backend/internal/thingspeak"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if !cfg.ThingSpeak.Configured() {
		logger.Warn("thingspeak channel id or read key is missing, readings may report errors")
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	client := thingspeak.NewClient(&cfg.ThingSpeak, logger)
	fetcher := occupancy.NewFetcher(&cfg.ThingSpeak, client, logger, m)

	var appStore store.Store
	if cfg.Database.DSN != "" {
		gormDB, err := db.Init(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		appStore = store.NewGormStore(gormDB)
		logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))
	} else {
		logger.Info("no database configured, history and notifications are disabled")
	}

	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	if cfg.Push.Enabled() && appStore != nil {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
			HTTPClient:      &http.Client{Timeout: cfg.Push.Timeout},
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger, m)
	}

	if cfg.Recorder.Enabled && appStore != nil {
		var dispatcher recorder.Dispatcher
		if pool != nil {
			dispatcher = pool
		}
		recorderSvc := recorder.NewService(cfg.Dashboard.RefreshInterval, fetcher, appStore, dispatcher, logger, m)
		go recorderSvc.Run(ctx)
	}

	handler := api.NewHandler(cfg, fetcher, appStore, webpushOptions)
	router := api.NewRouter(handler, &cfg.Server, logger, m)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port), zap.String("channel", cfg.ThingSpeak.ChannelID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
		return
	}

	logger.Info("server gracefully stopped")
}
