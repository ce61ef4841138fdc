package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tickerflow/config"
	"tickerflow/engine"
	"tickerflow/logger"
	"tickerflow/venue"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	appEnv := config.AppEnvironment()
	if config.IsProductionLike(appEnv) && os.Getenv("TICKERFLOW_CRED_KEY") == "" {
		log.WithEnv("APP_ENV").Error("TICKERFLOW_CRED_KEY must be set in production-like environments")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Tickerflow.Name,
		"version": cfg.Tickerflow.Version,
		"env":     appEnv,
	}).Info("starting tickerflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Metrics.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	catalog := venue.DefaultCatalog()

	eng, err := engine.New(cfg, catalog)
	if err != nil {
		log.WithError(err).Error("failed to build engine")
		os.Exit(1)
	}

	if err := eng.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start engine")
		os.Exit(1)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		eng.Close()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("tickerflow stopped")
}
