package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/analyzer"
	"github.com/raaihank/docsentry/internal/cache"
	"github.com/raaihank/docsentry/internal/config"
	"github.com/raaihank/docsentry/internal/detect"
	"github.com/raaihank/docsentry/internal/extract"
	"github.com/raaihank/docsentry/internal/logger"
	"github.com/raaihank/docsentry/internal/pii"
	"github.com/raaihank/docsentry/internal/server"
	"github.com/raaihank/docsentry/internal/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("DocSentry %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting DocSentry",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Connect to the findings store
	findings, err := store.NewStore(&store.Config{
		DatabaseURL:     cfg.Store.DatabaseURL,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
	}, log.Logger)
	if err != nil {
		log.Fatal("Failed to connect to findings store", zap.Error(err))
	}
	defer findings.Close()

	// Build the detection pipeline
	engine := pii.NewEngine(pii.DefaultRules(), log.WithComponent("pii"))
	extractor := extract.New(log.WithComponent("extract"))
	spanAnalyzer := analyzer.NewClient(analyzer.Config{
		BaseURL:  cfg.Analyzer.BaseURL,
		Language: cfg.Analyzer.Language,
		Timeout:  cfg.Analyzer.Timeout,
		MinScore: cfg.Analyzer.MinScore,
	}, log.WithComponent("analyzer"))

	detector := detect.New(extractor, engine, spanAnalyzer,
		detect.Config{MaxInputBytes: cfg.Detection.MaxInputBytes},
		log.WithComponent("detect"))

	// Optional scan-result cache
	var scanCache cache.Cache
	if cfg.Cache.Enabled {
		scanCache, err = cache.New(&cache.Config{
			Backend:        cfg.Cache.Backend,
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize scan cache", zap.Error(err))
		}
		defer scanCache.Close()
	}

	// Create HTTP server
	srv, err := server.New(cfg, log, detector, findings, scanCache)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Reload detection and analyzer settings on config file changes
	if err := config.Watch(cfg, func(newCfg *config.Config) {
		log.Info("Configuration reloaded",
			zap.Int64("max_input_bytes", newCfg.Detection.MaxInputBytes),
			zap.String("analyzer_url", newCfg.Analyzer.BaseURL))
	}); err != nil {
		log.Warn("Config watching unavailable", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8000/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
