package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/config"
	"github.com/raaihank/docsentry/internal/export"
	"github.com/raaihank/docsentry/internal/logger"
	"github.com/raaihank/docsentry/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		outputFile = flag.String("output", "", "Output file (CSV, Parquet, or JSON lines)")
		batchSize  = flag.Int64("batch-size", 1000, "Page size for reading findings")
		showStats  = flag.Bool("stats", false, "Show findings statistics and exit")
	)
	flag.Parse()

	if *outputFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --output findings.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --output findings.parquet --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting DocSentry export",
		zap.String("version", "0.1.0"),
		zap.String("config", *configPath))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

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

	if *showStats {
		if err := showFindingStats(ctx, findings); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
		return
	}

	exporter := export.NewExporter(findings, &export.Config{
		BatchSize:      *batchSize,
		ProgressReport: 1000,
	}, log.Logger)

	result, err := exporter.ExportFile(ctx, *outputFile)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	log.Info("Export completed",
		zap.String("file", *outputFile),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("written", result.Written),
		zap.Duration("duration", result.Duration),
		zap.Duration("database_time", result.DatabaseTime),
		zap.Duration("write_time", result.WriteTime))

	if len(result.Errors) > 0 {
		log.Warn("Export completed with errors", zap.Strings("errors", result.Errors))
	}
}

// showFindingStats displays current findings statistics
func showFindingStats(ctx context.Context, findings *store.Store) error {
	stats, err := findings.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get findings stats: %w", err)
	}

	fmt.Printf("\n=== DocSentry Findings Statistics ===\n")
	fmt.Printf("Total Findings:     %d\n", stats.Total)

	types := make([]string, 0, len(stats.ByType))
	for piiType := range stats.ByType {
		types = append(types, piiType)
	}
	sort.Strings(types)

	for _, piiType := range types {
		count := stats.ByType[piiType]
		fmt.Printf("  %-20s %d (%.1f%%)\n", piiType, count,
			float64(count)/float64(stats.Total)*100)
	}

	return nil
}
