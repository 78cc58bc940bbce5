package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/crauzier/catalogsearch/internal/catalog"
	"github.com/crauzier/catalogsearch/internal/index"
	"github.com/crauzier/catalogsearch/pkg/config"
	"github.com/crauzier/catalogsearch/pkg/logger"
	"github.com/crauzier/catalogsearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	catalogPath := flag.String("catalog", "", "override catalog path from config")
	dataDir := flag.String("out", "", "override index output directory from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *catalogPath != "" {
		cfg.Index.CatalogPath = *catalogPath
	}
	if *dataDir != "" {
		cfg.Index.DataDir = *dataDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New()

	slog.Info("building indexes",
		"catalog", cfg.Index.CatalogPath,
		"out", cfg.Index.DataDir,
	)

	records, err := catalog.Load(cfg.Index.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "records", len(records))

	start := time.Now()
	store, err := index.Build(records)
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)
	m.IndexBuildSeconds.Observe(elapsed.Seconds())
	m.DocsIndexedTotal.Add(float64(store.TotalDocs()))
	m.RecordsSkippedTotal.Add(float64(store.SkippedRecords()))

	if err := os.MkdirAll(cfg.Index.DataDir, 0o755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	if err := store.Save(cfg.Index.DataDir); err != nil {
		slog.Error("failed to save indexes", "error", err)
		os.Exit(1)
	}

	slog.Info("indexes built",
		"documents", store.TotalDocs(),
		"skipped_records", store.SkippedRecords(),
		"vocabulary", len(store.Vocabulary()),
		"duration", elapsed,
	)
}
