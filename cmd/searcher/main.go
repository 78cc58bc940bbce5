package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/crauzier/catalogsearch/internal/catalog"
	"github.com/crauzier/catalogsearch/internal/history"
	"github.com/crauzier/catalogsearch/internal/index"
	"github.com/crauzier/catalogsearch/internal/normalize"
	"github.com/crauzier/catalogsearch/internal/search/cache"
	"github.com/crauzier/catalogsearch/internal/search/filter"
	"github.com/crauzier/catalogsearch/internal/search/handler"
	"github.com/crauzier/catalogsearch/internal/search/pipeline"
	"github.com/crauzier/catalogsearch/internal/search/ranker"
	"github.com/crauzier/catalogsearch/internal/suggest"
	"github.com/crauzier/catalogsearch/pkg/config"
	"github.com/crauzier/catalogsearch/pkg/health"
	"github.com/crauzier/catalogsearch/pkg/kafka"
	"github.com/crauzier/catalogsearch/pkg/logger"
	"github.com/crauzier/catalogsearch/pkg/metrics"
	"github.com/crauzier/catalogsearch/pkg/middleware"
	"github.com/crauzier/catalogsearch/pkg/postgres"
	pkgredis "github.com/crauzier/catalogsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	m := metrics.New()

	records, err := catalog.Load(cfg.Index.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	store, err := index.Load(cfg.Index.DataDir, records)
	if err != nil {
		slog.Error("failed to load indexes", "error", err)
		os.Exit(1)
	}
	slog.Info("indexes loaded",
		"documents", store.TotalDocs(),
		"vocabulary", len(store.Vocabulary()),
		"data_dir", cfg.Index.DataDir,
	)

	synonyms, err := normalize.LoadSynonyms(cfg.Index.SynonymsPath)
	if err != nil {
		slog.Error("failed to load synonym table", "error", err)
		os.Exit(1)
	}

	trie := suggest.FromVocabulary(store.Vocabulary())
	slog.Info("suggest trie ready", "terms", trie.Len())

	mode, err := filter.ParseMode(cfg.Search.FilterMode)
	if err != nil {
		slog.Error("invalid filter mode", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, result caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	sink, pgClient, err := openSink(cfg)
	if err != nil {
		slog.Error("failed to open history sink", "sink", cfg.History.Sink, "error", err)
		os.Exit(1)
	}
	collector := history.NewCollector(sink, cfg.History.BufferSize, m)
	collector.Start(ctx)
	defer func() {
		if err := collector.Close(); err != nil {
			slog.Error("history collector close failed", "error", err)
		}
	}()
	slog.Info("history collector started", "sink", cfg.History.Sink)

	var aggregator *history.Aggregator
	if cfg.History.Sink == "kafka" {
		// The consumer's handler needs the aggregator and vice versa; the
		// closure breaks the cycle since Start runs after assignment.
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryHistory,
			func(ctx context.Context, key, value []byte) error {
				return history.HandleRecord(aggregator)(ctx, key, value)
			})
		aggregator = history.NewAggregator(consumer)
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("history aggregator error", "error", err)
			}
		}()
		slog.Info("history aggregator started", "topic", cfg.Kafka.Topics.QueryHistory)
	}

	p, err := pipeline.New(store, pipeline.Options{
		Synonyms:     synonyms,
		Params:       ranker.Params{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B},
		DefaultMode:  mode,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Collector:    collector,
		Metrics:      m,
	})
	if err != nil {
		slog.Error("failed to build query pipeline", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if store.TotalDocs() > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d documents", store.TotalDocs()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "index empty"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if pgClient != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(p, trie, queryCache, m, handler.Config{
		DefaultLimit:        cfg.Search.DefaultLimit,
		MaxResults:          cfg.Search.MaxResults,
		SuggestDefaultLimit: cfg.Suggest.DefaultLimit,
		SuggestMaxLimit:     cfg.Suggest.MaxLimit,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	if aggregator != nil {
		mux.HandleFunc("GET /api/v1/history/stats", history.StatsHandler(aggregator))
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// openSink builds the configured history sink. The postgres client is
// returned separately so main can register a health check against it.
func openSink(cfg *config.Config) (history.Sink, *postgres.Client, error) {
	switch cfg.History.Sink {
	case "file":
		sink, err := history.NewFileSink(cfg.History.FilePath)
		return sink, nil, err
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryHistory)
		return history.NewKafkaSink(producer), nil, nil
	case "postgres":
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return history.NewPostgresSink(client), client, nil
	default:
		return history.NopSink{}, nil, nil
	}
}
