// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/odfp/odfp/internal/ai"
	"github.com/odfp/odfp/internal/ai/openai"
	"github.com/odfp/odfp/internal/api"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/config"
	"github.com/odfp/odfp/internal/db"
	"github.com/odfp/odfp/internal/expand"
	"github.com/odfp/odfp/internal/health"
	"github.com/odfp/odfp/internal/middleware"
	"github.com/odfp/odfp/internal/ranking"
	"github.com/odfp/odfp/internal/search"
	"github.com/odfp/odfp/internal/tracing"
)

const serviceName = "odfp-api"

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ODFP Catalog Search API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	// Initialize logger
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := make([]any, 0, 32)
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	app, err := newApplication(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// application owns the wired HTTP handler and the resources behind it.
type application struct {
	handler  http.Handler
	cleanups []func()
}

// Close releases resources in reverse wiring order.
func (a *application) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// newApplication wires storage, retrieval, and the middleware chain
// into a ready-to-serve handler. A missing database or Redis degrades
// to in-process fallbacks instead of failing startup.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{}

	// Distributed tracing is opt-in via the OTLP endpoint variable.
	provider, err := tracing.NewProvider(tracingConfig(cfg.Env))
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	app.cleanups = append(app.cleanups, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer provider shutdown failed", "error", err)
		}
	})

	metrics := middleware.NewMetrics()
	searchMetrics := search.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	if err := searchMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register search metrics: %w", err)
	}

	// Catalog store: Postgres when configured, in-memory otherwise.
	var store catalog.SearchStore
	var dbChecker, redisChecker api.HealthChecker
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.cleanups = append(app.cleanups, func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error("database close failed", "error", err)
			}
		})
		if cfg.EnsureSchema {
			if err := catalog.EnsureSearchSchema(ctx, sqlDB, logger); err != nil {
				app.Close()
				return nil, fmt.Errorf("ensure search schema: %w", err)
			}
		}
		store = catalog.NewPostgresStore(sqlDB, logger)
		dbChecker = health.NewDBChecker(sqlDB)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory catalog store")
		store = catalog.NewMemoryStore()
	}

	// Rate limit state: Redis when configured, in-process otherwise.
	var rateStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		app.cleanups = append(app.cleanups, func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close failed", "error", err)
			}
		})
		rateStore = middleware.NewRedisRateLimitStore(client).WithMetrics(metrics)
		redisChecker = health.NewRedisChecker(client)
	}

	// Embedding/completion backend. Unconfigured means lexical-only
	// retrieval and lexicon-only expansion.
	var embedder ai.Embedder
	var completer ai.Completer
	aiCfg := cfg.AI()
	if aiCfg.Configured() {
		embedder, err = openai.NewEmbedder(aiCfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("initialize embedder: %w", err)
		}
		if aiCfg.CompletionModel != "" {
			completer, err = openai.NewCompleter(aiCfg)
			if err != nil {
				app.Close()
				return nil, fmt.Errorf("initialize completer: %w", err)
			}
		}
	} else {
		logger.Info("AI backend not configured; semantic retrieval disabled")
	}

	weights, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration unavailable, using defaults", "error", err)
	}

	expander := expand.NewExpander(expand.DefaultLexicon(), completer, logger)
	expander.OnEnrichment(searchMetrics.IncExpansionEnrichment)

	engine, err := search.NewEngine(store, embedder, expander, logger, searchMetrics, search.Options{
		OverfetchMultiplier: cfg.OverfetchMultiplier,
		TierTimeout:         cfg.TierTimeout,
		EmbedTimeout:        cfg.EmbedTimeout,
		Weights:             weights,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("initialize search engine: %w", err)
	}

	searchHandlers := api.NewSearchHandlers(engine, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	})

	globalLimit := middleware.DefaultGlobalLimit()
	if cfg.GlobalRateLimit > 0 {
		globalLimit.RequestsPerWindow = cfg.GlobalRateLimit
	}
	searchLimit := middleware.DefaultSearchLimit()
	if cfg.SearchRateLimit > 0 {
		searchLimit.RequestsPerWindow = cfg.SearchRateLimit
	}
	searchLimiter := middleware.RateLimiter(rateStore, searchLimit, middleware.IPKeyFunc(), metrics)

	mux := http.NewServeMux()
	mux.Handle("/v1/search", searchLimiter(http.HandlerFunc(searchHandlers.Search)))
	mux.HandleFunc("/v1/facets", searchHandlers.Facets)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"` + serviceName + `","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> RateLimiter
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateStore, globalLimit, middleware.IPKeyFunc(), metrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)

	app.handler = handler
	return app, nil
}

// tracingConfig builds the tracer configuration from the standard OTEL
// environment variables. Tracing stays off unless an OTLP endpoint is
// set.
func tracingConfig(env string) tracing.Config {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	samplingRate := 0.1
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			samplingRate = f
		}
	}
	return tracing.Config{
		ServiceName:  serviceName,
		Enabled:      endpoint != "",
		Environment:  env,
		ExporterType: os.Getenv("OTEL_EXPORTER_TYPE"),
		OTLPEndpoint: endpoint,
		SamplingRate: samplingRate,
		InsecureMode: env != "production",
	}
}
