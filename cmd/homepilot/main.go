package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/homepilot/homepilot/internal/config"
	dbRedis "github.com/homepilot/homepilot/internal/db/redis"
	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/invoker"
	"github.com/homepilot/homepilot/internal/lexicon"
	logpkg "github.com/homepilot/homepilot/internal/logger"
	"github.com/homepilot/homepilot/internal/metrics"
	"github.com/homepilot/homepilot/internal/registry"
	analyticsrepo "github.com/homepilot/homepilot/internal/repository/analytics"
	convlogrepo "github.com/homepilot/homepilot/internal/repository/convlog"
	profilerepo "github.com/homepilot/homepilot/internal/repository/profile"
	chiTransport "github.com/homepilot/homepilot/internal/transport/chi"
	clarifyuc "github.com/homepilot/homepilot/internal/usecase/clarify"
	expanduc "github.com/homepilot/homepilot/internal/usecase/expand"
	healthuc "github.com/homepilot/homepilot/internal/usecase/health"
	orchestrateuc "github.com/homepilot/homepilot/internal/usecase/orchestrate"
	rerankuc "github.com/homepilot/homepilot/internal/usecase/rerank"
	routeuc "github.com/homepilot/homepilot/internal/usecase/route"
	"github.com/homepilot/homepilot/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting homepilot API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("registry_url", cfg.Registry.BaseURL),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register invoker metrics explicitly (no init())
	metrics.RegisterInvokerMetrics()

	// Keyword/synonym tables — loaded once at startup, injected everywhere
	var lex *lexicon.Lexicon
	if cfg.Pipeline.LexiconPath != "" {
		lex, err = lexicon.Load(cfg.Pipeline.LexiconPath)
	} else {
		lex, err = lexicon.Default()
	}
	if err != nil {
		logger.Fatal("Failed to load lexicon", zap.Error(err))
	}

	registryClient := registry.NewClient(registry.Config{
		BaseURL:  cfg.Registry.BaseURL,
		Timeout:  time.Duration(cfg.Registry.TimeoutSec) * time.Second,
		CacheTTL: time.Duration(cfg.Registry.CacheTTLSec) * time.Second,
	}, logger)

	inv := invoker.New(invoker.Options{
		MaxAttempts:         cfg.Invoker.MaxAttempts,
		BaseBackoff:         time.Duration(cfg.Invoker.BaseBackoffMs) * time.Millisecond,
		CallTimeout:         time.Duration(cfg.Invoker.CallTimeoutSec) * time.Second,
		BreakerThreshold:    cfg.Invoker.BreakerThreshold,
		BreakerCooldown:     time.Duration(cfg.Invoker.BreakerCooldownSec) * time.Second,
		MaxConnsPerEndpoint: cfg.Invoker.MaxConnsPerEndpoint,
	}, metrics.InvokerObserver{}, logger)

	// Repositories over the shared store
	analyticsRepo := analyticsrepo.New(store)
	profileRepo := profilerepo.New(store)
	convlogRepo := convlogrepo.New(store, time.Duration(cfg.Pipeline.ConvlogTTLDays)*24*time.Hour)

	weights := domain.Weights{
		Completeness:     cfg.Rerank.Weights.Completeness,
		SellerReputation: cfg.Rerank.Weights.SellerReputation,
		Freshness:        cfg.Rerank.Weights.Freshness,
		Engagement:       cfg.Rerank.Weights.Engagement,
		Personalization:  cfg.Rerank.Weights.Personalization,
	}
	if err := weights.Validate(); err != nil {
		logger.Fatal("Invalid rerank weights", zap.Error(err))
	}

	rerankSvc := rerankuc.New(analyticsRepo, profileRepo, weights, logger).
		WithConcurrency(cfg.Rerank.Concurrency)

	orchestrator := orchestrateuc.New(orchestrateuc.Deps{
		Router:    routeuc.New(lex, cfg.Pipeline.DefaultLimit),
		Expander:  expanduc.New(lex),
		Clarifier: clarifyuc.New(lex, cfg.Pipeline.MaxClarifications),
		Resolver:  registryClient,
		Caller:    inv,
		Reranker:  rerankSvc,
		Logbook:   convlogRepo,
	}, logger).WithTimeout(time.Duration(cfg.Pipeline.RequestTimeoutSec) * time.Second)

	healthSvc := healthuc.New(store, registryClient)

	server := chiTransport.NewServer(orchestrator, rerankSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
