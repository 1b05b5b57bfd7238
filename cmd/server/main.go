// Package main provides the entry point for the GridWatch server: an
// energy-sector threat intelligence pipeline with risk scoring and
// campaign correlation behind a small JSON API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vqlam/gridwatch/internal/config"
	"github.com/vqlam/gridwatch/internal/history"
	"github.com/vqlam/gridwatch/internal/observability"
	"github.com/vqlam/gridwatch/internal/pipeline"
	"github.com/vqlam/gridwatch/internal/scoring/readiness"
	"github.com/vqlam/gridwatch/internal/signatures"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("GridWatch %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting gridwatch",
		zap.String("version", Version),
		zap.String("config", *configPath),
	)

	tables := signatures.Default()
	if cfg.SignaturesPath != "" {
		tables, err = signatures.Load(cfg.SignaturesPath)
		if err != nil {
			logger.Fatal("failed to load signature tables", zap.Error(err))
		}
	}

	// History store: Redis when configured, in-process memory otherwise.
	// Scoring never depends on the store being reachable.
	var (
		store       history.Store
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: os.Getenv(cfg.Redis.PasswordEnv),
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		store = history.NewRedisStore(redisClient, cfg.History.Key, cfg.History.Retention, cfg.History.WriteInterval)
	} else {
		store = history.NewMemoryStore(cfg.History.Retention, cfg.History.WriteInterval)
	}

	metrics := observability.NewMetrics()

	pipe := pipeline.New(cfg.Feeds.Sources, tables, store, logger, metrics, pipeline.Options{
		SnapshotTTL: cfg.Feeds.SnapshotTTL,
		HTTPClient:  &http.Client{Timeout: cfg.Feeds.FetchTimeout},
		Posture: pipeline.PostureContext{
			Posture:           readiness.Posture(cfg.Readiness.Posture),
			Sector:            cfg.Readiness.Sector,
			CriticalFunctions: cfg.Readiness.CriticalFunctions,
		},
	})

	srv := &server{
		pipeline: pipe,
		store:    store,
		redis:    redisClient,
		logger:   logger,
		history:  cfg.History.Retention,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", srv.handleHealth)
	r.Get("/ready", srv.handleReady)
	r.Handle("/metrics", observability.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/threats", srv.handleThreats)
		r.Get("/score", srv.handleScore)
		r.Get("/campaigns", srv.handleCampaigns)
		r.Get("/history", srv.handleHistory)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("server stopped")
}

type server struct {
	pipeline *pipeline.Pipeline
	store    history.Store
	redis    *redis.Client
	logger   *zap.Logger
	history  int
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			// History is a side effect; degraded, not down.
			writeJSON(w, http.StatusOK, map[string]string{"status": "degraded", "history": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *server) handleThreats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.Current(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Ingest)
}

func (s *server) handleScore(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.Current(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"score":     snap.Score,
		"readiness": snap.Readiness,
	})
}

func (s *server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.Current(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaigns": snap.Campaigns,
		"count":     len(snap.Campaigns),
	})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := s.history
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries, err := s.store.Recent(r.Context(), n)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

func (s *server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
