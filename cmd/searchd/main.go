package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/plateshare/searchd/internal/config"
	logpkg "github.com/plateshare/searchd/internal/logger"
	"github.com/plateshare/searchd/internal/metrics"
	"github.com/plateshare/searchd/internal/repository/catalog"
	chiTransport "github.com/plateshare/searchd/internal/transport/chi"
	openaiEmb "github.com/plateshare/searchd/internal/transport/openai"
	embeddinguc "github.com/plateshare/searchd/internal/usecase/embedding"
	healthuc "github.com/plateshare/searchd/internal/usecase/health"
	indexuc "github.com/plateshare/searchd/internal/usecase/index"
	searchuc "github.com/plateshare/searchd/internal/usecase/search"
	"github.com/plateshare/searchd/internal/vector"
	"github.com/plateshare/searchd/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting searchd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("vector_addrs", cfg.Vector.Addrs),
	)

	metrics.Register()

	// Catalog database
	db, err := catalog.Open(cfg.Catalog)
	if err != nil {
		logger.Fatal("Failed to open catalog database", zap.Error(err))
	}
	catalogRepo := catalog.New(db)

	// Vector store
	store, err := vector.NewStore(vector.Config{
		Addrs:        cfg.Vector.Addrs,
		Password:     cfg.Vector.Password,
		KeyPrefix:    cfg.Vector.KeyPrefix,
		IndexName:    cfg.Vector.IndexName,
		Dimensions:   cfg.Vector.Dimensions,
		QueryTimeout: time.Duration(cfg.Vector.QueryTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	if err := store.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Embedding provider chain in config order
	providers := make([]embeddinguc.Provider, 0, len(cfg.Embedding.Providers))
	for _, pc := range cfg.Embedding.Providers {
		providers = append(providers, openaiEmb.NewEmbedder(&openaiEmb.Config{
			Name:       pc.Name,
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			Model:      pc.Model,
			Dimensions: pc.Dimensions,
			Retries:    cfg.Embedding.Retries,
			Timeout:    time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
			Logger:     logger,
		}))
		logger.Info("Embedding provider configured",
			zap.String("provider", pc.Name), zap.String("model", pc.Model))
	}
	chain := embeddinguc.NewChain(providers, logger)

	// Use case services
	searchSvc := searchuc.New(store, catalogRepo, chain, cfg.Search, logger)
	indexSvc := indexuc.New(store, catalogRepo, chain, cfg.Embedding, logger)
	healthSvc := healthuc.New(store, catalogRepo, chain)

	server := chiTransport.NewServer(
		searchSvc, indexSvc, healthSvc,
		cfg.Auth.WebhookSecret, cfg.Auth.AdminAPIKeys,
		logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
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
