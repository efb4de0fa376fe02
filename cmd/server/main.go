package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/somchaik/chunkd/internal/analyzer"
	"github.com/somchaik/chunkd/internal/api"
	"github.com/somchaik/chunkd/internal/config"
	"github.com/somchaik/chunkd/internal/coordinator"
	"github.com/somchaik/chunkd/internal/ocr"
	"github.com/somchaik/chunkd/internal/pipeline"
	"github.com/somchaik/chunkd/internal/semantic"
	"github.com/somchaik/chunkd/internal/store"
	"github.com/somchaik/chunkd/internal/structural"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	engine := ocr.NewRemote(cfg.OCRBaseURL, cfg.OCRAPIKey, cfg.OCRModel, cfg.OCRRequestsPerSec)
	proposer, err := semantic.NewGeminiProposer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Error("gemini client init failed", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline components.
	an := analyzer.New(analyzer.Config{
		SamplePageLimit: cfg.SamplePageLimit,
		MinTextLength:   cfg.MinTextLength,
	}, log)
	st := structural.New(structural.Config{
		ParentSize:    cfg.ParentChunkSize,
		ParentOverlap: cfg.ParentChunkOverlap,
		ChildSize:     cfg.ChildChunkSize,
		ChildOverlap:  cfg.ChildChunkOverlap,
	}, log)
	se := semantic.New(semantic.Config{
		MaxRetries:  cfg.SemanticMaxRetries,
		CallTimeout: cfg.SemanticCallTimeout,
	}, proposer, log)

	coordCfg := coordinator.DefaultConfig()
	coordCfg.EnableFallback = cfg.EnableFallback
	coordCfg.MaxProcessingTime = cfg.MaxProcessingTime
	coordCfg.OCRLanguages = strings.Split(cfg.OCRLanguages, ",")
	coordCfg.OCRConcurrency = cfg.OCRConcurrency
	coordCfg.OCRConfidenceFloor = cfg.OCRConfidenceFloor
	coord := coordinator.New(coordCfg, an, st, se, engine, log)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}

	orch := pipeline.NewOrchestrator(cfg, coord, db, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, an, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		engine.Close()
		db.Close()
	}()

	log.Info("starting chunkd", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
