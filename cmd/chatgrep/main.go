package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatgrep/internal/api"
	"chatgrep/internal/config"
	"chatgrep/internal/ingest"
	"chatgrep/internal/logging"
	"chatgrep/internal/search"
	"chatgrep/internal/store/es"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to the configuration file")
	flag.Parse()

	// 1. Configuration and logging
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Logging error: %v", err)
	}
	defer logging.Shutdown()

	slog.Info("Starting chatgrep archive service")

	// 2. Document store
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := es.New(cfg.Store)
	if err != nil {
		slog.Error("Failed to create store client", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureIndex(startCtx); err != nil {
		slog.Error("Failed to ensure archive index", "error", err)
		os.Exit(1)
	}

	// 3. Ingestion pipeline: bus source -> indexer -> store
	indexer := ingest.New(store, cfg.Ingest)
	source, err := ingest.NewSource(cfg.Bus, indexer)
	if err != nil {
		slog.Error("Failed to start ingestion source", "error", err)
		indexer.Close()
		os.Exit(1)
	}

	// 4. Search API
	svc := search.NewService(store, cfg.Search)
	server := api.NewServer(cfg.API, api.NewHandler(svc))
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("API server failed", "error", err)
		}
	}()

	// 5. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop intake first, then drain buffered messages into the store.
	if err := source.Close(); err != nil {
		slog.Warn("Failed to close ingestion source", "error", err)
	}
	indexer.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Failed to shut down API server", "error", err)
	}
	slog.Info("Shutdown complete")
}
