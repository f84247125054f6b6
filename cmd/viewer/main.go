package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/user/strain-pipeline/internal/adapter/memory"
	"github.com/user/strain-pipeline/internal/adapter/s3"
	"github.com/user/strain-pipeline/internal/delivery/http/handler"
	"github.com/user/strain-pipeline/internal/delivery/http/router"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/pkg/config"
	"github.com/user/strain-pipeline/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Archive ---
	var archive repository.ArchiveRepository
	if cfg.S3AccessKey == "" {
		log.Warn("S3_ACCESS_KEY not set, serving an empty in-memory archive")
		archive = memory.NewArchive()
	} else {
		archive, err = s3.NewArchiveRepo(ctx, s3.Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		}, log)
		if err != nil {
			log.Fatal("Unable to open archive", zap.Error(err))
		}
	}

	// --- Inventory ---
	invPath := filepath.Join(cfg.DataDir, "inventory.csv")
	inv, err := usecase.LoadInventory(invPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("No inventory file, resolving through sidecars", zap.String("path", invPath))
	case err != nil:
		log.Fatal("Unable to load inventory", zap.String("path", invPath), zap.Error(err))
	default:
		log.Info("Inventory loaded", zap.Int("entries", inv.Len()))
	}

	// --- HTTP Server ---
	resolver := usecase.NewResolver(archive, inv, cfg.SignedURLTTL(), log)
	httpRouter := router.New(handler.NewHandler(resolver, log), log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
