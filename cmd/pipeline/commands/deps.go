package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/user/strain-pipeline/internal/adapter/chromedp_fetcher"
	"github.com/user/strain-pipeline/internal/adapter/memory"
	"github.com/user/strain-pipeline/internal/adapter/postgres"
	redis_adapter "github.com/user/strain-pipeline/internal/adapter/redis"
	"github.com/user/strain-pipeline/internal/adapter/resty_fetcher"
	"github.com/user/strain-pipeline/internal/adapter/s3"
	"github.com/user/strain-pipeline/internal/adapter/sqlite"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// openProgress connects the progress store selected by PROGRESS_DRIVER.
func openProgress(ctx context.Context) (repository.ProgressRepository, error) {
	switch cfg.ProgressDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("%w: postgres: %v", usecase.ErrDownstream, err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: postgres: %v", usecase.ErrDownstream, err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: migrate: %v", usecase.ErrDownstream, err)
		}
		log.Info("PostgreSQL progress store ready")
		return postgres.NewProgressRepo(pool, cfg.ValidationThreshold), nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: sqlite: %v", usecase.ErrDownstream, err)
		}
		log.Info("SQLite progress store ready", zap.String("path", cfg.SQLitePath))
		return sqlite.NewProgressRepo(db, cfg.ValidationThreshold), nil
	default:
		return nil, fmt.Errorf("%w: unknown PROGRESS_DRIVER %q", usecase.ErrPrecondition, cfg.ProgressDriver)
	}
}

// openArchive connects the bucket, or an in-process archive when no
// credentials are configured.
func openArchive(ctx context.Context) (repository.ArchiveRepository, error) {
	if cfg.S3AccessKey == "" {
		log.Warn("S3_ACCESS_KEY not set, archiving in memory only")
		return memory.NewArchive(), nil
	}
	archive, err := s3.NewArchiveRepo(ctx, s3.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("%w: archive: %v", usecase.ErrDownstream, err)
	}
	return archive, nil
}

// openCoordination returns the seen cache and host gate, shared through
// Redis when REDIS_ADDR is set. The returned func closes the client.
func openCoordination(ctx context.Context) (repository.SeenCache, repository.HostGate, func(), error) {
	if cfg.RedisAddr == "" {
		return memory.NewSeenCache(), memory.NewHostGate(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, nil, nil, fmt.Errorf("%w: redis: %v", usecase.ErrDownstream, err)
	}
	log.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))
	return redis_adapter.NewSeenCache(rdb), redis_adapter.NewHostGate(rdb), func() { rdb.Close() }, nil
}

// acquisitionMethods returns the method chain in escalation order. The
// returned func releases the browser.
func acquisitionMethods() ([]repository.AcquisitionMethod, func()) {
	methods := []repository.AcquisitionMethod{resty_fetcher.NewDirectFetcher(cfg.HTTPTimeout())}
	release := func() {}
	if cfg.JSEnabled {
		js := chromedp_fetcher.NewChromedpFetcher(cfg.MaxConcurrentRequests, cfg.JSTimeout(), log)
		methods = append(methods, js)
		release = js.Close
	}
	if cfg.PremiumProxyEndpoint != "" {
		methods = append(methods, resty_fetcher.NewPremiumFetcher(cfg.PremiumProxyEndpoint, cfg.PremiumProxyKey, cfg.HTTPTimeout()))
	}
	return methods, release
}

// serveMetrics exposes /metrics on METRICS_PORT for the lifetime of ctx.
func serveMetrics(ctx context.Context) {
	if cfg.MetricsPort == "" {
		return
	}
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("Serving metrics", zap.String("port", cfg.MetricsPort))
}

func rawDir() string { return filepath.Join(cfg.DataDir, "raw") }

func cleanDir() string { return filepath.Join(cfg.DataDir, "clean") }

func inventoryPath() string { return filepath.Join(cfg.DataDir, "inventory.csv") }

// loadInventory reads the saved inventory. A missing file yields nil so
// callers fall back to reading sidecars.
func loadInventory() (*usecase.Inventory, error) {
	inv, err := usecase.LoadInventory(inventoryPath())
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("No saved inventory, reading sidecars on demand", zap.String("path", inventoryPath()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: inventory: %v", usecase.ErrPrecondition, err)
	}
	return inv, nil
}
