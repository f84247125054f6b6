package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/proxy"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/metrics"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

const maxErrorMessage = 500

// FetcherConfig tunes the acquisition pipeline.
type FetcherConfig struct {
	Concurrency  int
	MaxAttempts  int
	Backoff      []time.Duration
	HostInterval time.Duration
	// StuckTimeout, when set, recovers abandoned processing rows before a run.
	StuckTimeout time.Duration
}

// FetchSummary counts the outcomes of one Run.
type FetchSummary struct {
	Claimed   int64
	Succeeded int64
	Failed    int64
	Recovered int64
}

// Fetcher drains pending rows of the progress store: each URL is fetched
// with the acquisition methods in order, validated, archived and completed.
type Fetcher struct {
	cfg       FetcherConfig
	progress  repository.ProgressRepository
	archive   repository.ArchiveRepository
	methods   []repository.AcquisitionMethod
	gate      repository.HostGate
	rotation  *proxy.Manager
	validator *ContentValidator
	vendors   *vendor.Registry
	logger    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewFetcher wires the acquisition pipeline.
func NewFetcher(
	cfg FetcherConfig,
	progress repository.ProgressRepository,
	archive repository.ArchiveRepository,
	methods []repository.AcquisitionMethod,
	gate repository.HostGate,
	rotation *proxy.Manager,
	validator *ContentValidator,
	vendors *vendor.Registry,
	logger *zap.Logger,
) *Fetcher {
	metrics.Init()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Fetcher{
		cfg:       cfg,
		progress:  progress,
		archive:   archive,
		methods:   methods,
		gate:      gate,
		rotation:  rotation,
		validator: validator,
		vendors:   vendors,
		logger:    logger.Named("fetcher"),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Run claims and processes pending rows until none are left or ctx ends.
// Cancelling leaves in-flight rows in processing for ResetStuck.
func (f *Fetcher) Run(ctx context.Context) (FetchSummary, error) {
	var sum FetchSummary
	if len(f.methods) == 0 {
		return sum, fmt.Errorf("%w: no acquisition method configured", ErrPrecondition)
	}

	if f.cfg.StuckTimeout > 0 {
		n, err := f.progress.ResetStuck(ctx, f.cfg.StuckTimeout)
		if err != nil {
			return sum, fmt.Errorf("%w: reset stuck rows: %v", ErrDownstream, err)
		}
		sum.Recovered = n
		if n > 0 {
			f.logger.Info("Recovered stuck rows", zap.Int64("rows", n))
		}
	}

	taskQueue := make(chan *entity.URLRecord, f.cfg.Concurrency*2)
	var wg sync.WaitGroup
	for i := 0; i < f.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range taskQueue {
				metrics.URLsInFlight.Inc()
				ok, err := f.Process(ctx, rec)
				metrics.URLsInFlight.Dec()
				switch {
				case err != nil:
					f.logger.Warn("URL left in processing", zap.String("url_hash", rec.URLHash), zap.Error(err))
				case ok:
					atomic.AddInt64(&sum.Succeeded, 1)
				default:
					atomic.AddInt64(&sum.Failed, 1)
				}
			}
		}()
	}

	var runErr error
claimLoop:
	for ctx.Err() == nil {
		recs, err := f.progress.Claim(ctx, f.cfg.Concurrency)
		if err != nil {
			if ctx.Err() == nil {
				runErr = fmt.Errorf("%w: claim: %v", ErrDownstream, err)
			}
			break
		}
		if len(recs) == 0 {
			break
		}
		metrics.ProgressClaimedTotal.Add(float64(len(recs)))
		atomic.AddInt64(&sum.Claimed, int64(len(recs)))
		for _, rec := range recs {
			select {
			case taskQueue <- rec:
			case <-ctx.Done():
				break claimLoop
			}
		}
	}
	close(taskQueue)
	wg.Wait()

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	f.logger.Info("Fetch run finished",
		zap.Int64("claimed", sum.Claimed),
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
	)
	return sum, runErr
}

// Process acquires one claimed row. It reports whether the row reached
// success; a non-nil error means the row was left in processing.
func (f *Fetcher) Process(ctx context.Context, rec *entity.URLRecord) (bool, error) {
	host := utils.Host(rec.OriginalURL)
	interval := f.hostInterval(rec.Vendor)
	attempts := rec.Attempts
	logger := f.logger.With(zap.String("url_hash", rec.URLHash), zap.String("vendor", rec.Vendor))

	var lastErr error
	for {
		retryable := false
		for _, m := range f.methods {
			res, check, err := f.try(ctx, m, rec, host, interval)
			if err == nil {
				return f.complete(ctx, rec, m.Name(), res, check)
			}
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			if entity.KindOf(err).Transient() {
				retryable = true
			}
			logger.Debug("Acquisition method failed", zap.String("method", string(m.Name())), zap.Error(err))
		}

		if !retryable || attempts >= f.cfg.MaxAttempts {
			return false, f.fail(ctx, rec, lastErr)
		}
		if err := f.sleep(ctx, f.backoff(attempts)); err != nil {
			return false, err
		}
		n, err := f.progress.Touch(ctx, rec.URLHash)
		if err != nil {
			return false, fmt.Errorf("%w: touch: %v", ErrDownstream, err)
		}
		attempts = n
	}
}

func (f *Fetcher) try(ctx context.Context, m repository.AcquisitionMethod, rec *entity.URLRecord, host string, interval time.Duration) (*repository.FetchResult, ValidationResult, error) {
	method := string(m.Name())
	if err := f.gate.Wait(ctx, host, interval); err != nil {
		return nil, ValidationResult{}, &entity.FetchError{Kind: entity.FailureTimeout, Method: m.Name(), Err: err}
	}

	req := repository.FetchRequest{
		URL:       rec.OriginalURL,
		Vendor:    rec.Vendor,
		UserAgent: f.rotation.GetUserAgent(),
		Proxy:     f.rotation.GetProxy(),
	}
	start := f.now()
	res, err := m.Fetch(ctx, req)
	metrics.FetchDuration.WithLabelValues(method, rec.Vendor).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchAttemptsTotal.WithLabelValues(method, string(entity.KindOf(err))).Inc()
		return nil, ValidationResult{}, err
	}

	check := f.validator.Check(res.HTML)
	metrics.ValidationScore.WithLabelValues(rec.Vendor).Observe(check.Score)
	if err := check.Err(m.Name()); err != nil {
		metrics.FetchAttemptsTotal.WithLabelValues(method, string(entity.KindOf(err))).Inc()
		return nil, check, err
	}
	metrics.FetchAttemptsTotal.WithLabelValues(method, "success").Inc()
	return res, check, nil
}

// complete archives the page and its sidecar, then marks the row success.
// The HTML goes first so a success row always has both objects.
func (f *Fetcher) complete(ctx context.Context, rec *entity.URLRecord, method entity.ScrapeMethod, res *repository.FetchResult, check ValidationResult) (bool, error) {
	key := entity.HTMLKey(rec.URLHash, method)
	meta := &entity.ArchiveMetadata{
		OriginalURL:      rec.OriginalURL,
		URLHash:          rec.URLHash,
		Vendor:           rec.Vendor,
		CollectionDate:   f.now().UTC(),
		ScrapeMethod:     method,
		HTMLSize:         len(res.HTML),
		ValidationScore:  check.Score,
		ValidationChecks: check.Checks,
	}

	if err := f.archive.PutHTML(ctx, key, res.HTML); err != nil {
		return false, f.fail(ctx, rec, &entity.FetchError{Kind: entity.FailureArchive, Method: method, Err: err})
	}
	if err := f.archive.PutMetadata(ctx, meta); err != nil {
		return false, f.fail(ctx, rec, &entity.FetchError{Kind: entity.FailureArchive, Method: method, Err: err})
	}

	err := f.progress.Complete(ctx, rec.URLHash, repository.Completion{
		Method:          method,
		ValidationScore: check.Score,
		HTMLSize:        len(res.HTML),
		ArchiveKey:      key,
	})
	if errors.Is(err, repository.ErrConflict) {
		// Reset underneath us; the archive write is idempotent and the row
		// will be claimed again.
		f.logger.Warn("Row changed state before completion", zap.String("url_hash", rec.URLHash))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: complete: %v", ErrDownstream, err)
	}
	f.logger.Info("Archived page",
		zap.String("url_hash", rec.URLHash),
		zap.String("method", string(method)),
		zap.Float64("validation_score", check.Score),
		zap.Int("html_size", len(res.HTML)),
	)
	return true, nil
}

func (f *Fetcher) fail(ctx context.Context, rec *entity.URLRecord, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	msg = truncateMessage(msg, maxErrorMessage)
	err := f.progress.Fail(ctx, rec.URLHash, msg)
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: fail: %v", ErrDownstream, err)
	}
	f.logger.Warn("URL failed", zap.String("url_hash", rec.URLHash), zap.String("error", msg))
	return nil
}

func (f *Fetcher) backoff(attempts int) time.Duration {
	if len(f.cfg.Backoff) == 0 {
		return 0
	}
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(f.cfg.Backoff) {
		i = len(f.cfg.Backoff) - 1
	}
	return f.cfg.Backoff[i]
}

func (f *Fetcher) hostInterval(tag string) time.Duration {
	interval := f.cfg.HostInterval
	if v, ok := f.vendors.Lookup(tag); ok && v.HostInterval > interval {
		interval = v.HostInterval
	}
	return interval
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
