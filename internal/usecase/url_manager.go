package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

// ErrRecentlyDiscovered is returned by Submit for URLs in the seen cache.
var ErrRecentlyDiscovered = errors.New("url was discovered recently")

// VendorProgress is one vendor line of the progress report.
type VendorProgress struct {
	Vendor        string
	Counts        map[entity.Status]int
	Total         int
	AvgAttempts   float64
	AvgValidation float64
}

// URLManager is the operator view of the progress store: manual
// submission, per-URL status, the status report and non-product removal.
type URLManager struct {
	progress repository.ProgressRepository
	seen     repository.SeenCache
	vendors  *vendor.Registry
	logger   *zap.Logger
}

// NewURLManager creates a manager. seen may be nil.
func NewURLManager(progress repository.ProgressRepository, seen repository.SeenCache, vendors *vendor.Registry, logger *zap.Logger) *URLManager {
	return &URLManager{
		progress: progress,
		seen:     seen,
		vendors:  vendors,
		logger:   logger.Named("url_manager"),
	}
}

// Submit enqueues one product URL by hand. The vendor is derived from the
// host. Unless force is set, URLs in the seen cache are refused. It returns
// the url_hash and whether a new row was created.
func (m *URLManager) Submit(ctx context.Context, rawURL string, force bool) (string, bool, error) {
	canonical := utils.CanonicalURL(rawURL)
	u, err := url.Parse(canonical)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	v, ok := m.vendors.ForHost(utils.Host(canonical))
	if !ok {
		return "", false, fmt.Errorf("%w: no vendor serves %s", ErrPrecondition, u.Host)
	}
	if !IsProductURL(v, u) {
		return "", false, fmt.Errorf("%w: %s is not a product URL of %s", ErrPrecondition, canonical, v.Tag)
	}
	hash := utils.HashURL(canonical)

	if !force && m.seen != nil {
		seen, err := m.seen.IsSeen(ctx, hash)
		if err != nil {
			return "", false, fmt.Errorf("%w: seen cache: %v", ErrDownstream, err)
		}
		if seen {
			return hash, false, ErrRecentlyDiscovered
		}
	}

	inserted, err := m.progress.Insert(ctx, canonical, v.Tag)
	if err != nil {
		return "", false, fmt.Errorf("%w: insert: %v", ErrDownstream, err)
	}
	if m.seen != nil {
		if err := m.seen.MarkSeen(ctx, hash, seenExpiry); err != nil {
			// The row is in the store; a second submit would only duplicate work.
			m.logger.Warn("Failed to mark URL as seen", zap.String("url", canonical), zap.Error(err))
		}
	}
	return hash, inserted, nil
}

// Status returns the progress row of rawURL, trying the URL as given and
// its canonical form.
func (m *URLManager) Status(ctx context.Context, rawURL string) (*entity.URLRecord, error) {
	for _, h := range []string{utils.HashURL(rawURL), utils.HashURL(utils.CanonicalURL(rawURL))} {
		rec, err := m.progress.Get(ctx, h)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrDownstream, err)
		}
	}
	return nil, ErrUnknownURL
}

// Report aggregates the store per vendor, ordered by vendor tag.
func (m *URLManager) Report(ctx context.Context) ([]VendorProgress, error) {
	stats, err := m.progress.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrDownstream, err)
	}

	byVendor := map[string]*VendorProgress{}
	for _, s := range stats {
		vp, ok := byVendor[s.Vendor]
		if !ok {
			vp = &VendorProgress{Vendor: s.Vendor, Counts: map[entity.Status]int{}}
			byVendor[s.Vendor] = vp
		}
		// running means weighted by row count
		n := float64(vp.Total + s.Count)
		if n > 0 {
			vp.AvgAttempts = (vp.AvgAttempts*float64(vp.Total) + s.AvgAttempts*float64(s.Count)) / n
			vp.AvgValidation = (vp.AvgValidation*float64(vp.Total) + s.AvgValidation*float64(s.Count)) / n
		}
		vp.Counts[s.Status] += s.Count
		vp.Total += s.Count
	}

	out := make([]VendorProgress, 0, len(byVendor))
	for _, vp := range byVendor {
		out = append(out, *vp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out, nil
}

// Forget removes demonstrated non-product URLs from the store. Archives
// are left alone. URLs already absent are skipped.
func (m *URLManager) Forget(ctx context.Context, urls []string) (int, error) {
	removed := 0
	for _, u := range urls {
		err := m.progress.DeleteNonProduct(ctx, utils.HashURL(u))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			m.logger.Debug("Not in progress store", zap.String("url", u))
		case err != nil:
			return removed, fmt.Errorf("%w: delete %s: %v", ErrDownstream, u, err)
		default:
			removed++
			m.logger.Info("Forgot non-product URL", zap.String("url", u))
		}
	}
	return removed, nil
}
