package usecase

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/metrics"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

const seenExpiry = 48 * time.Hour // 2 days

// nonProductPath rejects cart, account, category and paginated listing URLs
// whatever the vendor's own product rule says.
var nonProductPath = regexp.MustCompile(`(?i)/(?:cart|checkout|account|my-account|login|register|wishlist|compare|category|categories|tag|blog|search|page/\d+)(?:/|$)|[?&](?:p|page)=\d+`)

// DiscoverySummary counts the outcome of one vendor walk.
type DiscoverySummary struct {
	Vendor     string
	Pages      int
	Found      int
	Inserted   int
	Duplicates int
	Rejected   int
}

// Discoverer walks vendor catalogs and feeds product URLs to the progress store.
type Discoverer struct {
	progress  repository.ProgressRepository
	seen      repository.SeenCache
	fetch     repository.AcquisitionMethod
	gate      repository.HostGate
	vendors   *vendor.Registry
	interval  time.Duration
	userAgent string
	logger    *zap.Logger
}

// NewDiscoverer creates a discoverer. seen may be nil.
func NewDiscoverer(
	progress repository.ProgressRepository,
	seen repository.SeenCache,
	fetch repository.AcquisitionMethod,
	gate repository.HostGate,
	vendors *vendor.Registry,
	interval time.Duration,
	userAgent string,
	logger *zap.Logger,
) *Discoverer {
	metrics.Init()
	return &Discoverer{
		progress:  progress,
		seen:      seen,
		fetch:     fetch,
		gate:      gate,
		vendors:   vendors,
		interval:  interval,
		userAgent: userAgent,
		logger:    logger.Named("discovery"),
	}
}

// Run discovers URLs for the given vendor tags (every vendor when empty).
func (d *Discoverer) Run(ctx context.Context, tags []string) ([]DiscoverySummary, error) {
	if len(tags) == 0 {
		tags = d.vendors.Tags()
	}
	var out []DiscoverySummary
	for _, tag := range tags {
		v, ok := d.vendors.Lookup(tag)
		if !ok {
			return out, fmt.Errorf("%w: unknown vendor %q", ErrPrecondition, tag)
		}
		if !v.CanDiscover() {
			continue
		}
		sum, err := d.Vendor(ctx, v)
		out = append(out, sum)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Vendor walks one vendor's catalog. Generated page lists stop at the first
// page without new products; "next" links are followed up to MaxPages.
func (d *Discoverer) Vendor(ctx context.Context, v *vendor.Vendor) (DiscoverySummary, error) {
	sum := DiscoverySummary{Vendor: v.Tag}
	logger := d.logger.With(zap.String("vendor", v.Tag))

	interval := d.interval
	if v.HostInterval > interval {
		interval = v.HostInterval
	}
	maxPages := v.Discovery.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	visited := map[string]bool{}
	queue := v.ListingURLs()
	paginated := v.Discovery.PageURL != ""

	for len(queue) > 0 && sum.Pages < maxPages {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		doc, base, err := d.listing(ctx, pageURL, interval)
		if err != nil {
			logger.Warn("Listing page failed", zap.String("url", pageURL), zap.Error(err))
			if paginated {
				break
			}
			continue
		}
		sum.Pages++

		products := 0
		doc.Find(v.Discovery.LinkSelector).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			abs, err := utils.ToAbsoluteURL(base, href)
			if err != nil {
				return
			}
			if d.consider(ctx, v, abs, &sum) {
				products++
			}
		})

		if paginated && products == 0 {
			break
		}
		if !paginated && v.Discovery.NextSelector != "" {
			if href, ok := doc.Find(v.Discovery.NextSelector).First().Attr("href"); ok {
				if next, err := utils.ToAbsoluteURL(base, href); err == nil && !visited[next] {
					queue = append(queue, next)
				}
			}
		}
	}

	logger.Info("Discovery finished",
		zap.Int("pages", sum.Pages),
		zap.Int("found", sum.Found),
		zap.Int("inserted", sum.Inserted),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("rejected", sum.Rejected),
	)
	return sum, nil
}

func (d *Discoverer) listing(ctx context.Context, pageURL string, interval time.Duration) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.gate.Wait(ctx, utils.Host(pageURL), interval); err != nil {
		return nil, nil, err
	}
	res, err := d.fetch.Fetch(ctx, repository.FetchRequest{URL: pageURL, UserAgent: d.userAgent})
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.HTML))
	if err != nil {
		return nil, nil, err
	}
	return doc, base, nil
}

// consider filters one candidate link and inserts it. It reports whether
// the link was a product URL, known or not; pagination continues while a
// page still lists products.
func (d *Discoverer) consider(ctx context.Context, v *vendor.Vendor, rawURL string, sum *DiscoverySummary) bool {
	canonical := utils.CanonicalURL(rawURL)
	u, err := url.Parse(canonical)
	if err != nil || !IsProductURL(v, u) {
		sum.Rejected++
		metrics.DiscoveredURLsTotal.WithLabelValues(v.Tag, "rejected").Inc()
		return false
	}
	sum.Found++
	hash := utils.HashURL(canonical)

	if d.seen != nil {
		if seen, err := d.seen.IsSeen(ctx, hash); err == nil && seen {
			sum.Duplicates++
			metrics.DiscoveredURLsTotal.WithLabelValues(v.Tag, "duplicate").Inc()
			return true
		}
	}

	inserted, err := d.progress.Insert(ctx, canonical, v.Tag)
	if err != nil {
		d.logger.Error("Insert failed", zap.String("url", canonical), zap.Error(err))
		return false
	}
	if d.seen != nil {
		if err := d.seen.MarkSeen(ctx, hash, seenExpiry); err != nil {
			d.logger.Debug("Seen cache write failed", zap.Error(err))
		}
	}
	if !inserted {
		sum.Duplicates++
		metrics.DiscoveredURLsTotal.WithLabelValues(v.Tag, "duplicate").Inc()
		return true
	}
	sum.Inserted++
	metrics.DiscoveredURLsTotal.WithLabelValues(v.Tag, "inserted").Inc()
	return true
}

// IsProductURL reports whether u is a product page of v: same host, the
// vendor's product path rule, and none of the generic non-product paths.
func IsProductURL(v *vendor.Vendor, u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if len(v.Hosts) > 0 {
		host := utils.Host(u.String())
		match := false
		for _, h := range v.Hosts {
			if host == h || host == "www."+h {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	full := u.Path
	if u.RawQuery != "" {
		full += "?" + u.RawQuery
	}
	if nonProductPath.MatchString(full) {
		return false
	}
	return v.IsProductURL(u.Path)
}
