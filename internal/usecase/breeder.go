package usecase

import (
	"context"

	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/vendor"
	"go.uber.org/zap"
)

// Breeder provenance values written to breeder_source_clean.
const (
	BreederSourceRaw            = "raw"
	BreederSourceSelfBranded    = "self_branded"
	BreederSourceHTML           = "html"
	BreederSourceVendorFallback = "vendor_fallback"
)

// BreederResolution is where a missing breeder was found.
type BreederResolution struct {
	Breeder string
	Source  string
}

// Fallback reports whether the breeder is the vendor itself rather than a
// value read from the page.
func (r BreederResolution) Fallback() bool {
	return r.Source == BreederSourceSelfBranded || r.Source == BreederSourceVendorFallback
}

// BreederResolver re-reads archived pages to fill missing breeders.
type BreederResolver struct {
	archive repository.ArchiveRepository
	vendors *vendor.Registry
	logger  *zap.Logger
}

// NewBreederResolver creates a resolver over the archive.
func NewBreederResolver(archive repository.ArchiveRepository, vendors *vendor.Registry, logger *zap.Logger) *BreederResolver {
	return &BreederResolver{archive: archive, vendors: vendors, logger: logger.Named("breeder")}
}

// Resolve finds the breeder of a row of vendor tag. Self-branded vendors
// answer without reading; otherwise each archived capture is tried with the
// vendor's strategies before falling back to the vendor's display name.
func (r *BreederResolver) Resolve(ctx context.Context, tag string, archiveKeys []string, sourceURL string) BreederResolution {
	v, ok := r.vendors.Lookup(tag)
	if !ok {
		return BreederResolution{Breeder: r.vendors.Display(tag), Source: BreederSourceVendorFallback}
	}
	if v.SelfBranded() {
		return BreederResolution{Breeder: v.DefaultBreeder, Source: BreederSourceSelfBranded}
	}

	for _, key := range archiveKeys {
		if key == "" || len(v.Breeder) == 0 {
			continue
		}
		html, err := r.archive.GetHTML(ctx, key)
		if err != nil {
			r.logger.Debug("Archived page unreadable", zap.String("key", key), zap.Error(err))
			continue
		}
		if b := v.ExtractBreeder(html, sourceURL); b != "" {
			return BreederResolution{Breeder: b, Source: BreederSourceHTML}
		}
	}
	return BreederResolution{Breeder: r.vendors.Display(tag), Source: BreederSourceVendorFallback}
}
