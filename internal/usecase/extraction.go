package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/vendor"
	"go.uber.org/zap"
)

const extractStage = "extract"

// Identity columns every raw vendor table starts with.
const (
	RawVendor     = "vendor"
	RawSourceURL  = "source_url"
	RawArchiveKey = "archive_key"
	RawScrapedAt  = "scraped_at"
	RawMethods    = "extraction_methods"
)

var rawIdentity = []string{RawVendor, RawSourceURL, RawArchiveKey, RawScrapedAt, RawMethods}

// ExtractionSummary counts one vendor's extraction run.
type ExtractionSummary struct {
	Vendor     string
	Pages      int
	Records    int
	ParseMiss  int
	ReadErrors int
	Path       string
}

// ExtractionRunner turns archived pages of successful rows into one raw
// CSV per vendor.
type ExtractionRunner struct {
	progress repository.ProgressRepository
	archive  repository.ArchiveRepository
	vendors  *vendor.Registry
	outDir   string
	logger   *zap.Logger
}

// NewExtractionRunner writes vendor tables under outDir.
func NewExtractionRunner(progress repository.ProgressRepository, archive repository.ArchiveRepository, vendors *vendor.Registry, outDir string, logger *zap.Logger) *ExtractionRunner {
	return &ExtractionRunner{
		progress: progress,
		archive:  archive,
		vendors:  vendors,
		outDir:   outDir,
		logger:   logger.Named("extraction"),
	}
}

// RawPath is where the raw table of tag is written.
func RawPath(dir, tag string) string {
	return filepath.Join(dir, tag+".csv")
}

// Run extracts every vendor in tags (all extractable vendors when empty).
// inv supplies the JS capture and collection date of each URL; it may be nil.
func (r *ExtractionRunner) Run(ctx context.Context, tags []string, inv *Inventory) ([]ExtractionSummary, error) {
	if len(tags) == 0 {
		tags = r.vendors.Tags()
	}
	var out []ExtractionSummary
	for _, tag := range tags {
		v, ok := r.vendors.Lookup(tag)
		if !ok {
			return out, fmt.Errorf("%w: unknown vendor %q", ErrPrecondition, tag)
		}
		if !v.CanExtract() {
			continue
		}
		sum, err := r.Vendor(ctx, v, inv)
		if err != nil {
			return out, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// Vendor extracts one vendor's archived pages and writes its raw table.
func (r *ExtractionRunner) Vendor(ctx context.Context, v *vendor.Vendor, inv *Inventory) (ExtractionSummary, error) {
	sum := ExtractionSummary{Vendor: v.Tag, Path: RawPath(r.outDir, v.Tag)}
	recs, err := r.progress.ListByStatus(ctx, v.Tag, entity.StatusSuccess)
	if err != nil {
		return sum, fmt.Errorf("%w: list success rows of %s: %v", ErrDownstream, v.Tag, err)
	}

	var records []*entity.RawRecord
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		keys := []string{rec.ArchiveKey}
		var collected time.Time
		if inv != nil {
			if e, ok := inv.Get(rec.URLHash); ok {
				keys = e.Keys()
				collected = e.CollectionDate
			}
		}
		for _, key := range keys {
			if key == "" {
				continue
			}
			sum.Pages++
			html, err := r.archive.GetHTML(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return sum, ctx.Err()
				}
				sum.ReadErrors++
				r.logger.Warn("Archived page unreadable", zap.String("key", key), zap.Error(err))
				continue
			}
			raw, err := v.Extract(html, rec.OriginalURL, key)
			if err != nil {
				sum.ParseMiss++
				r.logger.Warn("Extraction failed", zap.String("key", key), zap.Error(err))
				raw = entity.NewRawRecord(v.Tag, rec.OriginalURL, key)
			}
			if raw.Empty() {
				sum.ParseMiss++
				r.logger.Debug("Nothing extracted", zap.String("key", key))
			}
			raw.ScrapedAt = collected
			records = append(records, raw)
		}
	}

	t, err := RawTable(records)
	if err != nil {
		return sum, err
	}
	if err := t.Save(sum.Path); err != nil {
		return sum, err
	}
	sum.Records = t.Len()
	r.logger.Info("Vendor extracted",
		zap.String("vendor", v.Tag),
		zap.Int("pages", sum.Pages),
		zap.Int("records", sum.Records),
		zap.Int("parse_miss", sum.ParseMiss),
	)
	return sum, nil
}

// RawTable lays records out as a table: identity columns first, then every
// extracted column in name order. Rows follow archive key order.
func RawTable(records []*entity.RawRecord) (*table.Table, error) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].ArchiveKey < records[j].ArchiveKey })

	fieldSet := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec.Fields {
			fieldSet[k] = struct{}{}
		}
	}
	identity := map[string]bool{}
	cols := make([]table.Column, 0, len(rawIdentity)+len(fieldSet))
	for _, name := range rawIdentity {
		identity[name] = true
		cols = append(cols, table.Column{Name: name, Type: table.TypeString, Origin: extractStage})
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		if !identity[k] {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	for _, name := range fields {
		cols = append(cols, table.Column{Name: name, Type: table.TypeString, Origin: extractStage})
	}

	t := table.New(cols...)
	for _, rec := range records {
		row := table.Row{
			RawVendor:     table.Str(rec.Vendor),
			RawSourceURL:  table.Str(rec.SourceURL),
			RawArchiveKey: table.Str(rec.ArchiveKey),
			RawMethods:    table.Str(strings.Join(rec.Methods(), ",")),
		}
		if !rec.ScrapedAt.IsZero() {
			row[RawScrapedAt] = table.Str(rec.ScrapedAt.UTC().Format(time.RFC3339))
		}
		for k, val := range rec.Fields {
			if !identity[k] {
				row[k] = table.Str(val)
			}
		}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.SourceURL, err)
		}
	}
	return t, nil
}
