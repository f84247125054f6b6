package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

const inventoryStage = "inventory"

var inventoryColumns = []table.Column{
	{Name: "url_hash", Type: table.TypeString, Origin: inventoryStage},
	{Name: "original_url", Type: table.TypeString, Origin: inventoryStage},
	{Name: "vendor", Type: table.TypeString, Origin: inventoryStage},
	{Name: "collection_date", Type: table.TypeString, Origin: inventoryStage},
	{Name: "scrape_method", Type: table.TypeString, Origin: inventoryStage},
	{Name: "validation_score", Type: table.TypeNumber, Origin: inventoryStage},
	{Name: "html_key", Type: table.TypeString, Origin: inventoryStage},
	{Name: "js_key", Type: table.TypeString, Origin: inventoryStage},
}

// InventoryReport counts what a scan found.
type InventoryReport struct {
	Sidecars        int
	Entries         int
	OrphanHTML      []string
	OrphanSidecars  []string
	LegacyPreferred int
	LegacyShadowed  int
}

// Inventory is the URL <-> archive key index derived from sidecars.
type Inventory struct {
	byHash map[string]*entity.InventoryEntry
	byURL  map[string]*entity.InventoryEntry
}

// NewInventory indexes entries.
func NewInventory(entries []*entity.InventoryEntry) *Inventory {
	inv := &Inventory{
		byHash: make(map[string]*entity.InventoryEntry, len(entries)),
		byURL:  make(map[string]*entity.InventoryEntry, len(entries)),
	}
	for _, e := range entries {
		inv.byHash[e.URLHash] = e
		if e.OriginalURL != "" {
			inv.byURL[e.OriginalURL] = e
		}
	}
	return inv
}

// Get returns the entry of urlHash.
func (inv *Inventory) Get(urlHash string) (*entity.InventoryEntry, bool) {
	e, ok := inv.byHash[urlHash]
	return e, ok
}

// Lookup finds the entry of a URL by exact match, then by url_hash of the
// URL as given and of its canonical form.
func (inv *Inventory) Lookup(rawURL string) (*entity.InventoryEntry, bool) {
	if e, ok := inv.byURL[rawURL]; ok {
		return e, true
	}
	if e, ok := inv.byHash[utils.HashURL(rawURL)]; ok {
		return e, true
	}
	e, ok := inv.byHash[utils.HashURL(utils.CanonicalURL(rawURL))]
	return e, ok
}

// Entries returns every entry ordered by url_hash.
func (inv *Inventory) Entries() []*entity.InventoryEntry {
	out := make([]*entity.InventoryEntry, 0, len(inv.byHash))
	for _, e := range inv.byHash {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URLHash < out[j].URLHash })
	return out
}

// Len returns the number of entries.
func (inv *Inventory) Len() int {
	return len(inv.byHash)
}

// Table renders the inventory as a table.
func (inv *Inventory) Table() (*table.Table, error) {
	t := table.New(inventoryColumns...)
	for _, e := range inv.Entries() {
		row := table.Row{
			"url_hash":         table.Str(e.URLHash),
			"original_url":     table.Str(e.OriginalURL),
			"vendor":           table.Str(e.Vendor),
			"scrape_method":    table.Str(string(e.ScrapeMethod)),
			"validation_score": table.Num(e.ValidationScore),
			"html_key":         table.Str(e.HTMLKey),
			"js_key":           table.Str(e.JSKey),
		}
		if !e.CollectionDate.IsZero() {
			row["collection_date"] = table.Str(e.CollectionDate.UTC().Format(time.RFC3339))
		}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("inventory entry %s: %w", e.URLHash, err)
		}
	}
	return t, nil
}

// Save writes the inventory CSV.
func (inv *Inventory) Save(path string) error {
	t, err := inv.Table()
	if err != nil {
		return err
	}
	return t.Save(path)
}

// LoadInventory reads an inventory written by Save.
func LoadInventory(path string) (*Inventory, error) {
	t, err := table.Load(path, inventoryStage)
	if err != nil {
		return nil, err
	}
	entries := make([]*entity.InventoryEntry, 0, t.Len())
	for _, r := range t.Rows() {
		e := &entity.InventoryEntry{
			URLHash:      r.Text("url_hash"),
			OriginalURL:  r.Text("original_url"),
			Vendor:       r.Text("vendor"),
			ScrapeMethod: entity.ScrapeMethod(r.Text("scrape_method")),
			HTMLKey:      r.Text("html_key"),
			JSKey:        r.Text("js_key"),
		}
		if score, ok := r.Get("validation_score").Float(); ok {
			e.ValidationScore = score
		}
		if ts, err := time.Parse(time.RFC3339, r.Text("collection_date")); err == nil {
			e.CollectionDate = ts
		}
		if e.URLHash != "" {
			entries = append(entries, e)
		}
	}
	return NewInventory(entries), nil
}

// Inventorier scans the archive keyspaces into an Inventory.
type Inventorier struct {
	archive repository.ArchiveRepository
	logger  *zap.Logger
}

// NewInventorier creates an archive scanner.
func NewInventorier(archive repository.ArchiveRepository, logger *zap.Logger) *Inventorier {
	return &Inventorier{archive: archive, logger: logger.Named("inventory")}
}

// Build lists every keyspace and pairs HTML objects with their sidecars.
// Orphans on either side are reported and left out.
func (s *Inventorier) Build(ctx context.Context) (*Inventory, InventoryReport, error) {
	var rep InventoryReport

	static, err := s.hashes(ctx, entity.PrefixHTML)
	if err != nil {
		return nil, rep, err
	}
	js, err := s.hashes(ctx, entity.PrefixHTMLJS)
	if err != nil {
		return nil, rep, err
	}
	legacy, err := s.hashes(ctx, entity.PrefixLegacy)
	if err != nil {
		return nil, rep, err
	}
	sidecars, err := s.hashes(ctx, entity.PrefixMetadata)
	if err != nil {
		return nil, rep, err
	}
	rep.Sidecars = len(sidecars)

	entries := make([]*entity.InventoryEntry, 0, len(sidecars))
	for h := range sidecars {
		meta, err := s.archive.GetMetadata(ctx, h)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, rep, fmt.Errorf("%w: read sidecar %s: %v", ErrDownstream, h, err)
		}
		e := &entity.InventoryEntry{
			URLHash:         h,
			OriginalURL:     meta.OriginalURL,
			Vendor:          meta.Vendor,
			CollectionDate:  meta.CollectionDate,
			ScrapeMethod:    meta.ScrapeMethod,
			ValidationScore: meta.ValidationScore,
		}
		switch {
		case static[h] != "":
			e.HTMLKey = static[h]
			if legacy[h] != "" {
				rep.LegacyShadowed++
			}
		case legacy[h] != "":
			e.HTMLKey = legacy[h]
			rep.LegacyPreferred++
		}
		e.JSKey = js[h]

		if e.HTMLKey == "" && e.JSKey == "" {
			rep.OrphanSidecars = append(rep.OrphanSidecars, h)
			s.logger.Warn("Sidecar without HTML", zap.String("url_hash", h))
			continue
		}
		entries = append(entries, e)
	}

	for _, keys := range []map[string]string{static, js, legacy} {
		for h, key := range keys {
			if _, ok := sidecars[h]; !ok {
				rep.OrphanHTML = append(rep.OrphanHTML, key)
				s.logger.Warn("HTML without sidecar", zap.String("key", key))
			}
		}
	}
	sort.Strings(rep.OrphanHTML)
	sort.Strings(rep.OrphanSidecars)

	inv := NewInventory(entries)
	rep.Entries = inv.Len()
	s.logger.Info("Archive inventory built",
		zap.Int("entries", rep.Entries),
		zap.Int("orphan_html", len(rep.OrphanHTML)),
		zap.Int("orphan_sidecars", len(rep.OrphanSidecars)),
		zap.Int("legacy_preferred", rep.LegacyPreferred),
	)
	return inv, rep, nil
}

// hashes lists prefix and maps url_hash to key. Keys without a hash are skipped.
func (s *Inventorier) hashes(ctx context.Context, prefix string) (map[string]string, error) {
	keys, err := s.archive.ListKeys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrDownstream, prefix, err)
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		h := entity.HashFromKey(key)
		if h == "" {
			s.logger.Debug("Skipping unrecognised key", zap.String("key", key))
			continue
		}
		out[h] = key
	}
	return out, nil
}
