package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/units"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

const unifyStage = "unify"

// commercialLabel matches vendor columns that carry shop data, never botany.
var commercialLabel = regexp.MustCompile(`(?:^|_)(?:prices?|sku|packs?|stock|shipping|currency|cost|sale|discount|quantity|qty|availability|delivery|gtin\d*|mpn|ean|barcode|payment|reward)(?:_|$)`)

// ratioLabel matches combined "sativa/indica" columns that need splitting.
var ratioLabel = regexp.MustCompile(`^(?:sativa_indica|indica_sativa|sativa_indica_ratio|indica_sativa_ratio|ratio|genetic_ratio)$`)

var ratioValue = regexp.MustCompile(`(?i)(\d{1,3})\s*%?\s*(sativa|indica)\b`)

// columnRule maps vendor labels onto one canonical column. Earlier
// patterns win when a row has several matching columns.
type columnRule struct {
	canonical string
	patterns  []*regexp.Regexp
}

func rule(canonical string, patterns ...string) columnRule {
	r := columnRule{canonical: canonical}
	for _, p := range patterns {
		r.patterns = append(r.patterns, regexp.MustCompile(`^(?:`+p+`)$`))
	}
	return r
}

var columnRules = []columnRule{
	rule(entity.ColStrainNameRaw, `strain_name`, `strain`, `(?:product_)?name`, `title`),
	rule(entity.ColBreederNameRaw, `breeder(?:_name)?`, `bred_by`, `seed_?bank`, `manufacturer`, `brand`),
	rule(entity.ColGeneticsRaw, `genetics|genetic|lineage|parents|parentage|cross|genetic_background|strain_genetics`),
	rule("sativa_percentage_raw", `sativa(?:_percentage|_content)?`),
	rule("indica_percentage_raw", `indica(?:_percentage|_content)?`),
	rule("dominant_type_raw", `dominant_type|dominance|strain_type`, `type|genotype|variety`),
	rule("generation_raw", `generation|filial(?:_generation)?`),
	rule("thc_min_raw", `thc_min|min_thc`),
	rule("thc_max_raw", `thc_max|max_thc`),
	rule("thc_average_raw", `thc_avg|thc_average|average_thc`),
	rule("thc_content_raw", `thc(?:_content|_level|_levels|_percentage)?`),
	rule("cbd_min_raw", `cbd_min|min_cbd`),
	rule("cbd_max_raw", `cbd_max|max_cbd`),
	rule("cbd_content_raw", `cbd(?:_content|_level|_levels|_percentage)?`),
	rule("cbn_min_raw", `cbn_min|min_cbn`),
	rule("cbn_max_raw", `cbn_max|max_cbn`),
	rule("cbn_content_raw", `cbn(?:_content|_level|_levels)?`),
	rule("flowering_time_raw", `flowering_time(?:_indoor)?|indoor_flowering_time|flowering_period|flowering|flower_time|flowering_weeks`, `seed_to_harvest|life_cycle|harvest_time`),
	rule("yield_indoor_raw", `yield_indoors?|indoor_yield`, `yield`),
	rule("yield_outdoor_raw", `yield_outdoors?|outdoor_yield`),
	rule("height_indoor_raw", `height_indoors?|indoor_height|plant_height_indoor`, `height|plant_height`),
	rule("height_outdoor_raw", `height_outdoors?|outdoor_height|plant_height_outdoor`),
	rule("difficulty_raw", `difficulty|grow_difficulty|growing_difficulty|cultivation_difficulty|grow_level`),
	rule("climate_raw", `climate|climate_zone|growing_climate`),
	rule("primary_effect_raw", `primary_effect|main_effect`),
	rule("effects_all_raw", `effects?`),
	rule("flavors_all_raw", `flavou?rs?|taste|flavou?r_profile`),
	rule("aroma_raw", `aromas?|smell|scent`),
	rule("dominant_terpene_raw", `dominant_terpene|main_terpene`),
	rule("terpenes_raw", `terpenes?|terpene_profile`),
	rule(entity.ColSeedTypeRaw, `seed_type|sex|gender|seed_sex`),
	rule(entity.ColFloweringTypeRaw, `flowering_type|photoperiod|auto_photo|flowering_style`),
	rule("awards_raw", `awards?|cups?|prizes?`),
	rule(entity.ColDescriptionRaw, `description`),
}

// columnMapping is the resolved target of one vendor column.
type columnMapping struct {
	canonical string
	priority  int
	ratio     bool
	dropped   bool
}

// MapColumn resolves a vendor label. ok is false for unknown labels.
func MapColumn(label string) (canonical string, priority int, ok bool) {
	m := mapColumn(label)
	if m.dropped || m.ratio || m.canonical == "" {
		return "", 0, false
	}
	return m.canonical, m.priority, true
}

func mapColumn(label string) columnMapping {
	if commercialLabel.MatchString(label) {
		return columnMapping{dropped: true}
	}
	if ratioLabel.MatchString(label) {
		return columnMapping{ratio: true}
	}
	for _, r := range columnRules {
		for i, p := range r.patterns {
			if p.MatchString(label) {
				return columnMapping{canonical: r.canonical, priority: i}
			}
		}
	}
	return columnMapping{}
}

// MasterColumns returns the declared schema of the master raw table.
func MasterColumns() []table.Column {
	var cols []table.Column
	add := func(names []string) {
		for _, n := range names {
			cols = append(cols, table.Column{Name: n, Type: table.TypeString, Origin: unifyStage})
		}
	}
	add(entity.MasterIdentityColumns)
	add(entity.MasterDataColumns)
	cols = append(cols,
		table.Column{Name: entity.ColMethodsUsed, Type: table.TypeString, Origin: unifyStage},
		table.Column{Name: entity.ColCompleteness, Type: table.TypeNumber, Origin: unifyStage},
	)
	return cols
}

// UnifySummary counts one unify run.
type UnifySummary struct {
	Vendors         int
	InputRows       int
	OutputRows      int
	MergedCaptures  int
	NewIDs          int
	ReusedIDs       int
	DroppedColumns  []string
	UnknownColumns  []string
	BackfilledURL   int
	BackfilledDates int
	BackfilledKeys  int
}

// Unifier merges per-vendor raw tables into the master raw table.
type Unifier struct {
	logger *zap.Logger
	newID  func() string
}

// NewUnifier creates a unifier.
func NewUnifier(logger *zap.Logger) *Unifier {
	return &Unifier{logger: logger.Named("unify"), newID: uuid.NewString}
}

// Run reads every vendor table in rawDir and writes the master raw table to
// outPath. Rows of an existing master at outPath keep their strain_id.
func (u *Unifier) Run(ctx context.Context, rawDir, outPath string, inv *Inventory) (UnifySummary, error) {
	paths, err := filepath.Glob(filepath.Join(rawDir, "*.csv"))
	if err != nil {
		return UnifySummary{}, err
	}
	if len(paths) == 0 {
		return UnifySummary{}, fmt.Errorf("%w: no vendor tables in %s", ErrPrecondition, rawDir)
	}
	sort.Strings(paths)

	tables := make([]*table.Table, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return UnifySummary{}, err
		}
		t, err := table.Load(p, extractStage)
		if err != nil {
			return UnifySummary{}, fmt.Errorf("load %s: %w", p, err)
		}
		tables = append(tables, t)
	}

	ids, err := previousIDs(outPath)
	if err != nil {
		return UnifySummary{}, err
	}
	master, sum, err := u.Unify(tables, inv, ids)
	if err != nil {
		return sum, err
	}
	if err := master.Save(outPath); err != nil {
		return sum, err
	}
	u.logger.Info("Master raw table written",
		zap.String("path", outPath),
		zap.Int("vendors", sum.Vendors),
		zap.Int("input_rows", sum.InputRows),
		zap.Int("output_rows", sum.OutputRows),
		zap.Int("new_ids", sum.NewIDs),
		zap.Int("reused_ids", sum.ReusedIDs),
	)
	return sum, nil
}

// previousIDs maps "vendor|archive_key" of an existing master to strain_id.
func previousIDs(path string) (map[string]string, error) {
	t, err := table.Load(path, unifyStage)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous master %s: %w", path, err)
	}
	ids := make(map[string]string, t.Len())
	for _, r := range t.Rows() {
		if id := r.Text(entity.ColStrainID); id != "" {
			ids[idKey(r.Text(entity.ColVendor), r.Text(entity.ColArchiveKey))] = id
		}
	}
	return ids, nil
}

func idKey(vendor, archiveKey string) string {
	return vendor + "|" + archiveKey
}

// Unify maps, backfills, merges captures and assigns ids. It is pure apart
// from id minting.
func (u *Unifier) Unify(tables []*table.Table, inv *Inventory, ids map[string]string) (*table.Table, UnifySummary, error) {
	var sum UnifySummary
	dropped := map[string]bool{}
	unknown := map[string]bool{}

	type group struct {
		rows []table.Row
	}
	groups := map[string]*group{}
	var order []string

	for _, t := range tables {
		sum.Vendors++
		mappings := make(map[string]columnMapping, len(t.Columns()))
		for _, name := range t.ColumnNames() {
			if isRawIdentity(name) {
				continue
			}
			m := mapColumn(name)
			mappings[name] = m
			switch {
			case m.dropped:
				dropped[name] = true
			case !m.ratio && m.canonical == "":
				unknown[name] = true
			}
		}

		for _, in := range t.Rows() {
			sum.InputRows++
			row := u.mapRow(in, mappings)
			u.backfill(row, inv, &sum)

			key := captureKey(row, sum.InputRows)
			g, ok := groups[key]
			if !ok {
				g = &group{}
				groups[key] = g
				order = append(order, key)
			}
			g.rows = append(g.rows, row)
		}
	}

	out := table.New(MasterColumns()...)
	var rows []table.Row
	for _, key := range order {
		g := groups[key]
		row := g.rows[0]
		if len(g.rows) > 1 {
			row = preferCapture(g.rows)
			sum.MergedCaptures += len(g.rows) - 1
		}
		row[entity.ColCompleteness] = table.Num(completeness(row))

		idk := idKey(row.Text(entity.ColVendor), row.Text(entity.ColArchiveKey))
		if id, ok := ids[idk]; ok {
			row[entity.ColStrainID] = table.Str(id)
			sum.ReusedIDs++
		} else {
			row[entity.ColStrainID] = table.Str(u.newID())
			sum.NewIDs++
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Text(entity.ColVendor) != b.Text(entity.ColVendor) {
			return a.Text(entity.ColVendor) < b.Text(entity.ColVendor)
		}
		if a.Text(entity.ColSourceURL) != b.Text(entity.ColSourceURL) {
			return a.Text(entity.ColSourceURL) < b.Text(entity.ColSourceURL)
		}
		return a.Text(entity.ColArchiveKey) < b.Text(entity.ColArchiveKey)
	})
	for _, r := range rows {
		if err := out.Append(r); err != nil {
			return nil, sum, fmt.Errorf("master row %s: %w", r.Text(entity.ColSourceURL), err)
		}
	}
	sum.OutputRows = out.Len()
	sum.DroppedColumns = sortedKeys(dropped)
	sum.UnknownColumns = sortedKeys(unknown)
	for _, c := range sum.UnknownColumns {
		u.logger.Debug("Unmapped vendor column", zap.String("column", c))
	}
	return out, sum, nil
}

func isRawIdentity(name string) bool {
	for _, c := range rawIdentity {
		if c == name {
			return true
		}
	}
	return false
}

// mapRow builds a canonical row from one vendor row.
func (u *Unifier) mapRow(in table.Row, mappings map[string]columnMapping) table.Row {
	row := table.Row{}
	for _, c := range []struct{ from, to string }{
		{RawVendor, entity.ColVendor},
		{RawSourceURL, entity.ColSourceURL},
		{RawArchiveKey, entity.ColArchiveKey},
		{RawScrapedAt, entity.ColScrapedAt},
		{RawMethods, entity.ColMethodsUsed},
	} {
		if v := in.Text(c.from); v != "" {
			row[c.to] = table.Str(v)
		}
	}

	best := map[string]int{}
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m, ok := mappings[name]
		if !ok || m.dropped {
			continue
		}
		val := strings.TrimSpace(in.Text(name))
		if val == "" {
			continue
		}
		if m.ratio {
			splitRatio(row, val)
			continue
		}
		if m.canonical == "" {
			continue
		}
		if p, seen := best[m.canonical]; seen && p <= m.priority {
			continue
		}
		best[m.canonical] = m.priority
		row[m.canonical] = table.Str(val)
	}
	return row
}

// splitRatio fills sativa/indica percentages from a combined value such as
// "70% Sativa / 30% Indica" unless a dedicated column already did.
func splitRatio(row table.Row, val string) {
	for _, m := range ratioValue.FindAllStringSubmatch(val, -1) {
		col := strings.ToLower(m[2]) + "_percentage_raw"
		if row.Text(col) == "" {
			row[col] = table.Str(m[1])
		}
	}
}

// backfill completes provenance from the archive inventory.
func (u *Unifier) backfill(row table.Row, inv *Inventory, sum *UnifySummary) {
	if inv == nil {
		if k := row.Text(entity.ColArchiveKey); k != "" {
			row[entity.ColArchiveKeysAll] = table.Str(k)
		}
		return
	}
	var e *entity.InventoryEntry
	if h := entity.HashFromKey(row.Text(entity.ColArchiveKey)); h != "" {
		e, _ = inv.Get(h)
	}
	if e == nil && row.Text(entity.ColSourceURL) != "" {
		e, _ = inv.Lookup(row.Text(entity.ColSourceURL))
	}
	if e != nil {
		if row.Text(entity.ColSourceURL) == "" && e.OriginalURL != "" {
			row[entity.ColSourceURL] = table.Str(e.OriginalURL)
			sum.BackfilledURL++
		}
		if row.Text(entity.ColScrapedAt) == "" && !e.CollectionDate.IsZero() {
			row[entity.ColScrapedAt] = table.Str(e.CollectionDate.UTC().Format(time.RFC3339))
			sum.BackfilledDates++
		}
		if row.Text(entity.ColArchiveKey) == "" && e.PreferredKey() != "" {
			row[entity.ColArchiveKey] = table.Str(e.PreferredKey())
			sum.BackfilledKeys++
		}
		if keys := e.Keys(); len(keys) > 0 {
			row[entity.ColArchiveKeysAll] = table.Str(strings.Join(keys, ";"))
			return
		}
	}
	if k := row.Text(entity.ColArchiveKey); k != "" {
		row[entity.ColArchiveKeysAll] = table.Str(k)
	}
}

// captureKey groups static and JS captures of the same URL of a vendor.
func captureKey(row table.Row, n int) string {
	h := entity.HashFromKey(row.Text(entity.ColArchiveKey))
	if h == "" && row.Text(entity.ColSourceURL) != "" {
		h = utils.HashURL(row.Text(entity.ColSourceURL))
	}
	if h == "" {
		// nothing to merge on; every such row stands alone
		return fmt.Sprintf("row:%d", n)
	}
	return row.Text(entity.ColVendor) + "|" + h
}

// preferCapture keeps the JS capture unless the static one has strictly
// more fields; the kept row lists every capture key.
func preferCapture(rows []table.Row) table.Row {
	var js, static table.Row
	keys := map[string]bool{}
	for _, r := range rows {
		for _, k := range strings.Split(r.Text(entity.ColArchiveKeysAll), ";") {
			if k != "" {
				keys[k] = true
			}
		}
		if k := r.Text(entity.ColArchiveKey); k != "" {
			keys[k] = true
		}
		if entity.IsJSKey(r.Text(entity.ColArchiveKey)) {
			if js == nil || filled(r) > filled(js) {
				js = r
			}
		} else if static == nil || filled(r) > filled(static) {
			static = r
		}
	}
	best := js
	if best == nil || (static != nil && filled(static) > filled(js)) {
		best = static
	}
	best = best.Clone()
	all := sortedKeys(keys)
	// static first, matching InventoryEntry.Keys
	sort.SliceStable(all, func(i, j int) bool { return !entity.IsJSKey(all[i]) && entity.IsJSKey(all[j]) })
	best[entity.ColArchiveKeysAll] = table.Str(strings.Join(all, ";"))
	return best
}

func filled(row table.Row) int {
	n := 0
	for _, c := range entity.MasterDataColumns {
		if row.Text(c) != "" {
			n++
		}
	}
	return n
}

func completeness(row table.Row) float64 {
	return units.Round(float64(filled(row)) / float64(len(entity.MasterDataColumns)))
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MasterRawPath is the master raw table under dataDir.
func MasterRawPath(dataDir string) string {
	return filepath.Join(dataDir, "master_strains_raw.csv")
}
