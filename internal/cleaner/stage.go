// Package cleaner runs the ordered cleaning stages over the master raw
// table. Each stage declares its schema changes, reads the previous
// stage's checkpoint and writes its own together with a count report.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/pkg/config"
	"go.uber.org/zap"
)

// ErrMissingInput is returned when a stage has no checkpoint to read.
var ErrMissingInput = errors.New("stage input missing")

// BreederResolver fills missing breeders from archived pages.
type BreederResolver interface {
	Resolve(ctx context.Context, tag string, archiveKeys []string, sourceURL string) usecase.BreederResolution
}

// Stage is one named transform.
type Stage struct {
	ID    string
	Name  string
	Apply func(ctx context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error)
}

// File is the checkpoint basename of the stage, e.g. "10b_cannabinoid_scrub".
func (s Stage) File() string {
	return s.ID + "_" + s.Name
}

// Env is the read-only state shared by the stages: curated lists compiled
// once, the breeder resolver for stage 11 and the logger.
type Env struct {
	Curated  *config.Curated
	Breeders BreederResolver
	Logger   *zap.Logger

	placeholders      map[string]bool
	nonProduct        []*regexp.Regexp
	promoTags         []*regexp.Regexp
	vendorPrefix      *regexp.Regexp
	nonCannabisURL    []string
	nonCannabisBrands map[string]bool
	badDuplicates     map[string]bool
}

// NewEnv compiles the curated lists. breeders may be nil; stage 11 then
// falls back to vendor names only.
func NewEnv(cur *config.Curated, breeders BreederResolver, logger *zap.Logger) (*Env, error) {
	env := &Env{
		Curated:           cur,
		Breeders:          breeders,
		Logger:            logger.Named("cleaner"),
		placeholders:      map[string]bool{},
		nonCannabisBrands: map[string]bool{},
		badDuplicates:     map[string]bool{},
	}
	for _, tok := range cur.PlaceholderTokens {
		env.placeholders[strings.ToLower(strings.TrimSpace(tok))] = true
	}
	for _, p := range cur.NonProductNames {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("non-product pattern %q: %w", p, err)
		}
		env.nonProduct = append(env.nonProduct, re)
	}
	for _, p := range cur.PromoTags {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("promo tag %q: %w", p, err)
		}
		env.promoTags = append(env.promoTags, re)
	}
	if len(cur.VendorPrefixes) > 0 {
		quoted := make([]string, len(cur.VendorPrefixes))
		for i, p := range cur.VendorPrefixes {
			quoted[i] = regexp.QuoteMeta(p)
		}
		env.vendorPrefix = regexp.MustCompile(`(?i)^(?:` + strings.Join(quoted, "|") + `)(?:\s+seeds?)?\s*[-:|–]?\s+`)
	}
	for _, p := range cur.NonCannabisURLPatterns {
		env.nonCannabisURL = append(env.nonCannabisURL, strings.ToLower(p))
	}
	for _, b := range cur.NonCannabisBreeders {
		env.nonCannabisBrands[strings.ToLower(strings.TrimSpace(b))] = true
	}
	for _, v := range cur.BadDuplicateVendors {
		env.badDuplicates[v] = true
	}
	return env, nil
}

// Stages returns the pipeline in execution order.
func Stages() []Stage {
	return []Stage{
		{ID: "01", Name: "dedupe_urls", Apply: dedupeURLs},
		{ID: "02", Name: "unit_normalize", Apply: unitNormalize},
		{ID: "03", Name: "placeholder_scrub", Apply: placeholderScrub},
		{ID: "04", Name: "type_coerce", Apply: typeCoerce},
		{ID: "05", Name: "genetics_derive", Apply: geneticsDerive},
		{ID: "06", Name: "strain_name_normalize", Apply: strainNameNormalize},
		{ID: "07", Name: "aka_extract", Apply: akaExtract},
		{ID: "08", Name: "similar_spelling", Apply: similarSpelling},
		{ID: "09", Name: "autoflower_classify", Apply: autoflowerClassify},
		{ID: "10a", Name: "deep_clean_names", Apply: deepCleanNames},
		{ID: "10b", Name: "cannabinoid_scrub", Apply: cannabinoidScrub},
		{ID: "10c", Name: "minmax_split", Apply: minMaxSplit},
		{ID: "10d", Name: "categorical_standardize", Apply: categoricalStandardize},
		{ID: "10e", Name: "breeder_canonicalize", Apply: breederCanonicalize},
		{ID: "10f", Name: "remove_non_cannabis", Apply: removeNonCannabis},
		{ID: "11", Name: "breeder_extract", Apply: breederExtract},
		{ID: "12", Name: "lineage", Apply: lineageStage},
	}
}

// rowFunc edits a cloned row in place and reports whether to keep it.
type rowFunc func(row table.Row) (keep bool)

// transform evolves the schema of in and runs fn over a clone of every row.
func transform(in *table.Table, stage string, ch table.Changes, fn rowFunc) (*table.Table, error) {
	out := in.Evolve(stage, ch)
	for _, r := range in.Rows() {
		row := r.Clone()
		if !fn(row) {
			continue
		}
		if err := out.Append(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func str(name string) table.Column  { return table.Column{Name: name, Type: table.TypeString} }
func num(name string) table.Column  { return table.Column{Name: name, Type: table.TypeNumber} }
func flag(name string) table.Column { return table.Column{Name: name, Type: table.TypeBool} }

// setNum writes v, or null when ok is false.
func setNum(row table.Row, column string, v float64, ok bool) {
	if ok {
		row[column] = table.Num(v)
		return
	}
	delete(row, column)
}

func setStr(row table.Row, column, v string) {
	if val := table.Str(v); !val.IsNull() {
		row[column] = val
		return
	}
	delete(row, column)
}
