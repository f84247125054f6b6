package cleaner

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/extract"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/units"
)

// NearDuplicateThreshold is the Jaro-Winkler similarity above which two
// distinct spelling keys are reported as candidate duplicates.
const NearDuplicateThreshold = 0.96

func strainNameNormalize(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{str(ColNormalizedName)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		n := extract.NormalizedName(row.Text(entity.ColStrainNameRaw))
		setStr(row, ColNormalizedName, n)
		countIf(rep, ColNormalizedName, n != "")
		return true
	})
}

func akaExtract(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{str(ColAKANames)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		names, stripped := extract.SplitAKA(row.Text(entity.ColStrainNameRaw))
		setStr(row, ColAKANames, strings.Join(names, ", "))
		setStr(row, ColNormalizedName, extract.NormalizedName(stripped))
		countIf(rep, ColAKANames, len(names) > 0)
		return true
	})
}

// similarSpelling adds the matching key and reports near-duplicate keys.
// It never merges rows.
func similarSpelling(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{str(ColSimilarSpelling)}}
	keys := map[string]bool{}
	out, err := transform(in, rep.Stage, ch, func(row table.Row) bool {
		src := row.Text(ColNormalizedName)
		if src == "" {
			_, src = extract.SplitAKA(row.Text(entity.ColStrainNameRaw))
		}
		k := extract.SimilarSpellingKey(src)
		setStr(row, ColSimilarSpelling, k)
		if k != "" {
			keys[k] = true
			rep.Count(ColSimilarSpelling)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	for _, p := range nearDuplicates(keys) {
		rep.Count("near_duplicate_pairs")
		rep.Note("near_duplicate %s ~ %s (%.3f)", p.a, p.b, p.score)
	}
	return out, nil
}

type keyPair struct {
	a, b  string
	score float64
}

// nearDuplicates compares keys sharing their first two runes. Full pairwise
// comparison is quadratic over tens of thousands of names.
func nearDuplicates(keys map[string]bool) []keyPair {
	blocks := map[string][]string{}
	for k := range keys {
		r := []rune(k)
		if len(r) < 4 {
			continue
		}
		block := string(r[:2])
		blocks[block] = append(blocks[block], k)
	}

	var pairs []keyPair
	for _, ks := range blocks {
		sort.Strings(ks)
		for i := range ks {
			for j := i + 1; j < len(ks); j++ {
				if s := matchr.JaroWinkler(ks[i], ks[j], false); s >= NearDuplicateThreshold {
					pairs = append(pairs, keyPair{a: ks[i], b: ks[j], score: s})
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	return pairs
}

var (
	autoTextRegex = regexp.MustCompile(`(?i)\bauto(?:flower(?:ing|s)?|matic)?\b`)
	autoPathRegex = regexp.MustCompile(`(?i)(?:^|[/_-])auto(?:flower(?:ing|s)?|matic)?(?:[/_.-]|$)`)
)

func autoflowerEvidence(row table.Row) bool {
	for _, col := range []string{entity.ColSeedTypeRaw, entity.ColFloweringTypeRaw, entity.ColStrainNameRaw} {
		if autoTextRegex.MatchString(row.Text(col)) {
			return true
		}
	}
	if u, err := url.Parse(row.Text(entity.ColSourceURL)); err == nil && u.Path != "" {
		return autoPathRegex.MatchString(u.Path)
	}
	return false
}

// autoflowerClassify flags autoflowers and moves their flowering time into
// the seed-to-harvest columns, since autoflower timings count from seed.
func autoflowerClassify(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{flag(ColIsAutoflower), num(ColAutoHarvestMin), num(ColAutoHarvestMax)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		auto := autoflowerEvidence(row)
		row[ColIsAutoflower] = table.Bool(auto)
		if !auto {
			delete(row, ColAutoHarvestMin)
			delete(row, ColAutoHarvestMax)
			return true
		}
		rep.Count(ColIsAutoflower)

		if r, ok := units.Days(row.Text(colFloweringRaw)); ok {
			row[ColAutoHarvestMin] = table.Num(r.Min)
			row[ColAutoHarvestMax] = table.Num(r.Max)
			rep.Count("seed_to_harvest")
		} else if d, ok := row.Get(ColFloweringDays).Float(); ok {
			row[ColAutoHarvestMin] = table.Num(d)
			row[ColAutoHarvestMax] = table.Num(d)
			rep.Count("seed_to_harvest")
		}
		if !row.Get(ColFloweringDays).IsNull() {
			delete(row, ColFloweringDays)
			rep.Count("flowering_nulled")
		}
		return true
	})
}

// CleanStrainName strips vendor prefixes, promotional tags, AKA payloads,
// pack sizes and seed-type words from a product title.
func (e *Env) CleanStrainName(raw string) (name string, prefixed, promo bool) {
	name = units.Clean(raw)
	if e.vendorPrefix != nil && e.vendorPrefix.MatchString(name) {
		name = e.vendorPrefix.ReplaceAllString(name, "")
		prefixed = true
	}
	for _, re := range e.promoTags {
		if re.MatchString(name) {
			name = re.ReplaceAllString(name, " ")
			promo = true
		}
	}
	_, name = extract.SplitAKA(name)
	return extract.StrainName(name), prefixed, promo
}

// isNonProduct reports whether a name matches a curated non-product pattern.
func (e *Env) isNonProduct(names ...string) bool {
	for _, re := range e.nonProduct {
		for _, n := range names {
			if n != "" && re.MatchString(strings.TrimSpace(n)) {
				return true
			}
		}
	}
	return false
}

// deepCleanNames writes the display strain name and deletes rows that are
// not products at all (gift cards, mystery packs, merchandise).
func deepCleanNames(_ context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{str(ColStrainNameClean)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		raw := row.Text(entity.ColStrainNameRaw)
		name, prefixed, promo := env.CleanStrainName(raw)
		if env.isNonProduct(name, units.Clean(raw)) {
			rep.Delete("non_product", row.Text(entity.ColSourceURL))
			return false
		}
		countIf(rep, "vendor_prefix", prefixed)
		countIf(rep, "promo_tag", promo)
		setStr(row, ColStrainNameClean, name)
		countIf(rep, ColStrainNameClean, name != "")
		return true
	})
}
