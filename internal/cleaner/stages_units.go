package cleaner

import (
	"context"
	"strings"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/extract"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/units"
	"github.com/user/strain-pipeline/pkg/utils"
)

// dedupeKey folds scheme, www and trailing-slash variants of a URL.
func dedupeKey(sourceURL string) string {
	u := strings.ToLower(utils.CanonicalURL(sourceURL))
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimSuffix(u, "/")
}

// dedupeURLs keeps the first row per source URL. Rows of known mirror
// vendors lose against any other vendor's row for the same URL.
func dedupeURLs(_ context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error) {
	preferred := map[string]bool{}
	for _, r := range in.Rows() {
		if k := dedupeKey(r.Text(entity.ColSourceURL)); k != "" && !env.badDuplicates[r.Text(entity.ColVendor)] {
			preferred[k] = true
		}
	}

	seen := map[string]bool{}
	return transform(in, rep.Stage, table.Changes{}, func(row table.Row) bool {
		u := row.Text(entity.ColSourceURL)
		k := dedupeKey(u)
		if k == "" {
			return true
		}
		if env.badDuplicates[row.Text(entity.ColVendor)] && preferred[k] {
			rep.Delete("bad_vendor_duplicate", u)
			return false
		}
		if seen[k] {
			rep.Delete("duplicate_url", u)
			return false
		}
		seen[k] = true
		return true
	})
}

// unitNormalize converts durations, heights and yields to canonical units.
// Ranges collapse to their midpoint here; stage 10c splits them.
func unitNormalize(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{
		num(ColFloweringDays),
		num(ColHeightIndoorCM), num(ColHeightOutdoorCM),
		num(ColYieldIndoor), str(ColYieldIndoorUnit),
		num(ColYieldOutdoor), str(ColYieldOutdoorUnit),
	}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		r, ok := units.Days(row.Text(colFloweringRaw))
		setNum(row, ColFloweringDays, r.Mid(), ok)
		countIf(rep, ColFloweringDays, ok)

		for raw, clean := range map[string]string{colHeightIndoorRaw: ColHeightIndoorCM, colHeightOutdoorRaw: ColHeightOutdoorCM} {
			r, ok := units.Centimeters(row.Text(raw))
			setNum(row, clean, r.Mid(), ok)
			countIf(rep, clean, ok)
		}

		for _, y := range []struct{ raw, clean, unit string }{
			{colYieldIndoorRaw, ColYieldIndoor, ColYieldIndoorUnit},
			{colYieldOutdoorRaw, ColYieldOutdoor, ColYieldOutdoorUnit},
		} {
			r, unit, ok := units.Yield(row.Text(y.raw))
			setNum(row, y.clean, r.Mid(), ok)
			setStr(row, y.unit, unit)
			countIf(rep, y.clean, ok)
		}
		return true
	})
}

func countIf(rep *Report, rule string, ok bool) {
	if ok {
		rep.Count(rule)
	}
}

// isScrubbed reports whether column takes part in placeholder scrubbing.
func isScrubbed(c table.Column) bool {
	return c.Type == table.TypeString && (strings.HasSuffix(c.Name, "_raw") || strings.HasSuffix(c.Name, "_clean"))
}

// placeholderScrub nulls placeholder tokens such as "TBD" or "N/A".
func placeholderScrub(_ context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error) {
	var cols []string
	for _, c := range in.Columns() {
		if isScrubbed(c) {
			cols = append(cols, c.Name)
		}
	}
	return transform(in, rep.Stage, table.Changes{}, func(row table.Row) bool {
		for _, name := range cols {
			v := row.Text(name)
			if v == "" {
				continue
			}
			if env.placeholders[strings.ToLower(strings.TrimSpace(v))] {
				delete(row, name)
				rep.Count("placeholder." + name)
			}
		}
		return true
	})
}

var falseWords = map[string]bool{"false": true, "no": true, "0": true}

// typeCoerce collapses whitespace in string cells and derives the typed
// ratio and award columns. Values that do not parse are left null.
func typeCoerce(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	var strCols []string
	for _, c := range in.Columns() {
		if c.Type == table.TypeString {
			strCols = append(strCols, c.Name)
		}
	}
	ch := table.Changes{Adds: []table.Column{num(ColSativaPct), num(ColIndicaPct), flag(ColHasAwards)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		for _, name := range strCols {
			v := row.Text(name)
			if v == "" {
				continue
			}
			if tidy := strings.Join(strings.Fields(v), " "); tidy != v {
				setStr(row, name, tidy)
				rep.Count("whitespace")
			}
		}

		for raw, clean := range map[string]string{colSativaRaw: ColSativaPct, colIndicaRaw: ColIndicaPct} {
			v := row.Text(raw)
			if v == "" {
				delete(row, clean)
				continue
			}
			r, _, ok := units.Percent(v)
			ok = ok && r.Max <= 100
			setNum(row, clean, r.Mid(), ok)
			if !ok {
				rep.Count("uncoercible." + raw)
				continue
			}
			rep.Count(clean)
		}

		switch v := strings.ToLower(row.Text(colAwardsRaw)); {
		case v == "":
			delete(row, ColHasAwards)
		case falseWords[v]:
			row[ColHasAwards] = table.Bool(false)
		default:
			row[ColHasAwards] = table.Bool(true)
			rep.Count(ColHasAwards)
		}
		return true
	})
}

// geneticsDerive fills ruderalis share, filial generation, breeding status
// and phenotype marker.
func geneticsDerive(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{
		num(ColRuderalisPct), str(ColFilialType), str(ColBreedingStatus), str(ColPhenotype),
	}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		s, sok := row.Get(ColSativaPct).Float()
		i, iok := row.Get(ColIndicaPct).Float()
		ok := sok && iok && s+i < 100
		setNum(row, ColRuderalisPct, units.Round(100-s-i), ok)
		countIf(rep, ColRuderalisPct, ok)

		name := row.Text(entity.ColStrainNameRaw)
		genetics := row.Text(entity.ColGeneticsRaw)

		filial := ""
		for _, src := range []string{row.Text(colGenerationRaw), genetics, name, row.Text(entity.ColDescriptionRaw)} {
			if filial = extract.Generation(src); filial != "" {
				break
			}
		}
		setStr(row, ColFilialType, filial)
		countIf(rep, ColFilialType, filial != "")

		status := extract.BreedingStatus(genetics, name, row.Text(colGenerationRaw))
		setStr(row, ColBreedingStatus, status)
		countIf(rep, ColBreedingStatus, status != "")

		pheno := extract.Phenotype(name)
		setStr(row, ColPhenotype, pheno)
		countIf(rep, ColPhenotype, pheno != "")
		return true
	})
}
