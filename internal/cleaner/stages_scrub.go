package cleaner

import (
	"context"
	"regexp"
	"strings"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/units"
)

var (
	thcColumns = []string{"thc_content_raw", "thc_min_raw", "thc_max_raw", "thc_average_raw"}
	cbColumns  = []string{"cbd_content_raw", "cbd_min_raw", "cbd_max_raw", "cbn_content_raw", "cbn_min_raw", "cbn_max_raw"}
)

// cannabinoidOutlier reports values known to be vendor filler rather than
// lab results. A CBD or CBN zero is kept when written as a percentage.
func cannabinoidOutlier(v float64, thc, explicit bool) bool {
	if v < 0 || v > 100 || v == 0.03 {
		return true
	}
	if thc {
		return v == 0 || v == 40 || v == 50
	}
	return v == 0 && !explicit
}

// cannabinoidScrub retypes the cannabinoid columns to numbers in place.
func cannabinoidScrub(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	retypes := map[string]table.Type{}
	for _, c := range append(append([]string{}, thcColumns...), cbColumns...) {
		retypes[c] = table.TypeNumber
	}
	return transform(in, rep.Stage, table.Changes{Retypes: retypes}, func(row table.Row) bool {
		for _, col := range thcColumns {
			scrubCannabinoid(row, col, true, rep)
		}
		for _, col := range cbColumns {
			scrubCannabinoid(row, col, false, rep)
		}
		return true
	})
}

func scrubCannabinoid(row table.Row, col string, thc bool, rep *Report) {
	v := row.Get(col)
	if v.IsNull() {
		return
	}
	f, explicit := 0.0, true
	if n, ok := v.Float(); ok {
		// already scrubbed; surviving zeros were explicit
		f = n
	} else {
		r, exp, ok := units.Percent(units.Clean(v.Text()))
		if !ok {
			delete(row, col)
			rep.Count("uncoercible." + col)
			return
		}
		f, explicit = r.Mid(), exp
	}
	if cannabinoidOutlier(f, thc, explicit) {
		delete(row, col)
		rep.Count("outlier." + col)
		return
	}
	row[col] = table.Num(f)
	rep.Count(col)
}

type splitSpec struct {
	raw, single, min, max string
	parse                 func(string) (units.Range, bool)
}

func yieldRange(s string) (units.Range, bool) {
	r, _, ok := units.Yield(s)
	return r, ok
}

var splits = []splitSpec{
	{colFloweringRaw, ColFloweringDays, ColFloweringMinDays, ColFloweringMaxDays, units.Days},
	{colHeightIndoorRaw, ColHeightIndoorCM, "height_indoor_min_cm_clean", "height_indoor_max_cm_clean", units.Centimeters},
	{colHeightOutdoorRaw, ColHeightOutdoorCM, "height_outdoor_min_cm_clean", "height_outdoor_max_cm_clean", units.Centimeters},
	{colYieldIndoorRaw, ColYieldIndoor, "yield_indoor_min_clean", "yield_indoor_max_clean", yieldRange},
	{colYieldOutdoorRaw, ColYieldOutdoor, "yield_outdoor_min_clean", "yield_outdoor_max_clean", yieldRange},
}

// minMaxSplit replaces the single-value unit columns with min/max pairs.
// Autoflowers get no flowering pair; stage 09 moved it to seed-to-harvest.
func minMaxSplit(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	var ch table.Changes
	for _, s := range splits {
		ch.Adds = append(ch.Adds, num(s.min), num(s.max))
		ch.Removes = append(ch.Removes, s.single)
	}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		auto, _ := row.Get(ColIsAutoflower).Truth()
		for _, s := range splits {
			delete(row, s.single)
			r, ok := s.parse(row.Text(s.raw))
			if s.raw == colFloweringRaw && auto {
				ok = false
			}
			setNum(row, s.min, r.Min, ok)
			setNum(row, s.max, r.Max, ok)
			countIf(rep, s.min, ok)
		}
		return true
	})
}

var (
	dominantRegex = regexp.MustCompile(`(?i)(indica|sativa)[\s-]*dominant|(?:mostly|predominantly|primarily)\s+(indica|sativa)`)
	balancedRegex = regexp.MustCompile(`(?i)\b(?:balanced|even|50\s*[/:-]\s*50)\b`)
)

// DominantType maps free text, or failing that the sativa/indica split, to
// the dominant-type vocabulary.
func DominantType(text string, sativa, indica float64, haveRatio bool) string {
	lower := strings.ToLower(text)
	hasI, hasS := strings.Contains(lower, "indica"), strings.Contains(lower, "sativa")
	switch {
	case lower == "":
	case balancedRegex.MatchString(lower):
		return DominantBalanced
	case hasI && !hasS:
		return DominantIndica
	case hasS && !hasI:
		return DominantSativa
	case hasI && hasS:
		if m := dominantRegex.FindStringSubmatch(lower); m != nil {
			if m[1] == "indica" || m[2] == "indica" {
				return DominantIndica
			}
			return DominantSativa
		}
		return DominantHybrid
	case strings.Contains(lower, "hybrid"):
		return DominantHybrid
	}
	if !haveRatio {
		return ""
	}
	switch {
	case sativa == indica:
		return DominantBalanced
	case sativa >= 60:
		return DominantSativa
	case indica >= 60:
		return DominantIndica
	}
	return DominantHybrid
}

// SeedType maps a seed-type label to the seed-type vocabulary.
func SeedType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "auto"):
		return SeedAutoflower
	case strings.Contains(lower, "fem"):
		return SeedFeminized
	case strings.Contains(lower, "reg"):
		return SeedRegular
	}
	return ""
}

// FloweringType maps a flowering-type label to its vocabulary.
func FloweringType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "auto"):
		return FloweringAutoflower
	case strings.Contains(lower, "photo"):
		return FloweringPhotoperiod
	}
	return ""
}

var difficultyWords = []struct {
	re    *regexp.Regexp
	value string
}{
	{regexp.MustCompile(`(?i)\b(?:easy|beginner|low)\b`), DifficultyEasy},
	{regexp.MustCompile(`(?i)\b(?:moderate|medium|intermediate|average)\b`), DifficultyModerate},
	{regexp.MustCompile(`(?i)\b(?:difficult|hard|advanced|expert|high)\b`), DifficultyDifficult},
}

// Difficulty maps a grow-difficulty label to its vocabulary.
func Difficulty(text string) string {
	for _, w := range difficultyWords {
		if w.re.MatchString(text) {
			return w.value
		}
	}
	return ""
}

func categoricalStandardize(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{
		str(ColDominantType), str(ColSeedType), str(ColFloweringType), str(ColDifficulty),
	}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		s, sok := row.Get(ColSativaPct).Float()
		i, iok := row.Get(ColIndicaPct).Float()
		auto, _ := row.Get(ColIsAutoflower).Truth()

		dominant := DominantType(row.Text(colDominantRaw), s, i, sok && iok)
		setStr(row, ColDominantType, dominant)
		countIf(rep, ColDominantType, dominant != "")

		seed := SeedType(row.Text(entity.ColSeedTypeRaw))
		if seed == "" && auto {
			seed = SeedAutoflower
		}
		setStr(row, ColSeedType, seed)
		countIf(rep, ColSeedType, seed != "")

		flowering := FloweringType(row.Text(entity.ColFloweringTypeRaw))
		if flowering == "" && auto {
			flowering = FloweringAutoflower
		}
		setStr(row, ColFloweringType, flowering)
		countIf(rep, ColFloweringType, flowering != "")

		difficulty := Difficulty(row.Text(colDifficultyRaw))
		setStr(row, ColDifficulty, difficulty)
		countIf(rep, ColDifficulty, difficulty != "")

		if strings.EqualFold(row.Text(colAwardsRaw), "false") {
			delete(row, colAwardsRaw)
			rep.Count("awards_false")
		}
		return true
	})
}

// CanonicalBreeder applies the breeder alias table. Only exact
// (case-insensitive) matches are rewritten; other names pass through
// with suffixes removed.
func (e *Env) CanonicalBreeder(name string) (string, string) {
	name = strings.Join(strings.Fields(units.Clean(name)), " ")
	rule := ""
	for _, suf := range e.Curated.BreederAliases.SuffixRemovals {
		if len(name) > len(suf) && strings.EqualFold(name[len(name)-len(suf):], suf) {
			name = strings.TrimSpace(name[:len(name)-len(suf)])
			rule = "suffix"
		}
	}
	lower := strings.ToLower(name)
	if c, ok := e.Curated.BreederAliases.Collaborations[lower]; ok {
		return c, "collaboration"
	}
	if c, ok := e.Curated.BreederAliases.Canonical[lower]; ok {
		if c != name {
			return c, "canonical"
		}
		return c, rule
	}
	return name, rule
}

func breederCanonicalize(_ context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{str(ColBreederClean)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		name, rule := env.CanonicalBreeder(row.Text(entity.ColBreederNameRaw))
		setStr(row, ColBreederClean, name)
		if rule != "" {
			rep.Count(rule)
		}
		return true
	})
}

// removeNonCannabis drops merchandise, accessories and variety packs.
func removeNonCannabis(_ context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error) {
	return transform(in, rep.Stage, table.Changes{}, func(row table.Row) bool {
		u := row.Text(entity.ColSourceURL)
		lower := strings.ToLower(u)
		for _, p := range env.nonCannabisURL {
			if strings.Contains(lower, p) {
				rep.Delete("non_cannabis_url", u)
				return false
			}
		}
		if env.nonCannabisBrands[strings.ToLower(row.Text(ColBreederClean))] {
			rep.Delete("non_cannabis_breeder", u)
			return false
		}
		return true
	})
}
