package cleaner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/adapter/memory"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/config"
	"go.uber.org/zap"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	cur, err := config.LoadCurated("")
	require.NoError(t, err)
	breeders := usecase.NewBreederResolver(memory.NewArchive(), vendor.Default(), zap.NewNop())
	env, err := NewEnv(cur, breeders, zap.NewNop())
	require.NoError(t, err)
	return env
}

// masterTable builds a master raw table whose rows only set the given cells.
func masterTable(t *testing.T, extra []table.Column, rows ...map[string]string) *table.Table {
	t.Helper()
	var cols []table.Column
	for _, group := range [][]string{entity.MasterIdentityColumns, entity.MasterDataColumns} {
		for _, name := range group {
			cols = append(cols, table.Column{Name: name, Type: table.TypeString, Origin: "unify"})
		}
	}
	cols = append(cols, extra...)
	tbl := table.New(cols...)
	for _, cells := range rows {
		row := table.Row{}
		for k, v := range cells {
			row[k] = table.Str(v)
		}
		require.NoError(t, tbl.Append(row))
	}
	return tbl
}

func apply(t *testing.T, env *Env, in *table.Table, from, to string) (*table.Table, []*Report) {
	t.Helper()
	out, reports, err := NewRunner(env, t.TempDir()).Apply(context.Background(), in, from, to)
	require.NoError(t, err)
	return out, reports
}

func number(t *testing.T, row table.Row, col string) float64 {
	t.Helper()
	v, ok := row.Get(col).Float()
	require.True(t, ok, "%s is %q", col, row.Get(col).String())
	return v
}

func csvBytes(t *testing.T, tbl *table.Table) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	return buf.Bytes()
}

func TestUnitNormalizationThroughMinMaxSplit(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil, map[string]string{
		entity.ColVendor:        "seedsman",
		entity.ColSourceURL:     "https://www.seedsman.com/en/gelato-feminised-seeds",
		entity.ColStrainNameRaw: "Gelato",
		"flowering_time_raw":    "8-10 weeks",
		"height_indoor_raw":     "60 cm",
		"height_outdoor_raw":    "5 ft",
		"thc_min_raw":           "20%",
	})

	out, reports := apply(t, env, in, "01", "10c")
	require.Len(t, reports, 12)
	require.Equal(t, 1, out.Len())
	row := out.Rows()[0]

	require.Equal(t, 56.0, number(t, row, ColFloweringMinDays))
	require.Equal(t, 70.0, number(t, row, ColFloweringMaxDays))
	require.Equal(t, 60.0, number(t, row, "height_indoor_min_cm_clean"))
	require.Equal(t, 60.0, number(t, row, "height_indoor_max_cm_clean"))
	require.InDelta(t, 152.4, number(t, row, "height_outdoor_min_cm_clean"), 0.01)
	require.Equal(t, 20.0, number(t, row, "thc_min_raw"))

	col, ok := out.Column("thc_min_raw")
	require.True(t, ok)
	require.Equal(t, table.TypeNumber, col.Type)
	require.Equal(t, "unify", col.Origin)
	require.False(t, out.Has(ColFloweringDays))
	require.False(t, out.Has(ColHeightIndoorCM))
}

func TestUnitNormalizeWeeks(t *testing.T) {
	env := testEnv(t)
	for _, n := range []string{"1", "7", "9", "12"} {
		in := masterTable(t, nil, map[string]string{"flowering_time_raw": n + " weeks"})
		out, _ := apply(t, env, in, "02", "02")
		weeks := map[string]float64{"1": 7, "7": 49, "9": 63, "12": 84}[n]
		require.Equal(t, weeks, number(t, out.Rows()[0], ColFloweringDays), n)
	}

	in := masterTable(t, nil, map[string]string{"flowering_time_raw": "56-63 days", "yield_indoor_raw": "1.5 oz/ft²"})
	out, rep := apply(t, env, in, "02", "02")
	row := out.Rows()[0]
	require.Equal(t, 59.5, number(t, row, ColFloweringDays))
	require.InDelta(t, 457.73, number(t, row, ColYieldIndoor), 0.01)
	require.Equal(t, "g/m2", row.Text(ColYieldIndoorUnit))
	require.Equal(t, 1, rep[0].Rules[ColYieldIndoor])
}

func TestAutoflowerReclassification(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, []table.Column{num(ColFloweringDays)})
	require.NoError(t, in.Append(table.Row{
		entity.ColStrainNameRaw: table.Str("Gorilla Cookies"),
		entity.ColSeedTypeRaw:   table.Str("Autoflower"),
		ColFloweringDays:        table.Num(63),
	}))
	require.NoError(t, in.Append(table.Row{
		entity.ColStrainNameRaw: table.Str("Gelato"),
		entity.ColSourceURL:     table.Str("https://shop.example/seeds/gelato"),
		ColFloweringDays:        table.Num(60),
	}))
	require.NoError(t, in.Append(table.Row{
		entity.ColSourceURL: table.Str("https://shop.example/autoflower-seeds/zkittlez-auto"),
	}))

	out, reports := apply(t, env, in, "09", "09")
	auto := out.Rows()[0]
	isAuto, _ := auto.Get(ColIsAutoflower).Truth()
	require.True(t, isAuto)
	require.Equal(t, 63.0, number(t, auto, ColAutoHarvestMin))
	require.Equal(t, 63.0, number(t, auto, ColAutoHarvestMax))
	require.True(t, auto.Get(ColFloweringDays).IsNull())

	photo := out.Rows()[1]
	isAuto, ok := photo.Get(ColIsAutoflower).Truth()
	require.True(t, ok)
	require.False(t, isAuto)
	require.Equal(t, 60.0, number(t, photo, ColFloweringDays))

	isAuto, _ = out.Rows()[2].Get(ColIsAutoflower).Truth()
	require.True(t, isAuto)
	require.Equal(t, 2, reports[0].Rules[ColIsAutoflower])

	again, _ := apply(t, env, out, "09", "09")
	require.Equal(t, csvBytes(t, out), csvBytes(t, again))
}

func TestRuderalisDerivation(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{"sativa_percentage_raw": "30", "indica_percentage_raw": "40"},
		map[string]string{"sativa_percentage_raw": "60%", "indica_percentage_raw": "40%"},
		map[string]string{"sativa_percentage_raw": "70", "indica_percentage_raw": "lots"},
	)
	out, reports := apply(t, env, in, "04", "05")
	rows := out.Rows()

	require.Equal(t, 30.0, number(t, rows[0], ColRuderalisPct))
	require.True(t, rows[1].Get(ColRuderalisPct).IsNull())
	require.True(t, rows[2].Get(ColIndicaPct).IsNull())
	require.True(t, rows[2].Get(ColRuderalisPct).IsNull())
	require.Equal(t, 1, reports[0].Rules["uncoercible.indica_percentage_raw"])
	require.Equal(t, 1, reports[1].Rules[ColRuderalisPct])

	for _, r := range rows {
		s, sok := r.Get(ColSativaPct).Float()
		i, iok := r.Get(ColIndicaPct).Float()
		rd, rok := r.Get(ColRuderalisPct).Float()
		if sok && iok && rok {
			require.Equal(t, 100.0, s+i+rd)
		}
	}
}

func TestGeneticsMarkers(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil, map[string]string{
		entity.ColStrainNameRaw: "Wedding Cake #4 S1",
		entity.ColGeneticsRaw:   "Triangle Kush x Animal Mints",
	})
	out, _ := apply(t, env, in, "05", "05")
	row := out.Rows()[0]
	require.Equal(t, "S1", row.Text(ColFilialType))
	require.Equal(t, "Hybrid", row.Text(ColBreedingStatus))
	require.Equal(t, "#4", row.Text(ColPhenotype))
}

func TestAKAExtraction(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{entity.ColStrainNameRaw: "Night Night (aka Kali's Lullaby)"},
		map[string]string{entity.ColStrainNameRaw: "Girl Scout Cookies aka GSC"},
	)
	out, _ := apply(t, env, in, "06", "07")
	require.Equal(t, "Kali's Lullaby", out.Rows()[0].Text(ColAKANames))
	require.Equal(t, "night night", out.Rows()[0].Text(ColNormalizedName))
	require.Equal(t, "GSC", out.Rows()[1].Text(ColAKANames))
	require.Equal(t, "girl scout cookies", out.Rows()[1].Text(ColNormalizedName))

	again, _ := apply(t, env, out, "07", "07")
	require.Equal(t, csvBytes(t, out), csvBytes(t, again))
}

func TestSimilarSpellingAndNearDuplicates(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{entity.ColStrainNameRaw: "Grand Daddy Purple"},
		map[string]string{entity.ColStrainNameRaw: "granddaddypurple"},
		map[string]string{entity.ColStrainNameRaw: "grand-daddy-purple"},
		map[string]string{entity.ColStrainNameRaw: "Granddaddy Purpel Feminized"},
		map[string]string{entity.ColStrainNameRaw: "Blue Dream"},
	)
	out, reports := apply(t, env, in, "06", "08")
	rows := out.Rows()
	for _, r := range rows[:3] {
		require.Equal(t, "granddaddypurple", r.Text(ColSimilarSpelling))
	}
	require.Equal(t, "granddaddypurpel", rows[3].Text(ColSimilarSpelling))

	rep := reports[2]
	require.Equal(t, 1, rep.Rules["near_duplicate_pairs"])
	require.Len(t, rep.Notes, 1)
	require.Contains(t, rep.Notes[0], "granddaddypurpel ~ granddaddypurple")
	require.Equal(t, 5, rep.OutputRows)
}

func TestPlaceholderScrub(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil, map[string]string{
		"difficulty_raw":         "TBD",
		"climate_raw":            " N/A ",
		"aroma_raw":              "Sweet, tbd notes",
		entity.ColBreederNameRaw: "Unknown",
	})

	scrubbed, reports := apply(t, env, in, "03", "03")
	row := scrubbed.Rows()[0]
	require.True(t, row.Get("difficulty_raw").IsNull())
	require.True(t, row.Get("climate_raw").IsNull())
	require.True(t, row.Get(entity.ColBreederNameRaw).IsNull())
	require.Equal(t, "Sweet, tbd notes", row.Text("aroma_raw"))
	require.Equal(t, 1, reports[0].Rules["placeholder.difficulty_raw"])

	out, _ := apply(t, env, scrubbed, "10d", "10d")
	require.True(t, out.Rows()[0].Get(ColDifficulty).IsNull())
}

func TestDedupeDropsMirrorsFirst(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{entity.ColVendor: "seedsman_mirror", entity.ColSourceURL: "https://seedsman.com/en/gelato"},
		map[string]string{entity.ColVendor: "seedsman", entity.ColSourceURL: "https://www.seedsman.com/en/gelato"},
		map[string]string{entity.ColVendor: "seedsman", entity.ColSourceURL: "https://www.seedsman.com/en/gelato/"},
		map[string]string{entity.ColVendor: "seedsman_mirror", entity.ColSourceURL: "https://seedsman.com/en/only-here"},
		map[string]string{entity.ColVendor: "attitude"},
	)
	out, reports := apply(t, env, in, "01", "01")
	require.Equal(t, 3, out.Len())
	require.Equal(t, "seedsman", out.Rows()[0].Text(entity.ColVendor))
	require.Equal(t, "https://seedsman.com/en/only-here", out.Rows()[1].Text(entity.ColSourceURL))

	rep := reports[0]
	require.Equal(t, 2, rep.RowsDeleted)
	require.Equal(t, 1, rep.Rules["bad_vendor_duplicate"])
	require.Equal(t, 1, rep.Rules["duplicate_url"])
	require.Len(t, rep.Deleted, 2)
}

func TestDeepCleanNames(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{entity.ColStrainNameRaw: "Seedsman Gelato Feminized Seeds NEW!", entity.ColSourceURL: "https://v.example/gelato"},
		map[string]string{entity.ColStrainNameRaw: "Gift Card - $50", entity.ColSourceURL: "https://v.example/gift"},
		map[string]string{entity.ColStrainNameRaw: "Auto Blueberry (aka Blue Auto) 5 Seeds", entity.ColSourceURL: "https://v.example/blueberry"},
	)
	out, reports := apply(t, env, in, "10a", "10a")
	require.Equal(t, 2, out.Len())
	require.Equal(t, "Gelato", out.Rows()[0].Text(ColStrainNameClean))
	require.Equal(t, "Auto Blueberry", out.Rows()[1].Text(ColStrainNameClean))

	rep := reports[0]
	require.Equal(t, []string{"https://v.example/gift"}, rep.Deleted)
	require.Equal(t, 1, rep.Rules["non_product"])
	require.Equal(t, 1, rep.Rules["vendor_prefix"])
	require.Equal(t, 1, rep.Rules["promo_tag"])
}

func TestCannabinoidScrub(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil, map[string]string{
		"thc_content_raw": "0%",
		"thc_min_raw":     "18-22 %",
		"thc_max_raw":     "50",
		"thc_average_raw": "â€“21%",
		"cbd_content_raw": "0%",
		"cbd_min_raw":     "0",
		"cbd_max_raw":     "0.03",
		"cbn_content_raw": "high",
	})
	out, reports := apply(t, env, in, "10b", "10b")
	row := out.Rows()[0]

	require.True(t, row.Get("thc_content_raw").IsNull())
	require.Equal(t, 20.0, number(t, row, "thc_min_raw"))
	require.True(t, row.Get("thc_max_raw").IsNull())
	require.Equal(t, 21.0, number(t, row, "thc_average_raw"))
	require.Equal(t, 0.0, number(t, row, "cbd_content_raw"))
	require.True(t, row.Get("cbd_min_raw").IsNull())
	require.True(t, row.Get("cbd_max_raw").IsNull())
	require.True(t, row.Get("cbn_content_raw").IsNull())

	rep := reports[0]
	require.Equal(t, 1, rep.Rules["outlier.thc_content_raw"])
	require.Equal(t, 1, rep.Rules["outlier.cbd_max_raw"])
	require.Equal(t, 1, rep.Rules["uncoercible.cbn_content_raw"])

	again, _ := apply(t, env, out, "10b", "10b")
	require.Equal(t, csvBytes(t, out), csvBytes(t, again))
}

func TestDominantType(t *testing.T) {
	tests := []struct {
		text        string
		sativa, ind float64
		ratio       bool
		want        string
	}{
		{"Indica", 0, 0, false, DominantIndica},
		{"Indica dominant hybrid", 0, 0, false, DominantIndica},
		{"Sativa / Indica, mostly sativa", 0, 0, false, DominantSativa},
		{"Indica/Sativa", 0, 0, false, DominantHybrid},
		{"50/50", 0, 0, false, DominantBalanced},
		{"Hybrid", 0, 0, false, DominantHybrid},
		{"", 70, 30, true, DominantSativa},
		{"", 20, 80, true, DominantIndica},
		{"", 50, 50, true, DominantBalanced},
		{"", 55, 45, true, DominantHybrid},
		{"", 0, 0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.want, DominantType(tt.text, tt.sativa, tt.ind, tt.ratio))
		})
	}
}

func TestCategoricalStandardize(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, []table.Column{flag(ColIsAutoflower)})
	require.NoError(t, in.Append(table.Row{
		entity.ColSeedTypeRaw:      table.Str("Feminised"),
		entity.ColFloweringTypeRaw: table.Str("Photoperiod"),
		colDifficultyRaw:           table.Str("Moderate to grow"),
		colAwardsRaw:               table.Str("FALSE"),
	}))
	require.NoError(t, in.Append(table.Row{
		ColIsAutoflower:  table.Bool(true),
		colDifficultyRaw: table.Str("Beginner friendly"),
	}))

	out, _ := apply(t, env, in, "10d", "10d")
	fem, auto := out.Rows()[0], out.Rows()[1]
	require.Equal(t, SeedFeminized, fem.Text(ColSeedType))
	require.Equal(t, FloweringPhotoperiod, fem.Text(ColFloweringType))
	require.Equal(t, DifficultyModerate, fem.Text(ColDifficulty))
	require.True(t, fem.Get(colAwardsRaw).IsNull())

	require.Equal(t, SeedAutoflower, auto.Text(ColSeedType))
	require.Equal(t, FloweringAutoflower, auto.Text(ColFloweringType))
	require.Equal(t, DifficultyEasy, auto.Text(ColDifficulty))
}

func TestBreederCanonicalizeAndNonCannabis(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{entity.ColBreederNameRaw: "Barneys Farm Seedbank", entity.ColSourceURL: "https://v.example/p/1"},
		map[string]string{entity.ColBreederNameRaw: "DNA x Crockett", entity.ColSourceURL: "https://v.example/p/2"},
		map[string]string{entity.ColBreederNameRaw: "Tiny Breeder", entity.ColSourceURL: "https://v.example/p/3"},
		map[string]string{entity.ColBreederNameRaw: "Zig-Zag", entity.ColSourceURL: "https://v.example/p/4"},
		map[string]string{entity.ColBreederNameRaw: "Sensi", entity.ColSourceURL: "https://v.example/merch/hoodie"},
	)
	out, reports := apply(t, env, in, "10e", "10f")
	require.Equal(t, 3, out.Len())
	require.Equal(t, "Barney's Farm", out.Rows()[0].Text(ColBreederClean))
	require.Equal(t, "DNA Genetics, Crockett Family Farms", out.Rows()[1].Text(ColBreederClean))
	require.Equal(t, "Tiny Breeder", out.Rows()[2].Text(ColBreederClean))

	require.Equal(t, 1, reports[0].Rules["collaboration"])
	require.Equal(t, 1, reports[1].Rules["non_cannabis_url"])
	require.Equal(t, 1, reports[1].Rules["non_cannabis_breeder"])
	require.Equal(t, []string{"https://v.example/p/4", "https://v.example/merch/hoodie"}, reports[1].Deleted)
}

func TestBreederFallbackForSelfBrandedVendor(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, []table.Column{str(ColBreederClean)},
		map[string]string{entity.ColVendor: "mephisto_genetics", entity.ColSourceURL: "https://mephistogenetics.com/products/creme-brulee"},
	)
	require.NoError(t, in.Append(table.Row{
		entity.ColVendor: table.Str("seedsman"),
		ColBreederClean:  table.Str("Fast Buds"),
	}))

	out, reports := apply(t, env, in, "11", "11")
	meph := out.Rows()[0]
	require.Equal(t, "Mephisto Genetics", meph.Text(ColBreederClean))
	require.Equal(t, usecase.BreederSourceSelfBranded, meph.Text(ColBreederSource))
	fallback, ok := meph.Get(ColBreederFallback).Truth()
	require.True(t, ok)
	require.True(t, fallback)

	raw := out.Rows()[1]
	require.Equal(t, usecase.BreederSourceRaw, raw.Text(ColBreederSource))
	fallback, _ = raw.Get(ColBreederFallback).Truth()
	require.False(t, fallback)
	require.Equal(t, 1, reports[0].Rules["source.self_branded"])
}

func TestLineage(t *testing.T) {
	env := testEnv(t)
	in := masterTable(t, nil,
		map[string]string{entity.ColStrainNameRaw: "Gelato", entity.ColGeneticsRaw: "Sunset Sherbet x Thin Mint GSC"},
		map[string]string{entity.ColStrainNameRaw: "Sunset Sherbet", entity.ColGeneticsRaw: "GSC x Pink Panties"},
		map[string]string{entity.ColStrainNameRaw: "Landrace Kush", entity.ColGeneticsRaw: "Landrace"},
	)
	out, _ := apply(t, env, in, "12", "12")
	gelato := out.Rows()[0]
	require.Equal(t, "Sunset Sherbet", gelato.Text(ColParent1))
	require.Equal(t, "Thin Mint GSC", gelato.Text(ColParent2))
	require.Equal(t, "GSC; Pink Panties", gelato.Text(ColGrandparents))
	require.True(t, out.Rows()[1].Get(ColGrandparents).IsNull())
	require.True(t, out.Rows()[2].Get(ColParent1).IsNull())
}

func TestRunnerWritesCheckpointsAndReports(t *testing.T) {
	env := testEnv(t)
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "master_strains_raw.csv")
	in := masterTable(t, nil,
		map[string]string{
			entity.ColStrainID: "s1", entity.ColVendor: "mephisto_genetics",
			entity.ColSourceURL:     "https://mephistogenetics.com/products/creme-brulee",
			entity.ColStrainNameRaw: "Creme Brulee Auto", "flowering_time_raw": "70-77 days",
			entity.ColGeneticsRaw: "Cookies x Dream",
		},
		map[string]string{
			entity.ColStrainID: "s2", entity.ColVendor: "seedsman",
			entity.ColSourceURL:     "https://www.seedsman.com/en/gift-card",
			entity.ColStrainNameRaw: "Gift Card",
		},
		map[string]string{
			entity.ColStrainID: "s3", entity.ColVendor: "seedsman",
			entity.ColSourceURL:      "https://www.seedsman.com/en/gelato",
			entity.ColStrainNameRaw:  "Gelato",
			entity.ColBreederNameRaw: "Seedsman Seeds", "thc_max_raw": "25%", "difficulty_raw": "n/a",
		},
	)
	require.NoError(t, in.Save(rawPath))

	outDir := filepath.Join(dir, "clean")
	runner := NewRunner(env, outDir)
	reports, err := runner.Run(context.Background(), rawPath, "", "")
	require.NoError(t, err)
	require.Len(t, reports, len(Stages()))

	for _, s := range Stages() {
		require.FileExists(t, runner.CheckpointPath(s))
		require.FileExists(t, table.SchemaPath(runner.CheckpointPath(s)))
		require.FileExists(t, runner.ReportPath(s))
	}
	clean, err := table.Load(filepath.Join(outDir, CleanFile), "")
	require.NoError(t, err)
	require.Equal(t, 2, clean.Len())
	col, ok := clean.Column(ColIsAutoflower)
	require.True(t, ok)
	require.Equal(t, table.TypeBool, col.Type)
	require.Equal(t, "09", col.Origin[:2])

	deleted, err := ReadDeleted(runner.ReportPath(Stages()[9]))
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.seedsman.com/en/gift-card"}, deleted)

	report, err := os.ReadFile(runner.ReportPath(Stages()[9]))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(report), "stage: 10a_deep_clean_names\ninput_rows: 3\noutput_rows: 2\nrows_deleted: 1\n"))

	// rerunning one stage from its predecessor's checkpoint is byte-identical
	s := Stages()[10]
	before, err := os.ReadFile(runner.CheckpointPath(s))
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), rawPath, s.ID, s.ID)
	require.NoError(t, err)
	after, err := os.ReadFile(runner.CheckpointPath(s))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRunnerPreconditions(t *testing.T) {
	env := testEnv(t)
	runner := NewRunner(env, t.TempDir())

	_, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "", "")
	require.ErrorIs(t, err, ErrMissingInput)

	_, err = runner.Run(context.Background(), "", "10c", "")
	require.ErrorIs(t, err, ErrMissingInput)

	_, err = runner.Run(context.Background(), "", "13", "")
	require.ErrorIs(t, err, ErrUnknownStage)

	_, err = runner.Run(context.Background(), "", "12", "01")
	require.ErrorIs(t, err, ErrUnknownStage)
}
