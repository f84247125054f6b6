package cleaner

import (
	"context"
	"strings"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/lineage"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/usecase"
	"go.uber.org/zap"
)

func archiveKeys(row table.Row) []string {
	if all := row.Text(entity.ColArchiveKeysAll); all != "" {
		return strings.Split(all, ";")
	}
	if k := row.Text(entity.ColArchiveKey); k != "" {
		return []string{k}
	}
	return nil
}

// breederExtract fills breeder_name_clean for rows still missing one by
// re-reading the archived pages, and records where every breeder came from.
func breederExtract(ctx context.Context, env *Env, in *table.Table, rep *Report) (*table.Table, error) {
	ch := table.Changes{Adds: []table.Column{str(ColBreederSource), flag(ColBreederFallback)}}
	out, err := transform(in, rep.Stage, ch, func(row table.Row) bool {
		if row.Text(ColBreederSource) != "" {
			rep.Count("source_kept")
			return true
		}
		if row.Text(ColBreederClean) != "" {
			row[ColBreederSource] = table.Str(usecase.BreederSourceRaw)
			row[ColBreederFallback] = table.Bool(false)
			return true
		}
		if env.Breeders == nil || ctx.Err() != nil {
			rep.Count("unresolved")
			return true
		}

		res := env.Breeders.Resolve(ctx, row.Text(entity.ColVendor), archiveKeys(row), row.Text(entity.ColSourceURL))
		name, _ := env.CanonicalBreeder(res.Breeder)
		if name == "" {
			rep.Count("unresolved")
			return true
		}
		row[ColBreederClean] = table.Str(name)
		row[ColBreederSource] = table.Str(res.Source)
		row[ColBreederFallback] = table.Bool(res.Fallback())
		rep.Count("source." + res.Source)
		env.Logger.Debug("Breeder resolved",
			zap.String("url", row.Text(entity.ColSourceURL)),
			zap.String("breeder", name),
			zap.String("source", res.Source),
		)
		return true
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func displayName(row table.Row) string {
	if n := row.Text(ColStrainNameClean); n != "" {
		return n
	}
	return row.Text(entity.ColStrainNameRaw)
}

// lineageStage splits "A x B" lineages into parent columns and looks up
// grandparents among the strains of the table itself.
func lineageStage(_ context.Context, _ *Env, in *table.Table, rep *Report) (*table.Table, error) {
	g := lineage.New()
	for _, r := range in.Rows() {
		parents := lineage.ParseCross(r.Text(entity.ColGeneticsRaw))
		g.Add(displayName(r), parents...)
		for _, p := range parents {
			g.Add(p, lineage.ParseCross(p)...)
		}
	}

	ch := table.Changes{Adds: []table.Column{str(ColParent1), str(ColParent2), str(ColGrandparents)}}
	return transform(in, rep.Stage, ch, func(row table.Row) bool {
		parents := lineage.ParseCross(row.Text(entity.ColGeneticsRaw))
		if len(parents) == 0 {
			delete(row, ColParent1)
			delete(row, ColParent2)
			delete(row, ColGrandparents)
			return true
		}
		rep.Count("parents")
		setStr(row, ColParent1, parents[0])
		setStr(row, ColParent2, strings.Join(parents[1:], " x "))

		grand, cycle := g.Grandparents(displayName(row), parents...)
		countIf(rep, "cycle", cycle)
		countIf(rep, ColGrandparents, len(grand) > 0)
		setStr(row, ColGrandparents, strings.Join(grand, "; "))
		return true
	})
}
