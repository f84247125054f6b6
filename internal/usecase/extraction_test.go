package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

const shopStatic = `<html><head><title>Gelato Feminized Seeds</title></head><body>
<h1>Gelato Feminized Seeds</h1>
<table id="specs">
<tr><th>THC</th><td>20-25%</td></tr>
<tr><th>Flowering Time</th><td>8-10 weeks</td></tr>
<tr><th>Price</th><td>$45</td></tr>
</table>
</body></html>`

const shopJS = `<html><head><title>Gelato Feminized Seeds</title></head><body>
<h1>Gelato Feminized Seeds</h1>
<table id="specs">
<tr><th>THC</th><td>20-25%</td></tr>
<tr><th>Flowering Time</th><td>8-10 weeks</td></tr>
<tr><th>Breeder</th><td>Barney's Farm</td></tr>
<tr><th>Genetics</th><td>Sunset Sherbet x Thin Mint</td></tr>
</table>
</body></html>`

func extractingShop() *vendor.Vendor {
	v := testShop()
	v.Extraction = &vendor.Extraction{Title: "h1", Table: "#specs tr"}
	return v
}

// completeRow drives one URL to success the way the fetcher does.
func completeRow(t *testing.T, repo repository.ProgressRepository, rawURL, vendorTag, key string) {
	t.Helper()
	ctx := context.Background()
	_, err := repo.Insert(ctx, rawURL, vendorTag)
	require.NoError(t, err)
	recs, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NoError(t, repo.Complete(ctx, recs[0].URLHash, repository.Completion{
		Method: entity.MethodDirect, ValidationScore: 1, HTMLSize: 100, ArchiveKey: key,
	}))
}

func TestExtractionRunnerWritesVendorTable(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	const u = "https://shop.example/seeds/gelato"
	h := utils.HashURL(u)
	staticKey := entity.HTMLKey(h, entity.MethodDirect)
	archiveAt(t, fx.archive, staticKey, u, "shop", shopStatic, true)
	archiveAt(t, fx.archive, entity.HTMLKey(h, entity.MethodJS), u, "shop", shopJS, false)
	completeRow(t, fx.progress, u, "shop", staticKey)

	inv, _, err := NewInventorier(fx.archive, zap.NewNop()).Build(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	runner := NewExtractionRunner(fx.progress, fx.archive, vendor.NewRegistry(extractingShop()), dir, zap.NewNop())
	sums, err := runner.Run(ctx, nil, inv)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, 2, sums[0].Pages)
	require.Equal(t, 2, sums[0].Records)
	require.Zero(t, sums[0].ParseMiss)

	raw, err := table.Load(filepath.Join(dir, "shop.csv"), "test")
	require.NoError(t, err)
	require.Equal(t, []string{RawVendor, RawSourceURL, RawArchiveKey, RawScrapedAt, RawMethods}, raw.ColumnNames()[:5])
	require.True(t, raw.Has("thc"))
	require.True(t, raw.Has("price"), "vendor tables keep every label; the unifier drops commerce")

	rows := raw.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, staticKey, rows[0].Text(RawArchiveKey))
	require.Equal(t, "Gelato", rows[0].Text("strain_name"))
	require.Equal(t, "2026-01-14T09:30:00Z", rows[0].Text(RawScrapedAt))
	require.Equal(t, "attributes,table", rows[0].Text(RawMethods))
	require.Equal(t, "Barney's Farm", rows[1].Text("breeder"))
	require.Empty(t, rows[0].Text("breeder"))
}

func TestExtractionRunnerUnknownVendor(t *testing.T) {
	fx := newFetchFixture(t)
	runner := NewExtractionRunner(fx.progress, fx.archive, vendor.NewRegistry(), t.TempDir(), zap.NewNop())
	_, err := runner.Run(context.Background(), []string{"nope"}, nil)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestRawTableKeepsEveryRecord(t *testing.T) {
	a := entity.NewRawRecord("shop", "https://shop.example/seeds/gelato", "html/0123456789abcdef.html")
	a.Set("strain_name", "Gelato", entity.ExtractTable)
	a.Set("thc", "20-25%", entity.ExtractTable)
	b := entity.NewRawRecord("shop", "https://shop.example/seeds/runtz", "html/fedcba9876543210.html")
	b.Set("breeder", "Cookies", entity.ExtractJSONLD)
	empty := entity.NewRawRecord("shop", "https://shop.example/seeds/blank", "")

	tbl, err := RawTable([]*entity.RawRecord{a, b, empty})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	rows := tbl.Rows()
	require.Equal(t, "Gelato", rows[0].Text("strain_name"))
	require.Equal(t, "table", rows[0].Text(RawMethods))
	require.Equal(t, "Cookies", rows[1].Text("breeder"))
	require.Equal(t, "https://shop.example/seeds/blank", rows[2].Text(RawSourceURL))
}
