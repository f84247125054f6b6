package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/adapter/memory"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

func TestURLManagerSubmit(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	m := NewURLManager(fx.progress, memory.NewSeenCache(), vendor.NewRegistry(testShop()), zap.NewNop())

	hash, inserted, err := m.Submit(ctx, "https://www.shop.example/seeds/gelato?utm_source=mail", false)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, utils.HashURL("https://www.shop.example/seeds/gelato"), hash)

	_, _, err = m.Submit(ctx, "https://www.shop.example/seeds/gelato", false)
	require.ErrorIs(t, err, ErrRecentlyDiscovered)

	again, inserted, err := m.Submit(ctx, "https://www.shop.example/seeds/gelato", true)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, hash, again)

	_, _, err = m.Submit(ctx, "https://shop.example/cart", false)
	require.ErrorIs(t, err, ErrPrecondition)
	_, _, err = m.Submit(ctx, "https://elsewhere.example/seeds/gelato", false)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestURLManagerStatusReportForget(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	m := NewURLManager(fx.progress, nil, vendor.NewRegistry(testShop()), zap.NewNop())

	for _, u := range []string{"https://shop.example/seeds/a", "https://shop.example/seeds/b"} {
		_, err := fx.progress.Insert(ctx, u, "shop")
		require.NoError(t, err)
	}
	_, err := fx.progress.Insert(ctx, "https://other.example/p/1", "other")
	require.NoError(t, err)

	rec, err := m.Status(ctx, "https://shop.example/seeds/a#reviews")
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, rec.Status)
	_, err = m.Status(ctx, "https://shop.example/seeds/zzz")
	require.ErrorIs(t, err, ErrUnknownURL)

	report, err := m.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)
	require.Equal(t, "other", report[0].Vendor)
	require.Equal(t, "shop", report[1].Vendor)
	require.Equal(t, 2, report[1].Counts[entity.StatusPending])
	require.Equal(t, 2, report[1].Total)

	n, err := m.Forget(ctx, []string{"https://shop.example/seeds/b", "https://shop.example/seeds/never"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = m.Status(ctx, "https://shop.example/seeds/b")
	require.ErrorIs(t, err, ErrUnknownURL)
}
