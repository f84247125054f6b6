package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/adapter/memory"
	"github.com/user/strain-pipeline/internal/adapter/sqlite"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/proxy"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/utils"
	"go.uber.org/zap"
)

// scriptedMethod answers each call with the next scripted response; the
// last one repeats.
type scriptedMethod struct {
	name    entity.ScrapeMethod
	mu      sync.Mutex
	script  []func() (*repository.FetchResult, error)
	calls   int
	lastReq repository.FetchRequest
}

func (m *scriptedMethod) Name() entity.ScrapeMethod { return m.name }

func (m *scriptedMethod) Fetch(_ context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	m.calls++
	m.lastReq = req
	return m.script[i]()
}

func (m *scriptedMethod) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func page(html []byte) func() (*repository.FetchResult, error) {
	return func() (*repository.FetchResult, error) {
		return &repository.FetchResult{HTML: html, StatusCode: 200}, nil
	}
}

func status(method entity.ScrapeMethod, code int) func() (*repository.FetchResult, error) {
	return func() (*repository.FetchResult, error) {
		return nil, &entity.FetchError{Kind: entity.KindForStatus(code), Method: method, StatusCode: code, Err: errors.New("bad status")}
	}
}

type fetchFixture struct {
	progress *sqlite.ProgressRepoImpl
	archive  *memory.ArchiveRepoImpl
	sleeps   []time.Duration
}

func newFetchFixture(t *testing.T) *fetchFixture {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	repo := sqlite.NewProgressRepo(db, 0.75)
	t.Cleanup(repo.Close)
	return &fetchFixture{progress: repo, archive: memory.NewArchive()}
}

func (fx *fetchFixture) fetcher(maxAttempts int, methods ...repository.AcquisitionMethod) *Fetcher {
	f := NewFetcher(
		FetcherConfig{
			Concurrency: 2,
			MaxAttempts: maxAttempts,
			Backoff:     []time.Duration{time.Second, 3 * time.Second},
		},
		fx.progress,
		fx.archive,
		methods,
		memory.NewHostGate(),
		proxy.NewManager(nil, []string{"test-agent"}),
		NewContentValidator(1000, 0.75),
		vendor.NewRegistry(),
		zap.NewNop(),
	)
	var mu sync.Mutex
	f.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		fx.sleeps = append(fx.sleeps, d)
		return nil
	}
	return f
}

func TestFetcherArchivesAndCompletes(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	const u = "https://attitude.example/prod_1.html"
	_, err := fx.progress.Insert(ctx, u, "attitude")
	require.NoError(t, err)

	direct := &scriptedMethod{name: entity.MethodDirect, script: []func() (*repository.FetchResult, error){page(productHTML(""))}}
	f := fx.fetcher(3, direct)

	sum, err := f.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.Claimed)
	require.EqualValues(t, 1, sum.Succeeded)
	require.Equal(t, "test-agent", direct.lastReq.UserAgent)

	h := utils.HashURL(u)
	rec, err := fx.progress.Get(ctx, h)
	require.NoError(t, err)
	require.Equal(t, entity.StatusSuccess, rec.Status)
	require.Equal(t, entity.HTMLKey(h, entity.MethodDirect), rec.ArchiveKey)
	require.GreaterOrEqual(t, rec.ValidationScore, 0.75)

	ok, err := fx.archive.Exists(ctx, rec.ArchiveKey)
	require.NoError(t, err)
	require.True(t, ok)
	meta, err := fx.archive.GetMetadata(ctx, h)
	require.NoError(t, err)
	require.Equal(t, u, meta.OriginalURL)
	require.Equal(t, entity.MethodDirect, meta.ScrapeMethod)
	require.Len(t, meta.ValidationChecks, 6)
	require.Equal(t, 2, fx.archive.Puts())

	// a second run finds nothing to do and writes nothing
	sum, err = f.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, sum.Claimed)
	require.Equal(t, 2, fx.archive.Puts())
	require.Equal(t, 1, direct.Calls())
}

func TestFetcherFallsBackToNextMethod(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	const u = "https://attitude.example/prod_2.html"
	_, err := fx.progress.Insert(ctx, u, "attitude")
	require.NoError(t, err)

	blocked := []byte("<html><title>Attention Required</title>captcha</html>")
	direct := &scriptedMethod{name: entity.MethodDirect, script: []func() (*repository.FetchResult, error){page(blocked)}}
	js := &scriptedMethod{name: entity.MethodJS, script: []func() (*repository.FetchResult, error){page(productHTML(""))}}

	sum, err := fx.fetcher(3, direct, js).Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.Succeeded)
	require.Empty(t, fx.sleeps)

	h := utils.HashURL(u)
	rec, err := fx.progress.Get(ctx, h)
	require.NoError(t, err)
	require.Equal(t, entity.MethodJS, rec.ScrapeMethod)
	require.Equal(t, "html_js/"+h+"_js.html", rec.ArchiveKey)
}

func TestFetcherRetriesUntilMaxAttempts(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	const u = "https://attitude.example/prod_3.html"
	_, err := fx.progress.Insert(ctx, u, "attitude")
	require.NoError(t, err)

	direct := &scriptedMethod{name: entity.MethodDirect, script: []func() (*repository.FetchResult, error){status(entity.MethodDirect, 503)}}
	sum, err := fx.fetcher(3, direct).Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.Failed)

	rec, err := fx.progress.Get(ctx, utils.HashURL(u))
	require.NoError(t, err)
	require.Equal(t, entity.StatusFailed, rec.Status)
	require.Equal(t, 3, rec.Attempts)
	require.NotNil(t, rec.ErrorMessage)
	require.Contains(t, *rec.ErrorMessage, "503")
	require.Equal(t, 3, direct.Calls())
	require.Equal(t, []time.Duration{time.Second, 3 * time.Second}, fx.sleeps)
	require.Zero(t, fx.archive.Puts())
}

func TestFetcherRecoversAfterTransientFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	const u = "https://attitude.example/prod_4.html"
	_, err := fx.progress.Insert(ctx, u, "attitude")
	require.NoError(t, err)

	direct := &scriptedMethod{name: entity.MethodDirect, script: []func() (*repository.FetchResult, error){
		status(entity.MethodDirect, 429),
		page(productHTML("")),
	}}
	sum, err := fx.fetcher(3, direct).Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.Succeeded)

	rec, err := fx.progress.Get(ctx, utils.HashURL(u))
	require.NoError(t, err)
	require.Equal(t, entity.StatusSuccess, rec.Status)
	require.Equal(t, 2, rec.Attempts)
	require.Equal(t, []time.Duration{time.Second}, fx.sleeps)
}

func TestFetcherClientErrorFailsImmediately(t *testing.T) {
	ctx := context.Background()
	fx := newFetchFixture(t)
	const u = "https://attitude.example/prod_5.html"
	_, err := fx.progress.Insert(ctx, u, "attitude")
	require.NoError(t, err)

	direct := &scriptedMethod{name: entity.MethodDirect, script: []func() (*repository.FetchResult, error){status(entity.MethodDirect, 404)}}
	sum, err := fx.fetcher(5, direct).Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.Failed)
	require.Equal(t, 1, direct.Calls())
	require.Empty(t, fx.sleeps)

	rec, err := fx.progress.Get(ctx, utils.HashURL(u))
	require.NoError(t, err)
	require.Equal(t, entity.StatusFailed, rec.Status)
	require.Equal(t, 1, rec.Attempts)
}

func TestFetcherRequiresMethods(t *testing.T) {
	fx := newFetchFixture(t)
	_, err := fx.fetcher(3).Run(context.Background())
	require.True(t, errors.Is(err, ErrPrecondition))
}

func TestBackoffIndexIsCapped(t *testing.T) {
	fx := newFetchFixture(t)
	f := fx.fetcher(6)
	require.Equal(t, time.Second, f.backoff(0))
	require.Equal(t, time.Second, f.backoff(1))
	require.Equal(t, 3*time.Second, f.backoff(2))
	require.Equal(t, 3*time.Second, f.backoff(9))
}
