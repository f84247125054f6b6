package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/pkg/utils"
)

// setupTestRepo creates an in-memory progress store for testing
func setupTestRepo(t *testing.T) *ProgressRepoImpl {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	repo := NewProgressRepo(db, 0.75)
	t.Cleanup(repo.Close)
	return repo
}

func TestInsertIgnoresDuplicates(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, "https://attitude.example/p/gelato", "attitude")
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.Insert(ctx, "https://attitude.example/p/gelato", "attitude")
	require.NoError(t, err)
	require.False(t, inserted)

	rec, err := repo.Get(ctx, utils.HashURL("https://attitude.example/p/gelato"))
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, rec.Status)
	require.Equal(t, 0, rec.Attempts)
	require.Nil(t, rec.LastAttempt)
}

func TestClaimLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, u := range []string{"https://v.example/a", "https://v.example/b", "https://v.example/c"} {
		_, err := repo.Insert(ctx, u, "v")
		require.NoError(t, err)
	}

	claimed, err := repo.Claim(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, rec := range claimed {
		require.Equal(t, entity.StatusProcessing, rec.Status)
		require.Equal(t, 1, rec.Attempts)
		require.NotNil(t, rec.LastAttempt)
	}

	attempts, err := repo.Touch(ctx, claimed[0].URLHash)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)

	err = repo.Complete(ctx, claimed[0].URLHash, repository.Completion{
		Method:          entity.MethodDirect,
		ValidationScore: 0.83,
		HTMLSize:        12000,
		ArchiveKey:      entity.HTMLKey(claimed[0].URLHash, entity.MethodDirect),
	})
	require.NoError(t, err)

	// success never goes back through claim or fail
	err = repo.Fail(ctx, claimed[0].URLHash, "late failure")
	require.True(t, errors.Is(err, repository.ErrConflict))

	require.NoError(t, repo.Fail(ctx, claimed[1].URLHash, "direct timeout"))

	rest, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	again, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	done, err := repo.Get(ctx, claimed[0].URLHash)
	require.NoError(t, err)
	require.Equal(t, entity.StatusSuccess, done.Status)
	require.Equal(t, 2, done.Attempts)
	require.Equal(t, entity.MethodDirect, done.ScrapeMethod)
	require.Nil(t, done.ErrorMessage)

	failed, err := repo.Get(ctx, claimed[1].URLHash)
	require.NoError(t, err)
	require.Equal(t, entity.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	require.Equal(t, "direct timeout", *failed.ErrorMessage)
}

func TestCompleteEnforcesInvariants(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "https://v.example/a", "v")
	require.NoError(t, err)
	claimed, err := repo.Claim(ctx, 1)
	require.NoError(t, err)
	h := claimed[0].URLHash

	err = repo.Complete(ctx, h, repository.Completion{Method: entity.MethodDirect, ValidationScore: 0.5, ArchiveKey: "html/x.html"})
	require.True(t, errors.Is(err, repository.ErrInvariant))

	err = repo.Complete(ctx, h, repository.Completion{Method: entity.MethodDirect, ValidationScore: 0.9})
	require.True(t, errors.Is(err, repository.ErrInvariant))

	rec, err := repo.Get(ctx, h)
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessing, rec.Status)
}

func TestResetStuckOnlyTouchesOldProcessing(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return base })

	for _, u := range []string{"https://v.example/old", "https://v.example/fresh", "https://v.example/idle"} {
		_, err := repo.Insert(ctx, u, "v")
		require.NoError(t, err)
	}
	old, err := repo.Claim(ctx, 1)
	require.NoError(t, err)

	repo.SetClock(func() time.Time { return base.Add(25 * time.Minute) })
	fresh, err := repo.Claim(ctx, 1)
	require.NoError(t, err)

	repo.SetClock(func() time.Time { return base.Add(40 * time.Minute) })
	n, err := repo.ResetStuck(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rec, err := repo.Get(ctx, old[0].URLHash)
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, rec.Status)
	require.Equal(t, 1, rec.Attempts)

	rec, err = repo.Get(ctx, fresh[0].URLHash)
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessing, rec.Status)
}

func TestResetFailedRespectsMaxAttempts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "https://v.example/a", "v")
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "https://v.example/b", "v")
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, 2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := repo.Touch(ctx, claimed[0].URLHash)
		require.NoError(t, err)
	}
	require.NoError(t, repo.Fail(ctx, claimed[0].URLHash, "exhausted"))
	require.NoError(t, repo.Fail(ctx, claimed[1].URLHash, "archive down"))

	n, err := repo.ResetFailed(ctx, 6)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rec, err := repo.Get(ctx, claimed[1].URLHash)
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, rec.Status)

	exhausted, err := repo.Get(ctx, claimed[0].URLHash)
	require.NoError(t, err)
	require.Equal(t, entity.StatusFailed, exhausted.Status)
	require.Equal(t, 6, exhausted.Attempts)
}

func TestConcurrentClaimsNeverOverlap(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := repo.Insert(ctx, "https://v.example/p/"+string(rune('a'+i%26))+string(rune('a'+i/26)), "v")
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				recs, err := repo.Claim(ctx, 3)
				if err != nil || len(recs) == 0 {
					return
				}
				mu.Lock()
				for _, r := range recs {
					seen[r.URLHash]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 50)
	for h, n := range seen {
		require.Equal(t, 1, n, h)
	}
}

func TestStatsAndDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "https://a.example/1", "attitude")
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "https://a.example/2", "attitude")
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "https://s.example/1", "seedsman")
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, []entity.StatusCount{
		{Vendor: "attitude", Status: entity.StatusPending, Count: 2},
		{Vendor: "seedsman", Status: entity.StatusPending, Count: 1},
	}, stats)

	pending, err := repo.ListByStatus(ctx, "attitude", entity.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.DeleteNonProduct(ctx, utils.HashURL("https://a.example/2")))
	err = repo.DeleteNonProduct(ctx, utils.HashURL("https://a.example/2"))
	require.True(t, errors.Is(err, repository.ErrNotFound))

	all, err := repo.ListByStatus(ctx, "", entity.StatusPending)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
