package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/quota"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProfile_MissingRowIsFreeTier(t *testing.T) {
	store := openTestStore(t)

	caller, err := store.Profile(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Equal(t, "ghost", caller.UserID)
	assert.Equal(t, models.TierFree, caller.Tier)
	assert.Zero(t, caller.Credits)
}

func TestApplyTierChange_ResetsMonthlyUsage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.ApplyTierChange(ctx, "u1", models.TierStarter, 50))
	for i := 0; i < 3; i++ {
		assert.NoError(t, store.IncrementMonthlyUsage(ctx, "u1"))
	}

	caller, err := store.Profile(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 3, caller.MonthlyUsed)

	// upgrade resets usage
	assert.NoError(t, store.ApplyTierChange(ctx, "u1", models.TierProfessional, 150))
	caller, err = store.Profile(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, models.TierProfessional, caller.Tier)
	assert.Zero(t, caller.MonthlyUsed)
	assert.Equal(t, 150, caller.MonthlyLimit)
}

func TestIncrementMonthlyUsage_StopsAtLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.ApplyTierChange(ctx, "u1", models.TierStarter, 2))
	assert.NoError(t, store.IncrementMonthlyUsage(ctx, "u1"))
	assert.NoError(t, store.IncrementMonthlyUsage(ctx, "u1"))

	err := store.IncrementMonthlyUsage(ctx, "u1")
	var race *quota.RaceError
	assert.True(t, errors.As(err, &race))

	caller, _ := store.Profile(ctx, "u1")
	assert.Equal(t, 2, caller.MonthlyUsed)
}

func TestDecrementCredit_NeverNegative(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.AddCredits(ctx, "u1", 1))

	// Two concurrent spends of the last credit: exactly one wins.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.DecrementCredit(ctx, "u1")
		}()
	}
	wg.Wait()
	close(results)

	succeeded, raced := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var race *quota.RaceError
		assert.True(t, errors.As(err, &race))
		raced++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, raced)

	caller, err := store.Profile(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 0, caller.Credits)
}

func TestEmailSignup_LifetimeCap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	used, err := store.EmailSignup(ctx, "a@b.c")
	assert.NoError(t, err)
	assert.Zero(t, used)

	for i := 0; i < quota.EmailSignupLimit; i++ {
		assert.NoError(t, store.IncrementEmailSearches(ctx, "a@b.c"))
	}

	err = store.IncrementEmailSearches(ctx, "a@b.c")
	var race *quota.RaceError
	assert.True(t, errors.As(err, &race))

	used, err = store.EmailSignup(ctx, "a@b.c")
	assert.NoError(t, err)
	assert.Equal(t, quota.EmailSignupLimit, used)
}

func TestIncrementAnonymousUsage_DailyCapAndReset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < quota.DailyFreeLimit; i++ {
		assert.NoError(t, store.IncrementAnonymousUsage(ctx, "10.0.0.1", day1))
	}
	err := store.IncrementAnonymousUsage(ctx, "10.0.0.1", day1)
	var race *quota.RaceError
	assert.True(t, errors.As(err, &race))

	// next calendar day starts over
	day2 := day1.AddDate(0, 0, 1)
	assert.NoError(t, store.IncrementAnonymousUsage(ctx, "10.0.0.1", day2))

	count, _, err := store.AnonymousUsage(ctx, "10.0.0.1", day2)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCache_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	results := []models.SearchResult{
		{ID: "reddit-abc", Platform: "reddit", Title: "t", URL: "https://reddit.com/1", EngagementScore: 42},
	}

	_, _, ok, err := store.CachedResults(ctx, "h1")
	assert.NoError(t, err)
	assert.False(t, ok)

	searchID, err := store.SaveResults(ctx, "h1", "q", "reddit", "week", results, time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, searchID)

	got, gotID, ok, err := store.CachedResults(ctx, "h1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, searchID, gotID)
	assert.Equal(t, results, got)
}

func TestCache_ExpiredEntryIgnored(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveResults(ctx, "h1", "q", "reddit", "", []models.SearchResult{{ID: "x"}}, -time.Minute)
	assert.NoError(t, err)

	_, _, ok, err := store.CachedResults(ctx, "h1")
	assert.NoError(t, err)
	assert.False(t, ok)

	purged, err := store.PurgeExpired(ctx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestReport_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := &models.Report{
		ID:         NewID(),
		UserID:     "u1",
		SearchID:   "s1",
		ReportType: models.ReportSummary,
		SelectedResults: []models.SearchResult{
			{ID: "reddit-abc", Platform: "reddit", Title: "t", URL: "https://reddit.com/1"},
		},
		Markdown:  "# Pain Point Analysis\n\nBody.",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	assert.NoError(t, store.SaveReport(ctx, report))

	got, err := store.Report(ctx, report.ID)
	assert.NoError(t, err)
	assert.Equal(t, report.UserID, got.UserID)
	assert.Equal(t, report.ReportType, got.ReportType)
	assert.Equal(t, report.Markdown, got.Markdown)
	assert.Equal(t, report.SelectedResults, got.SelectedResults)
}

func TestReport_MissingRowIsNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Report(context.Background(), "no-such-report")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewID_UniqueAndHex(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
