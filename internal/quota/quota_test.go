package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/painscout/painscout/internal/models"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		caller   models.CallerIdentity
		expected Kind
	}{
		{
			name:     "Admin is unlimited subscribed",
			caller:   models.CallerIdentity{UserID: "u1", Tier: models.TierAdmin},
			expected: KindSubscribed,
		},
		{
			name:     "Starter subscription",
			caller:   models.CallerIdentity{UserID: "u2", Tier: models.TierStarter},
			expected: KindSubscribed,
		},
		{
			name:     "Subscription wins over credits",
			caller:   models.CallerIdentity{UserID: "u3", Tier: models.TierProfessional, Credits: 10},
			expected: KindSubscribed,
		},
		{
			name:     "Free user with credits",
			caller:   models.CallerIdentity{UserID: "u4", Tier: models.TierFree, Credits: 2},
			expected: KindCreditHolder,
		},
		{
			name:     "Free user without credits falls to anonymous shape",
			caller:   models.CallerIdentity{UserID: "u5", Tier: models.TierFree},
			expected: KindAnonymous,
		},
		{
			name:     "Email signup",
			caller:   models.CallerIdentity{SignupEmail: "a@b.c", EmailSearchesUsed: 1},
			expected: KindEmailSignup,
		},
		{
			name:     "Anonymous",
			caller:   models.CallerIdentity{AnonKey: "10.0.0.1"},
			expected: KindAnonymous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.caller, now).Kind)
		})
	}
}

func TestResolve_UnlimitedTiers(t *testing.T) {
	for _, tier := range []models.Tier{models.TierAdmin, models.TierEnterprise, models.TierAgency} {
		state := Resolve(models.CallerIdentity{UserID: "u", Tier: tier}, now)
		assert.Equal(t, Unlimited, state.MonthlyLimit, string(tier))
		assert.True(t, state.CanSearch(), string(tier))
		assert.Equal(t, Unlimited, state.Remaining(), string(tier))
	}
}

func TestResolve_DefaultMonthlyLimits(t *testing.T) {
	starter := Resolve(models.CallerIdentity{UserID: "u", Tier: models.TierStarter}, now)
	assert.Equal(t, 50, starter.MonthlyLimit)

	pro := Resolve(models.CallerIdentity{UserID: "u", Tier: models.TierProfessional}, now)
	assert.Equal(t, 150, pro.MonthlyLimit)

	// explicit limit from the subscription record wins
	custom := Resolve(models.CallerIdentity{UserID: "u", Tier: models.TierStarter, MonthlyLimit: 75}, now)
	assert.Equal(t, 75, custom.MonthlyLimit)
}

func TestResolve_AnonymousDailyReset(t *testing.T) {
	yesterday := now.AddDate(0, 0, -1)
	caller := models.CallerIdentity{AnonKey: "k", DailyCount: 3, DailyReset: yesterday}

	state := Resolve(caller, now)
	assert.Equal(t, 0, state.DailyCount)
	assert.True(t, state.CanSearch())

	// same calendar day keeps the counter
	sameDayLater := now.Add(2 * time.Hour)
	caller.DailyReset = now
	state = Resolve(caller, sameDayLater)
	assert.Equal(t, 3, state.DailyCount)
	assert.False(t, state.CanSearch())
}

func TestCanSearch_Limits(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"Subscribed under limit", State{Kind: KindSubscribed, MonthlyUsed: 49, MonthlyLimit: 50}, true},
		{"Subscribed at limit", State{Kind: KindSubscribed, MonthlyUsed: 50, MonthlyLimit: 50}, false},
		{"Credits remaining", State{Kind: KindCreditHolder, CreditsRemaining: 1}, true},
		{"Credits exhausted", State{Kind: KindCreditHolder, CreditsRemaining: 0}, false},
		{"Email under lifetime cap", State{Kind: KindEmailSignup, SearchesUsed: 2}, true},
		{"Email at lifetime cap", State{Kind: KindEmailSignup, SearchesUsed: 3}, false},
		{"Anonymous under daily cap", State{Kind: KindAnonymous, DailyCount: 2}, true},
		{"Anonymous at daily cap", State{Kind: KindAnonymous, DailyCount: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.CanSearch())
		})
	}
}

func TestRecordSearch_Monotonic(t *testing.T) {
	state := State{Kind: KindAnonymous}

	for i := 0; i < DailyFreeLimit; i++ {
		next, ok := state.RecordSearch()
		assert.True(t, ok)
		assert.Equal(t, state.DailyCount+1, next.DailyCount)
		state = next
	}

	// Exhausted: recording is a no-op and reports false, counter never passes
	// the cap.
	for i := 0; i < 5; i++ {
		next, ok := state.RecordSearch()
		assert.False(t, ok)
		assert.Equal(t, DailyFreeLimit, next.DailyCount)
		state = next
	}
}

func TestRecordSearch_UnlimitedNoOp(t *testing.T) {
	state := State{Kind: KindSubscribed, MonthlyLimit: Unlimited}

	next, ok := state.RecordSearch()
	assert.True(t, ok)
	assert.Equal(t, 0, next.MonthlyUsed)
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 1, State{Kind: KindSubscribed, MonthlyUsed: 49, MonthlyLimit: 50}.Remaining())
	assert.Equal(t, 0, State{Kind: KindSubscribed, MonthlyUsed: 50, MonthlyLimit: 50}.Remaining())
	assert.Equal(t, 4, State{Kind: KindCreditHolder, CreditsRemaining: 4}.Remaining())
	assert.Equal(t, 1, State{Kind: KindEmailSignup, SearchesUsed: 2}.Remaining())
	assert.Equal(t, 3, State{Kind: KindAnonymous, DailyCount: 0}.Remaining())
	assert.Equal(t, Unlimited, State{Kind: KindSubscribed, MonthlyLimit: Unlimited}.Remaining())
}
