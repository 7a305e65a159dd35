package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/quota"
	"github.com/painscout/painscout/internal/storage"
)

func newResolver(t *testing.T) (*StoreResolver, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewStoreResolver(store), store
}

func TestResolve_UserHeaderWins(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	assert.NoError(t, store.ApplyTierChange(ctx, "u1", models.TierStarter, 50))

	req := httptest.NewRequest("POST", "/api/search", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-Signup-Email", "ignored@example.com")

	caller, err := resolver.Resolve(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, "u1", caller.UserID)
	assert.Equal(t, models.TierStarter, caller.Tier)
	assert.Empty(t, caller.SignupEmail)
}

func TestResolve_FreeAccountsMeteredPerUser(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	request := func(userID string) *http.Request {
		req := httptest.NewRequest("POST", "/api/search", nil)
		req.Header.Set("X-User-ID", userID)
		return req
	}

	alice, err := resolver.Resolve(ctx, request("alice"))
	assert.NoError(t, err)
	bob, err := resolver.Resolve(ctx, request("bob"))
	assert.NoError(t, err)

	// Each free account gets its own daily counter key.
	assert.Equal(t, "user:alice", alice.AnonKey)
	assert.Equal(t, "user:bob", bob.AnonKey)

	// Alice exhausting her daily cap must not touch Bob's counter.
	for i := 0; i < quota.DailyFreeLimit; i++ {
		assert.NoError(t, store.IncrementAnonymousUsage(ctx, alice.AnonKey, time.Now()))
	}
	assert.NoError(t, store.IncrementAnonymousUsage(ctx, bob.AnonKey, time.Now()))

	alice, err = resolver.Resolve(ctx, request("alice"))
	assert.NoError(t, err)
	assert.Equal(t, quota.DailyFreeLimit, alice.DailyCount)

	bob, err = resolver.Resolve(ctx, request("bob"))
	assert.NoError(t, err)
	assert.Equal(t, 1, bob.DailyCount)
}

func TestResolve_SubscribedUserSkipsDailyCounter(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	assert.NoError(t, store.ApplyTierChange(ctx, "u1", models.TierStarter, 50))

	req := httptest.NewRequest("POST", "/api/search", nil)
	req.Header.Set("X-User-ID", "u1")

	caller, err := resolver.Resolve(ctx, req)
	assert.NoError(t, err)
	assert.Empty(t, caller.AnonKey)
}

func TestResolve_UnknownUserIsFreeTier(t *testing.T) {
	resolver, _ := newResolver(t)

	req := httptest.NewRequest("POST", "/api/search", nil)
	req.Header.Set("X-User-ID", "never-seen")

	caller, err := resolver.Resolve(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, models.TierFree, caller.Tier)
}

func TestResolve_EmailSignupNormalized(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	req := httptest.NewRequest("POST", "/api/search", nil)
	req.Header.Set("X-Signup-Email", "  Someone@Example.COM ")

	caller, err := resolver.Resolve(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, "someone@example.com", caller.SignupEmail)
	assert.True(t, caller.EmailOnly())

	// counters are read fresh from storage
	assert.NoError(t, store.IncrementEmailSearches(ctx, "someone@example.com"))
	caller, err = resolver.Resolve(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, 1, caller.EmailSearchesUsed)
}

func TestResolve_AnonymousKeyedByAddress(t *testing.T) {
	resolver, _ := newResolver(t)

	req := httptest.NewRequest("POST", "/api/search", nil)
	req.RemoteAddr = "192.0.2.7:54321"

	caller, err := resolver.Resolve(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, caller.Anonymous())
	assert.Equal(t, "192.0.2.7", caller.AnonKey)
}

func TestResolve_ForwardedForPreferred(t *testing.T) {
	resolver, _ := newResolver(t)

	req := httptest.NewRequest("POST", "/api/search", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	caller, err := resolver.Resolve(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, "203.0.113.9", caller.AnonKey)
}
