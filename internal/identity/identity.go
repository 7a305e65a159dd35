// Package identity turns an incoming HTTP request into a caller identity with
// fresh quota counters. Tier and counter state is never trusted from the
// request itself: only identifiers come from headers, everything else is read
// from storage on every request.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/quota"
	"github.com/painscout/painscout/internal/storage"
)

// Resolver maps a request to the caller making it.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (models.CallerIdentity, error)
}

// StoreResolver resolves identities against the durable store.
type StoreResolver struct {
	store *storage.Store
	now   func() time.Time
}

var _ Resolver = (*StoreResolver)(nil)

// NewStoreResolver creates a store-backed resolver.
func NewStoreResolver(store *storage.Store) *StoreResolver {
	return &StoreResolver{store: store, now: time.Now}
}

// Resolve classifies the caller. An authenticated user ID wins over a signup
// email, which wins over the anonymous fallback keyed by client address.
func (r *StoreResolver) Resolve(ctx context.Context, req *http.Request) (models.CallerIdentity, error) {
	if userID := strings.TrimSpace(req.Header.Get("X-User-ID")); userID != "" {
		caller, err := r.store.Profile(ctx, userID)
		if err != nil {
			return models.CallerIdentity{}, err
		}
		// Free-tier accounts without credits meter on the daily counter,
		// keyed per user so two accounts never share a counter row.
		if quota.Resolve(caller, r.now()).Kind == quota.KindAnonymous {
			caller.AnonKey = "user:" + userID
			count, reset, err := r.store.AnonymousUsage(ctx, caller.AnonKey, r.now())
			if err != nil {
				return models.CallerIdentity{}, err
			}
			caller.DailyCount = count
			caller.DailyReset = reset
		}
		return caller, nil
	}

	if email := strings.ToLower(strings.TrimSpace(req.Header.Get("X-Signup-Email"))); email != "" {
		used, err := r.store.EmailSignup(ctx, email)
		if err != nil {
			return models.CallerIdentity{}, err
		}
		return models.CallerIdentity{
			SignupEmail:       email,
			Tier:              models.TierFree,
			EmailSearchesUsed: used,
		}, nil
	}

	key := clientKey(req)
	count, reset, err := r.store.AnonymousUsage(ctx, key, r.now())
	if err != nil {
		return models.CallerIdentity{}, err
	}
	return models.CallerIdentity{
		AnonKey:    key,
		Tier:       models.TierFree,
		DailyCount: count,
		DailyReset: reset,
	}, nil
}

// clientKey derives the anonymous caller key from the client address,
// honoring the first hop recorded by a fronting proxy.
func clientKey(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
