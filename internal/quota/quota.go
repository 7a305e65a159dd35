// Package quota decides whether a caller may run another search and which
// counter that search consumes. The decision logic is pure; the durable
// counter mutations live in the storage package so they can be conditional
// at the database level.
package quota

import (
	"fmt"
	"time"

	"github.com/painscout/painscout/internal/models"
)

// Caps for callers without a subscription.
const (
	DailyFreeLimit   = 3
	EmailSignupLimit = 3
)

// Unlimited marks tiers with no search counter.
const Unlimited = -1

// Kind is the quota shape that applies to a caller. Exactly one shape applies
// per request; precedence is unlimited tier > subscribed tier > purchased
// credits > email signup cap > anonymous daily cap.
type Kind int

const (
	KindAnonymous Kind = iota
	KindEmailSignup
	KindSubscribed
	KindCreditHolder
)

func (k Kind) String() string {
	switch k {
	case KindEmailSignup:
		return "email-signup"
	case KindSubscribed:
		return "subscribed"
	case KindCreditHolder:
		return "credit-holder"
	}
	return "anonymous"
}

// State is the resolved quota state for one request. Only the fields relevant
// to Kind are meaningful.
type State struct {
	Kind Kind

	// KindSubscribed
	Tier         models.Tier
	MonthlyUsed  int
	MonthlyLimit int

	// KindCreditHolder
	CreditsRemaining int

	// KindEmailSignup
	SearchesUsed int

	// KindAnonymous
	DailyCount int
	ResetDate  time.Time
}

// ExceededError is returned when a caller has no remaining searches. The
// remaining count lets the response layer include an upgrade hint.
type ExceededError struct {
	Remaining int
	Kind      Kind
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("search limit exceeded for %s caller", e.Kind)
}

// RaceError reports that a conditional counter mutation found no remaining
// quota even though an earlier check passed. It is handled identically to
// ExceededError at the response layer: fail closed.
type RaceError struct {
	Kind Kind
}

func (e *RaceError) Error() string {
	return fmt.Sprintf("quota exhausted concurrently for %s caller", e.Kind)
}

// tierMonthlyLimits are the defaults applied when the subscription
// collaborator does not supply an explicit limit.
var tierMonthlyLimits = map[models.Tier]int{
	models.TierStarter:      50,
	models.TierProfessional: 150,
	models.TierAgency:       500,
}

func tierUnlimited(t models.Tier) bool {
	return t == models.TierAdmin || t == models.TierEnterprise || t == models.TierAgency
}

// Resolve picks the single quota shape that governs this caller and applies
// the daily reset: an anonymous counter whose stored reset date is a
// different calendar day starts over at zero. Monthly counters are never
// self-healed here; their reset is an external scheduled process.
func Resolve(caller models.CallerIdentity, now time.Time) State {
	if caller.UserID != "" {
		if tierUnlimited(caller.Tier) {
			return State{Kind: KindSubscribed, Tier: caller.Tier, MonthlyLimit: Unlimited}
		}
		if subscribed(caller.Tier) {
			limit := caller.MonthlyLimit
			if limit <= 0 {
				limit = tierMonthlyLimits[caller.Tier]
			}
			return State{
				Kind:         KindSubscribed,
				Tier:         caller.Tier,
				MonthlyUsed:  caller.MonthlyUsed,
				MonthlyLimit: limit,
			}
		}
		if caller.Credits > 0 {
			return State{Kind: KindCreditHolder, CreditsRemaining: caller.Credits}
		}
	}
	if caller.EmailOnly() {
		return State{Kind: KindEmailSignup, SearchesUsed: caller.EmailSearchesUsed}
	}

	count := caller.DailyCount
	reset := caller.DailyReset
	if !sameDay(reset, now) {
		count = 0
		reset = now
	}
	return State{Kind: KindAnonymous, DailyCount: count, ResetDate: reset}
}

func subscribed(t models.Tier) bool {
	switch t {
	case models.TierStarter, models.TierProfessional:
		return true
	}
	return false
}

// CanSearch reports whether one more search is permitted under this state.
func (s State) CanSearch() bool {
	switch s.Kind {
	case KindSubscribed:
		return s.MonthlyLimit == Unlimited || s.MonthlyUsed < s.MonthlyLimit
	case KindCreditHolder:
		return s.CreditsRemaining > 0
	case KindEmailSignup:
		return s.SearchesUsed < EmailSignupLimit
	}
	return s.DailyCount < DailyFreeLimit
}

// Remaining returns how many searches are left, or Unlimited.
func (s State) Remaining() int {
	switch s.Kind {
	case KindSubscribed:
		if s.MonthlyLimit == Unlimited {
			return Unlimited
		}
		return maxInt(0, s.MonthlyLimit-s.MonthlyUsed)
	case KindCreditHolder:
		return maxInt(0, s.CreditsRemaining)
	case KindEmailSignup:
		return maxInt(0, EmailSignupLimit-s.SearchesUsed)
	}
	return maxInt(0, DailyFreeLimit-s.DailyCount)
}

// RecordSearch consumes exactly one search from the applicable counter and
// returns the new state. Callers must check CanSearch first: recording
// against an exhausted state is a no-op and reports false. Unlimited tiers
// are a true no-op.
func (s State) RecordSearch() (State, bool) {
	if !s.CanSearch() {
		return s, false
	}
	switch s.Kind {
	case KindSubscribed:
		if s.MonthlyLimit != Unlimited {
			s.MonthlyUsed++
		}
	case KindCreditHolder:
		s.CreditsRemaining--
	case KindEmailSignup:
		s.SearchesUsed++
	default:
		s.DailyCount++
	}
	return s, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
