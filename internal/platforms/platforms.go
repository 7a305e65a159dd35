package platforms

import "github.com/painscout/painscout/internal/models"

// Descriptor is static reference data for one supported platform. Never
// mutated at runtime.
type Descriptor struct {
	ID         string
	Name       string
	SiteFilter string // boolean search fragment; empty for direct-link platforms
	Direct     bool   // bypasses the search engine, deep-links instead
}

// All supported platforms. Reddit carries an extra constraint restricting
// results to discussion threads rather than the whole domain.
var All = []Descriptor{
	{ID: "discord", Name: "Discord", SiteFilter: "(site:discord.com OR site:discord.gg OR site:discordapp.com/channels)"},
	{ID: "facebook", Name: "Facebook", SiteFilter: "site:facebook.com"},
	{ID: "industry-forums", Name: "Industry Forums", SiteFilter: "(site:stackoverflow.com OR site:dev.to OR site:indiehackers.com OR site:quora.com OR site:producthunt.com OR site:warriorforum.com)"},
	{ID: "instagram", Name: "Instagram", SiteFilter: "site:instagram.com"},
	{ID: "linkedin", Name: "LinkedIn", SiteFilter: "site:linkedin.com"},
	{ID: "nextdoor", Name: "Nextdoor", SiteFilter: "site:nextdoor.com"},
	{ID: "reddit", Name: "Reddit", SiteFilter: "site:reddit.com (inurl:comments OR inurl:thread)"},
	{ID: "tiktok", Name: "TikTok", SiteFilter: "site:tiktok.com"},
	{ID: "twitter", Name: "Twitter/X", SiteFilter: "(site:twitter.com OR site:x.com)"},
	{ID: "youtube", Name: "YouTube", SiteFilter: "site:youtube.com"},
	{ID: "google-trends", Name: "Google Trends", Direct: true},
}

// ByID returns the descriptor for a platform identifier.
func ByID(id string) (Descriptor, bool) {
	for _, d := range All {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Tier allow-lists. The free list is deliberately wider than starter: free
// users get a taste of five platforms, paid tiers trade breadth for volume.
var (
	freeSet         = []string{"reddit", "youtube", "twitter", "facebook", "industry-forums"}
	starterSet      = []string{"reddit", "youtube", "twitter"}
	professionalSet = []string{"reddit", "youtube", "twitter", "linkedin", "facebook", "tiktok"}
	agencySet       = func() []string {
		ids := make([]string, len(All))
		for i, d := range All {
			ids[i] = d.ID
		}
		return ids
	}()
)

// AllowedFor returns the platform allow-list for a caller. Admin and
// enterprise map to the full set; credit-pack holders get starter access;
// anything unrecognized falls back to the free list.
func AllowedFor(caller models.CallerIdentity) []string {
	switch caller.Tier {
	case models.TierAdmin, models.TierEnterprise, models.TierAgency:
		return agencySet
	case models.TierProfessional:
		return professionalSet
	case models.TierStarter:
		return starterSet
	}
	if caller.UserID != "" && caller.Credits > 0 {
		return starterSet
	}
	return freeSet
}

// Filter drops requested platform IDs that are unknown or outside the
// allow-list. Client-supplied platform lists are never trusted; this runs
// again at the dispatch boundary regardless of UI-side checks.
func Filter(requested, allowed []string) []string {
	permit := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		permit[id] = true
	}
	var out []string
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if seen[id] || !permit[id] {
			continue
		}
		if _, ok := ByID(id); !ok {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
