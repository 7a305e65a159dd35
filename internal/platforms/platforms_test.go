package platforms

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/painscout/painscout/internal/models"
)

func TestByID(t *testing.T) {
	d, ok := ByID("reddit")
	assert.True(t, ok)
	assert.Equal(t, "Reddit", d.Name)
	assert.Contains(t, d.SiteFilter, "inurl:comments")

	_, ok = ByID("myspace")
	assert.False(t, ok)
}

func TestAllowedFor(t *testing.T) {
	tests := []struct {
		name     string
		caller   models.CallerIdentity
		expected []string
	}{
		{
			name:     "Anonymous gets the free list",
			caller:   models.CallerIdentity{Tier: models.TierFree},
			expected: []string{"reddit", "youtube", "twitter", "facebook", "industry-forums"},
		},
		{
			name:     "Starter",
			caller:   models.CallerIdentity{UserID: "u", Tier: models.TierStarter},
			expected: []string{"reddit", "youtube", "twitter"},
		},
		{
			name:     "Professional",
			caller:   models.CallerIdentity{UserID: "u", Tier: models.TierProfessional},
			expected: []string{"reddit", "youtube", "twitter", "linkedin", "facebook", "tiktok"},
		},
		{
			name:     "Credit holder gets starter access",
			caller:   models.CallerIdentity{UserID: "u", Tier: models.TierFree, Credits: 5},
			expected: []string{"reddit", "youtube", "twitter"},
		},
		{
			name:     "Unknown tier falls back to free",
			caller:   models.CallerIdentity{UserID: "u", Tier: models.Tier("mystery")},
			expected: []string{"reddit", "youtube", "twitter", "facebook", "industry-forums"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AllowedFor(tt.caller))
		})
	}
}

func TestAllowedFor_FullAccessTiers(t *testing.T) {
	for _, tier := range []models.Tier{models.TierAgency, models.TierEnterprise, models.TierAdmin} {
		allowed := AllowedFor(models.CallerIdentity{UserID: "u", Tier: tier})
		assert.Len(t, allowed, len(All), string(tier))
	}
}

func TestFilter(t *testing.T) {
	allowed := []string{"reddit", "youtube", "twitter"}

	tests := []struct {
		name      string
		requested []string
		expected  []string
	}{
		{
			name:      "Permitted subset preserved in request order",
			requested: []string{"youtube", "reddit"},
			expected:  []string{"youtube", "reddit"},
		},
		{
			name:      "Unpermitted dropped",
			requested: []string{"reddit", "linkedin", "tiktok"},
			expected:  []string{"reddit"},
		},
		{
			name:      "Unknown dropped",
			requested: []string{"reddit", "myspace"},
			expected:  []string{"reddit"},
		},
		{
			name:      "Duplicates collapsed",
			requested: []string{"reddit", "reddit", "youtube"},
			expected:  []string{"reddit", "youtube"},
		},
		{
			name:      "Nothing survives",
			requested: []string{"linkedin", "myspace"},
			expected:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filter(tt.requested, allowed))
		})
	}
}
