// Package theme classifies injects into a fixed narrative-theme taxonomy and
// aggregates usage per delivery scope.
//
// The resulting ledger, never raw inject text, is what generation receives so
// it can penalize overused themes without re-reading full history.
package theme

import (
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

// Theme identifies one narrative theme in the fixed taxonomy.
type Theme string

const (
	ThemeResourceStrain       Theme = "resource_strain"
	ThemeMisinformationMedia  Theme = "misinformation_media"
	ThemeEvacuationSecurity   Theme = "evacuation_security"
	ThemeCoordinationFriction Theme = "coordination_friction"
	ThemePoliticalPressure    Theme = "political_pressure"
	ThemeIntelThreat          Theme = "intel_threat"
	ThemeDeEscalation         Theme = "de_escalation"
	// ThemeGeneralDevelopment is the fallback for injects no rule claims.
	ThemeGeneralDevelopment Theme = "general_development"
)

// ScopeUniversal keys the ledger bucket for universally visible injects.
// Team-specific injects are keyed by team name.
const ScopeUniversal = "universal"

const (
	minKeywords = 2
	maxKeywords = 5
)

// rule pairs a theme with the phrases that claim an inject for it.
// Rules are evaluated in order; the first hit wins.
type rule struct {
	theme   Theme
	phrases []string
}

var rules = []rule{
	{ThemeMisinformationMedia, []string{
		"misinformation", "rumor", "rumour", "false report", "social media",
		"viral", "press", "news coverage", "disinformation",
	}},
	{ThemeResourceStrain, []string{
		"supply", "supplies", "shortage", "fuel", "capacity", "overwhelmed",
		"stockpile", "staffing", "resource", "exhausted",
	}},
	{ThemeEvacuationSecurity, []string{
		"evacuat", "perimeter", "shelter", "lockdown", "checkpoint",
		"crowd", "looting", "security cordon",
	}},
	{ThemePoliticalPressure, []string{
		"minister", "mayor", "governor", "political", "press conference",
		"public statement", "inquiry", "blame",
	}},
	{ThemeIntelThreat, []string{
		"intel", "intelligence", "threat", "suspect", "device", "warning",
		"surveillance", "credible report",
	}},
	{ThemeDeEscalation, []string{
		"stabiliz", "stabilis", "contained", "under control", "recovery",
		"stand down", "de-escalat", "resolved",
	}},
	{ThemeCoordinationFriction, []string{
		"coordination", "liaison", "handoff", "miscommunication",
		"conflicting orders", "jurisdiction", "chain of command",
	}},
}

// Usage tallies one theme's appearances within a scope.
type Usage struct {
	Count    int
	Keywords []string
}

// Ledger maps delivery scope -> theme -> usage. The Global field aggregates
// across every scope. Ledgers are derived from inject history on each cycle
// and never stored.
type Ledger struct {
	Global   map[Theme]Usage
	PerScope map[string]map[Theme]Usage
}

// ClassifyInject assigns exactly one theme plus up to five matched keyword
// snippets via phrase matching over the inject title and content.
func ClassifyInject(inject domain.Inject) (Theme, []string) {
	text := strings.ToLower(inject.Title + " " + inject.Content)

	for _, r := range rules {
		var hits []string
		for _, phrase := range r.phrases {
			if strings.Contains(text, phrase) {
				hits = append(hits, phrase)
				if len(hits) == maxKeywords {
					break
				}
			}
		}
		if len(hits) == 0 {
			continue
		}
		// Pad to the minimum snippet count with the theme name itself so
		// downstream consumers always see at least two keywords.
		for len(hits) < minKeywords {
			hits = append(hits, string(r.theme))
		}
		return r.theme, hits
	}
	return ThemeGeneralDevelopment, []string{string(ThemeGeneralDevelopment), "uncategorized"}
}

// BuildLedger aggregates theme usage for the given injects, keyed globally
// and per delivery scope. Universal injects land in the universal bucket;
// team-specific injects land in one bucket per target team.
func BuildLedger(injects []domain.Inject) Ledger {
	ledger := Ledger{
		Global:   make(map[Theme]Usage),
		PerScope: make(map[string]map[Theme]Usage),
	}

	for _, inject := range injects {
		t, keywords := ClassifyInject(inject)
		record(ledger.Global, t, keywords)
		for _, scope := range scopesFor(inject) {
			bucket, ok := ledger.PerScope[scope]
			if !ok {
				bucket = make(map[Theme]Usage)
				ledger.PerScope[scope] = bucket
			}
			record(bucket, t, keywords)
		}
	}
	return ledger
}

// ForScope returns the usage map for one scope, never nil.
func (l Ledger) ForScope(scope string) map[Theme]Usage {
	if bucket, ok := l.PerScope[scope]; ok {
		return bucket
	}
	return map[Theme]Usage{}
}

// MostUsed returns the theme with the highest global count, with ties broken
// by taxonomy order. Returns false when the ledger is empty.
func (l Ledger) MostUsed() (Theme, bool) {
	best := Theme("")
	bestCount := 0
	ordered := append([]rule{}, rules...)
	ordered = append(ordered, rule{theme: ThemeGeneralDevelopment})
	for _, r := range ordered {
		if usage, ok := l.Global[r.theme]; ok && usage.Count > bestCount {
			best = r.theme
			bestCount = usage.Count
		}
	}
	return best, bestCount > 0
}

func record(bucket map[Theme]Usage, t Theme, keywords []string) {
	usage := bucket[t]
	usage.Count++
	for _, keyword := range keywords {
		if !containsString(usage.Keywords, keyword) && len(usage.Keywords) < maxKeywords {
			usage.Keywords = append(usage.Keywords, keyword)
		}
	}
	bucket[t] = usage
}

func scopesFor(inject domain.Inject) []string {
	switch inject.Scope {
	case domain.ScopeTeamSpecific:
		var scopes []string
		for _, team := range inject.TargetTeams {
			team = strings.TrimSpace(team)
			if team != "" {
				scopes = append(scopes, team)
			}
		}
		return scopes
	default:
		// Role-specific injects are visible beyond a single team, so they
		// count against the universal budget alongside universal injects.
		return []string{ScopeUniversal}
	}
}

func containsString(values []string, needle string) bool {
	for _, value := range values {
		if value == needle {
			return true
		}
	}
	return false
}
