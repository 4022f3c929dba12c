// Package trigger parses stored trigger-condition strings and matches them
// against decision classifications.
//
// A condition arrives either as a structured JSON predicate or as the simple
// text grammar "category:X AND keyword:Y AND tag:Z". Unparseable input and
// conditions with zero criteria never match: release of a scripted inject is
// fail-closed.
package trigger

import (
	"encoding/json"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

// MatchMode selects how many criterion groups must match.
type MatchMode string

const (
	// MatchAny requires at least one present criterion group to match.
	MatchAny MatchMode = "any"
	// MatchAll requires every present criterion group to match.
	MatchAll MatchMode = "all"
)

// Condition is a parsed trigger predicate over decision classifications.
type Condition struct {
	Categories   []string
	Keywords     []string
	SemanticTags []string
	Mode         MatchMode
}

type jsonCondition struct {
	Categories   []string `json:"categories"`
	Keywords     []string `json:"keywords"`
	SemanticTags []string `json:"semantic_tags"`
	MatchMode    string   `json:"match_mode"`
}

// Parse interprets a stored condition string. The second return value is
// false when the input is empty, unparseable, or carries no criteria; such
// conditions never match.
func Parse(raw string) (Condition, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Condition{}, false
	}

	var cond Condition
	if strings.HasPrefix(raw, "{") {
		var structured jsonCondition
		if err := json.Unmarshal([]byte(raw), &structured); err != nil {
			return Condition{}, false
		}
		cond = Condition{
			Categories:   normalizeTerms(structured.Categories),
			Keywords:     normalizeTerms(structured.Keywords),
			SemanticTags: normalizeTerms(structured.SemanticTags),
			Mode:         parseMode(structured.MatchMode),
		}
	} else {
		cond = parseTextGrammar(raw)
	}

	if len(cond.Categories) == 0 && len(cond.Keywords) == 0 && len(cond.SemanticTags) == 0 {
		return Condition{}, false
	}
	return cond, true
}

// parseTextGrammar handles "category:X AND keyword:Y AND tag:Z". Criteria
// are separated by AND (case-insensitive) or commas; unknown prefixes are
// ignored rather than failing the whole condition.
func parseTextGrammar(raw string) Condition {
	cond := Condition{Mode: MatchAny}

	normalized := strings.NewReplacer(" AND ", "\n", " and ", "\n", " And ", "\n", ",", "\n").Replace(raw)
	for term := range strings.Lines(normalized) {
		term = strings.TrimSpace(strings.TrimSuffix(term, "\n"))
		if term == "" {
			continue
		}
		prefix, value, found := strings.Cut(term, ":")
		if !found {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(prefix)) {
		case "category", "categories":
			cond.Categories = append(cond.Categories, value)
		case "keyword", "keywords":
			cond.Keywords = append(cond.Keywords, value)
		case "tag", "tags", "semantic_tag":
			cond.SemanticTags = append(cond.SemanticTags, value)
		case "match_mode", "mode":
			cond.Mode = parseMode(value)
		}
	}
	return cond
}

func parseMode(raw string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(raw), string(MatchAll)) {
		return MatchAll
	}
	return MatchAny
}

func normalizeTerms(terms []string) []string {
	var out []string
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

// Matches reports whether the classification satisfies the condition.
//
// Category and tag tests are exact set membership. Keyword tests are
// case-insensitive substring matches in either direction against the
// classification keywords plus the components of its categories.
func (c Condition) Matches(classification domain.Classification) bool {
	type criterion struct {
		present bool
		matched bool
	}

	criteria := []criterion{
		{present: len(c.Categories) > 0, matched: c.matchCategories(classification)},
		{present: len(c.Keywords) > 0, matched: c.matchKeywords(classification)},
		{present: len(c.SemanticTags) > 0, matched: c.matchTags(classification)},
	}

	anyPresent := false
	for _, crit := range criteria {
		if !crit.present {
			continue
		}
		anyPresent = true
		if c.Mode == MatchAll && !crit.matched {
			return false
		}
		if c.Mode != MatchAll && crit.matched {
			return true
		}
	}
	if !anyPresent {
		return false
	}
	return c.Mode == MatchAll
}

func (c Condition) matchCategories(classification domain.Classification) bool {
	have := make(map[string]struct{}, len(classification.Categories)+1)
	for _, category := range classification.Categories {
		have[strings.ToLower(strings.TrimSpace(category))] = struct{}{}
	}
	if primary := strings.ToLower(strings.TrimSpace(classification.PrimaryCategory)); primary != "" {
		have[primary] = struct{}{}
	}
	for _, want := range c.Categories {
		if _, ok := have[want]; ok {
			return true
		}
	}
	return false
}

func (c Condition) matchKeywords(classification domain.Classification) bool {
	candidates := make([]string, 0, len(classification.Keywords))
	for _, keyword := range classification.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			candidates = append(candidates, keyword)
		}
	}
	// Category components count as keyword material: the classification
	// "emergency_declaration" should satisfy keyword:emergency.
	categories := make([]string, 0, len(classification.Categories)+1)
	categories = append(categories, classification.Categories...)
	categories = append(categories, classification.PrimaryCategory)
	for _, category := range categories {
		for part := range strings.SplitSeq(strings.ToLower(category), "_") {
			part = strings.TrimSpace(part)
			if part != "" {
				candidates = append(candidates, part)
			}
		}
	}

	for _, want := range c.Keywords {
		for _, candidate := range candidates {
			if strings.Contains(candidate, want) || strings.Contains(want, candidate) {
				return true
			}
		}
	}
	return false
}

func (c Condition) matchTags(classification domain.Classification) bool {
	have := make(map[string]struct{}, len(classification.SemanticTags))
	for _, tag := range classification.SemanticTags {
		have[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	for _, want := range c.SemanticTags {
		if _, ok := have[want]; ok {
			return true
		}
	}
	return false
}

// MatchInject parses the inject's stored condition and evaluates it against
// the classification. Injects without a usable condition never match.
func MatchInject(inject domain.Inject, classification domain.Classification) bool {
	cond, ok := Parse(inject.TriggerCondition)
	if !ok {
		return false
	}
	return cond.Matches(classification)
}
