package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

type classificationWire struct {
	PrimaryCategory string   `json:"primary_category"`
	Categories      []string `json:"categories"`
	Keywords        []string `json:"keywords"`
	SemanticTags    []string `json:"semantic_tags"`
	Confidence      float64  `json:"confidence"`
}

// ClassifyDecision asks the model what an executed decision is about. The
// classification feeds conditional trigger matching, so categories use the
// snake_case vocabulary trigger conditions are authored against.
func (c *Client) ClassifyDecision(ctx context.Context, session domain.Session, decision domain.Decision) (domain.Classification, error) {
	var prompt strings.Builder
	prompt.WriteString("Classify the following executed participant decision.\n\n")
	fmt.Fprintf(&prompt, "Scenario state: %s\n", session.CurrentState)
	fmt.Fprintf(&prompt, "Team: %s\n", decision.Team)
	fmt.Fprintf(&prompt, "Decision title: %s\n", decision.Title)
	fmt.Fprintf(&prompt, "Decision description: %s\n\n", decision.Description)
	prompt.WriteString("Respond with JSON: {\"primary_category\": string, \"categories\": [string], " +
		"\"keywords\": [string], \"semantic_tags\": [string], \"confidence\": number}.\n")
	prompt.WriteString("Categories are snake_case action classes such as emergency_declaration, " +
		"evacuation_order, resource_request, public_communication, intelligence_tasking, " +
		"medical_response, security_measure. primary_category must also appear in categories. " +
		"keywords are 3-8 lowercase terms from the decision text. confidence is in [0,1].")

	raw, err := c.complete(ctx, prompt.String())
	if err != nil {
		return domain.Classification{}, err
	}
	return parseClassification(raw)
}

func parseClassification(raw string) (domain.Classification, error) {
	var wire classificationWire
	if err := decodeJSON(raw, &wire); err != nil {
		return domain.Classification{}, err
	}
	classification := domain.Classification{
		PrimaryCategory: strings.TrimSpace(wire.PrimaryCategory),
		Categories:      cleanStrings(wire.Categories),
		Keywords:        cleanStrings(wire.Keywords),
		SemanticTags:    cleanStrings(wire.SemanticTags),
		Confidence:      wire.Confidence,
	}
	if classification.PrimaryCategory == "" && len(classification.Categories) > 0 {
		classification.PrimaryCategory = classification.Categories[0]
	}
	if classification.PrimaryCategory == "" {
		return domain.Classification{}, fmt.Errorf("classification has no category")
	}
	if classification.Confidence < 0 {
		classification.Confidence = 0
	}
	if classification.Confidence > 1 {
		classification.Confidence = 1
	}
	return classification, nil
}
