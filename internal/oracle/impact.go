package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/impact"
)

type impactWire struct {
	Scores     map[string]map[string]int `json:"scores"`
	Robustness map[string]int            `json:"robustness"`
	Analysis   string                    `json:"analysis"`
}

// AssessImpact scores how each acting team's decisions affected the other
// teams, and how robust each decision was.
func (c *Client) AssessImpact(ctx context.Context, teams []string, decisions []domain.Decision, narrative string) (impact.Assessment, error) {
	var prompt strings.Builder
	prompt.WriteString("Assess the cross-team impact of the decisions executed in this evaluation window.\n\n")
	if narrative != "" {
		fmt.Fprintf(&prompt, "Scenario framing: %s\n", narrative)
	}
	fmt.Fprintf(&prompt, "Participating teams: %s\n\n", strings.Join(teams, ", "))
	prompt.WriteString("Executed decisions:\n")
	for _, decision := range decisions {
		fmt.Fprintf(&prompt, "- id=%s team=%s: %s. %s\n",
			decision.ID, decision.Team, decision.Title, decision.Description)
	}
	prompt.WriteString("\nRespond with JSON: {\"scores\": {actingTeam: {affectedTeam: int}}, " +
		"\"robustness\": {decisionID: int}, \"analysis\": string}. " +
		"Scores range -2 (severe hindrance) to +2 (strong help); omit a pair for no effect " +
		"and never score a team against itself. Robustness ranges 1 (fragile) to 10 (resilient) " +
		"per decision id. Only teams that executed a decision may appear as acting teams.")

	raw, err := c.complete(ctx, prompt.String())
	if err != nil {
		return impact.Assessment{}, err
	}
	return parseImpact(raw)
}

func parseImpact(raw string) (impact.Assessment, error) {
	var wire impactWire
	if err := decodeJSON(raw, &wire); err != nil {
		return impact.Assessment{}, err
	}
	assessment := impact.Assessment{
		Scores:     wire.Scores,
		Robustness: wire.Robustness,
		Analysis:   strings.TrimSpace(wire.Analysis),
	}
	if assessment.Scores == nil {
		assessment.Scores = map[string]map[string]int{}
	}
	if assessment.Robustness == nil {
		assessment.Robustness = map[string]int{}
	}
	return assessment, nil
}
