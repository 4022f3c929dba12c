package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/generation"
	"github.com/crucible-sim/crucible/internal/engine/theme"
)

type draftWire struct {
	Generate             bool     `json:"generate"`
	Type                 string   `json:"type"`
	Title                string   `json:"title"`
	Content              string   `json:"content"`
	Severity             string   `json:"severity"`
	AffectedRoles        []string `json:"affected_roles"`
	AffectedTeams        []string `json:"affected_teams"`
	RequiresResponse     bool     `json:"requires_response"`
	RequiresCoordination bool     `json:"requires_coordination"`
	Rationale            string   `json:"rationale"`
}

// DraftInject asks the model for at most one candidate inject reacting to
// the window's decisions. A nil draft means no inject is warranted, which is
// a normal outcome for quiet windows.
func (c *Client) DraftInject(ctx context.Context, genCtx generation.Context) (*generation.Draft, error) {
	prompt := buildDraftPrompt(genCtx)
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseDraft(raw)
}

func buildDraftPrompt(genCtx generation.Context) string {
	var prompt strings.Builder
	switch genCtx.Kind {
	case generation.KindTeam:
		fmt.Fprintf(&prompt, "Draft at most one narrative development reacting to team %q's recent decisions. "+
			"It will be delivered only to that team.\n\n", genCtx.Team)
	default:
		prompt.WriteString("Draft at most one narrative development reacting to the session's recent decisions. " +
			"It will be delivered to every participant.\n\n")
	}

	fmt.Fprintf(&prompt, "Session: %s\nCurrent scenario state: %s\n", genCtx.Session.Name, genCtx.Session.CurrentState)
	if genCtx.Narrative != "" {
		fmt.Fprintf(&prompt, "Authored framing: %s\n", genCtx.Narrative)
	}
	fmt.Fprintf(&prompt, "\nDecision batch: %s", genCtx.Aggregate.Title)
	if genCtx.Aggregate.Description != "" {
		fmt.Fprintf(&prompt, " (%s)", genCtx.Aggregate.Description)
	}
	prompt.WriteString("\n")
	for _, decision := range genCtx.Decisions {
		fmt.Fprintf(&prompt, "- team=%s: %s\n", decision.Team, decision.Title)
	}

	if len(genCtx.Escalation.Factors) > 0 {
		prompt.WriteString("\nActive escalation factors:\n")
		for _, factor := range genCtx.Escalation.Factors {
			fmt.Fprintf(&prompt, "- %s (%s)\n", factor.Name, factor.Severity)
		}
	}
	if len(genCtx.Escalation.DeEscalationPathways) > 0 {
		prompt.WriteString("Recovery trajectories in play:\n")
		for _, pathway := range genCtx.Escalation.DeEscalationPathways {
			fmt.Fprintf(&prompt, "- %s\n", pathway.Trajectory)
		}
	}
	if genCtx.Impact.Analysis != "" {
		fmt.Fprintf(&prompt, "Latest impact analysis: %s\n", genCtx.Impact.Analysis)
	}

	if len(genCtx.ThemeUsage) > 0 {
		prompt.WriteString("\nTheme usage so far for this audience (avoid leaning on the most used):\n")
		var themes []string
		for name := range genCtx.ThemeUsage {
			themes = append(themes, string(name))
		}
		sort.Strings(themes)
		for _, name := range themes {
			fmt.Fprintf(&prompt, "- %s: %d\n", name, genCtx.ThemeUsage[theme.Theme(name)].Count)
		}
	}
	if genCtx.DominantTheme != "" {
		fmt.Fprintf(&prompt, "The session has leaned hardest on %q; pick a different angle unless the decisions demand it.\n", genCtx.DominantTheme)
	}

	if len(genCtx.PendingScripted) > 0 {
		prompt.WriteString("\nUpcoming scripted developments the draft must not contradict or pre-empt:\n")
		for _, inject := range genCtx.PendingScripted {
			fmt.Fprintf(&prompt, "- %s: %s\n", inject.Title, inject.Content)
		}
	}

	prompt.WriteString("\nRespond with JSON: {\"generate\": bool, \"type\": string, \"title\": string, " +
		"\"content\": string, \"severity\": \"low\"|\"medium\"|\"high\"|\"critical\", " +
		"\"affected_roles\": [string], \"affected_teams\": [string], " +
		"\"requires_response\": bool, \"requires_coordination\": bool, \"rationale\": string}.\n")
	prompt.WriteString("Rules: set generate=false when the decisions warrant no development. " +
		"Set requires_response=true only when the content demands active correction or operational " +
		"action rather than acknowledgement. Set requires_coordination=true only when resolving it " +
		"needs more than one team. When the situation is stabilizing, prefer consolidation over new " +
		"crises but leave exactly one concrete problem unresolved so the exercise keeps momentum.")
	return prompt.String()
}

func parseDraft(raw string) (*generation.Draft, error) {
	var wire draftWire
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	if !wire.Generate {
		return nil, nil
	}
	return &generation.Draft{
		Type:                 strings.TrimSpace(wire.Type),
		Title:                strings.TrimSpace(wire.Title),
		Content:              strings.TrimSpace(wire.Content),
		Severity:             domain.Severity(strings.ToLower(strings.TrimSpace(wire.Severity))),
		AffectedRoles:        cleanStrings(wire.AffectedRoles),
		AffectedTeams:        cleanStrings(wire.AffectedTeams),
		RequiresResponse:     wire.RequiresResponse,
		RequiresCoordination: wire.RequiresCoordination,
		Rationale:            strings.TrimSpace(wire.Rationale),
	}, nil
}
