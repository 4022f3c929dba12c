package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/escalation"
)

type escalationFactorWire struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type deEscalationFactorWire struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type escalationPathwayWire struct {
	Trajectory       string   `json:"trajectory"`
	TriggerBehaviors []string `json:"trigger_behaviors"`
}

type deEscalationPathwayWire struct {
	Trajectory          string   `json:"trajectory"`
	MitigatingBehaviors []string `json:"mitigating_behaviors"`
	EmergingChallenges  []string `json:"emerging_challenges"`
}

func writeAssessContext(prompt *strings.Builder, input escalation.AssessInput) {
	fmt.Fprintf(prompt, "Session: %s (%s)\n", input.Session.Name, input.Session.ID)
	fmt.Fprintf(prompt, "Current scenario state: %s\n", input.Session.CurrentState)
	if input.Narrative != "" {
		fmt.Fprintf(prompt, "Authored narrative framing: %s\n", input.Narrative)
	}
	if len(input.Session.Objectives) > 0 {
		prompt.WriteString("Team objectives:\n")
		var teams []string
		for team := range input.Session.Objectives {
			teams = append(teams, team)
		}
		sort.Strings(teams)
		for _, team := range teams {
			fmt.Fprintf(prompt, "- %s: %s\n", team, input.Session.Objectives[team])
		}
	}
	if len(input.RecentInjects) > 0 {
		prompt.WriteString("Recently delivered developments:\n")
		for _, inject := range input.RecentInjects {
			fmt.Fprintf(prompt, "- [%s] %s: %s\n", inject.Severity, inject.Title, inject.Content)
		}
	}
	prompt.WriteString("\n")
}

// IdentifyEscalationFactors names the risks currently making the situation
// worse.
func (c *Client) IdentifyEscalationFactors(ctx context.Context, input escalation.AssessInput) ([]domain.EscalationFactor, error) {
	var prompt strings.Builder
	prompt.WriteString("Identify the factors actively making this crisis worse right now.\n\n")
	writeAssessContext(&prompt, input)
	prompt.WriteString("Respond with JSON: {\"factors\": [{\"name\": string, \"description\": string, " +
		"\"severity\": \"low\"|\"medium\"|\"high\"|\"critical\"}]}. Name at most 8 factors, most severe first.")

	raw, err := c.complete(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseEscalationFactors(raw)
}

func parseEscalationFactors(raw string) ([]domain.EscalationFactor, error) {
	var wire struct {
		Factors []escalationFactorWire `json:"factors"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	var factors []domain.EscalationFactor
	for _, factor := range wire.Factors {
		name := strings.TrimSpace(factor.Name)
		if name == "" {
			continue
		}
		factors = append(factors, domain.EscalationFactor{
			Name:        name,
			Description: strings.TrimSpace(factor.Description),
			Severity:    domain.Severity(strings.ToLower(strings.TrimSpace(factor.Severity))),
		})
	}
	return factors, nil
}

// IdentifyDeEscalationFactors names mitigations countering the given risks.
func (c *Client) IdentifyDeEscalationFactors(ctx context.Context, input escalation.AssessInput, factors []domain.EscalationFactor) ([]domain.DeEscalationFactor, error) {
	var prompt strings.Builder
	prompt.WriteString("Identify mitigations that would counter the escalation factors below.\n\n")
	writeAssessContext(&prompt, input)
	prompt.WriteString("Escalation factors:\n")
	for _, factor := range factors {
		fmt.Fprintf(&prompt, "- %s (%s): %s\n", factor.Name, factor.Severity, factor.Description)
	}
	prompt.WriteString("\nRespond with JSON: {\"mitigations\": [{\"name\": string, \"description\": string}]}. " +
		"Name at most 8 mitigations participants could realistically act on.")

	raw, err := c.complete(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseDeEscalationFactors(raw)
}

func parseDeEscalationFactors(raw string) ([]domain.DeEscalationFactor, error) {
	var wire struct {
		Mitigations []deEscalationFactorWire `json:"mitigations"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	var mitigations []domain.DeEscalationFactor
	for _, mitigation := range wire.Mitigations {
		name := strings.TrimSpace(mitigation.Name)
		if name == "" {
			continue
		}
		mitigations = append(mitigations, domain.DeEscalationFactor{
			Name:        name,
			Description: strings.TrimSpace(mitigation.Description),
		})
	}
	return mitigations, nil
}

// GenerateEscalationPathways projects trajectories by which the situation
// could worsen given the identified factors.
func (c *Client) GenerateEscalationPathways(ctx context.Context, input escalation.AssessInput, factors []domain.EscalationFactor) ([]domain.EscalationPathway, error) {
	var prompt strings.Builder
	prompt.WriteString("Project the trajectories by which this crisis could escalate.\n\n")
	writeAssessContext(&prompt, input)
	prompt.WriteString("Known escalation factors:\n")
	for _, factor := range factors {
		fmt.Fprintf(&prompt, "- %s (%s)\n", factor.Name, factor.Severity)
	}
	prompt.WriteString("\nRespond with JSON: {\"pathways\": [{\"trajectory\": string, " +
		"\"trigger_behaviors\": [string]}]}. trajectory describes how the situation worsens; " +
		"trigger_behaviors are participant behaviours (at most 4 each) that would set it off. " +
		"Name at most 6 pathways.")

	raw, err := c.complete(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseEscalationPathways(raw)
}

func parseEscalationPathways(raw string) ([]domain.EscalationPathway, error) {
	var wire struct {
		Pathways []escalationPathwayWire `json:"pathways"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	var pathways []domain.EscalationPathway
	for _, pathway := range wire.Pathways {
		trajectory := strings.TrimSpace(pathway.Trajectory)
		if trajectory == "" {
			continue
		}
		pathways = append(pathways, domain.EscalationPathway{
			Trajectory:       trajectory,
			TriggerBehaviors: cleanStrings(pathway.TriggerBehaviors),
		})
	}
	return pathways, nil
}

// GenerateDeEscalationPathways projects recovery trajectories, each with the
// secondary problems that can still surface along the way.
func (c *Client) GenerateDeEscalationPathways(ctx context.Context, input escalation.AssessInput, pathways []domain.EscalationPathway, mitigations []domain.DeEscalationFactor) ([]domain.DeEscalationPathway, error) {
	var prompt strings.Builder
	prompt.WriteString("Project the trajectories by which this crisis could be brought under control.\n\n")
	writeAssessContext(&prompt, input)
	prompt.WriteString("Escalation trajectories to counter:\n")
	for _, pathway := range pathways {
		fmt.Fprintf(&prompt, "- %s\n", pathway.Trajectory)
	}
	prompt.WriteString("Available mitigations:\n")
	for _, mitigation := range mitigations {
		fmt.Fprintf(&prompt, "- %s\n", mitigation.Name)
	}
	prompt.WriteString("\nRespond with JSON: {\"pathways\": [{\"trajectory\": string, " +
		"\"mitigating_behaviors\": [string], \"emerging_challenges\": [string]}]}. " +
		"Each pathway must keep some tension: emerging_challenges (at most 2) are secondary " +
		"problems that surface even as the main situation improves. Name at most 6 pathways.")

	raw, err := c.complete(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseDeEscalationPathways(raw)
}

func parseDeEscalationPathways(raw string) ([]domain.DeEscalationPathway, error) {
	var wire struct {
		Pathways []deEscalationPathwayWire `json:"pathways"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	var pathways []domain.DeEscalationPathway
	for _, pathway := range wire.Pathways {
		trajectory := strings.TrimSpace(pathway.Trajectory)
		if trajectory == "" {
			continue
		}
		pathways = append(pathways, domain.DeEscalationPathway{
			Trajectory:          trajectory,
			MitigatingBehaviors: cleanStrings(pathway.MitigatingBehaviors),
			EmergingChallenges:  cleanStrings(pathway.EmergingChallenges),
		})
	}
	return pathways, nil
}
