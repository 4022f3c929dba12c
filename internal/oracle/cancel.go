package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

type cancelWire struct {
	Cancel bool   `json:"cancel"`
	Reason string `json:"reason"`
}

// ShouldCancelInject asks whether the decisions just executed have made a
// due scripted inject obsolete. Scripted content assumes a situation the
// players may have already resolved; a stale inject is suppressed rather
// than delivered.
func (c *Client) ShouldCancelInject(ctx context.Context, session domain.Session, inject domain.Inject, recentDecisions []domain.Decision) (bool, string, error) {
	raw, err := c.complete(ctx, buildCancelPrompt(session, inject, recentDecisions))
	if err != nil {
		return false, "", err
	}
	return parseCancel(raw)
}

func buildCancelPrompt(session domain.Session, inject domain.Inject, recentDecisions []domain.Decision) string {
	var prompt strings.Builder
	prompt.WriteString("A pre-scripted development is due for delivery. Decide whether the decisions the " +
		"participants just executed have made it obsolete or contradictory.\n\n")
	fmt.Fprintf(&prompt, "Current scenario state: %s\n\n", session.CurrentState)
	prompt.WriteString("Decisions executed in the last few minutes:\n")
	for _, decision := range recentDecisions {
		fmt.Fprintf(&prompt, "- [%s] %s: %s\n", decision.Team, decision.Title, decision.Description)
	}
	fmt.Fprintf(&prompt, "\nScripted development: %s\n%s\n\n", inject.Title, inject.Content)
	prompt.WriteString("Respond with JSON: {\"cancel\": bool, \"reason\": string}. " +
		"Cancel only when one of those decisions contradicts the development or has already " +
		"resolved the situation it describes. When in doubt, deliver it.")
	return prompt.String()
}

func parseCancel(raw string) (bool, string, error) {
	var wire cancelWire
	if err := decodeJSON(raw, &wire); err != nil {
		return false, "", err
	}
	return wire.Cancel, strings.TrimSpace(wire.Reason), nil
}
