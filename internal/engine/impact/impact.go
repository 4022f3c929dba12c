// Package impact computes per-cycle cross-team consequence scores and
// per-decision robustness for an evaluation window.
package impact

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/platform/metrics"
)

// Assessment is the oracle's raw view of cross-team consequences before
// sanitization.
type Assessment struct {
	// Scores maps acting team -> affected team -> score.
	Scores map[string]map[string]int
	// Robustness maps decision ID -> score.
	Robustness map[string]int
	// Analysis is optional free-text reasoning.
	Analysis string
}

// Oracle names the generative capability the computer consumes.
type Oracle interface {
	AssessImpact(ctx context.Context, teams []string, decisions []domain.Decision, narrative string) (Assessment, error)
}

// Computer produces impact matrix snapshots.
type Computer struct {
	oracle Oracle
	clock  func() time.Time
}

// NewComputer creates a Computer with a default clock.
func NewComputer(oracle Oracle) *Computer {
	return &Computer{oracle: oracle, clock: time.Now}
}

// Compute produces exactly one snapshot for the window, empty when there are
// no teams or no decisions. An empty window is a normal result, not an
// error: the snapshot is still recorded so the time series has no gaps.
//
// The oracle response is sanitized rather than trusted: acting-team keys are
// restricted to teams that executed a decision in-window, self-scores are
// dropped, and score ranges are clamped. The response taxonomy is computed
// locally from the decision set.
func (c *Computer) Compute(ctx context.Context, sessionID string, teams []string, decisions []domain.Decision, narrative string) domain.ImpactMatrixSnapshot {
	snapshot := domain.ImpactMatrixSnapshot{
		SessionID:  sessionID,
		TakenAt:    c.clock().UTC(),
		Scores:     map[string]map[string]int{},
		Robustness: map[string]int{},
		Taxonomy:   map[string]domain.ResponseKind{},
	}

	acting := make(map[string]struct{})
	for _, team := range domain.TeamsWithDecisions(decisions) {
		acting[team] = struct{}{}
	}
	for _, team := range teams {
		team = strings.TrimSpace(team)
		if team == "" {
			continue
		}
		if _, ok := acting[team]; ok {
			snapshot.Taxonomy[team] = domain.ResponseTextual
		} else {
			snapshot.Taxonomy[team] = domain.ResponseAbsent
		}
	}

	if len(teams) == 0 || len(decisions) == 0 {
		return snapshot
	}

	assessment, err := c.oracle.AssessImpact(ctx, teams, decisions, narrative)
	if err != nil {
		log.Printf("impact: assess for session %s: %v", sessionID, err)
		metrics.OracleFailures.WithLabelValues("impact").Inc()
		return snapshot
	}

	for actor, affected := range assessment.Scores {
		actor = strings.TrimSpace(actor)
		if _, ok := acting[actor]; !ok {
			// Teams without in-window decisions never act in the matrix.
			continue
		}
		row := map[string]int{}
		for target, score := range affected {
			target = strings.TrimSpace(target)
			if target == "" || target == actor {
				continue
			}
			row[target] = domain.ClampImpactScore(score)
		}
		if len(row) > 0 {
			snapshot.Scores[actor] = row
		}
	}

	decisionIDs := make(map[string]struct{}, len(decisions))
	for _, decision := range decisions {
		decisionIDs[decision.ID] = struct{}{}
	}
	for decisionID, score := range assessment.Robustness {
		if _, ok := decisionIDs[decisionID]; !ok {
			continue
		}
		snapshot.Robustness[decisionID] = domain.ClampRobustness(score)
	}

	snapshot.Analysis = strings.TrimSpace(assessment.Analysis)
	return snapshot
}
