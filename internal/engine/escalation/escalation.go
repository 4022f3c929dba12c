// Package escalation derives per-cycle risk state for a live session: which
// factors are making the situation worse, which would counter them, and the
// forward and backward trajectories they imply.
package escalation

import (
	"context"
	"log"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/platform/id"
	"github.com/crucible-sim/crucible/internal/platform/metrics"
)

// Artifact count bounds. Oracle responses outside these ranges are truncated;
// undersized responses are accepted as-is.
const (
	maxFactors            = 8
	maxPathways           = 6
	maxBehaviors          = 4
	maxEmergingChallenges = 2
)

// AssessInput carries the session context the oracle reasons over.
type AssessInput struct {
	Session domain.Session
	// Narrative is the scenario's authored framing.
	Narrative string
	// RecentInjects are the injects published in the evaluation window.
	RecentInjects []domain.Inject
}

// Oracle names the generative capabilities the modeler consumes. Every call
// is fallible and latent; the modeler treats each one as fail-soft.
type Oracle interface {
	IdentifyEscalationFactors(ctx context.Context, input AssessInput) ([]domain.EscalationFactor, error)
	IdentifyDeEscalationFactors(ctx context.Context, input AssessInput, factors []domain.EscalationFactor) ([]domain.DeEscalationFactor, error)
	GenerateEscalationPathways(ctx context.Context, input AssessInput, factors []domain.EscalationFactor) ([]domain.EscalationPathway, error)
	GenerateDeEscalationPathways(ctx context.Context, input AssessInput, pathways []domain.EscalationPathway, mitigations []domain.DeEscalationFactor) ([]domain.DeEscalationPathway, error)
}

// Modeler computes escalation snapshots for sessions.
type Modeler struct {
	oracle      Oracle
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewModeler creates a Modeler with default clock and ID generation.
func NewModeler(oracle Oracle) *Modeler {
	return &Modeler{
		oracle:      oracle,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Assess produces one evaluation cycle's escalation snapshot.
//
// The four oracle calls run in sequence because each feeds the next. Every
// call fails soft: on error that artifact list is empty and downstream calls
// proceed with whatever survived. Assess never returns an error; a degraded
// snapshot is still a snapshot.
func (m *Modeler) Assess(ctx context.Context, input AssessInput) domain.EscalationSnapshot {
	snapshot := domain.EscalationSnapshot{
		SessionID: input.Session.ID,
		TakenAt:   m.clock().UTC(),
	}

	factors, err := m.oracle.IdentifyEscalationFactors(ctx, input)
	if err != nil {
		log.Printf("escalation: identify factors for session %s: %v", input.Session.ID, err)
		metrics.OracleFailures.WithLabelValues("escalation").Inc()
		factors = nil
	}
	snapshot.Factors = m.sanitizeFactors(factors)

	mitigations, err := m.oracle.IdentifyDeEscalationFactors(ctx, input, snapshot.Factors)
	if err != nil {
		log.Printf("escalation: identify mitigations for session %s: %v", input.Session.ID, err)
		metrics.OracleFailures.WithLabelValues("escalation").Inc()
		mitigations = nil
	}
	snapshot.DeEscalationFactors = m.sanitizeMitigations(mitigations)

	pathways, err := m.oracle.GenerateEscalationPathways(ctx, input, snapshot.Factors)
	if err != nil {
		log.Printf("escalation: generate pathways for session %s: %v", input.Session.ID, err)
		metrics.OracleFailures.WithLabelValues("escalation").Inc()
		pathways = nil
	}
	snapshot.Pathways = m.sanitizePathways(pathways)

	dePathways, err := m.oracle.GenerateDeEscalationPathways(ctx, input, snapshot.Pathways, snapshot.DeEscalationFactors)
	if err != nil {
		log.Printf("escalation: generate de-escalation pathways for session %s: %v", input.Session.ID, err)
		metrics.OracleFailures.WithLabelValues("escalation").Inc()
		dePathways = nil
	}
	snapshot.DeEscalationPathways = m.sanitizeDePathways(dePathways)

	return snapshot
}

func (m *Modeler) sanitizeFactors(factors []domain.EscalationFactor) []domain.EscalationFactor {
	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	out := make([]domain.EscalationFactor, 0, len(factors))
	for _, factor := range factors {
		if factor.Name == "" {
			continue
		}
		switch factor.Severity {
		case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
		default:
			factor.Severity = domain.SeverityMedium
		}
		factor.ID = m.ensureID(factor.ID)
		out = append(out, factor)
	}
	return out
}

func (m *Modeler) sanitizeMitigations(mitigations []domain.DeEscalationFactor) []domain.DeEscalationFactor {
	if len(mitigations) > maxFactors {
		mitigations = mitigations[:maxFactors]
	}
	out := make([]domain.DeEscalationFactor, 0, len(mitigations))
	for _, mitigation := range mitigations {
		if mitigation.Name == "" {
			continue
		}
		mitigation.ID = m.ensureID(mitigation.ID)
		out = append(out, mitigation)
	}
	return out
}

func (m *Modeler) sanitizePathways(pathways []domain.EscalationPathway) []domain.EscalationPathway {
	if len(pathways) > maxPathways {
		pathways = pathways[:maxPathways]
	}
	out := make([]domain.EscalationPathway, 0, len(pathways))
	for _, pathway := range pathways {
		if pathway.Trajectory == "" {
			continue
		}
		if len(pathway.TriggerBehaviors) > maxBehaviors {
			pathway.TriggerBehaviors = pathway.TriggerBehaviors[:maxBehaviors]
		}
		pathway.ID = m.ensureID(pathway.ID)
		out = append(out, pathway)
	}
	return out
}

func (m *Modeler) sanitizeDePathways(pathways []domain.DeEscalationPathway) []domain.DeEscalationPathway {
	if len(pathways) > maxPathways {
		pathways = pathways[:maxPathways]
	}
	out := make([]domain.DeEscalationPathway, 0, len(pathways))
	for _, pathway := range pathways {
		if pathway.Trajectory == "" {
			continue
		}
		if len(pathway.MitigatingBehaviors) > maxBehaviors {
			pathway.MitigatingBehaviors = pathway.MitigatingBehaviors[:maxBehaviors]
		}
		if len(pathway.EmergingChallenges) > maxEmergingChallenges {
			pathway.EmergingChallenges = pathway.EmergingChallenges[:maxEmergingChallenges]
		}
		pathway.ID = m.ensureID(pathway.ID)
		out = append(out, pathway)
	}
	return out
}

func (m *Modeler) ensureID(existing string) string {
	if existing != "" {
		return existing
	}
	generated, err := m.idGenerator()
	if err != nil {
		// ID generation only fails when the entropy source does; an empty
		// ID on a snapshot artifact is preferable to dropping the cycle.
		return ""
	}
	return generated
}
