package domain

import "time"

// EscalationFactor is a named risk contributing to the situation worsening.
type EscalationFactor struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
}

// DeEscalationFactor is a mitigation that counters one or more escalation
// factors. Mitigations carry no severity; they are not risks.
type DeEscalationFactor struct {
	ID          string
	Name        string
	Description string
}

// EscalationPathway is a trajectory by which the situation could worsen,
// with the participant behaviours that would trigger it.
type EscalationPathway struct {
	ID               string
	Trajectory       string
	TriggerBehaviors []string
}

// DeEscalationPathway is a trajectory by which the situation could improve,
// with the behaviours that advance it. EmergingChallenges names secondary
// problems that can surface even after mitigation, so the exercise does not
// go inert once players stabilize the scenario.
type DeEscalationPathway struct {
	ID                  string
	Trajectory          string
	MitigatingBehaviors []string
	EmergingChallenges  []string
}

// EscalationSnapshot groups one evaluation cycle's derived escalation state.
// Snapshots are point-in-time batches and are never merged across cycles.
type EscalationSnapshot struct {
	SessionID            string
	TakenAt              time.Time
	Factors              []EscalationFactor
	DeEscalationFactors  []DeEscalationFactor
	Pathways             []EscalationPathway
	DeEscalationPathways []DeEscalationPathway
}
