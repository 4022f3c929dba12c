package domain

import (
	"errors"
	"strings"
	"time"
)

// DecisionStatus describes the lifecycle state of a participant decision.
type DecisionStatus string

const (
	// DecisionStatusProposed indicates the decision awaits approval.
	DecisionStatusProposed DecisionStatus = "proposed"
	// DecisionStatusApproved indicates the decision may be executed.
	DecisionStatusApproved DecisionStatus = "approved"
	// DecisionStatusExecuted indicates the decision has taken effect.
	DecisionStatusExecuted DecisionStatus = "executed"
	// DecisionStatusRejected indicates the decision was declined.
	DecisionStatusRejected DecisionStatus = "rejected"
)

var (
	// ErrEmptyDecisionID indicates a missing decision ID.
	ErrEmptyDecisionID = errors.New("decision id is required")
	// ErrDecisionNotExecuted indicates the decision has no execution record.
	ErrDecisionNotExecuted = errors.New("decision has not been executed")
)

// Classification is the oracle's reading of what a decision is about.
type Classification struct {
	PrimaryCategory string
	Categories      []string
	Keywords        []string
	SemanticTags    []string
	Confidence      float64
}

// Decision is a participant-issued action the engine reacts to.
// A decision is executed at most once and never deleted.
type Decision struct {
	ID          string
	SessionID   string
	Title       string
	Description string
	Type        string
	ProposedBy  string
	Team        string
	Status      DecisionStatus
	ExecutedAt  *time.Time
	// Classification is nil until the dispatcher has classified the
	// decision through the oracle.
	Classification *Classification
}

// Normalize trims identifying fields and validates the decision.
func (d Decision) Normalize() (Decision, error) {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return Decision{}, ErrEmptyDecisionID
	}
	d.SessionID = strings.TrimSpace(d.SessionID)
	if d.SessionID == "" {
		return Decision{}, ErrEmptySessionID
	}
	d.Team = strings.TrimSpace(d.Team)
	return d, nil
}

// ExecutedWithin reports whether the decision executed inside the window
// ending at now.
func (d Decision) ExecutedWithin(window time.Duration, now time.Time) bool {
	if d.Status != DecisionStatusExecuted || d.ExecutedAt == nil {
		return false
	}
	executed := d.ExecutedAt.UTC()
	cutoff := now.UTC().Add(-window)
	return !executed.Before(cutoff) && !executed.After(now.UTC())
}

// TeamsWithDecisions returns the distinct teams attributed to the given
// decisions, in first-seen order. Decisions without a team are skipped.
func TeamsWithDecisions(decisions []Decision) []string {
	seen := make(map[string]struct{}, len(decisions))
	var teams []string
	for _, decision := range decisions {
		team := strings.TrimSpace(decision.Team)
		if team == "" {
			continue
		}
		if _, ok := seen[team]; ok {
			continue
		}
		seen[team] = struct{}{}
		teams = append(teams, team)
	}
	return teams
}
