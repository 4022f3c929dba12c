package domain

import "time"

// ResponseKind classifies a team's participation in an evaluation window.
type ResponseKind string

const (
	// ResponseTextual marks a team that executed at least one decision in
	// the window.
	ResponseTextual ResponseKind = "textual"
	// ResponseAbsent marks a team with no decisions in the window. Absent
	// teams never appear as acting-team keys in the score matrix.
	ResponseAbsent ResponseKind = "absent"
)

// Impact score and robustness bounds.
const (
	ImpactScoreMin = -2
	ImpactScoreMax = 2
	RobustnessMin  = 1
	RobustnessMax  = 10
)

// ImpactMatrixSnapshot records one cycle's cross-team consequence scores.
//
// Scores maps acting team -> affected team -> score in [-2, +2]; self
// scores are omitted. Robustness maps decision ID -> score in [1, 10]; a
// zero value means the team had no decisions in the window. An empty
// matrix is a normal result and is still recorded so the time series has
// no silent gaps.
type ImpactMatrixSnapshot struct {
	SessionID  string
	TakenAt    time.Time
	Scores     map[string]map[string]int
	Robustness map[string]int
	// Analysis is optional free-text reasoning from the oracle.
	Analysis string
	// Taxonomy classifies every present team as textual or absent.
	Taxonomy map[string]ResponseKind
}

// ClampImpactScore forces a score into the valid [-2, +2] range.
func ClampImpactScore(score int) int {
	if score < ImpactScoreMin {
		return ImpactScoreMin
	}
	if score > ImpactScoreMax {
		return ImpactScoreMax
	}
	return score
}

// ClampRobustness forces a robustness score into [1, 10].
func ClampRobustness(score int) int {
	if score < RobustnessMin {
		return RobustnessMin
	}
	if score > RobustnessMax {
		return RobustnessMax
	}
	return score
}
