// Package domain defines the entities the orchestration engine operates on:
// sessions, decisions, injects, publication records, and the per-cycle
// escalation and impact snapshots derived from them.
package domain

import (
	"errors"
	"strings"
	"time"
)

// SessionStatus describes the lifecycle state of an exercise session.
type SessionStatus string

const (
	// SessionStatusScheduled indicates the session has not started yet.
	SessionStatusScheduled SessionStatus = "scheduled"
	// SessionStatusInProgress indicates the session is live.
	SessionStatusInProgress SessionStatus = "in_progress"
	// SessionStatusPaused indicates the session is temporarily halted.
	SessionStatusPaused SessionStatus = "paused"
	// SessionStatusCompleted indicates the session has ended and is immutable.
	SessionStatusCompleted SessionStatus = "completed"
)

var (
	// ErrEmptySessionID indicates a missing session ID.
	ErrEmptySessionID = errors.New("session id is required")
	// ErrEmptyScenarioID indicates a missing scenario ID.
	ErrEmptyScenarioID = errors.New("scenario id is required")
	// ErrSessionNotStarted indicates the session has no recorded start time.
	ErrSessionNotStarted = errors.New("session has not started")
)

// Session is a live run of a scenario with participants.
type Session struct {
	ID         string
	ScenarioID string
	Name       string
	Status     SessionStatus
	// StartedAt is nil until the trainer starts the session.
	StartedAt *time.Time
	// CurrentState is a free-form narrative blob describing where the
	// exercise stands; mutated by decision execution and by the engine.
	CurrentState string
	// Teams lists the participating team identifiers.
	Teams []string
	// Objectives maps objective titles to their current status text.
	Objectives map[string]string
}

// Normalize trims identifying fields and validates the session.
func (s Session) Normalize() (Session, error) {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return Session{}, ErrEmptySessionID
	}
	s.ScenarioID = strings.TrimSpace(s.ScenarioID)
	if s.ScenarioID == "" {
		return Session{}, ErrEmptyScenarioID
	}
	return s, nil
}

// ElapsedMinutes reports whole minutes since the session started.
func (s Session) ElapsedMinutes(now time.Time) (int, error) {
	if s.StartedAt == nil || s.StartedAt.IsZero() {
		return 0, ErrSessionNotStarted
	}
	elapsed := now.UTC().Sub(s.StartedAt.UTC())
	if elapsed < 0 {
		return 0, nil
	}
	return int(elapsed / time.Minute), nil
}
