// Package storage defines the persistence interfaces the engine depends on.
// Implementations live in subpackages; the engine only sees these contracts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyPublished indicates a publication record already exists for
	// this (session, inject) identity. The publication table enforces this
	// with a uniqueness constraint, so losing a check-then-publish race
	// surfaces here rather than as a duplicate delivery.
	ErrAlreadyPublished = errors.New("inject already published for session")
)

// SessionStore reads sessions for scheduler ticks.
type SessionStore interface {
	// GetSession returns one session by ID.
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	// ListSessionsByStatus returns sessions in the given lifecycle state.
	ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error)
}

// DecisionStore reads and annotates participant decisions.
type DecisionStore interface {
	// GetDecision returns one decision by ID.
	GetDecision(ctx context.Context, decisionID string) (domain.Decision, error)
	// ListExecutedDecisionsSince returns the session's decisions executed
	// at or after the cutoff, oldest first.
	ListExecutedDecisionsSince(ctx context.Context, sessionID string, cutoff time.Time) ([]domain.Decision, error)
	// SaveClassification persists the oracle's classification of a decision.
	SaveClassification(ctx context.Context, decisionID string, classification domain.Classification) error
}

// InjectStore reads and writes injects.
type InjectStore interface {
	// SaveInject inserts the inject if its identity is new and otherwise
	// leaves the stored row untouched.
	SaveInject(ctx context.Context, inject domain.Inject) error
	// ListScriptedInjects returns all scripted injects for a scenario.
	ListScriptedInjects(ctx context.Context, scenarioID string) ([]domain.Inject, error)
	// ListPublishedInjects returns the injects already published to a
	// session, oldest first.
	ListPublishedInjects(ctx context.Context, sessionID string) ([]domain.Inject, error)
	// ListPublishedInjectsSince returns the session's injects published at
	// or after the cutoff, oldest first.
	ListPublishedInjectsSince(ctx context.Context, sessionID string, cutoff time.Time) ([]domain.Inject, error)
}

// PublicationLog is the append-only record of inject delivery and
// suppression. Entries are never updated or deleted.
type PublicationLog interface {
	// AppendPublication records one delivery. Returns ErrAlreadyPublished
	// when the identity is already logged.
	AppendPublication(ctx context.Context, record domain.PublicationRecord) error
	// AppendCancellation permanently suppresses a scripted inject for a
	// session. Appending twice is a no-op, not an error.
	AppendCancellation(ctx context.Context, record domain.CancellationRecord) error
	// PublishedInjectIDs returns the set of inject IDs already published
	// to the session.
	PublishedInjectIDs(ctx context.Context, sessionID string) (map[string]struct{}, error)
	// CancelledInjectIDs returns the set of inject IDs suppressed for the
	// session.
	CancelledInjectIDs(ctx context.Context, sessionID string) (map[string]struct{}, error)
}

// SnapshotStore persists the per-cycle derived-state batches.
type SnapshotStore interface {
	SaveEscalationSnapshot(ctx context.Context, snapshot domain.EscalationSnapshot) error
	// LatestEscalationSnapshot returns the most recent snapshot; found is
	// false when the session has none yet.
	LatestEscalationSnapshot(ctx context.Context, sessionID string) (snapshot domain.EscalationSnapshot, found bool, err error)
	SaveImpactSnapshot(ctx context.Context, snapshot domain.ImpactMatrixSnapshot) error
	// LatestImpactSnapshot returns the most recent snapshot; found is
	// false when the session has none yet.
	LatestImpactSnapshot(ctx context.Context, sessionID string) (snapshot domain.ImpactMatrixSnapshot, found bool, err error)
	// CountImpactSnapshots reports the length of a session's impact time
	// series. One snapshot per reaction cycle means the series has no
	// gaps.
	CountImpactSnapshots(ctx context.Context, sessionID string) (int, error)
}

// Store groups every interface the engine needs from one backend.
type Store interface {
	SessionStore
	DecisionStore
	InjectStore
	PublicationLog
	SnapshotStore
}
