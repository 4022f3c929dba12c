package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/storage"
)

// publishedEntry pairs a delivered inject with its publication time.
type publishedEntry struct {
	inject domain.Inject
	at     time.Time
}

// fakeStore is an in-memory Store for scheduler tests.
type fakeStore struct {
	mu sync.Mutex

	sessions        map[string]domain.Session
	decisions       map[string]domain.Decision
	scripted        map[string][]domain.Inject
	published       map[string][]publishedEntry
	publishedIDs    map[string]map[string]struct{}
	cancelledIDs    map[string]map[string]struct{}
	classifications map[string]domain.Classification

	escalationSnapshots []domain.EscalationSnapshot
	impactSnapshots     []domain.ImpactMatrixSnapshot

	listSessionsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:        make(map[string]domain.Session),
		decisions:       make(map[string]domain.Decision),
		scripted:        make(map[string][]domain.Inject),
		published:       make(map[string][]publishedEntry),
		publishedIDs:    make(map[string]map[string]struct{}),
		cancelledIDs:    make(map[string]map[string]struct{}),
		classifications: make(map[string]domain.Classification),
	}
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) ListSessionsByStatus(_ context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listSessionsErr != nil {
		return nil, f.listSessionsErr
	}
	var sessions []domain.Session
	for _, session := range f.sessions {
		if session.Status == status {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (f *fakeStore) GetDecision(_ context.Context, decisionID string) (domain.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	decision, ok := f.decisions[decisionID]
	if !ok {
		return domain.Decision{}, storage.ErrNotFound
	}
	return decision, nil
}

func (f *fakeStore) ListExecutedDecisionsSince(_ context.Context, sessionID string, cutoff time.Time) ([]domain.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var decisions []domain.Decision
	for _, decision := range f.decisions {
		if decision.SessionID != sessionID || decision.Status != domain.DecisionStatusExecuted {
			continue
		}
		if decision.ExecutedAt == nil || decision.ExecutedAt.Before(cutoff) {
			continue
		}
		decisions = append(decisions, decision)
	}
	return decisions, nil
}

func (f *fakeStore) SaveClassification(_ context.Context, decisionID string, classification domain.Classification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.decisions[decisionID]; !ok {
		return storage.ErrNotFound
	}
	f.classifications[decisionID] = classification
	return nil
}

func (f *fakeStore) ListScriptedInjects(_ context.Context, scenarioID string) ([]domain.Inject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Inject(nil), f.scripted[scenarioID]...), nil
}

func (f *fakeStore) ListPublishedInjects(_ context.Context, sessionID string) ([]domain.Inject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var injects []domain.Inject
	for _, entry := range f.published[sessionID] {
		injects = append(injects, entry.inject)
	}
	return injects, nil
}

func (f *fakeStore) ListPublishedInjectsSince(_ context.Context, sessionID string, cutoff time.Time) ([]domain.Inject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var injects []domain.Inject
	for _, entry := range f.published[sessionID] {
		if entry.at.Before(cutoff) {
			continue
		}
		injects = append(injects, entry.inject)
	}
	return injects, nil
}

func (f *fakeStore) PublishedInjectIDs(_ context.Context, sessionID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]struct{}, len(f.publishedIDs[sessionID]))
	for id := range f.publishedIDs[sessionID] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (f *fakeStore) CancelledInjectIDs(_ context.Context, sessionID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]struct{}, len(f.cancelledIDs[sessionID]))
	for id := range f.cancelledIDs[sessionID] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (f *fakeStore) SaveEscalationSnapshot(_ context.Context, snapshot domain.EscalationSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalationSnapshots = append(f.escalationSnapshots, snapshot)
	return nil
}

func (f *fakeStore) SaveImpactSnapshot(_ context.Context, snapshot domain.ImpactMatrixSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impactSnapshots = append(f.impactSnapshots, snapshot)
	return nil
}

// markPublished registers an inject as just delivered to a session.
func (f *fakeStore) markPublished(sessionID string, inject domain.Inject) {
	f.markPublishedAt(sessionID, inject, time.Now().UTC())
}

// markPublishedAt registers a delivery with an explicit publication time.
func (f *fakeStore) markPublishedAt(sessionID string, inject domain.Inject, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishedIDs[sessionID] == nil {
		f.publishedIDs[sessionID] = make(map[string]struct{})
	}
	f.publishedIDs[sessionID][inject.ID] = struct{}{}
	f.published[sessionID] = append(f.published[sessionID], publishedEntry{inject: inject, at: at})
}

func (f *fakeStore) markCancelled(sessionID, injectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelledIDs[sessionID] == nil {
		f.cancelledIDs[sessionID] = make(map[string]struct{})
	}
	f.cancelledIDs[sessionID][injectID] = struct{}{}
}

// fakePublisher records publish and cancel calls; it mirrors the real
// publisher's duplicate rejection against the backing fake store.
type fakePublisher struct {
	mu        sync.Mutex
	store     *fakeStore
	published []domain.Inject
	sessions  []string
	cancelled []string

	publishErr error
}

func newFakePublisher(store *fakeStore) *fakePublisher {
	return &fakePublisher{store: store}
}

func (f *fakePublisher) Publish(_ context.Context, sessionID string, inject domain.Inject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	if f.store != nil {
		f.store.mu.Lock()
		if _, ok := f.store.publishedIDs[sessionID][inject.ID]; ok {
			f.store.mu.Unlock()
			return storage.ErrAlreadyPublished
		}
		f.store.mu.Unlock()
		f.store.markPublished(sessionID, inject)
	}
	f.published = append(f.published, inject)
	f.sessions = append(f.sessions, sessionID)
	return nil
}

func (f *fakePublisher) Cancel(_ context.Context, sessionID, injectID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store != nil {
		f.store.markCancelled(sessionID, injectID)
	}
	f.cancelled = append(f.cancelled, injectID)
	_ = reason
	return nil
}

func scriptedConditionInject(id, scenarioID, condition string) domain.Inject {
	return domain.Inject{
		ID:               id,
		ScenarioID:       scenarioID,
		Origin:           domain.OriginScripted,
		Scope:            domain.ScopeUniversal,
		Severity:         domain.SeverityMedium,
		Title:            fmt.Sprintf("scripted %s", id),
		Content:          "scripted content",
		TriggerCondition: condition,
	}
}

func scriptedTimedInject(id, scenarioID string, minute int) domain.Inject {
	return domain.Inject{
		ID:            id,
		ScenarioID:    scenarioID,
		Origin:        domain.OriginScripted,
		Scope:         domain.ScopeUniversal,
		Severity:      domain.SeverityMedium,
		Title:         fmt.Sprintf("scripted %s", id),
		Content:       "scripted content",
		TriggerMinute: &minute,
	}
}

func inProgressSession(id, scenarioID string, startedAt time.Time) domain.Session {
	return domain.Session{
		ID:           id,
		ScenarioID:   scenarioID,
		Name:         "Test Session",
		Status:       domain.SessionStatusInProgress,
		StartedAt:    &startedAt,
		CurrentState: "situation developing",
		Teams:        []string{"fire", "police"},
	}
}
