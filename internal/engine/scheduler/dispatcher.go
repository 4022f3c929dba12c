package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/trigger"
	"github.com/crucible-sim/crucible/internal/storage"
)

// Classifier names the classification capability the dispatcher consumes.
type Classifier interface {
	ClassifyDecision(ctx context.Context, session domain.Session, decision domain.Decision) (domain.Classification, error)
}

// Dispatcher reacts to a single executed decision: it classifies the
// decision, persists the classification, and releases every conditional
// scripted inject the classification satisfies, up to the per-decision
// budget.
type Dispatcher struct {
	store      Store
	classifier Classifier
	publisher  InjectPublisher
	// maxInjects caps how many conditional injects one decision may
	// release. Zero or negative means the default.
	maxInjects int
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(store Store, classifier Classifier, publisher InjectPublisher, maxInjects int) *Dispatcher {
	if maxInjects <= 0 {
		maxInjects = DefaultMaxInjectsPerDecision
	}
	return &Dispatcher{
		store:      store,
		classifier: classifier,
		publisher:  publisher,
		maxInjects: maxInjects,
	}
}

// DispatchDecision handles one executed decision end to end. Classification
// failure aborts the dispatch: without a classification no conditional
// trigger can be evaluated, so the error propagates for the caller to retry.
// Returns how many injects the decision released.
func (d *Dispatcher) DispatchDecision(ctx context.Context, decisionID string) (int, error) {
	decision, err := d.store.GetDecision(ctx, decisionID)
	if err != nil {
		return 0, fmt.Errorf("load decision %s: %w", decisionID, err)
	}
	if decision.Status != domain.DecisionStatusExecuted {
		return 0, domain.ErrDecisionNotExecuted
	}
	session, err := d.store.GetSession(ctx, decision.SessionID)
	if err != nil {
		return 0, fmt.Errorf("load session %s: %w", decision.SessionID, err)
	}

	classification, err := d.classifier.ClassifyDecision(ctx, session, decision)
	if err != nil {
		return 0, fmt.Errorf("classify decision %s: %w", decisionID, err)
	}
	if err := d.store.SaveClassification(ctx, decisionID, classification); err != nil {
		return 0, fmt.Errorf("save classification for %s: %w", decisionID, err)
	}

	candidates, err := d.matchableInjects(ctx, session)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, inject := range candidates {
		if published >= d.maxInjects {
			break
		}
		if !trigger.MatchInject(inject, classification) {
			continue
		}
		err := d.publisher.Publish(ctx, session.ID, inject)
		if errors.Is(err, storage.ErrAlreadyPublished) {
			// Another scheduler won the race; nothing to do.
			continue
		}
		if err != nil {
			return published, fmt.Errorf("publish inject %s: %w", inject.ID, err)
		}
		published++
	}

	log.Printf("dispatched decision %s for session %s: primary=%s released=%d",
		decisionID, session.ID, classification.PrimaryCategory, published)
	return published, nil
}

// matchableInjects returns the session's condition-triggered scripted
// injects that are neither published nor cancelled.
func (d *Dispatcher) matchableInjects(ctx context.Context, session domain.Session) ([]domain.Inject, error) {
	scripted, err := d.store.ListScriptedInjects(ctx, session.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("list scripted injects: %w", err)
	}
	publishedIDs, err := d.store.PublishedInjectIDs(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list published ids: %w", err)
	}
	cancelledIDs, err := d.store.CancelledInjectIDs(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list cancelled ids: %w", err)
	}

	var candidates []domain.Inject
	for _, inject := range scripted {
		if !inject.ConditionTriggered() {
			continue
		}
		if _, ok := publishedIDs[inject.ID]; ok {
			continue
		}
		if _, ok := cancelledIDs[inject.ID]; ok {
			continue
		}
		candidates = append(candidates, inject)
	}
	return candidates, nil
}
