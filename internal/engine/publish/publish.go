// Package publish commits injects to a session's event history and fans the
// result out to connected observers.
//
// Publication is the engine's idempotency gate: the append-only publication
// log carries a uniqueness guarantee per (session, inject), so two schedulers
// racing over the same scripted inject cannot deliver it twice. Losers of the
// race receive storage.ErrAlreadyPublished and must treat it as a no-op.
package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/platform/metrics"
)

// Notifier delivers committed injects to live session observers. Delivery is
// best effort; a session with no observers is not an error.
type Notifier interface {
	BroadcastInject(sessionID string, inject domain.Inject)
}

// Store is the storage surface publication needs.
type Store interface {
	SaveInject(ctx context.Context, inject domain.Inject) error
	AppendPublication(ctx context.Context, record domain.PublicationRecord) error
	AppendCancellation(ctx context.Context, record domain.CancellationRecord) error
}

// Publisher commits injects and cancellations for sessions.
type Publisher struct {
	store    Store
	notifier Notifier
	clock    func() time.Time
}

// NewPublisher wires a publisher. notifier may be nil when no live delivery
// surface exists, for example in the seed command.
func NewPublisher(store Store, notifier Notifier) *Publisher {
	return &Publisher{
		store:    store,
		notifier: notifier,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the publication timestamp source.
func (p *Publisher) WithClock(clock func() time.Time) *Publisher {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Publish stores the inject if it is new, appends the publication record and
// broadcasts the inject. The publication record is the commit point: the
// broadcast happens only after the record is durable, so observers never see
// an inject the history does not contain.
//
// Returns storage.ErrAlreadyPublished unchanged when the inject was already
// delivered to the session.
func (p *Publisher) Publish(ctx context.Context, sessionID string, inject domain.Inject) error {
	normalized, err := inject.Normalize()
	if err != nil {
		return err
	}
	if err := p.store.SaveInject(ctx, normalized); err != nil {
		return fmt.Errorf("store inject %s: %w", normalized.ID, err)
	}
	record := domain.PublicationRecord{
		SessionID:   sessionID,
		InjectID:    normalized.ID,
		PublishedAt: p.clock(),
	}
	if err := p.store.AppendPublication(ctx, record); err != nil {
		// Not wrapped: callers distinguish a lost race from a failure.
		return err
	}

	metrics.InjectsPublished.WithLabelValues(string(normalized.Origin), string(normalized.Scope)).Inc()
	log.Printf("published inject %s to session %s (origin=%s scope=%s severity=%s)",
		normalized.ID, sessionID, normalized.Origin, normalized.Scope, normalized.Severity)

	if p.notifier != nil {
		p.notifier.BroadcastInject(sessionID, normalized)
	}
	return nil
}

// Cancel permanently suppresses a scripted inject for a session. Cancelling
// an already-cancelled inject is a no-op.
func (p *Publisher) Cancel(ctx context.Context, sessionID, injectID, reason string) error {
	record := domain.CancellationRecord{
		SessionID:   sessionID,
		InjectID:    injectID,
		Reason:      reason,
		CancelledAt: p.clock(),
	}
	if err := p.store.AppendCancellation(ctx, record); err != nil {
		return fmt.Errorf("cancel inject %s: %w", injectID, err)
	}
	metrics.InjectsCancelled.Inc()
	log.Printf("cancelled inject %s for session %s: %s", injectID, sessionID, reason)
	return nil
}
