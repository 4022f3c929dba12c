// Package scheduler drives inject delivery for live sessions: the decision
// dispatcher reacts to executed decisions, the timed scheduler releases
// minute-offset scripted injects, and the reaction scheduler runs the
// periodic evaluation cycle.
//
// Schedulers never run overlapping ticks: each loop finishes the current
// tick before waiting for the next interval, so a slow oracle stretches the
// cycle instead of stacking work. A failure in one session is logged and
// counted; the tick continues with the remaining sessions.
package scheduler

import (
	"context"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

// Default cadence and budget settings.
const (
	DefaultTimedInterval         = 30 * time.Second
	DefaultReactionInterval      = 5 * time.Minute
	DefaultDecisionWindow        = 5 * time.Minute
	DefaultMaxInjectsPerDecision = 2
)

// Store is the persistence surface the schedulers share.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error)
	GetDecision(ctx context.Context, decisionID string) (domain.Decision, error)
	ListExecutedDecisionsSince(ctx context.Context, sessionID string, cutoff time.Time) ([]domain.Decision, error)
	SaveClassification(ctx context.Context, decisionID string, classification domain.Classification) error
	ListScriptedInjects(ctx context.Context, scenarioID string) ([]domain.Inject, error)
	ListPublishedInjects(ctx context.Context, sessionID string) ([]domain.Inject, error)
	ListPublishedInjectsSince(ctx context.Context, sessionID string, cutoff time.Time) ([]domain.Inject, error)
	PublishedInjectIDs(ctx context.Context, sessionID string) (map[string]struct{}, error)
	CancelledInjectIDs(ctx context.Context, sessionID string) (map[string]struct{}, error)
	SaveEscalationSnapshot(ctx context.Context, snapshot domain.EscalationSnapshot) error
	SaveImpactSnapshot(ctx context.Context, snapshot domain.ImpactMatrixSnapshot) error
}

// InjectPublisher commits injects and cancellations. Publish returns
// storage.ErrAlreadyPublished when another path won the race for the same
// (session, inject) pair.
type InjectPublisher interface {
	Publish(ctx context.Context, sessionID string, inject domain.Inject) error
	Cancel(ctx context.Context, sessionID, injectID, reason string) error
}

// TickReport summarizes one scheduler pass.
type TickReport struct {
	Sessions  int
	Published int
	Cancelled int
	Failures  int
}

// startLoop runs tick on the interval until the returned cancel fires. The
// done channel closes once the loop has fully stopped. Ticks run
// sequentially on one goroutine.
func startLoop(interval time.Duration, tick func(ctx context.Context)) (context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()

	return cancel, done
}
