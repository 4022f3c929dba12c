package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/escalation"
	"github.com/crucible-sim/crucible/internal/engine/generation"
	"github.com/crucible-sim/crucible/internal/engine/impact"
	"github.com/crucible-sim/crucible/internal/engine/theme"
	"github.com/crucible-sim/crucible/internal/platform/metrics"
	"github.com/crucible-sim/crucible/internal/storage"
)

// recentInjectLimit bounds how many published injects feed the escalation
// prompt.
const recentInjectLimit = 10

// ReactionScheduler runs the periodic evaluation cycle for every in-progress
// session: escalation modeling, impact assessment, and decision-reactive
// generation.
type ReactionScheduler struct {
	store     Store
	modeler   *escalation.Modeler
	computer  *impact.Computer
	generator *generation.Generator
	publisher InjectPublisher
	interval  time.Duration
	window    time.Duration
	clock     func() time.Time
}

// NewReactionScheduler wires a reaction scheduler.
func NewReactionScheduler(store Store, modeler *escalation.Modeler, computer *impact.Computer, generator *generation.Generator, publisher InjectPublisher, interval, window time.Duration) *ReactionScheduler {
	if interval <= 0 {
		interval = DefaultReactionInterval
	}
	if window <= 0 {
		window = DefaultDecisionWindow
	}
	return &ReactionScheduler{
		store:     store,
		modeler:   modeler,
		computer:  computer,
		generator: generator,
		publisher: publisher,
		interval:  interval,
		window:    window,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the scheduler's time source.
func (s *ReactionScheduler) WithClock(clock func() time.Time) *ReactionScheduler {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Start runs the tick loop until the returned cancel fires. The done channel
// closes once the loop has stopped.
func (s *ReactionScheduler) Start() (context.CancelFunc, chan struct{}) {
	log.Printf("reaction scheduler started (interval=%s window=%s)", s.interval, s.window)
	return startLoop(s.interval, func(ctx context.Context) {
		s.Tick(ctx)
	})
}

// Tick runs one evaluation cycle across every in-progress session.
func (s *ReactionScheduler) Tick(ctx context.Context) TickReport {
	var report TickReport
	sessions, err := s.store.ListSessionsByStatus(ctx, domain.SessionStatusInProgress)
	if err != nil {
		log.Printf("reaction tick: list sessions: %v", err)
		report.Failures++
		return report
	}

	for _, session := range sessions {
		report.Sessions++
		published, err := s.tickSession(ctx, session)
		report.Published += published
		if err != nil {
			report.Failures++
			metrics.TickSessions.WithLabelValues("reaction", "error").Inc()
			log.Printf("reaction tick: session %s: %v", session.ID, err)
			continue
		}
		metrics.TickSessions.WithLabelValues("reaction", "ok").Inc()
	}
	return report
}

// tickSession runs one session's evaluation cycle. Snapshots are taken every
// cycle, decisions or not, so the derived time series has no gaps. Only
// windows with decisions trigger generation.
func (s *ReactionScheduler) tickSession(ctx context.Context, session domain.Session) (int, error) {
	now := s.clock()
	decisions, err := s.store.ListExecutedDecisionsSince(ctx, session.ID, now.Add(-s.window))
	if err != nil {
		return 0, fmt.Errorf("list window decisions: %w", err)
	}
	publishedInjects, err := s.store.ListPublishedInjects(ctx, session.ID)
	if err != nil {
		return 0, fmt.Errorf("list published injects: %w", err)
	}
	recent, err := s.store.ListPublishedInjectsSince(ctx, session.ID, now.Add(-s.window))
	if err != nil {
		return 0, fmt.Errorf("list recent injects: %w", err)
	}
	if len(recent) > recentInjectLimit {
		recent = recent[len(recent)-recentInjectLimit:]
	}

	escalationSnapshot := s.modeler.Assess(ctx, escalation.AssessInput{
		Session:       session,
		Narrative:     session.CurrentState,
		RecentInjects: recent,
	})
	if err := s.store.SaveEscalationSnapshot(ctx, escalationSnapshot); err != nil {
		return 0, fmt.Errorf("save escalation snapshot: %w", err)
	}

	impactSnapshot := s.computer.Compute(ctx, session.ID, session.Teams, decisions, session.CurrentState)
	if err := s.store.SaveImpactSnapshot(ctx, impactSnapshot); err != nil {
		return 0, fmt.Errorf("save impact snapshot: %w", err)
	}

	if len(decisions) == 0 {
		return 0, nil
	}
	return s.generate(ctx, session, decisions, publishedInjects, escalationSnapshot, impactSnapshot)
}

// generate runs the universal call site and one call site per team with
// decisions in the window.
func (s *ReactionScheduler) generate(ctx context.Context, session domain.Session, decisions []domain.Decision, publishedInjects []domain.Inject, escalationSnapshot domain.EscalationSnapshot, impactSnapshot domain.ImpactMatrixSnapshot) (int, error) {
	pending, err := s.pendingScripted(ctx, session)
	if err != nil {
		return 0, err
	}
	ledger := theme.BuildLedger(publishedInjects)
	dominant, _ := ledger.MostUsed()

	published := 0
	universal := generation.NewUniversalContext(session).
		WithNarrative(session.CurrentState).
		WithDecisions(decisions).
		WithEscalation(escalationSnapshot).
		WithImpact(impactSnapshot).
		WithThemeUsage(ledger.ForScope(theme.ScopeUniversal)).
		WithDominantTheme(dominant).
		WithPendingScripted(pending).
		Build()
	count, err := s.generateAndPublish(ctx, session, universal)
	if err != nil {
		return published, err
	}
	published += count

	for _, team := range domain.TeamsWithDecisions(decisions) {
		var teamDecisions []domain.Decision
		for _, decision := range decisions {
			if decision.Team == team {
				teamDecisions = append(teamDecisions, decision)
			}
		}
		teamCtx := generation.NewTeamContext(session, team).
			WithNarrative(session.CurrentState).
			WithDecisions(teamDecisions).
			WithEscalation(escalationSnapshot).
			WithImpact(impactSnapshot).
			WithThemeUsage(ledger.ForScope(team)).
			WithDominantTheme(dominant).
			WithPendingScripted(pending).
			Build()
		count, err := s.generateAndPublish(ctx, session, teamCtx)
		if err != nil {
			return published, err
		}
		published += count
	}
	return published, nil
}

// generateAndPublish runs one generation call site. Oracle failure degrades
// to no inject rather than failing the session's cycle.
func (s *ReactionScheduler) generateAndPublish(ctx context.Context, session domain.Session, genCtx generation.Context) (int, error) {
	inject, err := s.generator.Generate(ctx, genCtx)
	if err != nil {
		metrics.OracleFailures.WithLabelValues("generate").Inc()
		log.Printf("generation failed for session %s (%s): %v", session.ID, genCtx.Kind, err)
		return 0, nil
	}
	if inject == nil {
		return 0, nil
	}
	err = s.publisher.Publish(ctx, session.ID, *inject)
	if errors.Is(err, storage.ErrAlreadyPublished) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// pendingScripted returns the scenario's scripted injects not yet published
// or cancelled for the session. Generated content must not contradict them.
func (s *ReactionScheduler) pendingScripted(ctx context.Context, session domain.Session) ([]domain.Inject, error) {
	scripted, err := s.store.ListScriptedInjects(ctx, session.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("list scripted injects: %w", err)
	}
	publishedIDs, err := s.store.PublishedInjectIDs(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list published ids: %w", err)
	}
	cancelledIDs, err := s.store.CancelledInjectIDs(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list cancelled ids: %w", err)
	}

	var pending []domain.Inject
	for _, inject := range scripted {
		if _, ok := publishedIDs[inject.ID]; ok {
			continue
		}
		if _, ok := cancelledIDs[inject.ID]; ok {
			continue
		}
		pending = append(pending, inject)
	}
	return pending, nil
}
