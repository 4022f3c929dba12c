package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/platform/metrics"
	"github.com/crucible-sim/crucible/internal/storage"
)

// CancelOracle reviews a due scripted inject against the decisions the
// session executed in the current window. The review is advisory and
// fail-open: when it errors, the inject is delivered.
type CancelOracle interface {
	ShouldCancelInject(ctx context.Context, session domain.Session, inject domain.Inject, recentDecisions []domain.Decision) (bool, string, error)
}

// TimedScheduler releases minute-offset scripted injects for in-progress
// sessions.
type TimedScheduler struct {
	store     Store
	oracle    CancelOracle
	publisher InjectPublisher
	interval  time.Duration
	window    time.Duration
	clock     func() time.Time
}

// NewTimedScheduler wires a timed scheduler. oracle may be nil to skip
// cancellation review entirely.
func NewTimedScheduler(store Store, oracle CancelOracle, publisher InjectPublisher, interval, window time.Duration) *TimedScheduler {
	if interval <= 0 {
		interval = DefaultTimedInterval
	}
	if window <= 0 {
		window = DefaultDecisionWindow
	}
	return &TimedScheduler{
		store:     store,
		oracle:    oracle,
		publisher: publisher,
		interval:  interval,
		window:    window,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the scheduler's time source.
func (s *TimedScheduler) WithClock(clock func() time.Time) *TimedScheduler {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Start runs the tick loop until the returned cancel fires. The done channel
// closes once the loop has stopped.
func (s *TimedScheduler) Start() (context.CancelFunc, chan struct{}) {
	log.Printf("timed scheduler started (interval=%s)", s.interval)
	return startLoop(s.interval, func(ctx context.Context) {
		s.Tick(ctx)
	})
}

// Tick processes every in-progress session once. A failing session is
// counted and skipped; the remaining sessions still run.
func (s *TimedScheduler) Tick(ctx context.Context) TickReport {
	var report TickReport
	sessions, err := s.store.ListSessionsByStatus(ctx, domain.SessionStatusInProgress)
	if err != nil {
		log.Printf("timed tick: list sessions: %v", err)
		report.Failures++
		return report
	}

	for _, session := range sessions {
		report.Sessions++
		published, cancelled, err := s.tickSession(ctx, session)
		report.Published += published
		report.Cancelled += cancelled
		if err != nil {
			report.Failures++
			metrics.TickSessions.WithLabelValues("timed", "error").Inc()
			log.Printf("timed tick: session %s: %v", session.ID, err)
			continue
		}
		metrics.TickSessions.WithLabelValues("timed", "ok").Inc()
	}
	return report
}

func (s *TimedScheduler) tickSession(ctx context.Context, session domain.Session) (published, cancelled int, err error) {
	now := s.clock()
	elapsed, err := session.ElapsedMinutes(now)
	if err != nil {
		return 0, 0, err
	}
	due, err := s.dueInjects(ctx, session, elapsed)
	if err != nil {
		return 0, 0, err
	}
	if len(due) == 0 {
		return 0, 0, nil
	}

	// The review only makes sense against fresh player actions: a quiet
	// window cannot have overtaken the script, so due injects go straight
	// out without an oracle round trip.
	var recent []domain.Decision
	if s.oracle != nil {
		recent, err = s.store.ListExecutedDecisionsSince(ctx, session.ID, now.Add(-s.window))
		if err != nil {
			return 0, 0, err
		}
	}

	for _, inject := range due {
		if s.oracle != nil && len(recent) > 0 {
			cancel, reason, reviewErr := s.oracle.ShouldCancelInject(ctx, session, inject, recent)
			if reviewErr != nil {
				// Fail open: a broken review must not hold back the script.
				metrics.OracleFailures.WithLabelValues("cancel").Inc()
				log.Printf("cancellation review failed for inject %s, delivering anyway: %v", inject.ID, reviewErr)
			} else if cancel {
				if err := s.publisher.Cancel(ctx, session.ID, inject.ID, reason); err != nil {
					return published, cancelled, err
				}
				cancelled++
				continue
			}
		}
		err := s.publisher.Publish(ctx, session.ID, inject)
		if errors.Is(err, storage.ErrAlreadyPublished) {
			continue
		}
		if err != nil {
			return published, cancelled, err
		}
		published++
	}
	return published, cancelled, nil
}

// dueInjects returns the session's time-triggered scripted injects whose
// minute offset has passed and which are neither published nor cancelled.
func (s *TimedScheduler) dueInjects(ctx context.Context, session domain.Session, elapsed int) ([]domain.Inject, error) {
	scripted, err := s.store.ListScriptedInjects(ctx, session.ScenarioID)
	if err != nil {
		return nil, err
	}
	publishedIDs, err := s.store.PublishedInjectIDs(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	cancelledIDs, err := s.store.CancelledInjectIDs(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	var due []domain.Inject
	for _, inject := range scripted {
		if !inject.TimeTriggered() || *inject.TriggerMinute > elapsed {
			continue
		}
		if _, ok := publishedIDs[inject.ID]; ok {
			continue
		}
		if _, ok := cancelledIDs[inject.ID]; ok {
			continue
		}
		due = append(due, inject)
	}
	return due, nil
}
