// Package seed populates a local engine database with a demo scenario so the
// schedulers have something to chew on during development.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	entrypoint "github.com/crucible-sim/crucible/internal/platform/cmd"
	enginesqlite "github.com/crucible-sim/crucible/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"CRUCIBLE_ENGINE_DB_PATH" envDefault:"data/engine.db"`
	// StartOffset shifts the seeded session's start into the past so
	// minute-offset injects come due immediately.
	StartOffset time.Duration `env:"CRUCIBLE_ENGINE_SEED_START_OFFSET" envDefault:"20m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.DurationVar(&cfg.StartOffset, "start-offset", cfg.StartOffset, "How far in the past the demo session started")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds the database with the demo scenario.
func Run(ctx context.Context, cfg Config) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create engine storage dir: %w", err)
		}
	}
	store, err := enginesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open engine sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close engine sqlite store: %v", closeErr)
		}
	}()

	now := time.Now().UTC()
	started := now.Add(-cfg.StartOffset)

	session := DemoSession(started)
	if err := store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("seed session: %w", err)
	}
	for _, decision := range DemoDecisions(started) {
		if err := store.SaveDecision(ctx, decision); err != nil {
			return fmt.Errorf("seed decision %s: %w", decision.ID, err)
		}
	}
	for _, inject := range DemoInjects(now) {
		if err := store.SaveInject(ctx, inject); err != nil {
			return fmt.Errorf("seed inject %s: %w", inject.ID, err)
		}
	}

	log.Printf("seeded demo scenario %s with session %s (started %s)",
		session.ScenarioID, session.ID, started.Format(time.RFC3339))
	return nil
}

// DemoSession is an in-progress coastal storm exercise.
func DemoSession(started time.Time) domain.Session {
	return domain.Session{
		ID:         "demo-session",
		ScenarioID: "demo-coastal-storm",
		Name:       "Coastal Storm Landfall",
		Status:     domain.SessionStatusInProgress,
		StartedAt:  &started,
		CurrentState: "Category 3 storm made landfall an hour ago. Power is out in three " +
			"districts, the coastal highway is flooded, and shelters are near capacity.",
		Teams: []string{"fire", "police", "medical", "mayor"},
		Objectives: map[string]string{
			"fire":    "Keep evacuation routes open and respond to structural collapses.",
			"police":  "Maintain order at shelters and secure the flooded district.",
			"medical": "Triage storm casualties and keep the hospital operational on generators.",
			"mayor":   "Coordinate agencies and manage public communication.",
		},
	}
}

// DemoDecisions are executed decisions inside a recent evaluation window.
func DemoDecisions(started time.Time) []domain.Decision {
	executed := started.Add(15 * time.Minute)
	return []domain.Decision{
		{
			ID:          "demo-dec-1",
			SessionID:   "demo-session",
			Title:       "Declare citywide emergency",
			Description: "Formal emergency declaration unlocking mutual aid and curfew powers.",
			Type:        "declaration",
			ProposedBy:  "mayor",
			Team:        "mayor",
			Status:      domain.DecisionStatusExecuted,
			ExecutedAt:  &executed,
		},
		{
			ID:          "demo-dec-2",
			SessionID:   "demo-session",
			Title:       "Stage ambulances at the stadium",
			Description: "Forward staging point for casualty transport out of the flooded district.",
			Type:        "deployment",
			ProposedBy:  "medical",
			Team:        "medical",
			Status:      domain.DecisionStatusExecuted,
			ExecutedAt:  &executed,
		},
	}
}

// DemoInjects are the scenario's scripted injects: two time-triggered, one
// conditional on an emergency declaration.
func DemoInjects(createdAt time.Time) []domain.Inject {
	dueSoon := 10
	later := 45
	return []domain.Inject{
		{
			ID:            "demo-inj-levee",
			ScenarioID:    "demo-coastal-storm",
			Origin:        domain.OriginScripted,
			Scope:         domain.ScopeUniversal,
			Severity:      domain.SeverityHigh,
			Type:          "infrastructure",
			Title:         "Levee overtopping reported",
			Content:       "Spotters report water overtopping the east levee. Low-lying blocks behind it have not been cleared.",
			TriggerMinute: &dueSoon,
			CreatedAt:     createdAt,
		},
		{
			ID:            "demo-inj-hospital",
			ScenarioID:    "demo-coastal-storm",
			Origin:        domain.OriginScripted,
			Scope:         domain.ScopeTeamSpecific,
			TargetTeams:   []string{"medical"},
			Severity:      domain.SeverityCritical,
			Type:          "medical",
			Title:         "Hospital generator failing",
			Content:       "The hospital's backup generator is overheating. Estimated two hours before intensive care loses power.",
			TriggerMinute: &later,
			CreatedAt:     createdAt,
		},
		{
			ID:               "demo-inj-media",
			ScenarioID:       "demo-coastal-storm",
			Origin:           domain.OriginScripted,
			Scope:            domain.ScopeUniversal,
			Severity:         domain.SeverityMedium,
			Type:             "media",
			Title:            "Press demands briefing after declaration",
			Content:          "National media outlets are on site demanding an immediate briefing on the emergency declaration.",
			TriggerCondition: "category:emergency_declaration",
			CreatedAt:        createdAt,
		},
	}
}
