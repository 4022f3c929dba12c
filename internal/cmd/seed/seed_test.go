package seed

import (
	"context"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	enginesqlite "github.com/crucible-sim/crucible/internal/storage/sqlite"
)

func TestRunSeedsDemoScenario(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	cfg := Config{DBPath: dbPath, StartOffset: 20 * time.Minute}

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	// Seeding twice must not error or duplicate injects.
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	store, err := enginesqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer store.Close()

	session, err := store.GetSession(context.Background(), "demo-session")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if session.Status != domain.SessionStatusInProgress || len(session.Teams) != 4 {
		t.Errorf("session = %+v", session)
	}

	scripted, err := store.ListScriptedInjects(context.Background(), "demo-coastal-storm")
	if err != nil {
		t.Fatalf("ListScriptedInjects returned error: %v", err)
	}
	if len(scripted) != 3 {
		t.Fatalf("scripted injects = %d, want 3", len(scripted))
	}

	conditional := 0
	for _, inject := range scripted {
		if inject.ConditionTriggered() {
			conditional++
		}
	}
	if conditional != 1 {
		t.Errorf("conditional injects = %d, want 1", conditional)
	}
}

func TestParseConfigFlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db-path", "/tmp/x.db", "-start-offset", "5m"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.StartOffset != 5*time.Minute {
		t.Errorf("StartOffset = %v", cfg.StartOffset)
	}
}
