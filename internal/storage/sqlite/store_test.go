package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	session := domain.Session{
		ID:           "sess-1",
		ScenarioID:   "scen-1",
		Name:         "Coastal Storm",
		Status:       domain.SessionStatusInProgress,
		StartedAt:    &started,
		CurrentState: "Landfall imminent, shelters at capacity.",
		Teams:        []string{"fire", "police"},
		Objectives:   map[string]string{"fire": "clear routes"},
	}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession returned error: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if got.Name != session.Name || got.CurrentState != session.CurrentState {
		t.Errorf("session fields mismatch: got %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if len(got.Teams) != 2 || got.Teams[0] != "fire" {
		t.Errorf("Teams = %v", got.Teams)
	}
	if got.Objectives["fire"] != "clear routes" {
		t.Errorf("Objectives = %v", got.Objectives)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.GetSession(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsByStatus(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for _, session := range []domain.Session{
		{ID: "a", ScenarioID: "s", Status: domain.SessionStatusInProgress},
		{ID: "b", ScenarioID: "s", Status: domain.SessionStatusPaused},
		{ID: "c", ScenarioID: "s", Status: domain.SessionStatusInProgress},
	} {
		if err := store.SaveSession(ctx, session); err != nil {
			t.Fatalf("SaveSession(%s) returned error: %v", session.ID, err)
		}
	}

	active, err := store.ListSessionsByStatus(ctx, domain.SessionStatusInProgress)
	if err != nil {
		t.Fatalf("ListSessionsByStatus returned error: %v", err)
	}
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "c" {
		t.Errorf("active sessions = %+v", active)
	}
}

func TestDecisionClassification(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	executed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	decision := domain.Decision{
		ID:         "dec-1",
		SessionID:  "sess-1",
		Title:      "Declare emergency",
		Team:       "mayor",
		Status:     domain.DecisionStatusExecuted,
		ExecutedAt: &executed,
	}
	if err := store.SaveDecision(ctx, decision); err != nil {
		t.Fatalf("SaveDecision returned error: %v", err)
	}

	classification := domain.Classification{
		PrimaryCategory: "emergency_declaration",
		Categories:      []string{"emergency_declaration", "public_communication"},
		Keywords:        []string{"emergency", "declare"},
		Confidence:      0.92,
	}
	if err := store.SaveClassification(ctx, "dec-1", classification); err != nil {
		t.Fatalf("SaveClassification returned error: %v", err)
	}

	got, err := store.GetDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetDecision returned error: %v", err)
	}
	if got.Classification == nil {
		t.Fatal("expected classification to be stored")
	}
	if got.Classification.PrimaryCategory != "emergency_declaration" {
		t.Errorf("PrimaryCategory = %q", got.Classification.PrimaryCategory)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(executed) {
		t.Errorf("ExecutedAt = %v, want %v", got.ExecutedAt, executed)
	}
}

func TestSaveClassificationUnknownDecision(t *testing.T) {
	store := openTempStore(t)
	err := store.SaveClassification(context.Background(), "missing", domain.Classification{PrimaryCategory: "x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListExecutedDecisionsSince(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(2 * time.Minute), base.Add(10 * time.Minute)}
	for i, at := range times {
		at := at
		decision := domain.Decision{
			ID:         string(rune('a' + i)),
			SessionID:  "sess-1",
			Status:     domain.DecisionStatusExecuted,
			ExecutedAt: &at,
		}
		if err := store.SaveDecision(ctx, decision); err != nil {
			t.Fatalf("SaveDecision returned error: %v", err)
		}
	}
	// A proposed decision must never appear in the executed window.
	if err := store.SaveDecision(ctx, domain.Decision{
		ID: "pending", SessionID: "sess-1", Status: domain.DecisionStatusProposed,
	}); err != nil {
		t.Fatalf("SaveDecision returned error: %v", err)
	}

	got, err := store.ListExecutedDecisionsSince(ctx, "sess-1", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("ListExecutedDecisionsSince returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("decisions = %+v", got)
	}
}

func TestSaveInjectPreservesFirstWrite(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	minute := 30
	inject := domain.Inject{
		ID:            "inj-1",
		ScenarioID:    "scen-1",
		Origin:        domain.OriginScripted,
		Scope:         domain.ScopeUniversal,
		Severity:      domain.SeverityHigh,
		Type:          "weather",
		Title:         "Storm surge warning",
		Content:       "Surge expected within the hour.",
		TriggerMinute: &minute,
		CreatedAt:     time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
	}
	if err := store.SaveInject(ctx, inject); err != nil {
		t.Fatalf("SaveInject returned error: %v", err)
	}

	altered := inject
	altered.Title = "Rewritten title"
	if err := store.SaveInject(ctx, altered); err != nil {
		t.Fatalf("second SaveInject returned error: %v", err)
	}

	scripted, err := store.ListScriptedInjects(ctx, "scen-1")
	if err != nil {
		t.Fatalf("ListScriptedInjects returned error: %v", err)
	}
	if len(scripted) != 1 {
		t.Fatalf("expected 1 scripted inject, got %d", len(scripted))
	}
	if scripted[0].Title != "Storm surge warning" {
		t.Errorf("Title = %q, want original preserved", scripted[0].Title)
	}
	if scripted[0].TriggerMinute == nil || *scripted[0].TriggerMinute != 30 {
		t.Errorf("TriggerMinute = %v", scripted[0].TriggerMinute)
	}
}

func TestAppendPublicationRejectsDuplicate(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	record := domain.PublicationRecord{
		SessionID:   "sess-1",
		InjectID:    "inj-1",
		PublishedAt: time.Date(2026, 3, 14, 9, 45, 0, 0, time.UTC),
	}
	if err := store.AppendPublication(ctx, record); err != nil {
		t.Fatalf("AppendPublication returned error: %v", err)
	}
	if err := store.AppendPublication(ctx, record); !errors.Is(err, storage.ErrAlreadyPublished) {
		t.Fatalf("expected ErrAlreadyPublished, got %v", err)
	}

	// The same inject may still be published to a different session.
	other := record
	other.SessionID = "sess-2"
	if err := store.AppendPublication(ctx, other); err != nil {
		t.Fatalf("cross-session AppendPublication returned error: %v", err)
	}

	ids, err := store.PublishedInjectIDs(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PublishedInjectIDs returned error: %v", err)
	}
	if _, ok := ids["inj-1"]; !ok || len(ids) != 1 {
		t.Errorf("published ids = %v", ids)
	}
}

func TestAppendCancellationIsIdempotent(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	record := domain.CancellationRecord{
		SessionID:   "sess-1",
		InjectID:    "inj-1",
		Reason:      "overtaken by events",
		CancelledAt: time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC),
	}
	if err := store.AppendCancellation(ctx, record); err != nil {
		t.Fatalf("AppendCancellation returned error: %v", err)
	}
	if err := store.AppendCancellation(ctx, record); err != nil {
		t.Fatalf("repeated AppendCancellation returned error: %v", err)
	}

	ids, err := store.CancelledInjectIDs(ctx, "sess-1")
	if err != nil {
		t.Fatalf("CancelledInjectIDs returned error: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("cancelled ids = %v", ids)
	}
}

func TestListPublishedInjectsOrdersByPublication(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"early", "late"} {
		inject := domain.Inject{
			ID:         id,
			ScenarioID: "scen-1",
			Origin:     domain.OriginScripted,
			Scope:      domain.ScopeUniversal,
			Title:      id,
			CreatedAt:  base,
		}
		if err := store.SaveInject(ctx, inject); err != nil {
			t.Fatalf("SaveInject returned error: %v", err)
		}
	}
	// Publish in reverse creation order; publication time wins.
	for i, id := range []string{"late", "early"} {
		record := domain.PublicationRecord{
			SessionID:   "sess-1",
			InjectID:    id,
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendPublication(ctx, record); err != nil {
			t.Fatalf("AppendPublication returned error: %v", err)
		}
	}

	published, err := store.ListPublishedInjects(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListPublishedInjects returned error: %v", err)
	}
	if len(published) != 2 || published[0].ID != "late" || published[1].ID != "early" {
		t.Errorf("published order = %+v", published)
	}
}

func TestListPublishedInjectsSinceFiltersByCutoff(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"stale", "fresh"} {
		inject := domain.Inject{
			ID:         id,
			ScenarioID: "scen-1",
			Origin:     domain.OriginScripted,
			Scope:      domain.ScopeUniversal,
			Title:      id,
			CreatedAt:  base,
		}
		if err := store.SaveInject(ctx, inject); err != nil {
			t.Fatalf("SaveInject returned error: %v", err)
		}
	}
	publications := map[string]time.Time{
		"stale": base,
		"fresh": base.Add(58 * time.Minute),
	}
	for id, at := range publications {
		record := domain.PublicationRecord{SessionID: "sess-1", InjectID: id, PublishedAt: at}
		if err := store.AppendPublication(ctx, record); err != nil {
			t.Fatalf("AppendPublication returned error: %v", err)
		}
	}

	cutoff := base.Add(55 * time.Minute)
	recent, err := store.ListPublishedInjectsSince(ctx, "sess-1", cutoff)
	if err != nil {
		t.Fatalf("ListPublishedInjectsSince returned error: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "fresh" {
		t.Errorf("recent = %+v, want only the inject published after the cutoff", recent)
	}

	all, err := store.ListPublishedInjects(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListPublishedInjects returned error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all published = %d, want 2", len(all))
	}
}

func TestEscalationSnapshotRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	first := domain.EscalationSnapshot{
		SessionID: "sess-1",
		TakenAt:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Factors: []domain.EscalationFactor{
			{ID: "f1", Name: "Hospital overload", Severity: domain.SeverityHigh},
		},
	}
	second := first
	second.TakenAt = first.TakenAt.Add(5 * time.Minute)
	second.Pathways = []domain.EscalationPathway{
		{ID: "p1", Trajectory: "Cascading grid failure", TriggerBehaviors: []string{"delay repairs"}},
	}

	for _, snapshot := range []domain.EscalationSnapshot{first, second} {
		if err := store.SaveEscalationSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("SaveEscalationSnapshot returned error: %v", err)
		}
	}

	got, found, err := store.LatestEscalationSnapshot(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LatestEscalationSnapshot returned error: %v", err)
	}
	if !found {
		t.Fatal("expected a snapshot")
	}
	if !got.TakenAt.Equal(second.TakenAt) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, second.TakenAt)
	}
	if len(got.Pathways) != 1 || got.Pathways[0].Trajectory != "Cascading grid failure" {
		t.Errorf("Pathways = %+v", got.Pathways)
	}
}

func TestLatestImpactSnapshotMissing(t *testing.T) {
	store := openTempStore(t)
	_, found, err := store.LatestImpactSnapshot(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LatestImpactSnapshot returned error: %v", err)
	}
	if found {
		t.Fatal("expected no snapshot")
	}
}

func TestImpactSnapshotRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	snapshot := domain.ImpactMatrixSnapshot{
		SessionID: "sess-1",
		TakenAt:   time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC),
		Scores: map[string]map[string]int{
			"fire": {"police": 2, "medical": -1},
		},
		Robustness: map[string]int{"dec-1": 4},
		Analysis:   "Route clearing helped police staging.",
		Taxonomy:   map[string]domain.ResponseKind{"fire": domain.ResponseTextual, "medical": domain.ResponseAbsent},
	}
	if err := store.SaveImpactSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("SaveImpactSnapshot returned error: %v", err)
	}

	got, found, err := store.LatestImpactSnapshot(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LatestImpactSnapshot returned error: %v", err)
	}
	if !found {
		t.Fatal("expected a snapshot")
	}
	if got.Scores["fire"]["police"] != 2 {
		t.Errorf("Scores = %v", got.Scores)
	}
	if got.Taxonomy["fire"] != domain.ResponseTextual {
		t.Errorf("Taxonomy = %v", got.Taxonomy)
	}

	count, err := store.CountImpactSnapshots(ctx, "sess-1")
	if err != nil {
		t.Fatalf("CountImpactSnapshots returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
