package escalation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

type fakeOracle struct {
	factors        []domain.EscalationFactor
	factorsErr     error
	mitigations    []domain.DeEscalationFactor
	mitigationsErr error
	pathways       []domain.EscalationPathway
	pathwaysErr    error
	dePathways     []domain.DeEscalationPathway
	dePathwaysErr  error

	calls []string

	gotFactors     []domain.EscalationFactor
	gotPathways    []domain.EscalationPathway
	gotMitigations []domain.DeEscalationFactor
}

func (f *fakeOracle) IdentifyEscalationFactors(_ context.Context, _ AssessInput) ([]domain.EscalationFactor, error) {
	f.calls = append(f.calls, "factors")
	return f.factors, f.factorsErr
}

func (f *fakeOracle) IdentifyDeEscalationFactors(_ context.Context, _ AssessInput, factors []domain.EscalationFactor) ([]domain.DeEscalationFactor, error) {
	f.calls = append(f.calls, "mitigations")
	f.gotFactors = factors
	return f.mitigations, f.mitigationsErr
}

func (f *fakeOracle) GenerateEscalationPathways(_ context.Context, _ AssessInput, factors []domain.EscalationFactor) ([]domain.EscalationPathway, error) {
	f.calls = append(f.calls, "pathways")
	f.gotFactors = factors
	return f.pathways, f.pathwaysErr
}

func (f *fakeOracle) GenerateDeEscalationPathways(_ context.Context, _ AssessInput, pathways []domain.EscalationPathway, mitigations []domain.DeEscalationFactor) ([]domain.DeEscalationPathway, error) {
	f.calls = append(f.calls, "de-pathways")
	f.gotPathways = pathways
	f.gotMitigations = mitigations
	return f.dePathways, f.dePathwaysErr
}

func testModeler(oracle Oracle) *Modeler {
	m := NewModeler(oracle)
	m.clock = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	counter := 0
	m.idGenerator = func() (string, error) {
		counter++
		return fmt.Sprintf("id-%d", counter), nil
	}
	return m
}

func testInput() AssessInput {
	return AssessInput{
		Session: domain.Session{ID: "sess-1", ScenarioID: "scn-1"},
	}
}

func TestAssessRunsCallsInOrder(t *testing.T) {
	oracle := &fakeOracle{
		factors: []domain.EscalationFactor{
			{Name: "hospital overload", Severity: domain.SeverityHigh},
		},
		mitigations: []domain.DeEscalationFactor{
			{Name: "mutual aid request"},
		},
		pathways: []domain.EscalationPathway{
			{Trajectory: "overflow spreads to neighboring districts", TriggerBehaviors: []string{"delayed triage"}},
		},
		dePathways: []domain.DeEscalationPathway{
			{Trajectory: "capacity recovers", MitigatingBehaviors: []string{"activate mutual aid"}},
		},
	}

	snapshot := testModeler(oracle).Assess(context.Background(), testInput())

	wantOrder := []string{"factors", "mitigations", "pathways", "de-pathways"}
	if len(oracle.calls) != len(wantOrder) {
		t.Fatalf("calls = %v, want %v", oracle.calls, wantOrder)
	}
	for i, call := range wantOrder {
		if oracle.calls[i] != call {
			t.Fatalf("call %d = %q, want %q", i, oracle.calls[i], call)
		}
	}

	if len(snapshot.Factors) != 1 || snapshot.Factors[0].ID == "" {
		t.Fatalf("factors = %+v, want one factor with assigned id", snapshot.Factors)
	}
	if snapshot.SessionID != "sess-1" {
		t.Fatalf("session id = %q", snapshot.SessionID)
	}
	if snapshot.TakenAt.IsZero() {
		t.Fatal("expected snapshot timestamp")
	}
}

func TestAssessFailsSoftPerCall(t *testing.T) {
	oracle := &fakeOracle{
		factorsErr: errors.New("oracle timeout"),
		mitigations: []domain.DeEscalationFactor{
			{Name: "public information campaign"},
		},
		pathwaysErr: errors.New("oracle unavailable"),
		dePathways: []domain.DeEscalationPathway{
			{Trajectory: "public confidence recovers"},
		},
	}

	snapshot := testModeler(oracle).Assess(context.Background(), testInput())

	if len(snapshot.Factors) != 0 {
		t.Fatalf("factors = %+v, want empty on oracle failure", snapshot.Factors)
	}
	if len(snapshot.DeEscalationFactors) != 1 {
		t.Fatalf("mitigations = %+v, want surviving artifact", snapshot.DeEscalationFactors)
	}
	if len(snapshot.Pathways) != 0 {
		t.Fatalf("pathways = %+v, want empty on oracle failure", snapshot.Pathways)
	}
	if len(snapshot.DeEscalationPathways) != 1 {
		t.Fatalf("de-escalation pathways = %+v, want surviving artifact", snapshot.DeEscalationPathways)
	}
	// Downstream calls must receive the degraded (empty) artifacts, not abort.
	if len(oracle.calls) != 4 {
		t.Fatalf("calls = %v, want all four despite failures", oracle.calls)
	}
}

func TestAssessClampsArtifactCounts(t *testing.T) {
	var factors []domain.EscalationFactor
	for i := 0; i < 12; i++ {
		factors = append(factors, domain.EscalationFactor{
			Name:     fmt.Sprintf("factor-%d", i),
			Severity: domain.SeverityLow,
		})
	}
	var pathways []domain.EscalationPathway
	for i := 0; i < 9; i++ {
		pathways = append(pathways, domain.EscalationPathway{
			Trajectory:       fmt.Sprintf("trajectory-%d", i),
			TriggerBehaviors: []string{"a", "b", "c", "d", "e", "f"},
		})
	}
	oracle := &fakeOracle{
		factors:  factors,
		pathways: pathways,
		dePathways: []domain.DeEscalationPathway{
			{
				Trajectory:         "stabilizes",
				EmergingChallenges: []string{"x", "y", "z"},
			},
		},
	}

	snapshot := testModeler(oracle).Assess(context.Background(), testInput())

	if len(snapshot.Factors) != 8 {
		t.Fatalf("factors len = %d, want clamp to 8", len(snapshot.Factors))
	}
	if len(snapshot.Pathways) != 6 {
		t.Fatalf("pathways len = %d, want clamp to 6", len(snapshot.Pathways))
	}
	if len(snapshot.Pathways[0].TriggerBehaviors) != 4 {
		t.Fatalf("behaviors len = %d, want clamp to 4", len(snapshot.Pathways[0].TriggerBehaviors))
	}
	if len(snapshot.DeEscalationPathways[0].EmergingChallenges) != 2 {
		t.Fatalf("challenges len = %d, want clamp to 2", len(snapshot.DeEscalationPathways[0].EmergingChallenges))
	}
}

func TestAssessDefaultsUnknownSeverity(t *testing.T) {
	oracle := &fakeOracle{
		factors: []domain.EscalationFactor{
			{Name: "unknown severity", Severity: domain.Severity("catastrophic")},
		},
	}

	snapshot := testModeler(oracle).Assess(context.Background(), testInput())
	if snapshot.Factors[0].Severity != domain.SeverityMedium {
		t.Fatalf("severity = %q, want medium default", snapshot.Factors[0].Severity)
	}
}
