package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/platform/id"
)

// Draft is the oracle's candidate inject before the engine enforces scope
// and identity.
type Draft struct {
	Type                 string
	Title                string
	Content              string
	Severity             domain.Severity
	Scope                domain.InjectScope
	AffectedRoles        []string
	AffectedTeams        []string
	RequiresResponse     bool
	RequiresCoordination bool
	Rationale            string
}

// Oracle names the generative capability the generator consumes. A nil
// draft with a nil error means "no inject warranted" and is a normal,
// expected outcome.
type Oracle interface {
	DraftInject(ctx context.Context, genCtx Context) (*Draft, error)
}

// Generator produces publishable injects from generation contexts.
type Generator struct {
	oracle      Oracle
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewGenerator creates a Generator with default clock and ID generation.
func NewGenerator(oracle Oracle) *Generator {
	return &Generator{
		oracle:      oracle,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Generate asks the oracle for a candidate inject. The returned inject is
// nil when the oracle declines or fails; only the caller's context kind
// determines the final scope, never the draft's own proposal. Team-scoped
// generation always yields exactly one target team.
func (g *Generator) Generate(ctx context.Context, genCtx Context) (*domain.Inject, error) {
	if genCtx.Kind == KindTeam && strings.TrimSpace(genCtx.Team) == "" {
		return nil, fmt.Errorf("team-scoped generation requires a team")
	}

	draft, err := g.oracle.DraftInject(ctx, genCtx)
	if err != nil {
		return nil, fmt.Errorf("draft inject: %w", err)
	}
	if draft == nil {
		return nil, nil
	}
	if strings.TrimSpace(draft.Title) == "" && strings.TrimSpace(draft.Content) == "" {
		return nil, nil
	}

	injectID, err := g.idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate inject id: %w", err)
	}

	inject := domain.Inject{
		ID:                   injectID,
		ScenarioID:           genCtx.Session.ScenarioID,
		SessionID:            genCtx.Session.ID,
		Origin:               domain.OriginGenerated,
		Scope:                genCtx.TargetScope(),
		Severity:             draft.Severity,
		Type:                 draft.Type,
		Title:                strings.TrimSpace(draft.Title),
		Content:              strings.TrimSpace(draft.Content),
		RequiresResponse:     draft.RequiresResponse,
		RequiresCoordination: draft.RequiresCoordination,
		Provenance:           provenance(genCtx, draft),
		CreatedAt:            g.clock().UTC(),
	}

	switch genCtx.Kind {
	case KindTeam:
		inject.TargetTeams = []string{genCtx.Team}
	default:
		// Universal injects carry no targeting; role suggestions from the
		// draft are preserved as advisory routing only.
		inject.TargetRoles = cleanStrings(draft.AffectedRoles)
	}

	switch inject.Severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
	default:
		inject.Severity = domain.SeverityMedium
	}
	if strings.TrimSpace(inject.Type) == "" {
		inject.Type = "development"
	}

	return &inject, nil
}

func provenance(genCtx Context, draft *Draft) string {
	base := fmt.Sprintf("generated:%s", genCtx.Kind)
	if genCtx.Kind == KindTeam {
		base = fmt.Sprintf("%s:%s", base, genCtx.Team)
	}
	if rationale := strings.TrimSpace(draft.Rationale); rationale != "" {
		base = base + " " + rationale
	}
	return base
}

func cleanStrings(values []string) []string {
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
