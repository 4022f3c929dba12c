// Package generation turns recent decisions plus derived session state into
// candidate injects through the generative oracle.
package generation

import (
	"fmt"
	"strings"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/theme"
)

// Kind distinguishes the two generation call sites. The kind, not the
// oracle's proposal, dictates the published scope.
type Kind string

const (
	// KindUniversal generates one inject every participant must see.
	KindUniversal Kind = "universal"
	// KindTeam generates an inject for a single team's recent decisions.
	KindTeam Kind = "team"
)

// Context is the complete, enumerable input to one generation call.
// Every field the oracle prompt consumes appears here; there are no ad hoc
// per-call-site field bags.
type Context struct {
	Kind      Kind
	Session   domain.Session
	Narrative string
	// Team is set only for KindTeam contexts.
	Team string
	// Decisions are the window's executed decisions: all teams' for
	// KindUniversal, one team's for KindTeam.
	Decisions []domain.Decision
	// Aggregate stands in for the batch when it contains more than one
	// decision; a synthesized pseudo-decision the oracle can react to.
	Aggregate domain.Decision
	// Escalation is the latest escalation snapshot, possibly degraded.
	Escalation domain.EscalationSnapshot
	// Impact is the latest impact snapshot, possibly empty.
	Impact domain.ImpactMatrixSnapshot
	// ThemeUsage is the ledger bucket for the target scope.
	ThemeUsage map[theme.Theme]theme.Usage
	// DominantTheme is the session-wide most used theme, empty when no
	// published inject carried a theme yet.
	DominantTheme theme.Theme
	// PendingScripted lists unpublished future scripted injects the
	// generated content must not contradict.
	PendingScripted []domain.Inject
}

// Builder assembles generation contexts field by field. It exists so every
// call site constructs the same enumerable shape.
type Builder struct {
	ctx Context
}

// NewUniversalContext starts a builder for the all-participants call site.
func NewUniversalContext(session domain.Session) *Builder {
	return &Builder{ctx: Context{Kind: KindUniversal, Session: session}}
}

// NewTeamContext starts a builder for a single team's call site.
func NewTeamContext(session domain.Session, team string) *Builder {
	return &Builder{ctx: Context{Kind: KindTeam, Session: session, Team: strings.TrimSpace(team)}}
}

// WithNarrative sets the scenario's authored framing.
func (b *Builder) WithNarrative(narrative string) *Builder {
	b.ctx.Narrative = narrative
	return b
}

// WithDecisions sets the window's executed decisions and synthesizes the
// aggregate pseudo-decision the oracle reacts to.
func (b *Builder) WithDecisions(decisions []domain.Decision) *Builder {
	b.ctx.Decisions = decisions
	b.ctx.Aggregate = aggregateDecision(b.ctx, decisions)
	return b
}

// WithEscalation sets the latest escalation snapshot.
func (b *Builder) WithEscalation(snapshot domain.EscalationSnapshot) *Builder {
	b.ctx.Escalation = snapshot
	return b
}

// WithImpact sets the latest impact snapshot.
func (b *Builder) WithImpact(snapshot domain.ImpactMatrixSnapshot) *Builder {
	b.ctx.Impact = snapshot
	return b
}

// WithThemeUsage sets the ledger bucket for the target scope.
func (b *Builder) WithThemeUsage(usage map[theme.Theme]theme.Usage) *Builder {
	b.ctx.ThemeUsage = usage
	return b
}

// WithDominantTheme sets the session-wide most used theme.
func (b *Builder) WithDominantTheme(dominant theme.Theme) *Builder {
	b.ctx.DominantTheme = dominant
	return b
}

// WithPendingScripted sets the unpublished scripted injects generation must
// not contradict.
func (b *Builder) WithPendingScripted(injects []domain.Inject) *Builder {
	b.ctx.PendingScripted = injects
	return b
}

// Build returns the assembled context.
func (b *Builder) Build() Context {
	return b.ctx
}

// TargetScope reports the scope any inject generated from this context must
// carry.
func (c Context) TargetScope() domain.InjectScope {
	if c.Kind == KindTeam {
		return domain.ScopeTeamSpecific
	}
	return domain.ScopeUniversal
}

// aggregateDecision synthesizes one pseudo-decision summarizing the batch.
// With a single decision the batch is itself.
func aggregateDecision(ctx Context, decisions []domain.Decision) domain.Decision {
	if len(decisions) == 1 {
		return decisions[0]
	}

	var titles []string
	for _, decision := range decisions {
		if title := strings.TrimSpace(decision.Title); title != "" {
			titles = append(titles, title)
		}
	}
	team := ctx.Team
	if ctx.Kind == KindUniversal {
		team = ""
	}
	return domain.Decision{
		ID:          fmt.Sprintf("aggregate:%s:%d", ctx.Session.ID, len(decisions)),
		SessionID:   ctx.Session.ID,
		Title:       fmt.Sprintf("%d decisions executed", len(decisions)),
		Description: strings.Join(titles, "; "),
		Type:        "aggregate",
		Team:        team,
		Status:      domain.DecisionStatusExecuted,
	}
}
