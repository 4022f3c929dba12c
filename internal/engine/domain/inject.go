package domain

import (
	"errors"
	"strings"
	"time"
)

// InjectOrigin distinguishes authored injects from oracle-generated ones.
type InjectOrigin string

const (
	// OriginScripted marks an inject authored in advance with a trigger.
	OriginScripted InjectOrigin = "scripted"
	// OriginGenerated marks an inject produced dynamically by the oracle.
	OriginGenerated InjectOrigin = "generated"
)

// InjectScope is the visibility class of an inject.
type InjectScope string

const (
	// ScopeUniversal delivers to every participant.
	ScopeUniversal InjectScope = "universal"
	// ScopeRoleSpecific delivers to the listed roles.
	ScopeRoleSpecific InjectScope = "role_specific"
	// ScopeTeamSpecific delivers to the listed teams.
	ScopeTeamSpecific InjectScope = "team_specific"
)

// Severity grades how serious an inject or risk factor is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var (
	// ErrEmptyInjectID indicates a missing inject ID.
	ErrEmptyInjectID = errors.New("inject id is required")
	// ErrInvalidInjectScope indicates an unknown scope value.
	ErrInvalidInjectScope = errors.New("inject scope is invalid")
	// ErrScopeMismatch indicates a generated inject carried a scope
	// inconsistent with its generation context.
	ErrScopeMismatch = errors.New("inject scope does not match generation context")
)

// Inject is a narrative event delivered to some or all participants.
//
// A scripted inject has a fixed identity and either a TriggerMinute or a
// TriggerCondition; it must be published at most once per session. A
// generated inject is created and published together.
type Inject struct {
	ID         string
	ScenarioID string
	// SessionID is set for generated injects; scripted injects belong to
	// the scenario and are correlated with a session only through the
	// publication log.
	SessionID   string
	Origin      InjectOrigin
	Scope       InjectScope
	TargetRoles []string
	TargetTeams []string
	Severity    Severity
	Type        string
	Title       string
	Content     string
	// RequiresResponse marks content that needs active correction or
	// operational action rather than acknowledgement.
	RequiresResponse bool
	// RequiresCoordination marks content that needs more than one team
	// to resolve.
	RequiresCoordination bool
	// TriggerMinute is the absolute minute offset from session start at
	// which a scripted inject becomes due. Nil for condition-triggered
	// and generated injects.
	TriggerMinute *int
	// TriggerCondition is the stored condition string matched against
	// decision classifications. Empty for time-triggered and generated
	// injects.
	TriggerCondition string
	// Provenance records how a generated inject came to be.
	Provenance string
	CreatedAt  time.Time
}

// Normalize trims identifying fields and validates the inject.
func (i Inject) Normalize() (Inject, error) {
	i.ID = strings.TrimSpace(i.ID)
	if i.ID == "" {
		return Inject{}, ErrEmptyInjectID
	}
	switch i.Scope {
	case ScopeUniversal, ScopeRoleSpecific, ScopeTeamSpecific:
	default:
		return Inject{}, ErrInvalidInjectScope
	}
	return i, nil
}

// TimeTriggered reports whether this is a scripted inject with a minute
// offset trigger.
func (i Inject) TimeTriggered() bool {
	return i.Origin == OriginScripted && i.TriggerMinute != nil
}

// ConditionTriggered reports whether this is a scripted inject released by
// decision classification matching.
func (i Inject) ConditionTriggered() bool {
	return i.Origin == OriginScripted && i.TriggerMinute == nil &&
		strings.TrimSpace(i.TriggerCondition) != ""
}

// PublicationRecord correlates a session with a published inject.
// Records are append-only; presence is the sole source of truth for
// "already published."
type PublicationRecord struct {
	SessionID   string
	InjectID    string
	PublishedAt time.Time
}

// CancellationRecord marks a scripted inject as permanently suppressed for
// a session. Records are append-only; a cancelled inject is never published.
type CancellationRecord struct {
	SessionID   string
	InjectID    string
	Reason      string
	CancelledAt time.Time
}
