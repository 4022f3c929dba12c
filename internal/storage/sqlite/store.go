// Package sqlite provides the SQLite-backed implementation of the engine's
// storage interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/platform/storage/sqlitemigrate"
	"github.com/crucible-sim/crucible/internal/storage"
	"github.com/crucible-sim/crucible/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed engine persistence.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens an engine SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func marshalJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(raw), nil
}

// isUniqueViolation reports whether the write hit a uniqueness constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// GetSession returns one session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, scenario_id, name, status, started_at, current_state, teams, objectives
FROM sessions WHERE id = ?`, strings.TrimSpace(sessionID))
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessionsByStatus returns sessions in the given lifecycle state.
func (s *Store) ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, scenario_id, name, status, started_at, current_state, teams, objectives
FROM sessions WHERE status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// SaveSession inserts or replaces a session row. Used by seeding and tests;
// the engine itself only reads sessions.
func (s *Store) SaveSession(ctx context.Context, session domain.Session) error {
	normalized, err := session.Normalize()
	if err != nil {
		return err
	}
	teams, err := marshalJSON(normalized.Teams)
	if err != nil {
		return err
	}
	objectives, err := marshalJSON(normalized.Objectives)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO sessions (id, scenario_id, name, status, started_at, current_state, teams, objectives)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		normalized.ID,
		normalized.ScenarioID,
		normalized.Name,
		string(normalized.Status),
		toNullMillis(normalized.StartedAt),
		normalized.CurrentState,
		teams,
		objectives,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		session    domain.Session
		status     string
		startedAt  sql.NullInt64
		teams      string
		objectives string
	)
	if err := row.Scan(
		&session.ID,
		&session.ScenarioID,
		&session.Name,
		&status,
		&startedAt,
		&session.CurrentState,
		&teams,
		&objectives,
	); err != nil {
		return domain.Session{}, err
	}
	session.Status = domain.SessionStatus(status)
	session.StartedAt = fromNullMillis(startedAt)
	if err := json.Unmarshal([]byte(teams), &session.Teams); err != nil {
		return domain.Session{}, fmt.Errorf("decode session teams: %w", err)
	}
	if err := json.Unmarshal([]byte(objectives), &session.Objectives); err != nil {
		return domain.Session{}, fmt.Errorf("decode session objectives: %w", err)
	}
	return session, nil
}

// GetDecision returns one decision by ID.
func (s *Store) GetDecision(ctx context.Context, decisionID string) (domain.Decision, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, session_id, title, description, type, proposed_by, team, status, executed_at, classification
FROM decisions WHERE id = ?`, strings.TrimSpace(decisionID))
	decision, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return domain.Decision{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Decision{}, fmt.Errorf("get decision: %w", err)
	}
	return decision, nil
}

// ListExecutedDecisionsSince returns the session's decisions executed at or
// after the cutoff, oldest first.
func (s *Store) ListExecutedDecisionsSince(ctx context.Context, sessionID string, cutoff time.Time) ([]domain.Decision, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, title, description, type, proposed_by, team, status, executed_at, classification
FROM decisions
WHERE session_id = ? AND status = ? AND executed_at IS NOT NULL AND executed_at >= ?
ORDER BY executed_at ASC`,
		strings.TrimSpace(sessionID),
		string(domain.DecisionStatusExecuted),
		toMillis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list executed decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, decision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

// SaveDecision inserts or replaces a decision row. Used by seeding and tests.
func (s *Store) SaveDecision(ctx context.Context, decision domain.Decision) error {
	normalized, err := decision.Normalize()
	if err != nil {
		return err
	}
	var classification sql.NullString
	if normalized.Classification != nil {
		raw, err := marshalJSON(normalized.Classification)
		if err != nil {
			return err
		}
		classification = sql.NullString{String: raw, Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO decisions (id, session_id, title, description, type, proposed_by, team, status, executed_at, classification)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalized.ID,
		normalized.SessionID,
		normalized.Title,
		normalized.Description,
		normalized.Type,
		normalized.ProposedBy,
		normalized.Team,
		string(normalized.Status),
		toNullMillis(normalized.ExecutedAt),
		classification,
	)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// SaveClassification persists the oracle's classification of a decision.
func (s *Store) SaveClassification(ctx context.Context, decisionID string, classification domain.Classification) error {
	raw, err := marshalJSON(classification)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE decisions SET classification = ? WHERE id = ?`,
		raw, strings.TrimSpace(decisionID))
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save classification rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanDecision(row rowScanner) (domain.Decision, error) {
	var (
		decision       domain.Decision
		status         string
		executedAt     sql.NullInt64
		classification sql.NullString
	)
	if err := row.Scan(
		&decision.ID,
		&decision.SessionID,
		&decision.Title,
		&decision.Description,
		&decision.Type,
		&decision.ProposedBy,
		&decision.Team,
		&status,
		&executedAt,
		&classification,
	); err != nil {
		return domain.Decision{}, err
	}
	decision.Status = domain.DecisionStatus(status)
	decision.ExecutedAt = fromNullMillis(executedAt)
	if classification.Valid {
		var parsed domain.Classification
		if err := json.Unmarshal([]byte(classification.String), &parsed); err != nil {
			return domain.Decision{}, fmt.Errorf("decode classification: %w", err)
		}
		decision.Classification = &parsed
	}
	return decision, nil
}

// SaveInject inserts the inject if its identity is new and otherwise leaves
// the stored row untouched.
func (s *Store) SaveInject(ctx context.Context, inject domain.Inject) error {
	normalized, err := inject.Normalize()
	if err != nil {
		return err
	}
	roles, err := marshalJSON(normalized.TargetRoles)
	if err != nil {
		return err
	}
	teams, err := marshalJSON(normalized.TargetTeams)
	if err != nil {
		return err
	}
	var triggerMinute sql.NullInt64
	if normalized.TriggerMinute != nil {
		triggerMinute = sql.NullInt64{Int64: int64(*normalized.TriggerMinute), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO injects (
	id, scenario_id, session_id, origin, scope, target_roles, target_teams,
	severity, type, title, content, requires_response, requires_coordination,
	trigger_minute, trigger_condition, provenance, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalized.ID,
		normalized.ScenarioID,
		normalized.SessionID,
		string(normalized.Origin),
		string(normalized.Scope),
		roles,
		teams,
		string(normalized.Severity),
		normalized.Type,
		normalized.Title,
		normalized.Content,
		boolToInt(normalized.RequiresResponse),
		boolToInt(normalized.RequiresCoordination),
		triggerMinute,
		normalized.TriggerCondition,
		normalized.Provenance,
		toMillis(normalized.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save inject: %w", err)
	}
	return nil
}

// ListScriptedInjects returns all scripted injects for a scenario.
func (s *Store) ListScriptedInjects(ctx context.Context, scenarioID string) ([]domain.Inject, error) {
	rows, err := s.sqlDB.QueryContext(ctx, injectSelect+`
WHERE scenario_id = ? AND origin = ?
ORDER BY created_at ASC, id ASC`,
		strings.TrimSpace(scenarioID),
		string(domain.OriginScripted),
	)
	if err != nil {
		return nil, fmt.Errorf("list scripted injects: %w", err)
	}
	return collectInjects(rows)
}

// ListPublishedInjects returns the injects already published to a session,
// oldest first.
func (s *Store) ListPublishedInjects(ctx context.Context, sessionID string) ([]domain.Inject, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT i.id, i.scenario_id, i.session_id, i.origin, i.scope, i.target_roles, i.target_teams,
	i.severity, i.type, i.title, i.content, i.requires_response, i.requires_coordination,
	i.trigger_minute, i.trigger_condition, i.provenance, i.created_at
FROM injects i
JOIN inject_publications p ON p.inject_id = i.id
WHERE p.session_id = ?
ORDER BY p.published_at ASC, i.id ASC`,
		strings.TrimSpace(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list published injects: %w", err)
	}
	return collectInjects(rows)
}

// ListPublishedInjectsSince returns the session's injects published at or
// after the cutoff, oldest first.
func (s *Store) ListPublishedInjectsSince(ctx context.Context, sessionID string, cutoff time.Time) ([]domain.Inject, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT i.id, i.scenario_id, i.session_id, i.origin, i.scope, i.target_roles, i.target_teams,
	i.severity, i.type, i.title, i.content, i.requires_response, i.requires_coordination,
	i.trigger_minute, i.trigger_condition, i.provenance, i.created_at
FROM injects i
JOIN inject_publications p ON p.inject_id = i.id
WHERE p.session_id = ? AND p.published_at >= ?
ORDER BY p.published_at ASC, i.id ASC`,
		strings.TrimSpace(sessionID),
		toMillis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list published injects since: %w", err)
	}
	return collectInjects(rows)
}

const injectSelect = `
SELECT id, scenario_id, session_id, origin, scope, target_roles, target_teams,
	severity, type, title, content, requires_response, requires_coordination,
	trigger_minute, trigger_condition, provenance, created_at
FROM injects`

func collectInjects(rows *sql.Rows) ([]domain.Inject, error) {
	defer rows.Close()
	var injects []domain.Inject
	for rows.Next() {
		inject, err := scanInject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inject: %w", err)
		}
		injects = append(injects, inject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate injects: %w", err)
	}
	return injects, nil
}

func scanInject(row rowScanner) (domain.Inject, error) {
	var (
		inject        domain.Inject
		origin        string
		scope         string
		roles         string
		teams         string
		severity      string
		reqResponse   int
		reqCoord      int
		triggerMinute sql.NullInt64
		createdAt     int64
	)
	if err := row.Scan(
		&inject.ID,
		&inject.ScenarioID,
		&inject.SessionID,
		&origin,
		&scope,
		&roles,
		&teams,
		&severity,
		&inject.Type,
		&inject.Title,
		&inject.Content,
		&reqResponse,
		&reqCoord,
		&triggerMinute,
		&inject.TriggerCondition,
		&inject.Provenance,
		&createdAt,
	); err != nil {
		return domain.Inject{}, err
	}
	inject.Origin = domain.InjectOrigin(origin)
	inject.Scope = domain.InjectScope(scope)
	inject.Severity = domain.Severity(severity)
	inject.RequiresResponse = reqResponse != 0
	inject.RequiresCoordination = reqCoord != 0
	inject.CreatedAt = fromMillis(createdAt)
	if triggerMinute.Valid {
		minute := int(triggerMinute.Int64)
		inject.TriggerMinute = &minute
	}
	if err := json.Unmarshal([]byte(roles), &inject.TargetRoles); err != nil {
		return domain.Inject{}, fmt.Errorf("decode target roles: %w", err)
	}
	if err := json.Unmarshal([]byte(teams), &inject.TargetTeams); err != nil {
		return domain.Inject{}, fmt.Errorf("decode target teams: %w", err)
	}
	return inject, nil
}

// AppendPublication records one delivery. The composite primary key turns a
// lost check-then-publish race into ErrAlreadyPublished.
func (s *Store) AppendPublication(ctx context.Context, record domain.PublicationRecord) error {
	if strings.TrimSpace(record.SessionID) == "" {
		return domain.ErrEmptySessionID
	}
	if strings.TrimSpace(record.InjectID) == "" {
		return domain.ErrEmptyInjectID
	}
	if record.PublishedAt.IsZero() {
		record.PublishedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO inject_publications (session_id, inject_id, published_at)
VALUES (?, ?, ?)`,
		strings.TrimSpace(record.SessionID),
		strings.TrimSpace(record.InjectID),
		toMillis(record.PublishedAt),
	)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyPublished
	}
	if err != nil {
		return fmt.Errorf("append publication: %w", err)
	}
	return nil
}

// AppendCancellation permanently suppresses a scripted inject for a session.
func (s *Store) AppendCancellation(ctx context.Context, record domain.CancellationRecord) error {
	if strings.TrimSpace(record.SessionID) == "" {
		return domain.ErrEmptySessionID
	}
	if strings.TrimSpace(record.InjectID) == "" {
		return domain.ErrEmptyInjectID
	}
	if record.CancelledAt.IsZero() {
		record.CancelledAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO inject_cancellations (session_id, inject_id, reason, cancelled_at)
VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(record.SessionID),
		strings.TrimSpace(record.InjectID),
		strings.TrimSpace(record.Reason),
		toMillis(record.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("append cancellation: %w", err)
	}
	return nil
}

// PublishedInjectIDs returns the set of inject IDs already published to the
// session.
func (s *Store) PublishedInjectIDs(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	return s.injectIDSet(ctx, `SELECT inject_id FROM inject_publications WHERE session_id = ?`, sessionID)
}

// CancelledInjectIDs returns the set of inject IDs suppressed for the
// session.
func (s *Store) CancelledInjectIDs(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	return s.injectIDSet(ctx, `SELECT inject_id FROM inject_cancellations WHERE session_id = ?`, sessionID)
}

func (s *Store) injectIDSet(ctx context.Context, query, sessionID string) (map[string]struct{}, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, fmt.Errorf("query inject ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var injectID string
		if err := rows.Scan(&injectID); err != nil {
			return nil, fmt.Errorf("scan inject id: %w", err)
		}
		ids[injectID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inject ids: %w", err)
	}
	return ids, nil
}

type escalationPayload struct {
	Factors              []domain.EscalationFactor    `json:"factors"`
	DeEscalationFactors  []domain.DeEscalationFactor  `json:"de_escalation_factors"`
	Pathways             []domain.EscalationPathway   `json:"pathways"`
	DeEscalationPathways []domain.DeEscalationPathway `json:"de_escalation_pathways"`
}

// SaveEscalationSnapshot appends one cycle's escalation artifacts.
func (s *Store) SaveEscalationSnapshot(ctx context.Context, snapshot domain.EscalationSnapshot) error {
	if strings.TrimSpace(snapshot.SessionID) == "" {
		return domain.ErrEmptySessionID
	}
	payload, err := marshalJSON(escalationPayload{
		Factors:              snapshot.Factors,
		DeEscalationFactors:  snapshot.DeEscalationFactors,
		Pathways:             snapshot.Pathways,
		DeEscalationPathways: snapshot.DeEscalationPathways,
	})
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO escalation_snapshots (session_id, taken_at, payload) VALUES (?, ?, ?)`,
		strings.TrimSpace(snapshot.SessionID),
		toMillis(snapshot.TakenAt),
		payload,
	)
	if err != nil {
		return fmt.Errorf("save escalation snapshot: %w", err)
	}
	return nil
}

// LatestEscalationSnapshot returns the most recent snapshot for a session.
func (s *Store) LatestEscalationSnapshot(ctx context.Context, sessionID string) (domain.EscalationSnapshot, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, taken_at, payload FROM escalation_snapshots
WHERE session_id = ? ORDER BY taken_at DESC, id DESC LIMIT 1`,
		strings.TrimSpace(sessionID))

	var (
		snapshot domain.EscalationSnapshot
		takenAt  int64
		payload  string
	)
	err := row.Scan(&snapshot.SessionID, &takenAt, &payload)
	if err == sql.ErrNoRows {
		return domain.EscalationSnapshot{}, false, nil
	}
	if err != nil {
		return domain.EscalationSnapshot{}, false, fmt.Errorf("latest escalation snapshot: %w", err)
	}
	var parsed escalationPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return domain.EscalationSnapshot{}, false, fmt.Errorf("decode escalation snapshot: %w", err)
	}
	snapshot.TakenAt = fromMillis(takenAt)
	snapshot.Factors = parsed.Factors
	snapshot.DeEscalationFactors = parsed.DeEscalationFactors
	snapshot.Pathways = parsed.Pathways
	snapshot.DeEscalationPathways = parsed.DeEscalationPathways
	return snapshot, true, nil
}

type impactPayload struct {
	Scores     map[string]map[string]int      `json:"scores"`
	Robustness map[string]int                 `json:"robustness"`
	Analysis   string                         `json:"analysis"`
	Taxonomy   map[string]domain.ResponseKind `json:"taxonomy"`
}

// SaveImpactSnapshot appends one cycle's impact matrix.
func (s *Store) SaveImpactSnapshot(ctx context.Context, snapshot domain.ImpactMatrixSnapshot) error {
	if strings.TrimSpace(snapshot.SessionID) == "" {
		return domain.ErrEmptySessionID
	}
	payload, err := marshalJSON(impactPayload{
		Scores:     snapshot.Scores,
		Robustness: snapshot.Robustness,
		Analysis:   snapshot.Analysis,
		Taxonomy:   snapshot.Taxonomy,
	})
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO impact_snapshots (session_id, taken_at, payload) VALUES (?, ?, ?)`,
		strings.TrimSpace(snapshot.SessionID),
		toMillis(snapshot.TakenAt),
		payload,
	)
	if err != nil {
		return fmt.Errorf("save impact snapshot: %w", err)
	}
	return nil
}

// LatestImpactSnapshot returns the most recent impact snapshot for a session.
func (s *Store) LatestImpactSnapshot(ctx context.Context, sessionID string) (domain.ImpactMatrixSnapshot, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, taken_at, payload FROM impact_snapshots
WHERE session_id = ? ORDER BY taken_at DESC, id DESC LIMIT 1`,
		strings.TrimSpace(sessionID))

	var (
		snapshot domain.ImpactMatrixSnapshot
		takenAt  int64
		payload  string
	)
	err := row.Scan(&snapshot.SessionID, &takenAt, &payload)
	if err == sql.ErrNoRows {
		return domain.ImpactMatrixSnapshot{}, false, nil
	}
	if err != nil {
		return domain.ImpactMatrixSnapshot{}, false, fmt.Errorf("latest impact snapshot: %w", err)
	}
	var parsed impactPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return domain.ImpactMatrixSnapshot{}, false, fmt.Errorf("decode impact snapshot: %w", err)
	}
	snapshot.TakenAt = fromMillis(takenAt)
	snapshot.Scores = parsed.Scores
	snapshot.Robustness = parsed.Robustness
	snapshot.Analysis = parsed.Analysis
	snapshot.Taxonomy = parsed.Taxonomy
	return snapshot, true, nil
}

// CountImpactSnapshots reports how many impact snapshots a session has.
// The impact read endpoint serves it so the per-cycle series can be checked
// for gaps.
func (s *Store) CountImpactSnapshots(ctx context.Context, sessionID string) (int, error) {
	var count int
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM impact_snapshots WHERE session_id = ?`,
		strings.TrimSpace(sessionID))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count impact snapshots: %w", err)
	}
	return count, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
