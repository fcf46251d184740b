/*
Package sqlite provides a SQLite-backed implementation of crm.Store.

PURPOSE:
  Implements every persistence interface the engine defines (actors,
  levels, weekly targets, tier rules, achievements, meetings, commission
  rows, month closures) plus the two procedure-style operations: the
  server-side salesperson selection and the cascading sale deletion.

KEY TABLES:
  actors:           Team members with working-hours columns
  levels:           Pay and target reference data
  weekly_targets:   Keyed (actor, year, week); upsert supersedes
  tier_rules:       Percentage ranges per actor kind
  achievements:     Sale records with effective-date columns
  meetings:         Appointments driving assignment and conversion stats
  commission_rows:  Keyed (actor, year, week); computed payout fields
  month_closures:   Snapshot JSON columns, keyed (year, month)

SELECTION PROCEDURE:
  SelectSalesperson mirrors the pure scheduling.Pick algorithm but sources
  its facts (active-meeting counts, conversion stats, conflicts, working
  hours) from SQL. The API layer runs both and compares; any divergence
  is a correctness bug, surfaced via scheduling.Compare.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single-writer
  model. SQLite is opened with WAL so readers don't block.

DECIMALS & TIMES:
  Decimal values are stored as TEXT to keep exact precision; times as
  RFC3339Nano TEXT in UTC.

SEE ALSO:
  - crm/store.go: Interface definitions
  - store/memory: In-memory implementation used by tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/scheduling"
)

// Store implements crm.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ crm.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		kind TEXT NOT NULL,
		level TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		work_start_hour INTEGER NOT NULL DEFAULT 0,
		work_end_hour INTEGER NOT NULL DEFAULT 0,
		weekdays TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actors_kind ON actors(kind);
	CREATE INDEX IF NOT EXISTS idx_actors_active ON actors(active);

	CREATE TABLE IF NOT EXISTS levels (
		name TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		weekly_target_quantity INTEGER NOT NULL,
		weekly_variable_pay TEXT NOT NULL,
		monthly_base_pay TEXT NOT NULL,
		advance_pay TEXT NOT NULL
	);

	-- Weekly targets: keyed rows, upsert supersedes, never hard-deleted
	CREATE TABLE IF NOT EXISTS weekly_targets (
		actor_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		week INTEGER NOT NULL,
		target_quantity INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		updated_by TEXT,
		PRIMARY KEY (actor_id, year, week)
	);

	CREATE TABLE IF NOT EXISTS tier_rules (
		kind TEXT NOT NULL,
		percent_min INTEGER NOT NULL,
		percent_max INTEGER NOT NULL,
		multiplier TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tier_rules_kind ON tier_rules(kind);

	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		quantity INTEGER NOT NULL,
		contract_signed_at TEXT,
		approved_at TEXT,
		submitted_at TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		customer_name TEXT,
		customer_email TEXT,
		customer_phone TEXT,
		created_at TEXT NOT NULL
	);

	-- effective_at is derived (contract -> approval -> submission) and
	-- denormalized for the range-filter hot path
	CREATE INDEX IF NOT EXISTS idx_achievements_actor_effective
		ON achievements(actor_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_achievements_status ON achievements(status);

	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		converted BOOLEAN NOT NULL DEFAULT FALSE,
		achievement_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_actor_status ON meetings(actor_id, status);
	CREATE INDEX IF NOT EXISTS idx_meetings_window ON meetings(actor_id, start_at, end_at);

	CREATE TABLE IF NOT EXISTS commission_rows (
		actor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		year INTEGER NOT NULL,
		week INTEGER NOT NULL,
		points INTEGER NOT NULL,
		target INTEGER NOT NULL,
		percent INTEGER NOT NULL,
		multiplier TEXT NOT NULL,
		variable_pay TEXT NOT NULL,
		payout TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (actor_id, year, week)
	);

	CREATE TABLE IF NOT EXISTS month_closures (
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		targets_json TEXT,
		tier_rules_json TEXT,
		levels_json TEXT,
		membership_json TEXT,
		closed_at TEXT,
		closed_by TEXT,
		PRIMARY KEY (year, month)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TIME / DECIMAL HELPERS
// =============================================================================

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fmtWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", int(d))
	}
	return strings.Join(parts, ",")
}

func parseWeekdays(s sql.NullString) []time.Weekday {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []time.Weekday
	for _, p := range strings.Split(s.String, ",") {
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err == nil {
			out = append(out, time.Weekday(n))
		}
	}
	return out
}

// =============================================================================
// ACTORS & LEVELS
// =============================================================================

func (s *Store) SaveActor(ctx context.Context, a crm.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (id, name, email, phone, kind, level, active, work_start_hour, work_end_hour, weekdays, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, email=excluded.email, phone=excluded.phone,
			kind=excluded.kind, level=excluded.level, active=excluded.active,
			work_start_hour=excluded.work_start_hour, work_end_hour=excluded.work_end_hour,
			weekdays=excluded.weekdays`,
		string(a.ID), a.Name, a.Email, a.Phone, string(a.Kind), a.Level, a.Active,
		a.WorkStartHour, a.WorkEndHour, fmtWeekdays(a.Weekdays), fmtTime(a.CreatedAt))
	return err
}

const actorColumns = `id, name, email, phone, kind, level, active, work_start_hour, work_end_hour, weekdays, created_at`

func scanActor(row interface{ Scan(...any) error }) (crm.Actor, error) {
	var a crm.Actor
	var id, kind, createdAt string
	var email, phone, level, weekdays sql.NullString
	err := row.Scan(&id, &a.Name, &email, &phone, &kind, &level, &a.Active,
		&a.WorkStartHour, &a.WorkEndHour, &weekdays, &createdAt)
	if err != nil {
		return crm.Actor{}, err
	}
	a.ID = crm.ActorID(id)
	a.Kind = crm.ActorKind(kind)
	a.Email = email.String
	a.Phone = phone.String
	a.Level = level.String
	a.Weekdays = parseWeekdays(weekdays)
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func (s *Store) GetActor(ctx context.Context, id crm.ActorID) (*crm.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = ?`, string(id))
	a, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListActors(ctx context.Context) ([]crm.Actor, error) {
	return s.listActorsWhere(ctx, ``)
}

func (s *Store) ListActiveActors(ctx context.Context) ([]crm.Actor, error) {
	return s.listActorsWhere(ctx, `WHERE active = TRUE`)
}

func (s *Store) listActorsWhere(ctx context.Context, where string) ([]crm.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+actorColumns+` FROM actors `+where+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SaveLevel(ctx context.Context, l crm.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO levels (name, kind, weekly_target_quantity, weekly_variable_pay, monthly_base_pay, advance_pay)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind=excluded.kind, weekly_target_quantity=excluded.weekly_target_quantity,
			weekly_variable_pay=excluded.weekly_variable_pay,
			monthly_base_pay=excluded.monthly_base_pay, advance_pay=excluded.advance_pay`,
		l.Name, string(l.Kind), l.WeeklyTargetQuantity,
		l.WeeklyVariablePay.String(), l.MonthlyBasePay.String(), l.AdvancePay.String())
	return err
}

func scanLevel(row interface{ Scan(...any) error }) (crm.Level, error) {
	var l crm.Level
	var kind, variablePay, basePay, advancePay string
	if err := row.Scan(&l.Name, &kind, &l.WeeklyTargetQuantity, &variablePay, &basePay, &advancePay); err != nil {
		return crm.Level{}, err
	}
	l.Kind = crm.ActorKind(kind)
	l.WeeklyVariablePay = parseDecimal(variablePay)
	l.MonthlyBasePay = parseDecimal(basePay)
	l.AdvancePay = parseDecimal(advancePay)
	return l, nil
}

func (s *Store) GetLevel(ctx context.Context, name string) (*crm.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT name, kind, weekly_target_quantity, weekly_variable_pay, monthly_base_pay, advance_pay
		FROM levels WHERE name = ?`, name)
	l, err := scanLevel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListLevels(ctx context.Context) ([]crm.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, weekly_target_quantity, weekly_variable_pay, monthly_base_pay, advance_pay
		FROM levels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// WEEKLY TARGETS
// =============================================================================

func (s *Store) UpsertTarget(ctx context.Context, t crm.WeeklyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_targets (actor_id, year, week, target_quantity, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id, year, week) DO UPDATE SET
			target_quantity=excluded.target_quantity,
			updated_at=excluded.updated_at, updated_by=excluded.updated_by`,
		string(t.ActorID), t.Year, t.Week, t.TargetQuantity, fmtTime(t.UpdatedAt), t.UpdatedBy)
	return err
}

func scanTarget(row interface{ Scan(...any) error }) (crm.WeeklyTarget, error) {
	var t crm.WeeklyTarget
	var actorID, updatedAt string
	var updatedBy sql.NullString
	if err := row.Scan(&actorID, &t.Year, &t.Week, &t.TargetQuantity, &updatedAt, &updatedBy); err != nil {
		return crm.WeeklyTarget{}, err
	}
	t.ActorID = crm.ActorID(actorID)
	t.UpdatedAt = parseTime(updatedAt)
	t.UpdatedBy = updatedBy.String
	return t, nil
}

func (s *Store) GetTarget(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.WeeklyTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT actor_id, year, week, target_quantity, updated_at, updated_by
		FROM weekly_targets WHERE actor_id = ? AND year = ? AND week = ?`,
		string(actorID), year, week)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTargets(ctx context.Context, actorID crm.ActorID, year int) ([]crm.WeeklyTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor_id, year, week, target_quantity, updated_at, updated_by
		FROM weekly_targets WHERE actor_id = ? AND year = ? ORDER BY week`,
		string(actorID), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.WeeklyTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// TIER RULES
// =============================================================================

// ReplaceRules swaps the whole tier table for a kind in one transaction;
// a partially applied table is never observable.
func (s *Store) ReplaceRules(ctx context.Context, kind crm.ActorKind, rules []crm.TierRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tier_rules WHERE kind = ?`, string(kind)); err != nil {
		return err
	}
	for _, r := range rules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tier_rules (kind, percent_min, percent_max, multiplier)
			VALUES (?, ?, ?, ?)`,
			string(kind), r.PercentMin, r.PercentMax, r.Multiplier.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListRules(ctx context.Context, kind crm.ActorKind) ([]crm.TierRule, error) {
	return s.listRules(ctx, `WHERE kind = ?`, string(kind))
}

func (s *Store) ListAllRules(ctx context.Context) ([]crm.TierRule, error) {
	return s.listRules(ctx, ``)
}

func (s *Store) listRules(ctx context.Context, where string, args ...any) ([]crm.TierRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, percent_min, percent_max, multiplier
		FROM tier_rules `+where+` ORDER BY kind, percent_min`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.TierRule
	for rows.Next() {
		var r crm.TierRule
		var kind, multiplier string
		if err := rows.Scan(&kind, &r.PercentMin, &r.PercentMax, &multiplier); err != nil {
			return nil, err
		}
		r.Kind = crm.ActorKind(kind)
		r.Multiplier = parseDecimal(multiplier)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func (s *Store) SaveAchievement(ctx context.Context, a crm.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (id, actor_id, kind, status, quantity,
			contract_signed_at, approved_at, submitted_at, effective_at,
			customer_name, customer_email, customer_phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, quantity=excluded.quantity,
			contract_signed_at=excluded.contract_signed_at,
			approved_at=excluded.approved_at, effective_at=excluded.effective_at,
			customer_name=excluded.customer_name, customer_email=excluded.customer_email,
			customer_phone=excluded.customer_phone`,
		a.ID, string(a.ActorID), string(a.Kind), string(a.Status), a.Quantity,
		fmtTimePtr(a.ContractSignedAt), fmtTimePtr(a.ApprovedAt), fmtTime(a.SubmittedAt),
		fmtTime(a.EffectiveDate()), a.CustomerName, a.CustomerEmail, a.CustomerPhone,
		fmtTime(a.CreatedAt))
	return err
}

const achievementColumns = `id, actor_id, kind, status, quantity,
	contract_signed_at, approved_at, submitted_at,
	customer_name, customer_email, customer_phone, created_at`

func scanAchievement(row interface{ Scan(...any) error }) (crm.Achievement, error) {
	var a crm.Achievement
	var actorID, kind, status, submittedAt, createdAt string
	var contractAt, approvedAt, name, email, phone sql.NullString
	err := row.Scan(&a.ID, &actorID, &kind, &status, &a.Quantity,
		&contractAt, &approvedAt, &submittedAt, &name, &email, &phone, &createdAt)
	if err != nil {
		return crm.Achievement{}, err
	}
	a.ActorID = crm.ActorID(actorID)
	a.Kind = crm.ActorKind(kind)
	a.Status = crm.AchievementStatus(status)
	a.ContractSignedAt = parseTimePtr(contractAt)
	a.ApprovedAt = parseTimePtr(approvedAt)
	a.SubmittedAt = parseTime(submittedAt)
	a.CustomerName = name.String
	a.CustomerEmail = email.String
	a.CustomerPhone = phone.String
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func (s *Store) GetAchievement(ctx context.Context, id string) (*crm.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = ?`, id)
	a, err := scanAchievement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAchievementsInRange(ctx context.Context, actorID crm.ActorID, from, to time.Time) ([]crm.Achievement, error) {
	return s.listAchievements(ctx, `WHERE actor_id = ? AND effective_at >= ? AND effective_at <= ? ORDER BY effective_at`,
		string(actorID), fmtTime(from), fmtTime(to))
}

func (s *Store) ListAchievements(ctx context.Context, actorID crm.ActorID) ([]crm.Achievement, error) {
	return s.listAchievements(ctx, `WHERE actor_id = ? ORDER BY effective_at`, string(actorID))
}

func (s *Store) listAchievements(ctx context.Context, where string, args ...any) ([]crm.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+achievementColumns+` FROM achievements `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAchievementStatus(ctx context.Context, id string, status crm.AchievementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT status FROM achievements WHERE id = ?`, id)
	var current string
	if err := row.Scan(&current); err == sql.ErrNoRows {
		return crm.ErrAchievementNotFound
	} else if err != nil {
		return err
	}

	probe := crm.Achievement{ID: id, Status: crm.AchievementStatus(current)}
	if !probe.CanTransition(status) {
		return &crm.TransitionError{AchievementID: id, From: probe.Status, To: status}
	}

	_, err := s.db.ExecContext(ctx, `UPDATE achievements SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// DeleteAchievementCascade removes the record and its dependent commission
// row in one transaction. Callers must post-condition check that the
// record is actually gone; a surviving record after reported success is a
// consistency bug they surface, not one we hide here.
func (s *Store) DeleteAchievementCascade(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT actor_id, effective_at FROM achievements WHERE id = ?`, id)
	var actorID, effectiveAt string
	if err := row.Scan(&actorID, &effectiveAt); err == sql.ErrNoRows {
		return false, crm.ErrAchievementNotFound
	} else if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM achievements WHERE id = ?`, id); err != nil {
		return false, err
	}

	// Drop the dependent commission row for the affected week; the recalc
	// job rebuilds it from the surviving records.
	year, week := calendar.YearWeek(parseTime(effectiveAt))
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM commission_rows WHERE actor_id = ? AND year = ? AND week = ?`,
		actorID, year, week); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// MEETINGS
// =============================================================================

func (s *Store) SaveMeeting(ctx context.Context, m crm.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, actor_id, start_at, end_at, status, converted, achievement_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			actor_id=excluded.actor_id, start_at=excluded.start_at, end_at=excluded.end_at,
			status=excluded.status, converted=excluded.converted,
			achievement_id=excluded.achievement_id`,
		m.ID, string(m.ActorID), fmtTime(m.Start), fmtTime(m.End),
		string(m.Status), m.Converted, m.AchievementID, fmtTime(m.CreatedAt))
	return err
}

const meetingColumns = `id, actor_id, start_at, end_at, status, converted, achievement_id, created_at`

func scanMeeting(row interface{ Scan(...any) error }) (crm.Meeting, error) {
	var m crm.Meeting
	var actorID, startAt, endAt, status, createdAt string
	var achievementID sql.NullString
	err := row.Scan(&m.ID, &actorID, &startAt, &endAt, &status, &m.Converted, &achievementID, &createdAt)
	if err != nil {
		return crm.Meeting{}, err
	}
	m.ActorID = crm.ActorID(actorID)
	m.Start = parseTime(startAt)
	m.End = parseTime(endAt)
	m.Status = crm.MeetingStatus(status)
	m.AchievementID = achievementID.String
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

func (s *Store) GetMeeting(ctx context.Context, id string) (*crm.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMeetingsByActor(ctx context.Context, actorID crm.ActorID) ([]crm.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE actor_id = ? ORDER BY start_at`, string(actorID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) UpdateMeetingStatus(ctx context.Context, id string, status crm.MeetingStatus, converted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ?, converted = ? WHERE id = ?`, string(status), converted, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm.ErrMeetingNotFound
	}
	return nil
}

func (s *Store) CountActiveMeetings(ctx context.Context, actorIDs []crm.ActorID) (map[crm.ActorID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[crm.ActorID]int, len(actorIDs))
	for _, id := range actorIDs {
		counts[id] = 0
	}
	if len(actorIDs) == 0 {
		return counts, nil
	}

	query, args := inClause(`
		SELECT actor_id, COUNT(*) FROM meetings
		WHERE status = 'scheduled' AND actor_id IN (%s)
		GROUP BY actor_id`, actorIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[crm.ActorID(id)] = n
	}
	return counts, rows.Err()
}

func (s *Store) HasConflict(ctx context.Context, actorID crm.ActorID, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM meetings
			WHERE actor_id = ? AND status = 'scheduled'
			AND start_at < ? AND ? < end_at
		)`, string(actorID), fmtTime(end), fmtTime(start))
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ConversionStats(ctx context.Context, actorIDs []crm.ActorID) (map[crm.ActorID][2]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[crm.ActorID][2]int, len(actorIDs))
	for _, id := range actorIDs {
		stats[id] = [2]int{}
	}
	if len(actorIDs) == 0 {
		return stats, nil
	}

	query, args := inClause(`
		SELECT actor_id,
			SUM(CASE WHEN converted THEN 1 ELSE 0 END),
			COUNT(*)
		FROM meetings
		WHERE status = 'completed' AND actor_id IN (%s)
		GROUP BY actor_id`, actorIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var converted, attended int
		if err := rows.Scan(&id, &converted, &attended); err != nil {
			return nil, err
		}
		stats[crm.ActorID(id)] = [2]int{converted, attended}
	}
	return stats, rows.Err()
}

func inClause(query string, ids []crm.ActorID) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	return fmt.Sprintf(query, strings.Join(placeholders, ",")), args
}

// =============================================================================
// SELECTION PROCEDURE - Server-side counterpart of scheduling.Pick
// =============================================================================

// SelectSalesperson runs the assignment decision on the store side: it
// annotates the candidate pool from SQL (working hours, conflicts, active
// counts, conversion stats) and applies the same deterministic tie-break
// as the local picker. The API layer runs both and compares the results.
func (s *Store) SelectSalesperson(ctx context.Context, candidateIDs []crm.ActorID, start, end time.Time) (scheduling.Selection, error) {
	counts, err := s.CountActiveMeetings(ctx, candidateIDs)
	if err != nil {
		return scheduling.Selection{}, fmt.Errorf("select salesperson: counts: %w", err)
	}
	stats, err := s.ConversionStats(ctx, candidateIDs)
	if err != nil {
		return scheduling.Selection{}, fmt.Errorf("select salesperson: stats: %w", err)
	}

	pool := make([]scheduling.Candidate, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		actor, err := s.GetActor(ctx, id)
		if err != nil {
			return scheduling.Selection{}, fmt.Errorf("select salesperson: actor %s: %w", id, err)
		}
		if actor == nil || !actor.Active {
			continue
		}
		conflict, err := s.HasConflict(ctx, id, start, end)
		if err != nil {
			return scheduling.Selection{}, fmt.Errorf("select salesperson: conflict %s: %w", id, err)
		}
		st := stats[id]
		pool = append(pool, scheduling.Candidate{
			ActorID:        id,
			OutsideHours:   !actor.CoversWindow(start, end),
			Conflicting:    conflict,
			ActiveMeetings: counts[id],
			Converted:      st[0],
			Attended:       st[1],
		})
	}
	return scheduling.Pick(pool), nil
}

// =============================================================================
// COMMISSION ROWS
// =============================================================================

func (s *Store) UpsertCommission(ctx context.Context, row crm.CommissionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.ComputedAt.IsZero() {
		row.ComputedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commission_rows (actor_id, kind, year, week, points, target,
			percent, multiplier, variable_pay, payout, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id, year, week) DO UPDATE SET
			kind=excluded.kind, points=excluded.points, target=excluded.target,
			percent=excluded.percent, multiplier=excluded.multiplier,
			variable_pay=excluded.variable_pay, payout=excluded.payout,
			computed_at=excluded.computed_at`,
		string(row.ActorID), string(row.Kind), row.Year, row.Week, row.Points,
		row.Target, row.Percent, row.Multiplier.String(), row.VariablePay.String(),
		row.Payout.String(), fmtTime(row.ComputedAt))
	return err
}

const commissionColumns = `actor_id, kind, year, week, points, target, percent,
	multiplier, variable_pay, payout, computed_at`

func scanCommission(row interface{ Scan(...any) error }) (crm.CommissionRow, error) {
	var c crm.CommissionRow
	var actorID, kind, multiplier, variablePay, payout, computedAt string
	err := row.Scan(&actorID, &kind, &c.Year, &c.Week, &c.Points, &c.Target,
		&c.Percent, &multiplier, &variablePay, &payout, &computedAt)
	if err != nil {
		return crm.CommissionRow{}, err
	}
	c.ActorID = crm.ActorID(actorID)
	c.Kind = crm.ActorKind(kind)
	c.Multiplier = parseDecimal(multiplier)
	c.VariablePay = parseDecimal(variablePay)
	c.Payout = parseDecimal(payout)
	c.ComputedAt = parseTime(computedAt)
	return c, nil
}

func (s *Store) GetCommission(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.CommissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commissionColumns+` FROM commission_rows
		WHERE actor_id = ? AND year = ? AND week = ?`, string(actorID), year, week)
	c, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCommissions(ctx context.Context, actorID crm.ActorID, year int) ([]crm.CommissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commissionColumns+` FROM commission_rows
		WHERE actor_id = ? AND year = ? ORDER BY week`, string(actorID), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.CommissionRow
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// MONTH CLOSURES
// =============================================================================

func (s *Store) SaveClosure(ctx context.Context, c crm.MonthClosure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO month_closures (year, month, status, targets_json, tier_rules_json,
			levels_json, membership_json, closed_at, closed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			status=excluded.status, targets_json=excluded.targets_json,
			tier_rules_json=excluded.tier_rules_json, levels_json=excluded.levels_json,
			membership_json=excluded.membership_json,
			closed_at=excluded.closed_at, closed_by=excluded.closed_by`,
		c.Year, int(c.Month), string(c.Status), c.TargetsJSON, c.TierRulesJSON,
		c.LevelsJSON, c.MembershipJSON, fmtTimePtr(c.ClosedAt), c.ClosedBy)
	return err
}

const closureColumns = `year, month, status, targets_json, tier_rules_json,
	levels_json, membership_json, closed_at, closed_by`

func scanClosure(row interface{ Scan(...any) error }) (crm.MonthClosure, error) {
	var c crm.MonthClosure
	var month int
	var status string
	var targets, rules, levels, members, closedAt, closedBy sql.NullString
	err := row.Scan(&c.Year, &month, &status, &targets, &rules, &levels, &members, &closedAt, &closedBy)
	if err != nil {
		return crm.MonthClosure{}, err
	}
	c.Month = time.Month(month)
	c.Status = crm.ClosureStatus(status)
	c.TargetsJSON = targets.String
	c.TierRulesJSON = rules.String
	c.LevelsJSON = levels.String
	c.MembershipJSON = members.String
	c.ClosedAt = parseTimePtr(closedAt)
	c.ClosedBy = closedBy.String
	return c, nil
}

func (s *Store) GetClosure(ctx context.Context, year int, month time.Month) (*crm.MonthClosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT `+closureColumns+` FROM month_closures WHERE year = ? AND month = ?`,
		year, int(month))
	c, err := scanClosure(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListClosures(ctx context.Context) ([]crm.MonthClosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+closureColumns+` FROM month_closures ORDER BY year, month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.MonthClosure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
