/*
store.go - Persistence interfaces for the sales engine

PURPOSE:
  Defines the boundary between domain logic and the database. The engine
  treats the data platform as a collaborator: typed query/insert/update
  methods plus two procedure-style operations (server-side salesperson
  selection and cascading sale deletion).

KEY INTERFACES:
  ActorStore:       Actors and levels
  TargetStore:      Weekly targets (upsert-only, no hard delete)
  RuleStore:        Tier-rule tables per actor kind
  AchievementStore: Sale/meeting-outcome records + cascade deletion
  MeetingStore:     Meetings + the selection procedure inputs
  CommissionStore:  Computed commission rows (upsert keyed by actor+kind+year+week)
  ClosureStore:     Month-closure snapshots

UPSERT SEMANTICS:
  WeeklyTarget and CommissionRow rows are keyed; writing an existing key
  supersedes the previous value. Nothing in this system hard-deletes a
  target - history is preserved by the month-closure snapshots instead.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests

SEE ALSO:
  - types.go: The entities these interfaces persist
  - store/sqlite/sqlite.go: Concrete implementation
*/
package crm

import (
	"context"
	"time"
)

// =============================================================================
// ACTORS & LEVELS
// =============================================================================

type ActorStore interface {
	SaveActor(ctx context.Context, a Actor) error
	GetActor(ctx context.Context, id ActorID) (*Actor, error)
	ListActors(ctx context.Context) ([]Actor, error)
	// ListActiveActors returns actors currently eligible for assignment and
	// recalculation.
	ListActiveActors(ctx context.Context) ([]Actor, error)

	SaveLevel(ctx context.Context, l Level) error
	GetLevel(ctx context.Context, name string) (*Level, error)
	ListLevels(ctx context.Context) ([]Level, error)
}

// =============================================================================
// WEEKLY TARGETS
// =============================================================================

type TargetStore interface {
	// UpsertTarget writes or supersedes the row keyed (actor, year, week).
	UpsertTarget(ctx context.Context, t WeeklyTarget) error
	GetTarget(ctx context.Context, actorID ActorID, year, week int) (*WeeklyTarget, error)
	ListTargets(ctx context.Context, actorID ActorID, year int) ([]WeeklyTarget, error)
}

// =============================================================================
// TIER RULES
// =============================================================================

type RuleStore interface {
	// ReplaceRules swaps the whole table for one actor kind atomically.
	ReplaceRules(ctx context.Context, kind ActorKind, rules []TierRule) error
	ListRules(ctx context.Context, kind ActorKind) ([]TierRule, error)
	ListAllRules(ctx context.Context) ([]TierRule, error)
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

type AchievementStore interface {
	SaveAchievement(ctx context.Context, a Achievement) error
	GetAchievement(ctx context.Context, id string) (*Achievement, error)
	// ListAchievementsInRange returns records whose effective date falls in
	// [from, to], for one actor.
	ListAchievementsInRange(ctx context.Context, actorID ActorID, from, to time.Time) ([]Achievement, error)
	ListAchievements(ctx context.Context, actorID ActorID) ([]Achievement, error)
	UpdateAchievementStatus(ctx context.Context, id string, status AchievementStatus) error

	// DeleteAchievementCascade removes the record and its dependent commission
	// rows in one transaction. Returns true on reported success; callers must
	// post-condition check that the record is actually gone.
	DeleteAchievementCascade(ctx context.Context, id string) (bool, error)
}

// =============================================================================
// MEETINGS
// =============================================================================

type MeetingStore interface {
	SaveMeeting(ctx context.Context, m Meeting) error
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	ListMeetingsByActor(ctx context.Context, actorID ActorID) ([]Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id string, status MeetingStatus, converted bool) error

	// CountActiveMeetings returns the number of scheduled meetings per actor.
	CountActiveMeetings(ctx context.Context, actorIDs []ActorID) (map[ActorID]int, error)

	// HasConflict reports whether the actor has a scheduled meeting
	// overlapping [start, end].
	HasConflict(ctx context.Context, actorID ActorID, start, end time.Time) (bool, error)

	// ConversionStats returns (converted, attended) meeting counts per actor.
	// Attended = completed meetings; converted = completed with a sale.
	ConversionStats(ctx context.Context, actorIDs []ActorID) (map[ActorID][2]int, error)
}

// =============================================================================
// COMMISSION ROWS
// =============================================================================

type CommissionStore interface {
	// UpsertCommission writes or supersedes the row keyed
	// (actor, kind, year, week).
	UpsertCommission(ctx context.Context, row CommissionRow) error
	GetCommission(ctx context.Context, actorID ActorID, year, week int) (*CommissionRow, error)
	ListCommissions(ctx context.Context, actorID ActorID, year int) ([]CommissionRow, error)
}

// =============================================================================
// MONTH CLOSURES
// =============================================================================

type ClosureStore interface {
	SaveClosure(ctx context.Context, c MonthClosure) error
	GetClosure(ctx context.Context, year int, month time.Month) (*MonthClosure, error)
	ListClosures(ctx context.Context) ([]MonthClosure, error)
}

// Store aggregates every persistence capability the engine needs.
// The SQLite and memory implementations satisfy all of it.
type Store interface {
	ActorStore
	TargetStore
	RuleStore
	AchievementStore
	MeetingStore
	CommissionStore
	ClosureStore
}
