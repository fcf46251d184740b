/*
Package crm provides the core domain model for the sales operations engine.

PURPOSE:
  This package contains the entities shared by every other package: the people
  whose performance is tracked (actors), the pay/target presets they are hired
  into (levels), the per-week goals (weekly targets), the percentage-range
  payout table (tier rules), the sales/meeting outcomes that count toward goals
  (achievements), and the computed commission rows persisted per business week.

KEY CONCEPTS IN THIS FILE (types.go):
  - Actor: a salesperson or SDR (inbound/outbound) with working hours
  - Level: read-only reference data (target + pay defaults per actor kind)
  - WeeklyTarget: one row per (actor, year, week)
  - TierRule: percentage range -> payout multiplier, global per actor kind
  - Achievement: a sale or completed meeting attributed to a business week
  - CommissionRow: the computed payout for one actor in one week

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all pay and rate values, never float64
  2. Type safety: ActorID/ActorKind are distinct types, not bare strings
  3. Weeks are keyed by (year, weekNumber) where week N closes on the Nth
     Tuesday of the year (see the calendar package)

SEE ALSO:
  - errors.go: Sentinel errors and structured error types
  - store.go: Persistence interfaces
  - calendar/: Business-week arithmetic
  - commission/: Tier resolution and payout computation
*/
package crm

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACTORS - The people whose performance is tracked
// =============================================================================

type ActorID string

// ActorKind selects which tier-rule table and level presets apply.
type ActorKind string

const (
	KindSalesperson ActorKind = "salesperson"
	KindInboundSDR  ActorKind = "sdr_inbound"
	KindOutboundSDR ActorKind = "sdr_outbound"
)

// Valid reports whether the kind is one of the known actor kinds.
func (k ActorKind) Valid() bool {
	switch k {
	case KindSalesperson, KindInboundSDR, KindOutboundSDR:
		return true
	}
	return false
}

// Actor is a tracked team member.
type Actor struct {
	ID     ActorID
	Name   string
	Email  string
	Phone  string
	Kind   ActorKind
	Level  string // Level name, e.g. "senior_salesperson"
	Active bool

	// Working window for meeting assignment, local wall-clock hours [Start, End)
	// on Weekdays. Empty Weekdays means Monday-Friday.
	WorkStartHour int
	WorkEndHour   int
	Weekdays      []time.Weekday

	CreatedAt time.Time
}

// WorksOn reports whether the actor's configured days cover the given weekday.
func (a Actor) WorksOn(day time.Weekday) bool {
	if len(a.Weekdays) == 0 {
		return day != time.Saturday && day != time.Sunday
	}
	for _, d := range a.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// CoversWindow reports whether [start, end] falls inside the actor's working
// hours on a single working day.
func (a Actor) CoversWindow(start, end time.Time) bool {
	if !start.Before(end) {
		return false
	}
	if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
		return false // Meetings never span days
	}
	if !a.WorksOn(start.Weekday()) {
		return false
	}
	if a.WorkStartHour == 0 && a.WorkEndHour == 0 {
		return true // No hours configured: always available
	}
	endHour := end.Hour()
	if end.Minute() > 0 || end.Second() > 0 {
		endHour++
	}
	return start.Hour() >= a.WorkStartHour && endHour <= a.WorkEndHour
}

// =============================================================================
// LEVELS - Read-only reference data for pay and target defaults
// =============================================================================

// Level defines the target and pay package for an actor kind at a seniority.
// Consulted to auto-populate WeeklyTarget rows and to compute payout.
type Level struct {
	Name                 string
	Kind                 ActorKind
	WeeklyTargetQuantity int
	WeeklyVariablePay    decimal.Decimal
	MonthlyBasePay       decimal.Decimal
	AdvancePay           decimal.Decimal
}

// =============================================================================
// WEEKLY TARGETS - One row per (actor, year, week)
// =============================================================================

// WeeklyTarget is the goal an actor must hit in one business week.
// Rows are never hard-deleted; an edit supersedes the previous value.
type WeeklyTarget struct {
	ActorID        ActorID
	Year           int
	Week           int // Week N closes on the Nth Tuesday of Year
	TargetQuantity int
	UpdatedAt      time.Time
	UpdatedBy      string
}

// =============================================================================
// TIER RULES - Percentage range -> payout multiplier
// =============================================================================

// OpenEndedMax marks a rule with no upper bound: PercentMax >= OpenEndedMax
// means "this percentage and above".
const OpenEndedMax = 999

// TierRule maps an achievement percentage range to a payout multiplier.
// Global per actor kind, not per actor.
type TierRule struct {
	Kind       ActorKind
	PercentMin int
	PercentMax int
	Multiplier decimal.Decimal
}

// OpenEnded reports whether the rule has no upper bound.
func (r TierRule) OpenEnded() bool { return r.PercentMax >= OpenEndedMax }

// Matches reports whether the given achievement percentage falls in the rule's
// range. Open-ended rules match everything at or above PercentMin.
func (r TierRule) Matches(percent int) bool {
	if r.OpenEnded() {
		return percent >= r.PercentMin
	}
	return percent >= r.PercentMin && percent <= r.PercentMax
}

// =============================================================================
// ACHIEVEMENTS - Sales and completed meetings that count toward goals
// =============================================================================

type AchievementStatus string

const (
	StatusPending   AchievementStatus = "pending"
	StatusEnrolled  AchievementStatus = "enrolled"
	StatusWithdrawn AchievementStatus = "withdrawn"
)

// Achievement is a sale (or completed meeting) attributed to an actor.
// Immutable once finalized except for status transitions.
type Achievement struct {
	ID      string
	ActorID ActorID
	Kind    ActorKind
	Status  AchievementStatus

	// Quantity contributed toward the weekly target (points).
	Quantity int

	// Effective-date sources, first non-nil wins:
	// contract signature, then approval, then submission.
	ContractSignedAt *time.Time
	ApprovedAt       *time.Time
	SubmittedAt      time.Time

	// Link metadata used by the fuzzy matcher (scheduling package).
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	CreatedAt time.Time
}

// EffectiveDate returns the date used to attribute the achievement to a
// business week: contract signature, else approval, else submission.
func (a Achievement) EffectiveDate() time.Time {
	if a.ContractSignedAt != nil {
		return *a.ContractSignedAt
	}
	if a.ApprovedAt != nil {
		return *a.ApprovedAt
	}
	return a.SubmittedAt
}

// CanTransition reports whether the status change is allowed.
// Only pending records move; enrolled/withdrawn are terminal.
func (a Achievement) CanTransition(to AchievementStatus) bool {
	return a.Status == StatusPending && (to == StatusEnrolled || to == StatusWithdrawn)
}

// =============================================================================
// MEETINGS - Scheduled appointments, the input to assignment
// =============================================================================

type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Meeting is one appointment owned by an actor.
type Meeting struct {
	ID        string
	ActorID   ActorID
	Start     time.Time
	End       time.Time
	Status    MeetingStatus
	Converted bool // True when the meeting resulted in a sale

	// Optional link to the sale record it originated.
	AchievementID string

	CreatedAt time.Time
}

// Active reports whether the meeting still occupies the actor's calendar.
func (m Meeting) Active() bool { return m.Status == MeetingScheduled }

// Overlaps reports whether the meeting intersects the [start, end] window.
func (m Meeting) Overlaps(start, end time.Time) bool {
	return m.Start.Before(end) && start.Before(m.End)
}

// =============================================================================
// COMMISSION ROWS - Computed payout per (actor, kind, year, week)
// =============================================================================

// CommissionRow is the persisted result of one weekly commission computation.
type CommissionRow struct {
	ActorID     ActorID
	Kind        ActorKind
	Year        int
	Week        int
	Points      int
	Target      int
	Percent     int
	Multiplier  decimal.Decimal
	VariablePay decimal.Decimal
	Payout      decimal.Decimal
	ComputedAt  time.Time
}

// =============================================================================
// MONTH CLOSURES - Frozen configuration for historical months
// =============================================================================

type ClosureStatus string

const (
	ClosureOpen   ClosureStatus = "open"
	ClosureClosed ClosureStatus = "closed"
)

// MonthClosure freezes a month's configuration. Once closed, historical
// computations for that month read the snapshot fields, never live tables.
type MonthClosure struct {
	Year   int
	Month  time.Month
	Status ClosureStatus

	// Serialized copies taken at closure time.
	TargetsJSON    string
	TierRulesJSON  string
	LevelsJSON     string
	MembershipJSON string

	ClosedAt *time.Time
	ClosedBy string
}

// Closed reports whether the month is frozen.
func (c MonthClosure) Closed() bool { return c.Status == ClosureClosed }

// =============================================================================
// ROLES - Minimal role model for admin gating
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director" // Only role allowed to reopen a closed month
)
