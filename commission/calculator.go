/*
calculator.go - Weekly commission computation

PURPOSE:
  Produces the CommissionRow for one actor and one business week: bucket the
  actor's enrolled achievements into the week by effective date, read the
  weekly target and tier table through a ConfigSource, resolve the
  multiplier, and price the payout from the actor's level.

CONFIG SOURCE:
  Targets, tier rules and levels are read through the ConfigSource
  interface rather than the store directly. For an open month the live
  tables back it; for a closed month the closure package serves the frozen
  snapshot instead. The calculator cannot tell the difference - that is the
  point.

DEFAULTING POLICY (validation errors resolve to safe zeros, never throw):
  - Missing weekly target  -> target 0 -> percent 0
  - Missing tier table     -> multiplier 0 -> no payout
  - Missing level          -> variable pay 0 -> payout 0

SEE ALSO:
  - resolver.go: Percent/Resolve/Payout primitives
  - closure/source.go: Snapshot-aware ConfigSource
  - api/recalc.go: Drives this calculator in the background
*/
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// CONFIG SOURCE - Where targets, rules and levels come from
// =============================================================================

// ConfigSource supplies the configuration a weekly computation depends on.
// Implementations: closure.Source (snapshot-aware) and LiveSource (below).
type ConfigSource interface {
	// TargetFor returns the weekly target row, or nil when none exists.
	TargetFor(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.WeeklyTarget, error)

	// RulesFor returns the tier table for an actor kind.
	RulesFor(ctx context.Context, kind crm.ActorKind, year int, month time.Month) ([]crm.TierRule, error)

	// LevelFor returns the level definition, or nil when none exists.
	LevelFor(ctx context.Context, name string, year int, month time.Month) (*crm.Level, error)
}

// LiveSource reads configuration straight from the live tables, ignoring
// the (year, month) scope. Used for current-period computations and tests.
type LiveSource struct {
	Store crm.Store
}

func (s *LiveSource) TargetFor(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.WeeklyTarget, error) {
	return s.Store.GetTarget(ctx, actorID, year, week)
}

func (s *LiveSource) RulesFor(ctx context.Context, kind crm.ActorKind, _ int, _ time.Month) ([]crm.TierRule, error) {
	return s.Store.ListRules(ctx, kind)
}

func (s *LiveSource) LevelFor(ctx context.Context, name string, _ int, _ time.Month) (*crm.Level, error) {
	return s.Store.GetLevel(ctx, name)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes commission rows from achievements + configuration.
type Calculator struct {
	Achievements crm.AchievementStore
	Config       ConfigSource
}

// ComputeWeek produces the commission row for one actor in one week.
// Missing configuration defaults to zero rather than failing; store errors
// propagate.
func (c *Calculator) ComputeWeek(ctx context.Context, actor crm.Actor, week calendar.Week) (crm.CommissionRow, error) {
	points, err := c.pointsInWeek(ctx, actor.ID, week)
	if err != nil {
		return crm.CommissionRow{}, fmt.Errorf("compute week %d/%d for %s: %w", week.Year, week.Number, actor.ID, err)
	}

	target := 0
	targetRow, err := c.Config.TargetFor(ctx, actor.ID, week.Year, week.Number)
	if err != nil {
		return crm.CommissionRow{}, fmt.Errorf("load target for %s: %w", actor.ID, err)
	}
	if targetRow != nil {
		target = targetRow.TargetQuantity
	}

	rules, err := c.Config.RulesFor(ctx, actor.Kind, week.Year, week.Month)
	if err != nil {
		return crm.CommissionRow{}, fmt.Errorf("load tier rules for %s: %w", actor.Kind, err)
	}

	variablePay := decimal.Zero
	if actor.Level != "" {
		level, err := c.Config.LevelFor(ctx, actor.Level, week.Year, week.Month)
		if err != nil {
			return crm.CommissionRow{}, fmt.Errorf("load level %q: %w", actor.Level, err)
		}
		if level != nil {
			variablePay = level.WeeklyVariablePay
		}
	}

	percent := Percent(points, target)
	multiplier := Resolve(percent, actor.Kind, rules)

	return crm.CommissionRow{
		ActorID:     actor.ID,
		Kind:        actor.Kind,
		Year:        week.Year,
		Week:        week.Number,
		Points:      points,
		Target:      target,
		Percent:     percent,
		Multiplier:  multiplier,
		VariablePay: variablePay,
		Payout:      Payout(variablePay, multiplier),
		ComputedAt:  time.Now().UTC(),
	}, nil
}

// ComputeMonth produces one row per business week of (year, month).
func (c *Calculator) ComputeMonth(ctx context.Context, actor crm.Actor, year int, month time.Month) ([]crm.CommissionRow, error) {
	var rows []crm.CommissionRow
	for _, week := range calendar.WeeksInMonth(year, month) {
		row, err := c.ComputeWeek(ctx, actor, week)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// pointsInWeek sums enrolled achievement quantities whose effective date
// falls in the week. Range filtering keeps full timestamp precision.
func (c *Calculator) pointsInWeek(ctx context.Context, actorID crm.ActorID, week calendar.Week) (int, error) {
	records, err := c.Achievements.ListAchievementsInRange(ctx, actorID, week.Start, week.End)
	if err != nil {
		return 0, err
	}
	points := 0
	for _, r := range records {
		if r.Status != crm.StatusEnrolled {
			continue
		}
		if week.Contains(r.EffectiveDate()) {
			points += r.Quantity
		}
	}
	return points, nil
}
