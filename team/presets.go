/*
Package team provides pre-built level and tier-table presets for a sales team.

PURPOSE:
  Ready-to-use configurations for the three tracked roles. Each role gets a
  junior/mid/senior level ladder (weekly target + pay package) and a default
  tier-rule table. Presets are what a new deployment seeds the reference
  tables with; operators tune them afterwards through the API.

AVAILABLE PRESETS:
  Salesperson ladder:
    - Targets counted in closed sales per business week
    - Accelerator tier at 100%+ (1.5x variable pay)

  Inbound SDR ladder:
    - Targets counted in qualified meetings held
    - Flatter table: inbound volume is less in the SDR's control

  Outbound SDR ladder:
    - Targets counted in sourced meetings held
    - Steeper accelerator: outbound over-achievement is hard-earned

TIER TABLE SHAPE:
  Nothing below the floor (no payout under 60-70%), a half tier, a full
  tier ending at 99%, and an open-ended accelerator from 100%. The 100%
  boundary always belongs to the accelerator.

WEEKLY TARGETS:
  SeedTargets derives one WeeklyTarget row per business week of a month
  from the actor's level, so a new hire gets goals without manual entry.

EXAMPLE:
  levels, rules := team.SalespersonPreset()
  for _, l := range levels {
      store.SaveLevel(ctx, l)
  }
  store.ReplaceRules(ctx, crm.KindSalesperson, rules)

SEE ALSO:
  - factory/: JSON-driven configuration for non-preset deployments
  - crm/types.go: Level, TierRule, WeeklyTarget
*/
package team

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// LEVEL LADDERS
// =============================================================================

func level(name string, kind crm.ActorKind, target int, variable, base, advance string) crm.Level {
	return crm.Level{
		Name:                 name,
		Kind:                 kind,
		WeeklyTargetQuantity: target,
		WeeklyVariablePay:    decimal.RequireFromString(variable),
		MonthlyBasePay:       decimal.RequireFromString(base),
		AdvancePay:           decimal.RequireFromString(advance),
	}
}

// SalespersonPreset returns the closer ladder and its tier table.
func SalespersonPreset() ([]crm.Level, []crm.TierRule) {
	levels := []crm.Level{
		level("junior_salesperson", crm.KindSalesperson, 6, "300", "3000", "500"),
		level("mid_salesperson", crm.KindSalesperson, 10, "400", "4500", "750"),
		level("senior_salesperson", crm.KindSalesperson, 14, "500", "6000", "1000"),
	}
	rules := tierTable(crm.KindSalesperson, 60, "0.5", "1.0", "1.5")
	return levels, rules
}

// InboundSDRPreset returns the inbound SDR ladder and its tier table.
func InboundSDRPreset() ([]crm.Level, []crm.TierRule) {
	levels := []crm.Level{
		level("junior_sdr_inbound", crm.KindInboundSDR, 15, "200", "2500", "400"),
		level("mid_sdr_inbound", crm.KindInboundSDR, 22, "260", "3200", "500"),
		level("senior_sdr_inbound", crm.KindInboundSDR, 30, "320", "4000", "600"),
	}
	rules := tierTable(crm.KindInboundSDR, 70, "0.6", "1.0", "1.2")
	return levels, rules
}

// OutboundSDRPreset returns the outbound SDR ladder and its tier table.
func OutboundSDRPreset() ([]crm.Level, []crm.TierRule) {
	levels := []crm.Level{
		level("junior_sdr_outbound", crm.KindOutboundSDR, 8, "250", "2500", "400"),
		level("mid_sdr_outbound", crm.KindOutboundSDR, 12, "320", "3200", "500"),
		level("senior_sdr_outbound", crm.KindOutboundSDR, 16, "400", "4000", "600"),
	}
	rules := tierTable(crm.KindOutboundSDR, 60, "0.5", "1.0", "1.8")
	return levels, rules
}

// tierTable builds the standard four-band shape: nothing below floor, half
// tier, full tier to 99, open-ended accelerator from 100.
func tierTable(kind crm.ActorKind, floor int, half, full, accel string) []crm.TierRule {
	return []crm.TierRule{
		{Kind: kind, PercentMin: floor, PercentMax: 79, Multiplier: decimal.RequireFromString(half)},
		{Kind: kind, PercentMin: 80, PercentMax: 99, Multiplier: decimal.RequireFromString(full)},
		{Kind: kind, PercentMin: 100, PercentMax: crm.OpenEndedMax, Multiplier: decimal.RequireFromString(accel)},
	}
}

// =============================================================================
// SEEDING
// =============================================================================

// Seed writes every preset level and tier table into the store. Idempotent:
// levels upsert by name and tier tables are replaced whole.
func Seed(ctx context.Context, store crm.Store) error {
	presets := []func() ([]crm.Level, []crm.TierRule){
		SalespersonPreset,
		InboundSDRPreset,
		OutboundSDRPreset,
	}
	for _, preset := range presets {
		levels, rules := preset()
		for _, l := range levels {
			if err := store.SaveLevel(ctx, l); err != nil {
				return fmt.Errorf("seed level %q: %w", l.Name, err)
			}
		}
		if len(rules) > 0 {
			if err := store.ReplaceRules(ctx, rules[0].Kind, rules); err != nil {
				return fmt.Errorf("seed rules for %s: %w", rules[0].Kind, err)
			}
		}
	}
	return nil
}

// SeedTargets derives one WeeklyTarget per business week of (year, month)
// from the actor's level. Existing rows are superseded only when overwrite
// is set; otherwise they are left alone.
func SeedTargets(ctx context.Context, store crm.Store, actor crm.Actor, year int, month time.Month, overwrite bool) (int, error) {
	if actor.Level == "" {
		return 0, nil
	}
	lvl, err := store.GetLevel(ctx, actor.Level)
	if err != nil {
		return 0, fmt.Errorf("seed targets for %s: %w", actor.ID, err)
	}
	if lvl == nil {
		return 0, crm.ErrLevelNotFound
	}

	written := 0
	for _, w := range calendar.WeeksInMonth(year, month) {
		if !overwrite {
			existing, err := store.GetTarget(ctx, actor.ID, w.Year, w.Number)
			if err != nil {
				return written, err
			}
			if existing != nil {
				continue
			}
		}
		err := store.UpsertTarget(ctx, crm.WeeklyTarget{
			ActorID:        actor.ID,
			Year:           w.Year,
			Week:           w.Number,
			TargetQuantity: lvl.WeeklyTargetQuantity,
			UpdatedBy:      "auto-seed",
		})
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
