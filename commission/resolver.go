/*
Package commission converts weekly achievement into payout.

PURPOSE:
  Two responsibilities, both pure at the core:
  1. Tier resolution: map an achieved/target percentage onto the ranked
     tier-rule table for an actor kind and return the payout multiplier.
  2. Weekly computation: bucket achievement records into a business week,
     compare against the weekly target, and produce the commission row that
     gets persisted per (actor, kind, year, week).

RESOLUTION RULES (resolver.go):
  - target <= 0  -> percent 0 (guard, never a division)
  - percent = floor(achieved / target * 100). Floor, not round: partial
    overshoot into the next tier is deliberately not rewarded.
  - Candidate rules are sorted by PercentMin DESCENDING so that when two
    ranges share a boundary (e.g. {80-100} and {100-999}), the higher
    threshold wins. 100% achievement lands in the stricter tier.
  - No matching rule -> multiplier 0. Unmatched means NO payout. This is a
    fail-safe: safe under-payment over miscalculated over-payment; the gap
    is for an operator to fix, not for the engine to paper over.

PAYOUT:
  payout = level weekly variable pay * multiplier (decimal arithmetic).

SEE ALSO:
  - calculator.go: Weekly bucketing and row production
  - crm/types.go: TierRule, Level, CommissionRow
*/
package commission

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// PERCENT - Achieved/target ratio, floored
// =============================================================================

// Percent returns floor(achieved/target*100), or 0 when target <= 0.
// Integer division floors exactly for the non-negative values used here.
func Percent(achieved, target int) int {
	if target <= 0 {
		return 0
	}
	if achieved < 0 {
		achieved = 0
	}
	return achieved * 100 / target
}

// =============================================================================
// RESOLVER - Percentage -> multiplier
// =============================================================================

// Resolve maps an achievement percentage onto the rule table for the given
// actor kind. Returns the multiplier of the most specific matching rule
// (highest PercentMin), or zero when nothing matches.
func Resolve(percent int, kind crm.ActorKind, rules []crm.TierRule) decimal.Decimal {
	candidates := make([]crm.TierRule, 0, len(rules))
	for _, r := range rules {
		if r.Kind == kind {
			candidates = append(candidates, r)
		}
	}

	// Highest threshold first: boundary overlap resolves toward the
	// stricter tier.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PercentMin > candidates[j].PercentMin
	})

	for _, r := range candidates {
		if r.Matches(percent) {
			return r.Multiplier
		}
	}
	return decimal.Zero
}

// ResolveMultiplier combines Percent and Resolve: the full achieved/target ->
// multiplier pipeline for one actor kind.
func ResolveMultiplier(achieved, target int, kind crm.ActorKind, rules []crm.TierRule) decimal.Decimal {
	return Resolve(Percent(achieved, target), kind, rules)
}

// Payout returns variablePay * multiplier.
func Payout(variablePay, multiplier decimal.Decimal) decimal.Decimal {
	return variablePay.Mul(multiplier)
}
