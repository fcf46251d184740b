package commission_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vendaops/sales-engine/commission"
	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func rule(kind crm.ActorKind, min, max int, multiplier string) crm.TierRule {
	return crm.TierRule{
		Kind:       kind,
		PercentMin: min,
		PercentMax: max,
		Multiplier: decimal.RequireFromString(multiplier),
	}
}

// A realistic salesperson tier table: nothing below 60%, half pay up to
// 80%, full pay up to 100%, accelerator above.
func salesTable() []crm.TierRule {
	return []crm.TierRule{
		rule(crm.KindSalesperson, 60, 79, "0.5"),
		rule(crm.KindSalesperson, 80, 99, "1.0"),
		rule(crm.KindSalesperson, 100, crm.OpenEndedMax, "1.5"),
	}
}

// =============================================================================
// PERCENT
// =============================================================================

func TestPercent(t *testing.T) {
	tests := []struct {
		name     string
		achieved int
		target   int
		want     int
	}{
		{"zero achieved", 0, 10, 0},
		{"exact target", 10, 10, 100},
		{"zero target guard", 5, 0, 0},
		{"negative target guard", 5, -3, 0},
		{"truncates down", 19, 20, 95},
		{"overshoot", 15, 10, 150},
		{"negative achieved clamps", -4, 10, 0},
		{"large values stay exact", 159, 100, 159},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commission.Percent(tt.achieved, tt.target))
		})
	}
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_BoundaryGoesToHigherTier(t *testing.T) {
	// GIVEN two ranges sharing the 100 boundary
	rules := []crm.TierRule{
		rule(crm.KindSalesperson, 80, 100, "1.0"),
		rule(crm.KindSalesperson, 100, crm.OpenEndedMax, "1.5"),
	}

	// WHEN achievement is exactly on the boundary
	got := commission.ResolveMultiplier(55, 55, crm.KindSalesperson, rules)

	// THEN the higher-threshold rule wins
	assert.True(t, got.Equal(decimal.RequireFromString("1.5")),
		"100%% must land in the 100+ tier, got %s", got)
}

func TestResolve_NoMatchMeansNoPayout(t *testing.T) {
	// Below every rule's floor: multiplier zero, not the lowest tier.
	got := commission.ResolveMultiplier(3, 10, crm.KindSalesperson, salesTable())
	assert.True(t, got.IsZero(), "unmatched percent must resolve to zero, got %s", got)
}

func TestResolve_EmptyTableMeansNoPayout(t *testing.T) {
	got := commission.Resolve(100, crm.KindSalesperson, nil)
	assert.True(t, got.IsZero())
}

func TestResolve_FiltersByActorKind(t *testing.T) {
	// GIVEN tables for two kinds where only the SDR table would match
	rules := []crm.TierRule{
		rule(crm.KindInboundSDR, 0, crm.OpenEndedMax, "2.0"),
		rule(crm.KindSalesperson, 90, crm.OpenEndedMax, "1.0"),
	}

	// WHEN resolving a salesperson at 50%
	got := commission.Resolve(50, crm.KindSalesperson, rules)

	// THEN the SDR rule must not leak across kinds
	assert.True(t, got.IsZero())
}

func TestResolve_OpenEndedMatchesFarOvershoot(t *testing.T) {
	got := commission.Resolve(450, crm.KindSalesperson, salesTable())
	assert.True(t, got.Equal(decimal.RequireFromString("1.5")))
}

func TestResolve_TableOrderIrrelevant(t *testing.T) {
	// Same table, shuffled: resolution sorts internally.
	shuffled := []crm.TierRule{
		rule(crm.KindSalesperson, 100, crm.OpenEndedMax, "1.5"),
		rule(crm.KindSalesperson, 60, 79, "0.5"),
		rule(crm.KindSalesperson, 80, 99, "1.0"),
	}
	for _, pct := range []int{60, 79, 80, 99, 100, 250} {
		a := commission.Resolve(pct, crm.KindSalesperson, salesTable())
		b := commission.Resolve(pct, crm.KindSalesperson, shuffled)
		assert.True(t, a.Equal(b), "percent %d: %s != %s", pct, a, b)
	}
}

// =============================================================================
// PAYOUT
// =============================================================================

func TestPayout_DecimalPrecision(t *testing.T) {
	// 333.33 * 1.5 must be exact, no float drift.
	pay := decimal.RequireFromString("333.33")
	mult := decimal.RequireFromString("1.5")
	assert.Equal(t, "499.995", commission.Payout(pay, mult).String())
}
