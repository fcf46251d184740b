package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/commission"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/store/memory"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type calcFixture struct {
	store *memory.Store
	calc  *commission.Calculator
	actor crm.Actor
}

func newCalcFixture(t *testing.T) *calcFixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	actor := crm.Actor{
		ID:     "sp-ana",
		Name:   "Ana",
		Kind:   crm.KindSalesperson,
		Level:  "senior_salesperson",
		Active: true,
	}
	require.NoError(t, st.SaveActor(ctx, actor))
	require.NoError(t, st.SaveLevel(ctx, crm.Level{
		Name:                 "senior_salesperson",
		Kind:                 crm.KindSalesperson,
		WeeklyTargetQuantity: 10,
		WeeklyVariablePay:    decimal.RequireFromString("500"),
	}))
	require.NoError(t, st.ReplaceRules(ctx, crm.KindSalesperson, []crm.TierRule{
		{Kind: crm.KindSalesperson, PercentMin: 80, PercentMax: 100, Multiplier: decimal.RequireFromString("1.0")},
		{Kind: crm.KindSalesperson, PercentMin: 100, PercentMax: crm.OpenEndedMax, Multiplier: decimal.RequireFromString("1.5")},
	}))

	return &calcFixture{
		store: st,
		calc:  &commission.Calculator{Achievements: st, Config: &commission.LiveSource{Store: st}},
		actor: actor,
	}
}

func (f *calcFixture) setTarget(t *testing.T, week calendar.Week, qty int) {
	t.Helper()
	require.NoError(t, f.store.UpsertTarget(context.Background(), crm.WeeklyTarget{
		ActorID: f.actor.ID, Year: week.Year, Week: week.Number, TargetQuantity: qty,
	}))
}

func (f *calcFixture) addSale(t *testing.T, id string, qty int, at time.Time, status crm.AchievementStatus) {
	t.Helper()
	require.NoError(t, f.store.SaveAchievement(context.Background(), crm.Achievement{
		ID:          id,
		ActorID:     f.actor.ID,
		Kind:        f.actor.Kind,
		Status:      status,
		Quantity:    qty,
		SubmittedAt: at,
	}))
}

// =============================================================================
// WEEKLY COMPUTATION
// =============================================================================

func TestComputeWeek_FullTargetHitsAccelerator(t *testing.T) {
	f := newCalcFixture(t)

	// GIVEN the week closing Tuesday Aug 19 2025 with a target of 10
	week := calendar.WeekFor(time.Date(2025, time.August, 19, 0, 0, 0, 0, time.UTC))
	f.setTarget(t, week, 10)

	// AND 10 enrolled points inside the week
	f.addSale(t, "s1", 6, time.Date(2025, time.August, 14, 10, 0, 0, 0, time.UTC), crm.StatusEnrolled)
	f.addSale(t, "s2", 4, time.Date(2025, time.August, 18, 16, 30, 0, 0, time.UTC), crm.StatusEnrolled)

	// WHEN the week is computed
	row, err := f.calc.ComputeWeek(context.Background(), f.actor, week)
	require.NoError(t, err)

	// THEN 100% lands in the accelerator tier
	assert.Equal(t, 10, row.Points)
	assert.Equal(t, 10, row.Target)
	assert.Equal(t, 100, row.Percent)
	assert.True(t, row.Multiplier.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "750", row.Payout.String())
}

func TestComputeWeek_IgnoresPendingAndWithdrawn(t *testing.T) {
	f := newCalcFixture(t)
	week := calendar.WeekFor(time.Date(2025, time.August, 19, 0, 0, 0, 0, time.UTC))
	f.setTarget(t, week, 10)

	inWeek := time.Date(2025, time.August, 15, 9, 0, 0, 0, time.UTC)
	f.addSale(t, "s1", 8, inWeek, crm.StatusEnrolled)
	f.addSale(t, "s2", 5, inWeek, crm.StatusPending)
	f.addSale(t, "s3", 5, inWeek, crm.StatusWithdrawn)

	row, err := f.calc.ComputeWeek(context.Background(), f.actor, week)
	require.NoError(t, err)

	// Only enrolled quantities count: 8/10 = 80% -> 1.0 multiplier.
	assert.Equal(t, 8, row.Points)
	assert.Equal(t, 80, row.Percent)
	assert.Equal(t, "500", row.Payout.String())
}

func TestComputeWeek_ContractDateWinsOverSubmission(t *testing.T) {
	f := newCalcFixture(t)

	// Two consecutive weeks; the sale was submitted in week B but the
	// contract was signed in week A. Attribution follows the contract.
	weekA := calendar.WeekFor(time.Date(2025, time.August, 12, 0, 0, 0, 0, time.UTC))
	weekB := calendar.WeekFor(time.Date(2025, time.August, 19, 0, 0, 0, 0, time.UTC))
	f.setTarget(t, weekA, 5)
	f.setTarget(t, weekB, 5)

	signed := time.Date(2025, time.August, 11, 14, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.SaveAchievement(context.Background(), crm.Achievement{
		ID:               "s1",
		ActorID:          f.actor.ID,
		Kind:             f.actor.Kind,
		Status:           crm.StatusEnrolled,
		Quantity:         5,
		ContractSignedAt: &signed,
		SubmittedAt:      time.Date(2025, time.August, 15, 9, 0, 0, 0, time.UTC),
	}))

	rowA, err := f.calc.ComputeWeek(context.Background(), f.actor, weekA)
	require.NoError(t, err)
	rowB, err := f.calc.ComputeWeek(context.Background(), f.actor, weekB)
	require.NoError(t, err)

	assert.Equal(t, 5, rowA.Points, "contract week gets the points")
	assert.Equal(t, 0, rowB.Points, "submission week gets nothing")
}

func TestComputeWeek_MissingConfigDefaultsToZero(t *testing.T) {
	f := newCalcFixture(t)
	week := calendar.WeekFor(time.Date(2025, time.August, 19, 0, 0, 0, 0, time.UTC))

	// No target, achievements present.
	f.addSale(t, "s1", 7, time.Date(2025, time.August, 15, 9, 0, 0, 0, time.UTC), crm.StatusEnrolled)

	row, err := f.calc.ComputeWeek(context.Background(), f.actor, week)
	require.NoError(t, err)

	// Missing target -> percent 0 -> no payout. Never an error.
	assert.Equal(t, 7, row.Points)
	assert.Equal(t, 0, row.Target)
	assert.Equal(t, 0, row.Percent)
	assert.True(t, row.Payout.IsZero())
}

func TestComputeMonth_OneRowPerBusinessWeek(t *testing.T) {
	f := newCalcFixture(t)

	rows, err := f.calc.ComputeMonth(context.Background(), f.actor, 2025, time.August)
	require.NoError(t, err)

	// August 2025 has four closing Tuesdays.
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, 2025, row.Year)
		if i > 0 {
			assert.Equal(t, rows[i-1].Week+1, row.Week, "weeks must be consecutive")
		}
	}
}
