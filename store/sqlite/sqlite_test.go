package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestActorRoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	actor := crm.Actor{
		ID:            "sp-1",
		Name:          "Maria",
		Email:         "maria@vendaops.io",
		Kind:          crm.KindSalesperson,
		Level:         "mid_salesperson",
		Active:        true,
		WorkStartHour: 9,
		WorkEndHour:   18,
		Weekdays:      []time.Weekday{time.Monday, time.Wednesday},
	}
	require.NoError(t, st.SaveActor(ctx, actor))

	got, err := st.GetActor(ctx, "sp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, actor.Name, got.Name)
	assert.Equal(t, actor.Kind, got.Kind)
	assert.Equal(t, actor.Weekdays, got.Weekdays)
	assert.Equal(t, 9, got.WorkStartHour)

	missing, err := st.GetActor(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTargetUpsertSupersedes(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	target := crm.WeeklyTarget{ActorID: "sp-1", Year: 2025, Week: 33, TargetQuantity: 10}
	require.NoError(t, st.UpsertTarget(ctx, target))

	target.TargetQuantity = 12
	target.UpdatedBy = "manager"
	require.NoError(t, st.UpsertTarget(ctx, target))

	got, err := st.GetTarget(ctx, "sp-1", 2025, 33)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12, got.TargetQuantity)
	assert.Equal(t, "manager", got.UpdatedBy)

	rows, err := st.ListTargets(ctx, "sp-1", 2025)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "upsert supersedes, never duplicates")
}

func TestReplaceRulesIsWholesale(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	first := []crm.TierRule{
		{Kind: crm.KindSalesperson, PercentMin: 0, PercentMax: 999, Multiplier: decimal.RequireFromString("1.0")},
	}
	require.NoError(t, st.ReplaceRules(ctx, crm.KindSalesperson, first))

	second := []crm.TierRule{
		{Kind: crm.KindSalesperson, PercentMin: 80, PercentMax: 99, Multiplier: decimal.RequireFromString("1.0")},
		{Kind: crm.KindSalesperson, PercentMin: 100, PercentMax: 999, Multiplier: decimal.RequireFromString("1.5")},
	}
	require.NoError(t, st.ReplaceRules(ctx, crm.KindSalesperson, second))

	rules, err := st.ListRules(ctx, crm.KindSalesperson)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, 80, rules[0].PercentMin)
	assert.True(t, rules[1].Multiplier.Equal(decimal.RequireFromString("1.5")))
}

func TestAchievementStatusTransitions(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveAchievement(ctx, crm.Achievement{
		ID: "a1", ActorID: "sp-1", Kind: crm.KindSalesperson,
		Status: crm.StatusPending, Quantity: 2,
		SubmittedAt: time.Date(2025, time.August, 15, 9, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, st.UpdateAchievementStatus(ctx, "a1", crm.StatusEnrolled))

	err := st.UpdateAchievementStatus(ctx, "a1", crm.StatusWithdrawn)
	require.Error(t, err, "enrolled is terminal")
	var terr *crm.TransitionError
	assert.ErrorAs(t, err, &terr)

	assert.ErrorIs(t, st.UpdateAchievementStatus(ctx, "ghost", crm.StatusEnrolled), crm.ErrAchievementNotFound)
}

func TestDeleteAchievementCascade(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	effective := time.Date(2025, time.August, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveAchievement(ctx, crm.Achievement{
		ID: "a1", ActorID: "sp-1", Kind: crm.KindSalesperson,
		Status: crm.StatusEnrolled, Quantity: 2, SubmittedAt: effective,
	}))

	year, week := calendar.YearWeek(effective)
	require.NoError(t, st.UpsertCommission(ctx, crm.CommissionRow{
		ActorID: "sp-1", Kind: crm.KindSalesperson, Year: year, Week: week,
		Points: 2, Target: 10, Percent: 20,
		Multiplier: decimal.Zero, VariablePay: decimal.Zero, Payout: decimal.Zero,
	}))
	// Row in another week must survive the cascade.
	require.NoError(t, st.UpsertCommission(ctx, crm.CommissionRow{
		ActorID: "sp-1", Kind: crm.KindSalesperson, Year: year, Week: week + 1,
		Multiplier: decimal.Zero, VariablePay: decimal.Zero, Payout: decimal.Zero,
	}))

	ok, err := st.DeleteAchievementCascade(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := st.GetAchievement(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	row, err := st.GetCommission(ctx, "sp-1", year, week)
	require.NoError(t, err)
	assert.Nil(t, row, "dependent commission row removed")

	other, err := st.GetCommission(ctx, "sp-1", year, week+1)
	require.NoError(t, err)
	assert.NotNil(t, other, "unrelated week untouched")
}

func TestMeetingQueries(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.September, 3, 14, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveMeeting(ctx, crm.Meeting{
		ID: "m1", ActorID: "sp-1", Start: base, End: base.Add(time.Hour),
		Status: crm.MeetingScheduled,
	}))
	require.NoError(t, st.SaveMeeting(ctx, crm.Meeting{
		ID: "m2", ActorID: "sp-1", Start: base.Add(-2 * time.Hour), End: base.Add(-time.Hour),
		Status: crm.MeetingCompleted, Converted: true,
	}))

	counts, err := st.CountActiveMeetings(ctx, []crm.ActorID{"sp-1", "sp-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["sp-1"])
	assert.Equal(t, 0, counts["sp-2"])

	conflict, err := st.HasConflict(ctx, "sp-1", base.Add(30*time.Minute), base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.True(t, conflict)

	clear, err := st.HasConflict(ctx, "sp-1", base.Add(2*time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, clear)

	stats, err := st.ConversionStats(ctx, []crm.ActorID{"sp-1"})
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, stats["sp-1"])
}

func TestSelectSalesperson_MatchesPureAlgorithm(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"sp-busy", "sp-free"} {
		require.NoError(t, st.SaveActor(ctx, crm.Actor{
			ID: crm.ActorID(id), Name: id, Kind: crm.KindSalesperson, Active: true,
		}))
	}
	base := time.Date(2025, time.September, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveMeeting(ctx, crm.Meeting{
		ID: "m1", ActorID: "sp-busy", Start: base, End: base.Add(time.Hour),
		Status: crm.MeetingScheduled,
	}))

	sel, err := st.SelectSalesperson(ctx, []crm.ActorID{"sp-busy", "sp-free"},
		base.Add(5*time.Hour), base.Add(6*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, sel.ActorID)
	assert.Equal(t, crm.ActorID("sp-free"), *sel.ActorID)
}

func TestClosureRoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.SaveClosure(ctx, crm.MonthClosure{
		Year: 2025, Month: time.August, Status: crm.ClosureClosed,
		TargetsJSON: `[]`, ClosedAt: &now, ClosedBy: "admin",
	}))

	got, err := st.GetClosure(ctx, 2025, time.August)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Closed())
	assert.Equal(t, "admin", got.ClosedBy)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.ClosedAt.Equal(now))

	open, err := st.GetClosure(ctx, 2025, time.September)
	require.NoError(t, err)
	assert.Nil(t, open)
}
