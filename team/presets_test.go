package team_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/store/memory"
	"github.com/vendaops/sales-engine/team"
)

func TestSeed_WritesAllLaddersAndTables(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	require.NoError(t, team.Seed(ctx, st))

	levels, err := st.ListLevels(ctx)
	require.NoError(t, err)
	assert.Len(t, levels, 9, "three roles x three seniorities")

	for _, kind := range []crm.ActorKind{crm.KindSalesperson, crm.KindInboundSDR, crm.KindOutboundSDR} {
		rules, err := st.ListRules(ctx, kind)
		require.NoError(t, err)
		require.Len(t, rules, 3, "tier table for %s", kind)

		// Every table ends in an open-ended accelerator starting at 100.
		last := rules[len(rules)-1]
		assert.True(t, last.OpenEnded())
		assert.Equal(t, 100, last.PercentMin)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	require.NoError(t, team.Seed(ctx, st))
	require.NoError(t, team.Seed(ctx, st))

	levels, err := st.ListLevels(ctx)
	require.NoError(t, err)
	assert.Len(t, levels, 9)

	rules, err := st.ListRules(ctx, crm.KindSalesperson)
	require.NoError(t, err)
	assert.Len(t, rules, 3, "tables are replaced, not appended")
}

func TestSeedTargets_DerivesFromLevel(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, team.Seed(ctx, st))

	actor := crm.Actor{
		ID: "sp-1", Kind: crm.KindSalesperson, Level: "mid_salesperson", Active: true,
	}
	require.NoError(t, st.SaveActor(ctx, actor))

	written, err := team.SeedTargets(ctx, st, actor, 2025, time.August, false)
	require.NoError(t, err)
	assert.Equal(t, 4, written, "one row per business week of August 2025")

	for _, w := range calendar.WeeksInMonth(2025, time.August) {
		target, err := st.GetTarget(ctx, actor.ID, w.Year, w.Number)
		require.NoError(t, err)
		require.NotNil(t, target)
		assert.Equal(t, 10, target.TargetQuantity, "mid_salesperson weekly target")
	}
}

func TestSeedTargets_RespectsManualEdits(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, team.Seed(ctx, st))

	actor := crm.Actor{ID: "sp-1", Kind: crm.KindSalesperson, Level: "mid_salesperson", Active: true}
	require.NoError(t, st.SaveActor(ctx, actor))

	// A manager already set a custom goal for the first week.
	weeks := calendar.WeeksInMonth(2025, time.August)
	require.NoError(t, st.UpsertTarget(ctx, crm.WeeklyTarget{
		ActorID: actor.ID, Year: weeks[0].Year, Week: weeks[0].Number, TargetQuantity: 99,
	}))

	written, err := team.SeedTargets(ctx, st, actor, 2025, time.August, false)
	require.NoError(t, err)
	assert.Equal(t, 3, written, "existing row skipped without overwrite")

	kept, err := st.GetTarget(ctx, actor.ID, weeks[0].Year, weeks[0].Number)
	require.NoError(t, err)
	assert.Equal(t, 99, kept.TargetQuantity)
}

func TestSeedTargets_UnknownLevel(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	actor := crm.Actor{ID: "sp-1", Kind: crm.KindSalesperson, Level: "ghost_level"}
	_, err := team.SeedTargets(ctx, st, actor, 2025, time.August, false)
	assert.ErrorIs(t, err, crm.ErrLevelNotFound)
}
