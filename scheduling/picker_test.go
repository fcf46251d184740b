package scheduling_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/scheduling"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func cand(id string, active, converted, attended int) scheduling.Candidate {
	return scheduling.Candidate{
		ActorID:        crm.ActorID(id),
		ActiveMeetings: active,
		Converted:      converted,
		Attended:       attended,
	}
}

func picked(t *testing.T, sel scheduling.Selection) crm.ActorID {
	t.Helper()
	require.NotNil(t, sel.ActorID, "expected a selection, got none: %+v", sel.Diagnostic)
	return *sel.ActorID
}

// =============================================================================
// PICK - Deterministic tie-break
// =============================================================================

func TestPick_FewestActiveMeetingsWins(t *testing.T) {
	sel := scheduling.Pick([]scheduling.Candidate{
		cand("a", 5, 0, 0),
		cand("b", 2, 0, 0),
		cand("c", 4, 0, 0),
	})
	assert.Equal(t, crm.ActorID("b"), picked(t, sel))
	assert.Equal(t, 2, sel.ActiveMeetings)
	assert.Equal(t, "fewest active meetings", sel.Diagnostic.Reason)
}

func TestPick_TieBrokenByConversionRate(t *testing.T) {
	// GIVEN two candidates tied at 2 active meetings and one behind at 5
	pool := []scheduling.Candidate{
		cand("a", 2, 3, 10), // 30%
		cand("b", 2, 5, 10), // 50%
		cand("c", 5, 9, 10), // Best rate but too loaded
	}

	// WHEN picking
	sel := scheduling.Pick(pool)

	// THEN the higher conversion rate among the tied leaders wins
	assert.Equal(t, crm.ActorID("b"), picked(t, sel))
	assert.Equal(t, "tie broken by conversion rate", sel.Diagnostic.Reason)
	require.NotNil(t, sel.ConversionRate)
	assert.Equal(t, "0.5", sel.ConversionRate.String())
}

func TestPick_UndefinedRateLosesToDefined(t *testing.T) {
	// Nothing attended: the rate is undefined, not zero, and loses ties.
	pool := []scheduling.Candidate{
		cand("rookie", 2, 0, 0),
		cand("vet", 2, 1, 20), // 5%, but defined
	}
	sel := scheduling.Pick(pool)
	assert.Equal(t, crm.ActorID("vet"), picked(t, sel))
}

func TestPick_PersistentTieYieldsNoSelection(t *testing.T) {
	// Equal counts, equal rates: never an arbitrary pick.
	pool := []scheduling.Candidate{
		cand("a", 2, 5, 10),
		cand("b", 2, 5, 10),
	}
	sel := scheduling.Pick(pool)

	assert.Nil(t, sel.ActorID)
	assert.Equal(t, 2, sel.Diagnostic.TiedAtEnd)
	assert.Equal(t, "tie unresolved: equal conversion rates", sel.Diagnostic.Reason)
}

func TestPick_AllRatesUndefinedYieldsNoSelection(t *testing.T) {
	pool := []scheduling.Candidate{
		cand("a", 1, 0, 0),
		cand("b", 1, 0, 0),
	}
	sel := scheduling.Pick(pool)

	assert.Nil(t, sel.ActorID)
	assert.Equal(t, "tie unresolved: no conversion history", sel.Diagnostic.Reason)
}

func TestPick_AvailabilityFiltersAndDiagnostic(t *testing.T) {
	// GIVEN a pool where only one candidate survives the filters
	pool := []scheduling.Candidate{
		{ActorID: "off", OutsideHours: true},
		{ActorID: "busy", Conflicting: true},
		{ActorID: "free", ActiveMeetings: 3},
	}

	sel := scheduling.Pick(pool)

	assert.Equal(t, crm.ActorID("free"), picked(t, sel))
	assert.Equal(t, 3, sel.Diagnostic.PoolSize)
	assert.Equal(t, 1, sel.Diagnostic.OutsideHours)
	assert.Equal(t, 1, sel.Diagnostic.Conflicting)
	assert.Equal(t, 1, sel.Diagnostic.Available)
}

func TestPick_EmptyPool(t *testing.T) {
	sel := scheduling.Pick(nil)
	assert.Nil(t, sel.ActorID)
	assert.Equal(t, "no available candidates", sel.Diagnostic.Reason)
}

func TestPick_Deterministic(t *testing.T) {
	pool := []scheduling.Candidate{
		cand("a", 2, 3, 10),
		cand("b", 2, 5, 10),
		cand("c", 1, 0, 4),
	}
	first := scheduling.Pick(pool)
	for i := 0; i < 50; i++ {
		again := scheduling.Pick(pool)
		assert.Equal(t, *first.ActorID, *again.ActorID, "run %d diverged", i)
	}
}

// =============================================================================
// DIVERGENCE LOG - Bounded ring buffer
// =============================================================================

func TestDivergenceLog_EvictsOldestAtCapacity(t *testing.T) {
	log := scheduling.NewDivergenceLog(3)

	for i := 0; i < 5; i++ {
		id := crm.ActorID(string(rune('a' + i)))
		log.Record(scheduling.Divergence{Local: &id})
	}

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, crm.ActorID("c"), *entries[0].Local, "oldest retained entry")
	assert.Equal(t, crm.ActorID("e"), *entries[2].Local, "newest entry")
	assert.Equal(t, 5, log.Total(), "total counts evicted entries too")
}

// =============================================================================
// COMPARE - Client/server divergence detection
// =============================================================================

func TestCompare_MatchingSelectionsAreSilent(t *testing.T) {
	log := scheduling.NewDivergenceLog(10)
	id := crm.ActorID("a")
	start := time.Date(2025, time.August, 14, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	err := scheduling.Compare(log, start, end,
		scheduling.Selection{ActorID: &id},
		scheduling.Selection{ActorID: &id})

	assert.NoError(t, err)
	assert.Equal(t, 0, log.Total())
}

func TestCompare_MismatchRecordsAndSurfaces(t *testing.T) {
	log := scheduling.NewDivergenceLog(10)
	local := crm.ActorID("a")
	remote := crm.ActorID("b")
	start := time.Date(2025, time.August, 14, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	err := scheduling.Compare(log, start, end,
		scheduling.Selection{ActorID: &local},
		scheduling.Selection{ActorID: &remote})

	require.Error(t, err)
	var cerr *crm.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "assignment_divergence", cerr.Operation)
	assert.Equal(t, 1, log.Total())
}

func TestCompare_NilVersusPickedIsDivergence(t *testing.T) {
	log := scheduling.NewDivergenceLog(10)
	remote := crm.ActorID("b")
	start := time.Date(2025, time.August, 14, 10, 0, 0, 0, time.UTC)

	err := scheduling.Compare(log, start, start.Add(time.Hour),
		scheduling.Selection{}, scheduling.Selection{ActorID: &remote})

	assert.Error(t, err)
	assert.Equal(t, 1, log.Total())
}
