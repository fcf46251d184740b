package scheduling_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/scheduling"
)

func record(id, name, email, phone string) crm.Achievement {
	return crm.Achievement{
		ID:            id,
		CustomerName:  name,
		CustomerEmail: email,
		CustomerPhone: phone,
	}
}

// =============================================================================
// INDIVIDUAL PASSES
// =============================================================================

func TestExactMatch_CaseAndWhitespaceFolded(t *testing.T) {
	a := record("r1", "Maria Souza", "maria@acme.com", "+5511999990000")

	assert.True(t, scheduling.ExactMatch(scheduling.LinkQuery{Name: "  maria souza "}, a))
	assert.True(t, scheduling.ExactMatch(scheduling.LinkQuery{Email: "MARIA@ACME.COM"}, a))
	assert.False(t, scheduling.ExactMatch(scheduling.LinkQuery{Name: "maria"}, a))
}

func TestExactMatch_EmptyFieldsNeverMatch(t *testing.T) {
	// Both sides empty must not count as equal.
	a := record("r1", "Maria Souza", "", "")
	assert.False(t, scheduling.ExactMatch(scheduling.LinkQuery{Email: ""}, a))
	assert.False(t, scheduling.ExactMatch(scheduling.LinkQuery{}, a))
}

func TestSubstringMatch_EitherDirection(t *testing.T) {
	a := record("r1", "Maria Souza", "maria@acme.com", "")

	assert.True(t, scheduling.SubstringMatch(scheduling.LinkQuery{Name: "maria"}, a))
	assert.True(t, scheduling.SubstringMatch(scheduling.LinkQuery{Name: "Maria Souza dos Santos"}, a))
	assert.False(t, scheduling.SubstringMatch(scheduling.LinkQuery{Name: "joana"}, a))
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "maria souza", "Maria Souza", 1.0},
		{"half shared", "maria souza", "maria lima", 1.0 / 3.0},
		{"no overlap", "maria souza", "joao pedro", 0},
		{"empty side", "", "maria", 0},
		{"repeated tokens count once", "john smith", "john john john", 0.5},
		{"repetition on both sides", "ana ana lima", "ana lima lima", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scheduling.TokenOverlap(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestLink_RepeatedTokensCannotForceALink(t *testing.T) {
	// One shared token out of two distinct ones is 0.5, under the threshold
	// no matter how often the candidate repeats it.
	candidates := []crm.Achievement{record("spam", "john john john", "", "")}
	results := scheduling.Link(scheduling.LinkQuery{Name: "john smith"}, candidates)
	assert.Empty(t, results)
}

// =============================================================================
// LINK - Pass composition
// =============================================================================

func TestLink_ExactShortCircuitsLooserPasses(t *testing.T) {
	// GIVEN one exact hit and one substring-only hit
	candidates := []crm.Achievement{
		record("exact", "Maria Souza", "", ""),
		record("partial", "Maria Souza dos Santos", "", ""),
	}

	// WHEN linking
	results := scheduling.Link(scheduling.LinkQuery{Name: "maria souza"}, candidates)

	// THEN only the exact pass's results are returned
	require.Len(t, results, 1)
	assert.Equal(t, "exact", results[0].Achievement.ID)
	assert.Equal(t, scheduling.PassExact, results[0].Pass)
}

func TestLink_FallsThroughToSubstring(t *testing.T) {
	candidates := []crm.Achievement{
		record("partial", "Maria Souza dos Santos", "", ""),
	}
	results := scheduling.Link(scheduling.LinkQuery{Name: "maria souza"}, candidates)

	require.Len(t, results, 1)
	assert.Equal(t, scheduling.PassSubstring, results[0].Pass)
}

func TestLink_TokenPassHonorsThreshold(t *testing.T) {
	candidates := []crm.Achievement{
		// "ana clara dias" vs "ana clara lima": 2 shared / 4 union = 0.5 < 0.6
		record("below", "Ana Clara Lima", "", ""),
		// Reordered tokens defeat the substring pass but overlap fully.
		record("above", "Dias Ana Clara", "", ""),
	}
	results := scheduling.Link(scheduling.LinkQuery{Name: "Ana Clara Dias"}, candidates)

	require.Len(t, results, 1)
	assert.Equal(t, "above", results[0].Achievement.ID)
	assert.Equal(t, scheduling.PassTokens, results[0].Pass)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestLink_NoMatchIsEmptyNotError(t *testing.T) {
	candidates := []crm.Achievement{record("r1", "Joao Pedro", "", "")}
	results := scheduling.Link(scheduling.LinkQuery{Name: "Maria"}, candidates)
	assert.Empty(t, results)
}
