/*
match.go - Fuzzy record linking for meetings and sale records

PURPOSE:
  When a meeting needs to be linked to an existing sale record, the customer
  details on both sides rarely agree byte-for-byte. Linking runs three
  passes, strictest first, stopping at the first pass that yields anything:

    1. Exact:     case-folded equality on name, email or phone
    2. Substring: one value contains the other (case-folded)
    3. Tokens:    word-overlap ratio on the name, threshold 0.6

  Each pass is an independent pure function so it can be tested and tuned
  on its own; Link composes them.

THRESHOLD:
  TokenThreshold = 0.6. Overlap is |shared| / |union| over the sets of
  lower-cased name tokens. Below the threshold nothing links - a wrong
  link is worse than no link.

SEE ALSO:
  - picker.go: The other decision procedure in this package
  - crm/types.go: Achievement customer fields
*/
package scheduling

import (
	"strings"

	"github.com/vendaops/sales-engine/crm"
)

// TokenThreshold is the minimum token-overlap ratio for pass three.
const TokenThreshold = 0.6

// LinkQuery carries the meeting-side customer details to match on.
type LinkQuery struct {
	Name  string
	Email string
	Phone string
}

// MatchPass identifies which pass produced a link.
type MatchPass string

const (
	PassExact     MatchPass = "exact"
	PassSubstring MatchPass = "substring"
	PassTokens    MatchPass = "tokens"
)

// LinkResult is one matched sale record and the pass that found it.
type LinkResult struct {
	Achievement crm.Achievement
	Pass        MatchPass
	Score       float64 // 1.0 for exact/substring, overlap ratio for tokens
}

// =============================================================================
// PASS 1 - EXACT
// =============================================================================

// ExactMatch reports whether the query matches the record on any field,
// case-folded, whitespace-trimmed. Empty fields never match.
func ExactMatch(q LinkQuery, a crm.Achievement) bool {
	return fieldEqual(q.Name, a.CustomerName) ||
		fieldEqual(q.Email, a.CustomerEmail) ||
		fieldEqual(q.Phone, a.CustomerPhone)
}

func fieldEqual(a, b string) bool {
	a, b = fold(a), fold(b)
	return a != "" && a == b
}

// =============================================================================
// PASS 2 - SUBSTRING
// =============================================================================

// SubstringMatch reports whether any query field contains, or is contained
// by, the corresponding record field.
func SubstringMatch(q LinkQuery, a crm.Achievement) bool {
	return fieldContains(q.Name, a.CustomerName) ||
		fieldContains(q.Email, a.CustomerEmail) ||
		fieldContains(q.Phone, a.CustomerPhone)
}

func fieldContains(a, b string) bool {
	a, b = fold(a), fold(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// =============================================================================
// PASS 3 - TOKEN OVERLAP
// =============================================================================

// TokenOverlap returns the shared/union ratio between the token sets of two
// names. Tokens are lower-cased whitespace-separated words; duplicates count
// once, so the ratio is always in [0, 1].
func TokenOverlap(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	shared := 0
	union := len(sa)
	for t := range sb {
		if sa[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(fold(s)) {
		set[t] = true
	}
	return set
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// =============================================================================
// LINK - Composition of the three passes
// =============================================================================

// Link runs the three passes over the candidate records, strictest first,
// and returns the results of the first pass that matched anything. An empty
// result means no link, never an error.
func Link(q LinkQuery, candidates []crm.Achievement) []LinkResult {
	var out []LinkResult

	for _, a := range candidates {
		if ExactMatch(q, a) {
			out = append(out, LinkResult{Achievement: a, Pass: PassExact, Score: 1})
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, a := range candidates {
		if SubstringMatch(q, a) {
			out = append(out, LinkResult{Achievement: a, Pass: PassSubstring, Score: 1})
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, a := range candidates {
		if score := TokenOverlap(q.Name, a.CustomerName); score >= TokenThreshold {
			out = append(out, LinkResult{Achievement: a, Pass: PassTokens, Score: score})
		}
	}
	return out
}
