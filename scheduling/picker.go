/*
Package scheduling decides who receives a new meeting and links meetings to
sale records.

PURPOSE:
  When a meeting is booked, exactly one eligible salesperson (or none) must
  be chosen, deterministically:

    1. Filter the pool to candidates whose working hours cover the window
       and who have no conflicting meeting (availability flags are computed
       by the store collaborator before the picker runs).
    2. Keep the candidates with the MINIMUM active-meeting count.
    3. Break remaining ties by HIGHEST historical conversion rate
       (converted / attended; undefined when nothing was attended).
    4. A persistent tie or an empty pool yields NO selection plus a
       Diagnostic explaining how many candidates each filter excluded -
       never an arbitrary pick, never an error.

DIVERGENCE DETECTION:
  The same selection runs in two places: locally (this picker) and inside
  the data store (SelectSalesperson on the SQLite store). Any disagreement
  between the two is a correctness bug. The Comparator records mismatches
  into an injected bounded ring buffer (DivergenceLog) and surfaces them
  loudly; it never silently reconciles.

SEE ALSO:
  - match.go: Three-pass fuzzy record linking
  - store/sqlite/sqlite.go: Server-side SelectSalesperson procedure
*/
package scheduling

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// CANDIDATE - One pool member, availability-annotated
// =============================================================================

// Candidate is one pool member with the facts the tie-break needs.
// OutsideHours/Conflicting come from the store's availability check.
type Candidate struct {
	ActorID        crm.ActorID
	OutsideHours   bool
	Conflicting    bool
	ActiveMeetings int

	// Converted/Attended drive the conversion-rate tie-break. Rate is
	// undefined (always loses ties) when Attended == 0.
	Converted int
	Attended  int
}

// Available reports whether the candidate survived the availability filter.
func (c Candidate) Available() bool { return !c.OutsideHours && !c.Conflicting }

// ConversionRate returns converted/attended and whether it is defined.
func (c Candidate) ConversionRate() (decimal.Decimal, bool) {
	if c.Attended <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(int64(c.Converted)).Div(decimal.NewFromInt(int64(c.Attended))), true
}

// =============================================================================
// DIAGNOSTIC - Why the pool shrank, and what was decided
// =============================================================================

// Diagnostic describes one selection run. Returned alongside every pick so
// an empty result can be explained rather than silently swallowed.
type Diagnostic struct {
	PoolSize     int    `json:"pool_size"`
	OutsideHours int    `json:"outside_hours"`
	Conflicting  int    `json:"conflicting"`
	Available    int    `json:"available"`
	TiedAtEnd    int    `json:"tied_at_end,omitempty"`
	Reason       string `json:"reason"`
}

// =============================================================================
// SELECTION - Deterministic tie-break
// =============================================================================

// Selection is the outcome of one pick: the winner (nil for no selection)
// plus the facts the caller persists with the meeting.
type Selection struct {
	ActorID        *crm.ActorID
	ActiveMeetings int
	ConversionRate *decimal.Decimal
	Diagnostic     Diagnostic
}

// Pick selects exactly one candidate, or none. Pure and deterministic:
// identical input always produces identical output, which is what makes the
// client/server divergence check meaningful.
func Pick(pool []Candidate) Selection {
	diag := Diagnostic{PoolSize: len(pool)}

	var available []Candidate
	for _, c := range pool {
		switch {
		case c.OutsideHours:
			diag.OutsideHours++
		case c.Conflicting:
			diag.Conflicting++
		default:
			available = append(available, c)
		}
	}
	diag.Available = len(available)

	if len(available) == 0 {
		diag.Reason = "no available candidates"
		return Selection{Diagnostic: diag}
	}

	// Keep the minimum active-meeting count.
	minCount := available[0].ActiveMeetings
	for _, c := range available[1:] {
		if c.ActiveMeetings < minCount {
			minCount = c.ActiveMeetings
		}
	}
	var leaders []Candidate
	for _, c := range available {
		if c.ActiveMeetings == minCount {
			leaders = append(leaders, c)
		}
	}

	if len(leaders) == 1 {
		diag.Reason = "fewest active meetings"
		return selectionFor(leaders[0], diag)
	}

	// Tie-break on highest conversion rate. Undefined rates lose to any
	// defined rate.
	best := -1
	bestRate := decimal.Zero
	tied := 0
	for i, c := range leaders {
		rate, ok := c.ConversionRate()
		if !ok {
			continue
		}
		switch {
		case best == -1 || rate.GreaterThan(bestRate):
			best, bestRate, tied = i, rate, 1
		case rate.Equal(bestRate):
			tied++
		}
	}

	if best == -1 {
		diag.TiedAtEnd = len(leaders)
		diag.Reason = "tie unresolved: no conversion history"
		return Selection{Diagnostic: diag}
	}
	if tied > 1 {
		diag.TiedAtEnd = tied
		diag.Reason = "tie unresolved: equal conversion rates"
		return Selection{Diagnostic: diag}
	}

	diag.Reason = "tie broken by conversion rate"
	return selectionFor(leaders[best], diag)
}

func selectionFor(c Candidate, diag Diagnostic) Selection {
	id := c.ActorID
	sel := Selection{ActorID: &id, ActiveMeetings: c.ActiveMeetings, Diagnostic: diag}
	if rate, ok := c.ConversionRate(); ok {
		sel.ConversionRate = &rate
	}
	return sel
}

// =============================================================================
// DIVERGENCE LOG - Bounded ring buffer, injected not global
// =============================================================================

// Divergence records one disagreement between the local picker and the
// store-side selection procedure.
type Divergence struct {
	At       time.Time
	Window   [2]time.Time
	Local    *crm.ActorID
	Remote   *crm.ActorID
	LocalDg  Diagnostic
	RemoteDg Diagnostic
}

// DivergenceLog is a capacity-capped append-only ring buffer. It is owned
// by the calling context and passed by reference; there is no module-level
// instance, so concurrent requests cannot leak entries into each other's
// reports.
type DivergenceLog struct {
	mu      sync.Mutex
	cap     int
	entries []Divergence
	next    int
	total   int
}

// NewDivergenceLog creates a log holding at most capacity entries; older
// entries are overwritten once full.
func NewDivergenceLog(capacity int) *DivergenceLog {
	if capacity < 1 {
		capacity = 1
	}
	return &DivergenceLog{cap: capacity}
}

// Record appends an entry, evicting the oldest when at capacity.
func (l *DivergenceLog) Record(d Divergence) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) < l.cap {
		l.entries = append(l.entries, d)
	} else {
		l.entries[l.next] = d
	}
	l.next = (l.next + 1) % l.cap
	l.total++
}

// Entries returns the retained entries, oldest first.
func (l *DivergenceLog) Entries() []Divergence {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Divergence, 0, len(l.entries))
	if len(l.entries) < l.cap {
		out = append(out, l.entries...)
		return out
	}
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// Total returns how many divergences were ever recorded, including evicted.
func (l *DivergenceLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// =============================================================================
// COMPARATOR - Detects client/server divergence
// =============================================================================

// Compare checks a local and a remote selection for the same window. On
// mismatch it records into the log and returns a ConsistencyError for the
// caller to surface. Matching results return nil.
func Compare(log *DivergenceLog, start, end time.Time, local, remote Selection) error {
	if sameSelection(local.ActorID, remote.ActorID) {
		return nil
	}
	if log != nil {
		log.Record(Divergence{
			At:       time.Now().UTC(),
			Window:   [2]time.Time{start, end},
			Local:    local.ActorID,
			Remote:   remote.ActorID,
			LocalDg:  local.Diagnostic,
			RemoteDg: remote.Diagnostic,
		})
	}
	return &crm.ConsistencyError{
		Operation: "assignment_divergence",
		EntityID:  fmt.Sprintf("window %s..%s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		Detail:    fmt.Sprintf("local=%v remote=%v", deref(local.ActorID), deref(remote.ActorID)),
		At:        time.Now().UTC(),
	}
}

func sameSelection(a, b *crm.ActorID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(id *crm.ActorID) string {
	if id == nil {
		return "<none>"
	}
	return string(*id)
}
