/*
Package calendar implements business-week arithmetic for goal and commission
periods.

PURPOSE:
  Every goal, target and commission in the system is scoped to a "business
  week": Wednesday 00:00:00 through Tuesday 23:59:59.999. A week always
  belongs to the month and year of its CLOSING TUESDAY, even when it started
  in the previous month. This package is the single source of truth for that
  arithmetic - there is exactly one implementation, used by both the API
  layer and the background recalculation job.

KEY CONCEPTS:
  Week:
    One business week with two numberings:
    - Index: position within its month (1-based), for display
    - Number: position within its year (week N closes on the Nth Tuesday
      of the year), the persistence key for targets and commission rows

  Closing Tuesday:
    For any instant t, the Tuesday that closes t's week: t itself when t is
    a Tuesday, otherwise the next Tuesday (1-6 days ahead).

MONTH ATTRIBUTION:
  WeeksInMonth(2025, August): Tuesdays are Aug 5, 12, 19, 26 -> four weeks.
  The week Wed Jul 30 - Tue Aug 5 belongs to August (its Tuesday closes in
  August); the week closing Tue Sep 2 belongs to September.

YEAR ROLLOVER:
  A late-December date whose closing Tuesday falls in January belongs to
  week 1 of the next year. Numbering resets at the first Tuesday of each
  calendar year.

PRECISION POLICY:
  Day-bucketing comparisons strip time of day (SameDay); week boundaries
  keep full timestamp precision for range filters (Start <= t <= End).

All computation is pure. Callers must supply valid times; there is no
recovery for malformed input.

SEE ALSO:
  - commission/: Buckets achievements by Week
  - api/recalc.go: Enumerates weeks for background recalculation
*/
package calendar

import "time"

// =============================================================================
// WEEK - One Wednesday->Tuesday business week
// =============================================================================

// Week is one business week. Start is the opening Wednesday at 00:00:00,
// End the closing Tuesday at 23:59:59.999.
type Week struct {
	Year   int        // Year of the closing Tuesday
	Month  time.Month // Month of the closing Tuesday
	Index  int        // 1-based position within Month
	Number int        // 1-based position within Year (persistence key)
	Start  time.Time
	End    time.Time
}

// ClosingTuesday returns the End truncated to the date.
func (w Week) ClosingTuesday() time.Time { return dateOnly(w.End) }

// Contains reports whether t falls inside [Start, End], full precision.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// =============================================================================
// CLOSING TUESDAY AND MONTH ATTRIBUTION
// =============================================================================

// ClosingTuesday returns the Tuesday that closes t's business week: t's date
// when t is a Tuesday, otherwise the next Tuesday (1-6 days forward).
func ClosingTuesday(t time.Time) time.Time {
	d := dateOnly(t)
	offset := (int(time.Tuesday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// MonthYearFor returns the (year, month) that t's business week belongs to,
// i.e. the month and year of its closing Tuesday.
func MonthYearFor(t time.Time) (int, time.Month) {
	ct := ClosingTuesday(t)
	return ct.Year(), ct.Month()
}

// =============================================================================
// WEEK ENUMERATION
// =============================================================================

// WeeksInMonth returns the business weeks belonging to (year, month), in
// order. Each Tuesday of the month closes one week; Index runs from 1.
func WeeksInMonth(year int, month time.Month) []Week {
	var weeks []Week
	for i, tue := range tuesdaysInMonth(year, month) {
		weeks = append(weeks, weekClosing(tue, i+1))
	}
	return weeks
}

// WeekFor returns the unique week containing t.
func WeekFor(t time.Time) Week {
	ct := ClosingTuesday(t)
	index := 0
	for i, tue := range tuesdaysInMonth(ct.Year(), ct.Month()) {
		if tue.Equal(ct) {
			index = i + 1
			break
		}
	}
	return weekClosing(ct, index)
}

// WeekNumberForDate returns the 1-based index, within (year, month), of the
// week containing the given day of that month. The day's week may close in
// the following month; in that case the returned index is 0 and the caller
// should re-resolve via WeekFor.
func WeekNumberForDate(year int, month time.Month, day int) int {
	ct := ClosingTuesday(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	if ct.Month() != month || ct.Year() != year {
		return 0
	}
	for i, tue := range tuesdaysInMonth(year, month) {
		if tue.Equal(ct) {
			return i + 1
		}
	}
	return 0
}

// WeekStart returns the opening Wednesday 00:00:00 of the nth week of
// (year, month). n past the last Tuesday clamps to the last week.
func WeekStart(year int, month time.Month, n int) time.Time {
	return nthWeekOfMonth(year, month, n).Start
}

// WeekEnd returns the closing Tuesday 23:59:59.999 of the nth week of
// (year, month), clamped like WeekStart.
func WeekEnd(year int, month time.Month, n int) time.Time {
	return nthWeekOfMonth(year, month, n).End
}

// =============================================================================
// YEAR-WEEK NUMBERING - Persistence keys
// =============================================================================

// YearWeek returns the (year, weekNumber) key for t: the year of t's closing
// Tuesday and that Tuesday's 1-based position among the year's Tuesdays.
func YearWeek(t time.Time) (int, int) {
	ct := ClosingTuesday(t)
	return ct.Year(), tuesdayOrdinal(ct)
}

// WeekByNumber resolves a persistence key (year, weekNumber) back to a Week.
// Numbers past the year's last Tuesday clamp to the final week of the year.
func WeekByNumber(year, number int) Week {
	if number < 1 {
		number = 1
	}
	first := firstTuesdayOfYear(year)
	tue := first.AddDate(0, 0, 7*(number-1))
	if tue.Year() != year {
		// Clamp to the last Tuesday of the year
		for tue.Year() != year {
			tue = tue.AddDate(0, 0, -7)
		}
	}
	w := WeekFor(tue)
	return w
}

// CurrentWeek returns the week containing now.
func CurrentWeek(now time.Time) Week { return WeekFor(now) }

// =============================================================================
// DAY BUCKETING
// =============================================================================

// SameDay reports whether two instants fall on the same calendar day,
// time of day stripped.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// =============================================================================
// INTERNALS
// =============================================================================

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekClosing builds the Week whose closing Tuesday is tue.
func weekClosing(tue time.Time, index int) Week {
	start := tue.AddDate(0, 0, -6)
	end := time.Date(tue.Year(), tue.Month(), tue.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
	return Week{
		Year:   tue.Year(),
		Month:  tue.Month(),
		Index:  index,
		Number: tuesdayOrdinal(tue),
		Start:  time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		End:    end,
	}
}

// tuesdaysInMonth returns every Tuesday of (year, month) as date-only times.
func tuesdaysInMonth(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	tue := ClosingTuesday(first)
	var out []time.Time
	for tue.Month() == month && tue.Year() == year {
		out = append(out, tue)
		tue = tue.AddDate(0, 0, 7)
	}
	return out
}

func nthWeekOfMonth(year int, month time.Month, n int) Week {
	tuesdays := tuesdaysInMonth(year, month)
	if n < 1 {
		n = 1
	}
	if n > len(tuesdays) {
		n = len(tuesdays)
	}
	return weekClosing(tuesdays[n-1], n)
}

func firstTuesdayOfYear(year int) time.Time {
	return ClosingTuesday(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
}

// tuesdayOrdinal returns the 1-based position of tue among its year's Tuesdays.
func tuesdayOrdinal(tue time.Time) int {
	first := firstTuesdayOfYear(tue.Year())
	return int(tue.Sub(first).Hours()/(24*7)) + 1
}
