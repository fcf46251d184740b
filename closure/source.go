/*
source.go - Snapshot-aware configuration source

PURPOSE:
  Implements the commission calculator's ConfigSource contract: targets,
  tier rules and levels scoped to a (year, month). When that month is
  closed, values come from the closure snapshot; otherwise from the live
  tables. Callers never branch on closed-ness themselves.

CACHING:
  Parsed snapshots are memoized per (year, month) for the lifetime of the
  Source. Closure rows are immutable while closed, so the memo can only go
  stale across a reopen - construct a fresh Source per request (it is
  cheap) or after administrative changes.

SEE ALSO:
  - closure.go: Where snapshots are produced
  - commission/calculator.go: The consumer of this interface
*/
package closure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
)

// Source reads configuration through closure snapshots. Satisfies
// commission.ConfigSource.
type Source struct {
	Store crm.Store

	mu    sync.Mutex
	memo  map[monthKey]*snapshot
}

type monthKey struct {
	Year  int
	Month time.Month
}

type snapshot struct {
	targets map[targetKey]int
	rules   []crm.TierRule
	levels  map[string]crm.Level
}

type targetKey struct {
	ActorID crm.ActorID
	Year    int
	Week    int
}

// NewSource creates a snapshot-aware configuration source.
func NewSource(store crm.Store) *Source {
	return &Source{Store: store, memo: make(map[monthKey]*snapshot)}
}

// TargetFor returns the weekly target row for (actor, year, week). The
// owning month is the month of the week's closing Tuesday.
func (s *Source) TargetFor(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.WeeklyTarget, error) {
	w := calendar.WeekByNumber(year, week)
	snap, err := s.snapshotFor(ctx, w.Year, w.Month)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return s.Store.GetTarget(ctx, actorID, year, week)
	}
	qty, ok := snap.targets[targetKey{ActorID: actorID, Year: year, Week: week}]
	if !ok {
		return nil, nil // Missing target defaults to zero upstream
	}
	return &crm.WeeklyTarget{ActorID: actorID, Year: year, Week: week, TargetQuantity: qty}, nil
}

// RulesFor returns the tier table for an actor kind in (year, month).
func (s *Source) RulesFor(ctx context.Context, kind crm.ActorKind, year int, month time.Month) ([]crm.TierRule, error) {
	snap, err := s.snapshotFor(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return s.Store.ListRules(ctx, kind)
	}
	var out []crm.TierRule
	for _, r := range snap.rules {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

// LevelFor returns the level definition in effect for (year, month).
func (s *Source) LevelFor(ctx context.Context, name string, year int, month time.Month) (*crm.Level, error) {
	snap, err := s.snapshotFor(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return s.Store.GetLevel(ctx, name)
	}
	if l, ok := snap.levels[name]; ok {
		return &l, nil
	}
	return nil, nil
}

// snapshotFor returns the parsed snapshot for a closed month, or nil when
// the month is open (live tables apply).
func (s *Source) snapshotFor(ctx context.Context, year int, month time.Month) (*snapshot, error) {
	k := monthKey{Year: year, Month: month}

	s.mu.Lock()
	if snap, ok := s.memo[k]; ok {
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	c, err := s.Store.GetClosure(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("closure lookup %d-%02d: %w", year, month, err)
	}
	if c == nil || !c.Closed() {
		return nil, nil
	}

	snap, err := parseSnapshot(c)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %d-%02d: %w", year, month, err)
	}

	s.mu.Lock()
	s.memo[k] = snap
	s.mu.Unlock()
	return snap, nil
}

func parseSnapshot(c *crm.MonthClosure) (*snapshot, error) {
	var targets []targetSnapshot
	if c.TargetsJSON != "" {
		if err := json.Unmarshal([]byte(c.TargetsJSON), &targets); err != nil {
			return nil, err
		}
	}
	var rules []crm.TierRule
	if c.TierRulesJSON != "" {
		if err := json.Unmarshal([]byte(c.TierRulesJSON), &rules); err != nil {
			return nil, err
		}
	}
	var levels []crm.Level
	if c.LevelsJSON != "" {
		if err := json.Unmarshal([]byte(c.LevelsJSON), &levels); err != nil {
			return nil, err
		}
	}

	snap := &snapshot{
		targets: make(map[targetKey]int, len(targets)),
		rules:   rules,
		levels:  make(map[string]crm.Level, len(levels)),
	}
	for _, t := range targets {
		snap.targets[targetKey{ActorID: t.ActorID, Year: t.Year, Week: t.Week}] = t.TargetQuantity
	}
	for _, l := range levels {
		snap.levels[l.Name] = l
	}
	return snap, nil
}
