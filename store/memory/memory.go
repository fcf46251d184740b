// Package memory provides an in-memory crm.Store implementation (for
// testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/scheduling"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of crm.Store
// =============================================================================

type Store struct {
	mu           sync.RWMutex
	actors       map[crm.ActorID]crm.Actor
	levels       map[string]crm.Level
	targets      map[targetKey]crm.WeeklyTarget
	rules        map[crm.ActorKind][]crm.TierRule
	achievements map[string]crm.Achievement
	meetings     map[string]crm.Meeting
	commissions  map[commissionKey]crm.CommissionRow
	closures     map[closureKey]crm.MonthClosure
}

type targetKey struct {
	ActorID crm.ActorID
	Year    int
	Week    int
}

type commissionKey struct {
	ActorID crm.ActorID
	Year    int
	Week    int
}

type closureKey struct {
	Year  int
	Month time.Month
}

func New() *Store {
	return &Store{
		actors:       make(map[crm.ActorID]crm.Actor),
		levels:       make(map[string]crm.Level),
		targets:      make(map[targetKey]crm.WeeklyTarget),
		rules:        make(map[crm.ActorKind][]crm.TierRule),
		achievements: make(map[string]crm.Achievement),
		meetings:     make(map[string]crm.Meeting),
		commissions:  make(map[commissionKey]crm.CommissionRow),
		closures:     make(map[closureKey]crm.MonthClosure),
	}
}

var _ crm.Store = (*Store)(nil)

// =============================================================================
// ACTORS & LEVELS
// =============================================================================

func (s *Store) SaveActor(_ context.Context, a crm.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.ID] = a
	return nil
}

func (s *Store) GetActor(_ context.Context, id crm.ActorID) (*crm.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) ListActors(_ context.Context) ([]crm.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crm.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveActors(ctx context.Context) ([]crm.Actor, error) {
	all, _ := s.ListActors(ctx)
	var out []crm.Actor
	for _, a := range all {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveLevel(_ context.Context, l crm.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[l.Name] = l
	return nil
}

func (s *Store) GetLevel(_ context.Context, name string) (*crm.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[name]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *Store) ListLevels(_ context.Context) ([]crm.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crm.Level, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// WEEKLY TARGETS
// =============================================================================

func (s *Store) UpsertTarget(_ context.Context, t crm.WeeklyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[targetKey{t.ActorID, t.Year, t.Week}] = t
	return nil
}

func (s *Store) GetTarget(_ context.Context, actorID crm.ActorID, year, week int) (*crm.WeeklyTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[targetKey{actorID, year, week}]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) ListTargets(_ context.Context, actorID crm.ActorID, year int) ([]crm.WeeklyTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crm.WeeklyTarget
	for k, t := range s.targets {
		if k.ActorID == actorID && k.Year == year {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out, nil
}

// =============================================================================
// TIER RULES
// =============================================================================

func (s *Store) ReplaceRules(_ context.Context, kind crm.ActorKind, rules []crm.TierRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[kind] = append([]crm.TierRule(nil), rules...)
	return nil
}

func (s *Store) ListRules(_ context.Context, kind crm.ActorKind) ([]crm.TierRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crm.TierRule(nil), s.rules[kind]...), nil
}

func (s *Store) ListAllRules(_ context.Context) ([]crm.TierRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crm.TierRule
	for _, kind := range []crm.ActorKind{crm.KindSalesperson, crm.KindInboundSDR, crm.KindOutboundSDR} {
		out = append(out, s.rules[kind]...)
	}
	return out, nil
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func (s *Store) SaveAchievement(_ context.Context, a crm.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements[a.ID] = a
	return nil
}

func (s *Store) GetAchievement(_ context.Context, id string) (*crm.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.achievements[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) ListAchievementsInRange(_ context.Context, actorID crm.ActorID, from, to time.Time) ([]crm.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crm.Achievement
	for _, a := range s.achievements {
		if a.ActorID != actorID {
			continue
		}
		at := a.EffectiveDate()
		if !at.Before(from) && !at.After(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveDate().Before(out[j].EffectiveDate()) })
	return out, nil
}

func (s *Store) ListAchievements(_ context.Context, actorID crm.ActorID) ([]crm.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crm.Achievement
	for _, a := range s.achievements {
		if a.ActorID == actorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateAchievementStatus(_ context.Context, id string, status crm.AchievementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.achievements[id]
	if !ok {
		return crm.ErrAchievementNotFound
	}
	if !a.CanTransition(status) {
		return &crm.TransitionError{AchievementID: id, From: a.Status, To: status}
	}
	a.Status = status
	s.achievements[id] = a
	return nil
}

func (s *Store) DeleteAchievementCascade(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.achievements[id]
	if !ok {
		return false, crm.ErrAchievementNotFound
	}
	delete(s.achievements, id)
	// Drop the dependent commission row for the affected week; the recalc
	// job rebuilds it from the surviving records.
	year, week := calendar.YearWeek(a.EffectiveDate())
	delete(s.commissions, commissionKey{a.ActorID, year, week})
	return true, nil
}

// =============================================================================
// MEETINGS
// =============================================================================

func (s *Store) SaveMeeting(_ context.Context, m crm.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[m.ID] = m
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (*crm.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) ListMeetingsByActor(_ context.Context, actorID crm.ActorID) ([]crm.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crm.Meeting
	for _, m := range s.meetings {
		if m.ActorID == actorID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) UpdateMeetingStatus(_ context.Context, id string, status crm.MeetingStatus, converted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return crm.ErrMeetingNotFound
	}
	m.Status = status
	m.Converted = converted
	s.meetings[id] = m
	return nil
}

func (s *Store) CountActiveMeetings(_ context.Context, actorIDs []crm.ActorID) (map[crm.ActorID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[crm.ActorID]int, len(actorIDs))
	for _, id := range actorIDs {
		counts[id] = 0
	}
	for _, m := range s.meetings {
		if _, wanted := counts[m.ActorID]; wanted && m.Active() {
			counts[m.ActorID]++
		}
	}
	return counts, nil
}

func (s *Store) HasConflict(_ context.Context, actorID crm.ActorID, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.meetings {
		if m.ActorID == actorID && m.Active() && m.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ConversionStats(_ context.Context, actorIDs []crm.ActorID) (map[crm.ActorID][2]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[crm.ActorID][2]int, len(actorIDs))
	for _, id := range actorIDs {
		stats[id] = [2]int{}
	}
	for _, m := range s.meetings {
		st, wanted := stats[m.ActorID]
		if !wanted || m.Status != crm.MeetingCompleted {
			continue
		}
		if m.Converted {
			st[0]++
		}
		st[1]++
		stats[m.ActorID] = st
	}
	return stats, nil
}

// =============================================================================
// COMMISSION ROWS
// =============================================================================

func (s *Store) UpsertCommission(_ context.Context, row crm.CommissionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commissions[commissionKey{row.ActorID, row.Year, row.Week}] = row
	return nil
}

func (s *Store) GetCommission(_ context.Context, actorID crm.ActorID, year, week int) (*crm.CommissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.commissions[commissionKey{actorID, year, week}]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *Store) ListCommissions(_ context.Context, actorID crm.ActorID, year int) ([]crm.CommissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crm.CommissionRow
	for k, row := range s.commissions {
		if k.ActorID == actorID && k.Year == year {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out, nil
}

// =============================================================================
// MONTH CLOSURES
// =============================================================================

func (s *Store) SaveClosure(_ context.Context, c crm.MonthClosure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closures[closureKey{c.Year, c.Month}] = c
	return nil
}

func (s *Store) GetClosure(_ context.Context, year int, month time.Month) (*crm.MonthClosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.closures[closureKey{year, month}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListClosures(_ context.Context) ([]crm.MonthClosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crm.MonthClosure, 0, len(s.closures))
	for _, c := range s.closures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// =============================================================================
// SELECTION PROCEDURE - Mirrors store/sqlite.SelectSalesperson
// =============================================================================

// SelectSalesperson runs the assignment decision against in-memory state,
// the same way the SQLite store does against SQL. Having both backends
// implement it keeps the API's divergence comparison testable without a
// database.
func (s *Store) SelectSalesperson(ctx context.Context, candidateIDs []crm.ActorID, start, end time.Time) (scheduling.Selection, error) {
	counts, err := s.CountActiveMeetings(ctx, candidateIDs)
	if err != nil {
		return scheduling.Selection{}, err
	}
	stats, err := s.ConversionStats(ctx, candidateIDs)
	if err != nil {
		return scheduling.Selection{}, err
	}

	pool := make([]scheduling.Candidate, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		actor, err := s.GetActor(ctx, id)
		if err != nil {
			return scheduling.Selection{}, err
		}
		if actor == nil || !actor.Active {
			continue
		}
		conflict, err := s.HasConflict(ctx, id, start, end)
		if err != nil {
			return scheduling.Selection{}, err
		}
		st := stats[id]
		pool = append(pool, scheduling.Candidate{
			ActorID:        id,
			OutsideHours:   !actor.CoversWindow(start, end),
			Conflicting:    conflict,
			ActiveMeetings: counts[id],
			Converted:      st[0],
			Attended:       st[1],
		})
	}
	return scheduling.Pick(pool), nil
}
