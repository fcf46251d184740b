/*
Package closure freezes a month's configuration so historical payout figures
stay stable.

PURPOSE:
  Tier rules, levels and targets change over time. Without closure, editing
  a rule in September would silently rewrite August's payouts. Closing a
  month snapshots serialized copies of:

    - the weekly targets of that month's business weeks
    - the tier-rule tables
    - the level definitions
    - the active membership

  Once a month is closed, every computation scoped to it reads the snapshot
  fields instead of live tables. That is the one true invariant enforcing
  immutability of closed months.

LIFECYCLE:
  Close:  open -> closed, taking the snapshot. Closing twice is an error.
  Reopen: closed -> open. Only RoleDirector may reopen. The snapshot row is
          kept - only the closed-ness is discarded.

SEE ALSO:
  - source.go: Snapshot-aware ConfigSource for the commission calculator
  - crm/types.go: MonthClosure
*/
package closure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// SNAPSHOT PAYLOADS - What gets serialized at closure time
// =============================================================================

type targetSnapshot struct {
	ActorID        crm.ActorID `json:"actor_id"`
	Year           int         `json:"year"`
	Week           int         `json:"week"`
	TargetQuantity int         `json:"target_quantity"`
}

type memberSnapshot struct {
	ActorID crm.ActorID   `json:"actor_id"`
	Kind    crm.ActorKind `json:"kind"`
	Level   string        `json:"level"`
}

// =============================================================================
// MANAGER - Close and reopen
// =============================================================================

// Manager drives the month-closure lifecycle.
type Manager struct {
	Store crm.Store
}

// Close snapshots (year, month) and marks it closed. Closing an already
// closed month returns ErrMonthClosed.
func (m *Manager) Close(ctx context.Context, year int, month time.Month, closedBy string) (*crm.MonthClosure, error) {
	existing, err := m.Store.GetClosure(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("close %d-%02d: %w", year, month, err)
	}
	if existing != nil && existing.Closed() {
		return nil, crm.ErrMonthClosed
	}

	actors, err := m.Store.ListActiveActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("close %d-%02d: list actors: %w", year, month, err)
	}

	// Targets for the month's business weeks, per active actor.
	weeks := calendar.WeeksInMonth(year, month)
	inMonth := make(map[int]bool, len(weeks))
	for _, w := range weeks {
		inMonth[w.Number] = true
	}
	var targets []targetSnapshot
	var members []memberSnapshot
	for _, a := range actors {
		members = append(members, memberSnapshot{ActorID: a.ID, Kind: a.Kind, Level: a.Level})
		rows, err := m.Store.ListTargets(ctx, a.ID, year)
		if err != nil {
			return nil, fmt.Errorf("close %d-%02d: targets for %s: %w", year, month, a.ID, err)
		}
		for _, t := range rows {
			if inMonth[t.Week] {
				targets = append(targets, targetSnapshot{
					ActorID: t.ActorID, Year: t.Year, Week: t.Week, TargetQuantity: t.TargetQuantity,
				})
			}
		}
	}

	rules, err := m.Store.ListAllRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("close %d-%02d: list rules: %w", year, month, err)
	}
	levels, err := m.Store.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("close %d-%02d: list levels: %w", year, month, err)
	}

	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return nil, err
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}
	levelsJSON, err := json.Marshal(levels)
	if err != nil {
		return nil, err
	}
	membersJSON, err := json.Marshal(members)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := crm.MonthClosure{
		Year:           year,
		Month:          month,
		Status:         crm.ClosureClosed,
		TargetsJSON:    string(targetsJSON),
		TierRulesJSON:  string(rulesJSON),
		LevelsJSON:     string(levelsJSON),
		MembershipJSON: string(membersJSON),
		ClosedAt:       &now,
		ClosedBy:       closedBy,
	}
	if err := m.Store.SaveClosure(ctx, c); err != nil {
		return nil, fmt.Errorf("close %d-%02d: save: %w", year, month, err)
	}
	return &c, nil
}

// Reopen reverts (year, month) to open. Only RoleDirector may do this.
// The snapshot columns are preserved.
func (m *Manager) Reopen(ctx context.Context, year int, month time.Month, role crm.Role) (*crm.MonthClosure, error) {
	if role != crm.RoleDirector {
		return nil, crm.ErrRoleForbidden
	}
	existing, err := m.Store.GetClosure(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("reopen %d-%02d: %w", year, month, err)
	}
	if existing == nil || !existing.Closed() {
		return nil, crm.ErrMonthNotClosed
	}

	existing.Status = crm.ClosureOpen
	if err := m.Store.SaveClosure(ctx, *existing); err != nil {
		return nil, fmt.Errorf("reopen %d-%02d: save: %w", year, month, err)
	}
	return existing, nil
}
