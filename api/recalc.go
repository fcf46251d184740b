/*
recalc.go - Background commission recalculation

PURPOSE:
  Recomputes commission rows whenever their inputs change (sale enrolled or
  deleted, target edited, tier table replaced) and on a periodic tick.
  Writes go through the store; the cache is refreshed for the
  affected keys so dashboard reads never serve stale payouts for long.

SCOPES:
  TriggerWeek:  one actor, one week   (sale/target edits)
  TriggerMonth: one actor, one month  (target seeding)
  TriggerAll:   every active actor, current week (tier-table replacement)

DESIGN:
  - Triggers are fire-and-forget: handlers never block on recomputation.
  - A periodic ticker re-runs the all-active scope to pick up lost triggers.
  - Closed months are recomputed through the snapshot source, so a stray
    trigger against a closed month reproduces the frozen figures instead
    of corrupting them.

USAGE:
  job := NewRecalcJob(store, cacheBackend)
  job.Start()
  defer job.Stop()
  job.TriggerWeek("sp-1", 2025, 33)

SEE ALSO:
  - commission/calculator.go: The computation itself
  - closure/source.go: Snapshot-aware configuration
  - cache/cache.go: The cache being refreshed
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vendaops/sales-engine/cache"
	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/closure"
	"github.com/vendaops/sales-engine/commission"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/scheduling"
)

// Selector is the store-side salesperson selection procedure. Both bundled
// store implementations provide it.
type Selector interface {
	SelectSalesperson(ctx context.Context, candidateIDs []crm.ActorID, start, end time.Time) (scheduling.Selection, error)
}

// RecalcJob recomputes and caches commission rows in the background.
type RecalcJob struct {
	Store         crm.Store
	Cache         cache.CommissionCache
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRecalcJob creates a job with a 1 hour periodic sweep.
func NewRecalcJob(store crm.Store, c cache.CommissionCache) *RecalcJob {
	if c == nil {
		c = cache.Noop{}
	}
	return &RecalcJob{
		Store:         store,
		Cache:         c,
		CheckInterval: 1 * time.Hour,
		stop:          make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (j *RecalcJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.ticker = time.NewTicker(j.CheckInterval)
	j.wg.Add(1)
	go j.run()
	log.Printf("[Recalc] Started with sweep interval: %v", j.CheckInterval)
}

// Stop halts the periodic sweep. In-flight triggers finish on their own.
func (j *RecalcJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker != nil {
		j.ticker.Stop()
		close(j.stop)
		j.wg.Wait()
		log.Println("[Recalc] Stopped")
	}
}

func (j *RecalcJob) run() {
	defer j.wg.Done()
	for {
		select {
		case <-j.ticker.C:
			j.recalcAll(context.Background())
		case <-j.stop:
			return
		}
	}
}

// =============================================================================
// TRIGGERS - Fire-and-forget entry points for handlers
// =============================================================================

// TriggerWeek recomputes one actor's week in the background.
func (j *RecalcJob) TriggerWeek(actorID crm.ActorID, year, week int) {
	go func() {
		if err := j.RecalcWeek(context.Background(), actorID, year, week); err != nil {
			log.Printf("[Recalc] week %d/%d for %s: %v", year, week, actorID, err)
		}
	}()
}

// TriggerMonth recomputes one actor's month in the background.
func (j *RecalcJob) TriggerMonth(actorID crm.ActorID, year int, month time.Month) {
	go func() {
		if err := j.RecalcMonth(context.Background(), actorID, year, month); err != nil {
			log.Printf("[Recalc] month %d-%02d for %s: %v", year, month, actorID, err)
		}
	}()
}

// TriggerAll recomputes the current week for every active actor.
func (j *RecalcJob) TriggerAll() {
	go j.recalcAll(context.Background())
}

// =============================================================================
// SYNCHRONOUS CORE - Also called directly by tests
// =============================================================================

func (j *RecalcJob) calculator() *commission.Calculator {
	return &commission.Calculator{
		Achievements: j.Store,
		Config:       closure.NewSource(j.Store),
	}
}

// RecalcWeek recomputes, persists and re-caches one (actor, year, week).
func (j *RecalcJob) RecalcWeek(ctx context.Context, actorID crm.ActorID, year, week int) error {
	actor, err := j.Store.GetActor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor == nil {
		return crm.ErrActorNotFound
	}

	row, err := j.calculator().ComputeWeek(ctx, *actor, calendar.WeekByNumber(year, week))
	if err != nil {
		return err
	}
	if err := j.Store.UpsertCommission(ctx, row); err != nil {
		return err
	}
	if err := j.Cache.Set(ctx, row); err != nil {
		// Cache failure is not a recalc failure; invalidate so the stale
		// entry cannot outlive the TTL.
		_ = j.Cache.Invalidate(ctx, actorID, year, week)
	}
	return nil
}

// RecalcMonth recomputes every business week of (year, month) for one actor.
func (j *RecalcJob) RecalcMonth(ctx context.Context, actorID crm.ActorID, year int, month time.Month) error {
	for _, w := range calendar.WeeksInMonth(year, month) {
		if err := j.RecalcWeek(ctx, actorID, w.Year, w.Number); err != nil {
			return err
		}
	}
	return nil
}

func (j *RecalcJob) recalcAll(ctx context.Context) {
	actors, err := j.Store.ListActiveActors(ctx)
	if err != nil {
		log.Printf("[Recalc] list actors: %v", err)
		return
	}
	year, week := calendar.YearWeek(time.Now().UTC())
	for _, a := range actors {
		if err := j.RecalcWeek(ctx, a.ID, year, week); err != nil {
			log.Printf("[Recalc] current week for %s: %v", a.ID, err)
		}
	}
}
