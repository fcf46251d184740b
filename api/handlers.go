/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements every API endpoint: team management, weekly targets,
  compensation configuration, sale records (with fuzzy linking and cascade
  deletion), meeting booking with automatic assignment, commission reads,
  month closure and recalculation triggers.

ASSIGNMENT FLOW (POST /api/meetings with no actor_id):
  1. Build the candidate pool (active salespeople) with availability flags.
  2. Run the pure local picker.
  3. Run the store-side selection procedure over the same pool.
  4. Compare. A mismatch is recorded in the divergence log and returned as
     a 500 - never silently reconciled.
  5. Persist the meeting against the agreed winner, or return 200 with
     assigned=false plus the diagnostic when no one qualifies.

CASCADE DELETE (DELETE /api/achievements/{id}):
  The store deletes the record and its dependent commission row in one
  transaction, then the handler re-reads the record. A record that
  survives a successful delete is reported as a consistency error, because
  trusting the store's return value alone has burned us before.

COMMISSION READS:
  Cache first (1h TTL), store on miss, cache fill on the way out.

SEE ALSO:
  - dto.go: Request/response shapes
  - recalc.go: Background recalculation job
  - server.go: Route table
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vendaops/sales-engine/calendar"
	"github.com/vendaops/sales-engine/closure"
	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/factory"
	"github.com/vendaops/sales-engine/scheduling"
	"github.com/vendaops/sales-engine/team"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       crm.Store
	Selector    Selector
	Factory     *factory.Factory
	Closures    *closure.Manager
	Recalc      *RecalcJob
	Divergences *scheduling.DivergenceLog

	validate *validator.Validate
}

// NewHandler wires a handler around a store whose implementation also
// provides the selection procedure (both bundled stores do).
func NewHandler(store crm.Store, selector Selector, recalc *RecalcJob) *Handler {
	return &Handler{
		Store:       store,
		Selector:    selector,
		Factory:     factory.New(),
		Closures:    &closure.Manager{Store: store},
		Recalc:      recalc,
		Divergences: scheduling.NewDivergenceLog(256),
		validate:    validator.New(),
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// ACTOR HANDLERS
// =============================================================================

// ListActors returns the whole team.
func (h *Handler) ListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.Store.ListActors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actors", err)
		return
	}
	dtos := make([]ActorDTO, len(actors))
	for i, a := range actors {
		dtos[i] = actorDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActor returns a single team member.
func (h *Handler) GetActor(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, actorDTO(*actor))
}

// CreateActor creates a team member.
func (h *Handler) CreateActor(w http.ResponseWriter, r *http.Request) {
	var req CreateActorRequest
	if !h.decode(w, r, &req) {
		return
	}

	kind := crm.ActorKind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown actor kind", crm.ErrInvalidKind)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var weekdays []time.Weekday
	for _, d := range req.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}

	actor := crm.Actor{
		ID:            crm.ActorID(req.ID),
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Kind:          kind,
		Level:         req.Level,
		Active:        true,
		WorkStartHour: req.WorkStartHour,
		WorkEndHour:   req.WorkEndHour,
		Weekdays:      weekdays,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.Store.SaveActor(r.Context(), actor); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create actor", err)
		return
	}
	writeJSON(w, http.StatusCreated, actorDTO(actor))
}

func (h *Handler) loadActor(w http.ResponseWriter, r *http.Request) (*crm.Actor, bool) {
	id := crm.ActorID(chi.URLParam(r, "id"))
	actor, err := h.Store.GetActor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load actor", err)
		return nil, false
	}
	if actor == nil {
		writeError(w, http.StatusNotFound, "Actor not found", crm.ErrActorNotFound)
		return nil, false
	}
	return actor, true
}

// =============================================================================
// TARGET HANDLERS
// =============================================================================

// ListTargets returns an actor's weekly goals for ?year.
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	year := queryInt(r, "year", time.Now().UTC().Year())

	targets, err := h.Store.ListTargets(r.Context(), actor.ID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list targets", err)
		return
	}
	dtos := make([]TargetDTO, len(targets))
	for i, t := range targets {
		dtos[i] = targetDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertTarget writes or supersedes one weekly goal, then recalculates the
// affected week in the background.
func (h *Handler) UpsertTarget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	var req UpsertTargetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if closed, err := h.monthClosed(r, req.Year, req.Week); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check closure", err)
		return
	} else if closed {
		writeError(w, http.StatusConflict, "Month is closed", crm.ErrMonthClosed)
		return
	}

	target := crm.WeeklyTarget{
		ActorID:        actor.ID,
		Year:           req.Year,
		Week:           req.Week,
		TargetQuantity: req.TargetQuantity,
		UpdatedAt:      time.Now().UTC(),
		UpdatedBy:      req.UpdatedBy,
	}
	if err := h.Store.UpsertTarget(r.Context(), target); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save target", err)
		return
	}
	h.Recalc.TriggerWeek(actor.ID, req.Year, req.Week)
	writeJSON(w, http.StatusOK, targetDTO(target))
}

// SeedTargets derives a month of goals from the actor's level.
func (h *Handler) SeedTargets(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	var req SeedTargetsRequest
	if !h.decode(w, r, &req) {
		return
	}

	written, err := team.SeedTargets(r.Context(), h.Store, *actor, req.Year, time.Month(req.Month), req.Overwrite)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, crm.ErrLevelNotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to seed targets", err)
		return
	}
	h.Recalc.TriggerMonth(actor.ID, req.Year, time.Month(req.Month))
	writeJSON(w, http.StatusOK, map[string]int{"written": written})
}

// monthClosed reports whether the month owning (year, week) is closed.
func (h *Handler) monthClosed(r *http.Request, year, week int) (bool, error) {
	w := calendar.WeekByNumber(year, week)
	c, err := h.Store.GetClosure(r.Context(), w.Year, w.Month)
	if err != nil {
		return false, err
	}
	return c != nil && c.Closed(), nil
}

// =============================================================================
// CONFIGURATION HANDLERS
// =============================================================================

// PutTeamConfig applies a JSON compensation plan (levels + tier table) for
// one actor kind.
func (h *Handler) PutTeamConfig(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg, err := h.Factory.ParseTeamConfig(string(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team config", err)
		return
	}

	for _, l := range cfg.Levels {
		if err := h.Store.SaveLevel(r.Context(), l); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save level", err)
			return
		}
	}
	if len(cfg.Rules) > 0 {
		if err := h.Store.ReplaceRules(r.Context(), cfg.Kind, cfg.Rules); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to replace tier rules", err)
			return
		}
	}
	h.Recalc.TriggerAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":   string(cfg.Kind),
		"levels": len(cfg.Levels),
		"rules":  len(cfg.Rules),
	})
}

// ListLevels returns every configured seniority level.
func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.Store.ListLevels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list levels", err)
		return
	}
	dtos := make([]LevelDTO, len(levels))
	for i, l := range levels {
		dtos[i] = levelDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTierRules returns the tier table, optionally filtered by ?kind.
func (h *Handler) ListTierRules(w http.ResponseWriter, r *http.Request) {
	var rules []crm.TierRule
	var err error
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind := crm.ActorKind(raw)
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown actor kind", crm.ErrInvalidKind)
			return
		}
		rules, err = h.Store.ListRules(r.Context(), kind)
	} else {
		rules, err = h.Store.ListAllRules(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tier rules", err)
		return
	}
	dtos := make([]TierRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = tierRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SeedPresets loads the built-in ladders and tier tables.
func (h *Handler) SeedPresets(w http.ResponseWriter, r *http.Request) {
	if err := team.Seed(r.Context(), h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed presets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// =============================================================================
// ACHIEVEMENT HANDLERS
// =============================================================================

// CreateAchievement submits a sale record (status pending).
func (h *Handler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	var req CreateAchievementRequest
	if !h.decode(w, r, &req) {
		return
	}

	actor, err := h.Store.GetActor(r.Context(), crm.ActorID(req.ActorID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load actor", err)
		return
	}
	if actor == nil {
		writeError(w, http.StatusNotFound, "Actor not found", crm.ErrActorNotFound)
		return
	}

	submittedAt := time.Now().UTC()
	if req.SubmittedAt != "" {
		if submittedAt, err = time.Parse(time.RFC3339, req.SubmittedAt); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid submitted_at (RFC3339)", err)
			return
		}
	}
	contractAt, err := parseOptionalTime(req.ContractSignedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract_signed_at (RFC3339)", err)
		return
	}
	approvedAt, err := parseOptionalTime(req.ApprovedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid approved_at (RFC3339)", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	a := crm.Achievement{
		ID:               req.ID,
		ActorID:          actor.ID,
		Kind:             actor.Kind,
		Status:           crm.StatusPending,
		Quantity:         req.Quantity,
		ContractSignedAt: contractAt,
		ApprovedAt:       approvedAt,
		SubmittedAt:      submittedAt,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Store.SaveAchievement(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save achievement", err)
		return
	}
	writeJSON(w, http.StatusCreated, achievementDTO(a))
}

// TransitionAchievement enrolls or withdraws a pending record, then
// recalculates the affected week.
func (h *Handler) TransitionAchievement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Store.UpdateAchievementStatus(r.Context(), id, crm.AchievementStatus(req.Status))
	if err != nil {
		switch {
		case crm.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Achievement not found", err)
		case errors.Is(err, crm.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "Transition not allowed", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update status", err)
		}
		return
	}

	a, err := h.Store.GetAchievement(r.Context(), id)
	if err != nil || a == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload achievement", err)
		return
	}
	year, week := calendar.YearWeek(a.EffectiveDate())
	h.Recalc.TriggerWeek(a.ActorID, year, week)
	writeJSON(w, http.StatusOK, achievementDTO(*a))
}

// DeleteAchievement cascade-deletes a sale record, then verifies the
// deletion actually happened before reporting success.
func (h *Handler) DeleteAchievement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	before, err := h.Store.GetAchievement(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load achievement", err)
		return
	}
	if before == nil {
		writeError(w, http.StatusNotFound, "Achievement not found", crm.ErrAchievementNotFound)
		return
	}

	reported, err := h.Store.DeleteAchievementCascade(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete achievement", err)
		return
	}

	// Post-condition check: the record must be gone regardless of what the
	// cascade reported.
	after, err := h.Store.GetAchievement(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify deletion", err)
		return
	}
	if after != nil {
		cerr := &crm.ConsistencyError{
			Operation: "achievement_cascade_delete",
			EntityID:  id,
			Detail:    "record survived a delete that reported success",
			At:        time.Now().UTC(),
		}
		log.Printf("[API] CONSISTENCY: %v (reported=%v)", cerr, reported)
		writeError(w, http.StatusInternalServerError, "Deletion did not take effect", cerr)
		return
	}

	year, week := calendar.YearWeek(before.EffectiveDate())
	h.Recalc.TriggerWeek(before.ActorID, year, week)
	w.WriteHeader(http.StatusNoContent)
}

// ListAchievements returns an actor's sale records.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	records, err := h.Store.ListAchievements(r.Context(), actor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list achievements", err)
		return
	}
	dtos := make([]AchievementDTO, len(records))
	for i, a := range records {
		dtos[i] = achievementDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LinkAchievements fuzzy-matches customer details against an actor's sale
// records.
func (h *Handler) LinkAchievements(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	candidates, err := h.Store.ListAchievements(r.Context(), crm.ActorID(req.ActorID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list achievements", err)
		return
	}

	results := scheduling.Link(scheduling.LinkQuery{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}, candidates)

	dtos := make([]LinkResultDTO, len(results))
	for i, res := range results {
		dtos[i] = LinkResultDTO{
			Achievement: achievementDTO(res.Achievement),
			Pass:        string(res.Pass),
			Score:       res.Score,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MEETING HANDLERS
// =============================================================================

// CreateMeeting books a meeting. Without an explicit actor_id the engine
// picks one salesperson deterministically and cross-checks the store-side
// procedure.
func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req CreateMeetingRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (RFC3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (RFC3339)", err)
		return
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "Meeting must start before it ends", nil)
		return
	}

	var assignee crm.ActorID
	var assignment *AssignmentDTO
	if req.ActorID != "" {
		actor, err := h.Store.GetActor(r.Context(), crm.ActorID(req.ActorID))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load actor", err)
			return
		}
		if actor == nil {
			writeError(w, http.StatusNotFound, "Actor not found", crm.ErrActorNotFound)
			return
		}
		assignee = actor.ID
	} else {
		sel, dto, err := h.autoAssign(r, start, end)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Assignment diverged", err)
			return
		}
		if sel == nil {
			// Nobody qualifies: explain, don't guess.
			writeJSON(w, http.StatusOK, dto)
			return
		}
		assignee = *sel
		assignment = dto
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	meeting := crm.Meeting{
		ID:        req.ID,
		ActorID:   assignee,
		Start:     start.UTC(),
		End:       end.UTC(),
		Status:    crm.MeetingScheduled,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveMeeting(r.Context(), meeting); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save meeting", err)
		return
	}

	dto := meetingDTO(meeting)
	if assignment != nil {
		assignment.Meeting = &dto
		writeJSON(w, http.StatusCreated, assignment)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// autoAssign runs the double-sided selection. Returns the winner (nil when
// no one qualifies) and the assignment report.
func (h *Handler) autoAssign(r *http.Request, start, end time.Time) (*crm.ActorID, *AssignmentDTO, error) {
	ctx := r.Context()
	actors, err := h.Store.ListActiveActors(ctx)
	if err != nil {
		return nil, nil, err
	}

	var ids []crm.ActorID
	var pool []scheduling.Candidate
	counts := map[crm.ActorID]int{}
	stats := map[crm.ActorID][2]int{}
	for _, a := range actors {
		if a.Kind != crm.KindSalesperson {
			continue
		}
		ids = append(ids, a.ID)
	}
	if counts, err = h.Store.CountActiveMeetings(ctx, ids); err != nil {
		return nil, nil, err
	}
	if stats, err = h.Store.ConversionStats(ctx, ids); err != nil {
		return nil, nil, err
	}
	for _, a := range actors {
		if a.Kind != crm.KindSalesperson {
			continue
		}
		conflict, err := h.Store.HasConflict(ctx, a.ID, start, end)
		if err != nil {
			return nil, nil, err
		}
		st := stats[a.ID]
		pool = append(pool, scheduling.Candidate{
			ActorID:        a.ID,
			OutsideHours:   !a.CoversWindow(start, end),
			Conflicting:    conflict,
			ActiveMeetings: counts[a.ID],
			Converted:      st[0],
			Attended:       st[1],
		})
	}

	local := scheduling.Pick(pool)
	remote, err := h.Selector.SelectSalesperson(ctx, ids, start, end)
	if err != nil {
		return nil, nil, err
	}
	if err := scheduling.Compare(h.Divergences, start, end, local, remote); err != nil {
		return nil, nil, err
	}

	dto := &AssignmentDTO{
		Assigned:   local.ActorID != nil,
		Diagnostic: local.Diagnostic,
	}
	if local.ActorID != nil {
		dto.ActorID = string(*local.ActorID)
		dto.ConversionRate = rateString(local.ConversionRate)
	}
	return local.ActorID, dto, nil
}

// PreviewAssignment runs the selection for a window without booking anything.
func (h *Handler) PreviewAssignment(w http.ResponseWriter, r *http.Request) {
	var req PreviewAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (RFC3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (RFC3339)", err)
		return
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "Window must start before it ends", nil)
		return
	}

	_, dto, err := h.autoAssign(r, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Assignment diverged", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListMeetings returns an actor's meetings.
func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	meetings, err := h.Store.ListMeetingsByActor(r.Context(), actor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list meetings", err)
		return
	}
	dtos := make([]MeetingDTO, len(meetings))
	for i, m := range meetings {
		dtos[i] = meetingDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateMeeting completes or cancels a meeting.
func (h *Handler) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateMeetingRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Store.UpdateMeetingStatus(r.Context(), id, crm.MeetingStatus(req.Status), req.Converted)
	if err != nil {
		if crm.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Meeting not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update meeting", err)
		return
	}

	m, err := h.Store.GetMeeting(r.Context(), id)
	if err != nil || m == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload meeting", err)
		return
	}
	writeJSON(w, http.StatusOK, meetingDTO(*m))
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// GetCommission returns one computed week, cache-first.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	year := queryInt(r, "year", time.Now().UTC().Year())
	week := queryInt(r, "week", 0)
	if week == 0 {
		year, week = calendar.YearWeek(time.Now().UTC())
	}

	if cached, _ := h.Recalc.Cache.Get(r.Context(), actor.ID, year, week); cached != nil {
		writeJSON(w, http.StatusOK, commissionDTO(*cached, true))
		return
	}

	row, err := h.Store.GetCommission(r.Context(), actor.ID, year, week)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load commission", err)
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "No commission computed for this week", nil)
		return
	}
	_ = h.Recalc.Cache.Set(r.Context(), *row)
	writeJSON(w, http.StatusOK, commissionDTO(*row, false))
}

// ListCommissions returns an actor's computed weeks for ?year.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}
	year := queryInt(r, "year", time.Now().UTC().Year())

	rows, err := h.Store.ListCommissions(r.Context(), actor.ID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commissions", err)
		return
	}
	dtos := make([]CommissionDTO, len(rows))
	for i, row := range rows {
		dtos[i] = commissionDTO(row, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListWeeks returns the business weeks of ?year&month.
func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12", nil)
		return
	}

	weeks := calendar.WeeksInMonth(year, time.Month(month))
	dtos := make([]WeekDTO, len(weeks))
	for i, wk := range weeks {
		dtos[i] = WeekDTO{
			Year:   wk.Year,
			Month:  int(wk.Month),
			Index:  wk.Index,
			Number: wk.Number,
			Start:  wk.Start.Format(time.RFC3339),
			End:    wk.End.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CLOSURE HANDLERS
// =============================================================================

// ListClosures returns every closure row.
func (h *Handler) ListClosures(w http.ResponseWriter, r *http.Request) {
	closures, err := h.Store.ListClosures(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list closures", err)
		return
	}
	dtos := make([]ClosureDTO, len(closures))
	for i, c := range closures {
		dtos[i] = closureDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CloseMonth freezes a month's configuration.
func (h *Handler) CloseMonth(w http.ResponseWriter, r *http.Request) {
	var req CloseMonthRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Closures.Close(r.Context(), req.Year, time.Month(req.Month), req.ClosedBy)
	if err != nil {
		if errors.Is(err, crm.ErrMonthClosed) {
			writeError(w, http.StatusConflict, "Month already closed", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to close month", err)
		return
	}
	writeJSON(w, http.StatusOK, closureDTO(*c))
}

// ReopenMonth reverts a closure. Director role required.
func (h *Handler) ReopenMonth(w http.ResponseWriter, r *http.Request) {
	var req ReopenMonthRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Closures.Reopen(r.Context(), req.Year, time.Month(req.Month), crm.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, crm.ErrRoleForbidden):
			writeError(w, http.StatusForbidden, "Only a director may reopen a month", err)
		case errors.Is(err, crm.ErrMonthNotClosed):
			writeError(w, http.StatusConflict, "Month is not closed", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to reopen month", err)
		}
		return
	}
	h.Recalc.TriggerAll()
	writeJSON(w, http.StatusOK, closureDTO(*c))
}

// =============================================================================
// RECALC & DIVERGENCE HANDLERS
// =============================================================================

// TriggerRecalc starts a background recalculation for the requested scope.
func (h *Handler) TriggerRecalc(w http.ResponseWriter, r *http.Request) {
	var req RecalcRequest
	if !h.decode(w, r, &req) {
		return
	}

	switch {
	case req.ActorID != "" && req.Week != 0:
		h.Recalc.TriggerWeek(crm.ActorID(req.ActorID), req.Year, req.Week)
	case req.ActorID != "" && req.Month != 0:
		h.Recalc.TriggerMonth(crm.ActorID(req.ActorID), req.Year, time.Month(req.Month))
	default:
		h.Recalc.TriggerAll()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// ListDivergences returns the retained assignment divergences.
func (h *Handler) ListDivergences(w http.ResponseWriter, r *http.Request) {
	entries := h.Divergences.Entries()
	dtos := make([]DivergenceDTO, len(entries))
	for i, d := range entries {
		dtos[i] = divergenceDTO(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":       h.Divergences.Total(),
		"retained":    len(dtos),
		"divergences": dtos,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	dto := ErrorDTO{Error: msg}
	if err != nil {
		dto.Detail = err.Error()
	}
	writeJSON(w, status, dto)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	u := t.UTC()
	return &u, nil
}
