/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags; handlers run
  them through the shared validator before touching the store. Domain
  checks the tags cannot express (kind validity, time ordering) stay in
  the handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: TeamConfigJSON, accepted verbatim on the config route
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/crm"
	"github.com/vendaops/sales-engine/scheduling"
)

// =============================================================================
// ACTORS
// =============================================================================

// ActorDTO represents a team member in API responses.
type ActorDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Kind          string `json:"kind"`
	Level         string `json:"level,omitempty"`
	Active        bool   `json:"active"`
	WorkStartHour int    `json:"work_start_hour,omitempty"`
	WorkEndHour   int    `json:"work_end_hour,omitempty"`
	Weekdays      []int  `json:"weekdays,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// CreateActorRequest creates a team member. ID is generated when omitted.
type CreateActorRequest struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string `json:"phone,omitempty"`
	Kind          string `json:"kind" validate:"required"`
	Level         string `json:"level,omitempty"`
	WorkStartHour int    `json:"work_start_hour,omitempty" validate:"gte=0,lte=23"`
	WorkEndHour   int    `json:"work_end_hour,omitempty" validate:"gte=0,lte=24"`
	// Weekdays the actor works, 0=Sunday .. 6=Saturday. Empty means Mon-Fri.
	Weekdays []int `json:"weekdays,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
}

func actorDTO(a crm.Actor) ActorDTO {
	dto := ActorDTO{
		ID:            string(a.ID),
		Name:          a.Name,
		Email:         a.Email,
		Phone:         a.Phone,
		Kind:          string(a.Kind),
		Level:         a.Level,
		Active:        a.Active,
		WorkStartHour: a.WorkStartHour,
		WorkEndHour:   a.WorkEndHour,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	for _, d := range a.Weekdays {
		dto.Weekdays = append(dto.Weekdays, int(d))
	}
	return dto
}

// =============================================================================
// TARGETS
// =============================================================================

// TargetDTO is one weekly goal row.
type TargetDTO struct {
	ActorID        string `json:"actor_id"`
	Year           int    `json:"year"`
	Week           int    `json:"week"`
	TargetQuantity int    `json:"target_quantity"`
	UpdatedAt      string `json:"updated_at"`
	UpdatedBy      string `json:"updated_by,omitempty"`
}

// UpsertTargetRequest writes or supersedes one weekly goal.
type UpsertTargetRequest struct {
	Year           int    `json:"year" validate:"required,gte=2000"`
	Week           int    `json:"week" validate:"required,gte=1,lte=53"`
	TargetQuantity int    `json:"target_quantity" validate:"gte=0"`
	UpdatedBy      string `json:"updated_by,omitempty"`
}

// SeedTargetsRequest derives a month of goals from the actor's level.
type SeedTargetsRequest struct {
	Year      int  `json:"year" validate:"required,gte=2000"`
	Month     int  `json:"month" validate:"required,gte=1,lte=12"`
	Overwrite bool `json:"overwrite,omitempty"`
}

func targetDTO(t crm.WeeklyTarget) TargetDTO {
	return TargetDTO{
		ActorID:        string(t.ActorID),
		Year:           t.Year,
		Week:           t.Week,
		TargetQuantity: t.TargetQuantity,
		UpdatedAt:      t.UpdatedAt.Format(time.RFC3339),
		UpdatedBy:      t.UpdatedBy,
	}
}

// =============================================================================
// LEVELS & TIER RULES
// =============================================================================

// LevelDTO is one seniority level's pay package.
type LevelDTO struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	WeeklyTarget      int    `json:"weekly_target"`
	WeeklyVariablePay string `json:"weekly_variable_pay"`
	MonthlyBasePay    string `json:"monthly_base_pay"`
	AdvancePay        string `json:"advance_pay"`
}

// TierRuleDTO is one percent-range multiplier row.
type TierRuleDTO struct {
	Kind       string `json:"kind"`
	PercentMin int    `json:"percent_min"`
	PercentMax int    `json:"percent_max"`
	Multiplier string `json:"multiplier"`
	OpenEnded  bool   `json:"open_ended"`
}

func levelDTO(l crm.Level) LevelDTO {
	return LevelDTO{
		Name:              l.Name,
		Kind:              string(l.Kind),
		WeeklyTarget:      l.WeeklyTargetQuantity,
		WeeklyVariablePay: l.WeeklyVariablePay.String(),
		MonthlyBasePay:    l.MonthlyBasePay.String(),
		AdvancePay:        l.AdvancePay.String(),
	}
}

func tierRuleDTO(r crm.TierRule) TierRuleDTO {
	return TierRuleDTO{
		Kind:       string(r.Kind),
		PercentMin: r.PercentMin,
		PercentMax: r.PercentMax,
		Multiplier: r.Multiplier.String(),
		OpenEnded:  r.OpenEnded(),
	}
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// CommissionDTO is one computed weekly payout row.
type CommissionDTO struct {
	ActorID     string `json:"actor_id"`
	Kind        string `json:"kind"`
	Year        int    `json:"year"`
	Week        int    `json:"week"`
	Points      int    `json:"points"`
	Target      int    `json:"target"`
	Percent     int    `json:"percent"`
	Multiplier  string `json:"multiplier"`
	VariablePay string `json:"variable_pay"`
	Payout      string `json:"payout"`
	ComputedAt  string `json:"computed_at"`
	FromCache   bool   `json:"from_cache,omitempty"`
}

func commissionDTO(row crm.CommissionRow, cached bool) CommissionDTO {
	return CommissionDTO{
		ActorID:     string(row.ActorID),
		Kind:        string(row.Kind),
		Year:        row.Year,
		Week:        row.Week,
		Points:      row.Points,
		Target:      row.Target,
		Percent:     row.Percent,
		Multiplier:  row.Multiplier.String(),
		VariablePay: row.VariablePay.String(),
		Payout:      row.Payout.String(),
		ComputedAt:  row.ComputedAt.Format(time.RFC3339),
		FromCache:   cached,
	}
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// AchievementDTO is one sale record.
type AchievementDTO struct {
	ID            string `json:"id"`
	ActorID       string `json:"actor_id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Quantity      int    `json:"quantity"`
	EffectiveAt   string `json:"effective_at"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// CreateAchievementRequest submits a sale record.
type CreateAchievementRequest struct {
	ID               string `json:"id,omitempty"`
	ActorID          string `json:"actor_id" validate:"required"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
	ContractSignedAt string `json:"contract_signed_at,omitempty"`
	ApprovedAt       string `json:"approved_at,omitempty"`
	SubmittedAt      string `json:"submitted_at,omitempty"` // Defaults to now
	CustomerName     string `json:"customer_name,omitempty"`
	CustomerEmail    string `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone    string `json:"customer_phone,omitempty"`
}

// TransitionRequest moves a sale record between statuses.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=enrolled withdrawn"`
}

// LinkRequest asks for the sale records matching a meeting's customer.
type LinkRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LinkResultDTO is one fuzzy-match hit.
type LinkResultDTO struct {
	Achievement AchievementDTO `json:"achievement"`
	Pass        string         `json:"pass"`
	Score       float64        `json:"score"`
}

func achievementDTO(a crm.Achievement) AchievementDTO {
	return AchievementDTO{
		ID:            a.ID,
		ActorID:       string(a.ActorID),
		Kind:          string(a.Kind),
		Status:        string(a.Status),
		Quantity:      a.Quantity,
		EffectiveAt:   a.EffectiveDate().Format(time.RFC3339),
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		CustomerPhone: a.CustomerPhone,
	}
}

// =============================================================================
// MEETINGS & ASSIGNMENT
// =============================================================================

// MeetingDTO is one appointment.
type MeetingDTO struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Status    string `json:"status"`
	Converted bool   `json:"converted"`
}

// CreateMeetingRequest books a meeting. When ActorID is empty the engine
// assigns a salesperson automatically.
type CreateMeetingRequest struct {
	ID      string `json:"id,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
}

// UpdateMeetingRequest completes or cancels a meeting.
type UpdateMeetingRequest struct {
	Status    string `json:"status" validate:"required,oneof=completed cancelled"`
	Converted bool   `json:"converted,omitempty"`
}

// AssignmentDTO is the outcome of an automatic assignment.
type AssignmentDTO struct {
	Meeting        *MeetingDTO           `json:"meeting,omitempty"`
	Assigned       bool                  `json:"assigned"`
	ActorID        string                `json:"actor_id,omitempty"`
	ConversionRate string                `json:"conversion_rate,omitempty"`
	Diagnostic     scheduling.Diagnostic `json:"diagnostic"`
}

// PreviewAssignmentRequest runs the selection for a window without booking.
type PreviewAssignmentRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func meetingDTO(m crm.Meeting) MeetingDTO {
	return MeetingDTO{
		ID:        m.ID,
		ActorID:   string(m.ActorID),
		Start:     m.Start.Format(time.RFC3339),
		End:       m.End.Format(time.RFC3339),
		Status:    string(m.Status),
		Converted: m.Converted,
	}
}

// =============================================================================
// CALENDAR
// =============================================================================

// WeekDTO is one business week.
type WeekDTO struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Index  int    `json:"index"`
	Number int    `json:"number"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// =============================================================================
// CLOSURES
// =============================================================================

// ClosureDTO is one month-closure row, snapshots elided.
type ClosureDTO struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Status   string `json:"status"`
	ClosedAt string `json:"closed_at,omitempty"`
	ClosedBy string `json:"closed_by,omitempty"`
}

// CloseMonthRequest closes (year, month).
type CloseMonthRequest struct {
	Year     int    `json:"year" validate:"required,gte=2000"`
	Month    int    `json:"month" validate:"required,gte=1,lte=12"`
	ClosedBy string `json:"closed_by" validate:"required"`
}

// ReopenMonthRequest reopens a closed month. Role is checked server-side.
type ReopenMonthRequest struct {
	Year  int    `json:"year" validate:"required,gte=2000"`
	Month int    `json:"month" validate:"required,gte=1,lte=12"`
	Role  string `json:"role" validate:"required"`
}

func closureDTO(c crm.MonthClosure) ClosureDTO {
	dto := ClosureDTO{
		Year:     c.Year,
		Month:    int(c.Month),
		Status:   string(c.Status),
		ClosedBy: c.ClosedBy,
	}
	if c.ClosedAt != nil {
		dto.ClosedAt = c.ClosedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// RECALCULATION
// =============================================================================

// RecalcRequest triggers a background recalculation. Scope:
//   - actor_id + year + week:  one actor, one week
//   - actor_id + year + month: one actor, every week of the month
//   - empty:                   every active actor, current week
type RecalcRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Year    int    `json:"year,omitempty"`
	Week    int    `json:"week,omitempty"`
	Month   int    `json:"month,omitempty" validate:"omitempty,gte=1,lte=12"`
}

// =============================================================================
// DIVERGENCES
// =============================================================================

// DivergenceDTO is one recorded client/server assignment disagreement.
type DivergenceDTO struct {
	At     string `json:"at"`
	Start  string `json:"window_start"`
	End    string `json:"window_end"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

func divergenceDTO(d scheduling.Divergence) DivergenceDTO {
	deref := func(id *crm.ActorID) string {
		if id == nil {
			return ""
		}
		return string(*id)
	}
	return DivergenceDTO{
		At:     d.At.Format(time.RFC3339),
		Start:  d.Window[0].Format(time.RFC3339),
		End:    d.Window[1].Format(time.RFC3339),
		Local:  deref(d.Local),
		Remote: deref(d.Remote),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorDTO is the uniform error envelope.
type ErrorDTO struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func rateString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
