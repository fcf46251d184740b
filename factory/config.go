/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON team-configuration documents into crm.Level ladders and
  crm.TierRule tables. This enables compensation configuration without code
  changes - sales operations can define ladders and tier tables in JSON,
  and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify compensation plans
  - Easy integration with an admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "kind": "salesperson",
    "levels": [
      {
        "name": "mid_salesperson",
        "weekly_target_quantity": 10,
        "weekly_variable_pay": "400",
        "monthly_base_pay": "4500",
        "advance_pay": "750"
      }
    ],
    "tier_rules": [
      {"percent_min": 60,  "percent_max": 79,  "multiplier": "0.5"},
      {"percent_min": 80,  "percent_max": 99,  "multiplier": "1.0"},
      {"percent_min": 100, "percent_max": 999, "multiplier": "1.5"}
    ]
  }

VALIDATION:
  Structural validation via go-playground/validator tags, then domain
  checks the tags cannot express: known actor kind, decimal-parsable pay
  fields, non-inverted percentage ranges, and no overlapping ranges
  (boundary sharing like 80-100/100-999 is allowed; resolution sends the
  boundary to the higher tier).

USAGE:
  f := factory.New()
  cfg, err := f.ParseTeamConfig(jsonStr)
  if err != nil { ... }
  for _, l := range cfg.Levels { store.SaveLevel(ctx, l) }
  store.ReplaceRules(ctx, cfg.Kind, cfg.Rules)

SEE ALSO:
  - team/presets.go: Go-based preset configurations
  - crm/types.go: Level and TierRule definitions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vendaops/sales-engine/crm"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TeamConfigJSON is the JSON representation of one actor kind's plan.
type TeamConfigJSON struct {
	Kind      string          `json:"kind" validate:"required"`
	Levels    []LevelJSON     `json:"levels" validate:"omitempty,dive"`
	TierRules []TierRuleJSON  `json:"tier_rules" validate:"omitempty,min=1,dive"`
}

// LevelJSON represents one rung of a level ladder.
type LevelJSON struct {
	Name                 string `json:"name" validate:"required"`
	WeeklyTargetQuantity int    `json:"weekly_target_quantity" validate:"gte=0"`
	WeeklyVariablePay    string `json:"weekly_variable_pay" validate:"required"`
	MonthlyBasePay       string `json:"monthly_base_pay,omitempty"`
	AdvancePay           string `json:"advance_pay,omitempty"`
}

// TierRuleJSON represents one percentage band.
type TierRuleJSON struct {
	PercentMin int    `json:"percent_min" validate:"gte=0"`
	PercentMax int    `json:"percent_max" validate:"gte=0"`
	Multiplier string `json:"multiplier" validate:"required"`
}

// TeamConfig is the parsed, validated result.
type TeamConfig struct {
	Kind   crm.ActorKind
	Levels []crm.Level
	Rules  []crm.TierRule
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory parses and validates team-configuration JSON.
type Factory struct {
	validate *validator.Validate
}

// New creates a configuration factory.
func New() *Factory {
	return &Factory{validate: validator.New()}
}

// ParseTeamConfig converts a JSON document into levels and tier rules.
func (f *Factory) ParseTeamConfig(jsonStr string) (*TeamConfig, error) {
	var doc TeamConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return nil, fmt.Errorf("invalid team config JSON: %w", err)
	}
	if err := f.validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("team config validation: %w", err)
	}

	kind := crm.ActorKind(doc.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", crm.ErrInvalidKind, doc.Kind)
	}

	cfg := &TeamConfig{Kind: kind}

	for _, l := range doc.Levels {
		lvl, err := parseLevel(kind, l)
		if err != nil {
			return nil, err
		}
		cfg.Levels = append(cfg.Levels, lvl)
	}

	for _, r := range doc.TierRules {
		rule, err := parseRule(kind, r)
		if err != nil {
			return nil, err
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	if err := checkRanges(cfg.Rules); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(kind crm.ActorKind, l LevelJSON) (crm.Level, error) {
	variable, err := decimal.NewFromString(l.WeeklyVariablePay)
	if err != nil {
		return crm.Level{}, fmt.Errorf("level %q: weekly_variable_pay: %w", l.Name, err)
	}
	base, err := optionalDecimal(l.MonthlyBasePay)
	if err != nil {
		return crm.Level{}, fmt.Errorf("level %q: monthly_base_pay: %w", l.Name, err)
	}
	advance, err := optionalDecimal(l.AdvancePay)
	if err != nil {
		return crm.Level{}, fmt.Errorf("level %q: advance_pay: %w", l.Name, err)
	}
	return crm.Level{
		Name:                 l.Name,
		Kind:                 kind,
		WeeklyTargetQuantity: l.WeeklyTargetQuantity,
		WeeklyVariablePay:    variable,
		MonthlyBasePay:       base,
		AdvancePay:           advance,
	}, nil
}

func parseRule(kind crm.ActorKind, r TierRuleJSON) (crm.TierRule, error) {
	mult, err := decimal.NewFromString(r.Multiplier)
	if err != nil {
		return crm.TierRule{}, fmt.Errorf("tier rule %d-%d: multiplier: %w", r.PercentMin, r.PercentMax, err)
	}
	if r.PercentMax < r.PercentMin {
		return crm.TierRule{}, fmt.Errorf("tier rule %d-%d: inverted range", r.PercentMin, r.PercentMax)
	}
	return crm.TierRule{
		Kind:       kind,
		PercentMin: r.PercentMin,
		PercentMax: r.PercentMax,
		Multiplier: mult,
	}, nil
}

// checkRanges rejects tables where two rules overlap beyond a shared
// boundary. A shared boundary is fine; resolution sends it to the higher
// tier.
func checkRanges(rules []crm.TierRule) error {
	for i, a := range rules {
		for _, b := range rules[i+1:] {
			if a.PercentMin < b.PercentMax && b.PercentMin < a.PercentMax {
				return fmt.Errorf("tier rules %d-%d and %d-%d overlap",
					a.PercentMin, a.PercentMax, b.PercentMin, b.PercentMax)
			}
		}
	}
	return nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
