package decision

import (
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

// Rules holds the fixed thresholds of the spraying decision table.
type Rules struct {
	RainConditions []string

	NoSprayBelow    float64
	PreventiveBelow float64
	TargetedBelow   float64
	HumidityAbove   int

	// spray durations in seconds per severity band, low to high
	Durations [4]int
}

func DefaultRules() Rules {
	return Rules{
		RainConditions:  []string{"Rain", "Thunderstorm", "Drizzle"},
		NoSprayBelow:    10,
		PreventiveBelow: 30,
		TargetedBelow:   60,
		HumidityAbove:   75,
		Durations:       [4]int{0, 3, 6, 10},
	}
}

type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) raining(condition string) bool {
	for _, c := range e.rules.RainConditions {
		if c == condition {
			return true
		}
	}
	return false
}

// Decide walks the rule table top to bottom and returns the first match.
// Rain-like weather overrides severity. temperature is accepted for callers
// but no rule reads it.
func (e *Engine) Decide(severity float64, humidity int, temperature float64, condition string) (domain.Action, string) {
	switch {
	case e.raining(condition):
		return domain.ActionDelaySpray, "Rain will wash pesticide"
	case severity < e.rules.NoSprayBelow:
		return domain.ActionNoSpray, "Low infection"
	case severity < e.rules.PreventiveBelow && humidity > e.rules.HumidityAbove:
		return domain.ActionPreventiveSpray, "High humidity spreads fungus"
	case severity < e.rules.TargetedBelow:
		return domain.ActionTargetedSpray, "Moderate infection"
	default:
		return domain.ActionHeavySpray, "Severe infection"
	}
}

// SprayDuration depends on severity only; the Delay Spray override is applied
// by Decision.ShouldSpray.
func (e *Engine) SprayDuration(severity float64) int {
	switch {
	case severity < e.rules.NoSprayBelow:
		return e.rules.Durations[0]
	case severity < e.rules.PreventiveBelow:
		return e.rules.Durations[1]
	case severity < e.rules.TargetedBelow:
		return e.rules.Durations[2]
	default:
		return e.rules.Durations[3]
	}
}

func (e *Engine) Evaluate(severity float64, w domain.WeatherSample) domain.Decision {
	action, reason := e.Decide(severity, w.Humidity, w.Temperature, w.Condition)
	return domain.Decision{
		Action:          action,
		Reason:          reason,
		DurationSeconds: e.SprayDuration(severity),
	}
}
