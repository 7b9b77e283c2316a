package domain

import (
	"math"
	"time"
)

type Action string

const (
	ActionNoSpray         Action = "No Spray"
	ActionPreventiveSpray Action = "Preventive Spray"
	ActionTargetedSpray   Action = "Targeted Spray"
	ActionHeavySpray      Action = "Heavy Spray"
	ActionDelaySpray      Action = "Delay Spray"
)

// Color is the card colour the UI paints behind the action.
func (a Action) Color() string {
	switch a {
	case ActionPreventiveSpray:
		return "#f39c12"
	case ActionHeavySpray:
		return "#e74c3c"
	case ActionDelaySpray:
		return "#3498db"
	default:
		return "#2ecc71"
	}
}

type InfectionLabel string

const (
	LabelLow      InfectionLabel = "Low"
	LabelMild     InfectionLabel = "Mild"
	LabelModerate InfectionLabel = "Moderate"
	LabelSevere   InfectionLabel = "Severe"
)

type WeatherSample struct {
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Condition   string    `json:"condition"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type Decision struct {
	Action          Action `json:"action"`
	Reason          string `json:"reason"`
	DurationSeconds int    `json:"duration_seconds"`
}

// ShouldSpray reports whether the sprayer runs at all. Delay Spray suppresses
// spraying even when the severity-derived duration is non-zero.
func (d Decision) ShouldSpray() bool {
	return d.DurationSeconds > 0 && d.Action != ActionDelaySpray
}

type Health struct {
	Percent float64 `json:"percent"`
	Status  string  `json:"status"`
}

// HealthFor derives the plant health meter from the infection severity.
func HealthFor(severity float64) Health {
	h := math.Round((100-severity)*100) / 100
	switch {
	case h > 80:
		return Health{Percent: h, Status: "Healthy"}
	case h > 50:
		return Health{Percent: h, Status: "Moderate Condition"}
	default:
		return Health{Percent: h, Status: "Poor Condition"}
	}
}

type Analysis struct {
	ID             string         `json:"id"`
	OriginalName   string         `json:"original_name"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	Severity       float64        `json:"severity"`
	Label          InfectionLabel `json:"label"`
	Health         Health         `json:"health"`
	Decision       Decision       `json:"decision"`
	ActionColor    string         `json:"action_color"`
	Spray          bool           `json:"spray"`
	Weather        WeatherSample  `json:"weather"`
	OverlayDataURL string         `json:"overlay_data_url,omitempty"`
	OverlayKey     string         `json:"overlay_key,omitempty"`
	AnalyzedAt     time.Time      `json:"analyzed_at"`
}
