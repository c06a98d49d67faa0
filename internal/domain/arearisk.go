package domain

import "time"

// HeatmapPoint is a single weighted point for heat overlay rendering.
type HeatmapPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"` // 0-1
}

// Heat overlay kinds. Switching the active kind replaces the heat layer
// wholesale; overlays never stack.
const (
	OverlayFlood    = "flood"
	OverlayRain     = "rain"
	OverlayHumidity = "humidity"
)

// ValidOverlay reports whether kind names a known heat overlay.
func ValidOverlay(kind string) bool {
	return kind == OverlayFlood || kind == OverlayRain || kind == OverlayHumidity
}

// AreaRiskSnapshot is the live environmental picture for a searched area.
// It is replaced wholesale on every successful poll; there is no partial merge.
type AreaRiskSnapshot struct {
	Area          string         `json:"area"`
	Lat           float64        `json:"lat"`
	Lng           float64        `json:"lng"`
	RiskLevel     string         `json:"risk_level"` // "Low", "Medium", "High"
	RiskScore     float64        `json:"risk_score"` // 0-10
	LiveRain      float64        `json:"live_rain"`  // mm/h
	Humidity      float64        `json:"humidity"`   // percent
	Warnings      []string       `json:"warnings"`
	HeatmapPoints []HeatmapPoint `json:"heatmap_points"`
	Timestamp     time.Time      `json:"timestamp"`
	IsMock        bool           `json:"is_mock,omitempty"`
}
