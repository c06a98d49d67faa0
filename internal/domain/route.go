package domain

// Coordinate is a single WGS84 point in the {lat, lng} wire shape used by
// the risk-scoring service and the frontend map.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteGeometry is an ordered polyline in travel order. A usable geometry
// has at least two points.
type RouteGeometry struct {
	Coordinates []Coordinate `json:"coordinates"`
}

// Risk levels use the ordinal encoding returned by the scoring service.
const (
	RiskLow    = 0
	RiskMedium = 1
	RiskHigh   = 2
)

// RiskLevelFromText maps the optimal-path response's textual level onto the
// same ordinals the score-routes response already uses. Ordinals are the only
// representation rendering logic handles.
func RiskLevelFromText(level string) int {
	switch level {
	case "HIGH":
		return RiskHigh
	case "MEDIUM":
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskLevelText is the inverse mapping, used for display and persistence.
func RiskLevelText(level int) string {
	switch level {
	case RiskHigh:
		return "HIGH"
	case RiskMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Risk modes and route modes accepted by the analysis API.
const (
	ModeLive    = "live"
	ModeMonsoon = "monsoon"

	RouteModeSafest       = "safest"
	RouteModeShortestSafe = "shortest_safe"
)

// ValidMode reports whether m is a known risk mode.
func ValidMode(m string) bool {
	return m == ModeLive || m == ModeMonsoon
}

// ValidRouteMode reports whether m is a known route mode.
func ValidRouteMode(m string) bool {
	return m == RouteModeSafest || m == RouteModeShortestSafe
}

// RouteAnalysisResult describes one candidate route after scoring, or the
// single merged optimal path when the route mode is shortest_safe.
type RouteAnalysisResult struct {
	RouteIndex int      `json:"route_index"`
	Severity   float64  `json:"severity"`
	RiskLevel  int      `json:"risk_level"`
	Insights   []string `json:"insights,omitempty"`
	DistanceKm float64  `json:"distance_km,omitempty"`
	IsOptimal  bool     `json:"is_optimal"`
}

// AnalysisSession identifies one user-triggered analysis run. Generation is
// monotonically increasing across sessions; results carrying a superseded
// generation are discarded at the point they arrive.
type AnalysisSession struct {
	ID          string
	Generation  uint64
	Start       string
	Destination string
	Mode        string
	RouteMode   string
}

// AnalysisOutcome is the published result set of the newest completed session.
type AnalysisOutcome struct {
	Generation       uint64                `json:"generation"`
	Mode             string                `json:"mode"`
	RouteMode        string                `json:"route_mode"`
	RecommendedRoute int                   `json:"recommended_route"`
	Routes           []RouteAnalysisResult `json:"routes"`
	Start            Coordinate            `json:"start"`
	Destination      Coordinate            `json:"destination"`
}
