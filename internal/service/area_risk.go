package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/safenav/backend/internal/domain"
	"github.com/safenav/backend/internal/mapstate"
	"github.com/safenav/backend/pkg/utils"
)

// Fallback area when the search text is empty.
const defaultArea = "Mumbai"

var defaultAreaCenter = domain.Coordinate{Lat: 19.076, Lng: 72.8777}

// AreaRiskService fetches live environmental snapshots for a searched area
// and keeps the heat overlay on the map surface in sync. It runs on its own
// timeline, independent of the route pipeline; the two mutate disjoint map
// layers.
type AreaRiskService struct {
	serviceURL string
	weatherKey string
	httpClient *http.Client
	geocoder   GeoResolver
	surface    *mapstate.MapSurface
	clock      clockwork.Clock

	mu       sync.Mutex
	snapshot *domain.AreaRiskSnapshot
	overlay  string
}

// NewAreaRiskService creates a new area-risk service. Pass nil for the real
// clock.
func NewAreaRiskService(serviceURL, weatherKey string, geocoder GeoResolver, surface *mapstate.MapSurface, clock clockwork.Clock) *AreaRiskService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AreaRiskService{
		serviceURL: serviceURL,
		weatherKey: weatherKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		geocoder: geocoder,
		surface:  surface,
		clock:    clock,
		overlay:  domain.OverlayFlood,
	}
}

// FetchSnapshot retrieves the live snapshot for an area, defaulting to
// Mumbai when the text is empty. The stored snapshot is replaced wholesale
// on success; on failure the previous one stays displayed. When the
// collaborator fails and nothing is displayed yet, a fallback snapshot is
// derived locally so the panel is never empty.
func (s *AreaRiskService) FetchSnapshot(ctx context.Context, areaText string) (domain.AreaRiskSnapshot, error) {
	area := strings.TrimSpace(areaText)
	if area == "" {
		area = defaultArea
	}

	snap, err := s.fetchRemote(ctx, area)
	if err != nil {
		log.Printf("area risk: fetch for %q failed: %v", area, err)

		s.mu.Lock()
		previous := s.snapshot
		s.mu.Unlock()
		if previous != nil {
			return *previous, nil
		}

		snap = s.fallbackSnapshot(ctx, area)
	}

	if len(snap.HeatmapPoints) == 0 {
		snap.HeatmapPoints = synthesizeHeatPoints(domain.Coordinate{Lat: snap.Lat, Lng: snap.Lng}, snap.RiskScore)
	}

	s.mu.Lock()
	s.snapshot = &snap
	overlay := s.overlay
	s.mu.Unlock()

	s.renderHeat(snap, overlay)
	return snap, nil
}

// Snapshot returns the last stored snapshot, if any.
func (s *AreaRiskService) Snapshot() *domain.AreaRiskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	snap := *s.snapshot
	return &snap
}

// SetOverlay switches the active heat overlay kind. The switch is a full
// heat-layer replacement, never a stack.
func (s *AreaRiskService) SetOverlay(kind string) error {
	if !domain.ValidOverlay(kind) {
		return fmt.Errorf("%w: unknown overlay %q", domain.ErrInvalidInput, kind)
	}

	s.mu.Lock()
	s.overlay = kind
	snap := s.snapshot
	s.mu.Unlock()

	if snap != nil {
		s.renderHeat(*snap, kind)
	}
	return nil
}

func (s *AreaRiskService) fetchRemote(ctx context.Context, area string) (domain.AreaRiskSnapshot, error) {
	u := fmt.Sprintf("%s/area-risk?location=%s", s.serviceURL, url.QueryEscape(area))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.AreaRiskSnapshot{}, fmt.Errorf("area risk: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.AreaRiskSnapshot{}, fmt.Errorf("area risk: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.AreaRiskSnapshot{}, fmt.Errorf("area risk: status %d", resp.StatusCode)
	}

	var snap domain.AreaRiskSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return domain.AreaRiskSnapshot{}, fmt.Errorf("area risk: failed to decode response: %w", err)
	}

	if snap.Area == "" {
		snap.Area = area
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.clock.Now()
	}
	return snap, nil
}

// fallbackSnapshot derives a snapshot locally: geocode the area, read live
// rain and humidity from OpenWeatherMap, and map them onto the 0-10 score.
// Without an API key the snapshot is simulated from the season.
func (s *AreaRiskService) fallbackSnapshot(ctx context.Context, area string) domain.AreaRiskSnapshot {
	center := defaultAreaCenter
	if s.geocoder != nil {
		if coord, err := s.geocoder.Geocode(ctx, area); err == nil {
			center = coord
		}
	}

	if s.weatherKey == "" {
		return s.mockSnapshot(area, center)
	}

	rain, humidity, err := s.fetchWeather(ctx, center)
	if err != nil {
		log.Printf("area risk: weather fallback failed: %v", err)
		return s.mockSnapshot(area, center)
	}

	score := utils.Clamp(rain*1.2+humidity/20, 0, 10)
	snap := domain.AreaRiskSnapshot{
		Area:      area,
		Lat:       center.Lat,
		Lng:       center.Lng,
		RiskLevel: riskLevelForScore(score),
		RiskScore: utils.RoundTo(score, 1),
		LiveRain:  rain,
		Humidity:  humidity,
		Warnings:  warningsForConditions(rain, humidity),
		Timestamp: s.clock.Now(),
	}
	snap.HeatmapPoints = synthesizeHeatPoints(center, snap.RiskScore)
	return snap
}

type openWeatherResponse struct {
	Main struct {
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

func (s *AreaRiskService) fetchWeather(ctx context.Context, at domain.Coordinate) (rain, humidity float64, err error) {
	u := fmt.Sprintf(
		"https://api.openweathermap.org/data/2.5/weather?lat=%f&lon=%f&appid=%s&units=metric",
		at.Lat, at.Lng, s.weatherKey,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("weather: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("weather: status %d", resp.StatusCode)
	}

	var owResp openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owResp); err != nil {
		return 0, 0, fmt.Errorf("weather: failed to decode response: %w", err)
	}
	return owResp.Rain.OneHour, owResp.Main.Humidity, nil
}

// mockSnapshot returns a simulated seasonal snapshot, monsoon-aware.
func (s *AreaRiskService) mockSnapshot(area string, center domain.Coordinate) domain.AreaRiskSnapshot {
	now := s.clock.Now()
	month := now.Month()

	var rain, humidity, score float64
	var warnings []string
	if month >= time.June && month <= time.September { // Monsoon
		rain = 8.5
		humidity = 88
		score = 7.0
		warnings = []string{
			"Heavy monsoon rainfall expected in low-lying areas",
			"Underpasses and arterial roads prone to waterlogging",
		}
	} else {
		rain = 0.4
		humidity = 62
		score = 2.5
		warnings = []string{"No active flood warnings for this area"}
	}

	snap := domain.AreaRiskSnapshot{
		Area:      area,
		Lat:       center.Lat,
		Lng:       center.Lng,
		RiskLevel: riskLevelForScore(score),
		RiskScore: score,
		LiveRain:  rain,
		Humidity:  humidity,
		Warnings:  warnings,
		Timestamp: now,
		IsMock:    true,
	}
	snap.HeatmapPoints = synthesizeHeatPoints(center, score)
	return snap
}

func (s *AreaRiskService) renderHeat(snap domain.AreaRiskSnapshot, kind string) {
	s.surface.EnsureBaseMap(mapstate.DefaultCenter, mapstate.DefaultZoom)

	var layer mapstate.HeatLayer
	switch kind {
	case domain.OverlayRain:
		layer = mapstate.HeatLayer{
			Kind:    kind,
			TileURL: fmt.Sprintf("https://tile.openweathermap.org/map/precipitation_new/{z}/{x}/{y}.png?appid=%s", s.weatherKey),
		}
	case domain.OverlayHumidity:
		center := domain.Coordinate{Lat: snap.Lat, Lng: snap.Lng}
		layer = mapstate.HeatLayer{
			Kind:   kind,
			Points: uniformHeatPoints(center, snap.Humidity/100),
			Radius: 40,
			Blur:   20,
		}
	default:
		layer = mapstate.HeatLayer{
			Kind:   domain.OverlayFlood,
			Points: snap.HeatmapPoints,
			Radius: 25,
			Blur:   15,
		}
	}
	s.surface.SetHeatLayer(layer)
}

func riskLevelForScore(score float64) string {
	switch {
	case score >= 7:
		return "High"
	case score >= 4:
		return "Medium"
	default:
		return "Low"
	}
}

func warningsForConditions(rain, humidity float64) []string {
	var warnings []string
	if rain >= 10 {
		warnings = append(warnings, "Intense rainfall right now, avoid low-lying routes")
	} else if rain >= 2.5 {
		warnings = append(warnings, "Moderate rainfall, waterlogging possible near drains")
	}
	if humidity >= 85 {
		warnings = append(warnings, "Very high humidity, heavy showers likely")
	}
	if len(warnings) == 0 {
		warnings = append(warnings, "No active flood warnings for this area")
	}
	return warnings
}

// synthesizeHeatPoints scatters weighted points around the center with
// intensity dropping linearly toward a ~1.5km radius.
func synthesizeHeatPoints(center domain.Coordinate, score float64) []domain.HeatmapPoint {
	intensity := utils.Clamp(score/10, 0, 1)
	points := make([]domain.HeatmapPoint, 0, 51)
	points = append(points, domain.HeatmapPoint{Lat: center.Lat, Lng: center.Lng, Intensity: intensity})

	for i := 0; i < 50; i++ {
		lat := center.Lat + (rand.Float64()-0.5)*0.02
		lng := center.Lng + (rand.Float64()-0.5)*0.02
		dist := utils.Haversine(center.Lat, center.Lng, lat, lng)
		points = append(points, domain.HeatmapPoint{
			Lat:       lat,
			Lng:       lng,
			Intensity: utils.RoundTo(utils.Falloff(intensity, dist, 1.5), 2),
		})
	}
	return points
}

// uniformHeatPoints spreads near-constant intensity over a wider area, for
// the humidity overlay.
func uniformHeatPoints(center domain.Coordinate, intensity float64) []domain.HeatmapPoint {
	intensity = utils.Clamp(intensity, 0, 1)
	points := make([]domain.HeatmapPoint, 0, 100)
	for i := 0; i < 100; i++ {
		points = append(points, domain.HeatmapPoint{
			Lat:       center.Lat + (rand.Float64()-0.5)*0.05,
			Lng:       center.Lng + (rand.Float64()-0.5)*0.05,
			Intensity: utils.RoundTo(intensity, 2),
		})
	}
	return points
}
