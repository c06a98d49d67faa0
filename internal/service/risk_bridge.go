package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/safenav/backend/internal/domain"
)

// RiskBridge handles communication with the Python risk-scoring service.
// Two request shapes run against the same service: per-route scoring and
// the merged shortest-safe-path computation.
type RiskBridge struct {
	serviceURL string
	httpClient *http.Client
}

// NewRiskBridge creates a new risk bridge.
func NewRiskBridge(serviceURL string) *RiskBridge {
	return &RiskBridge{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type riskRouteEntry struct {
	Coordinates [][]float64 `json:"coordinates"` // [[lat, lng], ...]
}

type riskRequest struct {
	Routes []riskRouteEntry `json:"routes"`
	Mode   string           `json:"mode"`
}

// ScoredRoute is one candidate's score from the scoring service. RiskLevel
// arrives already in ordinal form.
type ScoredRoute struct {
	RouteIndex int      `json:"route_index"`
	Severity   float64  `json:"severity"`
	RiskLevel  int      `json:"risk_level"`
	Insights   []string `json:"insights,omitempty"`
}

// ScoreResult is the scoring service's answer for a candidate set.
type ScoreResult struct {
	Mode             string        `json:"mode"`
	Routes           []ScoredRoute `json:"routes"`
	RecommendedRoute int           `json:"recommended_route"`
}

// OptimalResult is the shortest-safe-path service's answer. RiskLevel is
// textual on this wire shape; callers normalize it to the ordinal form.
type OptimalResult struct {
	Success    bool        `json:"success"`
	Path       [][]float64 `json:"path"` // [[lat, lng], ...]
	TotalRisk  float64     `json:"total_risk"`
	RiskLevel  string      `json:"risk_level"` // "HIGH" | "MEDIUM" | "LOW"
	Insights   []string    `json:"insights"`
	DistanceKm float64     `json:"distance_km"`
	Mode       string      `json:"mode"`
}

// PathGeometry converts the merged path into the internal geometry shape.
func (r OptimalResult) PathGeometry() domain.RouteGeometry {
	points := make([]domain.Coordinate, 0, len(r.Path))
	for _, c := range r.Path {
		if len(c) < 2 {
			continue
		}
		points = append(points, domain.Coordinate{Lat: c[0], Lng: c[1]})
	}
	return domain.RouteGeometry{Coordinates: points}
}

// ScoreRoutes submits all candidate geometries for per-route scoring.
func (b *RiskBridge) ScoreRoutes(ctx context.Context, routes []domain.RouteGeometry, mode string) (ScoreResult, error) {
	var result ScoreResult
	if err := b.post(ctx, "/score-routes", routes, mode, &result); err != nil {
		return ScoreResult{}, fmt.Errorf("risk_bridge: score routes: %w", err)
	}
	return result, nil
}

// OptimalPath submits all candidate geometries for the merged
// shortest-safe-path computation.
func (b *RiskBridge) OptimalPath(ctx context.Context, routes []domain.RouteGeometry, mode string) (OptimalResult, error) {
	var result OptimalResult
	if err := b.post(ctx, "/dijkstra-multi-route", routes, mode, &result); err != nil {
		return OptimalResult{}, fmt.Errorf("risk_bridge: optimal path: %w", err)
	}
	return result, nil
}

func (b *RiskBridge) post(ctx context.Context, path string, routes []domain.RouteGeometry, mode string, out any) error {
	payload := riskRequest{
		Routes: make([]riskRouteEntry, 0, len(routes)),
		Mode:   mode,
	}
	for _, route := range routes {
		entry := riskRouteEntry{Coordinates: make([][]float64, 0, len(route.Coordinates))}
		for _, c := range route.Coordinates {
			entry.Coordinates = append(entry.Coordinates, []float64{c.Lat, c.Lng})
		}
		payload.Routes = append(payload.Routes, entry)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.serviceURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
