package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/safenav/backend/internal/domain"
)

// How many alternative geometries to ask the provider for.
const alternativeTargetCount = 2

// RouteFetcher retrieves candidate route geometries from the
// OpenRouteService directions API.
type RouteFetcher struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewRouteFetcher creates a new route fetcher. An empty baseURL selects the
// public OpenRouteService endpoint.
func NewRouteFetcher(apiKey, baseURL string) *RouteFetcher {
	if baseURL == "" {
		baseURL = defaultORSBaseURL
	}
	return &RouteFetcher{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type orsDirectionsRequest struct {
	Coordinates       [][]float64 `json:"coordinates"` // [[lng, lat] x2]
	AlternativeRoutes struct {
		TargetCount int `json:"target_count"`
	} `json:"alternative_routes"`
	GeometrySimplify bool `json:"geometry_simplify"`
	Instructions     bool `json:"instructions"`
	Elevation        bool `json:"elevation"`
	Geometry         bool `json:"geometry"`
}

type orsDirectionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat] pairs
		} `json:"geometry"`
	} `json:"features"`
}

// FetchRoutes requests candidate geometries between start and end, asking
// for alternatives. Coordinates arrive as [lng, lat] and are reversed to the
// internal {lat, lng} order. Zero usable features is domain.ErrNoRouteFound.
func (f *RouteFetcher) FetchRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteGeometry, error) {
	reqBody := orsDirectionsRequest{
		Coordinates: [][]float64{
			{start.Lng, start.Lat},
			{end.Lng, end.Lat},
		},
		Geometry: true,
	}
	reqBody.AlternativeRoutes.TargetCount = alternativeTargetCount

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("routes: failed to marshal request: %w", err)
	}

	u := f.baseURL + "/v2/directions/driving-car/geojson"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("routes: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routes: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("routes: status %d: %s", resp.StatusCode, body)
	}

	var result orsDirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("routes: failed to decode response: %w", err)
	}

	geometries := make([]domain.RouteGeometry, 0, len(result.Features))
	for _, feature := range result.Features {
		if len(feature.Geometry.Coordinates) < 2 {
			continue
		}
		points := make([]domain.Coordinate, 0, len(feature.Geometry.Coordinates))
		for _, c := range feature.Geometry.Coordinates {
			if len(c) < 2 {
				continue
			}
			points = append(points, domain.Coordinate{Lat: c[1], Lng: c[0]})
		}
		geometries = append(geometries, domain.RouteGeometry{Coordinates: points})
	}

	if len(geometries) == 0 {
		return nil, domain.ErrNoRouteFound
	}
	return geometries, nil
}
