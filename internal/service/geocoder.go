package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safenav/backend/internal/cache"
	"github.com/safenav/backend/internal/domain"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

// How long a resolved place stays cached. Place names do not move.
const geocodeTTL = 30 * time.Minute

// Geocoder resolves free-text place names to coordinates via the
// OpenRouteService geocoding API.
type Geocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewGeocoder creates a new geocoder. An empty baseURL selects the public
// OpenRouteService endpoint.
func NewGeocoder(apiKey, baseURL string, c *cache.Cache) *Geocoder {
	if baseURL == "" {
		baseURL = defaultORSBaseURL
	}
	return &Geocoder{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: c,
	}
}

type orsGeocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode resolves place to a coordinate using the first match. A miss is a
// defined failure (domain.ErrLocationNotFound), not an exception.
func (g *Geocoder) Geocode(ctx context.Context, place string) (domain.Coordinate, error) {
	key := "geocode:" + strings.ToLower(strings.TrimSpace(place))
	if g.cache != nil {
		var cached domain.Coordinate
		if ok, _ := g.cache.Get(key, &cached); ok {
			return cached, nil
		}
	}

	u := fmt.Sprintf("%s/geocode/search?text=%s&size=1", g.baseURL, url.QueryEscape(place))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoder: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinate{}, fmt.Errorf("geocoder: status %d", resp.StatusCode)
	}

	var result orsGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoder: failed to decode response: %w", err)
	}

	if len(result.Features) == 0 || len(result.Features[0].Geometry.Coordinates) < 2 {
		return domain.Coordinate{}, fmt.Errorf("geocoder: %q: %w", place, domain.ErrLocationNotFound)
	}

	// ORS returns [lng, lat].
	coords := result.Features[0].Geometry.Coordinates
	coord := domain.Coordinate{Lat: coords[1], Lng: coords[0]}

	if g.cache != nil {
		_ = g.cache.Set(key, coord, geocodeTTL)
	}
	return coord, nil
}
