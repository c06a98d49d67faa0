package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/safenav/backend/internal/domain"
	"github.com/safenav/backend/internal/mapstate"
	"github.com/safenav/backend/internal/observability"
	"github.com/safenav/backend/pkg/utils"
)

// Collaborator interfaces, satisfied by the concrete clients in this package
// and by test doubles.
type GeoResolver interface {
	Geocode(ctx context.Context, place string) (domain.Coordinate, error)
}

type RouteProvider interface {
	FetchRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteGeometry, error)
}

type RiskScorer interface {
	ScoreRoutes(ctx context.Context, routes []domain.RouteGeometry, mode string) (ScoreResult, error)
	OptimalPath(ctx context.Context, routes []domain.RouteGeometry, mode string) (OptimalResult, error)
}

// AnalysisRepository is re-exported from domain for convenience
type AnalysisRepository = domain.AnalysisRepository

// Polyline styles matching what the frontend renders.
var (
	styleOptimal     = mapstate.RouteStyle{Color: "#22c55e", Weight: 6, Opacity: 1}
	styleFaded       = mapstate.RouteStyle{Color: "#94a3b8", Weight: 3, Opacity: 0.3, DashArray: "5,5"}
	styleRecommended = mapstate.RouteStyle{Color: "green", Weight: 5, Opacity: 1}
	styleRisky       = mapstate.RouteStyle{Color: "red", Weight: 5, Opacity: 1, DashArray: "8,6"}
)

// AnalysisController sequences geocoding, route fetching, risk scoring and
// map rendering for every (start, destination, mode) change.
//
// Every call to Analyze starts a new session and bumps the generation
// counter, which logically cancels all older in-flight sessions: their
// provider calls are never aborted, but each session re-checks its
// generation at every resumption point and discards its own results once
// superseded. Only the newest session's data ever reaches the map surface
// or the published result list.
type AnalysisController struct {
	geocoder GeoResolver
	routes   RouteProvider
	risk     RiskScorer
	surface  *mapstate.MapSurface
	repo     AnalysisRepository
	metrics  *observability.Metrics

	generation atomic.Uint64

	mu     sync.Mutex
	latest *domain.AnalysisOutcome

	wgBg sync.WaitGroup // tracks background history writes for graceful shutdown
}

// NewAnalysisController creates a new controller.
func NewAnalysisController(
	geocoder GeoResolver,
	routes RouteProvider,
	risk RiskScorer,
	surface *mapstate.MapSurface,
	repo AnalysisRepository,
	metrics *observability.Metrics,
) *AnalysisController {
	return &AnalysisController{
		geocoder: geocoder,
		routes:   routes,
		risk:     risk,
		surface:  surface,
		repo:     repo,
		metrics:  metrics,
	}
}

// WaitBackground blocks until all background history writes complete.
// Call during graceful shutdown to avoid dropped writes.
func (c *AnalysisController) WaitBackground() {
	c.wgBg.Wait()
}

// Latest returns the most recently published outcome, or nil before any
// session has completed.
func (c *AnalysisController) Latest() *domain.AnalysisOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil
	}
	outcome := *c.latest
	outcome.Routes = append([]domain.RouteAnalysisResult(nil), c.latest.Routes...)
	return &outcome
}

// Analyze runs one analysis session end to end and returns its outcome.
// Empty input is rejected before a session starts. A session displaced by a
// newer one returns domain.ErrSuperseded with no state mutated.
func (c *AnalysisController) Analyze(ctx context.Context, start, destination, mode, routeMode string) (*domain.AnalysisOutcome, error) {
	start = strings.TrimSpace(start)
	destination = strings.TrimSpace(destination)
	if start == "" || destination == "" {
		return nil, fmt.Errorf("%w: start and destination are required", domain.ErrInvalidInput)
	}
	if mode == "" {
		mode = domain.ModeLive
	}
	if routeMode == "" {
		routeMode = domain.RouteModeShortestSafe
	}
	if !domain.ValidMode(mode) {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, mode)
	}
	if !domain.ValidRouteMode(routeMode) {
		return nil, fmt.Errorf("%w: unknown route mode %q", domain.ErrInvalidInput, routeMode)
	}

	session := domain.AnalysisSession{
		ID:          uuid.NewString(),
		Generation:  c.generation.Add(1),
		Start:       start,
		Destination: destination,
		Mode:        mode,
		RouteMode:   routeMode,
	}
	c.metrics.SessionsStarted.Inc()
	started := time.Now()

	outcome, err := c.run(ctx, session)
	if err != nil {
		if errors.Is(err, domain.ErrSuperseded) {
			c.metrics.SessionsSuperseded.Inc()
			return nil, err
		}
		c.metrics.SessionsFailed.WithLabelValues(failureReason(err)).Inc()
		log.Printf("analysis: session %s (%s -> %s) failed: %v", session.ID, start, destination, err)
		return nil, err
	}

	c.metrics.SessionsCompleted.Inc()
	c.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	return outcome, nil
}

func (c *AnalysisController) run(ctx context.Context, session domain.AnalysisSession) (*domain.AnalysisOutcome, error) {
	startCoord, err := c.geocoder.Geocode(ctx, session.Start)
	if err != nil {
		return nil, fmt.Errorf("resolve start: %w", err)
	}
	if c.superseded(session) {
		return nil, domain.ErrSuperseded
	}

	destCoord, err := c.geocoder.Geocode(ctx, session.Destination)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	if c.superseded(session) {
		return nil, domain.ErrSuperseded
	}

	candidates, err := c.routes.FetchRoutes(ctx, startCoord, destCoord)
	if err != nil {
		return nil, fmt.Errorf("fetch routes: %w", err)
	}
	if c.superseded(session) {
		return nil, domain.ErrSuperseded
	}

	var layer mapstate.RouteLayer
	outcome := &domain.AnalysisOutcome{
		Generation:  session.Generation,
		Mode:        session.Mode,
		RouteMode:   session.RouteMode,
		Start:       startCoord,
		Destination: destCoord,
	}

	if session.RouteMode == domain.RouteModeShortestSafe {
		layer, err = c.scoreOptimal(ctx, session, candidates, outcome)
	} else {
		layer, err = c.scoreCandidates(ctx, session, candidates, outcome)
	}
	if err != nil {
		return nil, err
	}
	if c.superseded(session) {
		return nil, domain.ErrSuperseded
	}

	layer.Markers = []mapstate.Marker{
		{Position: startCoord, Kind: "start", Popup: "Start Location"},
		{Position: destCoord, Kind: "destination", Popup: "Destination"},
	}

	c.surface.EnsureBaseMap(mapstate.DefaultCenter, mapstate.DefaultZoom)
	c.surface.ReplaceRouteLayer(layer)
	c.surface.FitBounds(startCoord, destCoord)

	c.mu.Lock()
	c.latest = outcome
	c.mu.Unlock()

	// Persist history asynchronously (tracked for graceful shutdown).
	c.wgBg.Add(1)
	go func() {
		defer c.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if saveErr := c.repo.SaveAnalysis(bgCtx, session, *outcome); saveErr != nil {
			log.Printf("analysis: failed to save history for session %s: %v", session.ID, saveErr)
		}
	}()

	return outcome, nil
}

// scoreOptimal runs the shortest-safe-path branch. A collaborator failure
// (transport error, missing success flag, or empty path) degrades to a
// neutral rendering of all candidates with severity 0 instead of aborting.
func (c *AnalysisController) scoreOptimal(ctx context.Context, session domain.AnalysisSession, candidates []domain.RouteGeometry, outcome *domain.AnalysisOutcome) (mapstate.RouteLayer, error) {
	result, err := c.risk.OptimalPath(ctx, candidates, session.Mode)
	if c.superseded(session) {
		return mapstate.RouteLayer{}, domain.ErrSuperseded
	}

	var layer mapstate.RouteLayer

	if err != nil || !result.Success || len(result.Path) == 0 {
		if err != nil {
			c.metrics.ProviderErrors.WithLabelValues("risk").Inc()
			log.Printf("analysis: optimal path failed, falling back to candidates: %v", err)
		} else {
			log.Printf("analysis: optimal path unavailable, falling back to candidates")
		}

		for i, route := range candidates {
			style := styleRecommended
			if i != 0 {
				style = styleRisky
			}
			layer.Polylines = append(layer.Polylines, mapstate.Polyline{Coordinates: route.Coordinates, Style: style})
			outcome.Routes = append(outcome.Routes, domain.RouteAnalysisResult{
				RouteIndex: i,
				Severity:   0,
				RiskLevel:  domain.RiskLow,
				Insights:   []string{"Route analysis unavailable"},
				DistanceKm: geometryDistanceKm(route),
			})
		}
		outcome.RecommendedRoute = 0
		return layer, nil
	}

	// Optimal path highlighted, original candidates faded behind it.
	layer.Polylines = append(layer.Polylines, mapstate.Polyline{Coordinates: result.PathGeometry().Coordinates, Style: styleOptimal})
	for _, route := range candidates {
		layer.Polylines = append(layer.Polylines, mapstate.Polyline{Coordinates: route.Coordinates, Style: styleFaded})
	}

	outcome.Routes = []domain.RouteAnalysisResult{{
		RouteIndex: 0,
		Severity:   result.TotalRisk,
		RiskLevel:  domain.RiskLevelFromText(result.RiskLevel),
		Insights:   result.Insights,
		DistanceKm: result.DistanceKm,
		IsOptimal:  true,
	}}
	outcome.RecommendedRoute = 0
	return layer, nil
}

// scoreCandidates runs the safest-route branch: every candidate is rendered,
// with the scorer's recommended index styled distinctly.
func (c *AnalysisController) scoreCandidates(ctx context.Context, session domain.AnalysisSession, candidates []domain.RouteGeometry, outcome *domain.AnalysisOutcome) (mapstate.RouteLayer, error) {
	result, err := c.risk.ScoreRoutes(ctx, candidates, session.Mode)
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("risk").Inc()
		return mapstate.RouteLayer{}, fmt.Errorf("score routes: %w", err)
	}
	if c.superseded(session) {
		return mapstate.RouteLayer{}, domain.ErrSuperseded
	}

	var layer mapstate.RouteLayer
	for i, route := range candidates {
		style := styleRisky
		if i == result.RecommendedRoute {
			style = styleRecommended
		}
		layer.Polylines = append(layer.Polylines, mapstate.Polyline{Coordinates: route.Coordinates, Style: style})
	}

	for _, scored := range result.Routes {
		entry := domain.RouteAnalysisResult{
			RouteIndex: scored.RouteIndex,
			Severity:   scored.Severity,
			RiskLevel:  scored.RiskLevel,
			Insights:   scored.Insights,
		}
		if scored.RouteIndex >= 0 && scored.RouteIndex < len(candidates) {
			entry.DistanceKm = geometryDistanceKm(candidates[scored.RouteIndex])
		}
		outcome.Routes = append(outcome.Routes, entry)
	}
	outcome.RecommendedRoute = result.RecommendedRoute
	return layer, nil
}

// superseded reports whether a newer session has displaced this one. Checked
// at every async resumption point; this is the sole cancellation mechanism.
func (c *AnalysisController) superseded(session domain.AnalysisSession) bool {
	return c.generation.Load() != session.Generation
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, domain.ErrNoRouteFound):
		return "no_route_found"
	default:
		return "provider_error"
	}
}

// geometryDistanceKm sums the great-circle length of a geometry.
func geometryDistanceKm(g domain.RouteGeometry) float64 {
	var total float64
	for i := 1; i < len(g.Coordinates); i++ {
		a, b := g.Coordinates[i-1], g.Coordinates[i]
		total += utils.Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
	}
	return utils.RoundTo(total, 2)
}
