package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/safenav/backend/internal/domain"
	"github.com/safenav/backend/internal/mapstate"
	"github.com/safenav/backend/internal/observability"
)

// Test doubles for the controller's collaborators.

type stubGeocoder struct {
	coords map[string]domain.Coordinate
	err    error
	hook   func(place string) // runs before each lookup when set
}

func (s *stubGeocoder) Geocode(ctx context.Context, place string) (domain.Coordinate, error) {
	if s.hook != nil {
		s.hook(place)
	}
	if s.err != nil {
		return domain.Coordinate{}, s.err
	}
	coord, ok := s.coords[place]
	if !ok {
		return domain.Coordinate{}, domain.ErrLocationNotFound
	}
	return coord, nil
}

type stubRouteProvider struct {
	routes []domain.RouteGeometry
	err    error
}

func (s *stubRouteProvider) FetchRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteGeometry, error) {
	return s.routes, s.err
}

type stubRiskScorer struct {
	score      ScoreResult
	scoreErr   error
	optimal    OptimalResult
	optimalErr error
}

func (s *stubRiskScorer) ScoreRoutes(ctx context.Context, routes []domain.RouteGeometry, mode string) (ScoreResult, error) {
	return s.score, s.scoreErr
}

func (s *stubRiskScorer) OptimalPath(ctx context.Context, routes []domain.RouteGeometry, mode string) (OptimalResult, error) {
	return s.optimal, s.optimalErr
}

type recordingRepo struct {
	mu    sync.Mutex
	saved []domain.AnalysisSession
}

func (r *recordingRepo) SaveAnalysis(ctx context.Context, session domain.AnalysisSession, outcome domain.AnalysisOutcome) error {
	r.mu.Lock()
	r.saved = append(r.saved, session)
	r.mu.Unlock()
	return nil
}

func (r *recordingRepo) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisRecord, error) {
	return nil, nil
}

func (r *recordingRepo) Health(ctx context.Context) error { return nil }

func (r *recordingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

var testCandidates = []domain.RouteGeometry{
	{Coordinates: []domain.Coordinate{{Lat: 22.5647, Lng: 88.3962}, {Lat: 22.576, Lng: 88.41}, {Lat: 22.5862, Lng: 88.4311}}},
	{Coordinates: []domain.Coordinate{{Lat: 22.5647, Lng: 88.3962}, {Lat: 22.55, Lng: 88.42}, {Lat: 22.5862, Lng: 88.4311}}},
}

func newTestGeocoder() *stubGeocoder {
	return &stubGeocoder{coords: map[string]domain.Coordinate{
		"Chingrighata":    {Lat: 22.5647, Lng: 88.3962},
		"Techno India":    {Lat: 22.5862, Lng: 88.4311},
		"Salt Lake Sec V": {Lat: 22.5725, Lng: 88.4331},
	}}
}

func newTestController(geo GeoResolver, routes RouteProvider, risk RiskScorer, repo AnalysisRepository) (*AnalysisController, *mapstate.MapSurface) {
	surface := mapstate.New()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewAnalysisController(geo, routes, risk, surface, repo, metrics), surface
}

func TestAnalyze_SafestMode(t *testing.T) {
	risk := &stubRiskScorer{score: ScoreResult{
		Mode: domain.ModeMonsoon,
		Routes: []ScoredRoute{
			{RouteIndex: 0, Severity: 3.2, RiskLevel: domain.RiskLow, Insights: []string{"Mostly clear"}},
			{RouteIndex: 1, Severity: 7.8, RiskLevel: domain.RiskHigh, Insights: []string{"Waterlogging reported"}},
		},
		RecommendedRoute: 0,
	}}
	repo := &recordingRepo{}
	c, surface := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates}, risk, repo)

	outcome, err := c.Analyze(context.Background(), "Chingrighata", "Techno India", domain.ModeMonsoon, domain.RouteModeSafest)
	require.NoError(t, err)

	require.Equal(t, 0, outcome.RecommendedRoute)
	require.Len(t, outcome.Routes, 2)
	require.Equal(t, 3.2, outcome.Routes[0].Severity)
	require.Equal(t, domain.RiskLow, outcome.Routes[0].RiskLevel)
	require.Equal(t, 7.8, outcome.Routes[1].Severity)
	require.Equal(t, domain.RiskHigh, outcome.Routes[1].RiskLevel)
	require.Positive(t, outcome.Routes[0].DistanceKm, "distance is derived from the geometry")

	snap := surface.Snapshot()
	require.NotNil(t, snap.Base, "base map is created on first render")
	require.NotNil(t, snap.Routes)
	require.Len(t, snap.Routes.Polylines, 2)
	require.Equal(t, "green", snap.Routes.Polylines[0].Style.Color, "recommended route is highlighted")
	require.Equal(t, "red", snap.Routes.Polylines[1].Style.Color)
	require.Equal(t, "8,6", snap.Routes.Polylines[1].Style.DashArray)
	require.Len(t, snap.Routes.Markers, 2)
	require.Equal(t, "Start Location", snap.Routes.Markers[0].Popup)
	require.Equal(t, "Destination", snap.Routes.Markers[1].Popup)
	require.NotNil(t, snap.Viewport, "viewport fits both endpoints")

	latest := c.Latest()
	require.NotNil(t, latest)
	require.Equal(t, outcome.Generation, latest.Generation)

	c.WaitBackground()
	require.Equal(t, 1, repo.count(), "completed session is persisted to history")
}

func TestAnalyze_ShortestSafeMode(t *testing.T) {
	risk := &stubRiskScorer{optimal: OptimalResult{
		Success:    true,
		Path:       [][]float64{{22.5647, 88.3962}, {22.57, 88.41}, {22.5862, 88.4311}},
		TotalRisk:  2.1,
		RiskLevel:  "LOW",
		Insights:   []string{"Safest corridor avoids two flooded segments"},
		DistanceKm: 6.4,
	}}
	c, surface := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates}, risk, &recordingRepo{})

	outcome, err := c.Analyze(context.Background(), "Chingrighata", "Techno India", domain.ModeLive, domain.RouteModeShortestSafe)
	require.NoError(t, err)

	require.Len(t, outcome.Routes, 1, "shortest-safe publishes one merged result")
	require.True(t, outcome.Routes[0].IsOptimal)
	require.Equal(t, 2.1, outcome.Routes[0].Severity)
	require.Equal(t, domain.RiskLow, outcome.Routes[0].RiskLevel)
	require.Equal(t, 6.4, outcome.Routes[0].DistanceKm)

	snap := surface.Snapshot()
	// Optimal path on top, both original candidates faded behind it.
	require.Len(t, snap.Routes.Polylines, 3)
	require.Equal(t, "#22c55e", snap.Routes.Polylines[0].Style.Color)
	require.Equal(t, "#94a3b8", snap.Routes.Polylines[1].Style.Color)
	require.Equal(t, "5,5", snap.Routes.Polylines[1].Style.DashArray)
}

func TestAnalyze_OptimalPathDegradesToCandidates(t *testing.T) {
	risk := &stubRiskScorer{optimal: OptimalResult{Success: false}}
	c, surface := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates}, risk, &recordingRepo{})

	outcome, err := c.Analyze(context.Background(), "Chingrighata", "Techno India", domain.ModeLive, domain.RouteModeShortestSafe)
	require.NoError(t, err, "optimal-path failure degrades instead of aborting")

	require.Len(t, outcome.Routes, 2)
	for _, route := range outcome.Routes {
		require.Zero(t, route.Severity)
		require.Equal(t, domain.RiskLow, route.RiskLevel)
		require.Equal(t, []string{"Route analysis unavailable"}, route.Insights)
	}
	require.Equal(t, 0, outcome.RecommendedRoute)

	snap := surface.Snapshot()
	require.Len(t, snap.Routes.Polylines, 2)
	require.Equal(t, "green", snap.Routes.Polylines[0].Style.Color)
	require.Equal(t, "red", snap.Routes.Polylines[1].Style.Color)
}

func TestAnalyze_ScorerFailureAborts(t *testing.T) {
	risk := &stubRiskScorer{scoreErr: errors.New("connection refused")}
	c, surface := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates}, risk, &recordingRepo{})

	_, err := c.Analyze(context.Background(), "Chingrighata", "Techno India", domain.ModeLive, domain.RouteModeSafest)
	require.Error(t, err, "safest mode has no fallback, the scorer failure propagates")

	require.Nil(t, surface.Snapshot().Routes, "failed session must not touch the map")
	require.Nil(t, c.Latest())
}

func TestAnalyze_InvalidInput(t *testing.T) {
	c, _ := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates}, &stubRiskScorer{}, &recordingRepo{})

	_, err := c.Analyze(context.Background(), "   ", "Techno India", "", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.Analyze(context.Background(), "Chingrighata", "", "", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.Analyze(context.Background(), "Chingrighata", "Techno India", "hurricane", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.Analyze(context.Background(), "Chingrighata", "Techno India", "", "teleport")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyze_LocationNotFound(t *testing.T) {
	c, _ := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates}, &stubRiskScorer{}, &recordingRepo{})

	_, err := c.Analyze(context.Background(), "Atlantis", "Techno India", "", "")
	require.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestAnalyze_SupersededSessionDiscarded(t *testing.T) {
	release := make(chan struct{})
	blocked := make(chan struct{})
	var once sync.Once

	geo := newTestGeocoder()
	geo.hook = func(place string) {
		// Block the first session after its start lookup begins, so a
		// newer session can overtake it.
		if place == "Chingrighata" {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
	}

	risk := &stubRiskScorer{score: ScoreResult{
		Routes:           []ScoredRoute{{RouteIndex: 0, Severity: 1.0, RiskLevel: domain.RiskLow}},
		RecommendedRoute: 0,
	}}
	repo := &recordingRepo{}
	c, surface := newTestController(geo, &stubRouteProvider{routes: testCandidates[:1]}, risk, repo)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background(), "Chingrighata", "Techno India", domain.ModeLive, domain.RouteModeSafest)
		errCh <- err
	}()

	<-blocked

	// The newer session runs to completion while the first is stalled.
	outcome, err := c.Analyze(context.Background(), "Salt Lake Sec V", "Techno India", domain.ModeLive, domain.RouteModeSafest)
	require.NoError(t, err)

	close(release)

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, domain.ErrSuperseded, "the displaced session must discard its own results")
	case <-time.After(5 * time.Second):
		t.Fatal("displaced session never returned")
	}

	// Only the newest session's data reaches the published state.
	latest := c.Latest()
	require.NotNil(t, latest)
	require.Equal(t, outcome.Generation, latest.Generation)

	snap := surface.Snapshot()
	require.NotNil(t, snap.Routes)
	require.Equal(t, domain.Coordinate{Lat: 22.5725, Lng: 88.4331}, snap.Routes.Markers[0].Position,
		"map markers belong to the newest session's start")

	c.WaitBackground()
	require.Equal(t, 1, repo.count(), "superseded sessions are never persisted")
}

func TestLatest_ReturnsCopy(t *testing.T) {
	risk := &stubRiskScorer{score: ScoreResult{
		Routes:           []ScoredRoute{{RouteIndex: 0, Severity: 2.0, RiskLevel: domain.RiskLow}},
		RecommendedRoute: 0,
	}}
	c, _ := newTestController(newTestGeocoder(), &stubRouteProvider{routes: testCandidates[:1]}, risk, &recordingRepo{})

	_, err := c.Analyze(context.Background(), "Chingrighata", "Techno India", "", domain.RouteModeSafest)
	require.NoError(t, err)

	first := c.Latest()
	first.Routes[0].Severity = 99

	require.Equal(t, 2.0, c.Latest().Routes[0].Severity, "callers must not be able to mutate published state")
}
