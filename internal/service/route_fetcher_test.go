package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/safenav/backend/internal/domain"
)

func TestRouteFetcher_FetchRoutes(t *testing.T) {
	var gotBody orsDirectionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/directions/driving-car/geojson", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[
			{"geometry":{"coordinates":[[88.36,22.57],[88.37,22.58],[88.38,22.59]]}},
			{"geometry":{"coordinates":[[88.36,22.57],[88.40,22.55],[88.38,22.59]]}}
		]}`))
	}))
	defer srv.Close()

	f := NewRouteFetcher("test-key", srv.URL)
	start := domain.Coordinate{Lat: 22.57, Lng: 88.36}
	end := domain.Coordinate{Lat: 22.59, Lng: 88.38}

	routes, err := f.FetchRoutes(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	// Request carries [lng, lat] pairs and asks for alternatives.
	require.Equal(t, [][]float64{{88.36, 22.57}, {88.38, 22.59}}, gotBody.Coordinates)
	require.Equal(t, alternativeTargetCount, gotBody.AlternativeRoutes.TargetCount)

	// Response coordinates come back reversed into {lat, lng}.
	require.Equal(t, domain.Coordinate{Lat: 22.57, Lng: 88.36}, routes[0].Coordinates[0])
	require.Equal(t, domain.Coordinate{Lat: 22.58, Lng: 88.37}, routes[0].Coordinates[1])
}

func TestRouteFetcher_NoRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	f := NewRouteFetcher("test-key", srv.URL)
	_, err := f.FetchRoutes(context.Background(), domain.Coordinate{Lat: 1, Lng: 1}, domain.Coordinate{Lat: 2, Lng: 2})
	require.ErrorIs(t, err, domain.ErrNoRouteFound)
}

func TestRouteFetcher_SkipsDegenerateGeometries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[
			{"geometry":{"coordinates":[[88.36,22.57]]}},
			{"geometry":{"coordinates":[[88.36,22.57],[88.38,22.59]]}}
		]}`))
	}))
	defer srv.Close()

	f := NewRouteFetcher("test-key", srv.URL)
	routes, err := f.FetchRoutes(context.Background(), domain.Coordinate{Lat: 22.57, Lng: 88.36}, domain.Coordinate{Lat: 22.59, Lng: 88.38})
	require.NoError(t, err)
	require.Len(t, routes, 1, "single-point geometries are unusable and skipped")
}

func TestRouteFetcher_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"point not on road network"}`))
	}))
	defer srv.Close()

	f := NewRouteFetcher("test-key", srv.URL)
	_, err := f.FetchRoutes(context.Background(), domain.Coordinate{}, domain.Coordinate{})
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrNoRouteFound)
}
