package mapstate

import (
	"fmt"
	"sync"

	"github.com/safenav/backend/internal/domain"
)

// Default base map: OpenStreetMap tiles centered on Kolkata.
const (
	BaseTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	BaseAttribution = "© OpenStreetMap contributors"
)

var DefaultCenter = domain.Coordinate{Lat: 22.5726, Lng: 88.3639}

const DefaultZoom = 12

// RouteStyle describes how a polyline is drawn.
type RouteStyle struct {
	Color     string  `json:"color"`
	Weight    int     `json:"weight"`
	Opacity   float64 `json:"opacity"`
	DashArray string  `json:"dash_array,omitempty"`
}

// Polyline is one styled route line.
type Polyline struct {
	Coordinates []domain.Coordinate `json:"coordinates"`
	Style       RouteStyle          `json:"style"`
}

// Marker is a point of interest on the map.
type Marker struct {
	Position domain.Coordinate `json:"position"`
	Kind     string            `json:"kind"` // "start", "destination", "report"
	Popup    string            `json:"popup,omitempty"`
}

// RouteLayer groups the polylines and endpoint markers of one rendered
// analysis session.
type RouteLayer struct {
	Polylines []Polyline `json:"polylines"`
	Markers   []Marker   `json:"markers"`
}

// HeatLayer is a weighted-point density overlay, or a raster tile overlay
// for the rainfall kind.
type HeatLayer struct {
	Kind    string               `json:"kind"`
	Points  []domain.HeatmapPoint `json:"points,omitempty"`
	TileURL string               `json:"tile_url,omitempty"`
	Radius  int                  `json:"radius,omitempty"`
	Blur    int                  `json:"blur,omitempty"`
}

// Bounds is a viewport rectangle.
type Bounds struct {
	SouthWest domain.Coordinate `json:"south_west"`
	NorthEast domain.Coordinate `json:"north_east"`
}

// BaseMap is the persistent tile layer. Created once, never replaced.
type BaseMap struct {
	Center      domain.Coordinate `json:"center"`
	Zoom        int               `json:"zoom"`
	TileURL     string            `json:"tile_url"`
	Attribution string            `json:"attribution"`
}

// Snapshot is the full render state handed to clients.
type Snapshot struct {
	Base     *BaseMap    `json:"base,omitempty"`
	Routes   *RouteLayer `json:"routes,omitempty"`
	Reports  []Marker    `json:"reports,omitempty"`
	Heat     *HeatLayer  `json:"heat,omitempty"`
	Viewport *Bounds     `json:"viewport,omitempty"`
}

// MapSurface owns the single persistent map state: one base layer plus at
// most one each of route layer, report-marker layer, and heat layer. Every
// overlay mutation is a full replacement of that layer, so a half-rendered
// session can never leak stale markers or polylines. Mutation is serialized
// internally; each layer still has exactly one writer role.
type MapSurface struct {
	mu       sync.Mutex
	base     *BaseMap
	routes   *RouteLayer
	reports  []Marker
	heat     *HeatLayer
	viewport *Bounds
}

// New creates an empty surface. The base layer is created on first need.
func New() *MapSurface {
	return &MapSurface{}
}

// EnsureBaseMap creates the base tile layer exactly once. Subsequent calls
// are no-ops regardless of arguments.
func (m *MapSurface) EnsureBaseMap(center domain.Coordinate, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base != nil {
		return
	}
	m.base = &BaseMap{
		Center:      center,
		Zoom:        zoom,
		TileURL:     BaseTileURL,
		Attribution: BaseAttribution,
	}
}

// ReplaceRouteLayer swaps the entire route layer for the given one. The
// previous layer's markers and polylines are dropped wholesale.
func (m *MapSurface) ReplaceRouteLayer(layer RouteLayer) {
	m.mu.Lock()
	m.routes = &layer
	m.mu.Unlock()
}

// ReplaceReportMarkers swaps the report-marker layer for markers built from
// the given reports.
func (m *MapSurface) ReplaceReportMarkers(reports []domain.HazardReport) {
	markers := make([]Marker, 0, len(reports))
	for _, r := range reports {
		markers = append(markers, Marker{
			Position: domain.Coordinate{Lat: r.Lat, Lng: r.Lng},
			Kind:     "report",
			Popup:    fmt.Sprintf("%s: %s", r.IssueType, r.Description),
		})
	}
	m.mu.Lock()
	m.reports = markers
	m.mu.Unlock()
}

// SetHeatLayer replaces any existing heat overlay. Switching the overlay
// kind is also a full replace, never a stack.
func (m *MapSurface) SetHeatLayer(layer HeatLayer) {
	m.mu.Lock()
	m.heat = &layer
	m.mu.Unlock()
}

// FitBounds sets the viewport to bound both endpoints.
func (m *MapSurface) FitBounds(a, b domain.Coordinate) {
	sw := domain.Coordinate{Lat: min(a.Lat, b.Lat), Lng: min(a.Lng, b.Lng)}
	ne := domain.Coordinate{Lat: max(a.Lat, b.Lat), Lng: max(a.Lng, b.Lng)}
	m.mu.Lock()
	m.viewport = &Bounds{SouthWest: sw, NorthEast: ne}
	m.mu.Unlock()
}

// Snapshot returns a copy of the current render state.
func (m *MapSurface) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{}
	if m.base != nil {
		base := *m.base
		snap.Base = &base
	}
	if m.routes != nil {
		routes := RouteLayer{
			Polylines: append([]Polyline(nil), m.routes.Polylines...),
			Markers:   append([]Marker(nil), m.routes.Markers...),
		}
		snap.Routes = &routes
	}
	if m.reports != nil {
		snap.Reports = append([]Marker(nil), m.reports...)
	}
	if m.heat != nil {
		heat := *m.heat
		heat.Points = append([]domain.HeatmapPoint(nil), m.heat.Points...)
		snap.Heat = &heat
	}
	if m.viewport != nil {
		viewport := *m.viewport
		snap.Viewport = &viewport
	}
	return snap
}
