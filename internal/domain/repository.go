package domain

import (
	"context"
	"time"
)

// AnalysisRecord is one persisted analysis outcome, kept for the history view.
type AnalysisRecord struct {
	Start            string    `json:"start"`
	Destination      string    `json:"destination"`
	Mode             string    `json:"mode"`
	RouteMode        string    `json:"route_mode"`
	RecommendedRoute int       `json:"recommended_route"`
	RouteCount       int       `json:"route_count"`
	TopSeverity      float64   `json:"top_severity"`
	CreatedAt        time.Time `json:"created_at"`
}

// AnalysisRepository defines the interface for analysis-history persistence.
// This follows the Dependency Inversion Principle - domain defines the interface
type AnalysisRepository interface {
	// SaveAnalysis persists one completed session's outcome.
	SaveAnalysis(ctx context.Context, session AnalysisSession, outcome AnalysisOutcome) error

	// RecentAnalyses retrieves the newest records, most recent first.
	RecentAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
