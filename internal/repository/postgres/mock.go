package postgres

import (
	"context"
	"time"

	"github.com/safenav/backend/internal/domain"
)

// MockRepository implements domain.AnalysisRepository for testing/demo mode
type MockRepository struct{}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveAnalysis is a no-op in mock mode
func (r *MockRepository) SaveAnalysis(ctx context.Context, session domain.AnalysisSession, outcome domain.AnalysisOutcome) error {
	return nil
}

// RecentAnalyses returns mock historical data
func (r *MockRepository) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisRecord, error) {
	return []domain.AnalysisRecord{
		{
			Start:            "Chingrighata, Kolkata",
			Destination:      "Techno India, Kolkata",
			Mode:             domain.ModeLive,
			RouteMode:        domain.RouteModeSafest,
			RecommendedRoute: 0,
			RouteCount:       2,
			TopSeverity:      7.8,
			CreatedAt:        time.Now().Add(-24 * time.Hour),
		},
	}, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
