package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/safenav/backend/internal/domain"
)

// PostgresRepository implements domain.AnalysisRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveAnalysis persists one completed session's outcome to PostgreSQL
func (r *PostgresRepository) SaveAnalysis(ctx context.Context, session domain.AnalysisSession, outcome domain.AnalysisOutcome) error {
	query := `
		INSERT INTO analysis_logs (
			session_id, start_location, destination, mode, route_mode,
			recommended_route, route_count, top_severity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var topSeverity float64
	for _, route := range outcome.Routes {
		if route.Severity > topSeverity {
			topSeverity = route.Severity
		}
	}

	_, err := r.pool.Exec(ctx, query,
		session.ID, session.Start, session.Destination, session.Mode, session.RouteMode,
		outcome.RecommendedRoute, len(outcome.Routes), topSeverity,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save analysis log: %w", err)
	}

	return nil
}

// RecentAnalyses retrieves the newest analysis records from PostgreSQL
func (r *PostgresRepository) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisRecord, error) {
	query := `
		SELECT start_location, destination, mode, route_mode,
			   recommended_route, route_count, top_severity, created_at
		FROM analysis_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query analysis logs: %w", err)
	}
	defer rows.Close()

	var results []domain.AnalysisRecord
	for rows.Next() {
		var rec domain.AnalysisRecord
		err := rows.Scan(
			&rec.Start, &rec.Destination, &rec.Mode, &rec.RouteMode,
			&rec.RecommendedRoute, &rec.RouteCount, &rec.TopSeverity, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan analysis row: %w", err)
		}
		results = append(results, rec)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
