package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/greenops/greenops-advisor/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore opens the database, verifies connectivity, and runs
// migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db, dsn: dsn}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// SaveOpportunity inserts one finding, assigning an ID and timestamp
// when missing.
func (s *PostgresStore) SaveOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO opportunities (
			id, cluster_id, namespace, workload, kind, category,
			explanation, reasoning, confidence_score, risk_level,
			current_cost_usd, projected_cost_usd, savings_usd,
			current_carbon_gco2e, projected_carbon_gco2e, carbon_reduction_gco2e,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.db.ExecContext(ctx, query,
		opp.ID, opp.Workload.ClusterID, opp.Workload.Namespace,
		opp.Workload.Name, opp.Workload.Kind, opp.Category,
		opp.Explanation, opp.Reasoning, opp.Confidence, opp.Risk,
		opp.CurrentCost, opp.ProjectedCost, opp.Savings,
		opp.CurrentCarbon, opp.ProjectedCarbon, opp.CarbonReduction,
		opp.CreatedAt,
	)
	return err
}

// ListOpportunities returns findings for a namespace ranked by monthly
// savings, highest first. An empty namespace matches every namespace.
func (s *PostgresStore) ListOpportunities(ctx context.Context, namespace string, limit int) ([]*models.Opportunity, error) {
	query := `
		SELECT id, cluster_id, namespace, workload, kind, category,
			explanation, reasoning, confidence_score, risk_level,
			current_cost_usd, projected_cost_usd, savings_usd,
			current_carbon_gco2e, projected_carbon_gco2e, carbon_reduction_gco2e,
			created_at
		FROM opportunities
		WHERE ($1 = '' OR namespace = $1)
		ORDER BY savings_usd DESC, confidence_score DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opportunities []*models.Opportunity
	for rows.Next() {
		var opp models.Opportunity
		err := rows.Scan(
			&opp.ID, &opp.Workload.ClusterID, &opp.Workload.Namespace,
			&opp.Workload.Name, &opp.Workload.Kind, &opp.Category,
			&opp.Explanation, &opp.Reasoning, &opp.Confidence, &opp.Risk,
			&opp.CurrentCost, &opp.ProjectedCost, &opp.Savings,
			&opp.CurrentCarbon, &opp.ProjectedCarbon, &opp.CarbonReduction,
			&opp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		opportunities = append(opportunities, &opp)
	}

	return opportunities, rows.Err()
}

// SaveRecommendation inserts one recommendation, assigning an ID and
// timestamp when missing.
func (s *PostgresStore) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO recommendations (
			id, cluster_id, namespace, workload, kind,
			explanation, recommended_cpu_cores, recommended_memory_gb,
			estimated_savings_usd, risk_level, next_step, provenance,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Workload.ClusterID, rec.Workload.Namespace,
		rec.Workload.Name, rec.Workload.Kind,
		rec.Explanation, rec.RecommendedCPU, rec.RecommendedMemory,
		rec.EstimatedSavings, rec.Risk, rec.NextStep, rec.Provenance,
		rec.CreatedAt,
	)
	return err
}

// ListRecommendations returns recommendations for a namespace, most
// recent first.
func (s *PostgresStore) ListRecommendations(ctx context.Context, namespace string, limit int) ([]*models.Recommendation, error) {
	query := `
		SELECT id, cluster_id, namespace, workload, kind,
			explanation, recommended_cpu_cores, recommended_memory_gb,
			estimated_savings_usd, risk_level, next_step, provenance,
			created_at
		FROM recommendations
		WHERE ($1 = '' OR namespace = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recommendations []*models.Recommendation
	for rows.Next() {
		var rec models.Recommendation
		err := rows.Scan(
			&rec.ID, &rec.Workload.ClusterID, &rec.Workload.Namespace,
			&rec.Workload.Name, &rec.Workload.Kind,
			&rec.Explanation, &rec.RecommendedCPU, &rec.RecommendedMemory,
			&rec.EstimatedSavings, &rec.Risk, &rec.NextStep, &rec.Provenance,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		recommendations = append(recommendations, &rec)
	}

	return recommendations, rows.Err()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
