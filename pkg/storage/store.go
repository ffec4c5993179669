// Package storage persists opportunities and recommendations.
package storage

import (
	"context"

	"github.com/greenops/greenops-advisor/pkg/models"
)

// Store defines the interface for persistent storage.
type Store interface {
	SaveOpportunity(ctx context.Context, opp *models.Opportunity) error
	ListOpportunities(ctx context.Context, namespace string, limit int) ([]*models.Opportunity, error)

	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
	ListRecommendations(ctx context.Context, namespace string, limit int) ([]*models.Recommendation, error)

	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	URL string
}
