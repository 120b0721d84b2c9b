package ports

import (
	"context"

	"github.com/auditworks/auditapi/internal/core/domain"
)

type RecommendationFilter struct {
	AuditID  string
	Priority domain.Priority
	Auto     *bool
}

type RecommendationRepository interface {
	// ReplaceAuto atomically swaps the audit's auto-generated set: existing
	// auto rows are deleted and recs inserted in one transaction.
	ReplaceAuto(ctx context.Context, auditID string, recs []domain.Recommendation) ([]domain.Recommendation, error)
	Create(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error)
	Get(ctx context.Context, id string) (domain.Recommendation, error)
	List(ctx context.Context, filter RecommendationFilter) ([]domain.Recommendation, error)
	Delete(ctx context.Context, id string) (bool, error)
}
