package ports

import (
	"context"

	"github.com/auditworks/auditapi/internal/core/domain"
)

type ComparisonRepository interface {
	Create(ctx context.Context, cmp domain.Comparison) (domain.Comparison, error)
	Get(ctx context.Context, id string) (domain.Comparison, error)
	List(ctx context.Context, createdBy string) ([]domain.Comparison, error)
	Delete(ctx context.Context, id, createdBy string) (bool, error)
}
