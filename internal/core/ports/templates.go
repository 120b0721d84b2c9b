package ports

import (
	"context"

	"github.com/auditworks/auditapi/internal/core/domain"
)

type TemplateRepository interface {
	Create(ctx context.Context, template domain.Template) (domain.Template, error)
	Get(ctx context.Context, id string) (domain.Template, error)
	List(ctx context.Context) ([]domain.Template, error)
}

type CompanyRepository interface {
	Get(ctx context.Context, id string) (domain.CompanyRef, error)
	Upsert(ctx context.Context, company domain.CompanyRef) error
}
