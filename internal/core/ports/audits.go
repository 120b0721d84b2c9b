package ports

import (
	"context"

	"github.com/auditworks/auditapi/internal/core/domain"
)

// AuditListFilter narrows List results. ActorID/Role drive the visibility
// scope; Status and CompanyID are optional refinements.
type AuditListFilter struct {
	Actor     domain.Actor
	Status    domain.Status
	CompanyID string
}

// AuditMutation is the view of one audit inside a write transaction. The
// audit row is re-read under the transaction, so concurrent responds cannot
// recompute from a stale response set.
type AuditMutation interface {
	Audit() domain.Audit
	Responses() ([]domain.Response, error)
	UpsertResponse(resp domain.Response) (domain.Response, error)
	SaveAudit(audit domain.Audit) error
	AppendEvent(event domain.LifecycleEvent) error
}

// AuditStore persists audits and serializes mutations per audit.
type AuditStore interface {
	Create(ctx context.Context, audit domain.Audit) (domain.Audit, error)
	Get(ctx context.Context, id string) (domain.Audit, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Audit, error)
	List(ctx context.Context, filter AuditListFilter) ([]domain.Audit, error)
	ListResponses(ctx context.Context, auditID string) ([]domain.Response, error)
	Mutate(ctx context.Context, auditID string, fn func(tx AuditMutation) error) error
}
