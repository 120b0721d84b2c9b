package ports

import (
	"context"

	"github.com/auditworks/auditapi/internal/core/domain"
)

type APIKeyRepository interface {
	// FindActorByTokenHash resolves the actor behind an active API key.
	FindActorByTokenHash(ctx context.Context, tokenHash string) (domain.Actor, error)
	Upsert(ctx context.Context, key domain.APIKey) error
}

type ActorRepository interface {
	Get(ctx context.Context, id string) (domain.Actor, error)
	Upsert(ctx context.Context, actor domain.Actor) error
}
