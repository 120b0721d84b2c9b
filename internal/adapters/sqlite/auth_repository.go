package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auditworks/auditapi/internal/adapters/sqlite/gormsqlite"
	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

type APIKeyRepository struct {
	db *gormsqlite.DB
}

func NewAPIKeyRepository(db *gormsqlite.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

var _ ports.APIKeyRepository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindActorByTokenHash(ctx context.Context, tokenHash string) (domain.Actor, error) {
	var row actorModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&actorModel{}).
			Joins("JOIN api_keys k ON k.actor_id = actors.id").
			Where("k.token_hash = ? AND k.active = ?", tokenHash, true).
			Select("actors.*").
			First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Actor{}, domain.ErrNotFound
		}
		return domain.Actor{}, fmt.Errorf("find actor by token: %w", err)
	}
	return domain.Actor{ID: row.ID, Name: row.Name, Role: domain.Role(row.Role)}, nil
}

func (r *APIKeyRepository) Upsert(ctx context.Context, key domain.APIKey) error {
	model := apiKeyModel{
		TokenHash: key.TokenHash,
		ActorID:   key.ActorID,
		Name:      key.Name,
		Active:    key.Active,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"actor_id", "name", "active"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}

type ActorRepository struct {
	db *gormsqlite.DB
}

func NewActorRepository(db *gormsqlite.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

var _ ports.ActorRepository = (*ActorRepository)(nil)

func (r *ActorRepository) Get(ctx context.Context, id string) (domain.Actor, error) {
	var row actorModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Actor{}, domain.ErrNotFound
		}
		return domain.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	return domain.Actor{ID: row.ID, Name: row.Name, Role: domain.Role(row.Role)}, nil
}

func (r *ActorRepository) Upsert(ctx context.Context, actor domain.Actor) error {
	model := actorModel{
		ID:        actor.ID,
		Name:      actor.Name,
		Role:      string(actor.Role),
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "role"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert actor: %w", err)
	}
	return nil
}
