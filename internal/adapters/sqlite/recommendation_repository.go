package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/auditworks/auditapi/internal/adapters/sqlite/gormsqlite"
	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

type RecommendationRepository struct {
	db *gormsqlite.DB
}

func NewRecommendationRepository(db *gormsqlite.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

var _ ports.RecommendationRepository = (*RecommendationRepository)(nil)

// ReplaceAuto swaps the audit's auto-generated rows in one transaction, so a
// reader never sees the old and new sets mixed.
func (r *RecommendationRepository) ReplaceAuto(ctx context.Context, auditID string, recs []domain.Recommendation) ([]domain.Recommendation, error) {
	now := time.Now().UTC()
	models := make([]recommendationModel, 0, len(recs))
	for _, rec := range recs {
		models = append(models, recommendationModel{
			ID:            rec.ID,
			AuditID:       auditID,
			Category:      rec.Category,
			Text:          rec.Text,
			Priority:      string(rec.Priority),
			AutoGenerated: true,
			CreatedBy:     rec.CreatedBy,
			CreatedAt:     now,
		})
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("audit_id = ? AND is_auto_generated = ?", auditID, true).
			Delete(&recommendationModel{}).Error; err != nil {
			return fmt.Errorf("delete auto recommendations: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.Recommendation, 0, len(models))
	for _, model := range models {
		result = append(result, toRecommendation(model))
	}
	return result, nil
}

func (r *RecommendationRepository) Create(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	now := time.Now().UTC()
	model := recommendationModel{
		ID:            rec.ID,
		AuditID:       rec.AuditID,
		Category:      rec.Category,
		Text:          rec.Text,
		Priority:      string(rec.Priority),
		AutoGenerated: rec.AutoGenerated,
		CreatedBy:     rec.CreatedBy,
		CreatedAt:     now,
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("insert recommendation: %w", err)
	}
	return toRecommendation(model), nil
}

func (r *RecommendationRepository) Get(ctx context.Context, id string) (domain.Recommendation, error) {
	var row recommendationModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("load recommendation: %w", err)
	}
	return toRecommendation(row), nil
}

func (r *RecommendationRepository) List(ctx context.Context, filter ports.RecommendationFilter) ([]domain.Recommendation, error) {
	var rows []recommendationModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&recommendationModel{}).Where("audit_id = ?", filter.AuditID)
		if filter.Priority != "" {
			query = query.Where("priority = ?", string(filter.Priority))
		}
		if filter.Auto != nil {
			query = query.Where("is_auto_generated = ?", *filter.Auto)
		}
		return query.Order("created_at ASC, id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	result := make([]domain.Recommendation, 0, len(rows))
	for _, row := range rows {
		result = append(result, toRecommendation(row))
	}
	return result, nil
}

func (r *RecommendationRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("id = ?", id).Delete(&recommendationModel{})
		if res.Error != nil {
			return fmt.Errorf("delete recommendation: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
