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

type ComparisonRepository struct {
	db *gormsqlite.DB
}

func NewComparisonRepository(db *gormsqlite.DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

var _ ports.ComparisonRepository = (*ComparisonRepository)(nil)

func (r *ComparisonRepository) Create(ctx context.Context, cmp domain.Comparison) (domain.Comparison, error) {
	now := time.Now().UTC()
	model := comparisonModel{
		ID:          cmp.ID,
		Name:        cmp.Name,
		Description: cmp.Description,
		CreatedBy:   cmp.CreatedBy,
		CreatedAt:   now,
	}
	members := make([]comparisonAuditModel, 0, len(cmp.AuditIDs))
	for i, auditID := range cmp.AuditIDs {
		members = append(members, comparisonAuditModel{
			ComparisonID: cmp.ID,
			AuditID:      auditID,
			Position:     i,
		})
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert comparison: %w", err)
		}
		if err := tx.Create(&members).Error; err != nil {
			return fmt.Errorf("insert comparison audits: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Comparison{}, err
	}

	cmp.CreatedAt = now
	return cmp, nil
}

func (r *ComparisonRepository) Get(ctx context.Context, id string) (domain.Comparison, error) {
	var model comparisonModel
	var members []comparisonAuditModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load comparison: %w", err)
		}
		if err := tx.Where("comparison_id = ?", id).Order("position ASC").Find(&members).Error; err != nil {
			return fmt.Errorf("load comparison audits: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Comparison{}, err
	}
	return assembleComparison(model, members), nil
}

func (r *ComparisonRepository) List(ctx context.Context, createdBy string) ([]domain.Comparison, error) {
	var models []comparisonModel
	var members []comparisonAuditModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("created_by = ?", createdBy).
			Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
			return fmt.Errorf("list comparisons: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		ids := make([]string, 0, len(models))
		for _, m := range models {
			ids = append(ids, m.ID)
		}
		if err := tx.Where("comparison_id IN ?", ids).
			Order("position ASC").Find(&members).Error; err != nil {
			return fmt.Errorf("list comparison audits: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byComparison := map[string][]comparisonAuditModel{}
	for _, m := range members {
		byComparison[m.ComparisonID] = append(byComparison[m.ComparisonID], m)
	}

	result := make([]domain.Comparison, 0, len(models))
	for _, model := range models {
		result = append(result, assembleComparison(model, byComparison[model.ID]))
	}
	return result, nil
}

func (r *ComparisonRepository) Delete(ctx context.Context, id, createdBy string) (bool, error) {
	deleted := false
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("id = ? AND created_by = ?", id, createdBy).Delete(&comparisonModel{})
		if res.Error != nil {
			return fmt.Errorf("delete comparison: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := tx.Where("comparison_id = ?", id).Delete(&comparisonAuditModel{}).Error; err != nil {
			return fmt.Errorf("delete comparison audits: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func assembleComparison(model comparisonModel, members []comparisonAuditModel) domain.Comparison {
	cmp := domain.Comparison{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
	}
	for _, m := range members {
		cmp.AuditIDs = append(cmp.AuditIDs, m.AuditID)
	}
	return cmp
}
