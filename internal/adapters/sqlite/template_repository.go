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

type TemplateRepository struct {
	db *gormsqlite.DB
}

func NewTemplateRepository(db *gormsqlite.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

var _ ports.TemplateRepository = (*TemplateRepository)(nil)

func (r *TemplateRepository) Create(ctx context.Context, template domain.Template) (domain.Template, error) {
	now := time.Now().UTC()
	model := templateModel{
		ID:          template.ID,
		Name:        template.Name,
		Standard:    template.Standard,
		Description: template.Description,
		Version:     template.Version,
		IsActive:    template.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	questions := make([]questionModel, 0, len(template.Questions))
	for _, q := range template.Questions {
		questions = append(questions, questionModel{
			ID:         q.ID,
			TemplateID: template.ID,
			Category:   q.Category,
			Text:       q.Text,
			OrderNum:   q.OrderNum,
			MaxScore:   q.MaxScore,
			IsRequired: q.IsRequired,
			HelpText:   q.HelpText,
		})
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		if err := tx.Create(&questions).Error; err != nil {
			return fmt.Errorf("insert template questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Template{}, err
	}

	template.CreatedAt = now
	template.UpdatedAt = now
	return template, nil
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (domain.Template, error) {
	var model templateModel
	var questions []questionModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load template: %w", err)
		}
		if err := tx.Where("template_id = ?", id).Order("order_num ASC").Find(&questions).Error; err != nil {
			return fmt.Errorf("load template questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Template{}, err
	}
	return assembleTemplate(model, questions), nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]domain.Template, error) {
	var models []templateModel
	var questions []questionModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Order("name ASC, version ASC").Find(&models).Error; err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		if err := tx.Order("order_num ASC").Find(&questions).Error; err != nil {
			return fmt.Errorf("list template questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byTemplate := map[string][]questionModel{}
	for _, q := range questions {
		byTemplate[q.TemplateID] = append(byTemplate[q.TemplateID], q)
	}

	result := make([]domain.Template, 0, len(models))
	for _, model := range models {
		result = append(result, assembleTemplate(model, byTemplate[model.ID]))
	}
	return result, nil
}

func assembleTemplate(model templateModel, questions []questionModel) domain.Template {
	template := domain.Template{
		ID:          model.ID,
		Name:        model.Name,
		Standard:    model.Standard,
		Description: model.Description,
		Version:     model.Version,
		IsActive:    model.IsActive,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	for _, q := range questions {
		template.Questions = append(template.Questions, toQuestion(q))
	}
	return template
}

type CompanyRepository struct {
	db *gormsqlite.DB
}

func NewCompanyRepository(db *gormsqlite.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

var _ ports.CompanyRepository = (*CompanyRepository)(nil)

func (r *CompanyRepository) Get(ctx context.Context, id string) (domain.CompanyRef, error) {
	var model companyModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CompanyRef{}, domain.ErrNotFound
		}
		return domain.CompanyRef{}, fmt.Errorf("get company: %w", err)
	}
	return domain.CompanyRef{ID: model.ID, Name: model.Name, OwnerID: model.OwnerID}, nil
}

func (r *CompanyRepository) Upsert(ctx context.Context, company domain.CompanyRef) error {
	model := companyModel{
		ID:        company.ID,
		Name:      company.Name,
		OwnerID:   company.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "owner_id"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}
	return nil
}
