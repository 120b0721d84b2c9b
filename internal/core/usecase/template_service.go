package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

//go:embed template_schema.json
var templateSchemaJSON []byte

// TemplateService imports and serves audit templates. Import payloads are
// validated against the embedded JSON Schema before any row is written, so a
// malformed question list never produces a partial template.
type TemplateService struct {
	repo   ports.TemplateRepository
	schema *santhosh.Schema
}

func NewTemplateService(repo ports.TemplateRepository) (*TemplateService, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("template.schema.json", bytes.NewReader(templateSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add template schema: %w", err)
	}
	schema, err := compiler.Compile("template.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	return &TemplateService{repo: repo, schema: schema}, nil
}

type templateImport struct {
	Name        string `json:"name"`
	Standard    string `json:"standard"`
	Description string `json:"description"`
	Version     int    `json:"version"`
	Questions   []struct {
		Category   string `json:"category"`
		Text       string `json:"text"`
		OrderNum   int    `json:"order_num"`
		MaxScore   int    `json:"max_score"`
		IsRequired *bool  `json:"is_required"`
		HelpText   string `json:"help_text"`
	} `json:"questions"`
}

// Import validates and stores a template definition. Only owners may import.
func (s *TemplateService) Import(ctx context.Context, payload json.RawMessage, actor domain.Actor) (domain.Template, error) {
	if actor.Role != domain.RoleOwner {
		return domain.Template{}, domain.ErrForbidden
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.Template{}, domain.Validationf("template payload is not valid json")
	}
	if err := s.schema.Validate(doc); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return domain.Template{}, domain.Validationf("template payload: %s", ve.Error())
		}
		return domain.Template{}, domain.Validationf("template payload: %s", err.Error())
	}

	var in templateImport
	if err := json.Unmarshal(payload, &in); err != nil {
		return domain.Template{}, domain.Validationf("template payload: %s", err.Error())
	}

	version := in.Version
	if version == 0 {
		version = 1
	}
	template := domain.Template{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Standard:    in.Standard,
		Description: in.Description,
		Version:     version,
		IsActive:    true,
	}
	for _, q := range in.Questions {
		required := true
		if q.IsRequired != nil {
			required = *q.IsRequired
		}
		maxScore := q.MaxScore
		if maxScore == 0 {
			maxScore = 5
		}
		template.Questions = append(template.Questions, domain.Question{
			ID:         uuid.NewString(),
			TemplateID: template.ID,
			Category:   q.Category,
			Text:       q.Text,
			OrderNum:   q.OrderNum,
			MaxScore:   maxScore,
			IsRequired: required,
			HelpText:   q.HelpText,
		})
	}
	if err := template.Validate(); err != nil {
		return domain.Template{}, err
	}

	return s.repo.Create(ctx, template)
}

func (s *TemplateService) Get(ctx context.Context, id string) (domain.Template, error) {
	return s.repo.Get(ctx, id)
}

func (s *TemplateService) List(ctx context.Context) ([]domain.Template, error) {
	return s.repo.List(ctx)
}
