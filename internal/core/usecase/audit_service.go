package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

// AuditService owns the audit lifecycle. Every mutation runs as one write
// transaction against the store: the audit and its responses are re-read
// under the transaction, validated, mutated, rescored and persisted together
// with a lifecycle event.
type AuditService struct {
	audits    ports.AuditStore
	templates ports.TemplateRepository
	companies ports.CompanyRepository
}

func NewAuditService(audits ports.AuditStore, templates ports.TemplateRepository, companies ports.CompanyRepository) *AuditService {
	return &AuditService{audits: audits, templates: templates, companies: companies}
}

type CreateAuditInput struct {
	Title         string
	TemplateID    string
	CompanyID     string
	AssignedTo    string
	ScheduledDate *time.Time
	Notes         string
}

func (s *AuditService) Create(ctx context.Context, in CreateAuditInput, actor domain.Actor) (domain.Audit, error) {
	if actor.Role != domain.RoleOwner {
		return domain.Audit{}, fmt.Errorf("create audit: %w", domain.ErrForbidden)
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.Audit{}, domain.Validationf("audit title is required")
	}
	if strings.TrimSpace(in.AssignedTo) == "" {
		return domain.Audit{}, domain.Validationf("audit must be assigned to an auditor")
	}

	template, err := s.templates.Get(ctx, in.TemplateID)
	if err != nil {
		return domain.Audit{}, fmt.Errorf("load template: %w", err)
	}
	if !template.IsActive {
		return domain.Audit{}, domain.Validationf("template %s is not active", template.ID)
	}

	company, err := s.companies.Get(ctx, in.CompanyID)
	if err != nil {
		return domain.Audit{}, fmt.Errorf("load company: %w", err)
	}
	if company.OwnerID != actor.ID {
		return domain.Audit{}, fmt.Errorf("create audit for company %s: %w", company.ID, domain.ErrForbidden)
	}

	// The template maximum is frozen here; later template edits never move
	// this audit's denominator.
	audit := domain.Audit{
		ID:               uuid.NewString(),
		Title:            in.Title,
		TemplateID:       template.ID,
		Company:          company,
		AssignedTo:       in.AssignedTo,
		CreatedBy:        actor.ID,
		Status:           domain.StatusDraft,
		ScheduledDate:    in.ScheduledDate,
		TotalScore:       decimal.Zero,
		MaxPossibleScore: decimal.NewFromInt(int64(template.MaxPossibleScore())),
		ScorePercentage:  decimal.Zero,
		Notes:            in.Notes,
	}

	created, err := s.audits.Create(ctx, audit)
	if err != nil {
		return domain.Audit{}, fmt.Errorf("create audit: %w", err)
	}
	return created, nil
}

func (s *AuditService) Get(ctx context.Context, id string, actor domain.Actor) (domain.Audit, error) {
	audit, err := s.audits.Get(ctx, id)
	if err != nil {
		return domain.Audit{}, err
	}
	if !audit.VisibleTo(actor) {
		return domain.Audit{}, domain.ErrForbidden
	}
	return audit, nil
}

func (s *AuditService) List(ctx context.Context, status domain.Status, companyID string, actor domain.Actor) ([]domain.Audit, error) {
	if status != "" && !status.Valid() {
		return nil, domain.Validationf("unknown status %q", string(status))
	}
	return s.audits.List(ctx, ports.AuditListFilter{Actor: actor, Status: status, CompanyID: companyID})
}

// Start moves a draft audit to in_progress and stamps startedAt.
func (s *AuditService) Start(ctx context.Context, auditID string, actor domain.Actor) (domain.Audit, error) {
	var result domain.Audit
	err := s.audits.Mutate(ctx, auditID, func(tx ports.AuditMutation) error {
		audit := tx.Audit()
		if !audit.AuthorizedActor(actor) {
			return domain.ErrForbidden
		}
		if audit.Status != domain.StatusDraft {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		before := audit.Status
		audit.Status = domain.StatusInProgress
		audit.StartedAt = &now
		if err := tx.SaveAudit(audit); err != nil {
			return err
		}
		result = audit
		return tx.AppendEvent(lifecycleEvent(audit, domain.EventAuditStarted, actor, before, nil))
	})
	if err != nil {
		return domain.Audit{}, err
	}
	return result, nil
}

type RespondInput struct {
	QuestionID  string
	Score       *int
	Response    domain.ResponseType
	Notes       string
	EvidenceRef string
}

type Progress struct {
	Answered        int             `json:"answered"`
	Total           int             `json:"total"`
	Percentage      decimal.Decimal `json:"percentage"`
	CurrentScore    decimal.Decimal `json:"current_score"`
	MaxScore        decimal.Decimal `json:"max_score"`
	ScorePercentage decimal.Decimal `json:"score_percentage"`
}

// Respond upserts the answer for (audit, question) and recomputes the audit's
// totals in the same transaction. A qualitative Response is converted to a
// score first; passing both a score and a response type is rejected.
func (s *AuditService) Respond(ctx context.Context, auditID string, in RespondInput, actor domain.Actor) (domain.Response, Progress, error) {
	if in.Score != nil && in.Response != "" {
		return domain.Response{}, Progress{}, domain.Validationf("provide either a score or a response type, not both")
	}

	audit, err := s.audits.Get(ctx, auditID)
	if err != nil {
		return domain.Response{}, Progress{}, err
	}
	template, err := s.templates.Get(ctx, audit.TemplateID)
	if err != nil {
		return domain.Response{}, Progress{}, fmt.Errorf("load template: %w", err)
	}
	question, ok := template.QuestionByID(in.QuestionID)
	if !ok {
		return domain.Response{}, Progress{}, domain.ErrQuestionMismatch
	}

	score := in.Score
	if in.Response != "" {
		score, err = in.Response.ScoreFor(question.MaxScore)
		if err != nil {
			return domain.Response{}, Progress{}, err
		}
	}
	if score != nil && (*score < 0 || *score > question.MaxScore) {
		return domain.Response{}, Progress{}, fmt.Errorf("score must be between 0 and %d: %w", question.MaxScore, domain.ErrScoreOutOfRange)
	}

	var (
		saved    domain.Response
		progress Progress
	)
	err = s.audits.Mutate(ctx, auditID, func(tx ports.AuditMutation) error {
		audit := tx.Audit()
		if !audit.AuthorizedActor(actor) {
			return domain.ErrForbidden
		}
		if !audit.Editable() {
			return domain.ErrInvalidState
		}
		if question.TemplateID != audit.TemplateID {
			return domain.ErrQuestionMismatch
		}

		resp, err := tx.UpsertResponse(domain.Response{
			ID:          uuid.NewString(),
			AuditID:     audit.ID,
			QuestionID:  question.ID,
			Type:        in.Response,
			Score:       score,
			Notes:       in.Notes,
			EvidenceRef: in.EvidenceRef,
			RespondedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		saved = resp

		responses, err := tx.Responses()
		if err != nil {
			return err
		}
		audit.TotalScore, audit.ScorePercentage = RecomputeScore(audit.MaxPossibleScore, responses)
		if err := tx.SaveAudit(audit); err != nil {
			return err
		}

		progress = Progress{
			Answered:        len(responses),
			Total:           len(template.Questions),
			Percentage:      progressOf(len(responses), len(template.Questions)),
			CurrentScore:    audit.TotalScore,
			MaxScore:        audit.MaxPossibleScore,
			ScorePercentage: audit.ScorePercentage,
		}

		detail := map[string]any{"question_id": question.ID}
		if score != nil {
			detail["score"] = *score
		}
		return tx.AppendEvent(lifecycleEvent(audit, domain.EventResponseSaved, actor, audit.Status, detail))
	})
	if err != nil {
		return domain.Response{}, Progress{}, err
	}
	return saved, progress, nil
}

// Complete finishes an in_progress audit once every required question has a
// response row. A row with a nil score (for instance "na") still counts as
// answered.
func (s *AuditService) Complete(ctx context.Context, auditID string, actor domain.Actor) (domain.Audit, error) {
	audit, err := s.audits.Get(ctx, auditID)
	if err != nil {
		return domain.Audit{}, err
	}
	template, err := s.templates.Get(ctx, audit.TemplateID)
	if err != nil {
		return domain.Audit{}, fmt.Errorf("load template: %w", err)
	}

	var result domain.Audit
	err = s.audits.Mutate(ctx, auditID, func(tx ports.AuditMutation) error {
		audit := tx.Audit()
		if !audit.AuthorizedActor(actor) {
			return domain.ErrForbidden
		}
		if audit.Status != domain.StatusInProgress {
			return domain.ErrInvalidTransition
		}

		responses, err := tx.Responses()
		if err != nil {
			return err
		}

		required := template.RequiredCount()
		answeredRequired := 0
		for _, r := range responses {
			if q, ok := template.QuestionByID(r.QuestionID); ok && q.IsRequired {
				answeredRequired++
			}
		}
		if answeredRequired < required {
			return &domain.IncompleteRequiredError{Missing: required - answeredRequired}
		}

		audit.TotalScore, audit.ScorePercentage = RecomputeScore(audit.MaxPossibleScore, responses)
		now := time.Now().UTC()
		before := audit.Status
		audit.Status = domain.StatusCompleted
		audit.CompletedAt = &now
		if err := tx.SaveAudit(audit); err != nil {
			return err
		}
		result = audit
		return tx.AppendEvent(lifecycleEvent(audit, domain.EventAuditCompleted, actor, before, map[string]any{
			"total_score":      audit.TotalScore,
			"score_percentage": audit.ScorePercentage,
		}))
	})
	if err != nil {
		return domain.Audit{}, err
	}
	return result, nil
}

// Cancel is creator-only and legal from draft or in_progress.
func (s *AuditService) Cancel(ctx context.Context, auditID string, actor domain.Actor) (domain.Audit, error) {
	var result domain.Audit
	err := s.audits.Mutate(ctx, auditID, func(tx ports.AuditMutation) error {
		audit := tx.Audit()
		if actor.ID != audit.CreatedBy {
			return domain.ErrForbidden
		}
		if audit.Status.Terminal() {
			return domain.ErrInvalidTransition
		}

		before := audit.Status
		audit.Status = domain.StatusCancelled
		if err := tx.SaveAudit(audit); err != nil {
			return err
		}
		result = audit
		return tx.AppendEvent(lifecycleEvent(audit, domain.EventAuditCancelled, actor, before, nil))
	})
	if err != nil {
		return domain.Audit{}, err
	}
	return result, nil
}

// QuestionView pairs a template question with the audit's current answer.
type QuestionView struct {
	Question domain.Question
	Response *domain.Response
}

func (s *AuditService) Questions(ctx context.Context, auditID string, actor domain.Actor) ([]QuestionView, Progress, error) {
	audit, err := s.Get(ctx, auditID, actor)
	if err != nil {
		return nil, Progress{}, err
	}
	template, err := s.templates.Get(ctx, audit.TemplateID)
	if err != nil {
		return nil, Progress{}, fmt.Errorf("load template: %w", err)
	}
	responses, err := s.audits.ListResponses(ctx, auditID)
	if err != nil {
		return nil, Progress{}, err
	}

	byQuestion := make(map[string]domain.Response, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	views := make([]QuestionView, 0, len(template.Questions))
	for _, q := range template.Questions {
		view := QuestionView{Question: q}
		if r, ok := byQuestion[q.ID]; ok {
			resp := r
			view.Response = &resp
		}
		views = append(views, view)
	}

	progress := Progress{
		Answered:        len(responses),
		Total:           len(template.Questions),
		Percentage:      progressOf(len(responses), len(template.Questions)),
		CurrentScore:    audit.TotalScore,
		MaxScore:        audit.MaxPossibleScore,
		ScorePercentage: audit.ScorePercentage,
	}
	return views, progress, nil
}

// AuditSummary is the full statistics view of one audit.
type AuditSummary struct {
	Audit      domain.Audit
	Progress   Progress
	Categories []CategoryScore
}

func (s *AuditService) Summary(ctx context.Context, auditID string, actor domain.Actor) (AuditSummary, error) {
	audit, err := s.Get(ctx, auditID, actor)
	if err != nil {
		return AuditSummary{}, err
	}
	return s.summarize(ctx, audit)
}

func (s *AuditService) summarize(ctx context.Context, audit domain.Audit) (AuditSummary, error) {
	template, err := s.templates.Get(ctx, audit.TemplateID)
	if err != nil {
		return AuditSummary{}, fmt.Errorf("load template: %w", err)
	}
	responses, err := s.audits.ListResponses(ctx, audit.ID)
	if err != nil {
		return AuditSummary{}, err
	}

	return AuditSummary{
		Audit: audit,
		Progress: Progress{
			Answered:        len(responses),
			Total:           len(template.Questions),
			Percentage:      progressOf(len(responses), len(template.Questions)),
			CurrentScore:    audit.TotalScore,
			MaxScore:        audit.MaxPossibleScore,
			ScorePercentage: audit.ScorePercentage,
		},
		Categories: CategoryBreakdown(template, responses),
	}, nil
}

// recordEvent appends a trail event without changing the audit row. Used by
// mutations that live outside this service but still belong on the trail.
func (s *AuditService) recordEvent(ctx context.Context, auditID, action string, actor domain.Actor, detail map[string]any) error {
	return s.audits.Mutate(ctx, auditID, func(tx ports.AuditMutation) error {
		audit := tx.Audit()
		return tx.AppendEvent(lifecycleEvent(audit, action, actor, audit.Status, detail))
	})
}

func lifecycleEvent(audit domain.Audit, action string, actor domain.Actor, before domain.Status, detail map[string]any) domain.LifecycleEvent {
	var payload json.RawMessage
	if detail != nil {
		payload, _ = json.Marshal(detail)
	}
	return domain.LifecycleEvent{
		EventID:      uuid.NewString(),
		AuditID:      audit.ID,
		Action:       action,
		Actor:        actor.ID,
		BeforeStatus: before,
		AfterStatus:  audit.Status,
		Detail:       payload,
		OccurredAt:   time.Now().UTC(),
	}
}
