package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

// RecommendationThresholds are the band boundaries for generated guidance,
// expressed as percentages. Each bound is exclusive at the top: a category
// below High is high priority, below Medium is medium, below Low is a low
// priority improvement note, and everything at or above Low earns a
// commendation.
type RecommendationThresholds struct {
	High   decimal.Decimal
	Medium decimal.Decimal
	Low    decimal.Decimal
}

func DefaultThresholds() RecommendationThresholds {
	return RecommendationThresholds{
		High:   decimal.NewFromInt(60),
		Medium: decimal.NewFromInt(75),
		Low:    decimal.NewFromInt(85),
	}
}

func (t RecommendationThresholds) Validate() error {
	if !t.High.IsPositive() || t.Medium.LessThanOrEqual(t.High) || t.Low.LessThanOrEqual(t.Medium) {
		return domain.Validationf("thresholds must satisfy 0 < high < medium < low")
	}
	return nil
}

// RecommendationService regenerates threshold-driven guidance for completed
// audits and manages manually authored recommendations.
type RecommendationService struct {
	recs       ports.RecommendationRepository
	audits     *AuditService
	thresholds RecommendationThresholds
}

func NewRecommendationService(recs ports.RecommendationRepository, audits *AuditService, thresholds RecommendationThresholds) *RecommendationService {
	return &RecommendationService{recs: recs, audits: audits, thresholds: thresholds}
}

// Generate replaces the audit's auto-generated recommendation set: one
// recommendation per scored category plus a General one from the overall
// percentage. The delete-and-insert runs as a single transaction so readers
// never observe a half-regenerated set. Repeated calls with unchanged scores
// produce the same set.
func (s *RecommendationService) Generate(ctx context.Context, auditID string, actor domain.Actor) ([]domain.Recommendation, error) {
	summary, err := s.audits.Summary(ctx, auditID, actor)
	if err != nil {
		return nil, err
	}
	if summary.Audit.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("recommendations need a completed audit: %w", domain.ErrInvalidState)
	}

	recs := make([]domain.Recommendation, 0, len(summary.Categories)+1)
	for _, cs := range summary.Categories {
		priority, text := s.categoryAdvice(cs.Category, cs.Percentage)
		recs = append(recs, domain.Recommendation{
			ID:            uuid.NewString(),
			AuditID:       auditID,
			Category:      cs.Category,
			Text:          text,
			Priority:      priority,
			AutoGenerated: true,
			CreatedAt:     time.Now().UTC(),
		})
	}

	priority, text := s.generalAdvice(summary.Audit.ScorePercentage)
	recs = append(recs, domain.Recommendation{
		ID:            uuid.NewString(),
		AuditID:       auditID,
		Category:      "General",
		Text:          text,
		Priority:      priority,
		AutoGenerated: true,
		CreatedAt:     time.Now().UTC(),
	})

	stored, err := s.recs.ReplaceAuto(ctx, auditID, recs)
	if err != nil {
		return nil, err
	}
	err = s.audits.recordEvent(ctx, auditID, domain.EventRecommendationsMade, actor, map[string]any{
		"count": len(stored),
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

type CreateRecommendationInput struct {
	Category string
	Text     string
	Priority domain.Priority
}

func (s *RecommendationService) Create(ctx context.Context, auditID string, in CreateRecommendationInput, actor domain.Actor) (domain.Recommendation, error) {
	if _, err := s.audits.Get(ctx, auditID, actor); err != nil {
		return domain.Recommendation{}, err
	}
	if strings.TrimSpace(in.Category) == "" || strings.TrimSpace(in.Text) == "" {
		return domain.Recommendation{}, domain.Validationf("category and text are required")
	}
	if !in.Priority.Valid() {
		return domain.Recommendation{}, domain.Validationf("unknown priority %q", string(in.Priority))
	}
	return s.recs.Create(ctx, domain.Recommendation{
		ID:        uuid.NewString(),
		AuditID:   auditID,
		Category:  in.Category,
		Text:      in.Text,
		Priority:  in.Priority,
		CreatedBy: actor.ID,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *RecommendationService) List(ctx context.Context, auditID string, priority domain.Priority, auto *bool, actor domain.Actor) ([]domain.Recommendation, error) {
	if _, err := s.audits.Get(ctx, auditID, actor); err != nil {
		return nil, err
	}
	if priority != "" && !priority.Valid() {
		return nil, domain.Validationf("unknown priority %q", string(priority))
	}
	return s.recs.List(ctx, ports.RecommendationFilter{AuditID: auditID, Priority: priority, Auto: auto})
}

// Delete removes one recommendation. The owning audit must be visible to the
// actor, so a recommendation on another tenant's audit cannot be deleted.
func (s *RecommendationService) Delete(ctx context.Context, id string, actor domain.Actor) (bool, error) {
	rec, err := s.recs.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := s.audits.Get(ctx, rec.AuditID, actor); err != nil {
		return false, err
	}
	return s.recs.Delete(ctx, id)
}

// Summary counts the audit's recommendations by priority and provenance.
func (s *RecommendationService) Summary(ctx context.Context, auditID string, actor domain.Actor) (domain.RecommendationSummary, error) {
	recs, err := s.List(ctx, auditID, "", nil, actor)
	if err != nil {
		return domain.RecommendationSummary{}, err
	}
	var summary domain.RecommendationSummary
	for _, rec := range recs {
		summary.Total++
		switch rec.Priority {
		case domain.PriorityHigh:
			summary.HighPriority++
		case domain.PriorityMedium:
			summary.MediumPriority++
		case domain.PriorityLow:
			summary.LowPriority++
		}
		if rec.AutoGenerated {
			summary.AutoGenerated++
		} else {
			summary.Manual++
		}
	}
	return summary, nil
}

func (s *RecommendationService) categoryAdvice(category string, pct decimal.Decimal) (domain.Priority, string) {
	shown := pct.StringFixed(1)
	switch {
	case pct.LessThan(s.thresholds.High):
		return domain.PriorityHigh, fmt.Sprintf(
			"Category %q scored %s%% and requires immediate attention. Review every related process, set up a corrective action plan, train the responsible staff and schedule a follow-up within 30 days.",
			category, shown)
	case pct.LessThan(s.thresholds.Medium):
		return domain.PriorityMedium, fmt.Sprintf(
			"Category %q scored %s%% and should be improved. Document the processes more thoroughly, reinforce the existing controls and run periodic reviews.",
			category, shown)
	case pct.LessThan(s.thresholds.Low):
		return domain.PriorityLow, fmt.Sprintf(
			"Category %q scored %s%% and can still be optimized. Look for continuous improvement opportunities and keep up the current good practices.",
			category, shown)
	default:
		return domain.PriorityLow, fmt.Sprintf(
			"Excellent performance: category %q scored %s%%. Maintain the current standards and document the practices so they can be replicated.",
			category, shown)
	}
}

func (s *RecommendationService) generalAdvice(pct decimal.Decimal) (domain.Priority, string) {
	shown := pct.StringFixed(1)
	switch {
	case pct.LessThan(s.thresholds.High):
		return domain.PriorityHigh, fmt.Sprintf(
			"An overall score of %s%% calls for significant improvement. Establish an improvement committee, assign dedicated resources and run a follow-up audit within 60 days.",
			shown)
	case pct.LessThan(s.thresholds.Medium):
		return domain.PriorityMedium, fmt.Sprintf(
			"An overall score of %s%% is acceptable but improvable. Focus on the lowest scoring areas and define follow-up indicators.",
			shown)
	case pct.LessThan(s.thresholds.Low):
		return domain.PriorityLow, fmt.Sprintf(
			"An overall score of %s%% is good. Hold the current level and look for excellence in specific areas.",
			shown)
	default:
		return domain.PriorityLow, fmt.Sprintf(
			"Excellent overall score of %s%%. Maintain the standards, document best practices and serve as a reference for other areas.",
			shown)
	}
}
