package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

// Trend directions.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// ScoreRef points at the audit holding an extreme value. Ties go to the first
// occurrence in input order.
type ScoreRef struct {
	AuditID string          `json:"audit_id"`
	Title   string          `json:"title"`
	Score   decimal.Decimal `json:"score"`
}

type AuditComparison struct {
	AuditID          string          `json:"audit_id"`
	Title            string          `json:"title"`
	Company          string          `json:"company"`
	TemplateID       string          `json:"template_id"`
	TemplateName     string          `json:"template_name"`
	CompletedAt      time.Time       `json:"completed_at"`
	TotalScore       decimal.Decimal `json:"total_score"`
	MaxPossibleScore decimal.Decimal `json:"max_possible_score"`
	ScorePercentage  decimal.Decimal `json:"score_percentage"`
	Categories       []CategoryScore `json:"categories"`
}

type CategoryEntry struct {
	AuditID    string          `json:"audit_id"`
	Title      string          `json:"title"`
	Percentage decimal.Decimal `json:"percentage"`
}

type CategoryComparison struct {
	Category string          `json:"category"`
	Entries  []CategoryEntry `json:"audits"`
	Average  decimal.Decimal `json:"average"`
	Highest  decimal.Decimal `json:"highest"`
	Lowest   decimal.Decimal `json:"lowest"`
	Range    decimal.Decimal `json:"range"`
}

// ComparisonResult is computed fresh on every request.
type ComparisonResult struct {
	SameTemplate bool                 `json:"same_template"`
	TemplateName string               `json:"template_name"`
	TotalAudits  int                  `json:"total_audits"`
	Audits       []AuditComparison    `json:"audits"`
	Average      decimal.Decimal      `json:"average_score"`
	Highest      ScoreRef             `json:"highest_score"`
	Lowest       ScoreRef             `json:"lowest_score"`
	Range        decimal.Decimal      `json:"score_range"`
	Variance     decimal.Decimal      `json:"score_variance"`
	Categories   []CategoryComparison `json:"categories_comparison,omitempty"`
}

type CategoryTrend struct {
	Category         string            `json:"category"`
	Scores           []decimal.Decimal `json:"scores"`
	Trend            string            `json:"trend"`
	ChangePercentage decimal.Decimal   `json:"change_percentage"`
}

type TrendResult struct {
	OverallTrend     string            `json:"overall_trend"`
	ChangePercentage decimal.Decimal   `json:"change_percentage"`
	Timeline         []decimal.Decimal `json:"scores_timeline"`
	AuditsCount      int               `json:"audits_count"`
	Categories       []CategoryTrend   `json:"categories_trends"`
}

// ComparisonService computes cross-audit statistics and manages saved
// comparisons.
type ComparisonService struct {
	audits      ports.AuditStore
	templates   ports.TemplateRepository
	comparisons ports.ComparisonRepository
}

func NewComparisonService(audits ports.AuditStore, templates ports.TemplateRepository, comparisons ports.ComparisonRepository) *ComparisonService {
	return &ComparisonService{audits: audits, templates: templates, comparisons: comparisons}
}

// Compare builds the comparative statistics over 2..5 distinct completed
// audits owned by the actor. Variance is the population variance of the
// overall percentages.
func (s *ComparisonService) Compare(ctx context.Context, auditIDs []string, actor domain.Actor) (ComparisonResult, error) {
	entries, err := s.load(ctx, auditIDs, actor)
	if err != nil {
		return ComparisonResult{}, err
	}

	sameTemplate := true
	for _, e := range entries[1:] {
		if e.audit.TemplateID != entries[0].audit.TemplateID {
			sameTemplate = false
			break
		}
	}

	result := ComparisonResult{
		SameTemplate: sameTemplate,
		TemplateName: "mixed",
		TotalAudits:  len(entries),
	}
	if sameTemplate {
		result.TemplateName = entries[0].template.Name
	}

	scores := make([]decimal.Decimal, 0, len(entries))
	for _, e := range entries {
		scores = append(scores, e.audit.ScorePercentage)
		result.Audits = append(result.Audits, AuditComparison{
			AuditID:          e.audit.ID,
			Title:            e.audit.Title,
			Company:          e.audit.Company.Name,
			TemplateID:       e.audit.TemplateID,
			TemplateName:     e.template.Name,
			CompletedAt:      *e.audit.CompletedAt,
			TotalScore:       e.audit.TotalScore,
			MaxPossibleScore: e.audit.MaxPossibleScore,
			ScorePercentage:  e.audit.ScorePercentage,
			Categories:       e.breakdown,
		})
	}

	hi, lo := 0, 0
	sum := decimal.Zero
	for i, score := range scores {
		sum = sum.Add(score)
		if score.GreaterThan(scores[hi]) {
			hi = i
		}
		if score.LessThan(scores[lo]) {
			lo = i
		}
	}
	n := decimal.NewFromInt(int64(len(scores)))
	mean := sum.DivRound(n, meanScale)

	sqSum := decimal.Zero
	for _, score := range scores {
		diff := score.Sub(mean)
		sqSum = sqSum.Add(diff.Mul(diff))
	}

	result.Average = sum.DivRound(n, 2)
	result.Highest = ScoreRef{AuditID: entries[hi].audit.ID, Title: entries[hi].audit.Title, Score: scores[hi]}
	result.Lowest = ScoreRef{AuditID: entries[lo].audit.ID, Title: entries[lo].audit.Title, Score: scores[lo]}
	result.Range = scores[hi].Sub(scores[lo]).Round(2)
	result.Variance = sqSum.DivRound(n, 2)

	if sameTemplate {
		result.Categories = compareCategories(entries)
	}
	return result, nil
}

// Trends orders the audits by completion time and reports the direction of
// overall and per-category percentages. Unlike Compare, a mixed-template set
// is rejected outright.
func (s *ComparisonService) Trends(ctx context.Context, auditIDs []string, actor domain.Actor) (TrendResult, error) {
	entries, err := s.load(ctx, auditIDs, actor)
	if err != nil {
		return TrendResult{}, err
	}
	for _, e := range entries[1:] {
		if e.audit.TemplateID != entries[0].audit.TemplateID {
			return TrendResult{}, domain.Validationf("trend analysis needs audits sharing one template")
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].audit.CompletedAt.Before(*entries[j].audit.CompletedAt)
	})

	timeline := make([]decimal.Decimal, 0, len(entries))
	for _, e := range entries {
		timeline = append(timeline, e.audit.ScorePercentage)
	}

	result := TrendResult{
		Timeline:    timeline,
		AuditsCount: len(timeline),
	}
	result.OverallTrend, result.ChangePercentage = trendOf(timeline)

	// Categories come from the first audit's breakdown and are only reported
	// when at least two of the ordered audits carry them.
	for _, first := range entries[0].breakdown {
		var scores []decimal.Decimal
		for _, e := range entries {
			for _, cs := range e.breakdown {
				if cs.Category == first.Category {
					scores = append(scores, cs.Percentage)
					break
				}
			}
		}
		if len(scores) < 2 {
			continue
		}
		trend, change := trendOf(scores)
		result.Categories = append(result.Categories, CategoryTrend{
			Category:         first.Category,
			Scores:           scores,
			Trend:            trend,
			ChangePercentage: change,
		})
	}
	return result, nil
}

type CreateComparisonInput struct {
	Name        string
	Description string
	AuditIDs    []string
}

// Save stores a named comparison after validating the audit set the same way
// Compare does.
func (s *ComparisonService) Save(ctx context.Context, in CreateComparisonInput, actor domain.Actor) (domain.Comparison, error) {
	cmp := domain.Comparison{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		AuditIDs:    in.AuditIDs,
		CreatedBy:   actor.ID,
	}
	if err := cmp.Validate(); err != nil {
		return domain.Comparison{}, err
	}
	if _, err := s.load(ctx, in.AuditIDs, actor); err != nil {
		return domain.Comparison{}, err
	}
	return s.comparisons.Create(ctx, cmp)
}

func (s *ComparisonService) Get(ctx context.Context, id string, actor domain.Actor) (domain.Comparison, error) {
	cmp, err := s.comparisons.Get(ctx, id)
	if err != nil {
		return domain.Comparison{}, err
	}
	if cmp.CreatedBy != actor.ID {
		return domain.Comparison{}, domain.ErrForbidden
	}
	return cmp, nil
}

func (s *ComparisonService) List(ctx context.Context, actor domain.Actor) ([]domain.Comparison, error) {
	return s.comparisons.List(ctx, actor.ID)
}

func (s *ComparisonService) Delete(ctx context.Context, id string, actor domain.Actor) (bool, error) {
	return s.comparisons.Delete(ctx, id, actor.ID)
}

// Analyze recomputes Compare over a saved comparison's audit set.
func (s *ComparisonService) Analyze(ctx context.Context, id string, actor domain.Actor) (ComparisonResult, error) {
	cmp, err := s.Get(ctx, id, actor)
	if err != nil {
		return ComparisonResult{}, err
	}
	return s.Compare(ctx, cmp.AuditIDs, actor)
}

// SavedTrends recomputes Trends over a saved comparison's audit set.
func (s *ComparisonService) SavedTrends(ctx context.Context, id string, actor domain.Actor) (TrendResult, error) {
	cmp, err := s.Get(ctx, id, actor)
	if err != nil {
		return TrendResult{}, err
	}
	return s.Trends(ctx, cmp.AuditIDs, actor)
}

type comparisonEntry struct {
	audit     domain.Audit
	template  domain.Template
	breakdown []CategoryScore
}

// load validates the audit set and materializes each audit with its template
// and category breakdown, preserving input order.
func (s *ComparisonService) load(ctx context.Context, auditIDs []string, actor domain.Actor) ([]comparisonEntry, error) {
	if actor.Role != domain.RoleOwner {
		return nil, domain.ErrForbidden
	}
	if err := domain.ValidateComparisonSet(auditIDs); err != nil {
		return nil, err
	}

	audits, err := s.audits.GetMany(ctx, auditIDs)
	if err != nil {
		return nil, err
	}
	if len(audits) != len(auditIDs) {
		return nil, domain.Validationf("some audits do not exist")
	}

	templates := make(map[string]domain.Template)
	entries := make([]comparisonEntry, 0, len(audits))
	for _, audit := range audits {
		if audit.OwningCompany().OwnerID != actor.ID {
			return nil, domain.Validationf("audit %s is outside your scope", audit.ID)
		}
		if audit.Status != domain.StatusCompleted || audit.CompletedAt == nil {
			return nil, domain.Validationf("audit %s is not completed", audit.ID)
		}

		template, ok := templates[audit.TemplateID]
		if !ok {
			template, err = s.templates.Get(ctx, audit.TemplateID)
			if err != nil {
				return nil, fmt.Errorf("load template: %w", err)
			}
			templates[audit.TemplateID] = template
		}
		responses, err := s.audits.ListResponses(ctx, audit.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, comparisonEntry{
			audit:     audit,
			template:  template,
			breakdown: CategoryBreakdown(template, responses),
		})
	}
	return entries, nil
}

func compareCategories(entries []comparisonEntry) []CategoryComparison {
	index := make(map[string]int)
	var result []CategoryComparison
	for _, e := range entries {
		for _, cs := range e.breakdown {
			i, ok := index[cs.Category]
			if !ok {
				i = len(result)
				index[cs.Category] = i
				result = append(result, CategoryComparison{Category: cs.Category})
			}
			result[i].Entries = append(result[i].Entries, CategoryEntry{
				AuditID:    e.audit.ID,
				Title:      e.audit.Title,
				Percentage: cs.Percentage,
			})
		}
	}

	for i := range result {
		cc := &result[i]
		sum := decimal.Zero
		hi, lo := cc.Entries[0].Percentage, cc.Entries[0].Percentage
		for _, entry := range cc.Entries {
			sum = sum.Add(entry.Percentage)
			if entry.Percentage.GreaterThan(hi) {
				hi = entry.Percentage
			}
			if entry.Percentage.LessThan(lo) {
				lo = entry.Percentage
			}
		}
		cc.Average = sum.DivRound(decimal.NewFromInt(int64(len(cc.Entries))), 2)
		cc.Highest = hi
		cc.Lowest = lo
		cc.Range = hi.Sub(lo).Round(2)
	}
	return result
}

func trendOf(scores []decimal.Decimal) (string, decimal.Decimal) {
	first, last := scores[0], scores[len(scores)-1]
	trend := TrendStable
	switch {
	case last.GreaterThan(first):
		trend = TrendImproving
	case last.LessThan(first):
		trend = TrendDeclining
	}
	change := decimal.Zero
	if first.IsPositive() {
		change = last.Sub(first).Mul(hundred).DivRound(first, 2)
	}
	return trend, change
}
