package usecase

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/auditworks/auditapi/internal/core/domain"
)

// All percentage math rounds to 2 decimals, half away from zero. The rounding
// mode matters at band boundaries and is covered by tests.

var (
	hundred = decimal.NewFromInt(100)
	// meanScale keeps intermediate means precise enough that the final
	// 2-decimal rounding is exact for any 2..5 audit set.
	meanScale int32 = 8
)

// RecomputeScore sums every non-nil response score and derives the compliance
// percentage against the audit's frozen maximum. Pure and idempotent: the
// same response set always yields the same totals.
func RecomputeScore(maxPossible decimal.Decimal, responses []domain.Response) (total, percentage decimal.Decimal) {
	sum := 0
	for _, r := range responses {
		if r.Score != nil {
			sum += *r.Score
		}
	}
	total = decimal.NewFromInt(int64(sum))
	if maxPossible.IsPositive() {
		percentage = total.Mul(hundred).DivRound(maxPossible, 2)
	} else {
		percentage = decimal.Zero
	}
	return total.Round(2), percentage
}

// CategoryScore aggregates one category of one audit. MaxScore counts the
// question maximum of every responded question in the category, whether or
// not the response carries a score.
type CategoryScore struct {
	Category           string          `json:"category"`
	TotalScore         int             `json:"total_score"`
	MaxScore           int             `json:"max_score"`
	AnsweredCount      int             `json:"answered"`
	TotalQuestions     int             `json:"total_questions"`
	Percentage         decimal.Decimal `json:"percentage"`
	AveragePerAnswered decimal.Decimal `json:"average_score"`
}

// CategoryBreakdown groups an audit's responses by question category.
// Responses are walked in question order, and categories keep the order they
// were first seen in, so output ordering is deterministic.
func CategoryBreakdown(template domain.Template, responses []domain.Response) []CategoryScore {
	ordered := make([]domain.Response, len(responses))
	copy(ordered, responses)
	orderOf := make(map[string]int, len(template.Questions))
	for _, q := range template.Questions {
		orderOf[q.ID] = q.OrderNum
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return orderOf[ordered[i].QuestionID] < orderOf[ordered[j].QuestionID]
	})

	index := make(map[string]int)
	var breakdown []CategoryScore
	for _, r := range ordered {
		q, ok := template.QuestionByID(r.QuestionID)
		if !ok {
			continue
		}
		i, ok := index[q.Category]
		if !ok {
			i = len(breakdown)
			index[q.Category] = i
			breakdown = append(breakdown, CategoryScore{Category: q.Category})
		}
		breakdown[i].TotalQuestions++
		breakdown[i].MaxScore += q.MaxScore
		if r.Score != nil {
			breakdown[i].TotalScore += *r.Score
			breakdown[i].AnsweredCount++
		}
	}

	for i := range breakdown {
		cs := &breakdown[i]
		cs.Percentage = percentageOf(cs.TotalScore, cs.MaxScore)
		if cs.AnsweredCount > 0 {
			cs.AveragePerAnswered = decimal.NewFromInt(int64(cs.TotalScore)).
				DivRound(decimal.NewFromInt(int64(cs.AnsweredCount)), 2)
		} else {
			cs.AveragePerAnswered = decimal.Zero
		}
	}
	return breakdown
}

func percentageOf(total, max int) decimal.Decimal {
	if max <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(total)).Mul(hundred).
		DivRound(decimal.NewFromInt(int64(max)), 2)
}

// progressOf is the answered-over-total ratio shown while an audit runs.
func progressOf(answered, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(answered)).Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 2)
}
