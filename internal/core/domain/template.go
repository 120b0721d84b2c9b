package domain

import (
	"strings"
	"time"
)

// Question is one entry of a template. Immutable once the template is stored.
type Question struct {
	ID         string
	TemplateID string
	Category   string
	Text       string
	OrderNum   int
	MaxScore   int
	IsRequired bool
	HelpText   string
}

// Template is an ordered, categorized set of questions. Audits snapshot its
// maximum score at creation, so later edits never move historical results.
type Template struct {
	ID          string
	Name        string
	Standard    string
	Description string
	Version     int
	IsActive    bool
	Questions   []Question
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t Template) MaxPossibleScore() int {
	total := 0
	for _, q := range t.Questions {
		total += q.MaxScore
	}
	return total
}

func (t Template) QuestionByID(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func (t Template) RequiredCount() int {
	n := 0
	for _, q := range t.Questions {
		if q.IsRequired {
			n++
		}
	}
	return n
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return Validationf("template name is required")
	}
	if len(t.Questions) == 0 {
		return Validationf("template needs at least one question")
	}
	seen := make(map[int]bool, len(t.Questions))
	for _, q := range t.Questions {
		if strings.TrimSpace(q.Category) == "" {
			return Validationf("question %d: category is required", q.OrderNum)
		}
		if strings.TrimSpace(q.Text) == "" {
			return Validationf("question %d: text is required", q.OrderNum)
		}
		if q.OrderNum < 1 {
			return Validationf("question order must start at 1")
		}
		if q.MaxScore < 1 {
			return Validationf("question %d: max score must be at least 1", q.OrderNum)
		}
		if seen[q.OrderNum] {
			return Validationf("duplicate question order %d", q.OrderNum)
		}
		seen[q.OrderNum] = true
	}
	return nil
}
