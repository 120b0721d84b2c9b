package domain

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Recommendation annotates a completed audit. Auto-generated rows are
// replaced wholesale on regeneration; manual rows are never touched by it.
type Recommendation struct {
	ID            string
	AuditID       string
	Category      string
	Text          string
	Priority      Priority
	AutoGenerated bool
	CreatedBy     string
	CreatedAt     time.Time
}

// RecommendationSummary counts an audit's recommendations by priority and
// provenance.
type RecommendationSummary struct {
	Total          int `json:"total"`
	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
	LowPriority    int `json:"low_priority"`
	AutoGenerated  int `json:"auto_generated"`
	Manual         int `json:"manual"`
}
