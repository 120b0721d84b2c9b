package domain

import (
	"strings"
	"time"
)

const (
	MinComparisonAudits = 2
	MaxComparisonAudits = 5
)

// Comparison is a saved, ordered grouping of completed audits. The statistics
// derived from it are recomputed on every request, never cached.
type Comparison struct {
	ID          string
	Name        string
	Description string
	AuditIDs    []string
	CreatedBy   string
	CreatedAt   time.Time
}

func (c Comparison) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Validationf("comparison name is required")
	}
	return ValidateComparisonSet(c.AuditIDs)
}

// ValidateComparisonSet enforces the 2..5 cardinality and id uniqueness that
// every comparison or trend request shares.
func ValidateComparisonSet(auditIDs []string) error {
	if len(auditIDs) < MinComparisonAudits {
		return Validationf("select at least %d audits to compare", MinComparisonAudits)
	}
	if len(auditIDs) > MaxComparisonAudits {
		return Validationf("at most %d audits can be compared at once", MaxComparisonAudits)
	}
	seen := make(map[string]bool, len(auditIDs))
	for _, id := range auditIDs {
		if seen[id] {
			return Validationf("duplicate audit id %s", id)
		}
		seen[id] = true
	}
	return nil
}
