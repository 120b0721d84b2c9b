package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Audit is one run of a template against a company. Score fields are kept in
// two-decimal fixed point; MaxPossibleScore is frozen at creation from the
// template snapshot.
type Audit struct {
	ID               string
	Title            string
	TemplateID       string
	Company          CompanyRef
	AssignedTo       string
	CreatedBy        string
	Status           Status
	ScheduledDate    *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	TotalScore       decimal.Decimal
	MaxPossibleScore decimal.Decimal
	ScorePercentage  decimal.Decimal
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a Audit) OwningCompany() CompanyRef {
	return a.Company
}

// Editable reports whether responses may still be written.
func (a Audit) Editable() bool {
	return a.Status == StatusDraft || a.Status == StatusInProgress
}

// AuthorizedActor reports whether actor may run lifecycle operations other
// than cancel (cancel is restricted to the creator).
func (a Audit) AuthorizedActor(actor Actor) bool {
	return actor.ID == a.AssignedTo || actor.ID == a.CreatedBy
}

// VisibleTo mirrors the listing scope: owners see audits of companies they
// own or audits they created, employees see audits assigned to them.
func (a Audit) VisibleTo(actor Actor) bool {
	if actor.Role == RoleOwner {
		return a.OwningCompany().OwnerID == actor.ID || a.CreatedBy == actor.ID
	}
	return a.AssignedTo == actor.ID
}

type ResponseType string

const (
	ResponseYes     ResponseType = "yes"
	ResponseNo      ResponseType = "no"
	ResponsePartial ResponseType = "partial"
	ResponseNA      ResponseType = "na"
)

// ScoreFor converts a qualitative answer into the numeric score for a
// question with the given maximum. "partial" is half the maximum rounded half
// away from zero; "na" yields no score at all.
func (t ResponseType) ScoreFor(maxScore int) (*int, error) {
	switch t {
	case ResponseYes:
		v := maxScore
		return &v, nil
	case ResponseNo:
		v := 0
		return &v, nil
	case ResponsePartial:
		half := decimal.NewFromInt(int64(maxScore)).Div(decimal.NewFromInt(2)).Round(0)
		v := int(half.IntPart())
		return &v, nil
	case ResponseNA:
		return nil, nil
	}
	return nil, Validationf("unknown response type %q", string(t))
}

// Response is one answer to one template question within one audit. A nil
// Score means "answered without a score" (e.g. not applicable); the row still
// counts toward required-question completion.
type Response struct {
	ID          string
	AuditID     string
	QuestionID  string
	Type        ResponseType
	Score       *int
	Notes       string
	EvidenceRef string
	RespondedAt time.Time
}
