package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditworks/auditapi/internal/core/domain"
)

type actorModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Role      string    `gorm:"column:role;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (actorModel) TableName() string { return "actors" }

type apiKeyModel struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	ActorID   string    `gorm:"column:actor_id;not null"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (apiKeyModel) TableName() string { return "api_keys" }

type companyModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	OwnerID   string    `gorm:"column:owner_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (companyModel) TableName() string { return "companies" }

type templateModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Standard    string    `gorm:"column:standard;not null"`
	Description string    `gorm:"column:description;not null"`
	Version     int       `gorm:"column:version;not null"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (templateModel) TableName() string { return "audit_templates" }

type questionModel struct {
	ID         string `gorm:"column:id;primaryKey"`
	TemplateID string `gorm:"column:template_id;not null"`
	Category   string `gorm:"column:category;not null"`
	Text       string `gorm:"column:text;not null"`
	OrderNum   int    `gorm:"column:order_num;not null"`
	MaxScore   int    `gorm:"column:max_score;not null"`
	IsRequired bool   `gorm:"column:is_required;not null"`
	HelpText   string `gorm:"column:help_text;not null"`
}

func (questionModel) TableName() string { return "template_questions" }

type auditModel struct {
	ID               string          `gorm:"column:id;primaryKey"`
	Title            string          `gorm:"column:title;not null"`
	TemplateID       string          `gorm:"column:template_id;not null"`
	CompanyID        string          `gorm:"column:company_id;not null"`
	AssignedTo       string          `gorm:"column:assigned_to;not null"`
	CreatedBy        string          `gorm:"column:created_by;not null"`
	Status           string          `gorm:"column:status;not null"`
	ScheduledDate    *time.Time      `gorm:"column:scheduled_date"`
	StartedAt        *time.Time      `gorm:"column:started_at"`
	CompletedAt      *time.Time      `gorm:"column:completed_at"`
	TotalScore       decimal.Decimal `gorm:"column:total_score;not null"`
	MaxPossibleScore decimal.Decimal `gorm:"column:max_possible_score;not null"`
	ScorePercentage  decimal.Decimal `gorm:"column:score_percentage;not null"`
	Notes            string          `gorm:"column:notes;not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;not null"`
}

func (auditModel) TableName() string { return "audits" }

type responseModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	AuditID     string    `gorm:"column:audit_id;not null"`
	QuestionID  string    `gorm:"column:question_id;not null"`
	Type        string    `gorm:"column:response_type;not null"`
	Score       *int      `gorm:"column:score"`
	Notes       string    `gorm:"column:notes;not null"`
	EvidenceRef string    `gorm:"column:evidence_ref;not null"`
	RespondedAt time.Time `gorm:"column:responded_at;not null"`
}

func (responseModel) TableName() string { return "audit_responses" }

type recommendationModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	AuditID       string    `gorm:"column:audit_id;not null"`
	Category      string    `gorm:"column:category;not null"`
	Text          string    `gorm:"column:text;not null"`
	Priority      string    `gorm:"column:priority;not null"`
	AutoGenerated bool      `gorm:"column:is_auto_generated;not null"`
	CreatedBy     string    `gorm:"column:created_by;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (recommendationModel) TableName() string { return "recommendations" }

type comparisonModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null"`
	CreatedBy   string    `gorm:"column:created_by;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (comparisonModel) TableName() string { return "comparisons" }

type comparisonAuditModel struct {
	ComparisonID string `gorm:"column:comparison_id;primaryKey"`
	AuditID      string `gorm:"column:audit_id;primaryKey"`
	Position     int    `gorm:"column:position;not null"`
}

func (comparisonAuditModel) TableName() string { return "comparison_audits" }

type lifecycleEventModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      string    `gorm:"column:event_id;not null"`
	AuditID      string    `gorm:"column:audit_id;not null"`
	Action       string    `gorm:"column:action;not null"`
	Actor        string    `gorm:"column:actor;not null"`
	BeforeStatus string    `gorm:"column:before_status;not null"`
	AfterStatus  string    `gorm:"column:after_status;not null"`
	DetailJSON   string    `gorm:"column:detail_json"`
	OccurredAt   time.Time `gorm:"column:occurred_at;not null"`
}

func (lifecycleEventModel) TableName() string { return "lifecycle_events" }

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	AuditID       string     `gorm:"column:audit_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string { return "outbox_events" }

func toAudit(m auditModel, c companyModel) domain.Audit {
	return domain.Audit{
		ID:               m.ID,
		Title:            m.Title,
		TemplateID:       m.TemplateID,
		Company:          domain.CompanyRef{ID: c.ID, Name: c.Name, OwnerID: c.OwnerID},
		AssignedTo:       m.AssignedTo,
		CreatedBy:        m.CreatedBy,
		Status:           domain.Status(m.Status),
		ScheduledDate:    m.ScheduledDate,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		TotalScore:       m.TotalScore,
		MaxPossibleScore: m.MaxPossibleScore,
		ScorePercentage:  m.ScorePercentage,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toResponse(m responseModel) domain.Response {
	return domain.Response{
		ID:          m.ID,
		AuditID:     m.AuditID,
		QuestionID:  m.QuestionID,
		Type:        domain.ResponseType(m.Type),
		Score:       m.Score,
		Notes:       m.Notes,
		EvidenceRef: m.EvidenceRef,
		RespondedAt: m.RespondedAt,
	}
}

func toRecommendation(m recommendationModel) domain.Recommendation {
	return domain.Recommendation{
		ID:            m.ID,
		AuditID:       m.AuditID,
		Category:      m.Category,
		Text:          m.Text,
		Priority:      domain.Priority(m.Priority),
		AutoGenerated: m.AutoGenerated,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

func toQuestion(m questionModel) domain.Question {
	return domain.Question{
		ID:         m.ID,
		TemplateID: m.TemplateID,
		Category:   m.Category,
		Text:       m.Text,
		OrderNum:   m.OrderNum,
		MaxScore:   m.MaxScore,
		IsRequired: m.IsRequired,
		HelpText:   m.HelpText,
	}
}
