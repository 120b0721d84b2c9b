package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auditworks/auditapi/internal/adapters/sqlite/gormsqlite"
	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

// AuditStore persists audits together with their responses. Every mutation
// runs on the single writer connection, and the lifecycle event plus its
// outbox row are inserted in the same transaction as the state change.
type AuditStore struct {
	db *gormsqlite.DB
}

func NewAuditStore(db *gormsqlite.DB) *AuditStore {
	return &AuditStore{db: db}
}

var _ ports.AuditStore = (*AuditStore)(nil)

func (s *AuditStore) Create(ctx context.Context, audit domain.Audit) (domain.Audit, error) {
	now := time.Now().UTC()
	model := auditModel{
		ID:               audit.ID,
		Title:            audit.Title,
		TemplateID:       audit.TemplateID,
		CompanyID:        audit.Company.ID,
		AssignedTo:       audit.AssignedTo,
		CreatedBy:        audit.CreatedBy,
		Status:           string(audit.Status),
		ScheduledDate:    audit.ScheduledDate,
		TotalScore:       audit.TotalScore,
		MaxPossibleScore: audit.MaxPossibleScore,
		ScorePercentage:  audit.ScorePercentage,
		Notes:            audit.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
		event := domain.LifecycleEvent{
			AuditID:      audit.ID,
			Action:       domain.EventAuditCreated,
			Actor:        audit.CreatedBy,
			BeforeStatus: "",
			AfterStatus:  audit.Status,
			OccurredAt:   now,
		}
		return insertEventAndOutbox(tx.DB, event)
	})
	if err != nil {
		return domain.Audit{}, err
	}

	audit.CreatedAt = now
	audit.UpdatedAt = now
	return audit, nil
}

func (s *AuditStore) Get(ctx context.Context, id string) (domain.Audit, error) {
	var audit domain.Audit
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		loaded, err := loadAudit(tx.DB, id)
		if err != nil {
			return err
		}
		audit = loaded
		return nil
	})
	if err != nil {
		return domain.Audit{}, err
	}
	return audit, nil
}

func (s *AuditStore) GetMany(ctx context.Context, ids []string) ([]domain.Audit, error) {
	var rows []auditModel
	companies := map[string]companyModel{}
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return fmt.Errorf("load audits: %w", err)
		}
		return loadCompanies(tx.DB, rows, companies)
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]auditModel, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	// Preserve the caller's ordering; missing ids are skipped, the caller
	// decides whether a short result is an error.
	result := make([]domain.Audit, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		result = append(result, toAudit(row, companies[row.CompanyID]))
	}
	return result, nil
}

func (s *AuditStore) List(ctx context.Context, filter ports.AuditListFilter) ([]domain.Audit, error) {
	var rows []auditModel
	companies := map[string]companyModel{}
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditModel{})
		switch filter.Actor.Role {
		case domain.RoleOwner:
			query = query.Where(
				"created_by = ? OR company_id IN (SELECT id FROM companies WHERE owner_id = ?)",
				filter.Actor.ID, filter.Actor.ID,
			)
		default:
			query = query.Where("assigned_to = ?", filter.Actor.ID)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", string(filter.Status))
		}
		if filter.CompanyID != "" {
			query = query.Where("company_id = ?", filter.CompanyID)
		}
		if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
			return fmt.Errorf("list audits: %w", err)
		}
		return loadCompanies(tx.DB, rows, companies)
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.Audit, 0, len(rows))
	for _, row := range rows {
		result = append(result, toAudit(row, companies[row.CompanyID]))
	}
	return result, nil
}

func (s *AuditStore) ListResponses(ctx context.Context, auditID string) ([]domain.Response, error) {
	var rows []responseModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return listResponses(tx.DB, auditID, &rows)
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.Response, 0, len(rows))
	for _, row := range rows {
		result = append(result, toResponse(row))
	}
	return result, nil
}

// Mutate re-reads the audit under the write transaction before handing it to
// fn, so the callback always recomputes from current state.
func (s *AuditStore) Mutate(ctx context.Context, auditID string, fn func(tx ports.AuditMutation) error) error {
	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		audit, err := loadAudit(tx.DB, auditID)
		if err != nil {
			return err
		}
		return fn(&auditMutation{tx: tx.DB, audit: audit})
	})
}

type auditMutation struct {
	tx    *gorm.DB
	audit domain.Audit
}

func (m *auditMutation) Audit() domain.Audit { return m.audit }

func (m *auditMutation) Responses() ([]domain.Response, error) {
	var rows []responseModel
	if err := listResponses(m.tx, m.audit.ID, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.Response, 0, len(rows))
	for _, row := range rows {
		result = append(result, toResponse(row))
	}
	return result, nil
}

func (m *auditMutation) UpsertResponse(resp domain.Response) (domain.Response, error) {
	model := responseModel{
		ID:          resp.ID,
		AuditID:     resp.AuditID,
		QuestionID:  resp.QuestionID,
		Type:        string(resp.Type),
		Score:       resp.Score,
		Notes:       resp.Notes,
		EvidenceRef: resp.EvidenceRef,
		RespondedAt: resp.RespondedAt,
	}
	if err := m.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "audit_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response_type", "score", "notes", "evidence_ref", "responded_at"}),
	}).Create(&model).Error; err != nil {
		return domain.Response{}, fmt.Errorf("upsert response: %w", err)
	}

	// Re-read so a replaced answer keeps the row's original id.
	var saved responseModel
	if err := m.tx.Where("audit_id = ? AND question_id = ?", resp.AuditID, resp.QuestionID).First(&saved).Error; err != nil {
		return domain.Response{}, fmt.Errorf("load saved response: %w", err)
	}
	return toResponse(saved), nil
}

func (m *auditMutation) SaveAudit(audit domain.Audit) error {
	now := time.Now().UTC()
	err := m.tx.Model(&auditModel{}).Where("id = ?", audit.ID).Updates(map[string]any{
		"status":           string(audit.Status),
		"started_at":       audit.StartedAt,
		"completed_at":     audit.CompletedAt,
		"total_score":      audit.TotalScore,
		"score_percentage": audit.ScorePercentage,
		"notes":            audit.Notes,
		"updated_at":       now,
	}).Error
	if err != nil {
		return fmt.Errorf("save audit: %w", err)
	}
	audit.UpdatedAt = now
	m.audit = audit
	return nil
}

func (m *auditMutation) AppendEvent(event domain.LifecycleEvent) error {
	return insertEventAndOutbox(m.tx, event)
}

func loadAudit(tx *gorm.DB, id string) (domain.Audit, error) {
	var model auditModel
	if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Audit{}, domain.ErrNotFound
		}
		return domain.Audit{}, fmt.Errorf("load audit: %w", err)
	}
	var company companyModel
	if err := tx.Where("id = ?", model.CompanyID).First(&company).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Audit{}, fmt.Errorf("load audit company: %w", err)
		}
	}
	return toAudit(model, company), nil
}

func loadCompanies(tx *gorm.DB, audits []auditModel, into map[string]companyModel) error {
	ids := make([]string, 0, len(audits))
	seen := map[string]bool{}
	for _, a := range audits {
		if !seen[a.CompanyID] {
			seen[a.CompanyID] = true
			ids = append(ids, a.CompanyID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var rows []companyModel
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return fmt.Errorf("load companies: %w", err)
	}
	for _, row := range rows {
		into[row.ID] = row
	}
	return nil
}

func listResponses(tx *gorm.DB, auditID string, into *[]responseModel) error {
	err := tx.Model(&responseModel{}).
		Joins("JOIN template_questions q ON q.id = audit_responses.question_id").
		Where("audit_responses.audit_id = ?", auditID).
		Order("q.order_num ASC").
		Select("audit_responses.*").
		Find(into).Error
	if err != nil {
		return fmt.Errorf("list responses: %w", err)
	}
	return nil
}

func insertEventAndOutbox(tx *gorm.DB, event domain.LifecycleEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	row := lifecycleEventModel{
		EventID:      event.EventID,
		AuditID:      event.AuditID,
		Action:       event.Action,
		Actor:        event.Actor,
		BeforeStatus: string(event.BeforeStatus),
		AfterStatus:  string(event.AfterStatus),
		DetailJSON:   string(event.Detail),
		OccurredAt:   event.OccurredAt,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}

	payload := mustJSON(map[string]any{
		"before_status": event.BeforeStatus,
		"after_status":  event.AfterStatus,
		"detail":        emptyAsNull(event.Detail),
	})
	envelope := domain.EventEnvelope{
		EventID:    event.EventID,
		EventType:  event.Action,
		AuditID:    event.AuditID,
		Actor:      event.Actor,
		OccurredAt: event.OccurredAt,
		Payload:    payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       event.EventID,
		AuditID:       event.AuditID,
		Topic:         "audits." + event.Action,
		PayloadJSON:   string(body),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: event.OccurredAt,
		LastError:     "",
		CreatedAt:     event.OccurredAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func emptyAsNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
