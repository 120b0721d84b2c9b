package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auditworks/auditapi/internal/adapters/sqlite/gormsqlite"
	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

type LifecycleEventRepository struct {
	db *gormsqlite.DB
}

func NewLifecycleEventRepository(db *gormsqlite.DB) *LifecycleEventRepository {
	return &LifecycleEventRepository{db: db}
}

var _ ports.LifecycleEventRepository = (*LifecycleEventRepository)(nil)

func (r *LifecycleEventRepository) List(ctx context.Context, auditID string, afterID int64, limit int) ([]domain.LifecycleEvent, error) {
	var rows []lifecycleEventModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&lifecycleEventModel{}).Where("audit_id = ?", auditID)
		if afterID > 0 {
			query = query.Where("id > ?", afterID)
		}
		return query.Order("id ASC").Limit(limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list lifecycle events: %w", err)
	}

	result := make([]domain.LifecycleEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.LifecycleEvent{
			ID:           row.ID,
			EventID:      row.EventID,
			AuditID:      row.AuditID,
			Action:       row.Action,
			Actor:        row.Actor,
			BeforeStatus: domain.Status(row.BeforeStatus),
			AfterStatus:  domain.Status(row.AfterStatus),
			Detail:       json.RawMessage(row.DetailJSON),
			OccurredAt:   row.OccurredAt,
		})
	}
	return result, nil
}

type OutboxRepository struct {
	db *gormsqlite.DB
}

func NewOutboxRepository(db *gormsqlite.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

var _ ports.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outboxEventModel
	now := time.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", "pending", now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}

	result := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxEvent{
			ID:            row.ID,
			EventID:       row.EventID,
			AuditID:       row.AuditID,
			Topic:         row.Topic,
			PayloadJSON:   json.RawMessage(row.PayloadJSON),
			Status:        row.Status,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
			CreatedAt:     row.CreatedAt,
			DispatchedAt:  row.DispatchedAt,
		})
	}
	return result, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dispatched", "dispatched_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"attempts": attempts, "next_attempt_at": parsed, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dead", "attempts": attempts, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox dead: %w", err)
	}
	return nil
}
