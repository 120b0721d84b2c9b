package usecase

import (
	"context"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

// TrailService lists the lifecycle event trail of an audit.
type TrailService struct {
	events ports.LifecycleEventRepository
	audits *AuditService
}

func NewTrailService(events ports.LifecycleEventRepository, audits *AuditService) *TrailService {
	return &TrailService{events: events, audits: audits}
}

func (s *TrailService) List(ctx context.Context, auditID string, afterID int64, limit int, actor domain.Actor) ([]domain.LifecycleEvent, error) {
	if _, err := s.audits.Get(ctx, auditID, actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.events.List(ctx, auditID, afterID, limit)
}
