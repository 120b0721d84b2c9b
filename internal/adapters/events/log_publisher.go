package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/auditworks/auditapi/internal/core/domain"
)

// LogPublisher is the default sink when no webhook is configured: events are
// written to the structured log and counted as delivered.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.log.Info("outbox publish",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("audit_id", event.AuditID),
		zap.String("actor", event.Actor))
	return nil
}
