package notify

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// LogNotifier пишет уведомления в лог. Используется, когда брокер не настроен.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier поверх logger.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "log-notifier")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(_ context.Context, msg domain.OutboxMessage) error {
	n.logger.WithFields(log.Fields{
		"outbox_id":      msg.ID,
		"event_type":     msg.EventType,
		"aggregate_type": msg.AggregateType,
		"aggregate_id":   msg.AggregateID,
		"payload":        string(msg.Payload),
	}).Info("notification")
	return nil
}

var _ domain.OutboxPublisher = (*LogNotifier)(nil)
