package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	outboxPending = "pending"
	outboxSent    = "sent"
	outboxFailed  = "failed"
)

type outboxRepository struct {
	store *Store
}

// NewOutboxRepository создаёт in-memory outbox. Сообщения хранятся в порядке постановки.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{store: store}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	err := r.store.write(ctx, func(st *state) error {
		st.outbox = append(st.outbox, &outboxRecord{msg: msg, status: outboxPending})
		return nil
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxMessage, 0, limit)
	err := r.store.read(ctx, func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status != outboxPending {
				continue
			}
			result = append(result, rec.msg)
			if len(result) >= limit {
				break
			}
		}
		return nil
	})
	return result, err
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	err := r.store.read(ctx, func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status != outboxPending {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.msg.CreatedAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.msg.CreatedAt
			}
		}
		return nil
	})
	return stats, err
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxFailed)
}

func (r *outboxRepository) mark(ctx context.Context, id, status string) error {
	return r.store.write(ctx, func(st *state) error {
		for _, rec := range st.outbox {
			if rec.msg.ID == id {
				rec.status = status
				rec.attempts++
				return nil
			}
		}
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	})
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
