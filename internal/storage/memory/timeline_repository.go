package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type timelineRepository struct {
	store *Store
}

// NewTimelineRepository создаёт in-memory историю заказов.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{store: store}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[event.OrderID]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, event.OrderID)
		}
		st.timeline[event.OrderID] = append(st.timeline[event.OrderID], event)
		return nil
	})
}

func (r *timelineRepository) List(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	err := r.store.read(ctx, func(st *state) error {
		events = append(make([]domain.TimelineEvent, 0, len(st.timeline[orderID])), st.timeline[orderID]...)
		return nil
	})
	return events, err
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
