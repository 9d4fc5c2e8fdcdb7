package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

type idempotencyRepository struct {
	store *Store
	now   func() time.Time
}

// NewIdempotencyRepository создаёт in-memory хранилище ключей идемпотентности.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *idempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	var record domain.IdempotencyRecord
	err := r.store.write(ctx, func(st *state) error {
		if existing, ok := st.idempotency[key]; ok && !existing.Expired(now) {
			record = existing
			if existing.RequestHash != requestHash {
				return domain.ErrIdempotencyHashMismatch
			}
			return domain.ErrIdempotencyKeyAlreadyExists
		}

		record = domain.IdempotencyRecord{
			Key:         key,
			RequestHash: requestHash,
			Status:      domain.IdempotencyStatusProcessing,
			TTLAt:       ttlAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		st.idempotency[key] = record
		return nil
	})
	return record, err
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	var record domain.IdempotencyRecord
	err := r.store.read(ctx, func(st *state) error {
		rec, ok := st.idempotency[key]
		if !ok {
			return domain.ErrIdempotencyKeyNotFound
		}
		record = rec
		record.ResponseBody = append([]byte(nil), rec.ResponseBody...)
		return nil
	})
	return record, err
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	removed := 0
	err := r.store.write(ctx, func(st *state) error {
		expired := make([]domain.IdempotencyRecord, 0)
		for _, rec := range st.idempotency {
			if !rec.TTLAt.After(before) {
				expired = append(expired, rec)
			}
		}
		sort.Slice(expired, func(i, j int) bool { return expired[i].TTLAt.Before(expired[j].TTLAt) })
		if limit > 0 && len(expired) > limit {
			expired = expired[:limit]
		}
		for _, rec := range expired {
			delete(st.idempotency, rec.Key)
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}

func (r *idempotencyRepository) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	return r.store.write(ctx, func(st *state) error {
		rec, ok := st.idempotency[key]
		if !ok {
			return domain.ErrIdempotencyKeyNotFound
		}
		rec.Status = status
		rec.ResponseBody = append([]byte(nil), responseBody...)
		rec.HTTPStatus = httpStatus
		rec.UpdatedAt = r.now()
		st.idempotency[key] = rec
		return nil
	})
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
