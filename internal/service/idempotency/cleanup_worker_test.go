package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var _ domain.IdempotencyRepository = (*stubCleanupRepo)(nil)

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteResults: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteErrors: []error{errors.New("boom")}}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.Error(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupWorker_DeleteExpired_CancelledContext(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteResults: []int{10}}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.DeleteExpired(ctx, time.Now().UTC())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls())
}

func TestCleanupWorker_SweepCountsResults(t *testing.T) {
	okBefore := testutil.ToFloat64(sweeps.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(sweeps.WithLabelValues("error"))
	expiredBefore := testutil.ToFloat64(keysExpired)

	NewCleanupWorker(&stubCleanupRepo{deleteResults: []int{3}}, WithBatchSize(10)).sweep(context.Background())
	NewCleanupWorker(&stubCleanupRepo{deleteErrors: []error{errors.New("db down")}}).sweep(context.Background())

	assert.Equal(t, okBefore+1, testutil.ToFloat64(sweeps.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(sweeps.WithLabelValues("error")))
	assert.Equal(t, expiredBefore+3, testutil.ToFloat64(keysExpired))
}

func TestCleanupWorker_RemovesOnlyExpiredKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewIdempotencyRepository(memory.NewStore())
	now := time.Now().UTC()

	_, err := repo.CreateProcessing(ctx, "expired-1", "h1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateProcessing(ctx, "expired-2", "h2", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateProcessing(ctx, "live", "h3", now.Add(time.Hour))
	require.NoError(t, err)

	worker := NewCleanupWorker(repo, WithBatchSize(1), WithClock(clock.NewManual(now)))
	deleted, err := worker.DeleteExpired(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = repo.Get(ctx, "expired-1")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	live, err := repo.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, live.Status)
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteResults: []int{0, 0, 0}}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	assert.NotZero(t, repo.calls())
}

func TestCleanupWorker_Run_NilRepo(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker with nil repo must return immediately")
	}
}

type stubCleanupRepo struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (s *stubCleanupRepo) CreateProcessing(context.Context, string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) Get(context.Context, string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkDone(context.Context, string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkFailed(context.Context, string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) DeleteExpired(_ context.Context, _ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
