package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

var (
	sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_idempotency_sweeps_total",
		Help: "Idempotency key sweeps grouped by result.",
	}, []string{"result"})
	keysExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_idempotency_keys_expired_total",
		Help: "Expired Idempotency-Key records removed.",
	})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_idempotency_sweep_duration_seconds",
		Help:    "Duration of one idempotency sweep.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)

type cleanupConfig struct {
	logger    *log.Entry
	clock     clock.Clock
	interval  time.Duration
	batchSize int
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*cleanupConfig)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(c *cleanupConfig) { c.logger = logger }
}

// WithClock подменяет источник времени.
func WithClock(clk clock.Clock) CleanupOption {
	return func(c *cleanupConfig) { c.clock = clk }
}

// WithInterval задаёт период между проходами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(c *cleanupConfig) { c.interval = interval }
}

// WithBatchSize ограничивает число записей, удаляемых одним запросом.
func WithBatchSize(batchSize int) CleanupOption {
	return func(c *cleanupConfig) { c.batchSize = batchSize }
}

// CleanupWorker удаляет сохранённые ответы POST /orders, у которых истёк TTL.
// Пока запись жива, повтор запроса с тем же Idempotency-Key получает прежний ответ.
type CleanupWorker struct {
	repo domain.IdempotencyRepository
	cfg  cleanupConfig
}

// NewCleanupWorker создаёт воркер.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	cfg := cleanupConfig{
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
	}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "idempotency-cleanup")
	}
	if cfg.clock == nil {
		cfg.clock = clock.NewSystem()
	}
	if cfg.interval <= 0 {
		cfg.interval = defaultCleanupInterval
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultCleanupBatchSize
	}

	return &CleanupWorker{repo: repo, cfg: cfg}
}

// Run чистит ключи сразу и затем каждые interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.cfg.logger.Warn("idempotency cleanup is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.interval)
	defer ticker.Stop()

	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	started := time.Now()
	deleted, err := w.DeleteExpired(ctx, w.cfg.clock.Now())
	sweepDuration.Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		sweeps.WithLabelValues("error").Inc()
		w.cfg.logger.WithError(err).WithField("deleted", deleted).Warn("idempotency sweep failed")
	default:
		sweeps.WithLabelValues("ok").Inc()
		if deleted > 0 {
			w.cfg.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
		}
	}
}

// DeleteExpired удаляет записи с истёкшим к моменту before сроком, пачками по batchSize,
// пока очередная пачка не окажется неполной. Нулевой before означает «сейчас».
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.cfg.clock.Now()
	}

	total := 0
	for ctx.Err() == nil {
		n, err := w.repo.DeleteExpired(ctx, before, w.cfg.batchSize)
		total += n
		keysExpired.Add(float64(n))
		if err != nil || n < w.cfg.batchSize {
			return total, err
		}
	}
	return total, ctx.Err()
}
