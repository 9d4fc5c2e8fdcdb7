package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond

	// потолок паузы между попытками одного сообщения
	maxRetryDelay = 5 * time.Second
)

// Результаты доставки (label result).
const (
	resultDelivered        = "delivered"
	resultRetry            = "retry"
	resultFailed           = "failed"
	resultDeadLettered     = "dead_lettered"
	resultDeadLetterFailed = "dead_letter_failed"
)

var (
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_outbox_deliveries_total",
		Help: "Outbox delivery attempts by event type and result.",
	}, []string{"event_type", "result"})
	pendingMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_outbox_pending_messages",
		Help: "Pending messages in the transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_outbox_oldest_pending_age_seconds",
		Help: "Age of the oldest pending outbox message.",
	})
)

// DeadLetter - содержимое сообщения, отправленного в DLQ.
// cmd/dlq-replay восстанавливает из него исходное событие.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DeadLetteredAt time.Time       `json:"dlq_published_at"`
}

type config struct {
	logger         *log.Entry
	clock          clock.Clock
	deadLetters    domain.OutboxPublisher
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*config)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(c *config) { c.logger = logger }
}

// WithClock подменяет часы (время попадания в DLQ, возраст backlog).
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithDLQPublisher задаёт получателя сообщений, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(c *config) { c.deadLetters = publisher }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(c *config) { c.pollInterval = interval }
}

// WithBatchSize задаёт число сообщений за один цикл.
func WithBatchSize(batchSize int) Option {
	return func(c *config) { c.batchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток доставки одного сообщения.
func WithMaxAttempts(maxAttempts int) Option {
	return func(c *config) { c.maxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(c *config) { c.retryBaseDelay = delay }
}

// Worker доставляет pending-сообщения outbox получателю: очистка корзины,
// уведомления, брокер. Доставка at-least-once, получатели идемпотентны.
type Worker struct {
	repo      domain.OutboxRepository
	recipient domain.OutboxPublisher
	cfg       config
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, recipient domain.OutboxPublisher, options ...Option) *Worker {
	cfg := config{
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "outbox-worker")
	}
	if cfg.clock == nil {
		cfg.clock = clock.NewSystem()
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultBatchSize
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.retryBaseDelay < 0 {
		cfg.retryBaseDelay = 0
	}

	return &Worker{repo: repo, recipient: recipient, cfg: cfg}
}

// Run опрашивает outbox до отмены ctx. Первый цикл выполняется сразу.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.recipient == nil {
		w.cfg.logger.Warn("outbox worker is disabled: repo or recipient is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce обрабатывает одну пачку pending-сообщений.
// Каждое сообщение в итоге помечается sent или failed.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer w.updateBacklog(ctx)

	batch, err := w.repo.PullPending(ctx, w.cfg.batchSize)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		entry := w.cfg.logger.WithFields(log.Fields{
			"outbox_id":  msg.ID,
			"event_type": msg.EventType,
		})

		if err := w.deliver(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// сообщение остаётся pending и уйдёт в следующем запуске
				return
			}
			entry.WithError(err).Error("outbox delivery failed")
			w.bury(ctx, entry, msg, err)
			continue
		}

		if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
			entry.WithError(err).Warn("failed to mark outbox message as sent")
		}
	}
}

// deliver делает до maxAttempts попыток с паузой retryBackoff между ними.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, w.retryBackoff(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = w.recipient.Publish(ctx, msg)
		if lastErr == nil {
			deliveries.WithLabelValues(msg.EventType, resultDelivered).Inc()
			return nil
		}
		deliveries.WithLabelValues(msg.EventType, resultRetry).Inc()
	}
	return fmt.Errorf("%d delivery attempts: %w", w.cfg.maxAttempts, lastErr)
}

// bury отправляет сообщение в DLQ (если он настроен) и помечает его failed.
func (w *Worker) bury(ctx context.Context, entry *log.Entry, msg domain.OutboxMessage, cause error) {
	deliveries.WithLabelValues(msg.EventType, resultFailed).Inc()

	if w.cfg.deadLetters != nil {
		if err := w.deadLetter(ctx, msg, cause); err != nil {
			entry.WithError(err).Warn("failed to publish outbox message to DLQ")
			deliveries.WithLabelValues(msg.EventType, resultDeadLetterFailed).Inc()
		} else {
			deliveries.WithLabelValues(msg.EventType, resultDeadLettered).Inc()
		}
	}

	if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
		entry.WithError(err).Warn("failed to mark outbox message as failed")
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg domain.OutboxMessage, cause error) error {
	payload, err := json.Marshal(DeadLetter{
		OutboxID:       msg.ID,
		AggregateType:  msg.AggregateType,
		AggregateID:    msg.AggregateID,
		EventType:      msg.EventType,
		Payload:        json.RawMessage(msg.Payload),
		PublishError:   cause.Error(),
		DeadLetteredAt: w.cfg.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	letter := msg
	letter.Payload = payload
	if err := w.cfg.deadLetters.Publish(ctx, letter); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (w *Worker) updateBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingMessages.Set(float64(stats.PendingCount))
	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = max(w.cfg.clock.Now().Sub(stats.OldestPendingAt).Seconds(), 0)
	}
	oldestPendingAge.Set(age)
}

// retryBackoff - пауза после неудачной попытки n (n >= 1): base * 2^(n-1), не больше maxRetryDelay.
func (w *Worker) retryBackoff(n int) time.Duration {
	if w.cfg.retryBaseDelay <= 0 {
		return 0
	}
	delay := w.cfg.retryBaseDelay
	for i := 1; i < n && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
