package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/service/carts"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	httpapi "github.com/vladislavdragonenkov/storefront/internal/transport/http"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run поднимает HTTP API, фоновые воркеры и служебные серверы и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.location()
	if err != nil {
		return err
	}
	ranks, err := cfg.ranks()
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn == nil {
			return
		}
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	clk := clock.NewSystem()
	orderMetrics := metrics.NewOrderMetrics()

	customerSvc := customers.NewService(deps.tx, deps.customerRepo, deps.outboxRepo, ranks, clk,
		logger.WithField("layer", "customers"))
	catalogSvc := catalog.NewService(deps.tx, deps.catalogRepo, clk, logger.WithField("layer", "catalog"))
	cartSvc := carts.NewService(deps.tx, deps.cartRepo, deps.catalogRepo, deps.customerRepo, clk, logger.WithField("layer", "carts"))
	orderSvc := orders.NewService(orders.Repositories{
		Tx:        deps.tx,
		Catalog:   deps.catalogRepo,
		Customers: deps.customerRepo,
		Orders:    deps.orderRepo,
		Timeline:  deps.timelineRepo,
		Outbox:    deps.outboxRepo,
	}, customerSvc, ranks,
		orders.WithClock(clk),
		orders.WithCartClearer(cartSvc),
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger.WithField("layer", "orders")),
	)

	// Kafka опциональна: без брокеров уведомления пишутся в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	var external domain.OutboxPublisher
	workerOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("worker", "outbox")),
		outbox.WithClock(clk),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if kafkaProducer != nil {
		external = kafka.NewOutboxPublisher(kafkaProducer, cfg.NotificationsTopic)
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)))
	}
	dispatcher := notify.NewDispatcher(cartSvc, external, logger.WithField("layer", "notify"))

	outboxCtx, outboxCancel := context.WithCancel(ctx)
	outboxDone := make(chan struct{})
	go func() {
		defer close(outboxDone)
		outbox.NewWorker(deps.outboxRepo, dispatcher, workerOpts...).Run(outboxCtx)
	}()
	defer shutdownWorker("outbox", outboxCancel, outboxDone, logger)

	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		idempotency.NewCleanupWorker(deps.idempotencyRepo,
			idempotency.WithLogger(logger.WithField("worker", "idempotency-cleanup")),
			idempotency.WithClock(clk),
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		).Run(cleanupCtx)
	}()
	defer shutdownWorker("idempotency-cleanup", cleanupCancel, cleanupDone, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker(func(ctx context.Context) (int, error) {
		stats, err := deps.outboxRepo.Stats(ctx)
		if err != nil {
			return 0, err
		}
		return stats.PendingCount, nil
	}, cfg.OutboxMaxPending))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	errCh := make(chan error, 2)

	grpcServer, healthServer, err := startGRPCHealthServer(cfg.GRPCHealthAddr, logger, errCh)
	if err != nil {
		return err
	}

	api := httpapi.NewHandler(httpapi.Services{
		Orders:      orderSvc,
		Carts:       cartSvc,
		Customers:   customerSvc,
		Catalog:     catalogSvc,
		Idempotency: deps.idempotencyRepo,
	},
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithClock(clk),
		httpapi.WithLocation(loc),
		httpapi.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		stopGRPC(grpcServer, healthServer, cfg.ShutdownTimeout, logger)
		return fmt.Errorf("listen http: %w", err)
	}
	apiSrv := &http.Server{
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		if err := apiSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		shutdownHTTPWithTimeout(apiSrv, cfg.ShutdownTimeout, logger)
		stopGRPC(grpcServer, healthServer, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTPWithTimeout(apiSrv, cfg.ShutdownTimeout, logger)
		stopGRPC(grpcServer, healthServer, cfg.ShutdownTimeout, logger)
		return err
	}
}

// startGRPCHealthServer поднимает grpc.health.v1 для балансировщиков. Пустой адрес - сервер не нужен.
func startGRPCHealthServer(addr string, logger *log.Entry, errCh chan<- error) (*grpc.Server, *health.Server, error) {
	if addr == "" {
		return nil, nil, nil
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen grpc health: %w", err)
	}
	go func() {
		logger.Infof("gRPC health слушает %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc health: %w", err)
		}
	}()
	return grpcServer, healthServer, nil
}

func stopGRPC(srv *grpc.Server, healthServer *health.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	stoppedCh := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(shutdownTimeout(timeout)):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// shutdownWorker отменяет контекст воркера и ждёт его завершения.
func shutdownWorker(name string, cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.WithField("worker", name).Warn("worker did not stop in time")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	shutdownHTTPWithTimeout(srv, 0, logger)
}

func shutdownHTTPWithTimeout(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(timeout))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func shutdownTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 5 * time.Second
	}
	return timeout
}
