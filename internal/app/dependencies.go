package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies - хранилища выбранного драйвера.
type runtimeDependencies struct {
	tx              domain.TxManager
	catalogRepo     domain.CatalogRepository
	customerRepo    domain.CustomerRepository
	orderRepo       domain.OrderRepository
	cartRepo        domain.CartRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("storage driver: memory")
		return runtimeDependencies{
			tx:              store,
			catalogRepo:     memory.NewCatalogRepository(store),
			customerRepo:    memory.NewCustomerRepository(store),
			orderRepo:       memory.NewOrderRepository(store),
			cartRepo:        memory.NewCartRepository(store),
			outboxRepo:      memory.NewOutboxRepository(store),
			timelineRepo:    memory.NewTimelineRepository(store),
			idempotencyRepo: memory.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewStorageChecker(store),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage driver")
		}

		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}

		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("storage driver: postgres")
		return runtimeDependencies{
			tx:              store,
			catalogRepo:     postgres.NewCatalogRepository(store),
			customerRepo:    postgres.NewCustomerRepository(store),
			orderRepo:       postgres.NewOrderRepository(store),
			cartRepo:        postgres.NewCartRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewStorageChecker(store),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
