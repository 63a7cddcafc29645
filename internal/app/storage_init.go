package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies — репозитории и хранилище, выбранные по StorageDriver.
type runtimeDependencies struct {
	orderStore      domain.OrderStore
	repo            domain.OrderRepository
	products        domain.ProductRepository
	categories      domain.CategoryRepository
	customers       domain.CustomerRepository
	outboxRepo      domain.OutboxRepository
	historyRepo     domain.HistoryRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

// initRuntimeDependencies создаёт хранилище и репозитории по конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			orderStore:      memory.NewOrderStore(store),
			repo:            memory.NewOrderRepository(store),
			products:        memory.NewProductRepository(store),
			categories:      memory.NewCategoryRepository(store),
			customers:       memory.NewCustomerRepository(store),
			outboxRepo:      memory.NewOutboxRepository(store),
			historyRepo:     memory.NewHistoryRepository(store),
			idempotencyRepo: memory.NewIdempotencyRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres dsn is required for storage driver %q", cfg.StorageDriver)
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		logger.Info("using postgres storage")
		return &runtimeDependencies{
			orderStore:      postgres.NewOrderStore(store),
			repo:            postgres.NewOrderRepository(store),
			products:        postgres.NewProductRepository(store),
			categories:      postgres.NewCategoryRepository(store),
			customers:       postgres.NewCustomerRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			historyRepo:     postgres.NewHistoryRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}
